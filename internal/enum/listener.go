package enum

type ListenerMode string

const (
	ListenerModeSingle  ListenerMode = "single"
	ListenerModeCluster ListenerMode = "cluster"
)

func (t ListenerMode) String() string {
	return string(t)
}

type WebhookTrigger string

const (
	WebhookTriggerMessageCreated WebhookTrigger = "message.created"
)

func (t WebhookTrigger) String() string {
	return string(t)
}
