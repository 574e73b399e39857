package dto

// WebhookEnvelope wraps an event for delivery to an app endpoint, loosely
// following the CloudEvents shape.
type WebhookEnvelope struct {
	SpecVersion            string      `json:"specversion"`
	Type                   string      `json:"type"`
	Source                 string      `json:"source"`
	ID                     string      `json:"id"`
	Time                   int64       `json:"time"`
	WebhookDeliveryAttempt int         `json:"webhook_delivery_attempt"`
	Data                   WebhookData `json:"data"`
}

type WebhookData struct {
	ApplicationID string      `json:"application_id"`
	Object        interface{} `json:"object"`
}
