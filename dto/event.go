package dto

// Event is the payload published to the internal event stream when RabbitMQ
// is configured. It mirrors the webhook content without the delivery fields.
type Event struct {
	ID        string      `json:"id"`
	Type      string      `json:"type"`
	AppUUID   string      `json:"app_uuid"`
	GrantID   string      `json:"grant_id"`
	Folder    string      `json:"folder,omitempty"`
	Timestamp int64       `json:"timestamp"`
	Data      interface{} `json:"data"`
}
