package dto

// SendAttachment is an attachment supplied on the send path. Content is raw
// bytes; handlers decode base64 or multipart file parts before building this.
type SendAttachment struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Content     []byte `json:"content"`
}

// SendMessageRequest is the payload of POST /v3/grants/{id}/messages/send.
// From overrides the sender identity in the composed headers; the SMTP
// envelope still uses the account's address.
type SendMessageRequest struct {
	From             []EmailAddress   `json:"from"`
	To               []EmailAddress   `json:"to"`
	Cc               []EmailAddress   `json:"cc"`
	Bcc              []EmailAddress   `json:"bcc"`
	ReplyTo          []EmailAddress   `json:"reply_to"`
	Subject          string           `json:"subject"`
	Body             string           `json:"body"`
	ReplyToMessageID string           `json:"reply_to_message_id"`
	Attachments      []SendAttachment `json:"attachments"`
}

// SendMessageResponse mirrors the Nylas send response envelope.
type SendMessageResponse struct {
	RequestID string  `json:"request_id"`
	GrantID   string  `json:"grant_id"`
	Data      Message `json:"data"`
}
