package dto

// EmailAddress is a single participant on a message. Name falls back to the
// address when the mailbox has no display name.
type EmailAddress struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Attachment is attachment metadata inside a canonical message. IDs are
// positional (att_1, att_2, ...) in MIME walk order and only stable for the
// same raw message bytes.
type Attachment struct {
	ID          string `json:"id"`
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Size        int    `json:"size"`
}

// Message is the canonical provider-independent message shape returned by the
// API and delivered through webhooks.
type Message struct {
	ID          string         `json:"id"`
	GrantID     string         `json:"grant_id"`
	Object      string         `json:"object"`
	Subject     string         `json:"subject"`
	Body        string         `json:"body"`
	Snippet     string         `json:"snippet"`
	From        []EmailAddress `json:"from"`
	To          []EmailAddress `json:"to"`
	Cc          []EmailAddress `json:"cc"`
	Bcc         []EmailAddress `json:"bcc"`
	ReplyTo     []EmailAddress `json:"reply_to"`
	Date        int64          `json:"date"`
	ThreadID    string         `json:"thread_id"`
	Starred     bool           `json:"starred"`
	Unread      bool           `json:"unread"`
	Folders     []string       `json:"folders"`
	Attachments []Attachment   `json:"attachments"`
}

// AttachmentContent is a downloaded attachment body.
type AttachmentContent struct {
	Attachment
	Content []byte `json:"-"`
}
