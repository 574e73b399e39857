package dto

// MessageResponse wraps a single message for the API.
type MessageResponse struct {
	RequestID string  `json:"request_id"`
	GrantID   string  `json:"grant_id"`
	Data      Message `json:"data"`
}

// MessageListResponse wraps a folder listing.
type MessageListResponse struct {
	RequestID string    `json:"request_id"`
	GrantID   string    `json:"grant_id"`
	Data      []Message `json:"data"`
}

// Folder is a folder record returned by the folders endpoint.
type Folder struct {
	ID      string `json:"id"`
	GrantID string `json:"grant_id"`
	Name    string `json:"name"`
	Object  string `json:"object"`
}

type FolderResponse struct {
	RequestID string `json:"request_id"`
	GrantID   string `json:"grant_id"`
	Data      Folder `json:"data"`
}

type FolderListResponse struct {
	RequestID string   `json:"request_id"`
	GrantID   string   `json:"grant_id"`
	Data      []Folder `json:"data"`
}

// AttachmentResponse wraps attachment metadata.
type AttachmentResponse struct {
	RequestID string     `json:"request_id"`
	GrantID   string     `json:"grant_id"`
	Data      Attachment `json:"data"`
}

// TokenResponse is the success payload of POST /v3/connect/token.
type TokenResponse struct {
	RequestID   string `json:"request_id"`
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	GrantID     string `json:"grant_id"`
	Email       string `json:"email"`
	Provider    string `json:"provider"`
	Scope       string `json:"scope,omitempty"`
}

// DeleteGrantResponse is returned by DELETE /v3/grants/{id}.
type DeleteGrantResponse struct {
	RequestID string `json:"request_id"`
	GrantID   string `json:"grant_id"`
	Object    string `json:"object"`
	Success   bool   `json:"success"`
}
