package dto

// AuthorizeParams are the query/form parameters of the authorization form.
type AuthorizeParams struct {
	ClientID     string `form:"client_id" json:"client_id"`
	RedirectURI  string `form:"redirect_uri" json:"redirect_uri"`
	ResponseType string `form:"response_type" json:"response_type"`
	State        string `form:"state" json:"state"`
	Scope        string `form:"scope" json:"scope"`
	LoginHint    string `form:"login_hint" json:"login_hint"`
}

// ProcessRequest carries the credentials form submitted to /connect/process.
type ProcessRequest struct {
	AuthorizeParams

	Email    string `form:"email" json:"email"`
	Password string `form:"password" json:"password"`
	IMAPHost string `form:"imap_host" json:"imap_host"`
	IMAPPort int    `form:"imap_port" json:"imap_port"`
	SMTPHost string `form:"smtp_host" json:"smtp_host"`
	SMTPPort int    `form:"smtp_port" json:"smtp_port"`
}

// TokenRequest is the body of POST /v3/connect/token.
type TokenRequest struct {
	GrantType   string `json:"grant_type"`
	Code        string `json:"code"`
	RedirectURI string `json:"redirect_uri"`
	ClientID    string `json:"client_id"`
}
