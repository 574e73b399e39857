package connect

import "net/http"

// AuthorizationError is a user-facing onboarding failure. StatusCode drives
// the HTTP mapping in the API layer.
type AuthorizationError struct {
	StatusCode int
	Message    string
}

func (e *AuthorizationError) Error() string {
	return e.Message
}

func invalidRequest(message string) *AuthorizationError {
	return &AuthorizationError{StatusCode: http.StatusBadRequest, Message: message}
}

func invalidClient(message string) *AuthorizationError {
	return &AuthorizationError{StatusCode: http.StatusUnauthorized, Message: message}
}

var (
	ErrUnsupportedGrantType = invalidRequest("unsupported grant_type, expected authorization_code")
	ErrInvalidClient        = invalidClient("invalid client_id")
	ErrInvalidCode          = invalidRequest("invalid authorization code")
	ErrCodeExpired          = invalidRequest("authorization code is expired or already used")
	ErrRedirectURIMismatch  = invalidRequest("redirect_uri does not match the authorization request")
	ErrWrongApp             = invalidClient("authorization code was issued to a different application")
	ErrInvalidGrant         = invalidRequest("invalid grant")
)
