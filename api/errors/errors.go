package errors

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type ErrorType string

const (
	TypeInvalidRequest       ErrorType = "invalid_request_error"
	TypeNotFound             ErrorType = "not_found_error"
	TypeProvider             ErrorType = "provider_error"
	TypeInternal             ErrorType = "internal_error"
	TypeUnsupportedOperation ErrorType = "unsupported_operation_error"
)

// APIError is the error object inside the response envelope. ProviderError
// carries upstream IMAP/SMTP detail when there is any; credentials and stack
// frames never end up here.
type APIError struct {
	Type          ErrorType `json:"type"`
	Message       string    `json:"message"`
	ProviderError string    `json:"provider_error,omitempty"`
}

// ErrorResponse is the envelope every error body uses. RequestID is freshly
// generated per response so failures can be correlated in logs.
type ErrorResponse struct {
	RequestID string   `json:"request_id"`
	Error     APIError `json:"error"`
}

func respond(c *gin.Context, status int, errorType ErrorType, message, providerError string) {
	c.AbortWithStatusJSON(status, ErrorResponse{
		RequestID: uuid.NewString(),
		Error: APIError{
			Type:          errorType,
			Message:       message,
			ProviderError: providerError,
		},
	})
}

func BadRequest(c *gin.Context, message string) {
	respond(c, http.StatusBadRequest, TypeInvalidRequest, message, "")
}

func Unauthorized(c *gin.Context, message string) {
	respond(c, http.StatusUnauthorized, TypeInvalidRequest, message, "")
}

func NotFound(c *gin.Context, message string) {
	respond(c, http.StatusNotFound, TypeNotFound, message, "")
}

func Provider(c *gin.Context, message string, err error) {
	providerError := ""
	if err != nil {
		providerError = err.Error()
	}
	respond(c, http.StatusInternalServerError, TypeProvider, message, providerError)
}

func Internal(c *gin.Context, message string) {
	respond(c, http.StatusInternalServerError, TypeInternal, message, "")
}

func Unsupported(c *gin.Context, message string) {
	respond(c, http.StatusNotImplemented, TypeUnsupportedOperation, message, "")
}

// WithStatus maps an arbitrary status (e.g. from the connect flow) onto the
// envelope, keeping the type consistent with the status class.
func WithStatus(c *gin.Context, status int, message string) {
	switch status {
	case http.StatusUnauthorized:
		Unauthorized(c, message)
	case http.StatusNotFound:
		NotFound(c, message)
	default:
		BadRequest(c, message)
	}
}
