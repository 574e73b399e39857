package interfaces

import (
	"context"

	"github.com/nolashq/nolas/dto"
	"github.com/nolashq/nolas/internal/models"
)

// Translator converts raw RFC 822 bytes into the canonical message shape.
type Translator interface {
	Translate(ctx context.Context, raw []byte, grantID, folder string) (*dto.Message, error)
	ExtractAttachment(ctx context.Context, raw []byte, attachmentID string) (*dto.AttachmentContent, error)
}

// WebhookDispatcher signs and delivers events to app endpoints.
type WebhookDispatcher interface {
	DispatchMessageCreated(ctx context.Context, app *models.App, account *models.Account, folder string, uid uint32, message *dto.Message) error
	SendTest(ctx context.Context, app *models.App, account *models.Account) error
}

// MessageResult couples a canonical message with its provider location and
// the raw bytes it was translated from.
type MessageResult struct {
	Message *dto.Message
	Raw     []byte
	Folder  string
	UID     uint32
}

// MessageReader is the on-demand read path over IMAP.
type MessageReader interface {
	GetMessage(ctx context.Context, account *models.Account, messageID string) (*MessageResult, error)
	ListMessages(ctx context.Context, account *models.Account, folder string, limit, offset int) ([]dto.Message, error)
}

// EmailSender submits mail over SMTP and mirrors it to the Sent folder.
type EmailSender interface {
	Send(ctx context.Context, account *models.Account, request *dto.SendMessageRequest) (*dto.Message, error)
	VerifyLogin(ctx context.Context, account *models.Account) error
}

// FolderService decides which folders an account gets monitored on.
type FolderService interface {
	MonitoredFolders(ctx context.Context, account *models.Account) ([]string, error)
}

// ConnectService runs the OAuth2-style onboarding and grant lifecycle.
type ConnectService interface {
	ValidateAuthorizeParams(ctx context.Context, app *models.App, params *dto.AuthorizeParams) error
	// ProcessAuthorization verifies credentials against the provider, upserts
	// the account and returns the redirect URL carrying the one-time code.
	ProcessAuthorization(ctx context.Context, app *models.App, request *dto.ProcessRequest) (string, error)
	ExchangeToken(ctx context.Context, app *models.App, request *dto.TokenRequest) (*dto.TokenResponse, error)
	DeleteGrant(ctx context.Context, app *models.App, grantID string) (*models.Account, error)
}

// EventsPublisher is the optional internal event stream.
type EventsPublisher interface {
	Publish(ctx context.Context, routingKey string, event *dto.Event) error
	Close() error
}
