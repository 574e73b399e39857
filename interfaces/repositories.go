package interfaces

import (
	"context"
	"time"

	"github.com/nolashq/nolas/internal/enum"
	"github.com/nolashq/nolas/internal/models"
)

type AppRepository interface {
	Create(ctx context.Context, app *models.App) error
	GetByID(ctx context.Context, id string) (*models.App, error)
	GetByAPIKey(ctx context.Context, apiKey string) (*models.App, error)
	GetByUUID(ctx context.Context, uuid string) (*models.App, error)
	Update(ctx context.Context, app *models.App) error
}

type AccountRepository interface {
	Create(ctx context.Context, account *models.Account) error
	GetByID(ctx context.Context, id string) (*models.Account, error)
	GetByAppAndUUID(ctx context.Context, appID, uuid string) (*models.Account, error)
	GetByAppAndEmail(ctx context.Context, appID, email string) (*models.Account, error)
	GetAllActive(ctx context.Context) ([]*models.Account, error)
	Update(ctx context.Context, account *models.Account) error
	UpdateStatus(ctx context.Context, id string, status enum.AccountStatus) error
}

type AuthorizationRequestRepository interface {
	Create(ctx context.Context, request *models.AuthorizationRequest) error
	GetByCode(ctx context.Context, code string) (*models.AuthorizationRequest, error)
	MarkCodeUsed(ctx context.Context, id string) error
	UpdateStatus(ctx context.Context, id string, status enum.AuthorizationStatus) error
	DeleteExpired(ctx context.Context, olderThan time.Time) (int64, error)
}

type EmailRepository interface {
	GetByMessageID(ctx context.Context, accountID, messageID string) (*models.Email, error)
	// GetByUIDOrMessageID matches on (folder, uid) OR message_id, so a row
	// survives folder moves and UIDVALIDITY-style renumberings.
	GetByUIDOrMessageID(ctx context.Context, accountID, folder string, uid uint32, messageID string) (*models.Email, error)
	Upsert(ctx context.Context, email *models.Email) error
}

type UidTrackingRepository interface {
	GetLastSeenUID(ctx context.Context, accountID, folder string) (uint32, error)
	SetLastSeenUID(ctx context.Context, accountID, folder string, uid uint32) error
	TouchLastChecked(ctx context.Context, accountID, folder string) error
	DeleteByAccount(ctx context.Context, accountID string) error
	DeleteStale(ctx context.Context, olderThan time.Time) (int64, error)
}

type ConnectionHealthRepository interface {
	RecordSuccess(ctx context.Context, accountID, folder string) error
	// RecordFailure returns the updated consecutive failure count.
	RecordFailure(ctx context.Context, accountID, folder, lastError string) (int, error)
}

type WebhookLogRepository interface {
	Create(ctx context.Context, log *models.WebhookLog) error
}
