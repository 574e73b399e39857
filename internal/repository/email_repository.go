package repository

import (
	"context"
	"fmt"

	"github.com/opentracing/opentracing-go"
	"gorm.io/gorm"

	"github.com/nolashq/nolas/interfaces"
	"github.com/nolashq/nolas/internal/models"
	"github.com/nolashq/nolas/internal/tracing"
	"github.com/nolashq/nolas/internal/utils"
)

type emailRepository struct {
	db *gorm.DB
}

func NewEmailRepository(db *gorm.DB) interfaces.EmailRepository {
	return &emailRepository{db: db}
}

func (r *emailRepository) GetByMessageID(ctx context.Context, accountID, messageID string) (*models.Email, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailRepository.GetByMessageID")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	var email models.Email
	result := r.db.WithContext(ctx).
		Where("account_id = ? AND message_id = ?", accountID, messageID).
		First(&email)

	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, nil
		}
		tracing.TraceErr(span, result.Error)
		return nil, fmt.Errorf("failed to get email: %w", result.Error)
	}

	return &email, nil
}

func (r *emailRepository) GetByUIDOrMessageID(ctx context.Context, accountID, folder string, uid uint32, messageID string) (*models.Email, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailRepository.GetByUIDOrMessageID")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	var email models.Email
	result := r.db.WithContext(ctx).
		Where("account_id = ? AND ((folder = ? AND uid = ?) OR message_id = ?)", accountID, folder, uid, messageID).
		First(&email)

	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, nil
		}
		tracing.TraceErr(span, result.Error)
		return nil, fmt.Errorf("failed to get email: %w", result.Error)
	}

	return &email, nil
}

// Upsert updates the row located by (folder, uid) OR message_id, or creates
// one. Matching on the location too reconciles folder moves and
// UIDVALIDITY-style renumberings instead of leaving a stale hint behind.
func (r *emailRepository) Upsert(ctx context.Context, email *models.Email) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailRepository.Upsert")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	existing, err := r.lookupForUpsert(ctx, email)
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}

	var result *gorm.DB
	if existing != nil {
		result = r.db.WithContext(ctx).
			Model(&models.Email{}).
			Where("id = ?", existing.ID).
			Updates(map[string]interface{}{
				"message_id": email.MessageID,
				"thread_id":  email.ThreadID,
				"folder":     email.Folder,
				"uid":        email.UID,
				"updated_at": utils.Now(),
			})
	} else {
		result = r.db.WithContext(ctx).Create(email)
	}

	if result.Error != nil {
		tracing.TraceErr(span, result.Error)
		return fmt.Errorf("failed to upsert email: %w", result.Error)
	}

	return nil
}

// lookupForUpsert only consults the location leg for real UIDs; sent-message
// rows are indexed before their Sent-folder UID is known and would otherwise
// all collide on (folder, 0).
func (r *emailRepository) lookupForUpsert(ctx context.Context, email *models.Email) (*models.Email, error) {
	if email.UID > 0 {
		return r.GetByUIDOrMessageID(ctx, email.AccountID, email.Folder, email.UID, email.MessageID)
	}
	return r.GetByMessageID(ctx, email.AccountID, email.MessageID)
}
