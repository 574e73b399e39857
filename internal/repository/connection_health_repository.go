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

type connectionHealthRepository struct {
	db *gorm.DB
}

func NewConnectionHealthRepository(db *gorm.DB) interfaces.ConnectionHealthRepository {
	return &connectionHealthRepository{db: db}
}

func (r *connectionHealthRepository) RecordSuccess(ctx context.Context, accountID, folder string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "connectionHealthRepository.RecordSuccess")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	now := utils.Now()
	result := r.db.WithContext(ctx).
		Model(&models.ConnectionHealth{}).
		Where("account_id = ? AND folder = ?", accountID, folder).
		Updates(map[string]interface{}{
			"last_success_at":      now,
			"consecutive_failures": 0,
			"last_error":           "",
			"is_active":            true,
			"updated_at":           now,
		})

	if result.RowsAffected == 0 {
		result = r.db.WithContext(ctx).Create(&models.ConnectionHealth{
			AccountID:     accountID,
			Folder:        folder,
			LastSuccessAt: &now,
			IsActive:      true,
		})
	}

	if result.Error != nil {
		tracing.TraceErr(span, result.Error)
		return fmt.Errorf("failed to record connection success: %w", result.Error)
	}

	return nil
}

func (r *connectionHealthRepository) RecordFailure(ctx context.Context, accountID, folder, lastError string) (int, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "connectionHealthRepository.RecordFailure")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	var health models.ConnectionHealth
	result := r.db.WithContext(ctx).
		Where("account_id = ? AND folder = ?", accountID, folder).
		First(&health)

	if result.Error != nil && result.Error != gorm.ErrRecordNotFound {
		tracing.TraceErr(span, result.Error)
		return 0, fmt.Errorf("failed to load connection health: %w", result.Error)
	}

	health.AccountID = accountID
	health.Folder = folder
	health.ConsecutiveFailures++
	health.LastError = utils.TruncateBytes(lastError, 2000)
	health.IsActive = health.ConsecutiveFailures < models.MaxConsecutiveFailures
	health.UpdatedAt = utils.Now()

	var save *gorm.DB
	if health.ID == "" {
		save = r.db.WithContext(ctx).Create(&health)
	} else {
		save = r.db.WithContext(ctx).Save(&health)
	}

	if save.Error != nil {
		tracing.TraceErr(span, save.Error)
		return 0, fmt.Errorf("failed to record connection failure: %w", save.Error)
	}

	return health.ConsecutiveFailures, nil
}
