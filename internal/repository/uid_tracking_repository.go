package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/opentracing/opentracing-go"
	"gorm.io/gorm"

	"github.com/nolashq/nolas/interfaces"
	"github.com/nolashq/nolas/internal/models"
	"github.com/nolashq/nolas/internal/tracing"
	"github.com/nolashq/nolas/internal/utils"
)

type uidTrackingRepository struct {
	db *gorm.DB
}

func NewUidTrackingRepository(db *gorm.DB) interfaces.UidTrackingRepository {
	return &uidTrackingRepository{db: db}
}

func (r *uidTrackingRepository) GetLastSeenUID(ctx context.Context, accountID, folder string) (uint32, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "uidTrackingRepository.GetLastSeenUID")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	var tracking models.UidTracking
	result := r.db.WithContext(ctx).
		Where("account_id = ? AND folder = ?", accountID, folder).
		First(&tracking)

	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return 0, nil
		}
		tracing.TraceErr(span, result.Error)
		return 0, fmt.Errorf("failed to get uid tracking: %w", result.Error)
	}

	return tracking.LastSeenUID, nil
}

// SetLastSeenUID advances the watermark. The uid comparison keeps it
// monotonic even if two supervisors race on the same stream.
func (r *uidTrackingRepository) SetLastSeenUID(ctx context.Context, accountID, folder string, uid uint32) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "uidTrackingRepository.SetLastSeenUID")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	now := utils.Now()
	result := r.db.WithContext(ctx).
		Model(&models.UidTracking{}).
		Where("account_id = ? AND folder = ? AND last_seen_uid < ?", accountID, folder, uid).
		Updates(map[string]interface{}{
			"last_seen_uid":   uid,
			"last_checked_at": now,
			"updated_at":      now,
		})

	if result.Error != nil {
		tracing.TraceErr(span, result.Error)
		return fmt.Errorf("failed to advance uid tracking: %w", result.Error)
	}

	if result.RowsAffected == 0 {
		var existing int64
		count := r.db.WithContext(ctx).
			Model(&models.UidTracking{}).
			Where("account_id = ? AND folder = ?", accountID, folder).
			Count(&existing)
		if count.Error != nil {
			tracing.TraceErr(span, count.Error)
			return fmt.Errorf("failed to advance uid tracking: %w", count.Error)
		}
		if existing == 0 {
			create := r.db.WithContext(ctx).Create(&models.UidTracking{
				AccountID:     accountID,
				Folder:        folder,
				LastSeenUID:   uid,
				LastCheckedAt: &now,
			})
			if create.Error != nil {
				tracing.TraceErr(span, create.Error)
				return fmt.Errorf("failed to create uid tracking: %w", create.Error)
			}
		}
	}

	return nil
}

func (r *uidTrackingRepository) TouchLastChecked(ctx context.Context, accountID, folder string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "uidTrackingRepository.TouchLastChecked")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	now := utils.Now()
	result := r.db.WithContext(ctx).
		Model(&models.UidTracking{}).
		Where("account_id = ? AND folder = ?", accountID, folder).
		Updates(map[string]interface{}{
			"last_checked_at": now,
			"updated_at":      now,
		})

	if result.RowsAffected == 0 {
		result = r.db.WithContext(ctx).Create(&models.UidTracking{
			AccountID:     accountID,
			Folder:        folder,
			LastCheckedAt: &now,
		})
	}

	if result.Error != nil {
		tracing.TraceErr(span, result.Error)
		return fmt.Errorf("failed to touch uid tracking: %w", result.Error)
	}

	return nil
}

func (r *uidTrackingRepository) DeleteByAccount(ctx context.Context, accountID string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "uidTrackingRepository.DeleteByAccount")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	result := r.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Delete(&models.UidTracking{})

	if result.Error != nil {
		tracing.TraceErr(span, result.Error)
		return fmt.Errorf("failed to delete uid tracking: %w", result.Error)
	}

	return nil
}

func (r *uidTrackingRepository) DeleteStale(ctx context.Context, olderThan time.Time) (int64, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "uidTrackingRepository.DeleteStale")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	result := r.db.WithContext(ctx).
		Where("last_checked_at IS NOT NULL AND last_checked_at < ?", olderThan).
		Delete(&models.UidTracking{})

	if result.Error != nil {
		tracing.TraceErr(span, result.Error)
		return 0, fmt.Errorf("failed to delete stale uid tracking: %w", result.Error)
	}

	return result.RowsAffected, nil
}
