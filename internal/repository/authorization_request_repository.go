package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/opentracing/opentracing-go"
	"gorm.io/gorm"

	"github.com/nolashq/nolas/interfaces"
	"github.com/nolashq/nolas/internal/enum"
	"github.com/nolashq/nolas/internal/models"
	"github.com/nolashq/nolas/internal/tracing"
	"github.com/nolashq/nolas/internal/utils"
)

type authorizationRequestRepository struct {
	db *gorm.DB
}

func NewAuthorizationRequestRepository(db *gorm.DB) interfaces.AuthorizationRequestRepository {
	return &authorizationRequestRepository{db: db}
}

func (r *authorizationRequestRepository) Create(ctx context.Context, request *models.AuthorizationRequest) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "authorizationRequestRepository.Create")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	result := r.db.WithContext(ctx).Create(request)
	if result.Error != nil {
		tracing.TraceErr(span, result.Error)
		return fmt.Errorf("failed to create authorization request: %w", result.Error)
	}

	return nil
}

func (r *authorizationRequestRepository) GetByCode(ctx context.Context, code string) (*models.AuthorizationRequest, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "authorizationRequestRepository.GetByCode")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	var request models.AuthorizationRequest
	result := r.db.WithContext(ctx).
		Where("code = ?", code).
		First(&request)

	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, nil
		}
		tracing.TraceErr(span, result.Error)
		return nil, fmt.Errorf("failed to get authorization request: %w", result.Error)
	}

	return &request, nil
}

func (r *authorizationRequestRepository) MarkCodeUsed(ctx context.Context, id string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "authorizationRequestRepository.MarkCodeUsed")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	result := r.db.WithContext(ctx).
		Model(&models.AuthorizationRequest{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"code_used":  true,
			"status":     enum.AuthorizationAuthorized,
			"updated_at": utils.Now(),
		})

	if result.Error != nil {
		tracing.TraceErr(span, result.Error)
		return fmt.Errorf("failed to mark code used: %w", result.Error)
	}

	return nil
}

func (r *authorizationRequestRepository) UpdateStatus(ctx context.Context, id string, status enum.AuthorizationStatus) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "authorizationRequestRepository.UpdateStatus")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	result := r.db.WithContext(ctx).
		Model(&models.AuthorizationRequest{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     status,
			"updated_at": utils.Now(),
		})

	if result.Error != nil {
		tracing.TraceErr(span, result.Error)
		return fmt.Errorf("failed to update authorization request status: %w", result.Error)
	}

	return nil
}

func (r *authorizationRequestRepository) DeleteExpired(ctx context.Context, olderThan time.Time) (int64, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "authorizationRequestRepository.DeleteExpired")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	result := r.db.WithContext(ctx).
		Where("expires_at < ?", olderThan).
		Delete(&models.AuthorizationRequest{})

	if result.Error != nil {
		tracing.TraceErr(span, result.Error)
		return 0, fmt.Errorf("failed to delete expired authorization requests: %w", result.Error)
	}

	return result.RowsAffected, nil
}
