package repository

import (
	"context"
	"fmt"

	"github.com/opentracing/opentracing-go"
	"gorm.io/gorm"

	"github.com/nolashq/nolas/interfaces"
	"github.com/nolashq/nolas/internal/models"
	"github.com/nolashq/nolas/internal/tracing"
)

type appRepository struct {
	db *gorm.DB
}

func NewAppRepository(db *gorm.DB) interfaces.AppRepository {
	return &appRepository{db: db}
}

func (r *appRepository) Create(ctx context.Context, app *models.App) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "appRepository.Create")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	result := r.db.WithContext(ctx).Create(app)
	if result.Error != nil {
		tracing.TraceErr(span, result.Error)
		return fmt.Errorf("failed to create app: %w", result.Error)
	}

	return nil
}

func (r *appRepository) GetByID(ctx context.Context, id string) (*models.App, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "appRepository.GetByID")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	var app models.App
	result := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&app)

	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, nil
		}
		tracing.TraceErr(span, result.Error)
		return nil, fmt.Errorf("failed to get app by id: %w", result.Error)
	}

	return &app, nil
}

func (r *appRepository) GetByAPIKey(ctx context.Context, apiKey string) (*models.App, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "appRepository.GetByAPIKey")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	var app models.App
	result := r.db.WithContext(ctx).
		Where("api_key = ?", apiKey).
		First(&app)

	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, nil
		}
		tracing.TraceErr(span, result.Error)
		return nil, fmt.Errorf("failed to get app by api key: %w", result.Error)
	}

	return &app, nil
}

func (r *appRepository) GetByUUID(ctx context.Context, uuid string) (*models.App, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "appRepository.GetByUUID")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	var app models.App
	result := r.db.WithContext(ctx).
		Where("uuid = ?", uuid).
		First(&app)

	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, nil
		}
		tracing.TraceErr(span, result.Error)
		return nil, fmt.Errorf("failed to get app by uuid: %w", result.Error)
	}

	return &app, nil
}

func (r *appRepository) Update(ctx context.Context, app *models.App) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "appRepository.Update")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	result := r.db.WithContext(ctx).Save(app)
	if result.Error != nil {
		tracing.TraceErr(span, result.Error)
		return fmt.Errorf("failed to update app: %w", result.Error)
	}

	return nil
}
