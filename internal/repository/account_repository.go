package repository

import (
	"context"
	"fmt"

	"github.com/opentracing/opentracing-go"
	"gorm.io/gorm"

	"github.com/nolashq/nolas/interfaces"
	"github.com/nolashq/nolas/internal/enum"
	"github.com/nolashq/nolas/internal/models"
	"github.com/nolashq/nolas/internal/tracing"
	"github.com/nolashq/nolas/internal/utils"
)

type accountRepository struct {
	db *gorm.DB
}

func NewAccountRepository(db *gorm.DB) interfaces.AccountRepository {
	return &accountRepository{db: db}
}

func (r *accountRepository) Create(ctx context.Context, account *models.Account) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "accountRepository.Create")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	result := r.db.WithContext(ctx).Create(account)
	if result.Error != nil {
		tracing.TraceErr(span, result.Error)
		return fmt.Errorf("failed to create account: %w", result.Error)
	}

	return nil
}

func (r *accountRepository) GetByID(ctx context.Context, id string) (*models.Account, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "accountRepository.GetByID")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	var account models.Account
	result := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&account)

	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, nil
		}
		tracing.TraceErr(span, result.Error)
		return nil, fmt.Errorf("failed to get account: %w", result.Error)
	}

	return &account, nil
}

func (r *accountRepository) GetByAppAndUUID(ctx context.Context, appID, uuid string) (*models.Account, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "accountRepository.GetByAppAndUUID")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	var account models.Account
	result := r.db.WithContext(ctx).
		Where("app_id = ? AND uuid = ?", appID, uuid).
		First(&account)

	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, nil
		}
		tracing.TraceErr(span, result.Error)
		return nil, fmt.Errorf("failed to get account by uuid: %w", result.Error)
	}

	return &account, nil
}

func (r *accountRepository) GetByAppAndEmail(ctx context.Context, appID, email string) (*models.Account, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "accountRepository.GetByAppAndEmail")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	var account models.Account
	result := r.db.WithContext(ctx).
		Where("app_id = ? AND email = ?", appID, utils.NormalizeEmail(email)).
		First(&account)

	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, nil
		}
		tracing.TraceErr(span, result.Error)
		return nil, fmt.Errorf("failed to get account by email: %w", result.Error)
	}

	return &account, nil
}

func (r *accountRepository) GetAllActive(ctx context.Context) ([]*models.Account, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "accountRepository.GetAllActive")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	var accounts []*models.Account
	result := r.db.WithContext(ctx).
		Where("status = ?", enum.AccountStatusActive).
		Order("id asc").
		Find(&accounts)

	if result.Error != nil {
		tracing.TraceErr(span, result.Error)
		return nil, fmt.Errorf("failed to list active accounts: %w", result.Error)
	}

	return accounts, nil
}

func (r *accountRepository) Update(ctx context.Context, account *models.Account) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "accountRepository.Update")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	account.UpdatedAt = utils.Now()
	result := r.db.WithContext(ctx).Save(account)
	if result.Error != nil {
		tracing.TraceErr(span, result.Error)
		return fmt.Errorf("failed to update account: %w", result.Error)
	}

	return nil
}

func (r *accountRepository) UpdateStatus(ctx context.Context, id string, status enum.AccountStatus) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "accountRepository.UpdateStatus")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	result := r.db.WithContext(ctx).
		Model(&models.Account{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     status,
			"updated_at": utils.Now(),
		})

	if result.Error != nil {
		tracing.TraceErr(span, result.Error)
		return fmt.Errorf("failed to update account status: %w", result.Error)
	}

	return nil
}
