package repository

import (
	"time"

	"gorm.io/gorm"

	"github.com/nolashq/nolas/interfaces"
	"github.com/nolashq/nolas/internal/models"
)

type Repositories struct {
	AppRepository                  interfaces.AppRepository
	AccountRepository              interfaces.AccountRepository
	AuthorizationRequestRepository interfaces.AuthorizationRequestRepository
	EmailRepository                interfaces.EmailRepository
	UidTrackingRepository          interfaces.UidTrackingRepository
	ConnectionHealthRepository     interfaces.ConnectionHealthRepository
	WebhookLogRepository           interfaces.WebhookLogRepository
}

func InitRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		AppRepository:                  NewAppRepository(db),
		AccountRepository:              NewAccountRepository(db),
		AuthorizationRequestRepository: NewAuthorizationRequestRepository(db),
		EmailRepository:                NewEmailRepository(db),
		UidTrackingRepository:          NewUidTrackingRepository(db),
		ConnectionHealthRepository:     NewConnectionHealthRepository(db),
		WebhookLogRepository:           NewWebhookLogRepository(db),
	}
}

// MigrateDB runs AutoMigrate with a restricted pool, then restores the
// configured pool sizes.
func MigrateDB(db *gorm.DB, minPool, maxPool int) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}

	sqlDB.SetMaxOpenConns(5)

	err = db.AutoMigrate(
		&models.App{},
		&models.Account{},
		&models.AuthorizationRequest{},
		&models.Email{},
		&models.UidTracking{},
		&models.ConnectionHealth{},
		&models.WebhookLog{},
	)

	sqlDB.SetMaxIdleConns(minPool)
	sqlDB.SetMaxOpenConns(maxPool)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return err
}
