package models

import (
	"time"

	"gorm.io/gorm"

	"github.com/nolashq/nolas/internal/enum"
	"github.com/nolashq/nolas/internal/utils"
)

// Account is a single end-user mailbox owned by an app. The UUID is the
// grant_id exposed through the API.
type Account struct {
	ID              string             `gorm:"column:id;type:varchar(50);primaryKey"`
	UUID            string             `gorm:"column:uuid;type:varchar(36);uniqueIndex;not null"`
	AppID           string             `gorm:"column:app_id;type:varchar(50);uniqueIndex:uq_accounts_app_email;not null"`
	Email           string             `gorm:"column:email;type:varchar(255);uniqueIndex:uq_accounts_app_email;not null"`
	Provider        enum.EmailProvider `gorm:"column:provider;type:varchar(50);not null;default:imap"`
	Credentials     string             `gorm:"column:credentials;type:text"`
	ProviderContext JSONMap            `gorm:"column:provider_context;type:jsonb"`
	Status          enum.AccountStatus `gorm:"column:status;type:varchar(50);index;not null;default:pending"`

	CreatedAt time.Time `gorm:"column:created_at;type:timestamp;default:current_timestamp"`
	UpdatedAt time.Time `gorm:"column:updated_at;type:timestamp;default:current_timestamp"`
}

func (Account) TableName() string {
	return "accounts"
}

func (a *Account) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = utils.GenerateNanoIDWithPrefix("acct", 21)
	}
	a.CreatedAt = utils.Now()
	return nil
}

func (a *Account) IMAPHost() string {
	return a.ProviderContext.GetString("imap_host")
}

func (a *Account) IMAPPort() int {
	return a.ProviderContext.GetInt("imap_port", 993)
}

func (a *Account) SMTPHost() string {
	host := a.ProviderContext.GetString("smtp_host")
	if host == "" {
		return a.IMAPHost()
	}
	return host
}

func (a *Account) SMTPPort() int {
	return a.ProviderContext.GetInt("smtp_port", 465)
}
