package models

import (
	"time"

	"gorm.io/gorm"

	"github.com/nolashq/nolas/internal/utils"
)

// Email is a lightweight index row for a message observed on the provider.
// Full bodies are never stored; folder and uid are hints for fast re-reads.
type Email struct {
	ID        string `gorm:"column:id;type:varchar(50);primaryKey"`
	AccountID string `gorm:"column:account_id;type:varchar(50);uniqueIndex:uq_emails_account_message;not null"`
	MessageID string `gorm:"column:message_id;type:varchar(995);uniqueIndex:uq_emails_account_message;not null"`
	ThreadID  string `gorm:"column:thread_id;type:varchar(995);index"`
	Folder    string `gorm:"column:folder;type:varchar(255)"`
	UID       uint32 `gorm:"column:uid"`

	CreatedAt time.Time `gorm:"column:created_at;type:timestamp;default:current_timestamp"`
	UpdatedAt time.Time `gorm:"column:updated_at;type:timestamp;default:current_timestamp"`
}

func (Email) TableName() string {
	return "emails"
}

func (e *Email) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = utils.GenerateNanoIDWithPrefix("email", 24)
	}
	e.CreatedAt = utils.Now()
	return nil
}
