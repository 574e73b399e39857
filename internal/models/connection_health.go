package models

import (
	"time"

	"gorm.io/gorm"

	"github.com/nolashq/nolas/internal/utils"
)

// MaxConsecutiveFailures is the retirement threshold for a supervisor.
const MaxConsecutiveFailures = 5

// ConnectionHealth tracks ingestion health per (account, folder). A stream is
// retired once consecutive_failures reaches MaxConsecutiveFailures.
type ConnectionHealth struct {
	ID                  string     `gorm:"column:id;type:varchar(50);primaryKey"`
	AccountID           string     `gorm:"column:account_id;type:varchar(50);uniqueIndex:uq_connection_health_account_folder;not null"`
	Folder              string     `gorm:"column:folder;type:varchar(255);uniqueIndex:uq_connection_health_account_folder;not null"`
	LastSuccessAt       *time.Time `gorm:"column:last_success_at;type:timestamp"`
	ConsecutiveFailures int        `gorm:"column:consecutive_failures;not null;default:0"`
	LastError           string     `gorm:"column:last_error;type:text"`
	IsActive            bool       `gorm:"column:is_active;not null;default:true"`

	CreatedAt time.Time `gorm:"column:created_at;type:timestamp;default:current_timestamp"`
	UpdatedAt time.Time `gorm:"column:updated_at;type:timestamp;default:current_timestamp"`
}

func (ConnectionHealth) TableName() string {
	return "connection_health"
}

func (h *ConnectionHealth) BeforeCreate(tx *gorm.DB) error {
	if h.ID == "" {
		h.ID = utils.GenerateNanoIDWithPrefix("conn", 21)
	}
	h.CreatedAt = utils.Now()
	return nil
}
