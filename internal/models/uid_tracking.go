package models

import (
	"time"

	"gorm.io/gorm"

	"github.com/nolashq/nolas/internal/utils"
)

// UidTracking is the per-(account, folder) high-water mark of processed UIDs.
type UidTracking struct {
	ID            string     `gorm:"column:id;type:varchar(50);primaryKey"`
	AccountID     string     `gorm:"column:account_id;type:varchar(50);uniqueIndex:uq_uid_tracking_account_folder;not null"`
	Folder        string     `gorm:"column:folder;type:varchar(255);uniqueIndex:uq_uid_tracking_account_folder;not null"`
	LastSeenUID   uint32     `gorm:"column:last_seen_uid;not null;default:0"`
	LastCheckedAt *time.Time `gorm:"column:last_checked_at;type:timestamp;index"`

	CreatedAt time.Time `gorm:"column:created_at;type:timestamp;default:current_timestamp"`
	UpdatedAt time.Time `gorm:"column:updated_at;type:timestamp;default:current_timestamp"`
}

func (UidTracking) TableName() string {
	return "uid_tracking"
}

func (t *UidTracking) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = utils.GenerateNanoIDWithPrefix("uidt", 21)
	}
	t.CreatedAt = utils.Now()
	return nil
}
