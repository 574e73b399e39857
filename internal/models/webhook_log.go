package models

import (
	"time"

	"gorm.io/gorm"

	"github.com/nolashq/nolas/internal/utils"
)

// WebhookLog records a single delivery attempt to an app endpoint.
type WebhookLog struct {
	ID           string     `gorm:"column:id;type:varchar(50);primaryKey"`
	AppID        string     `gorm:"column:app_id;type:varchar(50);index;not null"`
	AccountID    string     `gorm:"column:account_id;type:varchar(50);index"`
	EventID      string     `gorm:"column:event_id;type:varchar(36);index"`
	EventType    string     `gorm:"column:event_type;type:varchar(100)"`
	Folder       string     `gorm:"column:folder;type:varchar(255)"`
	UID          uint32     `gorm:"column:uid"`
	WebhookURL   string     `gorm:"column:webhook_url;type:varchar(1000)"`
	Attempt      int        `gorm:"column:attempt;not null;default:1"`
	StatusCode   *int       `gorm:"column:status_code"`
	ResponseBody string     `gorm:"column:response_body;type:text"`
	Error        string     `gorm:"column:error;type:text"`
	DeliveredAt  *time.Time `gorm:"column:delivered_at;type:timestamp"`

	CreatedAt time.Time `gorm:"column:created_at;type:timestamp;default:current_timestamp"`
}

func (WebhookLog) TableName() string {
	return "webhook_logs"
}

func (l *WebhookLog) BeforeCreate(tx *gorm.DB) error {
	if l.ID == "" {
		l.ID = utils.GenerateNanoIDWithPrefix("whlog", 21)
	}
	l.CreatedAt = utils.Now()
	return nil
}
