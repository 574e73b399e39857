package models

import (
	"slices"
	"time"

	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/nolashq/nolas/internal/utils"
)

// App is a registered integration that owns accounts and receives webhooks
type App struct {
	ID              string         `gorm:"column:id;type:varchar(50);primaryKey"`
	UUID            string         `gorm:"column:uuid;type:varchar(36);uniqueIndex;not null"`
	Name            string         `gorm:"column:name;type:varchar(255);not null"`
	APIKey          string         `gorm:"column:api_key;type:varchar(255);uniqueIndex;not null"`
	WebhookURL      string         `gorm:"column:webhook_url;type:varchar(1000)"`
	WebhookSecret   string         `gorm:"column:webhook_secret;type:varchar(255)"`
	WebhookTriggers pq.StringArray `gorm:"column:webhook_triggers;type:text[]"`

	CreatedAt time.Time `gorm:"column:created_at;type:timestamp;default:current_timestamp"`
	UpdatedAt time.Time `gorm:"column:updated_at;type:timestamp;default:current_timestamp"`
}

func (App) TableName() string {
	return "apps"
}

func (a *App) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = utils.GenerateNanoIDWithPrefix("app", 21)
	}
	a.CreatedAt = utils.Now()
	return nil
}

// WantsTrigger reports whether the app subscribed to the given webhook event
// type. An empty trigger list means all types.
func (a *App) WantsTrigger(trigger string) bool {
	if len(a.WebhookTriggers) == 0 {
		return true
	}
	return slices.Contains(a.WebhookTriggers, trigger)
}
