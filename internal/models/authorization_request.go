package models

import (
	"time"

	"gorm.io/gorm"

	"github.com/nolashq/nolas/internal/enum"
	"github.com/nolashq/nolas/internal/utils"
)

// AuthorizationRequest is an in-flight OAuth2-style exchange. Codes are
// one-shot and expire ten minutes after creation.
type AuthorizationRequest struct {
	ID          string                   `gorm:"column:id;type:varchar(50);primaryKey"`
	AppID       string                   `gorm:"column:app_id;type:varchar(50);index;not null"`
	AccountID   string                   `gorm:"column:account_id;type:varchar(50);index"`
	ClientID    string                   `gorm:"column:client_id;type:varchar(255);not null"`
	RedirectURI string                   `gorm:"column:redirect_uri;type:varchar(1000);not null"`
	State       string                   `gorm:"column:state;type:varchar(255)"`
	Scope       string                   `gorm:"column:scope;type:varchar(255)"`
	Status      enum.AuthorizationStatus `gorm:"column:status;type:varchar(50);not null;default:pending"`
	Code        string                   `gorm:"column:code;type:varchar(255);uniqueIndex"`
	CodeUsed    bool                     `gorm:"column:code_used;default:false"`
	ExpiresAt   time.Time                `gorm:"column:expires_at;type:timestamp;index;not null"`
	Metadata    JSONMap                  `gorm:"column:request_metadata;type:jsonb"`

	CreatedAt time.Time `gorm:"column:created_at;type:timestamp;default:current_timestamp"`
	UpdatedAt time.Time `gorm:"column:updated_at;type:timestamp;default:current_timestamp"`
}

func (AuthorizationRequest) TableName() string {
	return "oauth2_authorization_requests"
}

func (r *AuthorizationRequest) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = utils.GenerateNanoIDWithPrefix("auth", 21)
	}
	r.CreatedAt = utils.Now()
	return nil
}

// CodeValid reports whether the one-time code can still be exchanged.
func (r *AuthorizationRequest) CodeValid(now time.Time) bool {
	return !r.CodeUsed && now.Before(r.ExpiresAt)
}
