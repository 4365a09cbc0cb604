package model

import (
	"time"
)

// WebhookSubscription mirrors an upstream change-notification subscription.
// Rows are deactivated rather than removed when deleted or expired so the
// audit trail survives until the cleanup sweep ages them out.
type WebhookSubscription struct {
	ID              uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	SubscriptionID  string    `json:"subscription_id" gorm:"type:varchar(255);not null;uniqueIndex"`
	AccountID       string    `json:"account_id" gorm:"type:varchar(36);not null;index"`
	Resource        string    `json:"resource" gorm:"type:varchar(512);not null"`
	ChangeTypes     []string  `json:"change_types" gorm:"serializer:json"`
	NotificationURL string    `json:"notification_url" gorm:"type:varchar(512);not null"`
	ClientState     string    `json:"-" gorm:"type:varchar(128);not null"`
	ExpiresDateTime time.Time `json:"expires_datetime" gorm:"not null"`
	IsActive        bool      `json:"is_active" gorm:"not null;default:true;index"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// TableName specifies the table name for WebhookSubscription
func (WebhookSubscription) TableName() string {
	return "webhook_subscriptions"
}
