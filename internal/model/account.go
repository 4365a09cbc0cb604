package model

import (
	"time"
)

// AuthenticationFlow identifies how an account obtains tokens.
type AuthenticationFlow string

const (
	FlowAuthorizationCode AuthenticationFlow = "authorization_code"
	FlowDeviceCode        AuthenticationFlow = "device_code"
)

// AccountStatus represents the lifecycle state of an account.
type AccountStatus string

const (
	AccountActive    AccountStatus = "active"
	AccountInactive  AccountStatus = "inactive"
	AccountSuspended AccountStatus = "suspended"
)

// Account is the aggregate root for a registered mailbox. All dependent
// entities (tokens, flow data, messages, history, delta links, webhooks,
// logs) are owned by it and removed when it is deleted.
type Account struct {
	ID                  string             `json:"id" gorm:"type:varchar(36);primaryKey"`
	Email               string             `json:"email" gorm:"type:varchar(255);not null;uniqueIndex"`
	UserID              string             `json:"user_id" gorm:"type:varchar(255);not null"`
	TenantID            string             `json:"tenant_id" gorm:"type:varchar(255);not null"`
	ClientID            string             `json:"client_id" gorm:"type:varchar(255);not null"`
	AuthenticationFlow  AuthenticationFlow `json:"authentication_flow" gorm:"type:varchar(32);not null"`
	Status              AccountStatus      `json:"status" gorm:"type:varchar(16);not null;default:active"`
	Scopes              []string           `json:"scopes" gorm:"serializer:json"`
	CreatedAt           time.Time          `json:"created_at"`
	UpdatedAt           time.Time          `json:"updated_at"`
	LastAuthenticatedAt *time.Time         `json:"last_authenticated_at"`
}

// TableName specifies the table name for Account
func (Account) TableName() string {
	return "accounts"
}

// AuthorizationCodeAccount holds authorization-code flow secrets for an
// account. client_secret, redirect_uri and authority are immutable after
// creation; pending_state and code_verifier track the PKCE state of the
// most recent authorization attempt so the callback exchange can recover
// the verifier by matching state.
type AuthorizationCodeAccount struct {
	AccountID    string    `json:"account_id" gorm:"type:varchar(36);primaryKey"`
	ClientSecret string    `json:"-" gorm:"type:varchar(512);not null"`
	RedirectURI  string    `json:"redirect_uri" gorm:"type:varchar(512);not null"`
	Authority    string    `json:"authority" gorm:"type:varchar(512);not null"`
	PendingState string    `json:"-" gorm:"type:varchar(128);index"`
	CodeVerifier string    `json:"-" gorm:"type:varchar(256)"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TableName specifies the table name for AuthorizationCodeAccount
func (AuthorizationCodeAccount) TableName() string {
	return "authorization_code_accounts"
}

// DeviceCodeAccount holds device-code flow state for an account. The
// fields are rewritten every time a new device flow is initiated.
type DeviceCodeAccount struct {
	AccountID       string    `json:"account_id" gorm:"type:varchar(36);primaryKey"`
	DeviceCode      string    `json:"-" gorm:"type:varchar(1024)"`
	UserCode        string    `json:"user_code" gorm:"type:varchar(64)"`
	VerificationURI string    `json:"verification_uri" gorm:"type:varchar(512)"`
	ExpiresIn       int       `json:"expires_in"`
	Interval        int       `json:"interval"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// TableName specifies the table name for DeviceCodeAccount
func (DeviceCodeAccount) TableName() string {
	return "device_code_accounts"
}
