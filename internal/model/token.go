package model

import (
	"time"
)

// TokenStatus represents the validity state of a stored token.
type TokenStatus string

const (
	TokenValid   TokenStatus = "valid"
	TokenExpired TokenStatus = "expired"
	TokenRevoked TokenStatus = "revoked"
	TokenInvalid TokenStatus = "invalid"
)

// Token is the single active OAuth token for an account. account_id is the
// primary key, so at most one row exists per account; every successful
// exchange or refresh replaces the row. AccessToken and RefreshToken are
// stored encrypted at rest by the token repository.
type Token struct {
	AccountID    string      `json:"account_id" gorm:"type:varchar(36);primaryKey"`
	AccessToken  string      `json:"-" gorm:"type:text;not null"`
	RefreshToken string      `json:"-" gorm:"type:text"`
	TokenType    string      `json:"token_type" gorm:"type:varchar(32);not null;default:Bearer"`
	ExpiresAt    time.Time   `json:"expires_at" gorm:"not null"`
	Scopes       []string    `json:"scopes" gorm:"serializer:json"`
	Status       TokenStatus `json:"status" gorm:"type:varchar(16);not null;default:valid"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

// TableName specifies the table name for Token
func (Token) TableName() string {
	return "tokens"
}

// IsExpired reports whether the token has passed its expiry. expires_at is
// authoritative; the status column is not consulted here.
func (t *Token) IsExpired() bool {
	return !time.Now().UTC().Before(t.ExpiresAt)
}

// ExpiresWithin reports whether the token expires within d from now.
func (t *Token) ExpiresWithin(d time.Duration) bool {
	return !time.Now().UTC().Add(d).Before(t.ExpiresAt)
}

// ExpiresInSeconds returns the remaining token lifetime, floored at zero.
func (t *Token) ExpiresInSeconds() int {
	remaining := time.Until(t.ExpiresAt)
	if remaining < 0 {
		return 0
	}
	return int(remaining.Seconds())
}

// Usable reports whether the token can authenticate a Graph call right now.
func (t *Token) Usable() bool {
	return t.Status == TokenValid && !t.IsExpired()
}
