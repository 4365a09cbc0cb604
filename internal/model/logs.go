package model

import (
	"time"
)

// AuthenticationLog is an append-only audit record. Exactly one row is
// written per registration, authentication attempt, token refresh and
// revocation; rows are never mutated, only aged out by the cleanup sweep.
type AuthenticationLog struct {
	ID                 uint               `json:"id" gorm:"primaryKey;autoIncrement"`
	AccountID          string             `json:"account_id" gorm:"type:varchar(36);not null;index"`
	EventType          string             `json:"event_type" gorm:"type:varchar(32);not null"` // registration, authentication, token_refresh, logout
	AuthenticationFlow AuthenticationFlow `json:"authentication_flow" gorm:"type:varchar(32)"`
	Success            bool               `json:"success"`
	ErrorCode          string             `json:"error_code" gorm:"type:varchar(64)"`
	ErrorMessage       string             `json:"error_message" gorm:"type:text"`
	IPAddress          string             `json:"ip_address" gorm:"type:varchar(64)"`
	UserAgent          string             `json:"user_agent" gorm:"type:varchar(512)"`
	Timestamp          time.Time          `json:"timestamp" gorm:"index"`
}

// TableName specifies the table name for AuthenticationLog
func (AuthenticationLog) TableName() string {
	return "authentication_logs"
}

// MailQueryHistory records one mail query or delta sync invocation,
// successful or not. Append-only.
type MailQueryHistory struct {
	ID              uint           `json:"id" gorm:"primaryKey;autoIncrement"`
	AccountID       string         `json:"account_id" gorm:"type:varchar(36);not null;index"`
	QueryType       string         `json:"query_type" gorm:"type:varchar(16);not null"` // manual, delta, webhook
	QueryParameters map[string]any `json:"query_parameters" gorm:"serializer:json"`
	MessagesFound   int            `json:"messages_found"`
	NewMessages     int            `json:"new_messages"`
	QueryDateTime   time.Time      `json:"query_datetime" gorm:"index"`
	ExecutionTimeMs int64          `json:"execution_time_ms"`
	Success         bool           `json:"success"`
	ErrorMessage    string         `json:"error_message" gorm:"type:text"`
}

// TableName specifies the table name for MailQueryHistory
func (MailQueryHistory) TableName() string {
	return "mail_query_history"
}

// ExternalAPICall tracks one delivery attempt of a stored message to the
// downstream external API. A row is created in the pending state before
// dispatch and updated with the outcome afterwards; success=false rows are
// retried by the scheduler until RetryCount reaches the configured ceiling.
type ExternalAPICall struct {
	ID             uint           `json:"id" gorm:"primaryKey;autoIncrement"`
	AccountID      string         `json:"account_id" gorm:"type:varchar(36);not null;index"`
	MessageID      string         `json:"message_id" gorm:"type:varchar(255);not null;index"`
	EndpointURL    string         `json:"endpoint_url" gorm:"type:varchar(512);not null"`
	HTTPMethod     string         `json:"http_method" gorm:"type:varchar(8);not null;default:POST"`
	RequestPayload map[string]any `json:"request_payload" gorm:"serializer:json"`
	ResponseStatus int            `json:"response_status"`
	ResponseBody   string         `json:"response_body" gorm:"type:text"`
	Success        bool           `json:"success"`
	RetryCount     int            `json:"retry_count"`
	CreatedAt      time.Time      `json:"created_at"`
	CompletedAt    *time.Time     `json:"completed_at"`
}

// TableName specifies the table name for ExternalAPICall
func (ExternalAPICall) TableName() string {
	return "external_api_calls"
}

// Pending reports whether the call has not completed a dispatch attempt yet.
func (c *ExternalAPICall) Pending() bool {
	return c.CompletedAt == nil
}
