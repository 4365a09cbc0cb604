package handler

import "time"

// RegisterAccountRequest creates a new mail account.
type RegisterAccountRequest struct {
	Email        string   `json:"email" binding:"required,email"`
	UserID       string   `json:"user_id" binding:"required"`
	TenantID     string   `json:"tenant_id" binding:"required"`
	ClientID     string   `json:"client_id" binding:"required"`
	Flow         string   `json:"authentication_flow" binding:"required,oneof=authorization_code device_code"`
	Scopes       []string `json:"scopes"`
	ClientSecret string   `json:"client_secret"`
	RedirectURI  string   `json:"redirect_uri"`
	Authority    string   `json:"authority"`
}

// MailQueryRequest carries OData-style filters for a mail query.
type MailQueryRequest struct {
	DateFrom      *time.Time `json:"date_from"`
	DateTo        *time.Time `json:"date_to"`
	SenderAddress string     `json:"sender_address"`
	IsRead        *bool      `json:"is_read"`
	Importance    string     `json:"importance" binding:"omitempty,oneof=low normal high"`
	Search        string     `json:"search"`
	Top           int        `json:"top" binding:"omitempty,min=1,max=1000"`
	SelectFields  []string   `json:"select_fields"`
}

// SendMailRequest submits an outgoing message.
type SendMailRequest struct {
	To          []string `json:"to" binding:"required,min=1,dive,email"`
	Cc          []string `json:"cc" binding:"omitempty,dive,email"`
	Bcc         []string `json:"bcc" binding:"omitempty,dive,email"`
	Subject     string   `json:"subject"`
	Body        string   `json:"body"`
	ContentType string   `json:"content_type" binding:"omitempty,oneof=Text HTML"`
}

// SyncDeltaRequest selects the folder for an incremental sync.
type SyncDeltaRequest struct {
	FolderID string `json:"folder_id"`
}

// CreateWebhookRequest registers a change-notification subscription.
type CreateWebhookRequest struct {
	NotificationURL string `json:"notification_url" binding:"required,url"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Database  string            `json:"database"`
	Scheduler string            `json:"scheduler"`
	Metrics   map[string]string `json:"metrics,omitempty"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}
