// Package service contains the orchestrators. They own the business rules;
// persistence and provider access go through the ports declared here so the
// adapters stay swappable in tests.
package service

import (
	"context"
	"time"

	"github.com/kimghw/GraphAPIQuery-rev3/internal/forwarder"
	"github.com/kimghw/GraphAPIQuery-rev3/internal/model"
	"github.com/kimghw/GraphAPIQuery-rev3/internal/msgraph"
	"github.com/kimghw/GraphAPIQuery-rev3/internal/oauth"
)

// AccountStore is the account persistence port.
type AccountStore interface {
	CreateWithAuthCodeFlow(ctx context.Context, account *model.Account, flow *model.AuthorizationCodeAccount) error
	CreateWithDeviceCodeFlow(ctx context.Context, account *model.Account, flow *model.DeviceCodeAccount) error
	GetByID(ctx context.Context, accountID string) (*model.Account, error)
	GetByEmail(ctx context.Context, email string) (*model.Account, error)
	List(ctx context.Context) ([]model.Account, error)
	ListActive(ctx context.Context) ([]model.Account, error)
	UpdateStatus(ctx context.Context, accountID string, status model.AccountStatus) error
	MarkAuthenticated(ctx context.Context, accountID string, at time.Time) error
	GetAuthCodeFlow(ctx context.Context, accountID string) (*model.AuthorizationCodeAccount, error)
	GetDeviceCodeFlow(ctx context.Context, accountID string) (*model.DeviceCodeAccount, error)
	SetPendingAuthorization(ctx context.Context, accountID, state, codeVerifier string) error
	FindByPendingState(ctx context.Context, state string) (*model.AuthorizationCodeAccount, error)
	ClearPendingAuthorization(ctx context.Context, accountID string) error
	UpdateDeviceFlow(ctx context.Context, flow *model.DeviceCodeAccount) error
	DeleteCascade(ctx context.Context, accountID string) error
}

// TokenStore is the token persistence port. Implementations handle
// encryption at rest.
type TokenStore interface {
	Upsert(ctx context.Context, token *model.Token) error
	GetByAccountID(ctx context.Context, accountID string) (*model.Token, error)
	UpdateStatus(ctx context.Context, accountID string, status model.TokenStatus) error
	Delete(ctx context.Context, accountID string) error
	ListExpiringWithin(ctx context.Context, window time.Duration) ([]model.Token, error)
	DeleteUnusableOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// MailStore is the stored-message persistence port.
type MailStore interface {
	SaveIfNew(ctx context.Context, msg *model.MailMessage) (bool, error)
	GetByMessageID(ctx context.Context, accountID, messageID string) (*model.MailMessage, error)
	ListByAccount(ctx context.Context, accountID string, limit, offset int) ([]model.MailMessage, error)
	CountByAccount(ctx context.Context, accountID string) (int64, error)
}

// DeltaLinkStore is the incremental-sync cursor port.
type DeltaLinkStore interface {
	GetActive(ctx context.Context, accountID, folderID string) (*model.DeltaLink, error)
	Rotate(ctx context.Context, accountID, folderID, deltaToken string) error
	DeactivateForAccount(ctx context.Context, accountID, folderID string) error
	DeleteInactiveOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// WebhookStore is the subscription persistence port.
type WebhookStore interface {
	Create(ctx context.Context, sub *model.WebhookSubscription) error
	GetBySubscriptionID(ctx context.Context, subscriptionID string) (*model.WebhookSubscription, error)
	ListActiveByAccount(ctx context.Context, accountID string) ([]model.WebhookSubscription, error)
	ListExpiringWithin(ctx context.Context, window time.Duration) ([]model.WebhookSubscription, error)
	UpdateExpiry(ctx context.Context, subscriptionID string, expires time.Time) error
	Deactivate(ctx context.Context, subscriptionID string) error
	DeleteInactiveOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// LogStore is the audit-trail port.
type LogStore interface {
	CreateAuthLog(ctx context.Context, log *model.AuthenticationLog) error
	ListAuthLogs(ctx context.Context, accountID string, limit int) ([]model.AuthenticationLog, error)
	CreateQueryHistory(ctx context.Context, history *model.MailQueryHistory) error
	ListQueryHistory(ctx context.Context, accountID string, limit int) ([]model.MailQueryHistory, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// ExternalCallStore is the forwarding-ledger port.
type ExternalCallStore interface {
	Create(ctx context.Context, call *model.ExternalAPICall) error
	GetByID(ctx context.Context, id uint) (*model.ExternalAPICall, error)
	RecordResult(ctx context.Context, id uint, status int, body string, success bool) error
	IncrementRetry(ctx context.Context, id uint) error
	ListRetryable(ctx context.Context, maxRetries int) ([]model.ExternalAPICall, error)
	ListByAccount(ctx context.Context, accountID string, limit int) ([]model.ExternalAPICall, error)
}

// OAuthProvider is the identity-provider port.
type OAuthProvider interface {
	AuthorizationURL(tenantID, clientID, clientSecret, redirectURI string, scopes []string) oauth.Authorization
	ExchangeCode(ctx context.Context, tenantID, clientID, clientSecret, redirectURI string, scopes []string, code, codeVerifier string) (*oauth.TokenResult, error)
	Refresh(ctx context.Context, tenantID, clientID, clientSecret string, scopes []string, refreshToken string) (*oauth.TokenResult, error)
	BeginDeviceFlow(ctx context.Context, tenantID, clientID string, scopes []string) (*oauth.DeviceAuthorization, error)
	PollDeviceToken(ctx context.Context, tenantID, clientID, deviceCode string) (*oauth.DevicePollResult, error)
	Revoke(ctx context.Context, accessToken string) error
}

// GraphMailAPI is the mail-provider port.
type GraphMailAPI interface {
	ListMessages(ctx context.Context, accessToken, folderID string, filters msgraph.Filters) (*msgraph.MessagePage, error)
	DeltaMessages(ctx context.Context, accessToken, folderID, deltaToken string) (*msgraph.DeltaResult, error)
	SendMail(ctx context.Context, accessToken string, input msgraph.SendMailInput) error
	CreateSubscription(ctx context.Context, accessToken string, sub msgraph.Subscription) (*msgraph.Subscription, error)
	RenewSubscription(ctx context.Context, accessToken, subscriptionID string, expires time.Time) (time.Time, error)
	DeleteSubscription(ctx context.Context, accessToken, subscriptionID string) error
}

// MailForwarder is the downstream delivery port.
type MailForwarder interface {
	Deliver(ctx context.Context, payload map[string]any) (*forwarder.Result, error)
	EndpointURL() string
}
