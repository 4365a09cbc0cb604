package service

import (
	"context"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/kimghw/GraphAPIQuery-rev3/internal/forwarder"
	"github.com/kimghw/GraphAPIQuery-rev3/internal/model"
	"github.com/kimghw/GraphAPIQuery-rev3/internal/msgraph"
	"github.com/kimghw/GraphAPIQuery-rev3/internal/oauth"
	"github.com/kimghw/GraphAPIQuery-rev3/internal/repository"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

type mockAccountStore struct {
	createAuthCodeFunc      func(ctx context.Context, account *model.Account, flow *model.AuthorizationCodeAccount) error
	createDeviceCodeFunc    func(ctx context.Context, account *model.Account, flow *model.DeviceCodeAccount) error
	getByIDFunc             func(ctx context.Context, accountID string) (*model.Account, error)
	getByEmailFunc          func(ctx context.Context, email string) (*model.Account, error)
	listFunc                func(ctx context.Context) ([]model.Account, error)
	listActiveFunc          func(ctx context.Context) ([]model.Account, error)
	updateStatusFunc        func(ctx context.Context, accountID string, status model.AccountStatus) error
	markAuthenticatedFunc   func(ctx context.Context, accountID string, at time.Time) error
	getAuthCodeFlowFunc     func(ctx context.Context, accountID string) (*model.AuthorizationCodeAccount, error)
	getDeviceCodeFlowFunc   func(ctx context.Context, accountID string) (*model.DeviceCodeAccount, error)
	setPendingFunc          func(ctx context.Context, accountID, state, codeVerifier string) error
	findByPendingStateFunc  func(ctx context.Context, state string) (*model.AuthorizationCodeAccount, error)
	clearPendingFunc        func(ctx context.Context, accountID string) error
	updateDeviceFlowFunc    func(ctx context.Context, flow *model.DeviceCodeAccount) error
	deleteCascadeFunc       func(ctx context.Context, accountID string) error
}

func (m *mockAccountStore) CreateWithAuthCodeFlow(ctx context.Context, account *model.Account, flow *model.AuthorizationCodeAccount) error {
	if m.createAuthCodeFunc != nil {
		return m.createAuthCodeFunc(ctx, account, flow)
	}
	return nil
}

func (m *mockAccountStore) CreateWithDeviceCodeFlow(ctx context.Context, account *model.Account, flow *model.DeviceCodeAccount) error {
	if m.createDeviceCodeFunc != nil {
		return m.createDeviceCodeFunc(ctx, account, flow)
	}
	return nil
}

func (m *mockAccountStore) GetByID(ctx context.Context, accountID string) (*model.Account, error) {
	if m.getByIDFunc != nil {
		return m.getByIDFunc(ctx, accountID)
	}
	return nil, repository.ErrNotFound
}

func (m *mockAccountStore) GetByEmail(ctx context.Context, email string) (*model.Account, error) {
	if m.getByEmailFunc != nil {
		return m.getByEmailFunc(ctx, email)
	}
	return nil, repository.ErrNotFound
}

func (m *mockAccountStore) List(ctx context.Context) ([]model.Account, error) {
	if m.listFunc != nil {
		return m.listFunc(ctx)
	}
	return nil, nil
}

func (m *mockAccountStore) ListActive(ctx context.Context) ([]model.Account, error) {
	if m.listActiveFunc != nil {
		return m.listActiveFunc(ctx)
	}
	return nil, nil
}

func (m *mockAccountStore) UpdateStatus(ctx context.Context, accountID string, status model.AccountStatus) error {
	if m.updateStatusFunc != nil {
		return m.updateStatusFunc(ctx, accountID, status)
	}
	return nil
}

func (m *mockAccountStore) MarkAuthenticated(ctx context.Context, accountID string, at time.Time) error {
	if m.markAuthenticatedFunc != nil {
		return m.markAuthenticatedFunc(ctx, accountID, at)
	}
	return nil
}

func (m *mockAccountStore) GetAuthCodeFlow(ctx context.Context, accountID string) (*model.AuthorizationCodeAccount, error) {
	if m.getAuthCodeFlowFunc != nil {
		return m.getAuthCodeFlowFunc(ctx, accountID)
	}
	return nil, repository.ErrNotFound
}

func (m *mockAccountStore) GetDeviceCodeFlow(ctx context.Context, accountID string) (*model.DeviceCodeAccount, error) {
	if m.getDeviceCodeFlowFunc != nil {
		return m.getDeviceCodeFlowFunc(ctx, accountID)
	}
	return nil, repository.ErrNotFound
}

func (m *mockAccountStore) SetPendingAuthorization(ctx context.Context, accountID, state, codeVerifier string) error {
	if m.setPendingFunc != nil {
		return m.setPendingFunc(ctx, accountID, state, codeVerifier)
	}
	return nil
}

func (m *mockAccountStore) FindByPendingState(ctx context.Context, state string) (*model.AuthorizationCodeAccount, error) {
	if m.findByPendingStateFunc != nil {
		return m.findByPendingStateFunc(ctx, state)
	}
	return nil, repository.ErrNotFound
}

func (m *mockAccountStore) ClearPendingAuthorization(ctx context.Context, accountID string) error {
	if m.clearPendingFunc != nil {
		return m.clearPendingFunc(ctx, accountID)
	}
	return nil
}

func (m *mockAccountStore) UpdateDeviceFlow(ctx context.Context, flow *model.DeviceCodeAccount) error {
	if m.updateDeviceFlowFunc != nil {
		return m.updateDeviceFlowFunc(ctx, flow)
	}
	return nil
}

func (m *mockAccountStore) DeleteCascade(ctx context.Context, accountID string) error {
	if m.deleteCascadeFunc != nil {
		return m.deleteCascadeFunc(ctx, accountID)
	}
	return nil
}

type mockTokenStore struct {
	upsertFunc             func(ctx context.Context, token *model.Token) error
	getByAccountIDFunc     func(ctx context.Context, accountID string) (*model.Token, error)
	updateStatusFunc       func(ctx context.Context, accountID string, status model.TokenStatus) error
	deleteFunc             func(ctx context.Context, accountID string) error
	listExpiringFunc       func(ctx context.Context, window time.Duration) ([]model.Token, error)
	deleteUnusableFunc     func(ctx context.Context, cutoff time.Time) (int64, error)
}

func (m *mockTokenStore) Upsert(ctx context.Context, token *model.Token) error {
	if m.upsertFunc != nil {
		return m.upsertFunc(ctx, token)
	}
	return nil
}

func (m *mockTokenStore) GetByAccountID(ctx context.Context, accountID string) (*model.Token, error) {
	if m.getByAccountIDFunc != nil {
		return m.getByAccountIDFunc(ctx, accountID)
	}
	return nil, repository.ErrNotFound
}

func (m *mockTokenStore) UpdateStatus(ctx context.Context, accountID string, status model.TokenStatus) error {
	if m.updateStatusFunc != nil {
		return m.updateStatusFunc(ctx, accountID, status)
	}
	return nil
}

func (m *mockTokenStore) Delete(ctx context.Context, accountID string) error {
	if m.deleteFunc != nil {
		return m.deleteFunc(ctx, accountID)
	}
	return nil
}

func (m *mockTokenStore) ListExpiringWithin(ctx context.Context, window time.Duration) ([]model.Token, error) {
	if m.listExpiringFunc != nil {
		return m.listExpiringFunc(ctx, window)
	}
	return nil, nil
}

func (m *mockTokenStore) DeleteUnusableOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	if m.deleteUnusableFunc != nil {
		return m.deleteUnusableFunc(ctx, cutoff)
	}
	return 0, nil
}

type mockMailStore struct {
	saveIfNewFunc      func(ctx context.Context, msg *model.MailMessage) (bool, error)
	getByMessageIDFunc func(ctx context.Context, accountID, messageID string) (*model.MailMessage, error)
	listByAccountFunc  func(ctx context.Context, accountID string, limit, offset int) ([]model.MailMessage, error)
	countByAccountFunc func(ctx context.Context, accountID string) (int64, error)
}

func (m *mockMailStore) SaveIfNew(ctx context.Context, msg *model.MailMessage) (bool, error) {
	if m.saveIfNewFunc != nil {
		return m.saveIfNewFunc(ctx, msg)
	}
	return true, nil
}

func (m *mockMailStore) GetByMessageID(ctx context.Context, accountID, messageID string) (*model.MailMessage, error) {
	if m.getByMessageIDFunc != nil {
		return m.getByMessageIDFunc(ctx, accountID, messageID)
	}
	return nil, repository.ErrNotFound
}

func (m *mockMailStore) ListByAccount(ctx context.Context, accountID string, limit, offset int) ([]model.MailMessage, error) {
	if m.listByAccountFunc != nil {
		return m.listByAccountFunc(ctx, accountID, limit, offset)
	}
	return nil, nil
}

func (m *mockMailStore) CountByAccount(ctx context.Context, accountID string) (int64, error) {
	if m.countByAccountFunc != nil {
		return m.countByAccountFunc(ctx, accountID)
	}
	return 0, nil
}

type mockDeltaLinkStore struct {
	getActiveFunc      func(ctx context.Context, accountID, folderID string) (*model.DeltaLink, error)
	rotateFunc         func(ctx context.Context, accountID, folderID, deltaToken string) error
	deactivateFunc     func(ctx context.Context, accountID, folderID string) error
	deleteInactiveFunc func(ctx context.Context, cutoff time.Time) (int64, error)
}

func (m *mockDeltaLinkStore) GetActive(ctx context.Context, accountID, folderID string) (*model.DeltaLink, error) {
	if m.getActiveFunc != nil {
		return m.getActiveFunc(ctx, accountID, folderID)
	}
	return nil, repository.ErrNotFound
}

func (m *mockDeltaLinkStore) Rotate(ctx context.Context, accountID, folderID, deltaToken string) error {
	if m.rotateFunc != nil {
		return m.rotateFunc(ctx, accountID, folderID, deltaToken)
	}
	return nil
}

func (m *mockDeltaLinkStore) DeactivateForAccount(ctx context.Context, accountID, folderID string) error {
	if m.deactivateFunc != nil {
		return m.deactivateFunc(ctx, accountID, folderID)
	}
	return nil
}

func (m *mockDeltaLinkStore) DeleteInactiveOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	if m.deleteInactiveFunc != nil {
		return m.deleteInactiveFunc(ctx, cutoff)
	}
	return 0, nil
}

type mockWebhookStore struct {
	createFunc              func(ctx context.Context, sub *model.WebhookSubscription) error
	getBySubscriptionIDFunc func(ctx context.Context, subscriptionID string) (*model.WebhookSubscription, error)
	listActiveByAccountFunc func(ctx context.Context, accountID string) ([]model.WebhookSubscription, error)
	listExpiringFunc        func(ctx context.Context, window time.Duration) ([]model.WebhookSubscription, error)
	updateExpiryFunc        func(ctx context.Context, subscriptionID string, expires time.Time) error
	deactivateFunc          func(ctx context.Context, subscriptionID string) error
	deleteInactiveFunc      func(ctx context.Context, cutoff time.Time) (int64, error)
}

func (m *mockWebhookStore) Create(ctx context.Context, sub *model.WebhookSubscription) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, sub)
	}
	return nil
}

func (m *mockWebhookStore) GetBySubscriptionID(ctx context.Context, subscriptionID string) (*model.WebhookSubscription, error) {
	if m.getBySubscriptionIDFunc != nil {
		return m.getBySubscriptionIDFunc(ctx, subscriptionID)
	}
	return nil, repository.ErrNotFound
}

func (m *mockWebhookStore) ListActiveByAccount(ctx context.Context, accountID string) ([]model.WebhookSubscription, error) {
	if m.listActiveByAccountFunc != nil {
		return m.listActiveByAccountFunc(ctx, accountID)
	}
	return nil, nil
}

func (m *mockWebhookStore) ListExpiringWithin(ctx context.Context, window time.Duration) ([]model.WebhookSubscription, error) {
	if m.listExpiringFunc != nil {
		return m.listExpiringFunc(ctx, window)
	}
	return nil, nil
}

func (m *mockWebhookStore) UpdateExpiry(ctx context.Context, subscriptionID string, expires time.Time) error {
	if m.updateExpiryFunc != nil {
		return m.updateExpiryFunc(ctx, subscriptionID, expires)
	}
	return nil
}

func (m *mockWebhookStore) Deactivate(ctx context.Context, subscriptionID string) error {
	if m.deactivateFunc != nil {
		return m.deactivateFunc(ctx, subscriptionID)
	}
	return nil
}

func (m *mockWebhookStore) DeleteInactiveOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	if m.deleteInactiveFunc != nil {
		return m.deleteInactiveFunc(ctx, cutoff)
	}
	return 0, nil
}

type mockLogStore struct {
	createAuthLogFunc      func(ctx context.Context, log *model.AuthenticationLog) error
	listAuthLogsFunc       func(ctx context.Context, accountID string, limit int) ([]model.AuthenticationLog, error)
	createQueryHistoryFunc func(ctx context.Context, history *model.MailQueryHistory) error
	listQueryHistoryFunc   func(ctx context.Context, accountID string, limit int) ([]model.MailQueryHistory, error)
	deleteOlderThanFunc    func(ctx context.Context, cutoff time.Time) (int64, error)
}

func (m *mockLogStore) CreateAuthLog(ctx context.Context, log *model.AuthenticationLog) error {
	if m.createAuthLogFunc != nil {
		return m.createAuthLogFunc(ctx, log)
	}
	return nil
}

func (m *mockLogStore) ListAuthLogs(ctx context.Context, accountID string, limit int) ([]model.AuthenticationLog, error) {
	if m.listAuthLogsFunc != nil {
		return m.listAuthLogsFunc(ctx, accountID, limit)
	}
	return nil, nil
}

func (m *mockLogStore) CreateQueryHistory(ctx context.Context, history *model.MailQueryHistory) error {
	if m.createQueryHistoryFunc != nil {
		return m.createQueryHistoryFunc(ctx, history)
	}
	return nil
}

func (m *mockLogStore) ListQueryHistory(ctx context.Context, accountID string, limit int) ([]model.MailQueryHistory, error) {
	if m.listQueryHistoryFunc != nil {
		return m.listQueryHistoryFunc(ctx, accountID, limit)
	}
	return nil, nil
}

func (m *mockLogStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	if m.deleteOlderThanFunc != nil {
		return m.deleteOlderThanFunc(ctx, cutoff)
	}
	return 0, nil
}

type mockExternalCallStore struct {
	createFunc         func(ctx context.Context, call *model.ExternalAPICall) error
	getByIDFunc        func(ctx context.Context, id uint) (*model.ExternalAPICall, error)
	recordResultFunc   func(ctx context.Context, id uint, status int, body string, success bool) error
	incrementRetryFunc func(ctx context.Context, id uint) error
	listRetryableFunc  func(ctx context.Context, maxRetries int) ([]model.ExternalAPICall, error)
	listByAccountFunc  func(ctx context.Context, accountID string, limit int) ([]model.ExternalAPICall, error)
}

func (m *mockExternalCallStore) Create(ctx context.Context, call *model.ExternalAPICall) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, call)
	}
	return nil
}

func (m *mockExternalCallStore) GetByID(ctx context.Context, id uint) (*model.ExternalAPICall, error) {
	if m.getByIDFunc != nil {
		return m.getByIDFunc(ctx, id)
	}
	return nil, repository.ErrNotFound
}

func (m *mockExternalCallStore) RecordResult(ctx context.Context, id uint, status int, body string, success bool) error {
	if m.recordResultFunc != nil {
		return m.recordResultFunc(ctx, id, status, body, success)
	}
	return nil
}

func (m *mockExternalCallStore) IncrementRetry(ctx context.Context, id uint) error {
	if m.incrementRetryFunc != nil {
		return m.incrementRetryFunc(ctx, id)
	}
	return nil
}

func (m *mockExternalCallStore) ListRetryable(ctx context.Context, maxRetries int) ([]model.ExternalAPICall, error) {
	if m.listRetryableFunc != nil {
		return m.listRetryableFunc(ctx, maxRetries)
	}
	return nil, nil
}

func (m *mockExternalCallStore) ListByAccount(ctx context.Context, accountID string, limit int) ([]model.ExternalAPICall, error) {
	if m.listByAccountFunc != nil {
		return m.listByAccountFunc(ctx, accountID, limit)
	}
	return nil, nil
}

type mockOAuthProvider struct {
	authorizationURLFunc func(tenantID, clientID, clientSecret, redirectURI string, scopes []string) oauth.Authorization
	exchangeCodeFunc     func(ctx context.Context, tenantID, clientID, clientSecret, redirectURI string, scopes []string, code, codeVerifier string) (*oauth.TokenResult, error)
	refreshFunc          func(ctx context.Context, tenantID, clientID, clientSecret string, scopes []string, refreshToken string) (*oauth.TokenResult, error)
	beginDeviceFlowFunc  func(ctx context.Context, tenantID, clientID string, scopes []string) (*oauth.DeviceAuthorization, error)
	pollDeviceTokenFunc  func(ctx context.Context, tenantID, clientID, deviceCode string) (*oauth.DevicePollResult, error)
	revokeFunc           func(ctx context.Context, accessToken string) error
}

func (m *mockOAuthProvider) AuthorizationURL(tenantID, clientID, clientSecret, redirectURI string, scopes []string) oauth.Authorization {
	if m.authorizationURLFunc != nil {
		return m.authorizationURLFunc(tenantID, clientID, clientSecret, redirectURI, scopes)
	}
	return oauth.Authorization{URL: "https://login.example.com/authorize", State: "state-1", CodeVerifier: "verifier-1"}
}

func (m *mockOAuthProvider) ExchangeCode(ctx context.Context, tenantID, clientID, clientSecret, redirectURI string, scopes []string, code, codeVerifier string) (*oauth.TokenResult, error) {
	if m.exchangeCodeFunc != nil {
		return m.exchangeCodeFunc(ctx, tenantID, clientID, clientSecret, redirectURI, scopes, code, codeVerifier)
	}
	return &oauth.TokenResult{AccessToken: "access", RefreshToken: "refresh", TokenType: "Bearer", ExpiresAt: time.Now().Add(time.Hour)}, nil
}

func (m *mockOAuthProvider) Refresh(ctx context.Context, tenantID, clientID, clientSecret string, scopes []string, refreshToken string) (*oauth.TokenResult, error) {
	if m.refreshFunc != nil {
		return m.refreshFunc(ctx, tenantID, clientID, clientSecret, scopes, refreshToken)
	}
	return &oauth.TokenResult{AccessToken: "access", RefreshToken: refreshToken, TokenType: "Bearer", ExpiresAt: time.Now().Add(time.Hour)}, nil
}

func (m *mockOAuthProvider) BeginDeviceFlow(ctx context.Context, tenantID, clientID string, scopes []string) (*oauth.DeviceAuthorization, error) {
	if m.beginDeviceFlowFunc != nil {
		return m.beginDeviceFlowFunc(ctx, tenantID, clientID, scopes)
	}
	return &oauth.DeviceAuthorization{DeviceCode: "device-1", UserCode: "ABCD-1234", VerificationURI: "https://microsoft.com/devicelogin", ExpiresIn: 900, Interval: 5}, nil
}

func (m *mockOAuthProvider) PollDeviceToken(ctx context.Context, tenantID, clientID, deviceCode string) (*oauth.DevicePollResult, error) {
	if m.pollDeviceTokenFunc != nil {
		return m.pollDeviceTokenFunc(ctx, tenantID, clientID, deviceCode)
	}
	return &oauth.DevicePollResult{Status: oauth.DevicePending}, nil
}

func (m *mockOAuthProvider) Revoke(ctx context.Context, accessToken string) error {
	if m.revokeFunc != nil {
		return m.revokeFunc(ctx, accessToken)
	}
	return nil
}

type mockGraphAPI struct {
	listMessagesFunc       func(ctx context.Context, accessToken, folderID string, filters msgraph.Filters) (*msgraph.MessagePage, error)
	deltaMessagesFunc      func(ctx context.Context, accessToken, folderID, deltaToken string) (*msgraph.DeltaResult, error)
	sendMailFunc           func(ctx context.Context, accessToken string, input msgraph.SendMailInput) error
	createSubscriptionFunc func(ctx context.Context, accessToken string, sub msgraph.Subscription) (*msgraph.Subscription, error)
	renewSubscriptionFunc  func(ctx context.Context, accessToken, subscriptionID string, expires time.Time) (time.Time, error)
	deleteSubscriptionFunc func(ctx context.Context, accessToken, subscriptionID string) error
}

func (m *mockGraphAPI) ListMessages(ctx context.Context, accessToken, folderID string, filters msgraph.Filters) (*msgraph.MessagePage, error) {
	if m.listMessagesFunc != nil {
		return m.listMessagesFunc(ctx, accessToken, folderID, filters)
	}
	return &msgraph.MessagePage{}, nil
}

func (m *mockGraphAPI) DeltaMessages(ctx context.Context, accessToken, folderID, deltaToken string) (*msgraph.DeltaResult, error) {
	if m.deltaMessagesFunc != nil {
		return m.deltaMessagesFunc(ctx, accessToken, folderID, deltaToken)
	}
	return &msgraph.DeltaResult{DeltaToken: "next"}, nil
}

func (m *mockGraphAPI) SendMail(ctx context.Context, accessToken string, input msgraph.SendMailInput) error {
	if m.sendMailFunc != nil {
		return m.sendMailFunc(ctx, accessToken, input)
	}
	return nil
}

func (m *mockGraphAPI) CreateSubscription(ctx context.Context, accessToken string, sub msgraph.Subscription) (*msgraph.Subscription, error) {
	if m.createSubscriptionFunc != nil {
		return m.createSubscriptionFunc(ctx, accessToken, sub)
	}
	out := sub
	out.ID = "sub-1"
	return &out, nil
}

func (m *mockGraphAPI) RenewSubscription(ctx context.Context, accessToken, subscriptionID string, expires time.Time) (time.Time, error) {
	if m.renewSubscriptionFunc != nil {
		return m.renewSubscriptionFunc(ctx, accessToken, subscriptionID, expires)
	}
	return expires, nil
}

func (m *mockGraphAPI) DeleteSubscription(ctx context.Context, accessToken, subscriptionID string) error {
	if m.deleteSubscriptionFunc != nil {
		return m.deleteSubscriptionFunc(ctx, accessToken, subscriptionID)
	}
	return nil
}

type mockForwarder struct {
	endpointURL string
	deliverFunc func(ctx context.Context, payload map[string]any) (*forwarder.Result, error)
}

func (m *mockForwarder) Deliver(ctx context.Context, payload map[string]any) (*forwarder.Result, error) {
	if m.deliverFunc != nil {
		return m.deliverFunc(ctx, payload)
	}
	return &forwarder.Result{StatusCode: 200, Success: true}, nil
}

func (m *mockForwarder) EndpointURL() string {
	if m.endpointURL != "" {
		return m.endpointURL
	}
	return "https://downstream.example.com/mail"
}

type mockTokenSource struct {
	ensureFunc func(ctx context.Context, accountID string) (string, error)
}

func (m *mockTokenSource) EnsureAccessToken(ctx context.Context, accountID string) (string, error) {
	if m.ensureFunc != nil {
		return m.ensureFunc(ctx, accountID)
	}
	return "access-token", nil
}
