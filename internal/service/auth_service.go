package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/kimghw/GraphAPIQuery-rev3/internal/apperr"
	"github.com/kimghw/GraphAPIQuery-rev3/internal/metrics"
	"github.com/kimghw/GraphAPIQuery-rev3/internal/model"
	"github.com/kimghw/GraphAPIQuery-rev3/internal/oauth"
	"github.com/kimghw/GraphAPIQuery-rev3/internal/repository"
)

// Authentication log event types.
const (
	eventRegistration   = "registration"
	eventAuthentication = "authentication"
	eventTokenRefresh   = "token_refresh"
	eventLogout         = "logout"
)

// RequestContext carries caller metadata into the audit trail.
type RequestContext struct {
	IPAddress string
	UserAgent string
}

// RegisterAccountInput describes a new account. ClientSecret and
// RedirectURI are required for the authorization-code flow only.
type RegisterAccountInput struct {
	Email        string
	UserID       string
	TenantID     string
	ClientID     string
	Flow         model.AuthenticationFlow
	Scopes       []string
	ClientSecret string
	RedirectURI  string
	Authority    string
}

// AuthorizationSession is what the caller needs to send the user off to
// the provider.
type AuthorizationSession struct {
	AuthorizationURL string
	State            string
}

// DevicePollOutcome reports one device-flow poll to the caller.
type DevicePollOutcome struct {
	Status  oauth.DevicePollStatus
	Account *model.Account
}

// AuthService owns account registration, both OAuth flows and the token
// lifecycle. Every authentication-relevant event produces exactly one
// authentication log row.
type AuthService struct {
	accounts AccountStore
	tokens   TokenStore
	logs     LogStore
	provider OAuthProvider
	metrics  *metrics.Metrics
	logger   *logrus.Logger
}

func NewAuthService(accounts AccountStore, tokens TokenStore, logs LogStore, provider OAuthProvider, m *metrics.Metrics, logger *logrus.Logger) *AuthService {
	return &AuthService{
		accounts: accounts,
		tokens:   tokens,
		logs:     logs,
		provider: provider,
		metrics:  m,
		logger:   logger,
	}
}

// RegisterAccount creates an account with its flow-specific record.
// Duplicate emails are rejected.
func (s *AuthService) RegisterAccount(ctx context.Context, input RegisterAccountInput, reqCtx RequestContext) (*model.Account, error) {
	if input.Email == "" || input.UserID == "" || input.TenantID == "" || input.ClientID == "" {
		return nil, apperr.Invalid("email, user_id, tenant_id and client_id are required")
	}

	switch input.Flow {
	case model.FlowAuthorizationCode:
		if input.ClientSecret == "" || input.RedirectURI == "" {
			return nil, apperr.Invalid("client_secret and redirect_uri are required for the authorization code flow")
		}
	case model.FlowDeviceCode:
	default:
		return nil, apperr.UnsupportedFlow(string(input.Flow))
	}

	existing, err := s.accounts.GetByEmail(ctx, input.Email)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.Database(err, "get account by email")
	}
	if existing != nil {
		return nil, apperr.DuplicateAccount(input.Email)
	}

	account := &model.Account{
		ID:                 uuid.New().String(),
		Email:              input.Email,
		UserID:             input.UserID,
		TenantID:           input.TenantID,
		ClientID:           input.ClientID,
		AuthenticationFlow: input.Flow,
		Status:             model.AccountActive,
		Scopes:             input.Scopes,
	}

	switch input.Flow {
	case model.FlowAuthorizationCode:
		authority := input.Authority
		if authority == "" {
			authority = "https://login.microsoftonline.com"
		}
		flow := &model.AuthorizationCodeAccount{
			ClientSecret: input.ClientSecret,
			RedirectURI:  input.RedirectURI,
			Authority:    authority,
		}
		if err := s.accounts.CreateWithAuthCodeFlow(ctx, account, flow); err != nil {
			return nil, apperr.Database(err, "create account")
		}
	case model.FlowDeviceCode:
		if err := s.accounts.CreateWithDeviceCodeFlow(ctx, account, &model.DeviceCodeAccount{}); err != nil {
			return nil, apperr.Database(err, "create account")
		}
	}

	s.logAuthEvent(ctx, account.ID, eventRegistration, input.Flow, true, "", "", reqCtx)

	s.logger.WithFields(logrus.Fields{
		"account_id": account.ID,
		"email":      account.Email,
		"flow":       account.AuthenticationFlow,
	}).Info("Account registered")

	return account, nil
}

// BeginAuthorization issues a PKCE authorization URL for an
// authorization-code account and persists the state/verifier pair for the
// callback.
func (s *AuthService) BeginAuthorization(ctx context.Context, accountID string) (*AuthorizationSession, error) {
	account, flow, err := s.authCodeAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}

	auth := s.provider.AuthorizationURL(account.TenantID, account.ClientID, flow.ClientSecret, flow.RedirectURI, account.Scopes)

	if err := s.accounts.SetPendingAuthorization(ctx, accountID, auth.State, auth.CodeVerifier); err != nil {
		return nil, apperr.Database(err, "set pending authorization")
	}

	return &AuthorizationSession{AuthorizationURL: auth.URL, State: auth.State}, nil
}

// CompleteAuthorization redeems an authorization callback. The state
// parameter identifies the account that initiated the flow; the stored PKCE
// verifier is consumed whether or not the exchange succeeds.
func (s *AuthService) CompleteAuthorization(ctx context.Context, state, code string, reqCtx RequestContext) (*model.Account, error) {
	if state == "" || code == "" {
		return nil, apperr.Invalid("state and code are required")
	}

	flow, err := s.accounts.FindByPendingState(ctx, state)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.Invalid("unknown or expired authorization state")
		}
		return nil, apperr.Database(err, "find pending authorization")
	}

	account, err := s.getAccount(ctx, flow.AccountID)
	if err != nil {
		return nil, err
	}

	result, exchangeErr := s.provider.ExchangeCode(ctx, account.TenantID, account.ClientID, flow.ClientSecret, flow.RedirectURI, account.Scopes, code, flow.CodeVerifier)

	if err := s.accounts.ClearPendingAuthorization(ctx, account.ID); err != nil {
		s.logger.WithError(err).WithField("account_id", account.ID).Warn("Failed to clear pending authorization")
	}

	if exchangeErr != nil {
		s.logAuthFailure(ctx, account.ID, eventAuthentication, model.FlowAuthorizationCode, exchangeErr, reqCtx)
		return nil, exchangeErr
	}

	if err := s.storeToken(ctx, account, result); err != nil {
		return nil, err
	}

	s.logAuthEvent(ctx, account.ID, eventAuthentication, model.FlowAuthorizationCode, true, "", "", reqCtx)
	s.logger.WithField("account_id", account.ID).Info("Authorization code flow completed")

	return account, nil
}

// BeginDeviceAuthorization starts a device flow and persists the device
// code so subsequent polls can redeem it.
func (s *AuthService) BeginDeviceAuthorization(ctx context.Context, accountID string) (*oauth.DeviceAuthorization, error) {
	account, err := s.getAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if account.AuthenticationFlow != model.FlowDeviceCode {
		return nil, apperr.UnsupportedFlow(string(account.AuthenticationFlow))
	}

	auth, err := s.provider.BeginDeviceFlow(ctx, account.TenantID, account.ClientID, account.Scopes)
	if err != nil {
		return nil, err
	}

	flow := &model.DeviceCodeAccount{
		AccountID:       accountID,
		DeviceCode:      auth.DeviceCode,
		UserCode:        auth.UserCode,
		VerificationURI: auth.VerificationURI,
		ExpiresIn:       auth.ExpiresIn,
		Interval:        auth.Interval,
	}
	if err := s.accounts.UpdateDeviceFlow(ctx, flow); err != nil {
		return nil, apperr.Database(err, "update device flow")
	}

	return auth, nil
}

// PollDeviceAuthorization performs one poll of a pending device flow.
// Pending and slow-down outcomes produce no audit row; only the terminal
// success or failure of the flow does.
func (s *AuthService) PollDeviceAuthorization(ctx context.Context, accountID string, reqCtx RequestContext) (*DevicePollOutcome, error) {
	account, err := s.getAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if account.AuthenticationFlow != model.FlowDeviceCode {
		return nil, apperr.UnsupportedFlow(string(account.AuthenticationFlow))
	}

	flow, err := s.accounts.GetDeviceCodeFlow(ctx, accountID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.Invalid("no device flow in progress for account %s", accountID)
		}
		return nil, apperr.Database(err, "get device flow")
	}
	if flow.DeviceCode == "" {
		return nil, apperr.Invalid("no device flow in progress for account %s", accountID)
	}

	result, pollErr := s.provider.PollDeviceToken(ctx, account.TenantID, account.ClientID, flow.DeviceCode)
	if pollErr != nil {
		s.logAuthFailure(ctx, accountID, eventAuthentication, model.FlowDeviceCode, pollErr, reqCtx)
		s.clearDeviceCode(ctx, accountID)
		return nil, pollErr
	}

	if result.Status != oauth.DeviceAuthorized {
		return &DevicePollOutcome{Status: result.Status}, nil
	}

	if err := s.storeToken(ctx, account, result.Token); err != nil {
		return nil, err
	}
	s.clearDeviceCode(ctx, accountID)

	s.logAuthEvent(ctx, accountID, eventAuthentication, model.FlowDeviceCode, true, "", "", reqCtx)
	s.logger.WithField("account_id", accountID).Info("Device code flow completed")

	return &DevicePollOutcome{Status: oauth.DeviceAuthorized, Account: account}, nil
}

// RefreshToken exchanges the stored refresh token for a new pair. A
// provider rejection of the refresh token marks the stored token invalid,
// forcing reauthentication.
func (s *AuthService) RefreshToken(ctx context.Context, accountID string) (*model.Token, error) {
	account, err := s.getAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}

	token, err := s.tokens.GetByAccountID(ctx, accountID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NoValidToken(accountID)
		}
		return nil, apperr.Database(err, "get token")
	}
	if token.RefreshToken == "" {
		return nil, apperr.NoRefreshToken(accountID)
	}

	clientSecret := ""
	if account.AuthenticationFlow == model.FlowAuthorizationCode {
		flow, err := s.accounts.GetAuthCodeFlow(ctx, accountID)
		if err != nil {
			return nil, apperr.Database(err, "get authorization code record")
		}
		clientSecret = flow.ClientSecret
	}

	result, refreshErr := s.provider.Refresh(ctx, account.TenantID, account.ClientID, clientSecret, account.Scopes, token.RefreshToken)
	if refreshErr != nil {
		if apperr.IsCode(refreshErr, apperr.CodeInvalidCredentials) {
			if err := s.tokens.UpdateStatus(ctx, accountID, model.TokenInvalid); err != nil {
				s.logger.WithError(err).WithField("account_id", accountID).Warn("Failed to mark token invalid")
			}
		}
		s.logAuthFailure(ctx, accountID, eventTokenRefresh, account.AuthenticationFlow, refreshErr, RequestContext{})
		if s.metrics != nil {
			s.metrics.TokenRefreshes.WithLabelValues("failure").Inc()
		}
		return nil, refreshErr
	}

	newToken := &model.Token{
		AccountID:    accountID,
		AccessToken:  result.AccessToken,
		RefreshToken: result.RefreshToken,
		TokenType:    result.TokenType,
		ExpiresAt:    result.ExpiresAt,
		Scopes:       tokenScopes(result, account),
		Status:       model.TokenValid,
	}
	if err := s.tokens.Upsert(ctx, newToken); err != nil {
		return nil, apperr.Database(err, "upsert token")
	}

	s.logAuthEvent(ctx, accountID, eventTokenRefresh, account.AuthenticationFlow, true, "", "", RequestContext{})
	if s.metrics != nil {
		s.metrics.TokenRefreshes.WithLabelValues("success").Inc()
	}

	return newToken, nil
}

// Logout revokes the account's sessions upstream on a best-effort basis and
// always deletes the local token row, leaving no token material at rest.
func (s *AuthService) Logout(ctx context.Context, accountID string, reqCtx RequestContext) error {
	account, err := s.getAccount(ctx, accountID)
	if err != nil {
		return err
	}

	token, err := s.tokens.GetByAccountID(ctx, accountID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return apperr.Database(err, "get token")
	}

	if token != nil && token.AccessToken != "" {
		if err := s.provider.Revoke(ctx, token.AccessToken); err != nil {
			// Local revocation proceeds regardless.
			s.logger.WithError(err).WithField("account_id", accountID).Warn("Upstream revocation failed")
		}
	}

	if err := s.tokens.Delete(ctx, accountID); err != nil {
		return apperr.Database(err, "delete token")
	}
	if err := s.accounts.UpdateStatus(ctx, accountID, model.AccountInactive); err != nil {
		return apperr.Database(err, "update account status")
	}

	s.logAuthEvent(ctx, accountID, eventLogout, account.AuthenticationFlow, true, "", "", reqCtx)
	s.logger.WithField("account_id", accountID).Info("Account logged out")

	return nil
}

// EnsureAccessToken returns an access token usable right now, refreshing a
// stale one when a refresh token is available.
func (s *AuthService) EnsureAccessToken(ctx context.Context, accountID string) (string, error) {
	token, err := s.tokens.GetByAccountID(ctx, accountID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", apperr.NoValidToken(accountID)
		}
		return "", apperr.Database(err, "get token")
	}

	if token.Usable() {
		return token.AccessToken, nil
	}

	if token.Status == model.TokenValid && token.RefreshToken != "" {
		refreshed, err := s.RefreshToken(ctx, accountID)
		if err != nil {
			return "", err
		}
		return refreshed.AccessToken, nil
	}

	return "", apperr.NoValidToken(accountID)
}

// GetAccount returns the account or an account-not-found error.
func (s *AuthService) GetAccount(ctx context.Context, accountID string) (*model.Account, error) {
	return s.getAccount(ctx, accountID)
}

func (s *AuthService) ListAccounts(ctx context.Context) ([]model.Account, error) {
	accounts, err := s.accounts.List(ctx)
	if err != nil {
		return nil, apperr.Database(err, "list accounts")
	}
	return accounts, nil
}

// DeleteAccount removes the account and everything it owns.
func (s *AuthService) DeleteAccount(ctx context.Context, accountID string) error {
	if err := s.accounts.DeleteCascade(ctx, accountID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.AccountNotFound(accountID)
		}
		return apperr.Database(err, "delete account")
	}
	s.logger.WithField("account_id", accountID).Info("Account deleted")
	return nil
}

func (s *AuthService) ListAuthLogs(ctx context.Context, accountID string, limit int) ([]model.AuthenticationLog, error) {
	logs, err := s.logs.ListAuthLogs(ctx, accountID, limit)
	if err != nil {
		return nil, apperr.Database(err, "list authentication logs")
	}
	return logs, nil
}

// RefreshExpiringTokens refreshes every valid token expiring within the
// window. Per-account failures are logged and skipped so one broken account
// cannot stall the sweep. Returns the number of successful refreshes.
func (s *AuthService) RefreshExpiringTokens(ctx context.Context, window time.Duration) (int, error) {
	tokens, err := s.tokens.ListExpiringWithin(ctx, window)
	if err != nil {
		return 0, apperr.Database(err, "list expiring tokens")
	}

	refreshed := 0
	for _, token := range tokens {
		if _, err := s.RefreshToken(ctx, token.AccountID); err != nil {
			s.logger.WithError(err).WithField("account_id", token.AccountID).Warn("Scheduled token refresh failed")
			continue
		}
		refreshed++
	}

	if refreshed > 0 {
		s.logger.WithField("count", refreshed).Info("Refreshed expiring tokens")
	}
	return refreshed, nil
}

// CleanupExpiredTokens removes unusable token rows older than the retention
// period.
func (s *AuthService) CleanupExpiredTokens(ctx context.Context, retention time.Duration) (int64, error) {
	removed, err := s.tokens.DeleteUnusableOlderThan(ctx, time.Now().UTC().Add(-retention))
	if err != nil {
		return 0, apperr.Database(err, "cleanup tokens")
	}
	return removed, nil
}

func (s *AuthService) getAccount(ctx context.Context, accountID string) (*model.Account, error) {
	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.AccountNotFound(accountID)
		}
		return nil, apperr.Database(err, "get account")
	}
	return account, nil
}

func (s *AuthService) authCodeAccount(ctx context.Context, accountID string) (*model.Account, *model.AuthorizationCodeAccount, error) {
	account, err := s.getAccount(ctx, accountID)
	if err != nil {
		return nil, nil, err
	}
	if account.AuthenticationFlow != model.FlowAuthorizationCode {
		return nil, nil, apperr.UnsupportedFlow(string(account.AuthenticationFlow))
	}
	flow, err := s.accounts.GetAuthCodeFlow(ctx, accountID)
	if err != nil {
		return nil, nil, apperr.Database(err, "get authorization code record")
	}
	return account, flow, nil
}

// storeToken persists a freshly granted token and stamps the account.
func (s *AuthService) storeToken(ctx context.Context, account *model.Account, result *oauth.TokenResult) error {
	token := &model.Token{
		AccountID:    account.ID,
		AccessToken:  result.AccessToken,
		RefreshToken: result.RefreshToken,
		TokenType:    result.TokenType,
		ExpiresAt:    result.ExpiresAt,
		Scopes:       tokenScopes(result, account),
		Status:       model.TokenValid,
	}
	if err := s.tokens.Upsert(ctx, token); err != nil {
		return apperr.Database(err, "upsert token")
	}
	if err := s.accounts.MarkAuthenticated(ctx, account.ID, time.Now().UTC()); err != nil {
		s.logger.WithError(err).WithField("account_id", account.ID).Warn("Failed to stamp authentication time")
	}
	return nil
}

func (s *AuthService) clearDeviceCode(ctx context.Context, accountID string) {
	err := s.accounts.UpdateDeviceFlow(ctx, &model.DeviceCodeAccount{AccountID: accountID})
	if err != nil {
		s.logger.WithError(err).WithField("account_id", accountID).Warn("Failed to clear device code")
	}
}

func (s *AuthService) logAuthEvent(ctx context.Context, accountID, event string, flow model.AuthenticationFlow, success bool, errCode, errMsg string, reqCtx RequestContext) {
	entry := &model.AuthenticationLog{
		AccountID:          accountID,
		EventType:          event,
		AuthenticationFlow: flow,
		Success:            success,
		ErrorCode:          errCode,
		ErrorMessage:       errMsg,
		IPAddress:          reqCtx.IPAddress,
		UserAgent:          reqCtx.UserAgent,
		Timestamp:          time.Now().UTC(),
	}
	if err := s.logs.CreateAuthLog(ctx, entry); err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"account_id": accountID,
			"event":      event,
		}).Error("Failed to write authentication log")
	}
}

func (s *AuthService) logAuthFailure(ctx context.Context, accountID, event string, flow model.AuthenticationFlow, cause error, reqCtx RequestContext) {
	code := ""
	if appErr, ok := apperr.AsError(cause); ok {
		code = appErr.Code
	}
	s.logAuthEvent(ctx, accountID, event, flow, false, code, cause.Error(), reqCtx)
}

func tokenScopes(result *oauth.TokenResult, account *model.Account) []string {
	if len(result.Scopes) > 0 {
		return result.Scopes
	}
	return account.Scopes
}
