// Package oauth implements the Microsoft identity platform flows:
// authorization-code with PKCE, device-code, refresh and revocation.
package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/kimghw/GraphAPIQuery-rev3/internal/apperr"
	"github.com/kimghw/GraphAPIQuery-rev3/internal/config"
)

const defaultTimeout = 30 * time.Second

// Client talks to the identity provider's OAuth 2.0 endpoints. The authority
// base URL is configurable so tests can point it at a local server.
type Client struct {
	authority  string
	graphBase  string
	httpClient *http.Client
}

func NewClient(cfg config.GraphConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	authority := strings.TrimSuffix(cfg.Authority, "/")
	if authority == "" {
		authority = "https://login.microsoftonline.com"
	}
	graphBase := strings.TrimSuffix(cfg.BaseURL, "/")
	if graphBase == "" {
		graphBase = "https://graph.microsoft.com/v1.0"
	}
	return &Client{
		authority:  authority,
		graphBase:  graphBase,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *Client) endpoint(tenantID string) oauth2.Endpoint {
	return oauth2.Endpoint{
		AuthURL:       fmt.Sprintf("%s/%s/oauth2/v2.0/authorize", c.authority, tenantID),
		TokenURL:      fmt.Sprintf("%s/%s/oauth2/v2.0/token", c.authority, tenantID),
		DeviceAuthURL: fmt.Sprintf("%s/%s/oauth2/v2.0/devicecode", c.authority, tenantID),
	}
}

func (c *Client) oauthConfig(tenantID, clientID, clientSecret, redirectURI string, scopes []string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURI,
		Scopes:       withOfflineAccess(scopes),
		Endpoint:     c.endpoint(tenantID),
	}
}

// withOfflineAccess ensures the offline_access scope is requested, without
// which the provider issues no refresh token.
func withOfflineAccess(scopes []string) []string {
	for _, s := range scopes {
		if s == "offline_access" {
			return scopes
		}
	}
	out := make([]string, 0, len(scopes)+1)
	out = append(out, scopes...)
	return append(out, "offline_access")
}

func (c *Client) httpContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
}

// TokenResult is the provider-agnostic outcome of a successful token grant.
type TokenResult struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
	ExpiresAt    time.Time
	Scopes       []string
}

// Authorization holds everything the caller must persist before redirecting
// the user: the URL itself plus the one-shot state and PKCE verifier.
type Authorization struct {
	URL          string
	State        string
	CodeVerifier string
}

// AuthorizationURL builds a PKCE (S256) authorization URL with a fresh
// random state and verifier.
func (c *Client) AuthorizationURL(tenantID, clientID, clientSecret, redirectURI string, scopes []string) Authorization {
	cfg := c.oauthConfig(tenantID, clientID, clientSecret, redirectURI, scopes)
	state := uuid.New().String()
	verifier := oauth2.GenerateVerifier()

	authURL := cfg.AuthCodeURL(state,
		oauth2.S256ChallengeOption(verifier),
		oauth2.SetAuthURLParam("response_mode", "query"),
	)

	return Authorization{URL: authURL, State: state, CodeVerifier: verifier}
}

// ExchangeCode redeems an authorization code with the stored PKCE verifier.
func (c *Client) ExchangeCode(ctx context.Context, tenantID, clientID, clientSecret, redirectURI string, scopes []string, code, codeVerifier string) (*TokenResult, error) {
	cfg := c.oauthConfig(tenantID, clientID, clientSecret, redirectURI, scopes)

	token, err := cfg.Exchange(c.httpContext(ctx), code, oauth2.VerifierOption(codeVerifier))
	if err != nil {
		return nil, translateRetrieveError(err, "code exchange")
	}
	return fromOAuth2Token(token), nil
}

// Refresh exchanges a refresh token for a new token pair. When the provider
// omits a new refresh token, the old one is carried forward so rotation
// never loses the ability to refresh.
func (c *Client) Refresh(ctx context.Context, tenantID, clientID, clientSecret string, scopes []string, refreshToken string) (*TokenResult, error) {
	cfg := c.oauthConfig(tenantID, clientID, clientSecret, "", scopes)

	src := cfg.TokenSource(c.httpContext(ctx), &oauth2.Token{RefreshToken: refreshToken})
	token, err := src.Token()
	if err != nil {
		return nil, translateRetrieveError(err, "token refresh")
	}

	result := fromOAuth2Token(token)
	if result.RefreshToken == "" {
		result.RefreshToken = refreshToken
	}
	return result, nil
}

// DeviceAuthorization is the provider's response to a device flow start.
type DeviceAuthorization struct {
	DeviceCode      string
	UserCode        string
	VerificationURI string
	ExpiresIn       int
	Interval        int
	Message         string
}

// BeginDeviceFlow requests a device and user code pair.
func (c *Client) BeginDeviceFlow(ctx context.Context, tenantID, clientID string, scopes []string) (*DeviceAuthorization, error) {
	cfg := c.oauthConfig(tenantID, clientID, "", "", scopes)

	resp, err := cfg.DeviceAuth(c.httpContext(ctx))
	if err != nil {
		return nil, translateRetrieveError(err, "device authorization")
	}

	interval := int(resp.Interval)
	if interval <= 0 {
		interval = 5
	}
	expiresIn := int(time.Until(resp.Expiry).Seconds())
	if expiresIn < 0 {
		expiresIn = 0
	}

	return &DeviceAuthorization{
		DeviceCode:      resp.DeviceCode,
		UserCode:        resp.UserCode,
		VerificationURI: resp.VerificationURI,
		ExpiresIn:       expiresIn,
		Interval:        interval,
		Message:         fmt.Sprintf("To sign in, visit %s and enter the code %s", resp.VerificationURI, resp.UserCode),
	}, nil
}

// DevicePollStatus is the outcome of a single device-token poll.
type DevicePollStatus string

const (
	DevicePending    DevicePollStatus = "pending"
	DeviceSlowDown   DevicePollStatus = "slow_down"
	DeviceAuthorized DevicePollStatus = "authorized"
)

// DevicePollResult carries the poll status and, once authorized, the token.
type DevicePollResult struct {
	Status DevicePollStatus
	Token  *TokenResult
}

// PollDeviceToken performs exactly one poll of the token endpoint for a
// pending device flow. authorization_pending and slow_down map to statuses
// so the caller controls pacing; declined, expired and bad-code responses
// are terminal errors.
func (c *Client) PollDeviceToken(ctx context.Context, tenantID, clientID, deviceCode string) (*DevicePollResult, error) {
	form := url.Values{
		"grant_type":  {"urn:ietf:params:oauth:grant-type:device_code"},
		"client_id":   {clientID},
		"device_code": {deviceCode},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(tenantID).TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to build device token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.KindAuthentication, apperr.CodeAuthenticationFailed, "device token request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		var body struct {
			AccessToken  string `json:"access_token"`
			RefreshToken string `json:"refresh_token"`
			TokenType    string `json:"token_type"`
			ExpiresIn    int    `json:"expires_in"`
			Scope        string `json:"scope"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return nil, fmt.Errorf("failed to decode device token response: %w", err)
		}
		token := &TokenResult{
			AccessToken:  body.AccessToken,
			RefreshToken: body.RefreshToken,
			TokenType:    body.TokenType,
			ExpiresAt:    time.Now().UTC().Add(time.Duration(body.ExpiresIn) * time.Second),
			Scopes:       strings.Fields(body.Scope),
		}
		if token.TokenType == "" {
			token.TokenType = "Bearer"
		}
		return &DevicePollResult{Status: DeviceAuthorized, Token: token}, nil
	}

	var oauthErr struct {
		Error            string `json:"error"`
		ErrorDescription string `json:"error_description"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&oauthErr); err != nil {
		return nil, apperr.New(apperr.KindAuthentication, apperr.CodeAuthenticationFailed,
			"device token poll failed with status %d", resp.StatusCode)
	}

	switch oauthErr.Error {
	case "authorization_pending":
		return &DevicePollResult{Status: DevicePending}, nil
	case "slow_down":
		return &DevicePollResult{Status: DeviceSlowDown}, nil
	case "authorization_declined", "bad_verification_code", "expired_token":
		return nil, apperr.DeviceAuthorizationFailed(oauthErr.Error, oauthErr.ErrorDescription)
	default:
		return nil, apperr.AuthenticationFailed(nil, oauthErr.Error, oauthErr.ErrorDescription)
	}
}

// Revoke asks the provider to invalidate the account's sign-in sessions,
// which retires its refresh tokens. Failures are reported but the caller is
// expected to proceed with local revocation regardless.
func (c *Client) Revoke(ctx context.Context, accessToken string) error {
	endpoint := c.graphBase + "/me/revokeSignInSessions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to build revoke request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("revoke request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("revoke request returned status %d", resp.StatusCode)
	}
	return nil
}

func fromOAuth2Token(token *oauth2.Token) *TokenResult {
	result := &TokenResult{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		TokenType:    token.TokenType,
		ExpiresAt:    token.Expiry.UTC(),
	}
	if result.TokenType == "" {
		result.TokenType = "Bearer"
	}
	if scope, ok := token.Extra("scope").(string); ok && scope != "" {
		result.Scopes = strings.Fields(scope)
	}
	return result
}

// translateRetrieveError maps oauth2 retrieval failures to the taxonomy,
// preserving the provider's error code and description when present.
func translateRetrieveError(err error, operation string) error {
	var rErr *oauth2.RetrieveError
	if errors.As(err, &rErr) {
		code := rErr.ErrorCode
		description := rErr.ErrorDescription
		if description == "" {
			description = fmt.Sprintf("%s failed with status %d", operation, rErr.Response.StatusCode)
		}
		if code == "invalid_grant" {
			return apperr.Wrap(err, apperr.KindAuthentication, apperr.CodeInvalidCredentials,
				"%s rejected (%s): %s", operation, code, description)
		}
		return apperr.AuthenticationFailed(err, code, description)
	}
	return apperr.Wrap(err, apperr.KindAuthentication, apperr.CodeAuthenticationFailed, "%s failed", operation)
}
