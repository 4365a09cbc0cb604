// Package apperr defines the error taxonomy shared by the orchestrators.
// Port-boundary failures are translated into one of these kinds before they
// leave a service, so callers can branch on kind/code instead of matching
// provider-specific strings.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error into one of the top-level categories.
type Kind string

const (
	KindAuthentication Kind = "authentication"
	KindMail           Kind = "mail"
	KindExternalAPI    Kind = "external_api"
	KindPersistence    Kind = "persistence"
	KindValidation     Kind = "validation"
	KindSystem         Kind = "system"
)

// Stable error codes. Handlers map these to HTTP statuses.
const (
	CodeInvalidCredentials   = "AUTH001"
	CodeTokenExpired         = "AUTH002"
	CodeAccountNotFound      = "AUTH004"
	CodeDuplicateAccount     = "AUTH005"
	CodeUnsupportedFlow      = "AUTH006"
	CodeAuthenticationFailed = "AUTH007"
	CodeNoRefreshToken       = "AUTH008"
	CodeDeviceAuthFailed     = "AUTH009"
	CodeNoValidToken         = "AUTH011"

	CodeMailNotFound          = "MAIL001"
	CodeInvalidMailQuery      = "MAIL003"
	CodeMailSendFailed        = "MAIL004"
	CodeWebhookFailed         = "MAIL005"
	CodeDeltaLinkExpired      = "MAIL006"
	CodeWebhookNotFound       = "MAIL009"
	CodeInvalidNotification   = "MAIL010"

	CodeExternalTimeout     = "EXT001"
	CodeExternalError       = "EXT002"
	CodeExternalRateLimited = "EXT004"

	CodeDatabaseError = "DB001"

	CodeInvalidInput = "VAL001"

	CodeInternalError = "SYS001"
	CodeConfigError   = "SYS003"
)

// Error carries the taxonomy kind, a stable code, a human-readable message
// and the wrapped cause.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error

	// RetryAfterSeconds is set for rate-limited upstream responses.
	RetryAfterSeconds int
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s [%s]: %s: %v", e.Kind, e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s [%s]: %s", e.Kind, e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a taxonomy error without a cause.
func New(kind Kind, code, format string, args ...any) *Error {
	return &Error{Kind: kind, Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates a taxonomy error around a cause.
func Wrap(err error, kind Kind, code, format string, args ...any) *Error {
	return &Error{Kind: kind, Code: code, Message: fmt.Sprintf(format, args...), Err: err}
}

// AsError extracts the taxonomy error from err, if any.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsKind reports whether err belongs to the given kind.
func IsKind(err error, kind Kind) bool {
	if e, ok := AsError(err); ok {
		return e.Kind == kind
	}
	return false
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code string) bool {
	if e, ok := AsError(err); ok {
		return e.Code == code
	}
	return false
}

// Common constructors. Keeping them here keeps the wording consistent
// across the services.

func DuplicateAccount(email string) *Error {
	return New(KindAuthentication, CodeDuplicateAccount, "account with email %s already exists", email)
}

func AccountNotFound(accountID string) *Error {
	return New(KindAuthentication, CodeAccountNotFound, "account %s not found", accountID)
}

func NoRefreshToken(accountID string) *Error {
	return New(KindAuthentication, CodeNoRefreshToken, "no refresh token available for account %s", accountID)
}

// NoValidToken signals that the caller must re-authenticate the account;
// its remediation differs from other failures, so it gets its own code.
func NoValidToken(accountID string) *Error {
	return New(KindAuthentication, CodeNoValidToken, "no valid token for account %s, reauthentication required", accountID)
}

func UnsupportedFlow(flow string) *Error {
	return New(KindAuthentication, CodeUnsupportedFlow, "unsupported authentication flow: %s", flow)
}

func AuthenticationFailed(err error, providerCode, description string) *Error {
	e := Wrap(err, KindAuthentication, CodeAuthenticationFailed, "authentication failed: %s", description)
	if providerCode != "" {
		e.Message = fmt.Sprintf("authentication failed (%s): %s", providerCode, description)
	}
	return e
}

// DeviceAuthorizationFailed marks a terminal device-code failure; the flow
// cannot be retried with the same device code.
func DeviceAuthorizationFailed(providerCode, description string) *Error {
	return New(KindAuthentication, CodeDeviceAuthFailed, "device authorization failed (%s): %s", providerCode, description)
}

func InvalidWebhookNotification(subscriptionID string) *Error {
	return New(KindMail, CodeInvalidNotification, "client state mismatch for subscription %s", subscriptionID)
}

func WebhookNotFound(subscriptionID string) *Error {
	return New(KindMail, CodeWebhookNotFound, "webhook subscription %s not found", subscriptionID)
}

func RateLimited(retryAfterSeconds int) *Error {
	e := New(KindExternalAPI, CodeExternalRateLimited, "rate limited by upstream, retry after %ds", retryAfterSeconds)
	e.RetryAfterSeconds = retryAfterSeconds
	return e
}

func Database(err error, operation string) *Error {
	return Wrap(err, KindPersistence, CodeDatabaseError, "database operation %s failed", operation)
}

func Invalid(format string, args ...any) *Error {
	return New(KindValidation, CodeInvalidInput, format, args...)
}
