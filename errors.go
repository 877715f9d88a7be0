package auth

import (
	"context"
	"database/sql/driver"
	"errors"
	"net"

	goerrors "github.com/goliatone/go-errors"
)

const (
	TextCodeUserNotFound        = "USER_NOT_FOUND"
	TextCodeKeyNotFound         = "KEY_NOT_FOUND"
	TextCodeSessionNotFound     = "SESSION_NOT_FOUND"
	TextCodeSessionExpired      = "SESSION_EXPIRED"
	TextCodeDuplicateKey        = "DUPLICATE_KEY"
	TextCodeConstraintViolation = "CONSTRAINT_VIOLATION"
	TextCodeInvalidCredentials  = "INVALID_CREDENTIALS"
	TextCodeTransient           = "TRANSIENT_FAILURE"
	TextCodeInvalidInput        = "INVALID_INPUT"
	TextCodeUserIDExhausted     = "USER_ID_EXHAUSTED"
	TextCodeAdapterFailure      = "ADAPTER_FAILURE"
	TextCodeEmptyPassword       = "EMPTY_PASSWORD"
)

// ErrUserNotFound is returned when a user id does not resolve to a record.
// Adapters return it from GetUser and UpdateUser.
var ErrUserNotFound = goerrors.New("user not found", goerrors.CategoryNotFound).
	WithTextCode(TextCodeUserNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrKeyNotFound is returned when no key matches a provider id and provider user id.
var ErrKeyNotFound = goerrors.New("key not found", goerrors.CategoryNotFound).
	WithTextCode(TextCodeKeyNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrSessionNotFound is returned when a session id is unknown.
var ErrSessionNotFound = goerrors.New("session not found", goerrors.CategoryNotFound).
	WithTextCode(TextCodeSessionNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrSessionExpired is returned when a session exists but its expiration has elapsed.
var ErrSessionExpired = goerrors.New("session expired", goerrors.CategoryAuth).
	WithTextCode(TextCodeSessionExpired).
	WithCode(goerrors.CodeUnauthorized)

// ErrDuplicateKey is returned when a provider id and provider user id pair is taken.
var ErrDuplicateKey = goerrors.New("key already exists", goerrors.CategoryConflict).
	WithTextCode(TextCodeDuplicateKey).
	WithCode(goerrors.CodeConflict)

// ErrInvalidCredentials does not tell a missing key apart from a bad secret.
var ErrInvalidCredentials = goerrors.New("invalid credentials", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidCredentials).
	WithCode(goerrors.CodeUnauthorized)

// ErrUserIDExhausted is returned when every generated user id collided.
var ErrUserIDExhausted = goerrors.New("unable to generate a unique user id", goerrors.CategoryInternal).
	WithTextCode(TextCodeUserIDExhausted).
	WithCode(goerrors.CodeInternal)

// ErrNoEmptyString is returned when hashing an empty secret.
var ErrNoEmptyString = goerrors.New("secret can not be empty", goerrors.CategoryValidation).
	WithTextCode(TextCodeEmptyPassword).
	WithCode(goerrors.CodeBadRequest)

var errConstraintViolation = goerrors.New("attribute constraint violation", goerrors.CategoryConflict).
	WithTextCode(TextCodeConstraintViolation).
	WithCode(goerrors.CodeConflict)

var errTransient = goerrors.New("storage temporarily unavailable", goerrors.CategoryOperation).
	WithTextCode(TextCodeTransient).
	WithCode(goerrors.CodeInternal)

var errInvalidInput = goerrors.New("invalid input", goerrors.CategoryValidation).
	WithTextCode(TextCodeInvalidInput).
	WithCode(goerrors.CodeBadRequest)

var errAdapterFailure = goerrors.New("storage adapter failure", goerrors.CategoryInternal).
	WithTextCode(TextCodeAdapterFailure).
	WithCode(goerrors.CodeInternal)

// NewConstraintViolation wraps a storage level unique or check violation on user
// attributes. The cause is kept as the error source and is not normalized.
func NewConstraintViolation(cause error) error {
	return cloneWithSource(errConstraintViolation, cause, nil)
}

// NewTransientError marks an adapter failure as retryable by the caller.
func NewTransientError(cause error) error {
	return cloneWithSource(errTransient, cause, nil)
}

func newInvalidInputError(cause error, metadata map[string]any) error {
	return cloneWithSource(errInvalidInput, cause, metadata)
}

func cloneWithSource(base *goerrors.Error, source error, metadata map[string]any) error {
	clone := base.Clone()
	if clone == nil {
		return source
	}
	if source != nil {
		clone.Source = source
		if metadata == nil {
			metadata = map[string]any{}
		}
		metadata["error"] = source.Error()
	}
	if len(metadata) > 0 {
		clone.WithMetadata(metadata)
	}
	return clone
}

// classifyAdapterError turns whatever an adapter returned into the typed
// taxonomy. Errors already carrying one of our text codes pass through.
func classifyAdapterError(operation string, err error) error {
	if err == nil {
		return nil
	}

	if textCode(err) != "" {
		return err
	}

	meta := map[string]any{"operation": operation}
	if isTransient(err) {
		return cloneWithSource(errTransient, err, meta)
	}

	return cloneWithSource(errAdapterFailure, err, meta)
}

func isTransient(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}

	if errors.Is(err, driver.ErrBadConn) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var opErr *net.OpError
	return errors.As(err, &opErr)
}

var knownTextCodes = map[string]struct{}{
	TextCodeUserNotFound:        {},
	TextCodeKeyNotFound:         {},
	TextCodeSessionNotFound:     {},
	TextCodeSessionExpired:      {},
	TextCodeDuplicateKey:        {},
	TextCodeConstraintViolation: {},
	TextCodeInvalidCredentials:  {},
	TextCodeTransient:           {},
	TextCodeInvalidInput:        {},
	TextCodeUserIDExhausted:     {},
	TextCodeAdapterFailure:      {},
	TextCodeEmptyPassword:       {},
}

func textCode(err error) string {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) || richErr == nil {
		return ""
	}
	if _, ok := knownTextCodes[richErr.TextCode]; !ok {
		return ""
	}
	return richErr.TextCode
}

func hasTextCode(err error, code string) bool {
	return err != nil && textCode(err) == code
}

// IsUserNotFound reports whether err means the user does not exist.
func IsUserNotFound(err error) bool { return hasTextCode(err, TextCodeUserNotFound) }

// IsKeyNotFound reports whether err means the key does not exist.
func IsKeyNotFound(err error) bool { return hasTextCode(err, TextCodeKeyNotFound) }

// IsSessionNotFound reports whether err means the session does not exist.
func IsSessionNotFound(err error) bool { return hasTextCode(err, TextCodeSessionNotFound) }

// IsSessionExpired reports whether err means the session expired.
func IsSessionExpired(err error) bool { return hasTextCode(err, TextCodeSessionExpired) }

// IsDuplicateKey reports whether err is a key collision.
func IsDuplicateKey(err error) bool { return hasTextCode(err, TextCodeDuplicateKey) }

// IsConstraintViolation reports whether err is a user attribute constraint violation.
func IsConstraintViolation(err error) bool { return hasTextCode(err, TextCodeConstraintViolation) }

// IsInvalidCredentials reports whether err is a key verification failure.
func IsInvalidCredentials(err error) bool { return hasTextCode(err, TextCodeInvalidCredentials) }

// IsTransient reports whether err is a timeout or connectivity failure.
// Callers may retry idempotent reads, never creates.
func IsTransient(err error) bool { return hasTextCode(err, TextCodeTransient) }

// IsInvalidInput reports whether err is an input validation failure.
func IsInvalidInput(err error) bool { return hasTextCode(err, TextCodeInvalidInput) }
