package auth

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"testing"

	goerrors "github.com/goliatone/go-errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestClassifyAdapterError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{
			name:     "nil",
			err:      nil,
			expected: "",
		},
		{
			name:     "deadline exceeded",
			err:      context.DeadlineExceeded,
			expected: TextCodeTransient,
		},
		{
			name:     "wrapped cancellation",
			err:      fmt.Errorf("query: %w", context.Canceled),
			expected: TextCodeTransient,
		},
		{
			name:     "bad connection",
			err:      driver.ErrBadConn,
			expected: TextCodeTransient,
		},
		{
			name:     "net timeout",
			err:      timeoutErr{},
			expected: TextCodeTransient,
		},
		{
			name:     "dial failure",
			err:      &net.OpError{Op: "dial", Err: errors.New("connection refused")},
			expected: TextCodeTransient,
		},
		{
			name:     "typed error passes through",
			err:      ErrDuplicateKey,
			expected: TextCodeDuplicateKey,
		},
		{
			name:     "anything else",
			err:      errors.New("syntax error near SELECT"),
			expected: TextCodeAdapterFailure,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classifyAdapterError("op", tt.err)
			if tt.err == nil {
				assert.NoError(t, err)
				return
			}
			assert.Equal(t, tt.expected, textCode(err))
		})
	}
}

func TestClassifyKeepsSourceAndOperation(t *testing.T) {
	cause := errors.New("boom")
	err := classifyAdapterError("get_user", cause)

	var richErr *goerrors.Error
	require.True(t, goerrors.As(err, &richErr))
	assert.Same(t, cause, richErr.Source)
	assert.Equal(t, "get_user", richErr.Metadata["operation"])
}

func TestConstraintViolationDoesNotMutateBase(t *testing.T) {
	first := NewConstraintViolation(errors.New("first"))
	second := NewConstraintViolation(errors.New("second"))

	assert.True(t, IsConstraintViolation(first))
	assert.True(t, IsConstraintViolation(second))

	var a, b *goerrors.Error
	require.True(t, goerrors.As(first, &a))
	require.True(t, goerrors.As(second, &b))
	assert.Equal(t, "first", a.Source.Error())
	assert.Equal(t, "second", b.Source.Error())
	assert.Nil(t, errConstraintViolation.Source)
}

func TestPredicates(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		check func(error) bool
	}{
		{"user not found", ErrUserNotFound, IsUserNotFound},
		{"key not found", ErrKeyNotFound, IsKeyNotFound},
		{"session not found", ErrSessionNotFound, IsSessionNotFound},
		{"session expired", ErrSessionExpired, IsSessionExpired},
		{"duplicate key", ErrDuplicateKey, IsDuplicateKey},
		{"invalid credentials", ErrInvalidCredentials, IsInvalidCredentials},
		{"transient", NewTransientError(errors.New("x")), IsTransient},
		{"invalid input", newInvalidInputError(errors.New("x"), nil), IsInvalidInput},
		{"wrapped", fmt.Errorf("outer: %w", ErrKeyNotFound), IsKeyNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, tt.check(tt.err))
			assert.False(t, tt.check(nil))
			assert.False(t, tt.check(errors.New(tt.name)))
		})
	}

	assert.False(t, IsUserNotFound(ErrKeyNotFound))
}

func TestForeignRichErrorsAreNotKnown(t *testing.T) {
	foreign := goerrors.New("other", goerrors.CategoryNotFound).WithTextCode("SOMETHING_ELSE")
	assert.Equal(t, "", textCode(foreign))
	assert.Equal(t, TextCodeAdapterFailure, textCode(classifyAdapterError("op", foreign)))
}
