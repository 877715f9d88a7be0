package auth_test

import (
	"context"
	"errors"
	"testing"
	"time"

	auth "github.com/goliatone/go-auth-core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestSessionManagerExpiredDeleteFailureIsBestEffort(t *testing.T) {
	m := &MockAdapter{}
	clock := newFixedClock()
	logger := &captureLogger{}

	m.On("GetSession", mock.Anything, "s1").Return(&auth.SessionRecord{
		ID: "s1", UserID: "u1", ExpiresAt: clock.Now().Add(-time.Minute),
	}, nil)
	m.On("DeleteSession", mock.Anything, "s1").Return(errors.New("connection lost"))

	sessions := auth.NewSessionManager(m, nil, clock.Now, logger)
	_, err := sessions.ValidateSession(context.Background(), "s1")

	assert.True(t, auth.IsSessionExpired(err))
	assert.Equal(t, []string{"warn:failed to delete expired session"}, logger.lines)
	m.AssertExpectations(t)
}

func TestSessionManagerCreateSession(t *testing.T) {
	m := &MockAdapter{}
	clock := newFixedClock()

	m.On("InsertSession", mock.Anything, mock.MatchedBy(func(r *auth.SessionRecord) bool {
		return r.ID == "fixed-session-id" && r.UserID == "u1" && r.ExpiresAt.Equal(clock.Now().Add(time.Hour))
	})).Return(nil)

	gen := func() (string, error) { return "fixed-session-id", nil }
	sessions := auth.NewSessionManager(m, gen, clock.Now, nil)

	session, err := sessions.CreateSession(context.Background(), "u1", time.Hour, map[string]any{"ip": "127.0.0.1"})
	require.NoError(t, err)
	assert.Equal(t, "fixed-session-id", session.ID)
	assert.Equal(t, auth.SessionStateActive, session.State)
	assert.True(t, session.Fresh)
	m.AssertExpectations(t)

	_, err = sessions.CreateSession(context.Background(), "", time.Hour, nil)
	assert.True(t, auth.IsInvalidInput(err))
}

func TestSessionManagerGeneratorFailure(t *testing.T) {
	m := &MockAdapter{}
	gen := func() (string, error) { return "", errors.New("entropy exhausted") }
	sessions := auth.NewSessionManager(m, gen, nil, nil)

	_, err := sessions.CreateSession(context.Background(), "u1", time.Hour, nil)
	assert.Error(t, err)
	m.AssertNotCalled(t, "InsertSession", mock.Anything, mock.Anything)
}
