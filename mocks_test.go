package auth_test

import (
	"context"

	auth "github.com/goliatone/go-auth-core"
	"github.com/stretchr/testify/mock"
)

// MockAdapter implements auth.Adapter
type MockAdapter struct {
	mock.Mock
}

func (m *MockAdapter) GetUser(ctx context.Context, userID string) (*auth.UserRecord, error) {
	args := m.Called(ctx, userID)
	if v := args.Get(0); v != nil {
		return v.(*auth.UserRecord), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockAdapter) InsertUser(ctx context.Context, user *auth.UserRecord) error {
	return m.Called(ctx, user).Error(0)
}

func (m *MockAdapter) UpdateUser(ctx context.Context, userID string, attributes map[string]any) (*auth.UserRecord, error) {
	args := m.Called(ctx, userID, attributes)
	if v := args.Get(0); v != nil {
		return v.(*auth.UserRecord), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockAdapter) DeleteUser(ctx context.Context, userID string) error {
	return m.Called(ctx, userID).Error(0)
}

func (m *MockAdapter) CreateUserWithKey(ctx context.Context, user *auth.UserRecord, key *auth.KeyRecord) error {
	return m.Called(ctx, user, key).Error(0)
}

func (m *MockAdapter) GetKey(ctx context.Context, providerID, providerUserID string) (*auth.KeyRecord, error) {
	args := m.Called(ctx, providerID, providerUserID)
	if v := args.Get(0); v != nil {
		return v.(*auth.KeyRecord), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockAdapter) GetKeysByUserID(ctx context.Context, userID string) ([]*auth.KeyRecord, error) {
	args := m.Called(ctx, userID)
	if v := args.Get(0); v != nil {
		return v.([]*auth.KeyRecord), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockAdapter) InsertKey(ctx context.Context, key *auth.KeyRecord) error {
	return m.Called(ctx, key).Error(0)
}

func (m *MockAdapter) UpdateKey(ctx context.Context, providerID, providerUserID string, hashedSecret *string) (*auth.KeyRecord, error) {
	args := m.Called(ctx, providerID, providerUserID, hashedSecret)
	if v := args.Get(0); v != nil {
		return v.(*auth.KeyRecord), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockAdapter) DeleteKey(ctx context.Context, providerID, providerUserID string) error {
	return m.Called(ctx, providerID, providerUserID).Error(0)
}

func (m *MockAdapter) DeleteKeysByUserID(ctx context.Context, userID string) error {
	return m.Called(ctx, userID).Error(0)
}

func (m *MockAdapter) GetSession(ctx context.Context, sessionID string) (*auth.SessionRecord, error) {
	args := m.Called(ctx, sessionID)
	if v := args.Get(0); v != nil {
		return v.(*auth.SessionRecord), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockAdapter) GetSessionsByUserID(ctx context.Context, userID string) ([]*auth.SessionRecord, error) {
	args := m.Called(ctx, userID)
	if v := args.Get(0); v != nil {
		return v.([]*auth.SessionRecord), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockAdapter) InsertSession(ctx context.Context, session *auth.SessionRecord) error {
	return m.Called(ctx, session).Error(0)
}

func (m *MockAdapter) DeleteSession(ctx context.Context, sessionID string) error {
	return m.Called(ctx, sessionID).Error(0)
}

func (m *MockAdapter) DeleteSessionsByUserID(ctx context.Context, userID string) error {
	return m.Called(ctx, userID).Error(0)
}

// recordingSink collects activity events.
type recordingSink struct {
	events []auth.ActivityEvent
}

func (s *recordingSink) Record(_ context.Context, event auth.ActivityEvent) error {
	s.events = append(s.events, event)
	return nil
}

func (s *recordingSink) types() []auth.ActivityEventType {
	out := make([]auth.ActivityEventType, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e.EventType)
	}
	return out
}

// captureLogger records log lines by level.
type captureLogger struct {
	lines []string
}

func (c *captureLogger) Debug(msg string, args ...any) { c.lines = append(c.lines, "debug:"+msg) }
func (c *captureLogger) Info(msg string, args ...any)  { c.lines = append(c.lines, "info:"+msg) }
func (c *captureLogger) Warn(msg string, args ...any)  { c.lines = append(c.lines, "warn:"+msg) }
func (c *captureLogger) Error(msg string, args ...any) { c.lines = append(c.lines, "error:"+msg) }
