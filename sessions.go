package auth

import (
	"context"
	"maps"
	"time"
)

// SessionManager manages session lifecycle. Expiration is evaluated lazily
// on read, there is no background sweeper.
type SessionManager struct {
	adapter     SessionAdapter
	generateID  IDGenerator
	now         Clock
	logger      Logger
	onExpiredGC func(ctx context.Context, record *SessionRecord)
}

// NewSessionManager returns a SessionManager using generator for session ids.
func NewSessionManager(adapter SessionAdapter, generator IDGenerator, now Clock, logger Logger) *SessionManager {
	if generator == nil {
		generator = RandomIDGenerator(DefaultSessionIDLength)
	}
	if now == nil {
		now = time.Now
	}
	return &SessionManager{
		adapter:    adapter,
		generateID: generator,
		now:        now,
		logger:     normalizeLogger(logger),
	}
}

// CreateSession stores a new session for userID expiring after ttl.
func (m *SessionManager) CreateSession(ctx context.Context, userID string, ttl time.Duration, attributes map[string]any) (*Session, error) {
	if err := validateIdentifier("user_id", userID); err != nil {
		return nil, err
	}
	if err := validateSessionTTL(ttl); err != nil {
		return nil, err
	}

	id, err := m.generateID()
	if err != nil {
		return nil, classifyAdapterError("generate_session_id", err)
	}

	now := m.now()
	record := &SessionRecord{
		ID:         id,
		UserID:     userID,
		ExpiresAt:  now.Add(ttl).UTC(),
		Attributes: maps.Clone(attributes),
	}

	if err := m.adapter.InsertSession(ctx, record); err != nil {
		return nil, classifyAdapterError("insert_session", err)
	}

	return newSession(record, now, true), nil
}

// ValidateSession returns the session when it is active. Expired sessions
// yield ErrSessionExpired and are deleted best effort.
func (m *SessionManager) ValidateSession(ctx context.Context, sessionID string) (*Session, error) {
	if sessionID == "" {
		return nil, ErrSessionNotFound
	}

	record, err := m.adapter.GetSession(ctx, sessionID)
	if err != nil {
		return nil, classifyAdapterError("get_session", err)
	}

	now := m.now()
	if record.StateAt(now) == SessionStateExpired {
		m.discard(ctx, record)
		return nil, ErrSessionExpired
	}

	return newSession(record, now, false), nil
}

// InvalidateSession deletes one session. Idempotent.
func (m *SessionManager) InvalidateSession(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	return classifyAdapterError("delete_session", m.adapter.DeleteSession(ctx, sessionID))
}

// InvalidateAllUserSessions deletes every session of userID. Idempotent.
func (m *SessionManager) InvalidateAllUserSessions(ctx context.Context, userID string) error {
	return classifyAdapterError("delete_sessions_by_user_id", m.adapter.DeleteSessionsByUserID(ctx, userID))
}

// GetUserSessions returns the active sessions of userID.
func (m *SessionManager) GetUserSessions(ctx context.Context, userID string) ([]*Session, error) {
	records, err := m.adapter.GetSessionsByUserID(ctx, userID)
	if err != nil {
		return nil, classifyAdapterError("get_sessions_by_user_id", err)
	}

	now := m.now()
	out := make([]*Session, 0, len(records))
	for _, r := range records {
		if r.StateAt(now) == SessionStateExpired {
			continue
		}
		out = append(out, newSession(r, now, false))
	}
	return out, nil
}

// DeleteExpiredUserSessions purges expired sessions of userID. It is a
// maintenance helper, reads never depend on it.
func (m *SessionManager) DeleteExpiredUserSessions(ctx context.Context, userID string) (int, error) {
	records, err := m.adapter.GetSessionsByUserID(ctx, userID)
	if err != nil {
		return 0, classifyAdapterError("get_sessions_by_user_id", err)
	}

	now := m.now()
	deleted := 0
	for _, r := range records {
		if r.StateAt(now) != SessionStateExpired {
			continue
		}
		if err := m.adapter.DeleteSession(ctx, r.ID); err != nil {
			return deleted, classifyAdapterError("delete_session", err)
		}
		deleted++
	}
	return deleted, nil
}

func (m *SessionManager) discard(ctx context.Context, record *SessionRecord) {
	if err := m.adapter.DeleteSession(ctx, record.ID); err != nil {
		m.logger.Warn("failed to delete expired session", "session_id", record.ID, "error", err)
		return
	}
	if m.onExpiredGC != nil {
		m.onExpiredGC(ctx, record)
	}
}
