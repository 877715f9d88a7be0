package auth

import (
	"encoding/json"
	"maps"
	"time"
)

// UserRecord is the raw user row as stored by an adapter.
type UserRecord struct {
	ID         string         `json:"id"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// User is the projected user handed to callers. Attributes come from the
// AttributeMapper; ID always comes from storage.
type User struct {
	ID         string
	Attributes map[string]any
}

// Get returns a projected attribute.
func (u *User) Get(name string) (any, bool) {
	if u == nil || u.Attributes == nil {
		return nil, false
	}
	v, ok := u.Attributes[name]
	return v, ok
}

// MarshalJSON flattens attributes next to the id.
func (u User) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(u.Attributes)+1)
	maps.Copy(out, u.Attributes)
	out["id"] = u.ID
	return json.Marshal(out)
}

// KeyRecord is the raw key row. A nil HashedSecret marks an identity only
// link (OAuth and friends) that can not be verified with a secret.
type KeyRecord struct {
	ProviderID     string  `json:"provider_id"`
	ProviderUserID string  `json:"provider_user_id"`
	UserID         string  `json:"user_id"`
	HashedSecret   *string `json:"hashed_secret,omitempty"`
}

// Key is the public view of a KeyRecord, it never carries the hash.
type Key struct {
	ProviderID     string `json:"provider_id"`
	ProviderUserID string `json:"provider_user_id"`
	UserID         string `json:"user_id"`
	SecretDefined  bool   `json:"secret_defined"`
}

func newKey(record *KeyRecord) *Key {
	if record == nil {
		return nil
	}
	return &Key{
		ProviderID:     record.ProviderID,
		ProviderUserID: record.ProviderUserID,
		UserID:         record.UserID,
		SecretDefined:  record.HashedSecret != nil,
	}
}

// KeySpec describes a key to create. Secret is optional.
type KeySpec struct {
	ProviderID     string
	ProviderUserID string
	Secret         *string
}

// Secret is a helper to build KeySpec values inline.
func Secret(s string) *string {
	return &s
}

// SessionState is derived from ExpiresAt, it is never stored.
type SessionState string

const (
	SessionStateActive  SessionState = "active"
	SessionStateExpired SessionState = "expired"
)

// SessionRecord is the raw session row.
type SessionRecord struct {
	ID         string         `json:"id"`
	UserID     string         `json:"user_id"`
	ExpiresAt  time.Time      `json:"expires_at"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// StateAt reports the session state relative to now.
func (s *SessionRecord) StateAt(now time.Time) SessionState {
	if s == nil || !now.Before(s.ExpiresAt) {
		return SessionStateExpired
	}
	return SessionStateActive
}

// Session is a time bounded grant for a user.
type Session struct {
	ID         string         `json:"id"`
	UserID     string         `json:"user_id"`
	ExpiresAt  time.Time      `json:"expires_at"`
	State      SessionState   `json:"state"`
	Fresh      bool           `json:"fresh"`
	Attributes map[string]any `json:"attributes,omitempty"`
	User       *User          `json:"user,omitempty"`
}

// IsActive reports whether the session was active when it was read.
func (s *Session) IsActive() bool {
	return s != nil && s.State == SessionStateActive
}

func newSession(record *SessionRecord, now time.Time, fresh bool) *Session {
	return &Session{
		ID:         record.ID,
		UserID:     record.UserID,
		ExpiresAt:  record.ExpiresAt,
		State:      record.StateAt(now),
		Fresh:      fresh,
		Attributes: maps.Clone(record.Attributes),
	}
}

// CreateUserParams holds the input of Auth.CreateUser. UserID is optional,
// when empty the configured generator is used.
type CreateUserParams struct {
	UserID     string
	Key        *KeySpec
	Attributes map[string]any
}
