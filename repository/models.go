package repository

import (
	"maps"
	"time"

	auth "github.com/goliatone/go-auth-core"
	"github.com/uptrace/bun"
)

// UserModel is the Bun model for users.
type UserModel struct {
	bun.BaseModel `bun:"table:auth_user"`

	ID         string         `bun:"id,pk"`
	Attributes map[string]any `bun:"attributes,type:jsonb,notnull"`
}

// KeyModel is the Bun model for keys. The primary key is the provider pair.
type KeyModel struct {
	bun.BaseModel `bun:"table:auth_key"`

	ProviderID     string  `bun:"provider_id,pk"`
	ProviderUserID string  `bun:"provider_user_id,pk"`
	UserID         string  `bun:"user_id,notnull"`
	HashedSecret   *string `bun:"hashed_secret"`
}

// SessionModel is the Bun model for sessions.
type SessionModel struct {
	bun.BaseModel `bun:"table:auth_session"`

	ID         string         `bun:"id,pk"`
	UserID     string         `bun:"user_id,notnull"`
	ExpiresAt  time.Time      `bun:"expires_at,notnull"`
	Attributes map[string]any `bun:"attributes,type:jsonb,notnull"`
}

func fromUserRecord(r *auth.UserRecord) *UserModel {
	attrs := maps.Clone(r.Attributes)
	if attrs == nil {
		attrs = map[string]any{}
	}
	return &UserModel{ID: r.ID, Attributes: attrs}
}

func (m *UserModel) toRecord() *auth.UserRecord {
	attrs := m.Attributes
	if attrs == nil {
		attrs = map[string]any{}
	}
	return &auth.UserRecord{ID: m.ID, Attributes: attrs}
}

func fromKeyRecord(r *auth.KeyRecord) *KeyModel {
	return &KeyModel{
		ProviderID:     r.ProviderID,
		ProviderUserID: r.ProviderUserID,
		UserID:         r.UserID,
		HashedSecret:   r.HashedSecret,
	}
}

func (m *KeyModel) toRecord() *auth.KeyRecord {
	return &auth.KeyRecord{
		ProviderID:     m.ProviderID,
		ProviderUserID: m.ProviderUserID,
		UserID:         m.UserID,
		HashedSecret:   m.HashedSecret,
	}
}

func fromSessionRecord(r *auth.SessionRecord) *SessionModel {
	attrs := maps.Clone(r.Attributes)
	if attrs == nil {
		attrs = map[string]any{}
	}
	return &SessionModel{
		ID:         r.ID,
		UserID:     r.UserID,
		ExpiresAt:  r.ExpiresAt.UTC(),
		Attributes: attrs,
	}
}

func (m *SessionModel) toRecord() *auth.SessionRecord {
	attrs := m.Attributes
	if attrs == nil {
		attrs = map[string]any{}
	}
	return &auth.SessionRecord{
		ID:         m.ID,
		UserID:     m.UserID,
		ExpiresAt:  m.ExpiresAt.UTC(),
		Attributes: attrs,
	}
}
