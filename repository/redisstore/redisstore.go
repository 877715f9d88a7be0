// Package redisstore keeps sessions in redis. Pair it with a SQL user store
// through auth.CombineAdapters.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	auth "github.com/goliatone/go-auth-core"
	"github.com/redis/go-redis/v9"
)

// Client is the subset of go-redis used by the store. *redis.Client,
// *redis.ClusterClient and redis.UniversalClient satisfy it.
type Client interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	SAdd(ctx context.Context, key string, members ...any) *redis.IntCmd
	SRem(ctx context.Context, key string, members ...any) *redis.IntCmd
	SMembers(ctx context.Context, key string) *redis.StringSliceCmd
}

const DefaultKeyPrefix = "auth"

// Store implements auth.SessionAdapter. Each session is a JSON document
// stored at <prefix>:session:<id> that redis expires with the session, and
// every user has a set of session ids at <prefix>:user_sessions:<user id>.
type Store struct {
	client Client
	prefix string
	now    func() time.Time
}

var _ auth.SessionAdapter = (*Store)(nil)

type Option func(*Store)

// WithKeyPrefix changes the key namespace, "auth" by default.
func WithKeyPrefix(prefix string) Option {
	return func(s *Store) {
		if prefix != "" {
			s.prefix = prefix
		}
	}
}

// WithClock sets the clock used to compute key TTLs.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

func New(client Client, opts ...Option) *Store {
	s := &Store{
		client: client,
		prefix: DefaultKeyPrefix,
		now:    time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

type payload struct {
	ID         string         `json:"id"`
	UserID     string         `json:"user_id"`
	ExpiresAt  time.Time      `json:"expires_at"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

func (s *Store) sessionKey(id string) string {
	return fmt.Sprintf("%s:session:%s", s.prefix, id)
}

func (s *Store) userKey(userID string) string {
	return fmt.Sprintf("%s:user_sessions:%s", s.prefix, userID)
}

func (s *Store) GetSession(ctx context.Context, sessionID string) (*auth.SessionRecord, error) {
	raw, err := s.client.Get(ctx, s.sessionKey(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, auth.ErrSessionNotFound
		}
		return nil, err
	}

	var p payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", sessionID, err)
	}

	return &auth.SessionRecord{
		ID:         p.ID,
		UserID:     p.UserID,
		ExpiresAt:  p.ExpiresAt.UTC(),
		Attributes: p.Attributes,
	}, nil
}

// GetSessionsByUserID returns the user's sessions ordered by expiration.
// Ids whose document redis already expired are pruned from the user set.
func (s *Store) GetSessionsByUserID(ctx context.Context, userID string) ([]*auth.SessionRecord, error) {
	ids, err := s.client.SMembers(ctx, s.userKey(userID)).Result()
	if err != nil {
		return nil, err
	}

	out := make([]*auth.SessionRecord, 0, len(ids))
	var stale []any
	for _, id := range ids {
		record, err := s.GetSession(ctx, id)
		if errors.Is(err, auth.ErrSessionNotFound) {
			stale = append(stale, id)
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, record)
	}

	if len(stale) > 0 {
		if err := s.client.SRem(ctx, s.userKey(userID), stale...).Err(); err != nil {
			return nil, err
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ExpiresAt.Before(out[j].ExpiresAt) })
	return out, nil
}

// InsertSession stores the session with a TTL matching its expiration. A
// session that is already expired is not stored.
func (s *Store) InsertSession(ctx context.Context, session *auth.SessionRecord) error {
	ttl := session.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return nil
	}

	raw, err := json.Marshal(payload{
		ID:         session.ID,
		UserID:     session.UserID,
		ExpiresAt:  session.ExpiresAt.UTC(),
		Attributes: session.Attributes,
	})
	if err != nil {
		return fmt.Errorf("encode session %s: %w", session.ID, err)
	}

	if err := s.client.Set(ctx, s.sessionKey(session.ID), raw, ttl).Err(); err != nil {
		return err
	}
	return s.client.SAdd(ctx, s.userKey(session.UserID), session.ID).Err()
}

func (s *Store) DeleteSession(ctx context.Context, sessionID string) error {
	record, err := s.GetSession(ctx, sessionID)
	if errors.Is(err, auth.ErrSessionNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	if err := s.client.Del(ctx, s.sessionKey(sessionID)).Err(); err != nil {
		return err
	}
	return s.client.SRem(ctx, s.userKey(record.UserID), sessionID).Err()
}

func (s *Store) DeleteSessionsByUserID(ctx context.Context, userID string) error {
	ids, err := s.client.SMembers(ctx, s.userKey(userID)).Result()
	if err != nil {
		return err
	}

	keys := make([]string, 0, len(ids)+1)
	for _, id := range ids {
		keys = append(keys, s.sessionKey(id))
	}
	keys = append(keys, s.userKey(userID))

	return s.client.Del(ctx, keys...).Err()
}
