// Package memory is an in-process auth.Adapter. It is meant for tests and
// single node tools; state is lost on restart.
package memory

import (
	"context"
	"fmt"
	"maps"
	"reflect"
	"sort"
	"sync"

	auth "github.com/goliatone/go-auth-core"
)

type keyID struct {
	providerID     string
	providerUserID string
}

type state struct {
	users    map[string]*auth.UserRecord
	keys     map[keyID]*auth.KeyRecord
	sessions map[string]*auth.SessionRecord
	unique   []string
}

func newState(unique []string) *state {
	return &state{
		users:    map[string]*auth.UserRecord{},
		keys:     map[keyID]*auth.KeyRecord{},
		sessions: map[string]*auth.SessionRecord{},
		unique:   unique,
	}
}

func (s *state) clone() *state {
	out := newState(s.unique)
	for k, v := range s.users {
		out.users[k] = copyUser(v)
	}
	for k, v := range s.keys {
		out.keys[k] = copyKey(v)
	}
	for k, v := range s.sessions {
		out.sessions[k] = copySession(v)
	}
	return out
}

// Store is a mutex guarded Adapter that also implements auth.Transactor.
type Store struct {
	mu    sync.Mutex
	state *state
}

var (
	_ auth.Adapter    = (*Store)(nil)
	_ auth.Transactor = (*Store)(nil)
)

// Option configures a Store.
type Option func(*Store)

// WithUniqueAttributes enforces uniqueness of the named user attributes, the
// way a unique index would in SQL.
func WithUniqueAttributes(names ...string) Option {
	return func(s *Store) {
		s.state.unique = append(s.state.unique, names...)
	}
}

// New returns an empty Store.
func New(opts ...Option) *Store {
	s := &Store{state: newState(nil)}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// RunInTx runs fn against a copy of the state and publishes it only when fn
// succeeds. Transactions are serialized.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, tx auth.Adapter) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.state.clone()
	if err := fn(ctx, &txView{state: work}); err != nil {
		return err
	}
	s.state = work
	return nil
}

func (s *Store) view(ctx context.Context, fn func(v *txView) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(&txView{state: s.state})
}

// Counts reports the number of stored users, keys and sessions.
func (s *Store) Counts() (users, keys, sessions int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.state.users), len(s.state.keys), len(s.state.sessions)
}

func (s *Store) GetUser(ctx context.Context, userID string) (out *auth.UserRecord, err error) {
	err = s.view(ctx, func(v *txView) error {
		out, err = v.GetUser(ctx, userID)
		return err
	})
	return out, err
}

func (s *Store) InsertUser(ctx context.Context, user *auth.UserRecord) error {
	return s.view(ctx, func(v *txView) error { return v.InsertUser(ctx, user) })
}

func (s *Store) UpdateUser(ctx context.Context, userID string, attributes map[string]any) (out *auth.UserRecord, err error) {
	err = s.view(ctx, func(v *txView) error {
		out, err = v.UpdateUser(ctx, userID, attributes)
		return err
	})
	return out, err
}

func (s *Store) DeleteUser(ctx context.Context, userID string) error {
	return s.view(ctx, func(v *txView) error { return v.DeleteUser(ctx, userID) })
}

func (s *Store) CreateUserWithKey(ctx context.Context, user *auth.UserRecord, key *auth.KeyRecord) error {
	return s.view(ctx, func(v *txView) error { return v.CreateUserWithKey(ctx, user, key) })
}

func (s *Store) GetKey(ctx context.Context, providerID, providerUserID string) (out *auth.KeyRecord, err error) {
	err = s.view(ctx, func(v *txView) error {
		out, err = v.GetKey(ctx, providerID, providerUserID)
		return err
	})
	return out, err
}

func (s *Store) GetKeysByUserID(ctx context.Context, userID string) (out []*auth.KeyRecord, err error) {
	err = s.view(ctx, func(v *txView) error {
		out, err = v.GetKeysByUserID(ctx, userID)
		return err
	})
	return out, err
}

func (s *Store) InsertKey(ctx context.Context, key *auth.KeyRecord) error {
	return s.view(ctx, func(v *txView) error { return v.InsertKey(ctx, key) })
}

func (s *Store) UpdateKey(ctx context.Context, providerID, providerUserID string, hashedSecret *string) (out *auth.KeyRecord, err error) {
	err = s.view(ctx, func(v *txView) error {
		out, err = v.UpdateKey(ctx, providerID, providerUserID, hashedSecret)
		return err
	})
	return out, err
}

func (s *Store) DeleteKey(ctx context.Context, providerID, providerUserID string) error {
	return s.view(ctx, func(v *txView) error { return v.DeleteKey(ctx, providerID, providerUserID) })
}

func (s *Store) DeleteKeysByUserID(ctx context.Context, userID string) error {
	return s.view(ctx, func(v *txView) error { return v.DeleteKeysByUserID(ctx, userID) })
}

func (s *Store) GetSession(ctx context.Context, sessionID string) (out *auth.SessionRecord, err error) {
	err = s.view(ctx, func(v *txView) error {
		out, err = v.GetSession(ctx, sessionID)
		return err
	})
	return out, err
}

func (s *Store) GetSessionsByUserID(ctx context.Context, userID string) (out []*auth.SessionRecord, err error) {
	err = s.view(ctx, func(v *txView) error {
		out, err = v.GetSessionsByUserID(ctx, userID)
		return err
	})
	return out, err
}

func (s *Store) InsertSession(ctx context.Context, session *auth.SessionRecord) error {
	return s.view(ctx, func(v *txView) error { return v.InsertSession(ctx, session) })
}

func (s *Store) DeleteSession(ctx context.Context, sessionID string) error {
	return s.view(ctx, func(v *txView) error { return v.DeleteSession(ctx, sessionID) })
}

func (s *Store) DeleteSessionsByUserID(ctx context.Context, userID string) error {
	return s.view(ctx, func(v *txView) error { return v.DeleteSessionsByUserID(ctx, userID) })
}

// txView operates on a state without locking; the caller holds the lock.
type txView struct {
	state *state
}

var _ auth.Adapter = (*txView)(nil)

func (v *txView) GetUser(_ context.Context, userID string) (*auth.UserRecord, error) {
	u, ok := v.state.users[userID]
	if !ok {
		return nil, auth.ErrUserNotFound
	}
	return copyUser(u), nil
}

func (v *txView) InsertUser(_ context.Context, user *auth.UserRecord) error {
	if err := v.checkUser(user.ID, user.Attributes, true); err != nil {
		return err
	}
	v.state.users[user.ID] = copyUser(user)
	return nil
}

func (v *txView) UpdateUser(_ context.Context, userID string, attributes map[string]any) (*auth.UserRecord, error) {
	current, ok := v.state.users[userID]
	if !ok {
		return nil, auth.ErrUserNotFound
	}

	merged := maps.Clone(current.Attributes)
	if merged == nil {
		merged = map[string]any{}
	}
	maps.Copy(merged, attributes)

	if err := v.checkUser(userID, merged, false); err != nil {
		return nil, err
	}

	next := &auth.UserRecord{ID: userID, Attributes: merged}
	v.state.users[userID] = next
	return copyUser(next), nil
}

func (v *txView) DeleteUser(_ context.Context, userID string) error {
	delete(v.state.users, userID)
	return nil
}

func (v *txView) CreateUserWithKey(ctx context.Context, user *auth.UserRecord, key *auth.KeyRecord) error {
	if err := v.checkUser(user.ID, user.Attributes, true); err != nil {
		return err
	}
	if key != nil {
		if _, taken := v.state.keys[keyID{key.ProviderID, key.ProviderUserID}]; taken {
			return auth.ErrDuplicateKey
		}
	}

	v.state.users[user.ID] = copyUser(user)
	if key != nil {
		v.state.keys[keyID{key.ProviderID, key.ProviderUserID}] = copyKey(key)
	}
	return nil
}

func (v *txView) checkUser(userID string, attributes map[string]any, isNew bool) error {
	if _, exists := v.state.users[userID]; exists && isNew {
		return auth.NewConstraintViolation(fmt.Errorf("unique violation: id %q", userID))
	}

	for _, name := range v.state.unique {
		value, ok := attributes[name]
		if !ok || value == nil {
			continue
		}
		for id, other := range v.state.users {
			if id == userID {
				continue
			}
			if ov, ok := other.Attributes[name]; ok && reflect.DeepEqual(ov, value) {
				return auth.NewConstraintViolation(fmt.Errorf("unique violation: %s", name))
			}
		}
	}
	return nil
}

func (v *txView) GetKey(_ context.Context, providerID, providerUserID string) (*auth.KeyRecord, error) {
	k, ok := v.state.keys[keyID{providerID, providerUserID}]
	if !ok {
		return nil, auth.ErrKeyNotFound
	}
	return copyKey(k), nil
}

func (v *txView) GetKeysByUserID(_ context.Context, userID string) ([]*auth.KeyRecord, error) {
	out := []*auth.KeyRecord{}
	for _, k := range v.state.keys {
		if k.UserID == userID {
			out = append(out, copyKey(k))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ProviderID != out[j].ProviderID {
			return out[i].ProviderID < out[j].ProviderID
		}
		return out[i].ProviderUserID < out[j].ProviderUserID
	})
	return out, nil
}

func (v *txView) InsertKey(_ context.Context, key *auth.KeyRecord) error {
	id := keyID{key.ProviderID, key.ProviderUserID}
	if _, taken := v.state.keys[id]; taken {
		return auth.ErrDuplicateKey
	}
	v.state.keys[id] = copyKey(key)
	return nil
}

func (v *txView) UpdateKey(_ context.Context, providerID, providerUserID string, hashedSecret *string) (*auth.KeyRecord, error) {
	k, ok := v.state.keys[keyID{providerID, providerUserID}]
	if !ok {
		return nil, auth.ErrKeyNotFound
	}
	next := copyKey(k)
	next.HashedSecret = copyString(hashedSecret)
	v.state.keys[keyID{providerID, providerUserID}] = next
	return copyKey(next), nil
}

func (v *txView) DeleteKey(_ context.Context, providerID, providerUserID string) error {
	delete(v.state.keys, keyID{providerID, providerUserID})
	return nil
}

func (v *txView) DeleteKeysByUserID(_ context.Context, userID string) error {
	for id, k := range v.state.keys {
		if k.UserID == userID {
			delete(v.state.keys, id)
		}
	}
	return nil
}

func (v *txView) GetSession(_ context.Context, sessionID string) (*auth.SessionRecord, error) {
	s, ok := v.state.sessions[sessionID]
	if !ok {
		return nil, auth.ErrSessionNotFound
	}
	return copySession(s), nil
}

func (v *txView) GetSessionsByUserID(_ context.Context, userID string) ([]*auth.SessionRecord, error) {
	out := []*auth.SessionRecord{}
	for _, s := range v.state.sessions {
		if s.UserID == userID {
			out = append(out, copySession(s))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExpiresAt.Before(out[j].ExpiresAt) })
	return out, nil
}

func (v *txView) InsertSession(_ context.Context, session *auth.SessionRecord) error {
	if _, exists := v.state.sessions[session.ID]; exists {
		return fmt.Errorf("session %q already exists", session.ID)
	}
	v.state.sessions[session.ID] = copySession(session)
	return nil
}

func (v *txView) DeleteSession(_ context.Context, sessionID string) error {
	delete(v.state.sessions, sessionID)
	return nil
}

func (v *txView) DeleteSessionsByUserID(_ context.Context, userID string) error {
	for id, s := range v.state.sessions {
		if s.UserID == userID {
			delete(v.state.sessions, id)
		}
	}
	return nil
}

func copyUser(u *auth.UserRecord) *auth.UserRecord {
	return &auth.UserRecord{ID: u.ID, Attributes: maps.Clone(u.Attributes)}
}

func copyKey(k *auth.KeyRecord) *auth.KeyRecord {
	return &auth.KeyRecord{
		ProviderID:     k.ProviderID,
		ProviderUserID: k.ProviderUserID,
		UserID:         k.UserID,
		HashedSecret:   copyString(k.HashedSecret),
	}
}

func copySession(s *auth.SessionRecord) *auth.SessionRecord {
	return &auth.SessionRecord{
		ID:         s.ID,
		UserID:     s.UserID,
		ExpiresAt:  s.ExpiresAt,
		Attributes: maps.Clone(s.Attributes),
	}
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
