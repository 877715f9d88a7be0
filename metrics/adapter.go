package metrics

import (
	"context"
	"time"

	auth "github.com/goliatone/go-auth-core"
)

// InstrumentedAdapter records a counter and a latency sample for every call
// it forwards to the wrapped adapter.
type InstrumentedAdapter struct {
	next      auth.Adapter
	collector *Collector
}

var (
	_ auth.Adapter    = (*InstrumentedAdapter)(nil)
	_ auth.Transactor = (*InstrumentedAdapter)(nil)
)

// Wrap instruments adapter with the collector.
func (c *Collector) Wrap(adapter auth.Adapter) *InstrumentedAdapter {
	return &InstrumentedAdapter{next: adapter, collector: c}
}

// RunInTx delegates to the wrapped adapter when it is a Transactor, the
// transaction bound adapter is instrumented as well. Otherwise fn runs
// directly against the instrumented adapter.
func (a *InstrumentedAdapter) RunInTx(ctx context.Context, fn func(ctx context.Context, tx auth.Adapter) error) error {
	start := time.Now()

	tx, ok := a.next.(auth.Transactor)
	if !ok {
		return fn(ctx, a)
	}

	err := tx.RunInTx(ctx, func(ctx context.Context, inner auth.Adapter) error {
		return fn(ctx, a.collector.Wrap(inner))
	})
	a.collector.observe("run_in_tx", start, err)
	return err
}

func (a *InstrumentedAdapter) GetUser(ctx context.Context, userID string) (*auth.UserRecord, error) {
	start := time.Now()
	out, err := a.next.GetUser(ctx, userID)
	a.collector.observe("get_user", start, err)
	return out, err
}

func (a *InstrumentedAdapter) InsertUser(ctx context.Context, user *auth.UserRecord) error {
	start := time.Now()
	err := a.next.InsertUser(ctx, user)
	a.collector.observe("insert_user", start, err)
	return err
}

func (a *InstrumentedAdapter) UpdateUser(ctx context.Context, userID string, attributes map[string]any) (*auth.UserRecord, error) {
	start := time.Now()
	out, err := a.next.UpdateUser(ctx, userID, attributes)
	a.collector.observe("update_user", start, err)
	return out, err
}

func (a *InstrumentedAdapter) DeleteUser(ctx context.Context, userID string) error {
	start := time.Now()
	err := a.next.DeleteUser(ctx, userID)
	a.collector.observe("delete_user", start, err)
	return err
}

func (a *InstrumentedAdapter) CreateUserWithKey(ctx context.Context, user *auth.UserRecord, key *auth.KeyRecord) error {
	start := time.Now()
	err := a.next.CreateUserWithKey(ctx, user, key)
	a.collector.observe("create_user_with_key", start, err)
	return err
}

func (a *InstrumentedAdapter) GetKey(ctx context.Context, providerID, providerUserID string) (*auth.KeyRecord, error) {
	start := time.Now()
	out, err := a.next.GetKey(ctx, providerID, providerUserID)
	a.collector.observe("get_key", start, err)
	return out, err
}

func (a *InstrumentedAdapter) GetKeysByUserID(ctx context.Context, userID string) ([]*auth.KeyRecord, error) {
	start := time.Now()
	out, err := a.next.GetKeysByUserID(ctx, userID)
	a.collector.observe("get_keys_by_user_id", start, err)
	return out, err
}

func (a *InstrumentedAdapter) InsertKey(ctx context.Context, key *auth.KeyRecord) error {
	start := time.Now()
	err := a.next.InsertKey(ctx, key)
	a.collector.observe("insert_key", start, err)
	return err
}

func (a *InstrumentedAdapter) UpdateKey(ctx context.Context, providerID, providerUserID string, hashedSecret *string) (*auth.KeyRecord, error) {
	start := time.Now()
	out, err := a.next.UpdateKey(ctx, providerID, providerUserID, hashedSecret)
	a.collector.observe("update_key", start, err)
	return out, err
}

func (a *InstrumentedAdapter) DeleteKey(ctx context.Context, providerID, providerUserID string) error {
	start := time.Now()
	err := a.next.DeleteKey(ctx, providerID, providerUserID)
	a.collector.observe("delete_key", start, err)
	return err
}

func (a *InstrumentedAdapter) DeleteKeysByUserID(ctx context.Context, userID string) error {
	start := time.Now()
	err := a.next.DeleteKeysByUserID(ctx, userID)
	a.collector.observe("delete_keys_by_user_id", start, err)
	return err
}

func (a *InstrumentedAdapter) GetSession(ctx context.Context, sessionID string) (*auth.SessionRecord, error) {
	start := time.Now()
	out, err := a.next.GetSession(ctx, sessionID)
	a.collector.observe("get_session", start, err)
	return out, err
}

func (a *InstrumentedAdapter) GetSessionsByUserID(ctx context.Context, userID string) ([]*auth.SessionRecord, error) {
	start := time.Now()
	out, err := a.next.GetSessionsByUserID(ctx, userID)
	a.collector.observe("get_sessions_by_user_id", start, err)
	return out, err
}

func (a *InstrumentedAdapter) InsertSession(ctx context.Context, session *auth.SessionRecord) error {
	start := time.Now()
	err := a.next.InsertSession(ctx, session)
	a.collector.observe("insert_session", start, err)
	return err
}

func (a *InstrumentedAdapter) DeleteSession(ctx context.Context, sessionID string) error {
	start := time.Now()
	err := a.next.DeleteSession(ctx, sessionID)
	a.collector.observe("delete_session", start, err)
	return err
}

func (a *InstrumentedAdapter) DeleteSessionsByUserID(ctx context.Context, userID string) error {
	start := time.Now()
	err := a.next.DeleteSessionsByUserID(ctx, userID)
	a.collector.observe("delete_sessions_by_user_id", start, err)
	return err
}
