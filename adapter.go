package auth

import "context"

// UserAdapter persists users and their keys.
//
// Adapters report absent records with ErrUserNotFound and ErrKeyNotFound, key
// collisions with ErrDuplicateKey and user attribute constraint failures with
// NewConstraintViolation. Delete operations succeed when nothing matched.
type UserAdapter interface {
	GetUser(ctx context.Context, userID string) (*UserRecord, error)
	InsertUser(ctx context.Context, user *UserRecord) error
	UpdateUser(ctx context.Context, userID string, attributes map[string]any) (*UserRecord, error)
	DeleteUser(ctx context.Context, userID string) error

	// CreateUserWithKey must be atomic: either both records are stored or
	// neither is visible to other readers.
	CreateUserWithKey(ctx context.Context, user *UserRecord, key *KeyRecord) error

	GetKey(ctx context.Context, providerID, providerUserID string) (*KeyRecord, error)
	GetKeysByUserID(ctx context.Context, userID string) ([]*KeyRecord, error)
	InsertKey(ctx context.Context, key *KeyRecord) error
	UpdateKey(ctx context.Context, providerID, providerUserID string, hashedSecret *string) (*KeyRecord, error)
	DeleteKey(ctx context.Context, providerID, providerUserID string) error
	DeleteKeysByUserID(ctx context.Context, userID string) error
}

// SessionAdapter persists sessions. GetSession may return expired records,
// expiration is evaluated by the core.
type SessionAdapter interface {
	GetSession(ctx context.Context, sessionID string) (*SessionRecord, error)
	GetSessionsByUserID(ctx context.Context, userID string) ([]*SessionRecord, error)
	InsertSession(ctx context.Context, session *SessionRecord) error
	DeleteSession(ctx context.Context, sessionID string) error
	DeleteSessionsByUserID(ctx context.Context, userID string) error
}

// Adapter is the full storage capability set the core depends on.
type Adapter interface {
	UserAdapter
	SessionAdapter
}

// Transactor is implemented by adapters that can run several operations in a
// single transaction. The adapter passed to fn is bound to the transaction.
type Transactor interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context, tx Adapter) error) error
}

// CombineAdapters builds an Adapter that keeps users and keys in one backend
// and sessions in another, e.g. SQL plus redis. The result is not a Transactor.
func CombineAdapters(users UserAdapter, sessions SessionAdapter) Adapter {
	return combinedAdapter{UserAdapter: users, SessionAdapter: sessions}
}

type combinedAdapter struct {
	UserAdapter
	SessionAdapter
}

// runInTx runs fn inside a transaction when the adapter supports one,
// otherwise it runs fn directly against the adapter.
func runInTx(ctx context.Context, adapter Adapter, fn func(ctx context.Context, tx Adapter) error) error {
	if tx, ok := adapter.(Transactor); ok {
		return tx.RunInTx(ctx, fn)
	}
	return fn(ctx, adapter)
}
