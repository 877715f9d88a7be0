// Package repository implements auth.Adapter on top of Bun, for sqlite and
// postgres databases.
package repository

import (
	"context"
	"errors"
	"maps"
	"time"

	auth "github.com/goliatone/go-auth-core"
	"github.com/uptrace/bun"
)

// Repository stores users, keys and sessions in the auth_user, auth_key and
// auth_session tables.
type Repository struct {
	db bun.IDB
}

var (
	_ auth.Adapter    = (*Repository)(nil)
	_ auth.Transactor = (*Repository)(nil)
)

// New returns a Repository over db. db can be a *bun.DB or a bun.Tx.
func New(db bun.IDB) *Repository {
	return &Repository{db: db}
}

// Validate reports whether the repository has a database handle.
func (r *Repository) Validate() error {
	if r == nil || r.db == nil {
		return errors.New("repository db should be initialized")
	}
	return nil
}

// RunInTx runs fn in a database transaction. The adapter given to fn is bound
// to that transaction.
func (r *Repository) RunInTx(ctx context.Context, fn func(ctx context.Context, tx auth.Adapter) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		if err := r.Validate(); err != nil {
			return err
		}
		return r.runInTx(ctx, func(ctx context.Context, tx *Repository) error {
			return fn(ctx, tx)
		})
	}
}

func (r *Repository) runInTx(ctx context.Context, fn func(ctx context.Context, tx *Repository) error) error {
	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return fn(ctx, &Repository{db: tx})
	})
}

func (r *Repository) GetUser(ctx context.Context, userID string) (*auth.UserRecord, error) {
	var model UserModel
	err := r.db.NewSelect().
		Model(&model).
		Where("id = ?", userID).
		Scan(ctx)
	if err != nil {
		return nil, translate(err, auth.ErrUserNotFound)
	}
	return model.toRecord(), nil
}

func (r *Repository) InsertUser(ctx context.Context, user *auth.UserRecord) error {
	_, err := r.db.NewInsert().
		Model(fromUserRecord(user)).
		Exec(ctx)
	if isUniqueViolation(err) {
		return auth.NewConstraintViolation(err)
	}
	return translate(err, nil)
}

// UpdateUser merges attributes into the stored ones inside a transaction.
func (r *Repository) UpdateUser(ctx context.Context, userID string, attributes map[string]any) (*auth.UserRecord, error) {
	var out *auth.UserRecord
	err := r.runInTx(ctx, func(ctx context.Context, tx *Repository) error {
		current, err := tx.GetUser(ctx, userID)
		if err != nil {
			return err
		}

		maps.Copy(current.Attributes, attributes)
		model := fromUserRecord(current)

		_, err = tx.db.NewUpdate().
			Model(model).
			Column("attributes").
			WherePK().
			Exec(ctx)
		if isUniqueViolation(err) {
			return auth.NewConstraintViolation(err)
		}
		if err != nil {
			return translate(err, nil)
		}

		out = model.toRecord()
		return nil
	})
	return out, err
}

func (r *Repository) DeleteUser(ctx context.Context, userID string) error {
	_, err := r.db.NewDelete().
		Model((*UserModel)(nil)).
		Where("id = ?", userID).
		Exec(ctx)
	return translate(err, nil)
}

// CreateUserWithKey inserts the user and its first key in one transaction.
func (r *Repository) CreateUserWithKey(ctx context.Context, user *auth.UserRecord, key *auth.KeyRecord) error {
	return r.runInTx(ctx, func(ctx context.Context, tx *Repository) error {
		if err := tx.InsertUser(ctx, user); err != nil {
			return err
		}
		if key == nil {
			return nil
		}
		return tx.InsertKey(ctx, key)
	})
}

func (r *Repository) GetKey(ctx context.Context, providerID, providerUserID string) (*auth.KeyRecord, error) {
	var model KeyModel
	err := r.db.NewSelect().
		Model(&model).
		Where("provider_id = ? AND provider_user_id = ?", providerID, providerUserID).
		Scan(ctx)
	if err != nil {
		return nil, translate(err, auth.ErrKeyNotFound)
	}
	return model.toRecord(), nil
}

func (r *Repository) GetKeysByUserID(ctx context.Context, userID string) ([]*auth.KeyRecord, error) {
	var models []KeyModel
	err := r.db.NewSelect().
		Model(&models).
		Where("user_id = ?", userID).
		Order("provider_id ASC", "provider_user_id ASC").
		Scan(ctx)
	if err != nil && !isNotFound(err) {
		return nil, translate(err, nil)
	}

	keys := make([]*auth.KeyRecord, len(models))
	for i := range models {
		keys[i] = models[i].toRecord()
	}
	return keys, nil
}

func (r *Repository) InsertKey(ctx context.Context, key *auth.KeyRecord) error {
	_, err := r.db.NewInsert().
		Model(fromKeyRecord(key)).
		Exec(ctx)
	if isUniqueViolation(err) {
		return auth.ErrDuplicateKey
	}
	return translate(err, nil)
}

func (r *Repository) UpdateKey(ctx context.Context, providerID, providerUserID string, hashedSecret *string) (*auth.KeyRecord, error) {
	var out *auth.KeyRecord
	err := r.runInTx(ctx, func(ctx context.Context, tx *Repository) error {
		current, err := tx.GetKey(ctx, providerID, providerUserID)
		if err != nil {
			return err
		}

		current.HashedSecret = hashedSecret
		model := fromKeyRecord(current)

		_, err = tx.db.NewUpdate().
			Model(model).
			Column("hashed_secret").
			WherePK().
			Exec(ctx)
		if err != nil {
			return translate(err, nil)
		}

		out = model.toRecord()
		return nil
	})
	return out, err
}

func (r *Repository) DeleteKey(ctx context.Context, providerID, providerUserID string) error {
	_, err := r.db.NewDelete().
		Model((*KeyModel)(nil)).
		Where("provider_id = ? AND provider_user_id = ?", providerID, providerUserID).
		Exec(ctx)
	return translate(err, nil)
}

func (r *Repository) DeleteKeysByUserID(ctx context.Context, userID string) error {
	_, err := r.db.NewDelete().
		Model((*KeyModel)(nil)).
		Where("user_id = ?", userID).
		Exec(ctx)
	return translate(err, nil)
}

func (r *Repository) GetSession(ctx context.Context, sessionID string) (*auth.SessionRecord, error) {
	var model SessionModel
	err := r.db.NewSelect().
		Model(&model).
		Where("id = ?", sessionID).
		Scan(ctx)
	if err != nil {
		return nil, translate(err, auth.ErrSessionNotFound)
	}
	return model.toRecord(), nil
}

func (r *Repository) GetSessionsByUserID(ctx context.Context, userID string) ([]*auth.SessionRecord, error) {
	var models []SessionModel
	err := r.db.NewSelect().
		Model(&models).
		Where("user_id = ?", userID).
		Order("expires_at ASC").
		Scan(ctx)
	if err != nil && !isNotFound(err) {
		return nil, translate(err, nil)
	}

	sessions := make([]*auth.SessionRecord, len(models))
	for i := range models {
		sessions[i] = models[i].toRecord()
	}
	return sessions, nil
}

func (r *Repository) InsertSession(ctx context.Context, session *auth.SessionRecord) error {
	_, err := r.db.NewInsert().
		Model(fromSessionRecord(session)).
		Exec(ctx)
	return translate(err, nil)
}

func (r *Repository) DeleteSession(ctx context.Context, sessionID string) error {
	_, err := r.db.NewDelete().
		Model((*SessionModel)(nil)).
		Where("id = ?", sessionID).
		Exec(ctx)
	return translate(err, nil)
}

func (r *Repository) DeleteSessionsByUserID(ctx context.Context, userID string) error {
	_, err := r.db.NewDelete().
		Model((*SessionModel)(nil)).
		Where("user_id = ?", userID).
		Exec(ctx)
	return translate(err, nil)
}

// DeleteExpiredSessions removes every session expiring at or before now and
// returns how many rows were removed. Hosts can run it periodically, reads
// never depend on it.
func (r *Repository) DeleteExpiredSessions(ctx context.Context, now time.Time) (int, error) {
	res, err := r.db.NewDelete().
		Model((*SessionModel)(nil)).
		Where("expires_at <= ?", now.UTC()).
		Exec(ctx)
	if err != nil {
		return 0, translate(err, nil)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}
