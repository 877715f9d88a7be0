package repository

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	auth "github.com/goliatone/go-auth-core"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"golang.org/x/crypto/bcrypt"
)

const sqliteUniqueUsername = `CREATE UNIQUE INDEX auth_user_username_idx
    ON auth_user (json_extract(attributes, '$.username'));`

func setupRepository(t *testing.T) (*Repository, *bun.DB) {
	t.Helper()

	db, err := OpenSQLite(":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)

	ctx := context.Background()
	require.NoError(t, CreateSchema(ctx, db))
	// second run is a no-op
	require.NoError(t, CreateSchema(ctx, db))

	_, err = db.ExecContext(ctx, sqliteUniqueUsername)
	require.NoError(t, err)

	t.Cleanup(func() { _ = db.Close() })

	repo := New(db)
	require.NoError(t, repo.Validate())
	return repo, db
}

func hashed(s string) *string { return &s }

func TestRepositoryValidate(t *testing.T) {
	assert.Error(t, (&Repository{}).Validate())

	err := New(nil).RunInTx(context.Background(), func(context.Context, auth.Adapter) error {
		t.Fatal("fn must not run without a database")
		return nil
	})
	assert.Error(t, err)
}

func TestRepositoryUsers(t *testing.T) {
	repo, _ := setupRepository(t)
	ctx := context.Background()

	_, err := repo.GetUser(ctx, "missing")
	assert.True(t, auth.IsUserNotFound(err))

	err = repo.InsertUser(ctx, &auth.UserRecord{
		ID:         "u1",
		Attributes: map[string]any{"username": "alice", "role": "admin"},
	})
	require.NoError(t, err)

	user, err := repo.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Attributes["username"])
	assert.Equal(t, "admin", user.Attributes["role"])

	err = repo.InsertUser(ctx, &auth.UserRecord{ID: "u1"})
	assert.True(t, auth.IsConstraintViolation(err))

	updated, err := repo.UpdateUser(ctx, "u1", map[string]any{"role": "viewer"})
	require.NoError(t, err)
	assert.Equal(t, "viewer", updated.Attributes["role"])
	assert.Equal(t, "alice", updated.Attributes["username"])

	_, err = repo.UpdateUser(ctx, "missing", map[string]any{"role": "viewer"})
	assert.True(t, auth.IsUserNotFound(err))

	require.NoError(t, repo.DeleteUser(ctx, "u1"))
	require.NoError(t, repo.DeleteUser(ctx, "u1"))

	_, err = repo.GetUser(ctx, "u1")
	assert.True(t, auth.IsUserNotFound(err))
}

func TestRepositoryUniqueAttributes(t *testing.T) {
	repo, _ := setupRepository(t)
	ctx := context.Background()

	require.NoError(t, repo.InsertUser(ctx, &auth.UserRecord{
		ID: "u1", Attributes: map[string]any{"username": "alice"},
	}))
	require.NoError(t, repo.InsertUser(ctx, &auth.UserRecord{
		ID: "u2", Attributes: map[string]any{"username": "bob"},
	}))

	err := repo.InsertUser(ctx, &auth.UserRecord{
		ID: "u3", Attributes: map[string]any{"username": "alice"},
	})
	assert.True(t, auth.IsConstraintViolation(err))

	_, err = repo.UpdateUser(ctx, "u2", map[string]any{"username": "alice"})
	assert.True(t, auth.IsConstraintViolation(err))

	user, err := repo.GetUser(ctx, "u2")
	require.NoError(t, err)
	assert.Equal(t, "bob", user.Attributes["username"])
}

func TestRepositoryCreateUserWithKeyIsAtomic(t *testing.T) {
	repo, _ := setupRepository(t)
	ctx := context.Background()

	require.NoError(t, repo.CreateUserWithKey(ctx,
		&auth.UserRecord{ID: "u1", Attributes: map[string]any{}},
		&auth.KeyRecord{ProviderID: "email", ProviderUserID: "a@x.com", UserID: "u1", HashedSecret: hashed("h")},
	))

	err := repo.CreateUserWithKey(ctx,
		&auth.UserRecord{ID: "u2", Attributes: map[string]any{}},
		&auth.KeyRecord{ProviderID: "email", ProviderUserID: "a@x.com", UserID: "u2"},
	)
	assert.True(t, auth.IsDuplicateKey(err))

	_, err = repo.GetUser(ctx, "u2")
	assert.True(t, auth.IsUserNotFound(err), "user insert must roll back with the key")

	err = repo.CreateUserWithKey(ctx,
		&auth.UserRecord{ID: "u1", Attributes: map[string]any{}},
		&auth.KeyRecord{ProviderID: "github", ProviderUserID: "42", UserID: "u1"},
	)
	assert.True(t, auth.IsConstraintViolation(err))

	_, err = repo.GetKey(ctx, "github", "42")
	assert.True(t, auth.IsKeyNotFound(err))
}

func TestRepositoryKeys(t *testing.T) {
	repo, _ := setupRepository(t)
	ctx := context.Background()

	require.NoError(t, repo.InsertUser(ctx, &auth.UserRecord{ID: "u1"}))
	require.NoError(t, repo.InsertKey(ctx, &auth.KeyRecord{
		ProviderID: "github", ProviderUserID: "42", UserID: "u1",
	}))
	require.NoError(t, repo.InsertKey(ctx, &auth.KeyRecord{
		ProviderID: "email", ProviderUserID: "a@x.com", UserID: "u1", HashedSecret: hashed("h1"),
	}))

	err := repo.InsertKey(ctx, &auth.KeyRecord{ProviderID: "github", ProviderUserID: "42", UserID: "u2"})
	assert.True(t, auth.IsDuplicateKey(err))

	keys, err := repo.GetKeysByUserID(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, keys, 2)
	assert.Equal(t, "email", keys[0].ProviderID)
	assert.Equal(t, "github", keys[1].ProviderID)
	assert.Nil(t, keys[1].HashedSecret)

	none, err := repo.GetKeysByUserID(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, none)

	updated, err := repo.UpdateKey(ctx, "email", "a@x.com", hashed("h2"))
	require.NoError(t, err)
	require.NotNil(t, updated.HashedSecret)
	assert.Equal(t, "h2", *updated.HashedSecret)

	key, err := repo.GetKey(ctx, "email", "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, "h2", *key.HashedSecret)

	_, err = repo.UpdateKey(ctx, "email", "missing", hashed("h"))
	assert.True(t, auth.IsKeyNotFound(err))

	require.NoError(t, repo.DeleteKey(ctx, "github", "42"))
	require.NoError(t, repo.DeleteKey(ctx, "github", "42"))

	require.NoError(t, repo.DeleteKeysByUserID(ctx, "u1"))
	keys, err = repo.GetKeysByUserID(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestRepositorySessions(t *testing.T) {
	repo, _ := setupRepository(t)
	ctx := context.Background()

	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, repo.InsertSession(ctx, &auth.SessionRecord{
		ID: "s1", UserID: "u1", ExpiresAt: now.Add(time.Hour),
		Attributes: map[string]any{"ip": "10.0.0.1"},
	}))
	require.NoError(t, repo.InsertSession(ctx, &auth.SessionRecord{
		ID: "s2", UserID: "u1", ExpiresAt: now.Add(-time.Hour),
	}))
	require.NoError(t, repo.InsertSession(ctx, &auth.SessionRecord{
		ID: "s3", UserID: "u2", ExpiresAt: now.Add(time.Hour),
	}))

	session, err := repo.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "u1", session.UserID)
	assert.True(t, session.ExpiresAt.Equal(now.Add(time.Hour)))
	assert.Equal(t, "10.0.0.1", session.Attributes["ip"])

	_, err = repo.GetSession(ctx, "missing")
	assert.True(t, auth.IsSessionNotFound(err))

	sessions, err := repo.GetSessionsByUserID(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, "s2", sessions[0].ID)

	removed, err := repo.DeleteExpiredSessions(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	require.NoError(t, repo.DeleteSession(ctx, "s1"))
	require.NoError(t, repo.DeleteSession(ctx, "s1"))

	require.NoError(t, repo.DeleteSessionsByUserID(ctx, "u2"))
	_, err = repo.GetSession(ctx, "s3")
	assert.True(t, auth.IsSessionNotFound(err))
}

func TestRepositoryRunInTxRollsBack(t *testing.T) {
	repo, _ := setupRepository(t)
	ctx := context.Background()

	boom := errors.New("boom")
	err := repo.RunInTx(ctx, func(ctx context.Context, tx auth.Adapter) error {
		require.NoError(t, tx.InsertUser(ctx, &auth.UserRecord{ID: "u1"}))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = repo.GetUser(ctx, "u1")
	assert.True(t, auth.IsUserNotFound(err))

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	err = repo.RunInTx(cancelled, func(context.Context, auth.Adapter) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRepositoryWithAuth(t *testing.T) {
	repo, _ := setupRepository(t)
	ctx := context.Background()

	a := auth.New(repo, auth.DefaultConfig()).
		WithPasswordHasher(auth.NewBcryptHasher(bcrypt.MinCost))

	user, err := a.CreateUser(ctx, auth.CreateUserParams{
		Key: &auth.KeySpec{
			ProviderID:     "email",
			ProviderUserID: "alice@example.com",
			Secret:         auth.Secret("pw"),
		},
		Attributes: map[string]any{"username": "alice"},
	})
	require.NoError(t, err)
	assert.Len(t, user.ID, auth.DefaultUserIDLength)

	_, err = a.CreateUser(ctx, auth.CreateUserParams{
		Attributes: map[string]any{"username": "alice"},
	})
	assert.True(t, auth.IsConstraintViolation(err))

	key, err := a.UseKey(ctx, "email", "alice@example.com", "pw")
	require.NoError(t, err)
	assert.Equal(t, user.ID, key.UserID)

	session, err := a.CreateSession(ctx, user.ID, 0)
	require.NoError(t, err)

	valid, err := a.ValidateSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, user.ID, valid.User.ID)

	require.NoError(t, a.DeleteUser(ctx, user.ID))

	_, err = a.ValidateSession(ctx, session.ID)
	assert.True(t, auth.IsSessionNotFound(err))

	_, err = a.UseKey(ctx, "email", "alice@example.com", "pw")
	assert.True(t, auth.IsInvalidCredentials(err))
}

func TestIsUniqueViolation(t *testing.T) {
	assert.False(t, isUniqueViolation(nil))
	assert.True(t, isUniqueViolation(fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"})))
	assert.False(t, isUniqueViolation(&pgconn.PgError{Code: "23503"}))
	assert.True(t, isUniqueViolation(fmt.Errorf("insert: %w", &pq.Error{Code: "23505"})))
	assert.True(t, isUniqueViolation(errors.New("UNIQUE constraint failed: auth_user.id")))
	assert.False(t, isUniqueViolation(errors.New("disk I/O error")))
}

func TestOpenPostgresRejectsBadDSN(t *testing.T) {
	_, err := OpenPostgres("postgres://localhost:notaport/db")
	assert.Error(t, err)
}
