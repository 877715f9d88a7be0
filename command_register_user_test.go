package auth_test

import (
	"context"
	"encoding/json"
	"testing"

	auth "github.com/goliatone/go-auth-core"
	"github.com/goliatone/go-auth-core/repository/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newCommandAuth() (*auth.Auth, *memory.Store) {
	store := memory.New(memory.WithUniqueAttributes("username"))
	a := auth.New(store, auth.DefaultConfig()).
		WithPasswordHasher(auth.NewBcryptHasher(bcrypt.MinCost)).
		WithLogger(&captureLogger{})
	return a, store
}

func TestRegisterUserHandler(t *testing.T) {
	a, _ := newCommandAuth()
	ctx := context.Background()

	var created *auth.User
	handler := auth.NewRegisterUserHandler(a).OnCreated(func(u *auth.User) { created = u })

	err := handler.Execute(ctx, auth.RegisterUserMessage{
		Email:    "  Alice@Example.com ",
		Password: "pw",
	})
	require.NoError(t, err)
	require.NotNil(t, created)
	assert.Equal(t, "alice@example.com", created.Attributes["email"])
	assert.Equal(t, "alice", created.Attributes["username"])

	key, err := a.UseKey(ctx, auth.ProviderEmail, "alice@example.com", "pw")
	require.NoError(t, err)
	assert.Equal(t, created.ID, key.UserID)

	err = handler.Execute(ctx, auth.RegisterUserMessage{Email: "alice@example.com", Username: "other", Password: "pw"})
	assert.True(t, auth.IsDuplicateKey(err))

	err = handler.Execute(ctx, auth.RegisterUserMessage{Email: "alice@other.com", Password: "pw"})
	assert.True(t, auth.IsConstraintViolation(err))
}

func TestRegisterUserHandlerHashid(t *testing.T) {
	a, _ := newCommandAuth()

	var first, second string
	handler := auth.NewRegisterUserHandler(a)

	handler.OnCreated(func(u *auth.User) { first = u.ID })
	require.NoError(t, handler.Execute(context.Background(), auth.RegisterUserMessage{
		Email: "bob@example.com", Password: "pw", UseHashid: true,
	}))

	b, _ := newCommandAuth()
	require.NoError(t, auth.NewRegisterUserHandler(b).
		OnCreated(func(u *auth.User) { second = u.ID }).
		Execute(context.Background(), auth.RegisterUserMessage{
			Email: "bob@example.com", Password: "pw", UseHashid: true,
		}))

	assert.NotEmpty(t, first)
	assert.Equal(t, first, second)
}

func TestRegisterUserMessageFromJSON(t *testing.T) {
	var msg auth.RegisterUserMessage
	require.NoError(t, json.Unmarshal([]byte(`{
		"email": "bob@example.com",
		"password": "pw",
		"use_hashid": true
	}`), &msg))
	assert.True(t, msg.UseHashid)

	a, _ := newCommandAuth()
	var fromJSON, direct string
	require.NoError(t, auth.NewRegisterUserHandler(a).
		OnCreated(func(u *auth.User) { fromJSON = u.ID }).
		Execute(context.Background(), msg))

	b, _ := newCommandAuth()
	require.NoError(t, auth.NewRegisterUserHandler(b).
		OnCreated(func(u *auth.User) { direct = u.ID }).
		Execute(context.Background(), auth.RegisterUserMessage{
			Email: "bob@example.com", Password: "pw", UseHashid: true,
		}))

	assert.Equal(t, direct, fromJSON)
}

func TestRegisterUserHandlerCancelledContext(t *testing.T) {
	a, store := newCommandAuth()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := auth.NewRegisterUserHandler(a).Execute(ctx, auth.RegisterUserMessage{Email: "a@x.com", Password: "pw"})
	assert.Error(t, err)

	users, _, _ := store.Counts()
	assert.Zero(t, users)
}
