package auth

import (
	"context"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/hashid/pkg/hashid"
)

// ProviderEmail is the provider id used for email and password keys.
const ProviderEmail = "email"

// RegisterUserMessage asks for a new user with an email and password key.
// UseHashid derives the user id from the email instead of generating one.
type RegisterUserMessage struct {
	Email      string         `json:"email"`
	Username   string         `json:"username"`
	Password   string         `json:"password"`
	Attributes map[string]any `json:"attributes"`
	UseHashid  bool           `json:"use_hashid"`
}

func (e RegisterUserMessage) Type() string { return "user.register" }

// RegisterUserHandler creates a user with an email key.
type RegisterUserHandler struct {
	auth    *Auth
	timeout time.Duration
	created func(*User)
}

// NewRegisterUserHandler returns a handler bound to auth.
func NewRegisterUserHandler(auth *Auth) *RegisterUserHandler {
	return &RegisterUserHandler{
		auth:    auth,
		timeout: 10 * time.Second,
	}
}

// OnCreated registers a callback receiving the created user.
func (h *RegisterUserHandler) OnCreated(fn func(*User)) *RegisterUserHandler {
	h.created = fn
	return h
}

func (h *RegisterUserHandler) Execute(ctx context.Context, event RegisterUserMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during user registration",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *RegisterUserHandler) execute(ctx context.Context, event RegisterUserMessage) error {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	email := strings.ToLower(strings.TrimSpace(event.Email))

	attrs := make(map[string]any, len(event.Attributes)+2)
	for k, v := range event.Attributes {
		attrs[k] = v
	}
	attrs["email"] = email
	attrs["username"] = getUsername(event.Username, email)

	params := CreateUserParams{
		Attributes: attrs,
		Key: &KeySpec{
			ProviderID:     ProviderEmail,
			ProviderUserID: email,
			Secret:         Secret(event.Password),
		},
	}

	if event.UseHashid {
		if id, err := hashid.NewUUID(email); err == nil {
			params.UserID = id.String()
		}
	}

	user, err := h.auth.CreateUser(ctx, params)
	if err != nil {
		if textCode(err) != "" {
			return err
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "user registration failed")
	}

	if h.created != nil {
		h.created(user)
	}

	return nil
}

func getUsername(username, email string) string {
	if username != "" {
		return username
	}

	if strings.Contains(email, "@") {
		username = strings.Split(email, "@")[0]
	}

	return username
}
