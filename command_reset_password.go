package auth

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// ResetPasswordMessage carries the key to update and its new password.
type ResetPasswordMessage struct {
	ProviderID     string `json:"provider_id"`
	ProviderUserID string `json:"provider_user_id"`
	Password       string `json:"password"`
}

func (e ResetPasswordMessage) Type() string { return "user.password_reset" }

// ResetPasswordHandler replaces a key secret and revokes every session of the
// key owner.
type ResetPasswordHandler struct {
	auth    *Auth
	logger  Logger
	timeout time.Duration
}

// NewResetPasswordHandler creates a handler with sane defaults.
func NewResetPasswordHandler(auth *Auth) *ResetPasswordHandler {
	return &ResetPasswordHandler{
		auth:    auth,
		logger:  defLogger{},
		timeout: 10 * time.Second,
	}
}

// WithLogger overrides the logger used by the handler.
func (h *ResetPasswordHandler) WithLogger(logger Logger) *ResetPasswordHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *ResetPasswordHandler) Execute(ctx context.Context, event ResetPasswordMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password reset",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *ResetPasswordHandler) execute(ctx context.Context, event ResetPasswordMessage) error {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	providerID := event.ProviderID
	if providerID == "" {
		providerID = ProviderEmail
	}

	key, err := h.auth.UpdateKeySecret(ctx, providerID, event.ProviderUserID, Secret(event.Password))
	if err != nil {
		return err
	}

	if err := h.auth.InvalidateAllUserSessions(ctx, key.UserID); err != nil {
		h.logger.Error("password reset: failed to revoke sessions", "user_id", key.UserID, "error", err)
		return err
	}

	h.logger.Info("password reset", "user_id", key.UserID, "provider_id", providerID)
	return nil
}
