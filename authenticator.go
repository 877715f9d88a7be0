package auth

import (
	"context"
	"fmt"
	"maps"
	"time"
)

// Auth orchestrates users, keys and sessions on top of an Adapter. It holds
// no mutable state between calls, all durability and isolation belong to the
// adapter.
type Auth struct {
	adapter           Adapter
	config            Config
	mapper            AttributeMapper
	hasher            PasswordAuthenticator
	generateUserID    IDGenerator
	generateSessionID IDGenerator
	now               Clock
	logger            Logger
	activitySink      ActivitySink

	keys     *KeyManager
	sessions *SessionManager
}

// New returns an Auth backed by adapter. Zero config values take defaults,
// out of range values are logged and replaced by defaults too.
func New(adapter Adapter, cfg Config) *Auth {
	cfg = cfg.fillZero()
	if err := cfg.Validate(); err != nil {
		defLogger{}.Warn("config values out of range, using defaults", "error", err)
		cfg = cfg.withDefaults()
	}
	a := &Auth{
		adapter:           adapter,
		config:            cfg,
		mapper:            DefaultAttributeMapper,
		hasher:            NewBcryptHasher(cfg.PasswordHashCost),
		generateUserID:    RandomIDGenerator(cfg.UserIDLength),
		generateSessionID: RandomIDGenerator(cfg.SessionIDLength),
		now:               time.Now,
		logger:            defLogger{},
		activitySink:      noopActivitySink{},
	}
	a.rebuild()
	return a
}

func (a *Auth) rebuild() {
	a.keys = NewKeyManager(a.adapter, a.hasher, a.logger)
	a.sessions = NewSessionManager(a.adapter, a.generateSessionID, a.now, a.logger)
	a.sessions.onExpiredGC = func(ctx context.Context, record *SessionRecord) {
		a.emit(ctx, ActivityEventSessionCleanup, record.UserID, map[string]any{
			"session_id": record.ID,
		})
	}
}

func (a *Auth) WithLogger(logger Logger) *Auth {
	a.logger = normalizeLogger(logger)
	a.rebuild()
	return a
}

// WithAttributeMapper sets the projection applied to every exposed user.
func (a *Auth) WithAttributeMapper(mapper AttributeMapper) *Auth {
	if mapper == nil {
		mapper = DefaultAttributeMapper
	}
	a.mapper = mapper
	return a
}

// WithPasswordHasher swaps the secret hashing capability.
func (a *Auth) WithPasswordHasher(hasher PasswordAuthenticator) *Auth {
	if hasher != nil {
		a.hasher = hasher
		a.rebuild()
	}
	return a
}

// WithUserIDGenerator sets the strategy used for new user ids.
func (a *Auth) WithUserIDGenerator(gen IDGenerator) *Auth {
	if gen != nil {
		a.generateUserID = gen
	}
	return a
}

// WithSessionIDGenerator sets the strategy used for new session ids.
func (a *Auth) WithSessionIDGenerator(gen IDGenerator) *Auth {
	if gen != nil {
		a.generateSessionID = gen
		a.rebuild()
	}
	return a
}

// WithClock injects a custom clock (useful for tests).
func (a *Auth) WithClock(now Clock) *Auth {
	if now != nil {
		a.now = now
		a.rebuild()
	}
	return a
}

// WithActivitySink configures an ActivitySink for emitting auth events.
func (a *Auth) WithActivitySink(sink ActivitySink) *Auth {
	a.activitySink = normalizeActivitySink(sink)
	return a
}

// Keys exposes the key manager.
func (a *Auth) Keys() *KeyManager {
	return a.keys
}

// Sessions exposes the session manager.
func (a *Auth) Sessions() *SessionManager {
	return a.sessions
}

// Config returns the effective configuration.
func (a *Auth) Config() Config {
	return a.config
}

// CreateUser creates a user and, optionally, its first key in one atomic
// adapter call. A colliding key yields ErrDuplicateKey, a broken attribute
// rule yields a constraint violation.
func (a *Auth) CreateUser(ctx context.Context, params CreateUserParams) (*User, error) {
	if params.Key != nil {
		if err := validateKeySpec(*params.Key); err != nil {
			return nil, err
		}
		if err := a.keys.EnsureKeyAvailable(ctx, params.Key.ProviderID, params.Key.ProviderUserID); err != nil {
			return nil, err
		}
	}

	userID, err := a.resolveUserID(ctx, params.UserID)
	if err != nil {
		return nil, err
	}

	var keyRecord *KeyRecord
	if params.Key != nil {
		if keyRecord, err = a.keys.BuildKeyRecord(userID, *params.Key); err != nil {
			return nil, err
		}
	}

	record := &UserRecord{
		ID:         userID,
		Attributes: maps.Clone(params.Attributes),
	}
	if record.Attributes == nil {
		record.Attributes = map[string]any{}
	}
	delete(record.Attributes, "id")

	if err := a.adapter.CreateUserWithKey(ctx, record, keyRecord); err != nil {
		return nil, classifyAdapterError("create_user_with_key", err)
	}

	meta := map[string]any{}
	if keyRecord != nil {
		meta["provider_id"] = keyRecord.ProviderID
	}
	a.emit(ctx, ActivityEventUserCreated, userID, meta)

	return projectUser(a.mapper, record)
}

func (a *Auth) resolveUserID(ctx context.Context, requested string) (string, error) {
	if requested != "" {
		if err := validateIdentifier("user_id", requested); err != nil {
			return "", err
		}
		taken, err := a.userExists(ctx, requested)
		if err != nil {
			return "", err
		}
		if taken {
			return "", NewConstraintViolation(fmt.Errorf("user id %q already exists", requested))
		}
		return requested, nil
	}

	for attempt := 0; attempt < a.config.UserIDAttempts; attempt++ {
		id, err := a.generateUserID()
		if err != nil {
			return "", classifyAdapterError("generate_user_id", err)
		}

		taken, err := a.userExists(ctx, id)
		if err != nil {
			return "", err
		}
		if !taken {
			return id, nil
		}
		a.logger.Warn("generated user id collided", "attempt", attempt+1)
	}

	return "", ErrUserIDExhausted
}

func (a *Auth) userExists(ctx context.Context, userID string) (bool, error) {
	_, err := a.adapter.GetUser(ctx, userID)
	if err == nil {
		return true, nil
	}
	if IsUserNotFound(err) {
		return false, nil
	}
	return false, classifyAdapterError("get_user", err)
}

// GetUser returns the projected user.
func (a *Auth) GetUser(ctx context.Context, userID string) (*User, error) {
	record, err := a.adapter.GetUser(ctx, userID)
	if err != nil {
		return nil, classifyAdapterError("get_user", err)
	}
	return projectUser(a.mapper, record)
}

// UpdateUserAttributes merges attributes into the stored user and returns the
// re-projected user. Sessions are left untouched, call
// InvalidateAllUserSessions when the change is security relevant.
func (a *Auth) UpdateUserAttributes(ctx context.Context, userID string, attributes map[string]any) (*User, error) {
	if err := validateIdentifier("user_id", userID); err != nil {
		return nil, err
	}
	if _, ok := attributes["id"]; ok {
		return nil, newInvalidInputError(fmt.Errorf("id is immutable"), map[string]any{"user_id": userID})
	}

	record, err := a.adapter.UpdateUser(ctx, userID, maps.Clone(attributes))
	if err != nil {
		return nil, classifyAdapterError("update_user", err)
	}

	a.emit(ctx, ActivityEventUserUpdated, userID, map[string]any{
		"attributes": attributeNames(attributes),
	})

	return projectUser(a.mapper, record)
}

// DeleteUser removes keys, then sessions, then the user. It succeeds for
// unknown ids. The sequence is idempotent so a transient failure is retried
// once.
func (a *Auth) DeleteUser(ctx context.Context, userID string) error {
	err := a.deleteUserCascade(ctx, userID)
	if IsTransient(err) && ctx.Err() == nil {
		a.logger.Warn("retrying user deletion after transient failure", "user_id", userID, "error", err)
		err = a.deleteUserCascade(ctx, userID)
	}
	if err != nil {
		return err
	}

	a.emit(ctx, ActivityEventUserDeleted, userID, nil)
	return nil
}

func (a *Auth) deleteUserCascade(ctx context.Context, userID string) error {
	err := runInTx(ctx, a.adapter, func(ctx context.Context, tx Adapter) error {
		if err := tx.DeleteKeysByUserID(ctx, userID); err != nil {
			return classifyAdapterError("delete_keys_by_user_id", err)
		}
		if err := tx.DeleteSessionsByUserID(ctx, userID); err != nil {
			return classifyAdapterError("delete_sessions_by_user_id", err)
		}
		if err := tx.DeleteUser(ctx, userID); err != nil {
			return classifyAdapterError("delete_user", err)
		}
		return nil
	})
	return classifyAdapterError("delete_user_tx", err)
}

// CreateKey links a new key to an existing user.
func (a *Auth) CreateKey(ctx context.Context, userID string, spec KeySpec) (*Key, error) {
	if _, err := a.adapter.GetUser(ctx, userID); err != nil {
		return nil, classifyAdapterError("get_user", err)
	}

	key, err := a.keys.CreateKey(ctx, userID, spec)
	if err != nil {
		return nil, err
	}

	a.emit(ctx, ActivityEventKeyCreated, userID, map[string]any{"provider_id": spec.ProviderID})
	return key, nil
}

// UseKey verifies a secret and returns the key. Keys whose user is gone are
// rejected like any other bad credential.
func (a *Auth) UseKey(ctx context.Context, providerID, providerUserID, secret string) (*Key, error) {
	key, err := a.keys.VerifyKey(ctx, providerID, providerUserID, secret)
	if err == nil {
		_, err = a.adapter.GetUser(ctx, key.UserID)
		if IsUserNotFound(err) {
			err = ErrInvalidCredentials
		}
		err = classifyAdapterError("get_user", err)
	}

	if err != nil {
		if IsInvalidCredentials(err) {
			a.emit(ctx, ActivityEventKeyVerifyFailed, "", map[string]any{"provider_id": providerID})
		}
		return nil, err
	}

	a.emit(ctx, ActivityEventKeyVerified, key.UserID, map[string]any{"provider_id": providerID})
	return key, nil
}

// GetKey returns a key without verifying anything.
func (a *Auth) GetKey(ctx context.Context, providerID, providerUserID string) (*Key, error) {
	return a.keys.GetKey(ctx, providerID, providerUserID)
}

// GetUserKeys lists the keys of a user.
func (a *Auth) GetUserKeys(ctx context.Context, userID string) ([]*Key, error) {
	return a.keys.GetUserKeys(ctx, userID)
}

// UpdateKeySecret replaces the secret of a key. Sessions are left untouched.
func (a *Auth) UpdateKeySecret(ctx context.Context, providerID, providerUserID string, secret *string) (*Key, error) {
	key, err := a.keys.UpdateKeySecret(ctx, providerID, providerUserID, secret)
	if err != nil {
		return nil, err
	}
	a.emit(ctx, ActivityEventKeyUpdated, key.UserID, map[string]any{"provider_id": providerID})
	return key, nil
}

// DeleteKey removes a key. Idempotent.
func (a *Auth) DeleteKey(ctx context.Context, providerID, providerUserID string) error {
	if err := a.keys.DeleteKey(ctx, providerID, providerUserID); err != nil {
		return err
	}
	a.emit(ctx, ActivityEventKeyDeleted, "", map[string]any{"provider_id": providerID})
	return nil
}

// CreateSession issues a session for an existing user. A zero ttl uses
// Config.SessionTTL.
func (a *Auth) CreateSession(ctx context.Context, userID string, ttl time.Duration) (*Session, error) {
	return a.createSession(ctx, userID, ttl, nil)
}

// CreateSessionWithAttributes is CreateSession storing extra session data.
func (a *Auth) CreateSessionWithAttributes(ctx context.Context, userID string, ttl time.Duration, attributes map[string]any) (*Session, error) {
	return a.createSession(ctx, userID, ttl, attributes)
}

func (a *Auth) createSession(ctx context.Context, userID string, ttl time.Duration, attributes map[string]any) (*Session, error) {
	if ttl == 0 {
		ttl = a.config.SessionTTL
	}

	user, err := a.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	session, err := a.sessions.CreateSession(ctx, userID, ttl, attributes)
	if err != nil {
		return nil, err
	}
	session.User = user

	a.emit(ctx, ActivityEventSessionCreated, userID, map[string]any{"session_id": session.ID})
	return session, nil
}

// ValidateSession returns the active session with its projected user.
// Sessions that expired or whose user no longer exists are never returned.
func (a *Auth) ValidateSession(ctx context.Context, sessionID string) (*Session, error) {
	session, err := a.sessions.ValidateSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	record, err := a.adapter.GetUser(ctx, session.UserID)
	if err != nil {
		if IsUserNotFound(err) {
			a.sessions.discard(ctx, &SessionRecord{ID: session.ID, UserID: session.UserID})
			return nil, ErrSessionNotFound
		}
		return nil, classifyAdapterError("get_user", err)
	}

	user, err := projectUser(a.mapper, record)
	if err != nil {
		return nil, err
	}
	session.User = user
	return session, nil
}

// RenewSession replaces an active session with a new one for the same user
// and attributes. The old session is deleted, it is never extended.
func (a *Auth) RenewSession(ctx context.Context, sessionID string, ttl time.Duration) (*Session, error) {
	current, err := a.ValidateSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if ttl == 0 {
		ttl = a.config.SessionTTL
	}

	renewed, err := a.sessions.CreateSession(ctx, current.UserID, ttl, current.Attributes)
	if err != nil {
		return nil, err
	}
	renewed.User = current.User

	if err := a.sessions.InvalidateSession(ctx, current.ID); err != nil {
		if cleanupErr := a.sessions.InvalidateSession(ctx, renewed.ID); cleanupErr != nil {
			a.logger.Error("failed to roll back renewed session", "session_id", renewed.ID, "error", cleanupErr)
		}
		return nil, err
	}

	a.emit(ctx, ActivityEventSessionRenewed, current.UserID, map[string]any{
		"previous_session_id": current.ID,
		"session_id":          renewed.ID,
	})
	return renewed, nil
}

// InvalidateSession deletes one session. Idempotent.
func (a *Auth) InvalidateSession(ctx context.Context, sessionID string) error {
	if err := a.sessions.InvalidateSession(ctx, sessionID); err != nil {
		return err
	}
	a.emit(ctx, ActivityEventSessionInvalidated, "", map[string]any{"session_id": sessionID})
	return nil
}

// InvalidateAllUserSessions deletes every session of a user, e.g. after a
// role or password change. Succeeds when the user has none.
func (a *Auth) InvalidateAllUserSessions(ctx context.Context, userID string) error {
	if err := a.sessions.InvalidateAllUserSessions(ctx, userID); err != nil {
		return err
	}
	a.emit(ctx, ActivityEventUserSessionsRevoked, userID, nil)
	return nil
}

// GetUserSessions lists the active sessions of a user.
func (a *Auth) GetUserSessions(ctx context.Context, userID string) ([]*Session, error) {
	return a.sessions.GetUserSessions(ctx, userID)
}

func (a *Auth) emit(ctx context.Context, eventType ActivityEventType, userID string, metadata map[string]any) {
	sink := normalizeActivitySink(a.activitySink)
	event := ActivityEvent{
		EventType:  eventType,
		UserID:     userID,
		Metadata:   metadata,
		OccurredAt: a.now(),
	}

	if event.Metadata == nil {
		event.Metadata = map[string]any{}
	}

	if err := sink.Record(ctx, event); err != nil {
		a.logger.Warn("activity sink record error", "event", string(eventType), "error", err)
	}
}

func attributeNames(attributes map[string]any) []string {
	names := make([]string, 0, len(attributes))
	for k := range attributes {
		names = append(names, k)
	}
	return names
}
