package auth

import (
	"context"
)

// KeyManager manages provider scoped credentials.
type KeyManager struct {
	adapter UserAdapter
	hasher  PasswordAuthenticator
	logger  Logger
}

// NewKeyManager returns a KeyManager. A nil hasher uses bcrypt.
func NewKeyManager(adapter UserAdapter, hasher PasswordAuthenticator, logger Logger) *KeyManager {
	if hasher == nil {
		hasher = NewBcryptHasher(0)
	}
	return &KeyManager{
		adapter: adapter,
		hasher:  hasher,
		logger:  normalizeLogger(logger),
	}
}

// BuildKeyRecord validates spec and hashes its secret, it does not persist.
func (m *KeyManager) BuildKeyRecord(userID string, spec KeySpec) (*KeyRecord, error) {
	if err := validateKeySpec(spec); err != nil {
		return nil, err
	}

	record := &KeyRecord{
		ProviderID:     spec.ProviderID,
		ProviderUserID: spec.ProviderUserID,
		UserID:         userID,
	}

	if spec.Secret != nil {
		hash, err := m.hashSecret(spec.ProviderID, *spec.Secret)
		if err != nil {
			return nil, err
		}
		record.HashedSecret = &hash
	}

	return record, nil
}

// hashSecret reports every hasher failure as invalid input, keeping text
// codes the hasher already set.
func (m *KeyManager) hashSecret(providerID, secret string) (string, error) {
	hash, err := m.hasher.HashPassword(secret)
	if err == nil {
		return hash, nil
	}
	if IsInvalidInput(err) {
		return "", err
	}
	return "", newInvalidInputError(err, map[string]any{"provider_id": providerID})
}

// EnsureKeyAvailable is the optimistic uniqueness pre-check. The adapter stays
// the source of truth.
func (m *KeyManager) EnsureKeyAvailable(ctx context.Context, providerID, providerUserID string) error {
	_, err := m.adapter.GetKey(ctx, providerID, providerUserID)
	if err == nil {
		return ErrDuplicateKey
	}
	if IsKeyNotFound(err) {
		return nil
	}
	return classifyAdapterError("get_key", err)
}

// CreateKey links a new key to an existing user.
func (m *KeyManager) CreateKey(ctx context.Context, userID string, spec KeySpec) (*Key, error) {
	if err := validateIdentifier("user_id", userID); err != nil {
		return nil, err
	}

	record, err := m.BuildKeyRecord(userID, spec)
	if err != nil {
		return nil, err
	}

	if err := m.EnsureKeyAvailable(ctx, spec.ProviderID, spec.ProviderUserID); err != nil {
		return nil, err
	}

	if err := m.adapter.InsertKey(ctx, record); err != nil {
		return nil, classifyAdapterError("insert_key", err)
	}

	return newKey(record), nil
}

// VerifyKey checks secret against the stored hash. Every verification
// failure, including a missing key, yields ErrInvalidCredentials.
func (m *KeyManager) VerifyKey(ctx context.Context, providerID, providerUserID, secret string) (*Key, error) {
	record, err := m.adapter.GetKey(ctx, providerID, providerUserID)
	if err != nil {
		if IsKeyNotFound(err) {
			return nil, ErrInvalidCredentials
		}
		return nil, classifyAdapterError("get_key", err)
	}

	if record.HashedSecret == nil || secret == "" {
		return nil, ErrInvalidCredentials
	}

	if err := m.hasher.ComparePasswordAndHash(secret, *record.HashedSecret); err != nil {
		if !IsInvalidCredentials(err) {
			m.logger.Warn("key secret comparison failed", "provider_id", providerID, "error", err)
		}
		return nil, ErrInvalidCredentials
	}

	return newKey(record), nil
}

// GetKey returns a key by provider id and provider user id.
func (m *KeyManager) GetKey(ctx context.Context, providerID, providerUserID string) (*Key, error) {
	record, err := m.adapter.GetKey(ctx, providerID, providerUserID)
	if err != nil {
		return nil, classifyAdapterError("get_key", err)
	}
	return newKey(record), nil
}

// GetUserKeys returns every key linked to userID.
func (m *KeyManager) GetUserKeys(ctx context.Context, userID string) ([]*Key, error) {
	records, err := m.adapter.GetKeysByUserID(ctx, userID)
	if err != nil {
		return nil, classifyAdapterError("get_keys_by_user_id", err)
	}

	keys := make([]*Key, 0, len(records))
	for _, r := range records {
		keys = append(keys, newKey(r))
	}
	return keys, nil
}

// UpdateKeySecret replaces the secret of a key. A nil secret turns the key
// into an identity only link.
func (m *KeyManager) UpdateKeySecret(ctx context.Context, providerID, providerUserID string, secret *string) (*Key, error) {
	var hashed *string
	if secret != nil {
		hash, err := m.hashSecret(providerID, *secret)
		if err != nil {
			return nil, err
		}
		hashed = &hash
	}

	record, err := m.adapter.UpdateKey(ctx, providerID, providerUserID, hashed)
	if err != nil {
		return nil, classifyAdapterError("update_key", err)
	}
	return newKey(record), nil
}

// DeleteKey removes a single key. Idempotent.
func (m *KeyManager) DeleteKey(ctx context.Context, providerID, providerUserID string) error {
	return classifyAdapterError("delete_key", m.adapter.DeleteKey(ctx, providerID, providerUserID))
}

// DeleteKeysForUser removes every key of userID. Idempotent.
func (m *KeyManager) DeleteKeysForUser(ctx context.Context, userID string) error {
	return classifyAdapterError("delete_keys_by_user_id", m.adapter.DeleteKeysByUserID(ctx, userID))
}
