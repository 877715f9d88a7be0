package auth

import "time"

// PasswordAuthenticator hashes and verifies key secrets.
type PasswordAuthenticator interface {
	HashPassword(password string) (string, error)
	ComparePasswordAndHash(password, hash string) error
}

// IDGenerator returns a new opaque identifier.
type IDGenerator func() (string, error)

// Clock returns the current time. Tests inject fixed clocks.
type Clock func() time.Time
