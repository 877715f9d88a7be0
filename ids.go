package auth

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/google/uuid"
)

const (
	// DefaultUserIDLength matches the 15 character ids hosts expect.
	DefaultUserIDLength = 15
	// DefaultSessionIDLength gives roughly 206 bits of entropy.
	DefaultSessionIDLength = 40

	idAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"
)

// RandomIDGenerator returns a generator of crypto random ids of the given
// length over [a-z0-9].
func RandomIDGenerator(length int) IDGenerator {
	return func() (string, error) {
		return RandomString(length)
	}
}

// UUIDGenerator returns a generator of random v4 UUID strings.
func UUIDGenerator() IDGenerator {
	return func() (string, error) {
		id, err := uuid.NewRandom()
		if err != nil {
			return "", err
		}
		return id.String(), nil
	}
}

// RandomString returns a crypto random string over [a-z0-9].
func RandomString(length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("random string length must be positive, got %d", length)
	}

	max := big.NewInt(int64(len(idAlphabet)))
	out := make([]byte, length)
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to read random source: %w", err)
		}
		out[i] = idAlphabet[n.Int64()]
	}
	return string(out), nil
}
