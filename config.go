package auth

import (
	"time"

	"github.com/caarlos0/env/v11"
	validation "github.com/go-ozzo/ozzo-validation"
)

// Config holds the tunables of the core.
type Config struct {
	// SessionTTL is used when CreateSession or RenewSession get a zero ttl.
	SessionTTL       time.Duration `env:"AUTH_SESSION_TTL" envDefault:"720h"`
	UserIDLength     int           `env:"AUTH_USER_ID_LENGTH" envDefault:"15"`
	SessionIDLength  int           `env:"AUTH_SESSION_ID_LENGTH" envDefault:"40"`
	UserIDAttempts   int           `env:"AUTH_USER_ID_ATTEMPTS" envDefault:"3"`
	PasswordHashCost int           `env:"AUTH_PASSWORD_HASH_COST" envDefault:"12"`
}

// DefaultConfig mirrors the env defaults.
func DefaultConfig() Config {
	return Config{
		SessionTTL:       30 * 24 * time.Hour,
		UserIDLength:     DefaultUserIDLength,
		SessionIDLength:  DefaultSessionIDLength,
		UserIDAttempts:   3,
		PasswordHashCost: 12,
	}
}

// LoadConfig reads Config from the given environment. A nil map reads the
// process environment.
func LoadConfig(environ map[string]string) (Config, error) {
	opts := env.Options{}
	if environ != nil {
		opts.Environment = environ
	}

	cfg, err := env.ParseAsWithOptions[Config](opts)
	if err != nil {
		return Config{}, newInvalidInputError(err, map[string]any{"source": "env"})
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

const (
	minUserIDLength    = 8
	minSessionIDLength = 24
)

// Validate checks the config ranges.
func (c Config) Validate() error {
	err := validation.ValidateStruct(&c,
		validation.Field(&c.SessionTTL, validation.Required, validation.Min(time.Second)),
		validation.Field(&c.UserIDLength, validation.Required, validation.Min(minUserIDLength)),
		validation.Field(&c.SessionIDLength, validation.Required, validation.Min(minSessionIDLength)),
		validation.Field(&c.UserIDAttempts, validation.Required, validation.Min(1)),
		validation.Field(&c.PasswordHashCost, validation.Required, validation.Min(4), validation.Max(31)),
	)
	if err != nil {
		return newInvalidInputError(err, map[string]any{"source": "config"})
	}
	return nil
}

// withDefaults replaces zero and out of range values with the defaults.
func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.SessionTTL < time.Second {
		c.SessionTTL = def.SessionTTL
	}
	if c.UserIDLength < minUserIDLength {
		c.UserIDLength = def.UserIDLength
	}
	if c.SessionIDLength < minSessionIDLength {
		c.SessionIDLength = def.SessionIDLength
	}
	if c.UserIDAttempts <= 0 {
		c.UserIDAttempts = def.UserIDAttempts
	}
	if c.PasswordHashCost < 4 || c.PasswordHashCost > 31 {
		c.PasswordHashCost = def.PasswordHashCost
	}
	return c
}

// fillZero only sets the fields left unset.
func (c Config) fillZero() Config {
	def := DefaultConfig()
	if c.SessionTTL == 0 {
		c.SessionTTL = def.SessionTTL
	}
	if c.UserIDLength == 0 {
		c.UserIDLength = def.UserIDLength
	}
	if c.SessionIDLength == 0 {
		c.SessionIDLength = def.SessionIDLength
	}
	if c.UserIDAttempts == 0 {
		c.UserIDAttempts = def.UserIDAttempts
	}
	if c.PasswordHashCost == 0 {
		c.PasswordHashCost = def.PasswordHashCost
	}
	return c
}
