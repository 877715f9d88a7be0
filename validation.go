package auth

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
)

const maxIdentifierLength = 255

// Validate checks the provider id and provider user id of a key spec.
func (k KeySpec) Validate() error {
	return validation.ValidateStruct(&k,
		validation.Field(&k.ProviderID, validation.Required, validation.Length(1, maxIdentifierLength)),
		validation.Field(&k.ProviderUserID, validation.Required, validation.Length(1, maxIdentifierLength)),
	)
}

func validateKeySpec(spec KeySpec) error {
	if err := spec.Validate(); err != nil {
		return newInvalidInputError(err, map[string]any{
			"provider_id": spec.ProviderID,
		})
	}
	return nil
}

func validateSessionTTL(ttl time.Duration) error {
	err := validation.Validate(ttl,
		validation.Required.Error("ttl is required"),
		validation.Min(time.Duration(1)).Error("ttl must be positive"),
	)
	if err != nil {
		return newInvalidInputError(err, map[string]any{"ttl": ttl.String()})
	}
	return nil
}

func validateIdentifier(name, value string) error {
	err := validation.Validate(value,
		validation.Required.Error(name+" is required"),
		validation.Length(1, maxIdentifierLength),
	)
	if err != nil {
		return newInvalidInputError(err, map[string]any{"field": name})
	}
	return nil
}
