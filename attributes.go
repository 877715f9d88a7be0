package auth

import "maps"

// AttributeMapper projects a stored user record into the attributes exposed
// to callers. It must be side effect free. Errors are returned to the caller
// unchanged.
type AttributeMapper func(record *UserRecord) (map[string]any, error)

// DefaultAttributeMapper exposes every stored attribute.
func DefaultAttributeMapper(record *UserRecord) (map[string]any, error) {
	return maps.Clone(record.Attributes), nil
}

// projectUser runs the mapper on a copy of record and re-injects the id.
func projectUser(mapper AttributeMapper, record *UserRecord) (*User, error) {
	if record == nil {
		return nil, ErrUserNotFound
	}
	if mapper == nil {
		mapper = DefaultAttributeMapper
	}

	input := &UserRecord{
		ID:         record.ID,
		Attributes: maps.Clone(record.Attributes),
	}

	attrs, err := mapper(input)
	if err != nil {
		return nil, err
	}

	if attrs == nil {
		attrs = map[string]any{}
	}
	// id belongs to storage, never to the mapper
	delete(attrs, "id")

	return &User{
		ID:         record.ID,
		Attributes: attrs,
	}, nil
}
