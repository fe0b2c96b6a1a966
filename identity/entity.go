package identity

// Model is the narrow view of the attribute system the identity layer needs.
// model.Record is the default implementation.
type Model interface {
	// EntityType returns the discriminator used in identity keys.
	EntityType() string
	// ConnectionName returns the resolved connection name.
	ConnectionName() string
	// KeyName returns the primary key attribute name.
	KeyName() string
	// Key returns the primary key value, nil when unset.
	Key() any
	// UsesTimestamps reports whether the updated-at column is maintained.
	UsesTimestamps() bool
	// UpdatedAtColumn returns the modification timestamp attribute name.
	UpdatedAtColumn() string
	// DateFormat returns the time layout used for string timestamps.
	DateFormat() string
	// Attribute returns the current value of name.
	Attribute(name string) (any, bool)
	// RawAttributes returns a copy of the current attributes.
	RawAttributes() Attributes
	// SetRawAttributes replaces the attributes. With sync the new set also
	// becomes the clean baseline.
	SetRawAttributes(attrs Attributes, sync bool)
	// Dirty returns the attributes modified since the last sync.
	Dirty() Attributes
}

// Entity is a Model that opted in to identity mapping.
type Entity interface {
	Model
	// ModelIdentity computes the identity key. A nil id uses the entity's own
	// key and an empty connection uses its resolved connection.
	ModelIdentity(id any, connection string) Key
}

// AsEntity reports whether m is identity aware.
func AsEntity(m any) (Entity, bool) {
	e, ok := m.(Entity)
	return e, ok
}

// IsIdentityAware reports whether m implements Entity.
func IsIdentityAware(m any) bool {
	_, ok := m.(Entity)
	return ok
}
