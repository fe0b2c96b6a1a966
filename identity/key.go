package identity

// Key identifies one logical row: the entity type, its primary key value and
// the connection the row was read from. Keys are immutable values.
type Key struct {
	entityType string
	id         any
	connection string
}

// NewKey creates a Key. An empty connection is kept as is; entities resolve
// their own connection before building keys (see Entity.ModelIdentity).
func NewKey(entityType string, id any, connection string) Key {
	return Key{entityType: entityType, id: id, connection: connection}
}

// EntityType returns the type discriminator.
func (k Key) EntityType() string { return k.entityType }

// ID returns the primary key value.
func (k Key) ID() any { return k.id }

// Connection returns the connection name.
func (k Key) Connection() string { return k.connection }

// Equal reports whether both keys have equal components. Ids compare by
// their serialized form, so int(7) and int64(7) are the same id, as they are
// in the map.
func (k Key) Equal(other Key) bool {
	return k.entityType == other.entityType &&
		k.connection == other.connection &&
		SerializeID(k.id) == SerializeID(other.id)
}

// String renders the key with the default serializer: connection:entityType:id.
func (k Key) String() string {
	return defaultSerializer.SerializeKey(k)
}
