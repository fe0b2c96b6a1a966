package model

import (
	"github.com/goliatone/go-repository-identity/identity"
)

// Record is the default attribute system: raw attributes, the clean baseline
// they are compared against, and loaded relations. Entity types embed Record
// (or MappedRecord to opt in to identity mapping) and are used by pointer.
type Record struct {
	schema     *Schema
	attributes identity.Attributes
	original   identity.Attributes
	connection string
	exists     bool
	relations  map[string]any
}

// NewRecord creates an empty record of the given schema.
func NewRecord(schema *Schema) Record {
	if schema == nil {
		schema = NewSchema("")
	}
	return Record{schema: schema}
}

// Schema returns the record's schema.
func (r *Record) Schema() *Schema { return r.schema }

// EntityType returns the schema's entity type.
func (r *Record) EntityType() string { return r.schema.EntityType }

// Table returns the schema's table.
func (r *Record) Table() string { return r.schema.Table }

// ConnectionName resolves the connection: the record's own, then the schema's,
// then DefaultConnection.
func (r *Record) ConnectionName() string {
	if r.connection != "" {
		return r.connection
	}
	if r.schema.Connection != "" {
		return r.schema.Connection
	}
	return DefaultConnection
}

// SetConnection sets the connection the record was read from or will be written to.
func (r *Record) SetConnection(name string) { r.connection = name }

func (r *Record) KeyName() string { return r.schema.KeyName }

func (r *Record) KeyType() KeyType { return r.schema.KeyType }

// Key returns the primary key value or nil.
func (r *Record) Key() any {
	v, _ := r.attributes.Get(r.schema.KeyName)
	return v
}

func (r *Record) UsesTimestamps() bool { return r.schema.Timestamps }

func (r *Record) CreatedAtColumn() string { return r.schema.CreatedAtColumn }

func (r *Record) UpdatedAtColumn() string { return r.schema.UpdatedAtColumn }

// DateFormat returns the schema layout, falling back to identity.DefaultDateFormat.
func (r *Record) DateFormat() string {
	if r.schema.DateFormat == "" {
		return identity.DefaultDateFormat
	}
	return r.schema.DateFormat
}

// Attribute returns the current value of name.
func (r *Record) Attribute(name string) (any, bool) {
	return r.attributes.Get(name)
}

// Get returns the current value of name, nil when absent.
func (r *Record) Get(name string) any {
	v, _ := r.attributes.Get(name)
	return v
}

// Set changes a single attribute. The change is dirty until synced.
func (r *Record) Set(name string, value any) {
	r.attributes.Set(name, value)
}

// RawAttributes returns a copy of the current attributes.
func (r *Record) RawAttributes() identity.Attributes {
	return r.attributes.Clone()
}

// SetRawAttributes replaces every attribute. With sync the new set also
// becomes the clean baseline.
func (r *Record) SetRawAttributes(attrs identity.Attributes, sync bool) {
	r.attributes = attrs.Clone()
	if sync {
		r.SyncOriginal()
	}
}

// Original returns a copy of the clean baseline.
func (r *Record) Original() identity.Attributes {
	return r.original.Clone()
}

// SyncOriginal makes the current attributes the clean baseline.
func (r *Record) SyncOriginal() {
	r.original = r.attributes.Clone()
}

// Dirty returns the attributes that differ from the clean baseline.
func (r *Record) Dirty() identity.Attributes {
	return r.attributes.Diff(r.original)
}

// IsDirty reports whether any attribute, or any of names, is dirty.
func (r *Record) IsDirty(names ...string) bool {
	dirty := r.Dirty()
	if len(names) == 0 {
		return dirty.Len() > 0
	}
	for _, n := range names {
		if dirty.Has(n) {
			return true
		}
	}
	return false
}

// Exists reports whether the record is known to be persisted.
func (r *Record) Exists() bool { return r.exists }

// MarkExists records whether the record is persisted.
func (r *Record) MarkExists(exists bool) { r.exists = exists }

// Hydrate loads a row read from storage on connection: attributes and
// baseline are both set to attrs and the record is marked persisted.
func (r *Record) Hydrate(attrs identity.Attributes, connection string) {
	r.SetRawAttributes(attrs, true)
	r.connection = connection
	r.exists = true
}

// Relation returns a loaded relation value.
func (r *Record) Relation(name string) (any, bool) {
	v, ok := r.relations[name]
	return v, ok
}

// SetRelation stores a loaded relation value.
func (r *Record) SetRelation(name string, value any) {
	if r.relations == nil {
		r.relations = make(map[string]any)
	}
	r.relations[name] = value
}

// RelationLoaded reports whether name has been loaded.
func (r *Record) RelationLoaded(name string) bool {
	_, ok := r.relations[name]
	return ok
}

// UnsetRelation forgets a loaded relation.
func (r *Record) UnsetRelation(name string) {
	delete(r.relations, name)
}

// MappedRecord is a Record that takes part in identity mapping.
type MappedRecord struct {
	Record
}

// NewMappedRecord creates an empty identity-mapped record of the given schema.
func NewMappedRecord(schema *Schema) MappedRecord {
	return MappedRecord{Record: NewRecord(schema)}
}

// ModelIdentity returns the identity key for id on connection, defaulting to
// the record's own key and resolved connection.
func (r *MappedRecord) ModelIdentity(id any, connection string) identity.Key {
	if id == nil {
		id = r.Key()
	}
	if connection == "" {
		connection = r.ConnectionName()
	}
	return identity.NewKey(r.EntityType(), id, connection)
}

var (
	_ identity.Model  = (*Record)(nil)
	_ identity.Entity = (*MappedRecord)(nil)
)
