package model

import (
	"github.com/goliatone/go-repository-identity/identity"
)

// DefaultConnection is the connection name used when neither a record nor its
// schema names one.
const DefaultConnection = "default"

// KeyType describes how primary keys are generated on create.
type KeyType int

const (
	// KeyIncrementing keys are generated by storage.
	KeyIncrementing KeyType = iota
	// KeyUUID keys are generated client side as UUID strings.
	KeyUUID
	// KeyManual keys must be set by the caller.
	KeyManual
)

// Schema describes an entity type: where it lives and how its attributes
// behave. Schemas are shared by every record of the type and must not be
// mutated after the first record is created.
type Schema struct {
	EntityType      string
	Table           string
	KeyName         string
	KeyType         KeyType
	Connection      string
	Timestamps      bool
	CreatedAtColumn string
	UpdatedAtColumn string
	DateFormat      string
}

// SchemaOption configures a Schema.
type SchemaOption func(*Schema)

// NewSchema creates a schema for entityType with conventional defaults:
// table derived from the type name, "id" incrementing key, timestamps on.
func NewSchema(entityType string, opts ...SchemaOption) *Schema {
	s := &Schema{
		EntityType:      entityType,
		Table:           TableName(entityType),
		KeyName:         "id",
		KeyType:         KeyIncrementing,
		Timestamps:      true,
		CreatedAtColumn: "created_at",
		UpdatedAtColumn: "updated_at",
		DateFormat:      identity.DefaultDateFormat,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// WithTable overrides the table name.
func WithTable(table string) SchemaOption {
	return func(s *Schema) { s.Table = table }
}

// WithKey sets the primary key column and generation strategy.
func WithKey(name string, kind KeyType) SchemaOption {
	return func(s *Schema) {
		s.KeyName = name
		s.KeyType = kind
	}
}

// WithConnection pins the schema to a named connection.
func WithConnection(name string) SchemaOption {
	return func(s *Schema) { s.Connection = name }
}

// WithoutTimestamps disables created/updated timestamp handling.
func WithoutTimestamps() SchemaOption {
	return func(s *Schema) { s.Timestamps = false }
}

// WithTimestampColumns renames the timestamp columns.
func WithTimestampColumns(createdAt, updatedAt string) SchemaOption {
	return func(s *Schema) {
		s.CreatedAtColumn = createdAt
		s.UpdatedAtColumn = updatedAt
	}
}

// WithDateFormat sets the Go time layout used for string timestamps.
func WithDateFormat(layout string) SchemaOption {
	return func(s *Schema) { s.DateFormat = layout }
}
