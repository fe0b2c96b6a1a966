// Package identity implements a per-process identity map for ORM entities.
//
// # Overview
//
// The package exports the pieces needed to guarantee that, within one
// process, a given database row is represented by at most one in-memory
// model instance:
//
//   - Key: the (entity type, id, connection) triple an entity is stored under
//   - Map: a concurrency safe store from Key to the canonical instance
//   - Materializer: turns raw rows into models, reusing mapped instances
//   - MapObserver: keeps the map in step with create and delete events
//
// Only models implementing Entity take part. Anything else that satisfies
// Model is materialized fresh on every read and is never registered.
//
// # Basic Usage
//
//	ids := identity.NewMap()
//	m := identity.NewMaterializer(ids, identity.WithLogger(logger))
//
//	user, err := m.Materialize(prototype, row, "default", construct)
//	again, err := m.Materialize(prototype, row, "default", construct)
//	// user and again are the same instance
//
// # Reconciliation
//
// When a row arrives for a key that is already mapped, the cached instance is
// returned. If the row's updated-at value is more recent than the cached one,
// the row is laid over the clean baseline of the cached instance and any
// unsaved edits are reapplied on top. Columns the row does not carry, for
// example after a select restricted to a few columns, keep their cached
// values:
//
//	cached: {name: "Ada (draft)" dirty, email: "old@x"}
//	row:    {name: "Ada Lovelace", email: "new@x"}   newer
//	result: {name: "Ada (draft)" dirty, email: "new@x"}
//
// A row that is the same age or older leaves the instance untouched. Rows
// without a timestamp, and types that do not maintain timestamps, always
// count as more recent. Timestamps that cannot be parsed fail with
// ErrUnparseableTimestamp rather than silently being treated as stale.
//
// # Key Serialization
//
// Keys are serialized to "connection:type:id". Numeric ids of any width
// serialize alike, so a row read as int64 finds an instance registered with
// an int id. The default serializer does not escape the separator; use
// NewEscapingKeySerializer when entity types or connection names may contain
// it:
//
//	ids := identity.NewMap(identity.WithKeySerializer(identity.NewEscapingKeySerializer()))
//
// # Lifetime
//
// Entries live until they are removed by a delete event or the map is
// flushed. There is no eviction and no size bound; scope a Map to the unit of
// work that should share instances.
package identity
