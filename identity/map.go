package identity

import (
	"github.com/puzpuzpuz/xsync/v3"
)

// Map holds at most one entity per identity key.
// Every operation is atomic; sequences of operations are not.
type Map interface {
	Has(key Key) bool
	Get(key Key) (Entity, bool)
	// Put stores entity under key, replacing any previous entry.
	Put(key Key, entity Entity)
	// Remove deletes the entry for key. It is a no-op when absent.
	Remove(key Key)
	// Flush removes every entry.
	Flush()
	// All returns the stored entities in unspecified order.
	All() []Entity
	Len() int
}

// MapOption configures the default Map.
type MapOption func(*identityMap)

// WithKeySerializer sets the serializer used to turn keys into map slots.
func WithKeySerializer(s KeySerializer) MapOption {
	return func(m *identityMap) {
		if s != nil {
			m.keySerializer = s
		}
	}
}

// identityMap is backed by a concurrent xsync map keyed by the serialized key.
type identityMap struct {
	entries       *xsync.MapOf[string, Entity]
	keySerializer KeySerializer
}

// NewMap creates an empty identity map.
func NewMap(opts ...MapOption) Map {
	m := &identityMap{
		entries:       xsync.NewMapOf[string, Entity](),
		keySerializer: NewDefaultKeySerializer(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *identityMap) Has(key Key) bool {
	_, ok := m.entries.Load(m.keySerializer.SerializeKey(key))
	return ok
}

func (m *identityMap) Get(key Key) (Entity, bool) {
	return m.entries.Load(m.keySerializer.SerializeKey(key))
}

func (m *identityMap) Put(key Key, entity Entity) {
	m.entries.Store(m.keySerializer.SerializeKey(key), entity)
}

func (m *identityMap) Remove(key Key) {
	m.entries.Delete(m.keySerializer.SerializeKey(key))
}

func (m *identityMap) Flush() {
	m.entries.Clear()
}

func (m *identityMap) All() []Entity {
	out := make([]Entity, 0, m.entries.Size())
	m.entries.Range(func(_ string, e Entity) bool {
		out = append(out, e)
		return true
	})
	return out
}

func (m *identityMap) Len() int {
	return m.entries.Size()
}
