package identity

import (
	"go.uber.org/zap"
)

// ConstructFunc builds a fresh model from a raw row read on connection.
type ConstructFunc func(attrs Attributes, connection string) (Model, error)

// Materializer turns raw rows into models, reusing the instance already held
// in the identity map for the same key.
type Materializer struct {
	ids    Map
	logger *zap.Logger
}

// MaterializerOption configures a Materializer.
type MaterializerOption func(*Materializer)

// WithLogger sets the logger used for debug events.
func WithLogger(logger *zap.Logger) MaterializerOption {
	return func(m *Materializer) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// NewMaterializer creates a Materializer backed by ids.
func NewMaterializer(ids Map, opts ...MaterializerOption) *Materializer {
	m := &Materializer{ids: ids, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Map returns the identity map the materializer registers into.
func (m *Materializer) Map() Map {
	return m.ids
}

// Materialize returns the model the caller should receive for attrs.
//
// prototype describes the entity type (key name, identity awareness). Rows
// without a key, and rows of types that are not identity aware, are always
// built fresh and never registered. A row whose key is already mapped is
// reconciled into the cached instance, which is returned. Otherwise a new
// model is built and registered under the key it reports.
func (m *Materializer) Materialize(prototype Model, attrs Attributes, connection string, construct ConstructFunc) (Model, error) {
	if construct == nil {
		return nil, ErrNilConstructor
	}

	id, ok := attrs.Get(prototype.KeyName())
	if !ok || id == nil {
		return construct(attrs, connection)
	}

	proto, aware := AsEntity(prototype)
	if !aware {
		return construct(attrs, connection)
	}

	key := proto.ModelIdentity(id, connection)
	if cached, found := m.ids.Get(key); found {
		if _, err := m.Reconcile(cached, attrs); err != nil {
			return nil, err
		}
		return cached, nil
	}

	model, err := construct(attrs, connection)
	if err != nil {
		return nil, err
	}

	if entity, ok := AsEntity(model); ok {
		registered := entity.ModelIdentity(nil, "")
		m.ids.Put(registered, entity)
		m.logger.Debug("identity registered", zap.Stringer("key", registered))
	}

	return model, nil
}

type originaler interface {
	Original() Attributes
}

// cleanBaseline returns the last synced attributes of cached. Models that do
// not expose them get their current attributes minus the dirty ones.
func cleanBaseline(cached Model, dirty Attributes) Attributes {
	if o, ok := cached.(originaler); ok {
		return o.Original()
	}
	base := cached.RawAttributes()
	for _, name := range dirty.Keys() {
		base.Delete(name)
	}
	return base
}

// Reconcile merges attrs into cached when they are more recent. The incoming
// attributes are laid over the clean baseline, so columns a partial select
// left out keep their cached values, and the cached model's dirty attributes
// are applied on top. It reports whether the model changed.
func (m *Materializer) Reconcile(cached Model, attrs Attributes) (bool, error) {
	newer, err := IsMoreRecent(cached, attrs)
	if err != nil {
		return false, err
	}
	if !newer {
		m.logger.Debug("identity kept cached attributes",
			zap.String("entity", cached.EntityType()),
			zap.Any("key", cached.Key()),
		)
		return false, nil
	}

	dirty := cached.Dirty()
	cached.SetRawAttributes(cleanBaseline(cached, dirty).Merge(attrs), true)
	cached.SetRawAttributes(cached.RawAttributes().Merge(dirty), false)

	m.logger.Debug("identity reconciled",
		zap.String("entity", cached.EntityType()),
		zap.Any("key", cached.Key()),
		zap.Strings("dirty", dirty.Keys()),
	)
	return true, nil
}
