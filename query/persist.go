package query

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/goliatone/go-repository-identity/identity"
	"github.com/goliatone/go-repository-identity/model"
)

type keyTyper interface {
	KeyType() model.KeyType
}

type createdAtColumner interface {
	CreatedAtColumn() string
}

type connectionSetter interface {
	SetConnection(name string)
}

type existenceMarker interface {
	MarkExists(exists bool)
}

// Create inserts m and notifies observers, which registers identity aware
// models in the identity map.
func (b *Builder) Create(ctx context.Context, m identity.Model) error {
	attrs := m.RawAttributes()
	keyName := m.KeyName()

	if kt, ok := m.(keyTyper); ok && kt.KeyType() == model.KeyUUID {
		if v, _ := attrs.Get(keyName); v == nil {
			attrs.Set(keyName, uuid.New().String())
		}
	}

	if m.UsesTimestamps() {
		now := b.env.now().Format(m.DateFormat())
		if c, ok := m.(createdAtColumner); ok && c.CreatedAtColumn() != "" && !attrs.Has(c.CreatedAtColumn()) {
			attrs.Set(c.CreatedAtColumn(), now)
		}
		if col := m.UpdatedAtColumn(); col != "" && !attrs.Has(col) {
			attrs.Set(col, now)
		}
	}

	id, err := b.env.store.Insert(ctx, tableOf(m), attrs, keyName)
	if err != nil {
		return err
	}
	if v, _ := attrs.Get(keyName); v == nil {
		attrs.Set(keyName, id)
	}

	m.SetRawAttributes(attrs, true)
	if cs, ok := m.(connectionSetter); ok {
		cs.SetConnection(b.connection())
	}
	if em, ok := m.(existenceMarker); ok {
		em.MarkExists(true)
	}

	b.env.logger.Debug("model created",
		zap.String("entity", m.EntityType()),
		zap.Any("id", m.Key()),
	)
	for _, o := range b.env.observers {
		o.Created(m)
	}
	return nil
}

// Update writes the dirty attributes of m. The identity map is not touched:
// the mapped instance is already the one being updated.
func (b *Builder) Update(ctx context.Context, m identity.Model) error {
	id := m.Key()
	if id == nil {
		return ErrMissingKey
	}

	dirty := m.Dirty()
	if dirty.Len() == 0 {
		return nil
	}

	if m.UsesTimestamps() && m.UpdatedAtColumn() != "" && !dirty.Has(m.UpdatedAtColumn()) {
		now := b.env.now().Format(m.DateFormat())
		dirty.Set(m.UpdatedAtColumn(), now)
		attrs := m.RawAttributes()
		attrs.Set(m.UpdatedAtColumn(), now)
		m.SetRawAttributes(attrs, false)
	}

	if err := b.env.store.Update(ctx, tableOf(m), m.KeyName(), id, dirty); err != nil {
		return err
	}
	m.SetRawAttributes(m.RawAttributes(), true)

	b.env.logger.Debug("model updated",
		zap.String("entity", m.EntityType()),
		zap.Any("id", id),
		zap.Strings("columns", dirty.Keys()),
	)
	return nil
}

// Delete removes m from storage and notifies observers, which evicts identity
// aware models from the identity map.
func (b *Builder) Delete(ctx context.Context, m identity.Model) error {
	id := m.Key()
	if id == nil {
		return ErrMissingKey
	}
	if err := b.env.store.Delete(ctx, tableOf(m), m.KeyName(), id); err != nil {
		return err
	}
	if em, ok := m.(existenceMarker); ok {
		em.MarkExists(false)
	}

	b.env.logger.Debug("model deleted",
		zap.String("entity", m.EntityType()),
		zap.Any("id", id),
	)
	for _, o := range b.env.observers {
		o.Deleted(m)
	}
	return nil
}
