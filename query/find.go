package query

import (
	"context"
	"reflect"

	"go.uber.org/zap"

	"github.com/goliatone/go-repository-identity/identity"
)

// FindOrIdentify resolves id through the identity map before storage.
//
// A collection id behaves like FindMany. A scalar id returns a one element
// slice with the mapped instance when the gate holds and the key is mapped;
// otherwise it reads storage and returns zero or one model. Eager loads run
// in every case.
func (b *Builder) FindOrIdentify(ctx context.Context, id any) ([]identity.Model, error) {
	if ids, ok := asCollection(id); ok {
		return b.FindMany(ctx, ids)
	}

	if m := b.identifyModel(ctx, id); m != nil {
		b.env.logger.Debug("identity hit",
			zap.String("entity", b.prototype.EntityType()),
			zap.Any("id", id),
		)
		if err := b.eagerLoadRelations(ctx, []identity.Model{m}); err != nil {
			return nil, err
		}
		return []identity.Model{m}, nil
	}

	// eager loads run on b, so the key filter does not close the gate for them
	models, err := b.whereKey([]any{id}).Limit(1).getModels(ctx)
	if err != nil {
		return nil, err
	}
	if err := b.eagerLoadRelations(ctx, models); err != nil {
		return nil, err
	}
	return models, nil
}

// Find returns the model with the given key, or ErrModelNotFound.
func (b *Builder) Find(ctx context.Context, id any) (identity.Model, error) {
	if _, ok := asCollection(id); ok {
		return nil, ErrCollectionID
	}
	models, err := b.FindOrIdentify(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(models) == 0 {
		return nil, notFound(b.prototype.EntityType(), id)
	}
	return models[0], nil
}

// FindMany returns the models for ids.
//
// When the gate holds, mapped ids are answered from the identity map and a
// single storage read fetches the rest; no read happens when every id is
// mapped. Results follow the order of ids and ids with no row are left out.
// When the gate does not hold the whole list is read from storage.
func (b *Builder) FindMany(ctx context.Context, ids []any) ([]identity.Model, error) {
	if len(ids) == 0 {
		return []identity.Model{}, nil
	}

	if !b.identityMapped || !b.ShouldUseIdentityMap(ctx) {
		return b.whereKey(ids).Get(ctx)
	}

	slots := make([]identity.Model, len(ids))
	var missing []any
	seen := make(map[string]struct{}, len(ids))
	for i, id := range ids {
		if m := b.identifyModel(ctx, id); m != nil {
			slots[i] = m
			continue
		}
		sid := identity.SerializeID(id)
		if _, dup := seen[sid]; dup {
			continue
		}
		seen[sid] = struct{}{}
		missing = append(missing, id)
	}

	b.env.logger.Debug("identity find many",
		zap.String("entity", b.prototype.EntityType()),
		zap.Int("requested", len(ids)),
		zap.Int("missing", len(missing)),
	)

	if len(missing) > 0 {
		fresh, err := b.whereKey(missing).getModels(ctx)
		if err != nil {
			return nil, err
		}
		byID := make(map[string]identity.Model, len(fresh))
		for _, m := range fresh {
			byID[identity.SerializeID(m.Key())] = m
		}
		for i, id := range ids {
			if slots[i] == nil {
				slots[i] = byID[identity.SerializeID(id)]
			}
		}
	}

	models := make([]identity.Model, 0, len(slots))
	for _, m := range slots {
		if m != nil {
			models = append(models, m)
		}
	}

	if err := b.eagerLoadRelations(ctx, models); err != nil {
		return nil, err
	}
	return models, nil
}

// asCollection reports whether id is a list of ids. Byte slices are scalar.
func asCollection(id any) ([]any, bool) {
	switch v := id.(type) {
	case nil:
		return nil, false
	case []any:
		return v, true
	case []byte:
		return nil, false
	}

	rv := reflect.ValueOf(id)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}
