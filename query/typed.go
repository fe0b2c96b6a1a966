package query

import (
	"context"
	"fmt"

	"github.com/goliatone/go-repository-identity/identity"
)

// Find is the typed form of Builder.Find.
func Find[T identity.Model](ctx context.Context, b *Builder, id any) (T, error) {
	var zero T
	m, err := b.Find(ctx, id)
	if err != nil {
		return zero, err
	}
	return cast[T](m)
}

// FindMany is the typed form of Builder.FindMany.
func FindMany[T identity.Model](ctx context.Context, b *Builder, ids []any) ([]T, error) {
	models, err := b.FindMany(ctx, ids)
	if err != nil {
		return nil, err
	}
	return castAll[T](models)
}

// Get is the typed form of Builder.Get.
func Get[T identity.Model](ctx context.Context, b *Builder) ([]T, error) {
	models, err := b.Get(ctx)
	if err != nil {
		return nil, err
	}
	return castAll[T](models)
}

// RelationOf returns the loaded relation name of m as T.
func RelationOf[T any](m identity.Model, name string) (T, bool) {
	var zero T
	h, ok := m.(RelationHolder)
	if !ok {
		return zero, false
	}
	v, ok := h.Relation(name)
	if !ok || v == nil {
		return zero, false
	}
	t, ok := v.(T)
	return t, ok
}

func cast[T identity.Model](m identity.Model) (T, error) {
	t, ok := m.(T)
	if !ok {
		var zero T
		return zero, identity.Detail(ErrTypeMismatch,
			fmt.Sprintf("query: expected %T, got %T", zero, m), nil)
	}
	return t, nil
}

func castAll[T identity.Model](models []identity.Model) ([]T, error) {
	out := make([]T, 0, len(models))
	for _, m := range models {
		t, err := cast[T](m)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}
