package query

import (
	"context"
)

type refreshContextKey struct{}

// WithRefresh marks every query run with the returned context as a forced
// refresh: identity map shortcuts are skipped and rows are read from storage.
func WithRefresh(ctx context.Context) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, refreshContextKey{}, true)
}

func refreshRequested(ctx context.Context) bool {
	if ctx == nil {
		return false
	}
	v, _ := ctx.Value(refreshContextKey{}).(bool)
	return v
}
