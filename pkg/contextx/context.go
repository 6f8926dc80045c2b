package contextx

import (
	"context"
)

type key struct{}

// Context holds request scoped values of the admin API.
type Context struct {
	OwnerID string
}

func WithContext(ctx context.Context, v *Context) context.Context {
	return context.WithValue(ctx, key{}, v)
}

func FromContext(ctx context.Context) (*Context, bool) {
	value, ok := ctx.Value(key{}).(*Context)
	return value, ok
}

func GetOwnerID(ctx context.Context) string {
	if c, ok := FromContext(ctx); ok {
		return c.OwnerID
	}
	return ""
}
