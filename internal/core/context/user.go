// Package context provides request-scoped values extraction.
package context

import (
	"context"
)

// UserContext contains the authenticated caller.
// The journal does not own user records; identity comes from the token issuer.
type UserContext struct {
	UserID   string
	Username string
	Roles    []string
	IsAdmin  bool
}

type userContextKey struct{}

// WithUser adds UserContext to context.
func WithUser(ctx context.Context, user *UserContext) context.Context {
	return context.WithValue(ctx, userContextKey{}, user)
}

// GetUser returns UserContext from context.
func GetUser(ctx context.Context) *UserContext {
	if v, ok := ctx.Value(userContextKey{}).(*UserContext); ok {
		return v
	}
	return nil
}

// IsAdmin reports whether the caller in ctx is a journal administrator.
func IsAdmin(ctx context.Context) bool {
	if u := GetUser(ctx); u != nil {
		return u.IsAdmin
	}
	return false
}
