package api

import "context"

// userContextKey is the context key for the authenticated username.
type userContextKey struct{}

// WithUser returns a new context with the authenticated username attached.
func WithUser(ctx context.Context, username string) context.Context {
	return context.WithValue(ctx, userContextKey{}, username)
}

// UserFromContext extracts the authenticated username from the context.
// Returns "" if not present.
func UserFromContext(ctx context.Context) string {
	username, ok := ctx.Value(userContextKey{}).(string)
	if !ok {
		return ""
	}
	return username
}
