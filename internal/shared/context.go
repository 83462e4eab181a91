package shared

import "context"

// Caller identifies the authenticated principal attached to a request.
type Caller struct {
	ID       int64
	Username string
}

type callerContextKey struct{}

// ContextWithCaller stores the authenticated caller in context.
func ContextWithCaller(ctx context.Context, caller Caller) context.Context {
	return context.WithValue(ctx, callerContextKey{}, caller)
}

// CallerFromContext extracts the authenticated caller from context.
func CallerFromContext(ctx context.Context) (Caller, bool) {
	caller, ok := ctx.Value(callerContextKey{}).(Caller)
	return caller, ok
}
