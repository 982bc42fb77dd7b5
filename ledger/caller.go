package ledger

import "context"

// Caller is the authenticated identity on whose behalf an operation runs.
// Authentication happens outside the ledger; the ledger only requires that
// a caller is present.
type Caller struct {
	ID   string
	Name string
}

type callerContextKey struct{}

// WithCaller binds caller to ctx.
func WithCaller(ctx context.Context, caller Caller) context.Context {
	return context.WithValue(ctx, callerContextKey{}, caller)
}

// CallerFromContext returns the caller bound to ctx, if any.
func CallerFromContext(ctx context.Context) (Caller, bool) {
	caller, ok := ctx.Value(callerContextKey{}).(Caller)
	return caller, ok && caller.ID != ""
}

func requireCaller(ctx context.Context) (Caller, error) {
	caller, ok := CallerFromContext(ctx)
	if !ok {
		return Caller{}, ErrUnauthenticated
	}
	return caller, nil
}
