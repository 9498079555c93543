// Package correlation carries a per-request correlation ID through context.
package correlation

import (
	"context"

	"github.com/google/uuid"
)

// Header is the HTTP header used to propagate the correlation ID.
const Header = "X-Correlation-ID"

type contextKey struct{}

// With returns a context carrying the given correlation ID.
func With(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// FromContext returns the correlation ID stored in ctx, or "" if none is set.
func FromContext(ctx context.Context) string {
	id, _ := ctx.Value(contextKey{}).(string)
	return id
}

// FromContextOrNew returns the correlation ID stored in ctx, generating a
// fresh one when absent. The generated ID is not stored back into the context;
// it is scoped to the single outbound call that asked for it.
func FromContextOrNew(ctx context.Context) string {
	if id := FromContext(ctx); id != "" {
		return id
	}
	return uuid.New().String()
}
