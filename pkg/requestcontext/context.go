// Package requestcontext provides HTTP-independent context accessors for request-scoped values.
//
// Middleware sets these values; services and stores read them without importing
// net/http.
//
//	caller := requestcontext.Principal(ctx)
//	requestID := requestcontext.RequestID(ctx)
package requestcontext

import (
	"context"

	"idregistry/pkg/domain"
)

type (
	principalKey struct{}
	requestIDKey struct{}
)

// Exported context keys for direct use in tests that need context.WithValue.
var (
	ContextKeyPrincipal = principalKey{}
	ContextKeyRequestID = requestIDKey{}
)

// Principal retrieves the authenticated caller from the context.
// Returns the empty principal if not set.
func Principal(ctx context.Context) domain.Principal {
	if p, ok := ctx.Value(ContextKeyPrincipal).(domain.Principal); ok {
		return p
	}
	return ""
}

// WithPrincipal injects the authenticated caller into the context.
func WithPrincipal(ctx context.Context, p domain.Principal) context.Context {
	return context.WithValue(ctx, ContextKeyPrincipal, p)
}

// RequestID retrieves the request ID from the context.
func RequestID(ctx context.Context) string {
	if reqID, ok := ctx.Value(ContextKeyRequestID).(string); ok {
		return reqID
	}
	return ""
}

// WithRequestID injects a request ID into the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}
