// Package correlation carries the request correlation id across calls.
package correlation

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

// Header is the HTTP header the id travels in
const Header = "X-Correlation-Id"

type contextKey struct{}

// NewID returns a fresh correlation id
func NewID() string {
	return uuid.NewString()
}

// WithID stores id on the context
func WithID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// FromContext returns the id stored on ctx, or "" if none
func FromContext(ctx context.Context) string {
	id, _ := ctx.Value(contextKey{}).(string)
	return id
}

// Propagate copies the id on ctx onto an outgoing request
func Propagate(ctx context.Context, req *http.Request) {
	if id := FromContext(ctx); id != "" {
		req.Header.Set(Header, id)
	}
}
