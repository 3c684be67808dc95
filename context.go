package gymauth

import (
	"context"

	"github.com/ironhall/gymauth/backend"
)

// WithRequestID attaches a request id to ctx. Backend calls made with ctx send it as
// X-Request-ID instead of a generated one, and audit events record it.
func WithRequestID(ctx context.Context, id string) context.Context {
	return backend.WithRequestID(ctx, id)
}

func requestIDFromContext(ctx context.Context) string {
	id, _ := backend.RequestIDFromContext(ctx)
	return id
}
