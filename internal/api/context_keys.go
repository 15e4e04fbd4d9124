// internal/api/context_keys.go
package api

import "context"

// Context key types to avoid collisions
type contextKey string

const (
	requestIDKey contextKey = "request_id"
)

// RequestIDFromContext returns the id assigned by the request id middleware.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}
