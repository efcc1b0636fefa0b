package core

import "context"

type requestIDKey struct{}

// WithRequestID tags ctx with the inbound request ID so provider adapters
// can forward it upstream.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// GetRequestID returns the ID set by WithRequestID, or "".
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
