package domain

import "context"

type captureKey struct{}

// ContextWithSessionID tags ctx with the ID of the capture session a frame
// belongs to, so interceptors can tell concurrent sessions apart.
func ContextWithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, captureKey{}, sessionID)
}

// SessionIDFromContext returns the capture session ID, or "" outside a
// session.
func SessionIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(captureKey{}).(string)
	return id
}
