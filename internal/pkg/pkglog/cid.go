package pkglog

import "context"

type correlationIDKey struct{}

// GetCorrelationID returns the correlation ID stored in ctx, or "" when the
// request never got one.
func GetCorrelationID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	cid, _ := ctx.Value(correlationIDKey{}).(string)
	return cid
}

// SetCorrelationID stores cid in ctx. Outbound calls made with the returned
// context forward it to the ingest server.
func SetCorrelationID(ctx context.Context, cid string) context.Context {
	return context.WithValue(ctx, correlationIDKey{}, cid)
}
