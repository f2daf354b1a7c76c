package audit

import "context"

type correlationKey struct{}

// ContextWithCorrelationID tags the context with the request correlation id.
// Every audit event and log line produced under this context carries it.
func ContextWithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationKey{}, id)
}

// CorrelationIDFromContext returns the correlation id, or "" when the
// context carries none.
func CorrelationIDFromContext(ctx context.Context) string {
	val := ctx.Value(correlationKey{})
	if val == nil {
		return ""
	}
	id, ok := val.(string)
	if !ok {
		return ""
	}
	return id
}
