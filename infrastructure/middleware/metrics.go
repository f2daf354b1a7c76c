package middleware

import (
	"context"
	"time"

	"github.com/dbbuilder/sqlmcp-saas-sub003/domain/middleware"
	"github.com/dbbuilder/sqlmcp-saas-sub003/infrastructure/telemetry"
)

// Metrics returns middleware that records call counts and durations for
// every dispatched tool call. A nil recorder disables collection.
func Metrics(m telemetry.Metrics) middleware.Middleware {
	if m == nil {
		m = &telemetry.NoopMetricsProvider{}
	}

	return func(next middleware.Handler) middleware.Handler {
		return func(ctx context.Context, call *middleware.Call) (any, error) {
			start := time.Now()

			result, err := next(ctx, call)

			m.RecordToolCall(ctx, call.Tool, call.Database, err == nil, time.Since(start))

			return result, err
		}
	}
}
