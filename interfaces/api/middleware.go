// Package api provides the public API for embedding the sqlmcp gateway.
// This file provides dispatch middleware exports.
package api

import (
	"github.com/dbbuilder/sqlmcp-saas-sub003/domain/middleware"
	inframw "github.com/dbbuilder/sqlmcp-saas-sub003/infrastructure/middleware"
	"github.com/dbbuilder/sqlmcp-saas-sub003/infrastructure/telemetry"
)

// Re-export middleware types for custom dispatch chains.
type (
	// Middleware wraps a Handler with additional behavior.
	Middleware = middleware.Middleware
	// Handler executes a tool call and returns its result.
	Handler = middleware.Handler
	// Call carries one tool invocation through the dispatch chain.
	Call = middleware.Call

	// LoggingMiddlewareConfig configures the call logging middleware.
	LoggingMiddlewareConfig = inframw.LoggingConfig
	// RateLimitMiddlewareConfig configures the rate limiting middleware.
	RateLimitMiddlewareConfig = inframw.RateLimitConfig
	// TracingMiddlewareConfig configures the tracing middleware.
	TracingMiddlewareConfig = inframw.TracingConfig
)

// ChainMiddleware composes middleware into one; execution order follows the
// argument order.
func ChainMiddleware(middlewares ...Middleware) Middleware {
	return middleware.Chain(middlewares...)
}

// NoopMiddleware returns middleware that passes calls straight through.
func NoopMiddleware() Middleware {
	return middleware.Noop()
}

// LoggingMiddleware returns middleware that logs tool call dispatch.
func LoggingMiddleware(cfg LoggingMiddlewareConfig) Middleware {
	return inframw.Logging(cfg)
}

// MetricsMiddleware returns middleware that records per-call metrics.
func MetricsMiddleware(m Metrics) Middleware {
	return inframw.Metrics(m)
}

// RateLimitMiddleware returns middleware that throttles tool calls.
func RateLimitMiddleware(cfg RateLimitMiddlewareConfig) Middleware {
	return inframw.RateLimit(cfg)
}

// TracingMiddleware returns middleware that opens a span per tool call.
func TracingMiddleware(cfg TracingMiddlewareConfig) Middleware {
	return inframw.Tracing(cfg)
}

// BuildMiddleware assembles the dispatch chain a configuration asks for, in
// execution order: tracing outermost, then metrics, then rate limiting,
// then call logging closest to the gateway. Pass the metrics recorder used
// by the gateway, or nil when telemetry is off.
func BuildMiddleware(cfg *Config, metrics Metrics) []Middleware {
	var chain []Middleware

	if cfg.Telemetry.Enabled {
		chain = append(chain, inframw.Tracing(inframw.DefaultTracingConfig()))
	}
	if metrics != nil {
		chain = append(chain, inframw.Metrics(metrics))
	}
	if cfg.RateLimit.Enabled {
		chain = append(chain, inframw.RateLimit(inframw.RateLimitConfig{
			Rate:     cfg.RateLimit.Rate,
			Burst:    cfg.RateLimit.Burst,
			FailOpen: cfg.RateLimit.FailOpen,
			Metrics:  metrics,
		}))
	}
	chain = append(chain, inframw.Logging(inframw.LoggingConfig{}))

	return chain
}

// NewMetricsProvider creates the OpenTelemetry-backed metrics recorder.
func NewMetricsProvider() *telemetry.MetricsProvider {
	return telemetry.NewMetricsProvider(telemetry.DefaultMetricsConfig())
}

// NoopMetrics returns a metrics recorder that discards everything.
func NoopMetrics() Metrics {
	return &telemetry.NoopMetricsProvider{}
}
