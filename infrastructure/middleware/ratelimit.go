// Package middleware provides dispatch middleware for the gateway: rate
// limiting, call logging, metrics and tracing around tool invocations.
package middleware

import (
	"context"
	"fmt"

	"github.com/felixgeelhaar/fortify/ratelimit"

	"github.com/dbbuilder/sqlmcp-saas-sub003/domain/fault"
	"github.com/dbbuilder/sqlmcp-saas-sub003/domain/middleware"
	"github.com/dbbuilder/sqlmcp-saas-sub003/infrastructure/logging"
	"github.com/dbbuilder/sqlmcp-saas-sub003/infrastructure/telemetry"
)

// RateLimitScope defines the scope for rate limiting.
type RateLimitScope string

const (
	// ScopeGlobal applies rate limiting across all callers and tools.
	ScopeGlobal RateLimitScope = "global"
	// ScopePerUser applies rate limiting per caller.
	ScopePerUser RateLimitScope = "per_user"
	// ScopePerTool applies rate limiting per tool.
	ScopePerTool RateLimitScope = "per_tool"
	// ScopePerUserTool applies rate limiting per caller and tool combination.
	ScopePerUserTool RateLimitScope = "per_user_tool"
)

// RateLimitConfig configures the rate limiting middleware.
type RateLimitConfig struct {
	// Limiter is the rate limiter to use.
	// If nil, a default limiter will be created with the specified options.
	Limiter ratelimit.RateLimiter

	// Scope determines how rate limiting keys are generated.
	// Default is ScopePerUser.
	Scope RateLimitScope

	// Rate is the number of tokens added per interval.
	// Only used if Limiter is nil.
	Rate int

	// Burst is the maximum number of tokens (bucket capacity).
	// Only used if Limiter is nil.
	Burst int

	// FailOpen determines behavior when the rate limiter fails.
	// If true, allows requests when the rate limiter is unavailable.
	// If false (default), denies requests when the rate limiter fails.
	FailOpen bool

	// Metrics records throttle hits when set.
	Metrics telemetry.Metrics

	// OnLimitExceeded is called when a request is rate limited.
	OnLimitExceeded func(ctx context.Context, call *middleware.Call)
}

// DefaultRateLimitConfig returns a sensible default rate limit configuration.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		Scope: ScopePerUser,
		Rate:  10,
		Burst: 20,
	}
}

// RateLimit returns middleware that enforces rate limits on tool calls.
// It uses fortify's token bucket rate limiter to control request rates.
func RateLimit(cfg RateLimitConfig) middleware.Middleware {
	// Create limiter if not provided
	limiter := cfg.Limiter
	if limiter == nil {
		rate := cfg.Rate
		if rate <= 0 {
			rate = 10
		}
		burst := cfg.Burst
		if burst <= 0 {
			burst = rate
		}
		limiter = ratelimit.New(&ratelimit.Config{
			Rate:     rate,
			Burst:    burst,
			FailOpen: cfg.FailOpen,
		})
	}

	scope := cfg.Scope
	if scope == "" {
		scope = ScopePerUser
	}

	return func(next middleware.Handler) middleware.Handler {
		return func(ctx context.Context, call *middleware.Call) (any, error) {
			key := generateRateLimitKey(scope, call)

			if !limiter.Allow(ctx, key) {
				logging.Warn().
					Add(logging.User(call.UserID)).
					Add(logging.ToolName(call.Tool)).
					Add(logging.Str("scope", string(scope))).
					Add(logging.Str("key", key)).
					Msg("rate limit exceeded")

				if cfg.Metrics != nil {
					cfg.Metrics.RecordRateLimitHit(ctx, call.UserID)
				}
				if cfg.OnLimitExceeded != nil {
					cfg.OnLimitExceeded(ctx, call)
				}

				return nil, fault.New(fault.KindResilienceExhausted, "rate limit exceeded").
					WithCorrelation(call.CorrelationID).
					WithData("tool", call.Tool)
			}

			return next(ctx, call)
		}
	}
}

// generateRateLimitKey generates a rate limiting key based on scope. Callers
// without an identity share one anonymous bucket.
func generateRateLimitKey(scope RateLimitScope, call *middleware.Call) string {
	user := call.UserID
	if user == "" {
		user = "anonymous"
	}
	switch scope {
	case ScopePerUser:
		return user
	case ScopePerTool:
		return call.Tool
	case ScopePerUserTool:
		return fmt.Sprintf("%s:%s", user, call.Tool)
	default:
		return "global"
	}
}
