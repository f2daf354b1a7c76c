package middleware

import (
	"context"
	"testing"

	"github.com/felixgeelhaar/fortify/ratelimit"

	"github.com/dbbuilder/sqlmcp-saas-sub003/domain/fault"
	"github.com/dbbuilder/sqlmcp-saas-sub003/domain/middleware"
	"github.com/dbbuilder/sqlmcp-saas-sub003/infrastructure/telemetry"
)

// mockCall creates a call for testing.
func mockCall(user, tool string) *middleware.Call {
	return &middleware.Call{
		Tool:          tool,
		UserID:        user,
		Database:      "demo",
		CorrelationID: "corr-1",
	}
}

// successHandler is a handler that always succeeds.
func successHandler(_ context.Context, _ *middleware.Call) (any, error) {
	return "ok", nil
}

// captureMetrics records rate limit hits for assertions.
type captureMetrics struct {
	telemetry.NoopMetricsProvider
	hits []string
}

func (c *captureMetrics) RecordRateLimitHit(_ context.Context, userID string) {
	c.hits = append(c.hits, userID)
}

func TestRateLimit(t *testing.T) {
	t.Run("allows requests within limit", func(t *testing.T) {
		mw := RateLimit(RateLimitConfig{
			Rate:  100,
			Burst: 100,
		})

		handler := mw(successHandler)
		ctx := context.Background()

		for i := 0; i < 10; i++ {
			if _, err := handler(ctx, mockCall("agent-1", "query")); err != nil {
				t.Fatalf("request %d should succeed: %v", i, err)
			}
		}
	})

	t.Run("blocks requests exceeding limit", func(t *testing.T) {
		limiter := ratelimit.New(&ratelimit.Config{
			Rate:  1,
			Burst: 1,
		})

		mw := RateLimit(RateLimitConfig{
			Limiter: limiter,
		})

		handler := mw(successHandler)
		ctx := context.Background()

		if _, err := handler(ctx, mockCall("agent-1", "query")); err != nil {
			t.Fatalf("first request should succeed: %v", err)
		}

		_, err := handler(ctx, mockCall("agent-1", "query"))
		if !fault.Is(err, fault.KindResilienceExhausted) {
			t.Errorf("expected resilience exhausted fault, got: %v", err)
		}
	})

	t.Run("per user scope isolates callers", func(t *testing.T) {
		limiter := ratelimit.New(&ratelimit.Config{
			Rate:  1,
			Burst: 1,
		})

		mw := RateLimit(RateLimitConfig{
			Limiter: limiter,
			Scope:   ScopePerUser,
		})

		handler := mw(successHandler)
		ctx := context.Background()

		// Drain agent-1's bucket
		if _, err := handler(ctx, mockCall("agent-1", "query")); err != nil {
			t.Fatalf("first request should succeed: %v", err)
		}
		if _, err := handler(ctx, mockCall("agent-1", "query")); err == nil {
			t.Fatal("agent-1 second request should be throttled")
		}

		// agent-2 has its own bucket
		if _, err := handler(ctx, mockCall("agent-2", "query")); err != nil {
			t.Errorf("agent-2 should not be throttled: %v", err)
		}
	})

	t.Run("global scope shares one bucket", func(t *testing.T) {
		limiter := ratelimit.New(&ratelimit.Config{
			Rate:  1,
			Burst: 1,
		})

		mw := RateLimit(RateLimitConfig{
			Limiter: limiter,
			Scope:   ScopeGlobal,
		})

		handler := mw(successHandler)
		ctx := context.Background()

		if _, err := handler(ctx, mockCall("agent-1", "query")); err != nil {
			t.Fatalf("first request should succeed: %v", err)
		}

		_, err := handler(ctx, mockCall("agent-2", "schema"))
		if !fault.Is(err, fault.KindResilienceExhausted) {
			t.Errorf("expected global throttle across callers, got: %v", err)
		}
	})

	t.Run("records metrics and fires callback", func(t *testing.T) {
		limiter := ratelimit.New(&ratelimit.Config{
			Rate:  1,
			Burst: 1,
		})

		metrics := &captureMetrics{}
		callbackCalled := false
		mw := RateLimit(RateLimitConfig{
			Limiter: limiter,
			Metrics: metrics,
			OnLimitExceeded: func(_ context.Context, call *middleware.Call) {
				callbackCalled = true
				if call.UserID != "agent-cb" {
					t.Errorf("expected user agent-cb, got: %s", call.UserID)
				}
			},
		})

		handler := mw(successHandler)
		ctx := context.Background()

		_, _ = handler(ctx, mockCall("agent-cb", "query"))
		_, _ = handler(ctx, mockCall("agent-cb", "query"))

		if !callbackCalled {
			t.Error("OnLimitExceeded callback should have been called")
		}
		if len(metrics.hits) != 1 || metrics.hits[0] != "agent-cb" {
			t.Errorf("expected one recorded hit for agent-cb, got: %v", metrics.hits)
		}
	})
}

func TestGenerateRateLimitKey(t *testing.T) {
	call := mockCall("agent-1", "query")

	tests := []struct {
		scope RateLimitScope
		want  string
	}{
		{ScopeGlobal, "global"},
		{ScopePerUser, "agent-1"},
		{ScopePerTool, "query"},
		{ScopePerUserTool, "agent-1:query"},
	}

	for _, tt := range tests {
		if got := generateRateLimitKey(tt.scope, call); got != tt.want {
			t.Errorf("generateRateLimitKey(%s) = %s, want %s", tt.scope, got, tt.want)
		}
	}
}

func TestGenerateRateLimitKeyAnonymous(t *testing.T) {
	call := mockCall("", "query")

	if got := generateRateLimitKey(ScopePerUser, call); got != "anonymous" {
		t.Errorf("expected anonymous bucket, got: %s", got)
	}
	if got := generateRateLimitKey(ScopePerUserTool, call); got != "anonymous:query" {
		t.Errorf("expected anonymous:query, got: %s", got)
	}
}

func TestDefaultRateLimitConfig(t *testing.T) {
	cfg := DefaultRateLimitConfig()

	if cfg.Scope != ScopePerUser {
		t.Errorf("expected per_user scope, got: %s", cfg.Scope)
	}
	if cfg.Rate <= 0 || cfg.Burst <= 0 {
		t.Errorf("expected positive rate and burst, got: %d/%d", cfg.Rate, cfg.Burst)
	}
}
