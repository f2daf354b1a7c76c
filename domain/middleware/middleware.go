// Package middleware provides composable middleware for tool call dispatch.
package middleware

import (
	"context"
	"encoding/json"
)

// Call contains all information needed for middleware decisions about one
// tool invocation.
type Call struct {
	// Tool is the catalog name of the tool being invoked.
	Tool string
	// UserID identifies the caller for throttling and audit.
	UserID string
	// Database is the logical database the call targets, if any.
	Database string
	// Arguments is the raw JSON argument payload.
	Arguments json.RawMessage
	// CorrelationID ties the call to its audit records.
	CorrelationID string
}

// Handler executes a tool call and returns its result payload.
type Handler func(ctx context.Context, call *Call) (any, error)

// Middleware wraps a Handler with additional behavior.
// Middleware can:
// - Execute code before the next handler
// - Execute code after the next handler
// - Short-circuit by not calling next
// - Modify the call
// - Transform results or errors
type Middleware func(next Handler) Handler

// Chain composes multiple middleware into a single middleware.
// Middleware are executed in the order provided, with each wrapping the next.
// For example, Chain(A, B, C) produces: A -> B -> C -> handler
func Chain(middlewares ...Middleware) Middleware {
	return func(final Handler) Handler {
		// Build chain from right to left so execution is left to right
		handler := final
		for i := len(middlewares) - 1; i >= 0; i-- {
			handler = middlewares[i](handler)
		}
		return handler
	}
}

// Noop returns a middleware that does nothing, just passes through.
func Noop() Middleware {
	return func(next Handler) Handler {
		return next
	}
}
