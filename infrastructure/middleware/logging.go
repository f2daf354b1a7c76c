package middleware

import (
	"context"
	"time"

	"github.com/dbbuilder/sqlmcp-saas-sub003/domain/middleware"
	"github.com/dbbuilder/sqlmcp-saas-sub003/infrastructure/logging"
)

// LoggingConfig configures the call logging middleware.
type LoggingConfig struct {
	// LogArguments logs the raw tool arguments (may contain sensitive data,
	// keep off outside development).
	LogArguments bool
}

// Logging returns middleware that logs tool call dispatch.
func Logging(cfg LoggingConfig) middleware.Middleware {
	return func(next middleware.Handler) middleware.Handler {
		return func(ctx context.Context, call *middleware.Call) (any, error) {
			start := time.Now()

			entry := logging.Info().
				Add(logging.ToolName(call.Tool)).
				Add(logging.User(call.UserID)).
				Add(logging.Database(call.Database)).
				Add(logging.CorrelationID(call.CorrelationID))

			if cfg.LogArguments && len(call.Arguments) > 0 {
				entry = entry.Add(logging.Str("arguments", string(call.Arguments)))
			}

			entry.Msg("dispatching tool call")

			result, err := next(ctx, call)
			duration := time.Since(start)

			if err != nil {
				logging.Error().
					Add(logging.ToolName(call.Tool)).
					Add(logging.User(call.UserID)).
					Add(logging.CorrelationID(call.CorrelationID)).
					Add(logging.ErrorField(err)).
					Add(logging.Duration(duration)).
					Msg("tool call failed")
			} else {
				logging.Info().
					Add(logging.ToolName(call.Tool)).
					Add(logging.User(call.UserID)).
					Add(logging.CorrelationID(call.CorrelationID)).
					Add(logging.Duration(duration)).
					Msg("tool call completed")
			}

			return result, err
		}
	}
}
