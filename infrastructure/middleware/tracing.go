package middleware

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/dbbuilder/sqlmcp-saas-sub003/domain/middleware"
)

// TracingConfig configures the tracing middleware.
type TracingConfig struct {
	// TracerName is the name of the tracer to use.
	TracerName string

	// Tracer is a custom tracer to use. If nil, a new tracer is created.
	Tracer trace.Tracer

	// RecordArguments determines if tool arguments should be recorded as
	// span attributes. Arguments may carry sensitive values, keep off
	// outside development.
	RecordArguments bool

	// MaxAttributeSize limits the size of recorded attributes.
	MaxAttributeSize int

	// SpanNamePrefix is prepended to span names.
	SpanNamePrefix string

	// AdditionalAttributes are added to all spans.
	AdditionalAttributes []attribute.KeyValue
}

// DefaultTracingConfig returns a sensible default configuration.
func DefaultTracingConfig() TracingConfig {
	return TracingConfig{
		TracerName:       "sqlmcp",
		RecordArguments:  false,
		MaxAttributeSize: 1024,
		SpanNamePrefix:   "tool.",
	}
}

// Tracing returns middleware that creates OpenTelemetry spans for tool calls.
func Tracing(cfg TracingConfig) middleware.Middleware {
	tracer := cfg.Tracer
	if tracer == nil {
		tracerName := cfg.TracerName
		if tracerName == "" {
			tracerName = "sqlmcp"
		}
		tracer = otel.Tracer(tracerName)
	}

	maxSize := cfg.MaxAttributeSize
	if maxSize <= 0 {
		maxSize = 1024
	}

	return func(next middleware.Handler) middleware.Handler {
		return func(ctx context.Context, call *middleware.Call) (any, error) {
			spanName := call.Tool
			if cfg.SpanNamePrefix != "" {
				spanName = cfg.SpanNamePrefix + spanName
			}

			ctx, span := tracer.Start(ctx, spanName,
				trace.WithSpanKind(trace.SpanKindServer),
			)
			defer span.End()

			attrs := []attribute.KeyValue{
				attribute.String("tool.name", call.Tool),
				attribute.String("user.id", call.UserID),
				attribute.String("db.name", call.Database),
				attribute.String("correlation.id", call.CorrelationID),
			}

			if cfg.RecordArguments && len(call.Arguments) > 0 {
				attrs = append(attrs, attribute.String("tool.arguments", truncate(string(call.Arguments), maxSize)))
			}

			attrs = append(attrs, cfg.AdditionalAttributes...)
			span.SetAttributes(attrs...)

			result, err := next(ctx, call)

			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
			} else {
				span.SetStatus(codes.Ok, "")
			}

			return result, err
		}
	}
}

// NewTracing creates tracing middleware with the given options.
func NewTracing(opts ...TracingOption) middleware.Middleware {
	cfg := DefaultTracingConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return Tracing(cfg)
}

// TracingOption configures the tracing middleware.
type TracingOption func(*TracingConfig)

// WithTracer sets a custom tracer.
func WithTracer(tracer trace.Tracer) TracingOption {
	return func(c *TracingConfig) {
		c.Tracer = tracer
	}
}

// WithTracerName sets the tracer name.
func WithTracerName(name string) TracingOption {
	return func(c *TracingConfig) {
		c.TracerName = name
	}
}

// WithArgumentRecording enables or disables argument recording.
func WithArgumentRecording(enabled bool) TracingOption {
	return func(c *TracingConfig) {
		c.RecordArguments = enabled
	}
}

// WithSpanNamePrefix sets the span name prefix.
func WithSpanNamePrefix(prefix string) TracingOption {
	return func(c *TracingConfig) {
		c.SpanNamePrefix = prefix
	}
}

// truncate truncates a string to the specified length.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "...[truncated]"
}
