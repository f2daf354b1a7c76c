// Package telemetry provides observability infrastructure including
// OpenTelemetry metrics and tracing support for the gateway.
package telemetry

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricsProvider provides access to metrics instruments.
type MetricsProvider struct {
	meter metric.Meter

	// Counters
	toolCalls         metric.Int64Counter
	validations       metric.Int64Counter
	sanitizerWarnings metric.Int64Counter
	taskTransitions   metric.Int64Counter
	retries           metric.Int64Counter
	rateLimitHits     metric.Int64Counter
	contractHits      metric.Int64Counter
	contractMisses    metric.Int64Counter
	auditWrites       metric.Int64Counter
	errors            metric.Int64Counter

	// Histograms
	toolDuration    metric.Float64Histogram
	backendDuration metric.Float64Histogram

	// Gauges (using UpDownCounter for OpenTelemetry)
	activeTasks        metric.Int64UpDownCounter
	circuitBreakerOpen metric.Int64UpDownCounter

	initOnce sync.Once
	initErr  error
}

// MetricsConfig configures the metrics provider.
type MetricsConfig struct {
	// MeterName is the name of the meter (default: the module path).
	MeterName string
	// MeterVersion is the version of the meter.
	MeterVersion string
	// Attributes are default attributes to attach to all metrics.
	Attributes []attribute.KeyValue
}

// DefaultMetricsConfig returns a default metrics configuration.
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		MeterName:    "github.com/dbbuilder/sqlmcp-saas-sub003",
		MeterVersion: "0.1.0",
	}
}

// NewMetricsProvider creates a new metrics provider.
func NewMetricsProvider(config MetricsConfig) *MetricsProvider {
	if config.MeterName == "" {
		config = DefaultMetricsConfig()
	}

	provider := otel.GetMeterProvider()
	meter := provider.Meter(
		config.MeterName,
		metric.WithInstrumentationVersion(config.MeterVersion),
	)

	mp := &MetricsProvider{
		meter: meter,
	}

	mp.initOnce.Do(func() {
		mp.initErr = mp.initInstruments()
	})

	return mp
}

// initInstruments initializes all metric instruments.
func (mp *MetricsProvider) initInstruments() error {
	var err error

	// Counters
	mp.toolCalls, err = mp.meter.Int64Counter(
		"sqlmcp.tool.calls",
		metric.WithDescription("Number of tool invocations"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return err
	}

	mp.validations, err = mp.meter.Int64Counter(
		"sqlmcp.statements.validated",
		metric.WithDescription("Number of statements checked by the validator"),
		metric.WithUnit("{statement}"),
	)
	if err != nil {
		return err
	}

	mp.sanitizerWarnings, err = mp.meter.Int64Counter(
		"sqlmcp.sanitizer.warnings",
		metric.WithDescription("Number of parameter sanitizer warnings"),
		metric.WithUnit("{warning}"),
	)
	if err != nil {
		return err
	}

	mp.taskTransitions, err = mp.meter.Int64Counter(
		"sqlmcp.task.transitions",
		metric.WithDescription("Number of task status transitions"),
		metric.WithUnit("{transition}"),
	)
	if err != nil {
		return err
	}

	mp.retries, err = mp.meter.Int64Counter(
		"sqlmcp.backend.retries",
		metric.WithDescription("Number of retry attempts against backends"),
		metric.WithUnit("{retry}"),
	)
	if err != nil {
		return err
	}

	mp.rateLimitHits, err = mp.meter.Int64Counter(
		"sqlmcp.ratelimit.hits",
		metric.WithDescription("Number of rate limit hits"),
		metric.WithUnit("{hit}"),
	)
	if err != nil {
		return err
	}

	mp.contractHits, err = mp.meter.Int64Counter(
		"sqlmcp.contract.hits",
		metric.WithDescription("Number of contract cache hits"),
		metric.WithUnit("{hit}"),
	)
	if err != nil {
		return err
	}

	mp.contractMisses, err = mp.meter.Int64Counter(
		"sqlmcp.contract.misses",
		metric.WithDescription("Number of contract cache misses"),
		metric.WithUnit("{miss}"),
	)
	if err != nil {
		return err
	}

	mp.auditWrites, err = mp.meter.Int64Counter(
		"sqlmcp.audit.writes",
		metric.WithDescription("Number of audit events recorded"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return err
	}

	mp.errors, err = mp.meter.Int64Counter(
		"sqlmcp.errors",
		metric.WithDescription("Number of errors"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return err
	}

	// Histograms
	mp.toolDuration, err = mp.meter.Float64Histogram(
		"sqlmcp.tool.duration",
		metric.WithDescription("Duration of tool invocations"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return err
	}

	mp.backendDuration, err = mp.meter.Float64Histogram(
		"sqlmcp.backend.duration",
		metric.WithDescription("Duration of backend executions"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return err
	}

	// Gauges (UpDownCounters)
	mp.activeTasks, err = mp.meter.Int64UpDownCounter(
		"sqlmcp.tasks.active",
		metric.WithDescription("Number of tasks currently running"),
		metric.WithUnit("{task}"),
	)
	if err != nil {
		return err
	}

	mp.circuitBreakerOpen, err = mp.meter.Int64UpDownCounter(
		"sqlmcp.circuitbreaker.open",
		metric.WithDescription("Number of open circuit breakers"),
		metric.WithUnit("{circuit}"),
	)
	if err != nil {
		return err
	}

	return nil
}

// Error returns any initialization error.
func (mp *MetricsProvider) Error() error {
	return mp.initErr
}

// RecordToolCall records a tool invocation.
func (mp *MetricsProvider) RecordToolCall(ctx context.Context, toolName string, database string, success bool, duration time.Duration) {
	attrs := []attribute.KeyValue{
		attribute.String("tool.name", toolName),
		attribute.String("db.name", database),
		attribute.Bool("success", success),
	}

	mp.toolCalls.Add(ctx, 1, metric.WithAttributes(attrs...))
	mp.toolDuration.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(attrs...))

	if !success {
		mp.errors.Add(ctx, 1, metric.WithAttributes(
			attribute.String("error.kind", "tool_call"),
			attribute.String("tool.name", toolName),
		))
	}
}

// RecordValidation records a validator decision.
func (mp *MetricsProvider) RecordValidation(ctx context.Context, database string, decision string) {
	attrs := []attribute.KeyValue{
		attribute.String("db.name", database),
		attribute.String("decision", decision),
	}

	mp.validations.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordSanitizerWarning records a parameter sanitizer warning.
func (mp *MetricsProvider) RecordSanitizerWarning(ctx context.Context, database string, signature string) {
	attrs := []attribute.KeyValue{
		attribute.String("db.name", database),
		attribute.String("signature", signature),
	}

	mp.sanitizerWarnings.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordTaskTransition records a task status transition.
func (mp *MetricsProvider) RecordTaskTransition(ctx context.Context, fromStatus, toStatus string, taskID string) {
	attrs := []attribute.KeyValue{
		attribute.String("status.from", fromStatus),
		attribute.String("status.to", toStatus),
		attribute.String("task.id", taskID),
	}

	mp.taskTransitions.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordRetry records one retry attempt against a backend.
func (mp *MetricsProvider) RecordRetry(ctx context.Context, database string, attempt int) {
	attrs := []attribute.KeyValue{
		attribute.String("db.name", database),
		attribute.Int("attempt", attempt),
	}

	mp.retries.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordRateLimitHit records a rate limit hit.
func (mp *MetricsProvider) RecordRateLimitHit(ctx context.Context, userID string) {
	attrs := []attribute.KeyValue{
		attribute.String("user.id", userID),
	}

	mp.rateLimitHits.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordContractHit records a contract cache hit.
func (mp *MetricsProvider) RecordContractHit(ctx context.Context, procedure string) {
	attrs := []attribute.KeyValue{
		attribute.String("procedure", procedure),
	}

	mp.contractHits.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordContractMiss records a contract cache miss.
func (mp *MetricsProvider) RecordContractMiss(ctx context.Context, procedure string) {
	attrs := []attribute.KeyValue{
		attribute.String("procedure", procedure),
	}

	mp.contractMisses.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordAuditWrite records an audit trail write.
func (mp *MetricsProvider) RecordAuditWrite(ctx context.Context, action string, success bool) {
	attrs := []attribute.KeyValue{
		attribute.String("audit.action", action),
		attribute.Bool("success", success),
	}

	mp.auditWrites.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordError records an error.
func (mp *MetricsProvider) RecordError(ctx context.Context, errorKind string, details map[string]string) {
	attrs := []attribute.KeyValue{
		attribute.String("error.kind", errorKind),
	}
	for k, v := range details {
		attrs = append(attrs, attribute.String(k, v))
	}

	mp.errors.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordBackendDuration records the duration of one backend execution.
func (mp *MetricsProvider) RecordBackendDuration(ctx context.Context, database string, success bool, duration time.Duration) {
	attrs := []attribute.KeyValue{
		attribute.String("db.name", database),
		attribute.Bool("success", success),
	}

	mp.backendDuration.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(attrs...))
}

// IncrementActiveTasks increments the active tasks counter.
func (mp *MetricsProvider) IncrementActiveTasks(ctx context.Context) {
	mp.activeTasks.Add(ctx, 1)
}

// DecrementActiveTasks decrements the active tasks counter.
func (mp *MetricsProvider) DecrementActiveTasks(ctx context.Context) {
	mp.activeTasks.Add(ctx, -1)
}

// RecordCircuitBreakerStateChange records a circuit breaker state change.
func (mp *MetricsProvider) RecordCircuitBreakerStateChange(ctx context.Context, database string, isOpen bool) {
	attrs := []attribute.KeyValue{
		attribute.String("db.name", database),
	}

	if isOpen {
		mp.circuitBreakerOpen.Add(ctx, 1, metric.WithAttributes(attrs...))
	} else {
		mp.circuitBreakerOpen.Add(ctx, -1, metric.WithAttributes(attrs...))
	}
}

// NoopMetricsProvider is a no-op metrics provider for testing or when metrics are disabled.
type NoopMetricsProvider struct{}

// RecordToolCall is a no-op.
func (n *NoopMetricsProvider) RecordToolCall(ctx context.Context, toolName string, database string, success bool, duration time.Duration) {
}

// RecordValidation is a no-op.
func (n *NoopMetricsProvider) RecordValidation(ctx context.Context, database string, decision string) {
}

// RecordSanitizerWarning is a no-op.
func (n *NoopMetricsProvider) RecordSanitizerWarning(ctx context.Context, database string, signature string) {
}

// RecordTaskTransition is a no-op.
func (n *NoopMetricsProvider) RecordTaskTransition(ctx context.Context, fromStatus, toStatus string, taskID string) {
}

// RecordRetry is a no-op.
func (n *NoopMetricsProvider) RecordRetry(ctx context.Context, database string, attempt int) {}

// RecordRateLimitHit is a no-op.
func (n *NoopMetricsProvider) RecordRateLimitHit(ctx context.Context, userID string) {}

// RecordContractHit is a no-op.
func (n *NoopMetricsProvider) RecordContractHit(ctx context.Context, procedure string) {}

// RecordContractMiss is a no-op.
func (n *NoopMetricsProvider) RecordContractMiss(ctx context.Context, procedure string) {}

// RecordAuditWrite is a no-op.
func (n *NoopMetricsProvider) RecordAuditWrite(ctx context.Context, action string, success bool) {}

// RecordError is a no-op.
func (n *NoopMetricsProvider) RecordError(ctx context.Context, errorKind string, details map[string]string) {
}

// RecordBackendDuration is a no-op.
func (n *NoopMetricsProvider) RecordBackendDuration(ctx context.Context, database string, success bool, duration time.Duration) {
}

// IncrementActiveTasks is a no-op.
func (n *NoopMetricsProvider) IncrementActiveTasks(ctx context.Context) {}

// DecrementActiveTasks is a no-op.
func (n *NoopMetricsProvider) DecrementActiveTasks(ctx context.Context) {}

// RecordCircuitBreakerStateChange is a no-op.
func (n *NoopMetricsProvider) RecordCircuitBreakerStateChange(ctx context.Context, database string, isOpen bool) {
}

// Metrics defines the interface for metrics recording.
type Metrics interface {
	RecordToolCall(ctx context.Context, toolName string, database string, success bool, duration time.Duration)
	RecordValidation(ctx context.Context, database string, decision string)
	RecordSanitizerWarning(ctx context.Context, database string, signature string)
	RecordTaskTransition(ctx context.Context, fromStatus, toStatus string, taskID string)
	RecordRetry(ctx context.Context, database string, attempt int)
	RecordRateLimitHit(ctx context.Context, userID string)
	RecordContractHit(ctx context.Context, procedure string)
	RecordContractMiss(ctx context.Context, procedure string)
	RecordAuditWrite(ctx context.Context, action string, success bool)
	RecordError(ctx context.Context, errorKind string, details map[string]string)
	RecordBackendDuration(ctx context.Context, database string, success bool, duration time.Duration)
	IncrementActiveTasks(ctx context.Context)
	DecrementActiveTasks(ctx context.Context)
	RecordCircuitBreakerStateChange(ctx context.Context, database string, isOpen bool)
}

// Ensure implementations satisfy the interface.
var (
	_ Metrics = (*MetricsProvider)(nil)
	_ Metrics = (*NoopMetricsProvider)(nil)
)
