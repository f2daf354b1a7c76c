package telemetry

import (
	"context"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// setupTestMetrics sets up a test meter provider and returns it along with a reader.
func setupTestMetrics(t *testing.T) (*metric.ManualReader, *MetricsProvider) {
	reader := metric.NewManualReader()
	provider := metric.NewMeterProvider(metric.WithReader(reader))
	otel.SetMeterProvider(provider)

	mp := NewMetricsProvider(DefaultMetricsConfig())
	if mp.Error() != nil {
		t.Fatalf("failed to create metrics provider: %v", mp.Error())
	}

	return reader, mp
}

// collectMetricNames collects current metrics and returns the set of names seen.
func collectMetricNames(t *testing.T, reader *metric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("failed to collect metrics: %v", err)
	}

	seen := make(map[string]metricdata.Metrics)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			seen[m.Name] = m
		}
	}
	return seen
}

func TestNewMetricsProvider(t *testing.T) {
	reader, mp := setupTestMetrics(t)
	defer reader.Shutdown(context.Background())

	if mp == nil {
		t.Fatal("NewMetricsProvider returned nil")
	}
	if mp.Error() != nil {
		t.Errorf("unexpected error: %v", mp.Error())
	}
}

func TestMetricsProvider_RecordToolCall(t *testing.T) {
	reader, mp := setupTestMetrics(t)
	defer reader.Shutdown(context.Background())

	ctx := context.Background()

	// Record a successful call and a failed one
	mp.RecordToolCall(ctx, "query", "demo", true, 100*time.Millisecond)
	mp.RecordToolCall(ctx, "execute", "demo", false, 50*time.Millisecond)

	seen := collectMetricNames(t, reader)

	m, ok := seen["sqlmcp.tool.calls"]
	if !ok {
		t.Fatal("sqlmcp.tool.calls metric not found")
	}
	sum, ok := m.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("expected Sum[int64], got %T", m.Data)
	}
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	if total != 2 {
		t.Errorf("expected 2 calls, got %d", total)
	}

	if _, ok := seen["sqlmcp.tool.duration"]; !ok {
		t.Error("sqlmcp.tool.duration metric not found")
	}

	// The failed call also counts as an error
	if _, ok := seen["sqlmcp.errors"]; !ok {
		t.Error("sqlmcp.errors metric not found")
	}
}

func TestMetricsProvider_RecordValidation(t *testing.T) {
	reader, mp := setupTestMetrics(t)
	defer reader.Shutdown(context.Background())

	ctx := context.Background()

	mp.RecordValidation(ctx, "demo", "allowed")
	mp.RecordValidation(ctx, "demo", "blocked")
	mp.RecordValidation(ctx, "demo", "requires_approval")

	seen := collectMetricNames(t, reader)

	m, ok := seen["sqlmcp.statements.validated"]
	if !ok {
		t.Fatal("sqlmcp.statements.validated metric not found")
	}
	sum, ok := m.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("expected Sum[int64], got %T", m.Data)
	}
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	if total != 3 {
		t.Errorf("expected 3 validations, got %d", total)
	}
}

func TestMetricsProvider_RecordTaskTransition(t *testing.T) {
	reader, mp := setupTestMetrics(t)
	defer reader.Shutdown(context.Background())

	ctx := context.Background()

	mp.RecordTaskTransition(ctx, "created", "pending_approval", "task-123")
	mp.RecordTaskTransition(ctx, "pending_approval", "approved", "task-123")

	seen := collectMetricNames(t, reader)
	if _, ok := seen["sqlmcp.task.transitions"]; !ok {
		t.Error("sqlmcp.task.transitions metric not found")
	}
}

func TestMetricsProvider_RecordRetry(t *testing.T) {
	reader, mp := setupTestMetrics(t)
	defer reader.Shutdown(context.Background())

	ctx := context.Background()

	mp.RecordRetry(ctx, "demo", 1)
	mp.RecordRetry(ctx, "demo", 2)

	seen := collectMetricNames(t, reader)
	if _, ok := seen["sqlmcp.backend.retries"]; !ok {
		t.Error("sqlmcp.backend.retries metric not found")
	}
}

func TestMetricsProvider_RecordRateLimitHit(t *testing.T) {
	reader, mp := setupTestMetrics(t)
	defer reader.Shutdown(context.Background())

	ctx := context.Background()

	mp.RecordRateLimitHit(ctx, "agent-1")

	seen := collectMetricNames(t, reader)
	if _, ok := seen["sqlmcp.ratelimit.hits"]; !ok {
		t.Error("sqlmcp.ratelimit.hits metric not found")
	}
}

func TestMetricsProvider_RecordContractHitMiss(t *testing.T) {
	reader, mp := setupTestMetrics(t)
	defer reader.Shutdown(context.Background())

	ctx := context.Background()

	mp.RecordContractHit(ctx, "dbo.usp_GetCustomer")
	mp.RecordContractMiss(ctx, "dbo.usp_ArchiveOrders")

	seen := collectMetricNames(t, reader)
	if _, ok := seen["sqlmcp.contract.hits"]; !ok {
		t.Error("sqlmcp.contract.hits metric not found")
	}
	if _, ok := seen["sqlmcp.contract.misses"]; !ok {
		t.Error("sqlmcp.contract.misses metric not found")
	}
}

func TestMetricsProvider_RecordAuditWrite(t *testing.T) {
	reader, mp := setupTestMetrics(t)
	defer reader.Shutdown(context.Background())

	ctx := context.Background()

	mp.RecordAuditWrite(ctx, "statement_executed", true)

	seen := collectMetricNames(t, reader)
	if _, ok := seen["sqlmcp.audit.writes"]; !ok {
		t.Error("sqlmcp.audit.writes metric not found")
	}
}

func TestMetricsProvider_RecordError(t *testing.T) {
	reader, mp := setupTestMetrics(t)
	defer reader.Shutdown(context.Background())

	ctx := context.Background()

	mp.RecordError(ctx, "validation", map[string]string{
		"tool.name": "query",
		"reason":    "blocked keyword",
	})

	seen := collectMetricNames(t, reader)
	if _, ok := seen["sqlmcp.errors"]; !ok {
		t.Error("sqlmcp.errors metric not found")
	}
}

func TestMetricsProvider_RecordDurations(t *testing.T) {
	reader, mp := setupTestMetrics(t)
	defer reader.Shutdown(context.Background())

	ctx := context.Background()

	mp.RecordToolCall(ctx, "query", "demo", true, 20*time.Millisecond)
	mp.RecordBackendDuration(ctx, "demo", true, 15*time.Millisecond)

	seen := collectMetricNames(t, reader)
	if _, ok := seen["sqlmcp.tool.duration"]; !ok {
		t.Error("sqlmcp.tool.duration metric not found")
	}
	if _, ok := seen["sqlmcp.backend.duration"]; !ok {
		t.Error("sqlmcp.backend.duration metric not found")
	}
}

func TestMetricsProvider_ActiveTasks(t *testing.T) {
	reader, mp := setupTestMetrics(t)
	defer reader.Shutdown(context.Background())

	ctx := context.Background()

	mp.IncrementActiveTasks(ctx)
	mp.IncrementActiveTasks(ctx)
	mp.DecrementActiveTasks(ctx)

	seen := collectMetricNames(t, reader)
	if _, ok := seen["sqlmcp.tasks.active"]; !ok {
		t.Error("sqlmcp.tasks.active metric not found")
	}
}

func TestMetricsProvider_RecordCircuitBreakerStateChange(t *testing.T) {
	reader, mp := setupTestMetrics(t)
	defer reader.Shutdown(context.Background())

	ctx := context.Background()

	mp.RecordCircuitBreakerStateChange(ctx, "demo", true)
	mp.RecordCircuitBreakerStateChange(ctx, "demo", false)

	seen := collectMetricNames(t, reader)
	if _, ok := seen["sqlmcp.circuitbreaker.open"]; !ok {
		t.Error("sqlmcp.circuitbreaker.open metric not found")
	}
}

func TestMetricsProvider_RecordSanitizerWarning(t *testing.T) {
	reader, mp := setupTestMetrics(t)
	defer reader.Shutdown(context.Background())

	ctx := context.Background()

	mp.RecordSanitizerWarning(ctx, "demo", "comment_sequence")

	seen := collectMetricNames(t, reader)
	if _, ok := seen["sqlmcp.sanitizer.warnings"]; !ok {
		t.Error("sqlmcp.sanitizer.warnings metric not found")
	}
}

func TestNoopMetricsProvider(t *testing.T) {
	// Verify that NoopMetricsProvider doesn't panic
	noop := &NoopMetricsProvider{}
	ctx := context.Background()

	noop.RecordToolCall(ctx, "query", "demo", true, time.Second)
	noop.RecordValidation(ctx, "demo", "allowed")
	noop.RecordSanitizerWarning(ctx, "demo", "signature")
	noop.RecordTaskTransition(ctx, "from", "to", "task")
	noop.RecordRetry(ctx, "demo", 1)
	noop.RecordRateLimitHit(ctx, "agent")
	noop.RecordContractHit(ctx, "proc")
	noop.RecordContractMiss(ctx, "proc")
	noop.RecordAuditWrite(ctx, "action", true)
	noop.RecordError(ctx, "kind", nil)
	noop.RecordBackendDuration(ctx, "demo", true, time.Second)
	noop.IncrementActiveTasks(ctx)
	noop.DecrementActiveTasks(ctx)
	noop.RecordCircuitBreakerStateChange(ctx, "demo", true)
}

func TestDefaultMetricsConfig(t *testing.T) {
	config := DefaultMetricsConfig()

	if config.MeterName == "" {
		t.Error("MeterName should not be empty")
	}
	if config.MeterVersion == "" {
		t.Error("MeterVersion should not be empty")
	}
}
