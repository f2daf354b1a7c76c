package telemetry

import (
	"context"
	"errors"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.ServiceName != "sqlmcp" {
		t.Errorf("expected default service name, got: %s", cfg.ServiceName)
	}
	if cfg.Enabled {
		t.Error("expected tracing disabled by default")
	}
	if cfg.SampleRatio != 1.0 {
		t.Errorf("expected 1.0 sample ratio, got: %f", cfg.SampleRatio)
	}
}

func TestConfigOptions(t *testing.T) {
	tests := []struct {
		name   string
		opts   []Option
		verify func(*testing.T, Config)
	}{
		{
			name: "WithServiceName",
			opts: []Option{WithServiceName("my-gateway")},
			verify: func(t *testing.T, cfg Config) {
				if cfg.ServiceName != "my-gateway" {
					t.Errorf("expected my-gateway, got: %s", cfg.ServiceName)
				}
			},
		},
		{
			name: "WithServiceVersion",
			opts: []Option{WithServiceVersion("1.2.3")},
			verify: func(t *testing.T, cfg Config) {
				if cfg.ServiceVersion != "1.2.3" {
					t.Errorf("expected 1.2.3, got: %s", cfg.ServiceVersion)
				}
			},
		},
		{
			name: "WithEnvironment",
			opts: []Option{WithEnvironment("production")},
			verify: func(t *testing.T, cfg Config) {
				if cfg.Environment != "production" {
					t.Errorf("expected production, got: %s", cfg.Environment)
				}
			},
		},
		{
			name: "WithOTLP",
			opts: []Option{WithOTLP("localhost:4317")},
			verify: func(t *testing.T, cfg Config) {
				if !cfg.Enabled {
					t.Error("expected tracing enabled")
				}
				if cfg.Exporter != ExporterOTLP {
					t.Errorf("expected OTLP exporter, got: %s", cfg.Exporter)
				}
				if cfg.Endpoint != "localhost:4317" {
					t.Errorf("expected localhost:4317, got: %s", cfg.Endpoint)
				}
			},
		},
		{
			name: "WithStdoutTracing",
			opts: []Option{WithStdoutTracing()},
			verify: func(t *testing.T, cfg Config) {
				if !cfg.Enabled {
					t.Error("expected tracing enabled")
				}
				if cfg.Exporter != ExporterStdout {
					t.Errorf("expected stdout exporter, got: %s", cfg.Exporter)
				}
			},
		},
		{
			name: "WithSampleRatio",
			opts: []Option{WithSampleRatio(0.5)},
			verify: func(t *testing.T, cfg Config) {
				if cfg.SampleRatio != 0.5 {
					t.Errorf("expected 0.5 sample ratio, got: %f", cfg.SampleRatio)
				}
			},
		},
		{
			name: "WithInsecure",
			opts: []Option{WithInsecure()},
			verify: func(t *testing.T, cfg Config) {
				if !cfg.Insecure {
					t.Error("expected insecure connection")
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			for _, opt := range tt.opts {
				opt(&cfg)
			}
			tt.verify(t, cfg)
		})
	}
}

func TestNewDisabledProvider(t *testing.T) {
	provider, err := New(WithServiceName("test-service"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer provider.Shutdown(context.Background())

	if provider.Tracer() == nil {
		t.Error("expected non-nil tracer")
	}
	if provider.Enabled() {
		t.Error("expected provider disabled")
	}
}

func TestProviderWithNoopExporter(t *testing.T) {
	provider, err := New(
		WithServiceName("test-service"),
		WithNoopTracing(),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer provider.Shutdown(context.Background())

	if provider.Tracer() == nil {
		t.Error("expected non-nil tracer")
	}
}

func TestProviderWithStdoutTracing(t *testing.T) {
	// Note: This creates actual stdout output
	provider, err := New(
		WithServiceName("test-service"),
		WithStdoutTracing(),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer provider.Shutdown(context.Background())

	if provider.Tracer() == nil {
		t.Error("expected non-nil tracer")
	}
	if !provider.Enabled() {
		t.Error("expected provider enabled")
	}
}

func TestProviderTracingSamplers(t *testing.T) {
	tests := []struct {
		name        string
		sampleRatio float64
	}{
		{"always sample", 1.0},
		{"never sample", 0.0},
		{"ratio sample", 0.5},
		{"ratio sample high", 1.5},
		{"ratio sample negative", -0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider, err := New(
				WithServiceName("test-service"),
				WithStdoutTracing(),
				WithSampleRatio(tt.sampleRatio),
			)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			provider.Shutdown(context.Background())
		})
	}
}

func TestProviderTracingUnknownExporter(t *testing.T) {
	provider := &Provider{
		config: Config{
			ServiceName:    "test",
			ServiceVersion: "1.0.0",
			Enabled:        true,
			Exporter:       ExporterType("invalid"),
		},
		shutdownFuncs: make([]func(context.Context) error, 0),
	}

	err := provider.setupTracing()
	if err == nil {
		t.Error("expected error for unknown exporter")
	}
}

func TestProviderShutdownWithError(t *testing.T) {
	provider := &Provider{
		config: DefaultConfig(),
		shutdownFuncs: []func(context.Context) error{
			func(ctx context.Context) error {
				return errors.New("shutdown error")
			},
		},
	}

	err := provider.Shutdown(context.Background())
	if err == nil {
		t.Error("expected error from shutdown")
	}
}

func TestProviderShutdownMultipleErrors(t *testing.T) {
	provider := &Provider{
		config: DefaultConfig(),
		shutdownFuncs: []func(context.Context) error{
			func(ctx context.Context) error {
				return errors.New("error 1")
			},
			func(ctx context.Context) error {
				return errors.New("error 2")
			},
		},
	}

	err := provider.Shutdown(context.Background())
	if err == nil {
		t.Error("expected error from shutdown")
	}
}

func TestNewStdoutProvider(t *testing.T) {
	provider, err := NewStdoutProvider("test-service")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer provider.Shutdown(context.Background())

	if provider.Tracer() == nil {
		t.Error("expected non-nil tracer")
	}
}

func TestNewNoopProvider(t *testing.T) {
	provider := NewNoopProvider()

	if provider.Tracer() == nil {
		t.Error("expected non-nil tracer")
	}
	if provider.Enabled() {
		t.Error("expected provider disabled")
	}

	// Shutdown should not error
	if err := provider.Shutdown(context.Background()); err != nil {
		t.Errorf("expected no error, got: %v", err)
	}
}
