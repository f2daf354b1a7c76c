package telemetry

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// ExporterType specifies the telemetry exporter.
type ExporterType string

const (
	// ExporterOTLP exports to an OTLP endpoint (e.g., Jaeger, Tempo, Grafana).
	ExporterOTLP ExporterType = "otlp"

	// ExporterStdout exports to stdout (useful for development).
	ExporterStdout ExporterType = "stdout"

	// ExporterNoop disables export (no-op).
	ExporterNoop ExporterType = "noop"
)

// Config configures the telemetry provider.
type Config struct {
	// ServiceName is the name of the service for telemetry.
	ServiceName string

	// ServiceVersion is the version of the service.
	ServiceVersion string

	// Environment is the deployment environment (e.g., "production", "staging").
	Environment string

	// Enabled enables the tracing pipeline (default: false). When disabled
	// the provider hands out a no-op tracer and touches nothing global, so
	// request handling pays no telemetry cost.
	Enabled bool

	// Exporter specifies the trace exporter type.
	Exporter ExporterType

	// Endpoint is the OTLP endpoint (e.g., "localhost:4317").
	Endpoint string

	// Insecure disables TLS for the exporter connection.
	Insecure bool

	// SampleRatio is the sampling ratio (0.0-1.0, default: 1.0).
	SampleRatio float64

	// BatchTimeout is the batch export timeout.
	BatchTimeout time.Duration

	// MaxExportBatchSize is the maximum batch size.
	MaxExportBatchSize int
}

// DefaultConfig returns a default configuration.
func DefaultConfig() Config {
	return Config{
		ServiceName:        "sqlmcp",
		ServiceVersion:     "0.1.0",
		Environment:        "development",
		Enabled:            false,
		Exporter:           ExporterNoop,
		SampleRatio:        1.0,
		BatchTimeout:       5 * time.Second,
		MaxExportBatchSize: 512,
	}
}

// Option configures the telemetry provider.
type Option func(*Config)

// WithServiceName sets the service name.
func WithServiceName(name string) Option {
	return func(c *Config) {
		c.ServiceName = name
	}
}

// WithServiceVersion sets the service version.
func WithServiceVersion(version string) Option {
	return func(c *Config) {
		c.ServiceVersion = version
	}
}

// WithEnvironment sets the environment.
func WithEnvironment(env string) Option {
	return func(c *Config) {
		c.Environment = env
	}
}

// WithOTLP enables tracing with the OTLP exporter.
func WithOTLP(endpoint string) Option {
	return func(c *Config) {
		c.Enabled = true
		c.Exporter = ExporterOTLP
		c.Endpoint = endpoint
	}
}

// WithStdoutTracing enables stdout tracing (for development).
func WithStdoutTracing() Option {
	return func(c *Config) {
		c.Enabled = true
		c.Exporter = ExporterStdout
	}
}

// WithNoopTracing enables tracing with a no-op exporter.
func WithNoopTracing() Option {
	return func(c *Config) {
		c.Enabled = true
		c.Exporter = ExporterNoop
	}
}

// WithInsecure disables TLS for the exporter connection.
func WithInsecure() Option {
	return func(c *Config) {
		c.Insecure = true
	}
}

// WithSampleRatio sets the trace sampling ratio.
func WithSampleRatio(ratio float64) Option {
	return func(c *Config) {
		c.SampleRatio = ratio
	}
}

// Provider manages the tracing infrastructure.
type Provider struct {
	config         Config
	tracerProvider *sdktrace.TracerProvider
	tracer         trace.Tracer
	shutdownFuncs  []func(context.Context) error
}

// New creates a new telemetry provider.
func New(opts ...Option) (*Provider, error) {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	p := &Provider{
		config:        cfg,
		shutdownFuncs: make([]func(context.Context) error, 0),
	}

	if cfg.Enabled {
		if err := p.setupTracing(); err != nil {
			return nil, err
		}
	} else {
		p.tracer = noop.NewTracerProvider().Tracer(cfg.ServiceName)
	}

	return p, nil
}

// setupTracing initializes the tracing infrastructure.
func (p *Provider) setupTracing() error {
	ctx := context.Background()

	// Create resource with service attributes
	// We don't merge with Default() to avoid schema URL conflicts
	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(p.config.ServiceName),
		semconv.ServiceVersion(p.config.ServiceVersion),
		semconv.DeploymentEnvironment(p.config.Environment),
	)

	// Create exporter based on config
	var exporter sdktrace.SpanExporter

	switch p.config.Exporter {
	case ExporterOTLP:
		opts := []otlptracegrpc.Option{
			otlptracegrpc.WithEndpoint(p.config.Endpoint),
		}
		if p.config.Insecure {
			opts = append(opts, otlptracegrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())))
			opts = append(opts, otlptracegrpc.WithInsecure())
		}
		exp, err := otlptracegrpc.New(ctx, opts...)
		if err != nil {
			return err
		}
		exporter = exp

	case ExporterStdout:
		exp, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return err
		}
		exporter = exp

	case ExporterNoop:
		p.tracer = noop.NewTracerProvider().Tracer(p.config.ServiceName)
		return nil

	default:
		return errors.New("unknown trace exporter type")
	}

	// Create sampler
	var sampler sdktrace.Sampler
	if p.config.SampleRatio >= 1.0 {
		sampler = sdktrace.AlwaysSample()
	} else if p.config.SampleRatio <= 0.0 {
		sampler = sdktrace.NeverSample()
	} else {
		sampler = sdktrace.TraceIDRatioBased(p.config.SampleRatio)
	}

	// Create tracer provider
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter,
			sdktrace.WithBatchTimeout(p.config.BatchTimeout),
			sdktrace.WithMaxExportBatchSize(p.config.MaxExportBatchSize),
		),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler),
	)

	// Set global tracer provider
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	p.tracerProvider = tp
	p.tracer = tp.Tracer(p.config.ServiceName)
	p.shutdownFuncs = append(p.shutdownFuncs, tp.Shutdown)

	return nil
}

// Tracer returns the tracer.
func (p *Provider) Tracer() trace.Tracer {
	return p.tracer
}

// Enabled reports whether the tracing pipeline is active.
func (p *Provider) Enabled() bool {
	return p.tracerProvider != nil
}

// Shutdown gracefully shuts down the provider.
func (p *Provider) Shutdown(ctx context.Context) error {
	var errs []error
	for _, fn := range p.shutdownFuncs {
		if err := fn(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// NewStdoutProvider creates a provider with a stdout exporter (for development).
func NewStdoutProvider(serviceName string) (*Provider, error) {
	return New(
		WithServiceName(serviceName),
		WithStdoutTracing(),
	)
}

// NewOTLPProvider creates a provider with an OTLP exporter.
func NewOTLPProvider(serviceName, endpoint string) (*Provider, error) {
	return New(
		WithServiceName(serviceName),
		WithOTLP(endpoint),
		WithInsecure(),
	)
}

// NewNoopProvider creates a provider with a no-op tracer.
func NewNoopProvider() *Provider {
	return &Provider{
		config:        DefaultConfig(),
		tracer:        noop.NewTracerProvider().Tracer("sqlmcp"),
		shutdownFuncs: nil,
	}
}
