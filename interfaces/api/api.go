// Package api provides the public API for embedding the sqlmcp gateway.
//
// The gateway guards relational databases behind a JSON-RPC tool protocol:
// statements are validated against an immutable safety policy, parameters
// are sanitized, risky operations route through an approval workflow, and
// every decision lands in the audit trail.
//
// # Quick Start
//
// Assemble a gateway from the built-in defaults and serve it over stdio:
//
//	cfg := api.DefaultConfig()
//	server, components, err := api.New(ctx, cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer components.Close()
//
//	if err := server.ServeStdio(ctx, os.Stdin, os.Stdout); err != nil {
//	    log.Fatal(err)
//	}
//
// Load a configuration document instead of the defaults:
//
//	cfg, err := api.NewConfigLoader().LoadFile("gateway.yaml")
//
// Embedders that want their own dispatch pipeline can pass extra
// middleware:
//
//	server, components, err := api.New(ctx, cfg, api.WithMiddleware(myMiddleware))
package api

import (
	"context"
	"fmt"

	sqlmcp "github.com/dbbuilder/sqlmcp-saas-sub003"
	"github.com/dbbuilder/sqlmcp-saas-sub003/application/gateway"
	"github.com/dbbuilder/sqlmcp-saas-sub003/domain/backend"
	"github.com/dbbuilder/sqlmcp-saas-sub003/domain/policy"
	"github.com/dbbuilder/sqlmcp-saas-sub003/infrastructure/config"
	"github.com/dbbuilder/sqlmcp-saas-sub003/infrastructure/resilience"
	"github.com/dbbuilder/sqlmcp-saas-sub003/infrastructure/telemetry"
	"github.com/dbbuilder/sqlmcp-saas-sub003/infrastructure/workflow"
	"github.com/dbbuilder/sqlmcp-saas-sub003/interfaces/rpc"
)

// Re-export the assembled component types.
type (
	// Server is the JSON-RPC protocol server fronting the gateway.
	Server = rpc.Server
	// HTTPServer serves the protocol over HTTP.
	HTTPServer = rpc.HTTPServer
	// HTTPConfig configures the HTTP transport.
	HTTPConfig = rpc.HTTPConfig
	// Gateway is the orchestration core behind the protocol server.
	Gateway = gateway.Gateway
	// TelemetryProvider manages the tracing pipeline.
	TelemetryProvider = telemetry.Provider
	// Metrics records gateway metrics.
	Metrics = telemetry.Metrics
)

// NewHTTP wraps a protocol server in the HTTP transport.
func NewHTTP(server *Server, cfg HTTPConfig) *HTTPServer {
	return rpc.NewHTTP(server, cfg)
}

// Option adjusts gateway assembly.
type Option func(*options)

type options struct {
	version    string
	middleware []Middleware
}

// WithServerVersion overrides the version reported in the protocol
// handshake, for binaries that stamp a build version.
func WithServerVersion(version string) Option {
	return func(o *options) {
		o.version = version
	}
}

// WithMiddleware appends middleware to the dispatch chain, after the
// middleware derived from configuration.
func WithMiddleware(mw ...Middleware) Option {
	return func(o *options) {
		o.middleware = append(o.middleware, mw...)
	}
}

// New assembles a protocol server from a validated configuration: safety
// policy, stores, database backends, workflow, resilience executor, gateway
// and dispatch middleware. The returned BuildResult owns store and backend
// handles; close it when the server stops. On assembly failure everything
// already opened is closed before returning.
func New(ctx context.Context, cfg *Config, opts ...Option) (*Server, *BuildResult, error) {
	o := &options{version: sqlmcp.Version}
	for _, opt := range opts {
		opt(o)
	}

	pol, err := policy.New(cfg.PolicyParams())
	if err != nil {
		return nil, nil, fmt.Errorf("loading policy: %w", err)
	}

	result, err := config.NewBuilder(cfg).Build(ctx)
	if err != nil {
		return nil, nil, err
	}

	registry := backend.NewRegistry()
	for _, be := range result.Backends {
		if err := registry.Register(be); err != nil {
			return nil, nil, closeAfter(result, fmt.Errorf("registering backend: %w", err))
		}
	}

	manager, err := workflow.NewManager(result.TaskStore, result.AuditTrail, workflow.Config{
		MaxRetries: cfg.Tasks.MaxRetries,
	})
	if err != nil {
		return nil, nil, closeAfter(result, fmt.Errorf("building workflow: %w", err))
	}

	var metrics telemetry.Metrics
	if cfg.Telemetry.Enabled {
		metrics = telemetry.NewMetricsProvider(telemetry.DefaultMetricsConfig())
	}

	g, err := gateway.New(gateway.Config{
		Policy:          pol,
		Backends:        registry,
		ContractStore:   result.ContractStore,
		ContractTTL:     cfg.Contracts.TTL.Duration(),
		Executor:        resilience.NewExecutor(resilienceConfig(cfg)),
		Workflow:        manager,
		Trail:           result.AuditTrail,
		Metrics:         metrics,
		DefaultDatabase: cfg.DefaultDatabase(),
	})
	if err != nil {
		return nil, nil, closeAfter(result, fmt.Errorf("building gateway: %w", err))
	}

	server, err := rpc.New(rpc.Config{
		Gateway:    g,
		Middleware: append(BuildMiddleware(cfg, metrics), o.middleware...),
		Name:       cfg.Server.Name,
		Version:    o.version,
	})
	if err != nil {
		return nil, nil, closeAfter(result, fmt.Errorf("building server: %w", err))
	}

	return server, result, nil
}

// NewTelemetryProvider stands up the tracing pipeline the configuration
// asks for. A disabled telemetry section yields a no-op provider, so the
// caller can always defer Shutdown.
func NewTelemetryProvider(cfg *Config) (*TelemetryProvider, error) {
	if !cfg.Telemetry.Enabled {
		return telemetry.NewNoopProvider(), nil
	}

	opts := []telemetry.Option{
		telemetry.WithServiceName(serviceName(cfg)),
		telemetry.WithServiceVersion(sqlmcp.Version),
	}
	if cfg.Telemetry.SampleRatio > 0 {
		opts = append(opts, telemetry.WithSampleRatio(cfg.Telemetry.SampleRatio))
	}

	switch cfg.Telemetry.Exporter {
	case "otlp":
		opts = append(opts, telemetry.WithOTLP(cfg.Telemetry.Endpoint))
		if cfg.Telemetry.Insecure {
			opts = append(opts, telemetry.WithInsecure())
		}
	case "", "stdout":
		opts = append(opts, telemetry.WithStdoutTracing())
	case "noop":
		opts = append(opts, telemetry.WithNoopTracing())
	default:
		return nil, fmt.Errorf("unknown telemetry exporter %q", cfg.Telemetry.Exporter)
	}

	return telemetry.New(opts...)
}

func resilienceConfig(cfg *Config) resilience.Config {
	r := cfg.Resilience
	return resilience.Config{
		MaxRetryAttempts:        r.MaxRetryAttempts,
		RetryBaseDelay:          r.RetryBaseDelay.Duration(),
		RetryMaxDelay:           r.RetryMaxDelay.Duration(),
		CircuitFailureThreshold: r.CircuitFailureThreshold,
		CircuitBreakDuration:    r.CircuitBreakDuration.Duration(),
		ExecutionTimeout:        r.ExecutionTimeout.Duration(),
		MaxConcurrent:           r.MaxConcurrent,
	}
}

func serviceName(cfg *Config) string {
	if cfg.Server.Name != "" {
		return cfg.Server.Name
	}
	return "sqlmcp"
}

func closeAfter(result *BuildResult, err error) error {
	if closeErr := result.Close(); closeErr != nil {
		return fmt.Errorf("%w (close: %v)", err, closeErr)
	}
	return err
}
