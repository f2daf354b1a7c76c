package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/dbbuilder/sqlmcp-saas-sub003/infrastructure/logging"
	"github.com/dbbuilder/sqlmcp-saas-sub003/interfaces/api"
)

type serveOptions struct {
	configPath string
	transport  string
	listen     string
	logLevel   string
}

// newServeCmd creates the serve command.
func (a *App) newServeCmd() *cobra.Command {
	opts := &serveOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the gateway",
		Long: `Start the gateway and serve the tool protocol.

Without --config the gateway runs with built-in defaults: stdio transport,
in-memory stores and one in-memory demo database. The stdio transport reads
line-delimited requests from stdin and writes responses to stdout; logs go
to stderr so the protocol stream stays clean.`,
		Example: `  # Development defaults, stdio transport
  sqlmcp serve

  # Production configuration over HTTP
  sqlmcp serve --config gateway.yaml --transport http --listen :8080`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runServe(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "", "path to the configuration file (yaml or json)")
	cmd.Flags().StringVar(&opts.transport, "transport", "", "override the configured transport (stdio or http)")
	cmd.Flags().StringVar(&opts.listen, "listen", "", "override the http listen address")
	cmd.Flags().StringVar(&opts.logLevel, "log-level", "", "override the configured log level")

	return cmd
}

func (a *App) runServe(ctx context.Context, opts *serveOptions) error {
	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		return err
	}

	if opts.transport != "" {
		cfg.Server.Transport = opts.transport
	}
	if opts.listen != "" {
		cfg.Server.HTTPAddr = opts.listen
	}
	if opts.logLevel != "" {
		cfg.Logging.Level = opts.logLevel
	}

	// Flag overrides bypass the loader, so validate again.
	if errs := api.ValidateConfig(cfg); errs.HasErrors() {
		return fmt.Errorf("%w: %v", api.ErrValidationFailed, errs)
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})

	provider, err := api.NewTelemetryProvider(cfg)
	if err != nil {
		return fmt.Errorf("initializing telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout(cfg))
		defer cancel()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			logging.Warn().Add(logging.ErrorField(err)).Msg("telemetry shutdown failed")
		}
	}()

	server, components, err := api.New(ctx, cfg, api.WithServerVersion(Version))
	if err != nil {
		return err
	}
	defer func() {
		if err := components.Close(); err != nil {
			logging.Warn().Add(logging.ErrorField(err)).Msg("closing components failed")
		}
	}()

	logging.Info().
		Add(logging.Component("cli")).
		Add(logging.Str("transport", transportName(cfg))).
		Add(logging.Str("version", Version)).
		Add(logging.Int("databases", len(components.Backends))).
		Msg("gateway starting")

	switch transportName(cfg) {
	case "stdio":
		return server.ServeStdio(ctx, os.Stdin, os.Stdout)
	case "http":
		httpServer := api.NewHTTP(server, api.HTTPConfig{Address: cfg.Server.HTTPAddr})
		return httpServer.Run(ctx)
	default:
		return fmt.Errorf("unknown transport %q", cfg.Server.Transport)
	}
}

// loadConfig reads the configuration file, or returns the built-in default
// configuration when no path is given.
func loadConfig(path string) (*api.Config, error) {
	if path == "" {
		return api.DefaultConfig(), nil
	}
	return api.NewConfigLoader().LoadFile(path)
}

func transportName(cfg *api.Config) string {
	if cfg.Server.Transport == "" {
		return "stdio"
	}
	return cfg.Server.Transport
}

func serverName(cfg *api.Config) string {
	if cfg.Server.Name != "" {
		return cfg.Server.Name
	}
	return "sqlmcp"
}

func shutdownTimeout(cfg *api.Config) time.Duration {
	if d := cfg.Server.ShutdownTimeout.Duration(); d > 0 {
		return d
	}
	return 10 * time.Second
}
