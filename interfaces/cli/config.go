package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/dbbuilder/sqlmcp-saas-sub003/interfaces/api"
)

// newConfigCmd creates the config command group.
func (a *App) newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and generate gateway configuration",
	}

	cmd.AddCommand(
		a.newConfigValidateCmd(),
		a.newConfigInitCmd(),
		a.newConfigSchemaCmd(),
	)

	return cmd
}

// validateOptions holds options for the config validate command.
type validateOptions struct {
	configPath string
	strict     bool
}

// newConfigValidateCmd creates the config validate command.
func (a *App) newConfigValidateCmd() *cobra.Command {
	opts := &validateOptions{}

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a configuration file",
		Long: `Validate a gateway configuration file for correctness.

This command checks:
  - File format (YAML or JSON)
  - The mandatory policy section and its required fields
  - Transport, resilience, rate limit and store settings
  - Database definitions
  - Environment variable references (in strict mode)

Examples:
  # Validate a configuration file
  sqlmcp config validate -c gateway.yaml

  # Strict validation (fail on missing env vars)
  sqlmcp config validate -c gateway.yaml --strict`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.validateConfig(opts)
		},
	}

	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "", "Path to configuration file")
	cmd.Flags().BoolVar(&opts.strict, "strict", false, "Enable strict validation (fail on missing env vars)")
	_ = cmd.MarkFlagRequired("config")

	return cmd
}

// validateConfig validates the configuration file.
func (a *App) validateConfig(opts *validateOptions) error {
	loaderOpts := []api.ConfigLoaderOption{
		api.ConfigWithValidation(true),
	}
	if opts.strict {
		loaderOpts = append(loaderOpts, api.ConfigWithStrictEnv(true))
	}

	loader := api.NewConfigLoaderWithOptions(loaderOpts...)
	cfg, err := loader.LoadFile(opts.configPath)
	if err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	fmt.Fprintf(a.stdout, "✓ Configuration is valid\n")
	fmt.Fprintf(a.stdout, "  Name: %s\n", serverName(cfg))
	fmt.Fprintf(a.stdout, "  Transport: %s\n", transportName(cfg))
	if transportName(cfg) == "http" {
		fmt.Fprintf(a.stdout, "  Listen: %s\n", cfg.Server.HTTPAddr)
	}

	fmt.Fprintf(a.stdout, "\nConfiguration summary:\n")
	fmt.Fprintf(a.stdout, "  Select-only mode: %t\n", *cfg.Policy.SelectOnlyMode)
	fmt.Fprintf(a.stdout, "  Max statement length: %d\n", *cfg.Policy.MaxStatementLength)
	fmt.Fprintf(a.stdout, "  Blocked keywords: %d\n", len(cfg.Policy.BlockedKeywords))
	fmt.Fprintf(a.stdout, "  Approval keywords: %d\n", len(cfg.Policy.ApprovalKeywords))

	if len(cfg.Databases) > 0 {
		fmt.Fprintf(a.stdout, "  Databases: %d\n", len(cfg.Databases))
		for _, db := range cfg.Databases {
			marker := ""
			if db.Name == cfg.DefaultDatabase() {
				marker = " (default)"
			}
			fmt.Fprintf(a.stdout, "    - %s [%s]%s\n", db.Name, db.Driver, marker)
		}
	}

	fmt.Fprintf(a.stdout, "  Audit store: %s\n", storeName(cfg.Audit.Store))
	fmt.Fprintf(a.stdout, "  Task store: %s\n", storeName(cfg.Tasks.Store))
	fmt.Fprintf(a.stdout, "  Contract store: %s\n", storeName(cfg.Contracts.Store))

	if cfg.RateLimit.Enabled {
		fmt.Fprintf(a.stdout, "  Rate limit: %d/s burst %d\n", cfg.RateLimit.Rate, cfg.RateLimit.Burst)
	}

	return nil
}

func storeName(name string) string {
	if name == "" {
		return "memory"
	}
	return name
}

// initOptions holds options for the config init command.
type initOptions struct {
	outputPath string
	force      bool
}

// newConfigInitCmd creates the config init command.
func (a *App) newConfigInitCmd() *cobra.Command {
	opts := &initOptions{}

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Generate a starter configuration file",
		Long: `Generate a gateway configuration document with the built-in defaults:
stdio transport, in-memory stores, one in-memory demo database and the
default safety policy. The document prints to stdout unless --output
names a file.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.initConfig(opts)
		},
	}

	cmd.Flags().StringVarP(&opts.outputPath, "output", "o", "", "Write the document to this file instead of stdout")
	cmd.Flags().BoolVar(&opts.force, "force", false, "Overwrite an existing file")

	return cmd
}

// initConfig writes the default configuration document.
func (a *App) initConfig(opts *initOptions) error {
	data, err := yaml.Marshal(api.DefaultConfig())
	if err != nil {
		return fmt.Errorf("encoding configuration: %w", err)
	}

	if opts.outputPath == "" {
		_, err := a.stdout.Write(data)
		return err
	}

	if !opts.force {
		if _, err := os.Stat(opts.outputPath); err == nil {
			return fmt.Errorf("%s already exists (use --force to overwrite)", opts.outputPath)
		}
	}

	if err := os.WriteFile(opts.outputPath, data, 0o644); err != nil {
		return fmt.Errorf("writing configuration: %w", err)
	}

	fmt.Fprintf(a.stdout, "✓ Wrote %s\n", opts.outputPath)
	return nil
}

// newConfigSchemaCmd creates the config schema command.
func (a *App) newConfigSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the configuration JSON schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, err := api.ConfigSchemaJSON()
			if err != nil {
				return fmt.Errorf("generating schema: %w", err)
			}
			fmt.Fprintln(a.stdout, schema)
			return nil
		},
	}
}
