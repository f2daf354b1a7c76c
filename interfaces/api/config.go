// Package api provides the public API for embedding the sqlmcp gateway.
// This file provides configuration-related exports.
package api

import (
	infraconfig "github.com/dbbuilder/sqlmcp-saas-sub003/infrastructure/config"
)

// Re-export configuration types.
type (
	// Config is the complete gateway configuration document.
	Config = infraconfig.GatewayConfig
	// ServerConfig contains transport and identity settings.
	ServerConfig = infraconfig.ServerConfig
	// PolicySection is the configuration form of the safety policy.
	PolicySection = infraconfig.PolicySection
	// DatabaseConfig describes one guarded database.
	DatabaseConfig = infraconfig.DatabaseConfig
	// ConfigDuration is a time.Duration with JSON/YAML string form.
	ConfigDuration = infraconfig.Duration

	// ConfigLoader loads gateway configuration from files.
	ConfigLoader = infraconfig.Loader
	// ConfigLoaderOption configures the loader.
	ConfigLoaderOption = infraconfig.LoaderOption
	// ConfigBuilder builds gateway components from configuration.
	ConfigBuilder = infraconfig.Builder
	// BuildResult contains the components built from configuration.
	BuildResult = infraconfig.BuildResult

	// ValidationError is one configuration validation failure.
	ValidationError = infraconfig.ValidationError
	// ValidationErrors collects configuration validation failures.
	ValidationErrors = infraconfig.ValidationErrors
	// JSONSchema represents a JSON Schema document.
	JSONSchema = infraconfig.JSONSchema
)

// Configuration format constants.
const (
	// ConfigFormatYAML is the YAML format.
	ConfigFormatYAML = infraconfig.FormatYAML
	// ConfigFormatJSON is the JSON format.
	ConfigFormatJSON = infraconfig.FormatJSON
)

// Configuration errors.
var (
	// ErrConfigNotFound indicates the configuration file was not found.
	ErrConfigNotFound = infraconfig.ErrConfigNotFound
	// ErrInvalidFormat indicates the configuration document cannot be parsed.
	ErrInvalidFormat = infraconfig.ErrInvalidFormat
	// ErrUnsupportedFormat indicates the file extension is not supported.
	ErrUnsupportedFormat = infraconfig.ErrUnsupportedFormat
	// ErrValidationFailed indicates configuration validation failed.
	ErrValidationFailed = infraconfig.ErrValidationFailed
)

// DefaultConfig returns the built-in development configuration: stdio
// transport, in-memory stores, one demo database and the default safety
// policy.
func DefaultConfig() *Config {
	return infraconfig.DefaultConfig()
}

// NewConfigLoader creates a configuration loader with default settings:
// environment expansion on, validation on.
func NewConfigLoader() *ConfigLoader {
	return infraconfig.NewLoader()
}

// NewConfigLoaderWithOptions creates a configuration loader with options.
func NewConfigLoaderWithOptions(opts ...ConfigLoaderOption) *ConfigLoader {
	return infraconfig.NewLoaderWithOptions(opts...)
}

// ConfigWithEnvExpansion enables or disables environment variable expansion.
func ConfigWithEnvExpansion(enabled bool) ConfigLoaderOption {
	return infraconfig.WithEnvExpansion(enabled)
}

// ConfigWithStrictEnv enables strict environment variable checking.
func ConfigWithStrictEnv(enabled bool) ConfigLoaderOption {
	return infraconfig.WithStrictEnv(enabled)
}

// ConfigWithValidation enables or disables configuration validation.
func ConfigWithValidation(enabled bool) ConfigLoaderOption {
	return infraconfig.WithValidation(enabled)
}

// NewConfigBuilder creates a component builder for a validated
// configuration.
func NewConfigBuilder(cfg *Config) *ConfigBuilder {
	return infraconfig.NewBuilder(cfg)
}

// ValidateConfig runs the configuration validator and returns its findings.
func ValidateConfig(cfg *Config) ValidationErrors {
	return infraconfig.NewValidator().Validate(cfg)
}

// ConfigSchemaJSON returns the configuration document's JSON Schema.
func ConfigSchemaJSON() (string, error) {
	return infraconfig.SchemaJSON()
}
