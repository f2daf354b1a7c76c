package config

import (
	"fmt"
	"strings"
	"time"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	// Path is the dotted path to the invalid field.
	Path string
	// Message describes the validation error.
	Message string
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Path == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

// Error implements the error interface.
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	if len(e) == 1 {
		return e[0].Error()
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("%d validation errors:\n  - %s", len(e), strings.Join(msgs, "\n  - "))
}

// HasErrors returns true if there are any validation errors.
func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}

// Validator validates gateway configuration.
type Validator struct {
	errors ValidationErrors
}

// NewValidator creates a new validator.
func NewValidator() *Validator {
	return &Validator{}
}

// Validate validates the configuration and returns any errors.
func (v *Validator) Validate(cfg *GatewayConfig) ValidationErrors {
	v.errors = nil

	v.validateServer(cfg)
	v.validatePolicy(cfg)
	v.validateResilience(cfg)
	v.validateRateLimit(cfg)
	v.validateStores(cfg)
	v.validateDatabases(cfg)

	return v.errors
}

func (v *Validator) addError(path, message string) {
	v.errors = append(v.errors, ValidationError{Path: path, Message: message})
}

func (v *Validator) validateServer(cfg *GatewayConfig) {
	switch cfg.Server.Transport {
	case "", "stdio":
	case "http":
		if cfg.Server.HTTPAddr == "" {
			v.addError("server.http_addr", "required for the http transport")
		}
	default:
		v.addError("server.transport", fmt.Sprintf("unknown transport: %s", cfg.Server.Transport))
	}
	if d := cfg.Server.ShutdownTimeout.Duration(); d < 0 {
		v.addError("server.shutdown_timeout", "must be non-negative")
	}
}

// validatePolicy enforces the mandatory policy section. Every pointer-typed
// field must be present; the gateway refuses to guess safety settings.
func (v *Validator) validatePolicy(cfg *GatewayConfig) {
	p := cfg.Policy
	if p == nil {
		v.addError("policy", "section is required")
		return
	}

	if p.SelectOnlyMode == nil {
		v.addError("policy.select_only_mode", "field is required")
	}
	if p.MaxStatementLength == nil {
		v.addError("policy.max_statement_length", "field is required")
	} else if *p.MaxStatementLength <= 0 {
		v.addError("policy.max_statement_length", "must be positive")
	}
	if p.BlockSystemTables == nil {
		v.addError("policy.block_system_tables", "field is required")
	}
	if p.BlockDropTruncate == nil {
		v.addError("policy.block_drop_truncate", "field is required")
	}
	if p.BlockDeleteWithoutWhere == nil {
		v.addError("policy.block_delete_without_where", "field is required")
	}
	if p.BlockUpdateWithoutWhere == nil {
		v.addError("policy.block_update_without_where", "field is required")
	}
	if len(p.AllowedKeywords) == 0 {
		v.addError("policy.allowed_keywords", "at least one keyword is required")
	}
	if len(p.BlockedKeywords) == 0 {
		v.addError("policy.blocked_keywords", "at least one keyword is required")
	}
}

func (v *Validator) validateResilience(cfg *GatewayConfig) {
	r := cfg.Resilience
	if r.MaxRetryAttempts < 0 {
		v.addError("resilience.max_retry_attempts", "must be non-negative")
	}
	if r.RetryBaseDelay.Duration() < 0 {
		v.addError("resilience.retry_base_delay", "must be non-negative")
	}
	if r.CircuitFailureThreshold < 0 {
		v.addError("resilience.circuit_failure_threshold", "must be non-negative")
	}
	if r.ExecutionTimeout.Duration() < 0 {
		v.addError("resilience.execution_timeout", "must be non-negative")
	}
	if r.MaxConcurrent < 0 {
		v.addError("resilience.max_concurrent", "must be non-negative")
	}

	// The backoff doubles per attempt, so the largest delay before the
	// final attempt is base * 2^(attempts-2). It must fit under the cap.
	if r.MaxRetryAttempts >= 2 && r.RetryBaseDelay.Duration() > 0 && r.RetryMaxDelay.Duration() > 0 {
		largest := r.RetryBaseDelay.Duration() * time.Duration(1<<uint(r.MaxRetryAttempts-2))
		if largest > r.RetryMaxDelay.Duration() {
			v.addError("resilience.retry_max_delay",
				fmt.Sprintf("backoff reaches %s with %d attempts, above the %s cap",
					largest, r.MaxRetryAttempts, r.RetryMaxDelay.Duration()))
		}
	}
}

func (v *Validator) validateRateLimit(cfg *GatewayConfig) {
	rl := cfg.RateLimit
	if !rl.Enabled {
		return
	}
	if rl.Rate <= 0 {
		v.addError("rate_limit.rate", "must be positive when enabled")
	}
	if rl.Burst < rl.Rate {
		v.addError("rate_limit.burst", "must be at least the rate")
	}
}

func (v *Validator) validateStores(cfg *GatewayConfig) {
	switch cfg.Contracts.Store {
	case "", "memory":
	case "redis":
		if cfg.Contracts.Redis.Addr == "" {
			v.addError("contracts.redis.addr", "required for the redis store")
		}
	default:
		v.addError("contracts.store", fmt.Sprintf("unknown store: %s", cfg.Contracts.Store))
	}
	if cfg.Contracts.TTL.Duration() < 0 {
		v.addError("contracts.ttl", "must be non-negative")
	}

	switch cfg.Audit.Store {
	case "", "memory":
	case "sqlite":
		if cfg.Audit.SQLitePath == "" {
			v.addError("audit.sqlite_path", "required for the sqlite store")
		}
	case "postgres":
		if cfg.Audit.PostgresDSN == "" {
			v.addError("audit.postgres_dsn", "required for the postgres store")
		}
	default:
		v.addError("audit.store", fmt.Sprintf("unknown store: %s", cfg.Audit.Store))
	}

	switch cfg.Tasks.Store {
	case "", "memory":
	case "badger":
		if cfg.Tasks.BadgerDir == "" {
			v.addError("tasks.badger_dir", "required for the badger store")
		}
	default:
		v.addError("tasks.store", fmt.Sprintf("unknown store: %s", cfg.Tasks.Store))
	}
	if cfg.Tasks.MaxRetries < 0 {
		v.addError("tasks.max_retries", "must be non-negative")
	}
}

func (v *Validator) validateDatabases(cfg *GatewayConfig) {
	if len(cfg.Databases) == 0 {
		v.addError("databases", "at least one database is required")
		return
	}

	seen := make(map[string]bool, len(cfg.Databases))
	defaults := 0
	for i, db := range cfg.Databases {
		path := fmt.Sprintf("databases[%d]", i)
		if db.Name == "" {
			v.addError(path+".name", "name is required")
		} else if seen[db.Name] {
			v.addError(path+".name", fmt.Sprintf("duplicate database name: %s", db.Name))
		}
		seen[db.Name] = true

		switch db.Driver {
		case "memory":
		case "sqlite":
			if db.DSN == "" {
				v.addError(path+".dsn", "required for the sqlite driver")
			}
		default:
			v.addError(path+".driver", fmt.Sprintf("unknown driver: %s", db.Driver))
		}

		if db.Default {
			defaults++
		}
	}
	if defaults > 1 {
		v.addError("databases", "only one database may be marked default")
	}
}
