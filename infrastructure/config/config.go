// Package config provides configuration loading and validation for the
// gateway. The safety policy section is mandatory: a missing section or a
// missing required field inside it fails startup.
package config

import (
	"time"

	"github.com/dbbuilder/sqlmcp-saas-sub003/domain/policy"
)

// GatewayConfig is the complete gateway configuration document.
type GatewayConfig struct {
	// Server contains transport and identity settings.
	Server ServerConfig `json:"server" yaml:"server"`
	// Logging contains structured logging settings.
	Logging LoggingConfig `json:"logging,omitempty" yaml:"logging,omitempty"`
	// Telemetry contains tracing and metrics settings.
	Telemetry TelemetryConfig `json:"telemetry,omitempty" yaml:"telemetry,omitempty"`
	// Policy is the safety policy. The section is required.
	Policy *PolicySection `json:"policy" yaml:"policy"`
	// Resilience contains retry, circuit breaker and timeout settings.
	Resilience ResilienceConfig `json:"resilience,omitempty" yaml:"resilience,omitempty"`
	// RateLimit throttles tool calls per caller.
	RateLimit RateLimitConfig `json:"rate_limit,omitempty" yaml:"rate_limit,omitempty"`
	// Contracts configures the procedure contract cache.
	Contracts ContractsConfig `json:"contracts,omitempty" yaml:"contracts,omitempty"`
	// Audit configures the audit trail store.
	Audit AuditConfig `json:"audit,omitempty" yaml:"audit,omitempty"`
	// Tasks configures the task store and workflow.
	Tasks TasksConfig `json:"tasks,omitempty" yaml:"tasks,omitempty"`
	// Databases lists the logical databases the gateway guards.
	Databases []DatabaseConfig `json:"databases" yaml:"databases"`
}

// ServerConfig contains transport and identity settings.
type ServerConfig struct {
	// Name identifies the gateway in protocol handshakes.
	Name string `json:"name,omitempty" yaml:"name,omitempty"`
	// Transport selects how requests arrive (stdio or http).
	Transport string `json:"transport,omitempty" yaml:"transport,omitempty"`
	// HTTPAddr is the listen address for the http transport.
	HTTPAddr string `json:"http_addr,omitempty" yaml:"http_addr,omitempty"`
	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout Duration `json:"shutdown_timeout,omitempty" yaml:"shutdown_timeout,omitempty"`
}

// LoggingConfig contains structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level (trace, debug, info, warn, error).
	Level string `json:"level,omitempty" yaml:"level,omitempty"`
	// Format is the output format (json or console).
	Format string `json:"format,omitempty" yaml:"format,omitempty"`
}

// TelemetryConfig contains tracing and metrics settings.
type TelemetryConfig struct {
	// Enabled turns the OpenTelemetry pipeline on.
	Enabled bool `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	// Exporter selects the span exporter (otlp or stdout).
	Exporter string `json:"exporter,omitempty" yaml:"exporter,omitempty"`
	// Endpoint is the OTLP collector address.
	Endpoint string `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`
	// Insecure disables TLS towards the OTLP collector.
	Insecure bool `json:"insecure,omitempty" yaml:"insecure,omitempty"`
	// SampleRatio is the trace sampling ratio in [0, 1].
	SampleRatio float64 `json:"sample_ratio,omitempty" yaml:"sample_ratio,omitempty"`
}

// PolicySection is the configuration form of the safety policy. The
// pointer-typed fields are required so that an omitted field is
// distinguishable from an explicit false or zero.
type PolicySection struct {
	// SelectOnlyMode restricts statements to SELECT and WITH.
	SelectOnlyMode *bool `json:"select_only_mode" yaml:"select_only_mode"`
	// MaxStatementLength is the statement length ceiling in characters.
	MaxStatementLength *int `json:"max_statement_length" yaml:"max_statement_length"`
	// BlockSystemTables rejects references to system catalogs.
	BlockSystemTables *bool `json:"block_system_tables" yaml:"block_system_tables"`
	// BlockDropTruncate hard-rejects DROP and TRUNCATE.
	BlockDropTruncate *bool `json:"block_drop_truncate" yaml:"block_drop_truncate"`
	// BlockDeleteWithoutWhere rejects DELETE statements lacking WHERE.
	BlockDeleteWithoutWhere *bool `json:"block_delete_without_where" yaml:"block_delete_without_where"`
	// BlockUpdateWithoutWhere rejects UPDATE statements lacking WHERE.
	BlockUpdateWithoutWhere *bool `json:"block_update_without_where" yaml:"block_update_without_where"`
	// StrictInjection escalates injection signatures from warnings to errors.
	StrictInjection bool `json:"strict_injection,omitempty" yaml:"strict_injection,omitempty"`
	// AllowedKeywords is the expected statement vocabulary.
	AllowedKeywords []string `json:"allowed_keywords" yaml:"allowed_keywords"`
	// BlockedKeywords are rejected outright; entries ending in an
	// underscore match as prefixes.
	BlockedKeywords []string `json:"blocked_keywords" yaml:"blocked_keywords"`
	// ApprovalKeywords route statements into the approval workflow.
	ApprovalKeywords []string `json:"approval_keywords,omitempty" yaml:"approval_keywords,omitempty"`
	// SensitiveParameters are redacted in logs and audit detail.
	SensitiveParameters []string `json:"sensitive_parameters,omitempty" yaml:"sensitive_parameters,omitempty"`
}

// ResilienceConfig contains retry, circuit breaker and timeout settings.
type ResilienceConfig struct {
	// MaxRetryAttempts is the total attempt ceiling including the first call.
	MaxRetryAttempts int `json:"max_retry_attempts,omitempty" yaml:"max_retry_attempts,omitempty"`
	// RetryBaseDelay is the first backoff delay.
	RetryBaseDelay Duration `json:"retry_base_delay,omitempty" yaml:"retry_base_delay,omitempty"`
	// RetryMaxDelay caps the exponential backoff.
	RetryMaxDelay Duration `json:"retry_max_delay,omitempty" yaml:"retry_max_delay,omitempty"`
	// CircuitFailureThreshold is consecutive failures before the breaker opens.
	CircuitFailureThreshold int `json:"circuit_failure_threshold,omitempty" yaml:"circuit_failure_threshold,omitempty"`
	// CircuitBreakDuration is how long an open breaker rejects calls.
	CircuitBreakDuration Duration `json:"circuit_break_duration,omitempty" yaml:"circuit_break_duration,omitempty"`
	// ExecutionTimeout bounds each individual backend attempt.
	ExecutionTimeout Duration `json:"execution_timeout,omitempty" yaml:"execution_timeout,omitempty"`
	// MaxConcurrent bounds simultaneous backend executions.
	MaxConcurrent int `json:"max_concurrent,omitempty" yaml:"max_concurrent,omitempty"`
}

// RateLimitConfig throttles tool calls per caller.
type RateLimitConfig struct {
	// Enabled enables rate limiting.
	Enabled bool `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	// Rate is tokens per second.
	Rate int `json:"rate,omitempty" yaml:"rate,omitempty"`
	// Burst is the maximum burst size.
	Burst int `json:"burst,omitempty" yaml:"burst,omitempty"`
	// FailOpen admits calls when the limiter itself fails.
	FailOpen bool `json:"fail_open,omitempty" yaml:"fail_open,omitempty"`
}

// ContractsConfig configures the procedure contract cache.
type ContractsConfig struct {
	// Store selects the contract store (memory or redis).
	Store string `json:"store,omitempty" yaml:"store,omitempty"`
	// TTL is how long a cached contract stays fresh.
	TTL Duration `json:"ttl,omitempty" yaml:"ttl,omitempty"`
	// Redis configures the redis store.
	Redis RedisConfig `json:"redis,omitempty" yaml:"redis,omitempty"`
}

// RedisConfig contains redis connection settings.
type RedisConfig struct {
	// Addr is the host:port of the redis server.
	Addr string `json:"addr,omitempty" yaml:"addr,omitempty"`
	// Password authenticates the connection.
	Password string `json:"password,omitempty" yaml:"password,omitempty"`
	// DB selects the redis database number.
	DB int `json:"db,omitempty" yaml:"db,omitempty"`
}

// AuditConfig configures the audit trail store.
type AuditConfig struct {
	// Store selects the trail backend (memory, sqlite or postgres).
	Store string `json:"store,omitempty" yaml:"store,omitempty"`
	// SQLitePath is the database file for the sqlite store.
	SQLitePath string `json:"sqlite_path,omitempty" yaml:"sqlite_path,omitempty"`
	// PostgresDSN is the connection string for the postgres store.
	PostgresDSN string `json:"postgres_dsn,omitempty" yaml:"postgres_dsn,omitempty"`
	// Retention is how long events are kept before cleanup removes them.
	Retention Duration `json:"retention,omitempty" yaml:"retention,omitempty"`
}

// TasksConfig configures the task store and workflow.
type TasksConfig struct {
	// Store selects the task store (memory or badger).
	Store string `json:"store,omitempty" yaml:"store,omitempty"`
	// BadgerDir is the data directory for the badger store.
	BadgerDir string `json:"badger_dir,omitempty" yaml:"badger_dir,omitempty"`
	// MaxRetries is the per-task retry budget.
	MaxRetries int `json:"max_retries,omitempty" yaml:"max_retries,omitempty"`
}

// DatabaseConfig describes one logical database the gateway guards.
type DatabaseConfig struct {
	// Name is the logical name callers use.
	Name string `json:"name" yaml:"name"`
	// Driver selects the backend adapter (memory or sqlite).
	Driver string `json:"driver" yaml:"driver"`
	// DSN is the driver-specific connection string.
	DSN string `json:"dsn,omitempty" yaml:"dsn,omitempty"`
	// Default marks the database used when a call names none.
	Default bool `json:"default,omitempty" yaml:"default,omitempty"`
}

// DefaultConfig returns a fully populated configuration suitable for local
// development: stdio transport, in-memory stores, one demo database and the
// default safety policy.
func DefaultConfig() *GatewayConfig {
	selectOnly := false
	maxLen := 10000
	blockSys := true
	blockDropTrunc := true
	blockDelete := true
	blockUpdate := true

	return &GatewayConfig{
		Server: ServerConfig{
			Name:            "sqlmcp-gateway",
			Transport:       "stdio",
			HTTPAddr:        ":8080",
			ShutdownTimeout: Duration(10 * time.Second),
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Telemetry: TelemetryConfig{
			Enabled:     false,
			Exporter:    "stdout",
			SampleRatio: 1.0,
		},
		Policy: &PolicySection{
			SelectOnlyMode:          &selectOnly,
			MaxStatementLength:      &maxLen,
			BlockSystemTables:       &blockSys,
			BlockDropTruncate:       &blockDropTrunc,
			BlockDeleteWithoutWhere: &blockDelete,
			BlockUpdateWithoutWhere: &blockUpdate,
			AllowedKeywords: []string{
				"SELECT", "WITH", "FROM", "WHERE", "JOIN", "INNER", "OUTER", "LEFT",
				"RIGHT", "ORDER", "GROUP", "BY", "HAVING", "UNION", "LIMIT", "TOP",
				"INSERT", "INTO", "VALUES", "UPDATE", "SET", "DELETE", "AS", "ON",
			},
			BlockedKeywords: []string{
				"EXEC", "EXECUTE", "SP_", "XP_", "OPENROWSET", "OPENDATASOURCE",
				"BULK", "SHUTDOWN", "DBCC", "GRANT", "REVOKE", "DENY",
			},
			ApprovalKeywords: []string{
				"ALTER", "CREATE", "BACKUP", "RESTORE", "REINDEX",
			},
			SensitiveParameters: []string{
				"password", "secret", "token", "key", "credential", "ssn",
			},
		},
		Resilience: ResilienceConfig{
			MaxRetryAttempts:        3,
			RetryBaseDelay:          Duration(500 * time.Millisecond),
			RetryMaxDelay:           Duration(30 * time.Second),
			CircuitFailureThreshold: 5,
			CircuitBreakDuration:    Duration(60 * time.Second),
			ExecutionTimeout:        Duration(60 * time.Second),
			MaxConcurrent:           16,
		},
		RateLimit: RateLimitConfig{
			Enabled: true,
			Rate:    50,
			Burst:   100,
		},
		Contracts: ContractsConfig{
			Store: "memory",
			TTL:   Duration(time.Hour),
		},
		Audit: AuditConfig{
			Store:     "memory",
			Retention: Duration(90 * 24 * time.Hour),
		},
		Tasks: TasksConfig{
			Store:      "memory",
			MaxRetries: 3,
		},
		Databases: []DatabaseConfig{
			{Name: "demo", Driver: "memory", Default: true},
		},
	}
}

// PolicyParams converts the policy section into domain policy parameters.
// Validate must have accepted the configuration first; nil pointers here
// would panic otherwise.
func (c *GatewayConfig) PolicyParams() policy.Params {
	p := c.Policy
	return policy.Params{
		MaxStatementLength:      *p.MaxStatementLength,
		SelectOnlyMode:          *p.SelectOnlyMode,
		BlockSystemTables:       *p.BlockSystemTables,
		BlockDropTruncate:       *p.BlockDropTruncate,
		BlockDeleteWithoutWhere: *p.BlockDeleteWithoutWhere,
		BlockUpdateWithoutWhere: *p.BlockUpdateWithoutWhere,
		StrictInjection:         p.StrictInjection,
		AllowedKeywords:         p.AllowedKeywords,
		BlockedKeywords:         p.BlockedKeywords,
		ApprovalKeywords:        p.ApprovalKeywords,
		SensitiveParameters:     p.SensitiveParameters,
	}
}

// DefaultDatabase returns the database marked default, or the first entry.
func (c *GatewayConfig) DefaultDatabase() string {
	for _, db := range c.Databases {
		if db.Default {
			return db.Name
		}
	}
	if len(c.Databases) > 0 {
		return c.Databases[0].Name
	}
	return ""
}

// Duration is a time.Duration that supports JSON/YAML string representation.
type Duration time.Duration

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return []byte(`"` + time.Duration(d).String() + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Duration) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}
	s := string(b)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

// Duration returns the underlying time.Duration.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}
