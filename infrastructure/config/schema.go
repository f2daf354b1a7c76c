package config

import (
	"encoding/json"
)

// JSONSchema represents a JSON Schema document.
type JSONSchema struct {
	Schema               string                 `json:"$schema,omitempty"`
	ID                   string                 `json:"$id,omitempty"`
	Title                string                 `json:"title,omitempty"`
	Description          string                 `json:"description,omitempty"`
	Type                 string                 `json:"type,omitempty"`
	Properties           map[string]*JSONSchema `json:"properties,omitempty"`
	Required             []string               `json:"required,omitempty"`
	Items                *JSONSchema            `json:"items,omitempty"`
	AdditionalProperties *JSONSchema            `json:"additionalProperties,omitempty"`
	Enum                 []string               `json:"enum,omitempty"`
	Default              any                    `json:"default,omitempty"`
	Minimum              *float64               `json:"minimum,omitempty"`
	Maximum              *float64               `json:"maximum,omitempty"`
	Pattern              string                 `json:"pattern,omitempty"`
	Format               string                 `json:"format,omitempty"`
}

// GenerateSchema generates a JSON Schema for the GatewayConfig document,
// for editor completion and CI-side validation of config files.
func GenerateSchema() *JSONSchema {
	return &JSONSchema{
		Schema:      "https://json-schema.org/draft/2020-12/schema",
		ID:          "https://github.com/dbbuilder/sqlmcp-saas-sub003/gateway-config.schema.json",
		Title:       "Gateway Configuration",
		Description: "Configuration schema for the sqlmcp gateway",
		Type:        "object",
		Required:    []string{"policy", "databases"},
		Properties: map[string]*JSONSchema{
			"server":     generateServerSchema(),
			"logging":    generateLoggingSchema(),
			"telemetry":  generateTelemetrySchema(),
			"policy":     generatePolicySchema(),
			"resilience": generateResilienceSchema(),
			"rate_limit": generateRateLimitSchema(),
			"contracts":  generateContractsSchema(),
			"audit":      generateAuditSchema(),
			"tasks":      generateTasksSchema(),
			"databases": {
				Type:        "array",
				Description: "Logical databases the gateway guards",
				Items:       generateDatabaseSchema(),
			},
		},
	}
}

func generateServerSchema() *JSONSchema {
	return &JSONSchema{
		Type:        "object",
		Description: "Transport and identity settings",
		Properties: map[string]*JSONSchema{
			"name": {
				Type:        "string",
				Description: "Server name reported in protocol handshakes",
				Default:     "sqlmcp-gateway",
			},
			"transport": {
				Type:        "string",
				Description: "How requests arrive",
				Enum:        []string{"stdio", "http"},
				Default:     "stdio",
			},
			"http_addr": {
				Type:        "string",
				Description: "Listen address for the http transport",
				Default:     ":8080",
			},
			"shutdown_timeout": {
				Type:        "string",
				Description: "Graceful shutdown bound (e.g. '10s')",
				Format:      "duration",
				Default:     "10s",
			},
		},
	}
}

func generateLoggingSchema() *JSONSchema {
	return &JSONSchema{
		Type:        "object",
		Description: "Structured logging settings",
		Properties: map[string]*JSONSchema{
			"level": {
				Type:        "string",
				Description: "Minimum log level",
				Enum:        []string{"trace", "debug", "info", "warn", "error"},
				Default:     "info",
			},
			"format": {
				Type:        "string",
				Description: "Output format",
				Enum:        []string{"json", "console"},
				Default:     "json",
			},
		},
	}
}

func generateTelemetrySchema() *JSONSchema {
	return &JSONSchema{
		Type:        "object",
		Description: "OpenTelemetry tracing and metrics settings",
		Properties: map[string]*JSONSchema{
			"enabled": {
				Type:        "boolean",
				Description: "Enable the OpenTelemetry pipeline",
				Default:     false,
			},
			"exporter": {
				Type:        "string",
				Description: "Span exporter",
				Enum:        []string{"otlp", "stdout", "noop"},
				Default:     "stdout",
			},
			"endpoint": {
				Type:        "string",
				Description: "OTLP collector address",
			},
			"insecure": {
				Type:        "boolean",
				Description: "Disable TLS towards the OTLP collector",
				Default:     false,
			},
			"sample_ratio": {
				Type:        "number",
				Description: "Trace sampling ratio",
				Minimum:     floatPtr(0),
				Maximum:     floatPtr(1),
				Default:     1.0,
			},
		},
	}
}

func generatePolicySchema() *JSONSchema {
	return &JSONSchema{
		Type:        "object",
		Description: "Safety policy. The section and every listed field are required.",
		Required: []string{
			"select_only_mode",
			"max_statement_length",
			"block_system_tables",
			"block_drop_truncate",
			"block_delete_without_where",
			"block_update_without_where",
			"allowed_keywords",
			"blocked_keywords",
		},
		Properties: map[string]*JSONSchema{
			"select_only_mode": {
				Type:        "boolean",
				Description: "Restrict statements to SELECT and WITH",
			},
			"max_statement_length": {
				Type:        "integer",
				Description: "Statement length ceiling in characters",
				Minimum:     floatPtr(1),
			},
			"block_system_tables": {
				Type:        "boolean",
				Description: "Reject references to system catalogs",
			},
			"block_drop_truncate": {
				Type:        "boolean",
				Description: "Reject DROP and TRUNCATE outright",
			},
			"block_delete_without_where": {
				Type:        "boolean",
				Description: "Reject DELETE statements lacking WHERE",
			},
			"block_update_without_where": {
				Type:        "boolean",
				Description: "Reject UPDATE statements lacking WHERE",
			},
			"strict_injection": {
				Type:        "boolean",
				Description: "Escalate injection signatures from warnings to errors",
				Default:     false,
			},
			"allowed_keywords": {
				Type:        "array",
				Description: "Expected statement vocabulary",
				Items:       &JSONSchema{Type: "string"},
			},
			"blocked_keywords": {
				Type:        "array",
				Description: "Keywords rejected outright; a trailing underscore matches as a prefix",
				Items:       &JSONSchema{Type: "string"},
			},
			"approval_keywords": {
				Type:        "array",
				Description: "Keywords that route statements into the approval workflow",
				Items:       &JSONSchema{Type: "string"},
			},
			"sensitive_parameters": {
				Type:        "array",
				Description: "Parameter names redacted in logs and audit detail",
				Items:       &JSONSchema{Type: "string"},
			},
		},
	}
}

func generateResilienceSchema() *JSONSchema {
	return &JSONSchema{
		Type:        "object",
		Description: "Retry, circuit breaker and timeout settings",
		Properties: map[string]*JSONSchema{
			"max_retry_attempts": {
				Type:        "integer",
				Description: "Total attempt ceiling including the first call",
				Minimum:     floatPtr(0),
				Default:     3,
			},
			"retry_base_delay": {
				Type:        "string",
				Description: "First backoff delay",
				Format:      "duration",
				Default:     "500ms",
			},
			"retry_max_delay": {
				Type:        "string",
				Description: "Exponential backoff cap",
				Format:      "duration",
				Default:     "30s",
			},
			"circuit_failure_threshold": {
				Type:        "integer",
				Description: "Consecutive failures before the breaker opens",
				Minimum:     floatPtr(0),
				Default:     5,
			},
			"circuit_break_duration": {
				Type:        "string",
				Description: "How long an open breaker rejects calls",
				Format:      "duration",
				Default:     "60s",
			},
			"execution_timeout": {
				Type:        "string",
				Description: "Bound on each individual backend attempt",
				Format:      "duration",
				Default:     "60s",
			},
			"max_concurrent": {
				Type:        "integer",
				Description: "Bound on simultaneous backend executions",
				Minimum:     floatPtr(0),
				Default:     16,
			},
		},
	}
}

func generateRateLimitSchema() *JSONSchema {
	return &JSONSchema{
		Type:        "object",
		Description: "Per-caller tool call throttling",
		Properties: map[string]*JSONSchema{
			"enabled": {
				Type:    "boolean",
				Default: false,
			},
			"rate": {
				Type:        "integer",
				Description: "Tokens per second",
				Minimum:     floatPtr(1),
			},
			"burst": {
				Type:        "integer",
				Description: "Maximum burst size",
				Minimum:     floatPtr(1),
			},
			"fail_open": {
				Type:        "boolean",
				Description: "Admit calls when the limiter itself fails",
				Default:     false,
			},
		},
	}
}

func generateContractsSchema() *JSONSchema {
	return &JSONSchema{
		Type:        "object",
		Description: "Procedure contract cache settings",
		Properties: map[string]*JSONSchema{
			"store": {
				Type:        "string",
				Description: "Contract store backend",
				Enum:        []string{"memory", "redis"},
				Default:     "memory",
			},
			"ttl": {
				Type:        "string",
				Description: "How long a cached contract stays fresh",
				Format:      "duration",
				Default:     "1h",
			},
			"redis": {
				Type:        "object",
				Description: "Redis connection for the redis store",
				Properties: map[string]*JSONSchema{
					"addr":     {Type: "string", Description: "host:port of the redis server"},
					"password": {Type: "string", Description: "Authentication password"},
					"db":       {Type: "integer", Description: "Database index", Minimum: floatPtr(0)},
				},
			},
		},
	}
}

func generateAuditSchema() *JSONSchema {
	return &JSONSchema{
		Type:        "object",
		Description: "Audit trail settings",
		Properties: map[string]*JSONSchema{
			"store": {
				Type:        "string",
				Description: "Audit trail backend",
				Enum:        []string{"memory", "sqlite", "postgres"},
				Default:     "memory",
			},
			"sqlite_path": {
				Type:        "string",
				Description: "Database file for the sqlite store",
			},
			"postgres_dsn": {
				Type:        "string",
				Description: "Connection string for the postgres store",
			},
			"retention": {
				Type:        "string",
				Description: "How long events are kept before cleanup",
				Format:      "duration",
				Default:     "2160h",
			},
		},
	}
}

func generateTasksSchema() *JSONSchema {
	return &JSONSchema{
		Type:        "object",
		Description: "Task store and workflow settings",
		Properties: map[string]*JSONSchema{
			"store": {
				Type:        "string",
				Description: "Task store backend",
				Enum:        []string{"memory", "badger"},
				Default:     "memory",
			},
			"badger_dir": {
				Type:        "string",
				Description: "Data directory for the badger store",
			},
			"max_retries": {
				Type:        "integer",
				Description: "Per-task retry budget",
				Minimum:     floatPtr(0),
				Default:     3,
			},
		},
	}
}

func generateDatabaseSchema() *JSONSchema {
	return &JSONSchema{
		Type:        "object",
		Description: "One logical database",
		Required:    []string{"name", "driver"},
		Properties: map[string]*JSONSchema{
			"name": {
				Type:        "string",
				Description: "Logical name callers use",
			},
			"driver": {
				Type:        "string",
				Description: "Backend adapter",
				Enum:        []string{"memory", "sqlite"},
			},
			"dsn": {
				Type:        "string",
				Description: "Driver-specific connection string",
			},
			"default": {
				Type:        "boolean",
				Description: "Use this database when a call names none",
				Default:     false,
			},
		},
	}
}

func floatPtr(f float64) *float64 {
	return &f
}

// SchemaJSON returns the JSON Schema as an indented JSON string.
func SchemaJSON() (string, error) {
	schema := GenerateSchema()
	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}
