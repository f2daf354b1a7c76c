// Package backend defines the relational execution collaborator the
// gateway drives. The gateway never assumes a concrete driver; it needs
// statement execution, procedure metadata, and transient-failure
// classification, nothing else.
package backend

import (
	"context"
)

// Direction indicates how a parameter flows into or out of a call.
type Direction string

// Parameter directions.
const (
	DirectionInput       Direction = "Input"
	DirectionOutput      Direction = "Output"
	DirectionInputOutput Direction = "InputOutput"
	DirectionReturn      Direction = "ReturnValue"
)

// Parameter is a named argument for a statement or procedure call.
type Parameter struct {
	Name      string    `json:"name"`
	Value     any       `json:"value"`
	DataType  string    `json:"type,omitempty"`
	Direction Direction `json:"direction,omitempty"`
	Sensitive bool      `json:"sensitive,omitempty"`
}

// ExecResult is the outcome of one execution: either a result set or an
// affected-row count.
type ExecResult struct {
	Columns      []string `json:"columns,omitempty"`
	Rows         [][]any  `json:"rows,omitempty"`
	RowsAffected int64    `json:"rows_affected"`
	HasResultSet bool     `json:"has_result_set"`
}

// ProcedureParameter describes one parameter in raw procedure metadata.
type ProcedureParameter struct {
	Name         string
	DataType     string
	Required     bool
	Direction    Direction
	MaxLength    int
	DefaultValue string
}

// ProcedureMetadata is the raw contract shape as fetched from the backend
// metadata catalog, before it is cooked into a cached contract.
type ProcedureMetadata struct {
	QualifiedName    string
	Parameters       []ProcedureParameter
	ReturnsResultSet bool
	SecurityLevel    string
}

// Backend executes statements against a single relational target.
type Backend interface {
	// Name identifies the target for circuit-breaker accounting and audit.
	Name() string

	// Execute runs the statement with the given parameters. The context
	// carries the execution deadline; implementations must honor
	// cancellation.
	Execute(ctx context.Context, statement string, params []Parameter) (*ExecResult, error)

	// GetProcedureMetadata fetches the raw contract for a stored procedure
	// from the target's metadata catalog.
	GetProcedureMetadata(ctx context.Context, qualifiedName string) (*ProcedureMetadata, error)
}

// ObjectKind selects a class of schema objects.
type ObjectKind string

// Schema object kinds.
const (
	ObjectTables     ObjectKind = "tables"
	ObjectViews      ObjectKind = "views"
	ObjectProcedures ObjectKind = "procedures"
	ObjectAll        ObjectKind = "all"
)

// SchemaObject is one catalog entry.
type SchemaObject struct {
	Schema string `json:"schema,omitempty"`
	Name   string `json:"name"`
	Kind   string `json:"kind"`
}

// SchemaReader is an optional capability for targets that can enumerate
// their catalog without raw system-table queries.
type SchemaReader interface {
	ListObjects(ctx context.Context, kind ObjectKind) ([]SchemaObject, error)
}

// TableStatistics summarizes one table for the analyze surface.
type TableStatistics struct {
	Table       string `json:"table"`
	RowCount    int64  `json:"row_count"`
	ColumnCount int    `json:"column_count"`
}

// Analyzer is an optional capability for targets that can produce table
// statistics.
type Analyzer interface {
	AnalyzeTable(ctx context.Context, table string) (*TableStatistics, error)
}
