// Package memory provides an in-memory demo backend so the gateway runs
// end-to-end without a real database and the dispatcher is testable
// hermetically. Query execution is an approximation: SELECT returns the
// whole seeded table named after FROM, data modification reports one
// affected row, procedures dispatch to seeded handlers.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dbbuilder/sqlmcp-saas-sub003/domain/backend"
)

// Table is one seeded demo table.
type Table struct {
	Name    string
	Columns []string
	Rows    [][]any
}

// Procedure is one seeded stored procedure: its metadata and either a
// handler or a canned result.
type Procedure struct {
	Metadata backend.ProcedureMetadata
	Handler  func(params []backend.Parameter) (*backend.ExecResult, error)
	Result   *backend.ExecResult
}

// Backend is an in-memory implementation of backend.Backend plus the
// optional SchemaReader and Analyzer capabilities.
type Backend struct {
	name    string
	latency time.Duration

	mu         sync.Mutex
	tables     map[string]*Table
	procedures map[string]*Procedure
	calls      int
	failErr    error
	failLeft   int
}

// Option configures the backend.
type Option func(*Backend)

// WithTable seeds one table.
func WithTable(t Table) Option {
	return func(b *Backend) {
		b.tables[normalizeObjectName(t.Name)] = &t
	}
}

// WithProcedure seeds one stored procedure.
func WithProcedure(p Procedure) Option {
	return func(b *Backend) {
		b.procedures[normalizeObjectName(p.Metadata.QualifiedName)] = &p
	}
}

// WithLatency makes every call take at least d, so deadline handling can
// be exercised.
func WithLatency(d time.Duration) Option {
	return func(b *Backend) {
		b.latency = d
	}
}

// New creates an empty in-memory backend with the given name.
func New(name string, opts ...Option) *Backend {
	b := &Backend{
		name:       name,
		tables:     make(map[string]*Table),
		procedures: make(map[string]*Procedure),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Name identifies the target.
func (b *Backend) Name() string {
	return b.name
}

// FailNext makes the next n calls fail with err. Tests use it to exercise
// retry and circuit-breaker behavior.
func (b *Backend) FailNext(err error, n int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failErr = err
	b.failLeft = n
}

// Calls returns how many Execute and metadata calls the backend received.
func (b *Backend) Calls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls
}

// begin counts the call, honors injected failures and simulated latency.
func (b *Backend) begin(ctx context.Context) error {
	b.mu.Lock()
	b.calls++
	var injected error
	if b.failLeft > 0 {
		b.failLeft--
		injected = b.failErr
	}
	latency := b.latency
	b.mu.Unlock()

	if injected != nil {
		return injected
	}

	if latency > 0 {
		timer := time.NewTimer(latency)
		defer timer.Stop()
		select {
		case <-ctx.Done():
		case <-timer.C:
		}
	}

	if err := ctx.Err(); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w: %v", backend.ErrTimeout, err)
		}
		return err
	}

	return nil
}

// Execute runs the statement against the seeded data.
func (b *Backend) Execute(ctx context.Context, statement string, params []backend.Parameter) (*backend.ExecResult, error) {
	if err := b.begin(ctx); err != nil {
		return nil, err
	}

	fields := strings.Fields(statement)
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: empty statement", backend.ErrExecutionFailed)
	}

	switch strings.ToUpper(fields[0]) {
	case "SELECT", "WITH":
		return b.query(fields)
	case "EXEC", "EXECUTE", "CALL":
		return b.callProcedure(fields, params)
	case "INSERT", "UPDATE", "DELETE", "MERGE":
		return b.modify(fields)
	default:
		// DDL and maintenance statements succeed without touching rows.
		return &backend.ExecResult{}, nil
	}
}

// query returns the table named by the first resolvable FROM clause, or an
// empty result set when the statement references none.
func (b *Backend) query(fields []string) (*backend.ExecResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, f := range fields {
		if !strings.EqualFold(f, "FROM") || i+1 >= len(fields) {
			continue
		}
		if t, ok := b.tables[normalizeObjectName(fields[i+1])]; ok {
			rows := make([][]any, len(t.Rows))
			copy(rows, t.Rows)
			return &backend.ExecResult{
				Columns:      t.Columns,
				Rows:         rows,
				HasResultSet: true,
			}, nil
		}
	}

	return &backend.ExecResult{HasResultSet: true}, nil
}

// modify reports one affected row against a known table.
func (b *Backend) modify(fields []string) (*backend.ExecResult, error) {
	name := dmlTarget(fields)

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.tables[name]; !ok {
		return nil, fmt.Errorf("%w: no such table %q", backend.ErrExecutionFailed, name)
	}

	return &backend.ExecResult{RowsAffected: 1}, nil
}

// callProcedure dispatches EXEC statements to seeded procedures.
func (b *Backend) callProcedure(fields []string, params []backend.Parameter) (*backend.ExecResult, error) {
	if len(fields) < 2 {
		return nil, fmt.Errorf("%w: procedure name missing", backend.ErrExecutionFailed)
	}
	name := normalizeObjectName(fields[1])

	b.mu.Lock()
	proc, ok := b.procedures[name]
	b.mu.Unlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", backend.ErrProcedureNotFound, name)
	}

	if proc.Handler != nil {
		return proc.Handler(params)
	}
	if proc.Result != nil {
		result := *proc.Result
		return &result, nil
	}

	return &backend.ExecResult{}, nil
}

// GetProcedureMetadata fetches the raw contract for a seeded procedure.
func (b *Backend) GetProcedureMetadata(ctx context.Context, qualifiedName string) (*backend.ProcedureMetadata, error) {
	if err := b.begin(ctx); err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	proc, ok := b.procedures[normalizeObjectName(qualifiedName)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", backend.ErrProcedureNotFound, qualifiedName)
	}

	meta := proc.Metadata
	meta.Parameters = append([]backend.ProcedureParameter(nil), proc.Metadata.Parameters...)
	return &meta, nil
}

// ListObjects enumerates seeded tables and procedures.
func (b *Backend) ListObjects(ctx context.Context, kind backend.ObjectKind) ([]backend.SchemaObject, error) {
	if err := b.begin(ctx); err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	objects := make([]backend.SchemaObject, 0)

	if kind == backend.ObjectTables || kind == backend.ObjectAll {
		for _, t := range b.tables {
			objects = append(objects, backend.SchemaObject{Name: t.Name, Kind: "table"})
		}
	}
	if kind == backend.ObjectProcedures || kind == backend.ObjectAll {
		for _, p := range b.procedures {
			objects = append(objects, backend.SchemaObject{Name: p.Metadata.QualifiedName, Kind: "procedure"})
		}
	}

	sort.Slice(objects, func(i, j int) bool {
		if objects[i].Kind == objects[j].Kind {
			return objects[i].Name < objects[j].Name
		}
		return objects[i].Kind < objects[j].Kind
	})

	return objects, nil
}

// AnalyzeTable summarizes one seeded table.
func (b *Backend) AnalyzeTable(ctx context.Context, table string) (*backend.TableStatistics, error) {
	if err := b.begin(ctx); err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := b.tables[normalizeObjectName(table)]
	if !ok {
		return nil, fmt.Errorf("%w: no such table %q", backend.ErrExecutionFailed, table)
	}

	return &backend.TableStatistics{
		Table:       t.Name,
		RowCount:    int64(len(t.Rows)),
		ColumnCount: len(t.Columns),
	}, nil
}

// normalizeObjectName lowercases a statement token and strips punctuation,
// quoting and a leading schema qualifier.
func normalizeObjectName(token string) string {
	name := strings.Trim(token, `;,()[]"'`+"`")
	if i := strings.LastIndex(name, "."); i >= 0 {
		name = name[i+1:]
	}
	return strings.ToLower(name)
}

// dmlTarget finds the table a data modification statement addresses.
func dmlTarget(fields []string) string {
	for i, f := range fields {
		switch strings.ToUpper(f) {
		case "INTO", "FROM":
			if i+1 < len(fields) {
				return normalizeObjectName(fields[i+1])
			}
		case "UPDATE":
			if i+1 < len(fields) {
				return normalizeObjectName(fields[i+1])
			}
		}
	}
	return ""
}

// Ensure Backend implements the collaborator interfaces
var (
	_ backend.Backend      = (*Backend)(nil)
	_ backend.SchemaReader = (*Backend)(nil)
	_ backend.Analyzer     = (*Backend)(nil)
)
