// Package sqlite adapts a SQLite database to the backend collaborator
// interfaces. It backs local and embedded deployments; stored procedure
// metadata is not supported because SQLite has no procedure catalog.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	// Register the sqlite3 driver.
	_ "github.com/mattn/go-sqlite3"

	"github.com/dbbuilder/sqlmcp-saas-sub003/domain/backend"
)

// Backend executes statements against one SQLite database.
type Backend struct {
	name string
	db   *sql.DB
}

// New opens the database at dsn and wraps it as a backend named name.
func New(name, dsn string) (*Backend, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", name, err)
	}

	db.SetMaxOpenConns(1)
	db.SetConnMaxIdleTime(10 * time.Minute)

	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("open database %s: %w", name, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("open database %s: %w", name, err)
	}

	return &Backend{name: name, db: db}, nil
}

// NewFromDB wraps an existing database handle. The caller keeps ownership
// of the handle's lifecycle only if it was not created by New.
func NewFromDB(name string, db *sql.DB) *Backend {
	return &Backend{name: name, db: db}
}

// Name identifies the target.
func (b *Backend) Name() string {
	return b.name
}

// Execute runs the statement. Statements that produce rows go through the
// query path; everything else reports affected rows.
func (b *Backend) Execute(ctx context.Context, statement string, params []backend.Parameter) (*backend.ExecResult, error) {
	args := bindParameters(params)

	if returnsRows(statement) {
		return b.query(ctx, statement, args)
	}

	res, err := b.db.ExecContext(ctx, statement, args...)
	if err != nil {
		return nil, b.wrapError(err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return nil, b.wrapError(err)
	}

	return &backend.ExecResult{RowsAffected: affected}, nil
}

// query runs the statement and materializes the full result set.
func (b *Backend) query(ctx context.Context, statement string, args []any) (*backend.ExecResult, error) {
	rows, err := b.db.QueryContext(ctx, statement, args...)
	if err != nil {
		return nil, b.wrapError(err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, b.wrapError(err)
	}

	result := &backend.ExecResult{
		Columns:      columns,
		HasResultSet: true,
	}

	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, b.wrapError(err)
		}
		for i, v := range values {
			if raw, ok := v.([]byte); ok {
				values[i] = string(raw)
			}
		}
		result.Rows = append(result.Rows, values)
	}

	if err := rows.Err(); err != nil {
		return nil, b.wrapError(err)
	}

	return result, nil
}

// GetProcedureMetadata always fails: SQLite has no stored procedures.
func (b *Backend) GetProcedureMetadata(_ context.Context, qualifiedName string) (*backend.ProcedureMetadata, error) {
	return nil, fmt.Errorf("%w: sqlite database %s has no stored procedures (%s)", backend.ErrNotSupported, b.name, qualifiedName)
}

// ListObjects enumerates tables and views from sqlite_master.
func (b *Backend) ListObjects(ctx context.Context, kind backend.ObjectKind) ([]backend.SchemaObject, error) {
	var types []string
	switch kind {
	case backend.ObjectTables:
		types = []string{"table"}
	case backend.ObjectViews:
		types = []string{"view"}
	case backend.ObjectProcedures:
		return []backend.SchemaObject{}, nil
	default:
		types = []string{"table", "view"}
	}

	placeholders := strings.Repeat("?,", len(types))
	placeholders = placeholders[:len(placeholders)-1]

	args := make([]any, len(types))
	for i, t := range types {
		args[i] = t
	}

	query := fmt.Sprintf(`
		SELECT name, type FROM sqlite_master
		WHERE type IN (%s) AND name NOT LIKE 'sqlite_%%'
		ORDER BY type, name`, placeholders)

	rows, err := b.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, b.wrapError(err)
	}
	defer rows.Close()

	objects := make([]backend.SchemaObject, 0)
	for rows.Next() {
		var o backend.SchemaObject
		if err := rows.Scan(&o.Name, &o.Kind); err != nil {
			return nil, b.wrapError(err)
		}
		objects = append(objects, o)
	}

	if err := rows.Err(); err != nil {
		return nil, b.wrapError(err)
	}

	return objects, nil
}

// identifierPattern restricts table names interpolated into analysis
// queries; anything else is rejected before touching SQL.
var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// AnalyzeTable summarizes one table.
func (b *Backend) AnalyzeTable(ctx context.Context, table string) (*backend.TableStatistics, error) {
	if !identifierPattern.MatchString(table) {
		return nil, fmt.Errorf("%w: invalid table name %q", backend.ErrExecutionFailed, table)
	}

	var rowCount int64
	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM "%s"`, table)
	if err := b.db.QueryRowContext(ctx, countQuery).Scan(&rowCount); err != nil {
		return nil, b.wrapError(err)
	}

	rows, err := b.db.QueryContext(ctx, fmt.Sprintf(`PRAGMA table_info("%s")`, table))
	if err != nil {
		return nil, b.wrapError(err)
	}
	defer rows.Close()

	columnCount := 0
	for rows.Next() {
		columnCount++
	}
	if err := rows.Err(); err != nil {
		return nil, b.wrapError(err)
	}

	return &backend.TableStatistics{
		Table:       table,
		RowCount:    rowCount,
		ColumnCount: columnCount,
	}, nil
}

// Close closes the database handle.
func (b *Backend) Close() error {
	return b.db.Close()
}

// wrapError classifies driver errors into the backend taxonomy so the
// resilience wrapper retries only what is genuinely transient.
func (b *Backend) wrapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", backend.ErrTimeout, err)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}

	msg := err.Error()
	if strings.Contains(msg, "database is locked") || strings.Contains(msg, "database table is locked") {
		return fmt.Errorf("%w: %v", backend.ErrUnavailable, err)
	}

	return fmt.Errorf("%w: %v", backend.ErrExecutionFailed, err)
}

// bindParameters converts gateway parameters to named driver arguments.
// Leading markers (@, :, $) are stripped; the driver accepts any of its
// named-parameter syntaxes for the bare name.
func bindParameters(params []backend.Parameter) []any {
	if len(params) == 0 {
		return nil
	}

	args := make([]any, 0, len(params))
	for _, p := range params {
		name := strings.TrimLeft(p.Name, "@:$")
		args = append(args, sql.Named(name, p.Value))
	}
	return args
}

// returnsRows reports whether the statement produces a result set.
func returnsRows(statement string) bool {
	fields := strings.Fields(statement)
	if len(fields) == 0 {
		return false
	}
	switch strings.ToUpper(fields[0]) {
	case "SELECT", "WITH", "VALUES", "PRAGMA":
		return true
	default:
		return false
	}
}

// Ensure Backend implements the collaborator interfaces
var (
	_ backend.Backend      = (*Backend)(nil)
	_ backend.SchemaReader = (*Backend)(nil)
	_ backend.Analyzer     = (*Backend)(nil)
)
