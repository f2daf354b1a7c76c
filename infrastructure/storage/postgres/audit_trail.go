// Package postgres provides PostgreSQL-backed storage for deployments where
// the audit trail must be shared across gateway instances.
package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dbbuilder/sqlmcp-saas-sub003/domain/audit"
)

// AuditTrail is a PostgreSQL-backed implementation of audit.Trail. The pool
// is injected and stays owned by the caller.
type AuditTrail struct {
	pool   *pgxpool.Pool
	schema string
}

// NewAuditTrail creates a new PostgreSQL audit trail. An empty schema
// defaults to public.
func NewAuditTrail(pool *pgxpool.Pool, schema string) *AuditTrail {
	if schema == "" {
		schema = "public"
	}
	return &AuditTrail{
		pool:   pool,
		schema: schema,
	}
}

// tableName returns the fully qualified table name.
func (t *AuditTrail) tableName() string {
	return fmt.Sprintf("%s.audit_events", t.schema)
}

// Migrate creates the audit_events table and its indexes.
func (t *AuditTrail) Migrate(ctx context.Context) error {
	schema := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %[1]s (
			id BIGSERIAL PRIMARY KEY,
			timestamp TIMESTAMPTZ NOT NULL,
			user_id TEXT NOT NULL DEFAULT '',
			entity_type TEXT NOT NULL,
			entity_id TEXT NOT NULL,
			action TEXT NOT NULL,
			success BOOLEAN NOT NULL,
			severity TEXT NOT NULL,
			detail TEXT NOT NULL DEFAULT '',
			correlation_id TEXT NOT NULL DEFAULT ''
		);
		CREATE INDEX IF NOT EXISTS idx_audit_events_timestamp ON %[1]s (timestamp);
		CREATE INDEX IF NOT EXISTS idx_audit_events_entity ON %[1]s (entity_type, entity_id);
		CREATE INDEX IF NOT EXISTS idx_audit_events_user ON %[1]s (user_id);
		CREATE INDEX IF NOT EXISTS idx_audit_events_action ON %[1]s (action);
	`, t.tableName())

	if _, err := t.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate audit trail: %w", err)
	}

	return nil
}

// Record appends an event and assigns the generated id back to it.
func (t *AuditTrail) Record(ctx context.Context, event *audit.Event) error {
	if event == nil {
		return fmt.Errorf("audit event is nil")
	}
	if event.Action == "" {
		return fmt.Errorf("audit event action is empty")
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	query := fmt.Sprintf(`
		INSERT INTO %s
			(timestamp, user_id, entity_type, entity_id, action, success, severity, detail, correlation_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`, t.tableName())

	err := t.pool.QueryRow(ctx, query,
		event.Timestamp,
		event.UserID,
		event.EntityType,
		event.EntityID,
		event.Action,
		event.Success,
		string(event.Severity),
		event.Detail,
		event.CorrelationID,
	).Scan(&event.ID)
	if err != nil {
		return fmt.Errorf("record audit event: %w", err)
	}

	return nil
}

// Search returns one page of matching events, newest first, plus the total
// match count.
func (t *AuditTrail) Search(ctx context.Context, criteria audit.SearchCriteria, page, pageSize int) (*audit.Page, error) {
	page, pageSize = audit.NormalizePage(page, pageSize)

	where, args := t.buildWhereClause(criteria)

	var total int64
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM %s %s", t.tableName(), where)
	if err := t.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count audit events: %w", err)
	}

	args = append(args, pageSize)
	limitArg := len(args)
	args = append(args, (page-1)*pageSize)
	offsetArg := len(args)

	query := fmt.Sprintf(`
		SELECT id, timestamp, user_id, entity_type, entity_id, action, success, severity, detail, correlation_id
		FROM %s %s
		ORDER BY timestamp DESC, id DESC
		LIMIT $%d OFFSET $%d`, t.tableName(), where, limitArg, offsetArg)

	rows, err := t.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("search audit events: %w", err)
	}
	defer rows.Close()

	events, err := scanEvents(rows)
	if err != nil {
		return nil, err
	}

	return &audit.Page{
		Events:   events,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	}, nil
}

// Cleanup deletes events strictly older than the cutoff and reports how
// many were removed.
func (t *AuditTrail) Cleanup(ctx context.Context, olderThan time.Time) (int64, error) {
	query := fmt.Sprintf("DELETE FROM %s WHERE timestamp < $1", t.tableName())

	tag, err := t.pool.Exec(ctx, query, olderThan)
	if err != nil {
		return 0, fmt.Errorf("cleanup audit events: %w", err)
	}

	return tag.RowsAffected(), nil
}

// Close is a no-op; the pool belongs to the caller.
func (t *AuditTrail) Close() error {
	return nil
}

// buildWhereClause translates search criteria into a WHERE clause with
// numbered arguments.
func (t *AuditTrail) buildWhereClause(c audit.SearchCriteria) (string, []any) {
	var (
		conds []string
		args  []any
	)

	add := func(cond string, value any) {
		args = append(args, value)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if c.UserID != "" {
		add("user_id = $%d", c.UserID)
	}
	if c.EntityType != "" {
		add("entity_type = $%d", c.EntityType)
	}
	if c.EntityID != "" {
		add("entity_id = $%d", c.EntityID)
	}
	if c.Action != "" {
		add("action = $%d", c.Action)
	}
	if !c.From.IsZero() {
		add("timestamp >= $%d", c.From)
	}
	if !c.To.IsZero() {
		add("timestamp <= $%d", c.To)
	}
	if c.Severity != "" {
		add("severity = $%d", string(c.Severity))
	}
	if c.Success != nil {
		add("success = $%d", *c.Success)
	}
	if c.Text != "" {
		args = append(args, "%"+c.Text+"%")
		conds = append(conds, fmt.Sprintf("(detail ILIKE $%[1]d OR action ILIKE $%[1]d)", len(args)))
	}

	if len(conds) == 0 {
		return "", args
	}

	return "WHERE " + strings.Join(conds, " AND "), args
}

// scanEvents reads all rows into events.
func scanEvents(rows pgx.Rows) ([]audit.Event, error) {
	events := make([]audit.Event, 0)

	for rows.Next() {
		var e audit.Event
		var severity string

		err := rows.Scan(
			&e.ID,
			&e.Timestamp,
			&e.UserID,
			&e.EntityType,
			&e.EntityID,
			&e.Action,
			&e.Success,
			&severity,
			&e.Detail,
			&e.CorrelationID,
		)
		if err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		e.Severity = audit.Severity(severity)

		events = append(events, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}

	return events, nil
}

// Ensure AuditTrail implements audit.Trail
var _ audit.Trail = (*AuditTrail)(nil)
