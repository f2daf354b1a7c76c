package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dbbuilder/sqlmcp-saas-sub003/domain/audit"
)

// AuditTrail is a SQLite-backed implementation of audit.Trail. Events are
// append-only; the AUTOINCREMENT id doubles as the insertion order.
type AuditTrail struct {
	db *sql.DB
}

// NewAuditTrail creates a SQLite audit trail with the given configuration.
func NewAuditTrail(cfg Config, opts ...Option) (*AuditTrail, error) {
	for _, opt := range opts {
		opt(&cfg)
	}

	db, err := openDB(cfg)
	if err != nil {
		return nil, err
	}

	t := &AuditTrail{db: db}

	if cfg.AutoMigrate {
		if err := t.migrate(); err != nil {
			db.Close()
			return nil, errors.Join(ErrMigrationFailed, err)
		}
	}

	return t, nil
}

// NewAuditTrailFromDB creates an audit trail from an existing database. The
// caller is responsible for migration and for closing the database.
func NewAuditTrailFromDB(db *sql.DB) *AuditTrail {
	return &AuditTrail{db: db}
}

// migrate creates the audit_events table and its indexes.
func (t *AuditTrail) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS audit_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp DATETIME NOT NULL,
		user_id TEXT NOT NULL DEFAULT '',
		entity_type TEXT NOT NULL,
		entity_id TEXT NOT NULL,
		action TEXT NOT NULL,
		success INTEGER NOT NULL,
		severity TEXT NOT NULL,
		detail TEXT NOT NULL DEFAULT '',
		correlation_id TEXT NOT NULL DEFAULT ''
	);
	CREATE INDEX IF NOT EXISTS idx_audit_events_timestamp ON audit_events(timestamp);
	CREATE INDEX IF NOT EXISTS idx_audit_events_entity ON audit_events(entity_type, entity_id);
	CREATE INDEX IF NOT EXISTS idx_audit_events_user ON audit_events(user_id);
	CREATE INDEX IF NOT EXISTS idx_audit_events_action ON audit_events(action);
	`

	_, err := t.db.Exec(schema)
	return err
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

	res, err := t.db.ExecContext(ctx, `
		INSERT INTO audit_events
			(timestamp, user_id, entity_type, entity_id, action, success, severity, detail, correlation_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		event.Timestamp,
		event.UserID,
		event.EntityType,
		event.EntityID,
		event.Action,
		event.Success,
		string(event.Severity),
		event.Detail,
		event.CorrelationID,
	)
	if err != nil {
		return fmt.Errorf("record audit event: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("read audit event id: %w", err)
	}
	event.ID = id

	return nil
}

// Search returns one page of matching events, newest first, plus the total
// match count. Filtering is pushed down to the query.
func (t *AuditTrail) Search(ctx context.Context, criteria audit.SearchCriteria, page, pageSize int) (*audit.Page, error) {
	page, pageSize = audit.NormalizePage(page, pageSize)

	where, args := buildWhereClause(criteria)

	var total int64
	countQuery := "SELECT COUNT(*) FROM audit_events" + where
	if err := t.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count audit events: %w", err)
	}

	query := `
		SELECT id, timestamp, user_id, entity_type, entity_id, action, success, severity, detail, correlation_id
		FROM audit_events` + where + `
		ORDER BY timestamp DESC, id DESC
		LIMIT ? OFFSET ?`
	args = append(args, pageSize, (page-1)*pageSize)

	rows, err := t.db.QueryContext(ctx, query, args...)
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
	res, err := t.db.ExecContext(ctx, "DELETE FROM audit_events WHERE timestamp < ?", olderThan)
	if err != nil {
		return 0, fmt.Errorf("cleanup audit events: %w", err)
	}

	removed, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("count removed audit events: %w", err)
	}

	return removed, nil
}

// Close closes the underlying database.
func (t *AuditTrail) Close() error {
	return t.db.Close()
}

// buildWhereClause translates search criteria into a WHERE clause with
// positional arguments. Zero-valued criteria add no conditions.
func buildWhereClause(c audit.SearchCriteria) (string, []any) {
	var (
		conds []string
		args  []any
	)

	if c.UserID != "" {
		conds = append(conds, "user_id = ?")
		args = append(args, c.UserID)
	}
	if c.EntityType != "" {
		conds = append(conds, "entity_type = ?")
		args = append(args, c.EntityType)
	}
	if c.EntityID != "" {
		conds = append(conds, "entity_id = ?")
		args = append(args, c.EntityID)
	}
	if c.Action != "" {
		conds = append(conds, "action = ?")
		args = append(args, c.Action)
	}
	if !c.From.IsZero() {
		conds = append(conds, "timestamp >= ?")
		args = append(args, c.From)
	}
	if !c.To.IsZero() {
		conds = append(conds, "timestamp <= ?")
		args = append(args, c.To)
	}
	if c.Severity != "" {
		conds = append(conds, "severity = ?")
		args = append(args, string(c.Severity))
	}
	if c.Success != nil {
		conds = append(conds, "success = ?")
		args = append(args, *c.Success)
	}
	if c.Text != "" {
		needle := "%" + strings.ToLower(c.Text) + "%"
		conds = append(conds, "(LOWER(detail) LIKE ? OR LOWER(action) LIKE ?)")
		args = append(args, needle, needle)
	}

	if len(conds) == 0 {
		return "", nil
	}

	return " WHERE " + strings.Join(conds, " AND "), args
}

// scanEvents reads all rows into events.
func scanEvents(rows *sql.Rows) ([]audit.Event, error) {
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
