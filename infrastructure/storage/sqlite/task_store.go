package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/dbbuilder/sqlmcp-saas-sub003/domain/task"
)

// TaskStore is a SQLite-backed implementation of task.Store. Optimistic
// concurrency rides on the version column: updates compare-and-swap it, so
// the first committer wins.
type TaskStore struct {
	db *sql.DB
}

// NewTaskStore creates a SQLite task store with the given configuration.
func NewTaskStore(cfg Config, opts ...Option) (*TaskStore, error) {
	for _, opt := range opts {
		opt(&cfg)
	}

	db, err := openDB(cfg)
	if err != nil {
		return nil, err
	}

	s := &TaskStore{db: db}

	if cfg.AutoMigrate {
		if err := s.migrate(); err != nil {
			db.Close()
			return nil, errors.Join(ErrMigrationFailed, err)
		}
	}

	return s, nil
}

// NewTaskStoreFromDB creates a task store from an existing database. The
// caller is responsible for migration and for closing the database.
func NewTaskStoreFromDB(db *sql.DB) *TaskStore {
	return &TaskStore{db: db}
}

// migrate creates the tasks table and its indexes.
func (s *TaskStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS tasks (
		id TEXT PRIMARY KEY,
		type TEXT NOT NULL,
		status TEXT NOT NULL,
		database_name TEXT NOT NULL,
		created_by TEXT NOT NULL,
		requires_approval INTEGER NOT NULL DEFAULT 0,
		statement TEXT NOT NULL DEFAULT '',
		is_procedure INTEGER NOT NULL DEFAULT 0,
		parameters TEXT NOT NULL DEFAULT 'null',
		progress TEXT NOT NULL DEFAULT 'null',
		results TEXT NOT NULL DEFAULT 'null',
		last_error TEXT NOT NULL DEFAULT '',
		retry_count INTEGER NOT NULL DEFAULT 0,
		max_retries INTEGER NOT NULL DEFAULT 0,
		version INTEGER NOT NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status);
	CREATE INDEX IF NOT EXISTS idx_tasks_database ON tasks(database_name);
	CREATE INDEX IF NOT EXISTS idx_tasks_created_by ON tasks(created_by);
	CREATE INDEX IF NOT EXISTS idx_tasks_created_at ON tasks(created_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Create persists a new task.
func (s *TaskStore) Create(ctx context.Context, t *task.Task) error {
	if t == nil || t.ID == "" {
		return fmt.Errorf("task id is empty")
	}

	parameters, progress, results, err := marshalTaskBlobs(t)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO tasks
			(id, type, status, database_name, created_by, requires_approval,
			 statement, is_procedure, parameters, progress, results,
			 last_error, retry_count, max_retries, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID,
		string(t.Type),
		string(t.Status),
		t.DatabaseName,
		t.CreatedBy,
		t.RequiresApproval,
		t.Statement,
		t.Procedure,
		parameters,
		progress,
		results,
		t.LastError,
		t.RetryCount,
		t.MaxRetries,
		t.Version,
		t.CreatedAt,
		t.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("task %s already exists", t.ID)
		}
		return fmt.Errorf("create task: %w", err)
	}

	return nil
}

// Get returns a copy of the task or task.ErrNotFound.
func (s *TaskStore) Get(ctx context.Context, id string) (*task.Task, error) {
	if id == "" {
		return nil, task.ErrNotFound
	}

	row := s.db.QueryRowContext(ctx, selectTaskColumns+" FROM tasks WHERE id = ?", id)

	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, task.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}

	return t, nil
}

// Update persists the task if the stored version still matches, then
// increments the version. The first committer wins; later writers get
// task.ErrVersionConflict.
func (s *TaskStore) Update(ctx context.Context, t *task.Task, expectedVersion int64) error {
	if t == nil || t.ID == "" {
		return task.ErrNotFound
	}

	parameters, progress, results, err := marshalTaskBlobs(t)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE tasks SET
			status = ?, requires_approval = ?, statement = ?, is_procedure = ?,
			parameters = ?, progress = ?, results = ?, last_error = ?,
			retry_count = ?, max_retries = ?, version = ?, updated_at = ?
		WHERE id = ? AND version = ?`,
		string(t.Status),
		t.RequiresApproval,
		t.Statement,
		t.Procedure,
		parameters,
		progress,
		results,
		t.LastError,
		t.RetryCount,
		t.MaxRetries,
		expectedVersion+1,
		t.UpdatedAt,
		t.ID,
		expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	if affected == 0 {
		return s.updateConflict(ctx, t.ID, expectedVersion)
	}

	t.Version = expectedVersion + 1
	return nil
}

// updateConflict distinguishes a missing task from a lost race once an
// update matched no rows.
func (s *TaskStore) updateConflict(ctx context.Context, id string, expectedVersion int64) error {
	var stored int64
	err := s.db.QueryRowContext(ctx, "SELECT version FROM tasks WHERE id = ?", id).Scan(&stored)
	if errors.Is(err, sql.ErrNoRows) {
		return task.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	return fmt.Errorf("%w: stored version %d, expected %d", task.ErrVersionConflict, stored, expectedVersion)
}

// List returns tasks matching the filter, newest first.
func (s *TaskStore) List(ctx context.Context, f task.Filter) ([]*task.Task, error) {
	query, args := buildTaskListQuery(f)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	tasks := make([]*task.Task, 0)
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("list tasks: %w", err)
		}
		tasks = append(tasks, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}

	return tasks, nil
}

// Close closes the underlying database.
func (s *TaskStore) Close() error {
	return s.db.Close()
}

const selectTaskColumns = `
	SELECT id, type, status, database_name, created_by, requires_approval,
		statement, is_procedure, parameters, progress, results,
		last_error, retry_count, max_retries, version, created_at, updated_at`

// buildTaskListQuery translates a filter into the list query.
func buildTaskListQuery(f task.Filter) (string, []any) {
	var (
		conds []string
		args  []any
	)

	if f.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, string(f.Status))
	}
	if f.Type != "" {
		conds = append(conds, "type = ?")
		args = append(args, string(f.Type))
	}
	if f.DatabaseName != "" {
		conds = append(conds, "database_name = ?")
		args = append(args, f.DatabaseName)
	}
	if f.CreatedBy != "" {
		conds = append(conds, "created_by = ?")
		args = append(args, f.CreatedBy)
	}

	query := selectTaskColumns + " FROM tasks"
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	return query, args
}

// rowScanner abstracts over sql.Row and sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanTask reads one row into a task, decoding the JSON columns.
func scanTask(row rowScanner) (*task.Task, error) {
	var (
		t          task.Task
		typ        string
		status     string
		parameters []byte
		progress   []byte
		results    []byte
	)

	err := row.Scan(
		&t.ID,
		&typ,
		&status,
		&t.DatabaseName,
		&t.CreatedBy,
		&t.RequiresApproval,
		&t.Statement,
		&t.Procedure,
		&parameters,
		&progress,
		&results,
		&t.LastError,
		&t.RetryCount,
		&t.MaxRetries,
		&t.Version,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	t.Type = task.Type(typ)
	t.Status = task.Status(status)

	if err := json.Unmarshal(parameters, &t.Parameters); err != nil {
		return nil, fmt.Errorf("decode task parameters: %w", err)
	}
	if err := json.Unmarshal(progress, &t.Progress); err != nil {
		return nil, fmt.Errorf("decode task progress: %w", err)
	}
	if err := json.Unmarshal(results, &t.Results); err != nil {
		return nil, fmt.Errorf("decode task results: %w", err)
	}

	return &t, nil
}

// marshalTaskBlobs encodes the nested task slices for storage.
func marshalTaskBlobs(t *task.Task) (parameters, progress, results []byte, err error) {
	if parameters, err = json.Marshal(t.Parameters); err != nil {
		return nil, nil, nil, fmt.Errorf("encode task parameters: %w", err)
	}
	if progress, err = json.Marshal(t.Progress); err != nil {
		return nil, nil, nil, fmt.Errorf("encode task progress: %w", err)
	}
	if results, err = json.Marshal(t.Results); err != nil {
		return nil, nil, nil, fmt.Errorf("encode task results: %w", err)
	}
	return parameters, progress, results, nil
}

// isUniqueViolation reports whether the error is a primary key collision.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// Ensure TaskStore implements task.Store
var _ task.Store = (*TaskStore)(nil)
