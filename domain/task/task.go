package task

import (
	"fmt"
	"time"

	"github.com/dbbuilder/sqlmcp-saas-sub003/domain/backend"
)

// Type classifies the operation a task carries.
type Type string

// Task types.
const (
	TypeQuery        Type = "query"         // Read-only statement
	TypeCommand      Type = "command"       // Data modification or procedure call
	TypeSchemaChange Type = "schema_change" // DDL, always routed for approval
	TypeBackup       Type = "backup"        // Backup or restore job
	TypeMaintenance  Type = "maintenance"   // Reindex, statistics, cleanup
)

// DefaultMaxRetries bounds how often a failed task may re-enter Running.
const DefaultMaxRetries = 3

// ProgressEvent is one append-only entry in a task's progress history.
type ProgressEvent struct {
	Timestamp       time.Time `json:"timestamp"`
	Message         string    `json:"message"`
	PercentComplete int       `json:"percent_complete"`
}

// Result captures one execution outcome of a task.
type Result struct {
	Timestamp    time.Time `json:"timestamp"`
	RowsAffected int64     `json:"rows_affected"`
	Message      string    `json:"message,omitempty"`
}

// Task is the aggregate root for a deferred database operation. Version
// implements optimistic concurrency: stores reject updates whose expected
// version no longer matches, so the first committer wins.
type Task struct {
	ID               string              `json:"id"`
	Type             Type                `json:"type"`
	Status           Status              `json:"status"`
	DatabaseName     string              `json:"database_name"`
	CreatedBy        string              `json:"created_by"`
	RequiresApproval bool                `json:"requires_approval"`
	Statement        string              `json:"statement,omitempty"`
	Procedure        bool                `json:"procedure,omitempty"`
	Parameters       []backend.Parameter `json:"parameters,omitempty"`
	Progress         []ProgressEvent     `json:"progress"`
	Results          []Result            `json:"results,omitempty"`
	LastError        string              `json:"last_error,omitempty"`
	RetryCount       int                 `json:"retry_count"`
	MaxRetries       int                 `json:"max_retries"`
	Version          int64               `json:"version"`
	CreatedAt        time.Time           `json:"created_at"`
	UpdatedAt        time.Time           `json:"updated_at"`
}

// New creates a task in the Created status with version 1.
func New(id string, typ Type, databaseName, createdBy string) *Task {
	now := time.Now().UTC()
	return &Task{
		ID:           id,
		Type:         typ,
		Status:       StatusCreated,
		DatabaseName: databaseName,
		CreatedBy:    createdBy,
		Progress:     make([]ProgressEvent, 0, 4),
		MaxRetries:   DefaultMaxRetries,
		Version:      1,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// Transition moves the task to the target status and appends a progress
// event describing the change. Terminal tasks reject every transition.
func (t *Task) Transition(target Status, now time.Time, message string) error {
	if t.Status.IsTerminal() {
		return fmt.Errorf("%w: %s", ErrTerminalState, t.Status)
	}
	if !t.Status.CanTransitionTo(target) {
		return fmt.Errorf("%w: %s to %s", ErrInvalidTransition, t.Status, target)
	}
	t.Status = target
	t.UpdatedAt = now
	t.AddProgress(now, message, percentFor(target))
	return nil
}

// AddProgress appends one progress event.
func (t *Task) AddProgress(now time.Time, message string, percent int) {
	t.Progress = append(t.Progress, ProgressEvent{
		Timestamp:       now,
		Message:         message,
		PercentComplete: percent,
	})
}

// AddResult appends one execution result.
func (t *Task) AddResult(r Result) {
	t.Results = append(t.Results, r)
}

// CanRetry reports whether a failed task still has retry budget left.
func (t *Task) CanRetry() bool {
	return t.Status == StatusFailed && t.RetryCount < t.MaxRetries
}

// MarkRetried consumes one unit of retry budget. Callers invoke it
// together with the Failed to Running transition.
func (t *Task) MarkRetried() {
	t.RetryCount++
}

// IsTerminal reports whether the task reached a terminal status.
func (t *Task) IsTerminal() bool {
	return t.Status.IsTerminal()
}

// percentFor maps a status to the coarse completion figure reported in
// progress events.
func percentFor(s Status) int {
	switch s {
	case StatusCreated:
		return 0
	case StatusPendingApproval:
		return 10
	case StatusApproved:
		return 25
	case StatusRunning:
		return 50
	case StatusCompleted:
		return 100
	default:
		// Rejected, Failed and Cancelled stop wherever they stood.
		return 50
	}
}
