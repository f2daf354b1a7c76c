package task

import "context"

// Filter selects tasks for listing. Zero-valued fields match everything.
type Filter struct {
	Status       Status
	Type         Type
	DatabaseName string
	CreatedBy    string
	Limit        int
}

// Matches reports whether the task satisfies every set criterion.
func (f Filter) Matches(t *Task) bool {
	if f.Status != "" && t.Status != f.Status {
		return false
	}
	if f.Type != "" && t.Type != f.Type {
		return false
	}
	if f.DatabaseName != "" && t.DatabaseName != f.DatabaseName {
		return false
	}
	if f.CreatedBy != "" && t.CreatedBy != f.CreatedBy {
		return false
	}
	return true
}

// Store persists tasks with optimistic concurrency control.
type Store interface {
	// Create persists a new task. The task arrives with version 1.
	Create(ctx context.Context, t *Task) error

	// Get returns a copy of the task or ErrNotFound.
	Get(ctx context.Context, id string) (*Task, error)

	// Update persists the task only if the stored version still equals
	// expectedVersion, then increments the version. A mismatch returns
	// ErrVersionConflict and leaves the stored task untouched.
	Update(ctx context.Context, t *Task, expectedVersion int64) error

	// List returns tasks matching the filter, newest first.
	List(ctx context.Context, f Filter) ([]*Task, error)

	// Close releases store resources.
	Close() error
}
