// Package task models long-running database operations that flow through
// the approval workflow before they are allowed to touch a backend.
package task

// Status identifies where a task sits in its lifecycle.
type Status string

// Canonical lifecycle statuses.
const (
	StatusCreated         Status = "created"          // Accepted, not yet routed
	StatusPendingApproval Status = "pending_approval" // Waiting for an operator decision
	StatusApproved        Status = "approved"         // Cleared to run
	StatusRejected        Status = "rejected"         // Denied by an operator; terminal
	StatusRunning         Status = "running"          // Executing against the backend
	StatusCompleted       Status = "completed"        // Finished successfully; terminal
	StatusFailed          Status = "failed"           // Execution failed; retryable
	StatusCancelled       Status = "cancelled"        // Abandoned; terminal
)

// transitions lists every legal status change. Operations classified as
// allowed skip approval entirely, which is the Created to Running edge.
var transitions = map[Status][]Status{
	StatusCreated:         {StatusPendingApproval, StatusRunning, StatusCancelled},
	StatusPendingApproval: {StatusApproved, StatusRejected, StatusCancelled},
	StatusApproved:        {StatusRunning, StatusCancelled},
	StatusRunning:         {StatusCompleted, StatusFailed, StatusCancelled},
	StatusFailed:          {StatusRunning, StatusCancelled},
}

// IsTerminal reports whether no transition can ever leave the status.
// Failed is not terminal: a retry moves it back to Running.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusRejected || s == StatusCancelled
}

// IsValid reports whether the status is one of the canonical values.
func (s Status) IsValid() bool {
	switch s {
	case StatusCreated, StatusPendingApproval, StatusApproved, StatusRejected,
		StatusRunning, StatusCompleted, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// CanTransitionTo reports whether the change from s to target is legal.
func (s Status) CanTransitionTo(target Status) bool {
	for _, next := range transitions[s] {
		if next == target {
			return true
		}
	}
	return false
}

// String returns the string representation of the status.
func (s Status) String() string {
	return string(s)
}

// AllStatuses returns every canonical status.
func AllStatuses() []Status {
	return []Status{
		StatusCreated,
		StatusPendingApproval,
		StatusApproved,
		StatusRejected,
		StatusRunning,
		StatusCompleted,
		StatusFailed,
		StatusCancelled,
	}
}
