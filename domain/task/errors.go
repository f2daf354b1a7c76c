package task

import "errors"

// Domain errors for the task lifecycle.
var (
	// ErrNotFound indicates the task id is unknown to the store.
	ErrNotFound = errors.New("task not found")

	// ErrVersionConflict indicates another writer committed first; the
	// caller must reload the task and re-apply its change.
	ErrVersionConflict = errors.New("task version conflict")

	// ErrInvalidTransition indicates the requested status change is not on
	// the lifecycle graph.
	ErrInvalidTransition = errors.New("invalid task transition")

	// ErrTerminalState indicates the task already reached a terminal status.
	ErrTerminalState = errors.New("task is in a terminal state")

	// ErrRetryBudgetExhausted indicates the task failed more times than its
	// retry budget allows.
	ErrRetryBudgetExhausted = errors.New("task retry budget exhausted")
)
