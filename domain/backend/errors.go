package backend

import (
	"context"
	"errors"
)

// Domain errors for backend execution.
var (
	// ErrUnavailable indicates the target could not be reached or the
	// connection was lost mid-call. Transient.
	ErrUnavailable = errors.New("backend unavailable")

	// ErrTimeout indicates the call exceeded its deadline. Transient.
	ErrTimeout = errors.New("backend call timed out")

	// ErrExecutionFailed indicates the target rejected the statement
	// (syntax, permissions, constraint violations). Permanent.
	ErrExecutionFailed = errors.New("statement execution failed")

	// ErrProcedureNotFound indicates the metadata catalog has no entry for
	// the requested procedure. Permanent.
	ErrProcedureNotFound = errors.New("stored procedure not found")

	// ErrUnknownDatabase indicates no backend is registered under the
	// requested name.
	ErrUnknownDatabase = errors.New("unknown database")

	// ErrAlreadyRegistered indicates a backend with the same name exists.
	ErrAlreadyRegistered = errors.New("backend already registered")

	// ErrNotSupported indicates the target does not implement an optional
	// capability (schema listing, table analysis).
	ErrNotSupported = errors.New("operation not supported by backend")
)

// IsTransient reports whether the failure class is eligible for retry and
// circuit-breaker accounting. Everything else is permanent and must not
// be retried.
func IsTransient(err error) bool {
	return errors.Is(err, ErrUnavailable) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, context.DeadlineExceeded)
}
