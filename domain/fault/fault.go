// Package fault defines the closed set of failure kinds the gateway
// surfaces to callers. Every error that crosses a component boundary is
// classified into exactly one Kind; the protocol layer maps kinds to
// wire codes without inspecting component internals.
package fault

import (
	"errors"
	"fmt"
)

// Kind classifies a gateway failure.
type Kind int

const (
	// KindInternal is any unclassified failure. Details are logged but
	// never surfaced across the protocol boundary.
	KindInternal Kind = iota

	// KindValidation is a policy or sanitizer rejection. Never retried,
	// always audited.
	KindValidation

	// KindContractMismatch is a disagreement between provided parameters
	// and a stored procedure contract. Treated as a possible tamper signal.
	KindContractMismatch

	// KindTransientBackend is a connection loss or timeout from the
	// backend. Eligible for retry and circuit-breaker accounting.
	KindTransientBackend

	// KindResilienceExhausted means retries ran out or the circuit is open.
	KindResilienceExhausted

	// KindStaleTaskState is an optimistic concurrency conflict on a task.
	// The caller should re-fetch the task and retry the transition.
	KindStaleTaskState

	// KindProtocol is an unknown method, unknown tool, or missing required
	// argument. Surfaced with a stable code, never fatal to the process.
	KindProtocol

	// KindCancelled means the caller abandoned the request before it
	// completed. Recorded as a cancellation, not a failure.
	KindCancelled
)

// String returns the kind name used in logs and audit detail.
func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation_failure"
	case KindContractMismatch:
		return "contract_mismatch"
	case KindTransientBackend:
		return "transient_backend_failure"
	case KindResilienceExhausted:
		return "resilience_exhausted"
	case KindStaleTaskState:
		return "stale_task_state"
	case KindProtocol:
		return "protocol_error"
	case KindCancelled:
		return "cancelled"
	default:
		return "internal_error"
	}
}

// Application-level wire codes. The JSON-RPC reserved code -32603 covers
// internal failures; classified failures use a dedicated positive range so
// clients can distinguish them from envelope errors.
const (
	CodeValidationFailure   = 1001
	CodeContractMismatch    = 1002
	CodeTransientBackend    = 1003
	CodeResilienceExhausted = 1004
	CodeStaleTaskState      = 1005
	CodeProtocolError       = 1006
	CodeCancelled           = 1007
	CodeInternalError       = -32603
)

// Code returns the wire code for the kind.
func (k Kind) Code() int {
	switch k {
	case KindValidation:
		return CodeValidationFailure
	case KindContractMismatch:
		return CodeContractMismatch
	case KindTransientBackend:
		return CodeTransientBackend
	case KindResilienceExhausted:
		return CodeResilienceExhausted
	case KindStaleTaskState:
		return CodeStaleTaskState
	case KindProtocol:
		return CodeProtocolError
	case KindCancelled:
		return CodeCancelled
	default:
		return CodeInternalError
	}
}

// Error is a classified gateway failure carrying structured context.
type Error struct {
	Kind          Kind
	Message       string
	CorrelationID string
	Data          map[string]string

	cause error
}

// New creates a classified error.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf creates a classified error with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap classifies an underlying error. The cause stays reachable through
// errors.Is and errors.As but its text never replaces the message.
func Wrap(kind Kind, err error, message string) *Error {
	return &Error{Kind: kind, Message: message, cause: err}
}

// WithCorrelation attaches a correlation id and returns the error.
func (e *Error) WithCorrelation(id string) *Error {
	e.CorrelationID = id
	return e
}

// WithData attaches a key-value pair and returns the error.
func (e *Error) WithData(key, value string) *Error {
	if e.Data == nil {
		e.Data = make(map[string]string)
	}
	e.Data[key] = value
	return e
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes the underlying cause.
func (e *Error) Unwrap() error {
	return e.cause
}

// Public returns the message safe to cross the protocol boundary. Internal
// failures collapse to a generic message so connection strings and stack
// detail cannot leak.
func (e *Error) Public() string {
	if e.Kind == KindInternal {
		return "internal error"
	}
	return e.Message
}

// KindOf classifies an arbitrary error. Unclassified errors are internal.
func KindOf(err error) Kind {
	if err == nil {
		return KindInternal
	}
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindInternal
}

// Is reports whether the error carries the given kind.
func Is(err error, kind Kind) bool {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind == kind
	}
	return false
}

// From returns the classified form of err, wrapping unclassified errors
// as internal.
func From(err error) *Error {
	var fe *Error
	if errors.As(err, &fe) {
		return fe
	}
	return Wrap(KindInternal, err, "unexpected failure")
}
