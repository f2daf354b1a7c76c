package logging

import (
	"time"

	"github.com/felixgeelhaar/bolt/v3"

	"github.com/dbbuilder/sqlmcp-saas-sub003/domain/audit"
	"github.com/dbbuilder/sqlmcp-saas-sub003/domain/task"
	"github.com/dbbuilder/sqlmcp-saas-sub003/domain/validation"
)

// Field is a function that applies structured data to a log event.
type Field func(*bolt.Event) *bolt.Event

// Common field constructors for gateway logging.

// CorrelationID adds a correlation id field.
func CorrelationID(id string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("correlation_id", id)
	}
}

// Database adds the logical database name.
func Database(name string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("database", name)
	}
}

// ToolName adds a tool name field.
func ToolName(name string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("tool", name)
	}
}

// TaskID adds a task id field.
func TaskID(id string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("task_id", id)
	}
}

// TaskStatus adds a task status field.
func TaskStatus(s task.Status) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("task_status", string(s))
	}
}

// FromStatus adds a from_status field for transitions.
func FromStatus(s task.Status) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("from_status", string(s))
	}
}

// ToStatus adds a to_status field for transitions.
func ToStatus(s task.Status) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("to_status", string(s))
	}
}

// Classification adds the validator's verdict.
func Classification(c validation.Classification) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("classification", c.String())
	}
}

// Action adds an audit action field.
func Action(action string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("action", action)
	}
}

// Severity adds an audit severity field.
func Severity(s audit.Severity) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("severity", string(s))
	}
}

// User adds the calling identity.
func User(id string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("user", id)
	}
}

// Procedure adds a qualified procedure name.
func Procedure(name string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("procedure", name)
	}
}

// Attempt adds a retry attempt number.
func Attempt(n int) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Int("attempt", n)
	}
}

// BreakerState adds a circuit breaker state field.
func BreakerState(state string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("breaker_state", state)
	}
}

// Duration adds a duration field in milliseconds.
func Duration(d time.Duration) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Int64("duration_ms", d.Milliseconds())
	}
}

// ErrorField adds an error field.
func ErrorField(err error) Field {
	return func(e *bolt.Event) *bolt.Event {
		if err == nil {
			return e
		}
		return e.Err(err)
	}
}

// Component adds a component field for categorization.
func Component(name string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("component", name)
	}
}

// Operation adds an operation field.
func Operation(op string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("operation", op)
	}
}

// Method adds a protocol method field.
func Method(method string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("method", method)
	}
}

// Warnings adds the count of advisory findings.
func Warnings(count int) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Int("warnings", count)
	}
}

// Str adds a string field with custom key.
func Str(key, value string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str(key, value)
	}
}

// Int adds an int field with custom key.
func Int(key string, value int) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Int(key, value)
	}
}

// Bool adds a bool field with custom key.
func Bool(key string, value bool) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Bool(key, value)
	}
}
