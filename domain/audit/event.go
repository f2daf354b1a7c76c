// Package audit defines the append-only audit trail: every validation
// decision, execution outcome, and task transition becomes exactly one
// immutable event. Implementations live in infrastructure/storage.
package audit

import "time"

// Severity grades an audit event.
type Severity string

// Severities, ordered by weight.
const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// Entity types referenced by events.
const (
	EntityStatement = "statement"
	EntityProcedure = "procedure"
	EntityTask      = "task"
	EntityTrail     = "audit"
)

// Actions recorded by the gateway.
const (
	ActionValidationRejected  = "validation_rejected"
	ActionInjectionWarning    = "injection_warning"
	ActionContractMismatch    = "contract_mismatch"
	ActionStatementExecuted   = "statement_executed"
	ActionProcedureExecuted   = "procedure_executed"
	ActionExecutionFailed     = "execution_failed"
	ActionExecutionCancelled  = "execution_cancelled"
	ActionResilienceExhausted = "resilience_exhausted"
	ActionTaskCreated         = "task_created"
	ActionTaskSubmitted       = "task_submitted"
	ActionTaskApproved        = "task_approved"
	ActionTaskRejected        = "task_rejected"
	ActionTaskStarted         = "task_started"
	ActionTaskCompleted       = "task_completed"
	ActionTaskFailed          = "task_failed"
	ActionTaskCancelled       = "task_cancelled"
	ActionTaskRetried         = "task_retried"
	ActionRetentionCleanup    = "retention_cleanup"
)

// Event is one immutable audit record. The store assigns the monotonic id
// on Record; everything else is set by the caller.
type Event struct {
	ID            int64     `json:"id"`
	Timestamp     time.Time `json:"timestamp"`
	UserID        string    `json:"user_id"`
	EntityType    string    `json:"entity_type"`
	EntityID      string    `json:"entity_id"`
	Action        string    `json:"action"`
	Success       bool      `json:"success"`
	Severity      Severity  `json:"severity"`
	Detail        string    `json:"detail,omitempty"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

// NewEvent stamps a successful info-severity event; callers adjust the
// outcome fields as needed.
func NewEvent(action, entityType, entityID string) Event {
	return Event{
		Timestamp:  time.Now().UTC(),
		EntityType: entityType,
		EntityID:   entityID,
		Action:     action,
		Success:    true,
		Severity:   SeverityInfo,
	}
}
