// Package workflow drives task lifecycles through a statekit statechart.
// The chart encodes the same topology as the task status table; the chart
// rejects illegal events structurally while the domain aggregate keeps the
// progress history and retry budget honest.
package workflow

import (
	"github.com/felixgeelhaar/statekit"

	"github.com/dbbuilder/sqlmcp-saas-sub003/domain/task"
)

// machineID names the statechart for snapshots.
const machineID = "task"

// Context carries the task through guards and actions. Err captures the
// aggregate's verdict because statekit actions cannot return errors.
type Context struct {
	Task *task.Task
	Err  error
}

// State IDs mirror the task statuses so snapshots restore directly from a
// persisted status.
const (
	stateCreated         statekit.StateID = statekit.StateID(task.StatusCreated)
	statePendingApproval statekit.StateID = statekit.StateID(task.StatusPendingApproval)
	stateApproved        statekit.StateID = statekit.StateID(task.StatusApproved)
	stateRejected        statekit.StateID = statekit.StateID(task.StatusRejected)
	stateRunning         statekit.StateID = statekit.StateID(task.StatusRunning)
	stateCompleted       statekit.StateID = statekit.StateID(task.StatusCompleted)
	stateFailed          statekit.StateID = statekit.StateID(task.StatusFailed)
	stateCancelled       statekit.StateID = statekit.StateID(task.StatusCancelled)
)

// Lifecycle events.
const (
	EventSubmit   statekit.EventType = "SUBMIT"
	EventApprove  statekit.EventType = "APPROVE"
	EventReject   statekit.EventType = "REJECT"
	EventStart    statekit.EventType = "START"
	EventComplete statekit.EventType = "COMPLETE"
	EventFail     statekit.EventType = "FAIL"
	EventCancel   statekit.EventType = "CANCEL"
	EventRetry    statekit.EventType = "RETRY"
)

// NewTaskMachine builds the canonical task statechart. Operations that need
// no approval take the direct Created to Running edge.
func NewTaskMachine() (*statekit.MachineConfig[*Context], error) {
	return statekit.NewMachine[*Context](machineID).
		WithInitial(stateCreated).
		WithContext(&Context{}).
		WithAction("apply", applyTransition).
		WithGuard("canTransition", guardCanTransition).
		WithGuard("withinRetryBudget", guardRetryBudget).
		State(stateCreated).
		On(EventSubmit).Target(statePendingApproval).Guard("canTransition").Do("apply").
		On(EventStart).Target(stateRunning).Guard("canTransition").Do("apply").
		On(EventCancel).Target(stateCancelled).Guard("canTransition").Do("apply").
		Done().
		State(statePendingApproval).
		On(EventApprove).Target(stateApproved).Guard("canTransition").Do("apply").
		On(EventReject).Target(stateRejected).Guard("canTransition").Do("apply").
		On(EventCancel).Target(stateCancelled).Guard("canTransition").Do("apply").
		Done().
		State(stateApproved).
		On(EventStart).Target(stateRunning).Guard("canTransition").Do("apply").
		On(EventCancel).Target(stateCancelled).Guard("canTransition").Do("apply").
		Done().
		State(stateRunning).
		On(EventComplete).Target(stateCompleted).Guard("canTransition").Do("apply").
		On(EventFail).Target(stateFailed).Guard("canTransition").Do("apply").
		On(EventCancel).Target(stateCancelled).Guard("canTransition").Do("apply").
		Done().
		State(stateFailed).
		On(EventRetry).Target(stateRunning).Guard("withinRetryBudget").Do("apply").
		On(EventCancel).Target(stateCancelled).Guard("canTransition").Do("apply").
		Done().
		State(stateCompleted).
		Final().
		Done().
		State(stateRejected).
		Final().
		Done().
		State(stateCancelled).
		Final().
		Done().
		Build()
}

// EventForTransition maps a status change to its lifecycle event. The same
// target status maps to different events depending on where the task stands:
// a failed task re-enters Running through RETRY, everything else through START.
func EventForTransition(from, to task.Status) statekit.EventType {
	switch to {
	case task.StatusPendingApproval:
		return EventSubmit
	case task.StatusApproved:
		return EventApprove
	case task.StatusRejected:
		return EventReject
	case task.StatusRunning:
		if from == task.StatusFailed {
			return EventRetry
		}
		return EventStart
	case task.StatusCompleted:
		return EventComplete
	case task.StatusFailed:
		return EventFail
	case task.StatusCancelled:
		return EventCancel
	default:
		return statekit.EventType(to)
	}
}
