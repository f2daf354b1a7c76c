package workflow

import (
	"fmt"
	"time"

	"github.com/felixgeelhaar/statekit"

	"github.com/dbbuilder/sqlmcp-saas-sub003/domain/task"
)

// Interpreter binds one task to the statechart for the duration of a
// single transition request.
type Interpreter struct {
	interp *statekit.Interpreter[*Context]
	ctx    *Context
}

// NewInterpreter creates an interpreter over the shared machine config for
// the given task.
func NewInterpreter(machine *statekit.MachineConfig[*Context], t *task.Task) *Interpreter {
	ctx := &Context{Task: t}
	interp := statekit.NewInterpreter(machine)
	interp.UpdateContext(func(c **Context) {
		*c = ctx
	})
	return &Interpreter{
		interp: interp,
		ctx:    ctx,
	}
}

// Start enters the initial Created state. Used for freshly built tasks.
func (i *Interpreter) Start() {
	i.interp.Start()
}

// Stop releases the interpreter.
func (i *Interpreter) Stop() {
	i.interp.Stop()
}

// Resume restores the statechart at the task's persisted status so a loaded
// task continues exactly where it stopped.
func (i *Interpreter) Resume() error {
	snapshot := statekit.Snapshot[*Context]{
		MachineID:    machineID,
		CurrentState: statekit.StateID(i.ctx.Task.Status),
		Context:      i.ctx,
		CreatedAt:    time.Now(),
	}
	if err := i.interp.Restore(snapshot); err != nil {
		return fmt.Errorf("restore task %s at %s: %w", i.ctx.Task.ID, i.ctx.Task.Status, err)
	}
	return nil
}

// Fire attempts the status change. The aggregate is validated before the
// event is sent: statekit reports nothing back for a rejected event, so the
// legality checks run up front and the chart enforces the same topology.
func (i *Interpreter) Fire(to task.Status, message string) error {
	t := i.ctx.Task
	from := t.Status

	if from.IsTerminal() {
		return fmt.Errorf("%w: %s", task.ErrTerminalState, from)
	}
	if !from.CanTransitionTo(to) {
		return fmt.Errorf("%w: %s to %s", task.ErrInvalidTransition, from, to)
	}
	if from == task.StatusFailed && to == task.StatusRunning && !t.CanRetry() {
		return fmt.Errorf("%w: %d of %d retries used", task.ErrRetryBudgetExhausted, t.RetryCount, t.MaxRetries)
	}

	i.ctx.Err = nil
	i.interp.Send(statekit.Event{
		Type:    EventForTransition(from, to),
		Payload: TransitionPayload{To: to, Message: message},
	})
	if i.ctx.Err != nil {
		return i.ctx.Err
	}
	if got := i.State(); got != to {
		return fmt.Errorf("%w: %s to %s", task.ErrInvalidTransition, from, to)
	}
	return nil
}

// State returns the chart's current status.
func (i *Interpreter) State() task.Status {
	return task.Status(i.interp.State().Value)
}

// IsTerminal reports whether the chart reached a final state.
func (i *Interpreter) IsTerminal() bool {
	return i.interp.Done()
}

// Task returns the bound task.
func (i *Interpreter) Task() *task.Task {
	return i.ctx.Task
}
