package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/felixgeelhaar/statekit"
	"github.com/google/uuid"

	"github.com/dbbuilder/sqlmcp-saas-sub003/domain/audit"
	"github.com/dbbuilder/sqlmcp-saas-sub003/domain/backend"
	"github.com/dbbuilder/sqlmcp-saas-sub003/domain/fault"
	"github.com/dbbuilder/sqlmcp-saas-sub003/domain/task"
	"github.com/dbbuilder/sqlmcp-saas-sub003/infrastructure/logging"
)

// Config tunes the manager.
type Config struct {
	// MaxRetries is the retry budget stamped on new tasks.
	MaxRetries int
}

// Manager owns every task lifecycle change. Transitions for the same task
// serialize on a per-task mutex inside the process; the store's version
// check settles races with other writers, and the first committer wins.
type Manager struct {
	machine    *statekit.MachineConfig[*Context]
	store      task.Store
	trail      audit.Trail
	maxRetries int

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// Spec describes a task to create.
type Spec struct {
	Type             task.Type
	DatabaseName     string
	CreatedBy        string
	Statement        string
	Procedure        bool
	Parameters       []backend.Parameter
	RequiresApproval bool
}

// NewManager builds the shared statechart once and wires the stores.
func NewManager(store task.Store, trail audit.Trail, cfg Config) (*Manager, error) {
	machine, err := NewTaskMachine()
	if err != nil {
		return nil, fmt.Errorf("build task machine: %w", err)
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = task.DefaultMaxRetries
	}
	return &Manager{
		machine:    machine,
		store:      store,
		trail:      trail,
		maxRetries: cfg.MaxRetries,
		locks:      make(map[string]*sync.Mutex),
	}, nil
}

// Create persists a new task in the Created status and audits it. The task
// is not routed anywhere yet; the caller decides between Submit and Start
// based on the operation's classification.
func (m *Manager) Create(ctx context.Context, spec Spec) (*task.Task, error) {
	if spec.DatabaseName == "" {
		return nil, fault.New(fault.KindValidation, "task requires a database name")
	}

	t := task.New(uuid.NewString(), spec.Type, spec.DatabaseName, spec.CreatedBy)
	t.RequiresApproval = spec.RequiresApproval
	t.Statement = spec.Statement
	t.Procedure = spec.Procedure
	t.Parameters = spec.Parameters
	t.MaxRetries = m.maxRetries
	t.AddProgress(time.Now().UTC(), "task created", 0)

	if err := m.store.Create(ctx, t); err != nil {
		return nil, fault.Wrap(fault.KindInternal, err, "persist new task")
	}

	if err := m.record(ctx, t, audit.ActionTaskCreated, spec.CreatedBy,
		fmt.Sprintf("%s task created for database %s", spec.Type, spec.DatabaseName),
		true, audit.SeverityInfo); err != nil {
		return nil, err
	}

	logging.Info().
		Add(logging.TaskID(t.ID)).
		Add(logging.Database(t.DatabaseName)).
		Add(logging.User(spec.CreatedBy)).
		Add(logging.Str("task_type", string(spec.Type))).
		Add(logging.Bool("requires_approval", spec.RequiresApproval)).
		Msg("task created")

	return t, nil
}

// Submit routes a created task into the approval queue.
func (m *Manager) Submit(ctx context.Context, id, actor string) (*task.Task, error) {
	return m.transition(ctx, id, task.StatusPendingApproval, actor, "queued for approval", nil)
}

// Approve clears a pending task to run. The note, when present, becomes the
// progress message.
func (m *Manager) Approve(ctx context.Context, id, actor, note string) (*task.Task, error) {
	msg := "approved"
	if note != "" {
		msg = note
	}
	return m.transition(ctx, id, task.StatusApproved, actor, msg, nil)
}

// Reject denies a pending task. Rejected is terminal.
func (m *Manager) Reject(ctx context.Context, id, actor, reason string) (*task.Task, error) {
	msg := "rejected"
	if reason != "" {
		msg = reason
	}
	return m.transition(ctx, id, task.StatusRejected, actor, msg, nil)
}

// Start moves a created or approved task into Running.
func (m *Manager) Start(ctx context.Context, id, actor string) (*task.Task, error) {
	return m.transition(ctx, id, task.StatusRunning, actor, "execution started", nil)
}

// Complete records the execution outcome and finishes the task.
func (m *Manager) Complete(ctx context.Context, id, actor string, result task.Result) (*task.Task, error) {
	msg := "execution completed"
	if result.Message != "" {
		msg = result.Message
	}
	return m.transition(ctx, id, task.StatusCompleted, actor, msg, func(t *task.Task) {
		t.AddResult(result)
		t.LastError = ""
	})
}

// Fail records the failure cause and leaves the task retryable.
func (m *Manager) Fail(ctx context.Context, id, actor, cause string) (*task.Task, error) {
	return m.transition(ctx, id, task.StatusFailed, actor, "execution failed: "+cause, func(t *task.Task) {
		t.LastError = cause
	})
}

// Cancel abandons a task from any non-terminal status.
func (m *Manager) Cancel(ctx context.Context, id, actor, reason string) (*task.Task, error) {
	msg := "cancelled"
	if reason != "" {
		msg = reason
	}
	return m.transition(ctx, id, task.StatusCancelled, actor, msg, nil)
}

// Retry moves a failed task back into Running, consuming one unit of retry
// budget. An exhausted budget is a validation failure, not a stale view.
func (m *Manager) Retry(ctx context.Context, id, actor string) (*task.Task, error) {
	return m.transition(ctx, id, task.StatusRunning, actor, "retrying after failure", nil)
}

// Get loads a task by id.
func (m *Manager) Get(ctx context.Context, id string) (*task.Task, error) {
	t, err := m.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, task.ErrNotFound) {
			return nil, fault.Newf(fault.KindProtocol, "task %s not found", id)
		}
		return nil, fault.Wrap(fault.KindInternal, err, "load task")
	}
	return t, nil
}

// List returns tasks matching the filter, newest first.
func (m *Manager) List(ctx context.Context, filter task.Filter) ([]*task.Task, error) {
	tasks, err := m.store.List(ctx, filter)
	if err != nil {
		return nil, fault.Wrap(fault.KindInternal, err, "list tasks")
	}
	return tasks, nil
}

// transition is the single path every status change takes: lock, load,
// resume the chart, fire, persist with the loaded version, audit.
func (m *Manager) transition(ctx context.Context, id string, to task.Status, actor, message string, mutate func(*task.Task)) (*task.Task, error) {
	unlock := m.lockTask(id)
	defer unlock()

	t, err := m.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, task.ErrNotFound) {
			return nil, fault.Newf(fault.KindProtocol, "task %s not found", id)
		}
		return nil, fault.Wrap(fault.KindInternal, err, "load task")
	}
	from := t.Status

	interp := NewInterpreter(m.machine, t)
	if err := interp.Resume(); err != nil {
		return nil, fault.Wrap(fault.KindInternal, err, "resume task workflow")
	}
	defer interp.Stop()

	if mutate != nil {
		mutate(t)
	}

	if err := interp.Fire(to, message); err != nil {
		switch {
		case errors.Is(err, task.ErrRetryBudgetExhausted):
			return nil, fault.Wrap(fault.KindValidation, err,
				fmt.Sprintf("task %s exhausted its retry budget", id)).
				WithData("task_id", id)
		default:
			return nil, fault.Wrap(fault.KindStaleTaskState, err,
				fmt.Sprintf("task %s is %s, cannot move to %s", id, from, to)).
				WithData("task_id", id).
				WithData("status", string(from))
		}
	}

	if err := m.store.Update(ctx, t, t.Version); err != nil {
		if errors.Is(err, task.ErrVersionConflict) {
			return nil, fault.Wrap(fault.KindStaleTaskState, err,
				fmt.Sprintf("task %s changed underneath this request", id)).
				WithData("task_id", id)
		}
		return nil, fault.Wrap(fault.KindInternal, err, "persist task transition")
	}

	success, severity := outcomeFor(to)
	if err := m.record(ctx, t, actionFor(from, to), actor, message, success, severity); err != nil {
		return nil, err
	}

	logging.Info().
		Add(logging.TaskID(t.ID)).
		Add(logging.FromStatus(from)).
		Add(logging.ToStatus(to)).
		Add(logging.User(actor)).
		Add(logging.CorrelationID(audit.CorrelationIDFromContext(ctx))).
		Msg("task transitioned")

	return t, nil
}

// record writes the audit event. Recording happens before the caller is
// acknowledged: a trail failure fails the operation.
func (m *Manager) record(ctx context.Context, t *task.Task, action, actor, detail string, success bool, severity audit.Severity) error {
	event := audit.NewEvent(action, audit.EntityTask, t.ID)
	event.UserID = actor
	event.Success = success
	event.Severity = severity
	event.Detail = detail
	event.CorrelationID = audit.CorrelationIDFromContext(ctx)

	if err := m.trail.Record(ctx, &event); err != nil {
		return fault.Wrap(fault.KindInternal, err, "record audit event")
	}
	return nil
}

// lockTask serializes transitions for one task id inside this process.
func (m *Manager) lockTask(id string) func() {
	m.mu.Lock()
	l, ok := m.locks[id]
	if !ok {
		l = &sync.Mutex{}
		m.locks[id] = l
	}
	m.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// actionFor maps a transition to its audit action. Failed back to Running
// is a retry, everything else entering Running is a start.
func actionFor(from, to task.Status) string {
	switch to {
	case task.StatusPendingApproval:
		return audit.ActionTaskSubmitted
	case task.StatusApproved:
		return audit.ActionTaskApproved
	case task.StatusRejected:
		return audit.ActionTaskRejected
	case task.StatusRunning:
		if from == task.StatusFailed {
			return audit.ActionTaskRetried
		}
		return audit.ActionTaskStarted
	case task.StatusCompleted:
		return audit.ActionTaskCompleted
	case task.StatusFailed:
		return audit.ActionTaskFailed
	case task.StatusCancelled:
		return audit.ActionTaskCancelled
	default:
		return "task_transition"
	}
}

// outcomeFor grades the audit record for a target status.
func outcomeFor(to task.Status) (bool, audit.Severity) {
	switch to {
	case task.StatusFailed:
		return false, audit.SeverityError
	case task.StatusRejected:
		return true, audit.SeverityWarning
	default:
		return true, audit.SeverityInfo
	}
}
