package workflow

import (
	"testing"

	"github.com/felixgeelhaar/statekit"

	"github.com/dbbuilder/sqlmcp-saas-sub003/domain/task"
)

func TestNewTaskMachine(t *testing.T) {
	t.Parallel()

	machine, err := NewTaskMachine()
	if err != nil {
		t.Fatalf("NewTaskMachine() error = %v", err)
	}
	if machine == nil {
		t.Fatal("NewTaskMachine() returned nil machine")
	}
}

func TestEventForTransition(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		from task.Status
		to   task.Status
		want statekit.EventType
	}{
		{"submit", task.StatusCreated, task.StatusPendingApproval, EventSubmit},
		{"approve", task.StatusPendingApproval, task.StatusApproved, EventApprove},
		{"reject", task.StatusPendingApproval, task.StatusRejected, EventReject},
		{"direct start", task.StatusCreated, task.StatusRunning, EventStart},
		{"approved start", task.StatusApproved, task.StatusRunning, EventStart},
		{"retry", task.StatusFailed, task.StatusRunning, EventRetry},
		{"complete", task.StatusRunning, task.StatusCompleted, EventComplete},
		{"fail", task.StatusRunning, task.StatusFailed, EventFail},
		{"cancel", task.StatusRunning, task.StatusCancelled, EventCancel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := EventForTransition(tt.from, tt.to)
			if got != tt.want {
				t.Errorf("EventForTransition(%s, %s) = %s, want %s", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func newInterpreterAt(t *testing.T, status task.Status) (*Interpreter, *task.Task) {
	t.Helper()

	machine, err := NewTaskMachine()
	if err != nil {
		t.Fatalf("NewTaskMachine() error = %v", err)
	}

	tk := task.New("task-1", task.TypeCommand, "sales", "alice")
	tk.Status = status

	interp := NewInterpreter(machine, tk)
	if err := interp.Resume(); err != nil {
		t.Fatalf("Resume() error = %v", err)
	}
	return interp, tk
}

func TestInterpreter_ApprovalPath(t *testing.T) {
	t.Parallel()

	interp, tk := newInterpreterAt(t, task.StatusCreated)

	steps := []struct {
		to      task.Status
		message string
	}{
		{task.StatusPendingApproval, "queued for approval"},
		{task.StatusApproved, "approved"},
		{task.StatusRunning, "execution started"},
		{task.StatusCompleted, "execution completed"},
	}

	for _, step := range steps {
		if err := interp.Fire(step.to, step.message); err != nil {
			t.Fatalf("Fire(%s) error = %v", step.to, err)
		}
		if tk.Status != step.to {
			t.Errorf("task status = %s, want %s", tk.Status, step.to)
		}
		if interp.State() != step.to {
			t.Errorf("machine state = %s, want %s", interp.State(), step.to)
		}
	}

	if !interp.IsTerminal() {
		t.Error("completed task should be terminal")
	}
	if len(tk.Progress) != len(steps) {
		t.Errorf("progress entries = %d, want %d", len(tk.Progress), len(steps))
	}
	if last := tk.Progress[len(tk.Progress)-1]; last.PercentComplete != 100 {
		t.Errorf("final progress percent = %d, want 100", last.PercentComplete)
	}
}

func TestInterpreter_DirectExecution(t *testing.T) {
	t.Parallel()

	interp, tk := newInterpreterAt(t, task.StatusCreated)

	if err := interp.Fire(task.StatusRunning, "execution started"); err != nil {
		t.Fatalf("Fire(running) error = %v", err)
	}
	if tk.Status != task.StatusRunning {
		t.Errorf("task status = %s, want running", tk.Status)
	}
	if err := interp.Fire(task.StatusCompleted, "done"); err != nil {
		t.Fatalf("Fire(completed) error = %v", err)
	}
	if !interp.IsTerminal() {
		t.Error("completed task should be terminal")
	}
}

func TestInterpreter_RejectIsTerminal(t *testing.T) {
	t.Parallel()

	interp, tk := newInterpreterAt(t, task.StatusPendingApproval)

	if err := interp.Fire(task.StatusRejected, "too risky"); err != nil {
		t.Fatalf("Fire(rejected) error = %v", err)
	}
	if !interp.IsTerminal() {
		t.Error("rejected task should be terminal")
	}

	err := interp.Fire(task.StatusApproved, "late approval")
	if err == nil {
		t.Fatal("Fire() on terminal task succeeded")
	}
	if tk.Status != task.StatusRejected {
		t.Errorf("task status = %s after rejected Fire, want rejected", tk.Status)
	}
}

func TestInterpreter_InvalidTransition(t *testing.T) {
	t.Parallel()

	interp, tk := newInterpreterAt(t, task.StatusCreated)

	err := interp.Fire(task.StatusApproved, "skip the queue")
	if err == nil {
		t.Fatal("Fire(approved) from created succeeded")
	}
	if tk.Status != task.StatusCreated {
		t.Errorf("task status = %s, want created", tk.Status)
	}
	if interp.State() != task.StatusCreated {
		t.Errorf("machine state = %s, want created", interp.State())
	}
}

func TestInterpreter_RetryConsumesBudget(t *testing.T) {
	t.Parallel()

	interp, tk := newInterpreterAt(t, task.StatusFailed)
	tk.MaxRetries = 2

	if err := interp.Fire(task.StatusRunning, "retrying"); err != nil {
		t.Fatalf("Fire(running) error = %v", err)
	}
	if tk.RetryCount != 1 {
		t.Errorf("RetryCount = %d, want 1", tk.RetryCount)
	}
	if tk.Status != task.StatusRunning {
		t.Errorf("task status = %s, want running", tk.Status)
	}
}

func TestInterpreter_RetryBudgetExhausted(t *testing.T) {
	t.Parallel()

	interp, tk := newInterpreterAt(t, task.StatusFailed)
	tk.MaxRetries = 1
	tk.RetryCount = 1

	err := interp.Fire(task.StatusRunning, "one more")
	if err == nil {
		t.Fatal("Fire() past the retry budget succeeded")
	}
	if tk.Status != task.StatusFailed {
		t.Errorf("task status = %s, want failed", tk.Status)
	}
}

func TestInterpreter_CancelFromEveryActiveStatus(t *testing.T) {
	t.Parallel()

	for _, status := range []task.Status{
		task.StatusCreated,
		task.StatusPendingApproval,
		task.StatusApproved,
		task.StatusRunning,
		task.StatusFailed,
	} {
		t.Run(string(status), func(t *testing.T) {
			t.Parallel()

			interp, tk := newInterpreterAt(t, status)
			if err := interp.Fire(task.StatusCancelled, "abandoned"); err != nil {
				t.Fatalf("Fire(cancelled) from %s error = %v", status, err)
			}
			if tk.Status != task.StatusCancelled {
				t.Errorf("task status = %s, want cancelled", tk.Status)
			}
			if !interp.IsTerminal() {
				t.Error("cancelled task should be terminal")
			}
		})
	}
}
