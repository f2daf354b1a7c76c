package gateway

import (
	"context"
	"encoding/json"
	"time"

	"github.com/dbbuilder/sqlmcp-saas-sub003/domain/audit"
	"github.com/dbbuilder/sqlmcp-saas-sub003/domain/backend"
	"github.com/dbbuilder/sqlmcp-saas-sub003/domain/fault"
	"github.com/dbbuilder/sqlmcp-saas-sub003/domain/task"
	"github.com/dbbuilder/sqlmcp-saas-sub003/domain/tool"
	"github.com/dbbuilder/sqlmcp-saas-sub003/domain/validation"
	"github.com/dbbuilder/sqlmcp-saas-sub003/infrastructure/workflow"
)

// taskView is the wire summary of one task.
type taskView struct {
	TaskID           string    `json:"task_id"`
	Status           string    `json:"status"`
	Type             string    `json:"type"`
	Database         string    `json:"database"`
	CreatedBy        string    `json:"created_by"`
	RequiresApproval bool      `json:"requires_approval"`
	RetryCount       int       `json:"retry_count"`
	MaxRetries       int       `json:"max_retries"`
	LastError        string    `json:"last_error,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func viewOf(t *task.Task) taskView {
	return taskView{
		TaskID:           t.ID,
		Status:           string(t.Status),
		Type:             string(t.Type),
		Database:         t.DatabaseName,
		CreatedBy:        t.CreatedBy,
		RequiresApproval: t.RequiresApproval,
		RetryCount:       t.RetryCount,
		MaxRetries:       t.MaxRetries,
		LastError:        t.LastError,
		CreatedAt:        t.CreatedAt,
		UpdatedAt:        t.UpdatedAt,
	}
}

// taskRunView pairs a settled task with its execution result.
type taskRunView struct {
	Task   taskView     `json:"task"`
	Result *execPayload `json:"result,omitempty"`
	Note   string       `json:"note,omitempty"`
}

func taskPayload(t *task.Task, warnings []string, note string) (tool.Result, error) {
	out, err := json.Marshal(taskRunView{Task: viewOf(t), Note: note})
	if err != nil {
		return tool.Result{}, fault.Wrap(fault.KindInternal, err, "encode result")
	}
	return tool.NewResult(out).WithWarnings(warnings...), nil
}

// deferToTask parks an operation behind the approval workflow and reports
// the pending task to the caller.
func (g *Gateway) deferToTask(ctx context.Context, typ task.Type, database, user, statement string, procedure bool, params []backend.Parameter, warnings []string) (tool.Result, error) {
	t, err := g.workflow.Create(ctx, workflow.Spec{
		Type:             typ,
		DatabaseName:     database,
		CreatedBy:        user,
		Statement:        statement,
		Procedure:        procedure,
		Parameters:       params,
		RequiresApproval: true,
	})
	if err != nil {
		return tool.Result{}, err
	}

	submitted, err := g.workflow.Submit(ctx, t.ID, user)
	if err != nil {
		return tool.Result{}, err
	}
	g.metrics.RecordTaskTransition(ctx, string(task.StatusCreated), string(submitted.Status), t.ID)

	return taskPayload(submitted, warnings, "operation requires approval before it runs")
}

// runTask executes a task already in the running status and settles it to
// completed or failed. Failures keep the task retryable and surface the
// classified fault with the task id attached.
func (g *Gateway) runTask(ctx context.Context, t *task.Task, user string) (tool.Result, error) {
	g.metrics.IncrementActiveTasks(ctx)
	defer g.metrics.DecrementActiveTasks(ctx)

	be, database, err := g.resolve(t.DatabaseName)
	if err != nil {
		if _, ferr := g.workflow.Fail(ctx, t.ID, user, err.Error()); ferr != nil {
			return tool.Result{}, ferr
		}
		g.metrics.RecordTaskTransition(ctx, string(task.StatusRunning), string(task.StatusFailed), t.ID)
		return tool.Result{}, err
	}

	entityType, action := audit.EntityStatement, audit.ActionStatementExecuted
	entityID, statement := statementID(t.Statement), t.Statement
	if t.Procedure {
		entityType, action = audit.EntityProcedure, audit.ActionProcedureExecuted
		entityID, statement = t.Statement, callStatement(t.Statement)
	}

	start := time.Now()
	res, err := g.execute(ctx, be, database, user, entityType, entityID, action, statement, t.Parameters)
	if err != nil {
		if _, ferr := g.workflow.Fail(ctx, t.ID, user, err.Error()); ferr != nil {
			return tool.Result{}, ferr
		}
		g.metrics.RecordTaskTransition(ctx, string(task.StatusRunning), string(task.StatusFailed), t.ID)
		return tool.Result{}, fault.From(err).WithData("task_id", t.ID)
	}

	completed, err := g.workflow.Complete(ctx, t.ID, user, task.Result{
		Timestamp:    time.Now().UTC(),
		RowsAffected: res.RowsAffected,
		Message:      "execution completed",
	})
	if err != nil {
		return tool.Result{}, err
	}
	g.metrics.RecordTaskTransition(ctx, string(task.StatusRunning), string(completed.Status), t.ID)

	out, err := json.Marshal(taskRunView{
		Task: viewOf(completed),
		Result: &execPayload{
			Database:     database,
			Columns:      res.Columns,
			Rows:         res.Rows,
			RowCount:     len(res.Rows),
			RowsAffected: res.RowsAffected,
			HasResultSet: res.HasResultSet,
		},
	})
	if err != nil {
		return tool.Result{}, fault.Wrap(fault.KindInternal, err, "encode result")
	}
	return tool.NewResult(out).WithDuration(time.Since(start)), nil
}

// migrateArgs carry a schema-change statement.
type migrateArgs struct {
	Statement string `json:"statement"`
	Database  string `json:"database,omitempty"`
	User      string `json:"user,omitempty"`
}

// Migrate defers a schema-change statement into the approval workflow.
// Migrations never run directly, whatever their leading verb, but blocked
// vocabulary still rejects them outright.
func (g *Gateway) Migrate(ctx context.Context, raw json.RawMessage) (tool.Result, error) {
	var args migrateArgs
	if err := decode(raw, &args); err != nil {
		return tool.Result{}, err
	}
	_, database, err := g.resolve(args.Database)
	if err != nil {
		return tool.Result{}, err
	}
	user := g.user(ctx, args.User)

	_, stmtRes := validation.Classify(args.Statement, g.policy)
	warnings, err := g.gatekeep(ctx, database, user, audit.EntityStatement, statementID(args.Statement), stmtRes, validation.Result{})
	if err != nil {
		return tool.Result{}, err
	}
	g.metrics.RecordValidation(ctx, database, validation.RequiresApproval.String())

	return g.deferToTask(ctx, task.TypeSchemaChange, database, user, args.Statement, false, nil, warnings)
}

// taskRefArgs identify a task and the acting operator.
type taskRefArgs struct {
	TaskID string `json:"task_id"`
	User   string `json:"user,omitempty"`
	Note   string `json:"note,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// TaskStatus returns the full task record, progress history included.
func (g *Gateway) TaskStatus(ctx context.Context, raw json.RawMessage) (tool.Result, error) {
	var args taskRefArgs
	if err := decode(raw, &args); err != nil {
		return tool.Result{}, err
	}
	t, err := g.workflow.Get(ctx, args.TaskID)
	if err != nil {
		return tool.Result{}, err
	}
	out, err := json.Marshal(t)
	if err != nil {
		return tool.Result{}, fault.Wrap(fault.KindInternal, err, "encode result")
	}
	return tool.NewResult(out), nil
}

// taskListArgs filter the task inventory.
type taskListArgs struct {
	Status    string `json:"status,omitempty"`
	Type      string `json:"type,omitempty"`
	Database  string `json:"database,omitempty"`
	CreatedBy string `json:"created_by,omitempty"`
	Limit     int    `json:"limit,omitempty"`
}

// TaskList returns task summaries matching the filter, newest first.
func (g *Gateway) TaskList(ctx context.Context, raw json.RawMessage) (tool.Result, error) {
	var args taskListArgs
	if err := decode(raw, &args); err != nil {
		return tool.Result{}, err
	}
	tasks, err := g.workflow.List(ctx, task.Filter{
		Status:       task.Status(args.Status),
		Type:         task.Type(args.Type),
		DatabaseName: args.Database,
		CreatedBy:    args.CreatedBy,
		Limit:        args.Limit,
	})
	if err != nil {
		return tool.Result{}, err
	}

	views := make([]taskView, 0, len(tasks))
	for _, t := range tasks {
		views = append(views, viewOf(t))
	}
	out, err := json.Marshal(struct {
		Tasks []taskView `json:"tasks"`
		Count int        `json:"count"`
	}{Tasks: views, Count: len(views)})
	if err != nil {
		return tool.Result{}, fault.Wrap(fault.KindInternal, err, "encode result")
	}
	return tool.NewResult(out), nil
}

// TaskApprove clears a pending task and immediately runs the deferred
// operation. The response carries both the settled task and, on success,
// the execution result.
func (g *Gateway) TaskApprove(ctx context.Context, raw json.RawMessage) (tool.Result, error) {
	var args taskRefArgs
	if err := decode(raw, &args); err != nil {
		return tool.Result{}, err
	}
	user := g.user(ctx, args.User)

	approved, err := g.workflow.Approve(ctx, args.TaskID, user, args.Note)
	if err != nil {
		return tool.Result{}, err
	}
	g.metrics.RecordTaskTransition(ctx, string(task.StatusPendingApproval), string(approved.Status), approved.ID)

	started, err := g.workflow.Start(ctx, approved.ID, user)
	if err != nil {
		return tool.Result{}, err
	}
	g.metrics.RecordTaskTransition(ctx, string(task.StatusApproved), string(started.Status), started.ID)

	return g.runTask(ctx, started, user)
}

// TaskReject denies a pending task. Rejected tasks are terminal.
func (g *Gateway) TaskReject(ctx context.Context, raw json.RawMessage) (tool.Result, error) {
	var args taskRefArgs
	if err := decode(raw, &args); err != nil {
		return tool.Result{}, err
	}
	user := g.user(ctx, args.User)

	rejected, err := g.workflow.Reject(ctx, args.TaskID, user, args.Reason)
	if err != nil {
		return tool.Result{}, err
	}
	g.metrics.RecordTaskTransition(ctx, string(task.StatusPendingApproval), string(rejected.Status), rejected.ID)

	return taskPayload(rejected, nil, "task rejected")
}

// TaskCancel abandons a task from any non-terminal status.
func (g *Gateway) TaskCancel(ctx context.Context, raw json.RawMessage) (tool.Result, error) {
	var args taskRefArgs
	if err := decode(raw, &args); err != nil {
		return tool.Result{}, err
	}
	user := g.user(ctx, args.User)

	before, err := g.workflow.Get(ctx, args.TaskID)
	if err != nil {
		return tool.Result{}, err
	}
	cancelled, err := g.workflow.Cancel(ctx, args.TaskID, user, args.Reason)
	if err != nil {
		return tool.Result{}, err
	}
	g.metrics.RecordTaskTransition(ctx, string(before.Status), string(cancelled.Status), cancelled.ID)

	return taskPayload(cancelled, nil, "task cancelled")
}

// TaskRetry re-runs a failed task, consuming one unit of its retry budget.
func (g *Gateway) TaskRetry(ctx context.Context, raw json.RawMessage) (tool.Result, error) {
	var args taskRefArgs
	if err := decode(raw, &args); err != nil {
		return tool.Result{}, err
	}
	user := g.user(ctx, args.User)

	started, err := g.workflow.Retry(ctx, args.TaskID, user)
	if err != nil {
		return tool.Result{}, err
	}
	g.metrics.RecordTaskTransition(ctx, string(task.StatusFailed), string(started.Status), started.ID)
	g.metrics.RecordRetry(ctx, started.DatabaseName, started.RetryCount)

	return g.runTask(ctx, started, user)
}
