package gateway

import (
	"encoding/json"
	"fmt"

	"github.com/dbbuilder/sqlmcp-saas-sub003/domain/tool"
)

// parameterItems is the schema for one entry in a parameters array.
func parameterItems() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"name": {"type": "string", "description": "Parameter name, with or without the @ prefix"},
			"value": {"description": "Parameter value"},
			"type": {"type": "string", "description": "Declared data type, when known"},
			"sensitive": {"type": "boolean", "description": "Redact this value from logs and audit detail"}
		},
		"required": ["name"]
	}`)
}

// Tools returns the gateway catalog. The set is assembled once at startup;
// handlers close over the gateway itself.
func (g *Gateway) Tools() []tool.Tool {
	databaseProp := tool.StringProperty("Target database name; the configured default applies when omitted")
	userProp := tool.StringProperty("Caller identity charged in the audit trail")
	taskIDProp := tool.StringProperty("Task identifier returned when the operation was deferred")

	return []tool.Tool{
		tool.NewBuilder("query").
			WithDescription("Run a read-only SQL statement. Only SELECT and WITH statements are accepted regardless of the configured policy mode.").
			WithInputSchema(tool.ObjectSchema(map[string]json.RawMessage{
				"statement":  tool.StringProperty("SQL text to execute"),
				"database":   databaseProp,
				"user":       userProp,
				"parameters": tool.ArrayProperty("Named statement parameters", parameterItems()),
			}, []string{"statement"})).
			ReadOnly().
			WithHandler(g.Query).
			MustBuild(),

		tool.NewBuilder("execute").
			WithDescription("Run a mutating SQL statement under the full safety policy. Statements in the approval vocabulary are deferred into a task instead of executing.").
			WithInputSchema(tool.ObjectSchema(map[string]json.RawMessage{
				"statement":  tool.StringProperty("SQL text to execute"),
				"database":   databaseProp,
				"user":       userProp,
				"parameters": tool.ArrayProperty("Named statement parameters", parameterItems()),
			}, []string{"statement"})).
			WithRiskLevel(tool.RiskMedium).
			WithHandler(g.Execute).
			MustBuild(),

		tool.NewBuilder("schema").
			WithDescription("List catalog objects (tables, views, procedures) through the database's metadata surface.").
			WithInputSchema(tool.ObjectSchema(map[string]json.RawMessage{
				"kind":     tool.StringProperty("Object class: tables, views, procedures, or all (default)"),
				"database": databaseProp,
			}, nil)).
			ReadOnly().
			Idempotent().
			WithHandler(g.Schema).
			MustBuild(),

		tool.NewBuilder("analyze").
			WithDescription("Return row and column statistics for one table.").
			WithInputSchema(tool.ObjectSchema(map[string]json.RawMessage{
				"table":    tool.StringProperty("Table name to profile"),
				"database": databaseProp,
			}, []string{"table"})).
			ReadOnly().
			Idempotent().
			WithHandler(g.Analyze).
			MustBuild(),

		tool.NewBuilder("procedure").
			WithDescription("Call a stored procedure after validating the parameters against its cached contract. Elevated and critical procedures are deferred for approval.").
			WithInputSchema(tool.ObjectSchema(map[string]json.RawMessage{
				"name":       tool.StringProperty("Qualified procedure name, for example dbo.usp_GetCustomer"),
				"database":   databaseProp,
				"user":       userProp,
				"parameters": tool.ArrayProperty("Named procedure parameters", parameterItems()),
			}, []string{"name"})).
			WithRiskLevel(tool.RiskMedium).
			WithHandler(g.Procedure).
			MustBuild(),

		tool.NewBuilder("migrate").
			WithDescription("Queue a schema-change statement for operator approval. Migrations never run directly.").
			WithInputSchema(tool.ObjectSchema(map[string]json.RawMessage{
				"statement": tool.StringProperty("DDL text to queue"),
				"database":  databaseProp,
				"user":      userProp,
			}, []string{"statement"})).
			Destructive().
			WithHandler(g.Migrate).
			MustBuild(),

		tool.NewBuilder("task_status").
			WithDescription("Return one task with its full progress history and results.").
			WithInputSchema(tool.ObjectSchema(map[string]json.RawMessage{
				"task_id": taskIDProp,
			}, []string{"task_id"})).
			ReadOnly().
			Idempotent().
			WithHandler(g.TaskStatus).
			MustBuild(),

		tool.NewBuilder("task_list").
			WithDescription("List task summaries, newest first, optionally filtered.").
			WithInputSchema(tool.ObjectSchema(map[string]json.RawMessage{
				"status":     tool.StringProperty("Filter by status, for example pending_approval"),
				"type":       tool.StringProperty("Filter by task type, for example schema_change"),
				"database":   tool.StringProperty("Filter by database name"),
				"created_by": tool.StringProperty("Filter by creator"),
				"limit":      tool.IntegerProperty("Maximum number of tasks returned"),
			}, nil)).
			ReadOnly().
			Idempotent().
			WithHandler(g.TaskList).
			MustBuild(),

		tool.NewBuilder("task_approve").
			WithDescription("Approve a pending task and run the deferred operation immediately. The response carries the settled task and its result.").
			WithInputSchema(tool.ObjectSchema(map[string]json.RawMessage{
				"task_id": taskIDProp,
				"user":    userProp,
				"note":    tool.StringProperty("Approval note recorded in the task's progress history"),
			}, []string{"task_id"})).
			WithRiskLevel(tool.RiskHigh).
			WithHandler(g.TaskApprove).
			MustBuild(),

		tool.NewBuilder("task_reject").
			WithDescription("Deny a pending task. Rejection is terminal.").
			WithInputSchema(tool.ObjectSchema(map[string]json.RawMessage{
				"task_id": taskIDProp,
				"user":    userProp,
				"reason":  tool.StringProperty("Why the task was denied"),
			}, []string{"task_id"})).
			WithHandler(g.TaskReject).
			MustBuild(),

		tool.NewBuilder("task_cancel").
			WithDescription("Abandon a task from any non-terminal status.").
			WithInputSchema(tool.ObjectSchema(map[string]json.RawMessage{
				"task_id": taskIDProp,
				"user":    userProp,
				"reason":  tool.StringProperty("Why the task was abandoned"),
			}, []string{"task_id"})).
			WithHandler(g.TaskCancel).
			MustBuild(),

		tool.NewBuilder("task_retry").
			WithDescription("Re-run a failed task, consuming one unit of its retry budget.").
			WithInputSchema(tool.ObjectSchema(map[string]json.RawMessage{
				"task_id": taskIDProp,
				"user":    userProp,
			}, []string{"task_id"})).
			WithRiskLevel(tool.RiskMedium).
			WithHandler(g.TaskRetry).
			MustBuild(),

		tool.NewBuilder("audit_search").
			WithDescription("Page through the audit trail, newest first. Times are RFC 3339.").
			WithInputSchema(tool.ObjectSchema(map[string]json.RawMessage{
				"user_id":     tool.StringProperty("Filter by caller identity"),
				"entity_type": tool.StringProperty("Filter by entity type: statement, procedure, task, or audit"),
				"entity_id":   tool.StringProperty("Filter by entity identifier"),
				"action":      tool.StringProperty("Filter by audit action, for example statement_executed"),
				"from":        tool.StringProperty("Only events at or after this RFC 3339 timestamp"),
				"to":          tool.StringProperty("Only events at or before this RFC 3339 timestamp"),
				"severity":    tool.StringProperty("Filter by severity: info, warning, error, or critical"),
				"success":     tool.BooleanProperty("Filter by outcome"),
				"text":        tool.StringProperty("Substring match against action and detail"),
				"page":        tool.IntegerProperty("Page number, starting at 1"),
				"page_size":   tool.IntegerProperty("Events per page, capped at 500"),
			}, nil)).
			ReadOnly().
			Idempotent().
			WithHandler(g.AuditSearch).
			MustBuild(),

		tool.NewBuilder("audit_cleanup").
			WithDescription("Delete audit events older than a cutoff and report how many were removed.").
			WithInputSchema(tool.ObjectSchema(map[string]json.RawMessage{
				"older_than": tool.StringProperty("Retention window as a Go duration, for example 720h"),
				"before":     tool.StringProperty("Absolute RFC 3339 cutoff, alternative to older_than"),
				"user":       userProp,
			}, nil)).
			Destructive().
			WithHandler(g.AuditCleanup).
			MustBuild(),
	}
}

// Register installs every gateway tool into the registry.
func (g *Gateway) Register(reg tool.Registry) error {
	for _, t := range g.Tools() {
		if err := reg.Register(t); err != nil {
			return fmt.Errorf("register %s: %w", t.Name(), err)
		}
	}
	return nil
}
