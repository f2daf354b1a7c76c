package gateway

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/dbbuilder/sqlmcp-saas-sub003/domain/audit"
	"github.com/dbbuilder/sqlmcp-saas-sub003/domain/backend"
	"github.com/dbbuilder/sqlmcp-saas-sub003/domain/fault"
	"github.com/dbbuilder/sqlmcp-saas-sub003/domain/task"
	"github.com/dbbuilder/sqlmcp-saas-sub003/domain/tool"
	"github.com/dbbuilder/sqlmcp-saas-sub003/domain/validation"
)

// statementArgs are the arguments shared by the statement tools.
type statementArgs struct {
	Statement  string     `json:"statement"`
	Database   string     `json:"database,omitempty"`
	User       string     `json:"user,omitempty"`
	Parameters []paramArg `json:"parameters,omitempty"`
}

// paramArg is the wire shape of one named parameter.
type paramArg struct {
	Name      string `json:"name"`
	Value     any    `json:"value"`
	Type      string `json:"type,omitempty"`
	Sensitive bool   `json:"sensitive,omitempty"`
}

// parameters converts wire parameters to domain parameters. Names matching
// the policy's sensitive list are marked regardless of the caller's flag.
func (g *Gateway) parameters(args []paramArg) []backend.Parameter {
	if len(args) == 0 {
		return nil
	}
	out := make([]backend.Parameter, 0, len(args))
	for _, a := range args {
		out = append(out, backend.Parameter{
			Name:      a.Name,
			Value:     a.Value,
			DataType:  a.Type,
			Direction: backend.DirectionInput,
			Sensitive: a.Sensitive || g.policy.IsSensitiveParameter(a.Name),
		})
	}
	return out
}

// execPayload is the JSON body returned for executed statements.
type execPayload struct {
	Database     string   `json:"database"`
	Columns      []string `json:"columns,omitempty"`
	Rows         [][]any  `json:"rows,omitempty"`
	RowCount     int      `json:"row_count"`
	RowsAffected int64    `json:"rows_affected"`
	HasResultSet bool     `json:"has_result_set"`
}

func resultPayload(res *backend.ExecResult, database string, warnings []string, elapsed time.Duration) (tool.Result, error) {
	out, err := json.Marshal(execPayload{
		Database:     database,
		Columns:      res.Columns,
		Rows:         res.Rows,
		RowCount:     len(res.Rows),
		RowsAffected: res.RowsAffected,
		HasResultSet: res.HasResultSet,
	})
	if err != nil {
		return tool.Result{}, fault.Wrap(fault.KindInternal, err, "encode result")
	}
	return tool.NewResult(out).WithWarnings(warnings...).WithDuration(elapsed), nil
}

func decode(raw json.RawMessage, into any) error {
	if len(raw) == 0 {
		raw = json.RawMessage("{}")
	}
	if err := json.Unmarshal(raw, into); err != nil {
		return fault.Wrap(fault.KindProtocol, err, "malformed tool arguments")
	}
	return nil
}

// Query runs a read-only statement. The select-only variant of the policy
// applies regardless of the configured mode, so mutations through this
// tool are always rejected.
func (g *Gateway) Query(ctx context.Context, raw json.RawMessage) (tool.Result, error) {
	var args statementArgs
	if err := decode(raw, &args); err != nil {
		return tool.Result{}, err
	}
	be, database, err := g.resolve(args.Database)
	if err != nil {
		return tool.Result{}, err
	}
	user := g.user(ctx, args.User)
	params := g.parameters(args.Parameters)

	pol := g.policy.SelectOnly()
	stmtRes := validation.ValidateStatement(args.Statement, pol)
	paramRes := validation.ValidateParameters("", params, pol)
	warnings, err := g.gatekeep(ctx, database, user, audit.EntityStatement, statementID(args.Statement), stmtRes, paramRes)
	if err != nil {
		return tool.Result{}, err
	}
	g.metrics.RecordValidation(ctx, database, validation.Allowed.String())

	start := time.Now()
	res, err := g.execute(ctx, be, database, user, audit.EntityStatement,
		statementID(args.Statement), audit.ActionStatementExecuted, args.Statement, params)
	if err != nil {
		return tool.Result{}, err
	}
	return resultPayload(res, database, warnings, time.Since(start))
}

// Execute runs a mutating statement under the full policy. Statements in
// the approval vocabulary are deferred into a task instead of executing;
// the response then carries the pending task instead of rows.
func (g *Gateway) Execute(ctx context.Context, raw json.RawMessage) (tool.Result, error) {
	var args statementArgs
	if err := decode(raw, &args); err != nil {
		return tool.Result{}, err
	}
	be, database, err := g.resolve(args.Database)
	if err != nil {
		return tool.Result{}, err
	}
	user := g.user(ctx, args.User)
	params := g.parameters(args.Parameters)

	class, stmtRes := validation.Classify(args.Statement, g.policy)
	paramRes := validation.ValidateParameters("", params, g.policy)
	warnings, err := g.gatekeep(ctx, database, user, audit.EntityStatement, statementID(args.Statement), stmtRes, paramRes)
	if err != nil {
		return tool.Result{}, err
	}
	g.metrics.RecordValidation(ctx, database, class.String())

	if class == validation.RequiresApproval {
		return g.deferToTask(ctx, task.TypeCommand, database, user, args.Statement, false, params, warnings)
	}

	start := time.Now()
	res, err := g.execute(ctx, be, database, user, audit.EntityStatement,
		statementID(args.Statement), audit.ActionStatementExecuted, args.Statement, params)
	if err != nil {
		return tool.Result{}, err
	}
	return resultPayload(res, database, warnings, time.Since(start))
}

// schemaArgs select a class of catalog objects.
type schemaArgs struct {
	Kind     string `json:"kind,omitempty"`
	Database string `json:"database,omitempty"`
}

// schemaPayload is the JSON body returned by the schema tool.
type schemaPayload struct {
	Database string                 `json:"database"`
	Kind     string                 `json:"kind"`
	Objects  []backend.SchemaObject `json:"objects"`
	Count    int                    `json:"count"`
}

// Schema enumerates catalog objects through the backend's own metadata
// surface, so no raw system-table statement is ever validated or run.
func (g *Gateway) Schema(ctx context.Context, raw json.RawMessage) (tool.Result, error) {
	var args schemaArgs
	if err := decode(raw, &args); err != nil {
		return tool.Result{}, err
	}
	be, database, err := g.resolve(args.Database)
	if err != nil {
		return tool.Result{}, err
	}

	reader, ok := be.(backend.SchemaReader)
	if !ok {
		return tool.Result{}, fault.Newf(fault.KindValidation,
			"database %q cannot enumerate schema objects", database)
	}

	kind := backend.ObjectAll
	if args.Kind != "" {
		kind = backend.ObjectKind(strings.ToLower(args.Kind))
		switch kind {
		case backend.ObjectTables, backend.ObjectViews, backend.ObjectProcedures, backend.ObjectAll:
		default:
			return tool.Result{}, fault.Newf(fault.KindValidation,
				"unknown object kind %q: use tables, views, procedures, or all", args.Kind)
		}
	}

	start := time.Now()
	objects, err := reader.ListObjects(ctx, kind)
	if err != nil {
		return tool.Result{}, classify(err, database)
	}

	out, err := json.Marshal(schemaPayload{
		Database: database,
		Kind:     string(kind),
		Objects:  objects,
		Count:    len(objects),
	})
	if err != nil {
		return tool.Result{}, fault.Wrap(fault.KindInternal, err, "encode result")
	}
	return tool.NewResult(out).WithDuration(time.Since(start)), nil
}

// analyzeArgs name the table to profile.
type analyzeArgs struct {
	Table    string `json:"table"`
	Database string `json:"database,omitempty"`
}

// Analyze returns table statistics from the backend's metadata surface.
func (g *Gateway) Analyze(ctx context.Context, raw json.RawMessage) (tool.Result, error) {
	var args analyzeArgs
	if err := decode(raw, &args); err != nil {
		return tool.Result{}, err
	}
	be, database, err := g.resolve(args.Database)
	if err != nil {
		return tool.Result{}, err
	}

	analyzer, ok := be.(backend.Analyzer)
	if !ok {
		return tool.Result{}, fault.Newf(fault.KindValidation,
			"database %q cannot analyze tables", database)
	}

	start := time.Now()
	stats, err := analyzer.AnalyzeTable(ctx, args.Table)
	if err != nil {
		return tool.Result{}, classify(err, database)
	}

	out, err := json.Marshal(struct {
		Database string `json:"database"`
		*backend.TableStatistics
	}{Database: database, TableStatistics: stats})
	if err != nil {
		return tool.Result{}, fault.Wrap(fault.KindInternal, err, "encode result")
	}
	return tool.NewResult(out).WithDuration(time.Since(start)), nil
}
