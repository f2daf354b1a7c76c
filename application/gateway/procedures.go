package gateway

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/dbbuilder/sqlmcp-saas-sub003/domain/audit"
	"github.com/dbbuilder/sqlmcp-saas-sub003/domain/contract"
	"github.com/dbbuilder/sqlmcp-saas-sub003/domain/fault"
	"github.com/dbbuilder/sqlmcp-saas-sub003/domain/task"
	"github.com/dbbuilder/sqlmcp-saas-sub003/domain/tool"
	"github.com/dbbuilder/sqlmcp-saas-sub003/domain/validation"
)

// procedureArgs name a stored procedure and its parameters.
type procedureArgs struct {
	Name       string     `json:"name"`
	Database   string     `json:"database,omitempty"`
	User       string     `json:"user,omitempty"`
	Parameters []paramArg `json:"parameters,omitempty"`
}

// callStatement renders a procedure invocation for the backend.
func callStatement(name string) string {
	return "EXEC " + name
}

// Procedure validates a stored procedure call against its cached contract
// and runs it. The contract is refreshed before validation when expired,
// so a changed signature is caught on the next call, not an hour later.
// Elevated and critical procedures defer into the approval workflow
// instead of running directly.
func (g *Gateway) Procedure(ctx context.Context, raw json.RawMessage) (tool.Result, error) {
	var args procedureArgs
	if err := decode(raw, &args); err != nil {
		return tool.Result{}, err
	}
	be, database, err := g.resolve(args.Database)
	if err != nil {
		return tool.Result{}, err
	}
	user := g.user(ctx, args.User)
	params := g.parameters(args.Parameters)

	name := strings.TrimSpace(args.Name)
	if name == "" {
		return tool.Result{}, fault.New(fault.KindProtocol, "procedure name is required")
	}

	ct, err := g.contractCache(database, be).GetOrRefresh(ctx, name)
	if err != nil {
		ferr := classify(err, database)
		if fault.Is(ferr, fault.KindContractMismatch) {
			e := audit.NewEvent(audit.ActionContractMismatch, audit.EntityProcedure, name)
			e.UserID = user
			e.Success = false
			e.Severity = audit.SeverityWarning
			e.Detail = ferr.Error()
			if rerr := g.record(ctx, e); rerr != nil {
				return tool.Result{}, rerr
			}
		}
		return tool.Result{}, ferr
	}

	if res := ct.Validate(params); !res.Valid() {
		g.metrics.RecordValidation(ctx, database, validation.Blocked.String())
		detail := strings.Join(res.Errors, "; ")

		e := audit.NewEvent(audit.ActionContractMismatch, audit.EntityProcedure, name)
		e.UserID = user
		e.Success = false
		e.Severity = audit.SeverityWarning
		e.Detail = detail
		if rerr := g.record(ctx, e); rerr != nil {
			return tool.Result{}, rerr
		}

		return tool.Result{}, fault.New(fault.KindContractMismatch, detail).
			WithData("procedure", name).
			WithCorrelation(audit.CorrelationIDFromContext(ctx))
	}

	paramRes := validation.ValidateParameters(name, params, g.policy)
	warnings, err := g.gatekeep(ctx, database, user, audit.EntityProcedure, name, validation.Result{}, paramRes)
	if err != nil {
		return tool.Result{}, err
	}
	g.metrics.RecordValidation(ctx, database, validation.Allowed.String())

	if ct.SecurityLevel >= contract.SecurityElevated {
		return g.deferToTask(ctx, task.TypeCommand, database, user, name, true, params, warnings)
	}

	start := time.Now()
	res, err := g.execute(ctx, be, database, user, audit.EntityProcedure,
		name, audit.ActionProcedureExecuted, callStatement(name), params)
	if err != nil {
		return tool.Result{}, err
	}
	return resultPayload(res, database, warnings, time.Since(start))
}
