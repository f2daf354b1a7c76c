package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dbbuilder/sqlmcp-saas-sub003/domain/audit"
	"github.com/dbbuilder/sqlmcp-saas-sub003/domain/fault"
	"github.com/dbbuilder/sqlmcp-saas-sub003/domain/tool"
)

// auditSearchArgs filter the trail. Times are RFC 3339.
type auditSearchArgs struct {
	UserID     string `json:"user_id,omitempty"`
	EntityType string `json:"entity_type,omitempty"`
	EntityID   string `json:"entity_id,omitempty"`
	Action     string `json:"action,omitempty"`
	From       string `json:"from,omitempty"`
	To         string `json:"to,omitempty"`
	Severity   string `json:"severity,omitempty"`
	Success    *bool  `json:"success,omitempty"`
	Text       string `json:"text,omitempty"`
	Page       int    `json:"page,omitempty"`
	PageSize   int    `json:"page_size,omitempty"`
}

func parseEventTime(field, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fault.Newf(fault.KindProtocol, "%s must be an RFC 3339 timestamp", field)
	}
	return t, nil
}

// AuditSearch pages through the trail, newest first.
func (g *Gateway) AuditSearch(ctx context.Context, raw json.RawMessage) (tool.Result, error) {
	var args auditSearchArgs
	if err := decode(raw, &args); err != nil {
		return tool.Result{}, err
	}

	from, err := parseEventTime("from", args.From)
	if err != nil {
		return tool.Result{}, err
	}
	to, err := parseEventTime("to", args.To)
	if err != nil {
		return tool.Result{}, err
	}

	severity := audit.Severity(args.Severity)
	switch severity {
	case "", audit.SeverityInfo, audit.SeverityWarning, audit.SeverityError, audit.SeverityCritical:
	default:
		return tool.Result{}, fault.Newf(fault.KindProtocol,
			"unknown severity %q: use info, warning, error, or critical", args.Severity)
	}

	page, err := g.trail.Search(ctx, audit.SearchCriteria{
		UserID:     args.UserID,
		EntityType: args.EntityType,
		EntityID:   args.EntityID,
		Action:     args.Action,
		From:       from,
		To:         to,
		Severity:   severity,
		Success:    args.Success,
		Text:       args.Text,
	}, args.Page, args.PageSize)
	if err != nil {
		return tool.Result{}, fault.Wrap(fault.KindInternal, err, "audit search failed")
	}

	out, err := json.Marshal(page)
	if err != nil {
		return tool.Result{}, fault.Wrap(fault.KindInternal, err, "encode result")
	}
	return tool.NewResult(out), nil
}

// auditCleanupArgs bound the retention sweep. Exactly one of older_than
// (a Go duration such as "720h") or before (RFC 3339) must be set.
type auditCleanupArgs struct {
	OlderThan string `json:"older_than,omitempty"`
	Before    string `json:"before,omitempty"`
	User      string `json:"user,omitempty"`
}

// AuditCleanup deletes trail events older than the cutoff and records the
// sweep itself as the newest event.
func (g *Gateway) AuditCleanup(ctx context.Context, raw json.RawMessage) (tool.Result, error) {
	var args auditCleanupArgs
	if err := decode(raw, &args); err != nil {
		return tool.Result{}, err
	}
	user := g.user(ctx, args.User)

	var cutoff time.Time
	switch {
	case args.OlderThan != "" && args.Before != "":
		return tool.Result{}, fault.New(fault.KindProtocol, "set either older_than or before, not both")
	case args.OlderThan != "":
		d, err := time.ParseDuration(args.OlderThan)
		if err != nil || d <= 0 {
			return tool.Result{}, fault.New(fault.KindValidation,
				"older_than must be a positive Go duration such as \"720h\"")
		}
		cutoff = time.Now().UTC().Add(-d)
	case args.Before != "":
		t, err := parseEventTime("before", args.Before)
		if err != nil {
			return tool.Result{}, err
		}
		cutoff = t
	default:
		return tool.Result{}, fault.New(fault.KindProtocol, "older_than or before is required")
	}

	removed, err := g.trail.Cleanup(ctx, cutoff)
	if err != nil {
		return tool.Result{}, fault.Wrap(fault.KindInternal, err, "audit cleanup failed")
	}

	e := audit.NewEvent(audit.ActionRetentionCleanup, audit.EntityTrail, "retention")
	e.UserID = user
	e.Detail = fmt.Sprintf("removed %d events older than %s", removed, cutoff.Format(time.RFC3339))
	if rerr := g.record(ctx, e); rerr != nil {
		return tool.Result{}, rerr
	}

	out, err := json.Marshal(struct {
		Removed int64     `json:"removed"`
		Cutoff  time.Time `json:"cutoff"`
	}{Removed: removed, Cutoff: cutoff})
	if err != nil {
		return tool.Result{}, fault.Wrap(fault.KindInternal, err, "encode result")
	}
	return tool.NewResult(out), nil
}
