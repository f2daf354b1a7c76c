// Package gateway wires the safety collaborators into the tool handlers
// exposed over the protocol surface. Every handler walks the same
// pipeline: resolve the target database, validate against the policy,
// route by classification, execute through the resilience wrapper, and
// record the outcome in the audit trail before the caller sees it.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dbbuilder/sqlmcp-saas-sub003/domain/audit"
	"github.com/dbbuilder/sqlmcp-saas-sub003/domain/backend"
	"github.com/dbbuilder/sqlmcp-saas-sub003/domain/contract"
	"github.com/dbbuilder/sqlmcp-saas-sub003/domain/fault"
	"github.com/dbbuilder/sqlmcp-saas-sub003/domain/policy"
	"github.com/dbbuilder/sqlmcp-saas-sub003/domain/validation"
	"github.com/dbbuilder/sqlmcp-saas-sub003/infrastructure/logging"
	"github.com/dbbuilder/sqlmcp-saas-sub003/infrastructure/resilience"
	"github.com/dbbuilder/sqlmcp-saas-sub003/infrastructure/telemetry"
	"github.com/dbbuilder/sqlmcp-saas-sub003/infrastructure/workflow"
)

// AnonymousUser is charged in the audit trail when neither the arguments
// nor the transport identify the caller.
const AnonymousUser = "anonymous"

// Gateway orchestrates tool execution against registered databases.
type Gateway struct {
	policy    policy.Config
	backends  *backend.Registry
	executor  *resilience.Executor
	workflow  *workflow.Manager
	trail     audit.Trail
	metrics   telemetry.Metrics
	defaultDB string
	ttl       time.Duration
	store     contract.Store

	mu        sync.Mutex
	contracts map[string]*contract.Cache
}

// Config wires the gateway's collaborators.
type Config struct {
	Policy          policy.Config
	Backends        *backend.Registry
	ContractStore   contract.Store
	ContractTTL     time.Duration
	Executor        *resilience.Executor
	Workflow        *workflow.Manager
	Trail           audit.Trail
	Metrics         telemetry.Metrics
	DefaultDatabase string
}

// New creates a gateway. Policy, backends, contract store, workflow, and
// trail are mandatory; the executor defaults to standard resilience
// settings and metrics default to a no-op recorder.
func New(cfg Config) (*Gateway, error) {
	if cfg.Policy.MaxStatementLength() == 0 {
		return nil, errors.New("policy is required")
	}
	if cfg.Backends == nil {
		return nil, errors.New("backend registry is required")
	}
	if cfg.ContractStore == nil {
		return nil, errors.New("contract store is required")
	}
	if cfg.Workflow == nil {
		return nil, errors.New("workflow manager is required")
	}
	if cfg.Trail == nil {
		return nil, errors.New("audit trail is required")
	}
	if cfg.DefaultDatabase == "" {
		names := cfg.Backends.Names()
		if len(names) == 0 {
			return nil, errors.New("no databases registered")
		}
		cfg.DefaultDatabase = names[0]
	}
	if _, err := cfg.Backends.Get(cfg.DefaultDatabase); err != nil {
		return nil, fmt.Errorf("default database: %w", err)
	}

	g := &Gateway{
		policy:    cfg.Policy,
		backends:  cfg.Backends,
		executor:  cfg.Executor,
		workflow:  cfg.Workflow,
		trail:     cfg.Trail,
		metrics:   cfg.Metrics,
		defaultDB: cfg.DefaultDatabase,
		ttl:       cfg.ContractTTL,
		store:     cfg.ContractStore,
		contracts: make(map[string]*contract.Cache),
	}
	if g.executor == nil {
		g.executor = resilience.NewExecutor(resilience.DefaultConfig())
	}
	if g.metrics == nil {
		g.metrics = &telemetry.NoopMetricsProvider{}
	}
	if g.ttl <= 0 {
		g.ttl = contract.DefaultTTL
	}
	return g, nil
}

// userKey carries the transport-level client identity through the context.
type userKey struct{}

// ContextWithUser attaches the client identity negotiated at the protocol
// handshake. Handlers prefer an explicit user argument and fall back to
// this value.
func ContextWithUser(ctx context.Context, user string) context.Context {
	return context.WithValue(ctx, userKey{}, user)
}

// user resolves the caller identity for audit attribution.
func (g *Gateway) user(ctx context.Context, explicit string) string {
	if explicit != "" {
		return explicit
	}
	if v, ok := ctx.Value(userKey{}).(string); ok && v != "" {
		return v
	}
	return AnonymousUser
}

// resolve maps a database argument to a registered backend. An empty name
// selects the configured default.
func (g *Gateway) resolve(database string) (backend.Backend, string, error) {
	if database == "" {
		database = g.defaultDB
	}
	be, err := g.backends.Get(database)
	if err != nil {
		return nil, database, fault.Wrap(fault.KindValidation, err,
			fmt.Sprintf("no database named %q is registered", database))
	}
	return be, database, nil
}

// contractCache returns the per-database contract cache, creating it on
// first use. Each database gets its own cache so identically named
// procedures in different targets never share an entry.
func (g *Gateway) contractCache(database string, source contract.Source) *contract.Cache {
	g.mu.Lock()
	defer g.mu.Unlock()
	if c, ok := g.contracts[database]; ok {
		return c
	}
	store := &scopedContractStore{scope: database, store: g.store, metrics: g.metrics}
	c := contract.NewCache(source, store, contract.WithTTL(g.ttl))
	g.contracts[database] = c
	return c
}

// record appends one audit event, stamping the correlation id from the
// context. Recording happens before the caller is acknowledged: a trail
// failure fails the operation it describes.
func (g *Gateway) record(ctx context.Context, e audit.Event) error {
	e.CorrelationID = audit.CorrelationIDFromContext(ctx)
	err := g.trail.Record(ctx, &e)
	g.metrics.RecordAuditWrite(ctx, e.Action, err == nil)
	if err != nil {
		return fault.Wrap(fault.KindInternal, err, "audit write failed")
	}
	return nil
}

// gatekeep settles validation findings. Errors from either result reject
// the call with one audited validation failure; parameter warnings are
// audited as injection findings and passed through to the response along
// with statement warnings.
func (g *Gateway) gatekeep(ctx context.Context, database, user, entityType, entityID string, stmt, params validation.Result) ([]string, error) {
	if !stmt.Valid() || !params.Valid() {
		g.metrics.RecordValidation(ctx, database, validation.Blocked.String())
		detail := strings.Join(append(append([]string{}, stmt.Errors...), params.Errors...), "; ")

		e := audit.NewEvent(audit.ActionValidationRejected, entityType, entityID)
		e.UserID = user
		e.Success = false
		e.Severity = audit.SeverityWarning
		e.Detail = detail
		if err := g.record(ctx, e); err != nil {
			return nil, err
		}

		logging.Warn().
			Add(logging.Database(database)).
			Add(logging.User(user)).
			Add(logging.Str("detail", detail)).
			Msg("validation rejected")

		return nil, fault.New(fault.KindValidation, detail).
			WithCorrelation(audit.CorrelationIDFromContext(ctx))
	}

	if len(params.Warnings) > 0 {
		for _, w := range params.Warnings {
			g.metrics.RecordSanitizerWarning(ctx, database, w)
		}
		e := audit.NewEvent(audit.ActionInjectionWarning, entityType, entityID)
		e.UserID = user
		e.Severity = audit.SeverityWarning
		e.Detail = strings.Join(params.Warnings, "; ")
		if err := g.record(ctx, e); err != nil {
			return nil, err
		}

		logging.Warn().
			Add(logging.Database(database)).
			Add(logging.User(user)).
			Add(logging.Warnings(len(params.Warnings))).
			Add(logging.Str("detail", e.Detail)).
			Msg("suspicious parameter values passed validation")
	}

	return append(append([]string{}, stmt.Warnings...), params.Warnings...), nil
}

// execute drives one call through the resilience wrapper and records the
// terminal audit event. The audit write completes before the result is
// returned, so an unrecorded outcome is never acknowledged.
func (g *Gateway) execute(ctx context.Context, be backend.Backend, database, user, entityType, entityID, action, statement string, params []backend.Parameter) (*backend.ExecResult, error) {
	start := time.Now()
	res, err := g.executor.Execute(ctx, database, func(ctx context.Context) (*backend.ExecResult, error) {
		return be.Execute(ctx, statement, params)
	})
	g.metrics.RecordBackendDuration(ctx, database, err == nil, time.Since(start))

	if err != nil {
		ferr := classify(err, database)
		e := audit.NewEvent(failureAction(ferr), entityType, entityID)
		e.UserID = user
		e.Success = false
		e.Severity = audit.SeverityError
		e.Detail = ferr.Error()
		if rerr := g.record(ctx, e); rerr != nil {
			return nil, rerr
		}

		logging.Error().
			Add(logging.Database(database)).
			Add(logging.User(user)).
			Add(logging.ErrorField(ferr)).
			Add(logging.Duration(time.Since(start))).
			Msg("execution failed")

		return nil, ferr
	}

	e := audit.NewEvent(action, entityType, entityID)
	e.UserID = user
	e.Detail = fmt.Sprintf("rows_affected=%d result_set=%t", res.RowsAffected, res.HasResultSet)
	if rerr := g.record(ctx, e); rerr != nil {
		return nil, rerr
	}

	logging.Info().
		Add(logging.Database(database)).
		Add(logging.User(user)).
		Add(logging.Action(action)).
		Add(logging.Duration(time.Since(start))).
		Msg("execution completed")

	return res, nil
}

// classify maps backend and resilience errors onto the public taxonomy.
// Already classified faults pass through untouched.
func classify(err error, database string) error {
	var fe *fault.Error
	if errors.As(err, &fe) {
		return err
	}
	switch {
	case errors.Is(err, backend.ErrProcedureNotFound):
		return fault.Wrap(fault.KindContractMismatch, err,
			"no contract exists for the requested procedure").
			WithData("database", database)
	case errors.Is(err, backend.ErrNotSupported):
		return fault.Wrap(fault.KindValidation, err,
			fmt.Sprintf("database %q does not support this operation", database))
	case backend.IsTransient(err):
		return fault.Wrap(fault.KindTransientBackend, err,
			"the database is temporarily unavailable").
			WithData("database", database)
	case errors.Is(err, backend.ErrExecutionFailed):
		// The target's own parser or constraint check refused the call.
		// The message is derived from caller input, safe to echo back.
		return fault.Wrap(fault.KindValidation, err, err.Error())
	default:
		return fault.Wrap(fault.KindInternal, err, "execution failed")
	}
}

// failureAction picks the audit action for a classified execution failure.
func failureAction(err error) string {
	switch fault.KindOf(err) {
	case fault.KindResilienceExhausted:
		return audit.ActionResilienceExhausted
	case fault.KindCancelled:
		return audit.ActionExecutionCancelled
	default:
		return audit.ActionExecutionFailed
	}
}

// statementID renders a statement for audit entity ids: escaped and
// truncated so control bytes and book-length SQL never land in the trail.
func statementID(statement string) string {
	const max = 120
	s := validation.EscapeForLogging(strings.TrimSpace(statement))
	if runes := []rune(s); len(runes) > max {
		s = string(runes[:max]) + "..."
	}
	return s
}

// scopedContractStore namespaces a shared contract store by database and
// counts cache hits and misses. Two databases may expose procedures with
// the same qualified name; the scope keeps their contracts apart.
type scopedContractStore struct {
	scope   string
	store   contract.Store
	metrics telemetry.Metrics
}

func (s *scopedContractStore) key(qualifiedName string) string {
	return s.scope + "/" + qualifiedName
}

func (s *scopedContractStore) Get(ctx context.Context, qualifiedName string) (*contract.Contract, error) {
	c, err := s.store.Get(ctx, s.key(qualifiedName))
	if err != nil {
		s.metrics.RecordContractMiss(ctx, qualifiedName)
		return nil, err
	}
	if c.Expired(time.Now()) {
		s.metrics.RecordContractMiss(ctx, qualifiedName)
	} else {
		s.metrics.RecordContractHit(ctx, qualifiedName)
	}
	out := *c
	out.QualifiedName = qualifiedName
	return &out, nil
}

func (s *scopedContractStore) Put(ctx context.Context, c *contract.Contract) error {
	scoped := *c
	scoped.QualifiedName = s.key(c.QualifiedName)
	return s.store.Put(ctx, &scoped)
}

func (s *scopedContractStore) Delete(ctx context.Context, qualifiedName string) error {
	return s.store.Delete(ctx, s.key(qualifiedName))
}
