// Package resilience shields backend execution with retry, circuit breaker,
// bulkhead and per-attempt timeout patterns from fortify.
//
// Composition, innermost first: each attempt runs under its own timeout,
// the retrier replays transient failures, the circuit breaker judges the
// post-retry outcome, and the bulkhead caps concurrency across all targets.
// An open circuit rejects calls before the retrier ever runs, so a broken
// backend is never hammered with retry storms.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/felixgeelhaar/fortify/bulkhead"
	"github.com/felixgeelhaar/fortify/circuitbreaker"
	"github.com/felixgeelhaar/fortify/retry"

	"github.com/dbbuilder/sqlmcp-saas-sub003/domain/backend"
	"github.com/dbbuilder/sqlmcp-saas-sub003/domain/fault"
)

// errPermanent marks failures the retrier must not replay.
var errPermanent = errors.New("permanent backend failure")

// permanentError wraps a non-transient failure so the retrier stops while
// the original error chain stays reachable for classification.
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }

func (e *permanentError) Unwrap() error { return e.err }

// Is lets the retrier's NonRetryableErrors list match without polluting the
// message the caller sees.
func (e *permanentError) Is(target error) bool { return target == errPermanent }

// Operation is one backend call guarded by the executor.
type Operation func(ctx context.Context) (*backend.ExecResult, error)

// Config configures the executor.
type Config struct {
	// MaxRetryAttempts is the total attempt ceiling including the first call.
	MaxRetryAttempts int
	// RetryBaseDelay is the first backoff delay; it doubles per attempt.
	RetryBaseDelay time.Duration
	// RetryMaxDelay caps the backoff schedule. Validation at load time
	// guarantees the schedule fits under it.
	RetryMaxDelay time.Duration
	// CircuitFailureThreshold is consecutive failures before the circuit opens.
	CircuitFailureThreshold int
	// CircuitBreakDuration is how long an open circuit rejects calls before
	// admitting a single half-open trial.
	CircuitBreakDuration time.Duration
	// ExecutionTimeout bounds each individual attempt.
	ExecutionTimeout time.Duration
	// MaxConcurrent bounds simultaneous executions across all targets.
	MaxConcurrent int
}

// DefaultConfig returns the default resilience settings.
func DefaultConfig() Config {
	return Config{
		MaxRetryAttempts:        3,
		RetryBaseDelay:          500 * time.Millisecond,
		RetryMaxDelay:           30 * time.Second,
		CircuitFailureThreshold: 5,
		CircuitBreakDuration:    60 * time.Second,
		ExecutionTimeout:        60 * time.Second,
		MaxConcurrent:           16,
	}
}

// Executor applies the resilience patterns around backend operations.
// Circuit state is tracked per target so one broken database does not
// blind the gateway to the healthy ones.
type Executor struct {
	config   Config
	bulkhead bulkhead.Bulkhead[*backend.ExecResult]
	retrier  retry.Retry[*backend.ExecResult]
	breakers map[string]circuitbreaker.CircuitBreaker[*backend.ExecResult]
	mu       sync.RWMutex
}

// NewExecutor creates an executor, falling back to defaults for any
// non-positive setting.
func NewExecutor(config Config) *Executor {
	defaults := DefaultConfig()
	if config.MaxRetryAttempts <= 0 {
		config.MaxRetryAttempts = defaults.MaxRetryAttempts
	}
	if config.RetryBaseDelay <= 0 {
		config.RetryBaseDelay = defaults.RetryBaseDelay
	}
	if config.RetryMaxDelay <= 0 {
		config.RetryMaxDelay = defaults.RetryMaxDelay
	}
	if config.CircuitFailureThreshold <= 0 {
		config.CircuitFailureThreshold = defaults.CircuitFailureThreshold
	}
	if config.CircuitBreakDuration <= 0 {
		config.CircuitBreakDuration = defaults.CircuitBreakDuration
	}
	if config.ExecutionTimeout <= 0 {
		config.ExecutionTimeout = defaults.ExecutionTimeout
	}
	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = defaults.MaxConcurrent
	}

	return &Executor{
		config: config,
		bulkhead: bulkhead.New[*backend.ExecResult](bulkhead.Config{
			MaxConcurrent: config.MaxConcurrent,
		}),
		retrier: retry.New[*backend.ExecResult](retry.Config{
			MaxAttempts:        config.MaxRetryAttempts,
			InitialDelay:       config.RetryBaseDelay,
			BackoffPolicy:      retry.BackoffExponential,
			Multiplier:         2.0,
			NonRetryableErrors: []error{errPermanent},
		}),
		breakers: make(map[string]circuitbreaker.CircuitBreaker[*backend.ExecResult]),
	}
}

// Execute runs op against the named target under the full pattern stack.
// Permanent failures pass through unchanged for upstream classification;
// exhausted retries and open circuits come back as resilience faults.
func (e *Executor) Execute(ctx context.Context, target string, op Operation) (*backend.ExecResult, error) {
	breaker := e.getBreaker(target)

	// Tracks whether op ran at all. When the breaker or bulkhead rejects
	// the call, the attempt closure never executes.
	attempted := false

	result, err := e.bulkhead.Execute(ctx, func(ctx context.Context) (*backend.ExecResult, error) {
		return breaker.Execute(ctx, func(ctx context.Context) (*backend.ExecResult, error) {
			return e.retrier.Do(ctx, func(ctx context.Context) (*backend.ExecResult, error) {
				attempted = true
				return e.attempt(ctx, op)
			})
		})
	})
	if err == nil {
		return result, nil
	}

	if cause := ctx.Err(); errors.Is(cause, context.Canceled) {
		return nil, fault.Wrap(fault.KindCancelled, err, "execution cancelled by caller").
			WithData("target", target)
	}

	if !attempted {
		state := breaker.State().String()
		msg := fmt.Sprintf("backend %s rejected before execution: circuit %s", target, state)
		if state == "closed" {
			// The breaker admitted the call, so the bulkhead turned it away.
			msg = fmt.Sprintf("backend %s rejected before execution: at capacity", target)
		}
		return nil, fault.New(fault.KindResilienceExhausted, msg).
			WithData("target", target).
			WithData("breaker_state", state)
	}

	var perm *permanentError
	if errors.As(err, &perm) {
		return nil, perm.err
	}

	return nil, fault.Wrap(fault.KindResilienceExhausted, err,
		fmt.Sprintf("backend %s still failing after %d attempts", target, e.config.MaxRetryAttempts)).
		WithData("target", target).
		WithData("breaker_state", breaker.State().String())
}

// attempt runs a single try under its own timeout and classifies the
// outcome for the retrier.
func (e *Executor) attempt(ctx context.Context, op Operation) (*backend.ExecResult, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, e.config.ExecutionTimeout)
	defer cancel()

	result, err := op(attemptCtx)
	if err == nil {
		return result, nil
	}

	// A timeout of this attempt is transient; the caller walking away is not.
	if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		return nil, fmt.Errorf("%w: attempt exceeded %s", backend.ErrTimeout, e.config.ExecutionTimeout)
	}
	if errors.Is(err, context.Canceled) {
		return nil, &permanentError{err: err}
	}

	if backend.IsTransient(err) {
		return nil, err
	}
	return nil, &permanentError{err: err}
}

// getBreaker returns the circuit breaker for a target, creating one if
// needed. MaxRequests of one admits exactly a single half-open trial.
func (e *Executor) getBreaker(target string) circuitbreaker.CircuitBreaker[*backend.ExecResult] {
	e.mu.RLock()
	breaker, exists := e.breakers[target]
	e.mu.RUnlock()

	if exists {
		return breaker
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if breaker, exists = e.breakers[target]; exists {
		return breaker
	}

	threshold := e.config.CircuitFailureThreshold

	breaker = circuitbreaker.New[*backend.ExecResult](circuitbreaker.Config{
		MaxRequests: 1,
		Interval:    e.config.CircuitBreakDuration,
		Timeout:     e.config.CircuitBreakDuration,
		ReadyToTrip: func(counts circuitbreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(threshold) // #nosec G115 -- threshold is validated
		},
	})
	e.breakers[target] = breaker

	return breaker
}

// BreakerState returns the circuit state for a target, or "unknown" for a
// target that has never executed.
func (e *Executor) BreakerState(target string) string {
	e.mu.RLock()
	breaker, exists := e.breakers[target]
	e.mu.RUnlock()

	if !exists {
		return "unknown"
	}
	return breaker.State().String()
}
