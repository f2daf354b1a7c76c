package workflow

import (
	"time"

	"github.com/felixgeelhaar/statekit"

	"github.com/dbbuilder/sqlmcp-saas-sub003/domain/task"
)

// TransitionPayload carries the target status and progress message with a
// lifecycle event.
type TransitionPayload struct {
	To      task.Status
	Message string
}

// applyTransition moves the aggregate and appends the progress event. Actions
// receive a pointer to the context type, so *Context arrives as **Context.
// A RETRY consumes one unit of retry budget alongside the transition.
func applyTransition(ctx **Context, event statekit.Event) {
	if ctx == nil || *ctx == nil || (*ctx).Task == nil {
		return
	}
	c := *ctx

	payload, ok := event.Payload.(TransitionPayload)
	if !ok {
		return
	}

	c.Err = c.Task.Transition(payload.To, nowUTC(), payload.Message)
	if c.Err == nil && event.Type == EventRetry {
		c.Task.MarkRetried()
	}
}

// guardCanTransition consults the domain transition table. Guards receive
// the context value, which for *Context is the pointer itself.
func guardCanTransition(ctx *Context, event statekit.Event) bool {
	if ctx == nil || ctx.Task == nil {
		return false
	}
	payload, ok := event.Payload.(TransitionPayload)
	if !ok {
		return false
	}
	return ctx.Task.Status.CanTransitionTo(payload.To)
}

// guardRetryBudget admits a RETRY only while budget remains.
func guardRetryBudget(ctx *Context, _ statekit.Event) bool {
	if ctx == nil || ctx.Task == nil {
		return false
	}
	return ctx.Task.CanRetry()
}

func nowUTC() time.Time {
	return time.Now().UTC()
}
