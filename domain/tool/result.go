package tool

import (
	"encoding/json"
	"time"
)

// Result contains the output of a tool execution. Warnings carry advisory
// validation findings that did not block the call.
type Result struct {
	// Output is the primary result data.
	Output json.RawMessage `json:"output"`

	// Warnings are non-blocking findings surfaced to the caller.
	Warnings []string `json:"warnings,omitempty"`

	// Duration is how long the execution took.
	Duration time.Duration `json:"duration"`
}

// NewResult creates a result with the given output.
func NewResult(output json.RawMessage) Result {
	return Result{Output: output}
}

// WithWarnings appends warnings to the result.
func (r Result) WithWarnings(warnings ...string) Result {
	r.Warnings = append(r.Warnings, warnings...)
	return r
}

// WithDuration sets the execution duration.
func (r Result) WithDuration(d time.Duration) Result {
	r.Duration = d
	return r
}

// OutputString returns the output as a string for convenience.
func (r Result) OutputString() string {
	return string(r.Output)
}
