package validation

import "fmt"

// Result carries the outcome of a validation pass. A result is valid
// exactly when it has no errors; warnings are logged but never affect
// validity.
type Result struct {
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// Valid reports whether the subject passed validation.
func (r Result) Valid() bool {
	return len(r.Errors) == 0
}

// AddError appends a hard failure.
func (r *Result) AddError(msg string) {
	r.Errors = append(r.Errors, msg)
}

// AddErrorf appends a formatted hard failure.
func (r *Result) AddErrorf(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

// AddWarning appends a soft finding.
func (r *Result) AddWarning(msg string) {
	r.Warnings = append(r.Warnings, msg)
}

// AddWarningf appends a formatted soft finding.
func (r *Result) AddWarningf(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// Merge appends another result's findings, preserving order.
func (r *Result) Merge(other Result) {
	r.Errors = append(r.Errors, other.Errors...)
	r.Warnings = append(r.Warnings, other.Warnings...)
}
