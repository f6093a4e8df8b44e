// Package kerrors holds error types shared across the kernel's components.
// It exists only to let leaf packages (todo, taskboard) and the kernel
// package itself agree on a typed validation error without an import cycle
// (the kernel package re-exports ValidationError as kernel.ValidationError).
package kerrors

import "fmt"

// ValidationError distinguishes a bad-input failure (recoverable by the
// caller rewriting its request) from an infrastructure failure, without
// the caller string-sniffing an "Error: " prefix. The tool_result string
// returned to the LLM still carries that prefix (spec §4.10/§7); this type
// is for Go-side callers that want to branch on the kind of failure.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// NewValidationError builds a ValidationError for the named field.
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}
