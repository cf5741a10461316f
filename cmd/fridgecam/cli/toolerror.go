// Copyright 2026 The Fridgecam Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import "fmt"

// ErrorCategory classifies command errors so the top-level handler (and
// anything consuming --json output) can tell bad input, structural
// preconditions, and environmental failures apart without parsing
// message text.
type ErrorCategory string

const (
	// CategoryValidation indicates the caller provided invalid input:
	// missing required flags, wrong argument count, unparseable values.
	// The caller should fix the invocation and retry.
	CategoryValidation ErrorCategory = "validation"

	// CategoryStructural indicates a fatal precondition is missing: the
	// deployable artifact or the tunnel binary. Nothing downstream is
	// meaningful, so the command aborts with a non-zero exit.
	CategoryStructural ErrorCategory = "structural"

	// CategoryElevation indicates the operation needs administrative
	// privilege and the bounded re-exec could not obtain it.
	CategoryElevation ErrorCategory = "elevation"

	// CategoryServiceState indicates a supervised unit is not in the
	// expected state (inactive, failed, not enabled). Advisory during
	// verification; fatal only when an install step itself fails.
	CategoryServiceState ErrorCategory = "service_state"

	// CategoryUnreachable indicates a local HTTP endpoint did not
	// answer: connection refused, reset, or timed out.
	CategoryUnreachable ErrorCategory = "unreachable"

	// CategoryMalformed indicates an endpoint answered with a body the
	// client could not interpret. The raw payload travels with the
	// error for manual diagnosis.
	CategoryMalformed ErrorCategory = "malformed"

	// CategoryDependency indicates the service is up but one of its
	// external dependencies (the database) is not healthy. Distinct
	// from transport failures because the root cause differs.
	CategoryDependency ErrorCategory = "dependency"

	// CategoryInternal indicates an unexpected error: bugs, I/O
	// failures, malformed data the tool itself produced.
	CategoryInternal ErrorCategory = "internal"
)

// ToolError is a categorized error returned by CLI commands. It wraps an
// inner error, preserving the full chain for errors.Is/As, and adds the
// category plus an optional remediation hint shown after the message.
//
// Use the category-specific constructors (Validation, Structural, etc.)
// rather than constructing ToolError directly.
type ToolError struct {
	// Category classifies the error for programmatic handling.
	Category ErrorCategory

	// Err is the underlying error with the human-readable message.
	Err error

	// Hint is an optional remediation suggestion, typically the exact
	// command to run next. Appended to Error() after a blank line.
	Hint string
}

// Error returns the underlying error message, with the hint appended
// after a blank line when present. The category is not included in the
// string — it travels separately in structured output.
func (e *ToolError) Error() string {
	if e.Hint == "" {
		return e.Err.Error()
	}
	return e.Err.Error() + "\n\n" + e.Hint
}

// Unwrap returns the underlying error, allowing errors.Is and
// errors.As to walk the full chain through the ToolError wrapper.
func (e *ToolError) Unwrap() error { return e.Err }

// WithHint attaches a remediation hint and returns the receiver, so
// constructors chain: cli.Structural("...").WithHint("run fridgecam setup").
func (e *ToolError) WithHint(hint string) *ToolError {
	e.Hint = hint
	return e
}

// Validation creates a validation error: the caller provided bad input.
func Validation(format string, args ...any) *ToolError {
	return &ToolError{Category: CategoryValidation, Err: fmt.Errorf(format, args...)}
}

// Structural creates a structural error: a fatal precondition (artifact,
// tunnel binary) is missing and the command must abort.
func Structural(format string, args ...any) *ToolError {
	return &ToolError{Category: CategoryStructural, Err: fmt.Errorf(format, args...)}
}

// Elevation creates an elevation error: administrative privilege was
// required and could not be obtained.
func Elevation(format string, args ...any) *ToolError {
	return &ToolError{Category: CategoryElevation, Err: fmt.Errorf(format, args...)}
}

// ServiceState creates a service-state error: a unit is not in the
// expected supervision state.
func ServiceState(format string, args ...any) *ToolError {
	return &ToolError{Category: CategoryServiceState, Err: fmt.Errorf(format, args...)}
}

// Unreachable creates an unreachable error: a local endpoint did not answer.
func Unreachable(format string, args ...any) *ToolError {
	return &ToolError{Category: CategoryUnreachable, Err: fmt.Errorf(format, args...)}
}

// Malformed creates a malformed-response error: an endpoint answered with
// an uninterpretable body.
func Malformed(format string, args ...any) *ToolError {
	return &ToolError{Category: CategoryMalformed, Err: fmt.Errorf(format, args...)}
}

// Dependency creates a dependency error: the service is up but an
// external dependency is not healthy.
func Dependency(format string, args ...any) *ToolError {
	return &ToolError{Category: CategoryDependency, Err: fmt.Errorf(format, args...)}
}

// Internal creates an internal error: an unexpected failure, bug, or I/O error.
func Internal(format string, args ...any) *ToolError {
	return &ToolError{Category: CategoryInternal, Err: fmt.Errorf(format, args...)}
}
