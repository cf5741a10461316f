// Copyright 2026 The Fridgecam Authors
// SPDX-License-Identifier: Apache-2.0

package doctor

// Status is the outcome of a single verification layer.
type Status string

const (
	StatusPass Status = "pass"
	StatusFail Status = "fail"
	StatusWarn Status = "warn"
	StatusSkip Status = "skip"
)

// Result holds the outcome of a single verification layer. Failures and
// warnings may carry a Hint with the remediation or diagnosis command.
// Fatal marks the structural precondition whose failure aborts the
// pipeline and is the only condition that changes the exit code.
type Result struct {
	Name    string `json:"name"            desc:"verification layer name"`
	Status  Status `json:"status"          desc:"layer outcome: pass, fail, warn, skip"`
	Message string `json:"message"         desc:"human-readable layer result"`
	Hint    string `json:"hint,omitempty"  desc:"suggested diagnosis or remediation command"`
	Fatal   bool   `json:"fatal,omitempty" desc:"true if this failure aborted the pipeline"`
}

// Pass creates a passing layer result.
func Pass(name, message string) Result {
	return Result{Name: name, Status: StatusPass, Message: message}
}

// Fail creates a failing layer result. Advisory: recorded in the report,
// never changes the exit code.
func Fail(name, message string) Result {
	return Result{Name: name, Status: StatusFail, Message: message}
}

// FailHint creates a failing layer result with a diagnosis hint.
func FailHint(name, message, hint string) Result {
	return Result{Name: name, Status: StatusFail, Message: message, Hint: hint}
}

// FailFatal creates the structural failure that aborts the pipeline.
// The runner stops after a fatal result and the checklist printer
// converts it into a non-zero exit.
func FailFatal(name, message, hint string) Result {
	return Result{Name: name, Status: StatusFail, Message: message, Hint: hint, Fatal: true}
}

// Warn creates a warning layer result. Warnings never change the exit code.
func Warn(name, message string) Result {
	return Result{Name: name, Status: StatusWarn, Message: message}
}

// WarnHint creates a warning layer result with a diagnosis hint.
func WarnHint(name, message, hint string) Result {
	return Result{Name: name, Status: StatusWarn, Message: message, Hint: hint}
}

// Skip creates a skipped layer result. Layers are skipped when their
// precondition is absent from configuration (no domain configured), which
// is a distinct state from pass, fail, and warn.
func Skip(name, message string) Result {
	return Result{Name: name, Status: StatusSkip, Message: message}
}

// AnyFatal reports whether results contains a fatal failure.
func AnyFatal(results []Result) bool {
	for _, result := range results {
		if result.Fatal {
			return true
		}
	}
	return false
}

// Counts aggregates result statuses for summaries.
type Counts struct {
	Pass int `json:"pass"`
	Fail int `json:"fail"`
	Warn int `json:"warn"`
	Skip int `json:"skip"`
}

// Count tallies results by status.
func Count(results []Result) Counts {
	var counts Counts
	for _, result := range results {
		switch result.Status {
		case StatusPass:
			counts.Pass++
		case StatusFail:
			counts.Fail++
		case StatusWarn:
			counts.Warn++
		case StatusSkip:
			counts.Skip++
		}
	}
	return counts
}

// JSONOutput is the JSON output structure for verification runs.
// OK is true when no fatal layer failed — the same condition that
// decides the exit code, so scripted callers can gate on either.
type JSONOutput struct {
	Checks []Result `json:"checks" desc:"ordered layer results"`
	Counts Counts   `json:"counts" desc:"result tallies by status"`
	OK     bool     `json:"ok"     desc:"true if no fatal layer failed"`
}

// BuildJSON assembles the machine-readable verification report from
// layer results.
func BuildJSON(results []Result) JSONOutput {
	return JSONOutput{
		Checks: results,
		Counts: Count(results),
		OK:     !AnyFatal(results),
	}
}
