// Copyright 2026 The Fridgecam Authors
// SPDX-License-Identifier: Apache-2.0

package doctor

import (
	"context"
	"fmt"
	"time"
)

// Check is one layer of the verification pipeline: a name and a function
// producing exactly one Result. Checks run strictly in declaration order;
// a later check never runs before an earlier one has yielded its result.
type Check struct {
	// Name identifies the layer in the report. The check's Run function
	// normally repeats it in the Result; the runner also uses it when it
	// has to forge a timeout result.
	Name string

	// Run performs the check. The context carries the per-check timeout
	// and the pipeline's cancellation signal; external calls (subprocess,
	// HTTP) must honor it.
	Run func(ctx context.Context) Result

	// Fatal marks the structural precondition. When a fatal check fails,
	// the runner stops: no later layer runs and the results collected so
	// far form the whole report.
	Fatal bool

	// TimeoutStatus is the status the runner assigns when the check does
	// not return within the timeout. Zero value means StatusFail; the
	// remote-reachability layer sets StatusWarn because a slow public
	// endpoint must never fail verification.
	TimeoutStatus Status
}

// Runner executes checks sequentially with a per-check timeout.
type Runner struct {
	// Timeout bounds each individual check. Zero means no bound beyond
	// the parent context.
	Timeout time.Duration
}

// Run executes the checks in order and returns their results. Each check
// gets a context derived from ctx with the per-check timeout applied. A
// check that ignores its context is abandoned once the timeout fires and
// the runner records a timeout result in its place — the goroutine leaks
// for the remainder of this short-lived process rather than stalling the
// whole report. Execution stops early only when a Fatal check fails or
// the parent context is cancelled.
func (r *Runner) Run(ctx context.Context, checks []Check) []Result {
	results := make([]Result, 0, len(checks))

	for _, check := range checks {
		if ctx.Err() != nil {
			break
		}

		result := r.runOne(ctx, check)
		results = append(results, result)

		if check.Fatal && result.Status == StatusFail {
			break
		}
	}

	return results
}

// runOne executes a single check under the per-check timeout.
func (r *Runner) runOne(ctx context.Context, check Check) Result {
	checkCtx := ctx
	cancel := context.CancelFunc(func() {})
	if r.Timeout > 0 {
		checkCtx, cancel = context.WithTimeout(ctx, r.Timeout)
	}
	defer cancel()

	done := make(chan Result, 1)
	go func() {
		done <- check.Run(checkCtx)
	}()

	select {
	case result := <-done:
		if check.Fatal && result.Status == StatusFail {
			result.Fatal = true
		}
		return result
	case <-checkCtx.Done():
		status := check.TimeoutStatus
		if status == "" {
			status = StatusFail
		}
		message := fmt.Sprintf("timed out after %s", r.Timeout)
		if ctx.Err() != nil {
			// Parent cancellation (SIGINT), not the per-check budget.
			message = "cancelled"
		}
		result := Result{Name: check.Name, Status: status, Message: message}
		if check.Fatal && result.Status == StatusFail {
			result.Fatal = true
		}
		return result
	}
}
