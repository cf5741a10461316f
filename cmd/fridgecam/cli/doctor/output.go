// Copyright 2026 The Fridgecam Authors
// SPDX-License-Identifier: Apache-2.0

package doctor

import (
	"fmt"
	"io"
	"strings"

	"github.com/fridgelab/fridgecam/cmd/fridgecam/cli"
)

// PrintChecklist prints check results as a human-readable checklist.
// Hints attached to failed or degraded checks are printed indented
// beneath their row. The returned error is non-nil (an ExitError with
// code 1) only when a fatal check failed: degraded layers are reported
// but do not change the exit status, so scripted callers can distinguish
// "nothing to verify against" from "verified with warnings".
func PrintChecklist(w io.Writer, results []Result) error {
	for _, result := range results {
		prefix := strings.ToUpper(string(result.Status))
		fmt.Fprintf(w, "[%-5s]  %-40s  %s\n", prefix, result.Name, result.Message)
		if result.Hint != "" && result.Status != StatusPass {
			fmt.Fprintf(w, "         %-40s  hint: %s\n", "", result.Hint)
		}
	}

	fmt.Fprintln(w)

	counts := Count(results)
	fmt.Fprintf(w, "%d passed, %d failed, %d warnings, %d skipped\n",
		counts.Pass, counts.Fail, counts.Warn, counts.Skip)

	if AnyFatal(results) {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Verification aborted: a required layer failed, so later layers were not run.")
		return &cli.ExitError{Code: 1}
	}

	return nil
}
