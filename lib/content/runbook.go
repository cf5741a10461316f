// Copyright 2026 The Fridgecam Authors
// SPDX-License-Identifier: Apache-2.0

package content

import "embed"

//go:embed docs/RUNBOOK.md
var docFiles embed.FS

// Runbook returns the operator runbook markdown. "fridgecam docs"
// renders it for the terminal; diagnostic bundles include it verbatim.
func Runbook() string {
	data, err := docFiles.ReadFile("docs/RUNBOOK.md")
	if err != nil {
		panic("embedded RUNBOOK.md missing: " + err.Error())
	}
	return string(data)
}
