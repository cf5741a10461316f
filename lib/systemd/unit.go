// Copyright 2026 The Fridgecam Authors
// SPDX-License-Identifier: Apache-2.0

package systemd

import (
	"fmt"
	"os"
	"path/filepath"
)

// Unit is a systemd unit to install: the unit file name and its
// rendered content.
type Unit struct {
	Name    string // e.g. "fridgecam-server.service"
	Content []byte
}

// InstallResult reports what InstallUnit did, for logging and tests.
type InstallResult struct {
	// Path is where the unit file was written.
	Path string

	// BackedUp is true when an existing unit file was preserved before
	// the overwrite.
	BackedUp bool

	// BackupPath is the backup location when BackedUp is true.
	BackupPath string
}

// InstallUnit writes the unit file into unitDir. An existing file is
// first copied to "<name>.bak" — the previous backup is replaced, never
// stacked, so each overwrite event leaves exactly one backup
// representing the pre-overwrite state.
func InstallUnit(unitDir string, unit Unit) (InstallResult, error) {
	result := InstallResult{Path: filepath.Join(unitDir, unit.Name)}

	existing, err := os.ReadFile(result.Path)
	switch {
	case err == nil:
		result.BackupPath = result.Path + ".bak"
		if err := os.WriteFile(result.BackupPath, existing, 0o644); err != nil {
			return result, fmt.Errorf("backing up %s: %w", result.Path, err)
		}
		result.BackedUp = true
	case os.IsNotExist(err):
		// Fresh install, nothing to preserve.
	default:
		return result, fmt.Errorf("reading existing unit %s: %w", result.Path, err)
	}

	if err := os.WriteFile(result.Path, unit.Content, 0o644); err != nil {
		return result, fmt.Errorf("writing unit %s: %w", result.Path, err)
	}
	return result, nil
}
