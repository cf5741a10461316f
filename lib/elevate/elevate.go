// Copyright 2026 The Fridgecam Authors
// SPDX-License-Identifier: Apache-2.0

// Package elevate re-executes the current process under sudo, at most
// once.
//
// Service installation needs root for /etc/systemd/system and
// systemctl. Rather than telling the operator to retype the command
// with sudo, the tool re-executes itself with the original argument
// list. The single-attempt bound is structural: the re-executed child
// carries a marker in its environment, and a marked process that is
// still unprivileged fails instead of trying again. Recursion is
// impossible by construction, not by counting.
package elevate

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"syscall"
)

// Marker is the environment variable that records a prior elevation
// attempt. Its presence, not its value, is the guard.
const Marker = "FRIDGECAM_ELEVATED"

// ErrStillUnprivileged is returned when the process was already
// re-executed under sudo and remains non-root. This means sudo did not
// grant root (NOPASSWD misconfiguration, sudo stripped to nothing) and
// retrying cannot help.
var ErrStillUnprivileged = errors.New("re-executed under sudo but still not root")

// Elevator performs the bounded re-exec.
type Elevator struct {
	// execFunc replaces the process image. Nil means syscall.Exec.
	// Injectable for testing — the test captures the argv without
	// actually exec'ing.
	execFunc func(argv0 string, argv []string, envv []string) error

	// lookPath resolves the sudo binary. Nil means exec.LookPath.
	lookPath func(file string) (string, error)
}

// New returns an Elevator that performs a real exec.
func New() *Elevator {
	return &Elevator{}
}

// IsRoot reports whether the process runs with effective UID 0.
func IsRoot() bool {
	return os.Geteuid() == 0
}

// Attempted reports whether this process is the re-executed child of a
// prior elevation.
func Attempted() bool {
	_, present := os.LookupEnv(Marker)
	return present
}

// Ensure guarantees the caller continues as root. Already-root
// processes return nil immediately. An unprivileged, unmarked process
// is replaced by "sudo <binary> <original args>" and Ensure never
// returns on success; the child's exit code becomes the command's. An
// unprivileged process that carries the marker returns
// ErrStillUnprivileged — the one case where the operator must
// intervene.
//
// args is the full original argument list (os.Args).
func (e *Elevator) Ensure(args []string) error {
	if IsRoot() {
		return nil
	}
	if Attempted() {
		return ErrStillUnprivileged
	}

	lookPath := e.lookPath
	if lookPath == nil {
		lookPath = exec.LookPath
	}
	sudoPath, err := lookPath("sudo")
	if err != nil {
		return fmt.Errorf("not root and sudo not found: %w", err)
	}

	binary, err := os.Executable()
	if err != nil {
		return fmt.Errorf("resolving own binary for re-exec: %w", err)
	}

	// sudo accepts VAR=value assignments before the command, which is
	// how the marker survives sudo's environment reset.
	argv := []string{sudoPath, Marker + "=1", binary}
	argv = append(argv, args[1:]...)

	execFunction := e.execFunc
	if execFunction == nil {
		execFunction = syscall.Exec
	}
	err = execFunction(sudoPath, argv, os.Environ())

	// exec only returns on failure; the process was not replaced.
	return fmt.Errorf("re-exec under sudo failed: %w", err)
}
