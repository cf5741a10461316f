// Copyright 2026 The Fridgecam Authors
// SPDX-License-Identifier: Apache-2.0

// Package systemd provides typed access to systemctl for unit
// management. The provisioning tool installs, enables, and starts two
// units (the tunnel and the camera server) and the verification
// pipeline reads their activation state; everything goes through
// [Systemctl], which owns the subprocess plumbing so callers never
// build argument lists by hand.
package systemd

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// RunFunc executes systemctl with the given arguments and returns its
// combined output. Injectable for testing — fakes simulate unit states
// without a live systemd.
type RunFunc func(ctx context.Context, args ...string) (string, error)

// Systemctl runs systemd unit operations.
type Systemctl struct {
	run RunFunc
}

// New returns a Systemctl that executes the real systemctl binary.
func New() *Systemctl {
	return &Systemctl{run: execSystemctl}
}

// NewWithRunFunc returns a Systemctl with command execution replaced.
func NewWithRunFunc(run RunFunc) *Systemctl {
	return &Systemctl{run: run}
}

func execSystemctl(ctx context.Context, args ...string) (string, error) {
	command := exec.CommandContext(ctx, "systemctl", args...)
	output, err := command.CombinedOutput()
	if err != nil {
		return string(output), fmt.Errorf("systemctl %s: %w: %s",
			strings.Join(args, " "), err, strings.TrimSpace(string(output)))
	}
	return string(output), nil
}

// DaemonReload makes systemd re-read unit files after an install.
func (s *Systemctl) DaemonReload(ctx context.Context) error {
	_, err := s.run(ctx, "daemon-reload")
	return err
}

// Enable marks the unit for start at boot.
func (s *Systemctl) Enable(ctx context.Context, unit string) error {
	_, err := s.run(ctx, "enable", unit)
	return err
}

// Start starts the unit. The call returns as soon as systemd accepts
// the job; the service may still be initializing (callers that need the
// unit settled wait and re-check with IsActive).
func (s *Systemctl) Start(ctx context.Context, unit string) error {
	_, err := s.run(ctx, "start", unit)
	return err
}

// Status returns the human-readable "systemctl status" output for the
// unit. systemctl exits non-zero for inactive units while still
// printing useful output, so the output is returned even on error.
func (s *Systemctl) Status(ctx context.Context, unit string) (string, error) {
	output, err := s.run(ctx, "status", "--no-pager", unit)
	return output, err
}

// IsActive returns the unit's activation state and whether it counts as
// running. "active" and "activating" both count: a service that systemd
// is still bringing up is not a failure. The raw state string
// ("inactive", "failed", ...) feeds verification messages. systemctl
// exits non-zero for any state other than active, so the error is
// folded into the state rather than returned.
func (s *Systemctl) IsActive(ctx context.Context, unit string) (state string, active bool) {
	output, _ := s.run(ctx, "is-active", unit)
	state = strings.TrimSpace(output)
	if state == "" {
		return "unknown", false
	}
	return state, state == "active" || state == "activating"
}

// IsEnabled reports whether the unit is enabled for boot.
func (s *Systemctl) IsEnabled(ctx context.Context, unit string) bool {
	output, _ := s.run(ctx, "is-enabled", unit)
	return strings.TrimSpace(output) == "enabled"
}
