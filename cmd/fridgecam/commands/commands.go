// Copyright 2026 The Fridgecam Authors
// SPDX-License-Identifier: Apache-2.0

// Package commands builds the complete fridgecam CLI command tree.
// The binary's main imports this package; tests import it to exercise
// dispatch against the real tree.
package commands

import (
	"context"
	"fmt"
	"log/slog"

	bundlecmd "github.com/fridgelab/fridgecam/cmd/fridgecam/bundle"
	cameracmd "github.com/fridgelab/fridgecam/cmd/fridgecam/camera"
	"github.com/fridgelab/fridgecam/cmd/fridgecam/cli"
	docscmd "github.com/fridgelab/fridgecam/cmd/fridgecam/docs"
	envcmd "github.com/fridgelab/fridgecam/cmd/fridgecam/env"
	servicescmd "github.com/fridgelab/fridgecam/cmd/fridgecam/services"
	setupcmd "github.com/fridgelab/fridgecam/cmd/fridgecam/setup"
	verifycmd "github.com/fridgelab/fridgecam/cmd/fridgecam/verify"
	"github.com/fridgelab/fridgecam/lib/version"
)

// Root builds and returns the complete fridgecam CLI command tree.
func Root() *cli.Command {
	return &cli.Command{
		Name: "fridgecam",
		Description: `Fridgecam: camera edge device provisioning and verification.

Turn a bare Raspberry Pi into a supervised, remotely reachable camera
server: install packages and the Python runtime, register systemd
units, and verify the whole chain from local process to public tunnel
endpoint.`,
		Subcommands: []*cli.Command{
			setupcmd.Command(),
			servicescmd.Command(),
			verifycmd.Command(),
			envcmd.Command(),
			cameracmd.CaptureCommand(),
			cameracmd.FocusCommand(),
			bundlecmd.Command(),
			docscmd.Command(),
			{
				Name:    "version",
				Summary: "Print version information",
				Run: func(_ context.Context, args []string, _ *slog.Logger) error {
					fmt.Printf("fridgecam %s\n", version.Full())
					return nil
				},
			},
		},
		Examples: []cli.Example{
			{
				Description: "Bootstrap a fresh device (packages, directories, venv)",
				Command:     "fridgecam setup",
			},
			{
				Description: "Install and start the systemd units (elevates via sudo)",
				Command:     "fridgecam install-services",
			},
			{
				Description: "Verify the full chain, local process to public endpoint",
				Command:     "fridgecam verify",
			},
			{
				Description: "Machine-readable verification report",
				Command:     "fridgecam verify --json",
			},
			{
				Description: "Watch verification results live while diagnosing",
				Command:     "fridgecam verify --watch",
			},
			{
				Description: "Show the effective device environment (API key redacted)",
				Command:     "fridgecam env",
			},
			{
				Description: "Grab a frame from the camera server",
				Command:     "fridgecam capture --output frame.jpg",
			},
			{
				Description: "Collect a diagnostic bundle for support",
				Command:     "fridgecam bundle",
			},
			{
				Description: "Read the operator runbook in the terminal",
				Command:     "fridgecam docs",
			},
		},
	}
}
