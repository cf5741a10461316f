// Copyright 2026 The Fridgecam Authors
// SPDX-License-Identifier: Apache-2.0

package services

import (
	"context"
	"log/slog"
	"os"

	"github.com/fridgelab/fridgecam/cmd/fridgecam/cli"
	"github.com/fridgelab/fridgecam/lib/config"
	"github.com/spf13/pflag"
)

// commandParams holds the parameters for the install-services command.
type commandParams struct {
	// Config is an explicit provision.yaml path.
	Config string `flag:"config" desc:"path to provision.yaml"`

	// NoStart installs and enables the units without starting them,
	// for image-bake workflows where the device boots later.
	NoStart bool `flag:"no-start" desc:"install and enable units without starting them"`
}

// Command returns the "fridgecam install-services" command.
func Command() *cli.Command {
	var params commandParams

	return &cli.Command{
		Name:    "install-services",
		Summary: "Install, enable, and start the systemd units",
		Description: `Write the cloudflared and camera server unit files into the systemd
unit directory, reload the daemon, enable both for boot, and start
them: tunnel first, then the camera server after a settle interval.

Existing unit files are backed up to <name>.bak before the overwrite.
The command elevates itself via sudo when run unprivileged, forwarding
the original arguments; it never attempts elevation twice.`,
		Usage: "fridgecam install-services [flags]",
		Examples: []cli.Example{
			{
				Description: "Install and start both services (elevates as needed)",
				Command:     "fridgecam install-services",
			},
			{
				Description: "Bake an image: install units but leave them stopped",
				Command:     "fridgecam install-services --no-start",
			},
		},
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("install-services", &params)
		},
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) > 0 {
				return cli.Validation("unexpected argument: %s", args[0])
			}

			cfg, err := loadConfig(params.Config)
			if err != nil {
				return err
			}

			installer := newServiceInstaller(cfg, logger)
			installer.noStart = params.NoStart
			return installer.Run(ctx, os.Args)
		},
	}
}

// loadConfig resolves the tool configuration from an explicit path or
// the standard lookup chain.
func loadConfig(path string) (*config.Config, error) {
	var cfg *config.Config
	var err error
	if path != "" {
		cfg, err = config.LoadFile(path)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, cli.Internal("loading configuration: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, cli.Validation("invalid configuration: %v", err)
	}
	return cfg, nil
}
