// Copyright 2026 The Fridgecam Authors
// SPDX-License-Identifier: Apache-2.0

package setup

import (
	"context"
	"log/slog"

	"github.com/fridgelab/fridgecam/cmd/fridgecam/cli"
	"github.com/fridgelab/fridgecam/lib/config"
	"github.com/spf13/pflag"
)

// commandParams holds the parameters for the setup command.
type commandParams struct {
	// Config is an explicit provision.yaml path. Empty means the
	// standard lookup: $FRIDGECAM_CONFIG, then /etc/fridgecam, then
	// built-in Raspberry Pi defaults.
	Config string `flag:"config" desc:"path to provision.yaml"`

	// SkipDownload disables the cloudflared download for hosts that
	// install it through their own package channel.
	SkipDownload bool `flag:"skip-download" desc:"do not download cloudflared when absent"`
}

// Command returns the "fridgecam setup" command.
func Command() *cli.Command {
	var params commandParams

	return &cli.Command{
		Name:    "setup",
		Summary: "Bootstrap the device: packages, directories, Python runtime",
		Description: `Provision a bare host for the camera service: install the pinned
system packages, create the application directories, build the Python
virtual environment, and normalize permissions.

The one fatal condition is a missing deployable artifact
(rpi_camera_server.py): setup aborts with exit 1 before touching
permissions or services, because registering a unit around a file that
does not exist would supervise nothing. Everything else converges —
rerunning setup on a provisioned host changes nothing.

Run as root: package installation and ownership changes need it.`,
		Usage: "fridgecam setup [flags]",
		Examples: []cli.Example{
			{
				Description: "Provision with the built-in Raspberry Pi defaults",
				Command:     "sudo fridgecam setup",
			},
			{
				Description: "Provision against a custom layout",
				Command:     "sudo fridgecam setup --config ./provision.yaml",
			},
		},
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("setup", &params)
		},
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) > 0 {
				return cli.Validation("unexpected argument: %s", args[0])
			}

			cfg, err := loadConfig(params.Config)
			if err != nil {
				return err
			}

			installer := newInstaller(cfg, logger)
			installer.skipDownload = params.SkipDownload
			return installer.Run(ctx)
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
