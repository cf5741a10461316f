// Copyright 2026 The Fridgecam Authors
// SPDX-License-Identifier: Apache-2.0

package verify

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/fridgelab/fridgecam/cmd/fridgecam/cli"
	"github.com/fridgelab/fridgecam/cmd/fridgecam/cli/doctor"
	"github.com/fridgelab/fridgecam/lib/config"
	"github.com/fridgelab/fridgecam/lib/envfile"
	"github.com/spf13/pflag"
)

// commandParams holds the parameters for the verify command.
type commandParams struct {
	cli.JSONOutput

	// Config is an explicit provision.yaml path.
	Config string `flag:"config" desc:"path to provision.yaml"`

	// CheckTimeout bounds each layer. Zero means the configured value
	// (default 10s).
	CheckTimeout time.Duration `flag:"check-timeout" desc:"per-layer timeout (0 = configured value)"`

	// Watch reruns the pipeline continuously in a live terminal view.
	Watch bool `flag:"watch" desc:"rerun continuously in a live view"`

	// Interval is the watch-mode refresh cadence.
	Interval time.Duration `flag:"interval" desc:"watch mode refresh interval" default:"5s"`
}

// Command returns the "fridgecam verify" command.
func Command() *cli.Command {
	var params commandParams

	return &cli.Command{
		Name:    "verify",
		Summary: "Verify the device chain, tunnel binary to public endpoint",
		Description: `Run the nine verification layers in dependency order: tunnel binary,
both systemd units, local liveness and health endpoints, camera
hardware, database connectivity (as reported by the service), tunnel
registration, and the public HTTPS endpoint.

Every layer is advisory except the first: a missing tunnel binary
aborts the pipeline and exits non-zero, because nothing downstream is
meaningful without it. Failed services or unreachable endpoints are
reported with the command to diagnose them and never change the exit
code — the report is for a human fixing a device, not a CI gate.`,
		Usage: "fridgecam verify [flags]",
		Examples: []cli.Example{
			{
				Description: "Full verification with the human-readable checklist",
				Command:     "fridgecam verify",
			},
			{
				Description: "Machine-readable report for scripts",
				Command:     "fridgecam verify --json",
			},
			{
				Description: "Give slow layers more room (first boot, cold DNS)",
				Command:     "fridgecam verify --check-timeout 30s",
			},
			{
				Description: "Live view while reseating a cable",
				Command:     "fridgecam verify --watch",
			},
		},
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("verify", &params)
		},
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) > 0 {
				return cli.Validation("unexpected argument: %s", args[0])
			}
			if params.Watch && params.OutputJSON {
				return cli.Validation("--watch and --json are mutually exclusive")
			}

			cfg, err := loadConfig(params.Config)
			if err != nil {
				return err
			}

			timeout := cfg.CheckTimeout()
			if params.CheckTimeout > 0 {
				timeout = params.CheckTimeout
			}

			if params.Watch {
				return runWatch(ctx, cfg, logger, timeout, params.Interval)
			}

			env, err := envfile.ReadOrEmpty(cfg.Paths.EnvFile)
			if err != nil {
				return cli.Internal("reading %s: %v", cfg.Paths.EnvFile, err)
			}

			pipeline := newPipeline(cfg, env, logger)
			results := pipeline.Run(ctx, timeout)

			if done, emitErr := params.EmitJSON(doctor.BuildJSON(results)); done {
				if emitErr != nil {
					return emitErr
				}
				if doctor.AnyFatal(results) {
					return &cli.ExitError{Code: 1}
				}
				return nil
			}

			checklistError := doctor.PrintChecklist(os.Stdout, results)
			pipeline.printSummary(os.Stdout, results)
			return checklistError
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

// printSummary prints the URLs and log commands an operator reaches for
// after reading the checklist. Skipped when the pipeline aborted at
// layer 1 — there is nothing to reach for yet.
func (p *pipeline) printSummary(w io.Writer, results []doctor.Result) {
	if doctor.AnyFatal(results) {
		return
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Local:   %s/test\n", p.baseURL())
	if domain := p.env.Domain(); domain != "" {
		fmt.Fprintf(w, "Remote:  https://%s/test\n", domain)
	}
	fmt.Fprintf(w, "Logs:    journalctl -u %s -f\n", p.cfg.Services.TunnelUnit)
	fmt.Fprintf(w, "         journalctl -u %s -f\n", p.cfg.Services.CameraUnit)
}
