// Copyright 2026 The Fridgecam Authors
// SPDX-License-Identifier: Apache-2.0

package services

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/fridgelab/fridgecam/cmd/fridgecam/cli"
	"github.com/fridgelab/fridgecam/lib/config"
	"github.com/fridgelab/fridgecam/lib/content"
	"github.com/fridgelab/fridgecam/lib/elevate"
	"github.com/fridgelab/fridgecam/lib/systemd"
)

// serviceInstaller holds the dependencies of the install sequence. The
// elevation, systemctl, and sleep functions are injectable so tests can
// drive the whole sequence without root or a live systemd.
type serviceInstaller struct {
	cfg    *config.Config
	logger *slog.Logger

	// ensure obtains root, re-executing under sudo at most once. Nil
	// means the real elevator.
	ensure func(args []string) error

	// systemctl drives unit state. Nil means the real binary.
	systemctl *systemd.Systemctl

	// sleep waits out the settle interval between the two unit starts.
	// Nil means time.Sleep.
	sleep func(d time.Duration)

	// hasSystemd reports whether systemd is the running init. Nil means
	// the real /run/systemd/system probe.
	hasSystemd func() bool

	// noStart installs and enables without starting.
	noStart bool
}

// newServiceInstaller returns an installer wired to the real system.
func newServiceInstaller(cfg *config.Config, logger *slog.Logger) *serviceInstaller {
	return &serviceInstaller{cfg: cfg, logger: logger}
}

// Run installs both units and brings them up. args is the original
// argument list (os.Args), forwarded unchanged through the elevation
// re-exec.
func (s *serviceInstaller) Run(ctx context.Context, args []string) error {
	hasSystemd := s.hasSystemd
	if hasSystemd == nil {
		hasSystemd = s.cfg.HasSystemd
	}
	if !hasSystemd() {
		return cli.Structural("systemd is not the running init (no /run/systemd/system)").
			WithHint("install-services only supports systemd hosts; start the camera server manually")
	}

	ensure := s.ensure
	if ensure == nil {
		ensure = elevate.New().Ensure
	}
	if err := ensure(args); err != nil {
		return cli.Elevation("cannot obtain root: %v", err)
	}

	if err := s.installUnits(); err != nil {
		return err
	}
	return s.startUnits(ctx)
}

// installUnits writes both unit files, backing up anything they
// replace.
func (s *serviceInstaller) installUnits() error {
	units := []systemd.Unit{
		{Name: s.cfg.Services.TunnelUnit, Content: []byte(content.TunnelServiceUnit())},
		{Name: s.cfg.Services.CameraUnit, Content: []byte(content.ServerServiceUnit())},
	}

	for _, unit := range units {
		result, err := systemd.InstallUnit(s.cfg.Paths.UnitDir, unit)
		if err != nil {
			return cli.Internal("installing unit %s: %v", unit.Name, err)
		}
		if result.BackedUp {
			s.logger.Info("unit installed, previous file preserved",
				"unit", unit.Name, "path", result.Path, "backup", result.BackupPath)
		} else {
			s.logger.Info("unit installed", "unit", unit.Name, "path", result.Path)
		}
	}
	return nil
}

// startUnits reloads systemd, enables both units, and starts them in
// order: tunnel first, settle, then camera. A tunnel start failure is
// recorded and the camera still starts — the ordering is a courtesy to
// the tunnel's registration handshake, not a dependency. The camera
// start is the final gating command; its failure decides the exit code.
func (s *serviceInstaller) startUnits(ctx context.Context) error {
	systemctl := s.systemctl
	if systemctl == nil {
		systemctl = systemd.New()
	}

	if err := systemctl.DaemonReload(ctx); err != nil {
		return cli.Internal("daemon-reload: %v", err)
	}

	tunnelUnit := s.cfg.Services.TunnelUnit
	cameraUnit := s.cfg.Services.CameraUnit

	for _, unit := range []string{tunnelUnit, cameraUnit} {
		if err := systemctl.Enable(ctx, unit); err != nil {
			return cli.ServiceState("enabling %s: %v", unit, err)
		}
		s.logger.Info("unit enabled for boot", "unit", unit)
	}

	if s.noStart {
		s.logger.Info("units installed and enabled; start skipped", "reason", "--no-start")
		return nil
	}

	if err := systemctl.Start(ctx, tunnelUnit); err != nil {
		s.logger.Warn("tunnel unit failed to start; continuing with camera",
			"unit", tunnelUnit, "error", err)
	} else {
		s.logger.Info("unit started", "unit", tunnelUnit)
	}

	settle := s.cfg.SettleInterval()
	sleep := s.sleep
	if sleep == nil {
		sleep = time.Sleep
	}
	s.logger.Info("settling before camera start", "interval", settle)
	sleep(settle)

	if err := systemctl.Start(ctx, cameraUnit); err != nil {
		return cli.ServiceState("starting %s: %v", cameraUnit, err).
			WithHint(fmt.Sprintf("journalctl -u %s -n 50", cameraUnit))
	}
	s.logger.Info("unit started", "unit", cameraUnit)

	s.reportStatus(ctx, systemctl, tunnelUnit, cameraUnit)

	s.logger.Info("services installed",
		"next", "fridgecam verify")
	return nil
}

// reportStatus prints best-effort status for both units. systemctl
// status exits non-zero for degraded units while still printing useful
// output, so a status error is shown, never fatal.
func (s *serviceInstaller) reportStatus(ctx context.Context, systemctl *systemd.Systemctl, units ...string) {
	for _, unit := range units {
		output, err := systemctl.Status(ctx, unit)
		if err != nil {
			s.logger.Warn("status check degraded", "unit", unit, "error", err)
		}
		if output != "" {
			fmt.Fprintln(os.Stdout, output)
		}
	}
}
