// Copyright 2026 The Fridgecam Authors
// SPDX-License-Identifier: Apache-2.0

package bundle

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/fridgelab/fridgecam/cmd/fridgecam/cli/doctor"
	"github.com/fridgelab/fridgecam/cmd/fridgecam/verify"
	bundlelib "github.com/fridgelab/fridgecam/lib/bundle"
	"github.com/fridgelab/fridgecam/lib/config"
	"github.com/fridgelab/fridgecam/lib/content"
	"github.com/fridgelab/fridgecam/lib/digest"
	"github.com/fridgelab/fridgecam/lib/diskfree"
	"github.com/fridgelab/fridgecam/lib/envfile"
	"github.com/fridgelab/fridgecam/lib/hwinfo"
	"github.com/fridgelab/fridgecam/lib/version"
)

// journalTailLines is how much history per unit goes into a bundle.
// Enough to cover a few crash loops without making archives heavy.
const journalTailLines = "200"

// runFunc executes a command and returns its combined output. Tests
// substitute a fake; nil means real execution.
type runFunc func(ctx context.Context, name string, args ...string) (string, error)

// gatherer collects the members of a diagnostic bundle. Collection is
// best-effort throughout: a missing journal or settings file becomes a
// note inside the bundle, never an aborted archive — a support bundle
// from a broken device is exactly the point.
type gatherer struct {
	cfg    *config.Config
	logger *slog.Logger

	// run executes journalctl. Nil means the real binary.
	run runFunc

	// report produces the verification results to embed. Nil means a
	// real pipeline pass.
	report func(ctx context.Context, env *envfile.Env) []doctor.Result

	now func() time.Time
}

func newGatherer(cfg *config.Config, logger *slog.Logger) *gatherer {
	return &gatherer{cfg: cfg, logger: logger, now: time.Now}
}

// unitRecord describes one service unit for units/manifest.json:
// the digest the tool ships versus what is installed on disk.
type unitRecord struct {
	Name            string `json:"name"`
	ShippedDigest   string `json:"shipped_digest"`
	Installed       bool   `json:"installed"`
	InstalledDigest string `json:"installed_digest,omitempty"`
	Modified        bool   `json:"modified"`
}

// systemInfo is the system.json member.
type systemInfo struct {
	Tool      string          `json:"tool"`
	GoVersion string          `json:"go_version"`
	OS        string          `json:"os"`
	Arch      string          `json:"arch"`
	CreatedAt time.Time       `json:"created_at"`
	DataDir   string          `json:"data_dir"`
	DiskFree  string          `json:"disk_free,omitempty"`
	Host      hwinfo.HostInfo `json:"host"`
}

// gather assembles all bundle members in a stable order.
func (g *gatherer) gather(ctx context.Context) ([]bundlelib.File, error) {
	env, err := envfile.ReadOrEmpty(g.cfg.Paths.EnvFile)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", g.cfg.Paths.EnvFile, err)
	}

	var files []bundlelib.File

	report, err := g.verifyReport(ctx, env)
	if err != nil {
		return nil, err
	}
	files = append(files, bundlelib.File{Name: "verify.json", Data: report})

	files = append(files, bundlelib.File{Name: "fridgecam.env", Data: g.redactedEnv(env)})

	unitFiles, err := g.unitFiles()
	if err != nil {
		return nil, err
	}
	files = append(files, unitFiles...)

	for _, unit := range []string{g.cfg.Services.TunnelUnit, g.cfg.Services.CameraUnit} {
		files = append(files, bundlelib.File{
			Name: "journal/" + unit + ".log",
			Data: g.journalTail(ctx, unit),
		})
	}

	files = append(files, bundlelib.File{Name: "camera-settings.jsonc", Data: g.settings()})

	system, err := g.systemInfo()
	if err != nil {
		return nil, err
	}
	files = append(files, bundlelib.File{Name: "system.json", Data: system})

	return files, nil
}

// verifyReport runs the verification pipeline and encodes its JSON
// report form.
func (g *gatherer) verifyReport(ctx context.Context, env *envfile.Env) ([]byte, error) {
	report := g.report
	if report == nil {
		report = func(ctx context.Context, env *envfile.Env) []doctor.Result {
			return verify.Report(ctx, g.cfg, env, g.logger, g.cfg.CheckTimeout())
		}
	}
	results := report(ctx, env)
	data, err := json.MarshalIndent(doctor.BuildJSON(results), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding verification report: %w", err)
	}
	return data, nil
}

// redactedEnv renders the env file with secrets masked, in file order.
func (g *gatherer) redactedEnv(env *envfile.Env) []byte {
	entries := env.Redacted()
	if len(entries) == 0 {
		return []byte("# " + g.cfg.Paths.EnvFile + " not present or empty\n")
	}
	var builder strings.Builder
	for _, entry := range entries {
		builder.WriteString(entry.Key + "=" + entry.Value + "\n")
	}
	return []byte(builder.String())
}

// unitFiles returns the installed unit file members plus the manifest
// comparing installed digests against the shipped definitions.
func (g *gatherer) unitFiles() ([]bundlelib.File, error) {
	shipped, err := content.Units()
	if err != nil {
		return nil, fmt.Errorf("loading embedded units: %w", err)
	}

	var files []bundlelib.File
	var records []unitRecord
	for _, unit := range shipped {
		record := unitRecord{Name: unit.Name, ShippedDigest: unit.SourceDigest}

		installed, err := os.ReadFile(filepath.Join(g.cfg.Paths.UnitDir, unit.Name))
		if err == nil {
			record.Installed = true
			record.InstalledDigest = digest.Format(digest.Bytes(installed))
			record.Modified = record.InstalledDigest != record.ShippedDigest
			files = append(files, bundlelib.File{Name: "units/" + unit.Name, Data: installed})
		} else if !os.IsNotExist(err) {
			g.logger.Warn("reading installed unit", "unit", unit.Name, "error", err)
		}
		records = append(records, record)
	}

	manifest, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding unit manifest: %w", err)
	}
	return append([]bundlelib.File{{Name: "units/manifest.json", Data: manifest}}, files...), nil
}

// journalTail fetches the last lines of a unit's journal. Failures are
// recorded inside the member so support sees why the log is missing.
func (g *gatherer) journalTail(ctx context.Context, unit string) []byte {
	output, err := g.execRun(ctx, "journalctl", "-u", unit, "-n", journalTailLines, "--no-pager")
	if err != nil {
		g.logger.Warn("journal tail failed", "unit", unit, "error", err)
		return []byte(fmt.Sprintf("journal unavailable: %v\n", err))
	}
	return []byte(output)
}

// settings returns the camera settings document as the operator wrote
// it, comments included.
func (g *gatherer) settings() []byte {
	data, err := os.ReadFile(g.cfg.Paths.Settings)
	if err != nil {
		if !os.IsNotExist(err) {
			g.logger.Warn("reading camera settings", "path", g.cfg.Paths.Settings, "error", err)
		}
		return []byte("# " + g.cfg.Paths.Settings + " not present\n")
	}
	return data
}

func (g *gatherer) systemInfo() ([]byte, error) {
	info := systemInfo{
		Tool:      "fridgecam " + version.Info(),
		GoVersion: runtime.Version(),
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
		CreatedAt: g.now().UTC(),
		DataDir:   g.cfg.Paths.Data,
		Host:      hwinfo.Probe(),
	}
	if usage, err := diskfree.Stat(g.cfg.Paths.Data); err == nil {
		info.DiskFree = usage.String()
	} else {
		g.logger.Warn("disk usage unavailable", "path", g.cfg.Paths.Data, "error", err)
	}
	data, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding system info: %w", err)
	}
	return data, nil
}

func (g *gatherer) execRun(ctx context.Context, name string, args ...string) (string, error) {
	if g.run != nil {
		return g.run(ctx, name, args...)
	}
	command := exec.CommandContext(ctx, name, args...)
	output, err := command.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("%s %s: %w: %s",
			name, strings.Join(args, " "), err, strings.TrimSpace(string(output)))
	}
	return string(output), nil
}
