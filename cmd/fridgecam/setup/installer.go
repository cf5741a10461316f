// Copyright 2026 The Fridgecam Authors
// SPDX-License-Identifier: Apache-2.0

package setup

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"os/user"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/fridgelab/fridgecam/cmd/fridgecam/cli"
	"github.com/fridgelab/fridgecam/lib/camsettings"
	"github.com/fridgelab/fridgecam/lib/config"
	"github.com/fridgelab/fridgecam/lib/content"
	"github.com/fridgelab/fridgecam/lib/digest"
	"github.com/fridgelab/fridgecam/lib/diskfree"
	"github.com/fridgelab/fridgecam/lib/hwinfo"
	"github.com/fridgelab/fridgecam/lib/tunnel"
)

// runFunc executes an external command and returns its combined output.
type runFunc func(ctx context.Context, name string, args ...string) (string, error)

// installer holds the dependencies of the bootstrap steps. The exec,
// ownership, and download functions are injectable so tests can run the
// full step sequence against a temp directory without root.
type installer struct {
	cfg    *config.Config
	logger *slog.Logger

	// run executes external commands (apt-get, python3, pip). Nil
	// means real exec.
	run runFunc

	// resolveUser maps the service user name to numeric IDs. Nil means
	// os/user lookup.
	resolveUser func(name string) (uid, gid int, err error)

	// chown applies ownership to a single path. Nil means os.Lchown.
	chown func(path string, uid, gid int) error

	// fetch downloads url into the file at dest. Nil means an HTTP
	// download with a temp-file + rename finish.
	fetch func(ctx context.Context, url, dest string) error

	// skipDownload disables the cloudflared download step.
	skipDownload bool
}

// newInstaller returns an installer wired to the real system.
func newInstaller(cfg *config.Config, logger *slog.Logger) *installer {
	return &installer{cfg: cfg, logger: logger}
}

// Run executes the bootstrap steps in order. Steps before the artifact
// check may leave durable state behind (packages, directories, the
// venv); that state is correct whether or not the run completes, so an
// abort never rolls anything back.
func (i *installer) Run(ctx context.Context) error {
	host := hwinfo.Probe()
	i.logger.Info("provisioning host",
		"model", host.Model,
		"kernel", host.KernelVersion,
		"memory_mb", host.MemoryTotalMB)

	if err := i.ensureSystemPackages(ctx); err != nil {
		return err
	}
	if err := i.ensureProjectDirectories(); err != nil {
		return err
	}
	if err := i.ensurePythonEnvironment(ctx); err != nil {
		return err
	}
	if err := i.checkRequiredArtifact(); err != nil {
		return err
	}
	if err := i.setPermissionsAndOwnership(); err != nil {
		return err
	}
	if err := i.ensureTunnelBinary(ctx); err != nil {
		return err
	}
	if err := i.seedDefaultFiles(); err != nil {
		return err
	}
	i.checkCameraSettings()
	i.reportDiskFree()

	i.logger.Info("setup complete",
		"app", i.cfg.Paths.App,
		"next", "fridgecam install-services")
	return nil
}

// execRun dispatches to the injected run function or real exec.
func (i *installer) execRun(ctx context.Context, name string, args ...string) (string, error) {
	if i.run != nil {
		return i.run(ctx, name, args...)
	}
	command := exec.CommandContext(ctx, name, args...)
	output, err := command.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("%s %s: %w: %s",
			name, strings.Join(args, " "), err, strings.TrimSpace(string(output)))
	}
	return string(output), nil
}

// ensureSystemPackages installs the pinned apt sets. The required list
// is installed in one transaction and a failure is an error; optional
// packages (camera userland tools) are attempted one at a time and a
// failure degrades to a logged warning.
func (i *installer) ensureSystemPackages(ctx context.Context) error {
	if required := i.cfg.Packages.Apt; len(required) > 0 {
		i.logger.Info("installing system packages", "packages", strings.Join(required, ", "))
		args := append([]string{"install", "-y"}, required...)
		if _, err := i.execRun(ctx, "apt-get", args...); err != nil {
			return cli.Internal("installing required packages: %v", err)
		}
	}

	for _, pkg := range i.cfg.Packages.AptOptional {
		if _, err := i.execRun(ctx, "apt-get", "install", "-y", pkg); err != nil {
			i.logger.Warn("optional package install failed", "package", pkg, "error", err)
			continue
		}
		i.logger.Info("installed optional package", "package", pkg)
	}
	return nil
}

// ensureProjectDirectories creates the application, data, and log
// directories. Existing directories are left untouched.
func (i *installer) ensureProjectDirectories() error {
	for _, dir := range []string{i.cfg.Paths.App, i.cfg.Paths.Data, i.cfg.Paths.Log} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return cli.Internal("creating directory %s: %v", dir, err)
		}
		i.logger.Info("directory ready", "path", dir)
	}
	return nil
}

// ensurePythonEnvironment creates the virtual environment when absent
// and installs the pinned pip requirements. A missing requirements file
// is a warning, not an error — the artifact check right after is the
// gate on a usable deployment.
func (i *installer) ensurePythonEnvironment(ctx context.Context) error {
	venvPython := filepath.Join(i.cfg.Paths.Venv, "bin", "python")
	if _, err := os.Stat(venvPython); err != nil {
		i.logger.Info("creating Python virtual environment", "path", i.cfg.Paths.Venv)
		if _, err := i.execRun(ctx, "python3", "-m", "venv", i.cfg.Paths.Venv); err != nil {
			return cli.Internal("creating venv: %v", err)
		}
	} else {
		i.logger.Info("virtual environment present", "path", i.cfg.Paths.Venv)
	}

	if _, err := os.Stat(i.cfg.Paths.Requirements); err != nil {
		i.logger.Warn("pip requirements not found; skipping Python dependencies",
			"path", i.cfg.Paths.Requirements)
		return nil
	}

	pip := filepath.Join(i.cfg.Paths.Venv, "bin", "pip")
	i.logger.Info("installing Python dependencies", "requirements", i.cfg.Paths.Requirements)
	if _, err := i.execRun(ctx, pip, "install", "-r", i.cfg.Paths.Requirements); err != nil {
		return cli.Internal("installing Python dependencies: %v", err)
	}
	return nil
}

// checkRequiredArtifact verifies the deployable camera server exists.
// This is the fatal precondition: without the artifact there is nothing
// to supervise, so setup aborts before permissions and services. The
// artifact's digest is logged so operators can correlate what is on the
// device with what they deployed.
func (i *installer) checkRequiredArtifact() error {
	hash, size, err := digest.File(i.cfg.Paths.Artifact)
	if err != nil {
		if os.IsNotExist(err) {
			return cli.Structural("deployable artifact missing: %s", i.cfg.Paths.Artifact).
				WithHint("copy the camera server into place, then rerun: fridgecam setup")
		}
		return cli.Internal("reading artifact %s: %v", i.cfg.Paths.Artifact, err)
	}
	i.logger.Info("deployable artifact present",
		"path", i.cfg.Paths.Artifact,
		"bytes", size,
		"blake3", digest.Format(hash))
	return nil
}

// setPermissionsAndOwnership marks the artifact executable and hands
// the application tree to the service user. Runs only after the
// artifact check passed.
func (i *installer) setPermissionsAndOwnership() error {
	if err := os.Chmod(i.cfg.Paths.Artifact, 0o755); err != nil {
		return cli.Internal("marking artifact executable: %v", err)
	}

	uid, gid, err := i.lookupUser(i.cfg.Services.User)
	if err != nil {
		return cli.Internal("resolving service user %q: %v", i.cfg.Services.User, err)
	}

	for _, dir := range []string{i.cfg.Paths.App, i.cfg.Paths.Data, i.cfg.Paths.Log} {
		if dir == "" {
			continue
		}
		if err := i.chownTree(dir, uid, gid); err != nil {
			return cli.Internal("normalizing ownership of %s: %v", dir, err)
		}
	}

	i.logger.Info("permissions normalized",
		"artifact", i.cfg.Paths.Artifact,
		"owner", i.cfg.Services.User)
	return nil
}

// lookupUser dispatches to the injected resolver or os/user.
func (i *installer) lookupUser(name string) (int, int, error) {
	if i.resolveUser != nil {
		return i.resolveUser(name)
	}
	account, err := user.Lookup(name)
	if err != nil {
		return 0, 0, err
	}
	uid, err := strconv.Atoi(account.Uid)
	if err != nil {
		return 0, 0, fmt.Errorf("parse uid %q: %w", account.Uid, err)
	}
	gid, err := strconv.Atoi(account.Gid)
	if err != nil {
		return 0, 0, fmt.Errorf("parse gid %q: %w", account.Gid, err)
	}
	return uid, gid, nil
}

// chownTree applies ownership to a directory and everything within.
// File modes are left alone — the env file keeps its restrictive mode.
func (i *installer) chownTree(root string, uid, gid int) error {
	chown := i.chown
	if chown == nil {
		chown = os.Lchown
	}
	return filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if chownErr := chown(path, uid, gid); chownErr != nil {
			return fmt.Errorf("chown %s: %w", path, chownErr)
		}
		return nil
	})
}

// ensureTunnelBinary checks for cloudflared and downloads the release
// artifact when it is absent. Existence is the only criterion — no
// version comparison. A failed download is a warning: verification
// layer 1 reports the missing binary and the operator can install it
// through any channel.
func (i *installer) ensureTunnelBinary(ctx context.Context) error {
	if resolved, ok := tunnel.BinaryPresent(i.cfg.Tunnel.Binary); ok {
		i.logger.Info("tunnel binary present", "binary", resolved)
		return nil
	}
	if i.skipDownload {
		i.logger.Warn("tunnel binary absent and download skipped",
			"binary", i.cfg.Tunnel.Binary)
		return nil
	}
	if i.cfg.Tunnel.DownloadURL == "" {
		i.logger.Warn("tunnel binary absent and no download URL configured",
			"binary", i.cfg.Tunnel.Binary)
		return nil
	}

	dest := i.cfg.Tunnel.Binary
	if !filepath.IsAbs(dest) {
		dest = filepath.Join("/usr/local/bin", dest)
	}

	i.logger.Info("downloading tunnel binary",
		"url", i.cfg.Tunnel.DownloadURL, "dest", dest)
	if err := i.fetchBinary(ctx, i.cfg.Tunnel.DownloadURL, dest); err != nil {
		i.logger.Warn("tunnel binary download failed; install it manually",
			"error", err)
		return nil
	}
	i.logger.Info("tunnel binary installed", "path", dest)
	return nil
}

// seedDefaultFiles writes the embedded environment file and camera
// settings when they are absent. Existing files are never overwritten —
// they hold operator-entered secrets and tuning.
func (i *installer) seedDefaultFiles() error {
	seeds := []struct {
		path string
		data []byte
		mode os.FileMode
	}{
		// The env file carries the API key; keep it private.
		{i.cfg.Paths.EnvFile, []byte(content.DefaultEnvFile()), 0o600},
		{i.cfg.Paths.Settings, []byte(content.DefaultCameraSettings()), 0o644},
	}

	for _, seed := range seeds {
		if seed.path == "" {
			continue
		}
		if _, err := os.Stat(seed.path); err == nil {
			i.logger.Info("config file present, not overwriting", "path", seed.path)
			continue
		} else if !os.IsNotExist(err) {
			return cli.Internal("checking %s: %v", seed.path, err)
		}
		if err := os.MkdirAll(filepath.Dir(seed.path), 0o755); err != nil {
			return cli.Internal("creating directory for %s: %v", seed.path, err)
		}
		if err := os.WriteFile(seed.path, seed.data, seed.mode); err != nil {
			return cli.Internal("seeding %s: %v", seed.path, err)
		}
		i.logger.Info("seeded default config file", "path", seed.path)
	}
	return nil
}

// checkCameraSettings parses the settings document and logs anything
// suspect. Advisory only: the camera service owns interpretation, but
// a typo'd resolution is cheaper to hear about now than after the
// first blurry capture.
func (i *installer) checkCameraSettings() {
	path := i.cfg.Paths.Settings
	if path == "" {
		return
	}
	settings, err := camsettings.ReadFile(path)
	if err != nil {
		i.logger.Warn("camera settings unreadable", "path", path, "error", err)
		return
	}
	for _, issue := range camsettings.Validate(settings) {
		i.logger.Warn("camera settings issue", "path", path, "issue", issue)
	}
}

// reportDiskFree logs available space on the data volume. Informational
// only: capture retention is the camera service's concern, but an
// almost-full card is worth surfacing during provisioning.
func (i *installer) reportDiskFree() {
	usage, err := diskfree.Stat(i.cfg.Paths.Data)
	if err != nil {
		i.logger.Warn("cannot stat data volume", "path", i.cfg.Paths.Data, "error", err)
		return
	}
	i.logger.Info("data volume space", "path", i.cfg.Paths.Data, "disk", usage.String())
}
