// Copyright 2026 The Fridgecam Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath is where provision.yaml lives on a provisioned device.
const DefaultPath = "/etc/fridgecam/provision.yaml"

// Config is the master configuration for the provisioning tool. All
// fields have Raspberry Pi defaults; a config file overrides them
// selectively.
type Config struct {
	// Paths configures file and directory locations on the device.
	Paths PathsConfig `yaml:"paths"`

	// Packages configures the system and Python package sets that
	// setup installs.
	Packages PackagesConfig `yaml:"packages"`

	// Services configures the systemd units and their ordering.
	Services ServicesConfig `yaml:"services"`

	// Tunnel configures the cloudflared binary and tunnel identity.
	Tunnel TunnelConfig `yaml:"tunnel"`

	// Camera configures the capture hardware expectations.
	Camera CameraConfig `yaml:"camera"`

	// Verify configures verification behavior.
	Verify VerifyConfig `yaml:"verify"`
}

// PathsConfig configures file and directory locations.
type PathsConfig struct {
	// App is the application root directory. Other paths may reference
	// it as ${FRIDGECAM_APP}.
	App string `yaml:"app"`

	// Data is where captures and the local database live.
	Data string `yaml:"data"`

	// Log is the service log directory.
	Log string `yaml:"log"`

	// Venv is the Python virtual environment directory.
	Venv string `yaml:"venv"`

	// Artifact is the deployable camera server entry point. Its absence
	// is the one fatal setup condition.
	Artifact string `yaml:"artifact"`

	// Requirements is the pinned pip requirements file.
	Requirements string `yaml:"requirements"`

	// EnvFile is the device environment file shared with the camera
	// service (KEY=VALUE, see lib/envfile).
	EnvFile string `yaml:"env_file"`

	// Settings is the camera settings document (JSONC, see
	// lib/camsettings).
	Settings string `yaml:"settings"`

	// UnitDir is where systemd unit files are installed.
	UnitDir string `yaml:"unit_dir"`
}

// PackagesConfig configures the package sets setup installs.
type PackagesConfig struct {
	// Apt is the required system package list. A failed install of any
	// of these is fatal.
	Apt []string `yaml:"apt"`

	// AptOptional packages are attempted but a failure is recorded and
	// setup continues.
	AptOptional []string `yaml:"apt_optional"`
}

// ServicesConfig configures the systemd units.
type ServicesConfig struct {
	// TunnelUnit is the cloudflared unit name.
	TunnelUnit string `yaml:"tunnel_unit"`

	// CameraUnit is the camera server unit name.
	CameraUnit string `yaml:"camera_unit"`

	// User is the account the camera service runs as and that owns the
	// application tree.
	User string `yaml:"user"`

	// Settle is how long to wait between starting the tunnel unit and
	// the camera unit, as a duration string.
	// Default: 3s
	Settle string `yaml:"settle"`
}

// TunnelConfig configures the cloudflared binary and tunnel identity.
type TunnelConfig struct {
	// Binary is the cloudflared executable: a bare name resolved via
	// PATH or an absolute path.
	Binary string `yaml:"binary"`

	// ConfigDir is where cloudflared keeps its credentials and ingress
	// config. Presence is observed for hints, content never parsed.
	ConfigDir string `yaml:"config_dir"`

	// Name is the tunnel name registered with the edge.
	Name string `yaml:"name"`

	// DownloadURL is the release artifact setup fetches when the binary
	// is absent.
	DownloadURL string `yaml:"download_url"`
}

// CameraConfig configures capture hardware expectations.
type CameraConfig struct {
	// DeviceNode is the video device whose absence degrades (never
	// fails) verification.
	// Default: /dev/video0
	DeviceNode string `yaml:"device_node"`
}

// VerifyConfig configures verification behavior.
type VerifyConfig struct {
	// CheckTimeout bounds each verification layer, as a duration string.
	// Default: 10s
	CheckTimeout string `yaml:"check_timeout"`
}

// Default returns the default configuration: a stock Raspberry Pi OS
// image with the application under /opt/fridgecam.
func Default() *Config {
	return &Config{
		Paths: PathsConfig{
			App:          "/opt/fridgecam",
			Data:         "${FRIDGECAM_APP}/data",
			Log:          "/var/log/fridgecam",
			Venv:         "${FRIDGECAM_APP}/venv",
			Artifact:     "${FRIDGECAM_APP}/rpi_camera_server.py",
			Requirements: "${FRIDGECAM_APP}/requirements.txt",
			EnvFile:      "${FRIDGECAM_APP}/fridgecam.env",
			Settings:     "${FRIDGECAM_APP}/camera-settings.jsonc",
			UnitDir:      "/etc/systemd/system",
		},
		Packages: PackagesConfig{
			Apt: []string{
				"python3-venv",
				"python3-pip",
				"python3-picamera2",
				"ffmpeg",
			},
			AptOptional: []string{
				"v4l-utils",
			},
		},
		Services: ServicesConfig{
			TunnelUnit: "cloudflared.service",
			CameraUnit: "fridgecam-server.service",
			User:       "pi",
			Settle:     "3s",
		},
		Tunnel: TunnelConfig{
			Binary:      "cloudflared",
			ConfigDir:   "${HOME}/.cloudflared",
			Name:        "fridgecam",
			DownloadURL: "https://github.com/cloudflare/cloudflared/releases/latest/download/cloudflared-linux-arm64",
		},
		Camera: CameraConfig{
			DeviceNode: "/dev/video0",
		},
		Verify: VerifyConfig{
			CheckTimeout: "10s",
		},
	}
}

// Load loads configuration from the FRIDGECAM_CONFIG environment
// variable when set, from DefaultPath when that file exists, and
// otherwise returns Default(). Provisioning has to run on a bare image,
// so a missing config file is the normal first-boot case, not an error.
func Load() (*Config, error) {
	if path := os.Getenv("FRIDGECAM_CONFIG"); path != "" {
		return LoadFile(path)
	}
	if _, err := os.Stat(DefaultPath); err == nil {
		return LoadFile(DefaultPath)
	}
	cfg := Default()
	cfg.expandVariables()
	return cfg, nil
}

// LoadFile loads configuration from a specific file path, merging over
// Default(). The config file is the single source of truth; environment
// variables do not override values. The only expansion performed is
// ${HOME}, ${FRIDGECAM_APP}, and ${VAR:-default} patterns in paths.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	cfg.expandVariables()
	return cfg, nil
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in paths.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"FRIDGECAM_APP": c.Paths.App,
		"HOME":          os.Getenv("HOME"),
	}

	c.Paths.App = expandVars(c.Paths.App, vars)
	vars["FRIDGECAM_APP"] = c.Paths.App // Update for dependent paths.

	c.Paths.Data = expandVars(c.Paths.Data, vars)
	c.Paths.Log = expandVars(c.Paths.Log, vars)
	c.Paths.Venv = expandVars(c.Paths.Venv, vars)
	c.Paths.Artifact = expandVars(c.Paths.Artifact, vars)
	c.Paths.Requirements = expandVars(c.Paths.Requirements, vars)
	c.Paths.EnvFile = expandVars(c.Paths.EnvFile, vars)
	c.Paths.Settings = expandVars(c.Paths.Settings, vars)
	c.Paths.UnitDir = expandVars(c.Paths.UnitDir, vars)
	c.Tunnel.ConfigDir = expandVars(c.Tunnel.ConfigDir, vars)
	c.Tunnel.Binary = expandVars(c.Tunnel.Binary, vars)
}

// expandVars expands ${VAR} and ${VAR:-default} patterns.
var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		// Check provided vars first, then environment.
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Paths.App == "" {
		errs = append(errs, fmt.Errorf("paths.app is required"))
	}
	if c.Paths.UnitDir == "" {
		errs = append(errs, fmt.Errorf("paths.unit_dir is required"))
	}
	if c.Paths.Artifact == "" {
		errs = append(errs, fmt.Errorf("paths.artifact is required"))
	}

	if !strings.HasSuffix(c.Services.TunnelUnit, ".service") {
		errs = append(errs, fmt.Errorf("services.tunnel_unit must end in .service: %q", c.Services.TunnelUnit))
	}
	if !strings.HasSuffix(c.Services.CameraUnit, ".service") {
		errs = append(errs, fmt.Errorf("services.camera_unit must end in .service: %q", c.Services.CameraUnit))
	}
	if c.Services.User == "" {
		errs = append(errs, fmt.Errorf("services.user is required"))
	}
	if _, err := time.ParseDuration(c.Services.Settle); c.Services.Settle != "" && err != nil {
		errs = append(errs, fmt.Errorf("services.settle: %w", err))
	}

	if c.Tunnel.Binary == "" {
		errs = append(errs, fmt.Errorf("tunnel.binary is required"))
	}
	if _, err := time.ParseDuration(c.Verify.CheckTimeout); c.Verify.CheckTimeout != "" && err != nil {
		errs = append(errs, fmt.Errorf("verify.check_timeout: %w", err))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// SettleInterval returns the parsed ordering delay between starting the
// tunnel unit and the camera unit. Malformed or absent values fall back
// to 3 seconds.
func (c *Config) SettleInterval() time.Duration {
	d, err := time.ParseDuration(c.Services.Settle)
	if err != nil || d < 0 {
		return 3 * time.Second
	}
	return d
}

// CheckTimeout returns the parsed per-layer verification timeout.
// Malformed or absent values fall back to 10 seconds.
func (c *Config) CheckTimeout() time.Duration {
	d, err := time.ParseDuration(c.Verify.CheckTimeout)
	if err != nil || d <= 0 {
		return 10 * time.Second
	}
	return d
}

// HasSystemd returns true if systemd is the running init system.
func (c *Config) HasSystemd() bool {
	_, err := os.Stat("/run/systemd/system")
	return err == nil
}
