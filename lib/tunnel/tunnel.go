// Copyright 2026 The Fridgecam Authors
// SPDX-License-Identifier: Apache-2.0

// Package tunnel provides typed access to the cloudflared CLI. The
// tunnel itself is an external collaborator: this package installs
// nothing and automates no authentication, it shells out for the
// handful of lifecycle queries provisioning and verification need
// (version, list, create, service install) and reports whether the
// binary and its ingress config are present at all.
//
// The ingress-routing file (config.yml under the cloudflared config
// directory) maps public hostnames to the local service port. Its
// contents are the operator's responsibility; this package only
// observes that the file exists.
package tunnel

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// Descriptor is one row of `cloudflared tunnel list`: a registered
// tunnel as the edge knows it.
type Descriptor struct {
	ID        string
	Name      string
	CreatedAt time.Time
}

// Client is the tunnel lifecycle surface consumed by provisioning and
// verification. Implementations are swappable for test doubles.
type Client interface {
	// Version returns the binary's version string.
	Version(ctx context.Context) (string, error)

	// List returns the tunnels registered for the logged-in account.
	List(ctx context.Context) ([]Descriptor, error)

	// Create registers a new named tunnel.
	Create(ctx context.Context, name string) error

	// ServiceInstall asks the binary to register itself as a
	// supervised system service.
	ServiceInstall(ctx context.Context) error

	// LoginHint returns the one-line instruction for the interactive
	// login step, which is deliberately not automated.
	LoginHint() string
}

// RunFunc executes the tunnel binary with args and returns its
// combined output. Tests substitute a fake.
type RunFunc func(ctx context.Context, args ...string) (string, error)

// Cloudflared is the production [Client] backed by the cloudflared
// binary.
type Cloudflared struct {
	binary string
	run    RunFunc
}

// New returns a client that shells out to the binary at path. An empty
// path means "cloudflared" resolved via PATH.
func New(path string) *Cloudflared {
	if path == "" {
		path = "cloudflared"
	}
	c := &Cloudflared{binary: path}
	c.run = c.execRun
	return c
}

// NewWithRunFunc returns a client whose command execution is handled
// by run. Used by tests.
func NewWithRunFunc(run RunFunc) *Cloudflared {
	return &Cloudflared{binary: "cloudflared", run: run}
}

func (c *Cloudflared) execRun(ctx context.Context, args ...string) (string, error) {
	command := exec.CommandContext(ctx, c.binary, args...)
	output, err := command.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("%s %s: %w: %s",
			filepath.Base(c.binary), strings.Join(args, " "), err,
			strings.TrimSpace(string(output)))
	}
	return string(output), nil
}

// Version returns the binary's version string, trimmed to one line.
func (c *Cloudflared) Version(ctx context.Context) (string, error) {
	output, err := c.run(ctx, "--version")
	if err != nil {
		return "", err
	}
	line, _, _ := strings.Cut(strings.TrimSpace(output), "\n")
	return line, nil
}

// List returns the registered tunnels.
func (c *Cloudflared) List(ctx context.Context) ([]Descriptor, error) {
	output, err := c.run(ctx, "tunnel", "list")
	if err != nil {
		return nil, err
	}
	return ParseList(output), nil
}

// Create registers a new named tunnel. Credentials land wherever the
// binary puts them; this package does not track them.
func (c *Cloudflared) Create(ctx context.Context, name string) error {
	_, err := c.run(ctx, "tunnel", "create", name)
	return err
}

// ServiceInstall runs `cloudflared service install`, which writes and
// enables the binary's own systemd unit.
func (c *Cloudflared) ServiceInstall(ctx context.Context) error {
	_, err := c.run(ctx, "service", "install")
	return err
}

// LoginHint returns the instruction for the interactive browser login.
func (c *Cloudflared) LoginHint() string {
	return fmt.Sprintf("run '%s tunnel login' and authorize the domain in the browser", filepath.Base(c.binary))
}

// ParseList extracts descriptors from `tunnel list` text output. The
// format is a whitespace-aligned table (ID NAME CREATED CONNECTIONS)
// preceded by a header row; accounts with no tunnels print a sentence
// instead. Rows that do not look like table rows are skipped, so a
// warning banner above the table is harmless.
func ParseList(output string) []Descriptor {
	var descriptors []Descriptor
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if fields[0] == "ID" {
			continue
		}
		if len(fields) < 2 || !looksLikeTunnelID(fields[0]) {
			continue
		}
		descriptor := Descriptor{ID: fields[0], Name: fields[1]}
		if len(fields) >= 3 {
			if created, err := time.Parse(time.RFC3339, fields[2]); err == nil {
				descriptor.CreatedAt = created
			}
		}
		descriptors = append(descriptors, descriptor)
	}
	return descriptors
}

// looksLikeTunnelID reports whether s has the shape of a tunnel UUID:
// hex groups joined by hyphens, 36 bytes total.
func looksLikeTunnelID(s string) bool {
	if len(s) != 36 {
		return false
	}
	for i, r := range s {
		switch i {
		case 8, 13, 18, 23:
			if r != '-' {
				return false
			}
		default:
			isHex := (r >= '0' && r <= '9') || (r >= 'a' && r <= 'f') || (r >= 'A' && r <= 'F')
			if !isHex {
				return false
			}
		}
	}
	return true
}

// Registered reports whether a tunnel with the given name appears in
// descriptors.
func Registered(descriptors []Descriptor, name string) bool {
	for _, descriptor := range descriptors {
		if descriptor.Name == name {
			return true
		}
	}
	return false
}

// BinaryPresent reports whether the tunnel binary can be found, first
// at the configured path (if absolute) and then via PATH lookup of the
// bare name. It returns the resolved location when found.
func BinaryPresent(configured string) (string, bool) {
	name := "cloudflared"
	if configured != "" {
		if filepath.IsAbs(configured) {
			if info, err := os.Stat(configured); err == nil && !info.IsDir() {
				return configured, true
			}
		}
		name = filepath.Base(configured)
	}
	if resolved, err := exec.LookPath(name); err == nil {
		return resolved, true
	}
	return "", false
}

// IngressPresent reports whether the ingress-routing file exists under
// configDir. The file is never parsed.
func IngressPresent(configDir string) bool {
	_, err := os.Stat(filepath.Join(configDir, "config.yml"))
	return err == nil
}
