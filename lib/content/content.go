// Copyright 2026 The Fridgecam Authors
// SPDX-License-Identifier: Apache-2.0

// Package content provides the embedded device content fridgecam
// installs: systemd unit definitions, seed files for the device
// configuration, and the operator runbook.
//
// Files are embedded at compile time via go:embed. The primary
// consumers are "fridgecam install-services" (writes unit files),
// "fridgecam setup" (seeds the env file and camera settings when
// absent), "fridgecam docs" (renders the runbook), and "fridgecam
// bundle" (records content digests for support).
package content

import (
	"embed"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/fridgelab/fridgecam/lib/digest"
)

//go:embed systemd/*.service
var systemdFiles embed.FS

// Unit is an embedded service unit definition with its install name
// and the digest of its source.
type Unit struct {
	// Name is the unit's install name under /etc/systemd/system,
	// derived from the embedded filename.
	Name string

	// Content is the unit file text as embedded.
	Content []byte

	// SourceDigest is the BLAKE3 hex digest of Content. Diagnostic
	// bundles record it so support can tell an edited unit from the
	// shipped one without shipping the whole file twice.
	SourceDigest string
}

// Units returns all embedded unit definitions in install order: the
// tunnel unit first, then the camera service unit. Returns an error
// if an embedded unit is structurally broken — that indicates a bug
// in the embedded content, not a runtime condition.
func Units() ([]Unit, error) {
	entries, err := systemdFiles.ReadDir("systemd")
	if err != nil {
		return nil, fmt.Errorf("reading embedded systemd directory: %w", err)
	}

	byName := make(map[string]Unit, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".service" {
			continue
		}
		path := "systemd/" + entry.Name()
		data, err := systemdFiles.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading embedded unit %s: %w", path, err)
		}
		for _, section := range []string{"[Unit]", "[Service]", "[Install]"} {
			if !strings.Contains(string(data), section) {
				return nil, fmt.Errorf("embedded unit %s: missing %s section", path, section)
			}
		}
		byName[entry.Name()] = Unit{
			Name:         entry.Name(),
			Content:      data,
			SourceDigest: digest.Format(digest.Bytes(data)),
		}
	}

	// Install order matters to the service installer: tunnel before
	// camera. Name the order here rather than trusting ReadDir.
	var units []Unit
	for _, name := range []string{"cloudflared.service", "fridgecam-server.service"} {
		unit, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("embedded unit %s missing", name)
		}
		units = append(units, unit)
	}
	return units, nil
}
