// Copyright 2026 The Fridgecam Authors
// SPDX-License-Identifier: Apache-2.0

package content

// TunnelServiceUnit returns the canonical content of the
// cloudflared.service systemd unit. The service installer writes it
// (after backing up any existing unit) and diagnostic bundles compare
// installed units against this content.
func TunnelServiceUnit() string {
	data, err := systemdFiles.ReadFile("systemd/cloudflared.service")
	if err != nil {
		// Embedded at compile time — a read failure here is a build bug.
		panic("embedded cloudflared.service missing: " + err.Error())
	}
	return string(data)
}

// ServerServiceUnit returns the canonical content of the
// fridgecam-server.service systemd unit for the camera HTTP service.
func ServerServiceUnit() string {
	data, err := systemdFiles.ReadFile("systemd/fridgecam-server.service")
	if err != nil {
		panic("embedded fridgecam-server.service missing: " + err.Error())
	}
	return string(data)
}
