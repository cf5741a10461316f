// Copyright 2026 The Fridgecam Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides YAML configuration loading for the
// provisioning tool.
//
// Configuration is loaded from a single provision.yaml specified by
// either the FRIDGECAM_CONFIG environment variable (via [Load]) or a
// --config flag (via [LoadFile]). A host with no config file at all
// provisions with [Default] values: the tool must work on a bare image
// before anything has been installed, so unlike the device environment
// file the provision config is optional.
//
// Variable expansion is performed on path fields after loading:
// ${HOME}, ${FRIDGECAM_APP}, and ${VAR:-default} patterns are expanded.
// No other environment variables override config values.
//
// Key exports:
//
//   - [Config] -- master struct with Paths, Packages, Services, Tunnel, Camera, Verify
//   - [Default] -- returns a Config with Raspberry Pi defaults
//   - [Load] and [LoadFile] -- the two entry points for loading
//
// This package depends on no other fridgecam packages.
package config
