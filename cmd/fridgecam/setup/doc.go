// Copyright 2026 The Fridgecam Authors
// SPDX-License-Identifier: Apache-2.0

// Package setup implements the "fridgecam setup" command: the bootstrap
// installer that takes a bare Raspberry Pi OS image to the point where
// the camera service can be registered.
//
// Setup is idempotent by construction. Every step either converges on
// the desired state (apt installs, MkdirAll, venv creation) or observes
// and moves on (seed files are written only when absent, the tunnel
// binary is downloaded only when missing). Running it twice produces
// the same host as running it once.
//
// One condition aborts the run: the deployable camera server artifact
// is missing. Registering a service around an artifact that does not
// exist would leave the device supervising nothing, so setup stops
// before touching permissions or service state. Directories created
// earlier in the run are left in place — they are correct regardless.
package setup
