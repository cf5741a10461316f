// Copyright 2026 The Fridgecam Authors
// SPDX-License-Identifier: Apache-2.0

// Package services implements "fridgecam install-services": writing the
// two systemd units into place and bringing them up in order.
//
// The command needs root for /etc/systemd/system and systemctl. An
// unprivileged invocation re-executes itself once under sudo with the
// original argument list (lib/elevate); the marker-based guard makes a
// second attempt structurally impossible.
//
// Unit installation preserves what it replaces: an existing unit file
// is copied to <name>.bak before the overwrite, exactly one backup per
// overwrite event. Startup order is tunnel first, then a settle
// interval, then the camera server — soft ordering only, the camera
// starts regardless of what the tunnel did.
package services
