// Copyright 2026 The Fridgecam Authors
// SPDX-License-Identifier: Apache-2.0

package content

import "embed"

//go:embed defaults/fridgecam.env defaults/camera-settings.jsonc
var defaultFiles embed.FS

// DefaultEnvFile returns the seed content for the device env file.
// Setup writes it only when the file is absent; values are
// placeholders the operator fills in.
func DefaultEnvFile() string {
	data, err := defaultFiles.ReadFile("defaults/fridgecam.env")
	if err != nil {
		panic("embedded fridgecam.env missing: " + err.Error())
	}
	return string(data)
}

// DefaultCameraSettings returns the seed content for the camera
// settings document, JSONC with operator-facing comments intact.
func DefaultCameraSettings() string {
	data, err := defaultFiles.ReadFile("defaults/camera-settings.jsonc")
	if err != nil {
		panic("embedded camera-settings.jsonc missing: " + err.Error())
	}
	return string(data)
}
