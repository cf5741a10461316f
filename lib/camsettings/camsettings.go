// Copyright 2026 The Fridgecam Authors
// SPDX-License-Identifier: Apache-2.0

// Package camsettings provides parsing and validation for the camera
// settings document. The document lives beside the env file on the
// device and is edited by operators, so it is authored as JSONC (JSON
// extended with comments and trailing commas).
//
// The settings are the camera service's to interpret: this package
// validates structure and ranges, seeds a default document during
// provisioning, and otherwise never acts on the values.
package camsettings

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/tidwall/jsonc"
)

// FileName is the settings document's name inside the app directory.
const FileName = "camera-settings.jsonc"

// Settings is the operator-editable camera configuration document.
type Settings struct {
	Focus      Focus      `json:"focus"`
	Resolution Resolution `json:"resolution"`

	// RotationDegrees rotates captured frames. The mount on the fridge
	// door is usually upside down, hence 180 in the seeded default.
	RotationDegrees int `json:"rotation_degrees"`

	// JPEGQuality is the encoder quality for captured frames, 1-100.
	JPEGQuality int `json:"jpeg_quality"`
}

// Focus holds the lens control defaults applied at service start.
type Focus struct {
	// Mode is "auto" or "manual". Manual mode applies LensPosition.
	Mode string `json:"mode"`

	// LensPosition is the manual focus distance in dioptres (inverse
	// metres); 0 means infinity. Fridge shelves sit around 2.5.
	LensPosition float64 `json:"lens_position"`
}

// Resolution is the capture frame size in pixels.
type Resolution struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Parse strips JSONC comments and trailing commas from data, then
// unmarshals the result into Settings.
func Parse(data []byte) (*Settings, error) {
	stripped := jsonc.ToJSON(data)

	var settings Settings
	if err := json.Unmarshal(stripped, &settings); err != nil {
		return nil, fmt.Errorf("parsing camera settings: %w", err)
	}
	return &settings, nil
}

// ReadFile reads a JSONC settings file from disk and parses it.
func ReadFile(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	settings, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return settings, nil
}

// Validate checks settings for structural issues. Returns a list of
// human-readable issue descriptions; an empty list means the document
// is valid. Zero values for optional fields (empty mode, zero quality)
// pass: the camera service applies its own defaults for those.
func Validate(settings *Settings) []string {
	var issues []string

	switch settings.Focus.Mode {
	case "", "auto", "manual":
	default:
		issues = append(issues, fmt.Sprintf("focus.mode %q: must be \"auto\" or \"manual\"", settings.Focus.Mode))
	}
	if settings.Focus.LensPosition < 0 {
		issues = append(issues, fmt.Sprintf("focus.lens_position %v: must not be negative (0 means infinity)", settings.Focus.LensPosition))
	}

	if settings.Resolution.Width < 0 || settings.Resolution.Height < 0 {
		issues = append(issues, fmt.Sprintf("resolution %dx%d: dimensions must not be negative",
			settings.Resolution.Width, settings.Resolution.Height))
	}
	if (settings.Resolution.Width == 0) != (settings.Resolution.Height == 0) {
		issues = append(issues, fmt.Sprintf("resolution %dx%d: set both dimensions or neither",
			settings.Resolution.Width, settings.Resolution.Height))
	}

	switch settings.RotationDegrees {
	case 0, 90, 180, 270:
	default:
		issues = append(issues, fmt.Sprintf("rotation_degrees %d: must be 0, 90, 180, or 270", settings.RotationDegrees))
	}

	if settings.JPEGQuality < 0 || settings.JPEGQuality > 100 {
		issues = append(issues, fmt.Sprintf("jpeg_quality %d: must be between 1 and 100 (0 for the service default)", settings.JPEGQuality))
	}

	return issues
}
