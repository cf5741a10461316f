// Copyright 2026 The Fridgecam Authors
// SPDX-License-Identifier: Apache-2.0

// Package netutil provides bounded HTTP response reading.
//
// Every response body read in the tool goes through these helpers so a
// misbehaving endpoint can never exhaust memory on a small device. The
// JSON bound covers health and settings responses; the capture bound
// covers JPEG frames, which are legitimately megabytes.
package netutil

import (
	"io"
)

// MaxResponseSize bounds JSON API response body reads: 1 MB. Health and
// status responses are a few hundred bytes; the limit only exists so a
// runaway response cannot exhaust memory on a Pi.
const MaxResponseSize int64 = 1 << 20

// MaxCaptureSize bounds capture downloads: 32 MB, comfortably above any
// full-resolution JPEG the camera produces.
const MaxCaptureSize int64 = 32 << 20

// ReadResponse reads a JSON API response body up to MaxResponseSize
// bytes. Use instead of io.ReadAll when reading HTTP response bodies.
func ReadResponse(body io.Reader) ([]byte, error) {
	return io.ReadAll(io.LimitReader(body, MaxResponseSize))
}

// ReadCapture reads a camera frame body up to MaxCaptureSize bytes.
func ReadCapture(body io.Reader) ([]byte, error) {
	return io.ReadAll(io.LimitReader(body, MaxCaptureSize))
}
