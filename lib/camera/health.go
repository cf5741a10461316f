// Copyright 2026 The Fridgecam Authors
// SPDX-License-Identifier: Apache-2.0

package camera

import (
	"context"
	"encoding/json"
	"strings"
)

// HealthReport mirrors the camera service's /health JSON document.
type HealthReport struct {
	Status     string     `json:"status"`
	Timestamp  string     `json:"timestamp"`
	Components Components `json:"components"`
}

// Components holds the per-subsystem states inside a health report.
// Database and Camera are state strings ("ok" or an "error: ..."
// description); DiskSpaceGB is the free space on the recording volume.
type Components struct {
	Database    string  `json:"database"`
	Camera      string  `json:"camera"`
	DiskSpaceGB float64 `json:"disk_space_gb"`
}

// Healthy reports whether the overall status is "healthy".
func (r *HealthReport) Healthy() bool {
	return strings.EqualFold(r.Status, "healthy")
}

// DatabaseOK reports whether the database component is in the "ok"
// state. Anything else is a state description ("error: ..."), never a
// boolean, so the comparison is against the literal.
func (r *HealthReport) DatabaseOK() bool {
	return r.Components.Database == "ok"
}

// Health fetches and decodes GET /health.
//
// A reachable service that answers 2xx with a body that is not valid
// JSON returns a [*ParseError] carrying the raw body: the service is
// alive but degraded, which callers treat differently from a transport
// failure. Non-2xx responses return a [*StatusError].
func (c *Client) Health(ctx context.Context) (*HealthReport, error) {
	resp, body, err := c.get(ctx, "/health", nil)
	if err != nil {
		return nil, err
	}
	if err := statusErr(resp, body); err != nil {
		return nil, err
	}
	var report HealthReport
	if err := json.Unmarshal(body, &report); err != nil {
		return nil, &ParseError{Raw: string(body)}
	}
	return &report, nil
}

// ParseError reports a 2xx response whose body is not the JSON the
// endpoint's contract promises. Raw holds the body as received,
// bounded by lib/netutil's response limit.
type ParseError struct {
	Raw string
}

func (e *ParseError) Error() string {
	return "non-JSON response body: " + Excerpt(e.Raw, 80)
}

// Excerpt returns s flattened to one line and truncated to max bytes,
// with an ellipsis when truncated. Used when surfacing raw bodies in
// checklist rows.
func Excerpt(s string, max int) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
