// Copyright 2026 The Fridgecam Authors
// SPDX-License-Identifier: Apache-2.0

// Package camera is a typed HTTP client for the camera service's local
// API and its public tunnel hostname.
//
// The camera service is the Python process the tool provisions; this
// package only observes and exercises it. Endpoints:
//
//   - GET  /test           liveness, any 2xx counts
//   - GET  /health         JSON health report with component states
//   - GET  /capture        a JPEG frame, X-API-Key authenticated
//   - POST /settings/focus X-API-Key authenticated focus override
//
// The /health endpoint is special-cased for verification: a 200 whose
// body is not JSON is a degraded-but-alive state ([ParseError] carrying
// the raw body), distinct from transport failure and from an unhealthy
// report. All body reads are bounded via lib/netutil.
package camera
