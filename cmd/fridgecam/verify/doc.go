// Copyright 2026 The Fridgecam Authors
// SPDX-License-Identifier: Apache-2.0

// Package verify implements "fridgecam verify": the nine-layer
// verification pipeline that walks the chain from tunnel binary to
// public endpoint, in dependency order.
//
// Every layer yields exactly one result and later layers run regardless
// of earlier advisory failures — the report always shows the whole
// picture. The single exception is layer 1: without the tunnel binary
// nothing downstream means anything, so the pipeline aborts and the
// command exits non-zero. That is the only condition that changes the
// exit code; failed services, unreachable endpoints, and missing
// hardware are diagnoses for the operator, not gates.
//
// Layer 7 (database) does not probe the database itself. It reads the
// components section of the health report layer 5 fetched: the camera
// service owns the database connection, the verifier only relays what
// the service said. A missing or unparseable health report therefore
// leaves the database state unknown, which the layer reports in those
// words rather than inventing a connection failure.
package verify
