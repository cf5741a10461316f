// Copyright 2026 The Fridgecam Authors
// SPDX-License-Identifier: Apache-2.0

// Package doctor provides the layered verification framework behind
// 'fridgecam verify'.
//
// A verification run is an ordered list of [Check] values executed by a
// [Runner]: each check produces exactly one [Result], later layers may
// depend on state gathered by earlier ones, and a single structural
// check (marked Fatal) aborts the pipeline when it fails. The package
// provides:
//
//   - [Result] type with status, message, and optional hint
//   - Constructors: [Pass], [Fail], [FailHint], [FailFatal], [Warn], [WarnHint], [Skip]
//   - [Runner] for ordered execution with per-check timeouts
//   - [PrintChecklist] for human-readable output
//   - [BuildJSON] for machine-readable output
//
// Domain-specific checks (what to probe, how to interpret it) live in
// the verify command's package. This package provides only the workflow
// infrastructure.
package doctor
