// Copyright 2026 The Fridgecam Authors
// SPDX-License-Identifier: Apache-2.0

// Package cli provides the command-line framework for the fridgecam CLI.
//
// The central type is [Command], which represents a named subcommand with
// optional nested [Command.Subcommands], a [pflag.FlagSet] factory, and a
// Run function. Commands are assembled into a tree in
// cmd/fridgecam/commands and dispatched via [Command.Execute], which
// handles signal-aware context setup, flag parsing, subcommand routing,
// and structured help output with examples.
//
// When a user types an unknown subcommand or flag, the framework computes
// Levenshtein edit distance against all known names and suggests the
// closest match (threshold: distance <= 3). This is implemented in
// suggest.go.
//
// Command errors carry a category ([ToolError]) so the top-level handler
// can distinguish bad input from environmental failures, and an optional
// hint with the remediation command. Commands that have already printed
// their own report signal a bare exit status with [ExitError].
package cli
