// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package cli provides the command-line framework for keyprov.
//
// The central type is [Command], which represents a named subcommand with
// optional nested [Command.Subcommands], a params struct whose tagged
// fields become pflag flags (see [BindFlags]), and a Run function.
// Commands are assembled into a tree in cmd/keyprov/commands and
// dispatched via [Command.Execute], which handles flag parsing,
// subcommand routing, logger construction, and structured help output
// with examples.
//
// When a user types an unknown subcommand or flag, the framework computes
// Levenshtein edit distance against all known names and suggests the
// closest match (threshold: distance <= 3).
//
// Errors returned by commands are [ToolError] values carrying an
// [ErrorCategory], which main turns into a distinct exit status.
// [ExitError] signals a handled failure whose output has already been
// printed, such as a verification report with mismatches.
//
// Supporting pieces:
//
//   - [GlobalOptions] and [JSONOutput]: flag groups embedded in params
//   - [NewCommandLogger]: slog text handler on a terminal, JSON otherwise
//   - [ReadPassword]: the provisioning password prompt or file
//   - [PrintChecklist] and [Styles]: aligned PASS/FAIL reports, coloured
//     with lipgloss on terminals
package cli
