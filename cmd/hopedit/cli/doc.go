// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package cli provides the command-line framework for hopedit.
//
// The central type is [Command], which represents a named subcommand with
// optional nested [Command.Subcommands], a [pflag.FlagSet] factory, and a
// Run function. Commands are assembled into a tree in cmd/hopedit and
// dispatched via [Command.Execute], which handles flag parsing, subcommand
// routing, and structured help output with examples.
//
// A command can be selected by its name or any of its Aliases. When a
// user types an unknown subcommand or flag, the framework suggests the
// known name within an edit distance of 3. Help goes to the root's
// HelpOutput so tests can capture it.
//
// Flag sets are usually built from tagged parameter structs with
// [FlagsFromParams]. Errors returned by commands are categorized with
// [ToolError] so that scripts can tell bad input from an unreachable host,
// and [ExitError] carries a deliberate non-zero exit status (exec uses it
// to forward the remote command's status).
package cli
