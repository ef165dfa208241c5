// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package tui provides the terminal UI pieces shared by hopedit's
// interactive views: the color theme, a scrollbar, a list picker, and
// ANSI-aware overlay splicing for boxes drawn over an already rendered
// screen.
//
// Views own their layout and key handling; this package only draws.
package tui
