// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/bureau-foundation/hopedit/lib/buffer"
)

// Theme defines the color palette for hopedit's terminal UI. All
// colors use lipgloss ANSI 256-color codes for broad terminal
// compatibility.
type Theme struct {
	// Text colors.
	NormalText lipgloss.Color
	FaintText  lipgloss.Color

	// Cursor cell and cursor line.
	CursorBackground     lipgloss.Color
	CursorForeground     lipgloss.Color
	CursorLineBackground lipgloss.Color

	// Buffer state colors, shown in the status bar.
	StateClean      lipgloss.Color
	StateDirty      lipgloss.Color
	StateSaving     lipgloss.Color
	StateUnverified lipgloss.Color

	// Status bar and chrome.
	StatusBackground lipgloss.Color
	HeaderForeground lipgloss.Color
	BorderColor      lipgloss.Color
	HelpText         lipgloss.Color
	ReadOnly         lipgloss.Color

	// Messages in the status bar.
	WarningForeground lipgloss.Color
	ErrorForeground   lipgloss.Color

	// Overlay boxes.
	OverlayForeground lipgloss.Color
	OverlayBackground lipgloss.Color

	// SyntaxStyle names the chroma style used to highlight text
	// buffers.
	SyntaxStyle string
}

// StateColor returns the status bar color for a buffer state.
func (theme Theme) StateColor(state buffer.State) lipgloss.Color {
	switch state {
	case buffer.Clean:
		return theme.StateClean
	case buffer.Dirty:
		return theme.StateDirty
	case buffer.Saving:
		return theme.StateSaving
	case buffer.Unverified:
		return theme.StateUnverified
	default:
		return theme.FaintText
	}
}

// DefaultTheme is the built-in dark-terminal color scheme. Designed for
// 256-color terminals with a dark background.
var DefaultTheme = Theme{
	NormalText: lipgloss.Color("252"),
	FaintText:  lipgloss.Color("245"),

	CursorBackground:     lipgloss.Color("252"),
	CursorForeground:     lipgloss.Color("235"),
	CursorLineBackground: lipgloss.Color("236"),

	StateClean:      lipgloss.Color("114"), // green
	StateDirty:      lipgloss.Color("220"), // amber
	StateSaving:     lipgloss.Color("75"),  // blue
	StateUnverified: lipgloss.Color("196"), // red

	StatusBackground: lipgloss.Color("237"),
	HeaderForeground: lipgloss.Color("255"),
	BorderColor:      lipgloss.Color("240"),
	HelpText:         lipgloss.Color("241"),
	ReadOnly:         lipgloss.Color("208"), // orange

	WarningForeground: lipgloss.Color("220"),
	ErrorForeground:   lipgloss.Color("196"),

	OverlayForeground: lipgloss.Color("252"),
	OverlayBackground: lipgloss.Color("237"),

	SyntaxStyle: "monokai",
}
