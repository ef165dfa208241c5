// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
)

// PickerOption is one selectable row of a Picker.
type PickerOption struct {
	Label string
	Value string
}

// Picker is a boxed list drawn over the screen. The view that owns it
// routes keys to it while it is open: up and down move, enter chooses,
// escape dismisses.
type Picker struct {
	Title   string
	Options []PickerOption
	Cursor  int
}

// MoveUp moves the cursor up by one, wrapping to the bottom.
func (picker *Picker) MoveUp() {
	if len(picker.Options) == 0 {
		return
	}
	picker.Cursor--
	if picker.Cursor < 0 {
		picker.Cursor = len(picker.Options) - 1
	}
}

// MoveDown moves the cursor down by one, wrapping to the top.
func (picker *Picker) MoveDown() {
	if len(picker.Options) == 0 {
		return
	}
	picker.Cursor++
	if picker.Cursor >= len(picker.Options) {
		picker.Cursor = 0
	}
}

// Selected returns the highlighted option, or false when the picker
// is empty.
func (picker *Picker) Selected() (PickerOption, bool) {
	if picker.Cursor < 0 || picker.Cursor >= len(picker.Options) {
		return PickerOption{}, false
	}
	return picker.Options[picker.Cursor], true
}

// Width returns the inner width Render lays the rows out in: the
// widest label or the title, plus the two-column marker, capped at
// limit.
func (picker *Picker) Width(limit int) int {
	width := ansi.StringWidth(picker.Title)
	for _, option := range picker.Options {
		width = max(width, 2+ansi.StringWidth(option.Label))
	}
	return max(1, min(width, limit))
}

// Render draws the picker as a Box no wider than maxWidth columns. The
// highlighted row uses the cursor colors across the full inner width.
func (picker *Picker) Render(theme Theme, maxWidth int) []string {
	innerWidth := picker.Width(max(1, maxWidth-4))
	selected := lipgloss.NewStyle().
		Background(theme.CursorBackground).
		Foreground(theme.CursorForeground)

	lines := make([]string, 0, len(picker.Options))
	for index, option := range picker.Options {
		marker := "  "
		if index == picker.Cursor {
			marker = "> "
		}
		row := ansi.Truncate(marker+option.Label, innerWidth, "…")
		if index == picker.Cursor {
			row = selected.Render(row + strings.Repeat(" ", max(0, innerWidth-ansi.StringWidth(row))))
		}
		lines = append(lines, row)
	}
	return Box(theme, picker.Title, lines, innerWidth)
}
