// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// RenderScrollbar produces a single-column scrollbar of the given
// height for a view showing visible of total rows starting at offset.
// When everything fits the thumb spans the whole height.
func RenderScrollbar(theme Theme, height, total, visible, offset int) string {
	if height <= 0 {
		return ""
	}

	trackStyle := lipgloss.NewStyle().Foreground(theme.BorderColor)
	thumbStyle := lipgloss.NewStyle().Foreground(theme.FaintText)

	lines := make([]string, height)
	if total <= visible || total <= 0 {
		for index := range lines {
			lines[index] = thumbStyle.Render("┃")
		}
		return strings.Join(lines, "\n")
	}

	// Proportional thumb, at least one row.
	thumbSize := max(1, height*visible/total)

	scrollable := total - visible
	trackRange := height - thumbSize
	thumbOffset := 0
	if scrollable > 0 && trackRange > 0 {
		thumbOffset = min(offset, scrollable) * trackRange / scrollable
	}
	thumbOffset = min(thumbOffset, height-thumbSize)

	for index := range lines {
		if index >= thumbOffset && index < thumbOffset+thumbSize {
			lines[index] = thumbStyle.Render("┃")
		} else {
			lines[index] = trackStyle.Render("│")
		}
	}
	return strings.Join(lines, "\n")
}
