// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
)

// SpliceOverlay replaces a rectangular region of a rendered view with
// overlay content. The overlay lines are placed starting at (anchorX,
// anchorY) in screen coordinates. Uses ANSI-aware truncation so escape
// sequences in the original view are preserved on both sides of the
// overlay.
func SpliceOverlay(view string, overlayLines []string, anchorX, anchorY int) string {
	if len(overlayLines) == 0 {
		return view
	}

	viewLines := strings.Split(view, "\n")
	overlayWidth := ansi.StringWidth(overlayLines[0])

	for index, overlayLine := range overlayLines {
		viewLineIndex := anchorY + index
		if viewLineIndex < 0 || viewLineIndex >= len(viewLines) {
			continue
		}

		viewLine := viewLines[viewLineIndex]
		viewLineWidth := ansi.StringWidth(viewLine)

		var result strings.Builder
		if anchorX > 0 {
			prefix := ansi.Truncate(viewLine, anchorX, "")
			result.WriteString(prefix)
			// A short line leaves a gap before the overlay.
			if gap := anchorX - ansi.StringWidth(prefix); gap > 0 {
				result.WriteString(strings.Repeat(" ", gap))
			}
		}
		result.WriteString("\x1b[0m")
		result.WriteString(overlayLine)
		result.WriteString("\x1b[0m")

		if suffixStart := anchorX + overlayWidth; suffixStart < viewLineWidth {
			result.WriteString(ansi.TruncateLeft(viewLine, suffixStart, ""))
		}

		viewLines[viewLineIndex] = result.String()
	}

	return strings.Join(viewLines, "\n")
}

// Box renders lines inside a bordered box of the given inner width,
// with a title in the top border. Lines wider than the box are
// truncated. Every returned line has the same display width.
func Box(theme Theme, title string, lines []string, innerWidth int) []string {
	border := lipgloss.NewStyle().Foreground(theme.BorderColor).Background(theme.OverlayBackground)
	background := lipgloss.NewStyle().Foreground(theme.OverlayForeground).Background(theme.OverlayBackground)
	titleStyle := lipgloss.NewStyle().Foreground(theme.HeaderForeground).Background(theme.OverlayBackground).Bold(true)

	title = ansi.Truncate(title, max(0, innerWidth-2), "…")
	fill := max(0, innerWidth-ansi.StringWidth(title))
	result := []string{
		border.Render("╭ ") + titleStyle.Render(title) + border.Render(" "+strings.Repeat("─", fill)+"╮"),
	}
	for _, line := range lines {
		line = ansi.Truncate(line, innerWidth, "…")
		result = append(result, border.Render("│")+PadOverlayLine(background.Render(line), innerWidth, innerWidth+1, background)+border.Render("│"))
	}
	result = append(result, border.Render("╰"+strings.Repeat("─", innerWidth+2)+"╯"))
	return result
}

// PadOverlayLine takes styled content for the inner area and pads it
// to the full width with background-colored spaces. Returns
// " content  " with background applied to the padding.
func PadOverlayLine(styledContent string, innerWidth, totalWidth int, backgroundStyle lipgloss.Style) string {
	rightPad := max(0, innerWidth-ansi.StringWidth(styledContent))
	return backgroundStyle.Render(" ") +
		styledContent +
		backgroundStyle.Render(strings.Repeat(" ", rightPad+totalWidth-innerWidth))
}
