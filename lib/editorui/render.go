// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package editorui

import (
	"bytes"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/alecthomas/chroma/v2/quick"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/bureau-foundation/hopedit/lib/buffer"
	"github.com/bureau-foundation/hopedit/lib/content"
	"github.com/bureau-foundation/hopedit/lib/editor"
	"github.com/bureau-foundation/hopedit/lib/tui"
)

const (
	// tabWidth is how many columns a tab expands to in text mode.
	tabWidth = 4

	// highlightLimit is the largest text, in bytes, that gets syntax
	// highlighting. Larger buffers render plain.
	highlightLimit = 512 << 10
)

func (model Model) View() string {
	if !model.ready {
		return ""
	}
	scrollbar := tui.RenderScrollbar(model.theme, model.body.Height,
		model.body.TotalLineCount(), model.body.Height, model.body.YOffset)
	view := lipgloss.JoinHorizontal(lipgloss.Top, model.body.View(), scrollbar) +
		"\n" + model.statusBar() +
		"\n" + model.bottomLine()

	if model.focus == focusHelp {
		box := tui.Box(model.theme, "hopedit help  (esc closes)", strings.Split(model.helpView.View(), "\n"), model.helpView.Width)
		anchorX := max(0, (model.width-ansi.StringWidth(box[0]))/2)
		anchorY := max(0, (model.height-len(box))/2)
		view = tui.SpliceOverlay(view, box, anchorX, anchorY)
	}
	if model.focus == focusPicker {
		box := model.picker.Render(model.theme, model.width)
		view = tui.SpliceOverlay(view, box, max(0, (model.width-ansi.StringWidth(box[0]))/2), 1)
	}
	return view
}

// renderBody redraws the body viewport for the active document and
// scrolls it to keep the cursor visible.
func (model *Model) renderBody() {
	if !model.ready {
		return
	}
	var lines []string
	row := 0
	switch document := model.document.(type) {
	case *content.TextDocument:
		lines, row = model.renderText(document)
	case *content.HexDocument:
		lines, row = model.renderHex(document)
	case *content.TagTreeDocument:
		lines, row = model.renderTagTree(document)
	default:
		lines = []string{lipgloss.NewStyle().Foreground(model.theme.FaintText).Render("no buffer")}
	}
	model.body.SetContent(strings.Join(lines, "\n"))

	offset := model.body.YOffset
	if row < offset {
		offset = row
	} else if row >= offset+model.body.Height {
		offset = row - model.body.Height + 1
	}
	model.body.SetYOffset(offset)
}

func (model *Model) renderText(document *content.TextDocument) ([]string, int) {
	count := document.LineCount()
	gutter := max(3, len(strconv.Itoa(count)))
	textWidth := max(1, model.body.Width-gutter-1)

	position := model.cursor.text
	column := displayColumn(document.Line(position.Line), position.Col)
	if column < model.left {
		model.left = column
	} else if column >= model.left+textWidth {
		model.left = column - textWidth + 1
	}

	highlighted := model.highlight(document)
	gutterStyle := lipgloss.NewStyle().Foreground(model.theme.FaintText)
	cursorGutterStyle := lipgloss.NewStyle().Foreground(model.theme.HeaderForeground).Background(model.theme.CursorLineBackground)
	lines := make([]string, count)
	for index := range count {
		number := fmt.Sprintf("%*d ", gutter, index+1)
		if index == position.Line {
			lines[index] = cursorGutterStyle.Render(number) +
				model.cursorLine(expandTabs(document.Line(index)), column, textWidth)
			continue
		}
		text := expandTabs(document.Line(index))
		if highlighted != nil {
			text = highlighted[index]
		}
		lines[index] = gutterStyle.Render(number) + ansi.Cut(text, model.left, model.left+textWidth)
	}
	return lines, position.Line
}

// cursorLine renders the line holding the cursor: plain text on the
// cursor-line background with the cursor cell inverted.
func (model *Model) cursorLine(plain string, column, width int) string {
	lineStyle := lipgloss.NewStyle().Foreground(model.theme.NormalText).Background(model.theme.CursorLineBackground)
	cellStyle := lipgloss.NewStyle().Foreground(model.theme.CursorForeground).Background(model.theme.CursorBackground)

	visible := ansi.Cut(plain, model.left, model.left+width)
	relative := column - model.left
	before := ansi.Cut(visible, 0, relative)
	cell := ansi.Cut(visible, relative, relative+1)
	if cell == "" {
		cell = " "
	}
	after := ansi.Cut(visible, relative+ansi.StringWidth(cell), width)
	padding := max(0, width-ansi.StringWidth(before)-ansi.StringWidth(cell)-ansi.StringWidth(after))
	return lineStyle.Render(before) + cellStyle.Render(cell) + lineStyle.Render(after+strings.Repeat(" ", padding))
}

// highlight returns the syntax-highlighted lines of document, or nil
// when the buffer has no known language or is too large.
func (model *Model) highlight(document *content.TextDocument) []string {
	if model.language == "" {
		return nil
	}
	count := document.LineCount()
	var source strings.Builder
	for index := range count {
		if index > 0 {
			source.WriteByte('\n')
		}
		source.WriteString(expandTabs(document.Line(index)))
		if source.Len() > highlightLimit {
			return nil
		}
	}
	var output bytes.Buffer
	if err := quick.Highlight(&output, source.String(), model.language, "terminal256", model.theme.SyntaxStyle); err != nil {
		model.logger.Debug("highlighting failed", "language", model.language, "error", err)
		return nil
	}
	lines := strings.Split(output.String(), "\n")
	if len(lines) < count {
		return nil
	}
	return lines[:count]
}

func expandTabs(s string) string {
	return strings.ReplaceAll(s, "\t", strings.Repeat(" ", tabWidth))
}

// displayColumn is the screen column of rune col of line once tabs
// are expanded.
func displayColumn(line string, col int) int {
	width := 0
	index := 0
	for _, r := range line {
		if index >= col {
			break
		}
		if r == '\t' {
			width += tabWidth
		} else {
			width += ansi.StringWidth(string(r))
		}
		index++
	}
	return width
}

func (model *Model) renderHex(document *content.HexDocument) ([]string, int) {
	width := model.hexWidth
	offset := model.cursor.offset
	cursorRow := offset / width
	rows := max(document.Rows(width), cursorRow+1)

	offsetStyle := lipgloss.NewStyle().Foreground(model.theme.FaintText)
	lines := make([]string, rows)
	for row := range rows {
		line := document.RenderRow(row, width)
		if row == cursorRow {
			lines[row] = ansi.Truncate(model.hexCursorLine(line, offset%width, width), model.body.Width, "")
			continue
		}
		lines[row] = ansi.Truncate(offsetStyle.Render(line[:8])+line[8:], model.body.Width, "")
	}
	return lines, cursorRow
}

// hexCursorLine highlights byte column of a rendered hex row in both
// the hex and the ASCII halves. A pending nibble shows in place of the
// byte.
func (model *Model) hexCursorLine(line string, column, width int) string {
	lineStyle := lipgloss.NewStyle().Foreground(model.theme.NormalText).Background(model.theme.CursorLineBackground)
	cellStyle := lipgloss.NewStyle().Foreground(model.theme.CursorForeground).Background(model.theme.CursorBackground)

	split := 0
	if width > 8 {
		split = 1
	}
	hexStart := 10 + 3*column
	if width > 8 && column >= width/2 {
		hexStart++
	}
	cell := line[hexStart : hexStart+2]
	if model.nibble >= 0 {
		cell = fmt.Sprintf("%x_", model.nibble)
	}

	asciiStart := 10 + 3*width + split + 2 + column
	if asciiStart >= len(line)-1 {
		return lineStyle.Render(line[:hexStart]) + cellStyle.Render(cell) + lineStyle.Render(line[hexStart+2:])
	}
	return lineStyle.Render(line[:hexStart]) +
		cellStyle.Render(cell) +
		lineStyle.Render(line[hexStart+2:asciiStart]) +
		cellStyle.Render(line[asciiStart:asciiStart+1]) +
		lineStyle.Render(line[asciiStart+1:])
}

func (model *Model) renderTagTree(document *content.TagTreeDocument) ([]string, int) {
	width := model.body.Width
	cursorStyle := lipgloss.NewStyle().Foreground(model.theme.CursorForeground).Background(model.theme.CursorBackground)
	nodes := document.Lines()
	lines := make([]string, len(nodes))
	for index, node := range nodes {
		text := ansi.Truncate(strings.Repeat("  ", node.Depth)+node.Text, width, "…")
		if index == model.cursor.row {
			text = cursorStyle.Render(text + strings.Repeat(" ", max(0, width-ansi.StringWidth(text))))
		}
		lines[index] = text
	}
	return lines, model.cursor.row
}

func (model Model) statusBar() string {
	base := lipgloss.NewStyle().Background(model.theme.StatusBackground).Foreground(model.theme.HeaderForeground)
	faint := base.Foreground(model.theme.FaintText)

	left := " "
	if model.info.ReadOnly {
		left += base.Foreground(model.theme.ReadOnly).Bold(true).Render("[RO]") + base.Render(" ")
	}
	label := model.info.Address
	switch {
	case model.handle == 0:
		label = "(no buffer)"
	case model.info.Scratch:
		label = "[scratch]"
	}
	left += base.Bold(true).Render(label)
	if model.info.New {
		left += faint.Render(" [new]")
	}

	stateStyle := base.Foreground(model.theme.StateColor(model.info.State)).Bold(true)
	right := faint.Render(model.modeLabel()) + base.Render("  ") +
		stateStyle.Render(model.info.State.String()) + base.Render("  ") +
		base.Render(model.position()) + base.Render(" ")

	available := max(0, model.width-ansi.StringWidth(right))
	left = ansi.Truncate(left, available, "…")
	gap := max(0, model.width-ansi.StringWidth(left)-ansi.StringWidth(right))
	return ansi.Truncate(base.Render(left)+base.Render(strings.Repeat(" ", gap))+right, model.width, "")
}

func (model Model) modeLabel() string {
	if model.handle == 0 {
		return ""
	}
	label := model.info.Kind.String()
	switch document := model.document.(type) {
	case *content.TextDocument:
		if model.language != "" {
			label += " (" + model.language + ")"
		}
	case *content.TagTreeDocument:
		label += " (" + document.Frame().Framing.String() + ")"
	}
	return label
}

func (model Model) position() string {
	switch document := model.document.(type) {
	case *content.TextDocument:
		return fmt.Sprintf("Ln %d, Col %d", model.cursor.text.Line+1, model.cursor.text.Col+1)
	case *content.HexDocument:
		return fmt.Sprintf("0x%x / %d bytes", model.cursor.offset, document.Len())
	case *content.TagTreeDocument:
		lines := document.Lines()
		if model.cursor.row < len(lines) {
			return pathArgument(lines[model.cursor.row].Path)
		}
	}
	return ""
}

func (model Model) bottomLine() string {
	if model.focus == focusCommand {
		return model.commandLine.View()
	}
	if model.message.text != "" {
		style := lipgloss.NewStyle().Foreground(model.theme.NormalText)
		switch {
		case model.message.level >= slog.LevelError:
			style = style.Foreground(model.theme.ErrorForeground).Bold(true)
		case model.message.level >= slog.LevelWarn:
			style = style.Foreground(model.theme.WarningForeground)
		}
		return style.Render(ansi.Truncate(model.message.text, model.width, "…"))
	}
	return model.help.View(model.keys)
}

func (model *Model) openHelp() {
	var lines []string
	lines = append(lines, "Keys")
	for _, group := range model.keys.FullHelp() {
		for _, binding := range group {
			if !binding.Enabled() {
				continue
			}
			help := binding.Help()
			lines = append(lines, fmt.Sprintf("  %-12s %s", help.Key, help.Desc))
		}
		lines = append(lines, "")
	}
	lines = append(lines, "Commands (esc, or ':' outside text mode)")
	for _, command := range commandHelp {
		lines = append(lines, fmt.Sprintf("  %-28s %s", command.usage, command.summary))
	}
	lines = append(lines, "", "Buffer states: "+strings.Join([]string{
		buffer.Clean.String(), buffer.Dirty.String(), buffer.Saving.String(), buffer.Unverified.String(),
	}, ", "))

	model.focus = focusHelp
	model.helpView.Height = max(1, min(len(lines), model.height-4))
	model.helpView.SetContent(strings.Join(lines, "\n"))
	model.helpView.GotoTop()
}

func (model Model) handleHelpKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc", "f1", "q", "enter":
		model.focus = focusBody
		return model, nil
	}
	var cmd tea.Cmd
	model.helpView, cmd = model.helpView.Update(msg)
	return model, cmd
}

func (model *Model) openPicker() {
	options, active := model.bufferOptions()
	model.picker = tui.Picker{Title: "buffers", Options: options, Cursor: active}
	model.focus = focusPicker
}

func (model Model) handlePickerKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, model.keys.Up):
		model.picker.MoveUp()
	case key.Matches(msg, model.keys.Down):
		model.picker.MoveDown()
	case key.Matches(msg, model.keys.Enter):
		model.focus = focusBody
		option, ok := model.picker.Selected()
		if !ok {
			return model, nil
		}
		handle, err := strconv.ParseUint(option.Value, 10, 64)
		if err != nil {
			return model, nil
		}
		if editor.Handle(handle) != model.handle {
			model.switchTo(editor.Handle(handle))
		}
	case msg.String() == "esc", key.Matches(msg, model.keys.Buffers):
		model.focus = focusBody
	}
	return model, nil
}
