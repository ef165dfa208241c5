// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package editorui

import (
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/bureau-foundation/hopedit/lib/content"
	"github.com/bureau-foundation/hopedit/lib/nbt"
)

func (model Model) handleBodyKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, model.keys.Quit):
		return model.quitAll(false)
	case key.Matches(msg, model.keys.Help):
		model.openHelp()
		return model, nil
	case key.Matches(msg, model.keys.Command):
		return model, model.openCommandLine("")
	case key.Matches(msg, model.keys.Save):
		return model, model.save()
	case key.Matches(msg, model.keys.NextBuffer):
		model.cycle(1)
		return model, nil
	case key.Matches(msg, model.keys.PreviousBuffer):
		model.cycle(-1)
		return model, nil
	case key.Matches(msg, model.keys.Buffers):
		model.openPicker()
		return model, nil
	}

	switch document := model.document.(type) {
	case *content.TextDocument:
		model.handleTextKeys(msg, document)
	case *content.HexDocument:
		if key.Matches(msg, model.keys.CommandColon) {
			return model, model.openCommandLine("")
		}
		model.handleHexKeys(msg, document)
	case *content.TagTreeDocument:
		if key.Matches(msg, model.keys.CommandColon) {
			return model, model.openCommandLine("")
		}
		if key.Matches(msg, model.keys.Enter) {
			return model, model.openCommandLine(nodeCommand(document, model.cursor.row))
		}
		model.handleTagTreeKeys(msg, document)
	}
	return model, nil
}

func (model *Model) handleTextKeys(msg tea.KeyMsg, document *content.TextDocument) {
	position := model.cursor.text
	switch {
	case key.Matches(msg, model.keys.Up):
		model.moveLines(document, -1)
	case key.Matches(msg, model.keys.Down):
		model.moveLines(document, 1)
	case key.Matches(msg, model.keys.PageUp):
		model.moveLines(document, -model.body.Height)
	case key.Matches(msg, model.keys.PageDown):
		model.moveLines(document, model.body.Height)
	case key.Matches(msg, model.keys.Left):
		switch {
		case position.Col > 0:
			position.Col--
		case position.Line > 0:
			position.Line--
			position.Col = document.LineLength(position.Line)
		}
		model.setTextCursor(position)
	case key.Matches(msg, model.keys.Right):
		switch {
		case position.Col < document.LineLength(position.Line):
			position.Col++
		case position.Line < document.LineCount()-1:
			position = content.Pos{Line: position.Line + 1}
		}
		model.setTextCursor(position)
	case key.Matches(msg, model.keys.LineStart):
		model.setTextCursor(content.Pos{Line: position.Line})
	case key.Matches(msg, model.keys.LineEnd):
		model.setTextCursor(content.Pos{Line: position.Line, Col: document.LineLength(position.Line)})
	case key.Matches(msg, model.keys.Top):
		model.setTextCursor(content.Pos{})
	case key.Matches(msg, model.keys.Bottom):
		model.setTextCursor(document.End())

	case key.Matches(msg, model.keys.Backspace):
		switch {
		case position.Col > 0:
			start := content.Pos{Line: position.Line, Col: position.Col - 1}
			if model.apply(content.TextDelete{Range: content.Range{Start: start, End: position}}) == nil {
				model.setTextCursor(start)
			}
		case position.Line > 0:
			start := content.Pos{Line: position.Line - 1, Col: document.LineLength(position.Line - 1)}
			if model.apply(content.TextDelete{Range: content.Range{Start: start, End: position}}) == nil {
				model.setTextCursor(start)
			}
		}
	case key.Matches(msg, model.keys.Delete):
		switch {
		case position.Col < document.LineLength(position.Line):
			model.apply(content.TextDelete{Range: content.Range{Start: position, End: content.Pos{Line: position.Line, Col: position.Col + 1}}})
		case position.Line < document.LineCount()-1:
			model.apply(content.TextDelete{Range: content.Range{Start: position, End: content.Pos{Line: position.Line + 1}}})
		}
	case key.Matches(msg, model.keys.Enter):
		model.insertText(position, "\n")
	case key.Matches(msg, model.keys.Tab):
		model.insertText(position, "\t")
	case msg.Type == tea.KeySpace:
		model.insertText(position, " ")
	case msg.Type == tea.KeyRunes && !msg.Alt:
		model.insertText(position, string(msg.Runes))
	}
}

// insertText inserts text at position and moves the cursor past it.
func (model *Model) insertText(position content.Pos, text string) {
	if model.apply(content.TextInsert{At: position, Text: text}) != nil {
		return
	}
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	pieces := strings.Split(text, "\n")
	last := pieces[len(pieces)-1]
	if len(pieces) == 1 {
		position.Col += utf8.RuneCountInString(last)
	} else {
		position = content.Pos{Line: position.Line + len(pieces) - 1, Col: utf8.RuneCountInString(last)}
	}
	model.setTextCursor(position)
}

func (model *Model) setTextCursor(position content.Pos) {
	model.cursor.text = position
	model.cursor.want = position.Col
	model.clampCursor()
	model.renderBody()
}

// moveLines moves the text cursor delta lines, aiming for the column
// the cursor last moved to horizontally.
func (model *Model) moveLines(document *content.TextDocument, delta int) {
	line := clamp(model.cursor.text.Line+delta, 0, document.LineCount()-1)
	model.cursor.text = content.Pos{Line: line, Col: min(model.cursor.want, document.LineLength(line))}
	model.renderBody()
}

func (model *Model) handleHexKeys(msg tea.KeyMsg, document *content.HexDocument) {
	width := model.hexWidth
	offset := model.cursor.offset
	length := document.Len()
	moved := true
	switch {
	case key.Matches(msg, model.keys.Up):
		if offset >= width {
			offset -= width
		}
	case key.Matches(msg, model.keys.Down):
		offset = min(offset+width, length)
	case key.Matches(msg, model.keys.PageUp):
		offset = max(offset%width, offset-width*model.body.Height)
	case key.Matches(msg, model.keys.PageDown):
		offset = min(offset+width*model.body.Height, length)
	case key.Matches(msg, model.keys.Left):
		offset = max(0, offset-1)
	case key.Matches(msg, model.keys.Right):
		offset = min(length, offset+1)
	case key.Matches(msg, model.keys.LineStart):
		offset -= offset % width
	case key.Matches(msg, model.keys.LineEnd):
		offset = min(offset-offset%width+width-1, length)
	case key.Matches(msg, model.keys.Top):
		offset = 0
	case key.Matches(msg, model.keys.Bottom):
		offset = length
	default:
		moved = false
	}
	if moved {
		model.nibble = -1
		model.cursor.offset = offset
		model.renderBody()
		return
	}

	switch {
	case key.Matches(msg, model.keys.Backspace):
		if model.nibble >= 0 {
			model.nibble = -1
			model.renderBody()
			return
		}
		if offset > 0 && model.apply(content.HexDelete{Offset: offset - 1, Count: 1}) == nil {
			model.cursor.offset = offset - 1
			model.renderBody()
		}
	case key.Matches(msg, model.keys.Delete):
		model.nibble = -1
		if offset < length {
			model.apply(content.HexDelete{Offset: offset, Count: 1})
		}
	case key.Matches(msg, model.keys.InsertByte):
		model.nibble = -1
		model.apply(content.HexInsert{Offset: offset, Bytes: []byte{0}})
	case msg.Type == tea.KeyRunes && !msg.Alt:
		for _, r := range msg.Runes {
			value, ok := hexDigit(r)
			if !ok {
				model.setMessage(slog.LevelWarn, "hex mode takes hex digits; esc opens the command line")
				return
			}
			model.typeNibble(value)
		}
	}
}

// typeNibble records one typed hex digit. The second digit of a pair
// writes the byte at the cursor, or appends it at the end.
func (model *Model) typeNibble(value byte) {
	document, ok := model.document.(*content.HexDocument)
	if !ok {
		return
	}
	if model.nibble < 0 {
		model.nibble = int(value)
		model.renderBody()
		return
	}
	b := byte(model.nibble)<<4 | value
	model.nibble = -1
	offset := model.cursor.offset
	var edit content.Edit = content.HexSet{Offset: offset, Value: b}
	if offset >= document.Len() {
		edit = content.HexInsert{Offset: document.Len(), Bytes: []byte{b}}
	}
	if model.apply(edit) == nil {
		model.cursor.offset = offset + 1
		model.renderBody()
	}
}

func hexDigit(r rune) (byte, bool) {
	switch {
	case r >= '0' && r <= '9':
		return byte(r - '0'), true
	case r >= 'a' && r <= 'f':
		return byte(r-'a') + 10, true
	case r >= 'A' && r <= 'F':
		return byte(r-'A') + 10, true
	}
	return 0, false
}

func (model *Model) handleTagTreeKeys(msg tea.KeyMsg, document *content.TagTreeDocument) {
	lines := document.Lines()
	row := model.cursor.row
	switch {
	case key.Matches(msg, model.keys.Up):
		row--
	case key.Matches(msg, model.keys.Down):
		row++
	case key.Matches(msg, model.keys.PageUp):
		row -= model.body.Height
	case key.Matches(msg, model.keys.PageDown):
		row += model.body.Height
	case key.Matches(msg, model.keys.Top):
		row = 0
	case key.Matches(msg, model.keys.Bottom):
		row = len(lines) - 1
	case key.Matches(msg, model.keys.Delete):
		if row == 0 {
			model.setMessage(slog.LevelWarn, "the root cannot be removed")
			return
		}
		model.apply(content.TagRemove{Path: lines[row].Path})
		return
	default:
		return
	}
	model.cursor.row = clamp(row, 0, len(lines)-1)
	model.renderBody()
}

// nodeCommand is the command line offered for editing the node on row:
// add for a container, set for anything else.
func nodeCommand(document *content.TagTreeDocument, row int) string {
	lines := document.Lines()
	if row < 0 || row >= len(lines) {
		return ""
	}
	path := lines[row].Path
	node, err := nbt.Lookup(document.Root(), path)
	if err != nil {
		return ""
	}
	switch node.(type) {
	case *nbt.Compound, *nbt.List:
		return "add " + pathArgument(path) + " "
	}
	return "set " + pathArgument(path) + " "
}
