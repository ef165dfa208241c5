// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package editorui

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/bureau-foundation/hopedit/lib/buffer"
	"github.com/bureau-foundation/hopedit/lib/content"
	"github.com/bureau-foundation/hopedit/lib/editor"
	"github.com/bureau-foundation/hopedit/lib/nbt"
	"github.com/bureau-foundation/hopedit/lib/tui"
)

// commandHelp lists the command-line commands for the help overlay.
var commandHelp = []struct {
	usage   string
	summary string
}{
	{"w [ADDRESS]", "save, or save to ADDRESS"},
	{"saveas ADDRESS", "save to ADDRESS and edit it there"},
	{"wq, x", "save and close the buffer"},
	{"q, q!", "close the buffer; ! discards changes"},
	{"qa, qa!", "quit; ! discards changes"},
	{"e ADDRESS", "open ADDRESS in a new buffer"},
	{"reload, reload!", "read the file again; ! discards changes"},
	{"verify", "settle an unverified save by reading back"},
	{"mode text|hex|tagtree", "show the file in another mode"},
	{"new [MODE]", "open an empty scratch buffer"},
	{"bn, bp", "next or previous buffer"},
	{"ls, buffers", "pick a buffer from a list"},
	{"goto N", "line, byte offset, or tag path"},
	{"set PATH VALUE", "set the tag at PATH"},
	{"add PATH NAME TYPE [VALUE]", "add a child to the container at PATH"},
	{"rename PATH NAME", "rename a compound entry"},
	{"rm PATH", "remove the tag at PATH"},
}

func (model *Model) openCommandLine(prefill string) tea.Cmd {
	model.focus = focusCommand
	model.commandLine.SetValue(prefill)
	model.commandLine.CursorEnd()
	return model.commandLine.Focus()
}

func (model *Model) closeCommandLine() {
	model.focus = focusBody
	model.commandLine.Blur()
	model.commandLine.SetValue("")
}

func (model Model) handleCommandKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc, tea.KeyCtrlC:
		model.closeCommandLine()
		return model, nil
	case tea.KeyEnter:
		line := model.commandLine.Value()
		model.closeCommandLine()
		return model.execute(line)
	}
	var cmd tea.Cmd
	model.commandLine, cmd = model.commandLine.Update(msg)
	return model, cmd
}

// execute runs one command-line command.
func (model Model) execute(line string) (tea.Model, tea.Cmd) {
	name, rest, _ := strings.Cut(strings.TrimSpace(line), " ")
	rest = strings.TrimSpace(rest)

	switch name {
	case "":
		return model, nil
	case "w", "write":
		if rest != "" {
			return model, model.saveAs(rest)
		}
		return model, model.save()
	case "saveas":
		if rest == "" {
			return model, model.flash(slog.LevelWarn, "usage: saveas ADDRESS")
		}
		return model, model.saveAs(rest)
	case "wq", "x":
		cmd, err := model.editor.SaveCmd(model.ctx, model.handle)
		switch {
		case errors.Is(err, buffer.ErrNoPath):
			return model, model.flash(slog.LevelWarn, "scratch buffer has no address; use :saveas ADDRESS")
		case err != nil:
			return model, model.flash(slog.LevelError, "save: "+err.Error())
		case cmd == nil:
			return model.closeBuffer(model.handle, false)
		}
		model.closeAfterSave = model.handle
		model.refresh()
		model.setMessage(slog.LevelInfo, "saving "+model.addressOf(model.handle)+"…")
		return model, cmd
	case "q", "close":
		return model.closeBuffer(model.handle, false)
	case "q!", "close!":
		return model.closeBuffer(model.handle, true)
	case "qa", "quit":
		return model.quitAll(false)
	case "qa!", "quit!":
		return model.quitAll(true)
	case "e", "edit", "open":
		if rest == "" {
			return model, model.flash(slog.LevelWarn, "usage: e ADDRESS")
		}
		model.setMessage(slog.LevelInfo, "opening "+rest+"…")
		return model, model.editor.OpenCmd(model.ctx, rest, editor.OpenOptions{})
	case "reload", "e!":
		return model, model.reload(name == "e!")
	case "reload!":
		return model, model.reload(true)
	case "verify":
		cmd, err := model.editor.VerifyCmd(model.ctx, model.handle)
		if err != nil {
			return model, model.flash(slog.LevelError, "verify: "+err.Error())
		}
		if cmd == nil {
			return model, model.flash(slog.LevelInfo, "nothing to verify")
		}
		model.setMessage(slog.LevelInfo, "verifying "+model.addressOf(model.handle)+"…")
		return model, cmd
	case "mode":
		return model, model.setMode(rest)
	case "new":
		kind := content.Text
		if rest != "" {
			parsed, err := content.ParseKind(rest)
			if err != nil {
				return model, model.flash(slog.LevelError, err.Error())
			}
			kind = parsed
		}
		model.switchTo(model.editor.NewScratch(kind))
		return model, nil
	case "bn":
		model.cycle(1)
		return model, nil
	case "bp":
		model.cycle(-1)
		return model, nil
	case "buffers", "ls":
		model.openPicker()
		return model, nil
	case "goto":
		return model, model.gotoTarget(rest)
	case "set", "add", "rename", "rm":
		return model, model.editTag(name, rest)
	case "help":
		model.openHelp()
		return model, nil
	}
	return model, model.flash(slog.LevelError, fmt.Sprintf("unknown command %q (f1 lists commands)", name))
}

func (model *Model) saveAs(address string) tea.Cmd {
	ctx, edit, handle := model.ctx, model.editor, model.handle
	model.setMessage(slog.LevelInfo, "saving to "+address+"…")
	return func() tea.Msg {
		return savedAsMsg{handle: handle, address: address, err: edit.SaveAs(ctx, handle, address)}
	}
}

func (model *Model) reload(force bool) tea.Cmd {
	target, err := model.editor.Buffer(model.handle)
	if err != nil {
		return model.flash(slog.LevelError, err.Error())
	}
	ctx, handle := model.ctx, model.handle
	return func() tea.Msg {
		return reloadedMsg{handle: handle, err: target.Reload(ctx, force)}
	}
}

func (model *Model) setMode(name string) tea.Cmd {
	kind, err := content.ParseKind(name)
	if err != nil {
		return model.flash(slog.LevelError, err.Error())
	}
	target, err := model.editor.Buffer(model.handle)
	if err != nil {
		return model.flash(slog.LevelError, err.Error())
	}
	if err := target.SetKind(kind); err != nil {
		if errors.Is(err, buffer.ErrUnsavedChanges) {
			return model.flash(slog.LevelWarn, "save or :reload! before switching mode")
		}
		return model.flash(slog.LevelError, err.Error())
	}
	model.cursor = cursor{}
	model.nibble = -1
	model.left = 0
	model.refresh()
	return nil
}

// bufferOptions lists the open buffers for the picker, marking the
// active one with '*' and unsaved ones with '+'.
func (model *Model) bufferOptions() ([]tui.PickerOption, int) {
	var options []tui.PickerOption
	active := 0
	for index, info := range model.editor.Buffers() {
		label := info.Address
		if info.Scratch {
			label = "[scratch]"
		}
		if info.State != buffer.Clean {
			label += "+"
		}
		marker := " "
		if info.Handle == model.handle {
			marker = "*"
			active = index
		}
		options = append(options, tui.PickerOption{
			Label: fmt.Sprintf("%s%d  %s  %s", marker, info.Handle, label, info.Kind),
			Value: strconv.FormatUint(uint64(info.Handle), 10),
		})
	}
	return options, active
}

// gotoTarget moves the cursor to a 1-based line, a byte offset
// (decimal or 0x hex), or a tag path, depending on the mode.
func (model *Model) gotoTarget(argument string) tea.Cmd {
	switch document := model.document.(type) {
	case *content.TextDocument:
		line, err := strconv.Atoi(argument)
		if err != nil || line < 1 {
			return model.flash(slog.LevelError, "goto takes a line number")
		}
		model.setTextCursor(content.Pos{Line: min(line, document.LineCount()) - 1})
	case *content.HexDocument:
		offset, err := strconv.ParseInt(argument, 0, 64)
		if err != nil || offset < 0 {
			return model.flash(slog.LevelError, "goto takes a byte offset")
		}
		model.nibble = -1
		model.cursor.offset = int(min(offset, int64(document.Len())))
		model.renderBody()
	case *content.TagTreeDocument:
		path, err := parsePathArgument(argument)
		if err != nil {
			return model.flash(slog.LevelError, err.Error())
		}
		for row, line := range document.Lines() {
			if line.Path.String() == path.String() {
				model.cursor.row = row
				model.renderBody()
				return nil
			}
		}
		return model.flash(slog.LevelError, "no tag at "+argument)
	}
	return nil
}

// editTag runs set, add, rename, and rm against the tag tree.
func (model *Model) editTag(name, rest string) tea.Cmd {
	document, ok := model.document.(*content.TagTreeDocument)
	if !ok {
		return model.flash(slog.LevelWarn, name+" works in tagtree mode (:mode tagtree)")
	}
	edit, err := tagEdit(document, name, rest)
	if err != nil {
		return model.flash(slog.LevelError, err.Error())
	}
	model.apply(edit)
	return nil
}

// tagEdit builds the edit a tag command describes.
func tagEdit(document *content.TagTreeDocument, name, rest string) (content.Edit, error) {
	usage := map[string]string{
		"set":    "set PATH VALUE",
		"add":    "add PATH NAME TYPE [VALUE]",
		"rename": "rename PATH NAME",
		"rm":     "rm PATH",
	}[name]
	want := map[string]int{"set": 2, "add": 4, "rename": 2, "rm": 1}[name]
	args := splitArguments(rest, want)
	minimum := want
	if name == "add" {
		minimum = 3
	}
	if len(args) < minimum {
		return nil, fmt.Errorf("usage: %s", usage)
	}
	path, err := parsePathArgument(args[0])
	if err != nil {
		return nil, err
	}

	switch name {
	case "set":
		node, err := nbt.Lookup(document.Root(), path)
		if err != nil {
			return nil, err
		}
		value, err := parseValue(node.Type(), args[1])
		if err != nil {
			return nil, err
		}
		return content.TagSet{Path: path, Value: value}, nil
	case "add":
		tagType, err := nbt.ParseTagType(args[2])
		if err != nil {
			return nil, err
		}
		text := ""
		if len(args) > 3 {
			text = args[3]
		}
		value, err := parseValue(tagType, text)
		if err != nil {
			return nil, err
		}
		return content.TagInsert{Path: path, Name: unquote(args[1]), Index: -1, Value: value}, nil
	case "rename":
		return content.TagRename{Path: path, Name: unquote(args[1])}, nil
	}
	return content.TagRemove{Path: path}, nil
}

// parseValue builds a tag of type t from text. Scalars use
// nbt.ParseScalar, arrays take whitespace or comma separated integers,
// and containers start empty.
func parseValue(t nbt.TagType, text string) (nbt.Tag, error) {
	switch t {
	case nbt.TagCompound:
		return nbt.NewCompound(), nil
	case nbt.TagList:
		return &nbt.List{Elem: nbt.TagEnd}, nil
	case nbt.TagByteArray, nbt.TagIntArray, nbt.TagLongArray:
		fields := strings.FieldsFunc(text, func(r rune) bool { return r == ',' || r == ' ' || r == '\t' })
		bits := map[nbt.TagType]int{nbt.TagByteArray: 8, nbt.TagIntArray: 32, nbt.TagLongArray: 64}[t]
		values := make([]int64, len(fields))
		for i, field := range fields {
			v, err := strconv.ParseInt(field, 0, bits)
			if err != nil {
				return nil, fmt.Errorf("%s element %q: %w", t, field, err)
			}
			values[i] = v
		}
		switch t {
		case nbt.TagByteArray:
			array := make(nbt.ByteArray, len(values))
			for i, v := range values {
				array[i] = byte(v)
			}
			return array, nil
		case nbt.TagIntArray:
			array := make(nbt.IntArray, len(values))
			for i, v := range values {
				array[i] = int32(v)
			}
			return array, nil
		}
		return nbt.LongArray(values), nil
	}
	return nbt.ParseScalar(t, text)
}

// splitArguments splits s at whitespace into at most n arguments, the
// last taking the remainder. Whitespace inside double quotes does not
// split, so quoted path keys survive intact.
func splitArguments(s string, n int) []string {
	var args []string
	s = strings.TrimSpace(s)
	for s != "" && len(args) < n-1 {
		end := argumentEnd(s)
		args = append(args, s[:end])
		s = strings.TrimSpace(s[end:])
	}
	if s != "" {
		args = append(args, s)
	}
	return args
}

func argumentEnd(s string) int {
	quoted := false
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c == '\\' && quoted:
			i++
		case c == '"':
			quoted = !quoted
		case (c == ' ' || c == '\t') && !quoted:
			return i
		}
	}
	return len(s)
}

// pathArgument renders path for the command line, "." for the root.
func pathArgument(path nbt.Path) string {
	if len(path) == 0 {
		return "."
	}
	return path.String()
}

func parsePathArgument(s string) (nbt.Path, error) {
	if s == "." {
		return nbt.Path{}, nil
	}
	return nbt.ParsePath(s)
}

func unquote(s string) string {
	if unquoted, err := strconv.Unquote(s); err == nil {
		return unquoted
	}
	return s
}
