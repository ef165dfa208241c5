// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package editorui

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/ansi"

	"github.com/bureau-foundation/hopedit/lib/buffer"
	"github.com/bureau-foundation/hopedit/lib/content"
	"github.com/bureau-foundation/hopedit/lib/editor"
	"github.com/bureau-foundation/hopedit/lib/nbt"
)

// newModel opens address (or a scratch buffer when it is empty) and
// sizes the model as a 80x24 terminal would.
func newModel(t *testing.T, address string, open editor.OpenOptions) Model {
	t.Helper()
	buffers := editor.New(editor.Options{})
	t.Cleanup(func() { buffers.Shutdown() })
	model := NewModel(t.Context(), Options{Editor: buffers, Address: address, Open: open})
	if cmd := model.Init(); cmd != nil {
		model = update(t, model, cmd())
	}
	return update(t, model, tea.WindowSizeMsg{Width: 80, Height: 24})
}

func update(t *testing.T, model Model, msg tea.Msg) Model {
	t.Helper()
	next, _ := model.Update(msg)
	return next.(Model)
}

// execute runs a command-line command and returns the model with the
// command it produced.
func execute(t *testing.T, model Model, line string) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := model.execute(line)
	return next.(Model), cmd
}

func typed(text string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(text)}
}

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func documentBytes(t *testing.T, model Model) []byte {
	t.Helper()
	document, err := model.editor.Content(model.handle)
	if err != nil {
		t.Fatalf("Content: %v", err)
	}
	return document.Encode()
}

// isQuit reports whether cmd is tea.Quit. Other commands are not run,
// since message fades sleep.
func isQuit(cmd tea.Cmd) bool {
	return cmd != nil && reflect.ValueOf(cmd).Pointer() == reflect.ValueOf(tea.Quit).Pointer()
}

func TestTypeAndSave(t *testing.T) {
	path := writeFile(t, "notes.txt", []byte("alpha\n"))
	model := newModel(t, path, editor.OpenOptions{})
	if model.info.Kind != content.Text || model.info.State != buffer.Clean {
		t.Fatalf("opened as %s/%s, want clean text", model.info.Kind, model.info.State)
	}

	model = update(t, model, typed("ab"))
	model = update(t, model, tea.KeyMsg{Type: tea.KeyEnter})
	if got := string(documentBytes(t, model)); got != "ab\nalpha\n" {
		t.Errorf("document = %q", got)
	}
	if model.cursor.text != (content.Pos{Line: 1, Col: 0}) {
		t.Errorf("cursor = %+v, want start of line 2", model.cursor.text)
	}
	if model.info.State != buffer.Dirty {
		t.Errorf("state = %s, want dirty", model.info.State)
	}

	next, cmd := model.Update(tea.KeyMsg{Type: tea.KeyCtrlS})
	model = next.(Model)
	if cmd == nil {
		t.Fatal("ctrl+s returned no command")
	}
	if model.info.State != buffer.Saving {
		t.Errorf("state while saving = %s", model.info.State)
	}
	model = update(t, model, cmd())
	if model.info.State != buffer.Clean {
		t.Errorf("state after save = %s, want clean", model.info.State)
	}
	if data, _ := os.ReadFile(path); string(data) != "ab\nalpha\n" {
		t.Errorf("file = %q", data)
	}
}

func TestTextCursorEditing(t *testing.T) {
	model := newModel(t, writeFile(t, "a.txt", []byte("one\ntwo\n")), editor.OpenOptions{})

	model = update(t, model, tea.KeyMsg{Type: tea.KeyDown})
	model = update(t, model, tea.KeyMsg{Type: tea.KeyBackspace})
	if got := string(documentBytes(t, model)); got != "onetwo\n" {
		t.Errorf("backspace at column 0 gave %q, want lines joined", got)
	}
	if model.cursor.text != (content.Pos{Line: 0, Col: 3}) {
		t.Errorf("cursor after join = %+v", model.cursor.text)
	}

	model = update(t, model, tea.KeyMsg{Type: tea.KeyDelete})
	if got := string(documentBytes(t, model)); got != "onewo\n" {
		t.Errorf("delete gave %q", got)
	}

	model = update(t, model, tea.KeyMsg{Type: tea.KeyEnd})
	model = update(t, model, tea.KeyMsg{Type: tea.KeySpace})
	model = update(t, model, typed("ü"))
	if got := string(documentBytes(t, model)); got != "onewo ü\n" {
		t.Errorf("typing at line end gave %q", got)
	}
	if model.cursor.text.Col != 7 {
		t.Errorf("cursor column = %d, want 7 (counted in runes)", model.cursor.text.Col)
	}
}

func TestHexEditing(t *testing.T) {
	hex := content.Hex
	model := newModel(t, writeFile(t, "blob.bin", []byte{0x00, 0x01}), editor.OpenOptions{Kind: &hex})
	if _, ok := model.document.(*content.HexDocument); !ok {
		t.Fatalf("document is %T, want hex", model.document)
	}

	model = update(t, model, typed("f"))
	if model.nibble != 0xf {
		t.Errorf("pending nibble = %d", model.nibble)
	}
	if !strings.Contains(ansi.Strip(model.View()), "f_") {
		t.Error("pending nibble is not shown")
	}
	model = update(t, model, typed("F"))
	model = update(t, model, tea.KeyMsg{Type: tea.KeyCtrlEnd})
	model = update(t, model, typed("41"))
	if got := documentBytes(t, model); !bytes.Equal(got, []byte{0xff, 0x01, 0x41}) {
		t.Errorf("document = % x, want ff 01 41", got)
	}
	if model.cursor.offset != 3 {
		t.Errorf("cursor offset = %d, want 3", model.cursor.offset)
	}

	model = update(t, model, tea.KeyMsg{Type: tea.KeyBackspace})
	model = update(t, model, tea.KeyMsg{Type: tea.KeyCtrlHome})
	model = update(t, model, tea.KeyMsg{Type: tea.KeyInsert})
	if got := documentBytes(t, model); !bytes.Equal(got, []byte{0x00, 0xff, 0x01}) {
		t.Errorf("document = % x, want 00 ff 01", got)
	}

	model = update(t, model, typed("g"))
	if !strings.Contains(model.message.text, "hex digits") {
		t.Errorf("message = %q, want a hint about hex digits", model.message.text)
	}

	// ':' opens the command line outside text mode.
	model = update(t, model, typed(":"))
	if model.focus != focusCommand {
		t.Error("':' did not open the command line in hex mode")
	}
}

func tagTreeFile(t *testing.T) string {
	t.Helper()
	root := nbt.NewCompound(
		nbt.Entry{Name: "count", Value: nbt.Int(3)},
		nbt.Entry{Name: "name", Value: nbt.String("x")},
	)
	data, err := nbt.Encode("", root)
	if err != nil {
		t.Fatal(err)
	}
	return writeFile(t, "level.dat", data)
}

func rootOf(t *testing.T, model Model) *nbt.Compound {
	t.Helper()
	document, err := model.editor.Content(model.handle)
	if err != nil {
		t.Fatal(err)
	}
	return document.(*content.TagTreeDocument).Root().(*nbt.Compound)
}

func TestTagTreeCommands(t *testing.T) {
	tagTree := content.TagTree
	model := newModel(t, tagTreeFile(t), editor.OpenOptions{Kind: &tagTree})

	model, _ = execute(t, model, "set count 7")
	if value, _ := rootOf(t, model).Get("count"); value != nbt.Int(7) {
		t.Errorf("count = %v, want Int 7", value)
	}
	model, _ = execute(t, model, "add . flag Byte 1")
	if value, _ := rootOf(t, model).Get("flag"); value != nbt.Byte(1) {
		t.Errorf("flag = %v, want Byte 1", value)
	}
	model, _ = execute(t, model, "add . data IntArray 1, 2,3")
	value, _ := rootOf(t, model).Get("data")
	if array, _ := value.(nbt.IntArray); len(array) != 3 {
		t.Errorf("data = %v, want three ints", value)
	}
	model, _ = execute(t, model, `rename name "display name"`)
	if _, ok := rootOf(t, model).Get("display name"); !ok {
		t.Error("rename did not take effect")
	}
	model, _ = execute(t, model, `rm "display name"`)
	if _, ok := rootOf(t, model).Get("display name"); ok {
		t.Error("rm did not take effect")
	}

	model, _ = execute(t, model, "set count notanumber")
	if model.message.level != slog.LevelError || model.message.text == "" {
		t.Error("a bad value produced no error message")
	}
	if value, _ := rootOf(t, model).Get("count"); value != nbt.Int(7) {
		t.Errorf("count changed by a failed set: %v", value)
	}
}

func TestTagTreeEnterPrefillsCommand(t *testing.T) {
	tagTree := content.TagTree
	model := newModel(t, tagTreeFile(t), editor.OpenOptions{Kind: &tagTree})

	model = update(t, model, tea.KeyMsg{Type: tea.KeyEnter})
	if got := model.commandLine.Value(); got != "add . " {
		t.Errorf("enter on the root offered %q", got)
	}
	model = update(t, model, tea.KeyMsg{Type: tea.KeyEsc})
	if model.focus != focusBody {
		t.Fatal("esc did not close the command line")
	}

	model = update(t, model, tea.KeyMsg{Type: tea.KeyDown})
	model = update(t, model, tea.KeyMsg{Type: tea.KeyEnter})
	if got := model.commandLine.Value(); got != "set count " {
		t.Errorf("enter on count offered %q", got)
	}
	model = update(t, model, typed("42"))
	model = update(t, model, tea.KeyMsg{Type: tea.KeyEnter})
	if value, _ := rootOf(t, model).Get("count"); value != nbt.Int(42) {
		t.Errorf("count = %v after editing through the command line", value)
	}

	model = update(t, model, tea.KeyMsg{Type: tea.KeyDelete})
	if _, ok := rootOf(t, model).Get("count"); ok {
		t.Error("delete did not remove the node under the cursor")
	}
}

func TestQuitRefusesUnsavedChanges(t *testing.T) {
	model := newModel(t, writeFile(t, "a.txt", []byte("x")), editor.OpenOptions{})
	model = update(t, model, typed("y"))

	next, _ := model.Update(tea.KeyMsg{Type: tea.KeyCtrlQ})
	model = next.(Model)
	if !strings.Contains(model.message.text, "unsaved") {
		t.Errorf("message = %q, want a refusal", model.message.text)
	}
	model, cmd := execute(t, model, "q")
	if isQuit(cmd) {
		t.Error(":q closed a dirty buffer")
	}
	if _, cmd = execute(t, model, "qa!"); !isQuit(cmd) {
		t.Error(":qa! did not quit")
	}
}

func TestCloseLastBufferQuits(t *testing.T) {
	model := newModel(t, writeFile(t, "a.txt", []byte("x")), editor.OpenOptions{})
	if _, cmd := execute(t, model, "q"); !isQuit(cmd) {
		t.Error(":q on the only clean buffer did not quit")
	}
}

func TestWriteQuit(t *testing.T) {
	path := writeFile(t, "a.txt", []byte("x"))
	model := newModel(t, path, editor.OpenOptions{})
	model = update(t, model, typed("w"))

	model, cmd := execute(t, model, "wq")
	if cmd == nil {
		t.Fatal(":wq returned no save command")
	}
	next, cmd := model.Update(cmd())
	model = next.(Model)
	if !isQuit(cmd) {
		t.Error("buffer was not closed after the save finished")
	}
	if data, _ := os.ReadFile(path); string(data) != "wx" {
		t.Errorf("file = %q", data)
	}
}

func TestInitialOpenFailureEndsProgram(t *testing.T) {
	buffers := editor.New(editor.Options{})
	t.Cleanup(func() { buffers.Shutdown() })
	model := NewModel(t.Context(), Options{Editor: buffers, Address: "sudo:"})
	next, cmd := model.Update(model.Init()())
	if !isQuit(cmd) {
		t.Error("failed initial open did not quit")
	}
	if next.(Model).Err() == nil {
		t.Error("Err is nil after a failed initial open")
	}
}

func TestScratchSaveAs(t *testing.T) {
	model := newModel(t, "", editor.OpenOptions{})
	if !model.info.Scratch {
		t.Fatalf("model without an address opened %+v, want a scratch buffer", model.info)
	}
	model = update(t, model, typed("draft"))

	model, _ = execute(t, model, "w")
	if !strings.Contains(model.message.text, ":saveas") {
		t.Errorf(":w on a scratch buffer said %q, want a pointer to :saveas", model.message.text)
	}

	path := filepath.Join(t.TempDir(), "draft.txt")
	model, cmd := execute(t, model, "saveas "+path)
	model = update(t, model, cmd())
	if data, _ := os.ReadFile(path); string(data) != "draft" {
		t.Errorf("file = %q", data)
	}
	if model.info.Scratch || model.info.Address != path {
		t.Errorf("after saveas: %+v", model.info)
	}
}

func TestModeSwitchAndReload(t *testing.T) {
	path := writeFile(t, "a.txt", []byte("hi"))
	model := newModel(t, path, editor.OpenOptions{})

	model, _ = execute(t, model, "mode hex")
	if _, ok := model.document.(*content.HexDocument); !ok {
		t.Fatalf("document is %T after :mode hex", model.document)
	}
	model, _ = execute(t, model, "mode text")
	model = update(t, model, typed("!"))
	model, _ = execute(t, model, "mode hex")
	if _, ok := model.document.(*content.TextDocument); !ok {
		t.Error("mode switched despite unsaved changes")
	}

	if err := os.WriteFile(path, []byte("changed on disk"), 0o644); err != nil {
		t.Fatal(err)
	}
	model, cmd := execute(t, model, "reload!")
	model = update(t, model, cmd())
	if got := string(documentBytes(t, model)); got != "changed on disk" {
		t.Errorf("after reload! document = %q", got)
	}
	if model.info.State != buffer.Clean {
		t.Errorf("state after reload = %s", model.info.State)
	}
}

func TestBuffersKeepTheirCursors(t *testing.T) {
	first := writeFile(t, "first.txt", []byte("one\ntwo\n"))
	second := writeFile(t, "second.txt", []byte("three\n"))
	model := newModel(t, first, editor.OpenOptions{})
	model = update(t, model, tea.KeyMsg{Type: tea.KeyDown})

	model, cmd := execute(t, model, "e "+second)
	model = update(t, model, cmd())
	if model.info.Address != second {
		t.Fatalf("active = %q, want %q", model.info.Address, second)
	}
	if model.cursor.text != (content.Pos{}) {
		t.Errorf("new buffer cursor = %+v", model.cursor.text)
	}

	model = update(t, model, tea.KeyMsg{Type: tea.KeyCtrlP})
	if model.info.Address != first {
		t.Fatalf("active after ctrl+p = %q", model.info.Address)
	}
	if model.cursor.text.Line != 1 {
		t.Errorf("cursor in the first buffer = %+v, want line 2 restored", model.cursor.text)
	}

	model = update(t, model, tea.KeyMsg{Type: tea.KeyCtrlB})
	if model.focus != focusPicker || len(model.picker.Options) != 2 {
		t.Fatalf("ctrl+b: focus %d with %d options", model.focus, len(model.picker.Options))
	}
	if selected, _ := model.picker.Selected(); !strings.Contains(selected.Label, "*") || !strings.Contains(selected.Label, first) {
		t.Errorf("picker starts on %q, want the active buffer", selected.Label)
	}
	if !strings.Contains(ansi.Strip(model.View()), "buffers") {
		t.Error("picker is not drawn")
	}
	model = update(t, model, tea.KeyMsg{Type: tea.KeyDown})
	model = update(t, model, tea.KeyMsg{Type: tea.KeyEnter})
	if model.focus != focusBody || model.info.Address != second {
		t.Errorf("picking the second buffer left focus %d on %q", model.focus, model.info.Address)
	}
}

func TestViewShowsStatusAndHelp(t *testing.T) {
	path := writeFile(t, "main.go", []byte("package main\n"))
	model := newModel(t, path, editor.OpenOptions{})
	model = update(t, model, tea.WindowSizeMsg{Width: 160, Height: 24})

	view := ansi.Strip(model.View())
	for _, want := range []string{path, "clean", "text", "Ln 1, Col 1", "package main"} {
		if !strings.Contains(view, want) {
			t.Errorf("view does not contain %q:\n%s", want, view)
		}
	}
	if lines := strings.Split(model.View(), "\n"); len(lines) != 24 {
		t.Errorf("view has %d lines, want 24", len(lines))
	}

	model = update(t, model, tea.KeyMsg{Type: tea.KeyF1})
	if model.focus != focusHelp || !strings.Contains(ansi.Strip(model.View()), "line start") {
		t.Error("f1 did not show the help overlay")
	}
	model = update(t, model, tea.KeyMsg{Type: tea.KeyEsc})
	if model.focus != focusBody {
		t.Error("esc did not close help")
	}
}

func TestUnknownCommand(t *testing.T) {
	model := newModel(t, "", editor.OpenOptions{})
	model, _ = execute(t, model, "frobnicate")
	if !strings.Contains(model.message.text, `unknown command "frobnicate"`) {
		t.Errorf("message = %q", model.message.text)
	}
}

func TestSplitArguments(t *testing.T) {
	tests := []struct {
		input string
		n     int
		want  []string
	}{
		{"count 7", 2, []string{"count", "7"}},
		{"name hello world", 2, []string{"name", "hello world"}},
		{`"odd key".x "a b"`, 2, []string{`"odd key".x`, `"a b"`}},
		{`Level."a \" b" 1`, 2, []string{`Level."a \" b"`, "1"}},
		{"  spaced   out  ", 3, []string{"spaced", "out"}},
		{"", 2, nil},
	}
	for _, test := range tests {
		got := splitArguments(test.input, test.n)
		if strings.Join(got, "|") != strings.Join(test.want, "|") || len(got) != len(test.want) {
			t.Errorf("splitArguments(%q, %d) = %q, want %q", test.input, test.n, got, test.want)
		}
	}
}
