// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package editorui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the key bindings of the editor. Printable keys are
// not bound: in text mode they insert themselves and in hex mode hex
// digits set nibbles.
type KeyMap struct {
	Up        key.Binding
	Down      key.Binding
	Left      key.Binding
	Right     key.Binding
	PageUp    key.Binding
	PageDown  key.Binding
	LineStart key.Binding
	LineEnd   key.Binding
	Top       key.Binding
	Bottom    key.Binding

	Backspace  key.Binding
	Delete     key.Binding
	Enter      key.Binding // Text: newline. Tag tree: edit the node.
	Tab        key.Binding
	InsertByte key.Binding // Hex: insert a zero byte at the cursor.

	Save           key.Binding
	Command        key.Binding // Open the command line.
	CommandColon   key.Binding // Same, in modes where ':' is not text.
	NextBuffer     key.Binding
	PreviousBuffer key.Binding
	Buffers        key.Binding // Pick a buffer from a list.
	Help           key.Binding
	Quit           key.Binding
}

// DefaultKeyMap is the built-in binding set. It avoids letter keys so
// that text mode can insert every printable character.
var DefaultKeyMap = KeyMap{
	Up: key.NewBinding(
		key.WithKeys("up"),
		key.WithHelp("↑", "up"),
	),
	Down: key.NewBinding(
		key.WithKeys("down"),
		key.WithHelp("↓", "down"),
	),
	Left: key.NewBinding(
		key.WithKeys("left"),
		key.WithHelp("←", "left"),
	),
	Right: key.NewBinding(
		key.WithKeys("right"),
		key.WithHelp("→", "right"),
	),
	PageUp: key.NewBinding(
		key.WithKeys("pgup"),
		key.WithHelp("pgup", "page up"),
	),
	PageDown: key.NewBinding(
		key.WithKeys("pgdown"),
		key.WithHelp("pgdn", "page down"),
	),
	LineStart: key.NewBinding(
		key.WithKeys("home", "ctrl+a"),
		key.WithHelp("home", "line start"),
	),
	LineEnd: key.NewBinding(
		key.WithKeys("end", "ctrl+e"),
		key.WithHelp("end", "line end"),
	),
	Top: key.NewBinding(
		key.WithKeys("ctrl+home"),
		key.WithHelp("ctrl+home", "top"),
	),
	Bottom: key.NewBinding(
		key.WithKeys("ctrl+end"),
		key.WithHelp("ctrl+end", "bottom"),
	),
	Backspace: key.NewBinding(
		key.WithKeys("backspace", "ctrl+h"),
		key.WithHelp("bksp", "delete back"),
	),
	Delete: key.NewBinding(
		key.WithKeys("delete"),
		key.WithHelp("del", "delete"),
	),
	Enter: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "newline / edit node"),
	),
	Tab: key.NewBinding(
		key.WithKeys("tab"),
		key.WithHelp("tab", "tab"),
	),
	InsertByte: key.NewBinding(
		key.WithKeys("insert"),
		key.WithHelp("ins", "insert byte"),
	),
	Save: key.NewBinding(
		key.WithKeys("ctrl+s"),
		key.WithHelp("ctrl+s", "save"),
	),
	Command: key.NewBinding(
		key.WithKeys("esc"),
		key.WithHelp("esc", "command"),
	),
	CommandColon: key.NewBinding(
		key.WithKeys(":"),
		key.WithHelp(":", "command"),
	),
	NextBuffer: key.NewBinding(
		key.WithKeys("ctrl+n"),
		key.WithHelp("ctrl+n", "next buffer"),
	),
	PreviousBuffer: key.NewBinding(
		key.WithKeys("ctrl+p"),
		key.WithHelp("ctrl+p", "previous buffer"),
	),
	Buffers: key.NewBinding(
		key.WithKeys("ctrl+b"),
		key.WithHelp("ctrl+b", "buffer list"),
	),
	Help: key.NewBinding(
		key.WithKeys("f1"),
		key.WithHelp("f1", "help"),
	),
	Quit: key.NewBinding(
		key.WithKeys("ctrl+q"),
		key.WithHelp("ctrl+q", "quit"),
	),
}

// ShortHelp implements help.KeyMap for the bottom line.
func (keys KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{keys.Save, keys.Command, keys.NextBuffer, keys.Help, keys.Quit}
}

// FullHelp implements help.KeyMap for the help overlay.
func (keys KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{keys.Up, keys.Down, keys.Left, keys.Right, keys.PageUp, keys.PageDown, keys.LineStart, keys.LineEnd, keys.Top, keys.Bottom},
		{keys.Backspace, keys.Delete, keys.Enter, keys.Tab, keys.InsertByte},
		{keys.Save, keys.Command, keys.CommandColon, keys.NextBuffer, keys.PreviousBuffer, keys.Buffers, keys.Help, keys.Quit},
	}
}
