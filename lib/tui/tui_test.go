// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tui

import (
	"strings"
	"testing"

	"github.com/charmbracelet/x/ansi"

	"github.com/bureau-foundation/hopedit/lib/buffer"
)

func TestRenderScrollbar(t *testing.T) {
	tests := []struct {
		name                   string
		total, visible, offset int
		want                   string
	}{
		{"everything fits", 3, 10, 0, "┃┃┃┃"},
		{"top", 100, 10, 0, "┃│││"},
		{"bottom", 100, 10, 90, "│││┃"},
		{"past the end clamps", 100, 10, 500, "│││┃"},
		{"half visible", 8, 4, 4, "││┃┃"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			rendered := RenderScrollbar(DefaultTheme, 4, test.total, test.visible, test.offset)
			if got := strings.ReplaceAll(ansi.Strip(rendered), "\n", ""); got != test.want {
				t.Errorf("scrollbar = %q, want %q", got, test.want)
			}
		})
	}
	if got := RenderScrollbar(DefaultTheme, 0, 10, 5, 0); got != "" {
		t.Errorf("zero-height scrollbar = %q", got)
	}
}

func TestBoxLinesHaveEqualWidth(t *testing.T) {
	lines := Box(DefaultTheme, "help", []string{"short", "a line far wider than the box allows", ""}, 20)
	if len(lines) != 5 {
		t.Fatalf("Box returned %d lines, want border + 3 + border", len(lines))
	}
	for index, line := range lines {
		if width := ansi.StringWidth(line); width != 24 {
			t.Errorf("line %d %q has width %d, want 24", index, ansi.Strip(line), width)
		}
	}
	if !strings.Contains(ansi.Strip(lines[0]), "help") {
		t.Errorf("title missing from %q", ansi.Strip(lines[0]))
	}
	if !strings.Contains(ansi.Strip(lines[2]), "…") {
		t.Errorf("wide line not truncated: %q", ansi.Strip(lines[2]))
	}
}

func TestSpliceOverlay(t *testing.T) {
	view := "aaaaaaaaaa\nbbbbbbbbbb\ncc"
	got := SpliceOverlay(view, []string{"XX", "YY"}, 3, 1)
	lines := strings.Split(ansi.Strip(got), "\n")
	want := []string{"aaaaaaaaaa", "bbbXXbbbbb", "cc YY"}
	for index := range want {
		if lines[index] != want[index] {
			t.Errorf("line %d = %q, want %q", index, lines[index], want[index])
		}
	}

	// Rows past the bottom of the view are dropped.
	if got := SpliceOverlay("one", []string{"A", "B"}, 0, 0); ansi.Strip(got) != "Ane" {
		t.Errorf("overlay past the view = %q", ansi.Strip(got))
	}
	if got := SpliceOverlay(view, nil, 0, 0); got != view {
		t.Error("empty overlay changed the view")
	}
}

func TestStateColor(t *testing.T) {
	theme := DefaultTheme
	tests := map[buffer.State]string{
		buffer.Clean:      string(theme.StateClean),
		buffer.Dirty:      string(theme.StateDirty),
		buffer.Saving:     string(theme.StateSaving),
		buffer.Unverified: string(theme.StateUnverified),
		buffer.State(99):  string(theme.FaintText),
	}
	for state, want := range tests {
		if got := string(theme.StateColor(state)); got != want {
			t.Errorf("StateColor(%s) = %s, want %s", state, got, want)
		}
	}
}

func TestPicker(t *testing.T) {
	picker := Picker{Title: "buffers", Options: []PickerOption{
		{Label: "notes.txt", Value: "1"},
		{Label: "a much longer label than the screen allows", Value: "2"},
	}}
	picker.MoveUp()
	if selected, _ := picker.Selected(); selected.Value != "2" {
		t.Errorf("MoveUp from the top selected %q, want a wrap to 2", selected.Value)
	}
	picker.MoveDown()
	if selected, _ := picker.Selected(); selected.Value != "1" {
		t.Errorf("MoveDown from the bottom selected %q, want a wrap to 1", selected.Value)
	}

	lines := picker.Render(DefaultTheme, 30)
	if len(lines) != 4 {
		t.Fatalf("Render returned %d lines, want border + 2 + border", len(lines))
	}
	for index, line := range lines {
		if width := ansi.StringWidth(line); width != 30 {
			t.Errorf("line %d %q has width %d, want 30", index, ansi.Strip(line), width)
		}
	}
	if !strings.Contains(ansi.Strip(lines[1]), "> notes.txt") {
		t.Errorf("highlighted row = %q", ansi.Strip(lines[1]))
	}

	var empty Picker
	empty.MoveDown()
	if _, ok := empty.Selected(); ok {
		t.Error("empty picker reported a selection")
	}
}
