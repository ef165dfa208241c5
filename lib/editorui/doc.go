// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package editorui is the interactive front end of hopedit: a
// bubbletea model that shows the active buffer of an [editor.Editor]
// in the mode the buffer is open in, and turns keystrokes and
// command-line input into edits and editor operations.
//
// The model never blocks on the network. Opening, saving, verifying,
// and reloading run as bubbletea commands whose results come back to
// Update as messages, so a slow or dead hop leaves the screen
// responsive.
//
// The layout is three regions stacked vertically: the body (text with
// a line-number gutter, the hex grid, or the flattened tag tree) with a
// scrollbar, a status bar, and a bottom line that shows key help, the
// latest message, or the command line.
package editorui
