// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package editorui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/bureau-foundation/hopedit/lib/buffer"
	"github.com/bureau-foundation/hopedit/lib/content"
	"github.com/bureau-foundation/hopedit/lib/editor"
	"github.com/bureau-foundation/hopedit/lib/transport"
	"github.com/bureau-foundation/hopedit/lib/tui"
)

// focus is the region that receives key input.
type focus int

const (
	focusBody focus = iota
	focusCommand
	focusHelp
	focusPicker
)

// Options configures a Model.
type Options struct {
	Editor *editor.Editor

	// Logger receives debug records about what the model does. Nil
	// discards them.
	Logger *slog.Logger

	// Address is opened when the program starts. Empty starts with an
	// empty text scratch buffer.
	Address string
	Open    editor.OpenOptions

	// Theme and KeyMap default to DefaultTheme and DefaultKeyMap.
	Theme  *tui.Theme
	KeyMap *KeyMap

	// HexWidth is the number of bytes per row in hex mode. Zero means
	// 16.
	HexWidth int
}

// cursor is a position in the active buffer. Only the field for the
// buffer's mode is meaningful.
type cursor struct {
	text content.Pos
	// want is the column vertical movement aims for.
	want   int
	offset int
	row    int
}

type message struct {
	text     string
	level    slog.Level
	sequence int
}

// savedAsMsg carries the result of a :saveas.
type savedAsMsg struct {
	handle  editor.Handle
	address string
	err     error
}

// reloadedMsg carries the result of a :reload.
type reloadedMsg struct {
	handle editor.Handle
	err    error
}

// Model is the bubbletea model of the editor.
type Model struct {
	ctx      context.Context
	editor   *editor.Editor
	logger   *slog.Logger
	theme    tui.Theme
	keys     KeyMap
	hexWidth int

	address     string
	openOptions editor.OpenOptions
	opened      bool

	handle      editor.Handle
	info        editor.Info
	document    content.Document
	language    string
	languageKey string
	cursor      cursor
	cursors     map[editor.Handle]cursor
	// nibble is the high half of a byte being typed in hex mode, or
	// -1.
	nibble int
	// left is the first display column shown in text mode.
	left int

	width, height int
	ready         bool
	body          viewport.Model
	helpView      viewport.Model
	help          help.Model
	commandLine   textinput.Model
	picker        tui.Picker
	focus         focus

	message  message
	sequence int
	// closeAfterSave is the buffer a :wq is waiting to close.
	closeAfterSave editor.Handle
	err            error
}

// NewModel creates a model over options.Editor. The context bounds
// every operation the model starts.
func NewModel(ctx context.Context, options Options) Model {
	theme := tui.DefaultTheme
	if options.Theme != nil {
		theme = *options.Theme
	}
	keys := DefaultKeyMap
	if options.KeyMap != nil {
		keys = *options.KeyMap
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	hexWidth := options.HexWidth
	if hexWidth <= 0 {
		hexWidth = 16
	}

	input := textinput.New()
	input.Prompt = ":"
	input.PromptStyle = lipgloss.NewStyle().Foreground(theme.HeaderForeground)

	helpModel := help.New()
	helpModel.Styles.ShortKey = lipgloss.NewStyle().Foreground(theme.FaintText)
	helpModel.Styles.ShortDesc = lipgloss.NewStyle().Foreground(theme.HelpText)
	helpModel.Styles.ShortSeparator = lipgloss.NewStyle().Foreground(theme.HelpText)

	model := Model{
		ctx:         ctx,
		editor:      options.Editor,
		logger:      logger,
		theme:       theme,
		keys:        keys,
		hexWidth:    hexWidth,
		address:     options.Address,
		openOptions: options.Open,
		cursors:     make(map[editor.Handle]cursor),
		nibble:      -1,
		body:        viewport.New(0, 0),
		helpView:    viewport.New(0, 0),
		help:        helpModel,
		commandLine: input,
	}
	if options.Address == "" {
		options.Editor.NewScratch(content.Text)
		model.opened = true
		model.refresh()
	}
	return model
}

// Err returns the error that ended the program, if the initial open
// failed.
func (model Model) Err() error {
	return model.err
}

func (model Model) Init() tea.Cmd {
	if model.address == "" {
		return nil
	}
	return model.editor.OpenCmd(model.ctx, model.address, model.openOptions)
}

func (model Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		model.resize(msg.Width, msg.Height)
		return model, nil

	case editor.OpenedMsg:
		return model.handleOpened(msg)

	case editor.SavedMsg:
		return model.handleSaved(msg)

	case editor.VerifiedMsg:
		handle, err := model.editor.Apply(msg)
		model.refresh()
		if err != nil {
			return model, model.flash(slog.LevelError, "verify failed: "+err.Error())
		}
		return model, model.flash(slog.LevelInfo, "verified "+model.addressOf(handle))

	case savedAsMsg:
		model.refresh()
		if msg.err != nil {
			return model, model.flash(slog.LevelError, fmt.Sprintf("save as %s: %v", msg.address, msg.err))
		}
		return model, model.flash(slog.LevelInfo, "saved as "+model.addressOf(msg.handle))

	case reloadedMsg:
		model.refresh()
		if msg.err != nil {
			if errors.Is(msg.err, buffer.ErrUnsavedChanges) {
				return model, model.flash(slog.LevelWarn, "unsaved changes; :reload! discards them")
			}
			return model, model.flash(slog.LevelError, "reload failed: "+msg.err.Error())
		}
		return model, model.flash(slog.LevelInfo, "reloaded "+model.addressOf(msg.handle))

	case logRecordMsg:
		return model, model.flash(msg.Level, msg.Summary)

	case messageFadeMsg:
		if msg.sequence == model.message.sequence {
			model.message = message{}
		}
		return model, nil

	case tea.KeyMsg:
		switch model.focus {
		case focusCommand:
			return model.handleCommandKeys(msg)
		case focusHelp:
			return model.handleHelpKeys(msg)
		case focusPicker:
			return model.handlePickerKeys(msg)
		}
		return model.handleBodyKeys(msg)
	}
	return model, nil
}

func (model Model) handleOpened(msg editor.OpenedMsg) (tea.Model, tea.Cmd) {
	handle, err := model.editor.Apply(msg)
	if err != nil {
		if !model.opened {
			model.err = err
			return model, tea.Quit
		}
		return model, model.flash(slog.LevelError, fmt.Sprintf("open %s: %v", msg.Address, err))
	}
	model.opened = true
	model.switchTo(handle)
	text := "opened " + model.info.Address
	if model.info.New {
		text += " (new file)"
	}
	return model, model.flash(slog.LevelInfo, text)
}

func (model Model) handleSaved(msg editor.SavedMsg) (tea.Model, tea.Cmd) {
	handle, err := model.editor.Apply(msg)
	model.refresh()
	if err != nil {
		model.closeAfterSave = 0
		if errors.Is(err, transport.ErrOutcomeUnknown) {
			return model, model.flash(slog.LevelWarn, "save outcome unknown; :verify reads the file back")
		}
		return model, model.flash(slog.LevelError, "save failed: "+err.Error())
	}
	if model.closeAfterSave == handle {
		model.closeAfterSave = 0
		return model.closeBuffer(handle, false)
	}
	return model, model.flash(slog.LevelInfo, "saved "+model.addressOf(handle))
}

// flash shows text in the bottom line and returns the command that
// fades it.
func (model *Model) flash(level slog.Level, text string) tea.Cmd {
	model.setMessage(level, text)
	sequence := model.sequence
	return tea.Tick(messageFadeDelay, func(time.Time) tea.Msg {
		return messageFadeMsg{sequence: sequence}
	})
}

// setMessage shows text until the next message replaces it.
func (model *Model) setMessage(level slog.Level, text string) {
	model.sequence++
	model.message = message{text: text, level: level, sequence: model.sequence}
	model.logger.Debug("message", "level", level, "text", text)
}

func (model *Model) resize(width, height int) {
	model.width, model.height = width, height
	model.ready = true
	model.body.Width = max(1, width-1)
	model.body.Height = max(1, height-2)
	model.commandLine.Width = max(1, width-2)
	model.help.Width = width
	model.helpView.Width = max(10, min(76, width-6))
	model.helpView.Height = max(1, height-4)
	model.renderBody()
}

// switchTo makes handle the active buffer.
func (model *Model) switchTo(handle editor.Handle) {
	if err := model.editor.SetActive(handle); err != nil {
		model.setMessage(slog.LevelError, err.Error())
		return
	}
	model.refresh()
}

// refresh reloads the active buffer's state and document from the
// editor and redraws the body.
func (model *Model) refresh() {
	handle, ok := model.editor.Active()
	if !ok {
		model.handle = 0
		model.info = editor.Info{}
		model.document = nil
		model.renderBody()
		return
	}
	if handle != model.handle {
		if model.handle != 0 {
			model.cursors[model.handle] = model.cursor
		}
		model.cursor = model.cursors[handle]
		model.handle = handle
		model.nibble = -1
		model.left = 0
	}
	if info, ok := model.infoOf(handle); ok {
		model.info = info
	}
	document, err := model.editor.Content(handle)
	if err != nil {
		model.setMessage(slog.LevelError, err.Error())
		document = nil
	}
	model.document = document

	key := fmt.Sprintf("%d|%s|%s", handle, model.info.Kind, model.info.Address)
	if key != model.languageKey {
		model.languageKey = key
		model.language = ""
		if text, ok := document.(*content.TextDocument); ok {
			model.language = content.DetectLanguage(model.info.Address, text.Encode())
		}
	}
	model.clampCursor()
	model.renderBody()
}

func (model *Model) infoOf(handle editor.Handle) (editor.Info, bool) {
	for _, info := range model.editor.Buffers() {
		if info.Handle == handle {
			return info, true
		}
	}
	return editor.Info{}, false
}

func (model *Model) addressOf(handle editor.Handle) string {
	info, ok := model.infoOf(handle)
	if !ok {
		return fmt.Sprintf("buffer %d", handle)
	}
	if info.Scratch {
		return "[scratch]"
	}
	return info.Address
}

func (model *Model) clampCursor() {
	switch document := model.document.(type) {
	case *content.TextDocument:
		position := &model.cursor.text
		position.Line = clamp(position.Line, 0, document.LineCount()-1)
		position.Col = clamp(position.Col, 0, document.LineLength(position.Line))
	case *content.HexDocument:
		model.cursor.offset = clamp(model.cursor.offset, 0, document.Len())
	case *content.TagTreeDocument:
		model.cursor.row = clamp(model.cursor.row, 0, len(document.Lines())-1)
	}
}

// cycle activates the buffer delta positions away from the active one.
func (model *Model) cycle(delta int) {
	buffers := model.editor.Buffers()
	if len(buffers) < 2 {
		return
	}
	current := 0
	for index, info := range buffers {
		if info.Handle == model.handle {
			current = index
		}
	}
	next := ((current+delta)%len(buffers) + len(buffers)) % len(buffers)
	model.switchTo(buffers[next].Handle)
}

// closeBuffer closes handle, quitting when it was the last buffer.
func (model Model) closeBuffer(handle editor.Handle, force bool) (tea.Model, tea.Cmd) {
	if err := model.editor.Close(handle, force); err != nil {
		switch {
		case errors.Is(err, buffer.ErrSaveInFlight):
			return model, model.flash(slog.LevelWarn, "a save is in flight; wait for it to finish")
		case errors.Is(err, buffer.ErrUnsavedChanges):
			return model, model.flash(slog.LevelWarn, model.addressOf(handle)+" has unsaved changes; :q! discards them")
		}
		return model, model.flash(slog.LevelError, err.Error())
	}
	delete(model.cursors, handle)
	if len(model.editor.Buffers()) == 0 {
		return model, tea.Quit
	}
	model.refresh()
	return model, nil
}

// quitAll ends the program. Without force it refuses while any buffer
// holds changes that are not known to be on disk.
func (model Model) quitAll(force bool) (tea.Model, tea.Cmd) {
	if !force {
		unsaved := 0
		for _, info := range model.editor.Buffers() {
			if info.State != buffer.Clean {
				unsaved++
			}
		}
		if unsaved > 0 {
			noun := "buffer has"
			if unsaved > 1 {
				noun = "buffers have"
			}
			return model, model.flash(slog.LevelWarn, fmt.Sprintf("%d %s unsaved changes; :qa! discards them", unsaved, noun))
		}
	}
	return model, tea.Quit
}

// save starts writing the active buffer.
func (model *Model) save() tea.Cmd {
	cmd, err := model.editor.SaveCmd(model.ctx, model.handle)
	switch {
	case errors.Is(err, buffer.ErrNoPath):
		return model.flash(slog.LevelWarn, "scratch buffer has no address; use :saveas ADDRESS")
	case err != nil:
		return model.flash(slog.LevelError, "save: "+err.Error())
	case cmd == nil:
		return model.flash(slog.LevelInfo, "nothing to save")
	}
	model.refresh()
	model.setMessage(slog.LevelInfo, "saving "+model.addressOf(model.handle)+"…")
	return cmd
}

// apply applies edit to the active buffer and redraws.
func (model *Model) apply(edit content.Edit) error {
	if err := model.editor.ApplyEdit(model.handle, edit); err != nil {
		if errors.Is(err, buffer.ErrSaveInFlight) {
			model.setMessage(slog.LevelWarn, "a save is in flight; edits resume when it finishes")
		} else {
			model.setMessage(slog.LevelError, err.Error())
		}
		return err
	}
	model.refresh()
	return nil
}

func clamp(value, low, high int) int {
	if high < low {
		return low
	}
	return max(low, min(value, high))
}
