// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package editor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/bureau-foundation/hopedit/lib/address"
	"github.com/bureau-foundation/hopedit/lib/buffer"
	"github.com/bureau-foundation/hopedit/lib/config"
	"github.com/bureau-foundation/hopedit/lib/content"
	"github.com/bureau-foundation/hopedit/lib/transport"
)

// Handle identifies an open buffer. Handles are never reused.
type Handle uint64

// ErrUnknownHandle is returned for handles that were never issued or
// have been closed.
var ErrUnknownHandle = errors.New("unknown buffer handle")

// CloseError reports a buffer that refused to close.
type CloseError struct {
	Handle  Handle
	Address string
	Err     error
}

func (e *CloseError) Error() string {
	return fmt.Sprintf("closing buffer %d (%s): %v", e.Handle, e.Address, e.Err)
}

func (e *CloseError) Unwrap() error { return e.Err }

// Options configures an Editor.
type Options struct {
	// Config supplies transport settings and buffer defaults. Nil
	// means config.Default().
	Config *config.Config

	Logger *slog.Logger

	// Connector overrides the pool built from Config.
	Connector transport.Connector
}

// Editor is a set of open buffers. Its methods are safe for concurrent
// use.
type Editor struct {
	config    *config.Config
	logger    *slog.Logger
	connector transport.Connector

	// pool is the connector the editor built and must close, nil when
	// Options.Connector was given.
	pool *transport.Pool

	mutex   sync.Mutex
	buffers map[Handle]*entry
	next    Handle
	active  Handle

	// releasing tracks stores of closed buffers that are still being
	// released; Shutdown waits for them.
	releasing sync.WaitGroup
}

type entry struct {
	buffer *buffer.Buffer

	// target is the buffer's address; zero for scratch buffers.
	// Guarded by Editor.mutex once the entry is registered.
	target address.Target
}

func (e *entry) address() string {
	if e.target.Hops == nil {
		return "[scratch]"
	}
	return e.target.String()
}

// New returns an editor with no buffers.
func New(options Options) *Editor {
	cfg := options.Config
	if cfg == nil {
		cfg = config.Default()
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	editor := &Editor{
		config:    cfg,
		logger:    logger,
		connector: options.Connector,
		buffers:   make(map[Handle]*entry),
	}
	if editor.connector == nil {
		editor.pool = transport.NewPool(transport.OptionsFromConfig(cfg, logger))
		editor.connector = editor.pool
	}
	return editor
}

// OpenOptions controls how a file is opened.
type OpenOptions struct {
	// Kind forces a content mode. Nil uses the configured default
	// mode, detecting one when that is "auto".
	Kind *content.Kind
}

// Info describes an open buffer.
type Info struct {
	Handle   Handle
	Address  string
	Kind     content.Kind
	State    buffer.State
	New      bool
	ReadOnly bool
	Scratch  bool
}

// OpenedMsg carries the result of OpenCmd.
type OpenedMsg struct {
	Address string
	Err     error

	target address.Target
	buffer *buffer.Buffer
}

// SavedMsg carries the result of SaveCmd.
type SavedMsg struct {
	Handle Handle
	Err    error

	job *buffer.SaveJob
}

// VerifiedMsg carries the result of VerifyCmd.
type VerifiedMsg struct {
	Handle Handle
	Err    error

	job  *buffer.VerifyJob
	data []byte
}

// Open opens the file at addr and makes it the active buffer.
func (e *Editor) Open(ctx context.Context, addr string, options OpenOptions) (Handle, error) {
	return e.Apply(e.open(ctx, addr, options))
}

// OpenCmd is Open for the interactive loop.
func (e *Editor) OpenCmd(ctx context.Context, addr string, options OpenOptions) tea.Cmd {
	return func() tea.Msg {
		return e.open(ctx, addr, options)
	}
}

// open does the I/O of Open without touching editor state.
func (e *Editor) open(ctx context.Context, addr string, options OpenOptions) OpenedMsg {
	message := OpenedMsg{Address: addr}
	target, err := address.Parse(addr)
	if err != nil {
		message.Err = err
		return message
	}
	if target.Path == "" {
		message.Err = fmt.Errorf("%s: %w", addr, buffer.ErrNoPath)
		return message
	}
	kind, err := e.kind(options)
	if err != nil {
		message.Err = err
		return message
	}

	session, err := transport.OpenSession(ctx, e.connector, target.Hops)
	if err != nil {
		message.Err = fmt.Errorf("connecting to %s: %w", addr, err)
		return message
	}
	opened, err := buffer.Open(ctx, session, target.Path, buffer.OpenOptions{
		Kind:    kind,
		MaxSize: e.config.Editor.MaxFileSize,
		Logger:  e.logger.With("address", target.String()),
	})
	if err != nil {
		session.Close()
		message.Err = err
		return message
	}
	message.target = target
	message.buffer = opened
	return message
}

func (e *Editor) kind(options OpenOptions) (*content.Kind, error) {
	if options.Kind != nil {
		return options.Kind, nil
	}
	mode := e.config.Editor.DefaultMode
	if mode == "" || mode == "auto" {
		return nil, nil
	}
	kind, err := content.ParseKind(mode)
	if err != nil {
		return nil, fmt.Errorf("editor.default_mode: %w", err)
	}
	return &kind, nil
}

// NewScratch creates an empty buffer bound to no file and makes it
// active.
func (e *Editor) NewScratch(kind content.Kind) Handle {
	return e.register(&entry{buffer: buffer.NewScratch(kind, e.logger.With("address", "[scratch]"))})
}

func (e *Editor) register(item *entry) Handle {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	e.next++
	e.buffers[e.next] = item
	e.active = e.next
	e.logger.Debug("buffer opened", "handle", e.next, "address", item.address())
	return e.next
}

func (e *Editor) lookup(handle Handle) (*entry, error) {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	item, ok := e.buffers[handle]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownHandle, handle)
	}
	return item, nil
}

// Buffer returns the buffer behind handle.
func (e *Editor) Buffer(handle Handle) (*buffer.Buffer, error) {
	item, err := e.lookup(handle)
	if err != nil {
		return nil, err
	}
	return item.buffer, nil
}

// Content returns a snapshot of handle's document.
func (e *Editor) Content(handle Handle) (content.Document, error) {
	item, err := e.lookup(handle)
	if err != nil {
		return nil, err
	}
	return item.buffer.Snapshot(), nil
}

func (e *Editor) ApplyEdit(handle Handle, edit content.Edit) error {
	item, err := e.lookup(handle)
	if err != nil {
		return err
	}
	return item.buffer.ApplyEdit(edit)
}

// Save writes handle's buffer and waits for the outcome.
func (e *Editor) Save(ctx context.Context, handle Handle) error {
	item, err := e.lookup(handle)
	if err != nil {
		return err
	}
	return item.buffer.Save(ctx)
}

// SaveCmd starts a save on the calling goroutine and returns the
// command that performs the write. It returns a nil command when the
// buffer has nothing to write.
func (e *Editor) SaveCmd(ctx context.Context, handle Handle) (tea.Cmd, error) {
	item, err := e.lookup(handle)
	if err != nil {
		return nil, err
	}
	job, err := item.buffer.StartSave()
	if err != nil || job == nil {
		return nil, err
	}
	return func() tea.Msg {
		return SavedMsg{Handle: handle, Err: job.Run(ctx), job: job}
	}, nil
}

// Verify settles an unverified buffer by reading the file back.
func (e *Editor) Verify(ctx context.Context, handle Handle) error {
	item, err := e.lookup(handle)
	if err != nil {
		return err
	}
	return item.buffer.Verify(ctx)
}

// VerifyCmd is Verify for the interactive loop. It returns a nil
// command when the buffer is not unverified.
func (e *Editor) VerifyCmd(ctx context.Context, handle Handle) (tea.Cmd, error) {
	item, err := e.lookup(handle)
	if err != nil {
		return nil, err
	}
	job, err := item.buffer.StartVerify()
	if err != nil || job == nil {
		return nil, err
	}
	return func() tea.Msg {
		data, err := job.Run(ctx)
		return VerifiedMsg{Handle: handle, Err: err, job: job, data: data}
	}, nil
}

// Apply records the result of a command from OpenCmd, SaveCmd, or
// VerifyCmd. It returns the handle the message concerns and the
// operation's error. Other messages are ignored.
func (e *Editor) Apply(message tea.Msg) (Handle, error) {
	switch message := message.(type) {
	case OpenedMsg:
		if message.Err != nil {
			return 0, message.Err
		}
		return e.register(&entry{buffer: message.buffer, target: message.target}), nil
	case SavedMsg:
		item, err := e.lookup(message.Handle)
		if err != nil {
			return message.Handle, err
		}
		return message.Handle, item.buffer.FinishSave(message.job, message.Err)
	case VerifiedMsg:
		item, err := e.lookup(message.Handle)
		if err != nil {
			return message.Handle, err
		}
		return message.Handle, item.buffer.FinishVerify(message.job, message.data, message.Err)
	}
	return 0, nil
}

// SaveAs writes handle's buffer to addr and rebinds it there.
func (e *Editor) SaveAs(ctx context.Context, handle Handle, addr string) error {
	item, err := e.lookup(handle)
	if err != nil {
		return err
	}
	target, err := address.Parse(addr)
	if err != nil {
		return err
	}
	if target.Path == "" {
		return fmt.Errorf("%s: %w", addr, buffer.ErrNoPath)
	}
	session, err := transport.OpenSession(ctx, e.connector, target.Hops)
	if err != nil {
		return fmt.Errorf("connecting to %s: %w", addr, err)
	}
	if err := item.buffer.SaveAs(ctx, session, target.Path); err != nil {
		session.Close()
		return err
	}
	e.mutex.Lock()
	item.target = target
	e.mutex.Unlock()
	return nil
}

// Close closes handle's buffer. Without force, a buffer with unsaved
// or unverified changes stays open and a *CloseError is returned.
//
// The buffer is gone when Close returns. Its session is released in the
// background, since releasing the last lease on a chain tears the chain
// down hop by hop; Shutdown waits for those releases.
func (e *Editor) Close(handle Handle, force bool) error {
	item, err := e.lookup(handle)
	if err != nil {
		return err
	}
	store, err := item.buffer.Detach(force)
	if err != nil {
		e.mutex.Lock()
		addr := item.address()
		e.mutex.Unlock()
		return &CloseError{Handle: handle, Address: addr, Err: err}
	}

	e.mutex.Lock()
	delete(e.buffers, handle)
	if e.active == handle {
		e.active = 0
		if len(e.buffers) > 0 {
			e.active = slices.Max(e.handlesLocked())
		}
	}
	e.mutex.Unlock()

	if store != nil {
		e.releasing.Go(func() {
			if err := store.Close(); err != nil {
				e.logger.Warn("releasing closed buffer", "handle", handle, "error", err)
			}
		})
	}
	return nil
}

func (e *Editor) handlesLocked() []Handle {
	handles := make([]Handle, 0, len(e.buffers))
	for handle := range e.buffers {
		handles = append(handles, handle)
	}
	slices.Sort(handles)
	return handles
}

// Active returns the active buffer, if any.
func (e *Editor) Active() (Handle, bool) {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	return e.active, e.active != 0
}

func (e *Editor) SetActive(handle Handle) error {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	if _, ok := e.buffers[handle]; !ok {
		return fmt.Errorf("%w: %d", ErrUnknownHandle, handle)
	}
	e.active = handle
	return nil
}

// Buffers lists the open buffers in the order they were opened.
func (e *Editor) Buffers() []Info {
	e.mutex.Lock()
	handles := e.handlesLocked()
	items := make([]*entry, len(handles))
	addresses := make([]string, len(handles))
	for i, handle := range handles {
		items[i] = e.buffers[handle]
		addresses[i] = items[i].address()
	}
	e.mutex.Unlock()

	infos := make([]Info, len(handles))
	for i, item := range items {
		infos[i] = Info{
			Handle:   handles[i],
			Address:  addresses[i],
			Kind:     item.buffer.Kind(),
			State:    item.buffer.State(),
			New:      item.buffer.IsNew(),
			ReadOnly: item.buffer.ReadOnly(),
			Scratch:  item.buffer.IsScratch(),
		}
	}
	return infos
}

// Shutdown force-closes every buffer and closes the pool. The editor
// is unusable afterwards.
func (e *Editor) Shutdown() error {
	e.mutex.Lock()
	items := e.buffers
	e.buffers = make(map[Handle]*entry)
	e.active = 0
	e.mutex.Unlock()

	var errs []error
	for _, item := range items {
		if err := item.buffer.Close(true); err != nil {
			errs = append(errs, err)
		}
	}
	e.releasing.Wait()
	if e.pool != nil {
		if err := e.pool.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
