// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package buffer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/zeebo/blake3"

	"github.com/bureau-foundation/hopedit/lib/content"
	"github.com/bureau-foundation/hopedit/lib/transport"
)

// State is where a buffer stands relative to the file.
type State uint8

const (
	Clean State = iota
	Dirty
	Saving
	Unverified
)

func (s State) String() string {
	switch s {
	case Clean:
		return "clean"
	case Dirty:
		return "dirty"
	case Saving:
		return "saving"
	case Unverified:
		return "unverified"
	default:
		return fmt.Sprintf("State(%d)", s)
	}
}

var (
	// ErrSaveInFlight is returned by operations that cannot run while
	// a save is in progress.
	ErrSaveInFlight = errors.New("a save is in progress")

	// ErrUnverified is returned by edits while the outcome of a
	// cancelled save is unknown.
	ErrUnverified = errors.New("the last save may not have completed; verify before editing")

	// ErrUnsavedChanges is returned when an operation would discard
	// edits that are not known to be on disk.
	ErrUnsavedChanges = errors.New("unsaved changes")

	// ErrTooLarge is returned by Open for files above the size limit.
	ErrTooLarge = errors.New("file too large")

	// ErrNoPath is returned by Save on a scratch buffer.
	ErrNoPath = errors.New("buffer has no file; use save-as")

	// ErrClosed is returned by every operation after Close.
	ErrClosed = errors.New("buffer closed")
)

// DefaultMaxSize is the size limit Open applies when none is given.
const DefaultMaxSize = 64 << 20

// Store is where a buffer's bytes live. *transport.Session is the
// usual implementation.
type Store interface {
	ReadFile(ctx context.Context, path string) ([]byte, error)
	WriteFile(ctx context.Context, path string, data []byte) error
	Stat(ctx context.Context, path string) (transport.FileInfo, error)

	// Reconnect replaces a lost connection. Save calls it at most
	// once per attempt.
	Reconnect(ctx context.Context) error

	Close() error
}

var _ Store = (*transport.Session)(nil)

// OpenOptions controls how Open decodes a file.
type OpenOptions struct {
	// Kind forces a content mode. Nil detects one from the bytes and
	// the path, falling back to Hex if the detected mode fails to
	// decode.
	Kind *content.Kind

	// MaxSize is the largest file Open loads. Zero means
	// DefaultMaxSize.
	MaxSize int64

	Logger *slog.Logger
}

// Buffer is an open file. All methods are safe for concurrent use.
type Buffer struct {
	logger *slog.Logger

	mutex    sync.Mutex
	store    Store
	path     string
	kind     content.Kind
	document content.Document
	state    State
	closed   bool

	// clean is the content last known to be on disk, and cleanDigest
	// its BLAKE3 digest.
	clean       []byte
	cleanDigest [32]byte

	// isNew is set while the file does not exist yet.
	isNew bool

	// info is the file's metadata from the last open or reload, nil
	// for new files and scratch buffers.
	info *transport.FileInfo

	// saving is the save in progress while state is Saving.
	saving *SaveJob

	// written is what the last unverified save tried to write.
	written []byte
}

// Open reads path from store and decodes it. A path that does not
// exist opens as an empty new buffer that Save creates. The buffer
// takes ownership of store and closes it on Close.
func Open(ctx context.Context, store Store, path string, options OpenOptions) (*Buffer, error) {
	if path == "" {
		return nil, fmt.Errorf("opening buffer: %w", ErrNoPath)
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	logger = logger.With("path", path)
	maxSize := options.MaxSize
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}

	b := &Buffer{logger: logger, store: store, path: path}
	info, err := store.Stat(ctx, path)
	if transport.KindOf(err) == transport.NotFound {
		kind := content.Text
		if options.Kind != nil {
			kind = *options.Kind
		}
		logger.Info("opening new file", "mode", kind)
		b.kind = kind
		b.document = content.NewDocument(kind)
		b.isNew = true
		b.setClean(b.document.Encode())
		return b, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	if info.IsDir {
		return nil, fmt.Errorf("opening %s: %w", path, &transport.IOError{Op: "open", Path: path, Kind: transport.NotAFile})
	}
	if info.Size > maxSize {
		return nil, fmt.Errorf("opening %s: %w (%d bytes, limit %d)", path, ErrTooLarge, info.Size, maxSize)
	}

	data, err := store.ReadFile(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	kind, document, err := decode(data, path, options.Kind, logger)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	logger.Debug("opened", "mode", kind, "bytes", len(data))
	b.kind = kind
	b.document = document
	b.info = &info
	b.setClean(data)
	return b, nil
}

// decode decodes data in the requested mode, or detects one.
func decode(data []byte, path string, requested *content.Kind, logger *slog.Logger) (content.Kind, content.Document, error) {
	if requested != nil {
		document, err := content.CodecFor(*requested).Decode(data)
		if err != nil {
			return 0, nil, err
		}
		return *requested, document, nil
	}
	kind := content.Detect(data, path)
	document, err := content.CodecFor(kind).Decode(data)
	if err == nil {
		return kind, document, nil
	}
	logger.Info("detected mode failed to decode, falling back to hex", "mode", kind, "error", err)
	document, err = content.CodecFor(content.Hex).Decode(data)
	return content.Hex, document, err
}

// NewScratch returns a buffer bound to no file. Save fails with
// ErrNoPath until SaveAs binds one.
func NewScratch(kind content.Kind, logger *slog.Logger) *Buffer {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	b := &Buffer{logger: logger, kind: kind, document: content.NewDocument(kind), isNew: true}
	b.setClean(b.document.Encode())
	return b
}

// setClean records data as the on-disk content. Callers hold the
// mutex or own b exclusively.
func (b *Buffer) setClean(data []byte) {
	b.clean = data
	b.cleanDigest = blake3.Sum256(data)
}

// Path is the file path at the last hop, empty for scratch buffers.
func (b *Buffer) Path() string {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return b.path
}

func (b *Buffer) Kind() content.Kind {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return b.kind
}

func (b *Buffer) State() State {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return b.state
}

// IsNew reports whether the file has not been created yet.
func (b *Buffer) IsNew() bool {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return b.isNew
}

// IsScratch reports whether the buffer is bound to no file.
func (b *Buffer) IsScratch() bool {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return b.store == nil
}

// ReadOnly reports whether the file's owner write bit was clear when
// it was opened. Writes may still succeed (as root, say) or fail for
// other reasons.
func (b *Buffer) ReadOnly() bool {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return b.info != nil && !b.info.Writable()
}

// Info returns the file metadata read at open or reload.
func (b *Buffer) Info() (transport.FileInfo, bool) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	if b.info == nil {
		return transport.FileInfo{}, false
	}
	return *b.info, true
}

// Snapshot returns a copy of the document for rendering.
func (b *Buffer) Snapshot() content.Document {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return b.document.Clone()
}

// ApplyEdit applies edit to the document. The buffer is Dirty
// afterwards unless the document encodes to the on-disk bytes again.
func (b *Buffer) ApplyEdit(edit content.Edit) error {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	switch {
	case b.closed:
		return ErrClosed
	case b.state == Saving:
		return ErrSaveInFlight
	case b.state == Unverified:
		return ErrUnverified
	}
	if err := b.document.Apply(edit); err != nil {
		return err
	}
	b.state = b.stateForDocument()
	return nil
}

func (b *Buffer) stateForDocument() State {
	if blake3.Sum256(b.document.Encode()) == b.cleanDigest {
		return Clean
	}
	return Dirty
}

// SetKind re-decodes the on-disk bytes in another mode. It refuses to
// discard edits.
func (b *Buffer) SetKind(kind content.Kind) error {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	if err := b.checkDiscard(false); err != nil {
		return err
	}
	if kind == b.kind {
		return nil
	}
	document, err := content.CodecFor(kind).Decode(b.clean)
	if err != nil {
		return fmt.Errorf("switching to %s: %w", kind, err)
	}
	b.logger.Debug("switched mode", "from", b.kind, "to", kind)
	b.kind = kind
	b.document = document
	return nil
}

// checkDiscard reports whether the document may be replaced.
func (b *Buffer) checkDiscard(force bool) error {
	switch {
	case b.closed:
		return ErrClosed
	case b.state == Saving:
		return ErrSaveInFlight
	case force:
		return nil
	case b.state == Dirty || b.state == Unverified:
		return ErrUnsavedChanges
	}
	return nil
}

// Reload reads the file again in the current mode. Unless force is
// set it refuses to discard unsaved changes.
func (b *Buffer) Reload(ctx context.Context, force bool) error {
	b.mutex.Lock()
	if err := b.checkDiscard(force); err != nil {
		b.mutex.Unlock()
		return err
	}
	store, path, kind := b.store, b.path, b.kind
	b.mutex.Unlock()
	if store == nil {
		return ErrNoPath
	}

	info, err := store.Stat(ctx, path)
	var data []byte
	if err == nil {
		data, err = store.ReadFile(ctx, path)
	}
	missing := transport.KindOf(err) == transport.NotFound
	if err != nil && !missing {
		return fmt.Errorf("reloading %s: %w", path, err)
	}
	var document content.Document
	if missing {
		document = content.NewDocument(kind)
		data = document.Encode()
	} else if document, err = content.CodecFor(kind).Decode(data); err != nil {
		return fmt.Errorf("reloading %s: %w", path, err)
	}

	b.mutex.Lock()
	defer b.mutex.Unlock()
	if err := b.checkDiscard(force); err != nil {
		return err
	}
	b.document = document
	b.state = Clean
	b.isNew = missing
	b.written = nil
	if missing {
		b.info = nil
	} else {
		b.info = &info
	}
	b.setClean(data)
	return nil
}

// Save writes the document and waits for the outcome. A chain lost
// before or during the write is reconnected once and the write
// retried. If ctx ends after the write was sent, the buffer becomes
// Unverified and the error matches transport.ErrOutcomeUnknown.
func (b *Buffer) Save(ctx context.Context) error {
	job, err := b.StartSave()
	if err != nil || job == nil {
		return err
	}
	return b.FinishSave(job, job.Run(ctx))
}

// SaveJob is a save between StartSave and FinishSave.
type SaveJob struct {
	store  Store
	path   string
	data   []byte
	prior  State
	logger *slog.Logger
}

// StartSave moves the buffer to Saving and captures the bytes to
// write. It returns a nil job when there is nothing to write.
func (b *Buffer) StartSave() (*SaveJob, error) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	switch {
	case b.closed:
		return nil, ErrClosed
	case b.state == Saving:
		return nil, ErrSaveInFlight
	case b.store == nil:
		return nil, ErrNoPath
	case b.state == Clean && !b.isNew:
		return nil, nil
	}
	job := &SaveJob{
		store:  b.store,
		path:   b.path,
		data:   b.document.Encode(),
		prior:  b.state,
		logger: b.logger,
	}
	b.state = Saving
	b.saving = job
	return job, nil
}

// Run writes the job's bytes. It touches no buffer state and may run
// on any goroutine.
func (j *SaveJob) Run(ctx context.Context) error {
	return withReconnect(ctx, j.store, j.logger, func() error {
		return j.store.WriteFile(ctx, j.path, j.data)
	})
}

// withReconnect runs op and, if the chain was lost, reconnects and
// runs it once more.
func withReconnect(ctx context.Context, store Store, logger *slog.Logger, op func() error) error {
	err := op()
	if !errors.Is(err, transport.ErrTransportLost) {
		return err
	}
	logger.Info("connection lost, reconnecting", "error", err)
	if reconnectErr := store.Reconnect(ctx); reconnectErr != nil {
		return fmt.Errorf("%w (reconnect failed: %w)", err, reconnectErr)
	}
	return op()
}

// FinishSave records the outcome of job's Run and returns err wrapped
// with the path, or nil.
func (b *Buffer) FinishSave(job *SaveJob, err error) error {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	if b.saving != job {
		return fmt.Errorf("finishing save of %s: not this buffer's save in progress", job.path)
	}
	b.saving = nil
	switch {
	case err == nil:
		b.logger.Info("saved", "bytes", len(job.data))
		b.setClean(job.data)
		b.state = Clean
		b.isNew = false
		b.written = nil
		return nil
	case errors.Is(err, transport.ErrOutcomeUnknown):
		b.logger.Warn("save outcome unknown", "error", err)
		b.state = Unverified
		b.written = job.data
	default:
		b.logger.Info("save failed", "error", err)
		b.state = job.prior
	}
	return fmt.Errorf("saving %s: %w", job.path, err)
}

// SaveAs writes the document to path through store and rebinds the
// buffer to it. The previous store is closed; on failure store is left
// to the caller.
func (b *Buffer) SaveAs(ctx context.Context, store Store, path string) error {
	if path == "" {
		return ErrNoPath
	}
	b.mutex.Lock()
	switch {
	case b.closed:
		b.mutex.Unlock()
		return ErrClosed
	case b.state == Saving:
		b.mutex.Unlock()
		return ErrSaveInFlight
	}
	job := &SaveJob{store: store, path: path, data: b.document.Encode(), prior: b.state, logger: b.logger}
	b.state = Saving
	b.saving = job
	b.mutex.Unlock()

	err := job.Run(ctx)

	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.saving = nil
	if err != nil {
		b.state = job.prior
		return fmt.Errorf("saving as %s: %w", path, err)
	}
	previous := b.store
	b.store = store
	b.path = path
	b.logger = b.logger.With("path", path)
	b.info = nil
	b.isNew = false
	b.written = nil
	b.setClean(job.data)
	b.state = Clean
	if previous != nil && previous != store {
		previous.Close()
	}
	return nil
}

// Verify settles an Unverified buffer by reading the file back: Clean
// if it holds what the cancelled save wrote, Dirty otherwise. It does
// nothing in any other state.
func (b *Buffer) Verify(ctx context.Context) error {
	job, err := b.StartVerify()
	if err != nil || job == nil {
		return err
	}
	data, err := job.Run(ctx)
	return b.FinishVerify(job, data, err)
}

// VerifyJob is a verification between StartVerify and FinishVerify.
type VerifyJob struct {
	store  Store
	path   string
	logger *slog.Logger
}

// StartVerify returns a nil job unless the buffer is Unverified.
func (b *Buffer) StartVerify() (*VerifyJob, error) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	if b.closed {
		return nil, ErrClosed
	}
	if b.state != Unverified {
		return nil, nil
	}
	return &VerifyJob{store: b.store, path: b.path, logger: b.logger}, nil
}

// Run reads the file back. A missing file reads as nil with no error.
func (j *VerifyJob) Run(ctx context.Context) ([]byte, error) {
	var data []byte
	err := withReconnect(ctx, j.store, j.logger, func() error {
		var err error
		data, err = j.store.ReadFile(ctx, j.path)
		return err
	})
	if transport.KindOf(err) == transport.NotFound {
		return nil, nil
	}
	return data, err
}

// FinishVerify applies the result of job's Run.
func (b *Buffer) FinishVerify(job *VerifyJob, data []byte, err error) error {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	if err != nil {
		return fmt.Errorf("verifying %s: %w", job.path, err)
	}
	if b.closed || b.state != Unverified {
		return nil
	}
	if data == nil {
		// The file was never created, or is gone.
		b.isNew = true
		b.setClean(content.NewDocument(b.kind).Encode())
		b.state = b.stateForDocument()
		b.written = nil
		return nil
	}
	b.isNew = false
	if bytes.Equal(data, b.written) {
		b.logger.Info("save verified")
		b.setClean(data)
		b.state = Clean
	} else {
		b.logger.Warn("file does not hold the unverified save")
		b.setClean(data)
		b.state = b.stateForDocument()
	}
	b.written = nil
	return nil
}

// Close releases the buffer's store. Unless force is set it refuses
// while a save is running or edits are unsaved.
func (b *Buffer) Close(force bool) error {
	store, err := b.Detach(force)
	if err != nil || store == nil {
		return err
	}
	return store.Close()
}

// Detach closes the buffer like Close but hands its store to the
// caller instead of closing it. Closing a store may tear down a chain,
// so callers on an interactive path release it elsewhere. The store is
// nil for scratch buffers and buffers that were already closed.
func (b *Buffer) Detach(force bool) (Store, error) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	if b.closed {
		return nil, nil
	}
	if !force {
		if err := b.checkDiscard(false); err != nil {
			return nil, err
		}
	}
	b.closed = true
	return b.store, nil
}
