// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package buffer

import (
	"bytes"
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/bureau-foundation/hopedit/lib/address"
	"github.com/bureau-foundation/hopedit/lib/content"
	"github.com/bureau-foundation/hopedit/lib/framing"
	"github.com/bureau-foundation/hopedit/lib/nbt"
	"github.com/bureau-foundation/hopedit/lib/transport"
)

// memStore is an in-memory Store whose writes can be made to fail.
type memStore struct {
	mutex      sync.Mutex
	files      map[string][]byte
	modes      map[string]fs.FileMode
	writes     int
	reconnects int
	closed     bool

	// writeErrs are returned by successive WriteFile calls; a nil
	// entry lets that write through.
	writeErrs []error

	// applyFailedWrite stores the data even when the write returns
	// an error, as a write whose acknowledgement was lost would.
	applyFailedWrite bool
}

func newMemStore() *memStore {
	return &memStore{files: make(map[string][]byte), modes: make(map[string]fs.FileMode)}
}

func (s *memStore) ReadFile(_ context.Context, path string) ([]byte, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	data, ok := s.files[path]
	if !ok {
		return nil, &transport.IOError{Op: "read", Path: path, Kind: transport.NotFound}
	}
	return bytes.Clone(data), nil
}

func (s *memStore) WriteFile(_ context.Context, path string, data []byte) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.writes++
	var err error
	if len(s.writeErrs) > 0 {
		err, s.writeErrs = s.writeErrs[0], s.writeErrs[1:]
	}
	if err == nil || s.applyFailedWrite {
		s.files[path] = bytes.Clone(data)
	}
	return err
}

func (s *memStore) Stat(_ context.Context, path string) (transport.FileInfo, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	data, ok := s.files[path]
	if !ok {
		return transport.FileInfo{}, &transport.IOError{Op: "stat", Path: path, Kind: transport.NotFound}
	}
	mode, ok := s.modes[path]
	if !ok {
		mode = 0o644
	}
	return transport.FileInfo{Name: filepath.Base(path), Size: int64(len(data)), Mode: mode}, nil
}

func (s *memStore) Reconnect(context.Context) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.reconnects++
	return nil
}

func (s *memStore) Close() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.closed = true
	return nil
}

func (s *memStore) file(path string) string {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return string(s.files[path])
}

func openText(t *testing.T, store *memStore, path, data string) *Buffer {
	t.Helper()
	store.files[path] = []byte(data)
	kind := content.Text
	b, err := Open(t.Context(), store, path, OpenOptions{Kind: &kind})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return b
}

func insert(line, col int, text string) content.TextInsert {
	return content.TextInsert{At: content.Pos{Line: line, Col: col}, Text: text}
}

func deleteRange(line, from, to int) content.TextDelete {
	return content.TextDelete{Range: content.Range{Start: content.Pos{Line: line, Col: from}, End: content.Pos{Line: line, Col: to}}}
}

func TestNoOpEditsKeepBufferClean(t *testing.T) {
	store := newMemStore()
	b := openText(t, store, "/notes", "hello\r\nworld")

	if err := b.ApplyEdit(insert(0, 5, "")); err != nil {
		t.Fatal(err)
	}
	if b.State() != Clean {
		t.Fatalf("empty insert made the buffer %s", b.State())
	}
	if err := b.ApplyEdit(content.TextReplace{Range: content.Range{Start: content.Pos{Col: 0}, End: content.Pos{Col: 1}}, Text: "h"}); err != nil {
		t.Fatal(err)
	}
	if b.State() != Clean {
		t.Fatalf("replacing a character with itself made the buffer %s", b.State())
	}

	if err := b.ApplyEdit(insert(0, 5, "!!")); err != nil {
		t.Fatal(err)
	}
	if b.State() != Dirty {
		t.Fatalf("state after a real edit = %s, want dirty", b.State())
	}
	if err := b.ApplyEdit(deleteRange(0, 5, 7)); err != nil {
		t.Fatal(err)
	}
	if b.State() != Clean {
		t.Fatalf("edit plus inverse left the buffer %s", b.State())
	}
	if store.writes != 0 {
		t.Errorf("edits wrote %d times", store.writes)
	}
}

func TestRejectedEditLeavesStateAlone(t *testing.T) {
	b := openText(t, newMemStore(), "/notes", "abc")
	err := b.ApplyEdit(insert(5, 0, "x"))
	if !errors.Is(err, content.ErrInvalidEdit) {
		t.Fatalf("ApplyEdit out of range = %v, want ErrInvalidEdit", err)
	}
	if b.State() != Clean {
		t.Errorf("state = %s after a rejected edit", b.State())
	}
}

func TestSaveWritesAndCleans(t *testing.T) {
	store := newMemStore()
	b := openText(t, store, "/notes", "one\n")
	if err := b.ApplyEdit(insert(1, 0, "two\n")); err != nil {
		t.Fatal(err)
	}
	if err := b.Save(t.Context()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if b.State() != Clean || store.file("/notes") != "one\ntwo\n" {
		t.Errorf("after Save: state %s, file %q", b.State(), store.file("/notes"))
	}

	// Saving a clean buffer writes nothing.
	if err := b.Save(t.Context()); err != nil {
		t.Fatal(err)
	}
	if store.writes != 1 {
		t.Errorf("writes = %d, want 1", store.writes)
	}
}

func TestSaveReconnectsOnceAfterLoss(t *testing.T) {
	lost := &transport.IOError{Op: "write", Path: "/notes", Kind: transport.TransportLost, Err: transport.ErrTransportLost}

	store := newMemStore()
	store.writeErrs = []error{lost}
	b := openText(t, store, "/notes", "a")
	b.ApplyEdit(insert(0, 1, "b"))
	if err := b.Save(t.Context()); err != nil {
		t.Fatalf("Save after one loss: %v", err)
	}
	if store.reconnects != 1 || store.writes != 2 || store.file("/notes") != "ab" {
		t.Errorf("reconnects %d, writes %d, file %q", store.reconnects, store.writes, store.file("/notes"))
	}

	store = newMemStore()
	store.writeErrs = []error{lost, lost}
	b = openText(t, store, "/notes", "a")
	b.ApplyEdit(insert(0, 1, "b"))
	err := b.Save(t.Context())
	if !errors.Is(err, transport.ErrTransportLost) {
		t.Fatalf("Save after two losses = %v, want ErrTransportLost", err)
	}
	if store.reconnects != 1 || store.writes != 2 {
		t.Errorf("reconnects %d, writes %d, want 1 and 2", store.reconnects, store.writes)
	}
	if b.State() != Dirty {
		t.Errorf("state after a failed save = %s, want dirty", b.State())
	}
}

func TestSaveFailureKeepsDirty(t *testing.T) {
	store := newMemStore()
	store.writeErrs = []error{&transport.IOError{Op: "write", Path: "/notes", Kind: transport.PermissionDenied}}
	b := openText(t, store, "/notes", "a")
	b.ApplyEdit(insert(0, 0, "z"))
	err := b.Save(t.Context())
	if !errors.Is(err, fs.ErrPermission) {
		t.Fatalf("Save = %v, want a permission error", err)
	}
	if b.State() != Dirty || store.reconnects != 0 {
		t.Errorf("state %s, reconnects %d", b.State(), store.reconnects)
	}
}

func TestCancelledSaveIsUnverifiedUntilVerified(t *testing.T) {
	unknown := &transport.IOError{Op: "write", Path: "/notes", Kind: transport.OutcomeUnknown, Err: context.Canceled}

	for _, landed := range []bool{true, false} {
		store := newMemStore()
		store.writeErrs = []error{unknown}
		store.applyFailedWrite = landed
		b := openText(t, store, "/notes", "old")
		b.ApplyEdit(insert(0, 3, " new"))

		err := b.Save(t.Context())
		if !errors.Is(err, transport.ErrOutcomeUnknown) {
			t.Fatalf("Save = %v, want ErrOutcomeUnknown", err)
		}
		if b.State() != Unverified {
			t.Fatalf("state = %s, want unverified", b.State())
		}
		if err := b.ApplyEdit(insert(0, 0, "x")); !errors.Is(err, ErrUnverified) {
			t.Errorf("ApplyEdit while unverified = %v", err)
		}
		if err := b.Close(false); !errors.Is(err, ErrUnsavedChanges) {
			t.Errorf("Close while unverified = %v", err)
		}

		if err := b.Verify(t.Context()); err != nil {
			t.Fatalf("Verify: %v", err)
		}
		want := Dirty
		if landed {
			want = Clean
		}
		if b.State() != want {
			t.Errorf("landed=%v: state after Verify = %s, want %s", landed, b.State(), want)
		}
		if !landed {
			// Saving again settles it.
			if err := b.Save(t.Context()); err != nil || store.file("/notes") != "old new" {
				t.Errorf("second Save = %v, file %q", err, store.file("/notes"))
			}
		}
	}
}

func TestEditsRefusedWhileSaving(t *testing.T) {
	store := newMemStore()
	b := openText(t, store, "/notes", "a")
	b.ApplyEdit(insert(0, 1, "b"))

	job, err := b.StartSave()
	if err != nil || job == nil {
		t.Fatalf("StartSave = %v, %v", job, err)
	}
	if b.State() != Saving {
		t.Fatalf("state = %s, want saving", b.State())
	}
	if err := b.ApplyEdit(insert(0, 0, "x")); !errors.Is(err, ErrSaveInFlight) {
		t.Errorf("ApplyEdit while saving = %v", err)
	}
	if _, err := b.StartSave(); !errors.Is(err, ErrSaveInFlight) {
		t.Errorf("second StartSave = %v", err)
	}
	if err := b.Reload(t.Context(), true); !errors.Is(err, ErrSaveInFlight) {
		t.Errorf("Reload while saving = %v", err)
	}
	if err := b.FinishSave(job, job.Run(t.Context())); err != nil {
		t.Fatal(err)
	}
	if b.State() != Clean {
		t.Errorf("state = %s after save", b.State())
	}
}

func TestOpenMissingFileCreatesOnSave(t *testing.T) {
	store := newMemStore()
	b, err := Open(t.Context(), store, "/new.txt", OpenOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if !b.IsNew() || b.State() != Clean || b.Kind() != content.Text {
		t.Fatalf("new buffer: new %v, state %s, kind %s", b.IsNew(), b.State(), b.Kind())
	}
	// A new file is written even without edits.
	if err := b.Save(t.Context()); err != nil {
		t.Fatal(err)
	}
	if _, ok := store.files["/new.txt"]; !ok || b.IsNew() {
		t.Error("Save did not create the file")
	}
}

func TestOpenDetectsAndFallsBack(t *testing.T) {
	store := newMemStore()
	store.files["/blob"] = []byte{0xff, 0x00, 0x10}
	store.files["/level.dat"] = nbtBytes(t)
	// Starts like a compound but does not decode as one.
	store.files["/broken.nbt"] = []byte{byte(nbt.TagCompound), 0x00}
	store.modes["/level.dat"] = 0o444

	tests := []struct {
		path     string
		want     content.Kind
		readOnly bool
	}{
		{"/blob", content.Hex, false},
		{"/level.dat", content.TagTree, true},
		{"/broken.nbt", content.Hex, false},
	}
	for _, test := range tests {
		b, err := Open(t.Context(), store, test.path, OpenOptions{})
		if err != nil {
			t.Errorf("Open(%s): %v", test.path, err)
			continue
		}
		if b.Kind() != test.want || b.ReadOnly() != test.readOnly {
			t.Errorf("Open(%s): kind %s read-only %v, want %s %v", test.path, b.Kind(), b.ReadOnly(), test.want, test.readOnly)
		}
		if !bytes.Equal(b.Snapshot().Encode(), store.files[test.path]) {
			t.Errorf("Open(%s): document does not encode to the file", test.path)
		}
	}

	text := content.Text
	if _, err := Open(t.Context(), store, "/blob", OpenOptions{Kind: &text}); !errors.Is(err, content.ErrMalformed) {
		t.Errorf("Open(/blob) as text = %v, want ErrMalformed", err)
	}
	if _, err := Open(t.Context(), store, "/blob", OpenOptions{MaxSize: 2}); !errors.Is(err, ErrTooLarge) {
		t.Errorf("Open over the size limit = %v, want ErrTooLarge", err)
	}
}

func nbtBytes(t *testing.T) []byte {
	t.Helper()
	root := nbt.NewCompound(nbt.Entry{Name: "name", Value: nbt.String("Bananrama")})
	document, err := content.NewTagTree("", root, framing.Frame{Framing: framing.Gzip})
	if err != nil {
		t.Fatal(err)
	}
	return document.Encode()
}

func TestSetKindAndReload(t *testing.T) {
	store := newMemStore()
	b := openText(t, store, "/notes", "hi\n")

	if err := b.SetKind(content.Hex); err != nil {
		t.Fatalf("SetKind(hex): %v", err)
	}
	if b.Snapshot().(*content.HexDocument).Len() != 3 {
		t.Error("hex document does not hold the file bytes")
	}
	b.ApplyEdit(content.HexSet{Offset: 0, Value: 'H'})
	if err := b.SetKind(content.Text); !errors.Is(err, ErrUnsavedChanges) {
		t.Errorf("SetKind while dirty = %v", err)
	}
	if err := b.Reload(t.Context(), false); !errors.Is(err, ErrUnsavedChanges) {
		t.Errorf("Reload while dirty = %v", err)
	}

	store.files["/notes"] = []byte("changed")
	if err := b.Reload(t.Context(), true); err != nil {
		t.Fatalf("forced Reload: %v", err)
	}
	if b.State() != Clean || string(b.Snapshot().Encode()) != "changed" {
		t.Errorf("after reload: state %s, content %q", b.State(), b.Snapshot().Encode())
	}
}

func TestScratchNeedsSaveAs(t *testing.T) {
	b := NewScratch(content.Text, nil)
	b.ApplyEdit(insert(0, 0, "draft"))
	if err := b.Save(t.Context()); !errors.Is(err, ErrNoPath) {
		t.Fatalf("Save of a scratch buffer = %v, want ErrNoPath", err)
	}
	store := newMemStore()
	if err := b.SaveAs(t.Context(), store, "/draft.txt"); err != nil {
		t.Fatal(err)
	}
	if b.IsScratch() || b.Path() != "/draft.txt" || b.State() != Clean || store.file("/draft.txt") != "draft" {
		t.Errorf("after SaveAs: scratch %v, path %q, state %s", b.IsScratch(), b.Path(), b.State())
	}
	if err := b.Close(false); err != nil || !store.closed {
		t.Errorf("Close = %v, store closed %v", err, store.closed)
	}
	if err := b.ApplyEdit(insert(0, 0, "x")); !errors.Is(err, ErrClosed) {
		t.Errorf("ApplyEdit after Close = %v", err)
	}
}

func TestCloseRefusesUnsavedChanges(t *testing.T) {
	store := newMemStore()
	b := openText(t, store, "/notes", "a")
	b.ApplyEdit(insert(0, 0, "b"))
	if err := b.Close(false); !errors.Is(err, ErrUnsavedChanges) {
		t.Fatalf("Close = %v, want ErrUnsavedChanges", err)
	}
	if store.closed {
		t.Fatal("refused Close closed the store")
	}
	if err := b.Close(true); err != nil || !store.closed {
		t.Errorf("forced Close = %v, store closed %v", err, store.closed)
	}
}

func TestDetachHandsOverTheStore(t *testing.T) {
	store := newMemStore()
	b := openText(t, store, "/notes", "a")
	b.ApplyEdit(insert(0, 0, "b"))
	if _, err := b.Detach(false); !errors.Is(err, ErrUnsavedChanges) {
		t.Fatalf("Detach = %v, want ErrUnsavedChanges", err)
	}
	detached, err := b.Detach(true)
	if err != nil {
		t.Fatalf("forced Detach: %v", err)
	}
	if detached != Store(store) {
		t.Fatalf("Detach returned %v, want the buffer's store", detached)
	}
	if store.closed {
		t.Error("Detach closed the store")
	}
	if again, err := b.Detach(true); again != nil || err != nil {
		t.Errorf("second Detach = %v, %v; want nil, nil", again, err)
	}
	if err := b.ApplyEdit(insert(0, 0, "c")); !errors.Is(err, ErrClosed) {
		t.Errorf("ApplyEdit after Detach = %v, want ErrClosed", err)
	}
}

// The whole path from address to disk, over the local transport.
func TestBufferOverLocalSession(t *testing.T) {
	directory := t.TempDir()
	path := filepath.Join(directory, "config.ini")
	if err := os.WriteFile(path, []byte("[core]\r\nname = x\r\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(t.Context(), 10*time.Second)
	defer cancel()
	session, err := transport.OpenSession(ctx, transport.Direct{}, []address.Hop{address.Local()})
	if err != nil {
		t.Fatal(err)
	}
	b, err := Open(ctx, session, path, OpenOptions{})
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close(true)
	if b.Kind() != content.Text {
		t.Fatalf("kind = %s", b.Kind())
	}
	if err := b.ApplyEdit(insert(2, 0, "debug = true\n")); err != nil {
		t.Fatal(err)
	}
	if err := b.Save(ctx); err != nil {
		t.Fatal(err)
	}
	data, _ := os.ReadFile(path)
	if string(data) != "[core]\r\nname = x\r\ndebug = true\r\n" {
		t.Errorf("file = %q", data)
	}
	info, _ := os.Stat(path)
	if info.Mode().Perm() != 0o600 {
		t.Errorf("mode = %v, want 0600 kept", info.Mode().Perm())
	}
}
