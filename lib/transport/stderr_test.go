// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"io"
	"testing"
	"time"

	"github.com/bureau-foundation/hopedit/lib/testutil"
)

func TestStderrLogSince(t *testing.T) {
	log := newStderrLog(16)
	log.write([]byte("hello\n"))
	mark := log.offset()
	log.write([]byte("world\n"))

	if got := log.since(mark); got != "world\n" {
		t.Errorf("since(mark) = %q", got)
	}
	if got := log.tail(); got != "hello\nworld\n" {
		t.Errorf("tail = %q", got)
	}
	if got := log.since(log.offset()); got != "" {
		t.Errorf("since(end) = %q, want empty", got)
	}

	// Wrap past capacity: only the newest 16 bytes survive, and an
	// overwritten offset yields everything retained.
	log.write([]byte("0123456789\n"))
	if got := log.tail(); got != "orld\n0123456789\n" {
		t.Errorf("tail after wrap = %q", got)
	}
	if got := log.since(0); got != log.tail() {
		t.Errorf("since(0) = %q, want %q", got, log.tail())
	}
	if got := log.since(mark); got != "orld\n0123456789\n" {
		t.Errorf("since(overwritten) = %q", got)
	}
}

func TestStderrLogSyncMarkers(t *testing.T) {
	log := newStderrLog(1024)
	reader, writer := io.Pipe()
	go log.consume(reader)

	synced := log.expect("he01 sync")
	go func() {
		writer.Write([]byte("sudo: no tty present\nhe01 sync\nafter\n"))
		writer.Close()
	}()

	testutil.RequireClosed(t, synced, 5*time.Second, "sync marker")
	testutil.RequireClosed(t, log.done, 5*time.Second, "consumer EOF")
	if got := log.tail(); got != "sudo: no tty present\nafter\n" {
		t.Errorf("tail = %q, want the sync line dropped", got)
	}

	// A forgotten marker is stored like any other line.
	log.expect("he02 sync")
	log.forget("he02 sync")
	if log.release([]byte("he02 sync\n")) {
		t.Error("a forgotten marker was released")
	}
}
