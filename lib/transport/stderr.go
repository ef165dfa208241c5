// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"bufio"
	"io"
	"sync"
)

// stderrCapacity bounds how much hop diagnostic output a chain keeps.
const stderrCapacity = 64 * 1024

// stderrLog keeps the most recent diagnostic output of a chain's root
// in a circular buffer, addressed by a monotonically increasing byte
// offset so a hop can read back exactly what was written while it was
// starting.
//
// Hops write a sync line to stderr after they finish. Because a pipe
// preserves order, once the consumer has seen the sync line it has
// also seen everything the hop wrote before it. Sync lines are not
// stored.
type stderrLog struct {
	mutex         sync.Mutex
	data          []byte
	writePosition int
	totalWritten  uint64

	waiters map[string]chan struct{}

	// done is closed when the stream reaches EOF.
	done chan struct{}
}

func newStderrLog(capacity int) *stderrLog {
	return &stderrLog{
		data:    make([]byte, capacity),
		waiters: make(map[string]chan struct{}),
		done:    make(chan struct{}),
	}
}

// consume reads r until EOF. Run it on its own goroutine.
func (l *stderrLog) consume(r io.Reader) {
	defer close(l.done)
	reader := bufio.NewReader(r)
	for {
		line, err := reader.ReadBytes('\n')
		if len(line) > 0 && !l.release(line) {
			l.write(line)
		}
		if err != nil {
			return
		}
	}
}

// expect registers a sync line and returns a channel closed when it
// arrives. Register before causing the line to be written.
func (l *stderrLog) expect(marker string) <-chan struct{} {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	arrived := make(chan struct{})
	l.waiters[marker] = arrived
	return arrived
}

func (l *stderrLog) forget(marker string) {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	delete(l.waiters, marker)
}

func (l *stderrLog) release(line []byte) bool {
	key := string(trimEOL(line))
	l.mutex.Lock()
	defer l.mutex.Unlock()
	arrived, ok := l.waiters[key]
	if !ok {
		return false
	}
	delete(l.waiters, key)
	close(arrived)
	return true
}

func (l *stderrLog) write(data []byte) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	capacity := len(l.data)
	for offset := 0; offset < len(data); {
		copyLength := min(len(data)-offset, capacity-l.writePosition)
		copy(l.data[l.writePosition:], data[offset:offset+copyLength])
		l.writePosition = (l.writePosition + copyLength) % capacity
		offset += copyLength
	}
	l.totalWritten += uint64(len(data))
}

// offset returns the number of bytes ever written.
func (l *stderrLog) offset() uint64 {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	return l.totalWritten
}

// since returns what was written after offset, or everything retained
// when offset has already been overwritten.
func (l *stderrLog) since(offset uint64) string {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	if offset >= l.totalWritten {
		return ""
	}
	capacity := uint64(len(l.data))
	stored := min(l.totalWritten, capacity)
	oldest := l.totalWritten - stored
	offset = max(offset, oldest)

	count := int(l.totalWritten - offset)
	result := make([]byte, count)
	position := (l.writePosition - count + len(l.data)) % len(l.data)
	for copied := 0; copied < count; {
		copyLength := min(count-copied, len(l.data)-position)
		copy(result[copied:], l.data[position:position+copyLength])
		position = (position + copyLength) % len(l.data)
		copied += copyLength
	}
	return string(result)
}

// tail returns everything retained.
func (l *stderrLog) tail() string { return l.since(0) }

func trimEOL(line []byte) []byte {
	for len(line) > 0 && (line[len(line)-1] == '\n' || line[len(line)-1] == '\r') {
		line = line[:len(line)-1]
	}
	return line
}
