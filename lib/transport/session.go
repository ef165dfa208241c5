// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/bureau-foundation/hopedit/lib/address"
)

// Session is file I/O at the last hop of a fixed hop sequence. Every
// failure it returns is either a context error or an *IOError, and a
// lost chain can be replaced in place with Reconnect.
type Session struct {
	connector Connector
	hops      []address.Hop

	mutex sync.Mutex
	lease *Lease
}

// OpenSession acquires a transport for hops from connector.
func OpenSession(ctx context.Context, connector Connector, hops []address.Hop) (*Session, error) {
	lease, err := connector.Acquire(ctx, hops)
	if err != nil {
		return nil, err
	}
	return &Session{connector: connector, hops: slices.Clone(hops), lease: lease}, nil
}

// Hops returns the hop sequence the session reaches.
func (s *Session) Hops() []address.Hop { return s.hops }

func (s *Session) transport() (Transport, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.lease == nil {
		return nil, fmt.Errorf("%w: session closed", ErrTransportLost)
	}
	return s.lease.Transport, nil
}

func (s *Session) ReadFile(ctx context.Context, path string) ([]byte, error) {
	transport, err := s.transport()
	if err != nil {
		return nil, normalize("read", path, err)
	}
	data, err := transport.ReadFile(ctx, path)
	return data, normalize("read", path, err)
}

func (s *Session) WriteFile(ctx context.Context, path string, data []byte) error {
	transport, err := s.transport()
	if err != nil {
		return normalize("write", path, err)
	}
	return normalize("write", path, transport.WriteFile(ctx, path, data))
}

func (s *Session) ListDir(ctx context.Context, path string) ([]DirEntry, error) {
	transport, err := s.transport()
	if err != nil {
		return nil, normalize("list", path, err)
	}
	entries, err := transport.ListDir(ctx, path)
	return entries, normalize("list", path, err)
}

func (s *Session) Stat(ctx context.Context, path string) (FileInfo, error) {
	transport, err := s.transport()
	if err != nil {
		return FileInfo{}, normalize("stat", path, err)
	}
	info, err := transport.Stat(ctx, path)
	return info, normalize("stat", path, err)
}

// Execute runs a script at the last hop.
func (s *Session) Execute(ctx context.Context, command Command) (*CommandOutput, error) {
	transport, err := s.transport()
	if err != nil {
		return nil, normalize("exec", "", err)
	}
	output, err := transport.Execute(ctx, command)
	return output, normalize("exec", "", err)
}

// Reconnect replaces the session's transport with a fresh one for the
// same hops. The old lease is released only once the new one is held.
func (s *Session) Reconnect(ctx context.Context) error {
	lease, err := s.connector.Acquire(ctx, s.hops)
	if err != nil {
		return err
	}
	s.mutex.Lock()
	old := s.lease
	s.lease = lease
	s.mutex.Unlock()
	if old != nil {
		old.Release()
	}
	return nil
}

// Close releases the session's transport.
func (s *Session) Close() error {
	s.mutex.Lock()
	lease := s.lease
	s.lease = nil
	s.mutex.Unlock()
	if lease != nil {
		lease.Release()
	}
	return nil
}

// normalize makes every non-context failure an *IOError.
func normalize(op, path string, err error) error {
	if err == nil {
		return nil
	}
	var ioErr *IOError
	switch {
	case errors.As(err, &ioErr):
		return err
	case errors.Is(err, ErrOutcomeUnknown):
		return &IOError{Op: op, Path: path, Kind: OutcomeUnknown, Err: err}
	case errors.Is(err, ErrTransportLost):
		return &IOError{Op: op, Path: path, Kind: TransportLost, Err: err}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return &IOError{Op: op, Path: path, Kind: KindOf(err), Err: err}
	}
}
