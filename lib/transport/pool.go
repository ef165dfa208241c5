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
	"github.com/bureau-foundation/hopedit/lib/codec"
)

// ErrPoolClosed is returned by Acquire after Close.
var ErrPoolClosed = errors.New("transport pool closed")

// Connector hands out transports for hop sequences.
type Connector interface {
	Acquire(ctx context.Context, hops []address.Hop) (*Lease, error)
}

// Lease is a claim on a transport. Release it exactly once when done;
// further calls are no-ops.
type Lease struct {
	Transport Transport

	once    sync.Once
	release func()
}

// NewLease returns a lease on transport that calls release once when
// released. Connectors other than Pool build their leases with it.
func NewLease(transport Transport, release func()) *Lease {
	return &Lease{Transport: transport, release: release}
}

func (l *Lease) Release() {
	l.once.Do(l.release)
}

// Direct is a Connector that builds a fresh chain for every lease and
// closes it on release.
type Direct struct {
	Options Options
}

func (d Direct) Acquire(ctx context.Context, hops []address.Hop) (*Lease, error) {
	transport, err := Connect(ctx, hops, d.Options)
	if err != nil {
		return nil, err
	}
	return NewLease(transport, func() { transport.Close() }), nil
}

// Pool shares one transport between every lease on the same hop
// sequence. A transport is closed when its last lease is released.
// Lost chains are evicted so the next Acquire connects afresh.
//
// Concurrent Acquires for a sequence that is still connecting wait for
// that connection instead of starting their own.
type Pool struct {
	options Options
	connect func(ctx context.Context, hops []address.Hop, options Options) (Transport, error)

	mutex   sync.Mutex
	entries map[string]*poolEntry
	closed  bool
}

type poolEntry struct {
	transport Transport
	err       error
	refs      int

	// ready is closed when the connection attempt has finished and
	// transport or err is set.
	ready chan struct{}
}

var _ Connector = (*Pool)(nil)

func NewPool(options Options) *Pool {
	return &Pool{
		options: options.withDefaults(),
		connect: Connect,
		entries: make(map[string]*poolEntry),
	}
}

// poolKey identifies a hop sequence. Hops are compared element-wise,
// so the deterministic encoding of the whole slice is a sound key.
func poolKey(hops []address.Hop) (string, error) {
	key, err := codec.Marshal(hops)
	if err != nil {
		return "", fmt.Errorf("encoding pool key: %w", err)
	}
	return string(key), nil
}

func (p *Pool) Acquire(ctx context.Context, hops []address.Hop) (*Lease, error) {
	key, err := poolKey(hops)
	if err != nil {
		return nil, err
	}
	for {
		p.mutex.Lock()
		if p.closed {
			p.mutex.Unlock()
			return nil, ErrPoolClosed
		}
		entry, found := p.entries[key]
		if !found {
			entry = &poolEntry{refs: 1, ready: make(chan struct{})}
			p.entries[key] = entry
			p.mutex.Unlock()
			return p.establish(ctx, key, slices.Clone(hops), entry)
		}
		entry.refs++
		p.mutex.Unlock()

		select {
		case <-entry.ready:
		case <-ctx.Done():
			p.release(key, entry)
			return nil, ctx.Err()
		}
		if entry.err != nil {
			p.release(key, entry)
			return nil, entry.err
		}
		if isLost(entry.transport) {
			p.evict(key, entry)
			p.release(key, entry)
			continue
		}
		return p.lease(key, entry), nil
	}
}

func (p *Pool) establish(ctx context.Context, key string, hops []address.Hop, entry *poolEntry) (*Lease, error) {
	transport, err := p.connect(ctx, hops, p.options)

	p.mutex.Lock()
	entry.transport, entry.err = transport, err
	if err != nil {
		entry.refs--
		if p.entries[key] == entry {
			delete(p.entries, key)
		}
	}
	close(entry.ready)
	closed := p.closed
	p.mutex.Unlock()

	if err != nil {
		return nil, err
	}
	if closed {
		// Close ran while we were connecting and did not see this
		// transport.
		transport.Close()
		return nil, ErrPoolClosed
	}
	return p.lease(key, entry), nil
}

func (p *Pool) lease(key string, entry *poolEntry) *Lease {
	return &Lease{Transport: entry.transport, release: func() { p.release(key, entry) }}
}

func (p *Pool) release(key string, entry *poolEntry) {
	p.mutex.Lock()
	entry.refs--
	last := entry.refs == 0 && entry.transport != nil
	if last && p.entries[key] == entry {
		delete(p.entries, key)
	}
	p.mutex.Unlock()
	if last {
		entry.transport.Close()
	}
}

func (p *Pool) evict(key string, entry *poolEntry) {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	if p.entries[key] == entry {
		p.options.Logger.Debug("evicting lost chain")
		delete(p.entries, key)
	}
}

// Len returns the number of distinct hop sequences held.
func (p *Pool) Len() int {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return len(p.entries)
}

// Close closes every transport in the pool, leased or not. Later
// Acquires fail with ErrPoolClosed.
func (p *Pool) Close() error {
	p.mutex.Lock()
	p.closed = true
	entries := p.entries
	p.entries = make(map[string]*poolEntry)
	p.mutex.Unlock()

	var errs []error
	for _, entry := range entries {
		<-entry.ready
		if entry.transport != nil {
			if err := entry.transport.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

func isLost(transport Transport) bool {
	lossy, ok := transport.(interface{ Lost() bool })
	return ok && lossy.Lost()
}
