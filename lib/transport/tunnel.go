// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bureau-foundation/hopedit/lib/clock"
)

// errTimedOut is the cause of a chain lost to an exchange timeout.
var errTimedOut = errors.New("timed out")

// tunnel owns the byte stream to a chain's innermost shell. A single
// worker goroutine performs exchanges one at a time: it writes a
// request and reads until the request's response is complete, so
// responses never interleave. Callers block in submission order on an
// unbuffered channel.
//
// Once the stream fails, times out, or is shut down, the tunnel is
// lost for good and every later exchange fails with ErrTransportLost.
type tunnel struct {
	writer io.Writer
	reader *bufio.Reader
	shell  string
	clock  clock.Clock
	logger *slog.Logger

	// abort forcibly ends the underlying stream so a blocked read
	// returns.
	abort func()

	requests chan *exchange
	lost     chan struct{}
	lostOnce sync.Once
	lostErr  error
}

// Exchange states. A queued exchange is pending; the worker moves it
// to started before writing anything, and a caller that gives up moves
// it to abandoned. Whichever transition wins decides whether the
// request was ever sent.
const (
	exchangePending int32 = iota
	exchangeStarted
	exchangeAbandoned
)

type exchange struct {
	request []byte

	// respond reads the response off the stream. An error means the
	// stream can no longer be trusted.
	respond func(reader *bufio.Reader) error

	timeout time.Duration
	state   atomic.Int32
	done    chan error
}

func newTunnel(writer io.Writer, reader io.Reader, shell string, clk clock.Clock, logger *slog.Logger, abort func()) *tunnel {
	t := &tunnel{
		writer:   writer,
		reader:   bufio.NewReaderSize(reader, 64*1024),
		shell:    shell,
		clock:    clk,
		logger:   logger,
		abort:    abort,
		requests: make(chan *exchange),
		lost:     make(chan struct{}),
	}
	go t.work()
	return t
}

func (t *tunnel) work() {
	for {
		select {
		case <-t.lost:
			return
		case x := <-t.requests:
			if !x.state.CompareAndSwap(exchangePending, exchangeStarted) {
				continue
			}
			x.done <- t.perform(x)
		}
	}
}

func (t *tunnel) perform(x *exchange) error {
	var expired atomic.Bool
	timer := t.clock.AfterFunc(x.timeout, func() {
		expired.Store(true)
		t.abort()
	})
	defer timer.Stop()

	if _, err := t.writer.Write(x.request); err != nil {
		return t.fail(fmt.Errorf("sending request: %w", err), true)
	}
	if err := x.respond(t.reader); err != nil {
		if expired.Load() {
			return t.fail(fmt.Errorf("%w: no response within %s", errTimedOut, x.timeout), true)
		}
		return t.fail(err, true)
	}
	return nil
}

// fail marks the tunnel lost. It returns the sticky error.
func (t *tunnel) fail(cause error, kill bool) error {
	t.lostOnce.Do(func() {
		t.lostErr = fmt.Errorf("%w: %w", ErrTransportLost, cause)
		close(t.lost)
		if kill {
			t.logger.Warn("chain lost", "error", cause)
			t.abort()
		}
	})
	return t.lostErr
}

// shutdown stops the worker without killing the stream, so teardown
// can still talk to the root directly.
func (t *tunnel) shutdown() {
	t.fail(errors.New("chain closed"), false)
}

func (t *tunnel) isLost() bool {
	select {
	case <-t.lost:
		return true
	default:
		return false
	}
}

// send queues an exchange and waits for it. A caller whose context
// ends while queued is dropped without anything being written. A
// caller whose context ends after the request was written gets
// ErrOutcomeUnknown; the worker still reads the response to keep the
// stream aligned.
func (t *tunnel) send(ctx context.Context, request []byte, timeout time.Duration, respond func(*bufio.Reader) error) error {
	x := &exchange{request: request, respond: respond, timeout: timeout, done: make(chan error, 1)}
	select {
	case t.requests <- x:
	case <-ctx.Done():
		return ctx.Err()
	case <-t.lost:
		return t.lostErr
	}
	select {
	case err := <-x.done:
		return err
	case <-ctx.Done():
		if x.state.CompareAndSwap(exchangePending, exchangeAbandoned) {
			return ctx.Err()
		}
		select {
		case err := <-x.done:
			return err
		default:
		}
		return fmt.Errorf("%w: %w", ErrOutcomeUnknown, ctx.Err())
	}
}

// run executes command in the innermost shell.
func (t *tunnel) run(ctx context.Context, command Command, timeout time.Duration) (*CommandOutput, error) {
	nonce, err := newNonce()
	if err != nil {
		return nil, err
	}
	var output *CommandOutput
	err = t.send(ctx, buildRequest(nonce, t.shell, command), timeout, func(reader *bufio.Reader) error {
		var readErr error
		output, readErr = readResponse(reader, nonce)
		return readErr
	})
	if err != nil {
		return nil, err
	}
	return output, nil
}
