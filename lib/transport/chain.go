// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/alessio/shellescape"

	"github.com/bureau-foundation/hopedit/lib/address"
)

// linker brings hops up one at a time. Connecting a chain calls link
// for every non-local hop in order; each successful link is undone by
// its unlink, innermost first.
type linker interface {
	link(ctx context.Context, index, total int, hop address.Hop) (hopLink, error)

	// runner returns what executes commands in the innermost shell.
	// It is only called after every link has succeeded.
	runner() runner
}

type hopLink interface {
	unlink(ctx context.Context) error
}

type runner interface {
	run(ctx context.Context, command Command, timeout time.Duration) (*CommandOutput, error)
	isLost() bool
}

// Chain is a transport that tunnels through one or more shells.
type Chain struct {
	hops    []address.Hop
	options Options
	logger  *slog.Logger
	runner  runner
	links   []hopLink

	closeOnce sync.Once
	closeErr  error
}

var _ Transport = (*Chain)(nil)

func connectChain(ctx context.Context, hops []address.Hop, options Options, l linker) (*Chain, error) {
	logger := options.Logger.With("chain", chainLabel(hops))
	links := make([]hopLink, 0, len(hops))
	for index, hop := range hops {
		if hop.Kind == address.KindLocal {
			continue
		}
		logger.Debug("starting hop", "hop", index+1, "of", len(hops), "via", hop.Label())
		link, err := l.link(ctx, index, len(hops), hop)
		if err != nil {
			logger.Info("hop failed", "hop", index+1, "error", err)
			if teardownErr := unwind(options, links); teardownErr != nil {
				logger.Debug("tearing down after failed hop", "hop", index+1, "error", teardownErr)
			}
			return nil, err
		}
		links = append(links, link)
	}
	logger.Debug("chain connected")
	return &Chain{
		hops:    hops,
		options: options,
		logger:  logger,
		runner:  l.runner(),
		links:   links,
	}, nil
}

// unwind tears links down innermost first.
func unwind(options Options, links []hopLink) error {
	ctx, cancel := context.WithTimeout(context.Background(), options.TeardownTimeout*time.Duration(len(links)+1))
	defer cancel()
	var errs []error
	for i := len(links) - 1; i >= 0; i-- {
		if err := links[i].unlink(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func chainLabel(hops []address.Hop) string {
	labels := make([]string, 0, len(hops))
	for _, hop := range hops {
		labels = append(labels, hop.Label())
	}
	return strings.Join(labels, " | ")
}

// Hops returns the hops the chain was built from.
func (c *Chain) Hops() []address.Hop { return c.hops }

// Lost reports whether the chain has died or been closed.
func (c *Chain) Lost() bool { return c.runner.isLost() }

func (c *Chain) Close() error {
	c.closeOnce.Do(func() {
		c.logger.Debug("closing chain")
		c.closeErr = unwind(c.options, c.links)
	})
	return c.closeErr
}

func (c *Chain) Execute(ctx context.Context, command Command) (*CommandOutput, error) {
	return c.runner.run(ctx, command, c.options.CommandTimeout)
}

// fileOp runs a file script and turns a reserved exit status into an
// IOError.
func (c *Chain) fileOp(ctx context.Context, op, filePath, template string, stdin []byte) (*CommandOutput, error) {
	output, err := c.Execute(ctx, Command{Script: fileScript(template, filePath), Stdin: stdin})
	if err != nil {
		return nil, transportError(op, filePath, err)
	}
	if output.ExitCode != 0 {
		return nil, &IOError{
			Op:   op,
			Path: filePath,
			Kind: statusKind(output.ExitCode),
			Err:  &remoteError{status: output.ExitCode, stderr: string(output.Stderr)},
		}
	}
	return output, nil
}

func (c *Chain) ReadFile(ctx context.Context, filePath string) ([]byte, error) {
	output, err := c.fileOp(ctx, "read", filePath, readScript, nil)
	if err != nil {
		return nil, err
	}
	return output.Stdout, nil
}

func (c *Chain) WriteFile(ctx context.Context, filePath string, data []byte) error {
	if data == nil {
		data = []byte{}
	}
	_, err := c.fileOp(ctx, "write", filePath, writeScript, data)
	return err
}

func (c *Chain) ListDir(ctx context.Context, filePath string) ([]DirEntry, error) {
	output, err := c.fileOp(ctx, "list", filePath, listScript, nil)
	if err != nil {
		return nil, err
	}
	entries, err := parseListing(output.Stdout)
	if err != nil {
		return nil, &IOError{Op: "list", Path: filePath, Kind: Other, Err: err}
	}
	return entries, nil
}

func parseListing(data []byte) ([]DirEntry, error) {
	var entries []DirEntry
	for record := range bytes.SplitSeq(data, []byte{0}) {
		if len(record) == 0 {
			continue
		}
		fields := strings.SplitN(string(record), "\t", 3)
		if len(fields) != 3 {
			return nil, fmt.Errorf("malformed listing record %q", record)
		}
		entry := DirEntry{Name: fields[2], IsDir: fields[0] == "d"}
		if fields[1] != "-" {
			size, err := strconv.ParseInt(fields[1], 10, 64)
			if err != nil {
				return nil, fmt.Errorf("malformed size in listing record %q", record)
			}
			entry.Size = &size
		}
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

func (c *Chain) Stat(ctx context.Context, filePath string) (FileInfo, error) {
	output, err := c.fileOp(ctx, "stat", filePath, statScript, nil)
	if err != nil {
		return FileInfo{}, err
	}
	info, err := parseStat(filePath, output.Stdout)
	if err != nil {
		return FileInfo{}, &IOError{Op: "stat", Path: filePath, Kind: Other, Err: err}
	}
	return info, nil
}

func parseStat(filePath string, data []byte) (FileInfo, error) {
	fields := strings.Fields(string(data))
	if len(fields) != 4 {
		return FileInfo{}, fmt.Errorf("malformed stat output %q", data)
	}
	size, sizeErr := strconv.ParseInt(fields[1], 10, 64)
	mode, modeErr := strconv.ParseUint(fields[2], 8, 32)
	seconds, timeErr := strconv.ParseInt(fields[3], 10, 64)
	if err := errors.Join(sizeErr, modeErr, timeErr); err != nil {
		return FileInfo{}, fmt.Errorf("malformed stat output %q: %w", data, err)
	}
	info := FileInfo{
		Name:    path.Base(filePath),
		Size:    size,
		Mode:    fs.FileMode(mode & 0o777),
		ModTime: time.Unix(seconds, 0),
		IsDir:   fields[0] == "d",
	}
	// stat prints setuid, setgid and sticky as octal 4000, 2000, 1000.
	if mode&0o4000 != 0 {
		info.Mode |= fs.ModeSetuid
	}
	if mode&0o2000 != 0 {
		info.Mode |= fs.ModeSetgid
	}
	if mode&0o1000 != 0 {
		info.Mode |= fs.ModeSticky
	}
	if info.IsDir {
		info.Mode |= fs.ModeDir
	}
	return info, nil
}

// transportError wraps a failure of the chain itself.
func transportError(op, filePath string, err error) error {
	switch {
	case errors.Is(err, ErrOutcomeUnknown):
		return &IOError{Op: op, Path: filePath, Kind: OutcomeUnknown, Err: err}
	case errors.Is(err, ErrTransportLost):
		return &IOError{Op: op, Path: filePath, Kind: TransportLost, Err: err}
	default:
		return err
	}
}

// processLinker starts real hop programs. The first non-local hop
// becomes the root; later hops are entered through the root's tunnel.
type processLinker struct {
	options Options
	root    *rootLink
}

func (l *processLinker) runner() runner { return l.root.tunnel }

func (l *processLinker) link(ctx context.Context, index, total int, hop address.Hop) (hopLink, error) {
	if hop.AskPassword {
		return nil, &ConnectError{Hop: index, HopInfo: hop, Total: total, Kind: HopRefused, Err: errAskPassword}
	}
	if l.root == nil {
		root, err := openRoot(ctx, l.options, index, total, hop)
		if err != nil {
			return nil, err
		}
		l.root = root
		return root, nil
	}
	return l.root.enter(ctx, index, total, hop)
}

// rootLink is the first non-local hop.
type rootLink struct {
	options Options
	conn    *rootConn
	tunnel  *tunnel
	stderr  *stderrLog

	exited chan struct{}
	status int
}

func openRoot(ctx context.Context, options Options, index, total int, hop address.Hop) (*rootLink, error) {
	nonce, err := newNonce()
	if err != nil {
		return nil, err
	}
	startup := startupScript(nonce, options.Shell)
	fail := func(kind ConnectErrorKind, stderr string, err error) error {
		return &ConnectError{Hop: index, HopInfo: hop, Total: total, Kind: kind, Stderr: stderr, Err: err}
	}

	var conn *rootConn
	if hop.Kind == address.KindSSH && options.NativeSSH {
		var kind ConnectErrorKind
		conn, kind, err = dialNative(ctx, hop, options, startup)
		if err != nil {
			return nil, fail(kind, "", err)
		}
	} else {
		argv, err := hopArgv(hop, options, startup)
		if err != nil {
			return nil, fail(HopRefused, "", err)
		}
		conn, err = startProcess(argv)
		if err != nil {
			return nil, fail(HopRefused, "", err)
		}
	}

	root := &rootLink{
		options: options,
		conn:    conn,
		stderr:  newStderrLog(stderrCapacity),
		exited:  make(chan struct{}),
	}
	go root.stderr.consume(conn.stderr)
	go func() {
		root.status = conn.wait()
		close(root.exited)
	}()
	root.tunnel = newTunnel(conn.stdin, conn.stdout, options.Shell, options.Clock, options.Logger, conn.kill)

	err = root.tunnel.send(ctx, nil, options.ConnectTimeout, awaitReady(nonce, nil))
	if err == nil {
		return root, nil
	}

	// The root exited or never answered. Collect what it said.
	root.conn.kill()
	<-root.exited
	select {
	case <-root.stderr.done:
	case <-options.Clock.After(options.TeardownTimeout):
	}
	root.conn.release()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, fmt.Errorf("starting %s: %w", hop.Label(), ctxErr)
	}
	stderr := root.stderr.tail()
	if errors.Is(err, errTimedOut) {
		return nil, fail(Unreachable, stderr, errTimedOut)
	}
	return nil, fail(classify(stderr, root.status), stderr, nil)
}

// awaitReady reads until the ready marker. When status is non-nil, an
// exit marker for the hop being entered is recorded there and ends the
// wait.
func awaitReady(nonce string, status *int) func(*bufio.Reader) error {
	ready := nonce + " ready"
	exit := nonce + " exit "
	return func(reader *bufio.Reader) error {
		for {
			raw, err := reader.ReadBytes('\n')
			if err != nil {
				return fmt.Errorf("waiting for shell: %w", err)
			}
			line := string(trimEOL(raw))
			if line == ready {
				return nil
			}
			if rest, ok := strings.CutPrefix(line, exit); ok && status != nil {
				code, err := strconv.Atoi(rest)
				if err != nil {
					return fmt.Errorf("%w: exit status %q", errFraming, rest)
				}
				*status = code
				return nil
			}
		}
	}
}

func (r *rootLink) unlink(ctx context.Context) error {
	r.tunnel.shutdown()
	// Errors here mean the root is already gone.
	_, _ = r.conn.stdin.Write([]byte("exit\n"))
	r.conn.stdin.Close()
	select {
	case <-r.exited:
	case <-r.options.Clock.After(r.options.TeardownTimeout):
		r.options.Logger.Debug("root did not exit, killing it")
		r.conn.kill()
		<-r.exited
	case <-ctx.Done():
		r.conn.kill()
		<-r.exited
	}
	r.conn.release()
	return nil
}

// enter starts hop inside the innermost shell.
func (r *rootLink) enter(ctx context.Context, index, total int, hop address.Hop) (hopLink, error) {
	nonce, err := newNonce()
	if err != nil {
		return nil, err
	}
	argv, err := hopArgv(hop, r.options, startupScript(nonce, r.options.Shell))
	if err != nil {
		return nil, &ConnectError{Hop: index, HopInfo: hop, Total: total, Kind: HopRefused, Err: err}
	}

	syncMarker := nonce + " sync"
	synced := r.stderr.expect(syncMarker)
	offset := r.stderr.offset()
	status := -1
	err = r.tunnel.send(ctx, entryRequest(nonce, argv), r.options.ConnectTimeout, awaitReady(nonce, &status))
	if err != nil {
		r.stderr.forget(syncMarker)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("starting %s: %w", hop.Label(), ctxErr)
		}
		kind := classify(r.stderr.since(offset), status)
		if errors.Is(err, errTimedOut) {
			kind = Unreachable
		}
		return nil, &ConnectError{Hop: index, HopInfo: hop, Total: total, Kind: kind, Stderr: r.stderr.since(offset), Err: err}
	}
	if status < 0 {
		return &tunneledLink{root: r, nonce: nonce, syncMarker: syncMarker, synced: synced}, nil
	}

	// The hop program exited back into its parent. Its diagnostics
	// are complete once the parent's sync line has come through.
	select {
	case <-synced:
	case <-r.options.Clock.After(r.options.TeardownTimeout):
		r.stderr.forget(syncMarker)
	}
	stderr := r.stderr.since(offset)
	return nil, &ConnectError{Hop: index, HopInfo: hop, Total: total, Kind: classify(stderr, status), Stderr: stderr}
}

// entryRequest runs argv in the current shell. When argv returns, the
// parent reports its status on stdout and then writes a sync line to
// stderr.
func entryRequest(nonce string, argv []string) []byte {
	return fmt.Appendf(nil, "%s; printf '\\n%%s %%s\\n' '%s exit' \"$?\"; printf '%%s\\n' '%s sync' >&2\n",
		shellescape.QuoteCommand(argv), nonce, nonce)
}

// tunneledLink is a hop entered through its parent's shell.
type tunneledLink struct {
	root       *rootLink
	nonce      string
	syncMarker string
	synced     <-chan struct{}
}

// unlink exits the hop's shell and waits for the parent to report it.
func (t *tunneledLink) unlink(ctx context.Context) error {
	defer t.root.stderr.forget(t.syncMarker)
	if t.root.tunnel.isLost() {
		return nil
	}
	status := -1
	err := t.root.tunnel.send(ctx, []byte("exit\n"), t.root.options.TeardownTimeout, awaitExit(t.nonce, &status))
	if err != nil {
		return fmt.Errorf("exiting hop: %w", err)
	}
	return nil
}

func awaitExit(nonce string, status *int) func(*bufio.Reader) error {
	exit := nonce + " exit "
	return func(reader *bufio.Reader) error {
		for {
			raw, err := reader.ReadBytes('\n')
			if err != nil {
				return fmt.Errorf("waiting for hop exit: %w", err)
			}
			if rest, ok := strings.CutPrefix(string(trimEOL(raw)), exit); ok {
				*status, _ = strconv.Atoi(rest)
				return nil
			}
		}
	}
}
