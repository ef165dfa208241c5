// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"bytes"
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bureau-foundation/hopedit/lib/address"
	"github.com/bureau-foundation/hopedit/lib/clock"
	"github.com/bureau-foundation/hopedit/lib/testutil"
)

type fakePrograms struct {
	options Options
	log     string
}

// newFakePrograms returns Options whose ssh, sudo, docker, and podman
// are fakes that open a shell on this machine.
func newFakePrograms(t *testing.T) fakePrograms {
	t.Helper()
	testutil.RequireShell(t)
	log := filepath.Join(t.TempDir(), "invocations.log")
	return fakePrograms{
		log: log,
		options: Options{
			SSHProgram:      testutil.FakeHopProgram(t, "ssh", log),
			SudoProgram:     testutil.FakeHopProgram(t, "sudo", log),
			DockerProgram:   testutil.FakeHopProgram(t, "docker", log),
			PodmanProgram:   testutil.FakeHopProgram(t, "podman", log),
			ConnectTimeout:  10 * time.Second,
			CommandTimeout:  10 * time.Second,
			TeardownTimeout: 2 * time.Second,
		},
	}
}

func connectFake(t *testing.T, options Options, hops ...address.Hop) Transport {
	t.Helper()
	transport, err := Connect(t.Context(), hops, options)
	if err != nil {
		t.Fatalf("Connect(%v): %v", hops, err)
	}
	t.Cleanup(func() { transport.Close() })
	return transport
}

func TestNestedChainFileOperations(t *testing.T) {
	fakes := newFakePrograms(t)
	chain := connectFake(t, fakes.options,
		address.SSH("alice", "bastion", 2222),
		address.Sudo(),
		address.Container("docker", "web"),
	)
	if _, ok := chain.(*Chain); !ok {
		t.Fatalf("Connect returned %T, want *Chain", chain)
	}
	ctx := t.Context()
	directory := t.TempDir()
	target := filepath.Join(directory, "it's a file.txt")
	data := []byte("héllo\n\x00binary\r\nend")

	if err := chain.WriteFile(ctx, target, data); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	got, err := chain.ReadFile(ctx, target)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Errorf("ReadFile = %q, want %q", got, data)
	}

	if err := os.Mkdir(filepath.Join(directory, "sub"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(directory, ".hidden"), []byte("abc"), 0o600); err != nil {
		t.Fatal(err)
	}
	entries, err := chain.ListDir(ctx, directory)
	if err != nil {
		t.Fatalf("ListDir: %v", err)
	}
	var names []string
	for _, entry := range entries {
		names = append(names, entry.Name)
	}
	if strings.Join(names, "/") != ".hidden/it's a file.txt/sub" {
		t.Errorf("ListDir names = %q", names)
	}
	if entries[0].Size == nil || *entries[0].Size != 3 || !entries[2].IsDir {
		t.Errorf("ListDir entries = %+v", entries)
	}

	info, err := chain.Stat(ctx, target)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if info.Size != int64(len(data)) || info.IsDir || info.Name != "it's a file.txt" {
		t.Errorf("Stat = %+v", info)
	}

	output, err := chain.Execute(ctx, Command{Script: "printf '%s' \"$1-ok\"; exit 7"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if string(output.Stdout) != "-ok" || output.ExitCode != 7 {
		t.Errorf("Execute = %q exit %d", output.Stdout, output.ExitCode)
	}

	invocations, err := os.ReadFile(fakes.log)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(invocations)), "\n")
	if len(lines) != 3 {
		t.Fatalf("hop programs ran %d times, want 3:\n%s", len(lines), invocations)
	}
	if !strings.HasPrefix(lines[0], "-T -o BatchMode=yes -p 2222 -l alice -- bastion sh -c ") {
		t.Errorf("ssh invocation = %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "-n -- sh -c ") {
		t.Errorf("sudo invocation = %q", lines[1])
	}
	if !strings.HasPrefix(lines[2], "exec -i web sh -c ") {
		t.Errorf("docker invocation = %q", lines[2])
	}
}

func TestChainErrorKinds(t *testing.T) {
	fakes := newFakePrograms(t)
	chain := connectFake(t, fakes.options, address.Sudo())
	ctx := t.Context()
	directory := t.TempDir()
	file := filepath.Join(directory, "file")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		call func() error
		want IOErrorKind
	}{
		{"read missing", func() error { _, err := chain.ReadFile(ctx, filepath.Join(directory, "missing")); return err }, NotFound},
		{"read directory", func() error { _, err := chain.ReadFile(ctx, directory); return err }, NotAFile},
		{"list file", func() error { _, err := chain.ListDir(ctx, file); return err }, NotADirectory},
		{"list missing", func() error { _, err := chain.ListDir(ctx, filepath.Join(directory, "nope")); return err }, NotFound},
		{"stat missing", func() error { _, err := chain.Stat(ctx, filepath.Join(directory, "nope")); return err }, NotFound},
		{"write directory", func() error { return chain.WriteFile(ctx, directory, []byte("x")) }, NotAFile},
		{"write into missing directory", func() error { return chain.WriteFile(ctx, filepath.Join(directory, "a", "b"), []byte("x")) }, NotFound},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			err := test.call()
			if got := KindOf(err); got != test.want {
				t.Errorf("kind = %s (%v), want %s", got, err, test.want)
			}
		})
	}

	_, err := chain.ReadFile(ctx, filepath.Join(directory, "missing"))
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("missing file error %v does not match fs.ErrNotExist", err)
	}
}

func TestConnectFailureClassification(t *testing.T) {
	fakes := newFakePrograms(t)
	refusingSudo := fakes.options
	refusingSudo.SudoArgs = []string{"refuse-me"}

	tests := []struct {
		name    string
		options Options
		hops    []address.Hop
		hop     int
		want    error
	}{
		{"first hop unreachable", fakes.options, []address.Hop{address.SSH("", "unreachable.example", 0)}, 0, ErrUnreachable},
		{"nested hop denied", fakes.options, []address.Hop{address.Sudo(), address.SSH("", "denied.example", 0)}, 1, ErrAuthenticationFailed},
		{"third hop unreachable", fakes.options, []address.Hop{address.SSH("", "a", 0), address.Sudo(), address.SSH("", "unreachable.b", 0)}, 2, ErrUnreachable},
		{"sudo refuses", refusingSudo, []address.Hop{address.Local(), address.Sudo()}, 1, ErrHopRefused},
		{"askpw", fakes.options, []address.Hop{address.SSH("", "a", 0), {Kind: address.KindSudo, AskPassword: true}}, 1, ErrHopRefused},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			transport, err := Connect(t.Context(), test.hops, test.options)
			if err == nil {
				transport.Close()
				t.Fatal("Connect succeeded")
			}
			if !errors.Is(err, test.want) {
				t.Fatalf("Connect error = %v, want %v", err, test.want)
			}
			var connectErr *ConnectError
			if !errors.As(err, &connectErr) {
				t.Fatalf("error %v is not a *ConnectError", err)
			}
			if connectErr.Hop != test.hop || connectErr.Total != len(test.hops) {
				t.Errorf("failed at hop %d of %d, want %d of %d", connectErr.Hop, connectErr.Total, test.hop, len(test.hops))
			}
		})
	}
}

func TestConnectLocalOnly(t *testing.T) {
	transport, err := Connect(t.Context(), []address.Hop{address.Local(), address.Local()}, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := transport.(*Local); !ok {
		t.Errorf("Connect returned %T for a local chain, want *Local", transport)
	}
}

func TestExecutionIsSerialized(t *testing.T) {
	fakes := newFakePrograms(t)
	chain := connectFake(t, fakes.options, address.Sudo())
	directory := t.TempDir()
	started := filepath.Join(directory, "started")

	type result struct {
		name   string
		stdout string
		err    error
	}
	results := make(chan result, 2)
	go func() {
		output, err := chain.Execute(context.Background(), Command{
			Script: "touch " + started + "; sleep 0.4; printf first",
		})
		if err != nil {
			results <- result{name: "first", err: err}
			return
		}
		results <- result{name: "first", stdout: string(output.Stdout)}
	}()
	waitForFile(t, started)

	go func() {
		output, err := chain.Execute(context.Background(), Command{Script: "printf second"})
		if err != nil {
			results <- result{name: "second", err: err}
			return
		}
		results <- result{name: "second", stdout: string(output.Stdout)}
	}()

	for _, want := range []string{"first", "second"} {
		got := testutil.RequireReceive(t, results, 10*time.Second, "waiting for "+want)
		if got.err != nil {
			t.Fatalf("%s: %v", got.name, got.err)
		}
		if got.name != want || got.stdout != want {
			t.Fatalf("completed %s with %q, want %s", got.name, got.stdout, want)
		}
	}
}

func TestCancelledRequests(t *testing.T) {
	fakes := newFakePrograms(t)
	chain := connectFake(t, fakes.options, address.Sudo())
	directory := t.TempDir()
	started := filepath.Join(directory, "started")
	neverRan := filepath.Join(directory, "never-ran")

	// A request cancelled after it was sent has an unknown outcome.
	inflightCtx, cancelInflight := context.WithCancel(t.Context())
	inflight := make(chan error, 1)
	go func() {
		_, err := chain.Execute(inflightCtx, Command{Script: "touch " + started + "; sleep 0.4; printf late"})
		inflight <- err
	}()
	waitForFile(t, started)

	// A request cancelled while queued is never sent.
	queuedCtx, cancelQueued := context.WithCancel(t.Context())
	queued := make(chan error, 1)
	go func() {
		_, err := chain.Execute(queuedCtx, Command{Script: "touch " + neverRan})
		queued <- err
	}()
	time.Sleep(50 * time.Millisecond)
	cancelQueued()
	if err := testutil.RequireReceive(t, queued, 5*time.Second, "queued request"); !errors.Is(err, context.Canceled) {
		t.Fatalf("queued request error = %v, want context.Canceled", err)
	}

	cancelInflight()
	err := testutil.RequireReceive(t, inflight, 5*time.Second, "in-flight request")
	if !errors.Is(err, ErrOutcomeUnknown) {
		t.Fatalf("in-flight request error = %v, want ErrOutcomeUnknown", err)
	}

	// The worker drained the abandoned response; the stream is still
	// aligned.
	output, err := chain.Execute(t.Context(), Command{Script: "printf next"})
	if err != nil {
		t.Fatalf("Execute after cancellation: %v", err)
	}
	if string(output.Stdout) != "next" {
		t.Errorf("stdout = %q, want next", output.Stdout)
	}
	if _, err := os.Stat(neverRan); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("the cancelled queued request ran")
	}
}

func TestCommandTimeoutLosesChain(t *testing.T) {
	fakes := newFakePrograms(t)
	options := fakes.options
	fakeClock := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	options.Clock = fakeClock
	transport := connectFake(t, options, address.Sudo())
	chain := transport.(*Chain)

	result := make(chan error, 1)
	go func() {
		_, err := chain.Execute(t.Context(), Command{Script: "sleep 30"})
		result <- err
	}()
	fakeClock.WaitForTimers(1)
	fakeClock.Advance(options.CommandTimeout)

	err := testutil.RequireReceive(t, result, 10*time.Second, "Execute after the command timeout")
	if !errors.Is(err, ErrTransportLost) {
		t.Fatalf("Execute error = %v, want ErrTransportLost", err)
	}
	if !chain.Lost() {
		t.Error("chain not marked lost after a timeout")
	}
	_, err = chain.ReadFile(t.Context(), "/etc/hostname")
	if KindOf(err) != TransportLost {
		t.Errorf("ReadFile on a lost chain = %v, want TransportLost", err)
	}
}

func waitForFile(t *testing.T, path string) {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := os.Stat(path); err == nil {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", path)
}
