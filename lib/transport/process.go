// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// rootConn is the bottom of a chain: the stdio of the first non-local
// hop and a way to end it.
type rootConn struct {
	stdin  io.WriteCloser
	stdout io.ReadCloser
	stderr io.ReadCloser

	// kill ends the root and everything it started.
	kill func()

	// wait blocks until the root has exited and returns its exit
	// status, or -1 when it was killed by a signal or the status is
	// unknown.
	wait func() int
}

// release closes the read ends once nothing reads them anymore.
func (c *rootConn) release() {
	c.stdout.Close()
	c.stderr.Close()
}

// startProcess starts argv in its own process group with pipes on all
// three standard streams.
//
// The pipes are created here rather than with Cmd.StdoutPipe because
// Cmd.Wait closes those as soon as the process exits, discarding
// diagnostics the chain has not read yet.
func startProcess(argv []string) (*rootConn, error) {
	stdinReader, stdinWriter, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("creating stdin pipe: %w", err)
	}
	stdoutReader, stdoutWriter, err := os.Pipe()
	if err != nil {
		closeAll(stdinReader, stdinWriter)
		return nil, fmt.Errorf("creating stdout pipe: %w", err)
	}
	stderrReader, stderrWriter, err := os.Pipe()
	if err != nil {
		closeAll(stdinReader, stdinWriter, stdoutReader, stdoutWriter)
		return nil, fmt.Errorf("creating stderr pipe: %w", err)
	}

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Stdin = stdinReader
	cmd.Stdout = stdoutWriter
	cmd.Stderr = stderrWriter
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	startErr := cmd.Start()
	// The child holds its own copies of these ends.
	closeAll(stdinReader, stdoutWriter, stderrWriter)
	if startErr != nil {
		closeAll(stdinWriter, stdoutReader, stderrReader)
		return nil, fmt.Errorf("starting %s: %w", argv[0], startErr)
	}

	processGroup := -cmd.Process.Pid
	return &rootConn{
		stdin:  stdinWriter,
		stdout: stdoutReader,
		stderr: stderrReader,
		kill: func() {
			// ESRCH from a group that already exited is harmless.
			_ = unix.Kill(processGroup, unix.SIGKILL)
		},
		wait: func() int {
			err := cmd.Wait()
			if err == nil {
				return 0
			}
			var exitError *exec.ExitError
			if errors.As(err, &exitError) {
				return exitError.ExitCode()
			}
			return -1
		},
	}, nil
}

func closeAll(closers ...io.Closer) {
	for _, closer := range closers {
		closer.Close()
	}
}
