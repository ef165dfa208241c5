// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/alessio/shellescape"
)

// FakeProgram writes an executable /bin/sh script named name into a
// per-test directory and returns its absolute path.
func FakeProgram(t *testing.T, name, body string) string {
	t.Helper()
	directory := filepath.Join(t.TempDir(), "bin")
	if err := os.MkdirAll(directory, 0o755); err != nil {
		t.Fatalf("creating fake program directory: %v", err)
	}
	path := filepath.Join(directory, name)
	script := "#!/bin/sh\n" + body + "\n"
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("writing fake program %s: %v", name, err)
	}
	return path
}

// FakeHopProgram returns a program that behaves like ssh, sudo, docker,
// or podman (chosen by name) whose destination is this machine: it
// inspects its arguments and either fails the way the real tool does
// or runs the requested shell command locally.
//
// Arguments starting with "unreachable" fail like a refused TCP
// connection (exit 255). Arguments starting with "denied" fail like a
// rejected public key. Arguments starting with "refuse" exit 1 with a
// generic message. Every invocation appends its arguments to log, one
// line per call, when log is non-empty.
func FakeHopProgram(t *testing.T, name, log string) string {
	t.Helper()
	body := ""
	if log != "" {
		body += `printf '%s\n' "$*" >>` + shellescape.Quote(log) + "\n"
	}
	body += `for argument in "$@"; do
  case "$argument" in
    unreachable*) echo "` + name + `: connect to host $argument port 22: Connection refused" >&2; exit 255 ;;
    denied*) echo "$argument: Permission denied (publickey)." >&2; exit 255 ;;
    refuse*) echo "` + name + `: $argument: operation not permitted" >&2; exit 1 ;;
  esac
done
`
	switch name {
	case "ssh":
		// Everything after the destination is one command line for
		// the remote login shell.
		body += `while [ "$1" != "--" ]; do shift; done
shift 2
exec /bin/sh -c "$*"`
	case "sudo":
		body += `while [ "$1" != "--" ]; do shift; done
shift
exec "$@"`
	case "docker", "podman":
		body += `shift 3
exec "$@"`
	default:
		t.Fatalf("FakeHopProgram: no behavior for %q", name)
	}
	return FakeProgram(t, name, body)
}

// RequireShell skips the test when /bin/sh or a base64 tool is
// missing.
func RequireShell(t *testing.T) {
	t.Helper()
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("/bin/sh not available")
	}
	if _, err := exec.LookPath("base64"); err != nil {
		t.Skip("base64 not available")
	}
}
