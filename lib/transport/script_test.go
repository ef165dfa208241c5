// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bureau-foundation/hopedit/lib/testutil"
)

// runRequest feeds request to a fresh /bin/sh and returns its stdout.
func runRequest(t *testing.T, request []byte) []byte {
	t.Helper()
	cmd := exec.Command("/bin/sh")
	cmd.Stdin = bytes.NewReader(request)
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = io.Discard
	// A truncated request makes sh exit with a syntax error.
	_ = cmd.Run()
	return stdout.Bytes()
}

func TestRequestRoundTrip(t *testing.T) {
	testutil.RequireShell(t)
	nonce, err := newNonce()
	if err != nil {
		t.Fatal(err)
	}
	stdin := []byte("line one\n\x00\xff binary 'quotes' $HOME `ticks`\n")
	command := Command{
		Script: "cat; printf 'to stderr\\n' >&2; exit 3",
		Stdin:  stdin,
	}
	response := runRequest(t, buildRequest(nonce, "sh", command))

	output, err := readResponse(bufio.NewReader(bytes.NewReader(response)), nonce)
	if err != nil {
		t.Fatalf("readResponse: %v\nraw response:\n%s", err, response)
	}
	if !bytes.Equal(output.Stdout, stdin) {
		t.Errorf("stdout = %q, want %q", output.Stdout, stdin)
	}
	if string(output.Stderr) != "to stderr\n" {
		t.Errorf("stderr = %q", output.Stderr)
	}
	if output.ExitCode != 3 {
		t.Errorf("exit code = %d, want 3", output.ExitCode)
	}
}

func TestRequestScriptContentIsOpaque(t *testing.T) {
	testutil.RequireShell(t)
	nonce, err := newNonce()
	if err != nil {
		t.Fatal(err)
	}
	// Unbalanced syntax in the script must not disturb the framing
	// around it.
	command := Command{Script: "echo 'unterminated"}
	response := runRequest(t, buildRequest(nonce, "sh", command))
	output, err := readResponse(bufio.NewReader(bytes.NewReader(response)), nonce)
	if err != nil {
		t.Fatalf("readResponse: %v", err)
	}
	if output.ExitCode == 0 {
		t.Errorf("a script with a syntax error exited 0")
	}
}

func TestTruncatedWriteRequestLeavesFileUntouched(t *testing.T) {
	testutil.RequireShell(t)
	directory := t.TempDir()
	target := filepath.Join(directory, "config.txt")
	if err := os.WriteFile(target, []byte("old content\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	nonce, err := newNonce()
	if err != nil {
		t.Fatal(err)
	}
	data := bytes.Repeat([]byte("new content\n"), 200)
	request := buildRequest(nonce, "sh", Command{Script: fileScript(writeScript, target), Stdin: data})

	// Cut the request inside the stdin heredoc.
	cut := bytes.Index(request, []byte("_I'\n")) + 200
	if cut < 200 || cut >= len(request) {
		t.Fatalf("could not find the stdin heredoc in the request")
	}
	runRequest(t, request[:cut])

	content, err := os.ReadFile(target)
	if err != nil {
		t.Fatal(err)
	}
	if string(content) != "old content\n" {
		t.Fatalf("target changed after a truncated request: %q", content)
	}
	assertNoStagingFiles(t, directory)

	// The complete request does replace the file.
	response := runRequest(t, request)
	output, err := readResponse(bufio.NewReader(bytes.NewReader(response)), nonce)
	if err != nil {
		t.Fatalf("readResponse: %v", err)
	}
	if output.ExitCode != 0 {
		t.Fatalf("write exited %d: %s", output.ExitCode, output.Stderr)
	}
	content, _ = os.ReadFile(target)
	if !bytes.Equal(content, data) {
		t.Errorf("target holds %d bytes, want %d", len(content), len(data))
	}
	info, err := os.Stat(target)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o644 {
		t.Errorf("mode = %v, want 0644 preserved", info.Mode().Perm())
	}
	assertNoStagingFiles(t, directory)
}

func TestWriteScriptPreservesOwnership(t *testing.T) {
	testutil.RequireShell(t)
	directory := t.TempDir()
	target := filepath.Join(directory, "shared.conf")
	if err := os.WriteFile(target, []byte("old"), 0o664); err != nil {
		t.Fatal(err)
	}
	uid, gid := handOver(t, target)

	nonce, err := newNonce()
	if err != nil {
		t.Fatal(err)
	}
	response := runRequest(t, buildRequest(nonce, "sh", Command{Script: fileScript(writeScript, target), Stdin: []byte("new")}))
	output, err := readResponse(bufio.NewReader(bytes.NewReader(response)), nonce)
	if err != nil {
		t.Fatalf("readResponse: %v", err)
	}
	if output.ExitCode != 0 {
		t.Fatalf("write exited %d: %s", output.ExitCode, output.Stderr)
	}
	if content, _ := os.ReadFile(target); string(content) != "new" {
		t.Errorf("target holds %q", content)
	}
	assertOwner(t, target, uid, gid)
	assertNoStagingFiles(t, directory)
}

func assertNoStagingFiles(t *testing.T, directory string) {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(directory, ".hopedit.*"))
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 0 {
		t.Errorf("staging files left behind: %v", matches)
	}
}

func TestReadResponseSkipsStrayOutput(t *testing.T) {
	nonce := "he0123"
	response := strings.Join([]string{
		"Last login: yesterday",
		"",
		nonce + " begin 0",
		"aGVs",
		"bG8=",
		"",
		nonce + " stderr",
		"",
		nonce + " end",
		"",
	}, "\n")
	output, err := readResponse(bufio.NewReader(strings.NewReader(response)), nonce)
	if err != nil {
		t.Fatalf("readResponse: %v", err)
	}
	// Line-wrapped base64 is decoded as one stream.
	if string(output.Stdout) != "hello" {
		t.Errorf("stdout = %q, want hello", output.Stdout)
	}
	if len(output.Stderr) != 0 {
		t.Errorf("stderr = %q, want empty", output.Stderr)
	}
}

func TestReadResponseErrors(t *testing.T) {
	nonce := "he0123"
	tests := map[string]string{
		"eof before end": nonce + " begin 0\naGVsbG8=\n",
		"bad status":     nonce + " begin zero\n",
		"bad base64":     nonce + " begin 0\n!!!\n" + nonce + " stderr\n" + nonce + " end\n",
	}
	for name, response := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := readResponse(bufio.NewReader(strings.NewReader(response)), nonce)
			if err == nil {
				t.Fatal("readResponse succeeded")
			}
			if name != "eof before end" && !errors.Is(err, errFraming) {
				t.Errorf("error %v does not match errFraming", err)
			}
		})
	}
}

func TestFileScriptQuotesPath(t *testing.T) {
	script := fileScript(readScript, "/tmp/it's $(rm -rf ~)")
	if !strings.HasPrefix(script, `p='/tmp/it'"'"'s $(rm -rf ~)'`) {
		t.Errorf("path not single-quoted: %q", strings.SplitN(script, "\n", 2)[0])
	}
}
