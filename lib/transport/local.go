// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"

	"golang.org/x/sys/unix"
)

// Local is the transport for chains that never leave this machine.
type Local struct {
	shell  string
	logger *slog.Logger

	// beforeRename runs between writing the staged file and renaming
	// it over the target. Tests use it to interrupt a write.
	beforeRename func(staged string) error
}

var _ Transport = (*Local)(nil)

// NewLocal returns a local transport. Only Shell and Logger are read
// from options.
func NewLocal(options Options) *Local {
	options = options.withDefaults()
	return &Local{shell: options.Shell, logger: options.Logger}
}

func (l *Local) ReadFile(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, localError("read", path, err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, localError("read", path, err)
	}
	if !info.Mode().IsRegular() {
		return nil, &IOError{Op: "read", Path: path, Kind: NotAFile}
	}
	data, err := io.ReadAll(file)
	if err != nil {
		return nil, localError("read", path, err)
	}
	return data, nil
}

// WriteFile stages data in a file next to the target (following
// symbolic links), syncs it, and renames it into place, preserving the
// existing file's permission bits. When the directory refuses new
// files but the target itself is writable, the target is overwritten
// in place instead.
func (l *Local) WriteFile(ctx context.Context, path string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	target := path
	if resolved, err := filepath.EvalSymlinks(path); err == nil {
		target = resolved
	}

	perm := fs.FileMode(0o666)
	existing, statErr := os.Stat(target)
	switch {
	case statErr == nil && existing.IsDir():
		return &IOError{Op: "write", Path: path, Kind: NotAFile}
	case statErr == nil:
		perm = existing.Mode().Perm()
	case !errors.Is(statErr, fs.ErrNotExist):
		return localError("write", path, statErr)
	}

	staged, err := stagingName(target)
	if err != nil {
		return &IOError{Op: "write", Path: path, Kind: Other, Err: err}
	}
	file, err := os.OpenFile(staged, os.O_WRONLY|os.O_CREATE|os.O_EXCL, perm)
	if err != nil {
		if errors.Is(err, fs.ErrPermission) && statErr == nil {
			l.logger.Debug("directory not writable, writing in place", "path", target)
			return l.writeInPlace(path, target, data)
		}
		return localError("write", path, err)
	}
	if statErr == nil {
		if err := matchOwner(file, existing); err != nil {
			file.Close()
			os.Remove(staged)
			l.logger.Debug("staged file cannot take the target's owner, writing in place", "path", target, "error", err)
			return l.writeInPlace(path, target, data)
		}
	}

	if err := l.fillStaged(ctx, file, staged, perm, statErr == nil, data); err != nil {
		os.Remove(staged)
		var ioErr *IOError
		if errors.As(err, &ioErr) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return localError("write", path, err)
	}
	if err := os.Rename(staged, target); err != nil {
		os.Remove(staged)
		return localError("write", path, err)
	}
	return nil
}

func (l *Local) fillStaged(ctx context.Context, file *os.File, staged string, perm fs.FileMode, chmod bool, data []byte) error {
	if _, err := file.Write(data); err != nil {
		file.Close()
		return err
	}
	// The umask applied at creation may have narrowed the copied mode.
	if chmod {
		if err := file.Chmod(perm); err != nil {
			file.Close()
			return err
		}
	}
	if err := file.Sync(); err != nil {
		file.Close()
		return err
	}
	if err := file.Close(); err != nil {
		return err
	}
	if l.beforeRename != nil {
		if err := l.beforeRename(staged); err != nil {
			return err
		}
	}
	return ctx.Err()
}

// matchOwner gives file the owner and group of existing, so renaming
// it over existing leaves ownership as it was. It fails when the writer
// may not make that change.
func matchOwner(file *os.File, existing fs.FileInfo) error {
	want, ok := existing.Sys().(*syscall.Stat_t)
	if !ok {
		return nil
	}
	info, err := file.Stat()
	if err != nil {
		return err
	}
	if have, ok := info.Sys().(*syscall.Stat_t); ok && have.Uid == want.Uid && have.Gid == want.Gid {
		return nil
	}
	return file.Chown(int(want.Uid), int(want.Gid))
}

func (l *Local) writeInPlace(path, target string, data []byte) error {
	file, err := os.OpenFile(target, os.O_WRONLY|os.O_TRUNC, 0)
	if err != nil {
		return localError("write", path, err)
	}
	if _, err := file.Write(data); err != nil {
		file.Close()
		return localError("write", path, err)
	}
	if err := file.Close(); err != nil {
		return localError("write", path, err)
	}
	return nil
}

func stagingName(target string) (string, error) {
	var suffix [6]byte
	if _, err := rand.Read(suffix[:]); err != nil {
		return "", fmt.Errorf("generating staging name: %w", err)
	}
	return filepath.Join(filepath.Dir(target), ".hopedit."+hex.EncodeToString(suffix[:])), nil
}

func (l *Local) ListDir(ctx context.Context, path string) ([]DirEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, localError("list", path, err)
	}
	result := make([]DirEntry, 0, len(entries))
	for _, entry := range entries {
		item := DirEntry{Name: entry.Name()}
		info, err := os.Stat(filepath.Join(path, entry.Name()))
		switch {
		case err != nil:
			// Dangling symlink or a file that vanished mid-listing.
		case info.IsDir():
			item.IsDir = true
		default:
			size := info.Size()
			item.Size = &size
		}
		result = append(result, item)
	}
	return result, nil
}

func (l *Local) Stat(ctx context.Context, path string) (FileInfo, error) {
	if err := ctx.Err(); err != nil {
		return FileInfo{}, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return FileInfo{}, localError("stat", path, err)
	}
	return FileInfo{
		Name:    info.Name(),
		Size:    info.Size(),
		Mode:    info.Mode(),
		ModTime: info.ModTime(),
		IsDir:   info.IsDir(),
	}, nil
}

// Execute runs the script with the configured shell in its own process
// group, so cancelling ctx kills the script and everything it started.
func (l *Local) Execute(ctx context.Context, command Command) (*CommandOutput, error) {
	cmd := exec.CommandContext(ctx, l.shell, "-c", command.Script)
	cmd.Stdin = bytes.NewReader(command.Stdin)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return unix.Kill(-cmd.Process.Pid, unix.SIGKILL)
	}

	err := cmd.Run()
	output := &CommandOutput{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}
	if err == nil {
		return output, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	var exitError *exec.ExitError
	if errors.As(err, &exitError) {
		output.ExitCode = exitError.ExitCode()
		return output, nil
	}
	return nil, fmt.Errorf("running %s: %w", l.shell, err)
}

func (l *Local) Close() error { return nil }

// localError maps a system error to an IOError kind.
func localError(op, path string, err error) error {
	kind := Other
	switch {
	case errors.Is(err, fs.ErrNotExist):
		kind = NotFound
	case errors.Is(err, fs.ErrPermission):
		kind = PermissionDenied
	case errors.Is(err, unix.EISDIR):
		kind = NotAFile
	case errors.Is(err, unix.ENOTDIR):
		kind = NotADirectory
	}
	var pathErr *fs.PathError
	if errors.As(err, &pathErr) {
		err = pathErr.Err
	}
	return &IOError{Op: op, Path: path, Kind: kind, Err: err}
}
