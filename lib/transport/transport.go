// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"io/fs"
	"log/slog"
	"time"

	"github.com/bureau-foundation/hopedit/lib/address"
	"github.com/bureau-foundation/hopedit/lib/clock"
	"github.com/bureau-foundation/hopedit/lib/config"
)

// Transport does file I/O and runs commands at the last hop of a
// chain. Paths are interpreted by the last hop's filesystem; relative
// paths are relative to its working directory.
type Transport interface {
	ReadFile(ctx context.Context, path string) ([]byte, error)

	// WriteFile replaces path with data atomically where the
	// directory permits it. An interrupted write leaves the previous
	// content in place.
	WriteFile(ctx context.Context, path string, data []byte) error

	// ListDir returns the entries of a directory sorted by name,
	// excluding "." and "..".
	ListDir(ctx context.Context, path string) ([]DirEntry, error)

	// Stat follows symbolic links.
	Stat(ctx context.Context, path string) (FileInfo, error)

	// Execute runs a sh script at the last hop. A non-zero exit
	// status is reported in the output, not as an error.
	Execute(ctx context.Context, command Command) (*CommandOutput, error)

	// Close tears the chain down. It is safe to call more than once.
	Close() error
}

// Command is a script to run at the last hop.
type Command struct {
	// Script is POSIX sh source.
	Script string

	// Stdin is the script's standard input. Nil means empty input.
	Stdin []byte
}

// CommandOutput is what a finished Command produced.
type CommandOutput struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
}

// DirEntry is one directory entry. Size is nil for directories and
// for entries whose size could not be determined.
type DirEntry struct {
	Name  string
	IsDir bool
	Size  *int64
}

// FileInfo describes a file at the last hop.
type FileInfo struct {
	Name    string
	Size    int64
	Mode    fs.FileMode
	ModTime time.Time
	IsDir   bool
}

// Writable reports whether the owner write bit is set. It says
// nothing about whether the connected user is the owner.
func (i FileInfo) Writable() bool { return i.Mode.Perm()&0o200 != 0 }

// Options configures how hops are started and how long the chain
// waits on them.
type Options struct {
	// Shell is the program started at each tunneled hop.
	Shell string

	SudoProgram string
	SudoArgs    []string

	SSHProgram string
	SSHArgs    []string

	// NativeSSH dials a first ssh hop in-process instead of spawning
	// SSHProgram. KnownHosts and IdentityFiles configure it.
	NativeSSH     bool
	KnownHosts    string
	IdentityFiles []string

	DockerProgram string
	PodmanProgram string

	ConnectTimeout  time.Duration
	CommandTimeout  time.Duration
	TeardownTimeout time.Duration

	// Clock measures the timeouts. Nil means the real clock.
	Clock clock.Clock

	Logger *slog.Logger
}

// OptionsFromConfig builds Options from a loaded configuration.
func OptionsFromConfig(cfg *config.Config, logger *slog.Logger) Options {
	return Options{
		Shell:           cfg.Shell,
		SudoProgram:     cfg.Sudo.Program,
		SudoArgs:        cfg.Sudo.ExtraArgs,
		SSHProgram:      cfg.SSH.Program,
		SSHArgs:         cfg.SSH.ExtraArgs,
		NativeSSH:       cfg.SSH.Client == config.SSHClientNative,
		KnownHosts:      cfg.SSH.KnownHosts,
		IdentityFiles:   cfg.SSH.IdentityFiles,
		DockerProgram:   cfg.Container.Docker,
		PodmanProgram:   cfg.Container.Podman,
		ConnectTimeout:  cfg.Timeouts.Connect,
		CommandTimeout:  cfg.Timeouts.Command,
		TeardownTimeout: cfg.Timeouts.Teardown,
		Logger:          logger,
	}
}

func (o Options) withDefaults() Options {
	if o.Shell == "" {
		o.Shell = "sh"
	}
	if o.SudoProgram == "" {
		o.SudoProgram = "sudo"
	}
	if o.SSHProgram == "" {
		o.SSHProgram = "ssh"
	}
	if o.DockerProgram == "" {
		o.DockerProgram = address.EngineDocker
	}
	if o.PodmanProgram == "" {
		o.PodmanProgram = address.EnginePodman
	}
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = 30 * time.Second
	}
	if o.CommandTimeout <= 0 {
		o.CommandTimeout = time.Minute
	}
	if o.TeardownTimeout <= 0 {
		o.TeardownTimeout = 5 * time.Second
	}
	if o.Clock == nil {
		o.Clock = clock.Real()
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.DiscardHandler)
	}
	return o
}

// Connect builds a transport for hops. Hops of kind local stay on the
// current machine and start nothing; a chain of only local hops yields
// a *Local.
//
// A *ConnectError is returned when a hop cannot be started, after
// every hop before it has been torn down.
func Connect(ctx context.Context, hops []address.Hop, options Options) (Transport, error) {
	options = options.withDefaults()
	if isLocalChain(hops) {
		return NewLocal(options), nil
	}
	return connectChain(ctx, hops, options, &processLinker{options: options})
}

func isLocalChain(hops []address.Hop) bool {
	for _, hop := range hops {
		if hop.Kind != address.KindLocal {
			return false
		}
	}
	return true
}
