// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package commands builds the hopedit command tree. Every command that
// touches a file takes an address (see lib/address) and reaches it
// through a fresh chain that is torn down when the command returns;
// only the interactive editor shares chains between buffers.
package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/bureau-foundation/hopedit/cmd/hopedit/cli"
	"github.com/bureau-foundation/hopedit/lib/address"
	"github.com/bureau-foundation/hopedit/lib/config"
	"github.com/bureau-foundation/hopedit/lib/transport"
	"github.com/bureau-foundation/hopedit/lib/version"
)

// Environment is what commands read from and write to. main fills it
// from the process; tests fill it with buffers.
type Environment struct {
	Config *config.Config

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	// Log is where the interactive editor sends its log, since it
	// cannot share stderr with the terminal UI.
	Log cli.LoggerOptions

	// Connector overrides how chains are made. Nil connects a fresh
	// chain per command using Config.
	Connector transport.Connector
}

// Root builds and returns the complete hopedit command tree.
func Root(env *Environment) *cli.Command {
	if env.Config == nil {
		env.Config = config.Default()
	}
	return &cli.Command{
		Name:       "hopedit",
		HelpOutput: env.Stderr,
		Description: `hopedit: edit files at the end of a chain of hops.

An address names a file and the hops that reach it, separated by '|':

  /etc/hosts                          a local file
  sudo:/etc/shadow                    as root on this machine
  ssh:alice@db:2222|sudo:/etc/fstab   as root on db, via alice
  ssh:bastion|docker:web:/app/.env    inside a container behind a bastion

Options that apply to every command (--config, --log-level, --log-file)
go before the command name.`,
		Subcommands: []*cli.Command{
			parseCommand(env),
			catCommand(env),
			writeCommand(env),
			lsCommand(env),
			statCommand(env),
			execCommand(env),
			detectCommand(env),
			hexCommand(env),
			nbtCommand(env),
			editCommand(env),
			{
				Name:    "version",
				Summary: "Print version information",
				Run: func(_ context.Context, _ []string, _ *slog.Logger) error {
					_, err := fmt.Fprintln(env.Stdout, version.Full())
					return err
				},
			},
		},
		Examples: []cli.Example{
			{
				Description: "Print a root-owned file on a remote host",
				Command:     "hopedit cat 'ssh:db|sudo:/etc/fstab'",
			},
			{
				Description: "Open a Minecraft level in the tag tree editor",
				Command:     "hopedit edit ssh:mc@games:/srv/world/level.dat",
			},
		},
	}
}

// target parses the single address argument of a command.
func target(args []string, usage string) (address.Target, error) {
	if len(args) != 1 {
		return address.Target{}, cli.Validation("expected exactly one address").
			WithHint("Usage: " + usage)
	}
	parsed, err := address.Parse(args[0])
	if err != nil {
		return address.Target{}, classify(err)
	}
	return parsed, nil
}

// session connects to the hops of t. The caller closes it.
func (env *Environment) session(ctx context.Context, t address.Target, logger *slog.Logger) (*transport.Session, error) {
	connector := env.Connector
	if connector == nil {
		connector = transport.Direct{Options: transport.OptionsFromConfig(env.Config, logger)}
	}
	logger.Debug("connecting", "address", t.String(), "hops", len(t.Hops))
	session, err := transport.OpenSession(ctx, connector, t.Hops)
	if err != nil {
		return nil, classify(err)
	}
	return session, nil
}

// readTarget reads the file t names.
func (env *Environment) readTarget(ctx context.Context, t address.Target, logger *slog.Logger) ([]byte, error) {
	if t.Path == "" {
		return nil, cli.Validation("address %q has no path", t.String())
	}
	session, err := env.session(ctx, t, logger)
	if err != nil {
		return nil, err
	}
	defer session.Close()
	data, err := session.ReadFile(ctx, t.Path)
	if err != nil {
		return nil, classify(err)
	}
	return data, nil
}
