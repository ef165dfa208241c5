// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"errors"
	"log/slog"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/bureau-foundation/hopedit/cmd/hopedit/cli"
	"github.com/bureau-foundation/hopedit/lib/address"
	"github.com/bureau-foundation/hopedit/lib/content"
	"github.com/bureau-foundation/hopedit/lib/editor"
	"github.com/bureau-foundation/hopedit/lib/editorui"
)

type editParams struct {
	Mode string `flag:"mode,m" desc:"open in this mode: auto, text, hex, or tagtree (default: editor.default_mode from the configuration)"`
	Hex  bool   `flag:"hex" desc:"shorthand for --mode hex"`
}

func editCommand(env *Environment) *cli.Command {
	var params editParams
	return &cli.Command{
		Name:    "edit",
		Aliases: []string{"e", "open"},
		Summary: "Edit a file in the terminal UI",
		Description: `Open the interactive editor on an address, or on an empty scratch
buffer when none is given. More files can be opened from inside with
":e ADDRESS"; files behind the same hops share one chain.

Text files open with syntax highlighting, binary files as a hex grid,
and NBT files as a tag tree. Press F1 inside the editor for keys and
commands.

The terminal belongs to the editor while it runs, so warnings show in
its bottom line. Use --log-file to keep a full log.`,
		Usage: "hopedit edit [address] [--mode MODE | --hex]",
		Examples: []cli.Example{
			{
				Description: "Edit a root-owned file on a remote host",
				Command:     "hopedit edit 'ssh:db|sudo:/etc/fstab'",
			},
			{
				Description: "Patch a binary in hex mode",
				Command:     "hopedit edit --hex ./firmware.bin",
			},
		},
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("edit", &params)
		},
		Run: func(ctx context.Context, args []string, _ *slog.Logger) error {
			if len(args) > 1 {
				return cli.Validation("expected at most one address, got %d", len(args)).
					WithHint("Open more files from inside the editor with :e ADDRESS.")
			}
			var addr string
			if len(args) == 1 {
				addr = args[0]
				if _, err := address.Parse(addr); err != nil {
					return classify(err)
				}
			}
			options, err := params.openOptions()
			if err != nil {
				return err
			}
			if !isTerminal(os.Stdin) || !isTerminal(os.Stdout) {
				return cli.Validation("edit needs an interactive terminal").
					WithHint("In scripts, use \"hopedit cat\" and \"hopedit write\".")
			}
			return env.runEditor(ctx, addr, options)
		},
	}
}

func (params editParams) openOptions() (editor.OpenOptions, error) {
	mode := params.Mode
	if params.Hex {
		if mode != "" && mode != "hex" {
			return editor.OpenOptions{}, cli.Validation("--hex conflicts with --mode %s", mode)
		}
		mode = "hex"
	}
	if mode == "" || mode == "auto" {
		return editor.OpenOptions{}, nil
	}
	kind, err := content.ParseKind(mode)
	if err != nil {
		return editor.OpenOptions{}, cli.Validation("%v", err)
	}
	return editor.OpenOptions{Kind: &kind}, nil
}

// runEditor runs the terminal UI until the user quits. Log records at
// warn and above go to the UI's bottom line; everything at the
// configured level also goes to --log-file when one is given.
func (env *Environment) runEditor(ctx context.Context, addr string, options editor.OpenOptions) error {
	fileOptions := env.Log
	fileOptions.Discard = true
	fileLogger, closeLog, err := cli.NewCommandLogger(fileOptions)
	if err != nil {
		return cli.Validation("%v", err)
	}
	defer closeLog()

	uiHandler := editorui.NewLogHandler(slog.LevelWarn)
	logger := slog.New(editorui.FanoutHandler{uiHandler, fileLogger.Handler()}).With("command", "edit")

	buffers := editor.New(editor.Options{Config: env.Config, Logger: logger, Connector: env.Connector})
	defer func() {
		if err := buffers.Shutdown(); err != nil {
			fileLogger.Warn("shutting down editor", "error", err)
		}
	}()

	model := editorui.NewModel(ctx, editorui.Options{
		Editor:   buffers,
		Logger:   logger,
		Address:  addr,
		Open:     options,
		HexWidth: env.Config.Editor.HexWidth,
	})
	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	uiHandler.SetProgram(program)

	final, err := program.Run()
	if err != nil {
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return ctx.Err()
		}
		return cli.Internal("terminal UI: %w", err)
	}
	if final, ok := final.(editorui.Model); ok && final.Err() != nil {
		return classify(final.Err())
	}
	return nil
}

func isTerminal(file *os.File) bool {
	return term.IsTerminal(int(file.Fd()))
}
