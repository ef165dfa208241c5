// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"text/tabwriter"
	"time"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/hopedit/cmd/hopedit/cli"
)

func catCommand(env *Environment) *cli.Command {
	return &cli.Command{
		Name:    "cat",
		Summary: "Print a file",
		Usage:   "hopedit cat <address>",
		Examples: []cli.Example{
			{Command: "hopedit cat 'ssh:db|sudo:/etc/postgresql/16/main/pg_hba.conf'"},
		},
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			t, err := target(args, "hopedit cat <address>")
			if err != nil {
				return err
			}
			data, err := env.readTarget(ctx, t, logger)
			if err != nil {
				return err
			}
			_, err = env.Stdout.Write(data)
			return err
		},
	}
}

func writeCommand(env *Environment) *cli.Command {
	return &cli.Command{
		Name:    "write",
		Summary: "Replace a file with standard input",
		Description: `Read standard input to the end and replace the file with it.

The file is replaced atomically where its directory allows: the data is
staged next to it and renamed over it, so an interrupted write leaves
the old content. A file that does not exist is created. The mode of an
existing file is kept.`,
		Usage: "hopedit write <address> < data",
		Examples: []cli.Example{
			{Command: "envsubst < motd.in | hopedit write 'ssh:web|sudo:/etc/motd'"},
		},
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			t, err := target(args, "hopedit write <address> < data")
			if err != nil {
				return err
			}
			if t.Path == "" {
				return cli.Validation("address %q has no path", t.String())
			}
			data, err := io.ReadAll(env.Stdin)
			if err != nil {
				return cli.Internal("reading standard input: %w", err)
			}
			session, err := env.session(ctx, t, logger)
			if err != nil {
				return err
			}
			defer session.Close()
			if err := session.WriteFile(ctx, t.Path, data); err != nil {
				return classify(err)
			}
			logger.Info("wrote file", "address", t.String(), "bytes", len(data))
			return nil
		},
	}
}

type lsParams struct {
	cli.JSONOutput
}

type entryView struct {
	Name  string `json:"name"`
	IsDir bool   `json:"is_dir"`
	Size  *int64 `json:"size"`
}

func lsCommand(env *Environment) *cli.Command {
	var params lsParams
	return &cli.Command{
		Name:    "ls",
		Aliases: []string{"list"},
		Summary: "List a directory",
		Description: `List the entries of a directory at the last hop, sorted by name.
Directories are marked with a trailing '/'. An address without a path
lists the last hop's working directory.`,
		Usage: "hopedit ls <address> [--json]",
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("ls", &params)
		},
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			t, err := target(args, "hopedit ls <address>")
			if err != nil {
				return err
			}
			session, err := env.session(ctx, t, logger)
			if err != nil {
				return err
			}
			defer session.Close()
			path := t.Path
			if path == "" {
				path = "."
			}
			entries, err := session.ListDir(ctx, path)
			if err != nil {
				return classify(err)
			}

			views := make([]entryView, len(entries))
			for i, entry := range entries {
				views[i] = entryView{Name: entry.Name, IsDir: entry.IsDir, Size: entry.Size}
			}
			if done, err := params.EmitJSON(env.Stdout, views); done {
				return err
			}

			tw := tabwriter.NewWriter(env.Stdout, 2, 0, 2, ' ', tabwriter.AlignRight)
			for _, entry := range entries {
				name := entry.Name
				if entry.IsDir {
					name += "/"
				}
				size := "-"
				if entry.Size != nil {
					size = fmt.Sprint(*entry.Size)
				}
				fmt.Fprintf(tw, "%s\t  %s\t\n", size, name)
			}
			return tw.Flush()
		},
	}
}

type statParams struct {
	cli.JSONOutput
}

type statView struct {
	Name     string    `json:"name"`
	Size     int64     `json:"size"`
	Mode     string    `json:"mode"`
	ModTime  time.Time `json:"mod_time"`
	IsDir    bool      `json:"is_dir"`
	Writable bool      `json:"writable"`
}

func statCommand(env *Environment) *cli.Command {
	var params statParams
	return &cli.Command{
		Name:    "stat",
		Summary: "Show a file's size, mode, and modification time",
		Usage:   "hopedit stat <address> [--json]",
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("stat", &params)
		},
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			t, err := target(args, "hopedit stat <address>")
			if err != nil {
				return err
			}
			session, err := env.session(ctx, t, logger)
			if err != nil {
				return err
			}
			defer session.Close()
			path := t.Path
			if path == "" {
				path = "."
			}
			info, err := session.Stat(ctx, path)
			if err != nil {
				return classify(err)
			}

			view := statView{
				Name:     info.Name,
				Size:     info.Size,
				Mode:     info.Mode.String(),
				ModTime:  info.ModTime,
				IsDir:    info.IsDir,
				Writable: info.Writable(),
			}
			if done, err := params.EmitJSON(env.Stdout, view); done {
				return err
			}
			tw := tabwriter.NewWriter(env.Stdout, 2, 0, 2, ' ', 0)
			fmt.Fprintf(tw, "name\t%s\n", view.Name)
			fmt.Fprintf(tw, "size\t%d\n", view.Size)
			fmt.Fprintf(tw, "mode\t%s\n", view.Mode)
			fmt.Fprintf(tw, "modified\t%s\n", view.ModTime.Format(time.RFC3339))
			return tw.Flush()
		},
	}
}
