// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"io"
	"log/slog"

	"github.com/alessio/shellescape"
	"github.com/spf13/pflag"

	"github.com/bureau-foundation/hopedit/cmd/hopedit/cli"
	"github.com/bureau-foundation/hopedit/lib/address"
	"github.com/bureau-foundation/hopedit/lib/transport"
)

type execParams struct {
	Stdin bool `flag:"stdin" desc:"pass standard input to the command"`
}

func execCommand(env *Environment) *cli.Command {
	var params execParams
	return &cli.Command{
		Name:    "exec",
		Summary: "Run a command at the last hop",
		Description: `Run a command at the last hop of an address and forward its output.
The address's path, if any, is the command's working directory. The
command's exit status becomes hopedit's.

Arguments are quoted for the remote shell, so no remote expansion
happens. Use 'sh -c' for pipelines.`,
		Usage: "hopedit exec [--stdin] <address> -- <command> [args...]",
		Examples: []cli.Example{
			{
				Description: "Check disk usage as root on a remote host",
				Command:     "hopedit exec 'ssh:db|sudo:/var/lib' -- du -sh postgresql",
			},
			{
				Description: "Run a pipeline inside a container",
				Command:     "hopedit exec docker:web -- sh -c 'ps aux | grep nginx'",
			},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := cli.FlagsFromParams("exec", &params)
			// Flags after the address belong to the remote command.
			flagSet.SetInterspersed(false)
			return flagSet
		},
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			usage := "hopedit exec <address> -- <command> [args...]"
			if len(args) < 2 {
				return cli.Validation("expected an address and a command").WithHint("Usage: " + usage)
			}
			t, err := target(args[:1], usage)
			if err != nil {
				return err
			}
			argv := args[1:]
			if argv[0] == "--" {
				argv = argv[1:]
			}
			if len(argv) == 0 {
				return cli.Validation("no command given").WithHint("Usage: " + usage)
			}

			command := transport.Command{Script: execScript(t, argv)}
			if params.Stdin {
				command.Stdin, err = io.ReadAll(env.Stdin)
				if err != nil {
					return cli.Internal("reading standard input: %w", err)
				}
			}

			session, err := env.session(ctx, t, logger)
			if err != nil {
				return err
			}
			defer session.Close()
			output, err := session.Execute(ctx, command)
			if err != nil {
				return classify(err)
			}
			env.Stdout.Write(output.Stdout)
			env.Stderr.Write(output.Stderr)
			logger.Debug("command finished", "address", t.String(), "exit_code", output.ExitCode)
			if output.ExitCode != 0 {
				return &cli.ExitError{Code: output.ExitCode}
			}
			return nil
		},
	}
}

// execScript quotes argv for sh and changes into the target's path first.
func execScript(t address.Target, argv []string) string {
	script := shellescape.QuoteCommand(argv)
	if t.Path != "" {
		script = "cd -- " + shellescape.Quote(t.Path) + " && " + script
	}
	return script
}
