// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// hopedit edits files at the end of a chain of hops: local, sudo,
// ssh, and container shells nested in any order.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/hopedit/cmd/hopedit/cli"
	"github.com/bureau-foundation/hopedit/cmd/hopedit/commands"
	"github.com/bureau-foundation/hopedit/lib/config"
)

// globalParams are the options accepted before the command name.
type globalParams struct {
	Config   string `flag:"config" desc:"configuration file (default: $HOPEDIT_CONFIG, else built-in defaults)"`
	LogLevel string `flag:"log-level" desc:"debug, info, warn, or error (default: log.level from the configuration)"`
	LogFile  string `flag:"log-file" desc:"append log records to this file instead of stderr"`
}

func main() {
	if err := run(); err != nil {
		// Commands that mirror a remote exit status (exec) return an
		// error carrying the code and have already printed their output.
		if coder, ok := err.(interface{ ExitCode() int }); ok {
			os.Exit(coder.ExitCode())
		}
		if errors.Is(err, context.Canceled) {
			os.Exit(130)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var globals globalParams
	flagSet := cli.FlagsFromParams("hopedit", &globals)
	flagSet.SetInterspersed(false)
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			printHelp(flagSet)
			return nil
		}
		return cli.Validation("%v", err)
	}

	cfg, err := loadConfig(globals.Config)
	if err != nil {
		return cli.Validation("%v", err).WithHint("Check the file named by --config or $" + config.EnvironmentVariable + ".")
	}
	logOptions := cli.LoggerOptions{Level: cfg.Log.Level, File: cfg.Log.File}
	if globals.LogLevel != "" {
		logOptions.Level = globals.LogLevel
	}
	if globals.LogFile != "" {
		logOptions.File = globals.LogFile
	}

	logger, closeLog, err := cli.NewCommandLogger(logOptions)
	if err != nil {
		return cli.Validation("%v", err)
	}
	defer closeLog()

	root := commands.Root(&commands.Environment{
		Config: cfg,
		Stdin:  os.Stdin,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
		Log:    logOptions,
	})
	return root.Execute(ctx, flagSet.Args(), logger)
}

func loadConfig(path string) (*config.Config, error) {
	var cfg *config.Config
	var err error
	if path != "" {
		cfg, err = config.LoadFile(path)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func printHelp(flagSet *pflag.FlagSet) {
	root := commands.Root(&commands.Environment{Config: config.Default(), Stdout: os.Stdout})
	root.PrintHelp(os.Stdout)
	fmt.Fprintf(os.Stdout, "\nGlobal options:\n%s", flagSet.FlagUsages())
}
