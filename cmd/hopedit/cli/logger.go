// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/term"
)

// LoggerOptions selects the command logger's level and destination.
type LoggerOptions struct {
	// Level is debug, info, warn, or error. Empty means info.
	Level string

	// File, when set, receives log output (appended) instead of stderr.
	File string

	// Discard drops all output unless File is set. The interactive
	// viewer sets it because stderr belongs to the terminal UI.
	Discard bool
}

// ParseLevel maps a level name to a slog.Level.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(name) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("unknown log level %q (want debug, info, warn, or error)", name)
}

// NewCommandLogger creates a structured logger for CLI command operations.
// When the destination is a terminal it uses slog.TextHandler for
// human-readable output; when it is a file or a pipe it uses
// slog.JSONHandler for machine-parseable output. The returned close
// function releases the log file, if one was opened.
//
// Callers scope the logger with command-specific context via With():
//
//	logger = logger.With("address", target.String())
func NewCommandLogger(options LoggerOptions) (*slog.Logger, func() error, error) {
	level, err := ParseLevel(options.Level)
	if err != nil {
		return nil, nil, err
	}

	var output io.Writer = os.Stderr
	closer := func() error { return nil }
	switch {
	case options.File != "":
		file, err := os.OpenFile(options.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return nil, nil, fmt.Errorf("opening log file: %w", err)
		}
		output = file
		closer = file.Close
	case options.Discard:
		return slog.New(slog.DiscardHandler), closer, nil
	}

	return slog.New(newHandler(output, level)), closer, nil
}

func newHandler(output io.Writer, level slog.Level) slog.Handler {
	handlerOptions := &slog.HandlerOptions{Level: level}
	if file, ok := output.(*os.File); ok && term.IsTerminal(int(file.Fd())) {
		return slog.NewTextHandler(output, handlerOptions)
	}
	return slog.NewJSONHandler(output, handlerOptions)
}
