// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package editorui

import (
	"context"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// logRecordMsg delivers a slog record to the model for display in the
// bottom line.
type logRecordMsg struct {
	Summary string
	Level   slog.Level
}

// messageFadeMsg clears the bottom-line message if it is still the
// one with the given sequence number.
type messageFadeMsg struct {
	sequence int
}

// messageFadeDelay is how long a message stays in the bottom line
// before the key help comes back.
const messageFadeDelay = 5 * time.Second

// LogHandler is a slog.Handler that routes records into the running
// bubbletea program, where they show in the bottom line. The terminal
// belongs to the program, so nothing may be written to stderr while it
// runs.
//
// Records arriving before SetProgram are dropped. Handlers derived via
// WithAttrs and WithGroup share the destination, so one SetProgram
// call reaches all of them.
type LogHandler struct {
	level  slog.Level
	send   *atomic.Pointer[func(tea.Msg)]
	attrs  []slog.Attr
	groups []string
}

var _ slog.Handler = (*LogHandler)(nil)

// NewLogHandler returns a handler for records at or above level.
func NewLogHandler(level slog.Level) *LogHandler {
	return &LogHandler{
		level: level,
		send:  &atomic.Pointer[func(tea.Msg)]{},
	}
}

// SetProgram starts delivery to program. Safe to call from any
// goroutine.
func (handler *LogHandler) SetProgram(program *tea.Program) {
	handler.setSender(program.Send)
}

func (handler *LogHandler) setSender(send func(tea.Msg)) {
	handler.send.Store(&send)
}

func (handler *LogHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= handler.level
}

// Handle formats the record as "message (key=value, ...)" and sends
// it to the program.
func (handler *LogHandler) Handle(_ context.Context, record slog.Record) error {
	send := handler.send.Load()
	if send == nil {
		return nil
	}

	prefix := strings.Join(handler.groups, ".")
	if prefix != "" {
		prefix += "."
	}
	var parts []string
	for _, attr := range handler.attrs {
		parts = append(parts, attr.Key+"="+attr.Value.String())
	}
	record.Attrs(func(attr slog.Attr) bool {
		parts = append(parts, prefix+attr.Key+"="+attr.Value.String())
		return true
	})

	summary := record.Message
	if len(parts) > 0 {
		summary += " (" + strings.Join(parts, ", ") + ")"
	}
	(*send)(logRecordMsg{Summary: summary, Level: record.Level})
	return nil
}

func (handler *LogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	prefix := strings.Join(handler.groups, ".")
	derived := &LogHandler{
		level:  handler.level,
		send:   handler.send,
		attrs:  append([]slog.Attr(nil), handler.attrs...),
		groups: handler.groups,
	}
	for _, attr := range attrs {
		if prefix != "" {
			attr.Key = prefix + "." + attr.Key
		}
		derived.attrs = append(derived.attrs, attr)
	}
	return derived
}

func (handler *LogHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return handler
	}
	return &LogHandler{
		level:  handler.level,
		send:   handler.send,
		attrs:  handler.attrs,
		groups: append(append([]string(nil), handler.groups...), name),
	}
}

// FanoutHandler sends each record to every handler that is enabled
// for its level.
type FanoutHandler []slog.Handler

var _ slog.Handler = FanoutHandler(nil)

func (handlers FanoutHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range handlers {
		if handler.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (handlers FanoutHandler) Handle(ctx context.Context, record slog.Record) error {
	for _, handler := range handlers {
		if handler.Enabled(ctx, record.Level) {
			if err := handler.Handle(ctx, record.Clone()); err != nil {
				return err
			}
		}
	}
	return nil
}

func (handlers FanoutHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	derived := make(FanoutHandler, len(handlers))
	for index, handler := range handlers {
		derived[index] = handler.WithAttrs(attrs)
	}
	return derived
}

func (handlers FanoutHandler) WithGroup(name string) slog.Handler {
	derived := make(FanoutHandler, len(handlers))
	for index, handler := range handlers {
		derived[index] = handler.WithGroup(name)
	}
	return derived
}
