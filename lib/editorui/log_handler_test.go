// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package editorui

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/bureau-foundation/hopedit/lib/editor"
)

func TestLogHandlerDeliversRecords(t *testing.T) {
	var received []logRecordMsg
	handler := NewLogHandler(slog.LevelWarn)
	logger := slog.New(handler)

	logger.Warn("dropped before the program is set")
	handler.setSender(func(msg tea.Msg) { received = append(received, msg.(logRecordMsg)) })

	logger.Info("below the level")
	logger.With("hop", "sudo").Warn("hop refused", "exit", 46)
	logger.WithGroup("save").Error("write failed", "path", "/etc/hosts")

	if len(received) != 2 {
		t.Fatalf("received %d records, want 2: %+v", len(received), received)
	}
	if got := received[0].Summary; got != "hop refused (hop=sudo, exit=46)" {
		t.Errorf("summary = %q", got)
	}
	if received[0].Level != slog.LevelWarn {
		t.Errorf("level = %v", received[0].Level)
	}
	if got := received[1].Summary; got != "write failed (save.path=/etc/hosts)" {
		t.Errorf("grouped summary = %q", got)
	}
}

func TestLogRecordShowsInBottomLine(t *testing.T) {
	model := newModel(t, "", editor.OpenOptions{})
	model = update(t, model, logRecordMsg{Summary: "connection lost", Level: slog.LevelError})
	if !strings.Contains(model.bottomLine(), "connection lost") {
		t.Errorf("bottom line = %q", model.bottomLine())
	}
	model = update(t, model, messageFadeMsg{sequence: model.message.sequence})
	if model.message.text != "" {
		t.Error("fade did not clear the message")
	}
}

func TestFanoutHandler(t *testing.T) {
	var debug, warn bytes.Buffer
	logger := slog.New(FanoutHandler{
		slog.NewJSONHandler(&debug, &slog.HandlerOptions{Level: slog.LevelDebug}),
		slog.NewJSONHandler(&warn, &slog.HandlerOptions{Level: slog.LevelWarn}),
	}).With("command", "edit")

	if !logger.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("fanout is not enabled for a level one handler accepts")
	}
	logger.Debug("detail")
	logger.Warn("problem")

	if lines := strings.Count(debug.String(), "\n"); lines != 2 {
		t.Errorf("debug handler got %d records, want 2", lines)
	}
	var record map[string]any
	if err := json.Unmarshal(warn.Bytes(), &record); err != nil {
		t.Fatalf("warn handler output %q: %v", warn.String(), err)
	}
	if record["msg"] != "problem" || record["command"] != "edit" {
		t.Errorf("warn record = %v", record)
	}
}
