// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package editor owns the open buffers of one hopedit process and the
// connection pool they share.
//
// Buffers are addressed by [Handle]. Every operation has a blocking
// form (Open, Save, Verify) for scripts and tests, and a form for the
// interactive loop (OpenCmd, SaveCmd, VerifyCmd) that returns a
// bubbletea command. The command does the I/O on its own goroutine and
// delivers a message; the loop hands that message to [Editor.Apply],
// which is the only place its result touches editor or buffer state.
package editor
