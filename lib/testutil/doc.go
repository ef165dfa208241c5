// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil holds helpers shared by hopedit's package tests:
// bounded channel waits and stand-in hop programs.
//
// Tunneled transport tests never reach a real remote host. They run
// /bin/sh locally and point the ssh, sudo, and container program
// settings at scripts created by [FakeProgram], which behave like the
// real tools from the chain's point of view: they either fail with a
// recognizable message on stderr or exec a shell.
package testutil
