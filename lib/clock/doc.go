// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock abstracts the wall clock so that timeouts can be
// exercised deterministically in tests.
//
// Production code injects [Real]. Tests inject [Fake], advance it
// explicitly with [FakeClock.Advance], and use
// [FakeClock.WaitForTimers] to avoid racing the goroutine that arms a
// timer. The transport layer uses a Clock for command timeouts and
// teardown grace periods; nothing else in hopedit reads the time
// package directly for scheduling.
package clock
