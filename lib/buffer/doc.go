// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package buffer holds one open file: its decoded document, where it
// lives, and whether the copy on disk matches.
//
// A [Buffer] moves between four states:
//
//	Clean ──edit──▶ Dirty ──save──▶ Saving ──ok──▶ Clean
//	                  ▲                │
//	                  └────failed──────┤
//	                                   └─cancelled mid-write─▶ Unverified
//
// Cleanliness is decided by content, not history: after every edit the
// document is encoded and its BLAKE3 digest compared with the digest
// of the bytes last known to be on disk. An edit followed by its
// inverse therefore leaves a buffer Clean.
//
// Unverified means a write was sent and its caller stopped waiting, so
// the file may hold either version. Edits are refused until [Buffer.Verify]
// reads the file back and settles the state.
//
// Saves and verifications are split into a Start step, an I/O step
// that may run on any goroutine, and a Finish step. The interactive
// loop runs only Start and Finish itself, so buffer state never
// changes underneath it.
package buffer
