// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package framing detects and applies the outer compression wrapped
// around binary document payloads.
//
// Tag-tree files are usually stored gzip-compressed (level.dat,
// player data), sometimes zlib-compressed (region chunks), and in
// newer tooling zstd- or LZ4-framed. [Detect] identifies the framing
// by magic bytes, [Decode] strips it, and [Encode] re-applies it. The
// [Frame] returned by Decode carries the header metadata (gzip name,
// comment, mtime, OS byte, and an approximation of the compression
// level) so that re-encoding an edited payload produces a file that
// looks like its origin. Exact byte identity for an unedited payload
// is the caller's job: keep the original bytes and reuse them.
//
// Decompression is bounded by a caller-supplied limit so a small
// hostile file cannot expand into gigabytes of memory.
package framing
