// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package content turns file bytes into editable documents and back.
//
// A [Codec] decodes bytes into a [Document] for one [Kind]:
//
//   - [Text]: lines of Unicode scalar values, each remembering its own
//     terminator (\n, \r\n, or \r), so mixed line endings, a missing
//     final newline, and a byte order mark all survive editing.
//     Invalid UTF-8 is a decode error; such files belong in Hex.
//   - [Hex]: the raw bytes with a cursor. Decoding always succeeds.
//   - [TagTree]: an NBT tag tree inside optional gzip, zlib, zstd, or
//     LZ4 framing (see lib/nbt and lib/framing).
//
// Every document satisfies encode(decode(b)) == b for any b that
// decoding accepted. Encode is total: edits are validated before they
// are applied, so a document can always be serialized. Edits are plain
// values ([TextInsert], [HexSet], [TagInsert], ...) applied with
// [Document.Apply]; an edit that would break the mode's structure
// fails with an [*EditError] and leaves the document untouched.
//
// [Detect] picks a kind from bytes and a filename hint without any
// I/O, so pickers can call it on a preview.
package content
