// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package nbt reads and writes Named Binary Tag streams, the nested
// tag tree format used by Minecraft Java Edition and its tooling.
//
// A stream is one named root tag. Every tag is a one-byte type id
// followed by its payload, big-endian throughout:
//
//	0  End        marks the end of a compound
//	1  Byte       int8
//	2  Short      int16
//	3  Int        int32
//	4  Long       int64
//	5  Float      IEEE 754 binary32
//	6  Double     IEEE 754 binary64
//	7  ByteArray  int32 length, bytes
//	8  String     uint16 length, modified UTF-8
//	9  List       element type id, int32 count, unnamed payloads
//	10 Compound   named tags until End
//	11 IntArray   int32 length, int32s
//	12 LongArray  int32 length, int64s
//
// [Decode] is strict so that [Encode] can reproduce its input byte for
// byte: it rejects truncation, unknown type ids, negative lengths,
// nesting deeper than [MaxDepth], trailing bytes, and strings that are
// not canonical modified UTF-8. Compound entries keep their stream
// order, duplicates included. Lists are homogeneous by construction:
// the edit helpers ([Set], [Insert]) refuse an element whose type
// differs from the list's element type, and Encode refuses a
// hand-built list that mixes types.
//
// Outer compression is not this package's concern; see
// lib/framing.
package nbt
