// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec holds hopedit's single CBOR configuration.
//
// CBOR appears in two places. The transport pool derives its
// connection keys from the deterministic encoding of a hop sequence,
// so two equal chains always map to the same pooled connection. The
// nbt command exports tag trees as CBOR for other tools to consume.
// Both need Core Deterministic Encoding (RFC 8949 §4.2): sorted map
// keys, smallest integer encoding, no indefinite-length items.
//
//	key, err := codec.Marshal(hops)
//	err = codec.Unmarshal(data, &value)
package codec
