// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package transport reaches files through a chain of hops and does
// I/O on them.
//
// A chain is built from an [address.Target]'s hops. A chain with only
// local hops is a [*Local]: plain system calls, no processes. Any other
// chain is a [*Chain]: the first non-local hop is started as a child
// process (sudo -n sh, ssh -T host sh, docker exec -i NAME sh) or, for
// ssh with the native client configured, dialed in-process. Every
// later hop is started by writing its command line into the previous
// hop's shell, so its stdio rides on the parent's.
//
// All I/O on a Chain is expressed as POSIX sh scripts written to the
// innermost shell. Requests and responses are framed with per-request
// nonce markers and every byte of user data travels base64 encoded,
// so neither file contents nor file names can be mistaken for
// protocol. Exactly one request is in flight per chain; callers are
// served in submission order.
//
// [Session] wraps a [Transport] and turns its failures into
// [*IOError] values with a stable [IOErrorKind]. [Pool] shares
// chains between sessions that address the same hops.
package transport
