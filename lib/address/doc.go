// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package address parses hopedit target strings into hop chains.
//
// A target names a file (or directory) reachable through an ordered
// chain of hops, written left to right and separated by '|':
//
//	sudo:/etc/fstab
//	ssh:user1@host1|ssh:user2@host2:file
//	ssh:admin@[2001:db8::1]:2222|docker:web:/etc/nginx/nginx.conf
//	ssh:build@ci|sudo:askpw:/root/.profile
//
// Each hop is "scheme:authority", where scheme is one of local, sudo,
// ssh, docker, or podman. The final hop may carry a trailing ":path"
// naming the resource at the last hop's filesystem. An input with no
// '|' and no known scheme prefix is a plain local path.
//
// After an ssh authority, a purely numeric field is always the port
// and a field reading "askpw" is always the option, so a path made of
// digits needs an explicit port in front of it ("ssh:host:22:1234").
//
// Parsing is total and performs no I/O: every input produces either a
// [Target] or an error matching [ErrEmptyChain] or [ErrMalformedHop].
// Resolution (actually reaching the hosts) happens when the transport
// package connects the chain.
//
// Host, user, and container names are validated against conservative
// character sets. This is not what keeps the tunnel safe; the
// transport quotes every string it sends. It rejects typos early and
// keeps names that no real system uses out of log lines and prompts.
package address
