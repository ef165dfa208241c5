// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package address

import "strings"

// Target is a parsed address: the hops to traverse and the resource
// path at the last hop. Path is interpreted by the filesystem of the
// last hop; an empty Path means the last hop's working directory.
type Target struct {
	Hops []Hop
	Path string
}

// Last returns the final hop. Targets produced by Parse always have at
// least one hop.
func (t Target) Last() Hop {
	return t.Hops[len(t.Hops)-1]
}

// IsLocal reports whether the target needs no transport at all.
func (t Target) IsLocal() bool {
	for _, hop := range t.Hops {
		if hop.Kind != KindLocal {
			return false
		}
	}
	return true
}

// WithPath returns a copy of t addressing path at the same hops.
func (t Target) WithPath(path string) Target {
	hops := make([]Hop, len(t.Hops))
	copy(hops, t.Hops)
	return Target{Hops: hops, Path: path}
}

// String renders the canonical form of t. Parse(t.String()) yields a
// Target equal to t.
func (t Target) String() string {
	if len(t.Hops) == 1 && t.Hops[0].Kind == KindLocal && isBareLocalPath(t.Path) {
		return t.Path
	}
	segments := make([]string, len(t.Hops))
	for i, hop := range t.Hops {
		path := ""
		if i == len(t.Hops)-1 {
			path = t.Path
		}
		segments[i] = hop.segment(path)
	}
	return strings.Join(segments, "|")
}

// isBareLocalPath reports whether path would parse back as a plain
// local path when written without a scheme.
func isBareLocalPath(path string) bool {
	if path == "" || strings.TrimSpace(path) != path || strings.Contains(path, "|") {
		return false
	}
	scheme, _, found := strings.Cut(path, ":")
	if !found {
		return true
	}
	_, known := schemes[scheme]
	return !known
}
