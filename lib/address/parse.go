// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package address

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ErrEmptyChain is returned for an empty or whitespace-only address.
var ErrEmptyChain = errors.New("empty address")

// ErrMalformedHop matches every *MalformedHopError.
var ErrMalformedHop = errors.New("malformed hop")

// MalformedHopError reports the segment that could not be parsed.
type MalformedHopError struct {
	// Index is the zero-based position of the segment.
	Index int

	// Segment is the offending segment as written.
	Segment string

	Reason string
}

func (e *MalformedHopError) Error() string {
	return fmt.Sprintf("malformed hop %d %q: %s", e.Index+1, e.Segment, e.Reason)
}

func (e *MalformedHopError) Unwrap() error { return ErrMalformedHop }

var schemes = map[string]Kind{
	"local":      KindLocal,
	"sudo":       KindSudo,
	"ssh":        KindSSH,
	EngineDocker: KindContainer,
	EnginePodman: KindContainer,
}

var (
	userPattern      = regexp.MustCompile(`^[A-Za-z0-9_][A-Za-z0-9_.-]*\$?$`)
	hostPattern      = regexp.MustCompile(`^[A-Za-z0-9_]([A-Za-z0-9_.-]*[A-Za-z0-9_])?$`)
	ipv6Pattern      = regexp.MustCompile(`^[0-9A-Fa-f:.]+(%[A-Za-z0-9_.-]+)?$`)
	containerPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]*$`)
)

// Parse turns an address into a Target.
func Parse(input string) (Target, error) {
	if strings.TrimSpace(input) == "" {
		return Target{}, ErrEmptyChain
	}

	segments := strings.Split(input, "|")
	if len(segments) == 1 {
		scheme, _, found := strings.Cut(input, ":")
		if _, known := schemes[scheme]; !found || !known {
			return Target{Hops: []Hop{Local()}, Path: input}, nil
		}
	}

	target := Target{Hops: make([]Hop, 0, len(segments))}
	for i, segment := range segments {
		last := i == len(segments)-1
		hop, path, err := parseSegment(i, segment)
		if err != nil {
			return Target{}, err
		}
		if path != "" && !last {
			return Target{}, &MalformedHopError{Index: i, Segment: segment, Reason: "only the last hop may name a path"}
		}
		if hop.Kind == KindLocal && i != 0 {
			return Target{}, &MalformedHopError{Index: i, Segment: segment, Reason: "local is only valid as the first hop"}
		}
		target.Hops = append(target.Hops, hop)
		if last {
			target.Path = path
		}
	}
	return target, nil
}

func parseSegment(index int, segment string) (Hop, string, error) {
	malformed := func(format string, args ...any) (Hop, string, error) {
		return Hop{}, "", &MalformedHopError{Index: index, Segment: segment, Reason: fmt.Sprintf(format, args...)}
	}

	scheme, rest, _ := strings.Cut(segment, ":")
	kind, known := schemes[scheme]
	if !known {
		if scheme == "" {
			return malformed("missing scheme")
		}
		return malformed("unknown scheme %q (want local, sudo, ssh, docker, or podman)", scheme)
	}

	switch kind {
	case KindLocal:
		return Local(), rest, nil

	case KindSudo:
		hop := Sudo()
		if rest == "askpw" || strings.HasPrefix(rest, "askpw:") {
			hop.AskPassword = true
			rest = strings.TrimPrefix(strings.TrimPrefix(rest, "askpw"), ":")
		} else {
			// sudo has an empty authority, so "sudo::/p" means the same
			// as "sudo:/p".
			rest = strings.TrimPrefix(rest, ":")
		}
		return hop, rest, nil

	case KindContainer:
		name, path, _ := strings.Cut(rest, ":")
		if name == "" {
			return malformed("missing container name")
		}
		if !containerPattern.MatchString(name) {
			return malformed("invalid container name %q", name)
		}
		return Container(scheme, name), path, nil
	}

	return parseSSH(rest, malformed)
}

// parseSSH handles "[user@]host[:port][:askpw][:path]".
func parseSSH(rest string, malformed func(string, ...any) (Hop, string, error)) (Hop, string, error) {
	end := authorityEnd(rest)
	if end < 0 {
		return malformed("unterminated '[' in host")
	}
	authority, tail := rest[:end], rest[end:]

	var hop Hop
	hop.Kind = KindSSH
	if at := strings.LastIndex(authority, "@"); at >= 0 {
		hop.User = authority[:at]
		authority = authority[at+1:]
		if !userPattern.MatchString(hop.User) {
			return malformed("invalid user %q", hop.User)
		}
	}

	switch {
	case authority == "":
		return malformed("missing host")
	case strings.HasPrefix(authority, "["):
		if !strings.HasSuffix(authority, "]") {
			return malformed("unexpected characters after bracketed host")
		}
		hop.Host = authority[1 : len(authority)-1]
		if !ipv6Pattern.MatchString(hop.Host) {
			return malformed("invalid IPv6 host %q", hop.Host)
		}
	default:
		hop.Host = authority
		if !hostPattern.MatchString(hop.Host) {
			return malformed("invalid host %q", hop.Host)
		}
	}

	// Optional port, then optional askpw; whatever follows is the path.
	tail = strings.TrimPrefix(tail, ":")
	if field, remainder, _ := strings.Cut(tail, ":"); isPort(field) {
		port, _ := strconv.ParseUint(field, 10, 16)
		if port == 0 {
			return malformed("port must be between 1 and 65535")
		}
		hop.Port = uint16(port)
		tail = remainder
	}
	if field, remainder, _ := strings.Cut(tail, ":"); field == "askpw" {
		hop.AskPassword = true
		tail = remainder
	}
	return hop, tail, nil
}

// authorityEnd returns the index of the first ':' outside brackets, the
// length of s if there is none, or -1 for an unclosed bracket.
func authorityEnd(s string) int {
	inBracket := false
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '[':
			inBracket = true
		case ']':
			inBracket = false
		case ':':
			if !inBracket {
				return i
			}
		}
	}
	if inBracket {
		return -1
	}
	return len(s)
}

func isPort(field string) bool {
	if field == "" || len(field) > 5 {
		return false
	}
	for _, r := range field {
		if r < '0' || r > '9' {
			return false
		}
	}
	value, err := strconv.ParseUint(field, 10, 32)
	return err == nil && value <= 65535
}
