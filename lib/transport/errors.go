// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/bureau-foundation/hopedit/lib/address"
)

var (
	// ErrAuthenticationFailed matches a ConnectError whose hop
	// rejected our credentials.
	ErrAuthenticationFailed = errors.New("authentication failed")

	// ErrUnreachable matches a ConnectError whose hop could not be
	// reached at all.
	ErrUnreachable = errors.New("hop unreachable")

	// ErrHopRefused matches a ConnectError whose hop program ran and
	// declined to start a shell.
	ErrHopRefused = errors.New("hop refused")

	// ErrTransportLost reports a chain that died or can no longer be
	// trusted. Every later operation on the chain fails with it.
	ErrTransportLost = errors.New("transport lost")

	// ErrOutcomeUnknown reports a request whose caller gave up after
	// it was sent. The request may or may not have taken effect.
	ErrOutcomeUnknown = errors.New("outcome unknown")
)

// ConnectErrorKind classifies a failed hop.
type ConnectErrorKind uint8

const (
	AuthenticationFailed ConnectErrorKind = iota + 1
	Unreachable
	HopRefused
)

func (k ConnectErrorKind) String() string {
	switch k {
	case AuthenticationFailed:
		return "authentication failed"
	case Unreachable:
		return "unreachable"
	case HopRefused:
		return "refused"
	default:
		return fmt.Sprintf("ConnectErrorKind(%d)", k)
	}
}

func (k ConnectErrorKind) sentinel() error {
	switch k {
	case AuthenticationFailed:
		return ErrAuthenticationFailed
	case Unreachable:
		return ErrUnreachable
	default:
		return ErrHopRefused
	}
}

// ConnectError reports the hop at which a chain could not be built.
// Every hop before it has been torn down by the time it is returned.
type ConnectError struct {
	// Hop is the zero-based index of the failing hop in the chain's
	// hop list, and HopInfo the hop itself.
	Hop     int
	HopInfo address.Hop

	// Total is the number of hops in the chain.
	Total int

	Kind ConnectErrorKind

	// Stderr is the tail of the hop program's diagnostics, if any.
	Stderr string

	Err error
}

func (e *ConnectError) Error() string {
	message := fmt.Sprintf("hop %d of %d (%s): %s", e.Hop+1, e.Total, e.HopInfo.Label(), e.Kind)
	if e.Err != nil {
		message += ": " + e.Err.Error()
	}
	if line := lastLine(e.Stderr); line != "" {
		message += ": " + line
	}
	return message
}

func (e *ConnectError) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Kind.sentinel(), e.Err}
	}
	return []error{e.Kind.sentinel()}
}

func lastLine(text string) string {
	text = strings.TrimRight(text, "\r\n\t ")
	if index := strings.LastIndexByte(text, '\n'); index >= 0 {
		text = text[index+1:]
	}
	return strings.TrimSpace(text)
}

// IOErrorKind classifies a failed file operation.
type IOErrorKind uint8

const (
	Other IOErrorKind = iota
	NotFound
	PermissionDenied
	NotAFile
	NotADirectory
	TransportLost
	OutcomeUnknown
)

func (k IOErrorKind) String() string {
	switch k {
	case NotFound:
		return "not found"
	case PermissionDenied:
		return "permission denied"
	case NotAFile:
		return "not a regular file"
	case NotADirectory:
		return "not a directory"
	case TransportLost:
		return "transport lost"
	case OutcomeUnknown:
		return "outcome unknown"
	default:
		return "failed"
	}
}

// IOError reports a failed operation on a path at the last hop.
type IOError struct {
	Op   string
	Path string
	Kind IOErrorKind

	// Err is the underlying cause: a system error, the remote
	// command's diagnostics, or a transport sentinel.
	Err error
}

func (e *IOError) Error() string {
	message := e.Op + " " + e.Path + ": " + e.Kind.String()
	if e.Err != nil && e.Err.Error() != e.Kind.String() {
		message += ": " + e.Err.Error()
	}
	return message
}

func (e *IOError) Unwrap() error { return e.Err }

// Is lets callers match kinds against the io/fs and transport
// sentinels regardless of what Err holds.
func (e *IOError) Is(target error) bool {
	switch target {
	case fs.ErrNotExist:
		return e.Kind == NotFound
	case fs.ErrPermission:
		return e.Kind == PermissionDenied
	case ErrTransportLost:
		return e.Kind == TransportLost
	case ErrOutcomeUnknown:
		return e.Kind == OutcomeUnknown
	}
	return false
}

// KindOf returns the IOErrorKind of err, or Other when err is not an
// IOError and matches no sentinel.
func KindOf(err error) IOErrorKind {
	var ioErr *IOError
	switch {
	case errors.As(err, &ioErr):
		return ioErr.Kind
	case errors.Is(err, ErrTransportLost):
		return TransportLost
	case errors.Is(err, ErrOutcomeUnknown):
		return OutcomeUnknown
	case errors.Is(err, fs.ErrNotExist):
		return NotFound
	case errors.Is(err, fs.ErrPermission):
		return PermissionDenied
	}
	return Other
}

// remoteError carries the diagnostics of a failed remote command.
type remoteError struct {
	status int
	stderr string
}

func (e *remoteError) Error() string {
	if line := lastLine(e.stderr); line != "" {
		return fmt.Sprintf("exit status %d: %s", e.status, line)
	}
	return fmt.Sprintf("exit status %d", e.status)
}
