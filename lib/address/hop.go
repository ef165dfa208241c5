// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package address

import (
	"strconv"
	"strings"
)

// Kind identifies a hop variant.
type Kind uint8

const (
	KindLocal Kind = iota
	KindSudo
	KindSSH
	KindContainer
)

func (k Kind) String() string {
	switch k {
	case KindLocal:
		return "local"
	case KindSudo:
		return "sudo"
	case KindSSH:
		return "ssh"
	case KindContainer:
		return "container"
	default:
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Container engines.
const (
	EngineDocker = "docker"
	EnginePodman = "podman"
)

// Hop is one stage of a chain. Only the fields meaningful for Kind are
// set; Hop values are comparable, and two chains are the same chain
// exactly when their hop slices are element-wise equal.
type Hop struct {
	Kind Kind `cbor:"1,keyasint"`

	// User and Host address an ssh hop. Port is 0 when the default
	// should be used.
	User string `cbor:"2,keyasint,omitempty"`
	Host string `cbor:"3,keyasint,omitempty"`
	Port uint16 `cbor:"4,keyasint,omitempty"`

	// Engine and Name address a container hop.
	Engine string `cbor:"5,keyasint,omitempty"`
	Name   string `cbor:"6,keyasint,omitempty"`

	// AskPassword records the askpw option on sudo and ssh hops. The
	// hop expects an interactive password, which the transport
	// refuses rather than prompting.
	AskPassword bool `cbor:"7,keyasint,omitempty"`
}

// Local returns the local hop.
func Local() Hop { return Hop{Kind: KindLocal} }

// Sudo returns a privilege escalation hop.
func Sudo() Hop { return Hop{Kind: KindSudo} }

// SSH returns an ssh hop. user and port may be zero.
func SSH(user, host string, port uint16) Hop {
	return Hop{Kind: KindSSH, User: user, Host: host, Port: port}
}

// Container returns a container exec hop for engine (docker or podman).
func Container(engine, name string) Hop {
	return Hop{Kind: KindContainer, Engine: engine, Name: name}
}

// String renders the hop as it would be written in a target, without a
// path.
func (h Hop) String() string {
	return h.segment("")
}

func (h Hop) segment(path string) string {
	var b strings.Builder
	switch h.Kind {
	case KindLocal:
		b.WriteString("local:")
		b.WriteString(path)
		return b.String()
	case KindSudo:
		b.WriteString("sudo:")
		if h.AskPassword {
			b.WriteString("askpw")
			if path != "" {
				b.WriteByte(':')
			}
		}
		b.WriteString(path)
		return b.String()
	case KindSSH:
		b.WriteString("ssh:")
		if h.User != "" {
			b.WriteString(h.User)
			b.WriteByte('@')
		}
		if strings.Contains(h.Host, ":") {
			b.WriteString("[" + h.Host + "]")
		} else {
			b.WriteString(h.Host)
		}
		if h.Port != 0 {
			b.WriteByte(':')
			b.WriteString(strconv.Itoa(int(h.Port)))
		}
		if h.AskPassword {
			b.WriteString(":askpw")
		}
	case KindContainer:
		b.WriteString(h.Engine)
		b.WriteByte(':')
		b.WriteString(h.Name)
	}
	if path != "" {
		b.WriteByte(':')
		b.WriteString(path)
	}
	return b.String()
}

// Label is a short human description used in logs and errors:
// "ssh user@host:2222", "sudo", "docker web".
func (h Hop) Label() string {
	switch h.Kind {
	case KindSSH:
		destination := h.Host
		if h.User != "" {
			destination = h.User + "@" + destination
		}
		if h.Port != 0 {
			destination += ":" + strconv.Itoa(int(h.Port))
		}
		return "ssh " + destination
	case KindContainer:
		return h.Engine + " " + h.Name
	default:
		return h.Kind.String()
	}
}
