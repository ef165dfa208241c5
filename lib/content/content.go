// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package content

import (
	"errors"
	"fmt"
	"strings"
)

// Kind is a content mode.
type Kind uint8

const (
	Text Kind = iota
	Hex
	TagTree
)

func (k Kind) String() string {
	switch k {
	case Text:
		return "text"
	case Hex:
		return "hex"
	case TagTree:
		return "tagtree"
	default:
		return fmt.Sprintf("kind(%d)", k)
	}
}

// ParseKind accepts "text", "hex", and "tagtree" (or "nbt").
func ParseKind(name string) (Kind, error) {
	switch strings.ToLower(name) {
	case "text":
		return Text, nil
	case "hex":
		return Hex, nil
	case "tagtree", "nbt":
		return TagTree, nil
	default:
		return 0, fmt.Errorf("unknown content mode %q (want text, hex, or tagtree)", name)
	}
}

// Codec decodes bytes into documents of one kind.
type Codec interface {
	Kind() Kind
	Decode(data []byte) (Document, error)
}

// Document is decoded content. Documents are not safe for concurrent
// use; Clone one to hand it to another goroutine.
type Document interface {
	Kind() Kind

	// Encode returns the bytes this document represents. The result
	// is owned by the caller.
	Encode() []byte

	// Apply performs edit in place, or returns an *EditError and
	// changes nothing.
	Apply(edit Edit) error

	Clone() Document
}

// Edit is a change to a document. Each concrete edit applies to one
// Kind.
type Edit interface {
	Kind() Kind
}

// DefaultDecompressionLimit bounds how far a framed tag tree may
// expand when decoded by CodecFor's codec.
const DefaultDecompressionLimit = 256 << 20

// CodecFor returns the codec for kind.
func CodecFor(kind Kind) Codec {
	switch kind {
	case Hex:
		return HexCodec{}
	case TagTree:
		return TagTreeCodec{Limit: DefaultDecompressionLimit}
	default:
		return TextCodec{}
	}
}

// NewDocument returns an empty document of kind. An empty tag tree is
// an unnamed, empty root compound with gzip framing, the usual layout
// of a freshly written data file.
func NewDocument(kind Kind) Document {
	switch kind {
	case Hex:
		return &HexDocument{}
	case TagTree:
		return newEmptyTagTree()
	default:
		return &TextDocument{lines: []textLine{{}}}
	}
}

// ErrMalformed matches every *CodecError.
var ErrMalformed = errors.New("malformed content")

// CodecError reports bytes that do not fit the requested mode.
type CodecError struct {
	Kind   Kind
	Reason string

	// Offset is the byte offset of the problem, or -1 when the
	// problem has no single location.
	Offset int

	Err error
}

func (e *CodecError) Error() string {
	if e.Offset >= 0 {
		return fmt.Sprintf("%s: %s at offset %d", e.Kind, e.Reason, e.Offset)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
}

func (e *CodecError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrMalformed, e.Err}
	}
	return []error{ErrMalformed}
}

// ErrInvalidEdit matches every *EditError.
var ErrInvalidEdit = errors.New("invalid edit")

// EditError reports an edit that was rejected.
type EditError struct {
	Kind   Kind
	Edit   Edit
	Reason string
	Err    error
}

func (e *EditError) Error() string {
	return fmt.Sprintf("%s edit %T: %s", e.Kind, e.Edit, e.Reason)
}

func (e *EditError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrInvalidEdit, e.Err}
	}
	return []error{ErrInvalidEdit}
}

func wrongKind(document Kind, edit Edit) error {
	return &EditError{Kind: document, Edit: edit, Reason: fmt.Sprintf("a %s edit cannot apply to a %s document", edit.Kind(), document)}
}
