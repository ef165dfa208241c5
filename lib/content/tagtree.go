// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package content

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/zeebo/blake3"

	"github.com/bureau-foundation/hopedit/lib/framing"
	"github.com/bureau-foundation/hopedit/lib/nbt"
)

// TagSet replaces the node at Path. An empty Path replaces the root.
type TagSet struct {
	Path  nbt.Path
	Value nbt.Tag
}

// TagInsert adds Value to the compound or list at Path. Name names a
// compound entry and is ignored for lists. Index is the position among
// the container's children, -1 to append.
type TagInsert struct {
	Path  nbt.Path
	Name  string
	Index int
	Value nbt.Tag
}

// TagRemove deletes the node at Path.
type TagRemove struct {
	Path nbt.Path
}

// TagRename renames the compound entry at Path, or the root when Path
// is empty.
type TagRename struct {
	Path nbt.Path
	Name string
}

func (TagSet) Kind() Kind    { return TagTree }
func (TagInsert) Kind() Kind { return TagTree }
func (TagRemove) Kind() Kind { return TagTree }
func (TagRename) Kind() Kind { return TagTree }

// TagTreeCodec decodes framed NBT.
type TagTreeCodec struct {
	// Limit bounds the decompressed payload size. Zero means no
	// bound.
	Limit int64
}

func (TagTreeCodec) Kind() Kind { return TagTree }

func (c TagTreeCodec) Decode(data []byte) (Document, error) {
	payload, frame, err := framing.Decode(data, c.Limit)
	if err != nil {
		return nil, &CodecError{Kind: TagTree, Reason: fmt.Sprintf("%s framing: %v", framing.Detect(data), err), Offset: -1, Err: err}
	}
	name, root, err := nbt.Decode(payload)
	if err != nil {
		codecErr := &CodecError{Kind: TagTree, Reason: err.Error(), Offset: -1, Err: err}
		var syntax *nbt.SyntaxError
		if errors.As(err, &syntax) {
			codecErr.Reason = syntax.Reason
			codecErr.Offset = syntax.Offset
			if frame.Framing != framing.None {
				codecErr.Reason += " (offset within the decompressed payload)"
			}
		}
		return nil, codecErr
	}
	return &TagTreeDocument{
		name:     name,
		root:     root,
		frame:    frame,
		original: bytes.Clone(data),
		digest:   blake3.Sum256(payload),
	}, nil
}

// TagTreeDocument is a named root tag plus the framing it was read
// with.
type TagTreeDocument struct {
	name  string
	root  nbt.Tag
	frame framing.Frame

	// original and digest let Encode return the exact input bytes
	// when the payload has not changed. Compressors are not
	// guaranteed to reproduce their output, so this is the only way
	// an unedited framed file can round-trip.
	original []byte
	digest   [32]byte
}

// NewTagTree builds a document that was not decoded from bytes.
func NewTagTree(name string, root nbt.Tag, frame framing.Frame) (*TagTreeDocument, error) {
	if err := nbt.Validate(root); err != nil {
		return nil, err
	}
	return &TagTreeDocument{name: name, root: nbt.Clone(root), frame: frame}, nil
}

func newEmptyTagTree() *TagTreeDocument {
	return &TagTreeDocument{root: nbt.NewCompound(), frame: framing.Frame{Framing: framing.Gzip}}
}

func (d *TagTreeDocument) Kind() Kind { return TagTree }

// Name is the root tag's name.
func (d *TagTreeDocument) Name() string { return d.name }

// Root returns the live root tag. Mutate it only through Apply.
func (d *TagTreeDocument) Root() nbt.Tag { return d.root }

// Frame returns the outer framing Encode applies.
func (d *TagTreeDocument) Frame() framing.Frame { return d.frame }

// Lines flattens the tree for display.
func (d *TagTreeDocument) Lines() []nbt.Line { return nbt.Lines(d.name, d.root) }

// Payload returns the unframed NBT stream.
func (d *TagTreeDocument) Payload() []byte {
	payload, err := nbt.Encode(d.name, d.root)
	if err != nil {
		// Every tree reachable through Apply has been validated.
		panic("content: tag tree no longer encodes: " + err.Error())
	}
	return payload
}

func (d *TagTreeDocument) Encode() []byte {
	payload := d.Payload()
	if d.original != nil && blake3.Sum256(payload) == d.digest {
		return bytes.Clone(d.original)
	}
	framed, err := framing.Encode(payload, d.frame)
	if err != nil {
		// The compressors write to memory and only fail on invalid
		// levels, which Decode never produces.
		panic("content: recompressing tag tree: " + err.Error())
	}
	return framed
}

func (d *TagTreeDocument) Clone() Document {
	return &TagTreeDocument{
		name:     d.name,
		root:     nbt.Clone(d.root),
		frame:    d.frame,
		original: d.original,
		digest:   d.digest,
	}
}

func (d *TagTreeDocument) Apply(edit Edit) error {
	var err error
	switch edit := edit.(type) {
	case TagSet:
		var root nbt.Tag
		root, err = nbt.Set(d.root, edit.Path, cloneValue(edit.Value))
		if err == nil {
			d.root = root
		}
	case TagInsert:
		err = nbt.Insert(d.root, edit.Path, edit.Name, edit.Index, cloneValue(edit.Value))
	case TagRemove:
		err = nbt.Remove(d.root, edit.Path)
	case TagRename:
		if len(edit.Path) == 0 {
			if err := nbt.Validate(nbt.String(edit.Name)); err != nil {
				return &EditError{Kind: TagTree, Edit: edit, Reason: err.Error(), Err: err}
			}
			d.name = edit.Name
			return nil
		}
		err = nbt.Rename(d.root, edit.Path, edit.Name)
	default:
		return wrongKind(TagTree, edit)
	}
	if err != nil {
		return &EditError{Kind: TagTree, Edit: edit, Reason: err.Error(), Err: err}
	}
	return nil
}

func cloneValue(tag nbt.Tag) nbt.Tag {
	if tag == nil {
		return nil
	}
	return nbt.Clone(tag)
}
