// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package content

import (
	"bytes"
	"fmt"
	"slices"
	"strings"
)

// HexSet overwrites the byte at Offset.
type HexSet struct {
	Offset int
	Value  byte
}

// HexInsert inserts Bytes before Offset; Offset may equal the length.
type HexInsert struct {
	Offset int
	Bytes  []byte
}

// HexDelete removes Count bytes starting at Offset.
type HexDelete struct {
	Offset int
	Count  int
}

func (HexSet) Kind() Kind    { return Hex }
func (HexInsert) Kind() Kind { return Hex }
func (HexDelete) Kind() Kind { return Hex }

// HexCodec wraps bytes without interpretation.
type HexCodec struct{}

func (HexCodec) Kind() Kind { return Hex }

// Decode never fails.
func (HexCodec) Decode(data []byte) (Document, error) {
	return &HexDocument{data: bytes.Clone(data)}, nil
}

// HexDocument is a byte sequence with a cursor.
type HexDocument struct {
	data   []byte
	cursor int
}

func (d *HexDocument) Kind() Kind      { return Hex }
func (d *HexDocument) Encode() []byte  { return bytes.Clone(d.data) }
func (d *HexDocument) Len() int        { return len(d.data) }
func (d *HexDocument) At(i int) byte   { return d.data[i] }
func (d *HexDocument) Cursor() int     { return d.cursor }
func (d *HexDocument) Clone() Document { return &HexDocument{data: bytes.Clone(d.data), cursor: d.cursor} }

// Seek moves the cursor. The cursor may sit one past the last byte,
// where an insert appends.
func (d *HexDocument) Seek(offset int) error {
	if offset < 0 || offset > len(d.data) {
		return fmt.Errorf("hex: offset %d out of range [0, %d]", offset, len(d.data))
	}
	d.cursor = offset
	return nil
}

func (d *HexDocument) Apply(edit Edit) error {
	switch edit := edit.(type) {
	case HexSet:
		if edit.Offset < 0 || edit.Offset >= len(d.data) {
			return d.outOfRange(edit, edit.Offset)
		}
		d.data[edit.Offset] = edit.Value
	case HexInsert:
		if edit.Offset < 0 || edit.Offset > len(d.data) {
			return d.outOfRange(edit, edit.Offset)
		}
		d.data = slices.Insert(d.data, edit.Offset, edit.Bytes...)
	case HexDelete:
		if edit.Count < 0 || edit.Offset < 0 || edit.Offset+edit.Count > len(d.data) {
			return &EditError{Kind: Hex, Edit: edit, Reason: fmt.Sprintf("range [%d, %d) outside %d bytes", edit.Offset, edit.Offset+edit.Count, len(d.data))}
		}
		d.data = slices.Delete(d.data, edit.Offset, edit.Offset+edit.Count)
	default:
		return wrongKind(Hex, edit)
	}
	d.cursor = min(d.cursor, len(d.data))
	return nil
}

func (d *HexDocument) outOfRange(edit Edit, offset int) error {
	return &EditError{Kind: Hex, Edit: edit, Reason: fmt.Sprintf("offset %d outside %d bytes", offset, len(d.data))}
}

// Rows returns how many rows Render produces for width.
func (d *HexDocument) Rows(width int) int {
	if width < 1 {
		width = 16
	}
	return max(1, (len(d.data)+width-1)/width)
}

// Render returns the side-by-side view, one string per row of width
// bytes:
//
//	00000010  48 65 6c 6c 6f 0a 00 ff  |Hello...|
func (d *HexDocument) Render(width int) []string {
	rows := make([]string, d.Rows(width))
	for i := range rows {
		rows[i] = d.RenderRow(i, width)
	}
	return rows
}

// RenderRow renders a single row.
func (d *HexDocument) RenderRow(row, width int) string {
	if width < 1 {
		width = 16
	}
	start := row * width
	end := min(start+width, len(d.data))

	var b strings.Builder
	fmt.Fprintf(&b, "%08x  ", start)
	for i := start; i < start+width; i++ {
		if i < end {
			fmt.Fprintf(&b, "%02x ", d.data[i])
		} else {
			b.WriteString("   ")
		}
		if width > 8 && i-start == width/2-1 {
			b.WriteByte(' ')
		}
	}
	b.WriteString(" |")
	for i := start; i < end; i++ {
		c := d.data[i]
		if c < 0x20 || c > 0x7e {
			c = '.'
		}
		b.WriteByte(c)
	}
	b.WriteByte('|')
	return b.String()
}
