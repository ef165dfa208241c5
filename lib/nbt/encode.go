// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package nbt

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Encode serializes a named root tag. It fails only for trees that
// cannot be represented: nil tags, mixed-type lists, strings longer
// than 65535 encoded bytes, or nesting deeper than MaxDepth.
func Encode(name string, root Tag) ([]byte, error) {
	if root == nil {
		return nil, fmt.Errorf("nbt: nil root tag")
	}
	e := encoder{}
	e.buf = append(e.buf, byte(root.Type()))
	if err := e.string(name); err != nil {
		return nil, err
	}
	if err := e.payload(root, 0); err != nil {
		return nil, err
	}
	return e.buf, nil
}

// Validate reports whether tag could be encoded.
func Validate(tag Tag) error {
	return validate(tag, 0)
}

func validate(tag Tag, depth int) error {
	switch value := tag.(type) {
	case nil:
		return fmt.Errorf("nbt: nil tag")
	case String:
		if n := modifiedUTF8Len(string(value)); n > math.MaxUint16 {
			return fmt.Errorf("nbt: string of %d bytes exceeds 65535", n)
		}
	case *List:
		if depth >= MaxDepth {
			return fmt.Errorf("nbt: nesting deeper than %d", MaxDepth)
		}
		if !value.Elem.Valid() {
			return fmt.Errorf("nbt: list element type %d", byte(value.Elem))
		}
		if value.Elem == TagEnd && len(value.Items) > 0 {
			return fmt.Errorf("nbt: list of End with %d elements", len(value.Items))
		}
		for i, item := range value.Items {
			if item == nil {
				return fmt.Errorf("nbt: list item %d is nil", i)
			}
			if item.Type() != value.Elem {
				return fmt.Errorf("nbt: list of %s holds %s at index %d", value.Elem, item.Type(), i)
			}
			if err := validate(item, depth+1); err != nil {
				return err
			}
		}
	case *Compound:
		if depth >= MaxDepth {
			return fmt.Errorf("nbt: nesting deeper than %d", MaxDepth)
		}
		for _, entry := range value.Entries {
			if n := modifiedUTF8Len(entry.Name); n > math.MaxUint16 {
				return fmt.Errorf("nbt: entry name of %d bytes exceeds 65535", n)
			}
			if err := validate(entry.Value, depth+1); err != nil {
				return fmt.Errorf("%s: %w", entry.Name, err)
			}
		}
	}
	return nil
}

type encoder struct {
	buf []byte
}

func (e *encoder) string(s string) error {
	n := modifiedUTF8Len(s)
	if n > math.MaxUint16 {
		return fmt.Errorf("nbt: string of %d bytes exceeds 65535", n)
	}
	e.buf = binary.BigEndian.AppendUint16(e.buf, uint16(n))
	e.buf = appendModifiedUTF8(e.buf, s)
	return nil
}

func (e *encoder) length(n int) error {
	if n > math.MaxInt32 {
		return fmt.Errorf("nbt: %d elements exceed the int32 length field", n)
	}
	e.buf = binary.BigEndian.AppendUint32(e.buf, uint32(n))
	return nil
}

func (e *encoder) payload(tag Tag, depth int) error {
	switch value := tag.(type) {
	case Byte:
		e.buf = append(e.buf, byte(value))
	case Short:
		e.buf = binary.BigEndian.AppendUint16(e.buf, uint16(value))
	case Int:
		e.buf = binary.BigEndian.AppendUint32(e.buf, uint32(value))
	case Long:
		e.buf = binary.BigEndian.AppendUint64(e.buf, uint64(value))
	case Float:
		e.buf = binary.BigEndian.AppendUint32(e.buf, math.Float32bits(float32(value)))
	case Double:
		e.buf = binary.BigEndian.AppendUint64(e.buf, math.Float64bits(float64(value)))
	case ByteArray:
		if err := e.length(len(value)); err != nil {
			return err
		}
		e.buf = append(e.buf, value...)
	case String:
		return e.string(string(value))
	case IntArray:
		if err := e.length(len(value)); err != nil {
			return err
		}
		for _, v := range value {
			e.buf = binary.BigEndian.AppendUint32(e.buf, uint32(v))
		}
	case LongArray:
		if err := e.length(len(value)); err != nil {
			return err
		}
		for _, v := range value {
			e.buf = binary.BigEndian.AppendUint64(e.buf, uint64(v))
		}
	case *List:
		if depth >= MaxDepth {
			return fmt.Errorf("nbt: nesting deeper than %d", MaxDepth)
		}
		if !value.Elem.Valid() || (value.Elem == TagEnd && len(value.Items) > 0) {
			return fmt.Errorf("nbt: invalid list element type %s for %d items", value.Elem, len(value.Items))
		}
		e.buf = append(e.buf, byte(value.Elem))
		if err := e.length(len(value.Items)); err != nil {
			return err
		}
		for i, item := range value.Items {
			if item == nil || item.Type() != value.Elem {
				return fmt.Errorf("nbt: list of %s has a mismatched item at index %d", value.Elem, i)
			}
			if err := e.payload(item, depth+1); err != nil {
				return err
			}
		}
	case *Compound:
		if depth >= MaxDepth {
			return fmt.Errorf("nbt: nesting deeper than %d", MaxDepth)
		}
		for _, entry := range value.Entries {
			if entry.Value == nil {
				return fmt.Errorf("nbt: entry %q is nil", entry.Name)
			}
			e.buf = append(e.buf, byte(entry.Value.Type()))
			if err := e.string(entry.Name); err != nil {
				return err
			}
			if err := e.payload(entry.Value, depth+1); err != nil {
				return err
			}
		}
		e.buf = append(e.buf, byte(TagEnd))
	default:
		return fmt.Errorf("nbt: unsupported tag %T", tag)
	}
	return nil
}
