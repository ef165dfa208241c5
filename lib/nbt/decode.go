// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package nbt

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// MaxDepth is the deepest compound/list nesting Decode accepts, the
// same bound the game applies.
const MaxDepth = 512

// ErrMalformed matches every *SyntaxError.
var ErrMalformed = errors.New("malformed tag stream")

// SyntaxError locates a decoding failure.
type SyntaxError struct {
	Offset int
	Reason string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("nbt: %s at offset %d", e.Reason, e.Offset)
}

func (e *SyntaxError) Unwrap() error { return ErrMalformed }

// Decode parses a complete uncompressed stream: one named root tag
// and nothing after it.
func Decode(payload []byte) (name string, root Tag, err error) {
	d := &decoder{data: payload}
	kind, err := d.u8()
	if err != nil {
		return "", nil, err
	}
	tagType := TagType(kind)
	if tagType == TagEnd {
		return "", nil, d.failAt(0, "root tag is End")
	}
	if !tagType.Valid() {
		return "", nil, d.failAt(0, "unknown tag type %d", kind)
	}
	if name, err = d.string(); err != nil {
		return "", nil, err
	}
	if root, err = d.payload(tagType, 0); err != nil {
		return "", nil, err
	}
	if d.offset != len(d.data) {
		return "", nil, d.fail("%d trailing bytes after root tag", len(d.data)-d.offset)
	}
	return name, root, nil
}

type decoder struct {
	data   []byte
	offset int
}

func (d *decoder) fail(format string, args ...any) error {
	return d.failAt(d.offset, format, args...)
}

func (d *decoder) failAt(offset int, format string, args ...any) error {
	return &SyntaxError{Offset: offset, Reason: fmt.Sprintf(format, args...)}
}

// need fails unless count more bytes are available. count is int64
// so that length * element size cannot overflow.
func (d *decoder) need(count int64) error {
	if remaining := int64(len(d.data) - d.offset); count > remaining {
		return d.fail("truncated: need %d bytes, have %d", count, remaining)
	}
	return nil
}

func (d *decoder) take(n int) ([]byte, error) {
	if err := d.need(int64(n)); err != nil {
		return nil, err
	}
	b := d.data[d.offset : d.offset+n]
	d.offset += n
	return b, nil
}

func (d *decoder) u8() (byte, error) {
	b, err := d.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (d *decoder) u16() (uint16, error) {
	b, err := d.take(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

func (d *decoder) u32() (uint32, error) {
	b, err := d.take(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

func (d *decoder) u64() (uint64, error) {
	b, err := d.take(8)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b), nil
}

func (d *decoder) string() (string, error) {
	length, err := d.u16()
	if err != nil {
		return "", err
	}
	start := d.offset
	raw, err := d.take(int(length))
	if err != nil {
		return "", err
	}
	s, err := decodeModifiedUTF8(raw)
	if err != nil {
		return "", d.failAt(start, "%v", err)
	}
	return s, nil
}

// length reads an int32 element count and checks that count elements
// of at least size bytes each can fit in the remaining input, so a
// corrupt count cannot trigger a huge allocation.
func (d *decoder) length(size int64) (int, error) {
	start := d.offset
	raw, err := d.u32()
	if err != nil {
		return 0, err
	}
	count := int32(raw)
	if count < 0 {
		return 0, d.failAt(start, "negative length %d", count)
	}
	if err := d.need(int64(count) * size); err != nil {
		return 0, err
	}
	return int(count), nil
}

// minimumSize is the fewest bytes a payload of each type occupies.
var minimumSize = [...]int64{
	TagByte:      1,
	TagShort:     2,
	TagInt:       4,
	TagLong:      8,
	TagFloat:     4,
	TagDouble:    8,
	TagByteArray: 4,
	TagString:    2,
	TagList:      5,
	TagCompound:  1,
	TagIntArray:  4,
	TagLongArray: 4,
}

func (d *decoder) payload(tagType TagType, depth int) (Tag, error) {
	switch tagType {
	case TagByte:
		v, err := d.u8()
		return Byte(int8(v)), err
	case TagShort:
		v, err := d.u16()
		return Short(int16(v)), err
	case TagInt:
		v, err := d.u32()
		return Int(int32(v)), err
	case TagLong:
		v, err := d.u64()
		return Long(int64(v)), err
	case TagFloat:
		v, err := d.u32()
		return Float(math.Float32frombits(v)), err
	case TagDouble:
		v, err := d.u64()
		return Double(math.Float64frombits(v)), err

	case TagByteArray:
		count, err := d.length(1)
		if err != nil {
			return nil, err
		}
		raw, _ := d.take(count)
		return append(ByteArray(make([]byte, 0, count)), raw...), nil

	case TagString:
		s, err := d.string()
		return String(s), err

	case TagIntArray:
		count, err := d.length(4)
		if err != nil {
			return nil, err
		}
		values := make(IntArray, count)
		for i := range values {
			v, _ := d.u32()
			values[i] = int32(v)
		}
		return values, nil

	case TagLongArray:
		count, err := d.length(8)
		if err != nil {
			return nil, err
		}
		values := make(LongArray, count)
		for i := range values {
			v, _ := d.u64()
			values[i] = int64(v)
		}
		return values, nil

	case TagList:
		if depth >= MaxDepth {
			return nil, d.fail("nesting deeper than %d", MaxDepth)
		}
		elemOffset := d.offset
		elem, err := d.u8()
		if err != nil {
			return nil, err
		}
		elemType := TagType(elem)
		if !elemType.Valid() {
			return nil, d.failAt(elemOffset, "unknown list element type %d", elem)
		}
		size := int64(0)
		if elemType != TagEnd {
			size = minimumSize[elemType]
		}
		count, err := d.length(size)
		if err != nil {
			return nil, err
		}
		if elemType == TagEnd && count > 0 {
			return nil, d.failAt(elemOffset, "list of End with %d elements", count)
		}
		list := &List{Elem: elemType, Items: make([]Tag, 0, count)}
		for range count {
			item, err := d.payload(elemType, depth+1)
			if err != nil {
				return nil, err
			}
			list.Items = append(list.Items, item)
		}
		return list, nil

	case TagCompound:
		if depth >= MaxDepth {
			return nil, d.fail("nesting deeper than %d", MaxDepth)
		}
		compound := &Compound{}
		for {
			typeOffset := d.offset
			kind, err := d.u8()
			if err != nil {
				return nil, err
			}
			entryType := TagType(kind)
			if entryType == TagEnd {
				return compound, nil
			}
			if !entryType.Valid() {
				return nil, d.failAt(typeOffset, "unknown tag type %d", kind)
			}
			name, err := d.string()
			if err != nil {
				return nil, err
			}
			value, err := d.payload(entryType, depth+1)
			if err != nil {
				return nil, err
			}
			compound.Entries = append(compound.Entries, Entry{Name: name, Value: value})
		}
	}
	return nil, d.fail("unknown tag type %d", byte(tagType))
}
