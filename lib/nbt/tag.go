// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package nbt

import "fmt"

// TagType is a tag's one-byte type id.
type TagType byte

const (
	TagEnd TagType = iota
	TagByte
	TagShort
	TagInt
	TagLong
	TagFloat
	TagDouble
	TagByteArray
	TagString
	TagList
	TagCompound
	TagIntArray
	TagLongArray
)

var tagNames = [...]string{
	TagEnd:       "End",
	TagByte:      "Byte",
	TagShort:     "Short",
	TagInt:       "Int",
	TagLong:      "Long",
	TagFloat:     "Float",
	TagDouble:    "Double",
	TagByteArray: "ByteArray",
	TagString:    "String",
	TagList:      "List",
	TagCompound:  "Compound",
	TagIntArray:  "IntArray",
	TagLongArray: "LongArray",
}

func (t TagType) String() string {
	if t.Valid() {
		return tagNames[t]
	}
	return fmt.Sprintf("TagType(%d)", byte(t))
}

// Valid reports whether t is a known type id.
func (t TagType) Valid() bool { return t <= TagLongArray }

// ParseTagType accepts the names returned by TagType.String, case
// sensitive.
func ParseTagType(name string) (TagType, error) {
	for i, candidate := range tagNames {
		if candidate == name {
			return TagType(i), nil
		}
	}
	return TagEnd, fmt.Errorf("unknown tag type %q", name)
}

// Tag is a tag payload. The concrete types are the ones declared in
// this package; List and Compound are used through pointers so that
// nested edits happen in place.
type Tag interface {
	Type() TagType
}

type (
	Byte      int8
	Short     int16
	Int       int32
	Long      int64
	Float     float32
	Double    float64
	ByteArray []byte
	String    string
	IntArray  []int32
	LongArray []int64
)

func (Byte) Type() TagType      { return TagByte }
func (Short) Type() TagType     { return TagShort }
func (Int) Type() TagType       { return TagInt }
func (Long) Type() TagType      { return TagLong }
func (Float) Type() TagType     { return TagFloat }
func (Double) Type() TagType    { return TagDouble }
func (ByteArray) Type() TagType { return TagByteArray }
func (String) Type() TagType    { return TagString }
func (IntArray) Type() TagType  { return TagIntArray }
func (LongArray) Type() TagType { return TagLongArray }
func (*List) Type() TagType     { return TagList }
func (*Compound) Type() TagType { return TagCompound }

// List is a homogeneous sequence of unnamed tags. Elem is kept even
// when the list is empty, because streams record it.
type List struct {
	Elem  TagType
	Items []Tag
}

// Entry is one named member of a compound.
type Entry struct {
	Name  string
	Value Tag
}

// Compound is an ordered set of named tags.
type Compound struct {
	Entries []Entry
}

// NewCompound returns a compound holding entries in order.
func NewCompound(entries ...Entry) *Compound {
	return &Compound{Entries: entries}
}

// Index returns the position of the first entry named name, or -1.
func (c *Compound) Index(name string) int {
	for i, entry := range c.Entries {
		if entry.Name == name {
			return i
		}
	}
	return -1
}

// Get returns the first entry named name.
func (c *Compound) Get(name string) (Tag, bool) {
	if i := c.Index(name); i >= 0 {
		return c.Entries[i].Value, true
	}
	return nil, false
}

// Put replaces the first entry named name, or appends one.
func (c *Compound) Put(name string, value Tag) {
	if i := c.Index(name); i >= 0 {
		c.Entries[i].Value = value
		return
	}
	c.Entries = append(c.Entries, Entry{Name: name, Value: value})
}

// Len returns the number of entries.
func (c *Compound) Len() int { return len(c.Entries) }

// Clone returns a deep copy of tag.
func Clone(tag Tag) Tag {
	switch value := tag.(type) {
	case ByteArray:
		return append(ByteArray(nil), value...)
	case IntArray:
		return append(IntArray(nil), value...)
	case LongArray:
		return append(LongArray(nil), value...)
	case *List:
		items := make([]Tag, len(value.Items))
		for i, item := range value.Items {
			items[i] = Clone(item)
		}
		return &List{Elem: value.Elem, Items: items}
	case *Compound:
		entries := make([]Entry, len(value.Entries))
		for i, entry := range value.Entries {
			entries[i] = Entry{Name: entry.Name, Value: Clone(entry.Value)}
		}
		return &Compound{Entries: entries}
	default:
		return tag
	}
}
