// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package nbt

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// Line is one row of a flattened tree.
type Line struct {
	Path  Path
	Depth int
	Text  string
}

// Lines flattens the tree depth first: the root, then every
// descendant in stream order.
func Lines(name string, root Tag) []Line {
	lines := []Line{{Path: Path{}, Depth: 0, Text: quoteName(name) + ": " + Summary(root)}}
	return appendChildren(lines, Path{}, root, 1)
}

func appendChildren(lines []Line, path Path, node Tag, depth int) []Line {
	switch container := node.(type) {
	case *Compound:
		for _, entry := range container.Entries {
			childPath := path.Child(Key(entry.Name))
			lines = append(lines, Line{Path: childPath, Depth: depth, Text: quoteName(entry.Name) + ": " + Summary(entry.Value)})
			lines = appendChildren(lines, childPath, entry.Value, depth+1)
		}
	case *List:
		for i, item := range container.Items {
			childPath := path.Child(Index(i))
			lines = append(lines, Line{Path: childPath, Depth: depth, Text: "[" + strconv.Itoa(i) + "]: " + Summary(item)})
			lines = appendChildren(lines, childPath, item, depth+1)
		}
	}
	return lines
}

func quoteName(name string) string {
	if isPlainKey(name) {
		return name
	}
	return strconv.Quote(name)
}

// Summary describes a single tag on one line.
func Summary(tag Tag) string {
	switch value := tag.(type) {
	case Byte:
		return "Byte " + strconv.Itoa(int(value))
	case Short:
		return "Short " + strconv.Itoa(int(value))
	case Int:
		return "Int " + strconv.Itoa(int(value))
	case Long:
		return "Long " + strconv.FormatInt(int64(value), 10)
	case Float:
		return "Float " + strconv.FormatFloat(float64(value), 'g', -1, 32)
	case Double:
		return "Double " + strconv.FormatFloat(float64(value), 'g', -1, 64)
	case String:
		return "String " + strconv.Quote(string(value))
	case ByteArray:
		return fmt.Sprintf("ByteArray (%d bytes)", len(value))
	case IntArray:
		return fmt.Sprintf("IntArray (%d)", len(value))
	case LongArray:
		return fmt.Sprintf("LongArray (%d)", len(value))
	case *List:
		return fmt.Sprintf("List<%s> (%d)", value.Elem, len(value.Items))
	case *Compound:
		return fmt.Sprintf("Compound (%d)", len(value.Entries))
	default:
		return fmt.Sprintf("%T", tag)
	}
}

// Format writes the flattened tree, indenting two spaces per level.
func Format(w io.Writer, name string, root Tag) error {
	for _, line := range Lines(name, root) {
		if _, err := fmt.Fprintf(w, "%s%s\n", strings.Repeat("  ", line.Depth), line.Text); err != nil {
			return err
		}
	}
	return nil
}

// Export converts the tree into plain maps and slices that keep every
// type explicit, for JSON and CBOR output:
//
//	{"name": "", "type": "Compound", "value": [
//	  {"name": "count", "type": "Int", "value": 12}]}
//
// Non-finite floats become the strings "NaN", "+Inf", and "-Inf".
func Export(name string, root Tag) map[string]any {
	return map[string]any{"name": name, "type": root.Type().String(), "value": exportValue(root)}
}

func exportValue(tag Tag) any {
	switch value := tag.(type) {
	case Byte:
		return int64(value)
	case Short:
		return int64(value)
	case Int:
		return int64(value)
	case Long:
		return int64(value)
	case Float:
		return exportFloat(float64(value))
	case Double:
		return exportFloat(float64(value))
	case String:
		return string(value)
	case ByteArray:
		values := make([]int64, len(value))
		for i, b := range value {
			values[i] = int64(int8(b))
		}
		return values
	case IntArray:
		values := make([]int64, len(value))
		for i, v := range value {
			values[i] = int64(v)
		}
		return values
	case LongArray:
		return []int64(value)
	case *List:
		items := make([]any, len(value.Items))
		for i, item := range value.Items {
			items[i] = exportValue(item)
		}
		return map[string]any{"elem": value.Elem.String(), "items": items}
	case *Compound:
		entries := make([]any, len(value.Entries))
		for i, entry := range value.Entries {
			entries[i] = Export(entry.Name, entry.Value)
		}
		return entries
	}
	return nil
}

func exportFloat(v float64) any {
	switch {
	case math.IsNaN(v):
		return "NaN"
	case math.IsInf(v, 1):
		return "+Inf"
	case math.IsInf(v, -1):
		return "-Inf"
	}
	return v
}
