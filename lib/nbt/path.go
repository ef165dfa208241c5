// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package nbt

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// PathElem selects a child: a compound entry by name or a list item
// by index.
type PathElem struct {
	Key     string
	Index   int
	IsIndex bool
}

// Key selects the compound entry named name.
func Key(name string) PathElem { return PathElem{Key: name} }

// Index selects list item i.
func Index(i int) PathElem { return PathElem{Index: i, IsIndex: true} }

// Path addresses a node from the root. The empty path is the root.
type Path []PathElem

// String renders the path in the syntax ParsePath accepts:
// Level.Sections[3]."odd.key".
func (p Path) String() string {
	var b strings.Builder
	for i, elem := range p {
		if elem.IsIndex {
			b.WriteString("[" + strconv.Itoa(elem.Index) + "]")
			continue
		}
		if i > 0 {
			b.WriteByte('.')
		}
		if isPlainKey(elem.Key) {
			b.WriteString(elem.Key)
		} else {
			b.WriteString(strconv.Quote(elem.Key))
		}
	}
	return b.String()
}

// Child returns a new path extended by elem.
func (p Path) Child(elem PathElem) Path {
	child := make(Path, len(p), len(p)+1)
	copy(child, p)
	return append(child, elem)
}

func isPlainKey(key string) bool {
	if key == "" {
		return false
	}
	for _, r := range key {
		if r == '.' || r == '[' || r == ']' || r == '"' || r == ' ' || r < 0x20 {
			return false
		}
	}
	return true
}

// ParsePath parses dotted keys with [n] indices. Keys containing
// separators are written as Go-quoted strings.
func ParsePath(s string) (Path, error) {
	var path Path
	for i := 0; i < len(s); {
		switch s[i] {
		case '.':
			if i == 0 || i == len(s)-1 || s[i+1] == '.' || s[i+1] == '[' {
				return nil, fmt.Errorf("path %q: misplaced '.'", s)
			}
			i++
		case '[':
			end := strings.IndexByte(s[i:], ']')
			if end < 0 {
				return nil, fmt.Errorf("path %q: unterminated '['", s)
			}
			index, err := strconv.Atoi(s[i+1 : i+end])
			if err != nil || index < 0 {
				return nil, fmt.Errorf("path %q: invalid index %q", s, s[i+1:i+end])
			}
			path = append(path, Index(index))
			i += end + 1
		case '"':
			quoted, err := strconv.QuotedPrefix(s[i:])
			if err != nil {
				return nil, fmt.Errorf("path %q: %w", s, err)
			}
			key, _ := strconv.Unquote(quoted)
			path = append(path, Key(key))
			i += len(quoted)
		default:
			end := strings.IndexAny(s[i:], ".[")
			if end < 0 {
				end = len(s) - i
			}
			path = append(path, Key(s[i:i+end]))
			i += end
		}
	}
	return path, nil
}

// ErrPath matches every *PathError.
var ErrPath = errors.New("invalid tag path")

// PathError reports why an edit or lookup at Path failed.
type PathError struct {
	Path   Path
	Reason string

	err error
}

func (e *PathError) Error() string {
	location := e.Path.String()
	if location == "" {
		location = "root"
	}
	return fmt.Sprintf("nbt: %s: %s", location, e.Reason)
}

func (e *PathError) Unwrap() []error {
	if e.err != nil {
		return []error{ErrPath, e.err}
	}
	return []error{ErrPath}
}

// Lookup returns the node at path.
func Lookup(root Tag, path Path) (Tag, error) {
	node := root
	for i, elem := range path {
		next, err := child(node, elem)
		if err != nil {
			return nil, &PathError{Path: path[:i+1], Reason: err.Error()}
		}
		node = next
	}
	return node, nil
}

func child(node Tag, elem PathElem) (Tag, error) {
	switch container := node.(type) {
	case *Compound:
		if elem.IsIndex {
			return nil, fmt.Errorf("index [%d] applied to a Compound", elem.Index)
		}
		value, ok := container.Get(elem.Key)
		if !ok {
			return nil, fmt.Errorf("no entry %q", elem.Key)
		}
		return value, nil
	case *List:
		if !elem.IsIndex {
			return nil, fmt.Errorf("key %q applied to a List", elem.Key)
		}
		if elem.Index < 0 || elem.Index >= len(container.Items) {
			return nil, fmt.Errorf("index %d out of range for %d items", elem.Index, len(container.Items))
		}
		return container.Items[elem.Index], nil
	default:
		if node == nil {
			return nil, errors.New("nil node")
		}
		return nil, fmt.Errorf("%s has no children", node.Type())
	}
}
