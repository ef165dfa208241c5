// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package nbt

import (
	"errors"
	"fmt"
	"slices"
)

// ErrHeterogeneousList matches a PathError raised for inserting or
// setting a list item whose type differs from the list's.
var ErrHeterogeneousList = errors.New("list element type mismatch")

// Every edit below checks all of its preconditions before touching the
// tree, so a failed edit leaves the tree exactly as it was. Values
// are stored as given; callers that keep using a value afterwards
// should pass a Clone.

// Set replaces the node at path with value and returns the (possibly
// new) root. A compound entry may change type; a list item must keep
// the list's element type.
func Set(root Tag, path Path, value Tag) (Tag, error) {
	if err := checkValue(path, value); err != nil {
		return root, err
	}
	if len(path) == 0 {
		return value, nil
	}
	parent, last, err := parentOf(root, path)
	if err != nil {
		return root, err
	}
	switch container := parent.(type) {
	case *Compound:
		i := container.Index(last.Key)
		if i < 0 {
			return root, &PathError{Path: path, Reason: fmt.Sprintf("no entry %q", last.Key)}
		}
		container.Entries[i].Value = value
	case *List:
		if value.Type() != container.Elem {
			return root, heterogeneous(path, container.Elem, value.Type())
		}
		container.Items[last.Index] = value
	}
	return root, nil
}

// Insert adds value to the container at path. In a compound, name is
// the new entry's name and must not already exist; in a list, name is
// ignored. index is the position among the container's children, or
// -1 to append.
func Insert(root Tag, path Path, name string, index int, value Tag) error {
	container, err := Lookup(root, path)
	if err != nil {
		return err
	}
	if err := checkValue(path.Child(Key(name)), value); err != nil {
		return err
	}
	switch container := container.(type) {
	case *Compound:
		if container.Index(name) >= 0 {
			return &PathError{Path: path, Reason: fmt.Sprintf("entry %q already exists", name)}
		}
		position, err := insertPosition(path, index, len(container.Entries))
		if err != nil {
			return err
		}
		container.Entries = slices.Insert(container.Entries, position, Entry{Name: name, Value: value})
	case *List:
		if len(container.Items) > 0 && value.Type() != container.Elem {
			return heterogeneous(path, container.Elem, value.Type())
		}
		position, err := insertPosition(path, index, len(container.Items))
		if err != nil {
			return err
		}
		container.Elem = value.Type()
		container.Items = slices.Insert(container.Items, position, value)
	default:
		return &PathError{Path: path, Reason: fmt.Sprintf("%s is not a container", container.Type())}
	}
	return nil
}

// Remove deletes the node at path. The root cannot be removed. An
// emptied list keeps its element type.
func Remove(root Tag, path Path) error {
	if len(path) == 0 {
		return &PathError{Path: path, Reason: "cannot remove the root"}
	}
	parent, last, err := parentOf(root, path)
	if err != nil {
		return err
	}
	switch container := parent.(type) {
	case *Compound:
		i := container.Index(last.Key)
		if i < 0 {
			return &PathError{Path: path, Reason: fmt.Sprintf("no entry %q", last.Key)}
		}
		container.Entries = slices.Delete(container.Entries, i, i+1)
	case *List:
		container.Items = slices.Delete(container.Items, last.Index, last.Index+1)
	}
	return nil
}

// Rename changes the name of the compound entry at path.
func Rename(root Tag, path Path, name string) error {
	if len(path) == 0 {
		return &PathError{Path: path, Reason: "the root name is not an entry; rename the document instead"}
	}
	parent, last, err := parentOf(root, path)
	if err != nil {
		return err
	}
	container, ok := parent.(*Compound)
	if !ok {
		return &PathError{Path: path, Reason: "list items have no names"}
	}
	i := container.Index(last.Key)
	if i < 0 {
		return &PathError{Path: path, Reason: fmt.Sprintf("no entry %q", last.Key)}
	}
	if name == last.Key {
		return nil
	}
	if container.Index(name) >= 0 {
		return &PathError{Path: path, Reason: fmt.Sprintf("entry %q already exists", name)}
	}
	if n := modifiedUTF8Len(name); n > 0xffff {
		return &PathError{Path: path, Reason: fmt.Sprintf("name of %d bytes exceeds 65535", n)}
	}
	container.Entries[i].Name = name
	return nil
}

// parentOf resolves everything but the last element of path and
// checks that the last element exists in the parent.
func parentOf(root Tag, path Path) (Tag, PathElem, error) {
	parent, err := Lookup(root, path[:len(path)-1])
	if err != nil {
		return nil, PathElem{}, err
	}
	last := path[len(path)-1]
	if _, err := child(parent, last); err != nil {
		return nil, PathElem{}, &PathError{Path: path, Reason: err.Error()}
	}
	return parent, last, nil
}

func insertPosition(path Path, index, length int) (int, error) {
	if index == -1 {
		return length, nil
	}
	if index < 0 || index > length {
		return 0, &PathError{Path: path, Reason: fmt.Sprintf("insert position %d out of range for %d children", index, length)}
	}
	return index, nil
}

// checkValue validates value as it would sit at path, including the
// depth it adds below the path.
func checkValue(path Path, value Tag) error {
	if value == nil {
		return &PathError{Path: path, Reason: "nil value"}
	}
	if value.Type() == TagEnd || !value.Type().Valid() {
		return &PathError{Path: path, Reason: fmt.Sprintf("cannot store a %s tag", value.Type())}
	}
	if err := validate(value, len(path)); err != nil {
		return &PathError{Path: path, Reason: err.Error()}
	}
	return nil
}

func heterogeneous(path Path, want, got TagType) error {
	return &PathError{
		Path:   path,
		Reason: fmt.Sprintf("%v: list holds %s, not %s", ErrHeterogeneousList, want, got),
		err:    ErrHeterogeneousList,
	}
}
