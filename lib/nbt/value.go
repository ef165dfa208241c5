// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package nbt

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseScalar parses text typed by a user into a tag of type t. Only
// numeric and String types are accepted; containers and arrays are
// built structurally.
func ParseScalar(t TagType, text string) (Tag, error) {
	text = strings.TrimSpace(text)
	switch t {
	case TagByte:
		v, err := strconv.ParseInt(text, 0, 8)
		return Byte(v), wrapScalar(t, text, err)
	case TagShort:
		v, err := strconv.ParseInt(text, 0, 16)
		return Short(v), wrapScalar(t, text, err)
	case TagInt:
		v, err := strconv.ParseInt(text, 0, 32)
		return Int(v), wrapScalar(t, text, err)
	case TagLong:
		v, err := strconv.ParseInt(text, 0, 64)
		return Long(v), wrapScalar(t, text, err)
	case TagFloat:
		v, err := strconv.ParseFloat(text, 32)
		return Float(v), wrapScalar(t, text, err)
	case TagDouble:
		v, err := strconv.ParseFloat(text, 64)
		return Double(v), wrapScalar(t, text, err)
	case TagString:
		if unquoted, err := strconv.Unquote(text); err == nil {
			return String(unquoted), nil
		}
		return String(text), nil
	}
	return nil, fmt.Errorf("nbt: %s values cannot be parsed from text", t)
}

func wrapScalar(t TagType, text string, err error) error {
	if err != nil {
		return fmt.Errorf("nbt: %q is not a valid %s: %w", text, t, err)
	}
	return nil
}
