// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package nbt

import (
	"errors"
	"unicode/utf8"
)

// Java's modified UTF-8 differs from UTF-8 in two ways: U+0000 is the
// two-byte sequence C0 80, and code points above U+FFFF are written as
// a UTF-16 surrogate pair with each half encoded in three bytes.

// appendModifiedUTF8 appends the encoding of s. Invalid UTF-8 in s is
// encoded as U+FFFD.
func appendModifiedUTF8(dst []byte, s string) []byte {
	for _, r := range s {
		switch {
		case r == 0:
			dst = append(dst, 0xc0, 0x80)
		case r < 0x80:
			dst = append(dst, byte(r))
		case r < 0x800:
			dst = append(dst, 0xc0|byte(r>>6), 0x80|byte(r&0x3f))
		case r < 0x10000:
			dst = appendThree(dst, r)
		default:
			r -= 0x10000
			dst = appendThree(dst, 0xd800+(r>>10))
			dst = appendThree(dst, 0xdc00+(r&0x3ff))
		}
	}
	return dst
}

func appendThree(dst []byte, r rune) []byte {
	return append(dst, 0xe0|byte(r>>12), 0x80|byte((r>>6)&0x3f), 0x80|byte(r&0x3f))
}

// modifiedUTF8Len returns len(appendModifiedUTF8(nil, s)).
func modifiedUTF8Len(s string) int {
	n := 0
	for _, r := range s {
		switch {
		case r == 0:
			n += 2
		case r < 0x80:
			n++
		case r < 0x800:
			n += 2
		case r < 0x10000:
			n += 3
		default:
			n += 6
		}
	}
	return n
}

var errNotModifiedUTF8 = errors.New("string is not canonical modified UTF-8")

// decodeModifiedUTF8 accepts exactly the byte sequences
// appendModifiedUTF8 can produce, so decoding and re-encoding is the
// identity.
func decodeModifiedUTF8(b []byte) (string, error) {
	out := make([]byte, 0, len(b))
	for i := 0; i < len(b); {
		c := b[i]
		switch {
		case c == 0:
			return "", errNotModifiedUTF8
		case c < 0x80:
			out = append(out, c)
			i++
		case c&0xe0 == 0xc0:
			if i+1 >= len(b) || !continuation(b[i+1]) {
				return "", errNotModifiedUTF8
			}
			r := rune(c&0x1f)<<6 | rune(b[i+1]&0x3f)
			if r != 0 && r < 0x80 {
				return "", errNotModifiedUTF8
			}
			out = utf8.AppendRune(out, r)
			i += 2
		case c&0xf0 == 0xe0:
			r, ok := three(b[i:])
			if !ok || r < 0x800 {
				return "", errNotModifiedUTF8
			}
			switch {
			case r >= 0xdc00 && r <= 0xdfff:
				return "", errNotModifiedUTF8
			case r >= 0xd800 && r <= 0xdbff:
				low, ok := three(b[i+3:])
				if !ok || low < 0xdc00 || low > 0xdfff {
					return "", errNotModifiedUTF8
				}
				r = 0x10000 + (r-0xd800)<<10 + (low - 0xdc00)
				i += 3
			}
			out = utf8.AppendRune(out, r)
			i += 3
		default:
			return "", errNotModifiedUTF8
		}
	}
	return string(out), nil
}

func three(b []byte) (rune, bool) {
	if len(b) < 3 || b[0]&0xf0 != 0xe0 || !continuation(b[1]) || !continuation(b[2]) {
		return 0, false
	}
	return rune(b[0]&0x0f)<<12 | rune(b[1]&0x3f)<<6 | rune(b[2]&0x3f), true
}

func continuation(c byte) bool { return c&0xc0 == 0x80 }
