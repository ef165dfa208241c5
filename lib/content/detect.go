// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package content

import (
	"bytes"
	"path"
	"strings"
	"unicode/utf8"

	"github.com/alecthomas/chroma/v2/lexers"

	"github.com/bureau-foundation/hopedit/lib/framing"
	"github.com/bureau-foundation/hopedit/lib/nbt"
)

var tagTreeExtensions = map[string]bool{
	".nbt":         true,
	".dat":         true,
	".dat_old":     true,
	".dat_mcr":     true,
	".schematic":   true,
	".schem":       true,
	".litematic":   true,
	".mcstructure": true,
}

// Detect chooses a content mode for data. filenameHint may be a full
// path, a bare name, or empty. Detect performs no I/O.
//
// A tag-tree extension or a payload that decodes completely as
// (optionally framed) NBT selects TagTree. Valid UTF-8 without NUL
// bytes selects Text. Valid UTF-8 that contains NULs is still Text
// when the name is a known source format. Everything else is Hex.
func Detect(data []byte, filenameHint string) Kind {
	extension := strings.ToLower(path.Ext(filenameHint))
	if tagTreeExtensions[extension] && len(data) > 0 && decodesAsTagTree(data) {
		return TagTree
	}
	if looksFramedOrCompound(data) && decodesAsTagTree(data) {
		return TagTree
	}
	if !utf8.Valid(data) {
		return Hex
	}
	if bytes.IndexByte(data, 0) < 0 {
		return Text
	}
	if filenameHint != "" && lexers.Match(path.Base(filenameHint)) != nil {
		return Text
	}
	return Hex
}

func looksFramedOrCompound(data []byte) bool {
	if len(data) == 0 {
		return false
	}
	return framing.Detect(data) != framing.None || data[0] == byte(nbt.TagCompound)
}

// detectLimit keeps sniffing cheap on large framed files.
const detectLimit = 64 << 20

func decodesAsTagTree(data []byte) bool {
	_, err := TagTreeCodec{Limit: detectLimit}.Decode(data)
	return err == nil
}

// DetectLanguage names the syntax of a text file for highlighting,
// using the filename first and the content second. It returns "" when
// nothing matches.
func DetectLanguage(filenameHint string, data []byte) string {
	if filenameHint != "" {
		if lexer := lexers.Match(path.Base(filenameHint)); lexer != nil {
			return lexer.Config().Name
		}
	}
	if len(data) == 0 {
		return ""
	}
	sample := data
	if len(sample) > 4096 {
		sample = sample[:4096]
	}
	if lexer := lexers.Analyse(string(sample)); lexer != nil {
		return lexer.Config().Name
	}
	return ""
}
