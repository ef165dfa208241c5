// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package content

import (
	"strings"
	"unicode/utf8"
)

// Pos is a (line, column) position. Column counts Unicode scalar
// values from the start of the line, not bytes or display cells.
type Pos struct {
	Line int
	Col  int
}

// Before reports whether p comes strictly before q.
func (p Pos) Before(q Pos) bool {
	return p.Line < q.Line || (p.Line == q.Line && p.Col < q.Col)
}

// Range is the half-open span [Start, End).
type Range struct {
	Start Pos
	End   Pos
}

// TextInsert inserts Text at At. Line breaks in Text (\n, \r\n, or \r)
// become the document's dominant terminator.
type TextInsert struct {
	At   Pos
	Text string
}

// TextDelete removes Range, joining lines when it spans terminators.
type TextDelete struct {
	Range Range
}

// TextReplace deletes Range and inserts Text at its start.
type TextReplace struct {
	Range Range
	Text  string
}

func (TextInsert) Kind() Kind  { return Text }
func (TextDelete) Kind() Kind  { return Text }
func (TextReplace) Kind() Kind { return Text }

// TextCodec decodes UTF-8 text.
type TextCodec struct{}

func (TextCodec) Kind() Kind { return Text }

// Decode splits data into lines. It fails on invalid UTF-8.
func (TextCodec) Decode(data []byte) (Document, error) {
	if offset := invalidUTF8Offset(data); offset >= 0 {
		return nil, &CodecError{Kind: Text, Reason: "invalid UTF-8", Offset: offset}
	}
	document := &TextDocument{}
	start := 0
	for i := 0; i < len(data); i++ {
		switch data[i] {
		case '\n':
			document.lines = append(document.lines, textLine{text: string(data[start:i]), eol: "\n"})
			start = i + 1
		case '\r':
			eol := "\r"
			end := i
			if i+1 < len(data) && data[i+1] == '\n' {
				eol = "\r\n"
				i++
			}
			document.lines = append(document.lines, textLine{text: string(data[start:end]), eol: eol})
			start = i + 1
		}
	}
	document.lines = append(document.lines, textLine{text: string(data[start:])})
	return document, nil
}

func invalidUTF8Offset(data []byte) int {
	for offset := 0; offset < len(data); {
		r, size := utf8.DecodeRune(data[offset:])
		if r == utf8.RuneError && size <= 1 {
			return offset
		}
		offset += size
	}
	return -1
}

// TextDocument is text as lines. Every line but the last carries a
// terminator; the last never does, so a file ending in a newline has
// an empty last line.
type TextDocument struct {
	lines []textLine
}

type textLine struct {
	text string
	eol  string
}

func (d *TextDocument) Kind() Kind { return Text }

// Encode concatenates every line with its own terminator.
func (d *TextDocument) Encode() []byte {
	size := 0
	for _, line := range d.lines {
		size += len(line.text) + len(line.eol)
	}
	out := make([]byte, 0, size)
	for _, line := range d.lines {
		out = append(out, line.text...)
		out = append(out, line.eol...)
	}
	return out
}

// String returns the encoded text.
func (d *TextDocument) String() string { return string(d.Encode()) }

func (d *TextDocument) Clone() Document {
	lines := make([]textLine, len(d.lines))
	copy(lines, d.lines)
	return &TextDocument{lines: lines}
}

// LineCount returns the number of lines, at least 1.
func (d *TextDocument) LineCount() int { return len(d.lines) }

// Line returns line i without its terminator.
func (d *TextDocument) Line(i int) string { return d.lines[i].text }

// Terminator returns the terminator of line i ("" for the last line).
func (d *TextDocument) Terminator(i int) string { return d.lines[i].eol }

// LineLength returns the number of scalar values on line i.
func (d *TextDocument) LineLength(i int) int { return utf8.RuneCountInString(d.lines[i].text) }

// EndsWithNewline reports whether the final line is terminated.
func (d *TextDocument) EndsWithNewline() bool {
	return len(d.lines) > 1 && d.lines[len(d.lines)-1].text == ""
}

// DominantTerminator is the most common terminator in the document,
// "\n" when there are none or on a tie with "\n".
func (d *TextDocument) DominantTerminator() string {
	counts := map[string]int{}
	for _, line := range d.lines {
		if line.eol != "" {
			counts[line.eol]++
		}
	}
	best, bestCount := "\n", counts["\n"]
	for _, eol := range []string{"\r\n", "\r"} {
		if counts[eol] > bestCount {
			best, bestCount = eol, counts[eol]
		}
	}
	return best
}

// End returns the position after the last scalar value.
func (d *TextDocument) End() Pos {
	last := len(d.lines) - 1
	return Pos{Line: last, Col: d.LineLength(last)}
}

func (d *TextDocument) Apply(edit Edit) error {
	switch edit := edit.(type) {
	case TextInsert:
		if err := d.checkPos(edit, edit.At); err != nil {
			return err
		}
		if err := checkText(edit, edit.Text); err != nil {
			return err
		}
		d.insert(edit.At, edit.Text)
	case TextDelete:
		if err := d.checkRange(edit, edit.Range); err != nil {
			return err
		}
		d.delete(edit.Range)
	case TextReplace:
		if err := d.checkRange(edit, edit.Range); err != nil {
			return err
		}
		if err := checkText(edit, edit.Text); err != nil {
			return err
		}
		d.delete(edit.Range)
		d.insert(edit.Range.Start, edit.Text)
	default:
		return wrongKind(Text, edit)
	}
	return nil
}

func (d *TextDocument) checkPos(edit Edit, p Pos) error {
	if p.Line < 0 || p.Line >= len(d.lines) {
		return &EditError{Kind: Text, Edit: edit, Reason: "line out of range"}
	}
	if p.Col < 0 || p.Col > d.LineLength(p.Line) {
		return &EditError{Kind: Text, Edit: edit, Reason: "column out of range"}
	}
	return nil
}

func (d *TextDocument) checkRange(edit Edit, r Range) error {
	if err := d.checkPos(edit, r.Start); err != nil {
		return err
	}
	if err := d.checkPos(edit, r.End); err != nil {
		return err
	}
	if r.End.Before(r.Start) {
		return &EditError{Kind: Text, Edit: edit, Reason: "range ends before it starts"}
	}
	return nil
}

func checkText(edit Edit, text string) error {
	if !utf8.ValidString(text) {
		return &EditError{Kind: Text, Edit: edit, Reason: "inserted text is not valid UTF-8"}
	}
	return nil
}

// splitAt splits a line at a scalar-value column.
func splitAt(s string, col int) (string, string) {
	offset := 0
	for range col {
		_, size := utf8.DecodeRuneInString(s[offset:])
		offset += size
	}
	return s[:offset], s[offset:]
}

func (d *TextDocument) insert(at Pos, text string) {
	if text == "" {
		return
	}
	line := d.lines[at.Line]
	before, after := splitAt(line.text, at.Col)
	pieces := splitLines(text)
	if len(pieces) == 1 {
		d.lines[at.Line].text = before + text + after
		return
	}

	eol := d.DominantTerminator()
	replacement := make([]textLine, len(pieces))
	for i, piece := range pieces {
		replacement[i] = textLine{text: piece, eol: eol}
	}
	replacement[0].text = before + pieces[0]
	last := len(pieces) - 1
	replacement[last] = textLine{text: pieces[last] + after, eol: line.eol}

	lines := make([]textLine, 0, len(d.lines)+last)
	lines = append(lines, d.lines[:at.Line]...)
	lines = append(lines, replacement...)
	lines = append(lines, d.lines[at.Line+1:]...)
	d.lines = lines
}

func splitLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	return strings.Split(text, "\n")
}

func (d *TextDocument) delete(r Range) {
	if r.Start == r.End {
		return
	}
	before, _ := splitAt(d.lines[r.Start.Line].text, r.Start.Col)
	_, after := splitAt(d.lines[r.End.Line].text, r.End.Col)
	joined := textLine{text: before + after, eol: d.lines[r.End.Line].eol}

	lines := make([]textLine, 0, len(d.lines)-(r.End.Line-r.Start.Line))
	lines = append(lines, d.lines[:r.Start.Line]...)
	lines = append(lines, joined)
	lines = append(lines, d.lines[r.End.Line+1:]...)
	d.lines = lines
}
