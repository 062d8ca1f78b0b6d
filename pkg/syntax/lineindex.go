package syntax

import (
	"sort"
	"unicode/utf16"
	"unicode/utf8"
)

// LineCol is a zero-based line and byte column.
type LineCol struct {
	Line int
	Col  int
}

// LineIndex converts between byte offsets and line/column positions.
type LineIndex struct {
	text   string
	starts []int
}

// NewLineIndex indexes the line starts of text.
func NewLineIndex(text string) *LineIndex {
	starts := []int{0}
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			starts = append(starts, i+1)
		}
	}
	return &LineIndex{text: text, starts: starts}
}

// LineCount returns the number of lines, counting a trailing partial line.
func (li *LineIndex) LineCount() int { return len(li.starts) }

// LineCol returns the position of offset. Offsets past the end clamp to it.
func (li *LineIndex) LineCol(offset int) LineCol {
	offset = min(max(offset, 0), len(li.text))
	line := sort.Search(len(li.starts), func(i int) bool { return li.starts[i] > offset }) - 1
	return LineCol{Line: line, Col: offset - li.starts[line]}
}

// Offset returns the byte offset of pos and whether pos is inside the text.
func (li *LineIndex) Offset(pos LineCol) (int, bool) {
	if pos.Line < 0 || pos.Line >= len(li.starts) || pos.Col < 0 {
		return 0, false
	}
	off := li.starts[pos.Line] + pos.Col
	if off > li.lineEnd(pos.Line) {
		return 0, false
	}
	return off, true
}

// OffsetUTF16 is like Offset but interprets the column in UTF-16 code units,
// which is how editors speaking LSP count characters.
func (li *LineIndex) OffsetUTF16(line, char16 int) (int, bool) {
	if line < 0 || line >= len(li.starts) || char16 < 0 {
		return 0, false
	}
	off, end := li.starts[line], li.lineEnd(line)
	for units := 0; units < char16; {
		if off >= end {
			return 0, false
		}
		r, size := utf8.DecodeRuneInString(li.text[off:])
		units += utf16.RuneLen(r)
		off += size
	}
	return off, true
}

// PositionUTF16 returns the line and UTF-16 column of offset.
func (li *LineIndex) PositionUTF16(offset int) (line, char16 int) {
	lc := li.LineCol(offset)
	start := li.starts[lc.Line]
	for _, r := range li.text[start : start+lc.Col] {
		char16 += utf16.RuneLen(r)
	}
	return lc.Line, char16
}

func (li *LineIndex) lineEnd(line int) int {
	if line+1 < len(li.starts) {
		return li.starts[line+1] - 1
	}
	return len(li.text)
}
