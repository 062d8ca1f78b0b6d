// Package edit builds and applies text edits against syntax trees.
package edit

import (
	"strings"

	"github.com/mamaar/rsrefactor/pkg/syntax"
)

// IndentUnit is the text of one indentation level.
const IndentUnit = "    "

// IndentLevel is a nesting depth in units of IndentUnit.
type IndentLevel int

func (l IndentLevel) String() string {
	return l.With(IndentUnit)
}

// With renders the level using unit for each step, such as a tab.
func (l IndentLevel) With(unit string) string {
	if l <= 0 {
		return ""
	}
	return strings.Repeat(unit, int(l))
}

// LevelOf measures the leading whitespace of line. A tab counts as a full
// level; partial levels round down.
func LevelOf(line string) IndentLevel {
	cols := 0
	for _, r := range line {
		switch r {
		case ' ':
			cols++
		case '\t':
			cols += len(IndentUnit)
		default:
			return IndentLevel(cols / len(IndentUnit))
		}
	}
	return IndentLevel(cols / len(IndentUnit))
}

// IndentOf returns the indentation level of the line node starts on.
func IndentOf(tree *syntax.Tree, node *syntax.Node) IndentLevel {
	return LevelOf(linePrefix(tree, node))
}

// UnitOf returns the indentation unit of the line node starts on: a tab when
// that line is indented with tabs, IndentUnit otherwise.
func UnitOf(tree *syntax.Tree, node *syntax.Node) string {
	if strings.HasPrefix(linePrefix(tree, node), "\t") {
		return "\t"
	}
	return IndentUnit
}

func linePrefix(tree *syntax.Tree, node *syntax.Node) string {
	src := tree.Source()
	start := node.Range().Start
	lineStart := strings.LastIndexByte(src[:start], '\n') + 1
	return src[lineStart:start]
}

// Reindent moves every line of text but the first from level from to level
// to. The first line is positioned by the caller. Blank lines lose their
// whitespace and lines that begin inside a protected range, such as the
// continuation of a multi-line string literal, are copied unchanged.
// Protected ranges are relative to the start of text.
func Reindent(text string, from, to IndentLevel, protected []syntax.TextRange) string {
	return ReindentWith(text, from, to, IndentUnit, protected)
}

// ReindentWith is Reindent writing each level as unit. Lines are rewritten
// even when from equals to so that their indentation uses unit.
func ReindentWith(text string, from, to IndentLevel, unit string, protected []syntax.TextRange) string {
	if (from == to && unit == IndentUnit) || !strings.Contains(text, "\n") {
		return text
	}
	lines := strings.Split(text, "\n")
	var b strings.Builder
	b.Grow(len(text))
	b.WriteString(lines[0])
	offset := len(lines[0]) + 1
	for _, line := range lines[1:] {
		b.WriteByte('\n')
		start := offset
		offset += len(line) + 1
		if insideAny(protected, start) {
			b.WriteString(line)
			continue
		}
		trimmed := strings.TrimLeft(line, " \t")
		if trimmed == "" {
			continue
		}
		extra := LevelOf(line) - from
		if extra < 0 {
			extra = 0
		}
		b.WriteString((to + extra).With(unit))
		b.WriteString(trimmed)
	}
	return b.String()
}

func insideAny(ranges []syntax.TextRange, offset int) bool {
	for _, r := range ranges {
		if r.Start < offset && offset < r.End {
			return true
		}
	}
	return false
}
