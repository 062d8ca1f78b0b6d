// Package synth synthesises Rust syntax from fragments of existing trees.
// Fragments keep their source text verbatim; only indentation is rewritten
// when they are placed at a new nesting depth.
package synth

import (
	"cmp"
	"strings"

	"github.com/mamaar/rsrefactor/pkg/syntax"
	"github.com/mamaar/rsrefactor/pkg/syntax/edit"
)

// Snippet is a piece of source text together with the indentation level it
// was written at and the ranges of string literals inside it.
type Snippet struct {
	Text      string
	Indent    edit.IndentLevel
	Protected []syntax.TextRange
}

// FromNode copies n's text out of its tree.
func FromNode(n *syntax.Node) Snippet {
	base := n.Range().Start
	var protected []syntax.TextRange
	for d := range n.Preorder() {
		if d.Kind() == syntax.KindString {
			r := d.Range()
			protected = append(protected, syntax.TextRange{Start: r.Start - base, End: r.End - base})
		}
	}
	return Snippet{
		Text:      n.Text(),
		Indent:    edit.IndentOf(n.Tree(), n),
		Protected: protected,
	}
}

// Raw wraps text that was produced at the given level.
func Raw(text string, level edit.IndentLevel) Snippet {
	return Snippet{Text: text, Indent: level}
}

// At returns the snippet's text with continuation lines moved to level.
func (s Snippet) At(level edit.IndentLevel) string {
	return s.at(level, edit.IndentUnit)
}

func (s Snippet) at(level edit.IndentLevel, unit string) string {
	return edit.ReindentWith(s.Text, s.Indent, level, unit, s.Protected)
}

// LetStmt builds `let <pat> = <init>;`.
func LetStmt(pat, init Snippet) Snippet {
	var b strings.Builder
	b.WriteString("let ")
	patAt := b.Len()
	b.WriteString(pat.At(init.Indent))
	b.WriteString(" = ")
	initAt := b.Len()
	b.WriteString(init.Text)
	b.WriteByte(';')

	var protected []syntax.TextRange
	if pat.Indent == init.Indent {
		protected = append(protected, shift(pat.Protected, patAt)...)
	}
	protected = append(protected, shift(init.Protected, initAt)...)
	return Snippet{Text: b.String(), Indent: init.Indent, Protected: protected}
}

func shift(ranges []syntax.TextRange, by int) []syntax.TextRange {
	out := make([]syntax.TextRange, len(ranges))
	for i, r := range ranges {
		out[i] = syntax.TextRange{Start: r.Start + by, End: r.End + by}
	}
	return out
}

// Block is a block expression: statements in order followed by an optional
// tail expression.
type Block struct {
	Stmts []Snippet
	Tail  *Snippet
	// Unit is one level of indentation in the output. Empty means
	// edit.IndentUnit.
	Unit string
}

func BlockExpr(stmts []Snippet, tail *Snippet) *Block {
	return &Block{Stmts: stmts, Tail: tail}
}

// IndentWith sets the indentation unit and returns b.
func (b *Block) IndentWith(unit string) *Block {
	b.Unit = unit
	return b
}

// Render formats the block as it would appear at the given nesting level:
// the opening brace inline, one line per statement one level deeper, and the
// closing brace on its own line at level.
func (b *Block) Render(level edit.IndentLevel) string {
	if len(b.Stmts) == 0 && b.Tail == nil {
		return "{}"
	}
	unit := cmp.Or(b.Unit, edit.IndentUnit)
	inner := level + 1
	var sb strings.Builder
	sb.WriteString("{\n")
	write := func(s Snippet) {
		sb.WriteString(inner.With(unit))
		sb.WriteString(s.at(inner, unit))
		sb.WriteByte('\n')
	}
	for _, s := range b.Stmts {
		write(s)
	}
	if b.Tail != nil {
		write(*b.Tail)
	}
	sb.WriteString(level.With(unit))
	sb.WriteByte('}')
	return sb.String()
}
