package edit

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mamaar/rsrefactor/pkg/syntax"
)

func TestLevelOf(t *testing.T) {
	tests := []struct {
		line string
		want IndentLevel
	}{
		{"fn main() {", 0},
		{"    foo();", 1},
		{"        foo();", 2},
		{"\tfoo();", 1},
		{"      foo();", 1},
		{"        ", 2},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, LevelOf(tt.line), "%q", tt.line)
	}
}

func TestIndentOf(t *testing.T) {
	src := "fn main() {\n    let x = foo(1);\n}\n"
	call := syntax.NewNode(syntax.KindCallExpr, syntax.TextRange{Start: 24, End: 30}, "")
	root := syntax.NewNode(syntax.KindSourceFile, syntax.TextRange{Start: 0, End: len(src)}, "", call)
	tree := syntax.NewTree(1, "main.rs", src, root)

	assert.Equal(t, "foo(1)", call.Text())
	assert.Equal(t, IndentLevel(1), IndentOf(tree, call))
	assert.Equal(t, IndentLevel(0), IndentOf(tree, root))
}

func TestReindent(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		from, to  IndentLevel
		protected []syntax.TextRange
		want      string
	}{
		{
			name: "single line unchanged",
			text: "x * y",
			from: 1, to: 3,
			want: "x * y",
		},
		{
			name: "deeper",
			text: "if a {\n        b();\n    }",
			from: 1, to: 2,
			want: "if a {\n            b();\n        }",
		},
		{
			name: "shallower",
			text: "if a {\n            b();\n        }",
			from: 2, to: 0,
			want: "if a {\n    b();\n}",
		},
		{
			name: "blank lines lose whitespace",
			text: "{\n        a();\n      \n        b();\n    }",
			from: 1, to: 2,
			want: "{\n            a();\n\n            b();\n        }",
		},
		{
			name:      "string continuation untouched",
			text:      "let s = \"a\n  b\";",
			from:      1,
			to:        3,
			protected: []syntax.TextRange{{Start: 8, End: 15}},
			want:      "let s = \"a\n  b\";",
		},
		{
			name: "under-indented lines clamp to target",
			text: "foo(\nbar)",
			from: 1, to: 2,
			want: "foo(\n        bar)",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Reindent(tt.text, tt.from, tt.to, tt.protected))
		})
	}
}

func TestUnitOf(t *testing.T) {
	src := "fn main() {\n\tfoo(1);\n    bar(2);\n}\n"
	foo := syntax.NewNode(syntax.KindCallExpr, syntax.TextRange{Start: 13, End: 19}, "")
	bar := syntax.NewNode(syntax.KindCallExpr, syntax.TextRange{Start: 25, End: 31}, "")
	root := syntax.NewNode(syntax.KindSourceFile, syntax.TextRange{Start: 0, End: len(src)}, "", foo, bar)
	tree := syntax.NewTree(1, "main.rs", src, root)

	assert.Equal(t, "foo(1)", foo.Text())
	assert.Equal(t, "bar(2)", bar.Text())
	assert.Equal(t, "\t", UnitOf(tree, foo))
	assert.Equal(t, IndentUnit, UnitOf(tree, bar))
	assert.Equal(t, IndentUnit, UnitOf(tree, root))
}

func TestReindentWithTabs(t *testing.T) {
	assert.Equal(t, "if a {\n\t\tb();\n\t}", ReindentWith("if a {\n        b();\n    }", 1, 1, "\t", nil))
	assert.Equal(t, "if a {\n\t\t\tb();\n\t\t}", ReindentWith("if a {\n\t\tb();\n\t}", 1, 2, "\t", nil))
	assert.Equal(t, "\t\t", IndentLevel(2).With("\t"))
}
