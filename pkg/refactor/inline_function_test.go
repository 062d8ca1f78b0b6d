package refactor

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamaar/rsrefactor/pkg/syntax/edit"
	"github.com/mamaar/rsrefactor/pkg/workspace/workspacetest"
)

func assistContext(t *testing.T, fx *workspacetest.Fixture, logger *slog.Logger) *AssistContext {
	t.Helper()
	require.True(t, fx.HasCursor, "fixture needs a cursor")
	actx, err := NewAssistContext(context.Background(), fx.Snapshot, fx.FileID(t, fx.CursorFile), fx.CursorOffset, logger)
	require.NoError(t, err)
	return actx
}

// checkInline applies the inline assist at the cursor of fixture and compares
// the rewritten cursor file with after.
func checkInline(t *testing.T, fixture, after string) {
	t.Helper()
	fx := workspacetest.Parse(t, fixture)
	a, ok := InlineFunction(assistContext(t, fx, nil))
	require.True(t, ok, "inline should be applicable")
	require.Len(t, a.Changes, 1)

	got, err := edit.Apply(fx.Files[fx.CursorFile], a.Changes)
	require.NoError(t, err)
	assert.Equal(t, after, got)
}

func checkNotApplicable(t *testing.T, fixture string) {
	t.Helper()
	fx := workspacetest.Parse(t, fixture)
	_, ok := InlineFunction(assistContext(t, fx, nil))
	assert.False(t, ok)
}

func TestInlineFunction(t *testing.T) {
	tests := []struct {
		name   string
		before string
		after  string
	}{
		{
			name: "no arguments",
			before: `-- /main.rs --
fn foo() { println!("Hello, World!"); }
fn main() {
    fo$0o();
}
`,
			after: `fn foo() { println!("Hello, World!"); }
fn main() {
    {
        println!("Hello, World!");
    };
}
`,
		},
		{
			name: "argument with side effects is bound once",
			before: `-- /main.rs --
fn foo(name: String) {
    println!("Hello, {}!", name);
}
fn main() {
    foo$0(String::from("Michael"));
}
`,
			after: `fn foo(name: String) {
    println!("Hello, {}!", name);
}
fn main() {
    {
        let name = String::from("Michael");
        println!("Hello, {}!", name);
    };
}
`,
		},
		{
			name: "wildcard parameter is still evaluated",
			before: `-- /main.rs --
fn foo(_: i32) { bar(); }
fn bar() {}
fn main() {
    fo$0o(7);
}
`,
			after: `fn foo(_: i32) { bar(); }
fn bar() {}
fn main() {
    {
        let _ = 7;
        bar();
    };
}
`,
		},
		{
			name: "tab indented call site keeps tabs",
			before: "-- /main.rs --\n" +
				"fn double(v: u32) -> u32 {\n\tlet r = v * 2;\n\tr\n}\n" +
				"fn main() {\n\tif true {\n\t\tdouble$0(3);\n\t}\n}\n",
			after: "fn double(v: u32) -> u32 {\n\tlet r = v * 2;\n\tr\n}\n" +
				"fn main() {\n\tif true {\n\t\t{\n\t\t\tlet v = 3;\n\t\t\tlet r = v * 2;\n\t\t\tr\n\t\t};\n\t}\n}\n",
		},
		{
			name: "multiple statements and a tail",
			before: `-- /main.rs --
fn foo(a: u32, b: u32) -> u32 {
    let x = a + b;
    let y = x - b;
    x * y
}
fn main() {
    let x = foo$0(1, 2);
}
`,
			after: `fn foo(a: u32, b: u32) -> u32 {
    let x = a + b;
    let y = x - b;
    x * y
}
fn main() {
    let x = {
        let a = 1;
        let b = 2;
        let x = a + b;
        let y = x - b;
        x * y
    };
}
`,
		},
		{
			name: "nested call site is reindented",
			before: `-- /main.rs --
fn double(v: u32) -> u32 {
    let r = v * 2;
    r
}
fn main() {
    if true {
        double$0(3);
    }
}
`,
			after: `fn double(v: u32) -> u32 {
    let r = v * 2;
    r
}
fn main() {
    if true {
        {
            let v = 3;
            let r = v * 2;
            r
        };
    }
}
`,
		},
		{
			name: "associated function without self",
			before: `-- /main.rs --
struct S;
impl S {
    fn new(x: u32) -> u32 {
        x + 1
    }
}
fn main() {
    let v = S::ne$0w(2);
}
`,
			after: `struct S;
impl S {
    fn new(x: u32) -> u32 {
        x + 1
    }
}
fn main() {
    let v = {
        let x = 2;
        x + 1
    };
}
`,
		},
		{
			name: "mutable parameter keeps its pattern",
			before: `-- /main.rs --
fn inc(mut n: u32) -> u32 {
    n += 1;
    n
}
fn main() {
    let m = inc$0(5);
}
`,
			after: `fn inc(mut n: u32) -> u32 {
    n += 1;
    n
}
fn main() {
    let m = {
        let mut n = 5;
        n += 1;
        n
    };
}
`,
		},
		{
			name: "multiline string literal is copied verbatim",
			before: `-- /main.rs --
fn banner() {
    let s = "a
  b";
    print(s);
}
fn main() {
    if ok {
        banner$0();
    }
}
`,
			after: `fn banner() {
    let s = "a
  b";
    print(s);
}
fn main() {
    if ok {
        {
            let s = "a
  b";
            print(s);
        };
    }
}
`,
		},
		{
			name: "callee in a dependency crate",
			before: `crate app /app/main.rs dep
crate dep /dep/lib.rs
-- /app/main.rs --
fn main() {
    let y = dep::helper$0(1);
}
-- /dep/lib.rs --
pub fn helper(n: i32) -> i32 {
    n * 2
}
`,
			after: `fn main() {
    let y = {
        let n = 1;
        n * 2
    };
}
`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkInline(t, tt.before, tt.after)
		})
	}
}

func TestInlineFunctionNotApplicable(t *testing.T) {
	tests := []struct {
		name    string
		fixture string
	}{
		{
			name: "private function in another module",
			fixture: `-- /main.rs --
mod private {
    fn add(a: u32, b: u32) -> u32 { a + b }
}
fn main() {
    private::ad$0d(1, 2);
}
`,
		},
		{
			name: "method call",
			fixture: `-- /main.rs --
struct Foo;
impl Foo {
    fn bar(&self) {}
}
fn main() {
    Foo.bar$0();
}
`,
		},
		{
			name: "arity mismatch",
			fixture: `-- /main.rs --
fn foo(a: u32) {}
fn main() {
    foo$0(1, 2);
}
`,
		},
		{
			name: "self parameter through a path call",
			fixture: `-- /main.rs --
struct S;
impl S {
    fn m(self) {}
}
fn main() {
    S::m$0(S);
}
`,
		},
		{
			name: "tuple struct constructor",
			fixture: `-- /main.rs --
struct P(u32);
fn main() {
    let p = P$0(1);
}
`,
		},
		{
			name: "trait function without a body",
			fixture: `-- /main.rs --
trait T {
    fn f();
}
fn main() {
    T::f$0();
}
`,
		},
		{
			name: "cursor on an argument",
			fixture: `-- /main.rs --
fn foo(a: u32) {}
fn main() {
    let bar = 1;
    foo(ba$0r);
}
`,
		},
		{
			name: "unresolved callee",
			fixture: `-- /main.rs --
fn main() {
    missing$0(1);
}
`,
		},
		{
			name: "cursor outside any call",
			fixture: `-- /main.rs --
fn foo() {}
fn ma$0in() {
    foo();
}
`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkNotApplicable(t, tt.fixture)
		})
	}
}

func TestInlineFunctionLogsReason(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	fx := workspacetest.Single(t, "fn foo(a: u32) {}\nfn main() {\n    foo$0();\n}\n")

	_, ok := InlineFunction(assistContext(t, fx, logger))
	require.False(t, ok)

	assert.Contains(t, buf.String(), "assist=inline_function")
	assert.Contains(t, buf.String(), "callee takes 1 arguments, call passes 0")
}

func TestInlineFunctionAssist(t *testing.T) {
	fx := workspacetest.Single(t, "fn foo() {}\nfn main() {\n    foo$0();\n}\n")
	a, ok := InlineFunction(assistContext(t, fx, nil))
	require.True(t, ok)

	assert.Equal(t, "inline_function", a.ID)
	assert.Equal(t, KindRefactorInline, a.Kind)
	assert.Equal(t, "Inline `foo`", a.Label)
	assert.Equal(t, "foo()", fx.Files[fx.CursorFile][a.Target.Start:a.Target.End])

	plan := a.Plan()
	assert.Equal(t, []string{"/main.rs"}, plan.AffectedFiles)
	assert.True(t, plan.Reversible)
	assert.Equal(t, "foo()", plan.Changes[0].OldText)
	assert.Equal(t, "{}", plan.Changes[0].NewText)
}

func TestNewAssistContextErrors(t *testing.T) {
	fx := workspacetest.Single(t, "fn main() {}\n")
	_, err := NewAssistContext(context.Background(), fx.Snapshot, 42, 0, nil)
	assert.Error(t, err)

	_, err = NewAssistContext(context.Background(), fx.Snapshot, fx.FileID(t, "/main.rs"), 1000, nil)
	assert.Error(t, err)
}
