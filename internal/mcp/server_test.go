package mcp

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamaar/rsrefactor/pkg/types"
)

const mainRS = `fn greet(name: &str) {
    println!("Hello, {}!", name);
}

fn main() {
    greet("Ada");
}
`

func writeWorkspace(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	files := map[string]string{
		"Cargo.toml":        "[package]\nname = \"demo\"\n\n[dependencies]\nshapes = { path = \"shapes\" }\n",
		"src/main.rs":       mainRS,
		"shapes/Cargo.toml": "[package]\nname = \"shapes\"\n",
		"shapes/src/lib.rs": "pub struct Circle;\npub fn circle_area(c: &Circle) -> f64 { 0.0 }\n",
	}
	for rel, text := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(text), 0o644))
	}
	return root
}

func newState(t *testing.T) *MCPServer {
	t.Helper()
	state := NewMCPServer(nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	t.Cleanup(state.Close)
	return state
}

func call(t *testing.T, h server.ToolHandlerFunc, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	res, err := h(context.Background(), req)
	require.NoError(t, err)
	return res
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.Len(t, res.Content, 1)
	tc, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content, got %T", res.Content[0])
	return tc.Text
}

func decode[T any](t *testing.T, res *mcp.CallToolResult) T {
	t.Helper()
	require.False(t, res.IsError, resultText(t, res))
	var out T
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &out))
	return out
}

func loaded(t *testing.T) (*MCPServer, string) {
	t.Helper()
	state := newState(t)
	root := writeWorkspace(t)
	out := decode[LoadWorkspaceOutput](t, call(t, loadWorkspaceHandler(state), map[string]any{"path": root}))
	assert.ElementsMatch(t, []string{"demo", "shapes"}, out.Crates)
	assert.Equal(t, 2, out.Files)
	assert.False(t, out.Watching)
	return state, root
}

func TestToolsRequireWorkspace(t *testing.T) {
	state := newState(t)
	handlers := map[string]server.ToolHandlerFunc{
		"inline_function":    inlineFunctionHandler(state),
		"list_assists":       listAssistsHandler(state),
		"find_exact_imports": findImportsHandler(state, types.ExactImports),
	}
	for name, h := range handlers {
		t.Run(name, func(t *testing.T) {
			res := call(t, h, map[string]any{"file": "src/main.rs", "name": "x"})
			assert.True(t, res.IsError)
			assert.Contains(t, resultText(t, res), "load_workspace")
		})
	}

	status := decode[WorkspaceStatusOutput](t, call(t, workspaceStatusHandler(state), nil))
	assert.False(t, status.Loaded)
}

func TestLoadWorkspaceErrors(t *testing.T) {
	state := newState(t)
	res := call(t, loadWorkspaceHandler(state), map[string]any{})
	assert.True(t, res.IsError, "path is required")

	res = call(t, loadWorkspaceHandler(state), map[string]any{"path": t.TempDir()})
	assert.True(t, res.IsError, "a directory without crates fails")
}

func TestWorkspaceStatus(t *testing.T) {
	state, root := loaded(t)
	status := decode[WorkspaceStatusOutput](t, call(t, workspaceStatusHandler(state), nil))
	assert.True(t, status.Loaded)
	assert.Equal(t, root, status.RootPath)
	assert.Equal(t, uint64(1), status.Version)
	assert.ElementsMatch(t, []CrateInfo{{Name: "demo", Files: 1}, {Name: "shapes", Files: 1}}, status.Crates)
}

func TestListAssists(t *testing.T) {
	state, _ := loaded(t)
	assists := decode[[]AssistOutput](t, call(t, listAssistsHandler(state), map[string]any{
		"file": "src/main.rs", "line": float64(6), "column": float64(6),
	}))
	require.Len(t, assists, 1)
	assert.Equal(t, "inline_function", assists[0].ID)
	assert.Equal(t, "Inline `greet`", assists[0].Label)
	assert.Equal(t, 1, assists[0].Changes)

	res := call(t, listAssistsHandler(state), map[string]any{})
	assert.True(t, res.IsError, "file is required")
}

func TestInlineFunction(t *testing.T) {
	state, root := loaded(t)
	mainPath := filepath.Join(root, "src", "main.rs")
	args := map[string]any{"file": mainPath, "line": float64(6), "column": float64(6), "dry_run": true}

	preview := decode[PlanResult](t, call(t, inlineFunctionHandler(state), args))
	assert.False(t, preview.Applied)
	assert.Equal(t, []string{mainPath}, preview.AffectedFiles)
	assert.Contains(t, preview.Preview, "-    greet(\"Ada\");")
	got, _ := os.ReadFile(mainPath)
	assert.Equal(t, mainRS, string(got), "dry run leaves the file alone")

	args["dry_run"] = false
	applied := decode[PlanResult](t, call(t, inlineFunctionHandler(state), args))
	assert.True(t, applied.Applied)
	got, _ = os.ReadFile(mainPath)
	assert.Contains(t, string(got), "let name = \"Ada\";")

	snap, err := state.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, uint64(2), snap.Version(), "the written file is synced into a new snapshot")

	res := call(t, inlineFunctionHandler(state), args)
	assert.True(t, res.IsError, "the call is gone after inlining")
}

func TestFindImports(t *testing.T) {
	state, _ := loaded(t)

	exact := decode[ImportSearchOutput](t, call(t, findImportsHandler(state, types.ExactImports), map[string]any{
		"name": "Circle", "file": "src/main.rs",
	}))
	assert.Equal(t, "exact", exact.Mode)
	require.Len(t, exact.Candidates, 1)
	assert.Equal(t, "shapes::Circle", exact.Candidates[0].Path)

	similar := decode[ImportSearchOutput](t, call(t, findImportsHandler(state, types.SimilarImports), map[string]any{
		"name": "circ", "crate": "demo",
	}))
	assert.Equal(t, "similar", similar.Mode)
	var paths []string
	for _, c := range similar.Candidates {
		paths = append(paths, c.Path)
	}
	assert.Equal(t, []string{"shapes::Circle", "shapes::circle_area"}, paths)

	limited := decode[ImportSearchOutput](t, call(t, findImportsHandler(state, types.SimilarImports), map[string]any{
		"name": "circ", "crate": "demo", "limit": float64(1),
	}))
	assert.Len(t, limited.Candidates, 1)

	res := call(t, findImportsHandler(state, types.ExactImports), map[string]any{"name": "Circle", "crate": "nope"})
	assert.True(t, res.IsError)
}
