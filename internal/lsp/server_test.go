package lsp

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamaar/rsrefactor/pkg/syntax"
)

const mainRS = `fn double(x: i32) -> i32 {
    x * 2
}

fn main() {
    let y = double(21);
}
`

// callPos is the zero-based position of the double call in mainRS.
var callPos = Position{Line: 5, Character: 12}

func writeWorkspace(t *testing.T) (root, mainPath string) {
	t.Helper()
	root = t.TempDir()
	files := map[string]string{
		"Cargo.toml":      "[package]\nname = \"demo\"\n\n[dependencies]\nutil = { path = \"util\" }\n",
		"src/main.rs":     mainRS,
		"util/Cargo.toml": "[package]\nname = \"util\"\n",
		"util/src/lib.rs": "pub mod text {\n    pub fn shout(s: &str) -> String { s.to_uppercase() }\n}\n",
	}
	for rel, text := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(text), 0o644))
	}
	return root, filepath.Join(root, "src", "main.rs")
}

func request(t *testing.T, id any, method string, params any) *Message {
	t.Helper()
	m := &Message{JSONRPC: "2.0", ID: id, Method: method}
	if params != nil {
		data, err := json.Marshal(params)
		require.NoError(t, err)
		m.Params = data
	}
	return m
}

func notification(t *testing.T, method string, params any) *Message {
	return request(t, nil, method, params)
}

func initialized(t *testing.T) (*Server, string) {
	t.Helper()
	root, mainPath := writeWorkspace(t)
	s := NewServer(nil, "test", nil)
	resp, err := s.handleMessage(context.Background(), request(t, 1, "initialize", InitializeParams{RootURI: pathToURI(root)}))
	require.NoError(t, err)
	require.Nil(t, resp.Error)
	return s, mainPath
}

func codeActions(t *testing.T, s *Server, path string, pos Position, only ...string) []CodeAction {
	t.Helper()
	resp, err := s.handleMessage(context.Background(), request(t, 2, "textDocument/codeAction", CodeActionParams{
		TextDocument: TextDocumentIdentifier{URI: pathToURI(path)},
		Range:        Range{Start: pos, End: pos},
		Context:      CodeActionContext{Only: only},
	}))
	require.NoError(t, err)
	require.Nil(t, resp.Error, "code action failed: %+v", resp.Error)
	actions, ok := resp.Result.([]CodeAction)
	require.True(t, ok, "unexpected result %T", resp.Result)
	return actions
}

// applyEdits applies LSP text edits to text, last edit first.
func applyEdits(t *testing.T, text string, edits []TextEdit) string {
	t.Helper()
	lines := syntax.NewLineIndex(text)
	type span struct {
		start, end int
		text       string
	}
	var spans []span
	for _, e := range edits {
		start, ok := lines.OffsetUTF16(e.Range.Start.Line, e.Range.Start.Character)
		require.True(t, ok)
		end, ok := lines.OffsetUTF16(e.Range.End.Line, e.Range.End.Character)
		require.True(t, ok)
		spans = append(spans, span{start, end, e.NewText})
	}
	slices.SortFunc(spans, func(a, b span) int { return b.start - a.start })
	for _, sp := range spans {
		text = text[:sp.start] + sp.text + text[sp.end:]
	}
	return text
}

func TestServer_Initialize(t *testing.T) {
	root, _ := writeWorkspace(t)
	s := NewServer(nil, "1.2.3", nil)

	resp, err := s.handleMessage(context.Background(), request(t, 1, "initialize", InitializeParams{RootURI: pathToURI(root)}))
	require.NoError(t, err)
	require.Nil(t, resp.Error)

	result, ok := resp.Result.(InitializeResult)
	require.True(t, ok, "expected InitializeResult, got %T", resp.Result)
	assert.Equal(t, "rsrefactor-lsp", result.ServerInfo.Name)
	assert.Equal(t, "1.2.3", result.ServerInfo.Version)
	assert.Equal(t, TextDocumentSyncKindFull, result.Capabilities.TextDocumentSync.Change)
	assert.True(t, result.Capabilities.TextDocumentSync.OpenClose)
	assert.Equal(t, []string{"refactor.inline", "quickfix"}, result.Capabilities.CodeActionProvider.CodeActionKinds)
	require.NotNil(t, s.Snapshot())
	assert.Contains(t, s.Snapshot().Crates(), "demo")
}

func TestServer_InitializeErrors(t *testing.T) {
	s := NewServer(nil, "test", nil)
	ctx := context.Background()

	resp, err := s.handleMessage(ctx, request(t, 1, "initialize", InitializeParams{}))
	require.NoError(t, err)
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeInvalidParams, resp.Error.Code)

	resp, err = s.handleMessage(ctx, request(t, 2, "initialize", InitializeParams{RootURI: pathToURI(t.TempDir())}))
	require.NoError(t, err)
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeInternalError, resp.Error.Code)
	assert.Nil(t, s.Snapshot())
}

func TestServer_RequiresInitialize(t *testing.T) {
	s := NewServer(nil, "test", nil)
	ctx := context.Background()

	resp, err := s.handleMessage(ctx, request(t, 1, "textDocument/codeAction", CodeActionParams{}))
	require.NoError(t, err)
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeServerNotInitialized, resp.Error.Code)

	resp, err = s.handleMessage(ctx, notification(t, "textDocument/didOpen", DidOpenTextDocumentParams{}))
	require.NoError(t, err)
	assert.Nil(t, resp)
}

func TestServer_CodeActionInline(t *testing.T) {
	s, mainPath := initialized(t)

	actions := codeActions(t, s, mainPath, callPos)
	require.Len(t, actions, 1)
	assert.Equal(t, "Inline `double`", actions[0].Title)
	assert.Equal(t, "refactor.inline", actions[0].Kind)

	require.NotNil(t, actions[0].Edit)
	edits := actions[0].Edit.Changes[pathToURI(mainPath)]
	require.NotEmpty(t, edits)
	assert.Equal(t, `fn double(x: i32) -> i32 {
    x * 2
}

fn main() {
    let y = {
        let x = 21;
        x * 2
    };
}
`, applyEdits(t, mainRS, edits))

	assert.Empty(t, codeActions(t, s, mainPath, Position{Line: 0, Character: 0}))
	assert.Empty(t, codeActions(t, s, mainPath, callPos, "quickfix"))
	assert.Len(t, codeActions(t, s, mainPath, callPos, "refactor"), 1)
}

func TestServer_CodeActionUnknownFile(t *testing.T) {
	s, _ := initialized(t)
	assert.Empty(t, codeActions(t, s, filepath.Join(t.TempDir(), "other.rs"), Position{}))

	resp, err := s.handleMessage(context.Background(), request(t, 3, "textDocument/codeAction", CodeActionParams{
		TextDocument: TextDocumentIdentifier{URI: pathToURI(s.Snapshot().Files()[0])},
		Range:        Range{Start: Position{Line: 400}},
	}))
	require.NoError(t, err)
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeInvalidParams, resp.Error.Code)
}

func TestServer_DocumentOverlay(t *testing.T) {
	s, mainPath := initialized(t)
	ctx := context.Background()
	uri := pathToURI(mainPath)
	unsaved := "fn main() {\n    let s = shout(\"hi\");\n}\n"

	_, err := s.handleMessage(ctx, notification(t, "textDocument/didOpen", DidOpenTextDocumentParams{
		TextDocument: TextDocumentItem{URI: uri, LanguageID: "rust", Version: 1, Text: mainRS},
	}))
	require.NoError(t, err)
	_, err = s.handleMessage(ctx, notification(t, "textDocument/didChange", DidChangeTextDocumentParams{
		TextDocument:   VersionedTextDocumentIdentifier{URI: uri, Version: 2},
		ContentChanges: []TextDocumentContentChangeEvent{{Text: unsaved}},
	}))
	require.NoError(t, err)

	actions := codeActions(t, s, mainPath, Position{Line: 1, Character: 12})
	require.Len(t, actions, 1)
	assert.Equal(t, "Import `util::text::shout`", actions[0].Title)
	assert.Equal(t, "quickfix", actions[0].Kind)
	got := applyEdits(t, unsaved, actions[0].Edit.Changes[uri])
	assert.True(t, strings.HasPrefix(got, "use util::text::shout;\n"), got)

	disk, err := os.ReadFile(mainPath)
	require.NoError(t, err)
	assert.Equal(t, mainRS, string(disk))

	_, err = s.handleMessage(ctx, notification(t, "textDocument/didClose", DidCloseTextDocumentParams{
		TextDocument: TextDocumentIdentifier{URI: uri},
	}))
	require.NoError(t, err)
	actions = codeActions(t, s, mainPath, callPos)
	require.Len(t, actions, 1)
	assert.Equal(t, "Inline `double`", actions[0].Title)
}

func TestServer_IncrementalChangeRejected(t *testing.T) {
	s, mainPath := initialized(t)
	before := s.Snapshot()
	_, err := s.handleMessage(context.Background(), notification(t, "textDocument/didChange", DidChangeTextDocumentParams{
		TextDocument:   VersionedTextDocumentIdentifier{URI: pathToURI(mainPath), Version: 2},
		ContentChanges: []TextDocumentContentChangeEvent{{Range: &Range{}, Text: "x"}},
	}))
	assert.Error(t, err)
	assert.Same(t, before, s.Snapshot())
}

func TestServer_ShutdownRejectsRequests(t *testing.T) {
	s, mainPath := initialized(t)
	ctx := context.Background()

	resp, err := s.handleMessage(ctx, request(t, 5, "shutdown", nil))
	require.NoError(t, err)
	assert.Nil(t, resp.Error)

	resp, err = s.handleMessage(ctx, request(t, 6, "textDocument/codeAction", CodeActionParams{
		TextDocument: TextDocumentIdentifier{URI: pathToURI(mainPath)},
	}))
	require.NoError(t, err)
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeInvalidRequest, resp.Error.Code)

	resp, err = s.handleMessage(ctx, request(t, 7, "textDocument/hover", nil))
	require.NoError(t, err)
	assert.Equal(t, CodeInvalidRequest, resp.Error.Code)
}

func TestServer_UnknownMethod(t *testing.T) {
	s, _ := initialized(t)
	resp, err := s.handleMessage(context.Background(), request(t, 9, "textDocument/hover", nil))
	require.NoError(t, err)
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeMethodNotFound, resp.Error.Code)
}

func encode(t *testing.T, msgs ...*Message) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	conn := NewConnection(nil, &buf, nil)
	for _, m := range msgs {
		require.NoError(t, conn.WriteMessage(m))
	}
	return &buf
}

func decodeAll(t *testing.T, r io.Reader) []*Message {
	t.Helper()
	conn := NewConnection(r, nil, nil)
	var out []*Message
	for {
		m, err := conn.ReadMessage()
		if err == io.EOF {
			return out
		}
		require.NoError(t, err)
		out = append(out, m)
	}
}

func TestServer_Session(t *testing.T) {
	root, mainPath := writeWorkspace(t)
	in := encode(t,
		request(t, 1, "initialize", InitializeParams{RootURI: pathToURI(root)}),
		notification(t, "initialized", struct{}{}),
		request(t, 2, "textDocument/codeAction", CodeActionParams{
			TextDocument: TextDocumentIdentifier{URI: pathToURI(mainPath)},
			Range:        Range{Start: callPos, End: callPos},
		}),
		request(t, 3, "shutdown", nil),
		notification(t, "exit", nil),
	)
	var out bytes.Buffer

	err := NewServer(nil, "test", nil).Serve(context.Background(), in, &out)
	require.NoError(t, err)

	assert.Contains(t, out.String(), `"id":3,"result":null`)
	responses := decodeAll(t, &out)
	require.Len(t, responses, 3)
	for i, r := range responses {
		assert.EqualValues(t, i+1, r.ID)
		assert.Nil(t, r.Error)
	}

	data, err := json.Marshal(responses[1].Result)
	require.NoError(t, err)
	var actions []CodeAction
	require.NoError(t, json.Unmarshal(data, &actions))
	require.Len(t, actions, 1)
	assert.Equal(t, "Inline `double`", actions[0].Title)
}

func TestServer_ExitWithoutShutdown(t *testing.T) {
	in := encode(t, notification(t, "exit", nil))
	err := NewServer(nil, "test", nil).Serve(context.Background(), in, io.Discard)
	assert.ErrorIs(t, err, ErrExitWithoutShutdown)
}

func TestServer_EOFEndsSession(t *testing.T) {
	err := NewServer(nil, "test", nil).Serve(context.Background(), strings.NewReader(""), io.Discard)
	assert.NoError(t, err)
}

func TestURIConversion(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "with space", "main.rs")
	uri := pathToURI(path)
	assert.True(t, strings.HasPrefix(uri, "file://"), uri)
	assert.Contains(t, uri, "with%20space")
	assert.Equal(t, path, uriToPath(uri))
	assert.Equal(t, "relative/path.rs", uriToPath("relative/path.rs"))
}

func TestKindAllowed(t *testing.T) {
	assert.True(t, kindAllowed("refactor.inline", nil))
	assert.True(t, kindAllowed("refactor.inline", []string{"refactor"}))
	assert.True(t, kindAllowed("quickfix", []string{"refactor", "quickfix"}))
	assert.False(t, kindAllowed("refactor.inline", []string{"refactor.extract"}))
	assert.False(t, kindAllowed("refactoring", []string{"refactor"}))
}
