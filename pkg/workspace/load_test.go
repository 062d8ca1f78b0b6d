package workspace_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamaar/rsrefactor/pkg/syntax"
	"github.com/mamaar/rsrefactor/pkg/types"
	"github.com/mamaar/rsrefactor/pkg/workspace"
)

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, text := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(text), 0o644))
	}
}

func TestLoad(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"Cargo.toml": "[workspace]\nmembers = [\"app\", \"util\"]\n",
		".gitignore": "scratch.rs\n",
		"app/Cargo.toml": `[package]
name = "app"
version = "0.1.0"

[dependencies]
my-util = { path = "../util" }
serde = "1"
`,
		"app/src/main.rs":        "mod cli;\nfn main() { my_util::greet(); }\n",
		"app/src/cli.rs":         "pub fn run() {}\n",
		"util/Cargo.toml":        "[package]\nname = \"my-util\"\n",
		"util/src/lib.rs":        "pub fn greet() {}\n",
		"util/src/scratch.rs":    "fn ignored() {}\n",
		"target/debug/build.rs":  "fn skipped() {}\n",
		"app/.hidden/private.rs": "fn hidden() {}\n",
	})

	snap, err := workspace.Load(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, []string{"app", "my_util"}, snap.Crates())

	var rel []string
	for _, f := range snap.Files() {
		r, err := filepath.Rel(root, f)
		require.NoError(t, err)
		rel = append(rel, filepath.ToSlash(r))
	}
	assert.Equal(t, []string{"app/src/cli.rs", "app/src/main.rs", "util/src/lib.rs"}, rel)

	mainPath := filepath.Join(root, "app", "src", "main.rs")
	id, ok := snap.FileID(mainPath)
	require.True(t, ok)
	tree, ok := snap.ParseFile(id)
	require.True(t, ok)
	path := tree.FindNodeAt(strings.Index(tree.Source(), "greet"), syntax.KindPath)
	require.NotNil(t, path)
	def, ok := snap.ResolvePath(id, path)
	require.True(t, ok)
	assert.Equal(t, "greet", def.Name)
}

func TestLoadExclude(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"Cargo.toml":       "[package]\nname = \"solo\"\n",
		"src/lib.rs":       "pub mod gen;\n",
		"src/gen.rs":       "pub fn generated() {}\n",
		"src/gen_extra.rs": "pub fn extra() {}\n",
	})

	snap, err := workspace.Load(context.Background(), root, workspace.WithExclude("gen_*.rs"))
	require.NoError(t, err)
	assert.Len(t, snap.Files(), 2)
}

func TestLoadErrors(t *testing.T) {
	root := t.TempDir()
	_, err := workspace.Load(context.Background(), root)
	require.Error(t, err)
	assert.True(t, errors.Is(err, &types.RefactorError{Type: types.ConfigError}))

	writeTree(t, root, map[string]string{"Cargo.toml": "[package\nname = "})
	_, err = workspace.Load(context.Background(), root)
	var rerr *types.RefactorError
	require.True(t, errors.As(err, &rerr))
	assert.Equal(t, types.ConfigError, rerr.Type)
	assert.Equal(t, filepath.Join(root, "Cargo.toml"), rerr.File)
}

func TestIgnoreMatcher(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{".gitignore": "scratch.rs\ngenerated/\n"})
	ignored := workspace.IgnoreMatcher(root, []string{"benches/"})
	at := func(rel string) string { return filepath.Join(root, filepath.FromSlash(rel)) }

	assert.False(t, ignored(root, true))
	assert.False(t, ignored(at("src/lib.rs"), false))
	assert.False(t, ignored(at("src"), true))
	assert.True(t, ignored(at("src/scratch.rs"), false))
	assert.True(t, ignored(at("generated"), true))
	assert.True(t, ignored(at("benches"), true))
	assert.True(t, ignored(at("target"), true))
	assert.True(t, ignored(at("target/debug/build.rs"), false))
	assert.True(t, ignored(at(".cargo/config.rs"), false))
	assert.False(t, ignored(filepath.Join(t.TempDir(), "elsewhere.rs"), false))
}
