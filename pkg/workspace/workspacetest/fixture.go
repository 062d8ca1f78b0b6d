// Package workspacetest builds workspace snapshots from txtar fixtures for
// tests.
//
// The archive comment declares crates, one per line:
//
//	crate <name> <root file> [dep | alias=dep]...
//
// A fixture without crate lines is a single crate named "main" rooted at its
// first file. One file may contain the cursor marker $0, which is removed
// before parsing.
package workspacetest

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/tools/txtar"

	"github.com/mamaar/rsrefactor/pkg/syntax"
	"github.com/mamaar/rsrefactor/pkg/workspace"
)

// CursorMarker marks the cursor position in fixture text.
const CursorMarker = "$0"

// Fixture is a parsed fixture and the snapshot built from it.
type Fixture struct {
	Snapshot *workspace.Snapshot
	// Files holds the text of every file with the cursor marker removed.
	Files map[string]string

	CursorFile   string
	CursorOffset int
	HasCursor    bool
}

// FileID returns the id of path, failing the test when it is unknown.
func (f *Fixture) FileID(t testing.TB, path string) syntax.FileID {
	t.Helper()
	id, ok := f.Snapshot.FileID(path)
	if !ok {
		t.Fatalf("fixture has no file %s", path)
	}
	return id
}

// Tree returns the syntax tree of path.
func (f *Fixture) Tree(t testing.TB, path string) *syntax.Tree {
	t.Helper()
	tree, ok := f.Snapshot.ParseFile(f.FileID(t, path))
	if !ok {
		t.Fatalf("no tree for %s", path)
	}
	return tree
}

// CursorTree returns the tree of the file holding the cursor.
func (f *Fixture) CursorTree(t testing.TB) *syntax.Tree {
	t.Helper()
	if !f.HasCursor {
		t.Fatal("fixture has no cursor")
	}
	return f.Tree(t, f.CursorFile)
}

// Single builds a one-file crate named main from src.
func Single(t testing.TB, src string) *Fixture {
	t.Helper()
	return Parse(t, "-- /main.rs --\n"+src)
}

// Parse builds the fixture described by the txtar archive src.
func Parse(t testing.TB, src string) *Fixture {
	t.Helper()
	ar := txtar.Parse([]byte(src))
	if len(ar.Files) == 0 {
		t.Fatal("fixture has no files")
	}

	fx := &Fixture{Files: make(map[string]string)}
	for _, f := range ar.Files {
		text := string(f.Data)
		if i := strings.Index(text, CursorMarker); i >= 0 {
			if fx.HasCursor {
				t.Fatalf("fixture has more than one cursor")
			}
			text = text[:i] + text[i+len(CursorMarker):]
			fx.HasCursor = true
			fx.CursorFile = filepath.Clean(f.Name)
			fx.CursorOffset = i
		}
		fx.Files[filepath.Clean(f.Name)] = text
	}

	crates := parseCrates(t, string(ar.Comment))
	if len(crates) == 0 {
		crates = []workspace.CrateInput{{Name: "main", Root: filepath.Clean(ar.Files[0].Name)}}
	}
	for i := range crates {
		crates[i].Dir = filepath.Dir(crates[i].Root)
	}
	for _, f := range ar.Files {
		path := filepath.Clean(f.Name)
		owner, best := -1, -1
		for i, c := range crates {
			if workspace.InDir(path, c.Dir) && len(c.Dir) > best {
				owner, best = i, len(c.Dir)
			}
		}
		if owner < 0 {
			t.Fatalf("file %s belongs to no crate", path)
		}
		crates[owner].Files = append(crates[owner].Files, workspace.FileInput{Path: path, Text: fx.Files[path]})
	}

	snap, err := workspace.Build(context.Background(), crates)
	if err != nil {
		t.Fatalf("build fixture: %v", err)
	}
	fx.Snapshot = snap
	return fx
}

func parseCrates(t testing.TB, comment string) []workspace.CrateInput {
	t.Helper()
	var out []workspace.CrateInput
	for line := range strings.Lines(comment) {
		fields := strings.Fields(line)
		if len(fields) == 0 || fields[0] != "crate" {
			continue
		}
		if len(fields) < 3 {
			t.Fatalf("malformed crate line %q", strings.TrimSpace(line))
		}
		c := workspace.CrateInput{Name: fields[1], Root: filepath.Clean(fields[2])}
		for _, d := range fields[3:] {
			alias, target, renamed := strings.Cut(d, "=")
			if !renamed {
				target = alias
			}
			c.Deps = append(c.Deps, workspace.Dep{Name: alias, Crate: target})
		}
		out = append(out, c)
	}
	return out
}
