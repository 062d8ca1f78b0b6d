package refactor

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sourcegraph/go-diff/diff"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamaar/rsrefactor/pkg/types"
)

func change(file, content, old, replacement string) types.Change {
	start := strings.Index(content, old)
	return types.Change{File: file, Start: start, End: start + len(old), OldText: old, NewText: replacement}
}

func TestSerializer_ApplyChanges(t *testing.T) {
	s := NewSerializer()
	require.NoError(t, s.ApplyChanges(nil))

	dir := t.TempDir()
	lib := filepath.Join(dir, "lib.rs")
	original := "fn original() {\n    work();\n}\n"
	require.NoError(t, os.WriteFile(lib, []byte(original), 0o600))
	added := filepath.Join(dir, "new.rs")

	err := s.ApplyChanges([]types.Change{
		change(lib, original, "original", "renamed"),
		change(lib, original, "work()", "rest()"),
		{File: added, NewText: "pub fn fresh() {}\n"},
	})
	require.NoError(t, err)

	got, err := os.ReadFile(lib)
	require.NoError(t, err)
	assert.Equal(t, "fn renamed() {\n    rest();\n}\n", string(got))
	info, err := os.Stat(lib)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm(), "permissions are kept")

	got, err = os.ReadFile(added)
	require.NoError(t, err)
	assert.Equal(t, "pub fn fresh() {}\n", string(got))
}

func TestSerializer_ApplyChangesRejectsStaleText(t *testing.T) {
	s := NewSerializer()
	lib := filepath.Join(t.TempDir(), "lib.rs")
	require.NoError(t, os.WriteFile(lib, []byte("fn a() {}\n"), 0o644))

	err := s.ApplyChanges([]types.Change{{File: lib, Start: 3, End: 4, OldText: "b", NewText: "c"}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, &types.RefactorError{Type: types.FileSystemError}))
	var verr *types.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, types.IssueStaleText, verr.Issues[0].Type)

	got, _ := os.ReadFile(lib)
	assert.Equal(t, "fn a() {}\n", string(got))
}

func TestFileDiff(t *testing.T) {
	var lines []string
	for i := 1; i <= 20; i++ {
		lines = append(lines, "line"+strings.Repeat("x", i%3))
	}
	content := strings.Join(lines, "\n") + "\n"
	lineStart := func(n int) int { // 1-based
		off := 0
		for i := 1; i < n; i++ {
			off += len(lines[i-1]) + 1
		}
		return off
	}

	tests := []struct {
		name    string
		changes []types.Change
		hunks   [][4]int32
	}{
		{
			name:    "single line replaced",
			changes: []types.Change{{Start: lineStart(10), End: lineStart(10) + len(lines[9]), NewText: "ten"}},
			hunks:   [][4]int32{{7, 7, 7, 7}},
		},
		{
			name:    "line split in two",
			changes: []types.Change{{Start: lineStart(2), End: lineStart(2), NewText: "a\n"}},
			hunks:   [][4]int32{{1, 5, 1, 6}},
		},
		{
			name: "distant edits get separate hunks",
			changes: []types.Change{
				{Start: lineStart(2), End: lineStart(2) + 1, NewText: "L"},
				{Start: lineStart(18), End: lineStart(19), NewText: ""},
			},
			hunks: [][4]int32{{1, 5, 1, 5}, {15, 6, 15, 5}},
		},
		{
			name: "close edits share a hunk",
			changes: []types.Change{
				{Start: lineStart(5), End: lineStart(5) + 1, NewText: "L"},
				{Start: lineStart(9), End: lineStart(9) + 1, NewText: "L"},
			},
			hunks: [][4]int32{{2, 11, 2, 11}},
		},
		{
			name:    "append at end of file",
			changes: []types.Change{{Start: len(content), End: len(content), NewText: "tail\n"}},
			hunks:   [][4]int32{{18, 3, 18, 4}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fd, err := FileDiff("src/lib.rs", content, tt.changes)
			require.NoError(t, err)
			assert.Equal(t, "a/src/lib.rs", fd.OrigName)
			assert.Equal(t, "b/src/lib.rs", fd.NewName)

			var got [][4]int32
			for _, h := range fd.Hunks {
				got = append(got, [4]int32{h.OrigStartLine, h.OrigLines, h.NewStartLine, h.NewLines})
			}
			assert.Equal(t, tt.hunks, got)
		})
	}
}

func TestFileDiffRejectsOverlap(t *testing.T) {
	_, err := FileDiff("lib.rs", "abcdef", []types.Change{
		{Start: 0, End: 3, NewText: "x"},
		{Start: 2, End: 4, NewText: "y"},
	})
	assert.Error(t, err)
}

func TestSerializer_PreviewChanges(t *testing.T) {
	s := NewSerializer()
	dir := t.TempDir()
	a := filepath.Join(dir, "a.rs")
	b := filepath.Join(dir, "b.rs")
	require.NoError(t, os.WriteFile(a, []byte("fn a() {\n    one();\n}\n"), 0o644))
	require.NoError(t, os.WriteFile(b, []byte("fn b() {}"), 0o644))

	out, err := s.PreviewChanges([]types.Change{
		change(b, "fn b() {}", "b", "bee"),
		change(a, "fn a() {\n    one();\n}\n", "one", "two"),
	})
	require.NoError(t, err)
	assert.Contains(t, out, "-    one();\n+    two();\n")
	assert.Contains(t, out, "\\ No newline at end of file")

	parsed, err := diff.ParseMultiFileDiff([]byte(out))
	require.NoError(t, err)
	require.Len(t, parsed, 2)
	assert.True(t, strings.HasSuffix(parsed[0].OrigName, "a.rs"), "files are in path order")
	assert.True(t, strings.HasSuffix(parsed[1].OrigName, "b.rs"))

	empty, err := s.PreviewChanges(nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestSerializer_BackupAndRestore(t *testing.T) {
	s := NewSerializer()
	dir := t.TempDir()
	lib := filepath.Join(dir, "lib.rs")
	require.NoError(t, os.WriteFile(lib, []byte("original"), 0o644))

	backup, err := s.BackupFile(lib)
	require.NoError(t, err)
	assert.Equal(t, lib+".backup", backup)

	require.NoError(t, os.WriteFile(lib, []byte("changed"), 0o644))
	require.NoError(t, s.RestoreFromBackup(lib, backup))
	got, _ := os.ReadFile(lib)
	assert.Equal(t, "original", string(got))

	missing := filepath.Join(dir, "missing.rs")
	backup, err = s.BackupFile(missing)
	require.NoError(t, err)
	got, _ = os.ReadFile(backup)
	assert.Empty(t, got, "a missing file gets an empty backup")

	assert.Error(t, s.RestoreFromBackup(lib, filepath.Join(dir, "nope.backup")))
}
