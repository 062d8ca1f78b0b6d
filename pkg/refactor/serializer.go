package refactor

import (
	"cmp"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/sourcegraph/go-diff/diff"

	"github.com/mamaar/rsrefactor/pkg/syntax"
	"github.com/mamaar/rsrefactor/pkg/syntax/edit"
	"github.com/mamaar/rsrefactor/pkg/types"
)

// diffContext is the number of unchanged lines shown around each hunk.
const diffContext = 3

// Serializer applies refactoring changes to files and renders previews.
type Serializer struct {
	read func(path string) ([]byte, error)
}

func NewSerializer() *Serializer {
	return &Serializer{read: os.ReadFile}
}

// ApplyChanges applies changes to the files they name. Files that do not
// exist are created from empty content.
func (s *Serializer) ApplyChanges(changes []types.Change) error {
	if len(changes) == 0 {
		return nil
	}
	for _, file := range changedFiles(changes) {
		if err := s.applyChangesToFile(file, changesFor(changes, file)); err != nil {
			return &types.RefactorError{
				Type:    types.FileSystemError,
				Message: fmt.Sprintf("failed to apply changes to file %s: %v", file, err),
				File:    file,
				Cause:   err,
			}
		}
	}
	return nil
}

func (s *Serializer) applyChangesToFile(path string, changes []types.Change) error {
	content, err := s.content(path)
	if err != nil {
		return err
	}
	modified, err := edit.Apply(content, changes)
	if err != nil {
		return err
	}
	mode := os.FileMode(0o644)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}
	if err := os.WriteFile(path, []byte(modified), mode); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	return nil
}

func (s *Serializer) content(path string) (string, error) {
	b, err := s.read(path)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}
	return string(b), nil
}

// PreviewChanges renders changes as a unified diff against the files' current
// content, one file section per affected file in path order.
func (s *Serializer) PreviewChanges(changes []types.Change) (string, error) {
	if len(changes) == 0 {
		return "", nil
	}
	var fds []*diff.FileDiff
	for _, file := range changedFiles(changes) {
		content, err := s.content(file)
		if err != nil {
			return "", &types.RefactorError{Type: types.FileSystemError, Message: err.Error(), File: file, Cause: err}
		}
		fd, err := FileDiff(file, content, changesFor(changes, file))
		if err != nil {
			return "", err
		}
		fds = append(fds, fd)
	}
	out, err := diff.PrintMultiFileDiff(fds)
	if err != nil {
		return "", fmt.Errorf("failed to print diff: %w", err)
	}
	return string(out), nil
}

// lineRegion is a run of whole original lines [first, last) rewritten by one
// or more changes.
type lineRegion struct {
	first, last int
	changes     []types.Change
}

// FileDiff computes the hunks changes make to content.
func FileDiff(path, content string, changes []types.Change) (*diff.FileDiff, error) {
	if _, err := edit.Apply(content, changes); err != nil {
		return nil, err
	}
	sorted := slices.Clone(changes)
	slices.SortStableFunc(sorted, func(x, y types.Change) int { return cmp.Compare(x.Start, y.Start) })

	lines := splitLines(content)
	starts := make([]int, len(lines)+1)
	for i, l := range lines {
		starts[i+1] = starts[i] + len(l)
	}
	li := syntax.NewLineIndex(content)

	var regions []lineRegion
	for _, c := range sorted {
		first := min(li.LineCol(c.Start).Line, len(lines))
		last := min(li.LineCol(c.End).Line+1, len(lines))
		if n := len(regions); n > 0 && first < regions[n-1].last {
			r := &regions[n-1]
			r.last = max(r.last, last)
			r.changes = append(r.changes, c)
			continue
		}
		regions = append(regions, lineRegion{first: first, last: last, changes: []types.Change{c}})
	}

	name := strings.TrimPrefix(filepath.ToSlash(path), "/")
	fd := &diff.FileDiff{OrigName: "a/" + name, NewName: "b/" + name}
	var cur *diff.Hunk
	var body strings.Builder
	curEnd, delta := 0, 0
	flush := func() {
		if cur == nil {
			return
		}
		end := min(curEnd+diffContext, len(lines))
		writeLines(&body, ' ', lines[curEnd:end])
		cur.OrigLines += int32(end - curEnd)
		cur.NewLines += int32(end - curEnd)
		cur.Body = []byte(body.String())
		fd.Hunks = append(fd.Hunks, cur)
		cur = nil
		body.Reset()
	}
	for _, r := range regions {
		if cur != nil && r.first-curEnd > 2*diffContext {
			flush()
		}
		if cur == nil {
			start := max(r.first-diffContext, 0)
			cur = &diff.Hunk{
				OrigStartLine: int32(start + 1),
				NewStartLine:  int32(start + 1 + delta),
			}
			curEnd = start
		}
		writeLines(&body, ' ', lines[curEnd:r.first])
		cur.OrigLines += int32(r.first - curEnd)
		cur.NewLines += int32(r.first - curEnd)

		old := lines[r.first:r.last]
		replaced := splitLines(rewriteRegion(content, starts[r.first], starts[r.last], r.changes))
		writeLines(&body, '-', old)
		writeLines(&body, '+', replaced)
		cur.OrigLines += int32(len(old))
		cur.NewLines += int32(len(replaced))
		delta += len(replaced) - len(old)
		curEnd = r.last
	}
	flush()
	for _, h := range fd.Hunks {
		if h.OrigLines == 0 {
			h.OrigStartLine--
		}
		if h.NewLines == 0 {
			h.NewStartLine--
		}
	}
	return fd, nil
}

// rewriteRegion applies sorted changes to content[start:end].
func rewriteRegion(content string, start, end int, changes []types.Change) string {
	var b strings.Builder
	pos := start
	for _, c := range changes {
		b.WriteString(content[pos:c.Start])
		b.WriteString(c.NewText)
		pos = c.End
	}
	b.WriteString(content[pos:max(pos, end)])
	return b.String()
}

func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	lines := strings.SplitAfter(s, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

func writeLines(b *strings.Builder, prefix byte, lines []string) {
	for _, l := range lines {
		b.WriteByte(prefix)
		b.WriteString(l)
		if !strings.HasSuffix(l, "\n") {
			b.WriteString("\n\\ No newline at end of file\n")
		}
	}
}

func changedFiles(changes []types.Change) []string {
	var files []string
	for _, c := range changes {
		if !slices.Contains(files, c.File) {
			files = append(files, c.File)
		}
	}
	slices.Sort(files)
	return files
}

func changesFor(changes []types.Change, file string) []types.Change {
	var out []types.Change
	for _, c := range changes {
		if c.File == file {
			out = append(out, c)
		}
	}
	return out
}

// BackupFile copies filePath next to itself with a .backup suffix. A file
// that does not exist yet gets an empty backup.
func (s *Serializer) BackupFile(filePath string) (string, error) {
	backupPath := filePath + ".backup"
	content, err := s.read(filePath)
	if err != nil && !os.IsNotExist(err) {
		return "", fmt.Errorf("failed to read original file: %w", err)
	}
	if err := os.WriteFile(backupPath, content, 0o644); err != nil {
		return "", fmt.Errorf("failed to create backup: %w", err)
	}
	return backupPath, nil
}

// RestoreFromBackup restores a file from its backup
func (s *Serializer) RestoreFromBackup(filePath, backupPath string) error {
	content, err := os.ReadFile(backupPath)
	if err != nil {
		return fmt.Errorf("failed to read backup file: %w", err)
	}
	if err := os.WriteFile(filePath, content, 0o644); err != nil {
		return fmt.Errorf("failed to restore file: %w", err)
	}
	return nil
}
