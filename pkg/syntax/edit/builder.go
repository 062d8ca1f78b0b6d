package edit

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/mamaar/rsrefactor/pkg/syntax"
	"github.com/mamaar/rsrefactor/pkg/types"
)

// Builder collects edits to one file and turns them into changes. Edits are
// expressed against the original text; their order does not matter.
type Builder struct {
	// Description is copied to every change.
	Description string

	file  string
	src   string
	edits []types.Change
}

func NewBuilder(file, src string) *Builder {
	return &Builder{file: file, src: src}
}

// Replace replaces the text in r with text.
func (b *Builder) Replace(r syntax.TextRange, text string) {
	b.edits = append(b.edits, types.Change{File: b.file, Start: r.Start, End: r.End, NewText: text})
}

// Insert inserts text at offset. Insertions at the same offset keep the
// order they were added in.
func (b *Builder) Insert(offset int, text string) {
	b.Replace(syntax.TextRange{Start: offset, End: offset}, text)
}

// Delete removes the text in r.
func (b *Builder) Delete(r syntax.TextRange) {
	b.Replace(r, "")
}

// Finish returns the edits sorted by position. Out-of-bounds or overlapping
// edits fail with a *types.ValidationError.
func (b *Builder) Finish() ([]types.Change, error) {
	changes := slices.Clone(b.edits)
	slices.SortStableFunc(changes, func(x, y types.Change) int {
		return cmp.Compare(x.Start, y.Start)
	})

	var issues []types.Issue
	for i := range changes {
		c := &changes[i]
		if c.Start < 0 || c.Start > c.End || c.End > len(b.src) {
			issues = append(issues, types.Issue{
				Type:        types.IssueInvalidRange,
				Description: fmt.Sprintf("edit %d..%d outside %s (%d bytes)", c.Start, c.End, b.file, len(b.src)),
				File:        b.file,
			})
			continue
		}
		c.OldText = b.src[c.Start:c.End]
		c.Description = b.Description
		if i > 0 && overlaps(changes[i-1], *c) {
			issues = append(issues, types.Issue{
				Type: types.IssueOverlappingEdits,
				Description: fmt.Sprintf("edits %d..%d and %d..%d overlap",
					changes[i-1].Start, changes[i-1].End, c.Start, c.End),
				File: b.file,
			})
		}
	}
	if len(issues) > 0 {
		return nil, &types.ValidationError{Issues: issues}
	}
	return changes, nil
}

// overlaps reports whether two edits touch the same text. Two insertions at
// one offset, or an insertion at the boundary of a replacement, do not.
func overlaps(a, b types.Change) bool {
	return a.Start < b.End && b.Start < a.End
}

// Apply applies the changes for one file to its text. A change whose OldText
// is set must find exactly that text at its range; a mismatch means it was
// computed against a different version of the file.
func Apply(src string, changes []types.Change) (string, error) {
	sorted := slices.Clone(changes)
	slices.SortStableFunc(sorted, func(x, y types.Change) int {
		return cmp.Compare(x.Start, y.Start)
	})
	for i, c := range sorted {
		if c.Start < 0 || c.Start > c.End || c.End > len(src) {
			return "", &types.ValidationError{Issues: []types.Issue{{
				Type:        types.IssueInvalidRange,
				Description: fmt.Sprintf("invalid change bounds: start=%d, end=%d, content length=%d", c.Start, c.End, len(src)),
				File:        c.File,
			}}}
		}
		if c.OldText != "" && src[c.Start:c.End] != c.OldText {
			return "", &types.ValidationError{Issues: []types.Issue{{
				Type:        types.IssueStaleText,
				Description: fmt.Sprintf("old text mismatch at %d..%d: expected %q, found %q", c.Start, c.End, c.OldText, src[c.Start:c.End]),
				File:        c.File,
			}}}
		}
		if i > 0 && overlaps(sorted[i-1], c) {
			return "", &types.ValidationError{Issues: []types.Issue{{
				Type:        types.IssueOverlappingEdits,
				Description: fmt.Sprintf("overlapping changes detected: [%d-%d] and [%d-%d]", sorted[i-1].Start, sorted[i-1].End, c.Start, c.End),
				File:        c.File,
			}}}
		}
	}

	var out []byte
	last := 0
	for _, c := range sorted {
		out = append(out, src[last:c.Start]...)
		out = append(out, c.NewText...)
		last = c.End
	}
	out = append(out, src[last:]...)
	return string(out), nil
}
