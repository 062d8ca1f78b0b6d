package types

import (
	"slices"
)

// Cursor locates a position in a source file. A positive Line selects the
// 1-based line and column; otherwise Offset is a byte offset.
type Cursor struct {
	File   string
	Line   int
	Column int
	Offset int
}

// InlineFunctionRequest asks for the call under the cursor to be replaced by
// the callee's body.
type InlineFunctionRequest struct {
	Cursor Cursor
}

// AssistsRequest asks for every assist applicable at the cursor.
type AssistsRequest struct {
	Cursor Cursor
}

type ImportSearchMode int

const (
	ExactImports ImportSearchMode = iota
	SimilarImports
)

func (m ImportSearchMode) String() string {
	if m == SimilarImports {
		return "similar"
	}
	return "exact"
}

// FindImportsRequest searches a crate and its dependencies for importable
// definitions. Crate names the crate the import would be added to; when
// empty the crate owning File is used.
type FindImportsRequest struct {
	Crate             string
	File              string
	Text              string
	Mode              ImportSearchMode
	Limit             int
	ExcludeAssocItems bool
	NameOnly          bool
	CaseSensitive     bool
}

// RefactoringPlan represents a planned set of changes
type RefactoringPlan struct {
	Changes       []Change
	AffectedFiles []string
	Issues        []Issue
	Reversible    bool
}

// NewPlan returns a reversible plan for changes with AffectedFiles filled in.
func NewPlan(changes ...Change) *RefactoringPlan {
	var files []string
	for _, c := range changes {
		if !slices.Contains(files, c.File) {
			files = append(files, c.File)
		}
	}
	slices.Sort(files)
	return &RefactoringPlan{Changes: changes, AffectedFiles: files, Reversible: true}
}

// Change represents a specific change to be made
type Change struct {
	File        string
	Start       int
	End         int
	OldText     string
	NewText     string
	Description string
}

// Issue is a problem found while validating a plan.
type Issue struct {
	Type        IssueType
	Description string
	File        string
	Line        int
	Severity    IssueSeverity
}

type IssueType int

const (
	IssueOverlappingEdits IssueType = iota
	IssueStaleText
	IssueInvalidRange
)

type IssueSeverity int

const (
	Error IssueSeverity = iota
	Warning
	Info
)

// String returns the string representation of IssueSeverity
func (s IssueSeverity) String() string {
	switch s {
	case Error:
		return "Error"
	case Warning:
		return "Warning"
	case Info:
		return "Info"
	default:
		return "Unknown"
	}
}
