package refactor

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"

	"github.com/mamaar/rsrefactor/pkg/imports"
	"github.com/mamaar/rsrefactor/pkg/semantic"
	"github.com/mamaar/rsrefactor/pkg/syntax"
	"github.com/mamaar/rsrefactor/pkg/types"
	"github.com/mamaar/rsrefactor/pkg/workspace"
)

// RefactorEngine is the main interface for refactoring operations
type RefactorEngine interface {
	// Workspace management
	LoadWorkspace(ctx context.Context, path string) (*workspace.Snapshot, error)

	// Assists and searches
	Assists(ctx context.Context, snap *workspace.Snapshot, req types.AssistsRequest) ([]Assist, error)
	InlineFunction(ctx context.Context, snap *workspace.Snapshot, req types.InlineFunctionRequest) (*types.RefactoringPlan, error)
	FindImports(ctx context.Context, snap *workspace.Snapshot, req types.FindImportsRequest) ([]ImportCandidate, error)

	// Execution
	ValidateRefactoring(plan *types.RefactoringPlan) error
	ExecutePlan(plan *types.RefactoringPlan) error
	PreviewPlan(plan *types.RefactoringPlan) (string, error)
}

// DefaultEngine implements the RefactorEngine interface
type DefaultEngine struct {
	logger     *slog.Logger
	imports    *imports.Engine
	serializer *Serializer
	config     *EngineConfig
}

// EngineConfig contains configuration options for the refactoring engine
type EngineConfig struct {
	// Exclude holds gitignore-style patterns of files left out of a loaded
	// workspace.
	Exclude      []string
	ExactLimit   int
	SimilarLimit int
	// Backup keeps a .backup copy of every file a plan rewrites.
	Backup bool
}

// DefaultConfig returns the default engine configuration
func DefaultConfig() *EngineConfig {
	return &EngineConfig{ExactLimit: imports.DefaultExactLimit}
}

// ImportCandidate is a definition that could be imported, with the path a
// use item would name it by.
type ImportCandidate struct {
	Name  string `json:"name"`
	Kind  string `json:"kind"`
	Path  string `json:"path,omitempty"`
	Assoc bool   `json:"assoc,omitempty"`
}

func CreateEngine(logger *slog.Logger) RefactorEngine {
	return CreateEngineWithConfig(DefaultConfig(), logger)
}

func CreateEngineWithConfig(config *EngineConfig, logger *slog.Logger, opts ...imports.Option) RefactorEngine {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if config == nil {
		config = DefaultConfig()
	}
	engineOpts := append([]imports.Option{
		imports.WithLogger(logger),
		imports.WithExactLimit(config.ExactLimit),
		imports.WithSimilarLimit(config.SimilarLimit),
	}, opts...)
	return &DefaultEngine{
		logger:     logger,
		imports:    imports.NewEngine(engineOpts...),
		serializer: NewSerializer(),
		config:     config,
	}
}

// WorkspaceOptions returns the options LoadWorkspace builds snapshots with.
func (e *DefaultEngine) WorkspaceOptions() []workspace.Option {
	return []workspace.Option{
		workspace.WithLogger(e.logger),
		workspace.WithExclude(e.config.Exclude...),
	}
}

// LoadWorkspace loads and parses every crate under path
func (e *DefaultEngine) LoadWorkspace(ctx context.Context, path string) (*workspace.Snapshot, error) {
	snap, err := workspace.Load(ctx, path, e.WorkspaceOptions()...)
	if err != nil {
		return nil, fmt.Errorf("failed to load workspace: %w", err)
	}
	e.logger.Info("workspace loaded", "root", path, "crates", len(snap.Crates()), "files", len(snap.Files()))
	return snap, nil
}

// ResolveCursor returns the file and byte offset a cursor points at.
func ResolveCursor(snap *workspace.Snapshot, c types.Cursor) (syntax.FileID, int, error) {
	path, err := filepath.Abs(c.File)
	if err != nil {
		return 0, 0, &types.RefactorError{Type: types.FileSystemError, Message: err.Error(), File: c.File, Cause: err}
	}
	id, ok := snap.FileID(path)
	if !ok {
		return 0, 0, &types.RefactorError{
			Type:    types.SymbolNotFound,
			Message: "file is not part of the workspace",
			File:    c.File,
		}
	}
	if c.Line <= 0 {
		return id, c.Offset, nil
	}
	tree, _ := snap.ParseFile(id)
	off, ok := tree.Lines().Offset(syntax.LineCol{Line: c.Line - 1, Col: max(c.Column-1, 0)})
	if !ok {
		return 0, 0, &types.RefactorError{
			Type:    types.InvalidOperation,
			Message: "position outside file",
			File:    c.File,
			Line:    c.Line,
			Column:  c.Column,
		}
	}
	return id, off, nil
}

func (e *DefaultEngine) assistContext(ctx context.Context, snap *workspace.Snapshot, c types.Cursor) (*AssistContext, error) {
	id, off, err := ResolveCursor(snap, c)
	if err != nil {
		return nil, err
	}
	return NewAssistContext(ctx, snap, id, off, e.logger)
}

// Assists returns every assist applicable at the cursor.
func (e *DefaultEngine) Assists(ctx context.Context, snap *workspace.Snapshot, req types.AssistsRequest) ([]Assist, error) {
	actx, err := e.assistContext(ctx, snap, req.Cursor)
	if err != nil {
		return nil, err
	}
	var out []Assist
	if a, ok := InlineFunction(actx); ok {
		out = append(out, a)
	}
	out = append(out, AutoImport(actx, e.imports, snap)...)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// InlineFunction plans inlining the call under the cursor. A call that cannot
// be inlined is reported as a NotApplicable error.
func (e *DefaultEngine) InlineFunction(ctx context.Context, snap *workspace.Snapshot, req types.InlineFunctionRequest) (*types.RefactoringPlan, error) {
	actx, err := e.assistContext(ctx, snap, req.Cursor)
	if err != nil {
		return nil, err
	}
	a, ok := InlineFunction(actx)
	if !ok {
		lc := actx.Tree.Lines().LineCol(actx.Offset)
		return nil, &types.RefactorError{
			Type:    types.NotApplicable,
			Message: "no inlinable function call at cursor",
			File:    actx.Tree.Path(),
			Line:    lc.Line + 1,
			Column:  lc.Col + 1,
		}
	}
	return a.Plan(), nil
}

// FindImports runs an exact or fuzzy import search for the crate named by req
// or owning req.File.
func (e *DefaultEngine) FindImports(ctx context.Context, snap *workspace.Snapshot, req types.FindImportsRequest) ([]ImportCandidate, error) {
	krate, err := requestCrate(snap, req)
	if err != nil {
		return nil, err
	}

	var set *imports.CandidateSet
	switch req.Mode {
	case types.ExactImports:
		set, err = e.imports.FindExactImports(ctx, snap, krate, req.Text)
	case types.SimilarImports:
		set, err = e.imports.FindSimilarImports(ctx, snap, krate, imports.SimilarQuery{
			Text:              req.Text,
			Limit:             req.Limit,
			ExcludeAssocItems: req.ExcludeAssocItems,
			NameOnly:          req.NameOnly,
			CaseSensitive:     req.CaseSensitive,
		})
	default:
		return nil, &types.RefactorError{Type: types.InvalidOperation, Message: fmt.Sprintf("unknown search mode %d", req.Mode)}
	}
	if err != nil {
		return nil, fmt.Errorf("import search failed: %w", err)
	}

	out := make([]ImportCandidate, 0, set.Len())
	for def := range set.All() {
		c := ImportCandidate{Name: def.Name, Kind: def.Kind.String()}
		if p, ok := snap.ImportPath(def, krate); ok {
			c.Path = strings.Join(p, "::")
		}
		_, c.Assoc = snap.AssocContainer(def)
		out = append(out, c)
	}
	slices.SortFunc(out, func(x, y ImportCandidate) int {
		return cmp.Or(cmp.Compare(x.Name, y.Name), cmp.Compare(x.Path, y.Path), cmp.Compare(x.Kind, y.Kind))
	})
	return out, nil
}

func requestCrate(snap *workspace.Snapshot, req types.FindImportsRequest) (semantic.CrateID, error) {
	if req.Crate != "" {
		krate, ok := snap.CrateByName(req.Crate)
		if !ok {
			return 0, &types.RefactorError{Type: types.SymbolNotFound, Message: fmt.Sprintf("no crate named %s", req.Crate)}
		}
		return krate, nil
	}
	if req.File != "" {
		path, err := filepath.Abs(req.File)
		if err != nil {
			return 0, &types.RefactorError{Type: types.FileSystemError, Message: err.Error(), File: req.File, Cause: err}
		}
		if id, ok := snap.FileID(path); ok {
			if krate, ok := snap.CrateOf(id); ok {
				return krate, nil
			}
		}
		return 0, &types.RefactorError{Type: types.SymbolNotFound, Message: "file is not part of the workspace", File: req.File}
	}
	if names := snap.Crates(); len(names) == 1 {
		krate, _ := snap.CrateByName(names[0])
		return krate, nil
	}
	return 0, &types.RefactorError{Type: types.InvalidOperation, Message: "a crate or file is required when the workspace has several crates"}
}

// ValidateRefactoring checks that a plan's changes have sane ranges and do
// not overlap.
func (e *DefaultEngine) ValidateRefactoring(plan *types.RefactoringPlan) error {
	if plan == nil {
		return &types.RefactorError{Type: types.InvalidOperation, Message: "plan cannot be nil"}
	}
	var issues []types.Issue
	for _, file := range changedFiles(plan.Changes) {
		changes := changesFor(plan.Changes, file)
		slices.SortFunc(changes, func(x, y types.Change) int { return cmp.Compare(x.Start, y.Start) })
		for i, c := range changes {
			if c.Start < 0 || c.Start > c.End {
				issues = append(issues, types.Issue{
					Type:        types.IssueInvalidRange,
					Description: fmt.Sprintf("invalid range %d..%d", c.Start, c.End),
					File:        file,
				})
				continue
			}
			if i > 0 && changes[i-1].End > c.Start {
				issues = append(issues, types.Issue{
					Type:        types.IssueOverlappingEdits,
					Description: fmt.Sprintf("changes %d..%d and %d..%d overlap", changes[i-1].Start, changes[i-1].End, c.Start, c.End),
					File:        file,
				})
			}
		}
	}
	plan.Issues = append(plan.Issues, issues...)
	if len(issues) > 0 {
		return &types.ValidationError{Issues: issues}
	}
	return nil
}

// ExecutePlan writes a validated plan to disk. With backups enabled every
// affected file is copied first and restored if any write fails.
func (e *DefaultEngine) ExecutePlan(plan *types.RefactoringPlan) error {
	if err := e.ValidateRefactoring(plan); err != nil {
		planExecutions.WithLabelValues("invalid").Inc()
		return err
	}

	backups := make(map[string]string)
	if e.config.Backup {
		for _, file := range plan.AffectedFiles {
			b, err := e.serializer.BackupFile(file)
			if err != nil {
				planExecutions.WithLabelValues("error").Inc()
				return &types.RefactorError{Type: types.FileSystemError, Message: err.Error(), File: file, Cause: err}
			}
			backups[file] = b
		}
	}

	if err := e.serializer.ApplyChanges(plan.Changes); err != nil {
		var restoreErrs []error
		for file, b := range backups {
			if rerr := e.serializer.RestoreFromBackup(file, b); rerr != nil {
				restoreErrs = append(restoreErrs, rerr)
			}
		}
		planExecutions.WithLabelValues("error").Inc()
		e.logger.Error("plan execution failed", "error", err, "restored", len(backups)-len(restoreErrs))
		return errors.Join(append([]error{err}, restoreErrs...)...)
	}

	planExecutions.WithLabelValues("success").Inc()
	planChanges.Observe(float64(len(plan.Changes)))
	e.logger.Info("plan executed", "changes", len(plan.Changes), "files", len(plan.AffectedFiles), "backups", len(backups))
	return nil
}

// PreviewPlan renders a plan as a unified diff.
func (e *DefaultEngine) PreviewPlan(plan *types.RefactoringPlan) (string, error) {
	if plan == nil {
		return "", &types.RefactorError{Type: types.InvalidOperation, Message: "plan cannot be nil"}
	}
	return e.serializer.PreviewChanges(plan.Changes)
}
