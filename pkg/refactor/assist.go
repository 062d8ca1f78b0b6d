package refactor

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mamaar/rsrefactor/pkg/semantic"
	"github.com/mamaar/rsrefactor/pkg/syntax"
	"github.com/mamaar/rsrefactor/pkg/types"
)

// AssistKind classifies an assist the way editors group code actions.
type AssistKind string

const (
	KindRefactorInline AssistKind = "refactor.inline"
	KindQuickFix       AssistKind = "quickfix"
)

// Assist is one applicable source transformation at a cursor.
type Assist struct {
	ID      string
	Kind    AssistKind
	Label   string
	Target  syntax.TextRange
	Changes []types.Change
}

// Plan wraps the assist's changes in a reversible plan.
func (a Assist) Plan() *types.RefactoringPlan {
	return types.NewPlan(a.Changes...)
}

// AssistContext is the read-only input every assist sees: one file of one
// snapshot and a byte offset in it.
type AssistContext struct {
	Ctx    context.Context
	Model  semantic.Model
	File   syntax.FileID
	Tree   *syntax.Tree
	Offset int
	Logger *slog.Logger
}

// NewAssistContext parses file through model and checks that offset lies
// inside it.
func NewAssistContext(ctx context.Context, model semantic.Model, file syntax.FileID, offset int, logger *slog.Logger) (*AssistContext, error) {
	tree, ok := model.ParseFile(file)
	if !ok {
		return nil, &types.RefactorError{
			Type:    types.SymbolNotFound,
			Message: fmt.Sprintf("file %d is not part of the workspace", file),
		}
	}
	if offset < 0 || offset > len(tree.Source()) {
		return nil, &types.RefactorError{
			Type:    types.InvalidOperation,
			Message: fmt.Sprintf("offset %d outside file (%d bytes)", offset, len(tree.Source())),
			File:    tree.Path(),
		}
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &AssistContext{Ctx: ctx, Model: model, File: file, Tree: tree, Offset: offset, Logger: logger}, nil
}

// notApplicable records why an assist declined and returns its zero result.
func (a *AssistContext) notApplicable(id, reason string, args ...any) (Assist, bool) {
	a.Logger.Debug("assist not applicable",
		append([]any{"assist", id, "reason", reason, "file", a.Tree.Path(), "offset", a.Offset}, args...)...)
	assistOutcomes.WithLabelValues(id, "not_applicable").Inc()
	return Assist{}, false
}

func (a *AssistContext) applicable(assist Assist) (Assist, bool) {
	a.Logger.Debug("assist applicable", "assist", assist.ID, "label", assist.Label, "file", a.Tree.Path())
	assistOutcomes.WithLabelValues(assist.ID, "applicable").Inc()
	return assist, true
}
