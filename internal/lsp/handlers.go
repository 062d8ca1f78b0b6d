package lsp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/mamaar/rsrefactor/pkg/refactor"
	"github.com/mamaar/rsrefactor/pkg/types"
	"github.com/mamaar/rsrefactor/pkg/workspace"
)

// applyOverlay moves the workspace to a snapshot with the given file
// contents. Paths outside every crate are ignored by the snapshot.
func (s *Server) applyOverlay(ctx context.Context, change workspace.FileChange) error {
	s.mu.RLock()
	u := s.updater
	s.mu.RUnlock()
	if u == nil {
		return nil
	}
	_, err := u.Apply(ctx, []workspace.FileChange{change})
	return err
}

func (s *Server) handleDidOpen(ctx context.Context, message *Message) error {
	var params DidOpenTextDocumentParams
	if err := json.Unmarshal(message.Params, &params); err != nil {
		return err
	}
	path := uriToPath(params.TextDocument.URI)
	s.mu.Lock()
	s.open[path] = true
	s.mu.Unlock()
	s.logger.Debug("document opened", "path", path, "version", params.TextDocument.Version)
	return s.applyOverlay(ctx, workspace.FileChange{Path: path, Text: params.TextDocument.Text})
}

// handleDidChange takes the last full-content change. Range edits are not
// accepted because the server advertises full sync only.
func (s *Server) handleDidChange(ctx context.Context, message *Message) error {
	var params DidChangeTextDocumentParams
	if err := json.Unmarshal(message.Params, &params); err != nil {
		return err
	}
	if len(params.ContentChanges) == 0 {
		return nil
	}
	last := params.ContentChanges[len(params.ContentChanges)-1]
	if last.Range != nil {
		return fmt.Errorf("incremental change for %s: only full sync is supported", params.TextDocument.URI)
	}
	path := uriToPath(params.TextDocument.URI)
	return s.applyOverlay(ctx, workspace.FileChange{Path: path, Text: last.Text})
}

// handleDidClose drops the overlay by reloading the file from disk. A file
// that no longer exists leaves the workspace.
func (s *Server) handleDidClose(ctx context.Context, message *Message) error {
	var params DidCloseTextDocumentParams
	if err := json.Unmarshal(message.Params, &params); err != nil {
		return err
	}
	path := uriToPath(params.TextDocument.URI)
	s.mu.Lock()
	wasOpen := s.open[path]
	delete(s.open, path)
	s.mu.Unlock()
	if !wasOpen {
		return nil
	}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return s.applyOverlay(ctx, workspace.FileChange{Path: path, Deleted: true})
	case err != nil:
		return err
	}
	return s.applyOverlay(ctx, workspace.FileChange{Path: path, Text: string(data)})
}

func (s *Server) handleCodeAction(ctx context.Context, message *Message) (*Message, error) {
	var params CodeActionParams
	if err := json.Unmarshal(message.Params, &params); err != nil {
		return s.errorResponse(message.ID, CodeInvalidParams, "Invalid params", err.Error())
	}
	snap := s.Snapshot()
	path := uriToPath(params.TextDocument.URI)

	actions := []CodeAction{}
	id, ok := snap.FileID(path)
	if !ok {
		return s.successResponse(message.ID, actions)
	}
	tree, _ := snap.ParseFile(id)
	offset, ok := tree.Lines().OffsetUTF16(params.Range.Start.Line, params.Range.Start.Character)
	if !ok {
		return s.errorResponse(message.ID, CodeInvalidParams, "position outside document", nil)
	}

	assists, err := s.engine.Assists(ctx, snap, types.AssistsRequest{Cursor: types.Cursor{File: path, Offset: offset}})
	if err != nil {
		return s.errorResponse(message.ID, CodeInternalError, err.Error(), nil)
	}
	for _, a := range assists {
		if !kindAllowed(string(a.Kind), params.Context.Only) {
			continue
		}
		edit, err := workspaceEdit(snap, a)
		if err != nil {
			s.logger.Warn("dropping assist", "assist", a.ID, "err", err)
			continue
		}
		actions = append(actions, CodeAction{Title: a.Label, Kind: string(a.Kind), Edit: edit})
	}
	s.logger.Debug("code actions", "path", path, "offset", offset, "count", len(actions))
	return s.successResponse(message.ID, actions)
}

// kindAllowed implements the hierarchical match of CodeActionContext.only:
// "refactor" admits "refactor.inline".
func kindAllowed(kind string, only []string) bool {
	if len(only) == 0 {
		return true
	}
	for _, o := range only {
		if kind == o || strings.HasPrefix(kind, o+".") {
			return true
		}
	}
	return false
}

// workspaceEdit converts byte-offset changes into UTF-16 ranges against the
// snapshot the assist was computed on.
func workspaceEdit(snap *workspace.Snapshot, a refactor.Assist) (*WorkspaceEdit, error) {
	edit := &WorkspaceEdit{Changes: make(map[string][]TextEdit)}
	for _, c := range a.Changes {
		id, ok := snap.FileID(c.File)
		if !ok {
			return nil, fmt.Errorf("change targets unknown file %s", c.File)
		}
		tree, _ := snap.ParseFile(id)
		lines := tree.Lines()
		startLine, startChar := lines.PositionUTF16(c.Start)
		endLine, endChar := lines.PositionUTF16(c.End)
		uri := pathToURI(c.File)
		edit.Changes[uri] = append(edit.Changes[uri], TextEdit{
			Range: Range{
				Start: Position{Line: startLine, Character: startChar},
				End:   Position{Line: endLine, Character: endChar},
			},
			NewText: c.NewText,
		})
	}
	return edit, nil
}
