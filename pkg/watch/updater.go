package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mamaar/rsrefactor/pkg/workspace"
)

// Updater holds the current workspace snapshot and derives the next version
// from batches of file changes. Readers that took a snapshot keep it; only
// later calls to Snapshot see the new version.
type Updater struct {
	root    string
	opts    []workspace.Option
	logger  *slog.Logger
	current atomic.Pointer[workspace.Snapshot]

	// mu serializes updates so versions increase one batch at a time.
	mu sync.Mutex
}

// NewUpdater creates an Updater starting from snap. opts are reused when a
// manifest change forces a full reload of root.
func NewUpdater(root string, snap *workspace.Snapshot, logger *slog.Logger, opts ...workspace.Option) *Updater {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	u := &Updater{root: root, opts: opts, logger: logger}
	u.current.Store(snap)
	return u
}

// Snapshot returns the current snapshot.
func (u *Updater) Snapshot() *workspace.Snapshot {
	return u.current.Load()
}

// HandleChanges applies one batch of events and returns the new snapshot.
// Source edits go through Snapshot.WithFiles; a changed Cargo.toml reloads
// the whole workspace because the crate graph may differ.
func (u *Updater) HandleChanges(ctx context.Context, events []ChangeEvent) (*workspace.Snapshot, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	start := time.Now()
	old := u.current.Load()

	if slices.ContainsFunc(events, func(ev ChangeEvent) bool { return isManifest(ev.Path) }) {
		next, err := workspace.Load(ctx, u.root, u.opts...)
		if err != nil {
			u.logger.Error("reload failed", "root", u.root, "err", err)
			return old, err
		}
		u.current.Store(next)
		u.logger.Info("reload: manifest changed",
			"version", next.Version(),
			"crates", len(next.Crates()),
			"elapsed", time.Since(start).Round(time.Millisecond),
		)
		return next, nil
	}

	changes, err := u.fileChanges(events)
	if err != nil {
		u.logger.Error("update failed", "files", len(events), "err", err)
		return old, err
	}
	return u.applyLocked(ctx, changes, start)
}

// Apply moves to a snapshot with changes applied. Editors use it to push
// unsaved buffer contents.
func (u *Updater) Apply(ctx context.Context, changes []workspace.FileChange) (*workspace.Snapshot, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.applyLocked(ctx, changes, time.Now())
}

func (u *Updater) applyLocked(ctx context.Context, changes []workspace.FileChange, start time.Time) (*workspace.Snapshot, error) {
	old := u.current.Load()
	if len(changes) == 0 {
		return old, nil
	}
	next, err := old.WithFiles(ctx, changes)
	if err != nil {
		u.logger.Error("update failed", "files", len(changes), "err", err)
		return old, err
	}
	u.current.Store(next)
	u.logger.Info("batch complete",
		"version", next.Version(),
		"files", len(changes),
		"symbols", countSymbols(next),
		"elapsed", time.Since(start).Round(time.Millisecond),
	)
	return next, nil
}

// fileChanges reads the current content of every changed source. The disk
// decides, not the event op: a batch may hold a rename followed by a create
// of the same path, and a missing file counts as deleted.
func (u *Updater) fileChanges(events []ChangeEvent) ([]workspace.FileChange, error) {
	var changes []workspace.FileChange
	for _, ev := range events {
		data, err := os.ReadFile(ev.Path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			changes = append(changes, workspace.FileChange{Path: ev.Path, Deleted: true})
		case err != nil:
			return nil, fmt.Errorf("read %s: %w", ev.Path, err)
		default:
			changes = append(changes, workspace.FileChange{Path: ev.Path, Text: string(data)})
		}
	}
	return changes, nil
}

// Follow applies batches until ctx is cancelled or batches is closed. Failed
// batches are logged and the previous snapshot stays current.
func (u *Updater) Follow(ctx context.Context, batches <-chan []ChangeEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case batch, ok := <-batches:
			if !ok {
				return
			}
			_, _ = u.HandleChanges(ctx, batch)
		}
	}
}

func countSymbols(s *workspace.Snapshot) int {
	n := 0
	for _, name := range s.Crates() {
		if id, ok := s.CrateByName(name); ok {
			n += s.LocalSymbols(id).Len()
		}
	}
	return n
}

func isManifest(path string) bool {
	return filepath.Base(path) == "Cargo.toml"
}
