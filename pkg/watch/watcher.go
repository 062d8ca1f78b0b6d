package watch

import (
	"cmp"
	"context"
	"io/fs"
	"log/slog"
	"path/filepath"
	"slices"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/mamaar/rsrefactor/pkg/syntax/rust"
	"github.com/mamaar/rsrefactor/pkg/workspace"
)

// ChangeEvent is one file that changed during a debounce window. Op holds
// every operation seen for the path in that window.
type ChangeEvent struct {
	Path string
	Op   fsnotify.Op
}

const relevantOps = fsnotify.Create | fsnotify.Write | fsnotify.Remove | fsnotify.Rename

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithDebounce sets how long the watcher waits for quiet before emitting.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) { w.debounce = d }
}

// WithWatchLogger sets the logger.
func WithWatchLogger(l *slog.Logger) WatcherOption {
	return func(w *Watcher) { w.logger = l }
}

// WithIgnore adds gitignore-style patterns on top of the root .gitignore.
func WithIgnore(patterns ...string) WatcherOption {
	return func(w *Watcher) { w.exclude = append(w.exclude, patterns...) }
}

// Watcher follows Rust sources and Cargo manifests under a workspace root
// and emits them in debounced batches sorted by path. Directories the
// workspace loader skips are not watched.
type Watcher struct {
	root     string
	debounce time.Duration
	exclude  []string
	logger   *slog.Logger
	ignored  func(path string, dir bool) bool
	fsw      *fsnotify.Watcher
}

// NewWatcher starts watching every directory under root.
func NewWatcher(root string, opts ...WatcherOption) (*Watcher, error) {
	w := &Watcher{root: root, debounce: 300 * time.Millisecond}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = slog.New(slog.DiscardHandler)
	}
	w.ignored = workspace.IgnoreMatcher(root, w.exclude)

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w.fsw = fsw
	if err := w.watchTree(root); err != nil {
		_ = fsw.Close()
		return nil, err
	}
	return w, nil
}

// watchTree adds dir and its non-ignored subdirectories.
func (w *Watcher) watchTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if w.ignored(path, true) {
			return filepath.SkipDir
		}
		return w.fsw.Add(path)
	})
}

// Run forwards batches to out until ctx is cancelled or the watcher is
// closed. fsnotify errors are logged and do not stop the loop.
func (w *Watcher) Run(ctx context.Context, out chan<- []ChangeEvent) error {
	pending := make(map[string]fsnotify.Op)
	timer := time.NewTimer(w.debounce)
	timer.Stop()

	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if ev.Has(fsnotify.Create) {
				w.followDir(ev.Name)
			}
			if w.relevant(ev) {
				pending[ev.Name] |= ev.Op & relevantOps
				timer.Reset(w.debounce)
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("fsnotify error", "err", err)

		case <-timer.C:
			if len(pending) == 0 {
				continue
			}
			batch := drain(pending)
			w.logger.Debug("change batch", "files", len(batch))
			select {
			case out <- batch:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

// Close shuts down the underlying fsnotify watcher.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}

func (w *Watcher) relevant(ev fsnotify.Event) bool {
	if ev.Op&relevantOps == 0 {
		return false
	}
	if filepath.Ext(ev.Name) != rust.Extension && !isManifest(ev.Name) {
		return false
	}
	return !w.ignored(ev.Name, false)
}

// followDir starts watching a directory created after NewWatcher. Adding a
// plain file fails and is ignored.
func (w *Watcher) followDir(path string) {
	if w.ignored(path, true) {
		return
	}
	if err := w.watchTree(path); err != nil {
		w.logger.Debug("not watching", "path", path, "err", err)
	}
}

func drain(pending map[string]fsnotify.Op) []ChangeEvent {
	batch := make([]ChangeEvent, 0, len(pending))
	for p, op := range pending {
		batch = append(batch, ChangeEvent{Path: p, Op: op})
		delete(pending, p)
	}
	slices.SortFunc(batch, func(a, b ChangeEvent) int { return cmp.Compare(a.Path, b.Path) })
	return batch
}
