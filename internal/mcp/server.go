package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/mamaar/rsrefactor/pkg/config"
	"github.com/mamaar/rsrefactor/pkg/refactor"
	"github.com/mamaar/rsrefactor/pkg/watch"
	"github.com/mamaar/rsrefactor/pkg/workspace"
)

var errNoWorkspace = errors.New("no workspace loaded: call load_workspace first")

// MCPServer holds the shared state for the MCP tool handlers:
// a loaded workspace, its refactoring engine, and an optional
// filesystem watcher that moves the workspace to new snapshots.
type MCPServer struct {
	mu      sync.Mutex
	engine  *refactor.DefaultEngine
	config  *config.Config
	root    string
	updater *watch.Updater
	watcher *watch.Watcher
	cancel  context.CancelFunc // stops watcher goroutines
	logger  *slog.Logger
}

// NewMCPServer creates a new MCPServer. A nil cfg uses the defaults.
func NewMCPServer(cfg *config.Config, logger *slog.Logger) *MCPServer {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	eng := refactor.CreateEngineWithConfig(cfg.Engine(false), logger)
	return &MCPServer{
		engine: eng.(*refactor.DefaultEngine),
		config: cfg,
		logger: logger,
	}
}

// LoadWorkspace loads (or reloads) the workspace at path. When watching is
// enabled a background watcher keeps the snapshot current.
func (s *MCPServer) LoadWorkspace(ctx context.Context, path string) (*workspace.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopWatcherLocked()

	s.logger.Info("loading workspace", "path", path)
	snap, err := s.engine.LoadWorkspace(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("load workspace: %w", err)
	}
	s.root = path
	s.updater = watch.NewUpdater(path, snap, s.logger, s.engine.WorkspaceOptions()...)

	if !s.config.Watch.Enabled {
		return snap, nil
	}
	w, err := watch.NewWatcher(path,
		watch.WithDebounce(s.config.Watch.Debounce),
		watch.WithIgnore(s.config.Workspace.Exclude...),
		watch.WithWatchLogger(s.logger),
	)
	if err != nil {
		s.logger.Warn("watcher unavailable, workspace will not auto-update", "err", err)
		return snap, nil
	}
	s.watcher = w

	watchCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	ch := make(chan []watch.ChangeEvent, 4)
	go func() {
		if err := w.Run(watchCtx, ch); err != nil && watchCtx.Err() == nil {
			s.logger.Error("watcher error", "err", err)
		}
	}()
	go s.updater.Follow(watchCtx, ch)

	return snap, nil
}

// Snapshot returns the current snapshot or an error if none is loaded.
func (s *MCPServer) Snapshot() (*workspace.Snapshot, error) {
	s.mu.Lock()
	u := s.updater
	s.mu.Unlock()
	if u == nil {
		return nil, errNoWorkspace
	}
	return u.Snapshot(), nil
}

// Root returns the path of the loaded workspace.
func (s *MCPServer) Root() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.root
}

// GetEngine returns the refactoring engine.
func (s *MCPServer) GetEngine() *refactor.DefaultEngine {
	return s.engine
}

// SyncWorkspaceChanges moves to a new snapshot holding the given files'
// current content. Tools call it after writing files so the next request
// does not wait for the watcher.
func (s *MCPServer) SyncWorkspaceChanges(ctx context.Context, files []string) error {
	s.mu.Lock()
	u := s.updater
	s.mu.Unlock()
	if u == nil || len(files) == 0 {
		return nil
	}
	events := make([]watch.ChangeEvent, len(files))
	for i, file := range files {
		events[i] = watch.ChangeEvent{Path: file, Op: fsnotify.Write}
	}
	_, err := u.HandleChanges(ctx, events)
	return err
}

// Close stops the watcher and releases resources.
func (s *MCPServer) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopWatcherLocked()
}

func (s *MCPServer) stopWatcherLocked() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	if s.watcher != nil {
		_ = s.watcher.Close()
		s.watcher = nil
	}
}
