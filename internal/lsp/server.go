package lsp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/mamaar/rsrefactor/pkg/config"
	"github.com/mamaar/rsrefactor/pkg/refactor"
	"github.com/mamaar/rsrefactor/pkg/watch"
	"github.com/mamaar/rsrefactor/pkg/workspace"
)

// ErrExitWithoutShutdown is returned by Serve when the client sent exit
// without a preceding shutdown request.
var ErrExitWithoutShutdown = errors.New("exit received before shutdown")

// errExit stops the message loop.
var errExit = errors.New("exit")

// Server speaks the Language Server Protocol over one connection and answers
// code action requests from the assists engine.
type Server struct {
	mu           sync.RWMutex
	engine       *refactor.DefaultEngine
	updater      *watch.Updater
	rootPath     string
	open         map[string]bool
	initialized  bool
	shutdown     bool
	version      string
	logger       *slog.Logger
	capabilities ServerCapabilities
}

// NewServer creates a new LSP server instance. A nil cfg uses the defaults.
func NewServer(cfg *config.Config, version string, logger *slog.Logger) *Server {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Server{
		engine:  refactor.CreateEngineWithConfig(cfg.Engine(false), logger).(*refactor.DefaultEngine),
		open:    make(map[string]bool),
		version: version,
		logger:  logger,
		capabilities: ServerCapabilities{
			CodeActionProvider: &CodeActionOptions{
				CodeActionKinds: []string{
					string(refactor.KindRefactorInline),
					string(refactor.KindQuickFix),
				},
			},
			TextDocumentSync: &TextDocumentSyncOptions{
				OpenClose: true,
				Change:    TextDocumentSyncKindFull,
			},
		},
	}
}

// Start serves stdio when port is 0 and TCP otherwise.
func (s *Server) Start(ctx context.Context, port int) error {
	if port == 0 {
		return s.ServeStdio(ctx)
	}
	return s.ServeTCP(ctx, port)
}

// ServeStdio serves the LSP over stdio
func (s *Server) ServeStdio(ctx context.Context) error {
	s.logger.Info("starting LSP server on stdio")
	return s.Serve(ctx, os.Stdin, os.Stdout)
}

// ServeTCP accepts one connection at a time on port. Each connection is a
// full session from initialize to exit.
func (s *Server) ServeTCP(ctx context.Context, port int) error {
	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return fmt.Errorf("failed to listen on port %d: %w", port, err)
	}
	go func() {
		<-ctx.Done()
		listener.Close()
	}()
	s.logger.Info("starting LSP server", "port", port)

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			s.logger.Warn("failed to accept connection", "err", err)
			continue
		}
		err = s.Serve(ctx, conn, conn)
		conn.Close()
		if err != nil && !errors.Is(err, ErrExitWithoutShutdown) {
			s.logger.Error("error serving connection", "err", err)
		}
		s.reset()
	}
}

// Serve runs the message loop until the client sends exit, the stream ends
// or ctx is cancelled.
func (s *Server) Serve(ctx context.Context, reader io.Reader, writer io.Writer) error {
	connection := NewConnection(reader, writer, s.logger)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		message, err := connection.ReadMessage()
		if err != nil {
			if errors.Is(err, io.EOF) {
				s.logger.Info("connection closed")
				return nil
			}
			return err
		}

		response, err := s.handleMessage(ctx, message)
		if errors.Is(err, errExit) {
			s.mu.RLock()
			clean := s.shutdown
			s.mu.RUnlock()
			if !clean {
				return ErrExitWithoutShutdown
			}
			return nil
		}
		if err != nil {
			s.logger.Warn("error handling message", "method", message.Method, "err", err)
			continue
		}
		if response != nil {
			if err := connection.WriteMessage(response); err != nil {
				return fmt.Errorf("failed to write response: %w", err)
			}
		}
	}
}

// handleMessage dispatches one message. Requests get a response; notifications
// return nil.
func (s *Server) handleMessage(ctx context.Context, message *Message) (*Message, error) {
	switch message.Method {
	case "initialize":
		return s.handleInitialize(ctx, message)
	case "initialized":
		return nil, nil
	case "shutdown":
		return s.handleShutdown(message)
	case "exit":
		return nil, errExit
	}

	s.mu.RLock()
	ready, down := s.initialized, s.shutdown
	s.mu.RUnlock()
	isRequest := message.ID != nil
	switch {
	case down && isRequest:
		return s.errorResponse(message.ID, CodeInvalidRequest, "server is shutting down", nil)
	case !ready && isRequest:
		return s.errorResponse(message.ID, CodeServerNotInitialized, "server not initialized", nil)
	case down || !ready:
		return nil, nil
	}

	switch message.Method {
	case "textDocument/didOpen":
		return nil, s.handleDidOpen(ctx, message)
	case "textDocument/didChange":
		return nil, s.handleDidChange(ctx, message)
	case "textDocument/didClose":
		return nil, s.handleDidClose(ctx, message)
	case "textDocument/codeAction":
		return s.handleCodeAction(ctx, message)
	}
	if isRequest {
		return s.errorResponse(message.ID, CodeMethodNotFound, "method not found: "+message.Method, nil)
	}
	s.logger.Debug("unhandled notification", "method", message.Method)
	return nil, nil
}

func (s *Server) handleInitialize(ctx context.Context, message *Message) (*Message, error) {
	var params InitializeParams
	if err := json.Unmarshal(message.Params, &params); err != nil {
		return s.errorResponse(message.ID, CodeInvalidParams, "Invalid params", err.Error())
	}

	root := params.RootPath
	if params.RootURI != "" {
		root = uriToPath(params.RootURI)
	}
	if root == "" {
		return s.errorResponse(message.ID, CodeInvalidParams, "rootUri is required", nil)
	}

	s.logger.Info("loading workspace", "root", root)
	snap, err := s.engine.LoadWorkspace(ctx, root)
	if err != nil {
		return s.errorResponse(message.ID, CodeInternalError, err.Error(), nil)
	}

	s.mu.Lock()
	s.rootPath = root
	s.updater = watch.NewUpdater(root, snap, s.logger, s.engine.WorkspaceOptions()...)
	s.initialized = true
	s.mu.Unlock()

	return s.successResponse(message.ID, InitializeResult{
		Capabilities: s.capabilities,
		ServerInfo:   &ServerInfo{Name: "rsrefactor-lsp", Version: s.version},
	})
}

func (s *Server) handleShutdown(message *Message) (*Message, error) {
	s.mu.Lock()
	s.shutdown = true
	s.mu.Unlock()
	return s.successResponse(message.ID, nil)
}

// reset forgets the session so a new TCP client can initialize again.
func (s *Server) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updater = nil
	s.rootPath = ""
	s.open = make(map[string]bool)
	s.initialized = false
	s.shutdown = false
}

// Snapshot returns the current workspace snapshot, or nil before initialize.
func (s *Server) Snapshot() *workspace.Snapshot {
	s.mu.RLock()
	u := s.updater
	s.mu.RUnlock()
	if u == nil {
		return nil
	}
	return u.Snapshot()
}

func (s *Server) successResponse(id any, result any) (*Message, error) {
	if result == nil {
		result = json.RawMessage("null")
	}
	return &Message{JSONRPC: "2.0", ID: id, Result: result}, nil
}

func (s *Server) errorResponse(id any, code int, message string, data any) (*Message, error) {
	return &Message{
		JSONRPC: "2.0",
		ID:      id,
		Error:   &ResponseError{Code: code, Message: message, Data: data},
	}, nil
}

func uriToPath(uri string) string {
	if !strings.HasPrefix(uri, "file://") {
		return uri
	}
	u, err := url.Parse(uri)
	if err != nil {
		return strings.TrimPrefix(uri, "file://")
	}
	return filepath.Clean(filepath.FromSlash(u.Path))
}

func pathToURI(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(path)}).String()
}
