package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/mamaar/rsrefactor/internal/cli"
	"github.com/mamaar/rsrefactor/internal/mcp"
	"github.com/mamaar/rsrefactor/pkg/config"
)

type options struct {
	workspace   string
	configPath  string
	port        int
	metricsAddr string
	logLevel    string
	watch       bool
}

func main() {
	var opts options
	root := &cobra.Command{
		Use:           "rsrefactor-mcp",
		Short:         "Model Context Protocol server for Rust refactoring",
		Version:       cli.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), opts)
		},
	}
	f := root.Flags()
	f.StringVar(&opts.workspace, "workspace", "", "Workspace to load at startup (optional; clients can call load_workspace)")
	f.StringVar(&opts.configPath, "config", "", "Config file (defaults to .rsrefactor.yaml in the workspace root)")
	f.IntVar(&opts.port, "port", 0, "TCP port for streamable HTTP (0 for stdio)")
	f.StringVar(&opts.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address, e.g. :9090")
	f.StringVar(&opts.logLevel, "log-level", "", "Log level; overrides the config file")
	f.BoolVar(&opts.watch, "watch", false, "Watch the workspace and keep it current")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options) error {
	rootDir := opts.workspace
	if rootDir == "" {
		rootDir = "."
	}
	cfg, err := config.Load(opts.configPath, rootDir)
	if err != nil {
		return err
	}
	if opts.logLevel != "" {
		cfg.LogLevel = opts.logLevel
		if _, err := cfg.Level(); err != nil {
			return fmt.Errorf("--log-level: %w", err)
		}
	}
	if opts.watch {
		cfg.Watch.Enabled = true
	}
	// stdout carries the protocol in stdio mode.
	logger := cfg.Logger(os.Stderr)

	state := mcp.NewMCPServer(cfg, logger)
	defer state.Close()
	if opts.workspace != "" {
		abs, err := filepath.Abs(opts.workspace)
		if err != nil {
			return fmt.Errorf("resolve workspace path: %w", err)
		}
		if _, err := state.LoadWorkspace(ctx, abs); err != nil {
			return err
		}
	}

	if opts.metricsAddr != "" {
		go serveMetrics(opts.metricsAddr, logger)
	}

	s := mcp.NewServer(state, cli.Version)
	if opts.port == 0 {
		logger.Info("serving MCP over stdio")
		return server.ServeStdio(s)
	}
	addr := fmt.Sprintf(":%d", opts.port)
	logger.Info("serving MCP over streamable HTTP", "addr", addr)
	return server.NewStreamableHTTPServer(s).Start(addr)
}

func serveMetrics(addr string, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	logger.Info("serving metrics", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("metrics server failed", "err", err)
	}
}
