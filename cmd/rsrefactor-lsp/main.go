package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/mamaar/rsrefactor/internal/cli"
	"github.com/mamaar/rsrefactor/internal/lsp"
	"github.com/mamaar/rsrefactor/pkg/config"
)

type options struct {
	port       int
	configPath string
	logFile    string
	logLevel   string
}

func main() {
	var opts options
	root := &cobra.Command{
		Use:           "rsrefactor-lsp",
		Short:         "Language server offering Rust refactoring assists as code actions",
		Version:       cli.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), opts)
		},
	}
	f := root.Flags()
	f.IntVar(&opts.port, "port", 0, "TCP port to listen on (0 for stdio)")
	f.StringVar(&opts.configPath, "config", "", "Config file (defaults to .rsrefactor.yaml in the working directory)")
	f.StringVar(&opts.logFile, "log-file", "", "Append logs to this file instead of stderr")
	f.StringVar(&opts.logLevel, "log-level", "", "Log level; overrides the config file")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options) error {
	cfg, err := config.Load(opts.configPath, ".")
	if err != nil {
		return err
	}
	if opts.logLevel != "" {
		cfg.LogLevel = opts.logLevel
		if _, err := cfg.Level(); err != nil {
			return fmt.Errorf("--log-level: %w", err)
		}
	}

	// stdout carries the protocol in stdio mode.
	var logOut io.Writer = os.Stderr
	if opts.logFile != "" {
		f, err := os.OpenFile(opts.logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		defer f.Close()
		logOut = f
	}
	logger := cfg.Logger(logOut)

	err = lsp.NewServer(cfg, cli.Version, logger).Start(ctx, opts.port)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
