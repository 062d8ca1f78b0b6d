package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/mamaar/rsrefactor/pkg/config"
	"github.com/mamaar/rsrefactor/pkg/refactor"
	"github.com/mamaar/rsrefactor/pkg/workspace"
)

const usageLong = `rsrefactor - assists and import search for Rust workspaces

Positions are either LINE:COLUMN (1-based, columns count bytes) or a byte
offset into the file.

Examples:
  rsrefactor inline src/main.rs 12:9 --dry-run
  rsrefactor assists src/main.rs 12:9
  rsrefactor imports exact HashMap --file src/main.rs
  rsrefactor imports similar hsmp --crate app --limit 10`

// App represents the rsrefactor application
type App struct {
	Flags Flags
	Out   io.Writer
	Err   io.Writer
	root  *cobra.Command
}

// NewApp creates a new application instance writing to out and errOut.
func NewApp(out, errOut io.Writer) *App {
	app := &App{Out: out, Err: errOut}
	app.root = &cobra.Command{
		Use:           "rsrefactor",
		Short:         "Refactoring assists and import search for Rust",
		Long:          usageLong,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	app.root.SetOut(out)
	app.root.SetErr(errOut)
	app.Flags.bind(app.root)
	return app
}

// AddCommand registers subcommands.
func (app *App) AddCommand(cmds ...*cobra.Command) {
	app.root.AddCommand(cmds...)
}

// Execute runs the command line args.
func (app *App) Execute(ctx context.Context, args []string) error {
	app.root.SetArgs(args)
	return app.root.ExecuteContext(ctx)
}

// Env is what a command needs to run against the workspace.
type Env struct {
	Config   *config.Config
	Logger   *slog.Logger
	Engine   *refactor.DefaultEngine
	Snapshot *workspace.Snapshot
}

// Config loads the config file and applies the flag overrides.
func (app *App) Config() (*config.Config, error) {
	cfg, err := config.Load(app.Flags.Config, app.Flags.Workspace)
	if err != nil {
		return nil, err
	}
	switch {
	case app.Flags.LogLevel != "":
		cfg.LogLevel = app.Flags.LogLevel
		if _, err := cfg.Level(); err != nil {
			return nil, fmt.Errorf("--log-level: %w", err)
		}
	case app.Flags.Verbose:
		cfg.LogLevel = "debug"
	}
	return cfg, nil
}

// Environment loads config, creates the engine and loads the workspace.
func (app *App) Environment(ctx context.Context) (*Env, error) {
	cfg, err := app.Config()
	if err != nil {
		return nil, err
	}
	logger := cfg.Logger(app.Err)
	engine := refactor.CreateEngineWithConfig(cfg.Engine(app.Flags.Backup), logger).(*refactor.DefaultEngine)
	snap, err := engine.LoadWorkspace(ctx, app.Flags.Workspace)
	if err != nil {
		return nil, err
	}
	return &Env{Config: cfg, Logger: logger, Engine: engine, Snapshot: snap}, nil
}
