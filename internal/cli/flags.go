package cli

import "github.com/spf13/cobra"

// Flags holds the global command line flags
type Flags struct {
	Workspace string
	Config    string
	DryRun    bool
	JSON      bool
	Verbose   bool
	Backup    bool
	LogLevel  string
}

// bind registers the flags as persistent flags of root.
func (f *Flags) bind(root *cobra.Command) {
	pf := root.PersistentFlags()
	pf.StringVarP(&f.Workspace, "workspace", "w", ".", "Path to workspace root (defaults to current directory)")
	pf.StringVar(&f.Config, "config", "", "Config file (defaults to .rsrefactor.yaml in the workspace root)")
	pf.BoolVar(&f.DryRun, "dry-run", false, "Preview changes without applying them")
	pf.BoolVar(&f.JSON, "json", false, "Output results in JSON format")
	pf.BoolVarP(&f.Verbose, "verbose", "v", false, "Enable verbose output")
	pf.BoolVar(&f.Backup, "backup", false, "Create backup files before making changes")
	pf.StringVar(&f.LogLevel, "log-level", "", "Log level (debug, info, warn, error); overrides the config file")
}
