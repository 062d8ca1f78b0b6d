package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version is the current version of rsrefactor
const Version = "0.1.0"

// NewVersionCommand prints the version.
func (app *App) NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintf(app.Out, "rsrefactor version %s\n", Version)
			return err
		},
	}
}
