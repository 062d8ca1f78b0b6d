package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mamaar/rsrefactor/internal/cli"
	"github.com/mamaar/rsrefactor/pkg/types"
)

// NewInlineCommand inlines the function call at a position.
func NewInlineCommand(app *cli.App) *cobra.Command {
	return &cobra.Command{
		Use:   "inline <file> <line:col|offset>",
		Short: "Inline the function call at a position",
		Long: `Replace the call under the cursor with a block that binds each argument
to the callee's parameter pattern and then runs the callee's body.

Example:
  rsrefactor inline src/main.rs 8:5`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cursor, err := ParseCursor(args[0], args[1])
			if err != nil {
				return err
			}
			env, err := app.Environment(cmd.Context())
			if err != nil {
				return err
			}
			plan, err := env.Engine.InlineFunction(cmd.Context(), env.Snapshot, types.InlineFunctionRequest{Cursor: cursor})
			if err != nil {
				return fmt.Errorf("creating inline plan: %w", err)
			}
			return ProcessPlan(app, env.Engine, plan, fmt.Sprintf("Inline call at %s %s", args[0], args[1]))
		},
	}
}
