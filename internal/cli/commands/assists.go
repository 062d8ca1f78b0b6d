package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mamaar/rsrefactor/internal/cli"
	"github.com/mamaar/rsrefactor/pkg/types"
)

type assistJSON struct {
	Index int    `json:"index"`
	ID    string `json:"id"`
	Kind  string `json:"kind"`
	Label string `json:"label"`
}

// NewAssistsCommand lists the assists at a position and optionally applies
// one of them.
func NewAssistsCommand(app *cli.App) *cobra.Command {
	var apply int
	cmd := &cobra.Command{
		Use:   "assists <file> <line:col|offset>",
		Short: "List the assists applicable at a position",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cursor, err := ParseCursor(args[0], args[1])
			if err != nil {
				return err
			}
			env, err := app.Environment(cmd.Context())
			if err != nil {
				return err
			}
			assists, err := env.Engine.Assists(cmd.Context(), env.Snapshot, types.AssistsRequest{Cursor: cursor})
			if err != nil {
				return err
			}

			if apply > 0 {
				if apply > len(assists) {
					return fmt.Errorf("--apply %d: only %d assists available", apply, len(assists))
				}
				a := assists[apply-1]
				return ProcessPlan(app, env.Engine, a.Plan(), a.Label)
			}

			if app.Flags.JSON {
				out := make([]assistJSON, 0, len(assists))
				for i, a := range assists {
					out = append(out, assistJSON{Index: i + 1, ID: a.ID, Kind: string(a.Kind), Label: a.Label})
				}
				return OutputJSON(app.Out, out)
			}
			if len(assists) == 0 {
				fmt.Fprintln(app.Out, "No assists available")
				return nil
			}
			for i, a := range assists {
				fmt.Fprintf(app.Out, "%d. %s (%s)\n", i+1, a.Label, a.Kind)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&apply, "apply", 0, "Apply the assist with this 1-based index")
	return cmd
}
