package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mamaar/rsrefactor/internal/cli"
	"github.com/mamaar/rsrefactor/pkg/refactor"
	"github.com/mamaar/rsrefactor/pkg/types"
)

type importOptions struct {
	crate         string
	file          string
	limit         int
	excludeAssoc  bool
	nameOnly      bool
	caseSensitive bool
}

// NewImportsCommand groups the import searches.
func NewImportsCommand(app *cli.App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "imports",
		Short: "Search definitions that could be imported",
	}
	cmd.AddCommand(newImportSearchCommand(app, types.ExactImports), newImportSearchCommand(app, types.SimilarImports))
	return cmd
}

func newImportSearchCommand(app *cli.App, mode types.ImportSearchMode) *cobra.Command {
	var opts importOptions
	cmd := &cobra.Command{
		Use:  mode.String() + " <name>",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := app.Environment(cmd.Context())
			if err != nil {
				return err
			}
			candidates, err := env.Engine.FindImports(cmd.Context(), env.Snapshot, types.FindImportsRequest{
				Crate:             opts.crate,
				File:              opts.file,
				Text:              args[0],
				Mode:              mode,
				Limit:             opts.limit,
				ExcludeAssocItems: opts.excludeAssoc,
				NameOnly:          opts.nameOnly,
				CaseSensitive:     opts.caseSensitive,
			})
			if err != nil {
				return err
			}
			return printCandidates(app, candidates)
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.crate, "crate", "", "Crate to search from")
	f.StringVar(&opts.file, "file", "", "A file of the crate to search from")
	f.BoolVar(&opts.excludeAssoc, "exclude-assoc", false, "Leave out trait members and enum variants")
	if mode == types.ExactImports {
		cmd.Short = "Find definitions whose name equals <name>"
		return cmd
	}
	cmd.Short = "Fuzzy-search definitions matching <name>"
	f.IntVar(&opts.limit, "limit", 0, "Maximum number of candidates (0 uses the configured limit)")
	f.BoolVar(&opts.nameOnly, "name-only", true, "Match item names only instead of full paths")
	f.BoolVar(&opts.caseSensitive, "case-sensitive", false, "Match case exactly")
	return cmd
}

func printCandidates(app *cli.App, candidates []refactor.ImportCandidate) error {
	if app.Flags.JSON {
		return OutputJSON(app.Out, candidates)
	}
	if len(candidates) == 0 {
		fmt.Fprintln(app.Out, "No candidates found")
		return nil
	}
	tw := tabwriter.NewWriter(app.Out, 0, 4, 2, ' ', 0)
	for _, c := range candidates {
		path := c.Path
		if path == "" {
			path = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", c.Name, c.Kind, path)
	}
	return tw.Flush()
}
