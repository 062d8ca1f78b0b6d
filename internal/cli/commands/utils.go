package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/mamaar/rsrefactor/internal/cli"
	"github.com/mamaar/rsrefactor/pkg/refactor"
	"github.com/mamaar/rsrefactor/pkg/types"
)

// Register adds every rsrefactor command to app.
func Register(app *cli.App) {
	app.AddCommand(
		NewInlineCommand(app),
		NewAssistsCommand(app),
		NewImportsCommand(app),
		app.NewVersionCommand(),
	)
}

// ParseCursor reads a position given as LINE:COLUMN or as a byte offset.
func ParseCursor(file, pos string) (types.Cursor, error) {
	c := types.Cursor{File: file}
	if line, col, ok := strings.Cut(pos, ":"); ok {
		l, err := strconv.Atoi(line)
		if err != nil || l < 1 {
			return c, fmt.Errorf("invalid line in position %q", pos)
		}
		cl, err := strconv.Atoi(col)
		if err != nil || cl < 1 {
			return c, fmt.Errorf("invalid column in position %q", pos)
		}
		c.Line, c.Column = l, cl
		return c, nil
	}
	off, err := strconv.Atoi(pos)
	if err != nil || off < 0 {
		return c, fmt.Errorf("invalid position %q: want LINE:COLUMN or a byte offset", pos)
	}
	c.Offset = off
	return c, nil
}

// OutputJSON writes data as indented JSON
func OutputJSON(w io.Writer, data any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		return fmt.Errorf("encoding JSON: %w", err)
	}
	return nil
}

type changeJSON struct {
	File    string `json:"file"`
	Start   int    `json:"start"`
	End     int    `json:"end"`
	NewText string `json:"new_text"`
}

type planJSON struct {
	Description   string       `json:"description"`
	AffectedFiles []string     `json:"affected_files"`
	Changes       []changeJSON `json:"changes"`
	Preview       string       `json:"preview"`
	Applied       bool         `json:"applied"`
}

// ProcessPlan previews plan, and applies it unless --dry-run is set.
func ProcessPlan(app *cli.App, engine refactor.RefactorEngine, plan *types.RefactoringPlan, description string) error {
	preview, err := engine.PreviewPlan(plan)
	if err != nil {
		return fmt.Errorf("generating preview: %w", err)
	}

	if !app.Flags.JSON {
		fmt.Fprintf(app.Out, "Refactoring Plan: %s\n", description)
		fmt.Fprintf(app.Out, "=================\n")
		fmt.Fprintf(app.Out, "\nAffected Files (%d):\n", len(plan.AffectedFiles))
		for _, file := range plan.AffectedFiles {
			fmt.Fprintf(app.Out, "  - %s\n", file)
		}
		fmt.Fprintf(app.Out, "\nChanges to Apply (%d):\n", len(plan.Changes))
		if app.Flags.Verbose {
			for i, change := range plan.Changes {
				fmt.Fprintf(app.Out, "  %d. %s [%d:%d]\n", i+1, change.File, change.Start, change.End)
			}
		}
	}

	applied := false
	if app.Flags.DryRun {
		if !app.Flags.JSON {
			fmt.Fprintf(app.Out, "\nDry run mode - no changes will be applied\n\n%s", preview)
		}
	} else {
		if err := engine.ExecutePlan(plan); err != nil {
			reportIssues(app.Err, err)
			return fmt.Errorf("executing plan: %w", err)
		}
		applied = true
		if !app.Flags.JSON {
			fmt.Fprintf(app.Out, "\nRefactoring completed successfully!\n")
			fmt.Fprintf(app.Out, "Modified %d files\n", len(plan.AffectedFiles))
		}
	}

	if app.Flags.JSON {
		out := planJSON{
			Description:   description,
			AffectedFiles: plan.AffectedFiles,
			Changes:       make([]changeJSON, 0, len(plan.Changes)),
			Preview:       preview,
			Applied:       applied,
		}
		for _, c := range plan.Changes {
			out.Changes = append(out.Changes, changeJSON{File: c.File, Start: c.Start, End: c.End, NewText: c.NewText})
		}
		return OutputJSON(app.Out, out)
	}
	return nil
}

// reportIssues lists the issues of a validation failure.
func reportIssues(w io.Writer, err error) {
	var valErr *types.ValidationError
	if !errors.As(err, &valErr) {
		return
	}
	fmt.Fprintf(w, "\nValidation Issues:\n")
	for i, issue := range valErr.Issues {
		fmt.Fprintf(w, "  %d. %s: %s\n", i+1, issue.Severity.String(), issue.Description)
		if issue.File != "" {
			fmt.Fprintf(w, "     File: %s", issue.File)
			if issue.Line > 0 {
				fmt.Fprintf(w, ":%d", issue.Line)
			}
			fmt.Fprintf(w, "\n")
		}
	}
}
