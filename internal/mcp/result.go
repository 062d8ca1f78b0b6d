package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/mamaar/rsrefactor/pkg/types"
)

// PlanResult is the structured output returned by mutating refactoring tools.
type PlanResult struct {
	Description   string   `json:"description"`
	AffectedFiles []string `json:"affected_files"`
	ChangeCount   int      `json:"change_count"`
	Preview       string   `json:"preview,omitempty"`
	Applied       bool     `json:"applied"`
}

// executePlan runs plan and syncs the snapshot with the written files. With
// dryRun set it only renders the preview.
func executePlan(ctx context.Context, state *MCPServer, plan *types.RefactoringPlan, desc string, dryRun bool) (*PlanResult, error) {
	engine := state.GetEngine()
	preview, err := engine.PreviewPlan(plan)
	if err != nil {
		return nil, fmt.Errorf("preview plan: %w", err)
	}
	result := &PlanResult{
		Description:   desc,
		AffectedFiles: plan.AffectedFiles,
		ChangeCount:   len(plan.Changes),
		Preview:       preview,
	}
	if dryRun {
		return result, nil
	}
	if err := engine.ExecutePlan(plan); err != nil {
		return nil, fmt.Errorf("execute plan: %w", err)
	}
	if err := state.SyncWorkspaceChanges(ctx, plan.AffectedFiles); err != nil {
		// The changes are on disk already.
		state.logger.Warn("workspace sync failed", "err", err)
	}
	result.Applied = true
	return result, nil
}

// textResult marshals v to JSON and wraps it in a text tool result.
func textResult(v any) *mcp.CallToolResult {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errResult(err)
	}
	return mcp.NewToolResultText(string(b))
}

// errResult returns a CallToolResult that signals an error.
func errResult(err error) *mcp.CallToolResult {
	return mcp.NewToolResultError(err.Error())
}
