package mcp

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/mamaar/rsrefactor/pkg/refactor"
	"github.com/mamaar/rsrefactor/pkg/types"
)

// ImportSearchOutput is the result of both import searches.
type ImportSearchOutput struct {
	Query      string                     `json:"query"`
	Mode       string                     `json:"mode"`
	Candidates []refactor.ImportCandidate `json:"candidates"`
}

func scopeOptions() []mcp.ToolOption {
	return []mcp.ToolOption{
		mcp.WithString("crate", mcp.Description("Crate to search from; defaults to the crate of file")),
		mcp.WithString("file", mcp.Description("A file of the crate to search from")),
		mcp.WithBoolean("exclude_assoc_items",
			mcp.Description("Leave out trait members and enum variants"),
			mcp.DefaultBool(false),
		),
	}
}

func registerImportTools(s *server.MCPServer, state *MCPServer) {
	exact := append([]mcp.ToolOption{
		mcp.WithDescription("Find every definition visible to a crate whose name equals the given name (case-sensitive)."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Exact name to look for")),
	}, scopeOptions()...)
	s.AddTool(mcp.NewTool("find_exact_imports", exact...), findImportsHandler(state, types.ExactImports))

	similar := append([]mcp.ToolOption{
		mcp.WithDescription("Fuzzy-search definitions visible to a crate, for completion-style lookups."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Fuzzy query")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of candidates; 0 uses the configured limit")),
		mcp.WithBoolean("name_only",
			mcp.Description("Match against item names only instead of full paths"),
			mcp.DefaultBool(true),
		),
		mcp.WithBoolean("case_sensitive", mcp.DefaultBool(false)),
	}, scopeOptions()...)
	s.AddTool(mcp.NewTool("find_similar_imports", similar...), findImportsHandler(state, types.SimilarImports))
}

func findImportsHandler(state *MCPServer, mode types.ImportSearchMode) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		snap, err := state.Snapshot()
		if err != nil {
			return errResult(err), nil
		}
		name, err := request.RequireString("name")
		if err != nil {
			return errResult(err), nil
		}
		req := types.FindImportsRequest{
			Crate:             request.GetString("crate", ""),
			File:              resolveFile(state, request.GetString("file", "")),
			Text:              name,
			Mode:              mode,
			ExcludeAssocItems: request.GetBool("exclude_assoc_items", false),
		}
		if mode == types.SimilarImports {
			req.Limit = request.GetInt("limit", 0)
			req.NameOnly = request.GetBool("name_only", true)
			req.CaseSensitive = request.GetBool("case_sensitive", false)
		}
		candidates, err := state.GetEngine().FindImports(ctx, snap, req)
		if err != nil {
			return errResult(err), nil
		}
		return textResult(ImportSearchOutput{Query: name, Mode: mode.String(), Candidates: candidates}), nil
	}
}
