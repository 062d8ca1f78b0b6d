package mcp

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/mamaar/rsrefactor/pkg/refactor"
	"github.com/mamaar/rsrefactor/pkg/types"
)

// AssistOutput describes one assist offered at a cursor.
type AssistOutput struct {
	ID      string              `json:"id"`
	Kind    refactor.AssistKind `json:"kind"`
	Label   string              `json:"label"`
	Changes int                 `json:"change_count"`
}

func cursorOptions() []mcp.ToolOption {
	return []mcp.ToolOption{
		mcp.WithString("file",
			mcp.Required(),
			mcp.Description("Rust source file, absolute or relative to the workspace root"),
		),
		mcp.WithNumber("line", mcp.Description("1-based line of the cursor")),
		mcp.WithNumber("column", mcp.Description("1-based byte column of the cursor")),
		mcp.WithNumber("offset", mcp.Description("Byte offset of the cursor, used when line is not set")),
	}
}

// cursorFrom reads the cursor arguments shared by the cursor tools.
func cursorFrom(state *MCPServer, request mcp.CallToolRequest) (types.Cursor, error) {
	file, err := request.RequireString("file")
	if err != nil {
		return types.Cursor{}, err
	}
	return types.Cursor{
		File:   resolveFile(state, file),
		Line:   request.GetInt("line", 0),
		Column: request.GetInt("column", 0),
		Offset: request.GetInt("offset", 0),
	}, nil
}

func registerInlineTools(s *server.MCPServer, state *MCPServer) {
	inline := append([]mcp.ToolOption{
		mcp.WithDescription("Inline the function call under the cursor: replace it with a block binding the arguments to the parameters followed by the callee's body."),
	}, cursorOptions()...)
	inline = append(inline, mcp.WithBoolean("dry_run",
		mcp.Description("Only return the diff preview"),
		mcp.DefaultBool(false),
	))
	s.AddTool(mcp.NewTool("inline_function", inline...), inlineFunctionHandler(state))

	list := append([]mcp.ToolOption{
		mcp.WithDescription("List the assists applicable at the cursor."),
	}, cursorOptions()...)
	s.AddTool(mcp.NewTool("list_assists", list...), listAssistsHandler(state))
}

func inlineFunctionHandler(state *MCPServer) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		snap, err := state.Snapshot()
		if err != nil {
			return errResult(err), nil
		}
		cursor, err := cursorFrom(state, request)
		if err != nil {
			return errResult(err), nil
		}
		plan, err := state.GetEngine().InlineFunction(ctx, snap, types.InlineFunctionRequest{Cursor: cursor})
		if err != nil {
			return errResult(err), nil
		}
		desc := fmt.Sprintf("inline call at %s", describeCursor(cursor))
		result, err := executePlan(ctx, state, plan, desc, request.GetBool("dry_run", false))
		if err != nil {
			return errResult(err), nil
		}
		return textResult(result), nil
	}
}

func listAssistsHandler(state *MCPServer) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		snap, err := state.Snapshot()
		if err != nil {
			return errResult(err), nil
		}
		cursor, err := cursorFrom(state, request)
		if err != nil {
			return errResult(err), nil
		}
		assists, err := state.GetEngine().Assists(ctx, snap, types.AssistsRequest{Cursor: cursor})
		if err != nil {
			return errResult(err), nil
		}
		out := make([]AssistOutput, 0, len(assists))
		for _, a := range assists {
			out = append(out, AssistOutput{ID: a.ID, Kind: a.Kind, Label: a.Label, Changes: len(a.Changes)})
		}
		return textResult(out), nil
	}
}

func describeCursor(c types.Cursor) string {
	if c.Line > 0 {
		return fmt.Sprintf("%s:%d:%d", c.File, c.Line, c.Column)
	}
	return fmt.Sprintf("%s@%d", c.File, c.Offset)
}
