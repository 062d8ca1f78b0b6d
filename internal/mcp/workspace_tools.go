package mcp

import (
	"context"
	"encoding/json"
	"path/filepath"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/mamaar/rsrefactor/pkg/workspace"
)

const cratesURI = "workspace://crates"

// --- load_workspace ---

type LoadWorkspaceOutput struct {
	RootPath string   `json:"root_path"`
	Version  uint64   `json:"version"`
	Crates   []string `json:"crates"`
	Files    int      `json:"file_count"`
	Watching bool     `json:"watching"`
}

// --- workspace_status ---

type WorkspaceStatusOutput struct {
	Loaded   bool        `json:"loaded"`
	RootPath string      `json:"root_path,omitempty"`
	Version  uint64      `json:"version,omitempty"`
	Crates   []CrateInfo `json:"crates,omitempty"`
}

type CrateInfo struct {
	Name  string `json:"name"`
	Files int    `json:"file_count"`
}

func registerWorkspaceTools(s *server.MCPServer, state *MCPServer) {
	s.AddTool(mcp.NewTool("load_workspace",
		mcp.WithDescription("Load a Rust workspace into memory. Must be called before any other tool."),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Absolute path to the workspace root (directory holding Cargo.toml)"),
		),
	), loadWorkspaceHandler(state))

	s.AddTool(mcp.NewTool("workspace_status",
		mcp.WithDescription("Return the loaded workspace: root, snapshot version and crates."),
	), workspaceStatusHandler(state))

	s.AddResource(mcp.NewResource(cratesURI,
		"Crate List",
		mcp.WithResourceDescription("Crates of the loaded workspace with their file counts"),
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		snap, err := state.Snapshot()
		if err != nil {
			return nil, err
		}
		data, err := json.MarshalIndent(crateInfos(snap), "", "  ")
		if err != nil {
			return nil, err
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{URI: cratesURI, MIMEType: "application/json", Text: string(data)},
		}, nil
	})
}

func loadWorkspaceHandler(state *MCPServer) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		path, err := request.RequireString("path")
		if err != nil {
			return errResult(err), nil
		}
		snap, err := state.LoadWorkspace(ctx, path)
		if err != nil {
			return errResult(err), nil
		}
		return textResult(LoadWorkspaceOutput{
			RootPath: path,
			Version:  snap.Version(),
			Crates:   snap.Crates(),
			Files:    len(snap.Files()),
			Watching: state.config.Watch.Enabled,
		}), nil
	}
}

func workspaceStatusHandler(state *MCPServer) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		snap, err := state.Snapshot()
		if err != nil {
			return textResult(WorkspaceStatusOutput{Loaded: false}), nil
		}
		return textResult(WorkspaceStatusOutput{
			Loaded:   true,
			RootPath: state.Root(),
			Version:  snap.Version(),
			Crates:   crateInfos(snap),
		}), nil
	}
}

func crateInfos(snap *workspace.Snapshot) []CrateInfo {
	counts := make(map[string]int)
	for _, path := range snap.Files() {
		id, _ := snap.FileID(path)
		if c, ok := snap.CrateOf(id); ok {
			counts[snap.CrateName(c)]++
		}
	}
	var out []CrateInfo
	for _, name := range snap.Crates() {
		out = append(out, CrateInfo{Name: name, Files: counts[name]})
	}
	return out
}

// resolveFile makes a tool's file argument absolute against the workspace
// root.
func resolveFile(state *MCPServer, file string) string {
	if file == "" || filepath.IsAbs(file) {
		return file
	}
	return filepath.Join(state.Root(), file)
}
