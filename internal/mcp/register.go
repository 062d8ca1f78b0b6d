package mcp

import "github.com/mark3labs/mcp-go/server"

// NewServer creates the MCP server exposing every rsrefactor tool.
func NewServer(state *MCPServer, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"rsrefactor-mcp",
		version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(true, true),
		server.WithLogging(),
		server.WithRecovery(),
	)
	RegisterAllTools(s, state)
	return s
}

// RegisterAllTools wires every rsrefactor tool into the MCP server.
func RegisterAllTools(s *server.MCPServer, state *MCPServer) {
	registerWorkspaceTools(s, state)
	registerInlineTools(s, state)
	registerImportTools(s, state)
}
