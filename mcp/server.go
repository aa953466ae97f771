package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	ai "github.com/spetersoncode/gambit"
	"github.com/spetersoncode/gambit/tool"
)

// ServerOption configures a Server.
type ServerOption func(*serverConfig)

type serverConfig struct {
	name    string
	version string
}

// WithName sets the server name reported to MCP clients.
func WithName(name string) ServerOption {
	return func(c *serverConfig) {
		c.name = name
	}
}

// WithVersion sets the server version reported to MCP clients.
func WithVersion(version string) ServerOption {
	return func(c *serverConfig) {
		c.version = version
	}
}

// NewServer creates an MCP server exposing the tools of registry.
// final_answer is an agent control tool and is not exposed. Arguments are
// validated against each tool's schema before the handler runs.
//
// Example:
//
//	s := mcp.NewServer(registry, mcp.WithName("my-tools"))
//	server.ServeStdio(s)
func NewServer(registry *tool.Registry, opts ...ServerOption) *server.MCPServer {
	cfg := &serverConfig{
		name:    "gambit",
		version: "1.0.0",
	}
	for _, opt := range opts {
		opt(cfg)
	}

	s := server.NewMCPServer(
		cfg.name,
		cfg.version,
		server.WithToolCapabilities(true),
	)

	for _, t := range registry.Describe() {
		if t.Name == tool.FinalAnswerName {
			continue
		}
		s.AddTool(ToMCPTool(t), serverHandler(registry, t.Name))
	}
	return s
}

func serverHandler(registry *tool.Registry, name string) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := "{}"
		if req.Params.Arguments != nil {
			data, err := json.Marshal(req.Params.Arguments)
			if err != nil {
				return mcp.NewToolResultError(fmt.Sprintf("failed to marshal arguments: %v", err)), nil
			}
			args = string(data)
		}

		call := ai.ToolCall{ID: ai.GenerateCallID(), Name: name, Arguments: args}
		if err := registry.Validate(call); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		result, err := registry.Execute(ctx, call)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return ToMCPCallToolResult(result), nil
	}
}

// ServeStdio serves registry over stdin/stdout, the transport MCP clients
// use for servers started as subprocesses.
func ServeStdio(registry *tool.Registry, opts ...ServerOption) error {
	return server.ServeStdio(NewServer(registry, opts...))
}
