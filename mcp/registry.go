package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
	ai "github.com/spetersoncode/gambit"
	"github.com/spetersoncode/gambit/tool"
)

// RemoteError is returned by remote tool handlers when the MCP server
// reports a failed call.
type RemoteError struct {
	Tool    string
	Message string
}

func (e *RemoteError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("remote tool %s failed", e.Tool)
	}
	return e.Message
}

// RemoteOption configures a RemoteRegistry.
type RemoteOption func(*remoteConfig)

type remoteConfig struct {
	prefix     string
	clientName string
	logger     *slog.Logger
}

// WithPrefix prefixes every remote tool name, e.g. "fs_" turns "read_file"
// into "fs_read_file". Use it to keep tools from several servers apart.
func WithPrefix(prefix string) RemoteOption {
	return func(c *remoteConfig) {
		c.prefix = prefix
	}
}

// WithClientName sets the client name sent during initialization.
func WithClientName(name string) RemoteOption {
	return func(c *remoteConfig) {
		c.clientName = name
	}
}

// WithLogger sets the logger for remote calls.
func WithLogger(l *slog.Logger) RemoteOption {
	return func(c *remoteConfig) {
		c.logger = l
	}
}

// RemoteRegistry provides access to the tools of an MCP server.
//
// RemoteRegistry is safe for concurrent use. The tool list is cached
// locally and can be refreshed with [RemoteRegistry.Refresh].
type RemoteRegistry struct {
	client *client.Client
	cfg    *remoteConfig

	mu    sync.RWMutex
	tools []mcp.Tool
}

// NewRemoteRegistry connects to an MCP server started as a subprocess and
// speaking over stdio. env is passed to the process as KEY=VALUE pairs.
func NewRemoteRegistry(ctx context.Context, command string, env []string, args []string, opts ...RemoteOption) (*RemoteRegistry, error) {
	c, err := client.NewStdioMCPClient(command, env, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to create MCP client: %w", err)
	}
	return NewRemoteRegistryFromClient(ctx, c, opts...)
}

// NewRemoteRegistrySSE connects to an MCP server over SSE.
func NewRemoteRegistrySSE(ctx context.Context, baseURL string, opts ...RemoteOption) (*RemoteRegistry, error) {
	c, err := client.NewSSEMCPClient(baseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create SSE MCP client: %w", err)
	}
	return NewRemoteRegistryFromClient(ctx, c, opts...)
}

// NewRemoteRegistryFromClient starts and initializes c, then fetches its
// tools. The registry takes ownership of c.
func NewRemoteRegistryFromClient(ctx context.Context, c *client.Client, opts ...RemoteOption) (*RemoteRegistry, error) {
	cfg := &remoteConfig{
		clientName: "gambit",
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	if err := c.Start(ctx); err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to start MCP client: %w", err)
	}

	_, err := c.Initialize(ctx, mcp.InitializeRequest{
		Params: mcp.InitializeParams{
			ProtocolVersion: mcp.LATEST_PROTOCOL_VERSION,
			Capabilities:    mcp.ClientCapabilities{},
			ClientInfo: mcp.Implementation{
				Name:    cfg.clientName,
				Version: "1.0.0",
			},
		},
	})
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to initialize MCP session: %w", err)
	}

	r := &RemoteRegistry{client: c, cfg: cfg}
	if err := r.Refresh(ctx); err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to list tools: %w", err)
	}
	return r, nil
}

// Close closes the connection to the MCP server.
func (r *RemoteRegistry) Close() error {
	return r.client.Close()
}

// Refresh fetches the current list of tools from the MCP server.
// Registrations taken before a refresh keep working for tools that still exist.
func (r *RemoteRegistry) Refresh(ctx context.Context) error {
	result, err := r.client.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools = append([]mcp.Tool(nil), result.Tools...)
	return nil
}

// Tools returns the remote tool definitions under their local names,
// in the order the server listed them.
func (r *RemoteRegistry) Tools() []ai.Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tools := make([]ai.Tool, len(r.tools))
	for i, t := range r.tools {
		tools[i] = r.local(t)
	}
	return tools
}

// Names returns the local names of all remote tools.
func (r *RemoteRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, len(r.tools))
	for i, t := range r.tools {
		names[i] = r.cfg.prefix + t.Name
	}
	return names
}

// Len returns the number of remote tools.
func (r *RemoteRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// Has reports whether a remote tool has the given local name.
func (r *RemoteRegistry) Has(name string) bool {
	_, ok := r.GetTool(name)
	return ok
}

// GetTool retrieves a tool definition by local name.
func (r *RemoteRegistry) GetTool(name string) (ai.Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, t := range r.tools {
		if r.cfg.prefix+t.Name == name {
			return r.local(t), true
		}
	}
	return ai.Tool{}, false
}

// Registrations returns one registration per remote tool, ready for
// [tool.Registry.Add]. Each handler proxies the call to the server.
func (r *RemoteRegistry) Registrations() []tool.Registration {
	r.mu.RLock()
	defer r.mu.RUnlock()

	regs := make([]tool.Registration, len(r.tools))
	for i, t := range r.tools {
		regs[i] = tool.Registration{
			Tool:    r.local(t),
			Handler: r.handler(t.Name),
		}
	}
	return regs
}

// Execute calls a tool on the remote MCP server. Transport failures are
// returned as errors; results flagged as errors are returned with IsError.
func (r *RemoteRegistry) Execute(ctx context.Context, call ai.ToolCall) (ai.ToolResult, error) {
	remote, ok := r.remoteName(call.Name)
	if !ok {
		return ai.ToolResult{}, &tool.ErrToolNotFound{Name: call.Name}
	}

	result, err := r.client.CallTool(ctx, ToMCPCallToolRequest(remote, call))
	if err != nil {
		r.cfg.logger.Warn("remote tool call failed", "tool", remote, "error", err)
		return ai.ToolResult{}, fmt.Errorf("remote tool %s: %w", remote, err)
	}
	return FromMCPCallToolResult(call.ID, result), nil
}

func (r *RemoteRegistry) handler(remote string) tool.Handler {
	return func(ctx context.Context, call ai.ToolCall) (string, error) {
		result, err := r.client.CallTool(ctx, ToMCPCallToolRequest(remote, call))
		if err != nil {
			r.cfg.logger.Warn("remote tool call failed", "tool", remote, "error", err)
			return "", fmt.Errorf("remote tool %s: %w", remote, err)
		}
		if result == nil {
			return "", &RemoteError{Tool: remote}
		}
		text := ResultText(result)
		if result.IsError {
			return "", &RemoteError{Tool: remote, Message: text}
		}
		return text, nil
	}
}

func (r *RemoteRegistry) remoteName(local string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, t := range r.tools {
		if r.cfg.prefix+t.Name == local {
			return t.Name, true
		}
	}
	return "", false
}

func (r *RemoteRegistry) local(t mcp.Tool) ai.Tool {
	converted := FromMCPTool(t)
	converted.Name = r.cfg.prefix + t.Name
	return converted
}

// IsRemoteError reports whether err is a failure reported by an MCP server.
func IsRemoteError(err error) bool {
	var re *RemoteError
	return errors.As(err, &re)
}
