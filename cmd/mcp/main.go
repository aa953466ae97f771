// Command mcp serves gambit tools to MCP clients over stdio.
//
// The demo tools are always served. When GAMBIT_PROVIDER is configured, an
// "agent" tool is added that runs a full gambit agent on a task.
//
// Configuration for Claude Desktop:
//
//	{
//	    "mcpServers": {
//	        "gambit": {
//	            "command": "go",
//	            "args": ["run", "./cmd/mcp"],
//	            "cwd": "/path/to/gambit"
//	        }
//	    }
//	}
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/spetersoncode/gambit/agent"
	"github.com/spetersoncode/gambit/internal/config"
	"github.com/spetersoncode/gambit/internal/demo"
	"github.com/spetersoncode/gambit/mcp"
	"github.com/spetersoncode/gambit/tool"
)

func main() {
	// stdout carries the protocol
	logger := config.NewLogger(os.Stderr, os.Getenv("GAMBIT_LOG_LEVEL"))
	slog.SetDefault(logger)

	registry, closeFn := buildRegistry(context.Background(), logger)
	defer closeFn()

	logger.Info("serving MCP tools", "tools", registry.Names())
	if err := mcp.ServeStdio(registry,
		mcp.WithName("gambit"),
		mcp.WithVersion("1.0.0"),
	); err != nil {
		logger.Error("mcp server failed", "error", err)
		os.Exit(1)
	}
}

// buildRegistry returns the demo tools plus an agent tool when a provider is
// configured. Configuration errors only disable the agent tool.
func buildRegistry(ctx context.Context, logger *slog.Logger) (*tool.Registry, func()) {
	registry := demo.Registry()
	noop := func() {}

	cfg, err := config.Load()
	if err != nil {
		logger.Info("agent tool disabled", "reason", err)
		return registry, noop
	}
	provider, err := config.NewProvider(ctx, cfg)
	if err != nil {
		logger.Warn("agent tool disabled", "error", err)
		return registry, noop
	}

	spec := &config.AgentSpec{Name: "agent"}
	if cfg.AgentFile != "" {
		if spec, err = config.LoadAgentFile(cfg.AgentFile); err != nil {
			logger.Warn("agent tool disabled", "error", err)
			return registry, noop
		}
	}
	built, err := spec.Build(ctx, provider, demo.Registry(), logger, cfg.AgentOptions()...)
	if err != nil {
		logger.Warn("agent tool disabled", "error", err)
		return registry, noop
	}

	registry.Add(agent.NewTool("agent", built.Agent,
		agent.WithToolDescription("Run a gambit agent on a task. The agent can call the demo tools and write code."),
		agent.WithRawTask(),
	))
	return registry, func() { _ = built.Close() }
}
