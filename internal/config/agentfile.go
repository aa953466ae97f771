package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	ai "github.com/spetersoncode/gambit"
	"github.com/spetersoncode/gambit/agent"
	"github.com/spetersoncode/gambit/mcp"
	"github.com/spetersoncode/gambit/resolve"
	"github.com/spetersoncode/gambit/tool"
)

// AgentSpec describes an agent in a YAML agent file.
//
//	name: manager
//	mode: code
//	budget:
//	  max_steps: 10
//	  max_duration: 2m
//	allowed_imports: [math, json]
//	mcp_servers:
//	  - name: files
//	    command: npx
//	    args: ["-y", "@modelcontextprotocol/server-filesystem", "."]
//	managed_agents:
//	  - name: researcher
//	    description: Answers research questions
//	    mode: tool_calling
type AgentSpec struct {
	Name             string        `yaml:"name"`
	Description      string        `yaml:"description"`
	Mode             string        `yaml:"mode"`
	Model            string        `yaml:"model"`
	Instructions     string        `yaml:"instructions"`
	Budget           BudgetSpec    `yaml:"budget"`
	PlanningInterval int           `yaml:"planning_interval"`
	AllowedImports   []string      `yaml:"allowed_imports"`
	ExecutionTimeout time.Duration `yaml:"execution_timeout"`
	PlainTextAnswer  bool          `yaml:"plain_text_answer"`
	DemoTools        *bool         `yaml:"demo_tools"`
	MCPServers       []MCPServer   `yaml:"mcp_servers"`
	ManagedAgents    []AgentSpec   `yaml:"managed_agents"`
}

// BudgetSpec mirrors agent.Budget.
type BudgetSpec struct {
	MaxSteps    int           `yaml:"max_steps"`
	MaxDuration time.Duration `yaml:"max_duration"`
	MaxTokens   int           `yaml:"max_tokens"`
}

// MCPServer describes a remote MCP tool server. Command starts a stdio
// server; URL connects to an SSE server.
type MCPServer struct {
	Name    string   `yaml:"name"`
	Command string   `yaml:"command"`
	Args    []string `yaml:"args"`
	Env     []string `yaml:"env"`
	URL     string   `yaml:"url"`
	Prefix  string   `yaml:"prefix"`
}

// LoadAgentFile reads and validates a YAML agent file.
func LoadAgentFile(path string) (*AgentSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read agent file: %w", err)
	}
	return ParseAgentSpec(data)
}

// ParseAgentSpec decodes and validates a YAML agent description.
func ParseAgentSpec(data []byte) (*AgentSpec, error) {
	var spec AgentSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("failed to parse agent file: %w", err)
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	return &spec, nil
}

// Validate checks the agent file and every managed agent below it.
func (s *AgentSpec) Validate() error {
	if s.Mode != "" && !resolve.Mode(s.Mode).Valid() {
		return fmt.Errorf("agent %q: unknown mode %q", s.Name, s.Mode)
	}
	if s.Budget.MaxSteps < 0 || s.Budget.MaxTokens < 0 || s.Budget.MaxDuration < 0 {
		return fmt.Errorf("agent %q: budget limits must not be negative", s.Name)
	}
	for _, srv := range s.MCPServers {
		if (srv.Command == "") == (srv.URL == "") {
			return fmt.Errorf("agent %q: mcp server %q needs exactly one of command or url", s.Name, srv.Name)
		}
	}
	seen := make(map[string]bool)
	for i := range s.ManagedAgents {
		m := &s.ManagedAgents[i]
		if m.Name == "" {
			return fmt.Errorf("agent %q: managed agent %d has no name", s.Name, i)
		}
		if seen[m.Name] {
			return fmt.Errorf("agent %q: duplicate managed agent %q", s.Name, m.Name)
		}
		seen[m.Name] = true
		if err := m.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Options converts the agent file to agent options. Zero fields keep the agent defaults.
func (s *AgentSpec) Options() []agent.Option {
	var opts []agent.Option
	if s.Name != "" {
		opts = append(opts, agent.WithName(s.Name))
	}
	if s.Mode != "" {
		opts = append(opts, agent.WithMode(resolve.Mode(s.Mode)))
	}
	if s.Model != "" {
		opts = append(opts, agent.WithModel(s.Model))
	}
	if s.Instructions != "" {
		opts = append(opts, agent.WithInstructions(s.Instructions))
	}
	if s.Budget.MaxSteps > 0 {
		opts = append(opts, agent.WithMaxSteps(s.Budget.MaxSteps))
	}
	if s.Budget.MaxDuration > 0 {
		opts = append(opts, agent.WithMaxDuration(s.Budget.MaxDuration))
	}
	if s.Budget.MaxTokens > 0 {
		opts = append(opts, agent.WithMaxTokens(s.Budget.MaxTokens))
	}
	if s.PlanningInterval > 0 {
		opts = append(opts, agent.WithPlanningInterval(s.PlanningInterval))
	}
	if len(s.AllowedImports) > 0 {
		opts = append(opts, agent.WithAllowedImports(s.AllowedImports...))
	}
	if s.ExecutionTimeout > 0 {
		opts = append(opts, agent.WithExecutionTimeout(s.ExecutionTimeout))
	}
	if s.PlainTextAnswer {
		opts = append(opts, agent.WithPlainTextFinalAnswer(true))
	}
	return opts
}

// Built is an agent assembled from an agent file together with the MCP
// connections it holds open.
type Built struct {
	Agent   *agent.Agent
	remotes []*mcp.RemoteRegistry
}

// Close closes every MCP connection opened for the agent tree.
func (b *Built) Close() error {
	var errs []error
	for _, r := range b.remotes {
		errs = append(errs, r.Close())
	}
	return errors.Join(errs...)
}

// Build assembles the agent tree described by s. Each agent gets the base
// tools unless demo_tools is false, the tools of its MCP servers, and one
// tool per managed agent. defaults apply to the top-level agent before the
// agent file options.
func (s *AgentSpec) Build(ctx context.Context, provider ai.ChatProvider, base *tool.Registry, logger *slog.Logger, defaults ...agent.Option) (*Built, error) {
	built := &Built{}
	a, err := s.build(ctx, provider, base, logger, built, defaults)
	if err != nil {
		_ = built.Close()
		return nil, err
	}
	built.Agent = a
	return built, nil
}

func (s *AgentSpec) build(ctx context.Context, provider ai.ChatProvider, base *tool.Registry, logger *slog.Logger, built *Built, extra []agent.Option) (*agent.Agent, error) {
	registry := tool.NewRegistry()
	if base != nil && (s.DemoTools == nil || *s.DemoTools) {
		if err := registry.Include(base); err != nil {
			return nil, err
		}
	}

	for _, srv := range s.MCPServers {
		remote, err := connect(ctx, srv, logger)
		if err != nil {
			return nil, fmt.Errorf("agent %q: mcp server %q: %w", s.Name, srv.Name, err)
		}
		built.remotes = append(built.remotes, remote)
		for _, reg := range remote.Registrations() {
			if err := registry.Register(reg.Tool, reg.Handler); err != nil {
				return nil, fmt.Errorf("agent %q: %w", s.Name, err)
			}
		}
		logger.Info("connected mcp server", "agent", s.Name, "server", srv.Name, "tools", remote.Len())
	}

	team := agent.NewTeam()
	for i := range s.ManagedAgents {
		m := &s.ManagedAgents[i]
		sub, err := m.build(ctx, provider, base, logger, built, nil)
		if err != nil {
			return nil, err
		}
		team.Register(m.Name, m.Description, sub)
	}
	if err := team.RegisterTo(registry); err != nil {
		return nil, fmt.Errorf("agent %q: %w", s.Name, err)
	}

	opts := append([]agent.Option{agent.WithLogger(logger)}, extra...)
	opts = append(opts, s.Options()...)
	return agent.New(provider, registry, opts...), nil
}

func connect(ctx context.Context, srv MCPServer, logger *slog.Logger) (*mcp.RemoteRegistry, error) {
	opts := []mcp.RemoteOption{mcp.WithLogger(logger)}
	if srv.Prefix != "" {
		opts = append(opts, mcp.WithPrefix(srv.Prefix))
	}
	if srv.URL != "" {
		return mcp.NewRemoteRegistrySSE(ctx, srv.URL, opts...)
	}
	return mcp.NewRemoteRegistry(ctx, srv.Command, srv.Env, srv.Args, opts...)
}

// AgentOptions converts the environment budget and mode to agent options.
// They are applied before the agent file options, so an agent file wins.
func (c *Config) AgentOptions() []agent.Option {
	return []agent.Option{
		agent.WithMode(resolve.Mode(c.Mode)),
		agent.WithBudget(agent.Budget{
			MaxSteps:    c.MaxSteps,
			MaxDuration: c.MaxDuration,
			MaxTokens:   c.MaxTokens,
		}),
	}
}
