package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	ai "github.com/spetersoncode/gambit"
	"github.com/spetersoncode/gambit/event"
	"github.com/spetersoncode/gambit/tool"
)

// TaskArgs is the argument type of managed agent tools.
type TaskArgs struct {
	Task string `json:"task" desc:"The task for the agent. Be detailed: the agent sees only this text." required:"true"`
}

// ToolOption configures a managed agent tool.
type ToolOption func(*toolConfig)

type toolConfig struct {
	description  string
	agentOptions []Option
	rawTask      bool
}

// WithToolDescription sets a custom description for the agent tool.
func WithToolDescription(desc string) ToolOption {
	return func(c *toolConfig) {
		c.description = desc
	}
}

// WithToolMaxSteps sets the maximum steps for the sub-agent.
func WithToolMaxSteps(n int) ToolOption {
	return func(c *toolConfig) {
		c.agentOptions = append(c.agentOptions, WithMaxSteps(n))
	}
}

// WithToolAgentOptions passes options through to the sub-agent's runs.
func WithToolAgentOptions(opts ...Option) ToolOption {
	return func(c *toolConfig) {
		c.agentOptions = append(c.agentOptions, opts...)
	}
}

// WithRawTask passes the task to the sub-agent as-is instead of framing it
// as a task from a manager.
func WithRawTask() ToolOption {
	return func(c *toolConfig) {
		c.rawTask = true
	}
}

// NewTool wraps an agent as a managed sub-agent tool taking {"task": string}.
// Each call runs a complete nested loop with its own memory and budget.
// A nested run that does not finish, whether out of budget or failed,
// makes the call fail, which the parent records as a tool error.
//
// Example:
//
//	researcher := agent.New(provider, searchTools, agent.WithMode(resolve.ModeCode))
//	registry.Add(agent.NewTool("researcher", researcher,
//	    agent.WithToolDescription("Researches a topic on the web"),
//	    agent.WithToolMaxSteps(5),
//	))
func NewTool(name string, a *Agent, opts ...ToolOption) tool.Registration {
	cfg := &toolConfig{
		description: fmt.Sprintf("Delegate a task to the %s agent. Give it the task as an argument.", name),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	agentOpts := append([]Option{WithName(name)}, cfg.agentOptions...)

	handler := func(ctx context.Context, call ai.ToolCall) (string, error) {
		var args TaskArgs
		if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
			return "", fmt.Errorf("failed to parse arguments: %w", err)
		}
		if strings.TrimSpace(args.Task) == "" {
			return "", fmt.Errorf("agent %s: task is required", name)
		}

		if ch, parent := event.ForwardFromContext(ctx); ch != nil {
			ctx = event.WithForward(ctx, ch, joinAgent(parent, name))
		}

		task := args.Task
		if !cfg.rawTask {
			task = managedTask(name, task)
		}

		res, err := a.Run(ctx, task, agentOpts...)
		if err != nil {
			return "", fmt.Errorf("agent %s failed: %w", name, err)
		}
		if !res.Finished() {
			return "", fmt.Errorf("agent %s did not finish: %s", name, res.Error.Message)
		}
		return res.Text(), nil
	}

	return tool.Registration{
		Tool: ai.Tool{
			Name:        name,
			Description: cfg.description,
			Parameters:  tool.MustSchemaFor[TaskArgs](),
			Output:      "string",
		},
		Handler: handler,
	}
}

func joinAgent(parent, name string) string {
	if parent == "" {
		return name
	}
	return parent + "/" + name
}
