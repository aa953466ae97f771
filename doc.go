// Package gambit is an agent execution runtime.
//
// Given a task, a model backend implementing [ChatProvider], and a set of
// tools, an agent drives a bounded reason-and-act loop until it produces a
// final answer or exhausts its budget. The root package holds the vocabulary
// shared by every sub-package:
//
//   - [Message], [Response], [Usage] and [StreamEvent] for model exchanges
//   - [Tool], [ToolCall] and [ToolResult] for tool definitions and calls
//   - [Error] and [ErrorCategory] for provider failures
//   - [ExecutionError] and [ErrorKind] for step and run failures
//
// The engine lives in sub-packages:
//
//   - tool: the tool registry and typed handler binding
//   - resolve: turns one model response into a tool call or a code action
//   - sandbox: runs code actions in a restricted Starlark interpreter
//   - memory: the append-only step log that forms the prompt context
//   - agent: the step executor and agent loop, including managed sub-agents
//   - event: the ordered event stream emitted during a run
//   - mcp: bridges MCP servers into the registry and the registry into MCP
//   - agui: maps run events to the AG-UI protocol
//
// A minimal run:
//
//	registry := tool.NewRegistry().Add(
//	    tool.Func("get_weather", "Get the weather for a city", weatherFn),
//	)
//	a := agent.New(provider, registry, agent.WithMode(resolve.ModeCode))
//	result, err := a.Run(ctx, "What should I wear in Paris today?")
package gambit
