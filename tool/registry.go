package tool

import (
	"context"
	"fmt"
	"sync"

	ai "github.com/spetersoncode/gambit"
)

// Entry is a registered tool definition with its handler.
type Entry struct {
	Tool    ai.Tool
	Handler Handler
	params  []string
}

// Params returns the tool's parameter names in schema declaration order.
func (e Entry) Params() []string {
	return e.params
}

// Registry manages registered tools and their handlers.
// It is safe for concurrent use. Tools are immutable once registered.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Entry
	order []string
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]Entry),
	}
}

// Register adds a tool with its handler to the registry.
// Returns an error if a tool with the same name is already registered.
func (r *Registry) Register(tool ai.Tool, handler Handler) error {
	if tool.Name == "" {
		return fmt.Errorf("tool: name is required")
	}
	if handler == nil {
		return fmt.Errorf("tool: %s: handler is required", tool.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[tool.Name]; exists {
		return &ErrToolAlreadyRegistered{Name: tool.Name}
	}

	if tool.Output == "" {
		tool.Output = "any"
	}
	r.tools[tool.Name] = Entry{
		Tool:    tool,
		Handler: handler,
		params:  ParameterNames(tool.Parameters),
	}
	r.order = append(r.order, tool.Name)
	return nil
}

// MustRegister is like Register but panics on error.
func (r *Registry) MustRegister(tool ai.Tool, handler Handler) {
	if err := r.Register(tool, handler); err != nil {
		panic(err)
	}
}

// Include registers every tool of other into r, in other's order.
// It stops at the first duplicate name.
func (r *Registry) Include(other *Registry) error {
	if other == nil {
		return nil
	}
	for _, e := range other.entries() {
		if err := r.Register(e.Tool, e.Handler); err != nil {
			return err
		}
	}
	return nil
}

// Lookup retrieves a registered tool by name.
func (r *Registry) Lookup(name string) (Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.tools[name]
	if !ok {
		return Entry{}, &ErrToolNotFound{Name: name}
	}
	return e, nil
}

// Has reports whether a tool with the given name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.tools[name]
	return ok
}

// Describe returns all tool definitions in registration order.
// This is used to render tools into prompts and to pass them to the ChatProvider.
func (r *Registry) Describe() []ai.Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tools := make([]ai.Tool, 0, len(r.order))
	for _, name := range r.order {
		tools = append(tools, r.tools[name].Tool)
	}
	return tools
}

// Names returns the names of all registered tools in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

func (r *Registry) entries() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Entry, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name])
	}
	return out
}

// Validate checks that the call names a registered tool and that its
// arguments satisfy the tool's parameter schema.
func (r *Registry) Validate(call ai.ToolCall) error {
	e, err := r.Lookup(call.Name)
	if err != nil {
		return err
	}
	args, err := DecodeArguments(call.Name, call.Arguments)
	if err != nil {
		return err
	}
	return ValidateArguments(call.Name, e.Tool.Parameters, args)
}

// Execute runs the handler for a tool call and returns a ToolResult.
// If the tool is not found, returns ErrToolNotFound.
// A handler error or panic is captured in ToolResult.IsError with the error
// message as the content, so the model can recover.
func (r *Registry) Execute(ctx context.Context, call ai.ToolCall) (ai.ToolResult, error) {
	e, err := r.Lookup(call.Name)
	if err != nil {
		return ai.ToolResult{}, err
	}

	content, err := Invoke(ctx, e.Handler, call)
	if err != nil {
		return ai.ToolResult{
			ToolCallID: call.ID,
			Content:    err.Error(),
			IsError:    true,
		}, nil
	}

	return ai.ToolResult{
		ToolCallID: call.ID,
		Content:    content,
	}, nil
}

// Registration holds a tool and its handler for fluent registration.
type Registration struct {
	Tool    ai.Tool
	Handler Handler
}

// Func creates a Registration with automatic schema generation from the typed handler.
// Panics if schema generation fails.
//
// Example:
//
//	registry := tool.NewRegistry().Add(
//	    tool.Func("weather", "Get weather", func(ctx context.Context, args WeatherArgs) (string, error) {
//	        return getWeather(args.Location), nil
//	    }),
//	)
func Func[T any](name, description string, fn TypedHandler[T]) Registration {
	return Registration{
		Tool: ai.Tool{
			Name:        name,
			Description: description,
			Parameters:  MustSchemaFor[T](),
			Output:      "string",
		},
		Handler: bind(name, fn),
	}
}

// WithTool creates a Registration from an existing Tool and Handler.
// Use this when you have pre-built tool definitions.
func WithTool(t ai.Tool, h Handler) Registration {
	return Registration{
		Tool:    t,
		Handler: h,
	}
}

// Add registers one or more tools to the registry.
// Panics if any tool is already registered.
// Returns the registry for fluent chaining.
func (r *Registry) Add(regs ...Registration) *Registry {
	for _, reg := range regs {
		r.MustRegister(reg.Tool, reg.Handler)
	}
	return r
}
