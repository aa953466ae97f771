package agent

import (
	"log/slog"
	"time"

	ai "github.com/spetersoncode/gambit"
	"github.com/spetersoncode/gambit/internal/retry"
	"github.com/spetersoncode/gambit/memory"
	"github.com/spetersoncode/gambit/resolve"
	"github.com/spetersoncode/gambit/sandbox"
)

// Budget bounds one run. Zero values disable the corresponding limit.
type Budget struct {
	// MaxSteps limits the number of action steps.
	MaxSteps int

	// MaxDuration limits the wall-clock time of the run.
	MaxDuration time.Duration

	// MaxTokens limits the total tokens reported by the model.
	MaxTokens int
}

// Options contains configuration for agent execution.
type Options struct {
	// Name identifies the agent in logs and forwarded events.
	Name string

	// Mode selects tool calling or code actions for the whole run.
	// Default is resolve.ModeToolCalling.
	Mode resolve.Mode

	// Budget bounds the run. Default is 20 steps.
	Budget Budget

	// PlanningInterval inserts a planning step before action steps
	// 1, 1+n, 1+2n, ... Zero disables planning.
	PlanningInterval int

	// Instructions are appended to the system prompt.
	Instructions string

	// SystemPrompt replaces the built-in system prompt template.
	// It is parsed with text/template and receives the same data.
	SystemPrompt string

	// AllowedImports is the sandbox import allow-list in code mode.
	AllowedImports []string

	// ExecutionTimeout bounds one code execution. Default is 30 seconds.
	ExecutionTimeout time.Duration

	// MaxExecutionSteps bounds the interpreter steps of one code execution.
	MaxExecutionSteps uint64

	// HandlerTimeout bounds one tool handler call in tool-calling mode.
	// Zero means no per-handler timeout. Default is 60 seconds.
	HandlerTimeout time.Duration

	// PlainTextFinalAnswer treats a response without an action as the final answer.
	PlainTextFinalAnswer bool

	// Memory continues an existing step log instead of starting a new one.
	Memory *memory.Memory

	// ChatOptions are passed through to the ChatProvider.
	ChatOptions []ai.Option

	// Logger receives run diagnostics. Default is slog.Default().
	Logger *slog.Logger

	retry retry.Config
}

// Option is a functional option for configuring agent execution.
type Option func(*Options)

// WithName sets the agent name used in logs and forwarded events.
func WithName(name string) Option {
	return func(o *Options) {
		o.Name = name
	}
}

// WithMode selects how actions are expressed.
func WithMode(mode resolve.Mode) Option {
	return func(o *Options) {
		o.Mode = mode
	}
}

// WithBudget replaces the whole budget.
func WithBudget(b Budget) Option {
	return func(o *Options) {
		o.Budget = b
	}
}

// WithMaxSteps sets the maximum number of action steps.
// Set to 0 for unlimited (not recommended).
func WithMaxSteps(n int) Option {
	return func(o *Options) {
		o.Budget.MaxSteps = n
	}
}

// WithMaxDuration sets a wall-clock limit for the run.
func WithMaxDuration(d time.Duration) Option {
	return func(o *Options) {
		o.Budget.MaxDuration = d
	}
}

// WithMaxTokens sets a limit on the total tokens used by the run.
func WithMaxTokens(n int) Option {
	return func(o *Options) {
		o.Budget.MaxTokens = n
	}
}

// WithPlanningInterval enables a planning step every n action steps.
func WithPlanningInterval(n int) Option {
	return func(o *Options) {
		o.PlanningInterval = n
	}
}

// WithInstructions appends custom instructions to the system prompt.
func WithInstructions(s string) Option {
	return func(o *Options) {
		o.Instructions = s
	}
}

// WithSystemPrompt replaces the built-in system prompt template.
func WithSystemPrompt(tmpl string) Option {
	return func(o *Options) {
		o.SystemPrompt = tmpl
	}
}

// WithAllowedImports sets the modules code actions may import.
func WithAllowedImports(modules ...string) Option {
	return func(o *Options) {
		o.AllowedImports = append([]string(nil), modules...)
	}
}

// WithExecutionTimeout bounds one code execution.
func WithExecutionTimeout(d time.Duration) Option {
	return func(o *Options) {
		o.ExecutionTimeout = d
	}
}

// WithMaxExecutionSteps bounds the interpreter steps of one code execution.
func WithMaxExecutionSteps(n uint64) Option {
	return func(o *Options) {
		o.MaxExecutionSteps = n
	}
}

// WithHandlerTimeout bounds each tool handler call.
func WithHandlerTimeout(d time.Duration) Option {
	return func(o *Options) {
		o.HandlerTimeout = d
	}
}

// WithPlainTextFinalAnswer treats a response without an action as the final answer.
func WithPlainTextFinalAnswer(enabled bool) Option {
	return func(o *Options) {
		o.PlainTextFinalAnswer = enabled
	}
}

// WithMemory continues the given step log. The memory must not hold a final answer.
func WithMemory(m *memory.Memory) Option {
	return func(o *Options) {
		o.Memory = m
	}
}

// WithRetry sets how often a failed model call is attempted and the
// initial backoff delay.
func WithRetry(maxAttempts int, initialDelay time.Duration) Option {
	return func(o *Options) {
		cfg := retry.DefaultConfig()
		cfg.MaxAttempts = maxAttempts
		cfg.InitialDelay = initialDelay
		o.retry = cfg
	}
}

// WithoutRetry disables model call retries.
func WithoutRetry() Option {
	return func(o *Options) {
		o.retry = retry.Disabled()
	}
}

// WithChatOptions passes options through to the ChatProvider.
// These options are applied to every chat call made by the agent.
func WithChatOptions(opts ...ai.Option) Option {
	return func(o *Options) {
		o.ChatOptions = append(o.ChatOptions, opts...)
	}
}

// WithModel is a convenience option to set the model for chat calls.
func WithModel(model string) Option {
	return func(o *Options) {
		o.ChatOptions = append(o.ChatOptions, ai.WithModel(model))
	}
}

// WithTemperature is a convenience option to set temperature for chat calls.
func WithTemperature(t float64) Option {
	return func(o *Options) {
		o.ChatOptions = append(o.ChatOptions, ai.WithTemperature(t))
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Options) {
		o.Logger = l
	}
}

// ApplyOptions applies functional options to an Options struct with defaults.
func ApplyOptions(opts ...Option) *Options {
	o := &Options{
		Name:             "agent",
		Mode:             resolve.ModeToolCalling,
		Budget:           Budget{MaxSteps: 20},
		AllowedImports:   sandbox.DefaultAllowedImports,
		ExecutionTimeout: 30 * time.Second,
		HandlerTimeout:   60 * time.Second,
		Logger:           slog.Default(),
		retry:            retry.DefaultConfig(),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}
