package sandbox

import (
	"log/slog"
	"time"
)

// DefaultAllowedImports are the modules code may import unless configured otherwise.
var DefaultAllowedImports = []string{"math", "json"}

// Options configures a Sandbox.
type Options struct {
	AllowedImports    []string
	Timeout           time.Duration
	MaxExecutionSteps uint64
	MaxOutput         int
	Tools             []Tool
	Logger            *slog.Logger
}

// Option is a functional option for configuring a Sandbox.
type Option func(*Options)

// WithAllowedImports replaces the import allow-list. Only modules the
// sandbox provides (math, json, time) can actually be loaded.
func WithAllowedImports(modules ...string) Option {
	return func(o *Options) {
		o.AllowedImports = append([]string(nil), modules...)
	}
}

// WithTimeout bounds the wall-clock time of one execution.
func WithTimeout(d time.Duration) Option {
	return func(o *Options) {
		o.Timeout = d
	}
}

// WithMaxExecutionSteps bounds the interpreter steps of one execution.
// Zero disables the limit.
func WithMaxExecutionSteps(n uint64) Option {
	return func(o *Options) {
		o.MaxExecutionSteps = n
	}
}

// WithMaxOutput truncates captured print output to n bytes.
func WithMaxOutput(n int) Option {
	return func(o *Options) {
		o.MaxOutput = n
	}
}

// WithTools exposes tools to code as builtin functions.
func WithTools(tools ...Tool) Option {
	return func(o *Options) {
		o.Tools = append(o.Tools, tools...)
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Options) {
		o.Logger = l
	}
}

// ApplyOptions applies functional options with defaults.
func ApplyOptions(opts ...Option) *Options {
	o := &Options{
		AllowedImports:    DefaultAllowedImports,
		Timeout:           30 * time.Second,
		MaxExecutionSteps: 50_000_000,
		MaxOutput:         50_000,
		Logger:            slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}
