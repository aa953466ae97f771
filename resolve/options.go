package resolve

import "log/slog"

// Options configures a Resolver.
type Options struct {
	PlainTextFinalAnswer bool
	Logger               *slog.Logger
}

// Option is a functional option for configuring a Resolver.
type Option func(*Options)

// WithPlainTextFinalAnswer treats a response without any action as the
// final answer instead of a parse error.
func WithPlainTextFinalAnswer(enabled bool) Option {
	return func(o *Options) {
		o.PlainTextFinalAnswer = enabled
	}
}

// WithLogger sets the logger used to report ignored candidates.
func WithLogger(l *slog.Logger) Option {
	return func(o *Options) {
		o.Logger = l
	}
}

// ApplyOptions applies functional options with defaults.
func ApplyOptions(opts ...Option) *Options {
	o := &Options{Logger: slog.Default()}
	for _, opt := range opts {
		opt(o)
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}
