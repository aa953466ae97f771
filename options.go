package gambit

// Options contains configuration for a chat request.
type Options struct {
	Model         string
	MaxTokens     int
	Temperature   *float64
	Tools         []Tool
	ToolChoice    ToolChoice
	StopSequences []string
}

// Option is a functional option for configuring chat requests.
type Option func(*Options)

// WithModel sets the model to use for the request.
func WithModel(model string) Option {
	return func(o *Options) {
		o.Model = model
	}
}

// WithMaxTokens sets the maximum number of tokens to generate.
func WithMaxTokens(n int) Option {
	return func(o *Options) {
		o.MaxTokens = n
	}
}

// WithTemperature sets the sampling temperature (0.0 to 2.0).
func WithTemperature(t float64) Option {
	return func(o *Options) {
		o.Temperature = &t
	}
}

// WithTools exposes tool definitions to the model for native tool calling.
func WithTools(tools []Tool) Option {
	return func(o *Options) {
		o.Tools = tools
	}
}

// WithToolChoice controls whether the model must, may, or must not call tools.
func WithToolChoice(choice ToolChoice) Option {
	return func(o *Options) {
		o.ToolChoice = choice
	}
}

// WithStopSequences sets sequences at which generation stops.
// Providers that do not support stop sequences ignore them.
func WithStopSequences(stop ...string) Option {
	return func(o *Options) {
		o.StopSequences = append(o.StopSequences, stop...)
	}
}

// ApplyOptions applies functional options to an Options struct.
func ApplyOptions(opts ...Option) *Options {
	o := &Options{}
	for _, opt := range opts {
		opt(o)
	}
	return o
}
