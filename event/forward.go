package event

import "context"

// forwardKey is the context key for the forwarding channel.
type forwardKey struct{}

type forward struct {
	ch    chan<- Event
	agent string
}

// WithForward returns a context whose nested runs forward their events to
// ch, tagged with the given agent name.
func WithForward(ctx context.Context, ch chan<- Event, agent string) context.Context {
	return context.WithValue(ctx, forwardKey{}, forward{ch: ch, agent: agent})
}

// ForwardFromContext returns the forwarding channel and agent name attached
// to ctx. The channel is nil when none is attached.
func ForwardFromContext(ctx context.Context) (chan<- Event, string) {
	if f, ok := ctx.Value(forwardKey{}).(forward); ok {
		return f.ch, f.agent
	}
	return nil, ""
}
