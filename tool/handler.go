package tool

import (
	"context"
	"encoding/json"
	"fmt"

	ai "github.com/spetersoncode/gambit"
)

// Handler executes one tool call and returns the result text given to the
// model. A returned error is reported to the model as a failed call; it does
// not end the run.
type Handler func(ctx context.Context, call ai.ToolCall) (string, error)

// TypedHandler receives the call's arguments decoded into T.
type TypedHandler[T any] func(ctx context.Context, args T) (string, error)

// Invoke runs h for call. A panic in the handler is returned as an
// *ErrToolExecution for the call's tool.
func Invoke(ctx context.Context, h Handler, call ai.ToolCall) (out string, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = &ErrToolExecution{Name: call.Name, Err: fmt.Errorf("panic: %v", p)}
		}
	}()
	return h(ctx, call)
}

// bind adapts fn to a Handler. Empty arguments leave T at its zero value.
func bind[T any](name string, fn TypedHandler[T]) Handler {
	return func(ctx context.Context, call ai.ToolCall) (string, error) {
		var args T
		if call.Arguments != "" {
			if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
				return "", &ErrToolExecution{Name: name, Err: err}
			}
		}
		return fn(ctx, args)
	}
}
