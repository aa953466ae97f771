package sandbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	ai "github.com/spetersoncode/gambit"
	"github.com/spetersoncode/gambit/tool"
	"go.starlark.net/starlark"
)

// Tool is a function exposed to sandboxed code as a builtin. Positional
// arguments map to Params in order; keyword arguments map by name.
type Tool struct {
	Name    string
	Params  []string
	Schema  json.RawMessage
	Output  string
	Handler tool.Handler
}

// FromRegistry exposes every registered tool except final_answer, which
// the sandbox provides itself.
func FromRegistry(r *tool.Registry) []Tool {
	var out []Tool
	for _, name := range r.Names() {
		if name == tool.FinalAnswerName {
			continue
		}
		e, err := r.Lookup(name)
		if err != nil {
			continue
		}
		out = append(out, Tool{
			Name:    e.Tool.Name,
			Params:  e.Params(),
			Schema:  e.Tool.Parameters,
			Output:  e.Tool.Output,
			Handler: e.Handler,
		})
	}
	return out
}

var errFinalAnswer = errors.New("final answer")

// toolCallError marks a failure raised by a tool called from code.
type toolCallError struct {
	name string
	err  error
}

func (e *toolCallError) Error() string {
	return fmt.Sprintf("tool %s failed: %v", e.name, e.err)
}

func (e *toolCallError) Unwrap() error { return e.err }

// execution is the per-call state shared by the builtins.
type execution struct {
	ctx        context.Context
	calls      []ai.ToolCall
	final      bool
	finalValue starlark.Value
}

func (x *execution) toolBuiltin(t Tool) *starlark.Builtin {
	return starlark.NewBuiltin(t.Name, func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		if len(args) > len(t.Params) {
			return nil, fmt.Errorf("%s: got %d positional arguments, want at most %d", b.Name(), len(args), len(t.Params))
		}

		values := make(map[string]any, len(args)+len(kwargs))
		for i, a := range args {
			g, err := toGo(a)
			if err != nil {
				return nil, err
			}
			values[t.Params[i]] = g
		}
		for _, kv := range kwargs {
			name, _ := starlark.AsString(kv[0])
			if _, dup := values[name]; dup {
				return nil, fmt.Errorf("%s: got multiple values for argument %q", b.Name(), name)
			}
			g, err := toGo(kv[1])
			if err != nil {
				return nil, err
			}
			values[name] = g
		}

		if err := tool.ValidateArguments(t.Name, t.Schema, values); err != nil {
			return nil, &toolCallError{name: t.Name, err: err}
		}

		data, err := json.Marshal(values)
		if err != nil {
			return nil, err
		}
		call := ai.ToolCall{ID: ai.GenerateCallID(), Name: t.Name, Arguments: string(data)}
		x.calls = append(x.calls, call)

		out, err := tool.Invoke(x.ctx, t.Handler, call)
		if err != nil {
			return nil, &toolCallError{name: t.Name, err: err}
		}
		return decodeResult(out, t.Output), nil
	})
}

func (x *execution) finalAnswerBuiltin() *starlark.Builtin {
	return starlark.NewBuiltin(tool.FinalAnswerName, func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var answer starlark.Value
		if err := starlark.UnpackArgs(b.Name(), args, kwargs, "answer", &answer); err != nil {
			return nil, err
		}
		x.final = true
		x.finalValue = answer
		return nil, errFinalAnswer
	})
}
