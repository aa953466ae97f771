package resolve

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	ai "github.com/spetersoncode/gambit"
	"github.com/spetersoncode/gambit/tool"
)

// Messages returned to the model when a response carries no action.
const (
	NoToolCallMessage = "No tool call was made. Call one of the available tools, or call final_answer with your answer to finish the task."
	NoCodeMessage     = "No code block was found. Write your code in a ```py fenced block, and call final_answer(...) with your answer to finish the task."
)

// Resolver turns a model response into exactly one action.
// It is safe for concurrent use.
type Resolver struct {
	mode     Mode
	registry *tool.Registry
	opts     *Options
}

// New creates a Resolver for the given mode. The registry is used to check
// tool names and arguments and must include final_answer.
func New(mode Mode, registry *tool.Registry, opts ...Option) *Resolver {
	return &Resolver{
		mode:     mode,
		registry: registry,
		opts:     ApplyOptions(opts...),
	}
}

// Mode returns the resolver's mode.
func (r *Resolver) Mode() Mode {
	return r.mode
}

// Resolve extracts the action from resp. Failures are returned as
// *gambit.ExecutionError with a recoverable kind.
func (r *Resolver) Resolve(resp *ai.Response) (Resolution, error) {
	if resp == nil {
		return Resolution{}, ai.NewExecutionError(ai.KindParse, "empty model response", nil)
	}
	if r.mode == ModeCode {
		return r.resolveCode(resp)
	}
	return r.resolveToolCall(resp)
}

func (r *Resolver) resolveCode(resp *ai.Response) (Resolution, error) {
	if src, ok := extractCode(resp.Content); ok {
		return Resolution{Action: CodeAction{Source: src}}, nil
	}
	if res, ok := r.plainTextFinal(resp.Content); ok {
		return res, nil
	}
	return Resolution{}, ai.NewExecutionError(ai.KindParse, NoCodeMessage, nil)
}

func (r *Resolver) resolveToolCall(resp *ai.Response) (Resolution, error) {
	native := nativeCandidates(resp.ToolCalls)
	res, err := r.chooseToolCall(native, resp.Content)
	res.Calls = native
	return res, err
}

// chooseToolCall picks the first native call, or failing that the first call
// embedded in the text.
func (r *Resolver) chooseToolCall(native []ai.ToolCall, content string) (Resolution, error) {
	candidates := native
	malformed := 0

	if len(candidates) == 0 {
		for _, raw := range textCandidates(content) {
			p, ok := decodePayload(raw)
			if !ok {
				malformed++
				continue
			}
			candidates = append(candidates, ai.ToolCall{
				ID:        ai.GenerateCallID(),
				Name:      p.name(),
				Arguments: string(p.arguments()),
			})
		}
	}

	if len(candidates) == 0 {
		if malformed > 0 {
			return Resolution{}, ai.NewExecutionError(ai.KindParse,
				"Could not parse the tool call. Write it as a JSON object with \"name\" and \"arguments\" keys.", nil)
		}
		if res, ok := r.plainTextFinal(content); ok {
			return res, nil
		}
		return Resolution{}, ai.NewExecutionError(ai.KindParse, NoToolCallMessage, nil)
	}

	chosen, ignored := candidates[0], candidates[1:]
	if len(ignored) > 0 {
		names := make([]string, len(ignored))
		for i, c := range ignored {
			names[i] = c.Name
		}
		r.opts.Logger.Warn("multiple tool calls in one response, executing the first",
			"chosen", chosen.Name,
			"ignored", names,
		)
	}

	call, err := r.check(chosen)
	if err != nil {
		return Resolution{Ignored: ignored}, err
	}
	return Resolution{
		Action:  call,
		Final:   call.Name == tool.FinalAnswerName,
		Ignored: ignored,
	}, nil
}

// nativeCandidates keeps native calls that carry a tool name and gives
// every kept call an ID.
func nativeCandidates(calls []ai.ToolCall) []ai.ToolCall {
	var out []ai.ToolCall
	for _, c := range calls {
		if c.Name == "" {
			continue
		}
		if c.ID == "" {
			c.ID = ai.GenerateCallID()
		}
		out = append(out, c)
	}
	return out
}

// check validates the call against the registry and normalizes its arguments.
func (r *Resolver) check(c ai.ToolCall) (ToolCall, error) {
	entry, err := r.registry.Lookup(c.Name)
	if err != nil {
		msg := fmt.Sprintf("Unknown tool %q. Available tools: %s.", c.Name, strings.Join(r.registry.Names(), ", "))
		return ToolCall{}, ai.NewExecutionError(ai.KindValidation, msg, err)
	}

	args, err := normalizeArguments(entry, json.RawMessage(c.Arguments))
	if err != nil {
		return ToolCall{}, validationError(err)
	}

	decoded, err := tool.DecodeArguments(c.Name, args)
	if err == nil {
		err = tool.ValidateArguments(c.Name, entry.Tool.Parameters, decoded)
	}
	if err != nil {
		return ToolCall{}, validationError(err)
	}

	return ToolCall{ID: c.ID, Name: c.Name, Arguments: args}, nil
}

func validationError(err error) error {
	var ve *tool.ValidationError
	if errors.As(err, &ve) {
		return ai.NewExecutionError(ai.KindValidation, ve.Error(), err)
	}
	return ai.NewExecutionError(ai.KindValidation, err.Error(), err)
}

// normalizeArguments returns the arguments as a compact JSON object. A bare
// value is accepted for tools with exactly one parameter, and a JSON string
// holding an object is unwrapped.
func normalizeArguments(entry tool.Entry, raw json.RawMessage) (string, error) {
	if obj, ok := compactObject(raw); ok {
		return obj, nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if obj, ok := compactObject(json.RawMessage(s)); ok && strings.HasPrefix(strings.TrimSpace(s), "{") {
			return obj, nil
		}
	} else if !json.Valid(raw) {
		return "", &tool.ValidationError{Tool: entry.Tool.Name, Reason: "arguments are not valid JSON"}
	}

	params := entry.Params()
	if len(params) != 1 {
		return "", &tool.ValidationError{Tool: entry.Tool.Name, Reason: "arguments must be a JSON object"}
	}
	wrapped, err := json.Marshal(map[string]json.RawMessage{params[0]: raw})
	if err != nil {
		return "", err
	}
	return string(wrapped), nil
}

func (r *Resolver) plainTextFinal(content string) (Resolution, bool) {
	text := strings.TrimSpace(content)
	if !r.opts.PlainTextFinalAnswer || text == "" {
		return Resolution{}, false
	}
	args, err := json.Marshal(map[string]string{"answer": text})
	if err != nil {
		return Resolution{}, false
	}
	r.opts.Logger.Debug("treating plain text response as final answer")
	return Resolution{
		Action: ToolCall{ID: ai.GenerateCallID(), Name: tool.FinalAnswerName, Arguments: string(args)},
		Final:  true,
	}, true
}
