package agent

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	ai "github.com/spetersoncode/gambit"
	"github.com/spetersoncode/gambit/event"
	"github.com/spetersoncode/gambit/internal/retry"
	"github.com/spetersoncode/gambit/memory"
	"github.com/spetersoncode/gambit/resolve"
	"github.com/spetersoncode/gambit/sandbox"
	"github.com/spetersoncode/gambit/tool"
)

// Step names carried by StepStart and StepEnd events.
const (
	StepAction   = "action"
	StepPlanning = "planning"
)

// step runs one action step: build context, invoke the model, resolve the
// action, execute it and record exactly one ActionStep. Only model failures
// and memory invariant violations are returned as errors; everything else is
// recorded as the step's observation.
func (r *run) step(ctx context.Context, n int) (json.RawMessage, bool, error) {
	r.em.emit(ctx, event.Event{Type: event.StepStart, Step: n, StepName: StepAction})
	start := time.Now()

	resp, err := r.invoke(ctx, r.mem.Messages(), r.chatOpts, n)
	if err != nil {
		return nil, false, err
	}
	r.usage = r.usage.Add(resp.Usage)

	s := memory.ActionStep{
		StepNumber:  n,
		ModelOutput: resp.Content,
		Start:       start,
		Usage:       resp.Usage,
	}
	var answer json.RawMessage
	final := false

	res, err := r.resolver.Resolve(resp)
	if r.opts.Mode == resolve.ModeToolCalling {
		s.ToolCalls = res.Calls
	}
	if err != nil {
		s.Error = asExecutionError(err)
	} else {
		switch act := res.Action.(type) {
		case resolve.ToolCall:
			s.Action = &memory.Action{
				Kind:      memory.ActionToolCall,
				ID:        act.ID,
				ToolName:  act.Name,
				Arguments: json.RawMessage(act.Arguments),
			}
			if res.Final {
				answer, err = tool.FinalAnswerValue(act.Arguments)
				if err != nil {
					s.Error = ai.NewExecutionError(ai.KindValidation, err.Error(), err)
				} else {
					final = true
					s.Observation = tool.AnswerText(answer)
				}
			} else {
				s.Observation, s.Error = r.callTool(ctx, act.Call(), n)
			}
		case resolve.CodeAction:
			s.Action = &memory.Action{Kind: memory.ActionCode, Code: act.Source}
			out := r.runCode(ctx, act.Source, n)
			s.Observation, s.Error = out.Observation(), out.Err
			if out.FinalAnswer && out.Err == nil {
				final = true
				answer = out.Answer
			}
		}
	}

	s.End = time.Now()
	s.Duration = s.End.Sub(start)
	if s.Error != nil {
		r.logger.Debug("step recorded an error", "step", n, "kind", s.Error.Kind, "error", s.Error.Message)
	}

	if _, err := r.mem.Append(s); err != nil {
		return nil, false, internalError("record step", err)
	}
	r.em.emit(ctx, event.Event{
		Type:     event.StepEnd,
		Step:     n,
		StepName: StepAction,
		Error:    s.Error,
		Usage:    r.usage,
	})

	if !final {
		return nil, false, nil
	}
	if _, err := r.mem.Append(memory.FinalAnswerStep{Answer: tool.AnswerText(answer), Value: answer}); err != nil {
		return nil, false, internalError("record final answer", err)
	}
	return answer, true, nil
}

// plan records a PlanningStep. The first plan starts from the task; later
// plans revise it from the progress so far.
func (r *run) plan(ctx context.Context, n int) error {
	r.em.emit(ctx, event.Event{Type: event.StepStart, Step: n, StepName: StepPlanning})

	prompt := planningPrompt
	if n > 1 {
		prompt = replanPrompt
	}
	msgs := append(r.mem.Messages(), ai.NewUserMessage(prompt))

	resp, err := r.invoke(ctx, msgs, r.planOpts, n)
	if err != nil {
		return err
	}
	r.usage = r.usage.Add(resp.Usage)

	if _, err := r.mem.Append(memory.PlanningStep{Plan: resp.Content, Usage: resp.Usage}); err != nil {
		return internalError("record plan", err)
	}
	r.em.emit(ctx, event.Event{Type: event.StepEnd, Step: n, StepName: StepPlanning, Usage: r.usage})
	return nil
}

// invoke calls the model, retrying transient failures with backoff.
func (r *run) invoke(ctx context.Context, msgs []ai.Message, opts []ai.Option, n int) (*ai.Response, error) {
	notify := func(at retry.Attempt) {
		r.logger.Warn("model call failed, retrying",
			"step", n,
			"attempt", at.Number,
			"max_attempts", at.MaxAttempts,
			"delay", at.Delay,
			"error", at.Err,
		)
	}
	return retry.Do(ctx, r.opts.retry, notify, func(ctx context.Context) (*ai.Response, error) {
		return r.stream(ctx, msgs, opts, n)
	})
}

// stream runs one streaming model call, forwarding deltas as events, and
// waits for the complete response.
func (r *run) stream(ctx context.Context, msgs []ai.Message, opts []ai.Option, n int) (*ai.Response, error) {
	events, err := r.agent.provider.ChatStream(ctx, msgs, opts...)
	if err != nil {
		return nil, err
	}

	messageID := ai.GenerateMessageID()
	started := false
	begin := func() {
		if !started {
			r.em.emit(ctx, event.Event{Type: event.MessageStart, Step: n, MessageID: messageID})
			started = true
		}
	}

	var resp *ai.Response
	var streamErr error
	for ev := range events {
		if ev.Err != nil {
			streamErr = ev.Err
			continue
		}
		if ev.Delta != "" {
			begin()
			r.em.emit(ctx, event.Event{Type: event.MessageDelta, Step: n, MessageID: messageID, Delta: ev.Delta})
		}
		if ev.Done && ev.Response != nil {
			resp = ev.Response
		}
	}

	if streamErr == nil && resp == nil {
		if err := ctx.Err(); err != nil {
			streamErr = err
		} else {
			streamErr = ai.NewPermanentError("model stream ended without a response", 0, nil)
		}
	}
	if streamErr != nil {
		if started {
			r.em.emit(ctx, event.Event{Type: event.MessageEnd, Step: n, MessageID: messageID})
		}
		return nil, streamErr
	}

	begin()
	r.em.emit(ctx, event.Event{Type: event.MessageEnd, Step: n, MessageID: messageID, Response: resp})
	return resp, nil
}

// callTool executes a resolved tool call. Handler failures become ToolError.
func (r *run) callTool(ctx context.Context, call ai.ToolCall, n int) (string, *ai.ExecutionError) {
	r.em.emit(ctx, event.Event{Type: event.ToolCallStart, Step: n, ToolCall: &call})
	r.em.emit(ctx, event.Event{Type: event.ToolCallArgs, Step: n, ToolCall: &call})
	r.em.emit(ctx, event.Event{Type: event.ToolCallEnd, Step: n, ToolCall: &call})

	execCtx := r.em.forward(ctx)
	if r.opts.HandlerTimeout > 0 {
		var cancel context.CancelFunc
		execCtx, cancel = context.WithTimeout(execCtx, r.opts.HandlerTimeout)
		defer cancel()
	}

	result, err := r.agent.tools.Execute(execCtx, call)
	if err != nil {
		result = ai.ToolResult{ToolCallID: call.ID, Content: err.Error(), IsError: true}
	}
	r.em.emit(ctx, event.Event{Type: event.ToolCallResult, Step: n, ToolCall: &call, ToolResult: &result})

	if result.IsError {
		return "", ai.NewExecutionError(ai.KindTool, result.Content, err)
	}
	return result.Content, nil
}

// runCode executes a code action in the run's sandbox.
func (r *run) runCode(ctx context.Context, source string, n int) sandbox.Result {
	r.em.emit(ctx, event.Event{Type: event.CodeStart, Step: n, Code: source})
	out := r.sandbox.Execute(r.em.forward(ctx), source)
	r.em.emit(ctx, event.Event{Type: event.CodeResult, Step: n, Code: source, Output: out.Observation(), Error: out.Err})
	return out
}

func asExecutionError(err error) *ai.ExecutionError {
	var ee *ai.ExecutionError
	if errors.As(err, &ee) {
		return ee
	}
	return ai.NewExecutionError(ai.KindRuntime, err.Error(), err)
}
