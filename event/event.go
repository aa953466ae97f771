// Package event provides the ordered event stream emitted during an agent run.
// The event types map 1:1 onto the AG-UI protocol where AG-UI has a
// counterpart; code execution events are specific to code-mode runs.
package event

import (
	"context"
	"time"

	ai "github.com/spetersoncode/gambit"
)

// Type identifies the kind of event.
type Type string

// Run lifecycle events
const (
	// RunStart fires when a run begins.
	RunStart Type = "run_start"

	// RunEnd fires when a run reaches a terminal outcome other than failure.
	RunEnd Type = "run_end"

	// RunError fires when a run fails (model error, cancellation).
	RunError Type = "run_error"
)

// Step lifecycle events
const (
	// StepStart fires when an action or planning step begins.
	StepStart Type = "step_start"

	// StepEnd fires when a step has been recorded in memory.
	StepEnd Type = "step_end"
)

// Message lifecycle events
const (
	// MessageStart fires when the model starts producing a response.
	MessageStart Type = "message_start"

	// MessageDelta fires for each streamed chunk of model output.
	MessageDelta Type = "message_delta"

	// MessageEnd fires when the model response is complete.
	MessageEnd Type = "message_end"
)

// Tool call lifecycle events
const (
	// ToolCallStart fires when a resolved tool call is about to run.
	ToolCallStart Type = "tool_call_start"

	// ToolCallArgs fires with tool call arguments.
	ToolCallArgs Type = "tool_call_args"

	// ToolCallEnd fires when tool call transmission is complete.
	ToolCallEnd Type = "tool_call_end"

	// ToolCallResult fires with the tool execution result.
	ToolCallResult Type = "tool_call_result"
)

// Code action events
const (
	// CodeStart fires before a code action runs in the sandbox.
	CodeStart Type = "code_start"

	// CodeResult fires with the sandbox observation.
	CodeResult Type = "code_result"
)

// Event represents an observable occurrence during a run.
type Event struct {
	// Type identifies the kind of event.
	Type Type

	// RunID identifies the run that produced the event.
	RunID string

	// Agent names the managed sub-agent that produced a forwarded event.
	// Empty for the top-level run.
	Agent string

	// MessageID identifies the message for Start/Delta/End correlation.
	MessageID string

	// Delta contains streaming content for MessageDelta events.
	Delta string

	// Response contains the complete response for MessageEnd events.
	Response *ai.Response

	// ToolCall contains the tool call for tool-related events.
	ToolCall *ai.ToolCall

	// ToolResult contains the result for ToolCallResult events.
	ToolResult *ai.ToolResult

	// Code contains the source for CodeStart events.
	Code string

	// Output contains the observation for CodeResult events.
	Output string

	// Step is the action step number (1-indexed).
	Step int

	// StepName is "action" or "planning" for step events.
	StepName string

	// Error contains the step or run error, if any.
	Error *ai.ExecutionError

	// Message contains the terminal outcome for RunEnd and RunError events.
	Message string

	// Answer contains the final answer text for RunEnd events.
	Answer string

	// Usage is the token usage so far, set on StepEnd and terminal events.
	Usage ai.Usage

	// Timestamp is when the event occurred.
	Timestamp time.Time
}

// Emit sends an event with timestamp to the channel. It blocks until the
// event is accepted or ctx is done, and reports whether it was delivered.
// A nil channel discards the event.
func Emit(ctx context.Context, ch chan<- Event, e Event) bool {
	if ch == nil {
		return false
	}
	e.Timestamp = time.Now()
	select {
	case ch <- e:
		return true
	default:
	}
	select {
	case ch <- e:
		return true
	case <-ctx.Done():
		return false
	}
}

// NewChannel creates a buffered event channel with standard capacity.
func NewChannel() chan Event {
	return make(chan Event, 100)
}

// IsTerminal reports whether the event ends the top-level run. Terminal
// events forwarded from managed sub-agents carry an Agent and do not count.
func (e Event) IsTerminal() bool {
	return e.Agent == "" && (e.Type == RunEnd || e.Type == RunError)
}
