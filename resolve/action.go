package resolve

import (
	ai "github.com/spetersoncode/gambit"
)

// Mode selects how actions are expressed for a whole run.
type Mode string

const (
	// ModeToolCalling expects structured tool calls, native or embedded in text.
	ModeToolCalling Mode = "tool_calling"

	// ModeCode expects a fenced code block run in the sandbox.
	ModeCode Mode = "code"
)

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	return m == ModeToolCalling || m == ModeCode
}

// Action is the single action chosen for a step: a ToolCall or a CodeAction.
type Action interface {
	isAction()
}

// ToolCall invokes one registered tool. Arguments is a JSON object.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string
}

func (ToolCall) isAction() {}

// Call converts the action to the shared tool call type.
func (c ToolCall) Call() ai.ToolCall {
	return ai.ToolCall{ID: c.ID, Name: c.Name, Arguments: c.Arguments}
}

// CodeAction runs a program in the sandbox.
type CodeAction struct {
	Source string
}

func (CodeAction) isAction() {}

// Resolution is the outcome of resolving one model response.
type Resolution struct {
	// Action is the action to execute.
	Action Action

	// Final is set when the action is a call to final_answer.
	Final bool

	// Ignored holds tool call candidates that were not chosen.
	Ignored []ai.ToolCall

	// Calls holds the response's native tool calls that carry a name, each
	// with an ID, in response order. The chosen call, if native, is the
	// first. It is set even when resolution fails.
	Calls []ai.ToolCall
}
