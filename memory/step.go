package memory

import (
	"bytes"
	"encoding/json"
	"time"

	ai "github.com/spetersoncode/gambit"
)

// StepType identifies the variant of a Step in serialized form.
type StepType string

const (
	TypeSystemPrompt StepType = "system_prompt"
	TypeTask         StepType = "task"
	TypePlanning     StepType = "planning"
	TypeAction       StepType = "action"
	TypeFinalAnswer  StepType = "final_answer"
)

// Step is one entry of a run's history. The set of variants is closed.
type Step interface {
	Type() StepType
	Meta() StepMeta
	withMeta(StepMeta) Step
	normalize() Step
}

// StepMeta is assigned by Memory when a step is appended.
type StepMeta struct {
	Index     int       `json:"index"`
	Timestamp time.Time `json:"timestamp"`
}

// Meta returns the step's index and timestamp.
func (m StepMeta) Meta() StepMeta { return m }

// SystemPromptStep holds the system prompt the run started with.
type SystemPromptStep struct {
	StepMeta
	Prompt string `json:"prompt"`
}

func (SystemPromptStep) Type() StepType { return TypeSystemPrompt }

func (s SystemPromptStep) withMeta(m StepMeta) Step {
	s.StepMeta = m
	return s
}

func (s SystemPromptStep) normalize() Step { return s }

// TaskStep holds the user's goal.
type TaskStep struct {
	StepMeta
	Task string `json:"task"`
}

func (TaskStep) Type() StepType { return TypeTask }

func (s TaskStep) withMeta(m StepMeta) Step {
	s.StepMeta = m
	return s
}

func (s TaskStep) normalize() Step { return s }

// PlanningStep holds a plan the model wrote between action steps.
type PlanningStep struct {
	StepMeta
	Plan  string   `json:"plan"`
	Usage ai.Usage `json:"usage"`
}

func (PlanningStep) Type() StepType { return TypePlanning }

func (s PlanningStep) withMeta(m StepMeta) Step {
	s.StepMeta = m
	return s
}

func (s PlanningStep) normalize() Step { return s }

// ActionKind distinguishes the two action forms.
type ActionKind string

const (
	ActionToolCall ActionKind = "tool_call"
	ActionCode     ActionKind = "code"
)

// Action is the action chosen by the resolver for a step.
type Action struct {
	Kind      ActionKind      `json:"kind"`
	ID        string          `json:"id,omitempty"`
	ToolName  string          `json:"toolName,omitempty"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
	Code      string          `json:"code,omitempty"`
}

// ActionStep records one reason-and-act iteration.
type ActionStep struct {
	StepMeta
	StepNumber  int                `json:"stepNumber"`
	ModelOutput string             `json:"modelOutput,omitempty"`
	ToolCalls   []ai.ToolCall      `json:"toolCalls,omitempty"`
	Action      *Action            `json:"action,omitempty"`
	Observation string             `json:"observation,omitempty"`
	Error       *ai.ExecutionError `json:"error,omitempty"`
	Start       time.Time          `json:"start"`
	End         time.Time          `json:"end"`
	Duration    time.Duration      `json:"duration"`
	Usage       ai.Usage           `json:"usage"`
}

func (ActionStep) Type() StepType { return TypeAction }

func (s ActionStep) withMeta(m StepMeta) Step {
	s.StepMeta = m
	return s
}

func (s ActionStep) normalize() Step {
	if len(s.ToolCalls) == 0 {
		s.ToolCalls = nil
	} else {
		s.ToolCalls = append([]ai.ToolCall(nil), s.ToolCalls...)
	}
	if s.Action != nil {
		a := *s.Action
		a.Arguments = compact(a.Arguments)
		s.Action = &a
	}
	if s.Error != nil {
		s.Error = &ai.ExecutionError{Kind: s.Error.Kind, Message: s.Error.Message}
	}
	s.Start = stamp(s.Start)
	s.End = stamp(s.End)
	return s
}

// FinalAnswerStep is the terminal step of a finished run.
// Value holds the answer as JSON; Answer holds its text rendering.
type FinalAnswerStep struct {
	StepMeta
	Answer string          `json:"answer"`
	Value  json.RawMessage `json:"value,omitempty"`
}

func (FinalAnswerStep) Type() StepType { return TypeFinalAnswer }

func (s FinalAnswerStep) withMeta(m StepMeta) Step {
	s.StepMeta = m
	return s
}

func (s FinalAnswerStep) normalize() Step {
	s.Value = compact(s.Value)
	return s
}

func compact(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 {
		return nil
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return append(json.RawMessage(nil), raw...)
	}
	return json.RawMessage(buf.Bytes())
}

// stamp drops the monotonic reading and location so a time survives JSON.
func stamp(t time.Time) time.Time {
	if t.IsZero() {
		return time.Time{}
	}
	return t.UTC().Round(0)
}
