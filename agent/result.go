package agent

import (
	"encoding/json"
	"time"

	ai "github.com/spetersoncode/gambit"
	"github.com/spetersoncode/gambit/memory"
	"github.com/spetersoncode/gambit/tool"
)

// Outcome is the terminal state of a run.
type Outcome string

const (
	// OutcomeFinished indicates the model produced a final answer.
	OutcomeFinished Outcome = "finished"

	// OutcomeBudgetExhausted indicates the run ran out of steps, time or tokens.
	OutcomeBudgetExhausted Outcome = "budget_exhausted"

	// OutcomeFailed indicates a fatal error (model failure or cancellation).
	OutcomeFailed Outcome = "failed"
)

// Result represents the final outcome of a run.
type Result struct {
	// RunID identifies the run in events and logs.
	RunID string

	// Outcome is the terminal state.
	Outcome Outcome

	// Answer is the final answer as JSON. Set only when Outcome is OutcomeFinished.
	Answer json.RawMessage

	// Error describes why the run did not finish. Its Kind is
	// budget_exhausted for OutcomeBudgetExhausted, and model_error or
	// cancelled for OutcomeFailed.
	Error *ai.ExecutionError

	// Steps is the number of action steps taken by this run.
	Steps int

	// Usage aggregates token usage across all model calls of this run.
	Usage ai.Usage

	// Duration is the wall-clock time of the run.
	Duration time.Duration

	// Memory is the step log, including steps from earlier runs when
	// the run continued an existing memory.
	Memory *memory.Memory
}

// Finished reports whether the run produced a final answer.
func (r *Result) Finished() bool {
	return r.Outcome == OutcomeFinished
}

// Text returns the final answer as text. String answers are unquoted.
func (r *Result) Text() string {
	return tool.AnswerText(r.Answer)
}

// Messages returns the conversation the model saw, rendered from memory.
func (r *Result) Messages() []ai.Message {
	if r.Memory == nil {
		return nil
	}
	return r.Memory.Messages()
}
