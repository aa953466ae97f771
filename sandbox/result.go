package sandbox

import (
	"encoding/json"
	"strings"
	"time"

	ai "github.com/spetersoncode/gambit"
	"go.starlark.net/starlark"
)

// Result is the outcome of one execution.
type Result struct {
	Value       any
	ValueText   string
	Output      string
	FinalAnswer bool
	Answer      json.RawMessage
	ToolCalls   []ai.ToolCall
	Duration    time.Duration
	Err         *ai.ExecutionError
}

// Observation renders the result as the text fed back to the model.
func (r Result) Observation() string {
	var sb strings.Builder
	if r.Output != "" {
		sb.WriteString("Execution logs:\n")
		sb.WriteString(strings.TrimRight(r.Output, "\n"))
	}
	if r.ValueText != "" && !r.FinalAnswer {
		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString("Last output from code snippet:\n")
		sb.WriteString(r.ValueText)
	}
	if sb.Len() == 0 {
		return "(no output)"
	}
	return sb.String()
}

func answerJSON(v starlark.Value) (json.RawMessage, error) {
	g, err := toGo(v)
	if err != nil {
		return nil, err
	}
	return json.Marshal(g)
}
