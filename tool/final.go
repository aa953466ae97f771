package tool

import (
	"context"
	"encoding/json"
	"fmt"

	ai "github.com/spetersoncode/gambit"
)

// FinalAnswerName is the name of the tool a model calls to end a run.
const FinalAnswerName = "final_answer"

var finalAnswerSchema = json.RawMessage(`{"type":"object","properties":{"answer":{"description":"The final answer to the task"}},"required":["answer"]}`)

// FinalAnswer returns the registration for the final_answer tool.
// Its handler echoes the answer back as text.
func FinalAnswer() Registration {
	return Registration{
		Tool: ai.Tool{
			Name:        FinalAnswerName,
			Description: "Provides a final answer to the given task.",
			Parameters:  finalAnswerSchema,
			Output:      "any",
		},
		Handler: func(_ context.Context, call ai.ToolCall) (string, error) {
			answer, err := FinalAnswerValue(call.Arguments)
			if err != nil {
				return "", err
			}
			return AnswerText(answer), nil
		},
	}
}

// FinalAnswerValue extracts the raw "answer" value from final_answer arguments.
func FinalAnswerValue(arguments string) (json.RawMessage, error) {
	var args struct {
		Answer json.RawMessage `json:"answer"`
	}
	if err := json.Unmarshal([]byte(arguments), &args); err != nil {
		return nil, fmt.Errorf("final_answer: %w", err)
	}
	if len(args.Answer) == 0 {
		return nil, fmt.Errorf("final_answer: missing answer")
	}
	return args.Answer, nil
}

// AnswerText renders a JSON value as observation text. Strings are unquoted.
func AnswerText(value json.RawMessage) string {
	var s string
	if err := json.Unmarshal(value, &s); err == nil {
		return s
	}
	return string(value)
}
