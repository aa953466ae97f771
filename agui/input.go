package agui

import (
	"encoding/json"
	"errors"
	"strings"

	ai "github.com/spetersoncode/gambit"

	"github.com/ag-ui-protocol/ag-ui/sdks/community/go/pkg/core/events"
)

// RunAgentInput represents the AG-UI protocol request for running an agent.
// This mirrors the AG-UI protocol and is transport-agnostic.
type RunAgentInput struct {
	ThreadID       string           `json:"thread_id"`
	RunID          string           `json:"run_id"`
	Messages       []events.Message `json:"messages"`
	Tools          []any            `json:"tools,omitempty"`
	Context        []any            `json:"context,omitempty"`
	State          any              `json:"state,omitempty"`
	ForwardedProps any              `json:"forwarded_props,omitempty"`
}

// PreparedInput contains validated and converted input ready for a run.
type PreparedInput struct {
	ThreadID string
	RunID    string
	// Task is the content of the last user message.
	Task string
	// History holds the messages before the task.
	History []ai.Message
	// Props are the raw forwarded props from the client.
	Props any
}

var (
	// ErrNoMessages is returned when the input contains no messages.
	ErrNoMessages = errors.New("no messages provided")

	// ErrNoTask is returned when no user message carries text.
	ErrNoTask = errors.New("no user message with a task")
)

// Prepare validates the input and converts it to gambit types.
// The last non-empty user message becomes the task. Frontend tools are not
// supported and are ignored.
func (r *RunAgentInput) Prepare() (*PreparedInput, error) {
	messages := ToMessages(r.Messages)
	if len(messages) == 0 {
		return nil, ErrNoMessages
	}

	for i := len(messages) - 1; i >= 0; i-- {
		msg := messages[i]
		if msg.Role != ai.RoleUser || strings.TrimSpace(msg.Content) == "" {
			continue
		}
		return &PreparedInput{
			ThreadID: r.ThreadID,
			RunID:    r.RunID,
			Task:     msg.Content,
			History:  messages[:i],
			Props:    r.ForwardedProps,
		}, nil
	}
	return nil, ErrNoTask
}

// DecodeProps decodes the forwarded props into a typed struct.
// Returns the zero value of T if no props were sent.
func DecodeProps[T any](input *PreparedInput) (T, error) {
	var result T
	if input.Props == nil {
		return result, nil
	}

	// Re-marshal and unmarshal to get proper typing
	data, err := json.Marshal(input.Props)
	if err != nil {
		return result, err
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return result, err
	}
	return result, nil
}
