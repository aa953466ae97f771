package agui

import (
	"encoding/json"
	"fmt"

	"github.com/ag-ui-protocol/ag-ui/sdks/community/go/pkg/core/events"

	ai "github.com/spetersoncode/gambit"
	"github.com/spetersoncode/gambit/event"
)

// CodeToolName is the tool name under which code actions are shown to
// AG-UI clients. AG-UI has no code execution events, so a code action is
// rendered as a call of this tool with {"code": source} as arguments.
const CodeToolName = "python_interpreter"

// Mapper converts gambit run events to AG-UI events.
//
// Events of the top-level run map onto the AG-UI run lifecycle. Events
// forwarded from managed sub-agents are kept inside it: their run start and
// end become STEP_STARTED and STEP_FINISHED named after the agent, and
// their step names are prefixed with the agent path.
//
// Create a new Mapper for each run using NewMapper. The Mapper is not
// safe for concurrent use.
type Mapper struct {
	threadID  string
	runID     string
	codeCalls map[string]string
}

// NewMapper creates a new Mapper for a single run.
// The threadID and runID are used in lifecycle events (RUN_STARTED, RUN_FINISHED).
func NewMapper(threadID, runID string) *Mapper {
	if threadID == "" {
		threadID = events.GenerateThreadID()
	}
	if runID == "" {
		runID = events.GenerateRunID()
	}
	return &Mapper{
		threadID:  threadID,
		runID:     runID,
		codeCalls: make(map[string]string),
	}
}

// ThreadID returns the thread ID for this mapper.
func (m *Mapper) ThreadID() string {
	return m.threadID
}

// RunID returns the run ID for this mapper.
func (m *Mapper) RunID() string {
	return m.runID
}

// RunStarted returns a RUN_STARTED event.
func (m *Mapper) RunStarted() events.Event {
	return events.NewRunStartedEvent(m.threadID, m.runID)
}

// RunFinished returns a RUN_FINISHED event.
func (m *Mapper) RunFinished() events.Event {
	return events.NewRunFinishedEvent(m.threadID, m.runID)
}

// RunError returns a RUN_ERROR event.
func (m *Mapper) RunError(err error) events.Event {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	return events.NewRunErrorEvent(msg)
}

// Map converts one gambit event to zero or more AG-UI events.
func (m *Mapper) Map(e event.Event) []events.Event {
	switch e.Type {
	case event.RunStart:
		if e.Agent != "" {
			return one(events.NewStepStartedEvent(e.Agent))
		}
		return one(m.RunStarted())
	case event.RunEnd:
		if e.Agent != "" {
			return one(events.NewStepFinishedEvent(e.Agent))
		}
		out := m.answer(e)
		return append(out, m.RunFinished())
	case event.RunError:
		if e.Agent != "" {
			return one(events.NewStepFinishedEvent(e.Agent))
		}
		if e.Error == nil {
			return one(m.RunError(nil))
		}
		return one(m.RunError(e.Error))

	case event.StepStart:
		return one(events.NewStepStartedEvent(stepName(e)))
	case event.StepEnd:
		return one(events.NewStepFinishedEvent(stepName(e)))

	case event.MessageStart:
		return one(events.NewTextMessageStartEvent(e.MessageID, events.WithRole(RoleAssistant)))
	case event.MessageDelta:
		return one(events.NewTextMessageContentEvent(e.MessageID, e.Delta))
	case event.MessageEnd:
		return one(events.NewTextMessageEndEvent(e.MessageID))

	case event.ToolCallStart:
		if e.ToolCall == nil {
			return nil
		}
		return one(events.NewToolCallStartEvent(e.ToolCall.ID, e.ToolCall.Name))
	case event.ToolCallArgs:
		if e.ToolCall == nil {
			return nil
		}
		return one(events.NewToolCallArgsEvent(e.ToolCall.ID, e.ToolCall.Arguments))
	case event.ToolCallEnd:
		if e.ToolCall == nil {
			return nil
		}
		return one(events.NewToolCallEndEvent(e.ToolCall.ID))
	case event.ToolCallResult:
		if e.ToolCall == nil || e.ToolResult == nil {
			return nil
		}
		return one(events.NewToolCallResultEvent(events.GenerateMessageID(), e.ToolCall.ID, e.ToolResult.Content))

	case event.CodeStart:
		id := ai.GenerateCallID()
		m.codeCalls[codeKey(e)] = id
		args, _ := json.Marshal(map[string]string{"code": e.Code})
		return []events.Event{
			events.NewToolCallStartEvent(id, CodeToolName),
			events.NewToolCallArgsEvent(id, string(args)),
			events.NewToolCallEndEvent(id),
		}
	case event.CodeResult:
		key := codeKey(e)
		id, ok := m.codeCalls[key]
		if !ok {
			return nil
		}
		delete(m.codeCalls, key)
		content := e.Output
		if e.Error != nil {
			content += "\nError: " + e.Error.Error()
		}
		return one(events.NewToolCallResultEvent(events.GenerateMessageID(), id, content))

	default:
		return nil
	}
}

// MapStream converts a run's event stream. The returned channel is closed
// when in is closed.
func (m *Mapper) MapStream(in <-chan event.Event) <-chan events.Event {
	out := make(chan events.Event, cap(in))
	go func() {
		defer close(out)
		for e := range in {
			for _, ev := range m.Map(e) {
				out <- ev
			}
		}
	}()
	return out
}

// answer renders the final answer as an assistant message so clients show
// it even when the model answered through a native tool call.
func (m *Mapper) answer(e event.Event) []events.Event {
	if e.Answer == "" {
		return nil
	}
	id := events.GenerateMessageID()
	return []events.Event{
		events.NewTextMessageStartEvent(id, events.WithRole(RoleAssistant)),
		events.NewTextMessageContentEvent(id, e.Answer),
		events.NewTextMessageEndEvent(id),
	}
}

func stepName(e event.Event) string {
	name := fmt.Sprintf("%s %d", e.StepName, e.Step)
	if e.Agent != "" {
		return e.Agent + "/" + name
	}
	return name
}

func codeKey(e event.Event) string {
	return fmt.Sprintf("%s/%d", e.RunID, e.Step)
}

func one(e events.Event) []events.Event {
	return []events.Event{e}
}
