package agui

import (
	"errors"
	"testing"

	"github.com/ag-ui-protocol/ag-ui/sdks/community/go/pkg/core/events"

	ai "github.com/spetersoncode/gambit"
	"github.com/spetersoncode/gambit/event"
)

func types(evs []events.Event) []events.EventType {
	out := make([]events.EventType, len(evs))
	for i, ev := range evs {
		out[i] = ev.Type()
	}
	return out
}

func assertTypes(t *testing.T, got []events.Event, want ...events.EventType) {
	t.Helper()
	gotTypes := types(got)
	if len(gotTypes) != len(want) {
		t.Fatalf("expected %d events %v, got %d: %v", len(want), want, len(gotTypes), gotTypes)
	}
	for i := range want {
		if gotTypes[i] != want[i] {
			t.Errorf("event %d: expected %s, got %s", i, want[i], gotTypes[i])
		}
	}
}

func TestNewMapper(t *testing.T) {
	t.Run("with provided IDs", func(t *testing.T) {
		m := NewMapper("thread-123", "run-456")
		if m.ThreadID() != "thread-123" {
			t.Errorf("expected thread ID 'thread-123', got %q", m.ThreadID())
		}
		if m.RunID() != "run-456" {
			t.Errorf("expected run ID 'run-456', got %q", m.RunID())
		}
	})

	t.Run("generates IDs when empty", func(t *testing.T) {
		m := NewMapper("", "")
		if m.ThreadID() == "" {
			t.Error("expected generated thread ID, got empty")
		}
		if m.RunID() == "" {
			t.Error("expected generated run ID, got empty")
		}
	})
}

func TestMapper_RunLifecycle(t *testing.T) {
	m := NewMapper("thread-1", "run-1")

	t.Run("RunStart maps to RUN_STARTED", func(t *testing.T) {
		assertTypes(t, m.Map(event.Event{Type: event.RunStart}), events.EventTypeRunStarted)
	})

	t.Run("RunEnd without an answer maps to RUN_FINISHED", func(t *testing.T) {
		assertTypes(t, m.Map(event.Event{Type: event.RunEnd, Message: "budget_exhausted"}), events.EventTypeRunFinished)
	})

	t.Run("RunEnd with an answer emits it first", func(t *testing.T) {
		got := m.Map(event.Event{Type: event.RunEnd, Message: "finished", Answer: "42"})
		assertTypes(t, got,
			events.EventTypeTextMessageStart,
			events.EventTypeTextMessageContent,
			events.EventTypeTextMessageEnd,
			events.EventTypeRunFinished,
		)
		content, ok := got[1].(*events.TextMessageContentEvent)
		if !ok {
			t.Fatalf("expected *TextMessageContentEvent, got %T", got[1])
		}
		if content.Delta != "42" {
			t.Errorf("expected delta '42', got %q", content.Delta)
		}
	})

	t.Run("RunError maps to RUN_ERROR", func(t *testing.T) {
		got := m.Map(event.Event{Type: event.RunError, Error: ai.NewExecutionError(ai.KindModel, "boom", nil)})
		assertTypes(t, got, events.EventTypeRunError)
		runErr := got[0].(*events.RunErrorEvent)
		if runErr.Message != "model_error: boom" {
			t.Errorf("unexpected message %q", runErr.Message)
		}
	})

	t.Run("RunError without an error", func(t *testing.T) {
		assertTypes(t, m.Map(event.Event{Type: event.RunError}), events.EventTypeRunError)
	})

	t.Run("RunError helper", func(t *testing.T) {
		if ev := m.RunError(errors.New("test error")); ev.Type() != events.EventTypeRunError {
			t.Errorf("expected RUN_ERROR, got %s", ev.Type())
		}
	})
}

func TestMapper_Steps(t *testing.T) {
	m := NewMapper("thread-1", "run-1")

	got := m.Map(event.Event{Type: event.StepStart, Step: 2, StepName: "action"})
	assertTypes(t, got, events.EventTypeStepStarted)
	if name := got[0].(*events.StepStartedEvent).StepName; name != "action 2" {
		t.Errorf("expected step name 'action 2', got %q", name)
	}

	got = m.Map(event.Event{Type: event.StepEnd, Step: 1, StepName: "planning", Agent: "researcher"})
	assertTypes(t, got, events.EventTypeStepFinished)
	if name := got[0].(*events.StepFinishedEvent).StepName; name != "researcher/planning 1" {
		t.Errorf("expected step name 'researcher/planning 1', got %q", name)
	}
}

func TestMapper_Messages(t *testing.T) {
	m := NewMapper("thread-1", "run-1")

	assertTypes(t, m.Map(event.Event{Type: event.MessageStart, MessageID: "msg-1"}), events.EventTypeTextMessageStart)
	assertTypes(t, m.Map(event.Event{Type: event.MessageDelta, MessageID: "msg-1", Delta: "Hi"}), events.EventTypeTextMessageContent)
	assertTypes(t, m.Map(event.Event{Type: event.MessageEnd, MessageID: "msg-1"}), events.EventTypeTextMessageEnd)
}

func TestMapper_ToolCalls(t *testing.T) {
	m := NewMapper("thread-1", "run-1")
	call := &ai.ToolCall{ID: "call-1", Name: "add", Arguments: `{"a":1,"b":2}`}

	t.Run("maps the call lifecycle", func(t *testing.T) {
		assertTypes(t, m.Map(event.Event{Type: event.ToolCallStart, ToolCall: call}), events.EventTypeToolCallStart)
		assertTypes(t, m.Map(event.Event{Type: event.ToolCallArgs, ToolCall: call}), events.EventTypeToolCallArgs)
		assertTypes(t, m.Map(event.Event{Type: event.ToolCallEnd, ToolCall: call}), events.EventTypeToolCallEnd)

		got := m.Map(event.Event{Type: event.ToolCallResult, ToolCall: call, ToolResult: &ai.ToolResult{ToolCallID: "call-1", Content: "3"}})
		assertTypes(t, got, events.EventTypeToolCallResult)
		result := got[0].(*events.ToolCallResultEvent)
		if result.ToolCallID != "call-1" || result.Content != "3" {
			t.Errorf("unexpected result %+v", result)
		}
	})

	t.Run("skips events without a call", func(t *testing.T) {
		for _, typ := range []event.Type{event.ToolCallStart, event.ToolCallArgs, event.ToolCallEnd, event.ToolCallResult} {
			if got := m.Map(event.Event{Type: typ}); len(got) != 0 {
				t.Errorf("%s: expected no events, got %v", typ, types(got))
			}
		}
	})
}

func TestMapper_Code(t *testing.T) {
	m := NewMapper("thread-1", "run-1")

	start := m.Map(event.Event{Type: event.CodeStart, RunID: "r", Step: 1, Code: "print(1)"})
	assertTypes(t, start, events.EventTypeToolCallStart, events.EventTypeToolCallArgs, events.EventTypeToolCallEnd)

	callStart := start[0].(*events.ToolCallStartEvent)
	if callStart.ToolCallName != CodeToolName {
		t.Errorf("expected tool name %q, got %q", CodeToolName, callStart.ToolCallName)
	}
	args := start[1].(*events.ToolCallArgsEvent)
	if args.Delta != `{"code":"print(1)"}` {
		t.Errorf("unexpected args %q", args.Delta)
	}

	result := m.Map(event.Event{
		Type:   event.CodeResult,
		RunID:  "r",
		Step:   1,
		Output: "Execution logs:\n1",
		Error:  ai.NewExecutionError(ai.KindRuntime, "oops", nil),
	})
	assertTypes(t, result, events.EventTypeToolCallResult)
	res := result[0].(*events.ToolCallResultEvent)
	if res.ToolCallID != callStart.ToolCallID {
		t.Errorf("result call ID %q does not match start %q", res.ToolCallID, callStart.ToolCallID)
	}
	if res.Content != "Execution logs:\n1\nError: runtime_error: oops" {
		t.Errorf("unexpected content %q", res.Content)
	}

	if got := m.Map(event.Event{Type: event.CodeResult, RunID: "r", Step: 1}); len(got) != 0 {
		t.Errorf("expected a result without a start to be dropped, got %v", types(got))
	}
}

func TestMapper_MapStream(t *testing.T) {
	m := NewMapper("thread-1", "run-1")

	input := make(chan event.Event, 20)
	input <- event.Event{Type: event.RunStart}
	input <- event.Event{Type: event.StepStart, Step: 1, StepName: "action"}
	input <- event.Event{Type: event.RunStart, Agent: "researcher"}
	input <- event.Event{Type: event.MessageStart, MessageID: "msg-1", Agent: "researcher"}
	input <- event.Event{Type: event.MessageDelta, MessageID: "msg-1", Delta: "Hi", Agent: "researcher"}
	input <- event.Event{Type: event.MessageEnd, MessageID: "msg-1", Agent: "researcher"}
	input <- event.Event{Type: event.RunEnd, Agent: "researcher", Answer: "Paris"}
	input <- event.Event{Type: event.StepEnd, Step: 1, StepName: "action"}
	input <- event.Event{Type: event.RunEnd}
	close(input)

	var received []events.Event
	for ev := range m.MapStream(input) {
		received = append(received, ev)
	}

	assertTypes(t, received,
		events.EventTypeRunStarted,
		events.EventTypeStepStarted,
		events.EventTypeStepStarted,
		events.EventTypeTextMessageStart,
		events.EventTypeTextMessageContent,
		events.EventTypeTextMessageEnd,
		events.EventTypeStepFinished,
		events.EventTypeStepFinished,
		events.EventTypeRunFinished,
	)
}
