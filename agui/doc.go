// Package agui maps gambit runs onto the AG-UI protocol.
//
// AG-UI (Agent-User Interface) is an event-based protocol that standardizes
// how agents connect to user-facing applications. This package converts the
// event stream of [agent.Agent.RunStream] into AG-UI events and converts
// AG-UI request messages into a task.
//
// The package does NOT provide HTTP handlers. cmd/server shows how to serve
// the mapped events over SSE.
//
// # Usage
//
//	prepared, err := input.Prepare()
//	if err != nil {
//	    return err
//	}
//	mapper := agui.NewMapper(prepared.ThreadID, prepared.RunID)
//	for ev := range mapper.MapStream(a.RunStream(ctx, prepared.Task)) {
//	    writeEvent(ev)
//	}
//
// # Event Mapping
//
//   - RunStart, RunEnd, RunError of the top-level run → RUN_STARTED,
//     RUN_FINISHED (preceded by the final answer as a text message), RUN_ERROR
//   - RunStart and RunEnd of a managed sub-agent → STEP_STARTED and
//     STEP_FINISHED named after the agent path
//   - StepStart, StepEnd → STEP_STARTED, STEP_FINISHED ("action 1", "planning 1")
//   - MessageStart, MessageDelta, MessageEnd → TEXT_MESSAGE_START, _CONTENT, _END
//   - ToolCall* → TOOL_CALL_START, _ARGS, _END, _RESULT
//   - CodeStart, CodeResult → a call of [CodeToolName] with {"code": source}
//
// # Thread Safety
//
// The Mapper is NOT safe for concurrent use. Message conversion functions
// are stateless and safe for concurrent use.
package agui
