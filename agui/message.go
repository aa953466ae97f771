package agui

import (
	ai "github.com/spetersoncode/gambit"
	"github.com/spetersoncode/gambit/memory"

	"github.com/ag-ui-protocol/ag-ui/sdks/community/go/pkg/core/events"
)

// Role constants matching AG-UI protocol.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
	RoleTool      = "tool"
)

// ToMessages converts AG-UI messages to gambit messages.
func ToMessages(msgs []events.Message) []ai.Message {
	result := make([]ai.Message, 0, len(msgs))
	for _, msg := range msgs {
		result = append(result, ToMessage(msg))
	}
	return result
}

// ToMessage converts a single AG-UI message to a gambit message.
func ToMessage(msg events.Message) ai.Message {
	m := ai.Message{
		ID:   msg.ID,
		Role: toRole(msg.Role),
	}
	if msg.Content != nil {
		m.Content = *msg.Content
	}

	if len(msg.ToolCalls) > 0 {
		m.ToolCalls = make([]ai.ToolCall, len(msg.ToolCalls))
		for i, tc := range msg.ToolCalls {
			m.ToolCalls[i] = ai.ToolCall{
				ID:        tc.ID,
				Name:      tc.Function.Name,
				Arguments: tc.Function.Arguments,
			}
		}
	}

	if msg.ToolCallID != nil {
		m.ToolResults = []ai.ToolResult{{
			ToolCallID: *msg.ToolCallID,
			Content:    m.Content,
		}}
		m.Content = ""
	}
	return m
}

// FromMessages converts gambit messages to AG-UI messages. A tool message
// carrying several results becomes one AG-UI message per result.
func FromMessages(msgs []ai.Message) []events.Message {
	result := make([]events.Message, 0, len(msgs))
	for _, msg := range msgs {
		result = append(result, FromMessage(msg)...)
	}
	return result
}

// FromMessage converts a single gambit message to AG-UI messages.
func FromMessage(msg ai.Message) []events.Message {
	if len(msg.ToolResults) > 0 {
		out := make([]events.Message, len(msg.ToolResults))
		for i, r := range msg.ToolResults {
			callID, content := r.ToolCallID, r.Content
			out[i] = events.Message{
				ID:         events.GenerateMessageID(),
				Role:       RoleTool,
				Content:    &content,
				ToolCallID: &callID,
			}
		}
		return out
	}

	m := events.Message{
		ID:   msg.ID,
		Role: fromRole(msg.Role),
	}
	if m.ID == "" {
		m.ID = events.GenerateMessageID()
	}
	if msg.Content != "" {
		content := msg.Content
		m.Content = &content
	}

	if len(msg.ToolCalls) > 0 {
		m.ToolCalls = make([]events.ToolCall, len(msg.ToolCalls))
		for i, tc := range msg.ToolCalls {
			m.ToolCalls[i] = events.ToolCall{
				ID:   tc.ID,
				Type: "function",
				Function: events.Function{
					Name:      tc.Name,
					Arguments: tc.Arguments,
				},
			}
		}
	}
	return []events.Message{m}
}

// Snapshot renders a run's memory as a MESSAGES_SNAPSHOT event. The system
// prompt is left out.
func Snapshot(mem *memory.Memory) events.Event {
	var msgs []ai.Message
	for _, msg := range mem.Messages() {
		if msg.Role != ai.RoleSystem {
			msgs = append(msgs, msg)
		}
	}
	return events.NewMessagesSnapshotEvent(FromMessages(msgs))
}

func toRole(role string) ai.Role {
	switch role {
	case RoleAssistant:
		return ai.RoleAssistant
	case RoleSystem:
		return ai.RoleSystem
	case RoleTool:
		return ai.RoleTool
	default:
		return ai.RoleUser
	}
}

func fromRole(role ai.Role) string {
	switch role {
	case ai.RoleAssistant:
		return RoleAssistant
	case ai.RoleSystem:
		return RoleSystem
	case ai.RoleTool:
		return RoleTool
	default:
		return RoleUser
	}
}
