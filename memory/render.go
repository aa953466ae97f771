package memory

import (
	"strings"

	ai "github.com/spetersoncode/gambit"
)

// IgnoredCallNotice is the tool result sent for native tool calls that were
// not executed because only one action runs per step.
const IgnoredCallNotice = "Ignored: only one tool call is executed per step."

// Messages renders the memory as a conversation for the model.
func (m *Memory) Messages() []ai.Message {
	steps := m.Steps()
	msgs := make([]ai.Message, 0, len(steps)*2)

	for _, s := range steps {
		switch v := s.(type) {
		case SystemPromptStep:
			msgs = append(msgs, ai.NewSystemMessage(v.Prompt))
		case TaskStep:
			msgs = append(msgs, ai.NewUserMessage("New task:\n"+v.Task))
		case PlanningStep:
			msgs = append(msgs,
				ai.NewAssistantMessage(v.Plan),
				ai.NewUserMessage("Now proceed and carry out this plan."),
			)
		case ActionStep:
			msgs = append(msgs, renderAction(v)...)
		case FinalAnswerStep:
			// terminal; nothing left to tell the model
		}
	}
	return msgs
}

func renderAction(s ActionStep) []ai.Message {
	observation := observationText(s)

	if len(s.ToolCalls) > 0 {
		assistant := ai.Message{Role: ai.RoleAssistant, Content: s.ModelOutput, ToolCalls: s.ToolCalls}
		chosen := 0
		if s.Action != nil && s.Action.Kind == ActionToolCall {
			for i, call := range s.ToolCalls {
				if call.ID == s.Action.ID {
					chosen = i
					break
				}
			}
		}
		results := make([]ai.ToolResult, len(s.ToolCalls))
		for i, call := range s.ToolCalls {
			results[i] = ai.ToolResult{ToolCallID: call.ID, Content: IgnoredCallNotice}
		}
		results[chosen].Content = observation
		results[chosen].IsError = s.Error != nil
		return []ai.Message{assistant, ai.NewToolResultMessage(results...)}
	}

	var msgs []ai.Message
	if s.ModelOutput != "" {
		msgs = append(msgs, ai.NewAssistantMessage(s.ModelOutput))
	}
	return append(msgs, ai.NewUserMessage(observation))
}

func observationText(s ActionStep) string {
	var b strings.Builder
	if s.Observation != "" {
		b.WriteString("Observation:\n")
		b.WriteString(s.Observation)
	}
	if s.Error != nil {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString("Error: ")
		b.WriteString(s.Error.Error())
		b.WriteString("\nNow let's retry: take care not to repeat previous errors!")
	}
	if b.Len() == 0 {
		return "Observation:\n(no output)"
	}
	return b.String()
}
