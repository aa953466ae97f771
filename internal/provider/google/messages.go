package google

import (
	"encoding/json"

	ai "github.com/spetersoncode/gambit"
	"google.golang.org/genai"
)

// convertMessages returns the conversation contents and the system
// instruction. Gemini matches function responses by function name, so tool
// results are resolved to the name of the call they answer.
func convertMessages(messages []ai.Message) ([]*genai.Content, *genai.Content) {
	var contents []*genai.Content
	var system *genai.Content
	names := make(map[string]string)

	for _, msg := range messages {
		if msg.Role == ai.RoleSystem {
			if msg.Content == "" {
				continue
			}
			if system == nil {
				system = &genai.Content{}
			}
			system.Parts = append(system.Parts, &genai.Part{Text: msg.Content})
			continue
		}

		role := "user"
		if msg.Role == ai.RoleAssistant {
			role = "model"
		}

		var parts []*genai.Part
		if msg.Content != "" {
			parts = append(parts, &genai.Part{Text: msg.Content})
		}

		for _, tc := range msg.ToolCalls {
			names[tc.ID] = tc.Name
			var args map[string]any
			if tc.Arguments != "" {
				if err := json.Unmarshal([]byte(tc.Arguments), &args); err != nil {
					args = nil
				}
			}
			parts = append(parts, &genai.Part{
				FunctionCall: &genai.FunctionCall{ID: tc.ID, Name: tc.Name, Args: args},
			})
		}

		for _, tr := range msg.ToolResults {
			name := names[tr.ToolCallID]
			if name == "" {
				name = tr.ToolCallID
			}
			key := "output"
			if tr.IsError {
				key = "error"
			}
			parts = append(parts, &genai.Part{
				FunctionResponse: &genai.FunctionResponse{
					ID:       tr.ToolCallID,
					Name:     name,
					Response: map[string]any{key: tr.Content},
				},
			})
		}

		if len(parts) > 0 {
			contents = append(contents, &genai.Content{Role: role, Parts: parts})
		}
	}

	return contents, system
}
