package mcp

import (
	"encoding/json"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	ai "github.com/spetersoncode/gambit"
)

// ToMCPTool converts a gambit Tool to an MCP Tool.
// Tool.Parameters is passed through as the raw input schema.
func ToMCPTool(t ai.Tool) mcp.Tool {
	schema := t.Parameters
	if len(schema) == 0 {
		schema = json.RawMessage(`{"type":"object","properties":{}}`)
	}
	return mcp.NewToolWithRawSchema(t.Name, t.Description, schema)
}

// FromMCPTool converts an MCP Tool to a gambit Tool.
// MCP tools return content blocks, which are rendered as text.
func FromMCPTool(t mcp.Tool) ai.Tool {
	var schema json.RawMessage
	if len(t.RawInputSchema) > 0 {
		schema = t.RawInputSchema
	} else if data, err := json.Marshal(t.InputSchema); err == nil {
		schema = data
	}

	return ai.Tool{
		Name:        t.Name,
		Description: t.Description,
		Parameters:  schema,
		Output:      "string",
	}
}

// FromMCPTools converts a slice of MCP Tools to gambit Tools.
func FromMCPTools(tools []mcp.Tool) []ai.Tool {
	result := make([]ai.Tool, len(tools))
	for i, t := range tools {
		result[i] = FromMCPTool(t)
	}
	return result
}

// ToMCPCallToolRequest converts a gambit ToolCall to an MCP CallToolRequest.
// The remote name may differ from call.Name when the registry was prefixed.
func ToMCPCallToolRequest(name string, call ai.ToolCall) mcp.CallToolRequest {
	var args any
	if call.Arguments != "" {
		if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
			args = call.Arguments
		}
	}

	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

// ResultText concatenates the content blocks of an MCP result as text.
// Non-text blocks and structured content are rendered as JSON.
func ResultText(result *mcp.CallToolResult) string {
	if result == nil {
		return ""
	}

	var parts []string
	for _, c := range result.Content {
		switch content := c.(type) {
		case mcp.TextContent:
			parts = append(parts, content.Text)
		case *mcp.TextContent:
			parts = append(parts, content.Text)
		default:
			if data, err := json.Marshal(content); err == nil {
				parts = append(parts, string(data))
			}
		}
	}
	if result.StructuredContent != nil {
		if data, err := json.Marshal(result.StructuredContent); err == nil {
			parts = append(parts, string(data))
		}
	}
	return strings.Join(parts, "\n")
}

// FromMCPCallToolResult converts an MCP CallToolResult to a gambit ToolResult.
func FromMCPCallToolResult(callID string, result *mcp.CallToolResult) ai.ToolResult {
	if result == nil {
		return ai.ToolResult{ToolCallID: callID, IsError: true}
	}
	return ai.ToolResult{
		ToolCallID: callID,
		Content:    ResultText(result),
		IsError:    result.IsError,
	}
}

// ToMCPCallToolResult converts a gambit ToolResult to an MCP CallToolResult.
func ToMCPCallToolResult(result ai.ToolResult) *mcp.CallToolResult {
	if result.IsError {
		return mcp.NewToolResultError(result.Content)
	}
	return mcp.NewToolResultText(result.Content)
}
