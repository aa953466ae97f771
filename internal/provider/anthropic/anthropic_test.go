package anthropic

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	ai "github.com/spetersoncode/gambit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConvertMessages(t *testing.T) {
	msgs, system := convertMessages([]ai.Message{
		{Role: ai.RoleSystem, Content: "be brief"},
		{Role: ai.RoleSystem, Content: ""},
		{Role: ai.RoleUser, Content: "add 2 and 2"},
		{Role: ai.RoleAssistant, Content: "Adding.", ToolCalls: []ai.ToolCall{{ID: "call-1", Name: "add", Arguments: `{"a":2}`}}},
		{Role: ai.RoleTool, ToolResults: []ai.ToolResult{{ToolCallID: "call-1", Content: "4"}}},
		{Role: ai.RoleUser, Content: ""},
	})

	require.Len(t, system, 1)
	assert.Equal(t, "be brief", system[0].Text)

	require.Len(t, msgs, 3)
	assert.Equal(t, anthropic.MessageParamRoleUser, msgs[0].Role)
	assert.Equal(t, anthropic.MessageParamRoleAssistant, msgs[1].Role)
	require.Len(t, msgs[1].Content, 2)
	require.NotNil(t, msgs[1].Content[1].OfToolUse)
	assert.Equal(t, "add", msgs[1].Content[1].OfToolUse.Name)

	assert.Equal(t, anthropic.MessageParamRoleUser, msgs[2].Role)
	require.Len(t, msgs[2].Content, 1)
	require.NotNil(t, msgs[2].Content[0].OfToolResult)
	assert.Equal(t, "call-1", msgs[2].Content[0].OfToolResult.ToolUseID)
}

func TestConvertTools(t *testing.T) {
	assert.Nil(t, convertTools(nil))

	tools := convertTools([]ai.Tool{{
		Name:        "add",
		Description: "Add two numbers",
		Parameters:  []byte(`{"type":"object","properties":{"a":{"type":"integer"}},"required":["a"]}`),
	}})
	require.Len(t, tools, 1)
	require.NotNil(t, tools[0].OfTool)
	assert.Equal(t, "add", tools[0].OfTool.Name)
	assert.Equal(t, []string{"a"}, tools[0].OfTool.InputSchema.Required)
}

func TestConvertToolChoice(t *testing.T) {
	assert.NotNil(t, convertToolChoice(ai.ToolChoiceNone).OfNone)
	assert.NotNil(t, convertToolChoice(ai.ToolChoiceRequired).OfAny)
	assert.NotNil(t, convertToolChoice(ai.ToolChoiceAuto).OfAuto)
}

func TestParams(t *testing.T) {
	c := New("test-key")

	params := c.params([]ai.Message{{Role: ai.RoleUser, Content: "hi"}}, ai.ApplyOptions(
		ai.WithStopSequences("Observation:"),
		ai.WithMaxTokens(100),
	))
	assert.Equal(t, anthropic.Model(DefaultModel), params.Model)
	assert.Equal(t, int64(100), params.MaxTokens)
	assert.Equal(t, []string{"Observation:"}, params.StopSequences)

	params = c.params(nil, ai.ApplyOptions(ai.WithModel("claude-other")))
	assert.Equal(t, anthropic.Model("claude-other"), params.Model)
	assert.Equal(t, int64(defaultMaxTokens), params.MaxTokens)
}

func TestWrapError(t *testing.T) {
	assert.NoError(t, wrapError(nil))

	plain := errors.New("connection reset")
	assert.Same(t, plain, wrapError(plain))
}

func TestRetryAfter(t *testing.T) {
	assert.Zero(t, retryAfter(nil))

	resp := &http.Response{Header: http.Header{}}
	resp.Header.Set("Retry-After", "2")
	assert.Equal(t, 2*time.Second, retryAfter(resp))
}
