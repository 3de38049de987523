package anthropic

import (
	"encoding/json"
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/weathermesh/core"
	"github.com/hupe1980/weathermesh/model"
)

func TestBuildMessages_ToolResultsInUserMessage(t *testing.T) {
	contents := []core.Content{
		{Role: "user", Parts: []core.Part{core.TextPart{Text: "time in tokyo?"}}},
		{Role: "assistant", Parts: []core.Part{
			core.TextPart{Text: "Let me check."},
			core.FunctionCallPart{FunctionCall: core.FunctionCall{ID: "t1", Name: "get_current_time", Arguments: `{"city":"tokyo"}`}},
		}},
		{Role: "tool", Parts: []core.Part{core.FunctionResponsePart{FunctionResponse: core.FunctionResponse{
			ID: "t1", Name: "get_current_time", Response: map[string]any{"status": "success"},
		}}}},
		{Role: "user", Parts: []core.Part{core.TextPart{Text: "For context:"}}},
	}

	msgs := buildMessages(contents)
	require.Len(t, msgs, 3)

	assert.Equal(t, anthropic.MessageParamRoleUser, msgs[0].Role)
	assert.Equal(t, anthropic.MessageParamRoleAssistant, msgs[1].Role)
	require.Len(t, msgs[1].Content, 2)
	require.NotNil(t, msgs[1].Content[1].OfToolUse)
	assert.Equal(t, "t1", msgs[1].Content[1].OfToolUse.ID)

	// tool result and the following user text share one user message
	assert.Equal(t, anthropic.MessageParamRoleUser, msgs[2].Role)
	require.Len(t, msgs[2].Content, 2)
	require.NotNil(t, msgs[2].Content[0].OfToolResult)
	assert.Equal(t, "t1", msgs[2].Content[0].OfToolResult.ToolUseID)
}

func TestBuildParams_SystemAndTools(t *testing.T) {
	m := NewModelFromClient(nil)
	params := m.buildParams(model.Request{
		Instructions: "be brief",
		Contents:     []core.Content{{Role: "user", Parts: []core.Part{core.TextPart{Text: "hi"}}}},
		Tools: []model.ToolDefinition{{Type: "function", Function: model.FunctionDefinition{
			Name:        "get_weather",
			Description: "Weather",
			Parameters: map[string]any{
				"type":       "object",
				"properties": map[string]any{"city": map[string]any{"type": "string"}},
				"required":   []any{"city"},
			},
		}}},
	})

	require.Len(t, params.System, 1)
	assert.Equal(t, "be brief", params.System[0].Text)
	require.Len(t, params.Tools, 1)
	require.NotNil(t, params.Tools[0].OfTool)
	assert.Equal(t, "get_weather", params.Tools[0].OfTool.Name)
	assert.Equal(t, []string{"city"}, params.Tools[0].OfTool.InputSchema.Required)
}

func TestToResponse(t *testing.T) {
	var msg anthropic.Message
	require.NoError(t, json.Unmarshal([]byte(`{
		"id": "msg_1",
		"type": "message",
		"role": "assistant",
		"model": "claude",
		"stop_reason": "tool_use",
		"content": [
			{"type": "text", "text": "checking"},
			{"type": "tool_use", "id": "t1", "name": "get_weather", "input": {"city": "london"}}
		],
		"usage": {"input_tokens": 10, "output_tokens": 5}
	}`), &msg))

	resp := toResponse(&msg)
	assert.Equal(t, "tool_use", resp.FinishReason)
	require.Len(t, resp.Content.Parts, 2)
	fc := resp.Content.Parts[1].(core.FunctionCallPart).FunctionCall
	assert.Equal(t, "get_weather", fc.Name)
	assert.JSONEq(t, `{"city":"london"}`, fc.Arguments)
	require.NotNil(t, resp.Usage)
	assert.Equal(t, 15, resp.Usage.TotalTokens)
}
