package gemini

import (
	"context"
	"testing"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/weathermesh/core"
	"github.com/hupe1980/weathermesh/model"
)

type weatherResult struct {
	Status string `json:"status"`
	Report string `json:"report,omitempty"`
}

func TestToGenaiContents_RolesAndMerging(t *testing.T) {
	contents := []core.Content{
		{Role: "user", Parts: []core.Part{core.TextPart{Text: "weather in paris?"}}},
		{Role: "user", Parts: []core.Part{core.TextPart{Text: "For context:"}}},
		{Role: "assistant", Parts: []core.Part{core.FunctionCallPart{FunctionCall: core.FunctionCall{ID: "c1", Name: "get_weather", Arguments: `{"city":"paris"}`}}}},
		{Role: "tool", Parts: []core.Part{core.FunctionResponsePart{FunctionResponse: core.FunctionResponse{ID: "c1", Name: "get_weather", Response: weatherResult{Status: "error"}}}}},
		{Role: "system", Parts: []core.Part{core.TextPart{Text: "ignored"}}},
	}

	out, err := toGenaiContents(contents)
	require.NoError(t, err)
	require.Len(t, out, 3)

	assert.Equal(t, "user", out[0].Role)
	assert.Len(t, out[0].Parts, 2)

	assert.Equal(t, "model", out[1].Role)
	fc := out[1].Parts[0].(genai.FunctionCall)
	assert.Equal(t, "get_weather", fc.Name)
	assert.Equal(t, map[string]any{"city": "paris"}, fc.Args)

	assert.Equal(t, "user", out[2].Role)
	fr := out[2].Parts[0].(genai.FunctionResponse)
	assert.Equal(t, map[string]any{"status": "error"}, fr.Response)
}

func TestToGenaiContents_BadArguments(t *testing.T) {
	_, err := toGenaiContents([]core.Content{{Role: "assistant", Parts: []core.Part{
		core.FunctionCallPart{FunctionCall: core.FunctionCall{Name: "f", Arguments: "{not json"}},
	}}})
	assert.Error(t, err)
}

func TestResponseMap(t *testing.T) {
	assert.Equal(t, map[string]any{"error": "boom"}, responseMap(core.FunctionResponse{Error: "boom"}))
	assert.Equal(t, map[string]any{"a": 1}, responseMap(core.FunctionResponse{Response: map[string]any{"a": 1}}))
	assert.Equal(t, map[string]any{"result": "plain"}, responseMap(core.FunctionResponse{Response: "plain"}))
	assert.Equal(t, map[string]any{"status": "success", "report": "ok"},
		responseMap(core.FunctionResponse{Response: weatherResult{Status: "success", Report: "ok"}}))
}

func TestFromGenaiResponse(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Role: "model", Parts: []genai.Part{
				genai.Text("checking"),
				genai.FunctionCall{Name: "get_current_time", Args: map[string]any{"city": "tokyo"}},
			}},
			FinishReason: genai.FinishReasonStop,
		}},
		UsageMetadata: &genai.UsageMetadata{PromptTokenCount: 4, CandidatesTokenCount: 2, TotalTokenCount: 6},
	}

	out := fromGenaiResponse(resp)
	require.Len(t, out.Content.Parts, 2)
	assert.Equal(t, "checking", out.Content.Text())

	fc := out.Content.Parts[1].(core.FunctionCallPart).FunctionCall
	assert.NotEmpty(t, fc.ID)
	assert.Equal(t, "get_current_time", fc.Name)
	assert.JSONEq(t, `{"city":"tokyo"}`, fc.Arguments)

	assert.Equal(t, "stop", out.FinishReason)
	assert.Equal(t, &model.TokenUsage{PromptTokens: 4, CompletionTokens: 2, TotalTokens: 6}, out.Usage)
}

func TestToFunctionDeclarations(t *testing.T) {
	decls := toFunctionDeclarations([]model.ToolDefinition{
		{Function: model.FunctionDefinition{
			Name:        "update_temperature_preference",
			Description: "Updates the unit",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"unit":   map[string]any{"type": "string", "enum": []string{"celsius", "fahrenheit"}},
					"cities": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
				},
				"required": []string{"unit"},
			},
		}},
		{Function: model.FunctionDefinition{
			Name:       "get_recent_cities",
			Parameters: map[string]any{"type": "object", "properties": map[string]any{}},
		}},
	})

	require.Len(t, decls, 2)
	p := decls[0].Parameters
	require.NotNil(t, p)
	assert.Equal(t, genai.TypeObject, p.Type)
	assert.Equal(t, []string{"unit"}, p.Required)
	assert.Equal(t, []string{"celsius", "fahrenheit"}, p.Properties["unit"].Enum)
	assert.Equal(t, genai.TypeArray, p.Properties["cities"].Type)
	assert.Equal(t, genai.TypeString, p.Properties["cities"].Items.Type)

	assert.Nil(t, decls[1].Parameters)
}

func TestNewModel_RequiresKey(t *testing.T) {
	_, err := NewModel(context.Background(), "")
	assert.Error(t, err)
}

func TestInfo(t *testing.T) {
	m := NewModelFromClient(nil)
	assert.Equal(t, model.Info{Name: DefaultModel, Provider: "gemini", SupportsTools: true}, m.Info())
	assert.NoError(t, m.Close())
}
