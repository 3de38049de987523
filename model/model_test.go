package model

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/weathermesh/core"
)

func collect(respCh <-chan Response, errCh <-chan error) ([]Response, error) {
	var out []Response
	for r := range respCh {
		out = append(out, r)
	}
	return out, <-errCh
}

func userReq(text string) Request {
	return Request{Contents: []core.Content{{Role: "user", Parts: []core.Part{core.TextPart{Text: text}}}}}
}

func TestMockModel_CannedAndEcho(t *testing.T) {
	m := NewMockModel("mock", "local")
	m.AddResponse("hello", "hi there")

	resps, err := collect(m.Generate(context.Background(), userReq("hello")))
	require.NoError(t, err)
	require.Len(t, resps, 1)
	assert.Equal(t, "hi there", resps[0].Content.Text())

	resps, err = collect(m.Generate(context.Background(), userReq("other")))
	require.NoError(t, err)
	assert.Equal(t, "Mock response to: other", resps[0].Content.Text())
	assert.Equal(t, Info{Name: "mock", Provider: "local", SupportsTools: true}, m.Info())
}

func TestMockModel_Streaming(t *testing.T) {
	m := NewMockModel("mock", "local")
	m.AddResponse("x", "abc")

	req := userReq("x")
	req.Stream = true

	resps, err := collect(m.Generate(context.Background(), req))
	require.NoError(t, err)
	require.Len(t, resps, 4)
	assert.True(t, resps[0].Partial)
	assert.False(t, resps[3].Partial)
	assert.Equal(t, "abc", resps[3].Content.Text())
}

func TestMockModel_NoContents(t *testing.T) {
	_, err := collect(NewMockModel("m", "p").Generate(context.Background(), Request{}))
	assert.Error(t, err)
}

func TestScriptedModel_ReplaysTurns(t *testing.T) {
	boom := errors.New("boom")
	m := NewScriptedModel("script",
		ReplyCalls(core.FunctionCall{ID: "c1", Name: "get_weather", Arguments: `{"city":"london"}`}),
		ReplyFunc(func(req Request) Response { return TextResponse("seen " + req.Instructions) }),
		ScriptTurn{Err: boom},
	)

	resps, err := collect(m.Generate(context.Background(), userReq("a")))
	require.NoError(t, err)
	require.Len(t, resps, 1)
	assert.Equal(t, "tool_calls", resps[0].FinishReason)
	require.Len(t, resps[0].Content.Parts, 1)

	req := userReq("b")
	req.Instructions = "sys"
	resps, err = collect(m.Generate(context.Background(), req))
	require.NoError(t, err)
	assert.Equal(t, "seen sys", resps[0].Content.Text())

	_, err = collect(m.Generate(context.Background(), userReq("c")))
	assert.ErrorIs(t, err, boom)

	_, err = collect(m.Generate(context.Background(), userReq("d")))
	assert.ErrorIs(t, err, ErrScriptExhausted)

	assert.Len(t, m.Requests(), 4)
	assert.Equal(t, 0, m.Remaining())
	assert.Equal(t, "scripted", m.Info().Provider)
}

func TestScriptedModel_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	m := NewScriptedModel("script", ReplyText("never"))
	_, err := collect(m.Generate(ctx, userReq("a")))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEncodeFunctionResponse(t *testing.T) {
	assert.Equal(t, "plain", EncodeFunctionResponse(core.FunctionResponse{Response: "plain"}))
	assert.JSONEq(t, `{"status":"success","report":"sunny"}`,
		EncodeFunctionResponse(core.FunctionResponse{Response: map[string]any{"status": "success", "report": "sunny"}}))
	assert.JSONEq(t, `{"error":"boom"}`, EncodeFunctionResponse(core.FunctionResponse{Error: "boom", Response: "ignored"}))
	assert.Equal(t, "null", EncodeFunctionResponse(core.FunctionResponse{}))
}
