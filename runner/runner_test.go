package runner

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/weathermesh/agent"
	"github.com/hupe1980/weathermesh/core"
	"github.com/hupe1980/weathermesh/model"
	"github.com/hupe1980/weathermesh/session"
	"github.com/hupe1980/weathermesh/tool"
)

func userText(s string) core.Content {
	return core.Content{Role: "user", Parts: []core.Part{core.TextPart{Text: s}}}
}

func drain(t *testing.T, events <-chan core.Event, errs <-chan error) ([]core.Event, error) {
	t.Helper()

	var out []core.Event
	for ev := range events {
		out = append(out, ev)
	}

	return out, <-errs
}

type prefArgs struct {
	Unit string `json:"unit" description:"celsius or fahrenheit"`
}

func TestRunner_PersistsEventsAndState(t *testing.T) {
	pref := tool.NewTypedTool("update_temperature_preference", "Set unit", func(tc *core.ToolContext, a prefArgs) (any, error) {
		tc.SetState("temperature_unit", a.Unit)
		return map[string]any{"status": "success"}, nil
	})

	llm := model.NewScriptedModel("m",
		model.ReplyCalls(core.FunctionCall{ID: "c1", Name: "update_temperature_preference", Arguments: `{"unit":"fahrenheit"}`}),
		model.ReplyText("Updated."),
	)

	root := agent.NewModelAgent("preferences_agent", llm, func(o *agent.ModelAgentOptions) {
		o.Tools = []tool.Tool{pref}
		o.OutputKey = "last_response"
	})

	store := session.NewInMemoryStore()
	r := New(root, func(o *Options) { o.SessionStore = store })

	runID, events, errs, err := r.Run(context.Background(), "s1", userText("use fahrenheit"))
	require.NoError(t, err)
	assert.NotEmpty(t, runID)

	got, runErr := drain(t, events, errs)
	require.NoError(t, runErr)
	require.Len(t, got, 3)
	for _, ev := range got {
		assert.Equal(t, runID, ev.InvocationID)
	}

	sess, err := store.Get("s1")
	require.NoError(t, err)

	history := sess.GetEvents()
	require.Len(t, history, 4)
	assert.Equal(t, "user", history[0].Author)
	assert.Equal(t, "use fahrenheit", history[0].Text())

	state := sess.StateSnapshot()
	assert.Equal(t, "fahrenheit", state["temperature_unit"])
	assert.Equal(t, "Updated.", state["last_response"])
}

func TestRunner_SessionSurvivesRuns(t *testing.T) {
	llm := model.NewScriptedModel("m", model.ReplyText("first"), model.ReplyText("second"))
	root := agent.NewModelAgent("bot", llm)
	r := New(root)

	for _, q := range []string{"one", "two"} {
		_, events, errs, err := r.Run(context.Background(), "s1", userText(q))
		require.NoError(t, err)
		_, runErr := drain(t, events, errs)
		require.NoError(t, runErr)
	}

	reqs := llm.Requests()
	require.Len(t, reqs, 2)
	assert.Len(t, reqs[1].Contents, 3) // one, first, two
}

func TestRunner_AgentError(t *testing.T) {
	boom := errors.New("boom")
	root := agent.NewModelAgent("bot", model.NewScriptedModel("m", model.ScriptTurn{Err: boom}))

	_, events, errs, err := New(root).Run(context.Background(), "s1", userText("hi"))
	require.NoError(t, err)

	got, runErr := drain(t, events, errs)
	require.ErrorIs(t, runErr, boom)
	require.Len(t, got, 1)
	assert.NotEmpty(t, got[0].ErrorMessage)
}

func TestRunner_MaxModelCalls(t *testing.T) {
	loop := tool.NewFunctionTool("noop", "noop", map[string]any{"type": "object"}, func(*core.ToolContext, map[string]any) (any, error) {
		return "ok", nil
	})

	turns := make([]model.ScriptTurn, 0, 5)
	for i := 0; i < 5; i++ {
		turns = append(turns, model.ReplyCalls(core.FunctionCall{Name: "noop"}))
	}

	root := agent.NewModelAgent("bot", model.NewScriptedModel("m", turns...), func(o *agent.ModelAgentOptions) {
		o.Tools = []tool.Tool{loop}
	})

	r := New(root, func(o *Options) { o.MaxModelCalls = 2 })

	_, events, errs, err := r.Run(context.Background(), "s1", userText("hi"))
	require.NoError(t, err)

	_, runErr := drain(t, events, errs)
	assert.ErrorIs(t, runErr, core.ErrModelCallLimit)
}

// blockingModel waits for cancellation.
type blockingModel struct{ started chan struct{} }

func (m *blockingModel) Generate(ctx context.Context, _ model.Request) (<-chan model.Response, <-chan error) {
	respCh := make(chan model.Response)
	errCh := make(chan error, 1)

	go func() {
		defer close(respCh)
		defer close(errCh)
		close(m.started)
		<-ctx.Done()
		errCh <- ctx.Err()
	}()

	return respCh, errCh
}

func (m *blockingModel) Info() model.Info { return model.Info{Name: "blocking"} }

func TestRunner_Cancel(t *testing.T) {
	m := &blockingModel{started: make(chan struct{})}
	r := New(agent.NewModelAgent("bot", m))

	runID, events, errs, err := r.Run(context.Background(), "s1", userText("hi"))
	require.NoError(t, err)

	<-m.started
	require.NoError(t, r.Cancel(runID))

	_, runErr := drain(t, events, errs)
	assert.ErrorIs(t, runErr, context.Canceled)

	assert.ErrorIs(t, r.Cancel(runID), ErrRunNotFound)
}

func TestRunner_Timeout(t *testing.T) {
	m := &blockingModel{started: make(chan struct{})}
	r := New(agent.NewModelAgent("bot", m), func(o *Options) { o.Timeout = 20 * time.Millisecond })

	_, events, errs, err := r.Run(context.Background(), "s1", userText("hi"))
	require.NoError(t, err)

	_, runErr := drain(t, events, errs)
	assert.ErrorIs(t, runErr, context.DeadlineExceeded)
}

func TestRunner_CancelUnknown(t *testing.T) {
	r := New(agent.NewModelAgent("bot", model.NewScriptedModel("m")))
	assert.ErrorIs(t, r.Cancel("nope"), ErrRunNotFound)
}
