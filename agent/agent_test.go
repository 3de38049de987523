package agent

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/weathermesh/core"
	"github.com/hupe1980/weathermesh/logging"
	"github.com/hupe1980/weathermesh/session"
)

// recorder persists non-partial events like the runner does.
type recorder struct {
	store *session.InMemoryStore

	mu     sync.Mutex
	events []core.Event
}

func (r *recorder) emit(ev core.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if ev.Partial {
		r.events = append(r.events, ev)
		return nil
	}
	if ev.HasStateUpdates() {
		sess, err := r.store.Get("s1")
		if err != nil {
			return err
		}
		ev.ResolveStateUpdates(sess.GetState)
	}
	r.events = append(r.events, ev)
	if err := r.store.ApplyDelta("s1", ev.Actions.StateDelta); err != nil {
		return err
	}
	return r.store.AppendEvent("s1", ev)
}

func (r *recorder) emitted() []core.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]core.Event, len(r.events))
	copy(out, r.events)
	return out
}

func (r *recorder) state(t *testing.T) map[string]any {
	t.Helper()
	sess, err := r.store.Get("s1")
	require.NoError(t, err)
	return sess.StateSnapshot()
}

func newTestRunContextWithText(t *testing.T, text string) (*core.RunContext, *recorder) {
	t.Helper()

	r := &recorder{store: session.NewInMemoryStore()}
	_, err := r.store.Create("s1")
	require.NoError(t, err)

	user := core.NewUserMessageEvent("run-1", text)
	require.NoError(t, r.store.AppendEvent("s1", user))

	sess, err := r.store.Get("s1")
	require.NoError(t, err)

	rc := core.NewRunContext(context.Background(), "s1", "run-1", core.AgentInfo{Name: "root", Type: "runner"},
		*user.Content, sess, r.store, nil, r.emit, logging.NoOpLogger{})

	return rc, r
}

func newTestRunContext(t *testing.T) (*core.RunContext, *recorder) {
	return newTestRunContextWithText(t, "hello")
}

// testChildAgent is a lightweight concrete agent used for testing composite agents.
type testChildAgent struct {
	BaseAgent
	runFn func(*core.RunContext) error

	mu       sync.Mutex
	received *core.RunContext
}

func newTestChildAgent(name string, runFn func(*core.RunContext) error) *testChildAgent {
	if runFn == nil {
		runFn = func(*core.RunContext) error { return nil }
	}

	c := &testChildAgent{BaseAgent: NewBaseAgent(name), runFn: runFn}
	c.bind(c)

	return c
}

func (c *testChildAgent) Run(runCtx *core.RunContext) error {
	c.mu.Lock()
	c.received = runCtx
	c.mu.Unlock()
	return c.runFn(runCtx)
}

func (c *testChildAgent) receivedCtx() *core.RunContext {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.received
}

func TestBaseAgent_Hierarchy(t *testing.T) {
	weather := newTestChildAgent("weather_agent", nil)
	timeAgent := newTestChildAgent("time_agent", nil)
	par := NewParallelAgent("parallel_weather_time_agent", 0, weather, timeAgent)
	validator := newTestChildAgent("city_validation_agent", nil)
	root := NewSequentialAgent("root", validator, par)

	assert.Nil(t, root.Parent())
	assert.Same(t, root, validator.Parent())
	assert.Same(t, par, weather.Parent())

	assert.Len(t, root.SubAgents(), 2)
	assert.Same(t, root, root.FindAgent("root"))
	assert.Same(t, timeAgent, root.FindAgent("time_agent"))
	assert.Nil(t, root.FindAgent("missing"))
}

func TestBaseAgent_Description(t *testing.T) {
	b := NewBaseAgent("bot")
	assert.Equal(t, "Agent bot", b.Description())

	b.SetDescription("Provides weather information")
	assert.Equal(t, "Provides weather information", b.Description())
}

func TestBaseAgent_RunBeforeAgentFlushesState(t *testing.T) {
	rc, rec := newTestRunContext(t)

	b := NewBaseAgent("bot")
	b.SetBeforeAgent(func(cc *core.CallbackContext) error {
		if _, ok := cc.GetState("temperature_unit"); !ok {
			cc.SetState("temperature_unit", "celsius")
		}
		return nil
	})

	require.NoError(t, b.RunBeforeAgent(rc))

	events := rec.emitted()
	require.Len(t, events, 1)
	assert.True(t, events[0].IsStateOnly())
	assert.Equal(t, "bot", events[0].Author)
	assert.Equal(t, "celsius", rec.state(t)["temperature_unit"])

	// already initialized: nothing staged, nothing emitted
	require.NoError(t, b.RunBeforeAgent(rc))
	assert.Len(t, rec.emitted(), 1)
}

func TestBuildBranchPath(t *testing.T) {
	assert.Equal(t, "child", buildBranchPath("", "child"))
	assert.Equal(t, "parent", buildBranchPath("parent", ""))
	assert.Equal(t, "parent.child", buildBranchPath("parent", "child"))
}
