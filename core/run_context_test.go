package core

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunContext_EmitEventFlushesStagedState(t *testing.T) {
	rc, store, emitted := newRunContextForTest(t)
	rc.Branch = "root"

	rc.SetState("foo", "bar")
	v, ok := rc.GetState("foo")
	require.True(t, ok)
	assert.Equal(t, "bar", v)

	require.NoError(t, rc.EmitEvent(NewMessageEvent("agent1", "hello")))

	require.Len(t, *emitted, 1)
	got := (*emitted)[0]
	assert.Equal(t, "bar", got.Actions.StateDelta["foo"])
	assert.Equal(t, "run-x", got.InvocationID)
	assert.Equal(t, "root", got.Branch)
	assert.Empty(t, rc.StateDelta)

	// local snapshot and store both see the value
	v, ok = rc.Session.GetState("foo")
	require.True(t, ok)
	assert.Equal(t, "bar", v)

	persisted, err := store.Get("sess-x")
	require.NoError(t, err)
	v, _ = persisted.GetState("foo")
	assert.Equal(t, "bar", v)
}

func TestRunContext_EmitEventKeepsExplicitBranch(t *testing.T) {
	rc, _, emitted := newRunContextForTest(t)
	rc.Branch = "root"

	ev := NewMessageEvent("agent1", "x")
	ev.Branch = "root.child"
	require.NoError(t, rc.EmitEvent(ev))

	assert.Equal(t, "root.child", (*emitted)[0].Branch)
}

func TestRunContext_EmitErrorKeepsDelta(t *testing.T) {
	rc := NewRunContext(context.Background(), "s", "r", AgentInfo{Name: "a"}, Content{}, NewSession("s"), nil, nil,
		func(Event) error { return errors.New("store down") }, nil)

	rc.SetState("k", 1)
	err := rc.EmitEvent(NewMessageEvent("a", "x"))
	require.Error(t, err)
	assert.Equal(t, 1, rc.StateDelta["k"])
}

func TestRunContext_EmitAfterCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	rc := NewRunContext(ctx, "s", "r", AgentInfo{Name: "a"}, Content{}, nil, nil, nil,
		func(Event) error { called = true; return nil }, nil)

	assert.ErrorIs(t, rc.EmitEvent(NewMessageEvent("a", "x")), context.Canceled)
	assert.False(t, called)
}

func TestRunContext_CloneIsolation(t *testing.T) {
	rc, _, _ := newRunContextForTest(t)
	rc.SetState("a", 1)

	clone := rc.Clone()
	assert.Same(t, rc.Session, clone.Session)

	clone.SetState("b", 2)
	_, exists := rc.StateDelta["b"]
	assert.False(t, exists)

	v, _ := clone.GetState("a")
	assert.Equal(t, 1, v)
}

func TestRunContext_NewChildContext(t *testing.T) {
	rc, _, emitted := newRunContextForTest(t)
	rc.Branch = "root"
	rc.SetState("parent", true)

	child := rc.NewChildContext(AgentInfo{Name: "child", Type: "model"}, "root.par.child")
	assert.Equal(t, "child", child.GetAgentName())
	assert.Equal(t, "root.par.child", child.Branch)
	assert.Empty(t, child.StateDelta)
	assert.Same(t, rc.Limiter, child.Limiter)

	require.NoError(t, child.EmitEvent(NewMessageEvent("child", "x")))
	assert.Equal(t, "root.par.child", (*emitted)[0].Branch)
	assert.NotContains(t, (*emitted)[0].Actions.StateDelta, "parent")

	same := rc.NewChildContext(AgentInfo{Name: "seq"}, "")
	assert.Equal(t, "root", same.Branch)
}

func TestRunContext_WithBranchAndAgent(t *testing.T) {
	rc, _, _ := newRunContextForTest(t)

	branched := rc.WithBranch("Root.Child")
	assert.Equal(t, "Root.Child", branched.Branch)
	assert.Empty(t, rc.Branch)

	other := rc.WithAgent(AgentInfo{Name: "other", Type: "model"})
	assert.Equal(t, "other", other.GetAgentName())
	assert.Equal(t, "model", other.GetAgentType())
	assert.Equal(t, "agent1", rc.GetAgentName())
}

func TestRunContext_RefreshSession(t *testing.T) {
	rc, store, _ := newRunContextForTest(t)
	require.NoError(t, store.ApplyDelta("sess-x", map[string]any{"external": "yes"}))

	_, ok := rc.GetState("external")
	assert.False(t, ok)

	require.NoError(t, rc.RefreshSession())
	v, ok := rc.GetState("external")
	require.True(t, ok)
	assert.Equal(t, "yes", v)

	rc.SessionID = "missing"
	assert.ErrorIs(t, rc.RefreshSession(), ErrSessionNotFound)
}

func TestRunContext_StateOverlay(t *testing.T) {
	rc, _, _ := newRunContextForTest(t)
	rc.Session.SetState("a", 1)
	rc.SetState("a", 2)
	rc.SetState("b", 3)

	assert.Equal(t, map[string]any{"a": 2, "b": 3}, rc.State())
}

func TestRunContext_PartialEventKeepsStagedState(t *testing.T) {
	rc, _, emitted := newRunContextForTest(t)
	rc.SetState("last_response", "hi")

	partial := NewMessageEvent("agent1", "h")
	partial.Partial = true
	require.NoError(t, rc.EmitEvent(partial))

	assert.Empty(t, (*emitted)[0].Actions.StateDelta)
	assert.Equal(t, "hi", rc.StateDelta["last_response"])

	require.NoError(t, rc.EmitEvent(NewMessageEvent("agent1", "hi")))
	assert.Equal(t, "hi", (*emitted)[1].Actions.StateDelta["last_response"])
	assert.Empty(t, rc.StateDelta)
}
