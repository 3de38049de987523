package core

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func increment(current any, _ bool) any {
	n, _ := current.(int)
	return n + 1
}

// resolvingRunContext persists like the runner: staged updates are
// recomputed from the stored state before the delta is applied.
func resolvingRunContext(t *testing.T) (*RunContext, *memStore) {
	t.Helper()

	store := newMemStore()
	sess, err := store.Create("s")
	require.NoError(t, err)

	emit := func(ev Event) error {
		if ev.HasStateUpdates() {
			current, err := store.Get("s")
			if err != nil {
				return err
			}
			ev.ResolveStateUpdates(current.GetState)
		}
		if err := store.ApplyDelta("s", ev.Actions.StateDelta); err != nil {
			return err
		}
		return store.AppendEvent("s", ev)
	}

	rc := NewRunContext(context.Background(), "s", "run", AgentInfo{Name: "agent1"}, Content{}, sess, store, nil, emit, nil)

	return rc, store
}

func storedState(t *testing.T, store *memStore, key string) any {
	t.Helper()
	sess, err := store.Get("s")
	require.NoError(t, err)
	v, _ := sess.GetState(key)
	return v
}

func TestRunContext_UpdateStateResolvesAtPersist(t *testing.T) {
	rc, store := resolvingRunContext(t)

	rc.UpdateState("count", increment)

	v, ok := rc.GetState("count")
	require.True(t, ok)
	assert.Equal(t, 1, v)

	// a sibling branch stored its own increment after our snapshot was taken
	require.NoError(t, store.ApplyDelta("s", map[string]any{"count": 5}))

	require.NoError(t, rc.EmitEvent(NewEvent("run", "agent1")))

	assert.Equal(t, 6, storedState(t, store, "count"))
	v, _ = rc.Session.GetState("count")
	assert.Equal(t, 6, v)
	assert.Empty(t, rc.StateDelta)
}

func TestRunContext_SetStateOverridesUpdate(t *testing.T) {
	rc, store := resolvingRunContext(t)

	rc.UpdateState("temperature_unit", func(any, bool) any { return "celsius" })
	rc.SetState("temperature_unit", "fahrenheit")

	require.NoError(t, store.ApplyDelta("s", map[string]any{"temperature_unit": "kelvin"}))
	require.NoError(t, rc.EmitEvent(NewEvent("run", "agent1")))

	assert.Equal(t, "fahrenheit", storedState(t, store, "temperature_unit"))
}

func TestToolContext_UpdateStateTravelsOnResponse(t *testing.T) {
	rc, store := resolvingRunContext(t)

	tc := NewToolContext(rc, "call-1")
	tc.UpdateState("count", increment)
	tc.UpdateState("count", increment)

	v, _ := tc.GetState("count")
	assert.Equal(t, 2, v)

	require.NoError(t, store.ApplyDelta("s", map[string]any{"count": 10}))

	ev := NewFunctionResponseEvent("agent1", "call-1", "get_weather", "ok", nil)
	tc.ApplyActions(&ev)
	assert.True(t, ev.HasStateUpdates())

	require.NoError(t, rc.EmitEvent(ev))
	assert.Equal(t, 12, storedState(t, store, "count"))
}

func TestEvent_ResolveStateUpdatesChains(t *testing.T) {
	double := func(current any, _ bool) any { return current.(int) * 2 }

	ev := NewEvent("run", "agent1")
	ev.addStateUpdates(nil, []stateUpdate{{key: "n", fn: increment}, {key: "n", fn: double}})

	var lookups int
	ev.ResolveStateUpdates(func(string) (any, bool) {
		lookups++
		return 3, true
	})

	assert.Equal(t, 8, ev.Actions.StateDelta["n"])
	assert.Equal(t, 1, lookups)
	assert.False(t, ev.HasStateUpdates())
}

func TestEvent_OwnDeltaWinsOverUpdate(t *testing.T) {
	ev := NewEvent("run", "agent1")
	ev.Actions.StateDelta = map[string]any{"n": 42}
	ev.addStateUpdates(ev.Actions.StateDelta, []stateUpdate{{key: "n", fn: increment}})

	assert.False(t, ev.HasStateUpdates())
}
