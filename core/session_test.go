package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSession_ApplyStateDeltaAndClone(t *testing.T) {
	s := NewSession("s1")
	s.ApplyStateDelta(map[string]any{"a": 1, "hist": []any{"london"}})

	v, ok := s.GetState("a")
	require.True(t, ok)
	assert.Equal(t, 1, v)

	clone := s.Clone()
	assert.NotSame(t, s, clone)

	clone.SetState("c", 2)
	_, exists := s.GetState("c")
	assert.False(t, exists)

	hist, _ := clone.GetState("hist")
	hist.([]any)[0] = "paris"
	orig, _ := s.GetState("hist")
	assert.Equal(t, []any{"london"}, orig)
}

func TestSession_ApplyStateDeltaCopiesInput(t *testing.T) {
	s := NewSession("s1")
	delta := map[string]any{"cities": []string{"tokyo"}}
	s.ApplyStateDelta(delta)

	delta["cities"].([]string)[0] = "sydney"

	v, _ := s.GetState("cities")
	assert.Equal(t, []string{"tokyo"}, v)
}

func TestSession_AddEventAndHistory(t *testing.T) {
	s := NewSession("s2")
	s.AddEvent(NewUserMessageEvent("inv", "hi"))
	s.AddEvent(NewMessageEvent("assistant", "hello"))

	stateOnly := NewEvent("inv", "agent")
	stateOnly.Actions.StateDelta = map[string]any{"k": 1}
	s.AddEvent(stateOnly)

	partial := NewMessageEvent("assistant", "hel")
	partial.Partial = true
	s.AddEvent(partial)

	all := s.GetEvents()
	require.Len(t, all, 4)

	all[0].Author = "changed"
	assert.Equal(t, "user", s.GetEvents()[0].Author)

	history := s.GetConversationHistory()
	require.Len(t, history, 2)
	assert.Equal(t, "user", history[0].Content.Role)
	assert.Equal(t, "assistant", history[1].Content.Role)
}

func TestSession_StateSnapshotIsCopy(t *testing.T) {
	s := NewSession("s3")
	s.SetState("m", map[string]any{"x": 1})

	snap := s.StateSnapshot()
	snap["m"].(map[string]any)["x"] = 2

	v, _ := s.GetState("m")
	assert.Equal(t, 1, v.(map[string]any)["x"])
}
