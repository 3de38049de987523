package session

import (
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/weathermesh/core"
)

var _ core.SessionStore = (*InMemoryStore)(nil)

func TestInMemoryStore_GetUnknown(t *testing.T) {
	s := NewInMemoryStore()

	_, err := s.Get("missing")
	assert.ErrorIs(t, err, core.ErrSessionNotFound)
}

func TestInMemoryStore_CreateAppendApply(t *testing.T) {
	s := NewInMemoryStore()

	_, err := s.Create("s1")
	require.NoError(t, err)

	require.NoError(t, s.AppendEvent("s1", core.NewUserMessageEvent("run-1", "hello")))
	require.NoError(t, s.ApplyDelta("s1", map[string]any{"temperature_unit": "fahrenheit"}))

	sess, err := s.Get("s1")
	require.NoError(t, err)
	assert.Len(t, sess.GetEvents(), 1)

	unit, ok := sess.GetState("temperature_unit")
	require.True(t, ok)
	assert.Equal(t, "fahrenheit", unit)
}

func TestInMemoryStore_LazyCreate(t *testing.T) {
	s := NewInMemoryStore()

	require.NoError(t, s.ApplyDelta("lazy", map[string]any{"k": "v"}))

	sess, err := s.Get("lazy")
	require.NoError(t, err)
	v, _ := sess.GetState("k")
	assert.Equal(t, "v", v)
}

func TestInMemoryStore_GetReturnsClone(t *testing.T) {
	s := NewInMemoryStore()
	require.NoError(t, s.ApplyDelta("s1", map[string]any{"city_history": []any{"london"}}))

	sess, err := s.Get("s1")
	require.NoError(t, err)
	sess.SetState("city_history", []any{"tokyo"})

	again, err := s.Get("s1")
	require.NoError(t, err)
	v, _ := again.GetState("city_history")
	assert.Equal(t, []any{"london"}, v)
}

func TestInMemoryStore_DeleteAndList(t *testing.T) {
	s := NewInMemoryStore()
	_, _ = s.Create("a")
	_, _ = s.Create("b")

	ids := s.List()
	sort.Strings(ids)
	assert.Equal(t, []string{"a", "b"}, ids)

	require.NoError(t, s.Delete("a"))
	_, err := s.Get("a")
	assert.ErrorIs(t, err, core.ErrSessionNotFound)
}

func TestInMemoryStore_ConcurrentAppend(t *testing.T) {
	s := NewInMemoryStore()
	_, _ = s.Create("s1")

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.AppendEvent("s1", core.NewMessageEvent("agent", "x"))
		}()
	}
	wg.Wait()

	sess, err := s.Get("s1")
	require.NoError(t, err)
	assert.Len(t, sess.GetEvents(), 20)
}
