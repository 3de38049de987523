package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCallbackContext_StagesOnRunContext(t *testing.T) {
	rc, _, emitted := newRunContextForTest(t)
	cc := NewCallbackContext(rc)

	assert.Equal(t, "agent1", cc.AgentName())
	assert.Equal(t, "run-x", cc.InvocationID())
	assert.Equal(t, "sess-x", cc.SessionID())
	assert.Equal(t, "hi", cc.UserContent().Text())
	assert.False(t, cc.HasPendingState())

	cc.SetState("temperature_unit", "celsius")
	assert.True(t, cc.HasPendingState())

	v, ok := cc.GetState("temperature_unit")
	require.True(t, ok)
	assert.Equal(t, "celsius", v)
	assert.Equal(t, "celsius", cc.State()["temperature_unit"])

	require.NoError(t, rc.EmitEvent(NewEvent("", "agent1")))
	assert.Equal(t, "celsius", (*emitted)[0].Actions.StateDelta["temperature_unit"])
	assert.False(t, cc.HasPendingState())
}
