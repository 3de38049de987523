package agent

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/weathermesh/core"
)

func contextWithCancel(rc *core.RunContext) (context.Context, context.CancelFunc) {
	return context.WithCancel(rc.Context)
}

func TestParallelAgent_BranchIsolation(t *testing.T) {
	c1 := newTestChildAgent("weather_agent", func(rc *core.RunContext) error {
		return rc.EmitEvent(core.NewMessageEvent("weather_agent", "sunny"))
	})
	c2 := newTestChildAgent("time_agent", func(rc *core.RunContext) error {
		return rc.EmitEvent(core.NewMessageEvent("time_agent", "noon"))
	})

	par := NewParallelAgent("parallel_weather_time_agent", 0, c1, c2)

	rc, rec := newTestRunContext(t)
	require.NoError(t, par.Run(rc))

	assert.Equal(t, "parallel_weather_time_agent.weather_agent", c1.receivedCtx().Branch)
	assert.Equal(t, "parallel_weather_time_agent.time_agent", c2.receivedCtx().Branch)

	branches := map[string]string{}
	for _, ev := range rec.emitted() {
		branches[ev.Author] = ev.Branch
	}
	assert.Equal(t, "parallel_weather_time_agent.weather_agent", branches["weather_agent"])
	assert.Equal(t, "parallel_weather_time_agent.time_agent", branches["time_agent"])
}

func TestParallelAgent_NestedBranch(t *testing.T) {
	child := newTestChildAgent("weather_agent", nil)
	par := NewParallelAgent("par", 0, child)

	rc, _ := newTestRunContext(t)
	rc.Branch = "outer"

	require.NoError(t, par.Run(rc))
	assert.Equal(t, "outer.par.weather_agent", child.receivedCtx().Branch)
}

func TestParallelAgent_RunsConcurrently(t *testing.T) {
	var inflight, peak atomic.Int32
	release := make(chan struct{})

	block := func(rc *core.RunContext) error {
		n := inflight.Add(1)
		defer inflight.Add(-1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		if n == 2 {
			close(release)
		}
		select {
		case <-release:
			return nil
		case <-time.After(time.Second):
			return errors.New("sibling never started")
		}
	}

	par := NewParallelAgent("par", 0, newTestChildAgent("a", block), newTestChildAgent("b", block))

	rc, _ := newTestRunContext(t)
	require.NoError(t, par.Run(rc))
	assert.Equal(t, int32(2), peak.Load())
}

func TestParallelAgent_ErrorAfterAllComplete(t *testing.T) {
	boom := errors.New("boom")
	var finished atomic.Bool

	failing := newTestChildAgent("failing", func(*core.RunContext) error { return boom })
	slow := newTestChildAgent("slow", func(*core.RunContext) error {
		time.Sleep(20 * time.Millisecond)
		finished.Store(true)
		return nil
	})

	rc, _ := newTestRunContext(t)
	err := NewParallelAgent("par", 0, failing, slow).Run(rc)

	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "parallel execution failed for agent failing")
	assert.True(t, finished.Load())
}

func TestParallelAgent_Timeout(t *testing.T) {
	slow := newTestChildAgent("slow", func(rc *core.RunContext) error {
		select {
		case <-rc.Done():
			return rc.Err()
		case <-time.After(time.Second):
			return nil
		}
	})

	rc, _ := newTestRunContext(t)
	err := NewParallelAgent("par", 10*time.Millisecond, slow).Run(rc)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestParallelAgent_SharedStateWrites(t *testing.T) {
	writer := func(key string) func(*core.RunContext) error {
		return func(rc *core.RunContext) error {
			rc.SetState(key, true)
			return rc.EmitEvent(core.NewEvent(rc.RunID, rc.Agent.Name))
		}
	}

	par := NewParallelAgent("par", 0,
		newTestChildAgent("weather_agent", writer("weather_done")),
		newTestChildAgent("time_agent", writer("time_done")),
	)

	rc, rec := newTestRunContext(t)
	require.NoError(t, par.Run(rc))

	state := rec.state(t)
	assert.Equal(t, true, state["weather_done"])
	assert.Equal(t, true, state["time_done"])
}

func TestParallelAgent_ConcurrentStateUpdates(t *testing.T) {
	// both branches stage their updates before either one emits
	var staged sync.WaitGroup
	staged.Add(2)

	visit := func(rc *core.RunContext) error {
		rc.UpdateState("visits", func(current any, _ bool) any {
			n, _ := current.(int)
			return n + 1
		})
		rc.UpdateState("visitors", func(current any, _ bool) any {
			list, _ := current.([]any)
			return append(list, rc.Agent.Name)
		})

		if v, _ := rc.GetState("visits"); v != 1 {
			return fmt.Errorf("staged visits = %v", v)
		}

		staged.Done()
		staged.Wait()

		return rc.EmitEvent(core.NewEvent(rc.RunID, rc.Agent.Name))
	}

	par := NewParallelAgent("par", 0,
		newTestChildAgent("weather_agent", visit),
		newTestChildAgent("time_agent", visit),
	)

	rc, rec := newTestRunContext(t)
	require.NoError(t, par.Run(rc))

	state := rec.state(t)
	assert.Equal(t, 2, state["visits"])
	assert.ElementsMatch(t, []any{"weather_agent", "time_agent"}, state["visitors"])
}
