package agent

import (
	"fmt"

	"github.com/hupe1980/weathermesh/core"
)

// SequentialAgent coordinates the execution of multiple child agents in sequence.
//
// Children share the session: every event a child emits is persisted before
// the next child starts, so later agents see earlier outputs in their
// history and in state.
//
// SequentialAgent is ideal for:
//   - Multi-step processing pipelines (validate, then answer)
//   - Workflows requiring specific execution order
//   - Scenarios where agent outputs build upon each other
type SequentialAgent struct {
	BaseAgent              // Embedded base agent functionality
	children  []core.Agent // Child agents to execute in sequence
}

// NewSequentialAgent creates a new sequential execution coordinator.
// The agent executes the provided child agents in the order they are given.
func NewSequentialAgent(name string, children ...core.Agent) *SequentialAgent {
	s := &SequentialAgent{
		BaseAgent: NewBaseAgent(name),
		children:  children,
	}
	s.bind(s, children...)

	return s
}

// Run implements core.Agent. It executes each child agent in order;
// errors stop further processing immediately.
func (s *SequentialAgent) Run(runCtx *core.RunContext) error {
	runCtx = enter(runCtx, s.Name(), "sequential")

	runCtx.LogInfo("agent.run.start", "agent", s.Name(), "children", len(s.children))

	if err := s.RunBeforeAgent(runCtx); err != nil {
		return err
	}

	for _, child := range s.children {
		if err := runCtx.Err(); err != nil {
			return err
		}

		if err := child.Run(runCtx); err != nil {
			return fmt.Errorf("sequential execution failed at agent %s: %w", child.Name(), err)
		}
	}

	runCtx.LogInfo("agent.run.complete", "agent", s.Name())

	return nil
}
