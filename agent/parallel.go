package agent

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/weathermesh/core"
)

// ParallelAgent coordinates the concurrent execution of multiple child agents.
//
// Each child runs in its own branch ("<branch>.<parallel>.<child>"), so it
// sees the shared history up to the fork but never a sibling's events.
// State written by any child lands in the shared session.
//
// Key features:
//   - Concurrent execution via errgroup
//   - Branch isolation of conversation history
//   - Optional execution timeout
//   - All children run to completion; the first error is reported
type ParallelAgent struct {
	BaseAgent               // Embedded base agent functionality
	children  []core.Agent  // Child agents to execute in parallel
	timeout   time.Duration // Maximum execution time for all children (0 = none)
}

// NewParallelAgent creates a new parallel execution coordinator.
func NewParallelAgent(name string, timeout time.Duration, children ...core.Agent) *ParallelAgent {
	p := &ParallelAgent{
		BaseAgent: NewBaseAgent(name),
		children:  children,
		timeout:   timeout,
	}
	p.bind(p, children...)

	return p
}

// createBranchCtxForSubAgent derives the isolated context of one child.
func (p *ParallelAgent) createBranchCtxForSubAgent(runCtx *core.RunContext, ctx context.Context, subAgent core.Agent) *core.RunContext {
	branch := buildBranchPath(runCtx.Branch, fmt.Sprintf("%s.%s", p.Name(), subAgent.Name()))

	branchCtx := runCtx.NewChildContext(core.AgentInfo{Name: subAgent.Name()}, branch)
	branchCtx.Context = ctx

	return branchCtx
}

// Run implements core.Agent launching all children concurrently. The first
// error encountered (after all complete) is returned; successful children
// continue even if siblings fail.
func (p *ParallelAgent) Run(runCtx *core.RunContext) error {
	runCtx = enter(runCtx, p.Name(), "parallel")

	runCtx.LogInfo("agent.run.start", "agent", p.Name(), "children", len(p.children))

	if err := p.RunBeforeAgent(runCtx); err != nil {
		return err
	}

	ctx := runCtx.Context
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	var g errgroup.Group

	for _, child := range p.children {
		child := child
		branchCtx := p.createBranchCtxForSubAgent(runCtx, ctx, child)

		g.Go(func() error {
			if err := child.Run(branchCtx); err != nil {
				return fmt.Errorf("parallel execution failed for agent %s: %w", child.Name(), err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		runCtx.LogError("agent.run.error", "agent", p.Name(), "error", err)
		return err
	}

	runCtx.LogInfo("agent.run.complete", "agent", p.Name())

	return nil
}
