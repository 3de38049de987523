package agent

import (
	"fmt"
	"sync"

	"github.com/hupe1980/weathermesh/core"
	"github.com/hupe1980/weathermesh/flow"
)

// BeforeAgentCallback runs before an agent does any work. State staged
// through the callback context is persisted before the agent starts.
type BeforeAgentCallback func(cbCtx *core.CallbackContext) error

// BeforeModelCallback runs right before every model call of a ModelAgent.
type BeforeModelCallback = flow.BeforeModelCallback

// AfterModelCallback runs on every final model response of a ModelAgent.
type AfterModelCallback = flow.AfterModelCallback

// BaseAgent bundles hierarchy management, identity helpers and the
// before-agent hook. Embed it in concrete agent implementations and supply a
// Run method to satisfy the core.Agent interface. All exported methods are
// goroutine-safe unless otherwise documented.
type BaseAgent struct {
	name        string              // Human-readable name
	description string              // Detailed description of agent's purpose
	mu          sync.Mutex          // Protects concurrent access to agent state
	self        core.Agent          // Concrete agent embedding this base
	parent      core.Agent          // Parent agent in hierarchical structures
	subAgents   []core.Agent        // Child agents managed by this agent
	beforeAgent BeforeAgentCallback // Optional hook run at the start of Run
}

// NewBaseAgent constructs a BaseAgent with generated description (customizable via SetDescription).
func NewBaseAgent(name string) BaseAgent {
	return BaseAgent{
		name:        name,
		description: fmt.Sprintf("Agent %s", name),
	}
}

// Name returns the human-readable name for this agent.
func (b *BaseAgent) Name() string { return b.name }

// Description returns a detailed description of this agent's purpose.
func (b *BaseAgent) Description() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.description
}

// SetDescription updates the agent's description.
func (b *BaseAgent) SetDescription(desc string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.description = desc
}

// SetBeforeAgent installs the before-agent callback.
func (b *BaseAgent) SetBeforeAgent(cb BeforeAgentCallback) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.beforeAgent = cb
}

// RunBeforeAgent invokes the before-agent callback, if any. State staged by
// the callback is flushed through a state-only event authored by the agent,
// so it is persisted before the agent continues.
func (b *BaseAgent) RunBeforeAgent(runCtx *core.RunContext) error {
	b.mu.Lock()
	cb := b.beforeAgent
	b.mu.Unlock()

	if cb == nil {
		return nil
	}

	cbCtx := core.NewCallbackContext(runCtx)
	if err := cb(cbCtx); err != nil {
		return fmt.Errorf("before agent callback: %w", err)
	}

	if !cbCtx.HasPendingState() {
		return nil
	}

	ev := core.NewEvent(runCtx.RunID, b.name)
	if err := runCtx.EmitEvent(ev); err != nil {
		return fmt.Errorf("persist before agent state: %w", err)
	}

	return nil
}

// bind records the concrete agent embedding this base and adopts children.
// Constructors of composite agents call it once.
func (b *BaseAgent) bind(self core.Agent, children ...core.Agent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.self = self

	for _, child := range children {
		if setter, ok := child.(interface{ setParent(core.Agent) }); ok {
			setter.setParent(self)
		}
		b.subAgents = append(b.subAgents, child)
	}
}

// setParent sets the internal parent reference.
func (b *BaseAgent) setParent(p core.Agent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.parent = p
}

// Parent returns the current parent agent or nil if this agent is root.
func (b *BaseAgent) Parent() core.Agent {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.parent
}

// SubAgents returns a shallow copy of current child agents for safe iteration.
func (b *BaseAgent) SubAgents() []core.Agent {
	b.mu.Lock()
	defer b.mu.Unlock()
	result := make([]core.Agent, len(b.subAgents))
	copy(result, b.subAgents)
	return result
}

// FindAgent performs a depth-first search over the subtree rooted at this
// agent (including itself) returning the first agent whose Name matches.
// Returns nil if no match is found.
func (b *BaseAgent) FindAgent(name string) core.Agent {
	b.mu.Lock()
	self := b.self
	b.mu.Unlock()

	if b.name == name && self != nil {
		return self
	}

	for _, child := range b.SubAgents() {
		if found := child.FindAgent(name); found != nil {
			return found
		}
	}

	return nil
}

// enter derives the run context an agent works in: same branch, own agent
// info and a fresh state delta.
func enter(runCtx *core.RunContext, name, agentType string) *core.RunContext {
	return runCtx.NewChildContext(core.AgentInfo{Name: name, Type: agentType}, "")
}
