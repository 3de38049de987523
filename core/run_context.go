package core

import (
	"context"
	"fmt"

	"github.com/hupe1980/weathermesh/logging"
)

// Emitter delivers an event to the runner. It returns once the event has
// been persisted, so state changes carried by the event are visible to the
// next session read.
type Emitter func(Event) error

// RunContext carries execution state & helpers for an agent run.
// It encapsulates the per-invocation execution scope passed to an Agent's
// Run method. It aggregates:
//   - The ambient cancellation Context
//   - Identifiers (SessionID, RunID, Agent info)
//   - Input user Content
//   - The emitter that persists events
//   - A working Session snapshot and a pending StateDelta to commit
//   - Branch label for hierarchical flows
//
// State mutations performed via SetState accumulate in StateDelta until
// EmitEvent attaches them to an event. Child contexts get their own delta
// buffer while sharing the emitter, store and limiter.
type RunContext struct {
	Context          context.Context
	SessionID, RunID string
	Agent            AgentInfo
	UserContent      Content
	SessionStore     SessionStore
	Session          *Session
	StateDelta       map[string]any
	Branch           string
	Limiter          *ModelLimiter

	emit    Emitter
	updates []stateUpdate

	*loggerAdapter
}

// NewRunContext constructs a RunContext with an empty state delta.
func NewRunContext(
	ctx context.Context,
	sessionID, runID string,
	agent AgentInfo,
	userContent Content,
	sess *Session,
	sessionStore SessionStore,
	limiter *ModelLimiter,
	emit Emitter,
	logger logging.Logger,
) *RunContext {
	if limiter == nil {
		limiter = NewModelLimiter(0)
	}

	return &RunContext{
		Context:       ctx,
		SessionID:     sessionID,
		RunID:         runID,
		Agent:         agent,
		UserContent:   userContent,
		SessionStore:  sessionStore,
		Session:       sess,
		StateDelta:    map[string]any{},
		Limiter:       limiter,
		emit:          emit,
		loggerAdapter: newLoggerAdapter(logger),
	}
}

// Done returns a channel closed when the underlying context is cancelled.
func (ic *RunContext) Done() <-chan struct{} { return ic.Context.Done() }

// Err returns the cancellation error (if any) from the underlying context.
func (ic *RunContext) Err() error { return ic.Context.Err() }

// GetState returns a staged (delta) value if present, else the persisted session value.
func (ic *RunContext) GetState(k string) (any, bool) {
	if v, ok := ic.StateDelta[k]; ok {
		return v, true
	}

	if ic.Session != nil {
		return ic.Session.GetState(k)
	}

	return nil, false
}

// SetState stages a state mutation in the in-memory delta buffer.
func (ic *RunContext) SetState(k string, v any) {
	ic.StateDelta[k] = v
	ic.updates = withoutKey(ic.updates, k)
}

// UpdateState stages a read-modify-write of k. The result is visible to
// GetState at once; when the next event is persisted the runner recomputes
// it from the stored value, so concurrent branches do not lose each
// other's changes.
func (ic *RunContext) UpdateState(k string, fn StateUpdate) {
	ic.updates = stageUpdate(ic.StateDelta, ic.updates, k, fn, ic.GetState)
}

// State returns the session state overlaid with the staged delta.
func (ic *RunContext) State() map[string]any {
	state := map[string]any{}
	if ic.Session != nil {
		state = ic.Session.StateSnapshot()
	}
	for k, v := range ic.StateDelta {
		state[k] = DeepCopy(v)
	}
	return state
}

// RefreshSession reloads the session snapshot from the SessionStore.
func (ic *RunContext) RefreshSession() error {
	if ic.SessionStore == nil {
		return fmt.Errorf("session store not configured")
	}

	s, err := ic.SessionStore.Get(ic.SessionID)
	if err != nil {
		return err
	}

	ic.Session = s

	return nil
}

// GetSessionHistory returns all historical events for the session.
func (ic *RunContext) GetSessionHistory() []Event {
	if ic.Session == nil {
		return []Event{}
	}

	return ic.Session.GetEvents()
}

// GetAgentName returns the logical agent name for this invocation.
func (ic *RunContext) GetAgentName() string { return ic.Agent.Name }

// GetAgentType returns a categorization label for the agent.
func (ic *RunContext) GetAgentType() string { return ic.Agent.Type }

// Clone returns a shallow copy with a deep-copied delta.
func (ic *RunContext) Clone() *RunContext {
	c := *ic
	c.StateDelta = cloneDelta(ic.StateDelta)
	c.updates = append([]stateUpdate(nil), ic.updates...)
	return &c
}

// WithBranch clones the context and sets the Branch label.
func (ic *RunContext) WithBranch(b string) *RunContext {
	c := ic.Clone()
	c.Branch = b
	return c
}

// NewChildContext derives a context for a nested agent. The child starts with
// a fresh delta buffer; an empty branch keeps the parent's branch.
func (ic *RunContext) NewChildContext(agent AgentInfo, branch string) *RunContext {
	c := *ic
	c.Agent = agent
	c.StateDelta = map[string]any{}
	c.updates = nil
	if branch != "" {
		c.Branch = branch
	}
	return &c
}

// EmitEvent merges the pending StateDelta into the event, stamps invocation
// id and branch, and hands it to the emitter. On success the delta is
// cleared and also applied to the local session snapshot. Partial events
// never carry staged state.
func (ic *RunContext) EmitEvent(ev Event) error {
	if ic.emit == nil {
		return fmt.Errorf("emitter not configured")
	}

	if err := ic.Context.Err(); err != nil {
		return err
	}

	// partial events are not persisted, so staged state waits for the final one
	if !ev.Partial {
		ev.addStateUpdates(ev.Actions.StateDelta, ic.updates)
		ev.mergeStateDelta(ic.StateDelta)
	}

	if ev.InvocationID == "" {
		ev.InvocationID = ic.RunID
	}

	if ev.Branch == "" {
		ev.Branch = ic.Branch
	}

	if err := ic.emit(ev); err != nil {
		return err
	}

	if ev.Partial {
		return nil
	}

	if ic.Session != nil && len(ev.Actions.StateDelta) > 0 {
		ic.Session.ApplyStateDelta(ev.Actions.StateDelta)
	}

	if len(ic.StateDelta) > 0 {
		ic.StateDelta = map[string]any{}
	}
	ic.updates = nil

	return nil
}

// WithAgent clones the context for another agent, keeping the branch.
func (ic *RunContext) WithAgent(agent AgentInfo) *RunContext {
	c := ic.Clone()
	c.Agent = agent
	return c
}
