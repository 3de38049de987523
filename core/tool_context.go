package core

import (
	"context"
	"fmt"

	"github.com/hupe1980/weathermesh/logging"
)

// ToolContext provides a constrained surface for tool / function
// implementations invoked by an agent. State written through it is
// accumulated in EventActions and attached to the function response event;
// the underlying session is only mutated once that event is persisted.
type ToolContext struct {
	ctx            context.Context
	runCtx         *RunContext
	functionCallID string
	agentInfo      AgentInfo
	eventActions   EventActions
	updates        []stateUpdate

	*loggerAdapter
}

// NewToolContext constructs a tool context bound to a parent RunContext
// and unique functionCallID.
func NewToolContext(runCtx *RunContext, functionCallID string) *ToolContext {
	return &ToolContext{
		ctx:            runCtx.Context,
		runCtx:         runCtx,
		functionCallID: functionCallID,
		agentInfo:      runCtx.Agent,
		eventActions:   EventActions{},
		loggerAdapter:  newLoggerAdapter(runCtx.Logger()),
	}
}

// WithContext returns the tool context bound to ctx (e.g. a per-call timeout).
func (tc *ToolContext) WithContext(ctx context.Context) *ToolContext {
	tc.ctx = ctx
	return tc
}

// Context returns the context associated with the tool invocation.
func (tc *ToolContext) Context() context.Context { return tc.ctx }

// SessionID returns the session ID associated with the tool invocation.
func (tc *ToolContext) SessionID() string { return tc.runCtx.SessionID }

// RunID returns the run ID associated with the tool invocation.
func (tc *ToolContext) RunID() string { return tc.runCtx.RunID }

// Logger returns the logger associated with the tool invocation.
func (tc *ToolContext) Logger() logging.Logger { return tc.loggerAdapter.Logger() }

// FunctionCallID returns the function call ID associated with the tool invocation.
func (tc *ToolContext) FunctionCallID() string { return tc.functionCallID }

// AgentName returns the agent name associated with the tool invocation.
func (tc *ToolContext) AgentName() string { return tc.agentInfo.Name }

// Branch returns the branch of the calling agent.
func (tc *ToolContext) Branch() string { return tc.runCtx.Branch }

// GetState retrieves the value for key, preferring values staged by this call.
func (tc *ToolContext) GetState(k string) (any, bool) {
	if v, ok := tc.eventActions.StateDelta[k]; ok {
		return v, true
	}
	return tc.runCtx.GetState(k)
}

// SetState stages a state mutation for the function response event.
func (tc *ToolContext) SetState(k string, v any) {
	if tc.eventActions.StateDelta == nil {
		tc.eventActions.StateDelta = map[string]any{}
	}

	tc.eventActions.StateDelta[k] = v
	tc.updates = withoutKey(tc.updates, k)
}

// UpdateState stages a read-modify-write of k for the function response
// event. See RunContext.UpdateState.
func (tc *ToolContext) UpdateState(k string, fn StateUpdate) {
	if tc.eventActions.StateDelta == nil {
		tc.eventActions.StateDelta = map[string]any{}
	}

	tc.updates = stageUpdate(tc.eventActions.StateDelta, tc.updates, k, fn, tc.GetState)
}

// Actions returns the event actions accumulated in the tool context.
func (tc *ToolContext) Actions() *EventActions { return &tc.eventActions }

// SkipSummarization requests that the function response ends the agent turn.
func (tc *ToolContext) SkipSummarization() {
	b := true
	tc.eventActions.SkipSummarization = &b
}

// GetSessionHistory returns conversation history (filtered) for context.
func (tc *ToolContext) GetSessionHistory() []Event {
	if tc.runCtx.Session == nil {
		return nil
	}

	return tc.runCtx.Session.GetConversationHistory()
}

// Validate performs a structural sanity check of the context.
func (tc *ToolContext) Validate() error {
	if tc.runCtx == nil || tc.runCtx.SessionID == "" || tc.functionCallID == "" {
		return fmt.Errorf("invalid ToolContext")
	}

	return nil
}

// ApplyActions merges accumulated EventActions into the provided event.
func (tc *ToolContext) ApplyActions(ev *Event) {
	ev.addStateUpdates(ev.Actions.StateDelta, tc.updates)
	ev.mergeStateDelta(tc.eventActions.StateDelta)

	if tc.eventActions.SkipSummarization != nil {
		ev.Actions.SkipSummarization = tc.eventActions.SkipSummarization
	}
}
