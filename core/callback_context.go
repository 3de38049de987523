package core

import (
	"context"

	"github.com/hupe1980/weathermesh/logging"
)

// CallbackContext is handed to before-agent, before-model and after-model
// callbacks. State written through it is staged on the owning RunContext
// and persisted with the next event the agent emits.
type CallbackContext struct {
	runCtx *RunContext

	*loggerAdapter
}

// NewCallbackContext wraps a RunContext for callback use.
func NewCallbackContext(runCtx *RunContext) *CallbackContext {
	return &CallbackContext{
		runCtx:        runCtx,
		loggerAdapter: newLoggerAdapter(runCtx.Logger()),
	}
}

// Context returns the cancellation context of the run.
func (cc *CallbackContext) Context() context.Context { return cc.runCtx.Context }

// AgentName returns the name of the agent the callback runs for.
func (cc *CallbackContext) AgentName() string { return cc.runCtx.Agent.Name }

// InvocationID returns the run identifier.
func (cc *CallbackContext) InvocationID() string { return cc.runCtx.RunID }

// SessionID returns the session identifier.
func (cc *CallbackContext) SessionID() string { return cc.runCtx.SessionID }

// Branch returns the branch of the agent.
func (cc *CallbackContext) Branch() string { return cc.runCtx.Branch }

// UserContent returns the user message that started the run.
func (cc *CallbackContext) UserContent() Content { return cc.runCtx.UserContent }

// GetState returns the staged value for k, falling back to session state.
func (cc *CallbackContext) GetState(k string) (any, bool) { return cc.runCtx.GetState(k) }

// SetState stages a state change on the run context.
func (cc *CallbackContext) SetState(k string, v any) { cc.runCtx.SetState(k, v) }

// UpdateState stages a read-modify-write of k on the run context.
func (cc *CallbackContext) UpdateState(k string, fn StateUpdate) { cc.runCtx.UpdateState(k, fn) }

// State returns a copy of the visible state (session plus staged delta).
func (cc *CallbackContext) State() map[string]any { return cc.runCtx.State() }

// HasPendingState reports whether the callback staged any state.
func (cc *CallbackContext) HasPendingState() bool { return len(cc.runCtx.StateDelta) > 0 }

// Logger returns the run logger.
func (cc *CallbackContext) Logger() logging.Logger { return cc.loggerAdapter.Logger() }
