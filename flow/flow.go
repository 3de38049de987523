// Package flow provides the model turn loop that drives a single model agent.
//
// A flow builds a model request through a chain of request processors,
// calls the model, emits the resulting events and executes requested
// function calls until the model produces a final answer. Processors keep
// the pipeline modular: instructions, conversation history and output
// handling are independent steps.
package flow

import (
	"time"

	"github.com/hupe1980/weathermesh/core"
	"github.com/hupe1980/weathermesh/model"
	"github.com/hupe1980/weathermesh/tool"
)

// Flow defines the interface for agent execution flows.
//
// Execute runs the flow to completion. Events are emitted through the run
// context; the returned error is terminal for the run.
type Flow interface {
	Execute(runCtx *core.RunContext) error
}

// BeforeModelCallback runs right before a model call. It may rewrite the
// request in place or stage state through the callback context.
type BeforeModelCallback func(cbCtx *core.CallbackContext, req *model.Request) error

// AfterModelCallback runs on every final (non-partial) model response before
// it is emitted. It may rewrite the response in place.
type AfterModelCallback func(cbCtx *core.CallbackContext, resp *model.Response) error

// FlowAgent defines the interface that agents must implement to work with flows.
//
// This interface provides flows with access to agent capabilities without
// exposing the full agent implementation details.
type FlowAgent interface {
	// GetName returns the agent's display name.
	GetName() string

	// GetLLM returns the language model instance.
	GetLLM() model.Model

	// ResolveInstructions renders the system instruction for the current state.
	ResolveInstructions(runCtx *core.RunContext) (string, error)

	// GetTools returns the registered tools for function calling.
	GetTools() map[string]tool.Tool

	// IsStreamingEnabled returns whether streaming responses are enabled.
	IsStreamingEnabled() bool

	// GetOutputKey returns the session state key for saving responses.
	GetOutputKey() string

	// MaxHistoryMessages returns the maximum number of history contents to
	// send (0 means unlimited).
	MaxHistoryMessages() int

	// ToolTimeout bounds a single tool call (0 means no timeout).
	ToolTimeout() time.Duration

	// BeforeModel returns the optional before-model callback.
	BeforeModel() BeforeModelCallback

	// AfterModel returns the optional after-model callback.
	AfterModel() AfterModelCallback
}

// RequestProcessor processes the request before sending it to the LLM.
type RequestProcessor interface {
	// Name returns the processor's identifier.
	Name() string
	// ProcessRequest modifies the request before LLM execution.
	ProcessRequest(runCtx *core.RunContext, req *model.Request, agent FlowAgent) error
}

// ResponseProcessor processes final responses after the after-model callback.
type ResponseProcessor interface {
	// Name returns the processor's identifier.
	Name() string
	// ProcessResponse inspects or rewrites a final model response.
	ProcessResponse(runCtx *core.RunContext, resp *model.Response, agent FlowAgent) error
}
