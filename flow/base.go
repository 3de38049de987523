package flow

import (
	"errors"
	"fmt"
	"sort"

	"github.com/hupe1980/weathermesh/core"
	"github.com/hupe1980/weathermesh/model"
)

// Error codes stamped on events emitted for failed model turns.
const (
	ErrorCodeModel      = "model_error"
	ErrorCodeCallLimit  = "model_call_limit"
	ErrorCodeProcessing = "processing_error"
)

// BaseFlow is a minimal single‑agent flow implementation that supports a
// request -> LLM -> (optional tool loop) cycle with pluggable pre/post processors.
type BaseFlow struct {
	agent              FlowAgent
	executor           FunctionExecutor
	requestProcessors  []RequestProcessor
	responseProcessors []ResponseProcessor
}

// NewBaseFlow creates a new basic single-agent flow. A nil executor falls
// back to an order preserving parallel executor.
func NewBaseFlow(agent FlowAgent, executor FunctionExecutor) *BaseFlow {
	if executor == nil {
		executor = NewParallelFunctionExecutor(FunctionExecutorConfig{PreserveOrder: true})
	}

	return &BaseFlow{
		agent:              agent,
		executor:           executor,
		requestProcessors:  []RequestProcessor{},
		responseProcessors: []ResponseProcessor{},
	}
}

// AddRequestProcessor appends a request processor; order of registration defines execution order.
func (f *BaseFlow) AddRequestProcessor(processor RequestProcessor) {
	f.requestProcessors = append(f.requestProcessors, processor)
}

// AddResponseProcessor appends a response processor executed on each final model response.
func (f *BaseFlow) AddResponseProcessor(processor ResponseProcessor) {
	f.responseProcessors = append(f.responseProcessors, processor)
}

// Execute runs model turns until the model answers without requesting
// tools, or a tool asks to skip summarization.
func (f *BaseFlow) Execute(runCtx *core.RunContext) error {
	for {
		last, err := f.runOnce(runCtx)
		if err != nil {
			f.emitError(runCtx, err)
			return err
		}

		if last == nil || last.IsFinalResponse() {
			return nil
		}

		if len(last.GetFunctionResponses()) == 0 {
			return nil
		}
	}
}

// emitError records a failed turn in the session. The error itself is
// returned to the caller, so emit failures are only logged.
func (f *BaseFlow) emitError(runCtx *core.RunContext, err error) {
	if runCtx.Err() != nil {
		return
	}

	code := ErrorCodeModel
	switch {
	case errors.Is(err, core.ErrModelCallLimit):
		code = ErrorCodeCallLimit
	case errors.As(err, new(*processingError)):
		code = ErrorCodeProcessing
	}

	ev := core.NewEvent(runCtx.RunID, f.agent.GetName())
	ev.ErrorCode = code
	ev.ErrorMessage = err.Error()

	if emitErr := runCtx.EmitEvent(ev); emitErr != nil {
		runCtx.LogWarn("flow.error.emit_failed", "agent", f.agent.GetName(), "error", emitErr)
	}
}

// processingError marks failures of processors and callbacks.
type processingError struct {
	stage string
	err   error
}

func (e *processingError) Error() string { return fmt.Sprintf("%s: %v", e.stage, e.err) }

func (e *processingError) Unwrap() error { return e.err }

// runOnce performs one model turn (including any tool executions) and returns
// the last emitted non-partial Event. A nil event means the model produced
// no final response.
func (f *BaseFlow) runOnce(runCtx *core.RunContext) (*core.Event, error) {
	if err := runCtx.Limiter.Increment(); err != nil {
		return nil, err
	}

	// the previous turn's events were persisted by the runner; pick them up
	if runCtx.SessionStore != nil {
		if err := runCtx.RefreshSession(); err != nil {
			return nil, fmt.Errorf("refresh session: %w", err)
		}
	}

	req := &model.Request{Stream: f.agent.IsStreamingEnabled()}

	for _, processor := range f.requestProcessors {
		if err := processor.ProcessRequest(runCtx, req, f.agent); err != nil {
			return nil, &processingError{stage: "request processor " + processor.Name(), err: err}
		}
	}

	req.Tools = f.toolDefinitions()

	cbCtx := core.NewCallbackContext(runCtx)

	if cb := f.agent.BeforeModel(); cb != nil {
		if err := cb(cbCtx, req); err != nil {
			return nil, &processingError{stage: "before model callback", err: err}
		}
	}

	llm := f.agent.GetLLM()

	runCtx.LogDebug("flow.model.request",
		"agent", f.agent.GetName(),
		"model", llm.Info().Name,
		"contents", len(req.Contents),
		"tools", len(req.Tools),
	)

	respCh, errCh := llm.Generate(runCtx.Context, *req)

	var (
		last    *core.Event
		loopErr error
	)

	for resp := range respCh {
		if loopErr != nil {
			continue // drain so the provider goroutine can finish
		}

		ev, err := f.handleResponse(runCtx, cbCtx, resp)
		if err != nil {
			loopErr = err
			continue
		}

		if ev != nil {
			last = ev
		}
	}

	if err := <-errCh; err != nil {
		return nil, fmt.Errorf("model %s: %w", llm.Info().Name, err)
	}

	if loopErr != nil {
		return nil, loopErr
	}

	if last == nil {
		return nil, nil
	}

	calls := last.GetFunctionCalls()
	if len(calls) == 0 {
		return last, nil
	}

	var (
		lastResp core.Event
		emitted  bool
	)

	emit := func(ev core.Event) error {
		if err := runCtx.EmitEvent(ev); err != nil {
			return err
		}
		lastResp, emitted = ev, true
		return nil
	}

	if err := f.executor.Execute(runCtx, f.agent, f.agent.GetTools(), calls, emit); err != nil {
		return nil, fmt.Errorf("function execution: %w", err)
	}

	if !emitted {
		return last, nil
	}

	return &lastResp, nil
}

// handleResponse emits one model response. Final responses pass through the
// after-model callback and the response processors first. It returns the
// emitted event for final responses and nil for partial ones.
func (f *BaseFlow) handleResponse(runCtx *core.RunContext, cbCtx *core.CallbackContext, resp model.Response) (*core.Event, error) {
	if resp.Partial {
		ev := core.NewEvent(runCtx.RunID, f.agent.GetName())
		content := resp.Content
		ev.Content = &content
		ev.Partial = true

		return nil, runCtx.EmitEvent(ev)
	}

	if cb := f.agent.AfterModel(); cb != nil {
		if err := cb(cbCtx, &resp); err != nil {
			return nil, &processingError{stage: "after model callback", err: err}
		}
	}

	for _, processor := range f.responseProcessors {
		if err := processor.ProcessResponse(runCtx, &resp, f.agent); err != nil {
			return nil, &processingError{stage: "response processor " + processor.Name(), err: err}
		}
	}

	content := core.Content{Role: resp.Content.Role, Parts: assignCallIDs(resp.Content.Parts)}
	if content.Role == "" {
		content.Role = "assistant"
	}

	ev := core.NewEvent(runCtx.RunID, f.agent.GetName())
	ev.Content = &content
	ev.TurnComplete = len(ev.GetFunctionCalls()) == 0

	if resp.Usage != nil {
		runCtx.LogDebug("flow.model.usage",
			"agent", f.agent.GetName(),
			"prompt_tokens", resp.Usage.PromptTokens,
			"completion_tokens", resp.Usage.CompletionTokens,
		)
	}

	if err := runCtx.EmitEvent(ev); err != nil {
		return nil, err
	}

	return &ev, nil
}

// assignCallIDs copies parts, giving function calls without an id a fresh one
// so responses can be correlated.
func assignCallIDs(parts []core.Part) []core.Part {
	out := make([]core.Part, len(parts))

	for i, part := range parts {
		if fc, ok := part.(core.FunctionCallPart); ok && fc.FunctionCall.ID == "" {
			fc.FunctionCall.ID = core.NewID()
			part = fc
		}
		out[i] = part
	}

	return out
}

// toolDefinitions returns the agent tools sorted by name so requests are stable.
func (f *BaseFlow) toolDefinitions() []model.ToolDefinition {
	tools := f.agent.GetTools()
	if len(tools) == 0 {
		return nil
	}

	names := make([]string, 0, len(tools))
	for name := range tools {
		names = append(names, name)
	}

	sort.Strings(names)

	defs := make([]model.ToolDefinition, 0, len(names))
	for _, name := range names {
		t := tools[name]
		defs = append(defs, model.ToolDefinition{
			Type: "function",
			Function: model.FunctionDefinition{
				Name:        t.Name(),
				Description: t.Description(),
				Parameters:  t.Parameters(),
			},
		})
	}

	return defs
}
