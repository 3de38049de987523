package flow

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/weathermesh/core"
	"github.com/hupe1980/weathermesh/tool"
)

// FunctionExecutor executes a batch of function/tool calls possibly in parallel and emits
// function response events through the provided emit callback. Implementations must:
//   - Respect runCtx.Context cancellation
//   - Never panic (recover internally and turn the panic into an error response)
//   - Emit exactly one FunctionResponse event per incoming FunctionCall
//   - Apply ToolContext accumulated actions to emitted events
//
// The returned error is an emit failure; tool failures travel inside the
// response events.
type FunctionExecutor interface {
	Execute(runCtx *core.RunContext, agent FlowAgent, toolRegistry map[string]tool.Tool, fnCalls []core.FunctionCall, emit func(core.Event) error) error
}

// FunctionExecutorConfig configures the default parallel executor.
type FunctionExecutorConfig struct {
	MaxParallel    int  // 0 or <1 => no explicit limit (len(fnCalls))
	PreserveOrder  bool // if true, buffer results and emit in original order
	LogStartEvents bool // log a start line per function
}

// parallelFunctionExecutor is the default implementation.
type parallelFunctionExecutor struct {
	cfg FunctionExecutorConfig
}

// NewParallelFunctionExecutor constructs a new executor with the given config.
func NewParallelFunctionExecutor(cfg FunctionExecutorConfig) FunctionExecutor {
	return &parallelFunctionExecutor{cfg: cfg}
}

func (e *parallelFunctionExecutor) Execute(
	runCtx *core.RunContext,
	agent FlowAgent,
	toolRegistry map[string]tool.Tool,
	fnCalls []core.FunctionCall,
	emit func(core.Event) error,
) error {
	n := len(fnCalls)
	if n == 0 {
		return nil
	}

	maxPar := e.cfg.MaxParallel
	if maxPar <= 0 || maxPar > n {
		maxPar = n
	}

	var mu sync.Mutex // serializes emit; RunContext is not safe for concurrent use
	safeEmit := func(ev core.Event) error {
		mu.Lock()
		defer mu.Unlock()
		return emit(ev)
	}

	results := make([]core.Event, n) // used only if PreserveOrder

	var g errgroup.Group
	g.SetLimit(maxPar)

	batchStart := time.Now()
	for i, fc := range fnCalls {
		i, fc := i, fc
		g.Go(func() error {
			if err := runCtx.Context.Err(); err != nil {
				return err
			}

			respEv := e.executeOne(runCtx, agent, toolRegistry, fc)
			if e.cfg.PreserveOrder {
				results[i] = respEv
				return nil
			}

			return safeEmit(respEv)
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	if e.cfg.PreserveOrder {
		for _, ev := range results {
			if err := safeEmit(ev); err != nil {
				return err
			}
		}
	}

	runCtx.LogDebug(
		"agent.functions.batch.complete",
		"agent", agent.GetName(),
		"count", n,
		"parallelism", maxPar,
		"preserve_order", e.cfg.PreserveOrder,
		"duration_ms", time.Since(batchStart).Milliseconds(),
	)

	return nil
}

// executeOne runs a single call and builds its response event.
func (e *parallelFunctionExecutor) executeOne(
	runCtx *core.RunContext,
	agent FlowAgent,
	toolRegistry map[string]tool.Tool,
	fc core.FunctionCall,
) core.Event {
	toolCtx := core.NewToolContext(runCtx, fc.ID)

	if timeout := agent.ToolTimeout(); timeout > 0 {
		ctx, cancel := context.WithTimeout(runCtx.Context, timeout)
		defer cancel()
		toolCtx = toolCtx.WithContext(ctx)
	}

	if e.cfg.LogStartEvents {
		runCtx.LogInfo("agent.function.start", "agent", agent.GetName(), "function", fc.Name, "function_call_id", fc.ID)
	}

	start := time.Now()

	var (
		result any
		err    error
	)

	func() {
		defer func() {
			if r := recover(); r != nil {
				err = panicError(r)
				runCtx.LogError("agent.function.panic", "agent", agent.GetName(), "function", fc.Name, "recover", fmt.Sprint(r))
			}
		}()
		result, err = executeTool(toolRegistry, toolCtx, fc.Name, fc.Arguments)
	}()

	runCtx.LogInfo(
		"agent.function.executed",
		"agent", agent.GetName(),
		"function", fc.Name,
		"duration_ms", time.Since(start).Milliseconds(),
		"error", err != nil,
	)

	if err != nil {
		runCtx.LogWarn("tool.call.error", "agent", agent.GetName(), "tool", fc.Name, "error", err)
	}

	respEv := core.NewFunctionResponseEvent(agent.GetName(), fc.ID, fc.Name, result, err)
	toolCtx.ApplyActions(&respEv)

	return respEv
}

// panicError converts a recovered panic value to an error carrying the stack.
func panicError(r any) error { return &panicErr{val: r, stack: debug.Stack()} }

type panicErr struct {
	val   any
	stack []byte
}

func (p *panicErr) Error() string { return fmt.Sprintf("panic recovered: %v", p.val) }

// executeTool centralizes tool lookup & execution using agent tool registry.
func executeTool(toolRegistry map[string]tool.Tool, toolCtx *core.ToolContext, toolName, args string) (any, error) {
	impl, ok := toolRegistry[toolName]
	if !ok {
		return nil, fmt.Errorf("tool %s not found", toolName)
	}

	argMap := map[string]any{}
	if args != "" {
		if err := json.Unmarshal([]byte(args), &argMap); err != nil {
			return nil, fmt.Errorf("failed to unmarshal args: %w", err)
		}
	}

	return impl.Call(toolCtx, argMap)
}
