package agent

import (
	"fmt"
	"sort"
	"time"

	"github.com/hupe1980/weathermesh/core"
	"github.com/hupe1980/weathermesh/flow"
	"github.com/hupe1980/weathermesh/model"
	"github.com/hupe1980/weathermesh/tool"
)

// ModelAgentOptions configures a ModelAgent instance.
//
// Use functional options with NewModelAgent to override defaults.
type ModelAgentOptions struct {
	Instruction        Instruction
	Description        string
	EnableStreaming    bool
	ToolTimeout        time.Duration
	OutputKey          string
	MaxHistoryMessages int
	Tools              []tool.Tool
	BeforeAgent        BeforeAgentCallback
	BeforeModel        BeforeModelCallback
	AfterModel         AfterModelCallback
	FunctionExecutor   flow.FunctionExecutorConfig
}

// ModelAgent integrates with language models to provide intelligent text processing capabilities.
//
// This agent implementation supports:
//   - Natural language conversation through system prompts
//   - Function calling with registered tools
//   - Optional streaming of partial responses
//   - Session state management with output keys
//   - Template-based prompt customization against session state
//   - Before-agent, before-model and after-model callbacks
//
// ModelAgent embeds BaseAgent to inherit hierarchy management.
type ModelAgent struct {
	BaseAgent                                      // Embedded base agent functionality
	llm                model.Model                 // Language model interface
	instruction        Instruction                 // Instructions for the LLM
	tools              map[string]tool.Tool        // Registered tools for function calling
	enableStreaming    bool                        // Whether to stream responses
	toolTimeout        time.Duration               // Timeout for individual tool calls
	outputKey          string                      // Key for saving responses to session state
	maxHistoryMessages int                         // Maximum number of history contents sent to the model
	beforeModel        BeforeModelCallback         // Optional request hook
	afterModel         AfterModelCallback          // Optional response hook
	executorCfg        flow.FunctionExecutorConfig // Parallel tool execution settings
}

// NewModelAgent creates a new model-based agent with sensible defaults.
//
// The agent is initialized with:
//   - A generic "You are <name>" instruction
//   - Streaming disabled
//   - 15-second timeout for tool calls
//   - 20-message conversation history limit
//   - Order preserving tool execution
func NewModelAgent(name string, llm model.Model, optFns ...func(o *ModelAgentOptions)) *ModelAgent {
	opts := ModelAgentOptions{
		Instruction:        NewInstructionFromText(fmt.Sprintf("You are %s, a helpful AI assistant.", name)),
		ToolTimeout:        15 * time.Second,
		MaxHistoryMessages: 20,
		FunctionExecutor:   flow.FunctionExecutorConfig{PreserveOrder: true},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	a := &ModelAgent{
		BaseAgent:          NewBaseAgent(name),
		llm:                llm,
		instruction:        opts.Instruction,
		tools:              make(map[string]tool.Tool, len(opts.Tools)),
		enableStreaming:    opts.EnableStreaming,
		toolTimeout:        opts.ToolTimeout,
		outputKey:          opts.OutputKey,
		maxHistoryMessages: opts.MaxHistoryMessages,
		beforeModel:        opts.BeforeModel,
		afterModel:         opts.AfterModel,
		executorCfg:        opts.FunctionExecutor,
	}

	if opts.Description != "" {
		a.SetDescription(opts.Description)
	}

	a.SetBeforeAgent(opts.BeforeAgent)
	a.RegisterTools(opts.Tools...)
	a.bind(a)

	return a
}

// RegisterTool adds a function tool to the agent's capability set.
// Register tools before the agent is handed to a runner.
func (a *ModelAgent) RegisterTool(t tool.Tool) {
	a.tools[t.Name()] = t
}

// RegisterTools adds multiple tools to the agent's capability set.
func (a *ModelAgent) RegisterTools(tools ...tool.Tool) {
	for _, t := range tools {
		a.RegisterTool(t)
	}
}

// HasTool checks if a tool is registered with the agent.
func (a *ModelAgent) HasTool(name string) bool {
	_, exists := a.tools[name]
	return exists
}

// ListTools returns the sorted names of all registered tools.
func (a *ModelAgent) ListTools() []string {
	names := make([]string, 0, len(a.tools))
	for name := range a.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetTool retrieves a specific tool by name.
func (a *ModelAgent) GetTool(name string) (tool.Tool, bool) {
	t, exists := a.tools[name]
	return t, exists
}

// FlowAgent Interface Implementation

// GetName returns the agent's display name.
func (a *ModelAgent) GetName() string { return a.Name() }

// GetLLM returns the language model instance.
func (a *ModelAgent) GetLLM() model.Model { return a.llm }

// GetTools returns a copy of the registered tools.
func (a *ModelAgent) GetTools() map[string]tool.Tool {
	tools := make(map[string]tool.Tool, len(a.tools))
	for name, t := range a.tools {
		tools[name] = t
	}
	return tools
}

// IsStreamingEnabled returns whether streaming responses are enabled.
func (a *ModelAgent) IsStreamingEnabled() bool { return a.enableStreaming }

// GetOutputKey returns the session state key for saving responses.
func (a *ModelAgent) GetOutputKey() string { return a.outputKey }

// MaxHistoryMessages returns the maximum number of history contents to send.
func (a *ModelAgent) MaxHistoryMessages() int { return a.maxHistoryMessages }

// ToolTimeout bounds a single tool call.
func (a *ModelAgent) ToolTimeout() time.Duration { return a.toolTimeout }

// BeforeModel returns the before-model callback.
func (a *ModelAgent) BeforeModel() flow.BeforeModelCallback { return a.beforeModel }

// AfterModel returns the after-model callback.
func (a *ModelAgent) AfterModel() flow.AfterModelCallback { return a.afterModel }

// ResolveInstructions produces the instruction template (system prompt).
func (a *ModelAgent) ResolveInstructions(runCtx *core.RunContext) (string, error) {
	return a.instruction.Resolve(runCtx)
}

// Run implements core.Agent: it runs the before-agent callback and then the
// single agent flow until the model produces a final answer.
func (a *ModelAgent) Run(runCtx *core.RunContext) error {
	runCtx = enter(runCtx, a.Name(), "model")

	runCtx.LogInfo("agent.run.start", "agent", a.Name(), "run", runCtx.RunID, "branch", runCtx.Branch)

	if err := a.RunBeforeAgent(runCtx); err != nil {
		runCtx.LogError("agent.run.error", "agent", a.Name(), "error", err)
		return err
	}

	fl := flow.NewSingleAgentFlow(a, flow.NewParallelFunctionExecutor(a.executorCfg))

	runCtx.LogDebug("agent.flow.selected", "agent", a.Name(), "flow", fmt.Sprintf("%T", fl), "tools", len(a.tools))

	if err := fl.Execute(runCtx); err != nil {
		runCtx.LogError("agent.run.error", "agent", a.Name(), "error", err)
		return fmt.Errorf("flow execution failed: %w", err)
	}

	runCtx.LogInfo("agent.run.complete", "agent", a.Name(), "model_calls", runCtx.Limiter.Count())

	return nil
}
