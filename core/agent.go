package core

// Agent defines the interface every unit of work in weathermesh implements.
//
// Agents receive a RunContext, emit events through it and may own child
// agents. Composite agents (sequential, parallel) coordinate the Run calls of
// their children; model agents drive a language model and its tools.
//
// Implementations must:
//   - Respect cancellation of RunContext.Context
//   - Emit events only through RunContext.EmitEvent so state deltas are persisted
//   - Be fully constructed before they are handed to a runner
type Agent interface {
	Name() string
	Description() string
	Run(runCtx *RunContext) error
	SubAgents() []Agent
	Parent() Agent
	FindAgent(name string) Agent
}

// AgentInfo carries identifying details about an agent used in contexts & events.
// Name is the external identifier; Type categorizes implementation (e.g. "model", "sequential").
type AgentInfo struct{ Name, Type string }
