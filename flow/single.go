package flow

// SingleAgentFlow implements the execution flow for a standalone model agent.
// It wires the default processors for instruction resolution, content
// assembly and output key handling.
type SingleAgentFlow struct{ *BaseFlow }

// NewSingleAgentFlow creates a new single-agent flow.
func NewSingleAgentFlow(agent FlowAgent, executor FunctionExecutor) *SingleAgentFlow {
	baseFlow := NewBaseFlow(agent, executor)

	baseFlow.AddRequestProcessor(NewInstructionsProcessor())
	baseFlow.AddRequestProcessor(NewContentsProcessor())
	baseFlow.AddResponseProcessor(NewOutputKeyProcessor())

	return &SingleAgentFlow{BaseFlow: baseFlow}
}
