// Package agent contains the agent implementations used to build weather
// assistants, from a single tool-calling model agent to multi-agent
// pipelines. The package focuses on three concerns:
//
//  1. Hierarchy plumbing and the before-agent hook (BaseAgent)
//  2. Coordination patterns (SequentialAgent, ParallelAgent)
//  3. Model-centric conversational / tool-calling agent (ModelAgent)
//
// Execution Model:
//   - An agent's Run receives a *core.RunContext and derives its own view
//     (agent info, fresh state delta) from it
//   - Composite agents coordinate child Runs; parallel children get their
//     own branch so their histories stay isolated
//   - ModelAgent drives the flow package's turn loop
//
// Agents are immutable once built; construct the whole tree before handing
// the root to a runner.
package agent
