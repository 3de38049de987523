// Package core provides the foundational domain types, interfaces and execution
// contexts used by weathermesh. It defines the core abstractions for:
//
//   - Agents (units of autonomous / orchestrated work)
//   - Sessions (stateful conversational containers with event history)
//   - Events (immutable communication + orchestration records)
//   - RunContext / ToolContext / CallbackContext (scoped execution)
//
// Persistence and concrete agents live in sibling packages; core only exposes
// the small interfaces they implement.
package core
