// Package runner implements the orchestration layer that executes a root
// agent against a session.
//
// # Responsibilities
//   - Session lookup (creating unknown sessions) and user event persistence
//   - Event persistence: state delta first, then the event, before the
//     emitting agent continues
//   - Streaming persisted events to the caller
//   - Run lifecycle management, timeouts & cancellation
//
// The weathermesh package wraps the runner with synchronous helpers.
package runner
