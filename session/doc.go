// Package session houses concrete implementations of core.SessionStore.
// The interface itself (and the Session struct) live in the core package so
// agents and flows never depend on a concrete storage backend.
//
// InMemoryStore keeps sessions in process memory. The sqlite sub-package
// provides a durable store; only the wiring layer decides which one to use.
package session
