// Package model defines the provider‑agnostic abstractions and concrete
// helpers for interacting with language models inside weathermesh.
//
// Core goals:
//   - Unify streaming + non‑streaming generation behind a single interface
//   - Normalize tool / function declarations (ToolDefinition)
//   - Keep request/response shapes minimal and transport independent
//   - Facilitate deterministic tests (ScriptedModel, MockModel)
//
// Providers (Gemini, OpenAI, Anthropic) implement the Model interface from
// subpackages so agents and flows remain decoupled from vendor SDKs.
package model
