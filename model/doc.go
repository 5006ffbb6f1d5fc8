// Package model defines the provider-agnostic abstractions for interacting
// with language models inside firegraph.
//
// Core goals:
//   - A single synchronous Generate call per model turn
//   - Normalized tool / function call representation (ToolDefinition, ToolCall)
//   - Request/response shapes that stay transport independent
//   - Lightweight mocking for tests (MockModel)
//
// Providers (OpenAI, Anthropic) implement the Model interface so workers and
// the decider remain decoupled from vendor SDKs.
package model
