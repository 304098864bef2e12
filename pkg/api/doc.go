// Package api defines the conversation message model shared by the
// provider boundary, the session layer, and the orchestrator: roles,
// messages, tool calls, and content parts.
package api
