package provider

import (
	"context"
	"encoding/json"

	"github.com/rhuss/dialog/pkg/api"
)

// Provider abstracts a reasoning engine backend. Implementations must be
// safe for concurrent use by multiple goroutines.
type Provider interface {
	// Name returns the provider identifier (e.g., "openai-chat").
	Name() string

	// Complete performs one inference call and returns the engine's
	// message. Blocking; honors ctx cancellation. No retries.
	Complete(ctx context.Context, req *Request) (*Response, error)

	// Close releases provider resources (HTTP clients, connections).
	Close() error
}

// Request is the backend-facing request: the working message list, the
// operation catalog offered to the engine, and sampling parameters.
type Request struct {
	Model       string
	Messages    []api.Message
	Tools       []ToolDefinition
	Temperature *float64
	MaxTokens   *int
	Stop        []string
}

// ToolDefinition describes one operation offered to the engine.
type ToolDefinition struct {
	Name        string
	Description string

	// Parameters is the JSON-encoded input schema of the operation.
	Parameters json.RawMessage
}

// FinishReason distinguishes a final answer from a request for more
// tool work.
type FinishReason string

const (
	// FinishStop means the engine produced a final answer.
	FinishStop FinishReason = "stop"

	// FinishToolCalls means the engine requested operation invocations.
	FinishToolCalls FinishReason = "tool_calls"

	// FinishLength means generation was cut off by the token limit.
	FinishLength FinishReason = "length"
)

// Response is the engine's answer to a single Complete call.
type Response struct {
	// Message is the assistant message, appended verbatim to the
	// working list, including any requested invocations.
	Message api.Message

	// FinishReason tells the orchestrator whether to execute tools
	// or terminate the loop.
	FinishReason FinishReason

	// Usage reports token accounting when the backend provides it.
	Usage Usage
}

// Usage holds token counts for one inference call.
type Usage struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
}

// ModelInfo describes a model served by the backend.
type ModelInfo struct {
	ID      string `json:"id"`
	Object  string `json:"object,omitempty"`
	OwnedBy string `json:"owned_by,omitempty"`
}
