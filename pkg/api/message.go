package api

// Role identifies the author of a conversation message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is one turn entry in a conversation. Within a single reasoning
// round, an assistant message carrying ToolCalls must be followed by one
// tool message per call, in the order the engine requested them.
type Message struct {
	Role Role `json:"role"`

	// Content is the plain text content. Empty for assistant messages
	// that only request tool calls.
	Content string `json:"content"`

	// Parts carries structured content (currently inline images) for
	// user messages re-injecting queued image results. When non-empty,
	// Parts supersedes Content on the wire.
	Parts []ContentPart `json:"parts,omitempty"`

	// ToolCalls holds the invocations requested by an assistant message,
	// each with the engine-generated call identifier.
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`

	// ToolCallID identifies which call a tool message answers.
	ToolCallID string `json:"tool_call_id,omitempty"`
}

// ToolCall is a single requested operation invocation.
type ToolCall struct {
	// ID is the call identifier generated by the reasoning engine.
	ID string `json:"id"`

	// Name is the operation name.
	Name string `json:"name"`

	// Arguments is the serialized JSON argument payload, verbatim.
	Arguments string `json:"arguments"`
}

// ContentPart is a structured piece of message content.
type ContentPart struct {
	// Type is the part discriminator, currently only "image_url".
	Type string `json:"type"`

	// ImageURL holds the image location (https or data URL).
	ImageURL string `json:"image_url,omitempty"`
}

// UserMessage builds a plain text user message.
func UserMessage(text string) Message {
	return Message{Role: RoleUser, Content: text}
}

// AssistantMessage builds a plain text assistant message.
func AssistantMessage(text string) Message {
	return Message{Role: RoleAssistant, Content: text}
}

// SystemMessage builds a system message.
func SystemMessage(text string) Message {
	return Message{Role: RoleSystem, Content: text}
}

// ToolMessage builds a tool result message answering the given call.
func ToolMessage(callID, content string) Message {
	return Message{Role: RoleTool, Content: content, ToolCallID: callID}
}

// ImageMessage builds a user message carrying a single inline image,
// used when deferring image payloads so they appear to the engine as
// freshly supplied user context.
func ImageMessage(url string) Message {
	return Message{
		Role:  RoleUser,
		Parts: []ContentPart{{Type: "image_url", ImageURL: url}},
	}
}
