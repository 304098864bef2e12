package openaichat

import (
	"github.com/rhuss/dialog/pkg/api"
	"github.com/rhuss/dialog/pkg/provider"
)

// translateRequest converts a provider.Request into the Chat Completions
// wire format.
func translateRequest(req *provider.Request) chatCompletionRequest {
	cr := chatCompletionRequest{
		Model:       req.Model,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		Stop:        req.Stop,
		N:           1,
	}

	for _, m := range req.Messages {
		cr.Messages = append(cr.Messages, translateMessage(m))
	}

	for _, t := range req.Tools {
		cr.Tools = append(cr.Tools, chatTool{
			Type: "function",
			Function: chatFunctionDef{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		})
	}

	return cr
}

// translateMessage converts one api.Message. Messages with content parts
// serialize as a part array; everything else as a plain string.
func translateMessage(m api.Message) chatMessage {
	cm := chatMessage{
		Role:       string(m.Role),
		ToolCallID: m.ToolCallID,
	}

	if len(m.Parts) > 0 {
		var parts []chatContentPart
		for _, p := range m.Parts {
			if p.Type == "image_url" {
				parts = append(parts, chatContentPart{
					Type:     "image_url",
					ImageURL: &chatImageURL{URL: p.ImageURL},
				})
				continue
			}
			parts = append(parts, chatContentPart{Type: "text", Text: p.ImageURL})
		}
		cm.Content = parts
	} else {
		cm.Content = m.Content
	}

	for _, tc := range m.ToolCalls {
		cm.ToolCalls = append(cm.ToolCalls, chatToolCall{
			ID:   tc.ID,
			Type: "function",
			Function: chatFunctionCall{
				Name:      tc.Name,
				Arguments: tc.Arguments,
			},
		})
	}

	return cm
}

// translateResponse converts the backend response into a provider.Response.
func translateResponse(cr *chatCompletionResponse) *provider.Response {
	resp := &provider.Response{
		FinishReason: provider.FinishStop,
		Usage: provider.Usage{
			InputTokens:  cr.Usage.PromptTokens,
			OutputTokens: cr.Usage.CompletionTokens,
			TotalTokens:  cr.Usage.TotalTokens,
		},
	}

	if len(cr.Choices) == 0 {
		resp.Message = api.Message{Role: api.RoleAssistant}
		return resp
	}

	choice := cr.Choices[0]
	msg := api.Message{Role: api.RoleAssistant}
	if choice.Message.Content != nil {
		msg.Content = *choice.Message.Content
	}
	for _, tc := range choice.Message.ToolCalls {
		msg.ToolCalls = append(msg.ToolCalls, api.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	resp.Message = msg

	switch choice.FinishReason {
	case "tool_calls":
		resp.FinishReason = provider.FinishToolCalls
	case "length":
		resp.FinishReason = provider.FinishLength
	default:
		// Some backends report "stop" even when tool calls are present.
		if len(msg.ToolCalls) > 0 {
			resp.FinishReason = provider.FinishToolCalls
		} else {
			resp.FinishReason = provider.FinishStop
		}
	}

	return resp
}
