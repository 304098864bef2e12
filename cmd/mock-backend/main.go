// Command mock-backend runs a deterministic Chat Completions server
// for running the dialog host without a real reasoning engine. It
// answers scoring prompts with a fixed relevance, requests one tool
// round when the user mentions an offered tool by name, and otherwise
// echoes a canned answer.
//
// Configuration:
//
//	MOCK_PORT - Listen port (default: 9090)
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"
)

func main() {
	port := os.Getenv("MOCK_PORT")
	if port == "" {
		port = "9090"
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/chat/completions", handleChatCompletions)
	mux.HandleFunc("GET /v1/models", handleModels)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok\n"))
	})

	srv := &http.Server{Addr: ":" + port, Handler: mux}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		slog.Info("mock backend starting", "port", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("mock backend failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("mock backend shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	srv.Shutdown(shutdownCtx)
}

// --- Wire types ---

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Tools    []chatTool    `json:"tools,omitempty"`
}

type chatMessage struct {
	Role       string `json:"role"`
	Content    any    `json:"content"`
	ToolCallID string `json:"tool_call_id,omitempty"`
}

type chatTool struct {
	Type     string `json:"type"`
	Function struct {
		Name string `json:"name"`
	} `json:"function"`
}

type chatResponse struct {
	ID      string       `json:"id"`
	Object  string       `json:"object"`
	Model   string       `json:"model"`
	Choices []chatChoice `json:"choices"`
	Usage   chatUsage    `json:"usage"`
}

type chatChoice struct {
	Index        int     `json:"index"`
	Message      chatMsg `json:"message"`
	FinishReason string  `json:"finish_reason"`
}

type chatMsg struct {
	Role      string         `json:"role"`
	Content   *string        `json:"content"`
	ToolCalls []chatToolCall `json:"tool_calls,omitempty"`
}

type chatToolCall struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

type chatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// --- Handlers ---

func handleChatCompletions(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":{"message":"invalid JSON"}}`, http.StatusBadRequest)
		return
	}

	resp := buildResponse(&req)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// buildResponse inspects the request content and produces a
// deterministic reply.
func buildResponse(req *chatRequest) chatResponse {
	// Scoring prompts get a fixed relevance so the router qualifies
	// every pipeline during local runs.
	if isScoringRequest(req) {
		return textResponse(req.Model, "0.9")
	}

	// If a tool result is already present, the tool round is done.
	if hasToolResult(req) {
		return textResponse(req.Model, "Done: "+lastToolResult(req))
	}

	// A user query mentioning an offered tool by name triggers one
	// tool-call round with empty arguments.
	if name := mentionedTool(req); name != "" {
		return toolCallResponse(req.Model, name)
	}

	return textResponse(req.Model, "You said: "+lastUserText(req))
}

func isScoringRequest(req *chatRequest) bool {
	for _, m := range req.Messages {
		if m.Role == "system" {
			if text, ok := m.Content.(string); ok && strings.Contains(text, "relevance scorer") {
				return true
			}
		}
	}
	return false
}

func hasToolResult(req *chatRequest) bool {
	for _, m := range req.Messages {
		if m.Role == "tool" {
			return true
		}
	}
	return false
}

func lastToolResult(req *chatRequest) string {
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == "tool" {
			if text, ok := req.Messages[i].Content.(string); ok {
				return text
			}
		}
	}
	return ""
}

func lastUserText(req *chatRequest) string {
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == "user" {
			if text, ok := req.Messages[i].Content.(string); ok {
				return text
			}
		}
	}
	return ""
}

func mentionedTool(req *chatRequest) string {
	query := strings.ToLower(lastUserText(req))
	for _, t := range req.Tools {
		if t.Function.Name != "" && strings.Contains(query, strings.ToLower(t.Function.Name)) {
			return t.Function.Name
		}
	}
	return ""
}

func textResponse(model, text string) chatResponse {
	return chatResponse{
		ID:     fmt.Sprintf("chatcmpl-mock-%d", time.Now().UnixNano()),
		Object: "chat.completion",
		Model:  model,
		Choices: []chatChoice{{
			Message:      chatMsg{Role: "assistant", Content: &text},
			FinishReason: "stop",
		}},
		Usage: chatUsage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
	}
}

func toolCallResponse(model, tool string) chatResponse {
	var call chatToolCall
	call.ID = fmt.Sprintf("call-mock-%d", time.Now().UnixNano())
	call.Type = "function"
	call.Function.Name = tool
	call.Function.Arguments = "{}"

	return chatResponse{
		ID:     fmt.Sprintf("chatcmpl-mock-%d", time.Now().UnixNano()),
		Object: "chat.completion",
		Model:  model,
		Choices: []chatChoice{{
			Message:      chatMsg{Role: "assistant", Content: nil, ToolCalls: []chatToolCall{call}},
			FinishReason: "tool_calls",
		}},
		Usage: chatUsage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
	}
}

func handleModels(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprint(w, `{"object":"list","data":[{"id":"mock-model","object":"model","owned_by":"mock"}]}`)
}
