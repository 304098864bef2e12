package engine

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rhuss/dialog/pkg/api"
	"github.com/rhuss/dialog/pkg/provider"
	"github.com/rhuss/dialog/pkg/router"
	"github.com/rhuss/dialog/pkg/session"
)

// stubProvider scripts Complete through a closure and records every
// request it sees.
type stubProvider struct {
	mu       sync.Mutex
	fn       func(call int, req *provider.Request) (*provider.Response, error)
	requests []*provider.Request
}

func (p *stubProvider) Name() string { return "stub" }

func (p *stubProvider) Complete(ctx context.Context, req *provider.Request) (*provider.Response, error) {
	p.mu.Lock()
	call := len(p.requests)
	p.requests = append(p.requests, req)
	p.mu.Unlock()
	return p.fn(call, req)
}

func (p *stubProvider) Close() error { return nil }

func (p *stubProvider) request(i int) *provider.Request {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.requests[i]
}

func stopResponse(text string) (*provider.Response, error) {
	return &provider.Response{
		Message:      api.AssistantMessage(text),
		FinishReason: provider.FinishStop,
	}, nil
}

func toolCallResponse(calls ...api.ToolCall) (*provider.Response, error) {
	return &provider.Response{
		Message:      api.Message{Role: api.RoleAssistant, ToolCalls: calls},
		FinishReason: provider.FinishToolCalls,
	}, nil
}

// newTestRegistry connects one in-memory capability session serving the
// given tools and wraps it in a registry.
func newTestRegistry(t *testing.T, tools map[string]mcp.ToolHandler) *session.Registry {
	t.Helper()

	server := mcp.NewServer(
		&mcp.Implementation{Name: "test-provider", Version: "1.0.0"},
		nil,
	)
	for name, handler := range tools {
		server.AddTool(
			&mcp.Tool{
				Name:        name,
				Description: "test operation " + name,
				InputSchema: map[string]any{"type": "object"},
			},
			handler,
		)
	}

	serverTransport, clientTransport := mcp.NewInMemoryTransports()
	go func() {
		_ = server.Run(context.Background(), serverTransport)
	}()

	s, err := session.ConnectWithTransport(context.Background(), "caps", clientTransport)
	if err != nil {
		t.Fatalf("ConnectWithTransport failed: %v", err)
	}

	reg := session.NewRegistry()
	if err := reg.Add(s); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	t.Cleanup(reg.CloseAll)
	return reg
}

func textHandler(text string) mcp.ToolHandler {
	return func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: text}},
		}, nil
	}
}

func TestProcessQueryPlainAnswer(t *testing.T) {
	p := &stubProvider{fn: func(call int, req *provider.Request) (*provider.Response, error) {
		return stopResponse("just an answer")
	}}
	eng, err := New(p, session.NewRegistry(), nil, Config{Model: "test-model"})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	answer, err := eng.ProcessQuery(context.Background(), "hello")
	if err != nil {
		t.Fatalf("ProcessQuery failed: %v", err)
	}
	if answer != "just an answer" {
		t.Errorf("answer = %q, want %q", answer, "just an answer")
	}

	transcript := eng.Transcript()
	if len(transcript) != 2 {
		t.Fatalf("transcript length = %d, want 2", len(transcript))
	}
	if transcript[0].Role != api.RoleUser || transcript[0].Content != "hello" {
		t.Errorf("transcript[0] = %+v, want user %q", transcript[0], "hello")
	}
	if transcript[1].Role != api.RoleAssistant || transcript[1].Content != "just an answer" {
		t.Errorf("transcript[1] = %+v, want assistant answer", transcript[1])
	}
}

func TestProcessQueryToolRound(t *testing.T) {
	reg := newTestRegistry(t, map[string]mcp.ToolHandler{
		"lookup": textHandler("42"),
	})

	p := &stubProvider{}
	p.fn = func(call int, req *provider.Request) (*provider.Response, error) {
		if call == 0 {
			return toolCallResponse(api.ToolCall{ID: "c1", Name: "lookup", Arguments: "{}"})
		}
		return stopResponse("the answer is 42")
	}

	eng, err := New(p, reg, nil, Config{Model: "test-model"})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	answer, err := eng.ProcessQuery(context.Background(), "what is the answer?")
	if err != nil {
		t.Fatalf("ProcessQuery failed: %v", err)
	}
	if answer != "the answer is 42" {
		t.Errorf("answer = %q", answer)
	}

	// The second reasoning call must see the tool result answering c1.
	second := p.request(1)
	last := second.Messages[len(second.Messages)-1]
	if last.Role != api.RoleTool || last.ToolCallID != "c1" || last.Content != "42" {
		t.Errorf("last message before second call = %+v, want tool result for c1", last)
	}

	// Intermediate tool traffic never reaches the committed history.
	for _, m := range eng.Transcript() {
		if m.Role == api.RoleTool {
			t.Errorf("tool message leaked into history: %+v", m)
		}
		if len(m.ToolCalls) > 0 {
			t.Errorf("tool-call envelope leaked into history: %+v", m)
		}
	}
}

func TestExecuteCallsInRequestOrder(t *testing.T) {
	var mu sync.Mutex
	var invoked []string
	record := func(name, text string) mcp.ToolHandler {
		return func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			mu.Lock()
			invoked = append(invoked, name)
			mu.Unlock()
			return &mcp.CallToolResult{
				Content: []mcp.Content{&mcp.TextContent{Text: text}},
			}, nil
		}
	}
	reg := newTestRegistry(t, map[string]mcp.ToolHandler{
		"first":  record("first", "one"),
		"second": record("second", "two"),
	})

	p := &stubProvider{}
	p.fn = func(call int, req *provider.Request) (*provider.Response, error) {
		if call == 0 {
			return toolCallResponse(
				api.ToolCall{ID: "c1", Name: "first", Arguments: "{}"},
				api.ToolCall{ID: "c2", Name: "second", Arguments: "{}"},
			)
		}
		return stopResponse("done")
	}

	eng, err := New(p, reg, nil, Config{Model: "test-model"})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if _, err := eng.ProcessQuery(context.Background(), "do both"); err != nil {
		t.Fatalf("ProcessQuery failed: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(invoked) != 2 || invoked[0] != "first" || invoked[1] != "second" {
		t.Errorf("invocation order = %v, want [first second]", invoked)
	}

	second := p.request(1)
	n := len(second.Messages)
	if second.Messages[n-2].ToolCallID != "c1" || second.Messages[n-1].ToolCallID != "c2" {
		t.Errorf("tool results out of order: %+v", second.Messages[n-2:])
	}
}

func TestSequentialToolRounds(t *testing.T) {
	var mu sync.Mutex
	var invoked []string
	record := func(name, text string) mcp.ToolHandler {
		return func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			mu.Lock()
			invoked = append(invoked, name)
			mu.Unlock()
			return &mcp.CallToolResult{
				Content: []mcp.Content{&mcp.TextContent{Text: text}},
			}, nil
		}
	}
	reg := newTestRegistry(t, map[string]mcp.ToolHandler{
		"fetch_id": record("fetch_id", "id-7"),
		"fetch_by": record("fetch_by", "record for id-7"),
	})

	// Round one requests fetch_id; round two uses its result for
	// fetch_by; round three answers.
	p := &stubProvider{}
	p.fn = func(call int, req *provider.Request) (*provider.Response, error) {
		switch call {
		case 0:
			return toolCallResponse(api.ToolCall{ID: "c1", Name: "fetch_id", Arguments: "{}"})
		case 1:
			last := req.Messages[len(req.Messages)-1]
			if last.Role != api.RoleTool || last.Content != "id-7" {
				t.Errorf("round 2 did not see round 1 result: %+v", last)
			}
			return toolCallResponse(api.ToolCall{ID: "c2", Name: "fetch_by", Arguments: "{}"})
		default:
			return stopResponse("record found")
		}
	}

	eng, err := New(p, reg, nil, Config{Model: "test-model"})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	answer, err := eng.ProcessQuery(context.Background(), "find the record")
	if err != nil {
		t.Fatalf("ProcessQuery failed: %v", err)
	}
	if answer != "record found" {
		t.Errorf("answer = %q", answer)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(invoked) != 2 || invoked[0] != "fetch_id" || invoked[1] != "fetch_by" {
		t.Errorf("invocation order = %v, want [fetch_id fetch_by]", invoked)
	}

	for _, m := range eng.Transcript() {
		if m.Role == api.RoleTool {
			t.Errorf("tool message leaked into history: %+v", m)
		}
	}
}

func TestUnknownOperationAbortsTurn(t *testing.T) {
	reg := newTestRegistry(t, map[string]mcp.ToolHandler{
		"known": textHandler("ok"),
	})

	p := &stubProvider{fn: func(call int, req *provider.Request) (*provider.Response, error) {
		return toolCallResponse(api.ToolCall{ID: "c1", Name: "ghost", Arguments: "{}"})
	}}

	eng, err := New(p, reg, nil, Config{Model: "test-model"})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	_, err = eng.ProcessQuery(context.Background(), "summon")
	if !errors.Is(err, session.ErrUnknownOperation) {
		t.Fatalf("expected ErrUnknownOperation, got %v", err)
	}

	// Nothing was committed for the failed turn.
	if transcript := eng.Transcript(); len(transcript) != 0 {
		t.Errorf("transcript after failed turn = %+v, want empty", transcript)
	}
}

func TestInvocationErrorFedBack(t *testing.T) {
	reg := newTestRegistry(t, map[string]mcp.ToolHandler{
		"flaky": func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return &mcp.CallToolResult{
				Content: []mcp.Content{&mcp.TextContent{Text: "boom"}},
				IsError: true,
			}, nil
		},
	})

	p := &stubProvider{}
	p.fn = func(call int, req *provider.Request) (*provider.Response, error) {
		if call == 0 {
			return toolCallResponse(api.ToolCall{ID: "c1", Name: "flaky", Arguments: "{}"})
		}
		return stopResponse("recovered")
	}

	eng, err := New(p, reg, nil, Config{Model: "test-model"})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	answer, err := eng.ProcessQuery(context.Background(), "try it")
	if err != nil {
		t.Fatalf("ProcessQuery failed: %v", err)
	}
	if answer != "recovered" {
		t.Errorf("answer = %q", answer)
	}

	second := p.request(1)
	last := second.Messages[len(second.Messages)-1]
	if last.Role != api.RoleTool || !strings.Contains(last.Content, "boom") {
		t.Errorf("expected error text fed back as tool result, got %+v", last)
	}
}

func TestImageResultsDeferredAfterBatch(t *testing.T) {
	const dataURL = "data:image/png;base64,xyz"
	reg := newTestRegistry(t, map[string]mcp.ToolHandler{
		"load_image": textHandler(dataURL),
		"fetch":      textHandler("meta"),
	})

	p := &stubProvider{}
	p.fn = func(call int, req *provider.Request) (*provider.Response, error) {
		if call == 0 {
			return toolCallResponse(
				api.ToolCall{ID: "c1", Name: "load_image", Arguments: "{}"},
				api.ToolCall{ID: "c2", Name: "fetch", Arguments: "{}"},
			)
		}
		return stopResponse("nice picture")
	}

	eng, err := New(p, reg, nil, Config{Model: "test-model"})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if _, err := eng.ProcessQuery(context.Background(), "show me"); err != nil {
		t.Fatalf("ProcessQuery failed: %v", err)
	}

	// Even though the image load was requested first, its result comes
	// after the whole batch, as a user message with inline image content.
	second := p.request(1)
	n := len(second.Messages)
	toolMsg := second.Messages[n-2]
	imgMsg := second.Messages[n-1]

	if toolMsg.Role != api.RoleTool || toolMsg.ToolCallID != "c2" {
		t.Errorf("expected fetch result before the image, got %+v", toolMsg)
	}
	if imgMsg.Role != api.RoleUser || len(imgMsg.Parts) != 1 {
		t.Fatalf("expected user image message, got %+v", imgMsg)
	}
	if imgMsg.Parts[0].Type != "image_url" || imgMsg.Parts[0].ImageURL != dataURL {
		t.Errorf("image part = %+v, want %q", imgMsg.Parts[0], dataURL)
	}
}

func TestHistoryTrimKeepsRecentPairs(t *testing.T) {
	p := &stubProvider{fn: func(call int, req *provider.Request) (*provider.Response, error) {
		return stopResponse("ok")
	}}
	eng, err := New(p, session.NewRegistry(), nil, Config{Model: "test-model", MaxHistoryPairs: 2})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	// 2N+3 turns against a bound of N=2: only the most recent 2 pairs
	// survive, in original relative order.
	for _, q := range []string{"q1", "q2", "q3", "q4", "q5", "q6", "q7"} {
		if _, err := eng.ProcessQuery(context.Background(), q); err != nil {
			t.Fatalf("ProcessQuery(%q) failed: %v", q, err)
		}
	}

	transcript := eng.Transcript()
	if len(transcript) != 4 {
		t.Fatalf("transcript length = %d, want 4", len(transcript))
	}
	if transcript[0].Content != "q6" || transcript[2].Content != "q7" {
		t.Errorf("oldest pairs not evicted: %+v", transcript)
	}
	if transcript[1].Role != api.RoleAssistant || transcript[3].Role != api.RoleAssistant {
		t.Errorf("pair structure broken: %+v", transcript)
	}
}

func TestSystemPromptPinnedOutsideTrim(t *testing.T) {
	p := &stubProvider{fn: func(call int, req *provider.Request) (*provider.Response, error) {
		if req.Messages[0].Role != api.RoleSystem || req.Messages[0].Content != "be terse" {
			t.Errorf("first message = %+v, want pinned system prompt", req.Messages[0])
		}
		return stopResponse("ok")
	}}
	eng, err := New(p, session.NewRegistry(), nil, Config{
		Model:           "test-model",
		SystemPrompt:    "be terse",
		MaxHistoryPairs: 1,
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	for _, q := range []string{"q1", "q2", "q3"} {
		if _, err := eng.ProcessQuery(context.Background(), q); err != nil {
			t.Fatalf("ProcessQuery(%q) failed: %v", q, err)
		}
	}

	eng.ClearHistory()
	if _, err := eng.ProcessQuery(context.Background(), "fresh"); err != nil {
		t.Fatalf("ProcessQuery after clear failed: %v", err)
	}
}

func TestRecordFailure(t *testing.T) {
	p := &stubProvider{fn: func(call int, req *provider.Request) (*provider.Response, error) {
		return stopResponse("ok")
	}}
	eng, err := New(p, session.NewRegistry(), nil, Config{Model: "test-model"})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	eng.RecordFailure("risky query", "backend down")

	transcript := eng.Transcript()
	if len(transcript) != 2 {
		t.Fatalf("transcript length = %d, want 2", len(transcript))
	}
	if transcript[0].Role != api.RoleUser || transcript[0].Content != "risky query" {
		t.Errorf("transcript[0] = %+v", transcript[0])
	}
	if transcript[1].Role != api.RoleAssistant || transcript[1].Content != "backend down" {
		t.Errorf("transcript[1] = %+v", transcript[1])
	}
}

func TestMaxRoundsExceeded(t *testing.T) {
	reg := newTestRegistry(t, map[string]mcp.ToolHandler{
		"spin": textHandler("again"),
	})

	p := &stubProvider{fn: func(call int, req *provider.Request) (*provider.Response, error) {
		return toolCallResponse(api.ToolCall{ID: "c", Name: "spin", Arguments: "{}"})
	}}

	eng, err := New(p, reg, nil, Config{Model: "test-model", MaxRounds: 2})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	_, err = eng.ProcessQuery(context.Background(), "loop forever")
	if err == nil || !strings.Contains(err.Error(), "no final answer") {
		t.Fatalf("expected round limit error, got %v", err)
	}
}

func TestRouterNarrowsCatalog(t *testing.T) {
	reg := newTestRegistry(t, map[string]mcp.ToolHandler{
		"alpha": textHandler("a"),
		"beta":  textHandler("b"),
	})

	// The scorer qualifies only the pipeline containing alpha.
	scorer := &stubProvider{}
	scorer.fn = func(call int, req *provider.Request) (*provider.Response, error) {
		score := "0.1"
		if strings.Contains(req.Messages[1].Content, "Pipeline: lookup") {
			score = "0.9"
		}
		return stopResponse(score)
	}
	rt := router.New(scorer, "scorer-model", []router.Pipeline{
		{Name: "lookup", Description: "find things", Operations: []string{"alpha"}},
		{Name: "admin", Description: "manage things", Operations: []string{"beta"}},
	})

	p := &stubProvider{fn: func(call int, req *provider.Request) (*provider.Response, error) {
		return stopResponse("ok")
	}}
	eng, err := New(p, reg, rt, Config{Model: "test-model"})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if _, err := eng.ProcessQuery(context.Background(), "find something"); err != nil {
		t.Fatalf("ProcessQuery failed: %v", err)
	}

	offered := p.request(0).Tools
	if len(offered) != 1 || offered[0].Name != "alpha" {
		t.Errorf("offered tools = %+v, want only alpha", offered)
	}
}

func TestRouterSelectsNothingOffersFullCatalog(t *testing.T) {
	reg := newTestRegistry(t, map[string]mcp.ToolHandler{
		"alpha": textHandler("a"),
		"beta":  textHandler("b"),
	})

	scorer := &stubProvider{fn: func(call int, req *provider.Request) (*provider.Response, error) {
		return stopResponse("0.0")
	}}
	rt := router.New(scorer, "scorer-model", []router.Pipeline{
		{Name: "lookup", Operations: []string{"alpha"}},
	})

	p := &stubProvider{fn: func(call int, req *provider.Request) (*provider.Response, error) {
		return stopResponse("ok")
	}}
	eng, err := New(p, reg, rt, Config{Model: "test-model"})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if _, err := eng.ProcessQuery(context.Background(), "anything"); err != nil {
		t.Fatalf("ProcessQuery failed: %v", err)
	}

	if offered := p.request(0).Tools; len(offered) != 2 {
		t.Errorf("offered %d tools, want full catalog of 2", len(offered))
	}
}

func TestCancelledContext(t *testing.T) {
	p := &stubProvider{fn: func(call int, req *provider.Request) (*provider.Response, error) {
		return stopResponse("ok")
	}}
	eng, err := New(p, session.NewRegistry(), nil, Config{Model: "test-model"})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := eng.ProcessQuery(ctx, "late"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
