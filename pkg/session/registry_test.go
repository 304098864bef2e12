package session

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func TestRegistryDuplicateSession(t *testing.T) {
	reg := NewRegistry()
	defer reg.CloseAll()

	first := connectTestSession(t, "caps", map[string]testTool{
		"lookup": {handler: func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return textResult("first"), nil
		}},
	})
	second := connectTestSession(t, "caps", map[string]testTool{
		"other": {handler: func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return textResult("second"), nil
		}},
	})

	if err := reg.Add(first); err != nil {
		t.Fatalf("first Add failed: %v", err)
	}
	if err := reg.Add(second); !errors.Is(err, ErrDuplicateSession) {
		t.Fatalf("expected ErrDuplicateSession, got %v", err)
	}

	// The first session must remain usable.
	output, err := reg.Invoke(context.Background(), "lookup", "{}")
	if err != nil {
		t.Fatalf("Invoke after duplicate Add failed: %v", err)
	}
	if output != "first" {
		t.Errorf("output = %q, want %q", output, "first")
	}
}

func TestRegistryLastRegistrationWins(t *testing.T) {
	reg := NewRegistry()
	defer reg.CloseAll()

	older := connectTestSession(t, "older", map[string]testTool{
		"search": {handler: func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return textResult("from older"), nil
		}},
	})
	newer := connectTestSession(t, "newer", map[string]testTool{
		"search": {handler: func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return textResult("from newer"), nil
		}},
	})

	if err := reg.Add(older); err != nil {
		t.Fatalf("Add older failed: %v", err)
	}
	if err := reg.Add(newer); err != nil {
		t.Fatalf("Add newer failed: %v", err)
	}

	id, err := reg.Resolve("search")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if id != "newer" {
		t.Errorf("Resolve = %q, want %q", id, "newer")
	}

	// The catalog lists the name exactly once and dispatch goes to the
	// later registration.
	catalog := reg.Catalog(context.Background())
	count := 0
	for _, op := range catalog {
		if op.Name == "search" {
			count++
			if op.SessionID != "newer" {
				t.Errorf("catalog owner = %q, want %q", op.SessionID, "newer")
			}
		}
	}
	if count != 1 {
		t.Errorf("catalog lists %q %d times, want once", "search", count)
	}

	output, err := reg.Invoke(context.Background(), "search", "{}")
	if err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}
	if output != "from newer" {
		t.Errorf("output = %q, want %q", output, "from newer")
	}
}

func TestRegistryUnknownOperation(t *testing.T) {
	reg := NewRegistry()

	if _, err := reg.Resolve("ghost"); !errors.Is(err, ErrUnknownOperation) {
		t.Errorf("Resolve: expected ErrUnknownOperation, got %v", err)
	}
	if _, err := reg.Invoke(context.Background(), "ghost", "{}"); !errors.Is(err, ErrUnknownOperation) {
		t.Errorf("Invoke: expected ErrUnknownOperation, got %v", err)
	}
}

func TestRegistryInvokeInvalidJSON(t *testing.T) {
	reg := NewRegistry()
	defer reg.CloseAll()

	s := connectTestSession(t, "caps", map[string]testTool{
		"echo": {handler: func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return textResult("ok"), nil
		}},
	})
	if err := reg.Add(s); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	_, err := reg.Invoke(context.Background(), "echo", "{not json")
	var invErr *InvocationError
	if !errors.As(err, &invErr) {
		t.Fatalf("expected *InvocationError, got %T: %v", err, err)
	}
	if !strings.Contains(invErr.Text, "invalid arguments JSON") {
		t.Errorf("Text = %q, want JSON parse failure", invErr.Text)
	}
}

func TestRegistryInvokeSchemaValidation(t *testing.T) {
	reg := NewRegistry()
	defer reg.CloseAll()

	s := connectTestSession(t, "caps", map[string]testTool{
		"write_note": {
			schema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"text": map[string]any{"type": "string"},
				},
				"required": []any{"text"},
			},
			handler: func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
				return textResult("written"), nil
			},
		},
	})
	if err := reg.Add(s); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	// Missing required property is rejected before dispatch.
	_, err := reg.Invoke(context.Background(), "write_note", "{}")
	var invErr *InvocationError
	if !errors.As(err, &invErr) {
		t.Fatalf("expected *InvocationError, got %T: %v", err, err)
	}
	if !strings.Contains(invErr.Text, "rejected by schema") {
		t.Errorf("Text = %q, want schema rejection", invErr.Text)
	}

	// A conforming payload goes through.
	output, err := reg.Invoke(context.Background(), "write_note", `{"text":"hi"}`)
	if err != nil {
		t.Fatalf("Invoke with valid arguments failed: %v", err)
	}
	if output != "written" {
		t.Errorf("output = %q, want %q", output, "written")
	}
}

func TestRegistryCatalogFirstSeenOrder(t *testing.T) {
	reg := NewRegistry()
	defer reg.CloseAll()

	handler := func(text string) mcp.ToolHandler {
		return func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return textResult(text), nil
		}
	}

	a := connectTestSession(t, "a", map[string]testTool{
		"alpha": {handler: handler("a")},
	})
	b := connectTestSession(t, "b", map[string]testTool{
		"beta": {handler: handler("b")},
	})

	if err := reg.Add(a); err != nil {
		t.Fatalf("Add a failed: %v", err)
	}
	if err := reg.Add(b); err != nil {
		t.Fatalf("Add b failed: %v", err)
	}

	catalog := reg.Catalog(context.Background())
	if len(catalog) != 2 {
		t.Fatalf("expected 2 operations, got %d", len(catalog))
	}
	if catalog[0].Name != "alpha" || catalog[1].Name != "beta" {
		t.Errorf("catalog order = [%s %s], want [alpha beta]", catalog[0].Name, catalog[1].Name)
	}
}

func TestRegistryCloseAll(t *testing.T) {
	reg := NewRegistry()

	s := connectTestSession(t, "caps", map[string]testTool{
		"noop": {handler: func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return textResult("ok"), nil
		}},
	})
	if err := reg.Add(s); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	reg.CloseAll()

	if _, err := reg.Resolve("noop"); !errors.Is(err, ErrUnknownOperation) {
		t.Errorf("expected empty index after CloseAll, got %v", err)
	}
	if reg.Session("caps") != nil {
		t.Error("expected no sessions after CloseAll")
	}
}

func TestRegistryConnectAllSkipsFailures(t *testing.T) {
	reg := NewRegistry()
	defer reg.CloseAll()

	// The unsupported provider fails to launch; ConnectAll must carry on.
	reg.ConnectAll(context.Background(), []ProviderConfig{
		{ID: "bad", Path: "/opt/provider.rb"},
	})

	if reg.Session("bad") != nil {
		t.Error("failed provider must not be registered")
	}
}
