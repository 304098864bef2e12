package session

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Operation describes one unit of work a capability provider can
// perform: a registry-unique name, a human-readable description, the
// provider-declared input schema, and the owning session id.
type Operation struct {
	Name        string
	Description string

	// InputSchema is the JSON-encoded parameter schema as advertised
	// by the provider.
	InputSchema json.RawMessage

	// SessionID is the id of the session advertising this operation.
	SessionID string
}

// Session is one persistent bidirectional channel to one capability
// provider process. Created by Connect; destroyed by Close or by the
// registry's CloseAll.
type Session struct {
	id   string
	path string

	client  *mcp.Client
	session *mcp.ClientSession

	mu     sync.Mutex
	ops    []Operation
	closed bool
}

// Connect starts the provider process at path, establishes the stdio
// channel, performs the MCP handshake, and queries the initial operation
// list. The launch strategy is selected by file extension: .py runs
// under python, .js under node; anything else fails with
// ErrUnsupportedExecutable.
func Connect(ctx context.Context, id, path string) (*Session, error) {
	command, err := launchCommand(path)
	if err != nil {
		return nil, err
	}

	s := &Session{id: id, path: path}
	transport := &mcp.CommandTransport{Command: exec.Command(command, path)}
	if err := s.connect(ctx, transport); err != nil {
		return nil, err
	}
	return s, nil
}

// ConnectWithTransport establishes a session over the given transport,
// bypassing process launch. Used by tests with in-memory transports.
func ConnectWithTransport(ctx context.Context, id string, transport mcp.Transport) (*Session, error) {
	s := &Session{id: id}
	if err := s.connect(ctx, transport); err != nil {
		return nil, err
	}
	return s, nil
}

// launchCommand classifies the provider executable and returns the
// interpreter command for it.
func launchCommand(path string) (string, error) {
	switch {
	case strings.HasSuffix(path, ".py"):
		return "python", nil
	case strings.HasSuffix(path, ".js"):
		return "node", nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedExecutable, path)
	}
}

// connect performs the handshake and the initial operation query.
func (s *Session) connect(ctx context.Context, transport mcp.Transport) error {
	s.client = mcp.NewClient(
		&mcp.Implementation{Name: "dialog", Version: "1.0.0"},
		&mcp.ClientOptions{Capabilities: &mcp.ClientCapabilities{}},
	)

	sess, err := s.client.Connect(ctx, transport, nil)
	if err != nil {
		return fmt.Errorf("connecting to provider %q: %w", s.id, err)
	}
	s.session = sess

	if _, err := s.Operations(ctx); err != nil {
		_ = s.Close()
		return fmt.Errorf("querying operations of provider %q: %w", s.id, err)
	}
	return nil
}

// ID returns the caller-assigned session id.
func (s *Session) ID() string {
	return s.id
}

// Operations queries the provider's current operation list and caches
// it. Side-effect-free towards the provider; may be called repeatedly
// since the catalog can change if the provider reloads.
func (s *Session) Operations(ctx context.Context) ([]Operation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session == nil {
		return nil, fmt.Errorf("session %q not connected", s.id)
	}

	var ops []Operation
	for tool, err := range s.session.Tools(ctx, nil) {
		if err != nil {
			return nil, fmt.Errorf("listing operations from %q: %w", s.id, err)
		}
		op, convErr := convertTool(s.id, tool)
		if convErr != nil {
			return nil, fmt.Errorf("converting operation %q from %q: %w", tool.Name, s.id, convErr)
		}
		ops = append(ops, op)
	}

	s.ops = ops
	return ops, nil
}

// cached returns the operation list from the last successful query.
func (s *Session) cached() []Operation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ops
}

// Invoke sends the invocation and blocks until a result or a channel
// error. Provider-reported failures return an *InvocationError carrying
// the provider's error text. No retries, no internal timeout: a hung
// provider stalls the calling turn until ctx is cancelled.
func (s *Session) Invoke(ctx context.Context, name string, args map[string]any) (string, error) {
	if s.session == nil {
		return "", fmt.Errorf("session %q not connected", s.id)
	}

	result, err := s.session.CallTool(ctx, &mcp.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	if err != nil {
		return "", &InvocationError{Operation: name, Text: err.Error()}
	}

	output := textContent(result)
	if result.IsError {
		return "", &InvocationError{Operation: name, Text: output}
	}
	return output, nil
}

// Close terminates the provider process and releases the channel.
// Idempotent.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.session == nil {
		s.closed = true
		return nil
	}
	s.closed = true
	return s.session.Close()
}

// convertTool converts an MCP tool descriptor into an Operation.
func convertTool(sessionID string, t *mcp.Tool) (Operation, error) {
	var schema json.RawMessage
	if t.InputSchema != nil {
		data, err := json.Marshal(t.InputSchema)
		if err != nil {
			return Operation{}, fmt.Errorf("marshaling input schema: %w", err)
		}
		schema = data
	}

	return Operation{
		Name:        t.Name,
		Description: t.Description,
		InputSchema: schema,
		SessionID:   sessionID,
	}, nil
}

// textContent concatenates the text parts of a tool result.
func textContent(result *mcp.CallToolResult) string {
	var output string
	for _, content := range result.Content {
		if tc, ok := content.(*mcp.TextContent); ok {
			if output != "" {
				output += "\n"
			}
			output += tc.Text
		}
	}
	return output
}
