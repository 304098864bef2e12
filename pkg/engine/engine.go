package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rhuss/dialog/pkg/api"
	"github.com/rhuss/dialog/pkg/observability"
	"github.com/rhuss/dialog/pkg/provider"
	"github.com/rhuss/dialog/pkg/router"
	"github.com/rhuss/dialog/pkg/session"
)

// Engine runs query turns: it sends the growing message list plus the
// (possibly narrowed) operation catalog to the reasoning engine,
// executes requested operations via the session registry, folds results
// back, and commits a trimmed summary into the conversation history.
//
// Turns are serialized by a single-owner lock around the
// read-modify-commit sequence; no two turns interleave their history
// commits.
type Engine struct {
	provider provider.Provider
	registry *session.Registry
	router   *router.Router
	cfg      Config

	mu      sync.Mutex
	history *history
	recent  *router.Window
}

// New creates an Engine. Provider and registry must not be nil; the
// router may be nil, which disables catalog narrowing.
func New(p provider.Provider, reg *session.Registry, rt *router.Router, cfg Config) (*Engine, error) {
	if p == nil {
		return nil, fmt.Errorf("engine: provider must not be nil")
	}
	if reg == nil {
		return nil, fmt.Errorf("engine: registry must not be nil")
	}
	return &Engine{
		provider: p,
		registry: reg,
		router:   rt,
		cfg:      cfg,
		history:  newHistory(cfg.maxHistoryPairs(), cfg.SystemPrompt),
		recent:   router.NewWindow(5),
	}, nil
}

// ProcessQuery runs one full turn from a user query to a committed
// final answer, potentially spanning multiple rounds of operation
// requests. On error nothing is committed; the caller decides how to
// record the failure (see RecordFailure).
func (e *Engine) ProcessQuery(ctx context.Context, query string) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	start := time.Now()
	answer, err := e.runTurn(ctx, query)
	observability.TurnDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		observability.TurnsTotal.WithLabelValues("error").Inc()
		return "", err
	}
	observability.TurnsTotal.WithLabelValues("success").Inc()
	return answer, nil
}

// runTurn executes the agentic loop. Callers hold e.mu.
func (e *Engine) runTurn(ctx context.Context, query string) (string, error) {
	working := append(e.history.messages(), api.UserMessage(query))
	commitFrom := len(working) - 1

	e.recent.Add(query)

	tools := catalogTools(e.registry.Catalog(ctx))
	if e.router != nil {
		selected := e.router.SelectOperations(ctx, query, e.recent.Items(), e.cfg.routerThreshold())
		if len(selected) > 0 {
			tools = filterTools(tools, selected)
		}
	}

	for round := 0; round < e.cfg.maxRounds(); round++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		resp, err := e.complete(ctx, working, tools)
		if err != nil {
			return "", err
		}
		working = append(working, resp.Message)

		if resp.FinishReason != provider.FinishToolCalls || len(resp.Message.ToolCalls) == 0 {
			e.history.commit(committable(working[commitFrom:])...)
			return resp.Message.Content, nil
		}

		working, err = e.executeCalls(ctx, working, resp.Message.ToolCalls)
		if err != nil {
			return "", err
		}
	}

	return "", fmt.Errorf("no final answer after %d reasoning rounds", e.cfg.maxRounds())
}

// executeCalls runs one batch of requested invocations strictly in the
// order the engine requested them. Results of the image-loading
// operation are queued and appended after the batch as user messages
// with inline image content, so they appear to the engine as freshly
// supplied user context rather than tool output. An unknown operation
// is fatal for the turn: continuing would desynchronize the
// call/response pairing the engine expects.
func (e *Engine) executeCalls(ctx context.Context, working []api.Message, calls []api.ToolCall) ([]api.Message, error) {
	var imageQueue []string

	for _, call := range calls {
		output, err := e.registry.Invoke(ctx, call.Name, call.Arguments)
		if err != nil {
			var invErr *session.InvocationError
			if !errors.As(err, &invErr) {
				observability.OperationInvocationsTotal.WithLabelValues(call.Name, "error").Inc()
				return working, err
			}
			// Provider-reported failure: surface as the operation's
			// result content so the engine can react.
			slog.Warn("operation invocation failed",
				"operation", call.Name,
				"call_id", call.ID,
				"error", invErr.Text,
			)
			observability.OperationInvocationsTotal.WithLabelValues(call.Name, "error").Inc()
			working = append(working, api.ToolMessage(call.ID, invErr.Text))
			continue
		}

		observability.OperationInvocationsTotal.WithLabelValues(call.Name, "success").Inc()
		slog.Info("operation invoked", "operation", call.Name, "call_id", call.ID)

		if call.Name == e.cfg.imageOperation() {
			imageQueue = append(imageQueue, output)
			continue
		}
		working = append(working, api.ToolMessage(call.ID, output))
	}

	for _, img := range imageQueue {
		working = append(working, api.ImageMessage(img))
	}
	return working, nil
}

// complete performs one reasoning call with metrics.
func (e *Engine) complete(ctx context.Context, msgs []api.Message, tools []provider.ToolDefinition) (*provider.Response, error) {
	start := time.Now()
	resp, err := e.provider.Complete(ctx, &provider.Request{
		Model:       e.cfg.Model,
		Messages:    msgs,
		Tools:       tools,
		Temperature: e.cfg.Temperature,
	})
	duration := time.Since(start)
	name := e.provider.Name()

	if err != nil {
		observability.ProviderRequestsTotal.WithLabelValues(name, e.cfg.Model, "error").Inc()
		observability.ProviderLatency.WithLabelValues(name, e.cfg.Model).Observe(duration.Seconds())
		return nil, err
	}

	observability.ProviderRequestsTotal.WithLabelValues(name, e.cfg.Model, "success").Inc()
	observability.ProviderLatency.WithLabelValues(name, e.cfg.Model).Observe(duration.Seconds())
	observability.ProviderTokensTotal.WithLabelValues(name, e.cfg.Model, "input").Add(float64(resp.Usage.InputTokens))
	observability.ProviderTokensTotal.WithLabelValues(name, e.cfg.Model, "output").Add(float64(resp.Usage.OutputTokens))
	return resp, nil
}

// committable strips a finished turn down to what persists: tool
// messages are dropped, assistant tool-call envelopes are removed, and
// assistant messages left with no content disappear with them.
func committable(turn []api.Message) []api.Message {
	var out []api.Message
	for _, m := range turn {
		if m.Role == api.RoleTool {
			continue
		}
		if m.Role == api.RoleAssistant {
			m.ToolCalls = nil
			if m.Content == "" && len(m.Parts) == 0 {
				continue
			}
		}
		out = append(out, m)
	}
	return out
}

// catalogTools converts operation descriptors into the schema payload
// sent to the reasoning engine.
func catalogTools(catalog []session.Operation) []provider.ToolDefinition {
	var tools []provider.ToolDefinition
	for _, op := range catalog {
		tools = append(tools, provider.ToolDefinition{
			Name:        op.Name,
			Description: op.Description,
			Parameters:  op.InputSchema,
		})
	}
	return tools
}

// filterTools keeps the definitions whose names the router selected,
// preserving catalog order.
func filterTools(tools []provider.ToolDefinition, selected []string) []provider.ToolDefinition {
	keep := make(map[string]bool, len(selected))
	for _, name := range selected {
		keep[name] = true
	}
	var out []provider.ToolDefinition
	for _, t := range tools {
		if keep[t.Name] {
			out = append(out, t)
		}
	}
	return out
}

// RecordFailure appends the user's query and the error text as a
// synthetic pair, keeping the conversation coherent after a failed
// turn instead of silently losing the exchange.
func (e *Engine) RecordFailure(query, errText string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.history.commit(api.UserMessage(query), api.AssistantMessage(errText))
}

// ClearHistory drops the committed conversation. Sessions stay
// connected; the system prompt stays seeded.
func (e *Engine) ClearHistory() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.history.clear()
}

// Transcript returns a snapshot of the committed conversation without
// the system prompt, for rendering by the presentation layer.
func (e *Engine) Transcript() []api.Message {
	e.mu.Lock()
	defer e.mu.Unlock()

	msgs := e.history.messages()
	var out []api.Message
	for _, m := range msgs {
		if m.Role == api.RoleSystem {
			continue
		}
		out = append(out, m)
	}
	return out
}
