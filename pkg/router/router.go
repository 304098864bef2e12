package router

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/rhuss/dialog/pkg/api"
	"github.com/rhuss/dialog/pkg/observability"
	"github.com/rhuss/dialog/pkg/provider"
)

const scorerSystemPrompt = "You are a relevance scorer. Given user questions " +
	"(including previous rounds) and a tool pipeline, output a single float " +
	"between 0 and 1 indicating how helpful the pipeline is.\n" +
	"0 = no help, 1 = essential. Only output the number."

// Router scores pipelines against the current query and narrows the
// effective operation catalog. A nil *Router is valid and selects
// nothing, meaning the full catalog is used.
type Router struct {
	provider  provider.Provider
	model     string
	pipelines []Pipeline
}

// New creates a Router that scores the given pipelines through the
// given scoring backend.
func New(p provider.Provider, model string, pipelines []Pipeline) *Router {
	return &Router{provider: p, model: model, pipelines: pipelines}
}

// Score issues one deterministic scoring call for the pipeline and
// returns a scalar in [0,1]. A failed call or a non-numeric response
// scores 0: broad tool access is never granted on a parse failure.
func (r *Router) Score(ctx context.Context, p Pipeline, query string, recent []string) float64 {
	var history strings.Builder
	for _, q := range recent {
		fmt.Fprintf(&history, "- %s\n", q)
	}

	user := fmt.Sprintf(
		"Recent questions:\n%s\nCurrent question: %s\nPipeline: %s\nDescription: %s",
		history.String(), query, p.Name, p.Description,
	)

	temperature := 0.0
	maxTokens := 5
	resp, err := r.provider.Complete(ctx, &provider.Request{
		Model: r.model,
		Messages: []api.Message{
			api.SystemMessage(scorerSystemPrompt),
			api.UserMessage(user),
		},
		Temperature: &temperature,
		MaxTokens:   &maxTokens,
		Stop:        []string{"\n", " "},
	})
	if err != nil {
		slog.Warn("pipeline scoring failed", "pipeline", p.Name, "error", err)
		return 0
	}

	score := parseScore(resp.Message.Content)
	observability.RouterScores.WithLabelValues(p.Name).Observe(score)
	return score
}

// parseScore extracts the first token as a float literal, clamped to
// [0,1]. Malformed output scores 0.
func parseScore(text string) float64 {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return 0
	}
	score, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return 0
	}
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

// SelectOperations unions the member operations of every pipeline
// scoring at or above the threshold, preserving first-seen order across
// pipelines and de-duplicating. An empty result means: do not filter,
// use the full catalog.
func (r *Router) SelectOperations(ctx context.Context, query string, recent []string, threshold float64) []string {
	if r == nil {
		return nil
	}

	var candidates []string
	for _, p := range r.pipelines {
		if r.Score(ctx, p, query, recent) >= threshold {
			candidates = append(candidates, p.Operations...)
		}
	}

	seen := make(map[string]bool, len(candidates))
	var selected []string
	for _, op := range candidates {
		if seen[op] {
			continue
		}
		seen[op] = true
		selected = append(selected, op)
	}
	return selected
}
