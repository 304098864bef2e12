// Command dialog runs the interactive capability host: it connects the
// configured MCP providers, then reads user queries from stdin and
// answers them through the reasoning engine, invoking provider
// operations as requested.
//
// Special inputs: "exit" quits, "clear" drops the conversation history
// without disconnecting providers.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rhuss/dialog/pkg/config"
	"github.com/rhuss/dialog/pkg/engine"
	"github.com/rhuss/dialog/pkg/provider/openaichat"
	"github.com/rhuss/dialog/pkg/router"
	"github.com/rhuss/dialog/pkg/scratch"
	"github.com/rhuss/dialog/pkg/session"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		slog.Error("dialog failed", "error", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Scratch space: start from a clean slate, leave a clean slate.
	scratchMgr, err := scratch.New(cfg.Scratch.Root, cfg.Scratch.TTL, cfg.Scratch.MaxMegabytes*1024*1024)
	if err != nil {
		return err
	}
	if err := scratchMgr.ClearAll(); err != nil {
		return err
	}
	defer func() {
		if err := scratchMgr.ClearAll(); err != nil {
			slog.Warn("clearing scratch at shutdown failed", "error", err)
		}
	}()

	prov, err := openaichat.New(openaichat.Config{
		BaseURL: cfg.Engine.BackendURL,
		APIKey:  cfg.Engine.APIKey,
	})
	if err != nil {
		return fmt.Errorf("creating provider: %w", err)
	}
	defer prov.Close()

	// Startup sanity check against the configured backend. Non-fatal:
	// some backends do not implement the models endpoint.
	if models, err := prov.ListModels(ctx); err != nil {
		slog.Warn("listing backend models failed", "error", err)
	} else {
		slog.Info("backend reachable", "models", len(models))
	}

	var rt *router.Router
	if cfg.Router.Enabled {
		pipelines, err := router.LoadPipelines(cfg.Router.PipelinesPath)
		if err != nil {
			return err
		}
		scorer, err := openaichat.New(openaichat.Config{BaseURL: cfg.Router.BackendURL})
		if err != nil {
			return fmt.Errorf("creating scoring provider: %w", err)
		}
		defer scorer.Close()
		rt = router.New(scorer, cfg.Router.Model, pipelines)
		slog.Info("relevance router enabled",
			"pipelines", len(pipelines),
			"threshold", cfg.Router.Threshold,
		)
	}

	registry := session.NewRegistry()
	defer registry.CloseAll()

	providers := make([]session.ProviderConfig, 0, len(cfg.Sessions))
	for _, s := range cfg.Sessions {
		providers = append(providers, session.ProviderConfig{ID: s.ID, Path: s.Path})
	}
	registry.ConnectAll(ctx, providers)

	for _, op := range registry.Catalog(ctx) {
		slog.Info("operation available", "operation", op.Name, "session", op.SessionID)
	}

	eng, err := engine.New(prov, registry, rt, engine.Config{
		Model:           cfg.Engine.Model,
		Temperature:     &cfg.Engine.Temperature,
		MaxRounds:       cfg.Engine.MaxRounds,
		SystemPrompt:    cfg.Engine.SystemPrompt,
		ImageOperation:  cfg.Engine.ImageOperation,
		RouterThreshold: cfg.Router.Threshold,
		MaxHistoryPairs: cfg.History.MaxPairs,
	})
	if err != nil {
		return fmt.Errorf("creating engine: %w", err)
	}

	if cfg.Observability.Metrics.Enabled {
		go serveMetrics(cfg.Observability.Metrics)
	}

	return chatLoop(ctx, eng, scratchMgr)
}

// chatLoop reads queries from stdin until EOF or "exit". Errors during
// a turn are shown to the user and recorded as a synthetic pair so the
// conversation stays coherent.
func chatLoop(ctx context.Context, eng *engine.Engine, scratchMgr *scratch.Manager) error {
	fmt.Println("dialog ready. Type 'exit' to quit, 'clear' to drop the conversation history.")

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		query := strings.TrimSpace(scanner.Text())

		switch {
		case query == "":
			continue
		case strings.EqualFold(query, "exit"):
			return nil
		case strings.EqualFold(query, "clear"):
			eng.ClearHistory()
			fmt.Println("conversation history cleared")
			continue
		}

		answer, err := eng.ProcessQuery(ctx, query)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			msg := fmt.Sprintf("query failed: %v", err)
			fmt.Println(msg)
			eng.RecordFailure(query, msg)
		} else {
			fmt.Println(answer)
		}

		if err := scratchMgr.Reclaim(); err != nil {
			slog.Warn("scratch reclamation failed", "error", err)
		}
	}
}

// serveMetrics exposes the Prometheus registry on its own listener.
func serveMetrics(cfg config.MetricsConfig) {
	mux := http.NewServeMux()
	mux.Handle(cfg.Path, promhttp.Handler())

	addr := fmt.Sprintf(":%d", cfg.Port)
	slog.Info("metrics listener starting", "addr", addr, "path", cfg.Path)
	if err := http.ListenAndServe(addr, mux); err != nil {
		slog.Warn("metrics listener failed", "error", err)
	}
}
