// streamtest opens a single ward's strategist stream and prints parsed events
// to the console. Useful for eyeballing a live backend without a database.
//
// Usage: go run ./cmd/streamtest --url http://localhost:5000/api/v1 --ward jubilee-hills
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/varunrao/wardstream/internal/model"
	"github.com/varunrao/wardstream/internal/router"
	"github.com/varunrao/wardstream/internal/stream"
)

func main() {
	baseURL := flag.String("url", "http://localhost:5000/api/v1", "stream endpoint base URL")
	wardID := flag.String("ward", "", "ward to stream (required)")
	depth := flag.String("depth", "standard", "analysis depth: quick, standard, deep")
	analysisContext := flag.String("context", "", "analysis context hint")
	transport := flag.String("transport", "sse", "transport: sse or websocket")
	verbose := flag.Bool("verbose", false, "print full event JSON")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	if *wardID == "" {
		logger.Error("missing required flag: -ward")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal")
		cancel()
	}()

	// Build the stream manager with the chosen transport
	tc := stream.DefaultTransportConfig()
	mgrCfg := stream.DefaultConfig()
	mgrCfg.Logger = logger
	switch *transport {
	case "websocket":
		mgrCfg.Dial = stream.NewWebSocketDialer(tc, logger)
	case "sse":
		mgrCfg.Dial = stream.NewSSEDialer(tc, logger)
	default:
		logger.Error("unknown transport", "transport", *transport)
		os.Exit(1)
	}
	mgr := stream.NewManager(mgrCfg)

	// Bridge stream payloads into the router
	inbound := make(chan router.Inbound, 1000)
	forward := func(ev stream.Event) {
		select {
		case inbound <- router.Inbound{WardID: *wardID, Data: ev.Data, ReceivedAt: ev.ReceivedAt}:
		case <-ctx.Done():
		}
	}
	mgr.On(stream.EventAnalysis, forward)
	mgr.On(stream.EventProgress, forward)
	mgr.On(stream.EventComplete, forward)

	mgr.On(stream.EventConnected, func(ev stream.Event) {
		logger.Info("connected", "connection_id", mgr.ConnectionID())
	})
	mgr.On(stream.EventReconnecting, func(ev stream.Event) {
		logger.Warn("reconnecting",
			"attempt", ev.Reconnect.Attempt,
			"max_attempts", ev.Reconnect.MaxAttempts,
			"delay", ev.Reconnect.Delay,
		)
	})
	mgr.On(stream.EventReconnectFailed, func(ev stream.Event) {
		logger.Error("reconnect exhausted", "attempts", ev.Reconnect.Attempt)
		cancel()
	})
	mgr.On(stream.EventHeartbeatTimeout, func(ev stream.Event) {
		logger.Warn("heartbeat stale", "action", ev.Timeout.Action, "elapsed", ev.Timeout.Elapsed)
	})
	mgr.On(stream.EventError, func(ev stream.Event) {
		logger.Error("stream error", "error", ev.Err)
	})

	rtr := router.NewRouter(router.DefaultRouterConfig(), inbound, logger)
	if err := rtr.Start(ctx); err != nil {
		logger.Error("failed to start router", "error", err)
		os.Exit(1)
	}

	url := stream.StreamURL(*baseURL, *wardID, *depth, *analysisContext)
	logger.Info("connecting", "url", url, "transport", *transport)
	if err := mgr.Connect(ctx, url); err != nil {
		logger.Error("failed to connect", "error", err)
		os.Exit(1)
	}

	// Console printers
	queues := rtr.Queues()
	go printAnalyses(ctx, queues.Analysis, *verbose)
	go printProgress(ctx, queues.Progress, *verbose)
	go printCompletions(ctx, queues.Completion, *verbose)

	// Stats printer
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				stats := rtr.Stats()
				status := mgr.Status()
				logger.Info("stats",
					"connected", status.Connected,
					"health", status.Health,
					"since_heartbeat", status.SinceHeartbeat,
					"received", stats.PayloadsReceived,
					"routed", stats.PayloadsRouted,
					"parse_errors", stats.ParseErrors,
					"analysis_depth", stats.AnalysisQueue.Depth,
					"progress_depth", stats.ProgressQueue.Depth,
				)
			}
		}
	}()

	logger.Info("streaming started - press Ctrl+C to stop")

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	logger.Info("shutting down...")
	mgr.Close()
	rtr.Stop(shutdownCtx)

	logger.Info("shutdown complete")
}

func printAnalyses(ctx context.Context, q *router.ElasticQueue[model.AnalysisRecord], verbose bool) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
			rec, ok := q.TryPop()
			if !ok {
				time.Sleep(10 * time.Millisecond)
				continue
			}

			if verbose {
				data, _ := json.MarshalIndent(rec, "", "  ")
				fmt.Printf("[ANALYSIS] %s\n", data)
			} else {
				fmt.Printf("[ANALYSIS] run=%s ward=%s section=%s confidence=%.2f chars=%d\n",
					rec.RunID, rec.WardID, rec.Section, rec.Confidence, len(rec.Content))
			}
		}
	}
}

func printProgress(ctx context.Context, q *router.ElasticQueue[model.ProgressRecord], verbose bool) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
			rec, ok := q.TryPop()
			if !ok {
				time.Sleep(10 * time.Millisecond)
				continue
			}

			if verbose {
				data, _ := json.MarshalIndent(rec, "", "  ")
				fmt.Printf("[PROGRESS] %s\n", data)
			} else {
				fmt.Printf("[PROGRESS] run=%s ward=%s stage=%s percent=%d eta=%ds\n",
					rec.RunID, rec.WardID, rec.Stage, rec.Percent, rec.ETASeconds)
			}
		}
	}
}

func printCompletions(ctx context.Context, q *router.ElasticQueue[model.CompletionRecord], verbose bool) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
			rec, ok := q.TryPop()
			if !ok {
				time.Sleep(10 * time.Millisecond)
				continue
			}

			if verbose {
				data, _ := json.MarshalIndent(rec, "", "  ")
				fmt.Printf("[COMPLETE] %s\n", data)
			} else {
				fmt.Printf("[COMPLETE] run=%s ward=%s status=%s sections_ok=%d sections_err=%d duration=%dms\n",
					rec.RunID, rec.WardID, rec.Status, rec.SectionsOK, rec.SectionsErr, rec.DurationMS)
			}
		}
	}
}
