package router

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/varunrao/wardstream/internal/model"
)

// Router parses raw strategist stream payloads and routes them to the
// archive writers.
type Router interface {
	// Start begins routing payloads from the input channel to the queues.
	Start(ctx context.Context) error

	// Stop gracefully shuts down the router.
	Stop(ctx context.Context) error

	// Queues returns the output queues for writers to consume.
	Queues() RouterQueues

	// Stats returns current router statistics.
	Stats() RouterStats
}

// RouterQueues provides access to the output queues.
type RouterQueues struct {
	Analysis   *ElasticQueue[model.AnalysisRecord]
	Progress   *ElasticQueue[model.ProgressRecord]
	Completion *ElasticQueue[model.CompletionRecord]
}

// RouterStats contains runtime statistics.
type RouterStats struct {
	PayloadsReceived int64
	PayloadsRouted   int64
	ParseErrors      int64
	SkippedPayloads  int64
	AnalysisQueue    QueueStats
	ProgressQueue    QueueStats
	CompletionQueue  QueueStats
}

// router is the internal implementation.
type router struct {
	cfg    RouterConfig
	logger *slog.Logger

	// Input from the stream managers
	input <-chan Inbound

	// Output to writers
	analysisQ   *ElasticQueue[model.AnalysisRecord]
	progressQ   *ElasticQueue[model.ProgressRecord]
	completionQ *ElasticQueue[model.CompletionRecord]

	// Lifecycle
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// Stats
	mu       sync.RWMutex
	received int64
	routed   int64
	parseErr int64
	skipped  int64
}

// NewRouter creates a new Event Router.
func NewRouter(cfg RouterConfig, input <-chan Inbound, logger *slog.Logger) Router {
	if logger == nil {
		logger = slog.Default()
	}

	return &router{
		cfg:         cfg,
		logger:      logger,
		input:       input,
		analysisQ:   NewElasticQueue[model.AnalysisRecord](cfg.AnalysisQueueSize),
		progressQ:   NewElasticQueue[model.ProgressRecord](cfg.ProgressQueueSize),
		completionQ: NewElasticQueue[model.CompletionRecord](cfg.CompletionQueueSize),
	}
}

// Start begins routing payloads.
func (r *router) Start(ctx context.Context) error {
	r.ctx, r.cancel = context.WithCancel(ctx)

	r.wg.Add(1)
	go r.routeLoop()

	r.logger.Info("event router started",
		"analysis_queue", r.cfg.AnalysisQueueSize,
		"progress_queue", r.cfg.ProgressQueueSize,
		"completion_queue", r.cfg.CompletionQueueSize,
	)

	return nil
}

// Stop gracefully shuts down the router.
func (r *router) Stop(ctx context.Context) error {
	r.logger.Info("stopping event router")

	if r.cancel != nil {
		r.cancel()
	}

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.logger.Info("event router stopped")
	case <-ctx.Done():
		r.logger.Warn("event router stop timed out")
	}

	// Close output queues so writers drain and exit
	r.analysisQ.Close()
	r.progressQ.Close()
	r.completionQ.Close()

	return nil
}

// Queues returns the output queues for writers.
func (r *router) Queues() RouterQueues {
	return RouterQueues{
		Analysis:   r.analysisQ,
		Progress:   r.progressQ,
		Completion: r.completionQ,
	}
}

// Stats returns current statistics.
func (r *router) Stats() RouterStats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return RouterStats{
		PayloadsReceived: r.received,
		PayloadsRouted:   r.routed,
		ParseErrors:      r.parseErr,
		SkippedPayloads:  r.skipped,
		AnalysisQueue:    r.analysisQ.Stats(),
		ProgressQueue:    r.progressQ.Stats(),
		CompletionQueue:  r.completionQ.Stats(),
	}
}

// routeLoop is the main routing goroutine.
func (r *router) routeLoop() {
	defer r.wg.Done()

	for {
		select {
		case <-r.ctx.Done():
			return
		case in, ok := <-r.input:
			if !ok {
				r.logger.Info("input channel closed")
				return
			}
			r.route(in)
		}
	}
}

// route parses and routes a single payload.
func (r *router) route(in Inbound) {
	r.mu.Lock()
	r.received++
	r.mu.Unlock()

	var env payloadEnvelope
	if err := json.Unmarshal(in.Data, &env); err != nil {
		r.logger.Warn("failed to extract payload type", "ward", in.WardID, "error", err)
		r.countParseError()
		return
	}

	var queued bool

	switch env.Type {
	case "strategist-analysis":
		rec, err := r.parseAnalysis(in)
		if err != nil {
			r.logger.Warn("failed to parse analysis payload", "ward", in.WardID, "error", err)
			r.countParseError()
			return
		}
		queued = r.analysisQ.Push(rec)

	case "analysis-progress":
		rec, err := r.parseProgress(in)
		if err != nil {
			r.logger.Warn("failed to parse progress payload", "ward", in.WardID, "error", err)
			r.countParseError()
			return
		}
		queued = r.progressQ.Push(rec)

	case "analysis-complete":
		rec, err := r.parseCompletion(in)
		if err != nil {
			r.logger.Warn("failed to parse completion payload", "ward", in.WardID, "error", err)
			r.countParseError()
			return
		}
		queued = r.completionQ.Push(rec)

	default:
		// Heartbeats and lifecycle notices carry no archivable content
		if env.Type != "heartbeat" {
			r.logger.Debug("skipping payload type", "type", env.Type)
		}
		r.mu.Lock()
		r.skipped++
		r.mu.Unlock()
		return
	}

	if queued {
		r.mu.Lock()
		r.routed++
		r.mu.Unlock()
	}
}

func (r *router) countParseError() {
	r.mu.Lock()
	r.parseErr++
	r.mu.Unlock()
}

// parseAnalysis parses a strategist-analysis payload.
func (r *router) parseAnalysis(in Inbound) (model.AnalysisRecord, error) {
	var wire analysisWire
	if err := json.Unmarshal(in.Data, &wire); err != nil {
		return model.AnalysisRecord{}, err
	}

	runID, err := uuid.Parse(wire.RunID)
	if err != nil {
		return model.AnalysisRecord{}, fmt.Errorf("bad run_id %q: %w", wire.RunID, err)
	}

	return model.AnalysisRecord{
		RunID:      runID,
		WardID:     wardID(wire.WardID, in),
		Depth:      wire.Depth,
		Section:    wire.Section,
		Content:    wire.Content,
		Confidence: wire.Confidence,
		ModelName:  wire.Model,
		ServerTS:   parseServerTS(wire.Timestamp),
		ReceivedAt: in.ReceivedAt.UnixMicro(),
	}, nil
}

// parseProgress parses an analysis-progress payload.
func (r *router) parseProgress(in Inbound) (model.ProgressRecord, error) {
	var wire progressWire
	if err := json.Unmarshal(in.Data, &wire); err != nil {
		return model.ProgressRecord{}, err
	}

	runID, err := uuid.Parse(wire.RunID)
	if err != nil {
		return model.ProgressRecord{}, fmt.Errorf("bad run_id %q: %w", wire.RunID, err)
	}

	return model.ProgressRecord{
		RunID:      runID,
		WardID:     wardID(wire.WardID, in),
		Stage:      wire.Stage,
		Percent:    wire.Percent,
		ETASeconds: wire.ETASeconds,
		ServerTS:   parseServerTS(wire.Timestamp),
		ReceivedAt: in.ReceivedAt.UnixMicro(),
	}, nil
}

// parseCompletion parses an analysis-complete payload.
func (r *router) parseCompletion(in Inbound) (model.CompletionRecord, error) {
	var wire completionWire
	if err := json.Unmarshal(in.Data, &wire); err != nil {
		return model.CompletionRecord{}, err
	}

	runID, err := uuid.Parse(wire.RunID)
	if err != nil {
		return model.CompletionRecord{}, fmt.Errorf("bad run_id %q: %w", wire.RunID, err)
	}

	return model.CompletionRecord{
		RunID:       runID,
		WardID:      wardID(wire.WardID, in),
		Status:      wire.Status,
		Summary:     wire.Summary,
		SectionsOK:  wire.SectionsOK,
		SectionsErr: wire.SectionsErr,
		DurationMS:  wire.DurationMS,
		ServerTS:    parseServerTS(wire.Timestamp),
		ReceivedAt:  in.ReceivedAt.UnixMicro(),
	}, nil
}

// wardID prefers the ward named in the payload; payloads from older backend
// versions omit it, in which case the stream's ward applies.
func wardID(wire string, in Inbound) string {
	if wire != "" {
		return wire
	}
	return in.WardID
}

// parseServerTS converts an RFC 3339 server timestamp to microseconds.
// Returns 0 for a missing or malformed timestamp.
func parseServerTS(ts string) int64 {
	if ts == "" {
		return 0
	}
	t, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return 0
	}
	return t.UnixMicro()
}
