package router

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDefaultRouterConfig(t *testing.T) {
	cfg := DefaultRouterConfig()

	if cfg.AnalysisQueueSize != 2000 {
		t.Errorf("AnalysisQueueSize = %d, want 2000", cfg.AnalysisQueueSize)
	}
	if cfg.ProgressQueueSize != 1000 {
		t.Errorf("ProgressQueueSize = %d, want 1000", cfg.ProgressQueueSize)
	}
	if cfg.CompletionQueueSize != 500 {
		t.Errorf("CompletionQueueSize = %d, want 500", cfg.CompletionQueueSize)
	}
}

func TestRouter_StartStop(t *testing.T) {
	input := make(chan Inbound, 10)
	r := NewRouter(DefaultRouterConfig(), input, testLogger())

	ctx := context.Background()
	if err := r.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	time.Sleep(10 * time.Millisecond)

	stopCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()

	if err := r.Stop(stopCtx); err != nil {
		t.Errorf("Stop failed: %v", err)
	}
}

// feed routes one payload and waits until the router fully processed it.
func feed(t *testing.T, input chan Inbound, r Router, wardID, payload string) {
	t.Helper()

	settled := func(s RouterStats) int64 {
		return s.PayloadsRouted + s.ParseErrors + s.SkippedPayloads
	}

	before := settled(r.Stats())
	input <- Inbound{WardID: wardID, Data: []byte(payload), ReceivedAt: time.Now()}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if settled(r.Stats()) > before {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("payload was not consumed")
}

func TestRouter_ParseAnalysis(t *testing.T) {
	input := make(chan Inbound, 10)
	r := NewRouter(DefaultRouterConfig(), input, testLogger())

	ctx := context.Background()
	if err := r.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer r.Stop(ctx)

	runID := uuid.NewString()
	payload := fmt.Sprintf(`{
		"type": "strategist-analysis",
		"run_id": %q,
		"ward_id": "jubilee-hills",
		"depth": "standard",
		"section": "sentiment",
		"content": "Voter sentiment has shifted since the flyover announcement.",
		"confidence": 0.82,
		"model": "strategist-v3",
		"timestamp": "2025-06-01T12:00:05Z"
	}`, runID)

	feed(t, input, r, "jubilee-hills", payload)

	rec, ok := r.Queues().Analysis.TryPop()
	if !ok {
		t.Fatal("expected an analysis record")
	}
	if rec.RunID.String() != runID {
		t.Errorf("RunID = %s, want %s", rec.RunID, runID)
	}
	if rec.WardID != "jubilee-hills" {
		t.Errorf("WardID = %s, want jubilee-hills", rec.WardID)
	}
	if rec.Section != "sentiment" {
		t.Errorf("Section = %s, want sentiment", rec.Section)
	}
	if rec.Confidence != 0.82 {
		t.Errorf("Confidence = %f, want 0.82", rec.Confidence)
	}
	if rec.ModelName != "strategist-v3" {
		t.Errorf("ModelName = %s, want strategist-v3", rec.ModelName)
	}
	wantTS := time.Date(2025, 6, 1, 12, 0, 5, 0, time.UTC).UnixMicro()
	if rec.ServerTS != wantTS {
		t.Errorf("ServerTS = %d, want %d", rec.ServerTS, wantTS)
	}
	if rec.ReceivedAt == 0 {
		t.Error("ReceivedAt not set")
	}
}

func TestRouter_ParseProgress(t *testing.T) {
	input := make(chan Inbound, 10)
	r := NewRouter(DefaultRouterConfig(), input, testLogger())

	ctx := context.Background()
	if err := r.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer r.Stop(ctx)

	runID := uuid.NewString()
	payload := fmt.Sprintf(`{
		"type": "analysis-progress",
		"run_id": %q,
		"ward_id": "kukatpally",
		"stage": "opposition-research",
		"percent": 60,
		"eta_seconds": 45,
		"timestamp": "2025-06-01T12:01:00Z"
	}`, runID)

	feed(t, input, r, "kukatpally", payload)

	rec, ok := r.Queues().Progress.TryPop()
	if !ok {
		t.Fatal("expected a progress record")
	}
	if rec.Stage != "opposition-research" {
		t.Errorf("Stage = %s, want opposition-research", rec.Stage)
	}
	if rec.Percent != 60 {
		t.Errorf("Percent = %d, want 60", rec.Percent)
	}
	if rec.ETASeconds != 45 {
		t.Errorf("ETASeconds = %d, want 45", rec.ETASeconds)
	}
}

func TestRouter_ParseCompletion(t *testing.T) {
	input := make(chan Inbound, 10)
	r := NewRouter(DefaultRouterConfig(), input, testLogger())

	ctx := context.Background()
	if err := r.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer r.Stop(ctx)

	runID := uuid.NewString()
	payload := fmt.Sprintf(`{
		"type": "analysis-complete",
		"run_id": %q,
		"ward_id": "uppal",
		"status": "completed",
		"summary": "Six sections generated.",
		"sections_ok": 6,
		"sections_err": 0,
		"duration_ms": 48200,
		"timestamp": "2025-06-01T12:02:00Z"
	}`, runID)

	feed(t, input, r, "uppal", payload)

	rec, ok := r.Queues().Completion.TryPop()
	if !ok {
		t.Fatal("expected a completion record")
	}
	if rec.Status != "completed" {
		t.Errorf("Status = %s, want completed", rec.Status)
	}
	if rec.SectionsOK != 6 {
		t.Errorf("SectionsOK = %d, want 6", rec.SectionsOK)
	}
	if rec.DurationMS != 48200 {
		t.Errorf("DurationMS = %d, want 48200", rec.DurationMS)
	}
}

func TestRouter_WardFallsBackToStream(t *testing.T) {
	input := make(chan Inbound, 10)
	r := NewRouter(DefaultRouterConfig(), input, testLogger())

	ctx := context.Background()
	if err := r.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer r.Stop(ctx)

	payload := fmt.Sprintf(`{
		"type": "strategist-analysis",
		"run_id": %q,
		"section": "sentiment",
		"content": "x",
		"timestamp": "2025-06-01T12:00:05Z"
	}`, uuid.NewString())

	feed(t, input, r, "serilingampally", payload)

	rec, ok := r.Queues().Analysis.TryPop()
	if !ok {
		t.Fatal("expected an analysis record")
	}
	if rec.WardID != "serilingampally" {
		t.Errorf("WardID = %s, want stream ward serilingampally", rec.WardID)
	}
}

func TestRouter_CountsErrorsAndSkips(t *testing.T) {
	input := make(chan Inbound, 10)
	r := NewRouter(DefaultRouterConfig(), input, testLogger())

	ctx := context.Background()
	if err := r.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer r.Stop(ctx)

	// Malformed JSON
	feed(t, input, r, "w1", `{not json`)
	// Known type, bad run_id
	feed(t, input, r, "w1", `{"type":"strategist-analysis","run_id":"nope"}`)
	// Heartbeats and unknown types are skipped, not errors
	feed(t, input, r, "w1", `{"type":"heartbeat","timestamp":"2025-06-01T12:00:00Z"}`)
	feed(t, input, r, "w1", `{"type":"catalog-update"}`)

	stats := r.Stats()
	if stats.PayloadsReceived != 4 {
		t.Errorf("PayloadsReceived = %d, want 4", stats.PayloadsReceived)
	}
	if stats.ParseErrors != 2 {
		t.Errorf("ParseErrors = %d, want 2", stats.ParseErrors)
	}
	if stats.SkippedPayloads != 2 {
		t.Errorf("SkippedPayloads = %d, want 2", stats.SkippedPayloads)
	}
	if stats.PayloadsRouted != 0 {
		t.Errorf("PayloadsRouted = %d, want 0", stats.PayloadsRouted)
	}
}
