package writer

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/varunrao/wardstream/internal/model"
	"github.com/varunrao/wardstream/internal/router"
)

// CompletionWriter consumes CompletionRecord from the router queue and writes
// to the analysis_runs table.
type CompletionWriter struct {
	cfg    WriterConfig
	logger *slog.Logger

	// Input from Event Router
	input *router.ElasticQueue[model.CompletionRecord]

	// Database
	db *pgxpool.Pool

	// Batching
	batch       []completionRow
	batchMu     sync.Mutex
	flushTicker *time.Ticker

	// Lifecycle
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// Metrics
	metrics WriterMetrics
}

// NewCompletionWriter creates a new CompletionWriter.
func NewCompletionWriter(
	cfg WriterConfig,
	input *router.ElasticQueue[model.CompletionRecord],
	db *pgxpool.Pool,
	logger *slog.Logger,
) *CompletionWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &CompletionWriter{
		cfg:    cfg,
		input:  input,
		db:     db,
		logger: logger,
		batch:  make([]completionRow, 0, cfg.BatchSize),
	}
}

// Start begins consuming records and writing to the database.
func (w *CompletionWriter) Start(ctx context.Context) error {
	w.ctx, w.cancel = context.WithCancel(ctx)
	w.flushTicker = time.NewTicker(w.cfg.FlushInterval)

	w.wg.Add(1)
	go w.consumeLoop()

	w.wg.Add(1)
	go w.flushLoop()

	w.logger.Info("completion writer started",
		"batch_size", w.cfg.BatchSize,
		"flush_interval", w.cfg.FlushInterval,
	)
	return nil
}

// Stop gracefully shuts down the writer.
func (w *CompletionWriter) Stop(ctx context.Context) error {
	w.logger.Info("stopping completion writer")

	if w.cancel != nil {
		w.cancel()
	}

	if w.flushTicker != nil {
		w.flushTicker.Stop()
	}

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		w.logger.Info("completion writer stopped")
	case <-ctx.Done():
		w.logger.Warn("completion writer stop timed out")
	}

	w.flush()

	return nil
}

// Stats returns current metrics.
func (w *CompletionWriter) Stats() WriterMetrics {
	w.batchMu.Lock()
	defer w.batchMu.Unlock()
	return w.metrics
}

// consumeLoop reads from the input queue and accumulates batches.
func (w *CompletionWriter) consumeLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return
		default:
			rec, ok := w.input.TryPop()
			if !ok {
				select {
				case <-w.ctx.Done():
					return
				case <-time.After(10 * time.Millisecond):
					continue
				}
			}

			w.handleRecord(rec)
		}
	}
}

// flushLoop periodically flushes the batch.
func (w *CompletionWriter) flushLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-w.flushTicker.C:
			w.flush()
		}
	}
}

// handleRecord transforms and adds a record to the batch.
func (w *CompletionWriter) handleRecord(rec model.CompletionRecord) {
	row := w.transform(rec)

	w.batchMu.Lock()
	w.batch = append(w.batch, row)
	shouldFlush := len(w.batch) >= w.cfg.BatchSize
	w.batchMu.Unlock()

	if shouldFlush {
		w.flush()
	}
}

// transform converts a CompletionRecord to a completionRow.
func (w *CompletionWriter) transform(rec model.CompletionRecord) completionRow {
	return completionRow{
		RunID:       rec.RunID.String(),
		WardID:      rec.WardID,
		Status:      rec.Status,
		Summary:     rec.Summary,
		SectionsOK:  rec.SectionsOK,
		SectionsErr: rec.SectionsErr,
		DurationMS:  rec.DurationMS,
		ServerTS:    rec.ServerTS,
		ReceivedAt:  rec.ReceivedAt,
	}
}

// flush writes the current batch to the database.
func (w *CompletionWriter) flush() {
	w.batchMu.Lock()
	if len(w.batch) == 0 {
		w.batchMu.Unlock()
		return
	}

	batch := w.batch
	w.batch = make([]completionRow, 0, w.cfg.BatchSize)
	w.batchMu.Unlock()

	start := time.Now()

	conflicts, err := w.batchInsert(batch)
	if err != nil {
		w.logger.Error("batch insert failed", "error", err, "count", len(batch))
		w.batchMu.Lock()
		w.metrics.Errors++
		w.batchMu.Unlock()
		return
	}

	w.batchMu.Lock()
	w.metrics.Inserts += int64(len(batch) - conflicts)
	w.metrics.Conflicts += int64(conflicts)
	w.metrics.Flushes++
	w.batchMu.Unlock()

	w.logger.Debug("flushed completions",
		"count", len(batch),
		"conflicts", conflicts,
		"duration", time.Since(start),
	)
}

// batchInsert inserts rows using pgx.Batch with ON CONFLICT DO NOTHING.
// One run completes exactly once; replays dedupe on run_id.
func (w *CompletionWriter) batchInsert(rows []completionRow) (conflicts int, err error) {
	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(`
			INSERT INTO analysis_runs (run_id, ward_id, status, summary, sections_ok, sections_err, duration_ms, server_ts, received_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (run_id) DO NOTHING
		`, r.RunID, r.WardID, r.Status, r.Summary, r.SectionsOK, r.SectionsErr, r.DurationMS, r.ServerTS, r.ReceivedAt)
	}

	results := w.db.SendBatch(w.ctx, batch)
	defer results.Close()

	for range rows {
		ct, err := results.Exec()
		if err != nil {
			return 0, err
		}
		if ct.RowsAffected() == 0 {
			conflicts++
		}
	}

	return conflicts, nil
}
