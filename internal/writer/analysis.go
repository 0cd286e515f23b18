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

// AnalysisWriter consumes AnalysisRecord from the router queue and writes to
// the ward_analyses table.
type AnalysisWriter struct {
	cfg    WriterConfig
	logger *slog.Logger

	// Input from Event Router
	input *router.ElasticQueue[model.AnalysisRecord]

	// Database
	db *pgxpool.Pool

	// Batching
	batch       []analysisRow
	batchMu     sync.Mutex
	flushTicker *time.Ticker

	// Lifecycle
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// Metrics
	metrics WriterMetrics
}

// NewAnalysisWriter creates a new AnalysisWriter.
func NewAnalysisWriter(
	cfg WriterConfig,
	input *router.ElasticQueue[model.AnalysisRecord],
	db *pgxpool.Pool,
	logger *slog.Logger,
) *AnalysisWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &AnalysisWriter{
		cfg:    cfg,
		input:  input,
		db:     db,
		logger: logger,
		batch:  make([]analysisRow, 0, cfg.BatchSize),
	}
}

// Start begins consuming records and writing to the database.
func (w *AnalysisWriter) Start(ctx context.Context) error {
	w.ctx, w.cancel = context.WithCancel(ctx)
	w.flushTicker = time.NewTicker(w.cfg.FlushInterval)

	// Consumer goroutine
	w.wg.Add(1)
	go w.consumeLoop()

	// Flush ticker goroutine
	w.wg.Add(1)
	go w.flushLoop()

	w.logger.Info("analysis writer started",
		"batch_size", w.cfg.BatchSize,
		"flush_interval", w.cfg.FlushInterval,
	)
	return nil
}

// Stop gracefully shuts down the writer.
func (w *AnalysisWriter) Stop(ctx context.Context) error {
	w.logger.Info("stopping analysis writer")

	if w.cancel != nil {
		w.cancel()
	}

	if w.flushTicker != nil {
		w.flushTicker.Stop()
	}

	// Wait for goroutines
	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		w.logger.Info("analysis writer stopped")
	case <-ctx.Done():
		w.logger.Warn("analysis writer stop timed out")
	}

	// Final flush
	w.flush()

	return nil
}

// Stats returns current metrics.
func (w *AnalysisWriter) Stats() WriterMetrics {
	w.batchMu.Lock()
	defer w.batchMu.Unlock()
	return w.metrics
}

// consumeLoop reads from the input queue and accumulates batches.
func (w *AnalysisWriter) consumeLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return
		default:
			// Use TryPop with context check for responsiveness
			rec, ok := w.input.TryPop()
			if !ok {
				// Queue empty, wait a bit before trying again
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
func (w *AnalysisWriter) flushLoop() {
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
func (w *AnalysisWriter) handleRecord(rec model.AnalysisRecord) {
	row := w.transform(rec)

	w.batchMu.Lock()
	w.batch = append(w.batch, row)
	shouldFlush := len(w.batch) >= w.cfg.BatchSize
	w.batchMu.Unlock()

	if shouldFlush {
		w.flush()
	}
}

// transform converts an AnalysisRecord to an analysisRow.
func (w *AnalysisWriter) transform(rec model.AnalysisRecord) analysisRow {
	return analysisRow{
		RunID:      rec.RunID.String(),
		WardID:     rec.WardID,
		Depth:      rec.Depth,
		Section:    rec.Section,
		Content:    rec.Content,
		Confidence: confidenceToBasisPoints(rec.Confidence),
		ModelName:  rec.ModelName,
		ServerTS:   rec.ServerTS,
		ReceivedAt: rec.ReceivedAt,
	}
}

// flush writes the current batch to the database.
func (w *AnalysisWriter) flush() {
	w.batchMu.Lock()
	if len(w.batch) == 0 {
		w.batchMu.Unlock()
		return
	}

	// Take ownership of current batch
	batch := w.batch
	w.batch = make([]analysisRow, 0, w.cfg.BatchSize)
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

	w.logger.Debug("flushed analyses",
		"count", len(batch),
		"conflicts", conflicts,
		"duration", time.Since(start),
	)
}

// batchInsert inserts rows using pgx.Batch with ON CONFLICT DO NOTHING.
// Replayed fragments after a session-continuity reconnect land on the same
// (run_id, section) key and are dropped as conflicts.
func (w *AnalysisWriter) batchInsert(rows []analysisRow) (conflicts int, err error) {
	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(`
			INSERT INTO ward_analyses (run_id, ward_id, depth, section, content, confidence, model_name, server_ts, received_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (run_id, section) DO NOTHING
		`, r.RunID, r.WardID, r.Depth, r.Section, r.Content, r.Confidence, r.ModelName, r.ServerTS, r.ReceivedAt)
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
