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

// ProgressWriter consumes ProgressRecord from the router queue and writes to
// the analysis_progress table.
type ProgressWriter struct {
	cfg    WriterConfig
	logger *slog.Logger

	// Input from Event Router
	input *router.ElasticQueue[model.ProgressRecord]

	// Database
	db *pgxpool.Pool

	// Batching
	batch       []progressRow
	batchMu     sync.Mutex
	flushTicker *time.Ticker

	// Lifecycle
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// Metrics
	metrics WriterMetrics
}

// NewProgressWriter creates a new ProgressWriter.
func NewProgressWriter(
	cfg WriterConfig,
	input *router.ElasticQueue[model.ProgressRecord],
	db *pgxpool.Pool,
	logger *slog.Logger,
) *ProgressWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProgressWriter{
		cfg:    cfg,
		input:  input,
		db:     db,
		logger: logger,
		batch:  make([]progressRow, 0, cfg.BatchSize),
	}
}

// Start begins consuming records and writing to the database.
func (w *ProgressWriter) Start(ctx context.Context) error {
	w.ctx, w.cancel = context.WithCancel(ctx)
	w.flushTicker = time.NewTicker(w.cfg.FlushInterval)

	w.wg.Add(1)
	go w.consumeLoop()

	w.wg.Add(1)
	go w.flushLoop()

	w.logger.Info("progress writer started",
		"batch_size", w.cfg.BatchSize,
		"flush_interval", w.cfg.FlushInterval,
	)
	return nil
}

// Stop gracefully shuts down the writer.
func (w *ProgressWriter) Stop(ctx context.Context) error {
	w.logger.Info("stopping progress writer")

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
		w.logger.Info("progress writer stopped")
	case <-ctx.Done():
		w.logger.Warn("progress writer stop timed out")
	}

	w.flush()

	return nil
}

// Stats returns current metrics.
func (w *ProgressWriter) Stats() WriterMetrics {
	w.batchMu.Lock()
	defer w.batchMu.Unlock()
	return w.metrics
}

// consumeLoop reads from the input queue and accumulates batches.
func (w *ProgressWriter) consumeLoop() {
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
func (w *ProgressWriter) flushLoop() {
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
func (w *ProgressWriter) handleRecord(rec model.ProgressRecord) {
	row := w.transform(rec)

	w.batchMu.Lock()
	w.batch = append(w.batch, row)
	shouldFlush := len(w.batch) >= w.cfg.BatchSize
	w.batchMu.Unlock()

	if shouldFlush {
		w.flush()
	}
}

// transform converts a ProgressRecord to a progressRow.
func (w *ProgressWriter) transform(rec model.ProgressRecord) progressRow {
	return progressRow{
		RunID:      rec.RunID.String(),
		WardID:     rec.WardID,
		Stage:      rec.Stage,
		Percent:    rec.Percent,
		ETASeconds: rec.ETASeconds,
		ServerTS:   rec.ServerTS,
		ReceivedAt: rec.ReceivedAt,
	}
}

// flush writes the current batch to the database.
func (w *ProgressWriter) flush() {
	w.batchMu.Lock()
	if len(w.batch) == 0 {
		w.batchMu.Unlock()
		return
	}

	batch := w.batch
	w.batch = make([]progressRow, 0, w.cfg.BatchSize)
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

	w.logger.Debug("flushed progress marks",
		"count", len(batch),
		"conflicts", conflicts,
		"duration", time.Since(start),
	)
}

// batchInsert inserts rows using pgx.Batch with ON CONFLICT DO NOTHING.
// A run re-emits its latest progress mark after a replay; the
// (run_id, stage, percent) key keeps the table free of duplicates.
func (w *ProgressWriter) batchInsert(rows []progressRow) (conflicts int, err error) {
	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(`
			INSERT INTO analysis_progress (run_id, ward_id, stage, percent, eta_seconds, server_ts, received_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (run_id, stage, percent) DO NOTHING
		`, r.RunID, r.WardID, r.Stage, r.Percent, r.ETASeconds, r.ServerTS, r.ReceivedAt)
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
