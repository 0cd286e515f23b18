package wards

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/varunrao/wardstream/internal/api"
	"github.com/varunrao/wardstream/internal/model"
)

// Config holds Ward Registry configuration.
type Config struct {
	ReconcileInterval time.Duration
	PageSize          int

	// IDs pins the registry to an explicit ward list. Empty means every
	// active ward from the catalog, optionally narrowed by City.
	IDs  []string
	City string
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		ReconcileInterval: 5 * time.Minute,
		PageSize:          500,
	}
}

// registryImpl implements the Registry interface.
type registryImpl struct {
	cfg    Config
	rest   *api.Client
	logger *slog.Logger

	state *registryState

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewRegistry creates a new Ward Registry.
func NewRegistry(cfg Config, rest *api.Client, logger *slog.Logger) Registry {
	if logger == nil {
		logger = slog.Default()
	}

	return &registryImpl{
		cfg:    cfg,
		rest:   rest,
		logger: logger,
		state:  newState(),
	}
}

// Start performs the initial sync and begins background reconciliation.
func (r *registryImpl) Start(ctx context.Context) error {
	r.ctx, r.cancel = context.WithCancel(ctx)

	// Initial sync (blocking).
	if err := r.initialSync(r.ctx); err != nil {
		r.cancel()
		return err
	}

	// Start background reconciliation.
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.reconciliationLoop(r.ctx)
	}()

	r.logger.Info("ward registry started",
		"active_wards", len(r.state.activeSet),
		"total_wards", len(r.state.wards),
	)

	return nil
}

// Stop gracefully shuts down.
func (r *registryImpl) Stop(ctx context.Context) error {
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
		r.logger.Info("ward registry stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ActiveWards returns all wards currently selected for streaming.
func (r *registryImpl) ActiveWards() []model.Ward {
	return r.state.getActiveWards()
}

// GetWard returns a specific ward by ID.
func (r *registryImpl) GetWard(id string) (model.Ward, bool) {
	return r.state.getWard(id)
}

// SubscribeChanges returns a channel of ward catalog changes.
func (r *registryImpl) SubscribeChanges() <-chan WardChange {
	return r.state.changes
}

// reconciliationLoop periodically re-syncs with the catalog.
func (r *registryImpl) reconciliationLoop(ctx context.Context) {
	ticker := time.NewTicker(r.cfg.ReconcileInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.reconcile(ctx)
		}
	}
}
