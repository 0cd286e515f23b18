package wards

import (
	"context"
	"fmt"
	"time"

	"github.com/varunrao/wardstream/internal/api"
)

// initialSync loads the selected wards from the catalog on startup.
func (r *registryImpl) initialSync(ctx context.Context) error {
	r.logger.Info("starting initial ward sync")
	start := time.Now()

	apiWards, err := r.fetchSelection(ctx)
	if err != nil {
		return fmt.Errorf("initial ward sync: %w", err)
	}

	r.state.mu.Lock()
	for _, aw := range apiWards {
		w := aw.ToModel()
		r.state.upsertWardLocked(w)

		if isStreamable(w.Status) {
			r.state.notifyChange(WardChange{
				WardID:    w.ID,
				EventType: "created",
				NewStatus: w.Status,
				Ward:      &w,
			})
		}
	}
	r.state.lastSyncAt = time.Now()
	r.state.mu.Unlock()

	r.logger.Info("initial sync complete",
		"total_wards", len(apiWards),
		"active_wards", len(r.state.activeSet),
		"duration", time.Since(start),
	)

	return nil
}

// fetchSelection fetches the configured ward selection: the explicit list
// when one is pinned, otherwise every active ward (optionally by city).
func (r *registryImpl) fetchSelection(ctx context.Context) ([]api.APIWard, error) {
	if len(r.cfg.IDs) > 0 {
		wards := make([]api.APIWard, 0, len(r.cfg.IDs))
		for _, id := range r.cfg.IDs {
			w, err := r.rest.GetWard(ctx, id)
			if err != nil {
				return nil, err
			}
			wards = append(wards, *w)
		}
		return wards, nil
	}

	return r.rest.GetAllWardsWithOptions(ctx, api.GetWardsOptions{
		Status: "active",
		City:   r.cfg.City,
		Limit:  r.cfg.PageSize,
	})
}

// reconcile re-fetches the selection and emits changes the stream missed.
func (r *registryImpl) reconcile(ctx context.Context) {
	start := time.Now()

	apiWards, err := r.fetchSelection(ctx)
	if err != nil {
		r.logger.Error("reconciliation failed fetching wards", "err", err)
		return
	}

	seen := make(map[string]struct{}, len(apiWards))
	var created, changed, removed int

	r.state.mu.Lock()
	for _, aw := range apiWards {
		w := aw.ToModel()
		seen[w.ID] = struct{}{}
		existing, ok := r.state.wards[w.ID]

		if !ok {
			// New ward we missed.
			r.state.upsertWardLocked(w)
			if isStreamable(w.Status) {
				r.state.notifyChange(WardChange{
					WardID:    w.ID,
					EventType: "created",
					NewStatus: w.Status,
					Ward:      &w,
				})
				created++
			}
			continue
		}

		// Status changes (explicit-list mode returns dormant wards too).
		if existing.Status != w.Status {
			oldStatus := existing.Status
			r.state.upsertWardLocked(w)

			r.state.notifyChange(WardChange{
				WardID:    w.ID,
				EventType: "status_change",
				OldStatus: oldStatus,
				NewStatus: w.Status,
				Ward:      &w,
			})
			changed++
		}
	}

	// Streamed wards that dropped out of the catalog selection. Their
	// streams must be closed, so this is a change, not housekeeping.
	for id := range r.state.activeSet {
		if _, ok := seen[id]; ok {
			continue
		}
		oldStatus := ""
		if w, ok := r.state.wards[id]; ok {
			oldStatus = w.Status
		}
		r.state.dropLocked(id, "dormant")
		r.state.notifyChange(WardChange{
			WardID:    id,
			EventType: "removed",
			OldStatus: oldStatus,
			NewStatus: "dormant",
		})
		removed++
	}
	r.state.lastSyncAt = time.Now()
	r.state.mu.Unlock()

	if created > 0 || changed > 0 || removed > 0 {
		r.logger.Info("reconciliation found changes",
			"created", created,
			"changed", changed,
			"removed", removed,
			"duration", time.Since(start),
		)
	} else {
		r.logger.Debug("reconciliation complete",
			"total_wards", len(apiWards),
			"duration", time.Since(start),
		)
	}
}
