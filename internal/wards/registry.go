package wards

import (
	"context"

	"github.com/varunrao/wardstream/internal/model"
)

// ChangeBufferSize is the capacity of the WardChange channel.
const ChangeBufferSize = 1000

// Registry manages ward catalog discovery and lifecycle.
type Registry interface {
	// Start performs the initial catalog sync and begins background
	// reconciliation. Emits WardChange events as wards are discovered.
	Start(ctx context.Context) error

	// Stop gracefully shuts down.
	Stop(ctx context.Context) error

	// ActiveWards returns all wards currently selected for streaming.
	ActiveWards() []model.Ward

	// GetWard returns a specific ward by ID.
	GetWard(id string) (model.Ward, bool)

	// SubscribeChanges returns a channel of ward state changes. The gatherer
	// uses this to know when to open or close strategist streams.
	SubscribeChanges() <-chan WardChange
}

// WardChange represents a ward catalog transition.
type WardChange struct {
	WardID    string      // Ward identifier
	EventType string      // "created", "status_change", "removed"
	OldStatus string      // Previous status (for status_change/removed)
	NewStatus string      // New status
	Ward      *model.Ward // Full ward data (nil for "removed")
}
