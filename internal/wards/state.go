package wards

import (
	"sync"
	"time"

	"github.com/varunrao/wardstream/internal/model"
)

// registryState holds the thread-safe ward cache.
type registryState struct {
	mu sync.RWMutex

	// All known wards indexed by ID.
	wards map[string]*model.Ward

	// Wards currently selected for streaming.
	activeSet map[string]struct{}

	// Last successful catalog sync timestamp.
	lastSyncAt time.Time

	// Output channel for the gatherer.
	changes chan WardChange
}

func newState() *registryState {
	return &registryState{
		wards:     make(map[string]*model.Ward),
		activeSet: make(map[string]struct{}),
		changes:   make(chan WardChange, ChangeBufferSize),
	}
}

// getWard returns a ward by ID (read-locked).
func (s *registryState) getWard(id string) (model.Ward, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	w, ok := s.wards[id]
	if !ok {
		return model.Ward{}, false
	}
	return *w, true
}

// getActiveWards returns a copy of all streamed wards (read-locked).
func (s *registryState) getActiveWards() []model.Ward {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]model.Ward, 0, len(s.activeSet))
	for id := range s.activeSet {
		if w, ok := s.wards[id]; ok {
			result = append(result, *w)
		}
	}
	return result
}

// upsertWardLocked adds or updates a ward (caller must hold write lock).
func (s *registryState) upsertWardLocked(w model.Ward) {
	wCopy := w
	s.wards[w.ID] = &wCopy

	if isStreamable(w.Status) {
		s.activeSet[w.ID] = struct{}{}
	} else {
		delete(s.activeSet, w.ID)
	}
}

// dropLocked removes a ward from the active set, keeping the catalog entry
// with the given terminal status (caller must hold write lock).
func (s *registryState) dropLocked(id, status string) {
	if w, ok := s.wards[id]; ok {
		w.Status = status
	}
	delete(s.activeSet, id)
}

// notifyChange sends a change to the changes channel (non-blocking).
func (s *registryState) notifyChange(change WardChange) {
	select {
	case s.changes <- change:
	default:
		// Channel full, drop oldest by consuming one and retrying.
		select {
		case <-s.changes:
			s.changes <- change
		default:
		}
	}
}

// isStreamable returns true if the status means the ward should be streamed.
func isStreamable(status string) bool {
	return status == "active"
}
