package wards

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/varunrao/wardstream/internal/api"
	"github.com/varunrao/wardstream/internal/model"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// -----------------------------------------------------------------------------
// State
// -----------------------------------------------------------------------------

func upsert(s *registryState, w model.Ward) {
	s.mu.Lock()
	s.upsertWardLocked(w)
	s.mu.Unlock()
}

func TestState_UpsertAndGet(t *testing.T) {
	s := newState()

	upsert(s, model.Ward{
		ID:     "jubilee-hills",
		Name:   "Jubilee Hills",
		City:   "hyderabad",
		Status: "active",
	})

	got, ok := s.getWard("jubilee-hills")
	if !ok {
		t.Fatal("ward not found")
	}
	if got.Name != "Jubilee Hills" {
		t.Errorf("Name = %q, want %q", got.Name, "Jubilee Hills")
	}
	if got.Status != "active" {
		t.Errorf("Status = %q, want %q", got.Status, "active")
	}
}

func TestState_GetWard_NotFound(t *testing.T) {
	s := newState()

	if _, ok := s.getWard("nonexistent"); ok {
		t.Error("expected ward not found")
	}
}

func TestState_ActiveWards(t *testing.T) {
	s := newState()

	for _, w := range []model.Ward{
		{ID: "active-1", Status: "active"},
		{ID: "active-2", Status: "active"},
		{ID: "dormant-1", Status: "dormant"},
		{ID: "archived-1", Status: "archived"},
	} {
		upsert(s, w)
	}

	active := s.getActiveWards()
	if len(active) != 2 {
		t.Errorf("len(active) = %d, want 2", len(active))
	}

	activeMap := make(map[string]bool)
	for _, w := range active {
		activeMap[w.ID] = true
	}
	if !activeMap["active-1"] || !activeMap["active-2"] {
		t.Errorf("active set = %v, want active-1 and active-2", activeMap)
	}
}

func TestState_UpsertDemotesWard(t *testing.T) {
	s := newState()

	upsert(s, model.Ward{ID: "w1", Status: "active"})
	upsert(s, model.Ward{ID: "w1", Status: "dormant"})

	if got := len(s.getActiveWards()); got != 0 {
		t.Errorf("len(active) = %d, want 0 after demotion", got)
	}
	w, _ := s.getWard("w1")
	if w.Status != "dormant" {
		t.Errorf("Status = %q, want dormant", w.Status)
	}
}

func TestState_NotifyChange_DropsOldestWhenFull(t *testing.T) {
	s := newState()

	for i := 0; i < ChangeBufferSize+5; i++ {
		s.notifyChange(WardChange{WardID: "w", EventType: "created"})
	}

	// Channel stayed at capacity without blocking
	if got := len(s.changes); got != ChangeBufferSize {
		t.Errorf("len(changes) = %d, want %d", got, ChangeBufferSize)
	}
}

// -----------------------------------------------------------------------------
// Registry against a mock catalog
// -----------------------------------------------------------------------------

// mockCatalog serves a mutable ward catalog.
type mockCatalog struct {
	mu    sync.Mutex
	wards []api.APIWard
}

func (m *mockCatalog) set(wards ...api.APIWard) {
	m.mu.Lock()
	m.wards = wards
	m.mu.Unlock()
}

func (m *mockCatalog) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m.mu.Lock()
		defer m.mu.Unlock()

		if r.URL.Path != "/wards" {
			http.NotFound(w, r)
			return
		}
		json.NewEncoder(w).Encode(api.WardsResponse{Wards: m.wards})
	}
}

func newTestRegistry(t *testing.T, catalog *mockCatalog, cfg Config) (Registry, func()) {
	t.Helper()

	srv := httptest.NewServer(catalog.handler())
	client := api.NewClient(srv.URL, api.WithLogger(testLogger()))
	reg := NewRegistry(cfg, client, testLogger())

	return reg, srv.Close
}

func collectChanges(ch <-chan WardChange, n int, timeout time.Duration) []WardChange {
	var out []WardChange
	deadline := time.After(timeout)
	for len(out) < n {
		select {
		case c := <-ch:
			out = append(out, c)
		case <-deadline:
			return out
		}
	}
	return out
}

func TestRegistry_InitialSync(t *testing.T) {
	catalog := &mockCatalog{}
	catalog.set(
		api.APIWard{ID: "jubilee-hills", Name: "Jubilee Hills", Status: "active"},
		api.APIWard{ID: "kukatpally", Name: "Kukatpally", Status: "active"},
	)

	cfg := DefaultConfig()
	cfg.ReconcileInterval = time.Hour // No background noise during the test
	reg, closeSrv := newTestRegistry(t, catalog, cfg)
	defer closeSrv()

	if err := reg.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer reg.Stop(context.Background())

	if got := len(reg.ActiveWards()); got != 2 {
		t.Errorf("ActiveWards = %d, want 2", got)
	}

	changes := collectChanges(reg.SubscribeChanges(), 2, time.Second)
	if len(changes) != 2 {
		t.Fatalf("got %d changes, want 2", len(changes))
	}
	for _, c := range changes {
		if c.EventType != "created" {
			t.Errorf("EventType = %q, want created", c.EventType)
		}
		if c.Ward == nil {
			t.Error("created change missing ward data")
		}
	}
}

func TestRegistry_InitialSyncFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "catalog down", http.StatusBadGateway)
	}))
	defer srv.Close()

	client := api.NewClient(srv.URL,
		api.WithRetries(0, time.Millisecond),
		api.WithLogger(testLogger()),
	)
	reg := NewRegistry(DefaultConfig(), client, testLogger())

	if err := reg.Start(context.Background()); err == nil {
		t.Fatal("expected Start to fail when the catalog is unreachable")
	}
}

func TestRegistry_ReconcileDetectsNewAndRemoved(t *testing.T) {
	catalog := &mockCatalog{}
	catalog.set(api.APIWard{ID: "w1", Status: "active"})

	cfg := DefaultConfig()
	cfg.ReconcileInterval = 20 * time.Millisecond
	reg, closeSrv := newTestRegistry(t, catalog, cfg)
	defer closeSrv()

	if err := reg.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer reg.Stop(context.Background())

	// Drain the initial created event
	collectChanges(reg.SubscribeChanges(), 1, time.Second)

	// w1 drops out of the catalog, w2 appears
	catalog.set(api.APIWard{ID: "w2", Status: "active"})

	changes := collectChanges(reg.SubscribeChanges(), 2, 2*time.Second)
	if len(changes) != 2 {
		t.Fatalf("got %d changes, want 2: %+v", len(changes), changes)
	}

	byType := make(map[string]WardChange)
	for _, c := range changes {
		byType[c.EventType] = c
	}

	created, ok := byType["created"]
	if !ok || created.WardID != "w2" {
		t.Errorf("created change = %+v, want ward w2", created)
	}
	removed, ok := byType["removed"]
	if !ok || removed.WardID != "w1" {
		t.Errorf("removed change = %+v, want ward w1", removed)
	}

	active := reg.ActiveWards()
	if len(active) != 1 || active[0].ID != "w2" {
		t.Errorf("ActiveWards = %+v, want only w2", active)
	}
}

func TestRegistry_ExplicitWardList(t *testing.T) {
	var paths []string
	var mu sync.Mutex

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		paths = append(paths, r.URL.Path)
		mu.Unlock()

		id := r.URL.Path[len("/wards/"):]
		json.NewEncoder(w).Encode(api.SingleWardResponse{
			Ward: api.APIWard{ID: id, Status: "active"},
		})
	}))
	defer srv.Close()

	client := api.NewClient(srv.URL, api.WithLogger(testLogger()))
	cfg := DefaultConfig()
	cfg.ReconcileInterval = time.Hour
	cfg.IDs = []string{"jubilee-hills", "uppal"}
	reg := NewRegistry(cfg, client, testLogger())

	if err := reg.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer reg.Stop(context.Background())

	if got := len(reg.ActiveWards()); got != 2 {
		t.Errorf("ActiveWards = %d, want 2", got)
	}

	mu.Lock()
	defer mu.Unlock()
	want := map[string]bool{"/wards/jubilee-hills": true, "/wards/uppal": true}
	for _, p := range paths {
		if !want[p] {
			t.Errorf("unexpected catalog request %q", p)
		}
	}
}
