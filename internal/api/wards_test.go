package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClient_GetWards(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/wards" {
			t.Errorf("path = %s, want /wards", r.URL.Path)
		}
		if got := r.URL.Query().Get("city"); got != "hyderabad" {
			t.Errorf("city = %q, want hyderabad", got)
		}
		if got := r.URL.Query().Get("status"); got != "active" {
			t.Errorf("status = %q, want active", got)
		}

		json.NewEncoder(w).Encode(WardsResponse{
			Wards: []APIWard{
				{ID: "jubilee-hills", Name: "Jubilee Hills", City: "hyderabad", Status: "active", VoterCount: 310000},
				{ID: "kukatpally", Name: "Kukatpally", City: "hyderabad", Status: "active", VoterCount: 425000},
			},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, WithLogger(testLogger()))

	resp, err := c.GetWards(context.Background(), GetWardsOptions{City: "hyderabad", Status: "active"})
	if err != nil {
		t.Fatalf("GetWards failed: %v", err)
	}
	if len(resp.Wards) != 2 {
		t.Fatalf("got %d wards, want 2", len(resp.Wards))
	}
	if resp.Wards[0].ID != "jubilee-hills" {
		t.Errorf("wards[0].ID = %s, want jubilee-hills", resp.Wards[0].ID)
	}
	if resp.Wards[1].VoterCount != 425000 {
		t.Errorf("wards[1].VoterCount = %d, want 425000", resp.Wards[1].VoterCount)
	}
}

func TestClient_GetAllWards_Paginates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("cursor") {
		case "":
			json.NewEncoder(w).Encode(WardsResponse{
				Wards:  []APIWard{{ID: "w1"}, {ID: "w2"}},
				Cursor: "page2",
			})
		case "page2":
			json.NewEncoder(w).Encode(WardsResponse{
				Wards: []APIWard{{ID: "w3"}},
			})
		default:
			t.Errorf("unexpected cursor %q", r.URL.Query().Get("cursor"))
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL, WithLogger(testLogger()))

	wards, err := c.GetAllWards(context.Background())
	if err != nil {
		t.Fatalf("GetAllWards failed: %v", err)
	}
	if len(wards) != 3 {
		t.Fatalf("got %d wards, want 3", len(wards))
	}
	for i, want := range []string{"w1", "w2", "w3"} {
		if wards[i].ID != want {
			t.Errorf("wards[%d].ID = %s, want %s", i, wards[i].ID, want)
		}
	}
}

func TestClient_GetWard(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/wards/uppal" {
			t.Errorf("path = %s, want /wards/uppal", r.URL.Path)
		}
		json.NewEncoder(w).Encode(SingleWardResponse{
			Ward: APIWard{ID: "uppal", Name: "Uppal", Zone: "east"},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, WithLogger(testLogger()))

	ward, err := c.GetWard(context.Background(), "uppal")
	if err != nil {
		t.Fatalf("GetWard failed: %v", err)
	}
	if ward.Name != "Uppal" {
		t.Errorf("Name = %s, want Uppal", ward.Name)
	}
	if ward.Zone != "east" {
		t.Errorf("Zone = %s, want east", ward.Zone)
	}
}

func TestClient_RequestAnalysis(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if r.URL.Path != "/strategist/analyze" {
			t.Errorf("path = %s, want /strategist/analyze", r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q, want application/json", ct)
		}

		var req AnalyzeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.WardID != "banjara-hills" {
			t.Errorf("ward_id = %s, want banjara-hills", req.WardID)
		}
		if req.Depth != "deep" {
			t.Errorf("depth = %s, want deep", req.Depth)
		}

		json.NewEncoder(w).Encode(AnalyzeResponse{
			RunID:  "0f4a3fbe-32a1-4f94-a77b-1f6ad1a3c001",
			WardID: req.WardID,
			Status: "queued",
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, WithLogger(testLogger()))

	resp, err := c.RequestAnalysis(context.Background(), AnalyzeRequest{
		WardID:  "banjara-hills",
		Depth:   "deep",
		Context: "municipal elections",
	})
	if err != nil {
		t.Fatalf("RequestAnalysis failed: %v", err)
	}
	if resp.Status != "queued" {
		t.Errorf("Status = %s, want queued", resp.Status)
	}
	if resp.RunID == "" {
		t.Error("RunID missing")
	}
}

func TestClient_GetRunStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/strategist/status/kukatpally" {
			t.Errorf("path = %s, want /strategist/status/kukatpally", r.URL.Path)
		}
		json.NewEncoder(w).Encode(RunStatusResponse{
			WardID:  "kukatpally",
			RunID:   "0f4a3fbe-32a1-4f94-a77b-1f6ad1a3c001",
			State:   "running",
			Stage:   "sentiment",
			Percent: 40,
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, WithLogger(testLogger()))

	st, err := c.GetRunStatus(context.Background(), "kukatpally")
	if err != nil {
		t.Fatalf("GetRunStatus failed: %v", err)
	}
	if st.State != "running" {
		t.Errorf("State = %s, want running", st.State)
	}
	if st.Percent != 40 {
		t.Errorf("Percent = %d, want 40", st.Percent)
	}
}
