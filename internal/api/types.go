package api

// APIWard is the wire representation of a ward from GET /wards.
type APIWard struct {
	ID         string      `json:"id"`
	Name       string      `json:"name"`
	City       string      `json:"city"`
	Zone       string      `json:"zone"`
	Status     string      `json:"status"` // active, dormant, archived
	VoterCount int64       `json:"voter_count"`
	Centroid   APICentroid `json:"centroid"`
	UpdatedAt  string      `json:"updated_at"` // RFC 3339
}

// APICentroid is a ward's WGS84 center point.
type APICentroid struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// WardsResponse from GET /wards.
type WardsResponse struct {
	Wards  []APIWard `json:"wards"`
	Cursor string    `json:"cursor"` // Empty on the last page
}

// SingleWardResponse from GET /wards/{id}.
type SingleWardResponse struct {
	Ward APIWard `json:"ward"`
}

// GetWardsOptions filters GET /wards.
type GetWardsOptions struct {
	Limit  int
	Cursor string
	City   string
	Status string
}

// AnalyzeRequest is the body of POST /strategist/analyze.
type AnalyzeRequest struct {
	WardID  string `json:"ward_id"`
	Depth   string `json:"depth"`             // quick, standard, deep
	Context string `json:"context,omitempty"` // Optional analysis context hint
}

// AnalyzeResponse from POST /strategist/analyze.
type AnalyzeResponse struct {
	RunID    string `json:"run_id"`
	WardID   string `json:"ward_id"`
	Status   string `json:"status"` // queued, running
	QueuedAt string `json:"queued_at"`
}

// RunStatusResponse from GET /strategist/status/{ward}.
type RunStatusResponse struct {
	WardID    string `json:"ward_id"`
	RunID     string `json:"run_id"` // Empty when no run is active
	State     string `json:"state"`  // idle, queued, running
	Stage     string `json:"stage"`
	Percent   int    `json:"percent"`
	StartedAt string `json:"started_at"`
}
