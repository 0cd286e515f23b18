package router

import "time"

// RouterConfig holds configuration for the Event Router.
type RouterConfig struct {
	// Output queue initial capacities
	AnalysisQueueSize   int // Default: 2000
	ProgressQueueSize   int // Default: 1000
	CompletionQueueSize int // Default: 500
}

// DefaultRouterConfig returns default configuration.
func DefaultRouterConfig() RouterConfig {
	return RouterConfig{
		AnalysisQueueSize:   2000,
		ProgressQueueSize:   1000,
		CompletionQueueSize: 500,
	}
}

// Inbound is one raw application payload lifted off a ward stream. WardID is
// the ward whose stream delivered the payload; the payload itself also names
// a ward and the two normally agree.
type Inbound struct {
	WardID     string
	Data       []byte
	ReceivedAt time.Time
}

// Wire types for JSON parsing

// analysisWire is the wire format for strategist-analysis payloads.
type analysisWire struct {
	Type       string  `json:"type"`
	RunID      string  `json:"run_id"`
	WardID     string  `json:"ward_id"`
	Depth      string  `json:"depth"`
	Section    string  `json:"section"`
	Content    string  `json:"content"`
	Confidence float64 `json:"confidence"`
	Model      string  `json:"model"`
	Timestamp  string  `json:"timestamp"` // RFC 3339
}

// progressWire is the wire format for analysis-progress payloads.
type progressWire struct {
	Type       string `json:"type"`
	RunID      string `json:"run_id"`
	WardID     string `json:"ward_id"`
	Stage      string `json:"stage"`
	Percent    int    `json:"percent"`
	ETASeconds int    `json:"eta_seconds"`
	Timestamp  string `json:"timestamp"`
}

// completionWire is the wire format for analysis-complete payloads.
type completionWire struct {
	Type        string `json:"type"`
	RunID       string `json:"run_id"`
	WardID      string `json:"ward_id"`
	Status      string `json:"status"`
	Summary     string `json:"summary"`
	SectionsOK  int    `json:"sections_ok"`
	SectionsErr int    `json:"sections_err"`
	DurationMS  int64  `json:"duration_ms"`
	Timestamp   string `json:"timestamp"`
}

// payloadEnvelope is used for fast type extraction.
type payloadEnvelope struct {
	Type string `json:"type"`
}
