package model

import "github.com/google/uuid"

// -----------------------------------------------------------------------------
// Catalog Types
// -----------------------------------------------------------------------------

// Ward represents a single electoral ward tracked by the platform.
type Ward struct {
	ID         string  // Primary key (e.g., "jubilee-hills")
	Name       string  // Display name (e.g., "Jubilee Hills")
	City       string  // Parent city
	Zone       string  // Administrative zone
	Status     string  // Status: active, dormant, archived
	VoterCount int64   // Registered voters
	Centroid   GeoPoint
	UpdatedAt  int64 // Last update (µs since epoch)
}

// GeoPoint is a WGS84 coordinate pair.
type GeoPoint struct {
	Lat float64
	Lon float64
}

// -----------------------------------------------------------------------------
// Stream Event Types
// -----------------------------------------------------------------------------

// AnalysisRecord is a completed strategist analysis fragment for a ward.
type AnalysisRecord struct {
	RunID      uuid.UUID // Analysis run identifier (from server)
	WardID     string    // Ward this analysis covers
	Depth      string    // Requested depth: quick, standard, deep
	Section    string    // Analysis section (e.g., "sentiment", "opposition")
	Content    string    // Generated analysis text
	Confidence float64   // Model confidence in [0, 1]
	ModelName  string    // Upstream model that produced this fragment
	ServerTS   int64     // Server timestamp (µs since epoch)
	ReceivedAt int64     // Client receive timestamp (µs since epoch)
}

// ProgressRecord marks incremental progress of an analysis run.
type ProgressRecord struct {
	RunID      uuid.UUID // Analysis run identifier
	WardID     string    // Ward under analysis
	Stage      string    // Current pipeline stage
	Percent    int       // Completion percentage (0-100)
	ETASeconds int       // Server-estimated seconds remaining, 0 if unknown
	ServerTS   int64     // Server timestamp (µs since epoch)
	ReceivedAt int64     // Client receive timestamp (µs since epoch)
}

// CompletionRecord marks the end of an analysis run.
type CompletionRecord struct {
	RunID       uuid.UUID // Analysis run identifier
	WardID      string    // Ward that was analyzed
	Status      string    // "completed", "partial", or "failed"
	Summary     string    // Final summary text
	SectionsOK  int       // Sections generated successfully
	SectionsErr int       // Sections that failed
	DurationMS  int64     // Total run duration in milliseconds
	ServerTS    int64     // Server timestamp (µs since epoch)
	ReceivedAt  int64     // Client receive timestamp (µs since epoch)
}
