package writer

import (
	"time"
)

// WriterConfig contains configuration for batch writers.
type WriterConfig struct {
	// BatchSize is the number of rows to accumulate before flushing.
	BatchSize int

	// FlushInterval is the maximum time between flushes.
	FlushInterval time.Duration
}

// DefaultWriterConfig returns sensible defaults.
func DefaultWriterConfig() WriterConfig {
	return WriterConfig{
		BatchSize:     500,
		FlushInterval: 5 * time.Second,
	}
}

// analysisRow represents a row for the ward_analyses table.
type analysisRow struct {
	RunID      string // UUID
	WardID     string
	Depth      string
	Section    string
	Content    string
	Confidence int // Basis points (0-10,000)
	ModelName  string
	ServerTS   int64 // Microseconds
	ReceivedAt int64 // Microseconds
}

// progressRow represents a row for the analysis_progress table.
type progressRow struct {
	RunID      string
	WardID     string
	Stage      string
	Percent    int
	ETASeconds int
	ServerTS   int64
	ReceivedAt int64
}

// completionRow represents a row for the analysis_runs table.
type completionRow struct {
	RunID       string
	WardID      string
	Status      string
	Summary     string
	SectionsOK  int
	SectionsErr int
	DurationMS  int64
	ServerTS    int64
	ReceivedAt  int64
}

// WriterMetrics holds metrics for a writer.
type WriterMetrics struct {
	Inserts   int64
	Conflicts int64
	Errors    int64
	Flushes   int64
}

// confidenceToBasisPoints converts a [0, 1] confidence to integer basis
// points, clamping out-of-range values from misbehaving upstream models.
func confidenceToBasisPoints(c float64) int {
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 10000
	}
	return int(c*10000 + 0.5)
}
