package model

import (
	"testing"

	"github.com/google/uuid"
)

// TestZeroValues tests that zero values are handled correctly.
func TestZeroValues(t *testing.T) {
	t.Run("zero value Ward", func(t *testing.T) {
		var w Ward
		if w.ID != "" {
			t.Errorf("zero Ward.ID = %q, want empty", w.ID)
		}
		if w.VoterCount != 0 {
			t.Errorf("zero Ward.VoterCount = %d, want 0", w.VoterCount)
		}
	})

	t.Run("zero value AnalysisRecord", func(t *testing.T) {
		var a AnalysisRecord
		if a.RunID != uuid.Nil {
			t.Errorf("zero AnalysisRecord.RunID = %v, want nil UUID", a.RunID)
		}
		if a.Confidence != 0 {
			t.Errorf("zero AnalysisRecord.Confidence = %f, want 0", a.Confidence)
		}
	})
}

// TestConfidenceBounds documents the expected confidence range.
func TestConfidenceBounds(t *testing.T) {
	tests := []struct {
		name       string
		confidence float64
	}{
		{"floor", 0.0},
		{"midpoint", 0.5},
		{"ceiling", 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := AnalysisRecord{
				WardID:     "jubilee-hills",
				Confidence: tt.confidence,
			}
			if a.Confidence < 0 || a.Confidence > 1 {
				t.Errorf("Confidence = %f, want value in [0, 1]", a.Confidence)
			}
		})
	}
}
