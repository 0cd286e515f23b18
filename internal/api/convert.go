package api

import (
	"time"

	"github.com/varunrao/wardstream/internal/model"
)

// ParseTimestamp parses an ISO 8601 timestamp to microseconds since epoch.
// Returns 0 for empty or invalid input.
func ParseTimestamp(iso string) int64 {
	if iso == "" {
		return 0
	}

	t, err := time.Parse(time.RFC3339, iso)
	if err != nil {
		// Try without timezone
		t, err = time.Parse("2006-01-02T15:04:05", iso)
		if err != nil {
			return 0
		}
	}

	return t.UnixMicro()
}

// NowMicro returns the current time in microseconds since epoch.
func NowMicro() int64 {
	return time.Now().UnixMicro()
}

// ToModel converts an APIWard to model.Ward.
func (w *APIWard) ToModel() model.Ward {
	return model.Ward{
		ID:         w.ID,
		Name:       w.Name,
		City:       w.City,
		Zone:       w.Zone,
		Status:     w.Status,
		VoterCount: w.VoterCount,
		Centroid: model.GeoPoint{
			Lat: w.Centroid.Lat,
			Lon: w.Centroid.Lon,
		},
		UpdatedAt: ParseTimestamp(w.UpdatedAt),
	}
}
