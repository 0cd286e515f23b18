// Package model defines shared data types used across the ward stream platform.
//
// Conventions:
//   - Timestamps: int64 microseconds since Unix epoch
//   - Confidence scores: float64 in [0.0, 1.0]
//   - IDs: string for ward identifiers, uuid.UUID for analysis run IDs
package model
