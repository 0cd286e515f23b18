// Package api provides the REST client for the political intelligence
// backend.
//
// Endpoints (relative to the configured base URL, e.g.
// http://localhost:5000/api/v1):
//   - GET  /wards                      ward catalog, cursor-paginated
//   - GET  /wards/{id}                 single ward
//   - POST /strategist/analyze        queue an analysis run
//   - GET  /strategist/status/{ward}  run status for a ward
//
// The strategist stream itself is not served here; see internal/stream.
package api
