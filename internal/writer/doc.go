// Package writer implements batch writers for all archived stream data.
//
// Writers:
//   - Analysis writer (ward_analyses)
//   - Progress writer (analysis_progress)
//   - Completion writer (analysis_runs)
//
// All writers use append-only semantics (never update, only insert) with
// ON CONFLICT DO NOTHING, so fragments replayed after a session-continuity
// reconnect are dropped instead of duplicated.
// Model confidence is stored as integer basis points (0-10,000 = 0.0-1.0).
package writer
