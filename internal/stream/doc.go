// Package stream implements the strategist stream connection manager.
//
// The Manager owns exactly one logical server-push connection at a time:
//   - a pluggable transport (SSE or WebSocket) delivers raw payloads
//   - a heartbeat monitor escalates healthy -> warning -> critical
//   - a reconnect policy retries with exponential backoff up to a cap
//   - session-continuity parameters let the server replay missed events
//   - a dispatcher fans parsed events out to named subscribers
//
// Heartbeat freshness is refreshed only by heartbeat-typed events; general
// application traffic does not count. This keeps staleness detection
// meaningful when a run produces output but the server-side liveness signal
// has stopped.
package stream
