package stream

import (
	"encoding/json"
	"errors"
	"time"
)

// Errors
var (
	ErrNoURL            = errors.New("no stream URL provided")
	ErrAlreadyConnected = errors.New("already connected or connecting")
	ErrManagerClosed    = errors.New("manager closed")
	ErrNotConnected     = errors.New("not connected")
	ErrStaleConnection  = errors.New("connection stale (no heartbeat)")
	ErrBadStatus        = errors.New("unexpected response status")
	ErrBadContentType   = errors.New("unexpected content type")
)

// State is the connection lifecycle state. Owned by the Manager; transitions
// only through its methods.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateOpen         State = "open"
	StateReconnecting State = "reconnecting"
	StateClosed       State = "closed"
)

// Health classifies heartbeat staleness.
type Health string

const (
	HealthHealthy  Health = "healthy"
	HealthWarning  Health = "warning"
	HealthCritical Health = "critical"
)

// Manager lifecycle event names. Application events pass through under the
// payload's own type: strategist-analysis, analysis-progress,
// analysis-complete, heartbeat.
const (
	EventConnected        = "connected"
	EventReconnecting     = "reconnecting"
	EventReconnectFailed  = "reconnect-failed"
	EventHeartbeatTimeout = "heartbeat-timeout"
	EventManualReconnect  = "manual-reconnect-requested"
	EventError            = "error"
	EventHeartbeat        = "heartbeat"
	EventAnalysis         = "strategist-analysis"
	EventProgress         = "analysis-progress"
	EventComplete         = "analysis-complete"
)

// Heartbeat-timeout actions.
const (
	ActionWarning      = "warning"
	ActionReconnecting = "reconnecting"
)

// Event is delivered to subscribers. Application events carry Data; lifecycle
// events populate the matching metadata field instead.
type Event struct {
	Type       string
	Data       json.RawMessage // Application payload (nil for lifecycle events)
	ReceivedAt time.Time

	Reconnect *ReconnectInfo // Set on reconnecting / reconnect-failed
	Timeout   *TimeoutInfo   // Set on heartbeat-timeout
	Err       error          // Set on error events
	Raw       []byte         // Unparsed payload on parse errors
}

// ReconnectInfo describes a reconnect attempt or a terminal failure.
type ReconnectInfo struct {
	Attempt     int
	MaxAttempts int
	Delay       time.Duration // Zero on reconnect-failed
}

// TimeoutInfo describes a heartbeat staleness escalation.
type TimeoutInfo struct {
	Action  string // ActionWarning or ActionReconnecting
	Elapsed time.Duration
}

// Status is a point-in-time view of the connection.
type Status struct {
	Connected         bool
	Health            Health
	SinceHeartbeat    time.Duration // Negative when no heartbeat was ever recorded
	ReconnectAttempts int
}

// Handler receives dispatched events.
type Handler func(Event)

// HandlerID identifies a registered handler for removal.
type HandlerID uint64

// envelope is the minimal wire shape used to classify incoming payloads.
type envelope struct {
	Type      string `json:"type"`
	Timestamp string `json:"timestamp"`
}
