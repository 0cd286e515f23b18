package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/varunrao/wardstream/internal/clock"
)

// Config configures a Manager.
type Config struct {
	// Reconnect policy
	BaseDelay  time.Duration // First retry delay; doubles per attempt
	MaxDelay   time.Duration // Backoff ceiling
	MaxRetries int           // Automatic attempts before giving up

	// Heartbeat monitor
	HeartbeatWarnAfter time.Duration // Staleness before warning
	HeartbeatCritAfter time.Duration // Staleness before forced reconnect
	HeartbeatInterval  time.Duration // Monitor check cadence

	// ConnectionID restores a prior session identity. Empty = generate.
	ConnectionID string

	Clock  clock.Clock  // Injectable time source; nil = wall clock
	Dial   DialFunc     // Transport factory; nil = SSE with defaults
	Logger *slog.Logger // nil = slog.Default()
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		BaseDelay:          1 * time.Second,
		MaxDelay:           30 * time.Second,
		MaxRetries:         5,
		HeartbeatWarnAfter: 35 * time.Second,
		HeartbeatCritAfter: 45 * time.Second,
		HeartbeatInterval:  5 * time.Second,
	}
}

// Manager owns one logical strategist stream: transport lifecycle, heartbeat
// monitoring, reconnection with backoff, session continuity, and event
// dispatch. Instances are independent; create one per logical stream.
type Manager struct {
	cfg    Config
	logger *slog.Logger
	clk    clock.Clock
	dial   DialFunc
	disp   *dispatcher

	mu            sync.Mutex
	state         State
	connID        string
	lastHeartbeat time.Time // Zero until the first heartbeat or open
	retryCount    int
	health        Health
	transport     Transport
	targetURL     string
	ctx           context.Context

	// Cancellable handles; Disconnect stops every one of them
	reconnectTimer clock.Timer
	monitorTimer   clock.Timer
	readDone       chan struct{}

	// gen invalidates callbacks belonging to a superseded connection cycle
	gen int
}

// NewManager creates a Manager. It does not connect.
func NewManager(cfg Config) *Manager {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	if cfg.Dial == nil {
		cfg.Dial = NewSSEDialer(DefaultTransportConfig(), cfg.Logger)
	}

	connID := cfg.ConnectionID
	if connID == "" {
		connID = uuid.NewString()
	}

	return &Manager{
		cfg:    cfg,
		logger: cfg.Logger,
		clk:    cfg.Clock,
		dial:   cfg.Dial,
		disp:   newDispatcher(cfg.Logger),
		state:  StateDisconnected,
		connID: connID,
		health: HealthHealthy,
	}
}

// On registers a handler for the named event and returns its removal ID.
func (m *Manager) On(event string, h Handler) HandlerID {
	return m.disp.on(event, h)
}

// Off removes a previously registered handler.
func (m *Manager) Off(event string, id HandlerID) {
	m.disp.off(event, id)
}

// ConnectionID returns the stable session identity.
func (m *Manager) ConnectionID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connID
}

// ResetConnectionID generates a fresh session identity. The server treats the
// next connect as a brand-new session.
func (m *Manager) ResetConnectionID() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connID = uuid.NewString()
	m.lastHeartbeat = time.Time{}
}

// State returns the current connection state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Status returns a point-in-time view of the connection.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	since := time.Duration(-1)
	health := HealthHealthy
	if !m.lastHeartbeat.IsZero() {
		since = m.clk.Now().Sub(m.lastHeartbeat)
		switch {
		case since >= m.cfg.HeartbeatCritAfter:
			health = HealthCritical
		case since >= m.cfg.HeartbeatWarnAfter:
			health = HealthWarning
		}
	}

	return Status{
		Connected:         m.state == StateOpen,
		Health:            health,
		SinceHeartbeat:    since,
		ReconnectAttempts: m.retryCount,
	}
}

// Connect opens the stream. Completion is asynchronous: the connected event
// fires once the transport reports open. A fresh Connect starts a fresh retry
// cycle.
func (m *Manager) Connect(ctx context.Context, rawURL string) error {
	if rawURL == "" {
		return ErrNoURL
	}
	if ctx == nil {
		ctx = context.Background()
	}

	m.mu.Lock()
	switch m.state {
	case StateClosed:
		m.mu.Unlock()
		return ErrManagerClosed
	case StateOpen, StateConnecting:
		m.mu.Unlock()
		return ErrAlreadyConnected
	}

	m.stopTimersLocked()
	m.targetURL = rawURL
	m.ctx = ctx
	m.retryCount = 0
	m.state = StateConnecting
	m.gen++
	gen := m.gen
	m.mu.Unlock()

	go m.dialStream(gen)
	return nil
}

// Disconnect tears the stream down. Idempotent; always succeeds. Every
// outstanding timer is cancelled before returning, so no callback fires after
// teardown.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	if m.state == StateClosed {
		m.mu.Unlock()
		return
	}
	m.teardownLocked(StateDisconnected)
	m.mu.Unlock()
}

// Close permanently retires the Manager. Further Connect calls fail.
func (m *Manager) Close() {
	m.mu.Lock()
	m.teardownLocked(StateClosed)
	m.mu.Unlock()
}

// ForceReconnect drops the current connection (if any) and dials immediately,
// bypassing backoff. The retry counter restarts at 1, the first attempt of a
// fresh cycle. Callable in any state except closed.
func (m *Manager) ForceReconnect() {
	m.disp.emit(Event{Type: EventManualReconnect})

	m.mu.Lock()
	if m.state == StateClosed || m.targetURL == "" {
		m.mu.Unlock()
		return
	}

	m.stopTimersLocked()
	m.closeTransportLocked()
	m.stopReadLoopLocked()
	m.retryCount = 1
	m.state = StateConnecting
	m.gen++
	gen := m.gen
	m.mu.Unlock()

	go m.dialStream(gen)
}

// WithSessionContinuity returns rawURL with the session-continuity query
// parameters attached: connection_id (stable across reconnects) and since
// (latest heartbeat, omitted when none was ever recorded).
func (m *Manager) WithSessionContinuity(rawURL string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.continuityURLLocked(rawURL)
}

// -----------------------------------------------------------------------------
// Dialing and reconnect policy
// -----------------------------------------------------------------------------

// dialStream performs one connection attempt for the given generation.
func (m *Manager) dialStream(gen int) {
	m.mu.Lock()
	if m.gen != gen || m.state != StateConnecting {
		m.mu.Unlock()
		return
	}
	fullURL, err := m.continuityURLLocked(m.targetURL)
	ctx := m.ctx
	dial := m.dial
	m.mu.Unlock()

	var t Transport
	if err == nil {
		t = dial(fullURL)
		err = t.Connect(ctx)
	}

	m.mu.Lock()
	if m.gen != gen || m.state != StateConnecting {
		m.mu.Unlock()
		if t != nil {
			t.Close()
		}
		return
	}

	if err != nil {
		m.logger.Warn("stream connect failed", "error", err, "attempt", m.retryCount)
		events := m.scheduleReconnectLocked()
		m.mu.Unlock()
		m.emitAll(events)
		return
	}

	m.transport = t
	m.state = StateOpen
	m.retryCount = 0
	m.lastHeartbeat = m.clk.Now()
	m.health = HealthHealthy
	m.startMonitorLocked(gen)
	done := make(chan struct{})
	m.readDone = done
	m.mu.Unlock()

	go m.readLoop(gen, t, done)

	m.logger.Info("stream connected", "connection_id", m.connID)
	m.disp.emit(Event{Type: EventConnected})
}

// scheduleReconnectLocked starts (or refuses to double-start) a reconnect
// cycle. Returns the events to emit after the lock is released.
func (m *Manager) scheduleReconnectLocked() []Event {
	m.stopMonitorLocked()
	m.closeTransportLocked()
	m.stopReadLoopLocked()

	// A cycle is already pending
	if m.reconnectTimer != nil {
		return nil
	}

	if m.retryCount >= m.cfg.MaxRetries {
		m.state = StateDisconnected
		m.logger.Error("reconnect attempts exhausted", "attempts", m.retryCount)
		return []Event{{
			Type:      EventReconnectFailed,
			Reconnect: &ReconnectInfo{Attempt: m.retryCount, MaxAttempts: m.cfg.MaxRetries},
		}}
	}

	m.retryCount++
	delay := m.backoffDelay(m.retryCount)
	m.state = StateReconnecting
	gen := m.gen

	m.reconnectTimer = m.clk.AfterFunc(delay, func() {
		m.redial(gen)
	})

	m.logger.Info("reconnect scheduled",
		"attempt", m.retryCount,
		"max_attempts", m.cfg.MaxRetries,
		"delay", delay,
	)
	return []Event{{
		Type:      EventReconnecting,
		Reconnect: &ReconnectInfo{Attempt: m.retryCount, MaxAttempts: m.cfg.MaxRetries, Delay: delay},
	}}
}

// redial fires when a backoff delay elapses.
func (m *Manager) redial(gen int) {
	m.mu.Lock()
	if m.gen != gen || m.state != StateReconnecting {
		m.mu.Unlock()
		return
	}
	m.reconnectTimer = nil
	m.state = StateConnecting
	m.mu.Unlock()

	m.dialStream(gen)
}

// backoffDelay computes min(BaseDelay * 2^(attempt-1), MaxDelay).
func (m *Manager) backoffDelay(attempt int) time.Duration {
	d := m.cfg.BaseDelay
	for i := 1; i < attempt && d < m.cfg.MaxDelay; i++ {
		d *= 2
	}
	if d > m.cfg.MaxDelay {
		d = m.cfg.MaxDelay
	}
	return d
}

// -----------------------------------------------------------------------------
// Message handling
// -----------------------------------------------------------------------------

// readLoop forwards transport messages and errors for one connection cycle.
func (m *Manager) readLoop(gen int, t Transport, done chan struct{}) {
	for {
		select {
		case <-done:
			return

		case err, ok := <-t.Errors():
			if !ok {
				return
			}
			m.handleTransportError(gen, err)
			return

		case msg, ok := <-t.Messages():
			if !ok {
				return
			}
			m.handleMessage(gen, msg)
		}
	}
}

func (m *Manager) handleTransportError(gen int, err error) {
	m.mu.Lock()
	if m.gen != gen || m.state != StateOpen {
		m.mu.Unlock()
		return
	}
	m.logger.Warn("transport error", "error", err)
	events := m.scheduleReconnectLocked()
	m.mu.Unlock()

	m.emitAll(events)
}

// handleMessage classifies one raw payload and dispatches it. Only
// heartbeat-typed payloads refresh heartbeat freshness; see the package
// comment for why general traffic does not count.
func (m *Manager) handleMessage(gen int, msg TimestampedMessage) {
	var env envelope
	if err := json.Unmarshal(msg.Data, &env); err != nil || env.Type == "" {
		if err == nil {
			err = fmt.Errorf("payload has no type field")
		}
		m.disp.emit(Event{
			Type:       EventError,
			Err:        fmt.Errorf("parse payload: %w", err),
			Raw:        msg.Data,
			ReceivedAt: msg.ReceivedAt,
		})
		return
	}

	if env.Type == EventHeartbeat {
		m.mu.Lock()
		if m.gen == gen {
			m.lastHeartbeat = m.clk.Now()
			m.health = HealthHealthy
		}
		m.mu.Unlock()
	}

	m.disp.emit(Event{Type: env.Type, Data: msg.Data, ReceivedAt: msg.ReceivedAt})
}

// -----------------------------------------------------------------------------
// Heartbeat monitor
// -----------------------------------------------------------------------------

func (m *Manager) startMonitorLocked(gen int) {
	m.monitorTimer = m.clk.AfterFunc(m.cfg.HeartbeatInterval, func() {
		m.checkHeartbeat(gen)
	})
}

// checkHeartbeat runs once per monitor tick while the stream is open.
// Escalation to critical happens exactly once per crossing: scheduling the
// reconnect leaves the open state, which stops the monitor until the next
// successful open.
func (m *Manager) checkHeartbeat(gen int) {
	m.mu.Lock()
	if m.gen != gen || m.state != StateOpen {
		m.mu.Unlock()
		return
	}
	m.monitorTimer = nil

	elapsed := m.clk.Now().Sub(m.lastHeartbeat)
	var events []Event

	switch {
	case elapsed >= m.cfg.HeartbeatCritAfter:
		m.health = HealthCritical
		m.logger.Warn("heartbeat critical, forcing reconnect", "elapsed", elapsed)
		events = append(events, Event{
			Type:    EventHeartbeatTimeout,
			Timeout: &TimeoutInfo{Action: ActionReconnecting, Elapsed: elapsed},
		})
		events = append(events, m.scheduleReconnectLocked()...)

	case elapsed >= m.cfg.HeartbeatWarnAfter:
		if m.health != HealthWarning {
			m.health = HealthWarning
			m.logger.Warn("heartbeat stale", "elapsed", elapsed)
			events = append(events, Event{
				Type:    EventHeartbeatTimeout,
				Timeout: &TimeoutInfo{Action: ActionWarning, Elapsed: elapsed},
			})
		}
		m.startMonitorLocked(gen)

	default:
		m.health = HealthHealthy
		m.startMonitorLocked(gen)
	}
	m.mu.Unlock()

	m.emitAll(events)
}

// -----------------------------------------------------------------------------
// Teardown helpers
// -----------------------------------------------------------------------------

func (m *Manager) teardownLocked(next State) {
	m.gen++
	m.stopTimersLocked()
	m.closeTransportLocked()
	m.stopReadLoopLocked()
	m.state = next
}

func (m *Manager) stopTimersLocked() {
	if m.reconnectTimer != nil {
		m.reconnectTimer.Stop()
		m.reconnectTimer = nil
	}
	m.stopMonitorLocked()
}

func (m *Manager) stopMonitorLocked() {
	if m.monitorTimer != nil {
		m.monitorTimer.Stop()
		m.monitorTimer = nil
	}
}

func (m *Manager) closeTransportLocked() {
	if m.transport != nil {
		m.transport.Close()
		m.transport = nil
	}
}

func (m *Manager) stopReadLoopLocked() {
	if m.readDone != nil {
		close(m.readDone)
		m.readDone = nil
	}
}

func (m *Manager) emitAll(events []Event) {
	for _, e := range events {
		m.disp.emit(e)
	}
}
