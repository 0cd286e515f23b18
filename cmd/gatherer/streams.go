package main

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/varunrao/wardstream/internal/config"
	"github.com/varunrao/wardstream/internal/router"
	"github.com/varunrao/wardstream/internal/stream"
	"github.com/varunrao/wardstream/internal/wards"
)

// streamSupervisor owns one stream.Manager per active ward and keeps the set
// in step with registry change events.
type streamSupervisor struct {
	cfg    config.StreamConfig
	dial   stream.DialFunc
	input  chan<- router.Inbound
	logger *slog.Logger

	mu       sync.Mutex
	managers map[string]*stream.Manager

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func newStreamSupervisor(cfg config.StreamConfig, input chan<- router.Inbound, logger *slog.Logger) *streamSupervisor {
	tc := stream.DefaultTransportConfig()
	tc.BufferSize = cfg.BufferSize

	var dial stream.DialFunc
	switch cfg.Transport {
	case "websocket":
		dial = stream.NewWebSocketDialer(tc, logger)
	default:
		dial = stream.NewSSEDialer(tc, logger)
	}

	return &streamSupervisor{
		cfg:      cfg,
		dial:     dial,
		input:    input,
		logger:   logger.With("component", "streams"),
		managers: make(map[string]*stream.Manager),
	}
}

// Start opens a stream for every ward and watches the registry for changes.
func (s *streamSupervisor) Start(ctx context.Context, registry wards.Registry) error {
	s.ctx, s.cancel = context.WithCancel(ctx)

	for _, w := range registry.ActiveWards() {
		s.openStream(w.ID)
	}

	s.wg.Add(1)
	go s.watchChanges(registry.SubscribeChanges())

	return nil
}

// Stop closes every stream and waits for the change watcher to exit.
func (s *streamSupervisor) Stop(ctx context.Context) error {
	if s.cancel != nil {
		s.cancel()
	}

	s.mu.Lock()
	for wardID, mgr := range s.managers {
		mgr.Close()
		delete(s.managers, wardID)
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ActiveStreams returns the number of managed streams.
func (s *streamSupervisor) ActiveStreams() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.managers)
}

// Statuses returns the current stream status per ward.
func (s *streamSupervisor) Statuses() map[string]stream.Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]stream.Status, len(s.managers))
	for wardID, mgr := range s.managers {
		out[wardID] = mgr.Status()
	}
	return out
}

func (s *streamSupervisor) watchChanges(changes <-chan wards.WardChange) {
	defer s.wg.Done()

	for {
		select {
		case <-s.ctx.Done():
			return
		case change := <-changes:
			switch change.EventType {
			case "created":
				s.openStream(change.WardID)
			case "removed":
				s.closeStream(change.WardID)
			case "status_change":
				if change.NewStatus == "active" {
					s.openStream(change.WardID)
				} else {
					s.closeStream(change.WardID)
				}
			}
		}
	}
}

func (s *streamSupervisor) openStream(wardID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.managers[wardID]; exists {
		return
	}

	mgrCfg := stream.DefaultConfig()
	mgrCfg.BaseDelay = s.cfg.ReconnectBaseDelay
	mgrCfg.MaxDelay = s.cfg.ReconnectMaxDelay
	mgrCfg.MaxRetries = s.cfg.MaxReconnects
	mgrCfg.HeartbeatWarnAfter = s.cfg.HeartbeatWarnAfter
	mgrCfg.HeartbeatCritAfter = s.cfg.HeartbeatCritAfter
	mgrCfg.HeartbeatInterval = s.cfg.HeartbeatInterval
	mgrCfg.Dial = s.dial
	mgrCfg.Logger = s.logger.With("ward", wardID)

	mgr := stream.NewManager(mgrCfg)
	s.registerHandlers(mgr, wardID)

	url := stream.StreamURL(s.cfg.BaseURL, wardID, s.cfg.Depth, s.cfg.Context)
	if err := mgr.Connect(s.ctx, url); err != nil {
		s.logger.Error("failed to open stream", "ward", wardID, "error", err)
		mgr.Close()
		return
	}

	s.managers[wardID] = mgr
	s.logger.Info("stream opened", "ward", wardID, "connection_id", mgr.ConnectionID())
}

func (s *streamSupervisor) closeStream(wardID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	mgr, exists := s.managers[wardID]
	if !exists {
		return
	}
	mgr.Close()
	delete(s.managers, wardID)
	s.logger.Info("stream closed", "ward", wardID)
}

// registerHandlers bridges stream events into the router input channel and
// logs lifecycle transitions.
func (s *streamSupervisor) registerHandlers(mgr *stream.Manager, wardID string) {
	forward := func(ev stream.Event) {
		select {
		case s.input <- router.Inbound{WardID: wardID, Data: ev.Data, ReceivedAt: ev.ReceivedAt}:
		case <-s.ctx.Done():
		}
	}
	mgr.On(stream.EventAnalysis, forward)
	mgr.On(stream.EventProgress, forward)
	mgr.On(stream.EventComplete, forward)

	mgr.On(stream.EventReconnecting, func(ev stream.Event) {
		s.logger.Warn("stream reconnecting",
			"ward", wardID,
			"attempt", ev.Reconnect.Attempt,
			"max_attempts", ev.Reconnect.MaxAttempts,
			"delay", ev.Reconnect.Delay,
		)
	})
	mgr.On(stream.EventReconnectFailed, func(ev stream.Event) {
		s.logger.Error("stream reconnect exhausted",
			"ward", wardID,
			"attempts", ev.Reconnect.Attempt,
		)
	})
	mgr.On(stream.EventHeartbeatTimeout, func(ev stream.Event) {
		s.logger.Warn("heartbeat stale",
			"ward", wardID,
			"action", ev.Timeout.Action,
			"elapsed", ev.Timeout.Elapsed,
		)
	})
	mgr.On(stream.EventError, func(ev stream.Event) {
		s.logger.Error("stream error", "ward", wardID, "error", ev.Err)
	})
}

// healthWindow is how stale a stream may be before the health endpoint
// reports it degraded.
const healthWindow = time.Minute
