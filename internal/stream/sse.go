package stream

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"
)

// SSE field prefixes per the W3C EventSource specification.
const (
	sseFieldEvent   = "event:"
	sseFieldData    = "data:"
	sseFieldID      = "id:"
	sseFieldRetry   = "retry:"
	sseFieldComment = ":"
)

const contentTypeEventStream = "text/event-stream"

// sseTransport streams text/event-stream payloads over plain HTTP.
type sseTransport struct {
	url    string
	cfg    TransportConfig
	logger *slog.Logger

	httpClient *http.Client

	// Output channels
	messages chan TimestampedMessage
	errors   chan error
	done     chan struct{}

	// State
	mu          sync.Mutex
	cancel      context.CancelFunc
	closed      bool
	lastEventID string
}

// NewSSEDialer returns a DialFunc producing SSE transports.
func NewSSEDialer(cfg TransportConfig, logger *slog.Logger) DialFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(url string) Transport {
		return &sseTransport{
			url:    url,
			cfg:    cfg,
			logger: logger,
			// No client-level timeout: the stream is long-lived. The
			// handshake deadline is enforced separately in Connect.
			httpClient: &http.Client{},
			messages:   make(chan TimestampedMessage, cfg.BufferSize),
			errors:     make(chan error, 1),
			done:       make(chan struct{}),
		}
	}
}

// Connect opens the event stream and starts the read loop.
func (t *sseTransport) Connect(ctx context.Context) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return ErrManagerClosed
	}
	lastID := t.lastEventID
	t.mu.Unlock()

	// The stream outlives Connect, so the request context must stay alive
	// until Close. The handshake deadline is a watchdog that fires only if
	// headers have not arrived in time.
	connCtx, cancel := context.WithCancel(ctx)
	watchdog := time.AfterFunc(t.cfg.HandshakeTimeout, cancel)

	req, err := http.NewRequestWithContext(connCtx, http.MethodGet, t.url, nil)
	if err != nil {
		watchdog.Stop()
		cancel()
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", contentTypeEventStream)
	req.Header.Set("Cache-Control", "no-cache")
	if lastID != "" {
		req.Header.Set("Last-Event-ID", lastID)
	}
	for k, vs := range t.cfg.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := t.httpClient.Do(req)
	watchdog.Stop()
	if err != nil {
		cancel()
		return fmt.Errorf("open stream: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		cancel()
		return fmt.Errorf("%w: %d", ErrBadStatus, resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, contentTypeEventStream) {
		resp.Body.Close()
		cancel()
		return fmt.Errorf("%w: %q", ErrBadContentType, ct)
	}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		resp.Body.Close()
		cancel()
		return ErrManagerClosed
	}
	t.cancel = cancel
	t.mu.Unlock()

	go t.readLoop(resp.Body)

	t.logger.Debug("sse stream opened", "url", t.url)
	return nil
}

// Close tears down the stream. Idempotent.
func (t *sseTransport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	cancel := t.cancel
	t.mu.Unlock()

	close(t.done)
	if cancel != nil {
		cancel()
	}
	return nil
}

// Messages returns the messages channel.
func (t *sseTransport) Messages() <-chan TimestampedMessage {
	return t.messages
}

// Errors returns the errors channel.
func (t *sseTransport) Errors() <-chan error {
	return t.errors
}

// readLoop parses the event stream field by field and emits one message per
// dispatched event (blank-line delimited).
func (t *sseTransport) readLoop(body io.ReadCloser) {
	defer body.Close()

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	var data []string

	for scanner.Scan() {
		line := scanner.Text()

		switch {
		case line == "":
			// Dispatch boundary
			if len(data) > 0 {
				t.deliver(strings.Join(data, "\n"))
				data = data[:0]
			}

		case strings.HasPrefix(line, sseFieldData):
			data = append(data, sseValue(line, sseFieldData))

		case strings.HasPrefix(line, sseFieldID):
			t.mu.Lock()
			t.lastEventID = sseValue(line, sseFieldID)
			t.mu.Unlock()

		case strings.HasPrefix(line, sseFieldEvent):
			// Payloads are self-describing JSON envelopes; the event name is
			// redundant and only logged.
			t.logger.Debug("sse event field", "event", sseValue(line, sseFieldEvent))

		case strings.HasPrefix(line, sseFieldRetry):
			// Reconnect pacing is owned by the Manager, not the server.
			t.logger.Debug("ignoring server retry hint", "retry", sseValue(line, sseFieldRetry))

		case strings.HasPrefix(line, sseFieldComment):
			// Keepalive comment, nothing to do.
		}
	}

	// Scanner stopped: EOF, network error, or local Close.
	select {
	case <-t.done:
		return
	default:
	}

	err := scanner.Err()
	if err == nil {
		err = io.EOF
	}
	select {
	case t.errors <- fmt.Errorf("stream read: %w", err):
	default:
	}
}

// deliver pushes one dispatched event to the messages channel.
func (t *sseTransport) deliver(data string) {
	msg := TimestampedMessage{
		Data:       []byte(data),
		ReceivedAt: time.Now(),
	}

	select {
	case t.messages <- msg:
	case <-t.done:
	default:
		t.logger.Warn("message buffer full, dropping event")
	}
}

// sseValue strips the field prefix and one optional leading space.
func sseValue(line, prefix string) string {
	return strings.TrimPrefix(strings.TrimPrefix(line, prefix), " ")
}
