package stream

import (
	"context"
	"net/http"
	"time"
)

// TimestampedMessage wraps raw payload bytes with a receive timestamp.
type TimestampedMessage struct {
	Data       []byte    // Raw payload bytes from the transport
	ReceivedAt time.Time // Local timestamp when the payload was read
}

// Transport is a single push connection to the server. The Manager works
// against any conforming implementation, real or test double.
type Transport interface {
	// Connect establishes the connection. Blocking; returns once the server
	// accepted the stream or dialing failed.
	Connect(ctx context.Context) error

	// Close tears the connection down. Idempotent.
	Close() error

	// Messages returns the channel of raw payloads.
	Messages() <-chan TimestampedMessage

	// Errors returns the channel of connection errors.
	Errors() <-chan error
}

// DialFunc builds a Transport for a fully-qualified stream URL. Injectable so
// tests substitute fakes without patching globals.
type DialFunc func(url string) Transport

// TransportConfig holds settings shared by the built-in transports.
type TransportConfig struct {
	HandshakeTimeout time.Duration // Dial/handshake deadline
	BufferSize       int           // Message channel buffer size
	Header           http.Header   // Extra request headers
	PingTimeout      time.Duration // WebSocket only: max silence before stale
	WriteTimeout     time.Duration // WebSocket only: control-frame write deadline
}

// DefaultTransportConfig returns sensible defaults.
func DefaultTransportConfig() TransportConfig {
	return TransportConfig{
		HandshakeTimeout: 10 * time.Second,
		BufferSize:       1000,
		PingTimeout:      60 * time.Second,
		WriteTimeout:     5 * time.Second,
	}
}
