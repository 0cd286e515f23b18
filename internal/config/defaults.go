package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultAPITimeout         = 30 * time.Second
	DefaultMaxRetries         = 3
	DefaultDBPort             = 5432
	DefaultDBSSLMode          = "prefer"
	DefaultMaxConns           = 10
	DefaultMinConns           = 2
	DefaultTransport          = "sse"
	DefaultDepth              = "standard"
	DefaultReconnectBaseDelay = 1 * time.Second
	DefaultReconnectMaxDelay  = 30 * time.Second
	DefaultMaxReconnects      = 5
	DefaultHeartbeatWarn      = 35 * time.Second
	DefaultHeartbeatCritical  = 45 * time.Second
	DefaultHeartbeatInterval  = 5 * time.Second
	DefaultStreamBufferSize   = 1000
	DefaultAnalysisBuffer     = 1000
	DefaultProgressBuffer     = 1000
	DefaultCompletionBuffer   = 100
	DefaultBatchSize          = 500
	DefaultFlushInterval      = 1 * time.Second
	DefaultReconcileInterval  = 5 * time.Minute
)

func (c *GathererConfig) applyDefaults() {
	// API defaults
	if c.API.Timeout == 0 {
		c.API.Timeout = DefaultAPITimeout
	}
	if c.API.MaxRetries == 0 {
		c.API.MaxRetries = DefaultMaxRetries
	}

	// Stream defaults
	if c.Stream.BaseURL == "" {
		c.Stream.BaseURL = c.API.BaseURL
	}
	if c.Stream.Transport == "" {
		c.Stream.Transport = DefaultTransport
	}
	if c.Stream.Depth == "" {
		c.Stream.Depth = DefaultDepth
	}
	if c.Stream.ReconnectBaseDelay == 0 {
		c.Stream.ReconnectBaseDelay = DefaultReconnectBaseDelay
	}
	if c.Stream.ReconnectMaxDelay == 0 {
		c.Stream.ReconnectMaxDelay = DefaultReconnectMaxDelay
	}
	if c.Stream.MaxReconnects == 0 {
		c.Stream.MaxReconnects = DefaultMaxReconnects
	}
	if c.Stream.HeartbeatWarnAfter == 0 {
		c.Stream.HeartbeatWarnAfter = DefaultHeartbeatWarn
	}
	if c.Stream.HeartbeatCritAfter == 0 {
		c.Stream.HeartbeatCritAfter = DefaultHeartbeatCritical
	}
	if c.Stream.HeartbeatInterval == 0 {
		c.Stream.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if c.Stream.BufferSize == 0 {
		c.Stream.BufferSize = DefaultStreamBufferSize
	}

	// Database defaults
	applyDBDefaults(&c.Database.Postgres)

	// Router defaults
	if c.Router.AnalysisBufferSize == 0 {
		c.Router.AnalysisBufferSize = DefaultAnalysisBuffer
	}
	if c.Router.ProgressBufferSize == 0 {
		c.Router.ProgressBufferSize = DefaultProgressBuffer
	}
	if c.Router.CompletionBufferSize == 0 {
		c.Router.CompletionBufferSize = DefaultCompletionBuffer
	}

	// Writers defaults
	if c.Writers.BatchSize == 0 {
		c.Writers.BatchSize = DefaultBatchSize
	}
	if c.Writers.FlushInterval == 0 {
		c.Writers.FlushInterval = DefaultFlushInterval
	}

	// Wards defaults
	if c.Wards.ReconcileInterval == 0 {
		c.Wards.ReconcileInterval = DefaultReconcileInterval
	}
}

func applyDBDefaults(db *DBConfig) {
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.MaxConns == 0 {
		db.MaxConns = DefaultMaxConns
	}
	if db.MinConns == 0 {
		db.MinConns = DefaultMinConns
	}
}
