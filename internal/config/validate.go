package config

import (
	"errors"
	"fmt"
)

// Validate checks that all required fields are set and values are valid.
func (c *GathererConfig) Validate() error {
	if c.Instance.ID == "" {
		return errors.New("instance.id is required")
	}

	if c.API.BaseURL == "" {
		return errors.New("api.base_url is required")
	}

	switch c.Stream.Transport {
	case "sse", "websocket":
	default:
		return fmt.Errorf("stream.transport must be \"sse\" or \"websocket\", got %q", c.Stream.Transport)
	}

	switch c.Stream.Depth {
	case "quick", "standard", "deep":
	default:
		return fmt.Errorf("stream.depth must be quick, standard, or deep, got %q", c.Stream.Depth)
	}

	if c.Stream.ReconnectBaseDelay <= 0 {
		return errors.New("stream.reconnect_base_delay must be > 0")
	}
	if c.Stream.ReconnectMaxDelay < c.Stream.ReconnectBaseDelay {
		return fmt.Errorf("stream.reconnect_max_delay (%s) cannot be less than reconnect_base_delay (%s)",
			c.Stream.ReconnectMaxDelay, c.Stream.ReconnectBaseDelay)
	}
	if c.Stream.MaxReconnects < 1 {
		return errors.New("stream.max_reconnects must be >= 1")
	}
	if c.Stream.HeartbeatCritAfter <= c.Stream.HeartbeatWarnAfter {
		return fmt.Errorf("stream.heartbeat_critical_after (%s) must exceed heartbeat_warn_after (%s)",
			c.Stream.HeartbeatCritAfter, c.Stream.HeartbeatWarnAfter)
	}
	if c.Stream.HeartbeatInterval <= 0 {
		return errors.New("stream.heartbeat_check_interval must be > 0")
	}

	if err := c.Database.Postgres.validate("database.postgres"); err != nil {
		return err
	}

	if c.Writers.BatchSize < 1 {
		return errors.New("writers.batch_size must be >= 1")
	}

	if c.Wards.ReconcileInterval <= 0 {
		return errors.New("wards.reconcile_interval must be > 0")
	}

	return nil
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.Password == "" {
		return fmt.Errorf("%s.password is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}
