package config

import (
	"errors"
	"fmt"

	"github.com/rickgao/realtime-client/internal/auth"
)

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	if err := c.Client.validate(); err != nil {
		return err
	}

	if c.Realtime.Host == "" {
		return errors.New("realtime.host is required")
	}
	if c.Realtime.Port < 0 || c.Realtime.Port > 65535 {
		return errors.New("realtime.port must be between 0 and 65535")
	}

	if err := c.Connection.validate(); err != nil {
		return err
	}

	if !c.Reachability.Disabled && c.Reachability.URL == "" {
		return errors.New("reachability.url is required unless reachability.disabled is set")
	}
	if c.Reachability.Retries < 0 {
		return errors.New("reachability.retries must be >= 0")
	}

	if c.History.Enabled {
		if err := c.History.Database.validate("history.database"); err != nil {
			return err
		}
		if c.History.BatchSize < 1 {
			return errors.New("history.batch_size must be >= 1")
		}
		if c.History.BufferSize < 1 {
			return errors.New("history.buffer_size must be >= 1")
		}
		if c.History.FlushInterval <= 0 {
			return errors.New("history.flush_interval must be > 0")
		}
	}

	if c.Metrics.Port < 1 || c.Metrics.Port > 65535 {
		return errors.New("metrics.port must be between 1 and 65535")
	}

	return nil
}

func (c *ClientConfig) validate() error {
	if c.APIKey != "" {
		if _, err := auth.ParseKey(c.APIKey); err != nil {
			return fmt.Errorf("client.api_key: %w", err)
		}
	}
	if c.PrivateKeyPath != "" && c.KeyName == "" {
		return errors.New("client.key_name is required with client.private_key_path")
	}
	if c.TokenTTL < 0 {
		return errors.New("client.token_ttl must be >= 0")
	}
	return nil
}

func (c *ConnectionConfig) validate() error {
	durations := []struct {
		name  string
		value int64
	}{
		{"connection.connect_timeout", int64(c.ConnectTimeout)},
		{"connection.close_timeout", int64(c.CloseTimeout)},
		{"connection.suspend_timeout", int64(c.SuspendTimeout)},
		{"connection.retry_base_delay", int64(c.RetryBaseDelay)},
		{"connection.retry_max_delay", int64(c.RetryMaxDelay)},
	}
	for _, d := range durations {
		if d.value <= 0 {
			return fmt.Errorf("%s must be > 0", d.name)
		}
	}

	if c.RetryMaxDelay < c.RetryBaseDelay {
		return fmt.Errorf("connection.retry_max_delay (%v) cannot be less than retry_base_delay (%v)", c.RetryMaxDelay, c.RetryBaseDelay)
	}
	for _, code := range c.FallbackStatusCodes {
		if code < 100 || code > 599 {
			return fmt.Errorf("connection.fallback_status_codes: %d is not an HTTP status", code)
		}
	}
	if c.SendRate < 0 {
		return errors.New("connection.send_rate must be >= 0")
	}
	if c.SendBurst < 1 {
		return errors.New("connection.send_burst must be >= 1")
	}
	if c.EventBufferSize < 1 {
		return errors.New("connection.event_buffer_size must be >= 1")
	}
	if c.InboundBufferSize < 1 {
		return errors.New("connection.inbound_buffer_size must be >= 1")
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
