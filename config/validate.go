package config

import (
	"errors"
	"fmt"
)

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	if c.Auth.AccessToken == "" {
		return errors.New("auth.access_token is required")
	}
	if c.Auth.ClientID == "" {
		return errors.New("auth.client_id is required")
	}
	if c.Auth.Environment != EnvProd && c.Auth.Environment != EnvSandbox {
		return fmt.Errorf("auth.environment must be %q or %q, got %q", EnvProd, EnvSandbox, c.Auth.Environment)
	}

	if c.Feed.ReconnectBaseDelay <= 0 {
		return errors.New("feed.reconnect_base_delay must be > 0")
	}
	if c.Feed.ReconnectMaxDelay < c.Feed.ReconnectBaseDelay {
		return errors.New("feed.reconnect_max_delay must be >= feed.reconnect_base_delay")
	}
	if c.Feed.MaxReconnectAttempts < 1 {
		return errors.New("feed.max_reconnect_attempts must be >= 1")
	}
	if c.Feed.PingInterval <= 0 {
		return errors.New("feed.ping_interval must be > 0")
	}
	if c.Feed.BufferSize < 1 {
		return errors.New("feed.buffer_size must be >= 1")
	}

	return nil
}
