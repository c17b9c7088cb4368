package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultProdFeedHost     = "api-feed.dhan.co"
	DefaultProdDepthHost    = "depth-api-feed.dhan.co"
	DefaultSandboxFeedHost  = "api-feed-sandbox.dhan.co"
	DefaultSandboxDepthHost = "depth-api-feed-sandbox.dhan.co"

	DefaultReconnectBaseDelay   = 2 * time.Second
	DefaultReconnectMaxDelay    = 60 * time.Second
	DefaultMaxReconnectAttempts = 10

	DefaultPingInterval  = 30 * time.Second
	DefaultWriteTimeout  = 5 * time.Second
	DefaultBufferSize    = 10000
	DefaultBatchInterval = 100 * time.Millisecond
)

// ApplyDefaults fills unset optional fields with default values.
func (c *Config) ApplyDefaults() {
	if c.Auth.Environment == "" {
		c.Auth.Environment = EnvProd
	}

	if c.Feed.Host == "" {
		if c.Auth.Environment == EnvSandbox {
			c.Feed.Host = DefaultSandboxFeedHost
		} else {
			c.Feed.Host = DefaultProdFeedHost
		}
	}
	if c.Feed.DepthHost == "" {
		if c.Auth.Environment == EnvSandbox {
			c.Feed.DepthHost = DefaultSandboxDepthHost
		} else {
			c.Feed.DepthHost = DefaultProdDepthHost
		}
	}

	if c.Feed.ReconnectBaseDelay == 0 {
		c.Feed.ReconnectBaseDelay = DefaultReconnectBaseDelay
	}
	if c.Feed.ReconnectMaxDelay == 0 {
		c.Feed.ReconnectMaxDelay = DefaultReconnectMaxDelay
	}
	if c.Feed.MaxReconnectAttempts == 0 {
		c.Feed.MaxReconnectAttempts = DefaultMaxReconnectAttempts
	}

	if c.Feed.PingInterval == 0 {
		c.Feed.PingInterval = DefaultPingInterval
	}
	if c.Feed.WriteTimeout == 0 {
		c.Feed.WriteTimeout = DefaultWriteTimeout
	}
	if c.Feed.BufferSize == 0 {
		c.Feed.BufferSize = DefaultBufferSize
	}
	if c.Feed.BatchInterval == 0 {
		c.Feed.BatchInterval = DefaultBatchInterval
	}
}
