package config

import "time"

// Config is the root configuration for a feed client instance.
type Config struct {
	Auth AuthConfig `yaml:"auth"`
	Feed FeedConfig `yaml:"feed"`
}

// AuthConfig holds the credentials used to build feed URLs.
type AuthConfig struct {
	AccessToken string `yaml:"access_token"` // Data API access token
	ClientID    string `yaml:"client_id"`    // Numeric client id issued by the broker
	Environment string `yaml:"environment"`  // "prod" or "sandbox"
}

// FeedConfig holds live-feed connection settings.
type FeedConfig struct {
	Host      string `yaml:"host"`       // Market feed host override (empty = environment default)
	DepthHost string `yaml:"depth_host"` // Depth feed host override (empty = environment default)

	ReconnectBaseDelay   time.Duration `yaml:"reconnect_base_delay"`
	ReconnectMaxDelay    time.Duration `yaml:"reconnect_max_delay"`
	MaxReconnectAttempts int           `yaml:"max_reconnect_attempts"`

	PingInterval time.Duration `yaml:"ping_interval"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	BufferSize   int           `yaml:"buffer_size"`

	BatchInterval time.Duration `yaml:"batch_interval"` // Delay between subscription frames on one connection
}

// Environments accepted by Validate.
const (
	EnvProd    = "prod"
	EnvSandbox = "sandbox"
)
