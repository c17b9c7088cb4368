package config

import (
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "feed.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfigFile(t, `
auth:
  access_token: token-123
  client_id: "1000000001"
  environment: prod
feed:
  reconnect_base_delay: 1s
  reconnect_max_delay: 30s
  max_reconnect_attempts: 5
  ping_interval: 10s
  buffer_size: 500
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Auth.AccessToken != "token-123" {
		t.Errorf("AccessToken = %q, want token-123", cfg.Auth.AccessToken)
	}
	if cfg.Auth.ClientID != "1000000001" {
		t.Errorf("ClientID = %q, want 1000000001", cfg.Auth.ClientID)
	}
	if cfg.Feed.ReconnectBaseDelay != time.Second {
		t.Errorf("ReconnectBaseDelay = %v, want 1s", cfg.Feed.ReconnectBaseDelay)
	}
	if cfg.Feed.MaxReconnectAttempts != 5 {
		t.Errorf("MaxReconnectAttempts = %d, want 5", cfg.Feed.MaxReconnectAttempts)
	}
	if cfg.Feed.BufferSize != 500 {
		t.Errorf("BufferSize = %d, want 500", cfg.Feed.BufferSize)
	}
}

func TestLoad_EnvExpansion(t *testing.T) {
	t.Setenv("TEST_FEED_TOKEN", "expanded-token")
	t.Setenv("TEST_FEED_CLIENT", "42")

	path := writeConfigFile(t, `
auth:
  access_token: ${TEST_FEED_TOKEN}
  client_id: "${TEST_FEED_CLIENT}"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Auth.AccessToken != "expanded-token" {
		t.Errorf("AccessToken = %q, want expanded-token", cfg.Auth.AccessToken)
	}
	if cfg.Auth.ClientID != "42" {
		t.Errorf("ClientID = %q, want 42", cfg.Auth.ClientID)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{
		Auth: AuthConfig{AccessToken: "t", ClientID: "1"},
	}
	cfg.ApplyDefaults()

	if cfg.Auth.Environment != EnvProd {
		t.Errorf("Environment = %q, want prod", cfg.Auth.Environment)
	}
	if cfg.Feed.Host != DefaultProdFeedHost {
		t.Errorf("Host = %q, want %q", cfg.Feed.Host, DefaultProdFeedHost)
	}
	if cfg.Feed.DepthHost != DefaultProdDepthHost {
		t.Errorf("DepthHost = %q, want %q", cfg.Feed.DepthHost, DefaultProdDepthHost)
	}
	if cfg.Feed.ReconnectBaseDelay != DefaultReconnectBaseDelay {
		t.Errorf("ReconnectBaseDelay = %v, want %v", cfg.Feed.ReconnectBaseDelay, DefaultReconnectBaseDelay)
	}
	if cfg.Feed.ReconnectMaxDelay != DefaultReconnectMaxDelay {
		t.Errorf("ReconnectMaxDelay = %v, want %v", cfg.Feed.ReconnectMaxDelay, DefaultReconnectMaxDelay)
	}
	if cfg.Feed.MaxReconnectAttempts != DefaultMaxReconnectAttempts {
		t.Errorf("MaxReconnectAttempts = %d, want %d", cfg.Feed.MaxReconnectAttempts, DefaultMaxReconnectAttempts)
	}
	if cfg.Feed.PingInterval != DefaultPingInterval {
		t.Errorf("PingInterval = %v, want %v", cfg.Feed.PingInterval, DefaultPingInterval)
	}
	if cfg.Feed.BufferSize != DefaultBufferSize {
		t.Errorf("BufferSize = %d, want %d", cfg.Feed.BufferSize, DefaultBufferSize)
	}
	if cfg.Feed.BatchInterval != DefaultBatchInterval {
		t.Errorf("BatchInterval = %v, want %v", cfg.Feed.BatchInterval, DefaultBatchInterval)
	}
}

func TestApplyDefaults_Sandbox(t *testing.T) {
	cfg := &Config{
		Auth: AuthConfig{AccessToken: "t", ClientID: "1", Environment: EnvSandbox},
	}
	cfg.ApplyDefaults()

	if cfg.Feed.Host != DefaultSandboxFeedHost {
		t.Errorf("Host = %q, want %q", cfg.Feed.Host, DefaultSandboxFeedHost)
	}
	if cfg.Feed.DepthHost != DefaultSandboxDepthHost {
		t.Errorf("DepthHost = %q, want %q", cfg.Feed.DepthHost, DefaultSandboxDepthHost)
	}
}

func TestApplyDefaults_KeepsOverrides(t *testing.T) {
	cfg := &Config{
		Auth: AuthConfig{AccessToken: "t", ClientID: "1"},
		Feed: FeedConfig{Host: "feed.example.com", BufferSize: 99},
	}
	cfg.ApplyDefaults()

	if cfg.Feed.Host != "feed.example.com" {
		t.Errorf("Host = %q, want feed.example.com", cfg.Feed.Host)
	}
	if cfg.Feed.BufferSize != 99 {
		t.Errorf("BufferSize = %d, want 99", cfg.Feed.BufferSize)
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := &Config{Auth: AuthConfig{AccessToken: "t", ClientID: "1"}}
		cfg.ApplyDefaults()
		return cfg
	}

	if err := valid().Validate(); err != nil {
		t.Errorf("valid config rejected: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing token", func(c *Config) { c.Auth.AccessToken = "" }},
		{"missing client id", func(c *Config) { c.Auth.ClientID = "" }},
		{"bad environment", func(c *Config) { c.Auth.Environment = "staging" }},
		{"zero base delay", func(c *Config) { c.Feed.ReconnectBaseDelay = 0 }},
		{"max delay below base", func(c *Config) { c.Feed.ReconnectMaxDelay = time.Millisecond }},
		{"zero attempts", func(c *Config) { c.Feed.MaxReconnectAttempts = 0 }},
		{"zero ping interval", func(c *Config) { c.Feed.PingInterval = 0 }},
		{"zero buffer", func(c *Config) { c.Feed.BufferSize = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestLoadAndValidate(t *testing.T) {
	path := writeConfigFile(t, `
auth:
  access_token: token-123
  client_id: "1"
`)

	cfg, err := LoadAndValidate(path)
	if err != nil {
		t.Fatalf("LoadAndValidate failed: %v", err)
	}
	if cfg.Feed.Host == "" {
		t.Error("expected defaults to be applied")
	}

	bad := writeConfigFile(t, `
auth:
  client_id: "1"
`)
	if _, err := LoadAndValidate(bad); err == nil {
		t.Error("expected validation error for missing token")
	}
}

func TestFeedURL(t *testing.T) {
	cfg := &Config{
		Auth: AuthConfig{AccessToken: "tok", ClientID: "1001", Environment: EnvProd},
	}
	cfg.ApplyDefaults()

	u, err := url.Parse(cfg.FeedURL())
	if err != nil {
		t.Fatalf("parse feed url: %v", err)
	}

	if u.Scheme != "wss" {
		t.Errorf("Scheme = %q, want wss", u.Scheme)
	}
	if u.Host != DefaultProdFeedHost {
		t.Errorf("Host = %q, want %q", u.Host, DefaultProdFeedHost)
	}

	q := u.Query()
	if q.Get("version") != "2" {
		t.Errorf("version = %q, want 2", q.Get("version"))
	}
	if q.Get("token") != "tok" {
		t.Errorf("token = %q, want tok", q.Get("token"))
	}
	if q.Get("clientId") != "1001" {
		t.Errorf("clientId = %q, want 1001", q.Get("clientId"))
	}
	if q.Get("authType") != "2" {
		t.Errorf("authType = %q, want 2", q.Get("authType"))
	}
}

func TestDepthFeedURL(t *testing.T) {
	cfg := &Config{
		Auth: AuthConfig{AccessToken: "tok", ClientID: "1001"},
	}
	cfg.ApplyDefaults()

	raw := cfg.DepthFeedURL()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse depth url: %v", err)
	}

	if u.Host != DefaultProdDepthHost {
		t.Errorf("Host = %q, want %q", u.Host, DefaultProdDepthHost)
	}
	if !strings.HasSuffix(u.Path, "/twentydepth") {
		t.Errorf("Path = %q, want /twentydepth suffix", u.Path)
	}
}
