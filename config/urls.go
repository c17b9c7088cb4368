package config

import "net/url"

// FeedURL builds the market feed WebSocket URL for these credentials.
// A per-instance connection id is appended separately by the feed layer.
func (c *Config) FeedURL() string {
	return buildWSURL(c.Feed.Host, "", c.Auth)
}

// DepthFeedURL builds the depth feed WebSocket URL for these credentials.
func (c *Config) DepthFeedURL() string {
	return buildWSURL(c.Feed.DepthHost, "/twentydepth", c.Auth)
}

func buildWSURL(host, path string, auth AuthConfig) string {
	q := url.Values{}
	q.Set("version", "2")
	q.Set("token", auth.AccessToken)
	q.Set("clientId", auth.ClientID)
	q.Set("authType", "2")

	u := url.URL{
		Scheme:   "wss",
		Host:     host,
		Path:     path,
		RawQuery: q.Encode(),
	}
	return u.String()
}
