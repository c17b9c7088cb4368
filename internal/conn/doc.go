// Package conn wraps a single WebSocket connection to a feed server.
//
// Each Client owns exactly one socket:
//   - Serialized writes with a write deadline
//   - A read loop that delivers raw binary frames over a buffered channel
//   - Keep-alive pings on a fixed cadence, with an optional pong-timeout
//     staleness check used by the legacy single-socket feed
//
// Reconnection policy lives with the callers (marketfeed, depthfeed); this
// package only supplies the shared backoff schedule.
package conn
