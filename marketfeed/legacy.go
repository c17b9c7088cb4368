package marketfeed

import (
	"context"
	"time"

	"github.com/quantrail/dhanfeed/config"
)

// Keep-alive policy for the legacy single-socket feed. Unlike the pooled
// feed, the legacy feed enforces a hard pong timeout: 40s of silence forces
// a reconnect.
const (
	legacyPingInterval = 10 * time.Second
	legacyPongTimeout  = 40 * time.Second
)

// LegacyFeed is the older single-connection market feed. It speaks the legacy
// wire layout (segment at byte 1), sends the legacy quote/full request code
// aliases, and runs the same reconnect machinery pinned to one connection.
type LegacyFeed struct {
	feed *LiveFeed
}

// NewLegacy creates a legacy single-socket feed from cfg.
func NewLegacy(cfg *config.Config, opts ...Option) (*LegacyFeed, error) {
	f, err := New(cfg, opts...)
	if err != nil {
		return nil, err
	}

	f.layout = LayoutLegacy
	f.maxConns = 1
	f.pingInterval = legacyPingInterval
	f.pongTimeout = legacyPongTimeout

	return &LegacyFeed{feed: f}, nil
}

// legacyAlias maps canonical subscribe codes to the aliases the legacy feed
// sends on the wire.
func legacyAlias(code RequestCode) RequestCode {
	switch code {
	case RequestSubscribeQuote:
		return LegacyRequestSubscribeQuote
	case RequestSubscribeFull:
		return LegacyRequestSubscribeFull
	}
	return code
}

// Connect opens the single socket.
func (l *LegacyFeed) Connect(ctx context.Context) error {
	return l.feed.Connect(ctx)
}

// Subscribe subscribes instruments under the given request code.
func (l *LegacyFeed) Subscribe(ctx context.Context, instruments []Instrument, code RequestCode) error {
	return l.feed.Subscribe(ctx, instruments, legacyAlias(code))
}

// Unsubscribe removes instruments best-effort and clears the ledger.
func (l *LegacyFeed) Unsubscribe(ctx context.Context, instruments []Instrument) error {
	return l.feed.Unsubscribe(ctx, instruments)
}

// ConnectionStatus reports the single connection's state.
func (l *LegacyFeed) ConnectionStatus() []ConnStatus {
	return l.feed.ConnectionStatus()
}

// Events returns the feed's event stream. Events carry a connection id for
// interface parity with LiveFeed; legacy callers can ignore it.
func (l *LegacyFeed) Events() <-chan Event {
	return l.feed.Events()
}

// Close shuts the feed down permanently.
func (l *LegacyFeed) Close() error {
	return l.feed.Close()
}
