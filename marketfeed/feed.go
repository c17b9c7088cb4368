package marketfeed

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/quantrail/dhanfeed/config"
)

// Pool limits for the ticker/quote/full multi-connection feed. These are wire
// protocol constraints of the upstream venue, not tunables.
const (
	MaxConnections              = 5
	MaxInstrumentsPerConnection = 5000
)

// DefaultGroupInterval separates request-code groups during ledger replay.
const DefaultGroupInterval = 200 * time.Millisecond

// LiveFeed is the pool-managed market feed: it spreads subscriptions for up
// to 25,000 instruments across at most five WebSocket connections, each with
// independent reconnect state.
type LiveFeed struct {
	logger *slog.Logger
	layout Layout

	url        string
	perConnCap int
	maxConns   int

	batchInterval time.Duration
	groupInterval time.Duration
	baseDelay     time.Duration
	maxDelay      time.Duration
	maxAttempts   int

	pingInterval time.Duration
	pongTimeout  time.Duration
	writeTimeout time.Duration
	bufferSize   int

	events chan Event

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	conns  []*feedConn
	nextID int
	closed bool
}

// Option tunes a feed at construction time.
type Option func(*LiveFeed)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(f *LiveFeed) { f.logger = logger }
}

// WithReconnectPolicy overrides the backoff schedule and attempt ceiling.
func WithReconnectPolicy(base, max time.Duration, maxAttempts int) Option {
	return func(f *LiveFeed) {
		f.baseDelay = base
		f.maxDelay = max
		f.maxAttempts = maxAttempts
	}
}

// WithBatchInterval overrides the pacing between subscription frames on one
// connection. Zero disables pacing.
func WithBatchInterval(d time.Duration) Option {
	return func(f *LiveFeed) { f.batchInterval = d }
}

// WithGroupInterval overrides the extra delay between request-code groups
// during replay.
func WithGroupInterval(d time.Duration) Option {
	return func(f *LiveFeed) { f.groupInterval = d }
}

// WithFeedURL overrides the feed endpoint derived from the config.
func WithFeedURL(url string) Option {
	return func(f *LiveFeed) { f.url = url }
}

// New creates a pool-managed live feed from cfg. Defaults are applied to the
// config; the feed does not open any socket until Connect or Subscribe.
func New(cfg *config.Config, opts ...Option) (*LiveFeed, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	f := &LiveFeed{
		logger:        slog.Default(),
		layout:        LayoutPooled,
		url:           cfg.FeedURL(),
		perConnCap:    MaxInstrumentsPerConnection,
		maxConns:      MaxConnections,
		batchInterval: cfg.Feed.BatchInterval,
		groupInterval: DefaultGroupInterval,
		baseDelay:     cfg.Feed.ReconnectBaseDelay,
		maxDelay:      cfg.Feed.ReconnectMaxDelay,
		maxAttempts:   cfg.Feed.MaxReconnectAttempts,
		pingInterval:  cfg.Feed.PingInterval,
		pongTimeout:   0, // The pooled feed pings but never enforces pongs
		writeTimeout:  cfg.Feed.WriteTimeout,
		bufferSize:    cfg.Feed.BufferSize,
		events:        make(chan Event, cfg.Feed.BufferSize),
	}

	for _, opt := range opts {
		opt(f)
	}

	f.ctx, f.cancel = context.WithCancel(context.Background())

	return f, nil
}

// Events returns the feed's event stream. The channel is never closed; after
// Close it simply stops receiving.
func (f *LiveFeed) Events() <-chan Event {
	return f.events
}

// Connect eagerly opens the first pooled connection. Optional: Subscribe
// dials on demand.
func (f *LiveFeed) Connect(ctx context.Context) error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return ErrFeedClosed
	}
	if len(f.conns) == 0 {
		f.conns = append(f.conns, f.newFeedConn())
	}
	fc := f.conns[0]
	f.mu.Unlock()

	return f.ensureConnected(ctx, fc)
}

// ConnectionStatus returns a read-only snapshot of every pooled connection.
func (f *LiveFeed) ConnectionStatus() []ConnStatus {
	f.mu.Lock()
	conns := append([]*feedConn(nil), f.conns...)
	f.mu.Unlock()

	statuses := make([]ConnStatus, 0, len(conns))
	for _, fc := range conns {
		fc.mu.Lock()
		statuses = append(statuses, ConnStatus{
			ID:          fc.id,
			UID:         fc.uid,
			State:       fc.state,
			Instruments: fc.count,
		})
		fc.mu.Unlock()
	}
	return statuses
}

// Close tears the whole feed down: every connection's close is marked
// intentional (suppressing reconnects), sockets are closed, and the pool is
// emptied. The feed cannot be reused afterwards.
func (f *LiveFeed) Close() error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil
	}
	f.closed = true
	conns := f.conns
	f.conns = nil
	f.mu.Unlock()

	for _, fc := range conns {
		fc.mu.Lock()
		fc.intentional = true
		fc.state = StateDisconnected
		client := fc.client
		fc.client = nil
		fc.mu.Unlock()

		if client != nil {
			if frame, err := EncodeDisconnectFrame(); err == nil {
				client.Send(frame)
			}
			client.Close()
		}
	}

	f.cancel()
	f.wg.Wait()

	f.logger.Info("feed closed", "connections", len(conns))
	return nil
}

func (f *LiveFeed) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// emit delivers an event without blocking; consumers that fall behind lose
// events rather than stalling socket reads.
func (f *LiveFeed) emit(e Event) {
	select {
	case f.events <- e:
	default:
		f.logger.Warn("event buffer full, dropping event", "type", e.Type, "conn_id", e.ConnID)
	}
}
