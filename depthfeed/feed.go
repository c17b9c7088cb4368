package depthfeed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/quantrail/dhanfeed/config"
	"github.com/quantrail/dhanfeed/internal/conn"
	"github.com/quantrail/dhanfeed/marketfeed"
)

// MaxConnections bounds the depth pool, same as the market feed pool.
const MaxConnections = 5

// PerConnectionCap returns the instrument cap for one depth connection.
// These asymmetric caps are upstream wire-protocol constraints.
func PerConnectionCap(depth DepthType) int {
	if depth == Depth200 {
		return 1
	}
	return 50
}

// PerMessageCap returns the instrument cap for one subscription frame.
func PerMessageCap(depth DepthType) int {
	if depth == Depth200 {
		return marketfeed.MaxPerMessageDepth200
	}
	return marketfeed.MaxPerMessageDepth20
}

// Snapshot pairs the bid and ask halves of one instrument's book. One side
// may be empty when its counterpart has not arrived yet.
type Snapshot struct {
	ExchangeSegment marketfeed.ExchangeSegment
	SecurityID      int32
	Bids            []Entry
	Asks            []Entry
}

// Event is the depth feed's event union. Snapshot is set for message events;
// Err for error events; Code/Reason for close and disconnection events.
type Event struct {
	Type   marketfeed.EventType
	ConnID int

	Snapshot *Snapshot
	Err      error
	Code     int
	Reason   string
}

type instrumentKey struct {
	segment    marketfeed.ExchangeSegment
	securityID int32
}

// depthConn is one pooled depth connection record.
type depthConn struct {
	id  int
	uid string

	mu          sync.Mutex
	state       marketfeed.ConnState
	client      conn.Client
	attempts    int
	count       int
	batches     [][]marketfeed.Instrument // Resubscription ledger
	intentional bool
	maxFired    bool
	retry       *backoff.ExponentialBackOff
	limiter     *rate.Limiter

	// Half-book updates waiting for their counterpart.
	pending map[instrumentKey]*Update
}

// Feed is the pool-managed market-depth feed (20- or 200-level).
type Feed struct {
	logger *slog.Logger
	depth  DepthType

	url        string
	perConnCap int
	maxConns   int

	batchInterval time.Duration
	baseDelay     time.Duration
	maxDelay      time.Duration
	maxAttempts   int

	pingInterval time.Duration
	writeTimeout time.Duration
	bufferSize   int

	events chan Event

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	conns  []*depthConn
	nextID int
	closed bool
}

// Option tunes a depth feed at construction time.
type Option func(*Feed)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Feed) { f.logger = logger }
}

// WithReconnectPolicy overrides the backoff schedule and attempt ceiling.
func WithReconnectPolicy(base, max time.Duration, maxAttempts int) Option {
	return func(f *Feed) {
		f.baseDelay = base
		f.maxDelay = max
		f.maxAttempts = maxAttempts
	}
}

// WithBatchInterval overrides the pacing between subscription frames.
// Zero disables pacing.
func WithBatchInterval(d time.Duration) Option {
	return func(f *Feed) { f.batchInterval = d }
}

// WithFeedURL overrides the depth endpoint derived from the config.
func WithFeedURL(url string) Option {
	return func(f *Feed) { f.url = url }
}

// New creates a depth feed from cfg for the given variant.
func New(cfg *config.Config, depth DepthType, opts ...Option) (*Feed, error) {
	if depth != Depth20 && depth != Depth200 {
		return nil, fmt.Errorf("unsupported depth type %d", depth)
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	f := &Feed{
		logger:        slog.Default(),
		depth:         depth,
		url:           cfg.DepthFeedURL(),
		perConnCap:    PerConnectionCap(depth),
		maxConns:      MaxConnections,
		batchInterval: cfg.Feed.BatchInterval,
		baseDelay:     cfg.Feed.ReconnectBaseDelay,
		maxDelay:      cfg.Feed.ReconnectMaxDelay,
		maxAttempts:   cfg.Feed.MaxReconnectAttempts,
		pingInterval:  cfg.Feed.PingInterval,
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

// Events returns the feed's event stream. The channel is never closed.
func (f *Feed) Events() <-chan Event {
	return f.events
}

// DepthType returns the configured variant.
func (f *Feed) DepthType() DepthType {
	return f.depth
}

func (f *Feed) newDepthConn() *depthConn {
	dc := &depthConn{
		id:      f.nextID,
		uid:     uuid.New().String(),
		state:   marketfeed.StateDisconnected,
		retry:   conn.NewBackOff(f.baseDelay, f.maxDelay),
		pending: make(map[instrumentKey]*Update),
	}
	f.nextID++

	if f.batchInterval > 0 {
		dc.limiter = rate.NewLimiter(rate.Every(f.batchInterval), 1)
	} else {
		dc.limiter = rate.NewLimiter(rate.Inf, 1)
	}

	return dc
}

// depthAssignment is one connection's share of a subscribe call, recorded in
// the connection's ledger at placement time.
type depthAssignment struct {
	dc      *depthConn
	count   int
	batches [][]marketfeed.Instrument
}

// placeInstruments slices a subscribe request across the pool, filling
// existing connections to their cap in creation order and creating records
// while the pool is under its bound. The whole request is rejected up front
// when the pool cannot absorb it. Ledger mutation and count bumps happen
// here, under the pool lock, so concurrent subscribes cannot overcommit a
// connection.
func (f *Feed) placeInstruments(instruments []marketfeed.Instrument) ([]depthAssignment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return nil, marketfeed.ErrFeedClosed
	}

	spare := (f.maxConns - len(f.conns)) * f.perConnCap
	for _, dc := range f.conns {
		dc.mu.Lock()
		if !dc.intentional {
			spare += f.perConnCap - dc.count
		}
		dc.mu.Unlock()
	}
	if len(instruments) > spare {
		return nil, fmt.Errorf("%w: %d instruments requested, %d depth slots available across %d connections",
			marketfeed.ErrCapacityExceeded, len(instruments), spare, f.maxConns)
	}

	var assigns []depthAssignment
	remaining := instruments

	takeFrom := func(dc *depthConn) {
		if len(remaining) == 0 {
			return
		}

		dc.mu.Lock()
		defer dc.mu.Unlock()

		room := f.perConnCap - dc.count
		if dc.intentional {
			room = 0
		}
		if room <= 0 {
			return
		}
		take := room
		if take > len(remaining) {
			take = len(remaining)
		}

		batches := marketfeed.SplitBatches(remaining[:take], PerMessageCap(f.depth))
		dc.batches = append(dc.batches, batches...)
		dc.count += take
		remaining = remaining[take:]

		assigns = append(assigns, depthAssignment{dc: dc, count: take, batches: batches})
	}

	for _, dc := range f.conns {
		takeFrom(dc)
	}
	for len(remaining) > 0 && len(f.conns) < f.maxConns {
		dc := f.newDepthConn()
		f.conns = append(f.conns, dc)
		takeFrom(dc)
	}

	return assigns, nil
}

// Subscribe subscribes instruments to the depth feed. Bookkeeping precedes
// the sends, matching the market feed's optimistic replay semantics.
func (f *Feed) Subscribe(ctx context.Context, instruments []marketfeed.Instrument) error {
	if len(instruments) == 0 {
		return marketfeed.ErrNoInstruments
	}
	for _, in := range instruments {
		if err := in.Validate(); err != nil {
			return err
		}
	}

	assigns, err := f.placeInstruments(instruments)
	if err != nil {
		return err
	}

	for _, a := range assigns {
		if err := f.ensureConnected(ctx, a.dc); err != nil {
			return fmt.Errorf("connect depth feed: %w", err)
		}

		f.sendBatches(ctx, a.dc, marketfeed.RequestSubscribeDepth, a.batches)

		f.logger.Debug("subscribed depth",
			"conn_id", a.dc.id,
			"depth", int(f.depth),
			"instruments", a.count,
			"batches", len(a.batches),
		)
	}

	return nil
}

// Unsubscribe removes instruments best-effort and clears every ledger.
func (f *Feed) Unsubscribe(ctx context.Context, instruments []marketfeed.Instrument) error {
	if len(instruments) == 0 {
		return marketfeed.ErrNoInstruments
	}

	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return marketfeed.ErrFeedClosed
	}
	conns := append([]*depthConn(nil), f.conns...)
	f.mu.Unlock()

	batches := marketfeed.SplitBatches(instruments, PerMessageCap(f.depth))

	for _, dc := range conns {
		dc.mu.Lock()
		subscribed := len(dc.batches) > 0
		dc.mu.Unlock()

		if subscribed {
			f.sendBatches(ctx, dc, marketfeed.RequestUnsubscribeDepth, batches)
		}

		dc.mu.Lock()
		dc.batches = nil
		dc.count = 0
		dc.mu.Unlock()
	}

	return nil
}

// ConnStatus is a depth connection snapshot: the common fields plus the
// feed's configured depth variant.
type ConnStatus struct {
	marketfeed.ConnStatus
	Depth DepthType
}

// ConnectionStatus returns a read-only snapshot of every pooled connection.
func (f *Feed) ConnectionStatus() []ConnStatus {
	f.mu.Lock()
	conns := append([]*depthConn(nil), f.conns...)
	f.mu.Unlock()

	statuses := make([]ConnStatus, 0, len(conns))
	for _, dc := range conns {
		dc.mu.Lock()
		statuses = append(statuses, ConnStatus{
			ConnStatus: marketfeed.ConnStatus{
				ID:          dc.id,
				UID:         dc.uid,
				State:       dc.state,
				Instruments: dc.count,
			},
			Depth: f.depth,
		})
		dc.mu.Unlock()
	}
	return statuses
}

// Close tears the feed down: intentional close on every record, sockets
// closed, pool emptied.
func (f *Feed) Close() error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil
	}
	f.closed = true
	conns := f.conns
	f.conns = nil
	f.mu.Unlock()

	for _, dc := range conns {
		dc.mu.Lock()
		dc.intentional = true
		dc.state = marketfeed.StateDisconnected
		client := dc.client
		dc.client = nil
		dc.mu.Unlock()

		if client != nil {
			if frame, err := marketfeed.EncodeDisconnectFrame(); err == nil {
				client.Send(frame)
			}
			client.Close()
		}
	}

	f.cancel()
	f.wg.Wait()

	f.logger.Info("depth feed closed", "connections", len(conns))
	return nil
}

func (f *Feed) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *Feed) emit(e Event) {
	select {
	case f.events <- e:
	default:
		f.logger.Warn("event buffer full, dropping event", "type", e.Type, "conn_id", e.ConnID)
	}
}

func (f *Feed) connURL(dc *depthConn) string {
	sep := "?"
	if strings.Contains(f.url, "?") {
		sep = "&"
	}
	return f.url + sep + "connId=" + dc.uid
}

func (f *Feed) clientConfig(dc *depthConn) conn.ClientConfig {
	return conn.ClientConfig{
		URL:          f.connURL(dc),
		PingInterval: f.pingInterval,
		WriteTimeout: f.writeTimeout,
		BufferSize:   f.bufferSize,
	}
}

// ensureConnected dials the socket for dc if it does not own a live one.
func (f *Feed) ensureConnected(ctx context.Context, dc *depthConn) error {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	if dc.client != nil && dc.client.IsConnected() {
		return nil
	}

	dc.state = marketfeed.StateConnecting
	client := conn.NewClient(f.clientConfig(dc), f.logger.With("conn_id", dc.id))

	if err := client.Connect(ctx); err != nil {
		dc.state = marketfeed.StateDisconnected
		return err
	}

	dc.client = client
	dc.state = marketfeed.StateConnected
	dc.attempts = 0
	dc.retry.Reset()

	f.wg.Add(1)
	go f.watch(dc, client)

	f.emit(Event{Type: marketfeed.EventConnect, ConnID: dc.id})
	return nil
}

// sendBatches writes one frame per batch, paced by the connection's limiter.
func (f *Feed) sendBatches(ctx context.Context, dc *depthConn, code marketfeed.RequestCode, batches [][]marketfeed.Instrument) {
	for _, batch := range batches {
		if err := dc.limiter.Wait(ctx); err != nil {
			return
		}

		frame, err := marketfeed.EncodeSubscriptionFrame(code, batch)
		if err != nil {
			f.emit(Event{Type: marketfeed.EventError, ConnID: dc.id, Err: err})
			continue
		}

		dc.mu.Lock()
		client := dc.client
		dc.mu.Unlock()

		if client == nil {
			f.emit(Event{Type: marketfeed.EventError, ConnID: dc.id, Err: fmt.Errorf("send batch: no live socket")})
			continue
		}
		if err := client.Send(frame); err != nil {
			f.emit(Event{Type: marketfeed.EventError, ConnID: dc.id, Err: fmt.Errorf("send batch: %w", err)})
		}
	}
}

// watch consumes frames and errors from one socket until it dies.
func (f *Feed) watch(dc *depthConn, client conn.Client) {
	defer f.wg.Done()

	for {
		select {
		case <-f.ctx.Done():
			return

		case err := <-client.Errors():
			f.logger.Warn("depth connection error", "conn_id", dc.id, "error", err)
			f.emit(Event{Type: marketfeed.EventClose, ConnID: dc.id, Code: conn.CloseCode(err), Reason: err.Error()})
			f.scheduleReconnect(dc)
			return

		case data, ok := <-client.Messages():
			if !ok {
				return
			}
			f.handleFrame(dc, data)
		}
	}
}

// handleFrame walks every depth message packed into one WebSocket frame.
func (f *Feed) handleFrame(dc *depthConn, data []byte) {
	for len(data) > 0 {
		update, remaining, err := Decode(data, f.depth)
		if err != nil {
			var disc *DisconnectError
			switch {
			case errors.As(err, &disc):
				f.handleServerDisconnect(dc, disc)
			case errors.Is(err, marketfeed.ErrUnknownResponseCode):
				f.logger.Debug("dropping unrecognized depth message", "conn_id", dc.id, "error", err)
			default:
				f.emit(Event{Type: marketfeed.EventError, ConnID: dc.id, Err: err})
			}
			return
		}

		f.deliver(dc, update)
		data = remaining
	}
}

// deliver pairs bid and ask halves into snapshots. An unmatched half is held
// until its counterpart arrives; a duplicate half flushes the held one.
func (f *Feed) deliver(dc *depthConn, update *Update) {
	key := instrumentKey{update.ExchangeSegment, update.SecurityID}

	dc.mu.Lock()
	held, ok := dc.pending[key]
	if ok && held.Side != update.Side {
		delete(dc.pending, key)
		dc.mu.Unlock()
		f.emit(Event{Type: marketfeed.EventMessage, ConnID: dc.id, Snapshot: combine(held, update)})
		return
	}
	dc.pending[key] = update
	dc.mu.Unlock()

	if ok {
		// Same side twice: the held half goes out alone.
		f.emit(Event{Type: marketfeed.EventMessage, ConnID: dc.id, Snapshot: combine(held, nil)})
	}
}

func combine(a, b *Update) *Snapshot {
	s := &Snapshot{}
	for _, u := range []*Update{a, b} {
		if u == nil {
			continue
		}
		s.ExchangeSegment = u.ExchangeSegment
		s.SecurityID = u.SecurityID
		if u.Side == SideBid {
			s.Bids = u.Levels
		} else {
			s.Asks = u.Levels
		}
	}
	return s
}

// handleServerDisconnect mirrors the market feed's classification: critical
// codes kill the connection, rate limiting inflates the attempt counter.
func (f *Feed) handleServerDisconnect(dc *depthConn, disc *DisconnectError) {
	f.emit(Event{
		Type:   marketfeed.EventDisconnection,
		ConnID: dc.id,
		Err:    disc,
		Code:   int(disc.ErrorCode),
		Reason: disc.Reason,
	})

	dc.mu.Lock()
	switch {
	case disc.ErrorCode == marketfeed.ErrCodeNotSubscribed,
		disc.ErrorCode == marketfeed.ErrCodeTokenExpired,
		disc.ErrorCode == marketfeed.ErrCodeAuthFailed,
		disc.ErrorCode == marketfeed.ErrCodeInvalidToken:
		dc.intentional = true
		dc.state = marketfeed.StateDisconnected
		client := dc.client
		dc.mu.Unlock()
		if client != nil {
			client.Close()
		}
		f.logger.Error("depth connection closed by server",
			"conn_id", dc.id,
			"code", disc.ErrorCode,
			"reason", disc.Reason,
		)
		return

	case disc.ErrorCode == marketfeed.ErrCodeRateLimited:
		dc.attempts += 3
	}
	dc.mu.Unlock()
}

// scheduleReconnect runs the per-connection reconnect machine.
func (f *Feed) scheduleReconnect(dc *depthConn) {
	closed := f.isClosed()

	dc.mu.Lock()

	if dc.intentional || closed {
		dc.state = marketfeed.StateDisconnected
		dc.mu.Unlock()
		return
	}

	dc.attempts++
	if dc.attempts > f.maxAttempts {
		dc.state = marketfeed.StateDisconnected
		fired := dc.maxFired
		dc.maxFired = true
		dc.mu.Unlock()

		if !fired {
			f.logger.Error("max reconnect attempts reached", "conn_id", dc.id)
			f.emit(Event{Type: marketfeed.EventMaxReconnect, ConnID: dc.id})
		}
		return
	}

	dc.state = marketfeed.StateReconnecting
	attempt := dc.attempts
	delay := conn.NextDelay(dc.retry, f.maxDelay)
	dc.mu.Unlock()

	f.logger.Info("scheduling depth reconnect",
		"conn_id", dc.id,
		"attempt", attempt,
		"delay", delay,
	)

	f.wg.Add(1)
	go func() {
		defer f.wg.Done()

		timer := time.NewTimer(delay)
		defer timer.Stop()

		select {
		case <-f.ctx.Done():
			return
		case <-timer.C:
		}

		f.redial(dc)
	}()
}

// redial discards the stale socket, dials fresh, and replays the ledger.
func (f *Feed) redial(dc *depthConn) {
	closed := f.isClosed()

	dc.mu.Lock()
	if dc.intentional || closed {
		dc.state = marketfeed.StateDisconnected
		dc.mu.Unlock()
		return
	}

	if dc.client != nil {
		dc.client.Close()
		dc.client = nil
	}

	dc.state = marketfeed.StateConnecting
	client := conn.NewClient(f.clientConfig(dc), f.logger.With("conn_id", dc.id))

	if err := client.Connect(f.ctx); err != nil {
		dc.state = marketfeed.StateDisconnected
		dc.mu.Unlock()

		f.logger.Warn("depth reconnection failed", "conn_id", dc.id, "error", err)
		f.emit(Event{Type: marketfeed.EventError, ConnID: dc.id, Err: err})
		f.scheduleReconnect(dc)
		return
	}

	dc.client = client
	dc.state = marketfeed.StateConnected
	dc.attempts = 0
	dc.retry.Reset()
	batches := append([][]marketfeed.Instrument(nil), dc.batches...)
	dc.mu.Unlock()

	f.logger.Info("depth reconnected", "conn_id", dc.id)

	f.wg.Add(1)
	go f.watch(dc, client)

	f.emit(Event{Type: marketfeed.EventConnect, ConnID: dc.id})

	f.sendBatches(f.ctx, dc, marketfeed.RequestSubscribeDepth, batches)
}
