package marketfeed

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/quantrail/dhanfeed/internal/conn"
)

// feedConn is one pooled connection record: a logical connection that owns at
// most one physical socket at a time. Records survive transient disconnects;
// they are removed from the pool only by Close.
type feedConn struct {
	id  int    // Process-local, monotonically assigned
	uid string // Sent to the server to disambiguate library instances

	mu          sync.Mutex
	state       ConnState
	client      conn.Client // nil unless a socket is owned
	attempts    int
	count       int // Cumulative subscribed-instrument count
	ledger      map[RequestCode][][]Instrument
	intentional bool // Set by Close; suppresses reconnect
	maxFired    bool
	retry       *backoff.ExponentialBackOff
	limiter     *rate.Limiter // Paces outgoing subscription frames
}

func (f *LiveFeed) newFeedConn() *feedConn {
	fc := &feedConn{
		id:     f.nextID,
		uid:    uuid.New().String(),
		state:  StateDisconnected,
		ledger: make(map[RequestCode][][]Instrument),
		retry:  conn.NewBackOff(f.baseDelay, f.maxDelay),
	}
	f.nextID++

	if f.batchInterval > 0 {
		fc.limiter = rate.NewLimiter(rate.Every(f.batchInterval), 1)
	} else {
		fc.limiter = rate.NewLimiter(rate.Inf, 1)
	}

	return fc
}

// connURL appends this record's unique id to the feed URL.
func (f *LiveFeed) connURL(fc *feedConn) string {
	sep := "?"
	if strings.Contains(f.url, "?") {
		sep = "&"
	}
	return f.url + sep + "connId=" + fc.uid
}

// ensureConnected dials the socket for fc if it does not own a live one.
// A dial failure leaves the record disconnected; its ledger is retained.
func (f *LiveFeed) ensureConnected(ctx context.Context, fc *feedConn) error {
	fc.mu.Lock()
	defer fc.mu.Unlock()

	if fc.client != nil && fc.client.IsConnected() {
		return nil
	}

	fc.state = StateConnecting
	client := conn.NewClient(f.clientConfig(fc), f.logger.With("conn_id", fc.id))

	if err := client.Connect(ctx); err != nil {
		fc.state = StateDisconnected
		return err
	}

	fc.client = client
	fc.state = StateConnected
	fc.attempts = 0
	fc.retry.Reset()

	f.wg.Add(1)
	go f.watch(fc, client)

	f.emit(Event{Type: EventConnect, ConnID: fc.id})
	return nil
}

func (f *LiveFeed) clientConfig(fc *feedConn) conn.ClientConfig {
	return conn.ClientConfig{
		URL:          f.connURL(fc),
		PingInterval: f.pingInterval,
		PongTimeout:  f.pongTimeout, // 0 for the pool-managed feed
		WriteTimeout: f.writeTimeout,
		BufferSize:   f.bufferSize,
	}
}

// watch consumes frames and errors from one socket until it dies, then hands
// the record to the reconnection machinery.
func (f *LiveFeed) watch(fc *feedConn, client conn.Client) {
	defer f.wg.Done()

	for {
		select {
		case <-f.ctx.Done():
			return

		case err := <-client.Errors():
			f.logger.Warn("connection error", "conn_id", fc.id, "error", err)
			f.emit(Event{Type: EventClose, ConnID: fc.id, Code: conn.CloseCode(err), Reason: err.Error()})
			f.scheduleReconnect(fc)
			return

		case data, ok := <-client.Messages():
			if !ok {
				return
			}
			f.handleFrame(fc, data)
		}
	}
}

// handleFrame decodes one frame and emits the matching event.
func (f *LiveFeed) handleFrame(fc *feedConn, data []byte) {
	pkt, err := Decode(data, f.layout)
	if err != nil {
		if errors.Is(err, ErrUnknownResponseCode) {
			// Not an error: forward-compatible servers send codes we
			// do not know yet.
			f.logger.Debug("dropping unrecognized packet", "conn_id", fc.id, "error", err)
			return
		}
		f.emit(Event{Type: EventError, ConnID: fc.id, Err: err})
		return
	}

	if dc, ok := pkt.(*DisconnectPacket); ok {
		f.handleServerDisconnect(fc, dc)
		return
	}

	f.emit(Event{Type: EventMessage, ConnID: fc.id, Packet: pkt})
}

// handleServerDisconnect classifies a feed-level disconnect notice. Critical
// codes kill the connection for good; rate limiting inflates the attempt
// counter so the next backoff waits longer; everything else rides the normal
// reconnect path when the socket close lands.
func (f *LiveFeed) handleServerDisconnect(fc *feedConn, dc *DisconnectPacket) {
	f.emit(Event{
		Type:   EventDisconnection,
		ConnID: fc.id,
		Packet: dc,
		Code:   int(dc.ErrorCode),
		Reason: dc.Reason,
	})

	fc.mu.Lock()
	switch {
	case isCriticalErrCode(dc.ErrorCode):
		fc.intentional = true
		fc.state = StateDisconnected
		client := fc.client
		fc.mu.Unlock()
		if client != nil {
			client.Close()
		}
		f.logger.Error("connection closed by server",
			"conn_id", fc.id,
			"code", dc.ErrorCode,
			"reason", dc.Reason,
		)
		return

	case dc.ErrorCode == ErrCodeRateLimited:
		fc.attempts += 3
	}
	fc.mu.Unlock()
}

// scheduleReconnect runs the reconnection state machine for one record after
// an unintentional socket loss.
func (f *LiveFeed) scheduleReconnect(fc *feedConn) {
	closed := f.isClosed()

	fc.mu.Lock()

	if fc.intentional || closed {
		fc.state = StateDisconnected
		fc.mu.Unlock()
		return
	}

	fc.attempts++
	if fc.attempts > f.maxAttempts {
		fc.state = StateDisconnected
		fired := fc.maxFired
		fc.maxFired = true
		fc.mu.Unlock()

		if !fired {
			f.logger.Error("max reconnect attempts reached", "conn_id", fc.id)
			f.emit(Event{Type: EventMaxReconnect, ConnID: fc.id})
		}
		return
	}

	fc.state = StateReconnecting
	attempt := fc.attempts
	delay := conn.NextDelay(fc.retry, f.maxDelay)
	fc.mu.Unlock()

	f.logger.Info("scheduling reconnect",
		"conn_id", fc.id,
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

		f.redial(fc)
	}()
}

// redial tears down the stale socket and attempts a fresh connection. On
// success the whole ledger is replayed; on failure another attempt is
// scheduled.
func (f *LiveFeed) redial(fc *feedConn) {
	closed := f.isClosed()

	fc.mu.Lock()
	if fc.intentional || closed {
		fc.state = StateDisconnected
		fc.mu.Unlock()
		return
	}

	if fc.client != nil {
		fc.client.Close()
		fc.client = nil
	}

	fc.state = StateConnecting
	client := conn.NewClient(f.clientConfig(fc), f.logger.With("conn_id", fc.id))

	if err := client.Connect(f.ctx); err != nil {
		fc.state = StateDisconnected
		fc.mu.Unlock()

		f.logger.Warn("reconnection failed", "conn_id", fc.id, "error", err)
		f.emit(Event{Type: EventError, ConnID: fc.id, Err: err})
		f.scheduleReconnect(fc)
		return
	}

	fc.client = client
	fc.state = StateConnected
	fc.attempts = 0
	fc.retry.Reset()
	fc.mu.Unlock()

	f.logger.Info("reconnected", "conn_id", fc.id)

	f.wg.Add(1)
	go f.watch(fc, client)

	f.emit(Event{Type: EventConnect, ConnID: fc.id})

	f.replay(fc)
}

// replay re-sends every retained subscription batch, grouped by request code.
// Batches within a group keep the normal inter-batch pacing; groups get an
// extra delay between them.
func (f *LiveFeed) replay(fc *feedConn) {
	fc.mu.Lock()
	groups := make(map[RequestCode][][]Instrument, len(fc.ledger))
	for code, batches := range fc.ledger {
		groups[code] = append([][]Instrument(nil), batches...)
	}
	fc.mu.Unlock()

	first := true
	for code, batches := range groups {
		if !first {
			select {
			case <-f.ctx.Done():
				return
			case <-time.After(f.groupInterval):
			}
		}
		first = false

		f.sendBatches(f.ctx, fc, code, batches)
	}
}
