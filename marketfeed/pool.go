package marketfeed

import (
	"context"
	"fmt"
)

// assignment is one connection's share of a subscribe call, recorded in the
// connection's ledger at placement time.
type assignment struct {
	fc      *feedConn
	count   int
	batches [][]Instrument
}

// placeInstruments slices a subscribe request across the pool: existing
// connections are filled to their cap in creation order, then new records are
// created while the pool is under its bound. The whole request is rejected
// up front when the pool cannot absorb it; no partial bookkeeping happens.
// Ledger mutation and count bumps happen here, under the pool lock, so
// concurrent subscribes cannot overcommit a connection.
func (f *LiveFeed) placeInstruments(instruments []Instrument, code RequestCode) ([]assignment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return nil, ErrFeedClosed
	}

	spare := (f.maxConns - len(f.conns)) * f.perConnCap
	for _, fc := range f.conns {
		fc.mu.Lock()
		if !fc.intentional {
			spare += f.perConnCap - fc.count
		}
		fc.mu.Unlock()
	}
	if len(instruments) > spare {
		return nil, fmt.Errorf("%w: %d instruments requested, %d slots available across %d connections",
			ErrCapacityExceeded, len(instruments), spare, f.maxConns)
	}

	var assigns []assignment
	remaining := instruments

	takeFrom := func(fc *feedConn) {
		if len(remaining) == 0 {
			return
		}

		fc.mu.Lock()
		defer fc.mu.Unlock()

		room := f.perConnCap - fc.count
		if fc.intentional {
			room = 0
		}
		if room <= 0 {
			return
		}
		take := room
		if take > len(remaining) {
			take = len(remaining)
		}

		batches := SplitBatches(remaining[:take], MaxPerMessage)
		fc.ledger[code] = append(fc.ledger[code], batches...)
		fc.count += take
		remaining = remaining[take:]

		assigns = append(assigns, assignment{fc: fc, count: take, batches: batches})
	}

	for _, fc := range f.conns {
		takeFrom(fc)
	}
	for len(remaining) > 0 && len(f.conns) < f.maxConns {
		fc := f.newFeedConn()
		f.conns = append(f.conns, fc)
		takeFrom(fc)
	}

	return assigns, nil
}

// Subscribe subscribes instruments under the given request code. Each target
// connection's batch list is recorded in its ledger before any frame is
// sent; send failures surface as error events and are replayed on the next
// reconnect rather than rolled back.
func (f *LiveFeed) Subscribe(ctx context.Context, instruments []Instrument, code RequestCode) error {
	if len(instruments) == 0 {
		return ErrNoInstruments
	}
	if !code.IsSubscribe() {
		return fmt.Errorf("request code %d is not a subscribe code", code)
	}
	for _, in := range instruments {
		if err := in.Validate(); err != nil {
			return err
		}
	}

	// Placement records each connection's batches in its ledger before any
	// frame is sent: replay after a reconnect is intentionally optimistic.
	assigns, err := f.placeInstruments(instruments, code)
	if err != nil {
		return err
	}

	for _, a := range assigns {
		if err := f.ensureConnected(ctx, a.fc); err != nil {
			return fmt.Errorf("connect feed: %w", err)
		}

		f.sendBatches(ctx, a.fc, code, a.batches)

		f.logger.Debug("subscribed",
			"conn_id", a.fc.id,
			"request_code", int(code),
			"instruments", a.count,
			"batches", len(a.batches),
		)
	}

	return nil
}

// sendBatches writes one frame per batch, paced by the connection's limiter.
// A failed send is reported and skipped; remaining batches still go out.
func (f *LiveFeed) sendBatches(ctx context.Context, fc *feedConn, code RequestCode, batches [][]Instrument) {
	for _, batch := range batches {
		if err := fc.limiter.Wait(ctx); err != nil {
			return
		}

		frame, err := EncodeSubscriptionFrame(code, batch)
		if err != nil {
			f.emit(Event{Type: EventError, ConnID: fc.id, Err: err})
			continue
		}

		fc.mu.Lock()
		client := fc.client
		fc.mu.Unlock()

		if client == nil {
			f.emit(Event{Type: EventError, ConnID: fc.id, Err: fmt.Errorf("send batch: no live socket")})
			continue
		}
		if err := client.Send(frame); err != nil {
			f.emit(Event{Type: EventError, ConnID: fc.id, Err: fmt.Errorf("send batch: %w", err)})
		}
	}
}

// Unsubscribe removes instruments best-effort: unsubscribe frames for the
// requested instruments go out on every connection that holds subscriptions,
// then every ledger is cleared and every count zeroed. Per-instrument ledger
// surgery is deliberately not attempted.
func (f *LiveFeed) Unsubscribe(ctx context.Context, instruments []Instrument) error {
	if len(instruments) == 0 {
		return ErrNoInstruments
	}

	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return ErrFeedClosed
	}
	conns := append([]*feedConn(nil), f.conns...)
	f.mu.Unlock()

	batches := SplitBatches(instruments, MaxPerMessage)

	for _, fc := range conns {
		fc.mu.Lock()
		codes := make([]RequestCode, 0, len(fc.ledger))
		for code := range fc.ledger {
			codes = append(codes, code)
		}
		fc.mu.Unlock()

		for _, code := range codes {
			f.sendBatches(ctx, fc, code.UnsubscribeCode(), batches)
		}

		fc.mu.Lock()
		fc.ledger = make(map[RequestCode][][]Instrument)
		fc.count = 0
		fc.mu.Unlock()
	}

	return nil
}
