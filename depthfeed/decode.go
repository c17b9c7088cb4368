package depthfeed

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/quantrail/dhanfeed/marketfeed"
)

// DepthType selects the 20-level or 200-level depth variant. The variants
// share the wire format but differ in row counts and subscription caps.
type DepthType int

const (
	Depth20  DepthType = 20
	Depth200 DepthType = 200
)

// Rows returns the maximum number of levels per update for the variant.
func (d DepthType) Rows() int { return int(d) }

// Wire constants for the depth feed.
const (
	headerSize = 12
	entrySize  = 16

	codeBid        = 41
	codeDisconnect = 50
	codeAsk        = 51
)

// Side marks which half of the book an update describes.
type Side int

const (
	SideBid Side = iota
	SideAsk
)

func (s Side) String() string {
	if s == SideBid {
		return "bid"
	}
	return "ask"
}

// Entry is one price level: price, aggregate quantity, resting order count.
type Entry struct {
	Price    float64
	Quantity uint32
	Orders   uint32
}

// Update is one decoded bid-side or ask-side depth message.
type Update struct {
	ExchangeSegment marketfeed.ExchangeSegment
	SecurityID      int32
	Side            Side
	Levels          []Entry
}

// DisconnectError is a server-initiated disconnect notice on the depth feed.
type DisconnectError struct {
	ErrorCode uint16
	Reason    string
}

func (e *DisconnectError) Error() string {
	return fmt.Sprintf("server disconnection %d: %s", e.ErrorCode, e.Reason)
}

// Decode parses one depth message from the front of buf and returns the
// remaining bytes; the server packs multiple messages per WebSocket frame.
//
// The row count comes from the header, capped at the variant's ladder size.
// The level loop never reads past the message's declared length, stops early
// when the remainder cannot hold a full 16-byte level record, and fails
// closed on truncated headers and on declared lengths the frame cannot hold.
func Decode(buf []byte, depth DepthType) (*Update, []byte, error) {
	if len(buf) < headerSize {
		return nil, nil, fmt.Errorf("%w: depth header %d bytes, need %d",
			marketfeed.ErrShortPacket, len(buf), headerSize)
	}

	msgLen := int(binary.LittleEndian.Uint16(buf[0:2]))
	code := buf[2]
	segment := marketfeed.ExchangeSegment(buf[3])
	securityID := int32(binary.LittleEndian.Uint32(buf[4:8]))
	rows := int(binary.LittleEndian.Uint32(buf[8:12]))

	// An inconsistent declared length would bleed the level loop into the
	// next packed message, or stall the caller's frame walk.
	if msgLen < headerSize || msgLen > len(buf) {
		return nil, nil, fmt.Errorf("%w: depth message declares %d bytes, frame holds %d",
			marketfeed.ErrShortPacket, msgLen, len(buf))
	}

	if code == codeDisconnect {
		errCode := uint16(rows) // Disconnect notices carry the code in the row-count slot
		if msgLen >= headerSize+2 {
			errCode = binary.LittleEndian.Uint16(buf[headerSize : headerSize+2])
		}
		return nil, nil, &DisconnectError{
			ErrorCode: errCode,
			Reason:    marketfeed.DisconnectReason(errCode),
		}
	}

	var side Side
	switch code {
	case codeBid:
		side = SideBid
	case codeAsk:
		side = SideAsk
	default:
		return nil, nil, fmt.Errorf("%w: %d", marketfeed.ErrUnknownResponseCode, code)
	}

	if rows > depth.Rows() {
		rows = depth.Rows()
	}

	levels := make([]Entry, 0, rows)
	offset := headerSize
	for i := 0; i < rows; i++ {
		if offset+entrySize > msgLen {
			break
		}
		levels = append(levels, Entry{
			Price:    math.Float64frombits(binary.LittleEndian.Uint64(buf[offset : offset+8])),
			Quantity: binary.LittleEndian.Uint32(buf[offset+8 : offset+12]),
			Orders:   binary.LittleEndian.Uint32(buf[offset+12 : offset+16]),
		})
		offset += entrySize
	}

	update := &Update{
		ExchangeSegment: segment,
		SecurityID:      securityID,
		Side:            side,
		Levels:          levels,
	}

	var remaining []byte
	if msgLen < len(buf) {
		remaining = buf[msgLen:]
	}

	return update, remaining, nil
}
