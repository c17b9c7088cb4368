package marketfeed

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Layout selects which wire header the decoder expects. The pool-managed feed
// and the legacy single-socket feed frame packets differently, so the active
// feed variant threads its layout into Decode.
type Layout int

const (
	// LayoutPooled: response code at byte 0, message length at 1-2,
	// exchange segment at byte 3, security id at 4-7.
	LayoutPooled Layout = iota

	// LayoutLegacy: response code at byte 0, exchange segment at byte 1,
	// security id at 2-5. No message length field.
	LayoutLegacy
)

// headerSize returns the number of header bytes for the layout.
func (l Layout) headerSize() int {
	if l == LayoutLegacy {
		return legacyHeaderSize
	}
	return pooledHeaderSize
}

const (
	pooledHeaderSize = 8
	legacyHeaderSize = 6
)

// Payload sizes (bytes after the header) per packet type.
const (
	tickerPayloadSize     = 8
	quotePayloadSize      = 42
	oiPayloadSize         = 4
	prevClosePayloadSize  = 8
	statusPayloadSize     = 1
	fullPayloadSize       = quotePayloadSize + 12 + 5*depthLevelSize
	disconnectPayloadSize = 2

	depthLevelSize = 20
)

// Decode turns one raw frame into a typed packet.
//
// Unknown response codes return ErrUnknownResponseCode; callers log and drop
// those without emitting anything. Buffers too short for their declared type
// fail closed with an ErrShortPacket-wrapped error.
func Decode(buf []byte, layout Layout) (Packet, error) {
	hdrSize := layout.headerSize()
	if len(buf) < hdrSize {
		return nil, fmt.Errorf("%w: %d bytes, header needs %d", ErrShortPacket, len(buf), hdrSize)
	}

	var hdr PacketHeader
	switch layout {
	case LayoutLegacy:
		hdr.ExchangeSegment = ExchangeSegment(buf[1])
		hdr.SecurityID = int32(binary.LittleEndian.Uint32(buf[2:6]))
	default:
		hdr.ExchangeSegment = ExchangeSegment(buf[3])
		hdr.SecurityID = int32(binary.LittleEndian.Uint32(buf[4:8]))
	}

	code := buf[0]
	payload := buf[hdrSize:]

	switch code {
	case respCodeTicker:
		if err := checkPayload("ticker", payload, tickerPayloadSize); err != nil {
			return nil, err
		}
		return &TickerPacket{
			PacketHeader:    hdr,
			LastTradedPrice: float32LE(payload[0:4]),
			LastTradeTime:   int32(binary.LittleEndian.Uint32(payload[4:8])),
		}, nil

	case respCodeQuote:
		if err := checkPayload("quote", payload, quotePayloadSize); err != nil {
			return nil, err
		}
		p := &QuotePacket{PacketHeader: hdr}
		decodeQuoteFields(payload, &p.LastTradedPrice, &p.LastTradedQuantity, &p.LastTradeTime,
			&p.AverageTradePrice, &p.Volume, &p.TotalSellQuantity, &p.TotalBuyQuantity)
		p.DayOpen = float32LE(payload[26:30])
		p.DayClose = float32LE(payload[30:34])
		p.DayHigh = float32LE(payload[34:38])
		p.DayLow = float32LE(payload[38:42])
		return p, nil

	case respCodeOpenInterest:
		if err := checkPayload("open interest", payload, oiPayloadSize); err != nil {
			return nil, err
		}
		return &OpenInterestPacket{
			PacketHeader: hdr,
			OpenInterest: int32(binary.LittleEndian.Uint32(payload[0:4])),
		}, nil

	case respCodePrevClose:
		if err := checkPayload("prev close", payload, prevClosePayloadSize); err != nil {
			return nil, err
		}
		return &PrevClosePacket{
			PacketHeader:         hdr,
			PreviousClose:        float32LE(payload[0:4]),
			PreviousOpenInterest: int32(binary.LittleEndian.Uint32(payload[4:8])),
		}, nil

	case respCodeMarketStatus:
		if err := checkPayload("market status", payload, statusPayloadSize); err != nil {
			return nil, err
		}
		return &MarketStatusPacket{
			PacketHeader: hdr,
			Open:         payload[0] == 1,
		}, nil

	case respCodeFull:
		if err := checkPayload("full", payload, fullPayloadSize); err != nil {
			return nil, err
		}
		p := &FullPacket{PacketHeader: hdr}
		decodeQuoteFields(payload, &p.LastTradedPrice, &p.LastTradedQuantity, &p.LastTradeTime,
			&p.AverageTradePrice, &p.Volume, &p.TotalSellQuantity, &p.TotalBuyQuantity)
		p.OpenInterest = int32(binary.LittleEndian.Uint32(payload[26:30]))
		p.DayHighOI = int32(binary.LittleEndian.Uint32(payload[30:34]))
		p.DayLowOI = int32(binary.LittleEndian.Uint32(payload[34:38]))
		p.DayOpen = float32LE(payload[38:42])
		p.DayClose = float32LE(payload[42:46])
		p.DayHigh = float32LE(payload[46:50])
		p.DayLow = float32LE(payload[50:54])

		depth := payload[54:]
		for i := 0; i < 5; i++ {
			lvl := depth[i*depthLevelSize : (i+1)*depthLevelSize]
			p.Depth[i] = DepthLevel{
				BidQuantity:   int32(binary.LittleEndian.Uint32(lvl[0:4])),
				AskQuantity:   int32(binary.LittleEndian.Uint32(lvl[4:8])),
				BidOrderCount: int16(binary.LittleEndian.Uint16(lvl[8:10])),
				AskOrderCount: int16(binary.LittleEndian.Uint16(lvl[10:12])),
				BidPrice:      float32LE(lvl[12:16]),
				AskPrice:      float32LE(lvl[16:20]),
			}
		}
		return p, nil

	case respCodeDisconnect:
		if err := checkPayload("disconnect", payload, disconnectPayloadSize); err != nil {
			return nil, err
		}
		errCode := binary.LittleEndian.Uint16(payload[0:2])
		return &DisconnectPacket{
			PacketHeader: hdr,
			ErrorCode:    errCode,
			Reason:       DisconnectReason(errCode),
		}, nil
	}

	return nil, fmt.Errorf("%w: %d", ErrUnknownResponseCode, code)
}

// decodeQuoteFields extracts the price/volume block shared by quote and full
// packets (payload bytes 0-25).
func decodeQuoteFields(payload []byte, ltp *float32, ltq *int16, ltt *int32,
	atp *float32, vol, sellQty, buyQty *int32) {
	*ltp = float32LE(payload[0:4])
	*ltq = int16(binary.LittleEndian.Uint16(payload[4:6]))
	*ltt = int32(binary.LittleEndian.Uint32(payload[6:10]))
	*atp = float32LE(payload[10:14])
	*vol = int32(binary.LittleEndian.Uint32(payload[14:18]))
	*sellQty = int32(binary.LittleEndian.Uint32(payload[18:22]))
	*buyQty = int32(binary.LittleEndian.Uint32(payload[22:26]))
}

func checkPayload(kind string, payload []byte, need int) error {
	if len(payload) < need {
		return fmt.Errorf("%w: %s payload %d bytes, need %d", ErrShortPacket, kind, len(payload), need)
	}
	return nil
}

// float32LE converts 4 little-endian bytes to a float32.
func float32LE(b []byte) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(b))
}
