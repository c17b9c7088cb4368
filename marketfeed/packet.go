package marketfeed

// Packet is a decoded market-data packet. It is a sealed union: the concrete
// types below are the only implementations.
type Packet interface {
	// Instrument returns the (segment, security id) pair the packet refers to.
	Instrument() (ExchangeSegment, int32)

	isPacket()
}

// PacketHeader carries the fields common to every packet type.
type PacketHeader struct {
	ExchangeSegment ExchangeSegment
	SecurityID      int32
}

// Instrument implements Packet.
func (h PacketHeader) Instrument() (ExchangeSegment, int32) {
	return h.ExchangeSegment, h.SecurityID
}

func (PacketHeader) isPacket() {}

// TickerPacket is the minimal price update: last trade price and time.
type TickerPacket struct {
	PacketHeader
	LastTradedPrice float32
	LastTradeTime   int32 // Epoch seconds
}

// QuotePacket carries price, volume and an OHLC summary.
type QuotePacket struct {
	PacketHeader
	LastTradedPrice    float32
	LastTradedQuantity int16
	LastTradeTime      int32
	AverageTradePrice  float32
	Volume             int32
	TotalSellQuantity  int32
	TotalBuyQuantity   int32
	DayOpen            float32
	DayClose           float32
	DayHigh            float32
	DayLow             float32
}

// OpenInterestPacket carries the open interest for a derivative.
type OpenInterestPacket struct {
	PacketHeader
	OpenInterest int32
}

// PrevClosePacket carries the previous session's close and open interest.
type PrevClosePacket struct {
	PacketHeader
	PreviousClose        float32
	PreviousOpenInterest int32
}

// MarketStatusPacket signals whether the market is open.
type MarketStatusPacket struct {
	PacketHeader
	Open bool
}

// DepthLevel is one of the five price levels nested in a FullPacket.
type DepthLevel struct {
	BidQuantity   int32
	AskQuantity   int32
	BidOrderCount int16
	AskOrderCount int16
	BidPrice      float32
	AskPrice      float32
}

// FullPacket is a quote plus open-interest fields and a 5-level depth ladder.
type FullPacket struct {
	PacketHeader
	LastTradedPrice    float32
	LastTradedQuantity int16
	LastTradeTime      int32
	AverageTradePrice  float32
	Volume             int32
	TotalSellQuantity  int32
	TotalBuyQuantity   int32
	OpenInterest       int32
	DayHighOI          int32
	DayLowOI           int32
	DayOpen            float32
	DayClose           float32
	DayHigh            float32
	DayLow             float32
	Depth              [5]DepthLevel
}

// DisconnectPacket is a server-initiated feed-level disconnect notice.
type DisconnectPacket struct {
	PacketHeader
	ErrorCode uint16
	Reason    string
}
