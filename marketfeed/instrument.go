package marketfeed

import (
	"encoding/json"
	"fmt"
)

// ExchangeSegment is the numeric segment identifier used on the wire.
type ExchangeSegment uint8

// Known exchange segments.
const (
	SegmentIndex       ExchangeSegment = 0 // IDX_I
	SegmentNSEEquity   ExchangeSegment = 1 // NSE_EQ
	SegmentNSEFNO      ExchangeSegment = 2 // NSE_FNO
	SegmentNSECurrency ExchangeSegment = 3 // NSE_CURRENCY
	SegmentBSEEquity   ExchangeSegment = 4 // BSE_EQ
	SegmentMCXComm     ExchangeSegment = 5 // MCX_COMM
	SegmentBSECurrency ExchangeSegment = 7 // BSE_CURRENCY
	SegmentBSEFNO      ExchangeSegment = 8 // BSE_FNO
)

var segmentNames = map[ExchangeSegment]string{
	SegmentIndex:       "IDX_I",
	SegmentNSEEquity:   "NSE_EQ",
	SegmentNSEFNO:      "NSE_FNO",
	SegmentNSECurrency: "NSE_CURRENCY",
	SegmentBSEEquity:   "BSE_EQ",
	SegmentMCXComm:     "MCX_COMM",
	SegmentBSECurrency: "BSE_CURRENCY",
	SegmentBSEFNO:      "BSE_FNO",
}

// String returns the enum name used in outbound subscription frames.
func (s ExchangeSegment) String() string {
	if name, ok := segmentNames[s]; ok {
		return name
	}
	return fmt.Sprintf("SEGMENT_%d", uint8(s))
}

// Valid reports whether s is a known segment.
func (s ExchangeSegment) Valid() bool {
	_, ok := segmentNames[s]
	return ok
}

// Instrument identifies a tradable security: (exchange segment, security id).
type Instrument struct {
	ExchangeSegment ExchangeSegment
	SecurityID      string
}

// Validate checks the instrument tuple is well formed.
func (i Instrument) Validate() error {
	if !i.ExchangeSegment.Valid() {
		return fmt.Errorf("%w: unknown exchange segment %d", ErrInvalidInstrument, i.ExchangeSegment)
	}
	if i.SecurityID == "" {
		return fmt.Errorf("%w: empty security id", ErrInvalidInstrument)
	}
	return nil
}

// wireInstrument is the JSON shape of one instrument in a subscription frame.
type wireInstrument struct {
	ExchangeSegment string `json:"ExchangeSegment"`
	SecurityID      string `json:"SecurityId"`
}

// subscriptionFrame is the outbound subscribe/unsubscribe message.
type subscriptionFrame struct {
	RequestCode     int              `json:"RequestCode"`
	InstrumentCount int              `json:"InstrumentCount"`
	InstrumentList  []wireInstrument `json:"InstrumentList"`
}

// disconnectFrame asks the server to drop the connection.
type disconnectFrame struct {
	RequestCode int `json:"RequestCode"`
}

// EncodeSubscriptionFrame builds the wire JSON for one batch of instruments.
func EncodeSubscriptionFrame(code RequestCode, batch []Instrument) ([]byte, error) {
	if len(batch) == 0 {
		return nil, ErrNoInstruments
	}

	list := make([]wireInstrument, 0, len(batch))
	for _, in := range batch {
		list = append(list, wireInstrument{
			ExchangeSegment: in.ExchangeSegment.String(),
			SecurityID:      in.SecurityID,
		})
	}

	return json.Marshal(subscriptionFrame{
		RequestCode:     int(code),
		InstrumentCount: len(batch),
		InstrumentList:  list,
	})
}

// EncodeDisconnectFrame builds the wire JSON for a graceful disconnect.
func EncodeDisconnectFrame() ([]byte, error) {
	return json.Marshal(disconnectFrame{RequestCode: int(RequestDisconnect)})
}
