package marketfeed

import "errors"

// Validation and capacity errors. These are programmer errors: they are
// returned synchronously and never retried.
var (
	ErrNoInstruments     = errors.New("no instruments provided")
	ErrInvalidInstrument = errors.New("invalid instrument")
	ErrCapacityExceeded  = errors.New("subscription capacity exceeded")
	ErrFeedClosed        = errors.New("feed closed")
)

// Decode errors. ErrUnknownResponseCode is logged and dropped by the read
// path, never surfaced as an event.
var (
	ErrUnknownResponseCode = errors.New("unknown response code")
	ErrShortPacket         = errors.New("packet too short")
)
