package marketfeed

// RequestCode identifies an outbound frame type on the feed socket.
type RequestCode int

// Request codes understood by the feed server.
const (
	RequestConnect    RequestCode = 11
	RequestDisconnect RequestCode = 12

	RequestSubscribeTicker   RequestCode = 15
	RequestUnsubscribeTicker RequestCode = 16
	RequestSubscribeQuote    RequestCode = 17
	RequestUnsubscribeQuote  RequestCode = 18
	RequestSubscribeFull     RequestCode = 21
	RequestUnsubscribeFull   RequestCode = 22
	RequestSubscribeDepth    RequestCode = 23
	RequestUnsubscribeDepth  RequestCode = 24

	// Legacy aliases still accepted by the server; only the legacy
	// single-socket feed sends these.
	LegacyRequestSubscribeQuote RequestCode = 4
	LegacyRequestSubscribeFull  RequestCode = 8
)

// UnsubscribeCode returns the unsubscribe counterpart of a subscribe code.
func (c RequestCode) UnsubscribeCode() RequestCode {
	switch c {
	case RequestSubscribeTicker:
		return RequestUnsubscribeTicker
	case RequestSubscribeQuote, LegacyRequestSubscribeQuote:
		return RequestUnsubscribeQuote
	case RequestSubscribeFull, LegacyRequestSubscribeFull:
		return RequestUnsubscribeFull
	case RequestSubscribeDepth:
		return RequestUnsubscribeDepth
	}
	return c
}

// IsSubscribe reports whether c is one of the subscribe request codes.
func (c RequestCode) IsSubscribe() bool {
	switch c {
	case RequestSubscribeTicker, RequestSubscribeQuote, RequestSubscribeFull,
		RequestSubscribeDepth, LegacyRequestSubscribeQuote, LegacyRequestSubscribeFull:
		return true
	}
	return false
}

// Inbound response codes (first header byte).
const (
	respCodeTicker       = 2
	respCodeQuote        = 4
	respCodeOpenInterest = 5
	respCodePrevClose    = 6
	respCodeMarketStatus = 7
	respCodeFull         = 8
	respCodeDepthBid     = 41
	respCodeDisconnect   = 50
	respCodeDepthAsk     = 51
)

// Server disconnect / protocol error codes.
const (
	ErrCodeConnectionLimit   uint16 = 805
	ErrCodeNotSubscribed     uint16 = 806
	ErrCodeTokenExpired      uint16 = 807
	ErrCodeAuthFailed        uint16 = 808
	ErrCodeInvalidToken      uint16 = 809
	ErrCodeServerUnavailable uint16 = 810
	ErrCodeInvalidRequest    uint16 = 811
	ErrCodeRateLimited       uint16 = 812
	ErrCodeInvalidSecurityID uint16 = 813
	ErrCodeInternalError     uint16 = 814
)

var disconnectReasons = map[uint16]string{
	ErrCodeConnectionLimit:   "connection limit exceeded",
	ErrCodeNotSubscribed:     "data API not subscribed",
	ErrCodeTokenExpired:      "access token expired",
	ErrCodeAuthFailed:        "authentication failed",
	ErrCodeInvalidToken:      "invalid access token",
	ErrCodeServerUnavailable: "feed server unavailable",
	ErrCodeInvalidRequest:    "invalid request",
	ErrCodeRateLimited:       "rate limit exceeded",
	ErrCodeInvalidSecurityID: "invalid security id",
	ErrCodeInternalError:     "internal server error",
}

// DisconnectReason maps a server error code to a human-readable string.
func DisconnectReason(code uint16) string {
	if r, ok := disconnectReasons[code]; ok {
		return r
	}
	return "unknown disconnection code"
}

// isCriticalErrCode reports whether a server error code should permanently
// close the affected connection instead of riding the reconnect path.
func isCriticalErrCode(code uint16) bool {
	switch code {
	case ErrCodeNotSubscribed, ErrCodeTokenExpired, ErrCodeAuthFailed, ErrCodeInvalidToken:
		return true
	}
	return false
}
