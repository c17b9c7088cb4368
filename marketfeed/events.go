package marketfeed

// EventType discriminates the Event union.
type EventType string

const (
	// EventConnect fires when a connection reaches the connected state,
	// including after a successful reconnect.
	EventConnect EventType = "connect"

	// EventMessage carries one decoded packet, tagged with the connection it
	// arrived on. Single-connection callers can ignore ConnID.
	EventMessage EventType = "message"

	// EventError reports a transport or decode error on one connection.
	// Other connections are unaffected.
	EventError EventType = "error"

	// EventClose fires when a socket closes, intentionally or not.
	EventClose EventType = "close"

	// EventDisconnection is a server-initiated feed-level disconnect,
	// distinct from a socket close.
	EventDisconnection EventType = "disconnection"

	// EventMaxReconnect fires exactly once when a connection exhausts its
	// reconnect attempts. The connection stays down until the caller closes
	// the feed and subscribes again.
	EventMaxReconnect EventType = "maxReconnectAttemptsReached"
)

// Event is the discriminated union delivered on a feed's Events channel.
// Fields beyond Type and ConnID are populated per type: Packet for message
// and disconnection events, Err for error events, Code/Reason for close and
// disconnection events.
type Event struct {
	Type   EventType
	ConnID int

	Packet Packet
	Err    error
	Code   int
	Reason string
}

// ConnState is the lifecycle state of one pooled connection.
type ConnState string

const (
	StateDisconnected ConnState = "disconnected"
	StateConnecting   ConnState = "connecting"
	StateConnected    ConnState = "connected"
	StateReconnecting ConnState = "reconnecting"
)

// ConnStatus is a read-only snapshot of one connection, returned by
// ConnectionStatus.
type ConnStatus struct {
	ID          int
	UID         string // Per-instance unique identifier sent to the server
	State       ConnState
	Instruments int
}
