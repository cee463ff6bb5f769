package transport

// State describes where the connection is in its lifecycle. It drives the
// host's connection indicator and gates sends.
type State int

const (
	// StateDisconnected means no connection exists and none is being made.
	StateDisconnected State = iota
	// StateConnecting means a dial is in flight.
	StateConnecting
	// StateConnected means the socket is open and sends are permitted.
	StateConnected
	// StateReconnecting means the connection dropped and a retry is pending.
	StateReconnecting
)

// String returns the lowercase name of the state.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	default:
		return "unknown"
	}
}
