package pool

// Status describes the connection state of a relay.
type Status int32

const (
	// StatusDisconnected means no connection exists. Initial and terminal state.
	StatusDisconnected Status = iota
	// StatusConnecting means a dial attempt is in flight.
	StatusConnecting
	// StatusConnected means the reader and writer loops are running.
	StatusConnected
)

func (s Status) String() string {
	switch s {
	case StatusDisconnected:
		return "disconnected"
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	default:
		return "unknown"
	}
}
