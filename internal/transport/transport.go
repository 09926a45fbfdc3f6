// Package transport provides the duplex frame transport used by relay
// connections. Implementations deliver inbound frames on a channel and
// accept outbound frames, pings and a graceful close.
package transport

import "context"

// Conn is an established duplex connection to a relay.
type Conn interface {
	// Send writes a single text frame.
	Send(payload []byte) error
	// Ping writes a keepalive control frame.
	Ping() error
	// Close performs a graceful shutdown of the connection.
	Close() error
	// Frames returns the inbound frame stream. The channel is closed when
	// the peer ends the stream or a read error occurs.
	Frames() <-chan []byte
}

// Dialer establishes connections to relays.
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}
