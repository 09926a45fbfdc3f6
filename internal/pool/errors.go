package pool

import (
	"fmt"
)

// Common error types for the pool
var (
	// Relay map errors
	ErrMalformedURL   = fmt.Errorf("malformed relay URL")
	ErrDuplicateRelay = fmt.Errorf("relay already in pool")
	ErrRelayNotFound  = fmt.Errorf("relay not found")
	ErrNoRelays       = fmt.Errorf("no relays in pool")

	// Connection errors
	ErrNotConnected = fmt.Errorf("relay not connected")
	ErrQueueFull    = fmt.Errorf("command queue full")

	// Lifecycle errors
	ErrPoolClosed = fmt.Errorf("pool closed")
)
