package pool

import (
	nostr "github.com/nbd-wtf/go-nostr"
)

// poolEvent is a message consumed by the aggregator goroutine. The
// aggregator is the sole consumer, which keeps the dedup state free of
// locks.
type poolEvent interface {
	poolEvent()
}

// messageReceived carries a parsed relay message from a reader loop.
type messageReceived struct {
	RelayURL string
	Message  nostr.Envelope
}

// eventPublished records a locally published event so its echo from
// relays is suppressed.
type eventPublished struct {
	Event nostr.Event
}

// purgeEventsFrom asks the aggregator to drop cached events authored by
// the key, or whose first tag value equals the key.
type purgeEventsFrom struct {
	Key string
}

// peerDisconnected reports that a relay's inbound stream ended.
type peerDisconnected struct {
	RelayURL string
}

func (messageReceived) poolEvent()  {}
func (eventPublished) poolEvent()   {}
func (purgeEventsFrom) poolEvent()  {}
func (peerDisconnected) poolEvent() {}

// Notification is delivered to the pool consumer.
type Notification interface {
	notification()
}

// EventNotification carries a verified, first-seen event.
type EventNotification struct {
	RelayURL string
	Event    nostr.Event
}

// DisconnectNotification reports that a relay's stream ended.
type DisconnectNotification struct {
	RelayURL string
}

func (EventNotification) notification()      {}
func (DisconnectNotification) notification() {}
