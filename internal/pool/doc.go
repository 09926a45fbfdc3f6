// Package pool maintains concurrent connections to a set of Nostr
// relays. Each relay gets a connection actor with its own reader and
// writer goroutines; a single aggregator goroutine merges the inbound
// streams, verifies signatures, deduplicates events by ID and delivers
// notifications to the consumer.
//
// The pool never reconnects on its own. Hosts that want automatic
// recovery start a Reconnector.
package pool
