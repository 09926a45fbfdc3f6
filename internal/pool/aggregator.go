package pool

import (
	"github.com/Shugur-Network/relay-pool/internal/logger"
	"github.com/Shugur-Network/relay-pool/internal/metrics"
	nostr "github.com/nbd-wtf/go-nostr"
	"github.com/willf/bloom"
	"go.uber.org/zap"
)

// aggregator is the single consumer of the pool event channel. It owns
// the dedup state outright, so no handler takes a lock. The bloom
// filter is a negative cache over seen event IDs; the map stays
// authoritative so purged events notify again when re-received.
type aggregator struct {
	events <-chan poolEvent
	notify chan Notification
	seen   *bloom.BloomFilter
	cache  map[string]nostr.Event
	log    *zap.Logger
}

func newAggregator(events <-chan poolEvent, notifySize int, estimatedEvents uint, falsePositiveRate float64) *aggregator {
	return &aggregator{
		events: events,
		notify: make(chan Notification, notifySize),
		seen:   bloom.NewWithEstimates(estimatedEvents, falsePositiveRate),
		cache:  make(map[string]nostr.Event),
		log:    logger.New("aggregator"),
	}
}

// run consumes pool events until the channel closes, then closes the
// notification channel.
func (a *aggregator) run() {
	defer close(a.notify)

	for ev := range a.events {
		switch ev := ev.(type) {
		case messageReceived:
			a.handleMessage(ev.RelayURL, ev.Message)
		case eventPublished:
			// Cache without notifying so the relay echo is suppressed
			a.remember(ev.Event)
		case purgeEventsFrom:
			a.purge(ev.Key)
		case peerDisconnected:
			a.deliver(DisconnectNotification{RelayURL: ev.RelayURL})
		}
	}
}

func (a *aggregator) handleMessage(relayURL string, msg nostr.Envelope) {
	env, ok := msg.(*nostr.EventEnvelope)
	if !ok {
		a.log.Debug("Ignoring non-event relay message",
			zap.String("relay", relayURL),
			zap.String("type", msg.Label()))
		return
	}

	evt := env.Event
	if ok, err := evt.CheckSignature(); err != nil || !ok {
		metrics.EventsInvalidSignature.Inc()
		a.log.Debug("Dropping event with invalid signature",
			zap.String("relay", relayURL),
			zap.String("event_id", evt.ID),
			zap.Error(err))
		return
	}

	if a.seen.TestString(evt.ID) {
		if _, cached := a.cache[evt.ID]; cached {
			metrics.EventsDeduplicated.Inc()
			return
		}
		// Bloom false positive or purged entry, fall through
	}

	a.remember(evt)
	a.deliver(EventNotification{RelayURL: relayURL, Event: evt})
}

func (a *aggregator) remember(evt nostr.Event) {
	a.cache[evt.ID] = evt
	a.seen.AddString(evt.ID)
}

// purge drops cached events authored by the key, or whose first tag
// value equals the key. Bloom entries cannot be removed; the map lookup
// keeps correctness.
func (a *aggregator) purge(key string) {
	var purged int
	for id, evt := range a.cache {
		if evt.PubKey == key || firstTagValue(evt) == key {
			delete(a.cache, id)
			purged++
		}
	}
	if purged > 0 {
		metrics.EventsPurged.Add(float64(purged))
		a.log.Debug("Purged cached events",
			zap.String("key", key),
			zap.Int("count", purged))
	}
}

// deliver hands a notification to the consumer without blocking. A full
// channel drops the notification rather than stalling the loop.
func (a *aggregator) deliver(n Notification) {
	select {
	case a.notify <- n:
	default:
		metrics.NotificationsDropped.Inc()
		a.log.Warn("Notification dropped, consumer not keeping up")
	}
}

func firstTagValue(evt nostr.Event) string {
	if len(evt.Tags) == 0 {
		return ""
	}
	return evt.Tags[0].Value()
}
