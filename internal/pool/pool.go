package pool

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/Shugur-Network/relay-pool/internal/logger"
	"github.com/Shugur-Network/relay-pool/internal/metrics"
	"github.com/Shugur-Network/relay-pool/internal/transport"
	nostr "github.com/nbd-wtf/go-nostr"
	"go.uber.org/zap"
)

// Options tunes pool buffers and timing.
type Options struct {
	// KeepAliveInterval is the gap between writer keepalive pings.
	KeepAliveInterval time.Duration
	// CommandBufferSize bounds each relay's command queue.
	CommandBufferSize int
	// EventBufferSize bounds the aggregator's inbound channel.
	EventBufferSize int
	// NotificationBufferSize bounds the consumer-facing channel.
	NotificationBufferSize int
	// DedupEstimatedEvents sizes the dedup bloom filter.
	DedupEstimatedEvents uint
	// DedupFalsePositiveRate sets the bloom filter error rate.
	DedupFalsePositiveRate float64
}

// DefaultOptions returns the buffer sizes and timing used when a field
// is left zero.
func DefaultOptions() Options {
	return Options{
		KeepAliveInterval:      60 * time.Second,
		CommandBufferSize:      32,
		EventBufferSize:        64,
		NotificationBufferSize: 64,
		DedupEstimatedEvents:   10_000_000,
		DedupFalsePositiveRate: 0.01,
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.KeepAliveInterval == 0 {
		o.KeepAliveInterval = def.KeepAliveInterval
	}
	if o.CommandBufferSize == 0 {
		o.CommandBufferSize = def.CommandBufferSize
	}
	if o.EventBufferSize == 0 {
		o.EventBufferSize = def.EventBufferSize
	}
	if o.NotificationBufferSize == 0 {
		o.NotificationBufferSize = def.NotificationBufferSize
	}
	if o.DedupEstimatedEvents == 0 {
		o.DedupEstimatedEvents = def.DedupEstimatedEvents
	}
	if o.DedupFalsePositiveRate == 0 {
		o.DedupFalsePositiveRate = def.DedupFalsePositiveRate
	}
	return o
}

// Pool orchestrates a set of relay connection actors, a shared
// aggregator and the active subscription. Pool methods are meant to be
// driven by a single caller; the notification channel is the read side.
type Pool struct {
	dialer transport.Dialer
	opts   Options
	log    *zap.Logger

	mu     sync.RWMutex
	relays map[string]*Relay
	closed bool

	events chan poolEvent
	agg    *aggregator
	subs   *subscriptionTracker
	wg     sync.WaitGroup
}

// New builds a pool and starts its aggregator.
func New(dialer transport.Dialer, opts Options) *Pool {
	opts = opts.withDefaults()

	events := make(chan poolEvent, opts.EventBufferSize)
	agg := newAggregator(events, opts.NotificationBufferSize, opts.DedupEstimatedEvents, opts.DedupFalsePositiveRate)

	p := &Pool{
		dialer: dialer,
		opts:   opts,
		log:    logger.New("pool"),
		relays: make(map[string]*Relay),
		events: events,
		agg:    agg,
		subs:   newSubscriptionTracker(),
	}
	go agg.run()
	return p
}

// AddRelay registers a relay URL without connecting it.
func (p *Pool) AddRelay(rawURL string) error {
	if err := validateRelayURL(rawURL); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrPoolClosed
	}
	if _, exists := p.relays[rawURL]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateRelay, rawURL)
	}
	p.relays[rawURL] = newRelay(rawURL, p.dialer, p.events, &p.wg, p.opts.KeepAliveInterval, p.opts.CommandBufferSize)
	p.log.Info("Relay added", zap.String("relay", rawURL))
	return nil
}

// RemoveRelay disconnects and forgets a relay.
func (p *Pool) RemoveRelay(rawURL string) error {
	p.mu.Lock()
	r, exists := p.relays[rawURL]
	if exists {
		delete(p.relays, rawURL)
	}
	p.mu.Unlock()
	if !exists {
		return fmt.Errorf("%w: %s", ErrRelayNotFound, rawURL)
	}

	r.Disconnect()
	p.subs.RemoveChannel(rawURL)
	p.log.Info("Relay removed", zap.String("relay", rawURL))
	return nil
}

// ConnectRelay connects a single relay and re-issues the active
// subscription on it.
func (p *Pool) ConnectRelay(ctx context.Context, rawURL string) error {
	r, err := p.relay(rawURL)
	if err != nil {
		return err
	}
	if err := r.Connect(ctx); err != nil {
		return err
	}
	p.subscribeRelay(r)
	return nil
}

// ConnectAll connects every registered relay. Individual failures are
// logged and skipped.
func (p *Pool) ConnectAll(ctx context.Context) {
	for _, r := range p.snapshot() {
		if err := r.Connect(ctx); err != nil {
			p.log.Warn("Relay connect failed",
				zap.String("relay", r.URL()),
				zap.Error(err))
			continue
		}
		p.subscribeRelay(r)
	}
}

// DisconnectRelay closes a relay's connection. The tracked subscription
// channel is dropped without sending CLOSE; the peer forgets it when
// the socket dies.
func (p *Pool) DisconnectRelay(rawURL string) error {
	r, err := p.relay(rawURL)
	if err != nil {
		return err
	}
	r.Disconnect()
	p.subs.RemoveChannel(rawURL)
	return nil
}

// DisconnectAll closes every relay connection.
func (p *Pool) DisconnectAll() {
	for _, r := range p.snapshot() {
		r.Disconnect()
		p.subs.RemoveChannel(r.URL())
	}
}

// Publish records the event with the aggregator, then fans it out to
// every relay. An empty relay map fails; per-relay send errors are
// logged and skipped.
func (p *Pool) Publish(evt nostr.Event) error {
	p.mu.RLock()
	closed := p.closed
	p.mu.RUnlock()
	if closed {
		return ErrPoolClosed
	}

	relays := p.snapshot()
	if len(relays) == 0 {
		return ErrNoRelays
	}

	// Record before fan-out so the echo cannot race the send
	p.events <- eventPublished{Event: evt}

	env := nostr.EventEnvelope{Event: evt}
	payload, err := json.Marshal(&env)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	for _, r := range relays {
		if err := r.Send("EVENT", payload); err != nil {
			p.log.Warn("Publish skipped relay",
				zap.String("relay", r.URL()),
				zap.Error(err))
		}
	}
	metrics.EventsPublished.Inc()
	return nil
}

// StartSubscription replaces the filter set and subscribes every
// connected relay. Channel identifiers are reused, so a replaced filter
// set never sends CLOSE.
func (p *Pool) StartSubscription(filters nostr.Filters) {
	p.subs.SetFilters(filters)
	for _, r := range p.snapshot() {
		p.subscribeRelay(r)
	}
}

// StopSubscription sends CLOSE on every tracked channel and clears the
// filter set.
func (p *Pool) StopSubscription() {
	for _, r := range p.snapshot() {
		id, ok := p.subs.Channel(r.URL())
		if !ok {
			continue
		}
		env := nostr.CloseEnvelope(id)
		payload, err := json.Marshal(&env)
		if err != nil {
			continue
		}
		if err := r.Send("CLOSE", payload); err != nil {
			p.log.Debug("Unsubscribe skipped relay",
				zap.String("relay", r.URL()),
				zap.Error(err))
		}
	}
	p.subs.Clear()
}

// PurgeEventsFrom drops cached events authored by the key, or whose
// first tag value equals the key, so they notify again if re-received.
func (p *Pool) PurgeEventsFrom(key string) {
	p.mu.RLock()
	closed := p.closed
	p.mu.RUnlock()
	if closed {
		return
	}
	p.events <- purgeEventsFrom{Key: key}
}

// Relays returns the registered relay URLs.
func (p *Pool) Relays() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	urls := make([]string, 0, len(p.relays))
	for u := range p.relays {
		urls = append(urls, u)
	}
	return urls
}

// Status returns a relay's connection state.
func (p *Pool) Status(rawURL string) (Status, error) {
	r, err := p.relay(rawURL)
	if err != nil {
		return StatusDisconnected, err
	}
	return r.Status(), nil
}

// Notifications returns the consumer channel. It closes when the pool
// shuts down.
func (p *Pool) Notifications() <-chan Notification {
	return p.agg.notify
}

// Close disconnects every relay, waits for the actors to finish and
// stops the aggregator.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()

	p.DisconnectAll()
	p.wg.Wait()
	close(p.events)
	p.log.Info("Pool closed")
}

// subscribeRelay issues the active subscription on a connected relay,
// reusing its channel identifier.
func (p *Pool) subscribeRelay(r *Relay) {
	if !p.subs.HasFilters() {
		return
	}
	if r.Status() != StatusConnected {
		return
	}

	id := p.subs.ChannelFor(r.URL())
	env := nostr.ReqEnvelope{SubscriptionID: id, Filters: p.subs.Filters()}
	payload, err := json.Marshal(&env)
	if err != nil {
		p.log.Error("Failed to marshal subscription", zap.Error(err))
		return
	}
	if err := r.Send("REQ", payload); err != nil {
		p.log.Warn("Subscribe skipped relay",
			zap.String("relay", r.URL()),
			zap.Error(err))
	}
}

func (p *Pool) relay(rawURL string) (*Relay, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	r, ok := p.relays[rawURL]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRelayNotFound, rawURL)
	}
	return r, nil
}

func (p *Pool) snapshot() []*Relay {
	p.mu.RLock()
	defer p.mu.RUnlock()
	relays := make([]*Relay, 0, len(p.relays))
	for _, r := range p.relays {
		relays = append(relays, r)
	}
	return relays
}

func validateRelayURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrMalformedURL, rawURL)
	}
	if (u.Scheme != "ws" && u.Scheme != "wss") || u.Host == "" {
		return fmt.Errorf("%w: %s", ErrMalformedURL, rawURL)
	}
	return nil
}
