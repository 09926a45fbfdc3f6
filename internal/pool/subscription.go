package pool

import (
	"sync"

	"github.com/google/uuid"
	nostr "github.com/nbd-wtf/go-nostr"
)

// subscriptionTracker holds the active filter set and the per-relay
// channel identifiers. Each relay gets at most one channel, reused
// across re-subscribes so filter replacement never needs a CLOSE.
type subscriptionTracker struct {
	mu       sync.RWMutex
	filters  nostr.Filters
	channels map[string]string // relay URL -> channel ID
}

func newSubscriptionTracker() *subscriptionTracker {
	return &subscriptionTracker{
		channels: make(map[string]string),
	}
}

// SetFilters replaces the filter set wholesale.
func (t *subscriptionTracker) SetFilters(filters nostr.Filters) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.filters = filters
}

// Filters returns the active filter set.
func (t *subscriptionTracker) Filters() nostr.Filters {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.filters
}

// HasFilters reports whether a subscription is active.
func (t *subscriptionTracker) HasFilters() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.filters) > 0
}

// ChannelFor returns the relay's channel ID, minting one on first use.
func (t *subscriptionTracker) ChannelFor(url string) string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if id, ok := t.channels[url]; ok {
		return id
	}
	id := uuid.NewString()
	t.channels[url] = id
	return id
}

// Channel returns the relay's channel ID without minting one.
func (t *subscriptionTracker) Channel(url string) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	id, ok := t.channels[url]
	return id, ok
}

// RemoveChannel forgets the relay's channel ID.
func (t *subscriptionTracker) RemoveChannel(url string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.channels, url)
}

// Clear drops the filter set and every tracked channel.
func (t *subscriptionTracker) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.filters = nil
	t.channels = make(map[string]string)
}
