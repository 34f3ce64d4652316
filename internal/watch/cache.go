package watch

import (
	"sync"
	"time"
)

// CacheEntry records the last transcript position reconciled for a channel
// and the message derived from it. The pair is what lets the engine tell
// "same state, re-polled" apart from "genuinely new activity", and lets it
// restore the store when an out-of-band writer clobbered the message without
// the transcript moving.
type CacheEntry struct {
	LastSeen    time.Time
	LastMessage string
}

// ActivityCache is the per-channel reconciliation memory. It lives inside
// one engine instance: created at engine start, discarded at stop, never
// shared process-wide. Losing it across restarts only costs one
// unknown-prior-state tick per channel.
type ActivityCache struct {
	mu      sync.Mutex
	entries map[string]CacheEntry
}

func NewActivityCache() *ActivityCache {
	return &ActivityCache{entries: map[string]CacheEntry{}}
}

func (c *ActivityCache) Get(channel string) (CacheEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[channel]
	return e, ok
}

func (c *ActivityCache) Put(channel string, e CacheEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[channel] = e
}

func (c *ActivityCache) Forget(channel string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, channel)
}

func (c *ActivityCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
