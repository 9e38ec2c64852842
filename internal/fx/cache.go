package fx

import (
	"sync"
	"time"

	"budgetrecon/internal/core"
)

// DefaultTTL is how long a fetched table is served without refreshing.
const DefaultTTL = 60 * time.Minute

// Snapshot is a rate table with its provenance.
type Snapshot struct {
	Rates     core.RateTable `json:"rates"`
	Provider  string         `json:"provider"`
	FetchedAt time.Time      `json:"fetched_at"`
	// Stale is set when every provider failed and the last known table was
	// served instead.
	Stale bool `json:"stale"`
}

// RateCache holds the last fetched table. It is owned by the caller and
// shared by every request; reads never block each other.
type RateCache struct {
	mu    sync.RWMutex
	snap  *Snapshot
	ttl   time.Duration
	clock func() time.Time
}

func NewRateCache(ttl time.Duration) *RateCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RateCache{ttl: ttl, clock: time.Now}
}

// SetClock replaces the time source.
func (c *RateCache) SetClock(clock func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clock = clock
}

// Fresh returns the cached snapshot when it is younger than the TTL.
func (c *RateCache) Fresh() (Snapshot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.snap == nil || c.clock().Sub(c.snap.FetchedAt) >= c.ttl {
		return Snapshot{}, false
	}
	return c.copyLocked(), true
}

// LastKnown returns the cached snapshot regardless of age.
func (c *RateCache) LastKnown() (Snapshot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.snap == nil {
		return Snapshot{}, false
	}
	return c.copyLocked(), true
}

// Store records a successful fetch and returns it.
func (c *RateCache) Store(table core.RateTable, provider string) Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snap = &Snapshot{Rates: table.Clone(), Provider: provider, FetchedAt: c.clock()}
	return c.copyLocked()
}

// Age reports how old the cached table is; ok is false when nothing is cached.
func (c *RateCache) Age() (age time.Duration, ok bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.snap == nil {
		return 0, false
	}
	return c.clock().Sub(c.snap.FetchedAt), true
}

func (c *RateCache) copyLocked() Snapshot {
	s := *c.snap
	s.Rates = c.snap.Rates.Clone()
	return s
}
