// Package cache holds the most recent reading set per indicator group for a short TTL.
package cache

import (
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/JakeFAU/indicator-feed/internal/clock/system"
	"github.com/JakeFAU/indicator-feed/internal/indicator"
	"github.com/JakeFAU/indicator-feed/internal/metrics"
)

// DefaultTTL is how long a reading set stays fresh.
const DefaultTTL = 5 * time.Minute

// Entry is one cached reading set. Entries are replaced whole, never merged.
type Entry struct {
	Key       string
	Readings  []indicator.Reading
	CreatedAt time.Time
}

// IndicatorCache is an in-memory TTL store keyed by group. Freshness is judged by the
// injected clock; the underlying store only reclaims memory.
type IndicatorCache struct {
	store *gocache.Cache
	clock indicator.Clock
	ttl   time.Duration
}

// New creates a cache. A non-positive ttl uses DefaultTTL and a nil clock uses the
// system clock.
func New(ttl time.Duration, clock indicator.Clock) *IndicatorCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if clock == nil {
		clock = system.New()
	}
	return &IndicatorCache{
		store: gocache.New(ttl, 2*ttl),
		clock: clock,
		ttl:   ttl,
	}
}

// TTL reports the configured freshness window.
func (c *IndicatorCache) TTL() time.Duration {
	return c.ttl
}

// Get returns a copy of the fresh entry for key.
func (c *IndicatorCache) Get(key string) (Entry, bool) {
	raw, found := c.store.Get(key)
	if !found {
		metrics.ObserveCacheLookup(false)
		return Entry{}, false
	}
	entry, ok := raw.(Entry)
	if !ok || c.clock.Now().Sub(entry.CreatedAt) >= c.ttl {
		c.store.Delete(key)
		metrics.ObserveCacheLookup(false)
		return Entry{}, false
	}
	metrics.ObserveCacheLookup(true)
	entry.Readings = indicator.CloneReadings(entry.Readings)
	return entry, true
}

// Set replaces the entry for key and returns the stored copy.
func (c *IndicatorCache) Set(key string, readings []indicator.Reading) Entry {
	entry := Entry{
		Key:       key,
		Readings:  indicator.CloneReadings(readings),
		CreatedAt: c.clock.Now(),
	}
	c.store.Set(key, entry, gocache.DefaultExpiration)
	entry.Readings = indicator.CloneReadings(entry.Readings)
	return entry
}

// Clear drops the entry for key.
func (c *IndicatorCache) Clear(key string) {
	c.store.Delete(key)
}

// ClearAll drops every entry.
func (c *IndicatorCache) ClearAll() {
	c.store.Flush()
}
