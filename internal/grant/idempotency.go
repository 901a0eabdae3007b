package grant

import (
	"sync"
	"time"

	"github.com/inaiurai/whitelist/internal/registry"
)

// cachedGrant is a successful grant remembered under (account, idempotency key).
type cachedGrant struct {
	fingerprint string
	result      Result
	expiresAt   time.Time
}

// sweepInterval is the minimum time between full scans for expired entries.
const sweepInterval = time.Minute

// idempotencyCache remembers successful results only. Failed grants are never
// cached so the caller can retry them. Expired entries are dropped on lookup
// and by a periodic sweep piggybacked on put.
type idempotencyCache struct {
	mu        sync.Mutex
	ttl       time.Duration
	entries   map[string]cachedGrant
	nextSweep time.Time
}

func newIdempotencyCache(ttl time.Duration) *idempotencyCache {
	return &idempotencyCache{ttl: ttl, entries: make(map[string]cachedGrant)}
}

func (c *idempotencyCache) get(key string, now time.Time) (cachedGrant, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	g, ok := c.entries[key]
	if !ok {
		return cachedGrant{}, false
	}
	if !now.Before(g.expiresAt) {
		delete(c.entries, key)
		return cachedGrant{}, false
	}
	return g, true
}

func (c *idempotencyCache) put(key, fingerprint string, res Result, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !now.Before(c.nextSweep) {
		c.sweep(now)
	}
	c.entries[key] = cachedGrant{fingerprint: fingerprint, result: res, expiresAt: now.Add(c.ttl)}
}

func (c *idempotencyCache) sweep(now time.Time) {
	for k, g := range c.entries {
		if !now.Before(g.expiresAt) {
			delete(c.entries, k)
		}
	}
	c.nextSweep = now.Add(sweepInterval)
}

// rederive refreshes status and time remaining of a cached entry.
func rederive(e registry.Entry, now time.Time) registry.Entry {
	return registry.Record{UID: e.UID, Region: e.Region, ExpiresAt: time.Unix(e.Expiry, 0).UTC()}.At(now)
}
