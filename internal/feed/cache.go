package feed

import (
	"slices"
	"sync"
	"time"

	"swipework/internal/domain"
	"swipework/internal/metrics"
)

// DefaultCacheTTL is how long a cold page stays fresh.
const DefaultCacheTTL = 5 * time.Minute

type cacheEntry struct {
	items    []domain.ViewJob
	cursor   *domain.Cursor
	hasMore  bool
	storedAt time.Time
}

// Cache holds the first page of recent queries, keyed by QueryKey hash.
// Expired entries are ignored on read and replaced on the next write.
type Cache struct {
	ttl   time.Duration
	clock Clock

	mu      sync.RWMutex
	entries map[string]cacheEntry
}

func NewCache(ttl time.Duration, clock Clock) *Cache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if clock == nil {
		clock = SystemClock()
	}
	return &Cache{ttl: ttl, clock: clock, entries: make(map[string]cacheEntry)}
}

// Get returns the cached items for key if they are younger than the TTL.
func (c *Cache) Get(key string) ([]domain.ViewJob, bool) {
	items, _, _, ok := c.lookup(key)
	return items, ok
}

// Put stores items for key stamped with the current time.
func (c *Cache) Put(key string, items []domain.ViewJob) {
	c.store(key, items, nil, false)
}

// lookup also returns the continuation state stored with the page.
func (c *Cache) lookup(key string) ([]domain.ViewJob, *domain.Cursor, bool, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		metrics.FeedCacheLookups.WithLabelValues("miss").Inc()
		return nil, nil, false, false
	}
	if c.clock.Now().Sub(e.storedAt) >= c.ttl {
		metrics.FeedCacheLookups.WithLabelValues("expired").Inc()
		return nil, nil, false, false
	}
	metrics.FeedCacheLookups.WithLabelValues("hit").Inc()
	return slices.Clone(e.items), e.cursor, e.hasMore, true
}

func (c *Cache) store(key string, items []domain.ViewJob, cursor *domain.Cursor, hasMore bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{
		items:    slices.Clone(items),
		cursor:   cursor,
		hasMore:  hasMore,
		storedAt: c.clock.Now(),
	}
}

// Purge drops every entry.
func (c *Cache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.entries)
}

// Len returns the number of entries, expired or not.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
