package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"
	"time"

	"github.com/use-agent/judfetch/models"
)

// entry holds a cached detail read with its creation timestamp.
type entry struct {
	fields    models.Enrichment
	createdAt time.Time
}

// Cache is a simple in-memory cache of detail page reads keyed by URL.
// It is safe for concurrent use.
type Cache struct {
	mu         sync.RWMutex
	store      map[string]*entry
	maxEntries int
	ttl        time.Duration
	now        func() time.Time
	done       chan struct{}
	closeOnce  sync.Once
}

// New creates a new Cache with the given capacity and entry lifetime.
// A background goroutine runs every 5 minutes to evict expired entries
// until Close is called.
func New(maxEntries int, ttl time.Duration) *Cache {
	c := &Cache{
		store:      make(map[string]*entry),
		maxEntries: maxEntries,
		ttl:        ttl,
		now:        time.Now,
		done:       make(chan struct{}),
	}

	go c.cleanupLoop()
	return c
}

// Key normalizes a detail URL into a cache key.
func Key(url string) string {
	h := sha256.Sum256([]byte(strings.TrimSpace(url)))
	return hex.EncodeToString(h[:])
}

// Get retrieves the cached fields for url if they are younger than the TTL.
func (c *Cache) Get(url string) (models.Enrichment, bool) {
	c.mu.RLock()
	e, ok := c.store[Key(url)]
	c.mu.RUnlock()

	if !ok || c.now().Sub(e.createdAt) > c.ttl {
		return models.Enrichment{}, false
	}
	return e.fields, true
}

// Set stores the fields read for url. Failed reads are never cached. If the
// cache is at capacity, a random entry is evicted to make room.
func (c *Cache) Set(url string, fields models.Enrichment) {
	if fields == models.FailedEnrichment() || c.maxEntries <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	key := Key(url)
	// Evict one random entry if at capacity (map iteration is random in Go).
	if _, exists := c.store[key]; !exists && len(c.store) >= c.maxEntries {
		for k := range c.store {
			delete(c.store, k)
			break
		}
	}

	c.store[key] = &entry{
		fields:    fields,
		createdAt: c.now(),
	}
}

// Len returns the number of stored entries, expired or not.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.store)
}

// Close stops the cleanup goroutine.
func (c *Cache) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// cleanupLoop evicts expired entries every 5 minutes.
func (c *Cache) cleanupLoop() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.evictExpired()
		}
	}
}

func (c *Cache) evictExpired() {
	cutoff := c.now().Add(-c.ttl)
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, e := range c.store {
		if e.createdAt.Before(cutoff) {
			delete(c.store, k)
		}
	}
}
