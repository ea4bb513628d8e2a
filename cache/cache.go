package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/use-agent/mapscout/models"
)

// entry holds cached places with their creation timestamp.
type entry struct {
	places    []models.Place
	createdAt time.Time
}

// Cache is a simple in-memory TTL cache of scrape results.
// It is safe for concurrent use.
type Cache struct {
	mu         sync.RWMutex
	store      map[string]*entry
	maxEntries int
	ttl        time.Duration
	now        func() time.Time
	stop       chan struct{}
	stopOnce   sync.Once
}

// New creates a Cache holding at most maxEntries result lists for ttl each.
// A background goroutine evicts expired entries every ttl/12 (at least one
// minute) until Close is called.
func New(maxEntries int, ttl time.Duration) *Cache {
	c := &Cache{
		store:      make(map[string]*entry),
		maxEntries: maxEntries,
		ttl:        ttl,
		now:        time.Now,
		stop:       make(chan struct{}),
	}

	go c.cleanupLoop(max(ttl/12, time.Minute))
	return c
}

// Key generates a cache key from the normalized query, cap and language.
func Key(query string, maxPlaces int, lang string) string {
	h := sha256.New()
	h.Write([]byte(strings.ToLower(strings.Join(strings.Fields(query), " "))))
	h.Write([]byte("|"))
	h.Write([]byte(strconv.Itoa(maxPlaces)))
	h.Write([]byte("|"))
	h.Write([]byte(strings.ToLower(lang)))
	return hex.EncodeToString(h.Sum(nil))
}

// Get returns a deep copy of the cached places if they are younger than the TTL.
func (c *Cache) Get(key string) ([]models.Place, bool) {
	c.mu.RLock()
	e, ok := c.store[key]
	c.mu.RUnlock()

	if !ok {
		return nil, false
	}
	if c.now().Sub(e.createdAt) > c.ttl {
		return nil, false
	}
	return models.ClonePlaces(e.places), true
}

// Set stores places under key. Empty results are not cached. If the cache
// is at capacity, a random entry is evicted to make room.
func (c *Cache) Set(key string, places []models.Place) {
	if len(places) == 0 || c.maxEntries <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// Evict one random entry if at capacity (map iteration is random in Go).
	if _, exists := c.store[key]; !exists && len(c.store) >= c.maxEntries {
		for k := range c.store {
			delete(c.store, k)
			break
		}
	}

	c.store[key] = &entry{
		places:    models.ClonePlaces(places),
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
	c.stopOnce.Do(func() { close(c.stop) })
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

func (c *Cache) cleanupLoop(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.evictExpired()
		}
	}
}
