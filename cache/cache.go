// Package cache keeps recent per-date scrape results in memory so repeated
// trigger requests for the same day do not drive the portal again.
package cache

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/use-agent/blotter/dates"
	"github.com/use-agent/blotter/models"
)

// entry holds a cached result with its creation timestamp.
type entry struct {
	result    *models.ScrapeResult
	createdAt time.Time
}

// Cache is a small in-memory store of scrape results keyed by ISO date.
// It is safe for concurrent use.
type Cache struct {
	mu         sync.RWMutex
	store      map[string]*entry
	maxEntries int
	ttl        time.Duration
	now        func() time.Time

	stop chan struct{}
	once sync.Once
}

// New creates a Cache holding at most maxEntries results for ttl each.
// A background goroutine evicts expired entries every ttl until Close.
func New(maxEntries int, ttl time.Duration) *Cache {
	c := &Cache{
		store:      make(map[string]*entry),
		maxEntries: maxEntries,
		ttl:        ttl,
		now:        time.Now,
		stop:       make(chan struct{}),
	}

	if ttl > 0 {
		go c.cleanupLoop()
	}
	return c
}

// Get returns the result cached for date if it is younger than the TTL.
func (c *Cache) Get(date string) (*models.ScrapeResult, bool) {
	c.mu.RLock()
	e, ok := c.store[date]
	c.mu.RUnlock()

	if !ok || c.now().Sub(e.createdAt) > c.ttl {
		return nil, false
	}
	return e.result, true
}

// Set stores a result. If the cache is at capacity the oldest entry is
// evicted to make room.
func (c *Cache) Set(res *models.ScrapeResult) {
	if c.maxEntries <= 0 || c.ttl <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.store[res.Date]; !ok && len(c.store) >= c.maxEntries {
		oldest := ""
		for k, e := range c.store {
			if oldest == "" || e.createdAt.Before(c.store[oldest].createdAt) {
				oldest = k
			}
		}
		delete(c.store, oldest)
	}

	c.store[res.Date] = &entry{
		result:    res,
		createdAt: c.now(),
	}
}

// Len returns the number of stored entries, expired ones included.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.store)
}

// Close stops the cleanup goroutine.
func (c *Cache) Close() {
	c.once.Do(func() { close(c.stop) })
}

// cleanupLoop evicts expired entries once per TTL.
func (c *Cache) cleanupLoop() {
	ticker := time.NewTicker(c.ttl)
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

// Scraper runs one date's session.
type Scraper interface {
	Scrape(ctx context.Context, d dates.Date) (*models.ScrapeResult, error)
}

// Cached wraps a Scraper so successful results are served from c.
// Failures are never cached.
type Cached struct {
	next  Scraper
	cache *Cache
}

// Wrap returns s backed by c.
func Wrap(s Scraper, c *Cache) *Cached {
	return &Cached{next: s, cache: c}
}

// Scrape returns the cached result for d or runs the wrapped Scraper.
func (s *Cached) Scrape(ctx context.Context, d dates.Date) (*models.ScrapeResult, error) {
	if res, ok := s.cache.Get(d.String()); ok {
		slog.Info("serving cached result", "date", d.String(), "records", len(res.Records))
		hit := *res
		hit.Diagnostic.Cached = true
		return &hit, nil
	}

	res, err := s.next.Scrape(ctx, d)
	if err != nil {
		return nil, err
	}
	s.cache.Set(res)
	return res, nil
}
