package cache

import (
	"context"
	"sync"
	"time"

	"github.com/jmanzanog/quote-ingestor/internal/domain"
)

type entry struct {
	bars      []domain.HistoricalBar
	expiresAt time.Time
}

// MemoryCache is an in-process TTL cache for historical series.
type MemoryCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]entry
	now     func() time.Time
}

func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{
		ttl:     ttl,
		entries: make(map[string]entry),
		now:     time.Now,
	}
}

func (c *MemoryCache) Get(_ context.Context, key string) ([]domain.HistoricalBar, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false, nil
	}
	if !c.now().Before(e.expiresAt) {
		delete(c.entries, key)
		return nil, false, nil
	}
	return e.bars, true, nil
}

func (c *MemoryCache) Set(_ context.Context, key string, bars []domain.HistoricalBar) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	// expired entries are swept on write so the map stays bounded by live keys
	for k, e := range c.entries {
		if !now.Before(e.expiresAt) {
			delete(c.entries, k)
		}
	}
	c.entries[key] = entry{bars: bars, expiresAt: now.Add(c.ttl)}
	return nil
}

// Len returns the number of cached keys, expired or not.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
