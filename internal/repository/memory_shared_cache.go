package repository

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/eln-app/eln-api/internal/service"
)

// sweepEvery 每写入多少次清理一次过期条目
const sweepEvery = 1024

type memoryEntry struct {
	value     string
	expiresAt time.Time // zero = no expiry
}

func (e memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// MemorySharedCache is a process-local SharedCache. It is only correct when a
// single gateway process serves all traffic; tests and local runs use it.
type MemorySharedCache struct {
	mu     sync.Mutex
	items  map[string]memoryEntry
	now    func() time.Time
	writes int
}

// NewMemorySharedCache creates an empty cache. now == nil uses time.Now.
func NewMemorySharedCache(now func() time.Time) *MemorySharedCache {
	if now == nil {
		now = time.Now
	}
	return &MemorySharedCache{items: make(map[string]memoryEntry), now: now}
}

// lookup must be called with mu held.
func (c *MemorySharedCache) lookup(key string, now time.Time) (memoryEntry, bool) {
	e, ok := c.items[key]
	if !ok {
		return memoryEntry{}, false
	}
	if e.expired(now) {
		delete(c.items, key)
		return memoryEntry{}, false
	}
	return e, true
}

func (c *MemorySharedCache) Get(_ context.Context, key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.lookup(key, c.now())
	if !ok {
		return "", service.ErrCacheMiss
	}
	return e.value, nil
}

func (c *MemorySharedCache) Set(_ context.Context, key, value string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	e := memoryEntry{value: value}
	if ttl > 0 {
		e.expiresAt = now.Add(ttl)
	}
	c.items[key] = e
	c.maybeSweep(now)
	return nil
}

func (c *MemorySharedCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	delete(c.items, key)
	c.mu.Unlock()
	return nil
}

func (c *MemorySharedCache) IncrementWithinLimit(_ context.Context, key string, limit int64, ttl time.Duration) (int64, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()

	e, ok := c.lookup(key, now)
	var current int64
	if ok {
		n, err := strconv.ParseInt(e.value, 10, 64)
		if err != nil {
			return 0, false, err
		}
		current = n
	}
	if current >= limit {
		return current, false, nil
	}

	current++
	e.value = strconv.FormatInt(current, 10)
	if !ok || e.expiresAt.IsZero() {
		e.expiresAt = now.Add(ttl)
	}
	c.items[key] = e
	c.maybeSweep(now)
	return current, true, nil
}

func (c *MemorySharedCache) TTL(_ context.Context, key string) (time.Duration, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	e, ok := c.lookup(key, now)
	if !ok || e.expiresAt.IsZero() {
		return 0, nil
	}
	return e.expiresAt.Sub(now), nil
}

// Len returns the number of stored entries, expired ones included.
func (c *MemorySharedCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

func (c *MemorySharedCache) maybeSweep(now time.Time) {
	c.writes++
	if c.writes < sweepEvery {
		return
	}
	c.writes = 0
	for k, e := range c.items {
		if e.expired(now) {
			delete(c.items, k)
		}
	}
}
