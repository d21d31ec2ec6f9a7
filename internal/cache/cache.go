package cache

import (
	"sync"
	"time"
)

type entry[T any] struct {
	value     T
	createdAt time.Time
	expiresAt time.Time
}

// Cache is an in-memory TTL cache with a bounded size. Expired entries are
// deleted lazily on read; Cleanup removes them eagerly. When full, the entry
// inserted first is evicted (insertion order, not LRU).
type Cache[T any] struct {
	mu      sync.Mutex
	entries map[string]entry[T]
	order   []string
	maxSize int
	now     func() time.Time
}

func New[T any](maxSize int) *Cache[T] {
	if maxSize <= 0 {
		maxSize = 100
	}
	return &Cache[T]{
		entries: make(map[string]entry[T]),
		maxSize: maxSize,
		now:     time.Now,
	}
}

// SetClock replaces the cache's clock. Test hook.
func (c *Cache[T]) SetClock(now func() time.Time) {
	c.mu.Lock()
	c.now = now
	c.mu.Unlock()
}

func (c *Cache[T]) Get(key string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero T
	e, ok := c.entries[key]
	if !ok {
		return zero, false
	}
	if c.now().After(e.expiresAt) {
		c.removeLocked(key)
		return zero, false
	}
	return e.value, true
}

func (c *Cache[T]) Set(key string, value T, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists {
		if len(c.entries) >= c.maxSize {
			c.removeLocked(c.order[0])
		}
		c.order = append(c.order, key)
	}

	now := c.now()
	c.entries[key] = entry[T]{
		value:     value,
		createdAt: now,
		expiresAt: now.Add(ttl),
	}
}

func (c *Cache[T]) Has(key string) bool {
	_, ok := c.Get(key)
	return ok
}

func (c *Cache[T]) Delete(key string) {
	c.mu.Lock()
	c.removeLocked(key)
	c.mu.Unlock()
}

func (c *Cache[T]) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]entry[T])
	c.order = nil
	c.mu.Unlock()
}

// TTL reports the remaining lifetime of key. The second return is false if
// the key is missing or already expired.
func (c *Cache[T]) TTL(key string) (time.Duration, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return 0, false
	}
	remaining := e.expiresAt.Sub(c.now())
	if remaining <= 0 {
		c.removeLocked(key)
		return 0, false
	}
	return remaining, true
}

func (c *Cache[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Cleanup removes every expired entry. Correctness does not depend on it;
// it bounds memory when reads are rare.
func (c *Cache[T]) Cleanup() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for key, e := range c.entries {
		if now.After(e.expiresAt) {
			c.removeLocked(key)
			removed++
		}
	}
	return removed
}

func (c *Cache[T]) removeLocked(key string) {
	if _, ok := c.entries[key]; !ok {
		return
	}
	delete(c.entries, key)
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}
