package cache

import (
	"sync"
	"time"
)

type entry[V any] struct {
	value    V
	expireAt time.Time
	// seq 记录写入顺序，容量满时淘汰最早写入的条目
	seq uint64
}

func (e entry[V]) expired(now time.Time) bool {
	return !e.expireAt.IsZero() && !now.Before(e.expireAt)
}

// MemoryCache implements a thread-safe in-memory cache with expiry and an
// optional entry limit.
type MemoryCache[K comparable, V any] struct {
	mu sync.RWMutex

	data       map[K]entry[V]
	maxEntries int
	seq        uint64

	// now 便于测试替换时钟
	now func() time.Time
}

// NewMemoryCache creates a new instance of MemoryCache. maxEntries <= 0
// disables the limit.
func NewMemoryCache[K comparable, V any](maxEntries int) *MemoryCache[K, V] {
	return &MemoryCache[K, V]{
		data:       make(map[K]entry[V]),
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

// Set adds or updates an item in the cache
func (c *MemoryCache[K, V]) Set(key K, value V, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if _, exists := c.data[key]; !exists && c.maxEntries > 0 && len(c.data) >= c.maxEntries {
		c.evict(now)
	}

	e := entry[V]{value: value}
	if ttl > 0 {
		e.expireAt = now.Add(ttl)
	}
	c.seq++
	e.seq = c.seq
	c.data[key] = e
}

// Get retrieves an item from the cache
func (c *MemoryCache[K, V]) Get(key K) (V, bool) {
	c.mu.RLock()
	e, ok := c.data[key]
	c.mu.RUnlock()

	if !ok {
		var zero V
		return zero, false
	}
	if e.expired(c.now()) {
		c.Del(key)
		var zero V
		return zero, false
	}
	return e.value, true
}

// Del removes an item from the cache
func (c *MemoryCache[K, V]) Del(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
}

// Keys returns all keys in the cache
func (c *MemoryCache[K, V]) Keys() []K {
	c.mu.RLock()
	defer c.mu.RUnlock()

	now := c.now()
	keys := make([]K, 0, len(c.data))
	for k, e := range c.data {
		if !e.expired(now) {
			keys = append(keys, k)
		}
	}
	return keys
}

// Len returns the number of items in the cache
func (c *MemoryCache[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	now := c.now()
	n := 0
	for _, e := range c.data {
		if !e.expired(now) {
			n++
		}
	}
	return n
}

// Clear removes all items from the cache
func (c *MemoryCache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = make(map[K]entry[V])
}

// evict 先清理过期条目，仍然满时淘汰最早写入的一条。调用方持有写锁。
func (c *MemoryCache[K, V]) evict(now time.Time) {
	for k, e := range c.data {
		if e.expired(now) {
			delete(c.data, k)
		}
	}
	if len(c.data) < c.maxEntries {
		return
	}

	var (
		oldest K
		minSeq uint64
		found  bool
	)
	for k, e := range c.data {
		if !found || e.seq < minSeq {
			oldest, minSeq, found = k, e.seq, true
		}
	}
	if found {
		delete(c.data, oldest)
	}
}
