package adapter

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/evmac/messaging-service/internal/infrastructure/cache/port"
)

// MemoryCache is an in-process LRU cache with per-entry TTL. It satisfies
// port.Cache so deployments without Redis still get conversation lookup
// caching.
type MemoryCache struct {
	mu       sync.Mutex
	capacity int
	order    *list.List // front = most recently used
	entries  map[string]*list.Element
}

type memoryEntry struct {
	key       string
	value     string
	expiresAt time.Time // zero means no expiration
}

// NewMemoryCache constructs a MemoryCache holding at most capacity entries.
// A non-positive capacity defaults to 1024.
func NewMemoryCache(capacity int) *MemoryCache {
	if capacity <= 0 {
		capacity = 1024
	}
	return &MemoryCache{
		capacity: capacity,
		order:    list.New(),
		entries:  make(map[string]*list.Element),
	}
}

var _ port.Cache = (*MemoryCache)(nil)

func (c *MemoryCache) Get(_ context.Context, key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		return "", port.ErrMiss
	}
	entry := el.Value.(*memoryEntry)
	if !entry.expiresAt.IsZero() && time.Now().After(entry.expiresAt) {
		c.removeLocked(el)
		return "", port.ErrMiss
	}
	c.order.MoveToFront(el)
	return entry.value, nil
}

func (c *MemoryCache) Set(_ context.Context, key string, value string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = time.Now().Add(ttl)
	}
	if el, ok := c.entries[key]; ok {
		entry := el.Value.(*memoryEntry)
		entry.value = value
		entry.expiresAt = expiresAt
		c.order.MoveToFront(el)
		return nil
	}
	el := c.order.PushFront(&memoryEntry{key: key, value: value, expiresAt: expiresAt})
	c.entries[key] = el
	for c.order.Len() > c.capacity {
		c.removeLocked(c.order.Back())
	}
	return nil
}

func (c *MemoryCache) Del(_ context.Context, keys ...string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var removed int64
	for _, key := range keys {
		if el, ok := c.entries[key]; ok {
			c.removeLocked(el)
			removed++
		}
	}
	return removed, nil
}

func (c *MemoryCache) Ping(_ context.Context) error { return nil }

func (c *MemoryCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.order.Init()
	c.entries = make(map[string]*list.Element)
	return nil
}

func (c *MemoryCache) removeLocked(el *list.Element) {
	if el == nil {
		return
	}
	entry := el.Value.(*memoryEntry)
	c.order.Remove(el)
	delete(c.entries, entry.key)
}
