package cache

import (
	"container/list"
	"context"
	"sync"
	"time"

	"SurveyInsights/internal/ports"
)

type entry struct {
	key     string
	value   []byte
	expires time.Time
	element *list.Element
}

// LRUStore is an in-process ports.CacheStore with capacity eviction and per-entry expiry.
type LRUStore struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	items    map[string]*entry
	order    *list.List
	now      func() time.Time
}

var _ ports.CacheStore = (*LRUStore)(nil)

// NewLRUStore creates an LRU cache with capacity and default TTL.
func NewLRUStore(capacity int, ttl time.Duration) *LRUStore {
	if capacity <= 0 {
		capacity = 512
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &LRUStore{
		capacity: capacity,
		ttl:      ttl,
		items:    make(map[string]*entry, capacity),
		order:    list.New(),
		now:      time.Now,
	}
}

// Get returns a copy of the stored value; expired entries are dropped on access.
func (c *LRUStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ent, ok := c.items[key]; ok {
		if ent.expires.IsZero() || c.now().Before(ent.expires) {
			c.order.MoveToFront(ent.element)
			return append([]byte(nil), ent.value...), true, nil
		}
		c.removeEntry(ent)
	}
	return nil, false, nil
}

// Set stores a copy of value; ttl <= 0 uses the default.
func (c *LRUStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	stored := append([]byte(nil), value...)
	if ent, ok := c.items[key]; ok {
		ent.value = stored
		ent.expires = c.computeExpiry(ttl)
		c.order.MoveToFront(ent.element)
		return nil
	}

	if len(c.items) >= c.capacity {
		c.evictOldest()
	}

	elem := c.order.PushFront(key)
	c.items[key] = &entry{
		key:     key,
		value:   stored,
		expires: c.computeExpiry(ttl),
		element: elem,
	}
	return nil
}

// Len reports the number of live and not yet collected entries.
func (c *LRUStore) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

func (c *LRUStore) computeExpiry(ttl time.Duration) time.Time {
	if ttl <= 0 {
		ttl = c.ttl
	}
	return c.now().Add(ttl)
}

func (c *LRUStore) evictOldest() {
	elem := c.order.Back()
	if elem == nil {
		return
	}
	key := elem.Value.(string)
	if ent, ok := c.items[key]; ok {
		c.removeEntry(ent)
	}
}

func (c *LRUStore) removeEntry(ent *entry) {
	if ent.element != nil {
		c.order.Remove(ent.element)
	}
	delete(c.items, ent.key)
}
