package cache

import (
	"container/list"
	"sync"
	"time"
)

// LRUCache is a size-bounded cache whose entries expire after a fixed TTL.
type LRUCache[T any] struct {
	mu      sync.Mutex
	maxSize int
	ttl     time.Duration
	now     func() time.Time
	items   map[string]*list.Element
	order   *list.List
}

type entry[T any] struct {
	key       string
	value     T
	expiresAt time.Time
}

// NewLRUCache creates a cache holding at most maxSize entries for ttl each.
func NewLRUCache[T any](maxSize int, ttl time.Duration) *LRUCache[T] {
	if maxSize <= 0 {
		maxSize = 1
	}
	return &LRUCache[T]{
		maxSize: maxSize,
		ttl:     ttl,
		now:     time.Now,
		items:   make(map[string]*list.Element),
		order:   list.New(),
	}
}

func (c *LRUCache[T]) Get(key string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero T
	elem, ok := c.lookup(key)
	if !ok {
		return zero, false
	}
	c.order.MoveToFront(elem)
	return elem.Value.(*entry[T]).value, true
}

func (c *LRUCache[T]) Set(key string, value T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store(key, value)
}

// Add stores value under key only when no live entry exists, reporting
// whether it did. Check and insert happen under one lock, so two callers
// racing on the same key see exactly one true.
func (c *LRUCache[T]) Add(key string, value T) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.lookup(key); ok {
		return false
	}
	c.store(key, value)
	return true
}

func (c *LRUCache[T]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		c.remove(elem)
	}
}

// CleanExpired drops every expired entry and returns how many were removed.
func (c *LRUCache[T]) CleanExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for elem := c.order.Back(); elem != nil; {
		prev := elem.Prev()
		if now.After(elem.Value.(*entry[T]).expiresAt) {
			c.remove(elem)
			removed++
		}
		elem = prev
	}
	return removed
}

func (c *LRUCache[T]) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// lookup returns the live element for key, evicting it if expired.
func (c *LRUCache[T]) lookup(key string) (*list.Element, bool) {
	elem, ok := c.items[key]
	if !ok {
		return nil, false
	}
	if c.now().After(elem.Value.(*entry[T]).expiresAt) {
		c.remove(elem)
		return nil, false
	}
	return elem, true
}

func (c *LRUCache[T]) store(key string, value T) {
	e := &entry[T]{key: key, value: value, expiresAt: c.now().Add(c.ttl)}

	if elem, ok := c.items[key]; ok {
		elem.Value = e
		c.order.MoveToFront(elem)
		return
	}

	c.items[key] = c.order.PushFront(e)
	for c.order.Len() > c.maxSize {
		c.remove(c.order.Back())
	}
}

func (c *LRUCache[T]) remove(elem *list.Element) {
	delete(c.items, elem.Value.(*entry[T]).key)
	c.order.Remove(elem)
}
