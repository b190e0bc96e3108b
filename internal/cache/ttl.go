package cache

import (
	"strings"
	"sync"
	"time"
)

// DefaultTTL is the freshness window for cached lookups.
const DefaultTTL = 300 * time.Second

type entry[V any] struct {
	value    V
	storedAt time.Time
}

// TTL is a string-keyed store whose entries expire a fixed duration after
// they were written. Expiry is checked on read; nothing is swept in the
// background.
type TTL[V any] struct {
	ttl time.Duration
	now func() time.Time

	mu    sync.RWMutex
	items map[string]entry[V]
}

type Option[V any] func(*TTL[V])

// WithClock replaces time.Now, mostly for tests.
func WithClock[V any](now func() time.Time) Option[V] {
	return func(c *TTL[V]) {
		if now != nil {
			c.now = now
		}
	}
}

func New[V any](ttl time.Duration, opts ...Option[V]) *TTL[V] {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	c := &TTL[V]{
		ttl:   ttl,
		now:   time.Now,
		items: make(map[string]entry[V]),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *TTL[V]) Get(key string) (V, bool) {
	c.mu.RLock()
	e, ok := c.items[key]
	c.mu.RUnlock()
	if !ok || c.now().Sub(e.storedAt) >= c.ttl {
		var zero V
		return zero, false
	}
	return e.value, true
}

// Set overwrites any previous value and stamps it with the current time.
func (c *TTL[V]) Set(key string, value V) {
	c.mu.Lock()
	c.items[key] = entry[V]{value: value, storedAt: c.now()}
	c.mu.Unlock()
}

// Invalidate removes every key matching fn and returns how many were dropped.
func (c *TTL[V]) Invalidate(fn func(key string) bool) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for k := range c.items {
		if fn(k) {
			delete(c.items, k)
			n++
		}
	}
	return n
}

func (c *TTL[V]) Clear() {
	c.mu.Lock()
	c.items = make(map[string]entry[V])
	c.mu.Unlock()
}

func (c *TTL[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Key builds a composite key such as "price:Au" or "news:Cu:mining:en".
func Key(kind, symbol string, parts ...string) string {
	all := append([]string{kind, symbol}, parts...)
	return strings.Join(all, ":")
}

// MatchSymbol matches composite keys whose symbol segment equals symbol.
func MatchSymbol(symbol string) func(string) bool {
	return func(key string) bool {
		parts := strings.Split(key, ":")
		return len(parts) > 1 && parts[1] == symbol
	}
}
