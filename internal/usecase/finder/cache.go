package finder

import (
	"sync"

	"github.com/kailas-cloud/simsearch/internal/domain/attribute"
)

type cached struct {
	value attribute.Value
	found bool
}

// ValueCache maps identifiers to resolved values for one attribute of one query.
// Absent values are cached too, so a missing key is probed at most once.
// Entries are never evicted.
type ValueCache struct {
	mu sync.Mutex
	m  map[string]cached
}

// NewValueCache creates an empty cache.
func NewValueCache() *ValueCache {
	return &ValueCache{m: make(map[string]cached)}
}

// Get returns the cached value. ok is false when id was never resolved.
func (c *ValueCache) Get(id string) (v attribute.Value, found, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.m[id]
	return e.value, e.found, ok
}

// Put stores a resolved value.
func (c *ValueCache) Put(id string, v attribute.Value) {
	c.mu.Lock()
	c.m[id] = cached{value: v, found: true}
	c.mu.Unlock()
}

// PutMissing records that id has no usable value.
func (c *ValueCache) PutMissing(id string) {
	c.mu.Lock()
	if _, ok := c.m[id]; !ok {
		c.m[id] = cached{}
	}
	c.mu.Unlock()
}

// Len returns the number of cached identifiers.
func (c *ValueCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.m)
}
