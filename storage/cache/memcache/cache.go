// Package memcache is an in-process core.Cache, used when no Redis server is configured.
package memcache

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/trezcool/preschool/core"
)

// expired entries are purged on Set once the cache holds this many entries
const purgeThreshold = 1024

type entry struct {
	val     []byte
	expires time.Time // zero: never
}

type Cache struct {
	mu      sync.RWMutex
	entries map[string]entry
	clock   clockwork.Clock
}

var _ core.Cache = (*Cache)(nil)

func New(clock clockwork.Clock) *Cache {
	return &Cache{entries: make(map[string]entry), clock: clock}
}

func (c *Cache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok || c.isExpired(e) {
		return nil, false, nil
	}
	return append([]byte(nil), e.val...), true, nil
}

func (c *Cache) Set(_ context.Context, key string, val []byte, ttl time.Duration) error {
	e := entry{val: append([]byte(nil), val...)}
	if ttl > 0 {
		e.expires = c.clock.Now().Add(ttl)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.entries) >= purgeThreshold {
		for k, old := range c.entries {
			if c.isExpired(old) {
				delete(c.entries, k)
			}
		}
	}
	c.entries[key] = e
	return nil
}

func (c *Cache) DeletePrefix(_ context.Context, prefixes ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.entries {
		for _, prefix := range prefixes {
			if strings.HasPrefix(k, prefix) {
				delete(c.entries, k)
				break
			}
		}
	}
	return nil
}

// Len returns the number of entries, expired ones included.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *Cache) isExpired(e entry) bool {
	return !e.expires.IsZero() && !c.clock.Now().Before(e.expires)
}
