package registry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/GoSim-25-26J-441/topology-core/pkg/models"
)

// DefaultLoadTimeout bounds a shared backend load
const DefaultLoadTimeout = 5 * time.Second

// Cache is a read-through TTL cache in front of a registry.
// Concurrent misses for the same key share one backend call, which outlives the
// cancellation of any single caller. Callers get copies.
type Cache struct {
	next        InstanceRegistry
	ttl         time.Duration
	loadTimeout time.Duration
	now         func() time.Time

	mu      sync.RWMutex
	entries map[string]cacheEntry
	group   singleflight.Group
}

type cacheEntry struct {
	agents  []models.AgentSnapshot
	expires time.Time
}

// CacheOption configures a Cache
type CacheOption func(*Cache)

// WithLoadTimeout bounds each shared backend load; zero leaves it unbounded
func WithLoadTimeout(d time.Duration) CacheOption {
	return func(c *Cache) {
		c.loadTimeout = d
	}
}

// NewCache wraps next; a non-positive ttl disables caching
func NewCache(next InstanceRegistry, ttl time.Duration, opts ...CacheOption) *Cache {
	c := &Cache{
		next:        next,
		ttl:         ttl,
		loadTimeout: DefaultLoadTimeout,
		now:         time.Now,
		entries:     make(map[string]cacheEntry),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// InstancesFor returns cached snapshots or loads them from the wrapped registry.
// Errors are not cached.
func (c *Cache) InstancesFor(ctx context.Context, applicationName string, asOf time.Time) ([]models.AgentSnapshot, error) {
	if c.ttl <= 0 {
		return c.next.InstancesFor(ctx, applicationName, asOf)
	}

	key := fmt.Sprintf("%s@%d", applicationName, asOf.UnixNano())
	if agents, ok := c.lookup(key); ok {
		return agents, nil
	}

	// The load keeps the first caller's values but not its cancellation, so one
	// caller giving up does not fail the others waiting on the same key.
	loadCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (any, error) {
		// Another caller may have filled the entry while we waited
		if agents, ok := c.lookup(key); ok {
			return agents, nil
		}
		lctx := loadCtx
		if c.loadTimeout > 0 {
			var cancel context.CancelFunc
			lctx, cancel = context.WithTimeout(loadCtx, c.loadTimeout)
			defer cancel()
		}
		agents, err := c.next.InstancesFor(lctx, applicationName, asOf)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.entries[key] = cacheEntry{agents: cloneSnapshots(agents), expires: c.now().Add(c.ttl)}
		c.mu.Unlock()
		return agents, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		agents, ok := res.Val.([]models.AgentSnapshot)
		if !ok {
			return nil, fmt.Errorf("unexpected type from registry cache: %T", res.Val)
		}
		return cloneSnapshots(agents), nil
	}
}

// Len returns the number of live entries
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	now := c.now()
	n := 0
	for _, e := range c.entries {
		if now.Before(e.expires) {
			n++
		}
	}
	return n
}

// Purge drops expired entries
func (c *Cache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	for key, e := range c.entries {
		if !now.Before(e.expires) {
			delete(c.entries, key)
		}
	}
}

func (c *Cache) lookup(key string) ([]models.AgentSnapshot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	if !ok || !c.now().Before(e.expires) {
		return nil, false
	}
	return cloneSnapshots(e.agents), true
}
