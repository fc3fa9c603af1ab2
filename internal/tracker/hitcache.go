package tracker

import (
	"context"
	"sync"
)

// hitCountCache mirrors persisted per-command invocation counts for fast
// sort hints. It is an explicit object owned by the Tracker, populated
// lazily on first read and invalidated on writes. All counts come from one
// aggregate query, so per-key invalidation collapses to a dirty flag and a
// full reload on the next read.
type hitCountCache struct {
	mu     sync.Mutex
	counts map[string]int64
	loaded bool
}

func newHitCountCache() *hitCountCache {
	return &hitCountCache{}
}

// get returns the cached counts, loading them through fn if the cache is
// empty or was invalidated. The returned map is a copy; callers may mutate
// it freely.
func (c *hitCountCache) get(ctx context.Context, fn func(context.Context) (map[string]int64, error)) (map[string]int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.loaded {
		counts, err := fn(ctx)
		if err != nil {
			return nil, err
		}
		c.counts = counts
		c.loaded = true
	}

	out := make(map[string]int64, len(c.counts))
	for k, v := range c.counts {
		out[k] = v
	}
	return out, nil
}

// invalidate drops the cached count for one command id. The write has
// already landed when this is called, so incrementing in place would also
// be correct; reloading keeps the cache trivially consistent with the
// store.
func (c *hitCountCache) invalidate(commandID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.loaded {
		return
	}
	delete(c.counts, commandID)
	c.loaded = false
}

// invalidateAll drops the whole cache.
func (c *hitCountCache) invalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.counts = nil
	c.loaded = false
}
