package cache

import (
	"context"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryCounter is the single-process Counter used when Redis is not configured.
type MemoryCounter struct {
	mu    sync.Mutex
	store *gocache.Cache
}

func NewMemoryCounter() *MemoryCounter {
	return &MemoryCounter{store: gocache.New(5*time.Minute, 10*time.Minute)}
}

func (c *MemoryCounter) Incr(_ context.Context, key string, window time.Duration) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.store.Add(key, int64(1), window); err == nil {
		return 1, nil
	}
	n, err := c.store.IncrementInt64(key, 1)
	if err != nil {
		// expired between Add and Increment
		c.store.Set(key, int64(1), window)
		return 1, nil
	}
	return n, nil
}

func (c *MemoryCounter) AddMember(_ context.Context, key, member string, window time.Duration) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	set := map[string]struct{}{}
	expiry := window
	if v, exp, ok := c.store.GetWithExpiration(key); ok {
		set = v.(map[string]struct{})
		if !exp.IsZero() {
			expiry = time.Until(exp)
		}
	}
	set[member] = struct{}{}
	c.store.Set(key, set, expiry)
	return int64(len(set)), nil
}
