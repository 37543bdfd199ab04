package mem_cache

import (
	"errors"
	"sync"
	"time"

	"github.com/pmkol/gqlx/pkg/cache"
	"github.com/pmkol/gqlx/pkg/lru"
)

var ErrInvalidCapacity = errors.New("cache capacity must be a positive integer")

var _ cache.Backend = (*MemCache)(nil)

type Opts struct {
	// Capacity is the maximum number of entries. Must be > 0.
	Capacity int

	// Clock is used for expiry checks and recency stamps.
	// Default is time.Now.
	Clock func() time.Time
}

// MemCache is a bounded LRU cache with per entry expiry.
// It is safe for concurrent use.
type MemCache struct {
	now func() time.Time

	mu    sync.Mutex
	lru   *lru.LRU[string, *elem]
	stats counters
}

type elem struct {
	v      []byte
	expire time.Time
}

type counters struct {
	hits, misses, sets, evictions uint64
}

func New(opts Opts) (*MemCache, error) {
	if opts.Capacity <= 0 {
		return nil, ErrInvalidCapacity
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	l := lru.NewLRU[string, *elem](opts.Capacity, nil)
	l.SetClock(opts.Clock)
	return &MemCache{
		now: opts.Clock,
		lru: l,
	}, nil
}

func (c *MemCache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.lru.Peek(key)
	if !ok {
		c.stats.misses++
		return nil, false
	}
	if !c.now().Before(e.expire) {
		c.lru.Del(key)
		c.stats.misses++
		return nil, false
	}
	c.lru.Get(key) // touch
	c.stats.hits++
	return copyBytes(e.v), true
}

func (c *MemCache) Set(key string, v []byte, expire time.Time) {
	e := &elem{v: copyBytes(v), expire: expire}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, evicted := c.lru.Add(key, e); evicted {
		c.stats.evictions++
	}
	c.stats.sets++
}

func (c *MemCache) Delete(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Del(key)
}

func (c *MemCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Purge()
}

func (c *MemCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// Keys returns a snapshot of the current keys.
func (c *MemCache) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Keys()
}

// Expired reports whether key exists and its expiry is not after now.
func (c *MemCache) Expired(key string, now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.lru.Peek(key)
	return ok && !now.Before(e.expire)
}

func (c *MemCache) Stats() cache.Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.stats
	return cache.Stats{
		Hits:      s.hits,
		Misses:    s.misses,
		Sets:      s.sets,
		Evictions: s.evictions,
		Size:      c.lru.Len(),
		Capacity:  c.lru.MaxSize(),
		HitRate:   cache.HitRate(s.hits, s.misses),
	}
}

// ResetStats zeroes all counters.
func (c *MemCache) ResetStats() {
	c.mu.Lock()
	c.stats = counters{}
	c.mu.Unlock()
}

func copyBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
