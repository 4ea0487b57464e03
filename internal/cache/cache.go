// Package cache provides the bounded memoizing cache backing the
// expression compiler. It combines an LRU with singleflight so that
// concurrent misses for one key run the loader exactly once, and every
// waiter observes the loader's original error unwrapped.
package cache

import (
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

// Stats is a point-in-time snapshot of cache counters. Counters are
// observational only; removing them changes no behavior.
type Stats struct {
	Hits      uint64
	Misses    uint64
	Evictions uint64
	Failures  uint64
	Size      int
}

// HitRate returns hits / (hits + misses), or 0 before any lookup.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// Loading is a bounded, capacity-limited loading cache keyed by string.
// Entries evicted least-recently-used once capacity is exceeded. Loader
// failures are never stored: a repeated uncompilable request re-runs the
// loader and re-fails.
type Loading[V any] struct {
	lru   *lru.Cache[string, V]
	group singleflight.Group

	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64
	failures  atomic.Uint64
}

// NewLoading creates a loading cache holding at most capacity entries.
func NewLoading[V any](capacity int) (*Loading[V], error) {
	c := &Loading[V]{}
	l, err := lru.NewWithEvict(capacity, func(string, V) {
		c.evictions.Add(1)
	})
	if err != nil {
		return nil, err
	}
	c.lru = l
	return c, nil
}

// Get returns the cached value for key, running load on a miss. Concurrent
// callers missing on the same key share a single load; all of them receive
// the load's value or its error as-is.
func (c *Loading[V]) Get(key string, load func() (V, error)) (V, error) {
	if v, ok := c.lru.Get(key); ok {
		c.hits.Add(1)
		return v, nil
	}
	c.misses.Add(1)
	v, err, _ := c.group.Do(key, func() (any, error) {
		// A concurrent loader may have stored the value between our
		// lookup and joining the flight.
		if v, ok := c.lru.Get(key); ok {
			return v, nil
		}
		v, err := load()
		if err != nil {
			return nil, err
		}
		c.lru.Add(key, v)
		return v, nil
	})
	if err != nil {
		c.failures.Add(1)
		var zero V
		return zero, err
	}
	return v.(V), nil
}

// Stats returns a snapshot of the cache counters.
func (c *Loading[V]) Stats() Stats {
	return Stats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
		Failures:  c.failures.Load(),
		Size:      c.lru.Len(),
	}
}
