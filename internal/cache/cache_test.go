package cache

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"golang.org/x/sync/errgroup"
)

// TestGetLoadsOnce tests that repeated gets for one key load once.
func TestGetLoadsOnce(t *testing.T) {
	c, err := NewLoading[int](10)
	if err != nil {
		t.Fatalf("NewLoading failed: %v", err)
	}

	loads := 0
	load := func() (int, error) {
		loads++
		return 42, nil
	}

	for i := 0; i < 3; i++ {
		v, err := c.Get("k", load)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if v != 42 {
			t.Errorf("Get = %d, want 42", v)
		}
	}
	if loads != 1 {
		t.Errorf("loader ran %d times, want 1", loads)
	}

	stats := c.Stats()
	if stats.Hits != 2 || stats.Misses != 1 {
		t.Errorf("stats = %+v, want 2 hits / 1 miss", stats)
	}
	if stats.Size != 1 {
		t.Errorf("size = %d, want 1", stats.Size)
	}
}

// TestConcurrentDedup tests at-most-one-computation-per-key under
// concurrent misses.
func TestConcurrentDedup(t *testing.T) {
	c, err := NewLoading[int](10)
	if err != nil {
		t.Fatalf("NewLoading failed: %v", err)
	}

	var loads atomic.Int64
	var release sync.WaitGroup
	release.Add(1)

	var g errgroup.Group
	for i := 0; i < 16; i++ {
		g.Go(func() error {
			release.Wait()
			v, err := c.Get("k", func() (int, error) {
				loads.Add(1)
				return 7, nil
			})
			if err != nil {
				return err
			}
			if v != 7 {
				return fmt.Errorf("got %d, want 7", v)
			}
			return nil
		})
	}
	release.Done()
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}
	if got := loads.Load(); got != 1 {
		t.Errorf("loader ran %d times, want 1", got)
	}
}

// TestErrorsNotCached tests that loader failures are retried and the
// original error reaches the caller unwrapped.
func TestErrorsNotCached(t *testing.T) {
	c, err := NewLoading[int](10)
	if err != nil {
		t.Fatalf("NewLoading failed: %v", err)
	}

	boom := errors.New("boom")
	loads := 0
	load := func() (int, error) {
		loads++
		return 0, boom
	}

	for i := 0; i < 2; i++ {
		if _, err := c.Get("k", load); err != boom {
			t.Errorf("Get error = %v, want original error", err)
		}
	}
	if loads != 2 {
		t.Errorf("loader ran %d times, want 2 (failures must not cache)", loads)
	}
	if stats := c.Stats(); stats.Failures != 2 || stats.Size != 0 {
		t.Errorf("stats = %+v, want 2 failures and size 0", stats)
	}
}

// TestEviction tests LRU eviction accounting and that evicted keys
// reload.
func TestEviction(t *testing.T) {
	c, err := NewLoading[int](2)
	if err != nil {
		t.Fatalf("NewLoading failed: %v", err)
	}

	loads := map[string]int{}
	load := func(key string, v int) func() (int, error) {
		return func() (int, error) {
			loads[key]++
			return v, nil
		}
	}

	c.Get("a", load("a", 1))
	c.Get("b", load("b", 2))
	c.Get("c", load("c", 3)) // evicts "a"

	if stats := c.Stats(); stats.Evictions != 1 || stats.Size != 2 {
		t.Errorf("stats = %+v, want 1 eviction and size 2", stats)
	}

	v, err := c.Get("a", load("a", 1))
	if err != nil {
		t.Fatalf("Get after eviction failed: %v", err)
	}
	if v != 1 || loads["a"] != 2 {
		t.Errorf("evicted key reloaded %d times with value %d, want 2 loads, value 1", loads["a"], v)
	}
}

// TestHitRate tests the derived hit-rate metric.
func TestHitRate(t *testing.T) {
	if rate := (Stats{}).HitRate(); rate != 0 {
		t.Errorf("empty HitRate = %v, want 0", rate)
	}
	if rate := (Stats{Hits: 3, Misses: 1}).HitRate(); rate != 0.75 {
		t.Errorf("HitRate = %v, want 0.75", rate)
	}
}
