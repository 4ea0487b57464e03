package exprcomp

import "github.com/hugr-lab/exprcomp-go/internal/cache"

// CacheStats is a snapshot of one compilation cache's counters. The
// counters are observational: removing them changes nothing about
// compilation behavior.
type CacheStats struct {
	Hits      uint64
	Misses    uint64
	Evictions uint64
	Failures  uint64
	Size      int
}

// HitRate returns hits / (hits + misses), or 0 before any lookup.
func (s CacheStats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// CompilerCacheStats aggregates the counters of every cache the compiler
// owns.
type CompilerCacheStats struct {
	CursorProcessors CacheStats
	PageFilters      CacheStats
	PageProjections  CacheStats
	ColumnarFilters  CacheStats
}

// CacheStats returns a snapshot of all compilation cache counters.
func (c *ExpressionCompiler) CacheStats() CompilerCacheStats {
	return CompilerCacheStats{
		CursorProcessors: fromCacheStats(c.cursorProcessors.Stats()),
		PageFilters:      fromCacheStats(c.pageFunctions.FilterCacheStats()),
		PageProjections:  fromCacheStats(c.pageFunctions.ProjectionCacheStats()),
		ColumnarFilters:  fromCacheStats(c.columnarFilters.CacheStats()),
	}
}

func fromCacheStats(s cache.Stats) CacheStats {
	return CacheStats{
		Hits:      s.Hits,
		Misses:    s.Misses,
		Evictions: s.Evictions,
		Failures:  s.Failures,
		Size:      s.Size,
	}
}
