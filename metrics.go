package exprcomp

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes the compiler's cache counters to a Prometheus registry.
// All series share metric names and are distinguished by the "cache"
// label.
type Metrics struct {
	collectors []prometheus.Collector
}

// NewMetrics registers cache hit/miss/eviction/size collectors for every
// cache the compiler owns with the provided registry.
func NewMetrics(reg prometheus.Registerer, c *ExpressionCompiler) *Metrics {
	m := &Metrics{}

	add := func(cacheName string, stats func() CacheStats) {
		labels := prometheus.Labels{"cache": cacheName}
		hits := prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name:        "exprcomp_cache_hits_total",
			Help:        "Total compilation cache hits",
			ConstLabels: labels,
		}, func() float64 { return float64(stats().Hits) })
		misses := prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name:        "exprcomp_cache_misses_total",
			Help:        "Total compilation cache misses",
			ConstLabels: labels,
		}, func() float64 { return float64(stats().Misses) })
		evictions := prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name:        "exprcomp_cache_evictions_total",
			Help:        "Total compilation cache evictions",
			ConstLabels: labels,
		}, func() float64 { return float64(stats().Evictions) })
		size := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name:        "exprcomp_cache_size",
			Help:        "Current number of cached compiled artifacts",
			ConstLabels: labels,
		}, func() float64 { return float64(stats().Size) })

		reg.MustRegister(hits, misses, evictions, size)
		m.collectors = append(m.collectors, hits, misses, evictions, size)
	}

	add("cursor_processors", func() CacheStats { return c.CacheStats().CursorProcessors })
	add("page_filters", func() CacheStats { return c.CacheStats().PageFilters })
	add("page_projections", func() CacheStats { return c.CacheStats().PageProjections })
	add("columnar_filters", func() CacheStats { return c.CacheStats().ColumnarFilters })

	return m
}

// Unregister removes all collectors from reg. Call on engine shutdown when
// the registry outlives the compiler.
func (m *Metrics) Unregister(reg prometheus.Registerer) {
	for _, col := range m.collectors {
		reg.Unregister(col)
	}
}
