package exprcomp

import (
	"fmt"
	"log/slog"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/hugr-lab/exprcomp-go/expr"
	"github.com/hugr-lab/exprcomp-go/internal/cache"
)

// PageFunctionCompiler compiles filters and projections into row-wise
// closures operating over a batch. It keeps its own bounded caches, keyed
// by expression shape plus name suffix; this per-expression reuse is the
// reason page-processor compilation is never memoized one level up — the
// sub-artifacts cache at their natural granularity here.
type PageFunctionCompiler struct {
	gen         Generator
	logger      *slog.Logger
	filters     *cache.Loading[*Artifact]
	projections *cache.Loading[*Artifact]
}

// NewPageFunctionCompiler creates a page function compiler whose filter
// and projection caches each hold at most cacheSize artifacts.
func NewPageFunctionCompiler(gen Generator, logger *slog.Logger, cacheSize int) (*PageFunctionCompiler, error) {
	filters, err := cache.NewLoading[*Artifact](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("page filter cache: %w", err)
	}
	projections, err := cache.NewLoading[*Artifact](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("page projection cache: %w", err)
	}
	return &PageFunctionCompiler{
		gen:         gen,
		logger:      logger,
		filters:     filters,
		projections: projections,
	}, nil
}

// CompileFilter compiles a boolean expression into a row-wise filter
// evaluator factory. This strategy accepts any well-formed filter; it is
// the universal fallback when the columnar strategy declines.
func (c *PageFunctionCompiler) CompileFilter(e expr.Expression, nameSuffix string) (FilterEvaluatorFactory, error) {
	key, err := expr.Encode(e)
	if err != nil {
		return nil, compilationError("filter", e.String(), err)
	}
	art, err := c.filters.Get(string(key)+"|"+nameSuffix, func() (*Artifact, error) {
		art, err := c.gen.Generate(e, CapabilityBatchFilter)
		if err != nil {
			return nil, compilationError("filter", e.String(), err)
		}
		c.logger.Debug("compiled page filter", "artifact", art.Name, "filter", art.Description)
		return art, nil
	})
	if err != nil {
		return nil, err
	}
	return func() FilterEvaluator { return &rowFilterEvaluator{art: art} }, nil
}

// CompileProjection compiles a projection expression into a factory of
// PageProjection instances producing one output column each.
func (c *PageFunctionCompiler) CompileProjection(e expr.Expression, nameSuffix string) (PageProjectionFactory, error) {
	key, err := expr.Encode(e)
	if err != nil {
		return nil, compilationError("projection", e.String(), err)
	}
	art, err := c.projections.Get(string(key)+"|"+nameSuffix, func() (*Artifact, error) {
		art, err := c.gen.Generate(e, CapabilityBatchProjection)
		if err != nil {
			return nil, compilationError("projection", e.String(), err)
		}
		c.logger.Debug("compiled page projection", "artifact", art.Name, "projection", art.Description)
		return art, nil
	})
	if err != nil {
		return nil, err
	}
	return func() *PageProjection { return &PageProjection{art: art} }, nil
}

// FilterCacheStats returns the filter artifact cache counters.
func (c *PageFunctionCompiler) FilterCacheStats() cache.Stats { return c.filters.Stats() }

// ProjectionCacheStats returns the projection artifact cache counters.
func (c *PageFunctionCompiler) ProjectionCacheStats() cache.Stats { return c.projections.Stats() }

// PageProjectionFactory produces one fresh projection instance per call.
type PageProjectionFactory func() *PageProjection

// PageProjection materializes one output column from the selected
// positions of a batch. Instances are single-threaded; the underlying
// artifact is shared.
type PageProjection struct {
	art *Artifact
}

// Type returns the output column type.
func (p *PageProjection) Type() arrow.DataType { return p.art.ResultType }

// Description renders the projection expression.
func (p *PageProjection) Description() string { return p.art.Description }

// Project evaluates the projection for selection positions [from, to),
// returning the output column. The caller owns the returned array.
func (p *PageProjection) Project(mem memory.Allocator, batch arrow.RecordBatch, sel Selection, from, to int) (arrow.Array, error) {
	eval, err := p.art.Batch(batch)
	if err != nil {
		return nil, err
	}
	b, err := newValueBuilder(mem, p.art.ResultType)
	if err != nil {
		return nil, err
	}
	defer b.Release()
	b.Reserve(to - from)
	for i := from; i < to; i++ {
		v, err := eval(sel.Position(i))
		if err != nil {
			return nil, err
		}
		if err := appendValue(b, v); err != nil {
			return nil, err
		}
	}
	return b.NewArray(), nil
}
