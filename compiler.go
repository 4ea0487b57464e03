package exprcomp

import (
	"fmt"
	"log/slog"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/hugr-lab/exprcomp-go/expr"
	"github.com/hugr-lab/exprcomp-go/function"
	"github.com/hugr-lab/exprcomp-go/internal/cache"
)

// Config configures an ExpressionCompiler. The zero value is usable:
// every field has a default.
type Config struct {
	// Logger receives debug-level compilation events.
	// OPTIONAL: Defaults to slog.Default().
	Logger *slog.Logger

	// Allocator is used for all batch output materialization.
	// OPTIONAL: Defaults to memory.DefaultAllocator.
	Allocator memory.Allocator

	// Functions resolves Call handles during compilation.
	// OPTIONAL: Defaults to a registry preloaded with the builtins.
	Functions *function.Registry

	// Generator is the code-generation backend.
	// OPTIONAL: Defaults to the closure generator over Functions.
	Generator Generator

	// CursorCacheSize bounds the cursor-processor artifact cache.
	// OPTIONAL: Defaults to 1000.
	CursorCacheSize int

	// ExpressionCacheSize bounds each per-expression artifact cache inside
	// the strategy compilers.
	// OPTIONAL: Defaults to 10000.
	ExpressionCacheSize int
}

// DynamicFilter supplies a predicate that becomes available, or narrows,
// while a query runs. Current may return nil while no predicate is known;
// it is consulted again at every factory invocation, so later processor
// instances observe a narrowed filter without recompiling static parts.
// Implementations MUST be goroutine-safe.
type DynamicFilter interface {
	Current() expr.Expression
}

// PageProcessorDef describes one page-processor compilation.
type PageProcessorDef struct {
	// ColumnarEnabled allows the vectorized filter strategy. When false
	// the row-wise strategy is used even for columnar-eligible filters.
	ColumnarEnabled bool

	// Filter is the static filter expression. OPTIONAL: nil means every
	// row passes.
	Filter expr.Expression

	// DynamicFilter is combined with the static filter by logical AND.
	// OPTIONAL.
	DynamicFilter DynamicFilter

	// Projections produce the output columns, in order.
	Projections []expr.Expression

	// NameSuffix disambiguates generated artifact cache entries for plans
	// that must not share compiled functions. OPTIONAL.
	NameSuffix string

	// InitialBatchSize seeds the adaptive output batch size.
	// OPTIONAL: Defaults to DefaultInitialBatchSize.
	InitialBatchSize int
}

// ExpressionCompiler is the public entry point of the expression
// compilation layer. It owns the cursor-processor cache, selects the
// filter-evaluation strategy for page processors, and assembles factories
// of runtime processor instances. Safe for concurrent use.
type ExpressionCompiler struct {
	logger *slog.Logger
	mem    memory.Allocator

	pageFunctions    *PageFunctionCompiler
	columnarFilters  *ColumnarFilterCompiler
	cursorCompiler   *CursorProcessorCompiler
	cursorProcessors *cache.Loading[*CursorProcessorArtifact]
}

// New creates an ExpressionCompiler. The compiler, its caches, and the
// factories it returns live until dropped by the caller, typically for the
// lifetime of the engine.
func New(cfg Config) (*ExpressionCompiler, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Allocator == nil {
		cfg.Allocator = memory.DefaultAllocator
	}
	if cfg.Functions == nil {
		cfg.Functions = function.NewRegistry()
	}
	if cfg.Generator == nil {
		cfg.Generator = NewClosureGenerator(cfg.Functions)
	}
	if cfg.CursorCacheSize <= 0 {
		cfg.CursorCacheSize = 1000
	}
	if cfg.ExpressionCacheSize <= 0 {
		cfg.ExpressionCacheSize = 10000
	}

	pageFunctions, err := NewPageFunctionCompiler(cfg.Generator, cfg.Logger, cfg.ExpressionCacheSize)
	if err != nil {
		return nil, err
	}
	columnarFilters, err := NewColumnarFilterCompiler(cfg.Functions, cfg.Allocator, cfg.Logger, cfg.ExpressionCacheSize)
	if err != nil {
		return nil, err
	}
	cursorProcessors, err := cache.NewLoading[*CursorProcessorArtifact](cfg.CursorCacheSize)
	if err != nil {
		return nil, fmt.Errorf("cursor processor cache: %w", err)
	}
	return &ExpressionCompiler{
		logger:           cfg.Logger,
		mem:              cfg.Allocator,
		pageFunctions:    pageFunctions,
		columnarFilters:  columnarFilters,
		cursorCompiler:   NewCursorProcessorCompiler(cfg.Generator, cfg.Logger),
		cursorProcessors: cursorProcessors,
	}, nil
}

// CompileCursorProcessor compiles filter plus projections into a factory
// of row-at-a-time processors. Compilation is memoized structurally:
// structurally equal inputs with an equal disambiguator share one cached
// artifact, and concurrent first calls for one key compile exactly once.
// A nil filter compiles as constant true. Compilation failures are never
// cached: an identical bad request recompiles and re-fails.
func (c *ExpressionCompiler) CompileCursorProcessor(filter expr.Expression, projections []expr.Expression, disambiguator string) (CursorProcessorFactory, error) {
	key, err := cursorCacheKey(filter, projections, disambiguator)
	if err != nil {
		return nil, err
	}
	art, err := c.cursorProcessors.Get(key, func() (*CursorProcessorArtifact, error) {
		f := filter
		if f == nil {
			f = expr.NewBool(true)
		}
		return c.cursorCompiler.Compile(f, projections)
	})
	if err != nil {
		// The cache propagates the loader's error as-is, so callers
		// observe the original *CompilationError, never a wrapper.
		return nil, err
	}
	return art.NewCursorProcessor, nil
}

// CompilePageProcessor compiles def into a factory of batch-at-a-time
// processors. Unlike the cursor path this is never memoized here: a page
// processor assembles independently cacheable sub-artifacts, and the
// strategy compilers reuse those at their own granularity.
//
// Strategy selection is mutually exclusive: a columnar evaluator when
// enabled and eligible, otherwise a compiled row-wise evaluator, otherwise
// no static filter. A dynamic filter, when supplied, is ANDed with
// whichever static evaluator is active and is compiled lazily at every
// factory invocation.
func (c *ExpressionCompiler) CompilePageProcessor(def PageProcessorDef) (PageProcessorFactory, error) {
	var (
		staticFactory FilterEvaluatorFactory
		err           error
	)
	if def.Filter != nil {
		if def.ColumnarEnabled {
			staticFactory, _ = c.columnarFilters.Compile(def.Filter)
		}
		if staticFactory == nil {
			staticFactory, err = c.pageFunctions.CompileFilter(def.Filter, def.NameSuffix)
			if err != nil {
				return nil, err
			}
		}
	}

	projFactories := make([]PageProjectionFactory, len(def.Projections))
	for i, p := range def.Projections {
		pf, err := c.pageFunctions.CompileProjection(p, def.NameSuffix)
		if err != nil {
			return nil, err
		}
		projFactories[i] = pf
	}

	mem := c.mem
	dynamic := def.DynamicFilter
	nameSuffix := def.NameSuffix
	columnarEnabled := def.ColumnarEnabled
	initialBatchSize := def.InitialBatchSize
	return func() (*PageProcessor, error) {
		var evaluator FilterEvaluator
		if staticFactory != nil {
			evaluator = staticFactory()
		}
		if dynamic != nil {
			if e := dynamic.Current(); e != nil {
				dynEval, err := c.compileDynamicEvaluator(e, columnarEnabled, nameSuffix)
				if err != nil {
					return nil, err
				}
				evaluator = conjoin(evaluator, dynEval)
			}
		}
		if evaluator == nil {
			evaluator = allRowsEvaluator{}
		}
		projections := make([]*PageProjection, len(projFactories))
		for i, pf := range projFactories {
			projections[i] = pf()
		}
		return newPageProcessor(mem, evaluator, projections, initialBatchSize), nil
	}, nil
}

// compileDynamicEvaluator compiles a dynamic filter predicate, preferring
// the columnar strategy and falling back to row-wise. The strategy
// compilers' caches make repeated invocations for a stable predicate
// cheap.
func (c *ExpressionCompiler) compileDynamicEvaluator(e expr.Expression, columnarEnabled bool, nameSuffix string) (FilterEvaluator, error) {
	if columnarEnabled {
		if factory, ok := c.columnarFilters.Compile(e); ok {
			return factory(), nil
		}
	}
	factory, err := c.pageFunctions.CompileFilter(e, nameSuffix)
	if err != nil {
		if ce, ok := err.(*CompilationError); ok {
			return nil, &CompilationError{Stage: "dynamic filter", Expr: ce.Expr, Err: ce.Err}
		}
		return nil, err
	}
	return factory(), nil
}

// cursorCacheKey builds the structural cache key: the canonical encodings
// of the filter and every projection plus the caller's disambiguator.
// Two plans with equal expressions and equal disambiguators alias; a
// differing disambiguator never aliases.
func cursorCacheKey(filter expr.Expression, projections []expr.Expression, disambiguator string) (string, error) {
	var filterEnc []byte
	if filter != nil {
		enc, err := expr.Encode(filter)
		if err != nil {
			return "", compilationError("filter", filter.String(), err)
		}
		filterEnc = enc
	}
	projEncs := make([][]byte, len(projections))
	for i, p := range projections {
		enc, err := expr.Encode(p)
		if err != nil {
			return "", compilationError("projection", p.String(), err)
		}
		projEncs[i] = enc
	}
	key, err := msgpack.Marshal([]any{filterEnc, projEncs, disambiguator})
	if err != nil {
		return "", fmt.Errorf("encode cache key: %w", err)
	}
	return string(key), nil
}
