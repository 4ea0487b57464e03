package exprcomp

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/hugr-lab/exprcomp-go/expr"
	"github.com/hugr-lab/exprcomp-go/function"
	"github.com/hugr-lab/exprcomp-go/internal/cache"
)

// VectorEvalFunc evaluates an expression over a whole batch, producing one
// datum (a column, or a scalar when the result is position-independent).
// The returned datum must be released by the caller.
type VectorEvalFunc func(mem memory.Allocator, batch arrow.RecordBatch) (function.Datum, error)

// errNoColumnarKernel marks an expression as columnar-ineligible: some
// function in the tree has no vectorized form.
var errNoColumnarKernel = errors.New("no columnar kernel")

// columnarFilterArtifact is a compiled vectorized filter shared by all
// evaluator instances produced for one expression.
type columnarFilterArtifact struct {
	vector VectorEvalFunc
	desc   string
}

// ColumnarFilterCompiler compiles filters into vectorized mask evaluators.
// A filter is eligible only when it is boolean-typed and every function in
// its tree carries a columnar kernel; everything else falls back to the
// row-wise strategy. Compiled artifacts are cached per expression shape.
type ColumnarFilterCompiler struct {
	fns       *function.Registry
	mem       memory.Allocator
	logger    *slog.Logger
	artifacts *cache.Loading[*columnarFilterArtifact]
}

// NewColumnarFilterCompiler creates a columnar filter compiler with a
// bounded artifact cache of the given capacity.
func NewColumnarFilterCompiler(fns *function.Registry, mem memory.Allocator, logger *slog.Logger, cacheSize int) (*ColumnarFilterCompiler, error) {
	artifacts, err := cache.NewLoading[*columnarFilterArtifact](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("columnar filter cache: %w", err)
	}
	return &ColumnarFilterCompiler{
		fns:       fns,
		mem:       mem,
		logger:    logger,
		artifacts: artifacts,
	}, nil
}

// Compile attempts to compile filter into a columnar evaluator factory.
// A false second return means the filter is not columnar-eligible; the
// caller then uses the row-wise fallback. Internal faults also report
// ineligible: the row-wise path is the universal strategy and must decide
// whether the expression compiles at all.
func (c *ColumnarFilterCompiler) Compile(filter expr.Expression) (FilterEvaluatorFactory, bool) {
	if filter.Type().ID() != arrow.BOOL {
		return nil, false
	}
	key, err := expr.Encode(filter)
	if err != nil {
		c.logger.Debug("columnar filter ineligible", "filter", filter.String(), "error", err)
		return nil, false
	}
	art, err := c.artifacts.Get(string(key), func() (*columnarFilterArtifact, error) {
		vector, err := c.compileVector(filter)
		if err != nil {
			return nil, err
		}
		return &columnarFilterArtifact{vector: vector, desc: filter.String()}, nil
	})
	if err != nil {
		if !errors.Is(err, errNoColumnarKernel) {
			c.logger.Debug("columnar filter compilation failed", "filter", filter.String(), "error", err)
		}
		return nil, false
	}
	mem := c.mem
	return func() FilterEvaluator {
		return &columnarFilterEvaluator{vector: art.vector, mem: mem, desc: art.desc}
	}, true
}

// CacheStats returns the artifact cache counters.
func (c *ColumnarFilterCompiler) CacheStats() cache.Stats { return c.artifacts.Stats() }

func (c *ColumnarFilterCompiler) compileVector(e expr.Expression) (VectorEvalFunc, error) {
	switch e := e.(type) {
	case *expr.Constant:
		d := function.Datum{Scalar: e.Value, Typ: e.Typ}
		return func(memory.Allocator, arrow.RecordBatch) (function.Datum, error) {
			return d, nil
		}, nil
	case *expr.InputRef:
		ch := e.Channel
		typ := e.Typ
		return func(_ memory.Allocator, b arrow.RecordBatch) (function.Datum, error) {
			if ch < 0 || ch >= int(b.NumCols()) {
				return function.Datum{}, fmt.Errorf("input channel %d out of range for batch with %d columns", ch, b.NumCols())
			}
			return function.Datum{Arr: b.Column(ch), Typ: typ}, nil
		}, nil
	case *expr.Call:
		def, err := c.fns.Resolve(e.Name, len(e.Args))
		if err != nil {
			return nil, err
		}
		if def.Columnar == nil {
			return nil, fmt.Errorf("function %s/%d: %w", e.Name, len(e.Args), errNoColumnarKernel)
		}
		args := make([]VectorEvalFunc, len(e.Args))
		for i, a := range e.Args {
			fn, err := c.compileVector(a)
			if err != nil {
				return nil, err
			}
			args[i] = fn
		}
		kernel := def.Columnar
		typ := e.Typ
		return func(mem memory.Allocator, b arrow.RecordBatch) (function.Datum, error) {
			argv := make([]function.Datum, len(args))
			defer func() {
				for _, d := range argv {
					d.Release()
				}
			}()
			for i, af := range args {
				d, err := af(mem, b)
				if err != nil {
					return function.Datum{}, err
				}
				argv[i] = d
			}
			arr, err := kernel(mem, int(b.NumRows()), argv)
			if err != nil {
				return function.Datum{}, err
			}
			return function.Datum{Arr: arr, Typ: typ, Owned: true}, nil
		}, nil
	default:
		return nil, fmt.Errorf("unknown expression node %T", e)
	}
}
