package exprcomp

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/google/uuid"

	"github.com/hugr-lab/exprcomp-go/expr"
	"github.com/hugr-lab/exprcomp-go/function"
)

// Capability identifies the kind of executable artifact requested from a
// Generator.
type Capability int

const (
	CapabilityRowFilter Capability = iota
	CapabilityRowProjection
	CapabilityBatchFilter
	CapabilityBatchProjection
)

func (c Capability) String() string {
	switch c {
	case CapabilityRowFilter:
		return "row_filter"
	case CapabilityRowProjection:
		return "row_projection"
	case CapabilityBatchFilter:
		return "batch_filter"
	case CapabilityBatchProjection:
		return "batch_projection"
	default:
		return fmt.Sprintf("capability(%d)", int(c))
	}
}

// Row provides positioned access to the current row's input channels.
// A nil value is NULL.
type Row interface {
	Datum(channel int) any
}

// RowBuilder receives projected output values for one row, one call per
// output channel, in channel order.
type RowBuilder interface {
	Append(channel int, v any) error
}

// RowEvalFunc evaluates an expression against one row.
type RowEvalFunc func(row Row) (any, error)

// PositionEvalFunc evaluates an expression at one position of the batch it
// was bound to.
type PositionEvalFunc func(pos int) (any, error)

// BatchEvalFunc binds an expression evaluator to one batch, resolving
// column accessors once, and returns the positional evaluator. The bound
// evaluator is only valid while the batch is retained.
type BatchEvalFunc func(batch arrow.RecordBatch) (PositionEvalFunc, error)

// Artifact is one loadable executable unit produced by a Generator.
// Row is populated for the row capabilities, Batch for the batch
// capabilities. Artifacts are immutable and safe to share across threads.
type Artifact struct {
	// Name uniquely identifies this generated unit, for diagnostics.
	Name string

	// Description is the textual rendering of the source expression.
	Description string

	// ResultType is the Arrow type the evaluator produces.
	ResultType arrow.DataType

	Row   RowEvalFunc
	Batch BatchEvalFunc
}

// Generator is the code-generation backend contract: it turns an
// expression tree plus a target capability into an executable artifact.
// Generation is deterministic for identical inputs (artifact names aside)
// and fails for constructs the backend does not support.
type Generator interface {
	Generate(e expr.Expression, c Capability) (*Artifact, error)
}

// closureGenerator is the default backend. It compiles a tree, once, into
// a graph of specialized Go closures: function handles are resolved and
// type dispatch performed at generation time, so evaluating a row never
// walks the tree.
type closureGenerator struct {
	fns *function.Registry
}

// NewClosureGenerator creates the default code-generation backend,
// resolving call nodes against fns.
func NewClosureGenerator(fns *function.Registry) Generator {
	return &closureGenerator{fns: fns}
}

func (g *closureGenerator) Generate(e expr.Expression, c Capability) (*Artifact, error) {
	if c == CapabilityRowFilter || c == CapabilityBatchFilter {
		if e.Type().ID() != arrow.BOOL {
			return nil, fmt.Errorf("filter must be boolean, got %s", e.Type())
		}
	}
	art := &Artifact{
		Name:        fmt.Sprintf("%s_%s", c, uuid.NewString()[:8]),
		Description: e.String(),
		ResultType:  e.Type(),
	}
	switch c {
	case CapabilityRowFilter, CapabilityRowProjection:
		fn, err := g.compileRow(e)
		if err != nil {
			return nil, err
		}
		art.Row = fn
	case CapabilityBatchFilter, CapabilityBatchProjection:
		fn, err := g.compileBatch(e)
		if err != nil {
			return nil, err
		}
		art.Batch = fn
	default:
		return nil, fmt.Errorf("unknown capability %s", c)
	}
	return art, nil
}

func (g *closureGenerator) compileRow(e expr.Expression) (RowEvalFunc, error) {
	switch e := e.(type) {
	case *expr.Constant:
		v := e.Value
		return func(Row) (any, error) { return v, nil }, nil
	case *expr.InputRef:
		if e.Channel < 0 {
			return nil, fmt.Errorf("negative input channel %d", e.Channel)
		}
		ch := e.Channel
		return func(r Row) (any, error) { return r.Datum(ch), nil }, nil
	case *expr.Call:
		args := make([]RowEvalFunc, len(e.Args))
		for i, a := range e.Args {
			fn, err := g.compileRow(a)
			if err != nil {
				return nil, err
			}
			args[i] = fn
		}
		// AND and OR short-circuit: the right operand is skipped when the
		// left already decides the result, so a faulting right arm behind
		// a guarding left arm never evaluates.
		switch {
		case e.Name == function.And && len(args) == 2:
			return func(r Row) (any, error) {
				l, err := args[0](r)
				if err != nil {
					return nil, err
				}
				return andLazy(l, func() (any, error) { return args[1](r) })
			}, nil
		case e.Name == function.Or && len(args) == 2:
			return func(r Row) (any, error) {
				l, err := args[0](r)
				if err != nil {
					return nil, err
				}
				return orLazy(l, func() (any, error) { return args[1](r) })
			}, nil
		}
		def, err := g.fns.Resolve(e.Name, len(e.Args))
		if err != nil {
			return nil, err
		}
		fn := def.Row
		return func(r Row) (any, error) {
			vals := make([]any, len(args))
			for i, af := range args {
				v, err := af(r)
				if err != nil {
					return nil, err
				}
				vals[i] = v
			}
			return fn(vals)
		}, nil
	default:
		return nil, fmt.Errorf("unknown expression node %T", e)
	}
}

func (g *closureGenerator) compileBatch(e expr.Expression) (BatchEvalFunc, error) {
	switch e := e.(type) {
	case *expr.Constant:
		v := e.Value
		return func(arrow.RecordBatch) (PositionEvalFunc, error) {
			return func(int) (any, error) { return v, nil }, nil
		}, nil
	case *expr.InputRef:
		if e.Channel < 0 {
			return nil, fmt.Errorf("negative input channel %d", e.Channel)
		}
		ch := e.Channel
		return func(b arrow.RecordBatch) (PositionEvalFunc, error) {
			if ch >= int(b.NumCols()) {
				return nil, fmt.Errorf("input channel %d out of range for batch with %d columns", ch, b.NumCols())
			}
			get, err := function.ColumnGetter(b.Column(ch))
			if err != nil {
				return nil, err
			}
			return func(pos int) (any, error) { return get(pos), nil }, nil
		}, nil
	case *expr.Call:
		args := make([]BatchEvalFunc, len(e.Args))
		for i, a := range e.Args {
			fn, err := g.compileBatch(a)
			if err != nil {
				return nil, err
			}
			args[i] = fn
		}
		switch {
		case e.Name == function.And && len(args) == 2:
			return bindLogical(args[0], args[1], andLazy), nil
		case e.Name == function.Or && len(args) == 2:
			return bindLogical(args[0], args[1], orLazy), nil
		}
		def, err := g.fns.Resolve(e.Name, len(e.Args))
		if err != nil {
			return nil, err
		}
		fn := def.Row
		return func(b arrow.RecordBatch) (PositionEvalFunc, error) {
			bound := make([]PositionEvalFunc, len(args))
			for i, af := range args {
				pf, err := af(b)
				if err != nil {
					return nil, err
				}
				bound[i] = pf
			}
			return func(pos int) (any, error) {
				vals := make([]any, len(bound))
				for i, pf := range bound {
					v, err := pf(pos)
					if err != nil {
						return nil, err
					}
					vals[i] = v
				}
				return fn(vals)
			}, nil
		}, nil
	default:
		return nil, fmt.Errorf("unknown expression node %T", e)
	}
}

func bindLogical(left, right BatchEvalFunc, combine func(l any, evalRight func() (any, error)) (any, error)) BatchEvalFunc {
	return func(b arrow.RecordBatch) (PositionEvalFunc, error) {
		lf, err := left(b)
		if err != nil {
			return nil, err
		}
		rf, err := right(b)
		if err != nil {
			return nil, err
		}
		return func(pos int) (any, error) {
			l, err := lf(pos)
			if err != nil {
				return nil, err
			}
			return combine(l, func() (any, error) { return rf(pos) })
		}, nil
	}
}

// andLazy combines a left operand with a lazily evaluated right operand
// under three-valued AND.
func andLazy(l any, evalRight func() (any, error)) (any, error) {
	if l == false {
		return false, nil
	}
	r, err := evalRight()
	if err != nil {
		return nil, err
	}
	if r == false {
		return false, nil
	}
	if l == nil || r == nil {
		return nil, nil
	}
	return true, nil
}

func orLazy(l any, evalRight func() (any, error)) (any, error) {
	if l == true {
		return true, nil
	}
	r, err := evalRight()
	if err != nil {
		return nil, err
	}
	if r == true {
		return true, nil
	}
	if l == nil || r == nil {
		return nil, nil
	}
	return false, nil
}
