package exprcomp

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// Selection identifies the positions of a batch that passed filtering,
// either as an explicit position list or as the full range.
type Selection struct {
	all       bool
	length    int
	positions []int
}

// AllRows selects every position of a batch of n rows.
func AllRows(n int) Selection { return Selection{all: true, length: n} }

// SelectedRows selects the given positions, which must be strictly
// increasing.
func SelectedRows(positions []int) Selection { return Selection{positions: positions} }

// Len returns the number of selected positions.
func (s Selection) Len() int {
	if s.all {
		return s.length
	}
	return len(s.positions)
}

// Position returns the i-th selected batch position.
func (s Selection) Position(i int) int {
	if s.all {
		return i
	}
	return s.positions[i]
}

// FilterEvaluator is the single evaluation contract over the closed set of
// filter strategies: columnar (whole-batch mask), compiled row-wise, the
// lazily compiled dynamic filter, and pass-through. Implementations narrow
// sel to the positions of batch that pass.
type FilterEvaluator interface {
	EvaluateFilter(batch arrow.RecordBatch, sel Selection) (Selection, error)

	// Description renders the filter for diagnostics.
	Description() string
}

// allRowsEvaluator passes every position through. Used when a compilation
// has no static filter and no dynamic filter.
type allRowsEvaluator struct{}

func (allRowsEvaluator) EvaluateFilter(_ arrow.RecordBatch, sel Selection) (Selection, error) {
	return sel, nil
}

func (allRowsEvaluator) Description() string { return "true" }

// rowFilterEvaluator drives a compiled row-wise filter artifact over the
// selected positions, one boolean test per row.
type rowFilterEvaluator struct {
	art *Artifact
}

func (e *rowFilterEvaluator) EvaluateFilter(batch arrow.RecordBatch, sel Selection) (Selection, error) {
	eval, err := e.art.Batch(batch)
	if err != nil {
		return Selection{}, err
	}
	out := make([]int, 0, sel.Len())
	for i := 0; i < sel.Len(); i++ {
		pos := sel.Position(i)
		v, err := eval(pos)
		if err != nil {
			return Selection{}, err
		}
		if v == true {
			out = append(out, pos)
		}
	}
	return SelectedRows(out), nil
}

func (e *rowFilterEvaluator) Description() string { return e.art.Description }

// columnarFilterEvaluator computes a boolean mask over the whole batch in
// one pass and intersects it with the incoming selection. No per-row
// dispatch is involved; the mask comes from vectorized kernels.
type columnarFilterEvaluator struct {
	vector VectorEvalFunc
	mem    memory.Allocator
	desc   string
}

func (e *columnarFilterEvaluator) EvaluateFilter(batch arrow.RecordBatch, sel Selection) (Selection, error) {
	d, err := e.vector(e.mem, batch)
	if err != nil {
		return Selection{}, err
	}
	defer d.Release()
	if d.Arr == nil {
		// Constant-folded filter: all or nothing.
		if d.Scalar == true {
			return sel, nil
		}
		return SelectedRows(nil), nil
	}
	mask, ok := d.Arr.(*array.Boolean)
	if !ok {
		return Selection{}, fmt.Errorf("columnar filter produced %s, expected boolean", d.Arr.DataType())
	}
	out := make([]int, 0, sel.Len())
	for i := 0; i < sel.Len(); i++ {
		pos := sel.Position(i)
		if mask.IsValid(pos) && mask.Value(pos) {
			out = append(out, pos)
		}
	}
	return SelectedRows(out), nil
}

func (e *columnarFilterEvaluator) Description() string { return e.desc }

// conjunctionEvaluator chains two evaluators: a position survives only if
// both accept it. Used to AND the dynamic filter with whichever static
// evaluator is active.
type conjunctionEvaluator struct {
	left  FilterEvaluator
	right FilterEvaluator
}

func conjoin(left, right FilterEvaluator) FilterEvaluator {
	if left == nil {
		return right
	}
	if right == nil {
		return left
	}
	return &conjunctionEvaluator{left: left, right: right}
}

func (e *conjunctionEvaluator) EvaluateFilter(batch arrow.RecordBatch, sel Selection) (Selection, error) {
	sel, err := e.left.EvaluateFilter(batch, sel)
	if err != nil {
		return Selection{}, err
	}
	if sel.Len() == 0 {
		return sel, nil
	}
	return e.right.EvaluateFilter(batch, sel)
}

func (e *conjunctionEvaluator) Description() string {
	return fmt.Sprintf("(%s) AND (%s)", e.left.Description(), e.right.Description())
}

// FilterEvaluatorFactory produces one fresh evaluator instance per call.
type FilterEvaluatorFactory func() FilterEvaluator
