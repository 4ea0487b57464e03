package exprcomp

import (
	"io"
	"log/slog"
	"sync/atomic"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/hugr-lab/exprcomp-go/expr"
	"github.com/hugr-lab/exprcomp-go/function"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// buildBatch creates a record batch from row-major test data. A nil cell
// is NULL.
func buildBatch(t *testing.T, mem memory.Allocator, types []arrow.DataType, rows [][]any) arrow.RecordBatch {
	t.Helper()
	fields := make([]arrow.Field, len(types))
	for i, typ := range types {
		fields[i] = arrow.Field{Name: "c" + string(rune('0'+i)), Type: typ, Nullable: true}
	}
	schema := arrow.NewSchema(fields, nil)
	b := array.NewRecordBuilder(mem, schema)
	defer b.Release()
	for _, row := range rows {
		for i, v := range row {
			if err := appendValue(b.Field(i), v); err != nil {
				t.Fatalf("append value %v to column %d: %v", v, i, err)
			}
		}
	}
	return b.NewRecordBatch()
}

// collectColumn drains one output column of every batch the iterator
// yields into a flat slice.
func collectColumn(t *testing.T, it *OutputPages, col int) []any {
	t.Helper()
	var out []any
	for it.Next() {
		rec := it.RecordBatch()
		get, err := function.ColumnGetter(rec.Column(col))
		if err != nil {
			t.Fatalf("ColumnGetter failed: %v", err)
		}
		for i := 0; i < int(rec.NumRows()); i++ {
			out = append(out, get(i))
		}
	}
	if err := it.Err(); err != nil {
		t.Fatalf("iteration failed: %v", err)
	}
	return out
}

func int64Col(ch int) expr.Expression {
	return expr.NewInputRef(ch, arrow.PrimitiveTypes.Int64)
}

func int64Lit(v int64) expr.Expression {
	return expr.NewConstant(v, arrow.PrimitiveTypes.Int64)
}

func cmpExpr(fn string, ch int, v int64) expr.Expression {
	return expr.NewCall(fn, arrow.FixedWidthTypes.Boolean, int64Col(ch), int64Lit(v))
}

func addExpr(a, b expr.Expression) expr.Expression {
	return expr.NewCall(function.Add, arrow.PrimitiveTypes.Int64, a, b)
}

// countingGenerator instruments the underlying generator so tests can
// observe how many compilations actually ran.
type countingGenerator struct {
	inner Generator
	calls atomic.Int64
}

func (g *countingGenerator) Generate(e expr.Expression, c Capability) (*Artifact, error) {
	g.calls.Add(1)
	return g.inner.Generate(e, c)
}

// fixedDynamicFilter returns the same predicate on every Current call.
type fixedDynamicFilter struct {
	e expr.Expression
}

func (f fixedDynamicFilter) Current() expr.Expression { return f.e }
