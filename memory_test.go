package exprcomp

import (
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/hugr-lab/exprcomp-go/expr"
	"github.com/hugr-lab/exprcomp-go/function"
)

// TestMemoryLeaks uses memory.NewCheckedAllocator to detect memory leaks.
// All Arrow arrays produced during filtering and projection must be
// released once the output pages are consumed.
func TestMemoryLeaks(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.DefaultAllocator)
	defer mem.AssertSize(t, 0)

	c, err := New(Config{Allocator: mem, Logger: testLogger()})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	int64Type := arrow.PrimitiveTypes.Int64

	for _, tc := range []struct {
		name     string
		columnar bool
	}{
		{"RowWisePages", false},
		{"ColumnarPages", true},
	} {
		t.Run(tc.name, func(t *testing.T) {
			factory, err := c.CompilePageProcessor(PageProcessorDef{
				ColumnarEnabled: tc.columnar,
				Filter:          cmpExpr(function.Gt, 0, 10),
				Projections:     []expr.Expression{int64Col(0), addExpr(int64Col(0), int64Lit(1))},
			})
			if err != nil {
				t.Fatalf("CompilePageProcessor failed: %v", err)
			}

			batch := buildBatch(t, mem, []arrow.DataType{int64Type}, [][]any{
				{int64(5)}, {int64(11)}, {nil}, {int64(20)},
			})
			defer batch.Release()

			p, err := factory()
			if err != nil {
				t.Fatalf("factory failed: %v", err)
			}
			pages := p.Process(batch)
			rows := 0
			for pages.Next() {
				rows += int(pages.RecordBatch().NumRows())
			}
			if err := pages.Err(); err != nil {
				t.Fatalf("Process failed: %v", err)
			}
			pages.Release()
			if rows != 2 {
				t.Errorf("rows = %d, want 2", rows)
			}
		})
	}

	t.Run("RuntimeError", func(t *testing.T) {
		// div by zero in the projection fails mid-batch; partial
		// output must still be released.
		factory, err := c.CompilePageProcessor(PageProcessorDef{
			Filter: cmpExpr(function.Gt, 0, 0),
			Projections: []expr.Expression{
				expr.NewCall(function.Div, arrow.PrimitiveTypes.Int64,
					int64Lit(100),
					expr.NewCall(function.Sub, arrow.PrimitiveTypes.Int64, int64Col(0), int64Lit(2)),
				),
			},
		})
		if err != nil {
			t.Fatalf("CompilePageProcessor failed: %v", err)
		}

		batch := buildBatch(t, mem, []arrow.DataType{int64Type}, [][]any{
			{int64(1)}, {int64(2)},
		})
		defer batch.Release()

		p, err := factory()
		if err != nil {
			t.Fatalf("factory failed: %v", err)
		}
		pages := p.Process(batch)
		for pages.Next() {
		}
		if pages.Err() == nil {
			t.Error("expected division by zero error")
		}
		pages.Release()
	})
}
