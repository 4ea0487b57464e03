// Package exprcomp compiles scalar filter and projection expressions into
// reusable processors for an Arrow batch execution pipeline.
//
// The exprcomp package turns planner-produced expression trees into
// executable artifacts ahead of time instead of interpreting them row by
// row:
//   - Compiling a filter plus projections into cursor processors (one row
//     at a time) or page processors (one arrow.RecordBatch at a time)
//   - Memoizing cursor-processor compilation structurally, so equal plans
//     share one compiled artifact
//   - Arbitrating between a vectorized (columnar) filter strategy and a
//     compiled row-wise fallback
//   - ANDing in a dynamic filter supplied while the query runs
//
// # Quick Start
//
// Compile and run a page processor for "col0 > 10 → [col1]":
//
//	package main
//
//	import (
//	    "log"
//
//	    "github.com/apache/arrow-go/v18/arrow"
//
//	    exprcomp "github.com/hugr-lab/exprcomp-go"
//	    "github.com/hugr-lab/exprcomp-go/expr"
//	    "github.com/hugr-lab/exprcomp-go/function"
//	)
//
//	func main() {
//	    compiler, err := exprcomp.New(exprcomp.Config{})
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//
//	    int64Type := arrow.PrimitiveTypes.Int64
//	    filter := expr.NewCall(function.Gt, arrow.FixedWidthTypes.Boolean,
//	        expr.NewInputRef(0, int64Type),
//	        expr.NewConstant(int64(10), int64Type),
//	    )
//
//	    factory, err := compiler.CompilePageProcessor(exprcomp.PageProcessorDef{
//	        ColumnarEnabled: true,
//	        Filter:          filter,
//	        Projections:     []expr.Expression{expr.NewInputRef(1, int64Type)},
//	    })
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//
//	    processor, err := factory() // one instance per pipeline task
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    it := processor.Process(batch)
//	    for it.Next() {
//	        out := it.RecordBatch()
//	        // consume out; the iterator releases it on the next call
//	    }
//	    if err := it.Err(); err != nil {
//	        log.Fatal(err)
//	    }
//	}
//
// # Compilation vs. execution
//
// CompileCursorProcessor and CompilePageProcessor are blocking, safe for
// concurrent use, and return factories. Factories are immutable and may be
// invoked from any goroutine; every invocation yields an independent
// runtime instance. Runtime instances hold per-execution state and are NOT
// goroutine-safe: drive each from exactly one pipeline task, then discard
// it.
//
// # Caching
//
// Cursor-processor compilation is memoized by a bounded LRU keyed on the
// structural shape of filter and projections plus a caller-supplied
// disambiguator; concurrent first requests for one key compile exactly
// once. Page-processor compilation is deliberately not memoized at the top
// level: its sub-artifacts (the filter and each projection) are cached at
// their own granularity inside the strategy compilers. Failures are never
// cached.
//
// # Custom functions
//
// Call nodes resolve against a function.Registry. Register a Definition
// with a row implementation, and optionally a columnar kernel to keep
// filters using it eligible for the vectorized strategy.
package exprcomp
