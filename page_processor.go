package exprcomp

import (
	"fmt"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// Output batch sizing bounds. The processor adapts within [MinBatchSize,
// MaxBatchSize] based on observed output size: growing amortizes per-batch
// overhead on selective filters, shrinking bounds memory on wide rows.
const (
	MinBatchSize            = 64
	MaxBatchSize            = 8192
	DefaultInitialBatchSize = 1024

	// maxOutputBatchBytes is the materialized-size threshold above which
	// the next output batch shrinks.
	maxOutputBatchBytes = 4 << 20
)

// PageProcessorFactory produces one independent runtime instance per call.
// It may fail when a dynamic filter becomes uncompilable; static parts are
// compiled before the factory exists.
type PageProcessorFactory func() (*PageProcessor, error)

// PageProcessor filters and projects one batch at a time. Not thread-safe:
// at most one goroutine may drive an instance, for the lifetime of one
// execution task.
type PageProcessor struct {
	mem         memory.Allocator
	evaluator   FilterEvaluator
	projections []*PageProjection
	schema      *arrow.Schema
	batchSize   int
}

func newPageProcessor(mem memory.Allocator, evaluator FilterEvaluator, projections []*PageProjection, initialBatchSize int) *PageProcessor {
	if initialBatchSize <= 0 {
		initialBatchSize = DefaultInitialBatchSize
	}
	fields := make([]arrow.Field, len(projections))
	for i, p := range projections {
		fields[i] = arrow.Field{
			Name:     fmt.Sprintf("col%d", i),
			Type:     p.Type(),
			Nullable: true,
		}
	}
	return &PageProcessor{
		mem:         mem,
		evaluator:   evaluator,
		projections: projections,
		schema:      arrow.NewSchema(fields, nil),
		batchSize:   initialBatchSize,
	}
}

// Schema returns the output schema: one column per projection, in
// projection order.
func (p *PageProcessor) Schema() *arrow.Schema { return p.schema }

// BatchSize returns the current adaptive output batch size.
func (p *PageProcessor) BatchSize() int { return p.batchSize }

func (p *PageProcessor) String() string {
	descs := make([]string, len(p.projections))
	for i, proj := range p.projections {
		descs[i] = proj.Description()
	}
	return fmt.Sprintf("filter=%s projections=[%s]", p.evaluator.Description(), strings.Join(descs, ", "))
}

// Process filters and projects batch, returning a lazy, finite,
// non-restartable iterator over output batches. The input batch must stay
// retained until iteration finishes; each output batch is owned by the
// caller and must be released.
func (p *PageProcessor) Process(batch arrow.RecordBatch) *OutputPages {
	return &OutputPages{p: p, batch: batch}
}

// OutputPages iterates the output of one Process call. Filtering runs on
// the first Next; each subsequent Next materializes one output batch of at
// most the current adaptive batch size.
type OutputPages struct {
	p     *PageProcessor
	batch arrow.RecordBatch

	sel       Selection
	evaluated bool
	next      int

	rec arrow.RecordBatch
	err error
}

// Next materializes the next output batch, reporting whether one is
// available. After Next returns false, check Err.
func (it *OutputPages) Next() bool {
	if it.err != nil {
		return false
	}
	if it.rec != nil {
		it.rec.Release()
		it.rec = nil
	}
	ok, err := it.advance()
	if err != nil {
		it.err = err
		return false
	}
	return ok
}

func (it *OutputPages) advance() (ok bool, err error) {
	defer recoverToRuntimeError("process batch", &err)
	if !it.evaluated {
		sel, err := it.p.evaluator.EvaluateFilter(it.batch, AllRows(int(it.batch.NumRows())))
		if err != nil {
			return false, &RuntimeError{Op: "process batch", Err: err}
		}
		it.sel = sel
		it.evaluated = true
	}
	if it.next >= it.sel.Len() {
		return false, nil
	}
	n := it.p.batchSize
	if rem := it.sel.Len() - it.next; rem < n {
		n = rem
	}
	cols := make([]arrow.Array, len(it.p.projections))
	defer func() {
		for _, c := range cols {
			if c != nil {
				c.Release()
			}
		}
	}()
	for i, proj := range it.p.projections {
		arr, err := proj.Project(it.p.mem, it.batch, it.sel, it.next, it.next+n)
		if err != nil {
			return false, &RuntimeError{Op: "process batch", Err: err}
		}
		cols[i] = arr
	}
	it.rec = array.NewRecordBatch(it.p.schema, cols, int64(n))
	it.next += n
	it.p.adapt(n, materializedBytes(cols))
	return true, nil
}

// RecordBatch returns the current output batch. The iterator releases it
// on the following Next call; retain it to keep it longer.
func (it *OutputPages) RecordBatch() arrow.RecordBatch { return it.rec }

// Err returns the first failure encountered, if any.
func (it *OutputPages) Err() error { return it.err }

// Release drops the current output batch. Safe to call after iteration
// regardless of how it ended.
func (it *OutputPages) Release() {
	if it.rec != nil {
		it.rec.Release()
		it.rec = nil
	}
}

// adapt adjusts the output batch size from the last batch's observed
// materialized size.
func (p *PageProcessor) adapt(produced int, bytes int) {
	switch {
	case bytes > maxOutputBatchBytes:
		p.batchSize /= 2
		if p.batchSize < MinBatchSize {
			p.batchSize = MinBatchSize
		}
	case produced == p.batchSize:
		p.batchSize *= 2
		if p.batchSize > MaxBatchSize {
			p.batchSize = MaxBatchSize
		}
	}
}

// materializedBytes estimates the heap size of the produced columns from
// their backing buffers.
func materializedBytes(cols []arrow.Array) int {
	total := 0
	for _, c := range cols {
		if c == nil {
			continue
		}
		for _, buf := range c.Data().Buffers() {
			if buf != nil {
				total += buf.Len()
			}
		}
	}
	return total
}
