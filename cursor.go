package exprcomp

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/google/uuid"

	"github.com/hugr-lab/exprcomp-go/expr"
	"github.com/hugr-lab/exprcomp-go/function"
)

// CursorProcessorCompiler compiles a filter plus projections into one
// monolithic row-at-a-time artifact: test the row, then project it.
type CursorProcessorCompiler struct {
	gen    Generator
	logger *slog.Logger
}

// NewCursorProcessorCompiler creates a cursor processor compiler backed by
// the given generator.
func NewCursorProcessorCompiler(gen Generator, logger *slog.Logger) *CursorProcessorCompiler {
	return &CursorProcessorCompiler{gen: gen, logger: logger}
}

// Compile generates the combined artifact. The filter must be non-nil;
// callers substitute constant true when no filter applies, so every
// artifact keeps the uniform two-phase shape.
func (c *CursorProcessorCompiler) Compile(filter expr.Expression, projections []expr.Expression) (*CursorProcessorArtifact, error) {
	filterArt, err := c.gen.Generate(filter, CapabilityRowFilter)
	if err != nil {
		return nil, compilationError("filter", filter.String(), err)
	}
	projFns := make([]RowEvalFunc, len(projections))
	projDescs := make([]string, len(projections))
	for i, p := range projections {
		art, err := c.gen.Generate(p, CapabilityRowProjection)
		if err != nil {
			return nil, compilationError("projection", p.String(), err)
		}
		projFns[i] = art.Row
		projDescs[i] = art.Description
	}
	art := &CursorProcessorArtifact{
		name:        "cursor_processor_" + uuid.NewString()[:8],
		filter:      filterArt.Row,
		projections: projFns,
		desc:        fmt.Sprintf("filter=%s projections=[%s]", filterArt.Description, strings.Join(projDescs, ", ")),
	}
	c.logger.Debug("compiled cursor processor", "artifact", art.name, "description", art.desc)
	return art, nil
}

// CursorProcessorArtifact is a compiled cursor-processor unit. It is
// immutable and shared by every runtime instance produced from it.
type CursorProcessorArtifact struct {
	name        string
	filter      RowEvalFunc
	projections []RowEvalFunc
	desc        string
}

// Name returns the unique artifact name.
func (a *CursorProcessorArtifact) Name() string { return a.name }

// Description renders the artifact's filter and projections for
// diagnostics.
func (a *CursorProcessorArtifact) Description() string { return a.desc }

// NewCursorProcessor produces a fresh runtime instance. Instances are not
// thread-safe and are intended for one pipeline task each.
func (a *CursorProcessorArtifact) NewCursorProcessor() *CursorProcessor {
	return &CursorProcessor{art: a}
}

// CursorProcessorFactory produces one independent runtime instance per
// call. Factories are immutable and safe to invoke concurrently.
type CursorProcessorFactory func() *CursorProcessor

// CursorProcessor filters and projects one row at a time. Not thread-safe:
// at most one goroutine may drive an instance, for the lifetime of one
// execution task.
type CursorProcessor struct {
	art           *CursorProcessorArtifact
	rowsProcessed int64
	rowsProduced  int64
}

// ProcessRow evaluates the filter for the row under cursor and, when it
// passes, appends every projected value to out in channel order. Reports
// whether a row was produced.
func (p *CursorProcessor) ProcessRow(row Row, out RowBuilder) (produced bool, err error) {
	defer recoverToRuntimeError("process row", &err)
	p.rowsProcessed++
	v, err := p.art.filter(row)
	if err != nil {
		return false, &RuntimeError{Op: "process row", Err: err}
	}
	if v != true {
		return false, nil
	}
	for i, proj := range p.art.projections {
		v, err := proj(row)
		if err != nil {
			return false, &RuntimeError{Op: "process row", Err: err}
		}
		if err := out.Append(i, v); err != nil {
			return false, &RuntimeError{Op: "process row", Err: err}
		}
	}
	p.rowsProduced++
	return true, nil
}

// RowsProcessed returns the number of rows this instance has examined.
func (p *CursorProcessor) RowsProcessed() int64 { return p.rowsProcessed }

// RowsProduced returns the number of rows this instance has emitted.
func (p *CursorProcessor) RowsProduced() int64 { return p.rowsProduced }

func (p *CursorProcessor) String() string { return p.art.desc }

// RecordCursor adapts an Arrow batch to the Row interface with an explicit
// position. Column accessors are resolved once at construction.
type RecordCursor struct {
	getters []func(i int) any
	rows    int
	pos     int
}

// NewRecordCursor creates a cursor positioned before the first row of
// batch. The batch must stay retained while the cursor is in use.
func NewRecordCursor(batch arrow.RecordBatch) (*RecordCursor, error) {
	getters := make([]func(i int) any, batch.NumCols())
	for i := range getters {
		get, err := function.ColumnGetter(batch.Column(i))
		if err != nil {
			return nil, fmt.Errorf("column %d: %w", i, err)
		}
		getters[i] = get
	}
	return &RecordCursor{getters: getters, rows: int(batch.NumRows()), pos: -1}, nil
}

// Next advances to the next row, reporting whether one exists.
func (c *RecordCursor) Next() bool {
	if c.pos+1 >= c.rows {
		return false
	}
	c.pos++
	return true
}

// Datum returns the current row's value for the given channel.
func (c *RecordCursor) Datum(channel int) any { return c.getters[channel](c.pos) }

// RecordRowBuilder adapts an array.RecordBuilder to the RowBuilder
// contract, appending projected values field by field.
type RecordRowBuilder struct {
	b *array.RecordBuilder
}

// NewRecordRowBuilder wraps b. The builder's schema must match the
// projection output types, field i per projection i.
func NewRecordRowBuilder(b *array.RecordBuilder) *RecordRowBuilder {
	return &RecordRowBuilder{b: b}
}

// Append appends v to output field channel.
func (r *RecordRowBuilder) Append(channel int, v any) error {
	return appendValue(r.b.Field(channel), v)
}
