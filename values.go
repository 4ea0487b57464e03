package exprcomp

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// newValueBuilder creates an array builder for the value kinds this
// compiler evaluates to. Restricting the set here keeps appendValue total.
func newValueBuilder(mem memory.Allocator, typ arrow.DataType) (array.Builder, error) {
	switch typ.ID() {
	case arrow.INT64, arrow.FLOAT64, arrow.STRING, arrow.BOOL:
		return array.NewBuilder(mem, typ), nil
	default:
		return nil, fmt.Errorf("unsupported output type %s", typ)
	}
}

// appendValue appends one evaluated Go value to a builder; nil appends
// NULL. A kind mismatch between value and builder indicates an upstream
// typing defect and is reported as an error.
func appendValue(b array.Builder, v any) error {
	if v == nil {
		b.AppendNull()
		return nil
	}
	switch b := b.(type) {
	case *array.Int64Builder:
		i, ok := v.(int64)
		if !ok {
			return fmt.Errorf("expected int64 value, got %T", v)
		}
		b.Append(i)
	case *array.Float64Builder:
		f, ok := v.(float64)
		if !ok {
			return fmt.Errorf("expected float64 value, got %T", v)
		}
		b.Append(f)
	case *array.StringBuilder:
		s, ok := v.(string)
		if !ok {
			return fmt.Errorf("expected string value, got %T", v)
		}
		b.Append(s)
	case *array.BooleanBuilder:
		t, ok := v.(bool)
		if !ok {
			return fmt.Errorf("expected bool value, got %T", v)
		}
		b.Append(t)
	default:
		return fmt.Errorf("unsupported builder type %T", b)
	}
	return nil
}
