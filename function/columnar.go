package function

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// The columnar kernels below bind argument accessors once per batch and
// then run a tight loop over positions. Comparisons and boolean logic
// produce boolean arrays with validity; arithmetic produces typed arrays.

func compareColumnar(pred func(c int) bool) ColumnarFunc {
	return func(mem memory.Allocator, length int, args []Datum) (arrow.Array, error) {
		left, err := args[0].Getter()
		if err != nil {
			return nil, err
		}
		right, err := args[1].Getter()
		if err != nil {
			return nil, err
		}
		b := array.NewBooleanBuilder(mem)
		defer b.Release()
		b.Reserve(length)
		for i := 0; i < length; i++ {
			lv, rv := left(i), right(i)
			if lv == nil || rv == nil {
				b.AppendNull()
				continue
			}
			c, err := compare(lv, rv)
			if err != nil {
				return nil, err
			}
			b.Append(pred(c))
		}
		return b.NewArray(), nil
	}
}

// kleeneColumnar lifts a three-valued boolean combiner to whole columns.
func kleeneColumnar(combine func(a, b any) any) ColumnarFunc {
	return func(mem memory.Allocator, length int, args []Datum) (arrow.Array, error) {
		left, err := args[0].Getter()
		if err != nil {
			return nil, err
		}
		right, err := args[1].Getter()
		if err != nil {
			return nil, err
		}
		b := array.NewBooleanBuilder(mem)
		defer b.Release()
		b.Reserve(length)
		for i := 0; i < length; i++ {
			switch v := combine(left(i), right(i)); v {
			case nil:
				b.AppendNull()
			default:
				b.Append(v == true)
			}
		}
		return b.NewArray(), nil
	}
}

func notColumnar(mem memory.Allocator, length int, args []Datum) (arrow.Array, error) {
	get, err := args[0].Getter()
	if err != nil {
		return nil, err
	}
	b := array.NewBooleanBuilder(mem)
	defer b.Release()
	b.Reserve(length)
	for i := 0; i < length; i++ {
		v := get(i)
		if v == nil {
			b.AppendNull()
			continue
		}
		bv, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("not: expected bool, got %T", v)
		}
		b.Append(!bv)
	}
	return b.NewArray(), nil
}

func arithColumnar(name string, fi func(a, b int64) int64, ff func(a, b float64) float64) ColumnarFunc {
	return func(mem memory.Allocator, length int, args []Datum) (arrow.Array, error) {
		left, err := args[0].Getter()
		if err != nil {
			return nil, err
		}
		right, err := args[1].Getter()
		if err != nil {
			return nil, err
		}
		switch args[0].Typ.ID() {
		case arrow.INT64:
			b := array.NewInt64Builder(mem)
			defer b.Release()
			b.Reserve(length)
			for i := 0; i < length; i++ {
				lv, rv := left(i), right(i)
				if lv == nil || rv == nil {
					b.AppendNull()
					continue
				}
				b.Append(fi(lv.(int64), rv.(int64)))
			}
			return b.NewArray(), nil
		case arrow.FLOAT64:
			b := array.NewFloat64Builder(mem)
			defer b.Release()
			b.Reserve(length)
			for i := 0; i < length; i++ {
				lv, rv := left(i), right(i)
				if lv == nil || rv == nil {
					b.AppendNull()
					continue
				}
				b.Append(ff(lv.(float64), rv.(float64)))
			}
			return b.NewArray(), nil
		default:
			return nil, fmt.Errorf("%s: unsupported columnar argument type %s", name, args[0].Typ)
		}
	}
}
