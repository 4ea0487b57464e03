package function

import (
	"strings"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// TestResolve tests registry lookup by handle and argument count.
func TestResolve(t *testing.T) {
	r := NewRegistry()

	def, err := r.Resolve(Gt, 2)
	if err != nil {
		t.Fatalf("Resolve(gt/2) failed: %v", err)
	}
	if def.Columnar == nil {
		t.Error("expected gt to carry a columnar kernel")
	}

	if _, err := r.Resolve("nope", 2); err == nil {
		t.Error("expected error for unknown function")
	}
	if _, err := r.Resolve(Gt, 3); err == nil {
		t.Error("expected error for wrong arity")
	}
}

// TestRegisterDuplicate tests that re-registering a handle fails.
func TestRegisterDuplicate(t *testing.T) {
	r := NewRegistry()
	err := r.Register(&Definition{Name: Gt, Arity: 2, Row: func([]any) (any, error) { return nil, nil }})
	if err == nil {
		t.Error("expected duplicate registration error")
	}
}

// TestComparisonRow tests row-form comparison semantics including NULL
// strictness.
func TestComparisonRow(t *testing.T) {
	r := NewRegistry()
	gt, _ := r.Resolve(Gt, 2)

	cases := []struct {
		a, b any
		want any
	}{
		{int64(11), int64(10), true},
		{int64(10), int64(10), false},
		{float64(1.5), float64(2.5), false},
		{"b", "a", true},
		{nil, int64(10), nil},
		{int64(10), nil, nil},
	}
	for _, tc := range cases {
		got, err := gt.Row([]any{tc.a, tc.b})
		if err != nil {
			t.Fatalf("gt(%v, %v) failed: %v", tc.a, tc.b, err)
		}
		if got != tc.want {
			t.Errorf("gt(%v, %v) = %v, want %v", tc.a, tc.b, got, tc.want)
		}
	}

	if _, err := gt.Row([]any{int64(1), "a"}); err == nil {
		t.Error("expected error comparing mismatched types")
	}
}

// TestKleeneLogic tests three-valued AND/OR/NOT.
func TestKleeneLogic(t *testing.T) {
	r := NewRegistry()
	and, _ := r.Resolve(And, 2)
	or, _ := r.Resolve(Or, 2)
	not, _ := r.Resolve(Not, 1)

	check := func(name string, fn RowFunc, args []any, want any) {
		t.Helper()
		got, err := fn(args)
		if err != nil {
			t.Fatalf("%s(%v) failed: %v", name, args, err)
		}
		if got != want {
			t.Errorf("%s(%v) = %v, want %v", name, args, got, want)
		}
	}

	check("and", and.Row, []any{true, true}, true)
	check("and", and.Row, []any{true, nil}, nil)
	check("and", and.Row, []any{false, nil}, false)
	check("and", and.Row, []any{nil, false}, false)
	check("or", or.Row, []any{false, false}, false)
	check("or", or.Row, []any{nil, true}, true)
	check("or", or.Row, []any{nil, false}, nil)
	check("not", not.Row, []any{true}, false)
	check("not", not.Row, []any{nil}, nil)
}

// TestArithmeticRow tests arithmetic including the division-by-zero
// fault.
func TestArithmeticRow(t *testing.T) {
	r := NewRegistry()
	add, _ := r.Resolve(Add, 2)
	div, _ := r.Resolve(Div, 2)

	got, err := add.Row([]any{int64(11), int64(2)})
	if err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if got != int64(13) {
		t.Errorf("add(11, 2) = %v, want 13", got)
	}

	got, err = add.Row([]any{nil, int64(2)})
	if err != nil || got != nil {
		t.Errorf("add(null, 2) = (%v, %v), want (nil, nil)", got, err)
	}

	if _, err := div.Row([]any{int64(1), int64(0)}); err == nil {
		t.Error("expected division by zero error")
	} else if !strings.Contains(err.Error(), "division by zero") {
		t.Errorf("unexpected error: %v", err)
	}

	if div.Columnar != nil {
		t.Error("div must not have a columnar kernel")
	}
}

func int64Column(t *testing.T, mem memory.Allocator, values []any) arrow.Array {
	t.Helper()
	b := array.NewInt64Builder(mem)
	defer b.Release()
	for _, v := range values {
		if v == nil {
			b.AppendNull()
			continue
		}
		b.Append(v.(int64))
	}
	return b.NewArray()
}

// TestColumnGetter tests the typed positional accessor.
func TestColumnGetter(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.DefaultAllocator)
	defer mem.AssertSize(t, 0)

	arr := int64Column(t, mem, []any{int64(1), nil, int64(3)})
	defer arr.Release()

	get, err := ColumnGetter(arr)
	if err != nil {
		t.Fatalf("ColumnGetter failed: %v", err)
	}
	if got := get(0); got != int64(1) {
		t.Errorf("get(0) = %v, want 1", got)
	}
	if got := get(1); got != nil {
		t.Errorf("get(1) = %v, want nil", got)
	}
	if got := get(2); got != int64(3) {
		t.Errorf("get(2) = %v, want 3", got)
	}
}

// TestComparisonColumnar tests the vectorized comparison kernel against an
// array/scalar argument pair with NULLs.
func TestComparisonColumnar(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.DefaultAllocator)
	defer mem.AssertSize(t, 0)

	r := NewRegistry()
	gt, _ := r.Resolve(Gt, 2)

	col := int64Column(t, mem, []any{int64(5), int64(11), nil, int64(20)})
	defer col.Release()

	out, err := gt.Columnar(mem, 4, []Datum{
		{Arr: col, Typ: arrow.PrimitiveTypes.Int64},
		{Scalar: int64(10), Typ: arrow.PrimitiveTypes.Int64},
	})
	if err != nil {
		t.Fatalf("columnar gt failed: %v", err)
	}
	defer out.Release()

	mask := out.(*array.Boolean)
	want := []struct {
		valid bool
		value bool
	}{
		{true, false},
		{true, true},
		{false, false},
		{true, true},
	}
	for i, w := range want {
		if mask.IsValid(i) != w.valid {
			t.Errorf("position %d: validity = %v, want %v", i, mask.IsValid(i), w.valid)
			continue
		}
		if w.valid && mask.Value(i) != w.value {
			t.Errorf("position %d: value = %v, want %v", i, mask.Value(i), w.value)
		}
	}
}

// TestArithmeticColumnar tests the vectorized add kernel.
func TestArithmeticColumnar(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.DefaultAllocator)
	defer mem.AssertSize(t, 0)

	r := NewRegistry()
	add, _ := r.Resolve(Add, 2)

	left := int64Column(t, mem, []any{int64(1), nil, int64(3)})
	defer left.Release()
	right := int64Column(t, mem, []any{int64(10), int64(20), int64(30)})
	defer right.Release()

	out, err := add.Columnar(mem, 3, []Datum{
		{Arr: left, Typ: arrow.PrimitiveTypes.Int64},
		{Arr: right, Typ: arrow.PrimitiveTypes.Int64},
	})
	if err != nil {
		t.Fatalf("columnar add failed: %v", err)
	}
	defer out.Release()

	sums := out.(*array.Int64)
	if sums.Value(0) != 11 || sums.Value(2) != 33 {
		t.Errorf("unexpected sums: %v", sums)
	}
	if sums.IsValid(1) {
		t.Error("expected NULL at position 1")
	}
}

// TestDatumGetterScalar tests scalar broadcast.
func TestDatumGetterScalar(t *testing.T) {
	get, err := Datum{Scalar: int64(7), Typ: arrow.PrimitiveTypes.Int64}.Getter()
	if err != nil {
		t.Fatalf("Getter failed: %v", err)
	}
	if get(0) != int64(7) || get(100) != int64(7) {
		t.Error("scalar getter did not broadcast")
	}
}
