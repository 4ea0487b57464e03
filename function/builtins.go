package function

import "fmt"

// Builtin function handles. Upstream planners reference these names in
// Call nodes.
const (
	Eq = "eq"
	Ne = "ne"
	Lt = "lt"
	Le = "le"
	Gt = "gt"
	Ge = "ge"

	And = "and"
	Or  = "or"
	Not = "not"

	Add = "add"
	Sub = "sub"
	Mul = "mul"
	Div = "div"
	Neg = "neg"
)

func registerBuiltins(r *Registry) {
	cmp := func(name string, pred func(c int) bool) {
		r.mustRegister(&Definition{
			Name:     name,
			Arity:    2,
			Row:      compareRow(pred),
			Columnar: compareColumnar(pred),
		})
	}
	cmp(Eq, func(c int) bool { return c == 0 })
	cmp(Ne, func(c int) bool { return c != 0 })
	cmp(Lt, func(c int) bool { return c < 0 })
	cmp(Le, func(c int) bool { return c <= 0 })
	cmp(Gt, func(c int) bool { return c > 0 })
	cmp(Ge, func(c int) bool { return c >= 0 })

	r.mustRegister(&Definition{Name: And, Arity: 2, Row: andRow, Columnar: kleeneColumnar(andKleene)})
	r.mustRegister(&Definition{Name: Or, Arity: 2, Row: orRow, Columnar: kleeneColumnar(orKleene)})
	r.mustRegister(&Definition{Name: Not, Arity: 1, Row: notRow, Columnar: notColumnar})

	arith := func(name string, i func(a, b int64) int64, f func(a, b float64) float64) {
		r.mustRegister(&Definition{
			Name:     name,
			Arity:    2,
			Row:      arithRow(name, i, f),
			Columnar: arithColumnar(name, i, f),
		})
	}
	arith(Add, func(a, b int64) int64 { return a + b }, func(a, b float64) float64 { return a + b })
	arith(Sub, func(a, b int64) int64 { return a - b }, func(a, b float64) float64 { return a - b })
	arith(Mul, func(a, b int64) int64 { return a * b }, func(a, b float64) float64 { return a * b })

	// div has no columnar form: the per-element zero check makes it the
	// canonical row-only fallback case.
	r.mustRegister(&Definition{Name: Div, Arity: 2, Row: divRow})

	r.mustRegister(&Definition{Name: Neg, Arity: 1, Row: negRow})
}

// compare orders two non-nil values of the same kind. bool orders false
// before true so eq/ne work uniformly.
func compare(a, b any) (int, error) {
	switch a := a.(type) {
	case int64:
		b, ok := b.(int64)
		if !ok {
			break
		}
		switch {
		case a < b:
			return -1, nil
		case a > b:
			return 1, nil
		}
		return 0, nil
	case float64:
		b, ok := b.(float64)
		if !ok {
			break
		}
		switch {
		case a < b:
			return -1, nil
		case a > b:
			return 1, nil
		}
		return 0, nil
	case string:
		b, ok := b.(string)
		if !ok {
			break
		}
		switch {
		case a < b:
			return -1, nil
		case a > b:
			return 1, nil
		}
		return 0, nil
	case bool:
		b, ok := b.(bool)
		if !ok {
			break
		}
		switch {
		case !a && b:
			return -1, nil
		case a && !b:
			return 1, nil
		}
		return 0, nil
	}
	return 0, fmt.Errorf("cannot compare %T and %T", a, b)
}

// compareRow builds the NULL-strict row form of a comparison: any NULL
// argument yields NULL.
func compareRow(pred func(c int) bool) RowFunc {
	return func(args []any) (any, error) {
		a, b := args[0], args[1]
		if a == nil || b == nil {
			return nil, nil
		}
		c, err := compare(a, b)
		if err != nil {
			return nil, err
		}
		return pred(c), nil
	}
}

// andKleene implements three-valued AND over *bool-style operands
// represented as any (nil = unknown).
func andKleene(a, b any) any {
	if a == false || b == false {
		return false
	}
	if a == nil || b == nil {
		return nil
	}
	return true
}

func orKleene(a, b any) any {
	if a == true || b == true {
		return true
	}
	if a == nil || b == nil {
		return nil
	}
	return false
}

func andRow(args []any) (any, error) { return andKleene(args[0], args[1]), nil }

func orRow(args []any) (any, error) { return orKleene(args[0], args[1]), nil }

func notRow(args []any) (any, error) {
	if args[0] == nil {
		return nil, nil
	}
	v, ok := args[0].(bool)
	if !ok {
		return nil, fmt.Errorf("not: expected bool, got %T", args[0])
	}
	return !v, nil
}

func arithRow(name string, i func(a, b int64) int64, f func(a, b float64) float64) RowFunc {
	return func(args []any) (any, error) {
		if args[0] == nil || args[1] == nil {
			return nil, nil
		}
		switch a := args[0].(type) {
		case int64:
			b, ok := args[1].(int64)
			if !ok {
				return nil, fmt.Errorf("%s: mismatched argument types %T and %T", name, args[0], args[1])
			}
			return i(a, b), nil
		case float64:
			b, ok := args[1].(float64)
			if !ok {
				return nil, fmt.Errorf("%s: mismatched argument types %T and %T", name, args[0], args[1])
			}
			return f(a, b), nil
		default:
			return nil, fmt.Errorf("%s: unsupported argument type %T", name, args[0])
		}
	}
}

func divRow(args []any) (any, error) {
	if args[0] == nil || args[1] == nil {
		return nil, nil
	}
	switch a := args[0].(type) {
	case int64:
		b, ok := args[1].(int64)
		if !ok {
			return nil, fmt.Errorf("div: mismatched argument types %T and %T", args[0], args[1])
		}
		if b == 0 {
			return nil, fmt.Errorf("division by zero")
		}
		return a / b, nil
	case float64:
		b, ok := args[1].(float64)
		if !ok {
			return nil, fmt.Errorf("div: mismatched argument types %T and %T", args[0], args[1])
		}
		if b == 0 {
			return nil, fmt.Errorf("division by zero")
		}
		return a / b, nil
	default:
		return nil, fmt.Errorf("div: unsupported argument type %T", args[0])
	}
}

func negRow(args []any) (any, error) {
	switch a := args[0].(type) {
	case nil:
		return nil, nil
	case int64:
		return -a, nil
	case float64:
		return -a, nil
	default:
		return nil, fmt.Errorf("neg: unsupported argument type %T", args[0])
	}
}
