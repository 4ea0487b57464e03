// Package expr defines the scalar expression trees consumed by the
// expression compiler.
//
// Trees are produced by an upstream planner and are immutable once built.
// Three node kinds exist: Constant (a literal value), InputRef (a reference
// to an input channel by index), and Call (an application of a named scalar
// function to argument expressions). Every node carries its Arrow result
// type; type derivation and checking belong to the planner, not to this
// package.
//
// Two distinct trees describing the same logical expression compare equal
// under Equal and produce the same Fingerprint. This structural identity is
// what the compiler's memoization keys on.
package expr

import (
	"fmt"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
)

// Expression is the closed interface implemented by all tree node kinds.
// Use type switches to access node-specific data.
type Expression interface {
	// Type returns the Arrow type this expression evaluates to.
	Type() arrow.DataType

	// String returns a compact diagnostic rendering of the expression.
	// It carries no behavioral weight.
	String() string

	// exprMarker prevents implementations outside this package.
	exprMarker()
}

// Constant is a literal value of a fixed type.
// Value is one of int64, float64, string, bool, or nil for NULL.
type Constant struct {
	Value any
	Typ   arrow.DataType
}

// NewConstant creates a constant expression.
func NewConstant(value any, typ arrow.DataType) *Constant {
	return &Constant{Value: value, Typ: typ}
}

// NewBool creates a boolean constant. Used for the implicit always-true
// filter substituted when a caller supplies none.
func NewBool(v bool) *Constant {
	return &Constant{Value: v, Typ: arrow.FixedWidthTypes.Boolean}
}

func (c *Constant) Type() arrow.DataType { return c.Typ }

func (c *Constant) String() string {
	if c.Value == nil {
		return "null::" + c.Typ.String()
	}
	return fmt.Sprintf("%v::%s", c.Value, c.Typ)
}

func (*Constant) exprMarker() {}

// InputRef references an input channel (column) of the row or batch being
// processed, by zero-based index.
type InputRef struct {
	Channel int
	Typ     arrow.DataType
}

// NewInputRef creates an input channel reference.
func NewInputRef(channel int, typ arrow.DataType) *InputRef {
	return &InputRef{Channel: channel, Typ: typ}
}

func (r *InputRef) Type() arrow.DataType { return r.Typ }

func (r *InputRef) String() string { return fmt.Sprintf("$%d", r.Channel) }

func (*InputRef) exprMarker() {}

// Call applies the scalar function identified by Name to the argument
// expressions, in order. Name is an opaque handle resolved against a
// function registry at compile time.
type Call struct {
	Name string
	Args []Expression
	Typ  arrow.DataType
}

// NewCall creates a function call expression.
func NewCall(name string, typ arrow.DataType, args ...Expression) *Call {
	return &Call{Name: name, Args: args, Typ: typ}
}

func (c *Call) Type() arrow.DataType { return c.Typ }

func (c *Call) String() string {
	args := make([]string, len(c.Args))
	for i, a := range c.Args {
		args[i] = a.String()
	}
	return c.Name + "(" + strings.Join(args, ", ") + ")"
}

func (*Call) exprMarker() {}

// Equal reports deep structural equality of two expressions. Object
// identity is irrelevant: two separately constructed trees with the same
// shape, types, and values are equal. Nil expressions are equal only to
// each other.
func Equal(a, b Expression) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	switch a := a.(type) {
	case *Constant:
		b, ok := b.(*Constant)
		return ok && a.Value == b.Value && arrow.TypeEqual(a.Typ, b.Typ)
	case *InputRef:
		b, ok := b.(*InputRef)
		return ok && a.Channel == b.Channel && arrow.TypeEqual(a.Typ, b.Typ)
	case *Call:
		b, ok := b.(*Call)
		if !ok || a.Name != b.Name || len(a.Args) != len(b.Args) || !arrow.TypeEqual(a.Typ, b.Typ) {
			return false
		}
		for i := range a.Args {
			if !Equal(a.Args[i], b.Args[i]) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// EqualSlices reports element-wise structural equality of two expression
// lists, order included.
func EqualSlices(a, b []Expression) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !Equal(a[i], b[i]) {
			return false
		}
	}
	return true
}
