// Package function provides the scalar function registry consulted by the
// expression compiler when it resolves Call nodes.
//
// Every function has a row form invoked once per row with already-evaluated
// arguments. A function may additionally carry a columnar form that
// produces a whole result vector for a batch; the columnar filter strategy
// is only eligible when every function in a filter tree has one.
//
// Implementations MUST be goroutine-safe: one resolved definition is shared
// by every processor compiled from it.
package function

import (
	"fmt"
	"sync"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// RowFunc is the row form of a scalar function. Arguments arrive fully
// evaluated, one Go value per argument expression; nil is NULL. Returning
// an error aborts processing of the current row's batch.
type RowFunc func(args []any) (any, error)

// ColumnarFunc is the vectorized form of a scalar function. It receives
// one Datum per argument and produces a result column of the given length.
// The returned array is owned by the caller.
type ColumnarFunc func(mem memory.Allocator, length int, args []Datum) (arrow.Array, error)

// Definition describes one resolvable scalar function.
type Definition struct {
	// Name is the function handle, matched case-sensitively against
	// Call.Name. MUST be non-empty.
	Name string

	// Arity is the exact number of arguments the function accepts.
	Arity int

	// Row is the per-row implementation. REQUIRED.
	Row RowFunc

	// Columnar is the optional vectorized implementation. When nil the
	// function is not columnar-eligible and filters containing it fall
	// back to row-wise evaluation.
	Columnar ColumnarFunc
}

// Datum is one columnar argument: either a whole column (Arr) or a scalar
// broadcast across the batch (Scalar). Exactly one representation is
// active; Arr == nil means scalar.
type Datum struct {
	Arr    arrow.Array
	Scalar any
	Typ    arrow.DataType

	// Owned marks arrays produced by a kernel, which the consumer must
	// release. Columns borrowed from an input batch are not owned.
	Owned bool
}

// Release releases the underlying array if this datum owns one.
func (d Datum) Release() {
	if d.Owned && d.Arr != nil {
		d.Arr.Release()
	}
}

// Getter returns a positional accessor for the datum. The type dispatch
// happens once here, not per row.
func (d Datum) Getter() (func(i int) any, error) {
	if d.Arr == nil {
		v := d.Scalar
		return func(int) any { return v }, nil
	}
	return ColumnGetter(d.Arr)
}

// ColumnGetter returns a positional value accessor for an Arrow array,
// yielding nil for NULL positions. The returned closure is bound to the
// concrete array type, so reading rows involves no per-row type dispatch.
func ColumnGetter(arr arrow.Array) (func(i int) any, error) {
	switch arr := arr.(type) {
	case *array.Int64:
		return func(i int) any {
			if arr.IsNull(i) {
				return nil
			}
			return arr.Value(i)
		}, nil
	case *array.Float64:
		return func(i int) any {
			if arr.IsNull(i) {
				return nil
			}
			return arr.Value(i)
		}, nil
	case *array.String:
		return func(i int) any {
			if arr.IsNull(i) {
				return nil
			}
			return arr.Value(i)
		}, nil
	case *array.Boolean:
		return func(i int) any {
			if arr.IsNull(i) {
				return nil
			}
			return arr.Value(i)
		}, nil
	default:
		return nil, fmt.Errorf("unsupported column type %s", arr.DataType())
	}
}

// Registry resolves function handles to definitions. The zero value is not
// usable; construct with NewRegistry, which preloads the builtin set.
type Registry struct {
	mu   sync.RWMutex
	defs map[registryKey]*Definition
}

type registryKey struct {
	name  string
	arity int
}

// NewRegistry creates a registry preloaded with the builtin comparison,
// arithmetic, and boolean functions.
func NewRegistry() *Registry {
	r := &Registry{defs: make(map[registryKey]*Definition)}
	registerBuiltins(r)
	return r
}

// Register adds a definition. Registering the same name and arity twice is
// an error; upstream plans bind to one implementation per handle.
func (r *Registry) Register(def *Definition) error {
	if def.Name == "" {
		return fmt.Errorf("function name cannot be empty")
	}
	if def.Row == nil {
		return fmt.Errorf("function %s has no row implementation", def.Name)
	}
	key := registryKey{name: def.Name, arity: def.Arity}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.defs[key]; ok {
		return fmt.Errorf("function %s/%d already registered", def.Name, def.Arity)
	}
	r.defs[key] = def
	return nil
}

// Resolve looks up the definition for a handle and argument count.
func (r *Registry) Resolve(name string, arity int) (*Definition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.defs[registryKey{name: name, arity: arity}]
	if !ok {
		return nil, fmt.Errorf("unknown function %s/%d", name, arity)
	}
	return def, nil
}

func (r *Registry) mustRegister(def *Definition) {
	if err := r.Register(def); err != nil {
		panic(err)
	}
}
