package exprcomp

import "fmt"

// CompilationError reports that an expression could not be compiled into
// an executable artifact: an unsupported construct, an unresolvable
// function handle, or a generator defect. The original cause is always
// preserved and reachable through errors.Unwrap; no concurrency or cache
// wrapper ever replaces it.
type CompilationError struct {
	// Stage names the compilation that failed: "filter", "projection",
	// "cursor processor", "dynamic filter".
	Stage string

	// Expr is the diagnostic rendering of the offending expression.
	Expr string

	// Err is the underlying cause.
	Err error
}

func (e *CompilationError) Error() string {
	return fmt.Sprintf("compile %s %s: %v", e.Stage, e.Expr, e.Err)
}

func (e *CompilationError) Unwrap() error { return e.Err }

func compilationError(stage, expr string, err error) *CompilationError {
	return &CompilationError{Stage: stage, Expr: expr, Err: err}
}

// RuntimeError reports a data-dependent failure raised while a runtime
// processor evaluates a row or batch, such as a function faulting on
// specific input values. The surrounding pipeline owns retry or abort
// policy.
type RuntimeError struct {
	// Op names the operation that failed: "process row", "process batch".
	Op string

	// Err is the underlying cause.
	Err error
}

func (e *RuntimeError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *RuntimeError) Unwrap() error { return e.Err }
