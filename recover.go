package exprcomp

import (
	"fmt"
	"runtime/debug"
)

// recoverToRuntimeError converts a panic raised by generated code or a
// registered function implementation into a RuntimeError, so one bad
// kernel cannot crash the pipeline task driving the processor. Use as:
//
//	defer recoverToRuntimeError("process row", &err)
func recoverToRuntimeError(op string, errp *error) {
	if r := recover(); r != nil {
		*errp = &RuntimeError{
			Op:  op,
			Err: fmt.Errorf("panic: %v\n%s", r, debug.Stack()),
		}
	}
}
