// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package libos

import (
	"code.hybscloud.com/kont"
)

// Step evaluates a program until the first effect suspension.
// Returns (result, nil) on completion, or (zero, suspension) if pending.
func Step[R any](program kont.Expr[R]) (R, *kont.Suspension[R]) {
	return kont.StepExpr(program)
}

// Advance dispatches the suspended operation as task t.
// DispatchSyscall is non-blocking: it returns iox.ErrWouldBlock while
// the task waits on a peer.
//
// On success (nil error), the suspension is consumed and the program
// advances to the next effect or completion.
// On iox.ErrWouldBlock, the suspension is unconsumed and must be retried
// on the same task; an open wait phase is resumed, not restarted.
func Advance[R any](t *Task, susp *kont.Suspension[R]) (R, *kont.Suspension[R], error) {
	sop, ok := susp.Op().(syscallDispatcher)
	if !ok {
		panic("libos: unhandled effect in Advance")
	}
	v, err := sop.DispatchSyscall(&t.sc)
	if err != nil {
		var zero R
		return zero, susp, err
	}
	result, next := susp.Resume(v)
	return result, next, nil
}
