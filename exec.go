// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package libos

import (
	"code.hybscloud.com/iox"
	"code.hybscloud.com/kont"
)

// syscallHandler implements kont.Handler for kernel effects.
// Waits on iox.ErrWouldBlock, converting non-blocking dispatch
// into blocking evaluation for Exec/ExecExpr.
type syscallHandler[R any] struct {
	ctx *syscallContext
}

// Dispatch implements kont.Handler.
func (h syscallHandler[R]) Dispatch(op kont.Operation) (kont.Resumed, bool) {
	sop, ok := op.(syscallDispatcher)
	if !ok {
		panic("libos: unhandled effect in syscallHandler")
	}
	return dispatchWait(h.ctx, sop), true
}

// dispatchWait blocks until DispatchSyscall succeeds, backing off on
// iox.ErrWouldBlock with iox.Backoff.
func dispatchWait(ctx *syscallContext, sop syscallDispatcher) kont.Resumed {
	var bo iox.Backoff
	for {
		v, err := sop.DispatchSyscall(ctx)
		if err == nil {
			return v
		}
		bo.Wait()
	}
}

// Exec runs a Cont-world program as task t.
// Blocks on iox.ErrWouldBlock via adaptive backoff (iox.Backoff).
func Exec[R any](t *Task, program kont.Eff[R]) R {
	h := syscallHandler[R]{ctx: &t.sc}
	return kont.Handle(program, h)
}

// ExecExpr runs an Expr-world program as task t.
// Blocks on iox.ErrWouldBlock via adaptive backoff (iox.Backoff).
func ExecExpr[R any](t *Task, program kont.Expr[R]) R {
	h := syscallHandler[R]{ctx: &t.sc}
	return kont.HandleExpr(program, h)
}

// syscallErrorHandler handles kernel effects and error effects.
// Kernel effects wait on ErrWouldBlock. Error effects short-circuit on Throw.
type syscallErrorHandler[E, A any] struct {
	ctx    *syscallContext
	errCtx *kont.ErrorContext[E]
}

// Dispatch implements kont.Handler. Kernel effects go first.
func (h syscallErrorHandler[E, A]) Dispatch(op kont.Operation) (kont.Resumed, bool) {
	if sop, ok := op.(syscallDispatcher); ok {
		return dispatchWait(h.ctx, sop), true
	}
	if eop, ok := op.(interface {
		DispatchError(ctx *kont.ErrorContext[E]) (kont.Resumed, bool)
	}); ok {
		v, _ := eop.DispatchError(h.errCtx)
		if h.errCtx.HasErr {
			return kont.Left[E, A](h.errCtx.Err), false
		}
		return v, true
	}
	panic("libos: unhandled effect in syscallErrorHandler")
}

// ExecError runs a Cont-world program with error effects as task t.
// Returns Right on success and Left on Throw, for instance from
// [SyscallOr] when an operation fails.
func ExecError[E, R any](t *Task, program kont.Eff[R]) kont.Either[E, R] {
	wrapped := kont.Map[kont.Resumed, R, kont.Either[E, R]](program, func(r R) kont.Either[E, R] {
		return kont.Right[E, R](r)
	})
	var errCtx kont.ErrorContext[E]
	h := syscallErrorHandler[E, R]{ctx: &t.sc, errCtx: &errCtx}
	return kont.Handle(wrapped, h)
}

// ExecErrorExpr runs an Expr-world program with error effects as task t.
func ExecErrorExpr[E, R any](t *Task, program kont.Expr[R]) kont.Either[E, R] {
	wrapped := kont.ExprMap(program, func(r R) kont.Either[E, R] {
		return kont.Right[E, R](r)
	})
	var errCtx kont.ErrorContext[E]
	h := syscallErrorHandler[E, R]{ctx: &t.sc, errCtx: &errCtx}
	return kont.HandleExpr(wrapped, h)
}
