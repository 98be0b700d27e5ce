// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package libos

import (
	"time"

	"code.hybscloud.com/iox"
	"code.hybscloud.com/kont"
)

// syscallContext is the per-task state behind effect dispatch.
// pending holds a PortOperation whose wait phase has not finished.
type syscallContext struct {
	k       *Kernel
	t       *Task
	pending bool
	c       call
}

// syscallDispatcher is implemented by every effect the kernel handles.
// DispatchSyscall never blocks: it returns iox.ErrWouldBlock when the
// task must wait, and is retried with the same operation.
type syscallDispatcher interface {
	DispatchSyscall(ctx *syscallContext) (kont.Resumed, error)
}

// Outcome is the value a Syscall resumes with.
type Outcome struct {
	Result
	Err error
}

// OK reports whether the operation succeeded.
func (o Outcome) OK() bool { return o.Err == nil }

// Syscall is the effect operation for one PortOperation.
// Perform(Syscall{Op: op}) runs op for the task executing the program.
type Syscall struct {
	kont.Phantom[Outcome]
	Op Op
}

// DispatchSyscall runs the send and receive phases on first dispatch.
// While the wait phase is open it reports iox.ErrWouldBlock; the
// deadline is checked on every retry.
func (s Syscall) DispatchSyscall(ctx *syscallContext) (kont.Resumed, error) {
	k := ctx.k
	if !ctx.pending {
		c, err := k.begin(ctx.t, &s.Op)
		if err != nil || c.ws == nil {
			return Outcome{Result: c.res, Err: err}, nil
		}
		if res, done, err := k.settle(&c); done {
			return Outcome{Result: res, Err: err}, nil
		}
		if c.poll {
			res, err := k.expire(&c, ErrTimeout)
			return Outcome{Result: res, Err: err}, nil
		}
		ctx.c = c
		ctx.pending = true
		return nil, iox.ErrWouldBlock
	}
	if res, done, err := k.settle(&ctx.c); done {
		ctx.pending = false
		return Outcome{Result: res, Err: err}, nil
	}
	if !ctx.c.deadline.IsZero() && !time.Now().Before(ctx.c.deadline) {
		ctx.pending = false
		res, err := k.expire(&ctx.c, ErrTimeout)
		return Outcome{Result: res, Err: err}, nil
	}
	return nil, iox.ErrWouldBlock
}

// ResetOutcome is the value a Reset resumes with. Cancelled reports
// that a queue membership was withdrawn; Err is set when the shuttle
// does not name a live shuttle of the task.
type ResetOutcome struct {
	Cancelled bool
	Err       error
}

// Reset is the effect operation for ShuttleReset.
type Reset struct {
	kont.Phantom[ResetOutcome]
	Shuttle ShuttleID
}

// DispatchSyscall handles Reset. Never blocks.
func (r Reset) DispatchSyscall(ctx *syscallContext) (kont.Resumed, error) {
	ok, err := ctx.k.ShuttleReset(ctx.t, r.Shuttle)
	return ResetOutcome{Cancelled: ok, Err: err}, nil
}

// Completion is the effect operation for taking the next completed
// shuttle off the task's completion ring.
type Completion struct {
	kont.Phantom[ShuttleID]
}

// DispatchSyscall handles Completion.
// Non-blocking: returns iox.ErrWouldBlock while the ring is empty.
func (Completion) DispatchSyscall(ctx *syscallContext) (kont.Resumed, error) {
	id, err := ctx.t.ring.Dequeue()
	if err != nil {
		return nil, err
	}
	return id, nil
}
