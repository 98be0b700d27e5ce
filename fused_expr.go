// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package libos

import (
	"code.hybscloud.com/kont"
)

var (
	exprReturnFrame kont.Frame  = kont.ReturnFrame{}
	exprCompletion  kont.Erased = Completion{}
)

// identityResume is the identity resume function for EffectFrame construction.
func identityResume(v kont.Erased) kont.Erased { return v }

func bindUnwind[T, B any](data, _, _ kont.Erased, current kont.Erased) (kont.Erased, kont.Frame) {
	f := data.(func(T) kont.Expr[B])
	result := f(current.(T))
	return kont.Erased(result.Value), result.Frame
}

func exprBind[T, B any](op kont.Erased, f func(T) kont.Expr[B]) kont.Expr[B] {
	bf := kont.AcquireUnwindFrame()
	bf.Data1 = f
	bf.Unwind = bindUnwind[T, B]
	ef := kont.AcquireEffectFrame()
	ef.Operation = op
	ef.Resume = identityResume
	ef.Next = bf
	return kont.ExprSuspend[B](ef)
}

func exprThen[B any](op kont.Erased, next kont.Expr[B]) kont.Expr[B] {
	tf := kont.AcquireThenFrame()
	tf.Second = kont.Expr[kont.Erased]{Value: kont.Erased(next.Value), Frame: next.Frame}
	tf.Next = exprReturnFrame
	ef := kont.AcquireEffectFrame()
	ef.Operation = op
	ef.Resume = identityResume
	ef.Next = tf
	return kont.ExprSuspend[B](ef)
}

// ExprSyscallBind runs op and passes its outcome to f.
// Fuses ExprPerform(Syscall{Op: op}) + ExprBind.
func ExprSyscallBind[B any](op Op, f func(Outcome) kont.Expr[B]) kont.Expr[B] {
	return exprBind(Syscall{Op: op}, f)
}

// ExprSendThen sends buf on port through shuttle s and continues with next.
func ExprSendThen[B any](s ShuttleID, port Handle, buf []byte, next kont.Expr[B]) kont.Expr[B] {
	return exprThen(Syscall{Op: Op{
		SendShuttle: s, SendPort: port, SendBuf: buf, WaitShuttle: s, Timeout: Infinite,
	}}, next)
}

// ExprRecvBind receives from port into buf and passes the outcome to f.
func ExprRecvBind[B any](s ShuttleID, port Handle, buf []byte, f func(Outcome) kont.Expr[B]) kont.Expr[B] {
	return exprBind(Syscall{Op: Op{
		RecvShuttle: s, RecvPort: port, RecvBuf: buf, WaitShuttle: s, Timeout: Infinite,
	}}, f)
}

// ExprCallBind sends req on port and waits for the reply in resp.
func ExprCallBind[B any](send ShuttleID, port Handle, req []byte, recv ShuttleID, resp []byte, f func(Outcome) kont.Expr[B]) kont.Expr[B] {
	return exprBind(Syscall{Op: Op{
		SendShuttle: send, SendPort: port, SendBuf: req,
		RecvShuttle: recv, RecvBuf: resp,
		WaitShuttle: recv, Timeout: Infinite,
	}}, f)
}

// ExprReplyThen answers the message last received on replyTo and
// continues with next.
func ExprReplyThen[B any](s, replyTo ShuttleID, buf []byte, next kont.Expr[B]) kont.Expr[B] {
	return exprThen(Syscall{Op: Op{SendShuttle: s, ReplyTo: replyTo, SendBuf: buf}}, next)
}

// ExprCompletionBind waits for the next completion and passes its shuttle to f.
func ExprCompletionBind[B any](f func(ShuttleID) kont.Expr[B]) kont.Expr[B] {
	return exprBind(exprCompletion, f)
}
