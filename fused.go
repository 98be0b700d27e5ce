// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package libos

import (
	"code.hybscloud.com/kont"
)

// SyscallBind runs op and passes its outcome to f.
// Fuses Perform(Syscall{Op: op}) + Bind.
func SyscallBind[B any](op Op, f func(Outcome) kont.Eff[B]) kont.Eff[B] {
	return kont.Bind(kont.Perform(Syscall{Op: op}), f)
}

// SyscallOr runs op and passes its result to f, throwing the error
// instead when op fails. Run it with ExecError.
func SyscallOr[B any](op Op, f func(Result) kont.Eff[B]) kont.Eff[B] {
	return kont.Bind(kont.Perform(Syscall{Op: op}), func(o Outcome) kont.Eff[B] {
		if o.Err != nil {
			return kont.ThrowError[error, B](o.Err)
		}
		return f(o.Result)
	})
}

// SendThen sends buf on port through shuttle s, waits for a receiver,
// and continues with next whatever the outcome.
func SendThen[B any](s ShuttleID, port Handle, buf []byte, next kont.Eff[B]) kont.Eff[B] {
	return kont.Then(kont.Perform(Syscall{Op: Op{
		SendShuttle: s, SendPort: port, SendBuf: buf, WaitShuttle: s, Timeout: Infinite,
	}}), next)
}

// RecvBind receives from port into buf through shuttle s and passes
// the outcome to f.
func RecvBind[B any](s ShuttleID, port Handle, buf []byte, f func(Outcome) kont.Eff[B]) kont.Eff[B] {
	return SyscallBind(Op{
		RecvShuttle: s, RecvPort: port, RecvBuf: buf, WaitShuttle: s, Timeout: Infinite,
	}, f)
}

// CallBind sends req on port and waits for the reply in resp.
// Fuses the request, the reply slot and the wait into one Syscall.
func CallBind[B any](send ShuttleID, port Handle, req []byte, recv ShuttleID, resp []byte, f func(Outcome) kont.Eff[B]) kont.Eff[B] {
	return SyscallBind(Op{
		SendShuttle: send, SendPort: port, SendBuf: req,
		RecvShuttle: recv, RecvBuf: resp,
		WaitShuttle: recv, Timeout: Infinite,
	}, f)
}

// ReplyThen answers the message last received on replyTo and continues
// with next. Never blocks.
func ReplyThen[B any](s, replyTo ShuttleID, buf []byte, next kont.Eff[B]) kont.Eff[B] {
	return kont.Then(kont.Perform(Syscall{Op: Op{
		SendShuttle: s, ReplyTo: replyTo, SendBuf: buf,
	}}), next)
}

// ResetBind resets shuttle s and passes the outcome to f.
func ResetBind[B any](s ShuttleID, f func(ResetOutcome) kont.Eff[B]) kont.Eff[B] {
	return kont.Bind(kont.Perform(Reset{Shuttle: s}), f)
}

// CompletionBind waits for the next completion and passes its shuttle to f.
func CompletionBind[B any](f func(ShuttleID) kont.Eff[B]) kont.Eff[B] {
	return kont.Bind(kont.Perform(Completion{}), f)
}
