// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package libos is the IPC core of a library operating system: tasks
// exchange messages and capability handles through ports by pairing
// senders with receivers.
//
// # Architecture
//
//   - Objects: a [Kernel] owns [Task]s and ports. Tasks name ports by
//     [Handle] and own a fixed table of shuttles named by [ShuttleID].
//     Identifiers are generation checked, so stale ones fail with
//     [ErrInvalidHandle].
//   - Queues: each port keeps its waiting senders and receivers in
//     red-black trees from [code.hybscloud.com/libos/rbtree], ordered by
//     priority then arrival, with subtree aggregates for sizes and the
//     earliest deadline.
//   - Rendezvous: [Kernel.PortOperation] runs a send phase, a receive
//     phase and a wait phase in one call. The first two never block; a
//     phase either completes against a waiting peer or queues its
//     shuttle. Only the wait phase suspends the task, through a
//     [Scheduler].
//   - Replies: a call may arm its receive shuttle as a reply slot. The
//     receiver of the message answers with [Kernel.Reply], which
//     completes the slot directly and never blocks.
//   - Cancellation: [Kernel.ShuttleReset] withdraws a queued shuttle; a
//     completion that wins the race is kept. Closing a port fails its
//     waiters with [ErrPeerClosed].
//
// # API Topologies
//
//   - Direct: [Kernel.PortOperation], and the split forms [Kernel.Send],
//     [Kernel.Recv], [Kernel.Wait], [Kernel.Reply], [Kernel.Call].
//   - Effects: [Syscall], [Reset] and [Completion] are operations on
//     [code.hybscloud.com/kont]. [SyscallBind], [CallBind], [RecvBind],
//     [ReplyThen] and their Expr-world counterparts compose programs.
//   - Execution: [Exec] and [ExecExpr] block with adaptive backoff;
//     [Step] and [Advance] evaluate one effect at a time and return
//     [code.hybscloud.com/iox.ErrWouldBlock] while the task waits;
//     [Run] interleaves two tasks on one goroutine.
//
// # Example
//
//	k, _ := libos.New(libos.DefaultConfig())
//	srv, _ := k.NewTask("server")
//	cli, _ := k.NewTask("client")
//	sp, _ := k.PortCreate(srv, libos.PortOptions{})
//	cp, _ := k.HandleGrant(srv, sp, cli)
//	in, _ := k.ShuttleRegister(srv)
//	send, _ := k.ShuttleRegister(cli)
//
//	go k.Send(ctx, cli, send, cp, []byte("hi"), libos.Infinite)
//	buf := make([]byte, 16)
//	res, _ := k.Recv(ctx, srv, in, sp, buf, libos.Infinite)
//	// buf[:res.Len] == "hi"
package libos
