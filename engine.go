// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package libos

import (
	"context"
	"slices"
	"time"

	"go.uber.org/zap"
)

// Flags modify a PortOperation.
type Flags uint32

const (
	// TransferHandles carries capability handles with the message.
	// Both sides must set it and the port must allow transfer.
	TransferHandles Flags = 1 << iota
	// NonBlocking fails a phase with ErrWouldBlock instead of queuing.
	NonBlocking
)

// Infinite waits without a deadline. A zero timeout polls.
const Infinite time.Duration = -1

// Op describes one combined PortOperation. Every part is optional;
// zero identifiers mean "absent".
//
// The send phase targets either SendPort or, for a reply, the reply
// slot of the message last received on ReplyTo. A RecvShuttle without
// RecvPort is armed as the reply slot of the send phase before the send
// phase runs, so whoever receives the message can answer without
// blocking.
type Op struct {
	SendShuttle ShuttleID
	SendPort    Handle
	ReplyTo     ShuttleID
	SendBuf     []byte
	SendHandles []Handle

	RecvShuttle ShuttleID
	RecvPort    Handle
	RecvBuf     []byte
	// RecvHandles is the number of handles the receiver accepts.
	RecvHandles int

	WaitShuttle ShuttleID
	Timeout     time.Duration
	Flags       Flags
	// Priority orders waiters on a port, lower first.
	Priority uint8
}

// Result reports the completed shuttle of a PortOperation: the wait
// shuttle when there is one, else the first shuttle that completed
// immediately.
type Result struct {
	Shuttle ShuttleID
	Len     int
	Handles []Handle
}

// call is one PortOperation between its queue phases and its wait phase.
type call struct {
	t        *Task
	ws       *Shuttle
	fresh    [2]*Shuttle
	nfresh   int
	deadline time.Time
	poll     bool
	res      Result
}

func (c *call) ready() bool {
	st := c.ws.State()
	return st == ShuttleCompleted || st == ShuttleReset
}

func (c *call) track(s *Shuttle) {
	c.fresh[c.nfresh] = s
	c.nfresh++
}

func (c *call) complete(s *Shuttle) {
	if c.res.Shuttle == 0 {
		c.res = resultOf(s)
	}
}

func resultOf(s *Shuttle) Result {
	return Result{Shuttle: s.id, Len: s.length, Handles: slices.Clone(s.received)}
}

// PortOperation runs the send, receive and wait phases of op for t.
// The send and receive phases never block. The wait phase suspends t
// through the scheduler until the wait shuttle completes, the timeout
// elapses or ctx is done; on expiry every shuttle this call queued and
// the wait shuttle are reset, and a wait shuttle found completed during
// that reset is reported as success.
func (k *Kernel) PortOperation(ctx context.Context, t *Task, op Op) (Result, error) {
	c, err := k.begin(t, &op)
	if err != nil || c.ws == nil {
		return c.res, err
	}
	if res, done, err := k.settle(&c); done {
		return res, err
	}
	if c.poll {
		return k.expire(&c, ErrTimeout)
	}
	if err := k.sched.Park(ctx, t, c.ready, c.deadline); err != nil {
		return k.expire(&c, err)
	}
	res, _, err := k.settle(&c)
	return res, err
}

// begin validates op and runs its send and receive phases.
// Validation failures leave every object untouched.
func (k *Kernel) begin(t *Task, op *Op) (call, error) {
	c := call{t: t}
	var (
		ss, rs, ws, src *Shuttle
		sp, rp          *Port
		err             error
	)
	if op.SendPort != 0 && op.ReplyTo != 0 {
		return c, ErrBadState
	}
	if op.SendPort != 0 || op.ReplyTo != 0 {
		if ss, err = t.shuttle(op.SendShuttle); err != nil {
			return c, err
		}
	} else if op.SendShuttle != 0 {
		return c, ErrBadState
	}
	if op.SendPort != 0 {
		if sp, err = t.port(op.SendPort); err != nil {
			return c, err
		}
	}
	if op.ReplyTo != 0 {
		if src, err = t.shuttle(op.ReplyTo); err != nil {
			return c, err
		}
		if src.State() != ShuttleCompleted {
			return c, ErrBadState
		}
	}
	if op.RecvShuttle != 0 {
		if rs, err = t.shuttle(op.RecvShuttle); err != nil {
			return c, err
		}
	}
	if op.RecvPort != 0 {
		if rs == nil {
			return c, ErrInvalidHandle
		}
		if rp, err = t.port(op.RecvPort); err != nil {
			return c, err
		}
	}
	armReply := rs != nil && rp == nil
	if armReply && ss == nil {
		return c, ErrBadState
	}
	if ss != nil && (ss == rs || ss.State().Queued()) {
		return c, ErrBadState
	}
	if rs != nil && rs.State().Queued() {
		return c, ErrBadState
	}
	if op.WaitShuttle != 0 {
		if ws, err = t.shuttle(op.WaitShuttle); err != nil {
			return c, err
		}
		if ws != ss && ws != rs && ws.State() == ShuttleIdle {
			return c, ErrBadState
		}
	}
	if op.Flags&TransferHandles != 0 && len(op.SendHandles) > 0 && ss != nil {
		t.mu.Lock()
		for _, h := range op.SendHandles {
			if _, ok := t.handles.get(uint32(h)); !ok {
				t.mu.Unlock()
				return c, ErrInvalidHandle
			}
		}
		t.mu.Unlock()
	}

	dl := noDeadline
	if ws != nil {
		switch {
		case op.Timeout == 0:
			c.poll = true
		case op.Timeout > 0:
			c.deadline = time.Now().Add(op.Timeout)
			dl = c.deadline.UnixNano()
		}
	}

	// A phase commits its request to the shuttle only once it is known
	// to succeed; a failed phase leaves the shuttle as it was. Commits
	// run under t.mu.
	commitSend := func() {
		ss.arm(op.SendBuf, op.Flags, op.Priority, dl)
		ss.handles = op.SendHandles
		if armReply {
			rs.arm(op.RecvBuf, op.Flags, op.Priority, dl)
			rs.handleCap = op.RecvHandles
			rs.direct = true
			rs.setState(ShuttleQueuedRecv)
			ss.reply = refOf(rs)
		}
	}
	commitRecv := func() {
		rs.arm(op.RecvBuf, op.Flags, op.Priority, dl)
		rs.handleCap = op.RecvHandles
	}

	switch {
	case sp != nil:
		queued, err := k.sendPort(ss, sp, op.Flags, commitSend)
		if err != nil {
			return c, err
		}
		if queued {
			c.track(ss)
		} else {
			c.complete(ss)
		}
	case src != nil:
		if err := k.reply(t, ss, src, commitSend); err != nil {
			return c, err
		}
		c.complete(ss)
	}
	if armReply {
		c.track(rs)
	}

	if rp != nil {
		queued, err := k.recvPort(rs, rp, op.Flags, commitRecv)
		if err != nil {
			k.rollback(&c)
			return c, err
		}
		if queued {
			c.track(rs)
		} else {
			c.complete(rs)
		}
	}
	c.ws = ws
	return c, nil
}

// rollback cancels whatever c queued or armed.
func (k *Kernel) rollback(c *call) {
	for _, s := range c.fresh[:c.nfresh] {
		k.cancel(s)
	}
	c.nfresh = 0
}

// settle reports the outcome of c once its wait shuttle is done.
func (k *Kernel) settle(c *call) (Result, bool, error) {
	switch c.ws.State() {
	case ShuttleCompleted:
		return resultOf(c.ws), true, nil
	case ShuttleReset:
		return Result{Shuttle: c.ws.id}, true, ErrPeerClosed
	}
	return Result{}, false, nil
}

// expire resets the wait shuttle and everything c queued. A wait
// shuttle that completed before the reset took effect wins the race.
func (k *Kernel) expire(c *call, cause error) (Result, error) {
	cancelled := k.cancel(c.ws)
	for _, s := range c.fresh[:c.nfresh] {
		if s != c.ws {
			k.cancel(s)
		}
	}
	if !cancelled {
		if res, done, err := k.settle(c); done {
			k.log.Debug("completion won timeout race",
				zap.String("task", c.t.name), zap.Uint32("shuttle", uint32(c.ws.id)))
			return res, err
		}
	}
	k.metrics.timeouts.Inc()
	return Result{}, cause
}

// sendPort runs the send phase of ss on p. commit stages the request
// on ss once the phase cannot fail.
func (k *Kernel) sendPort(ss *Shuttle, p *Port, flags Flags, commit func()) (bool, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return false, ErrPeerClosed
	}
	rs := p.peek(ShuttleQueuedRecv)
	if rs == nil && flags&NonBlocking != 0 {
		p.mu.Unlock()
		k.metrics.wouldBlock.Inc()
		return false, ErrWouldBlock
	}
	o := ss.owner
	if err := bind(o, commit); err != nil {
		p.mu.Unlock()
		return false, err
	}
	if rs == nil {
		p.enqueue(ss, ShuttleQueuedSend)
		o.mu.Unlock()
		p.mu.Unlock()
		k.metrics.enqueued.Inc()
		k.metrics.queued.Inc()
		return true, nil
	}
	o.mu.Unlock()
	p.unlink(rs)
	k.deliver(p.allowTransfer, ss, rs, false)
	p.mu.Unlock()
	k.metrics.queued.Dec()
	rs.owner.notify(rs)
	return false, nil
}

// recvPort runs the receive phase of rs on p.
func (k *Kernel) recvPort(rs *Shuttle, p *Port, flags Flags, commit func()) (bool, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return false, ErrPeerClosed
	}
	ss := p.peek(ShuttleQueuedSend)
	if ss == nil && flags&NonBlocking != 0 {
		p.mu.Unlock()
		k.metrics.wouldBlock.Inc()
		return false, ErrWouldBlock
	}
	o := rs.owner
	if err := bind(o, commit); err != nil {
		p.mu.Unlock()
		return false, err
	}
	if ss == nil {
		p.enqueue(rs, ShuttleQueuedRecv)
		o.mu.Unlock()
		p.mu.Unlock()
		k.metrics.enqueued.Inc()
		k.metrics.queued.Inc()
		return true, nil
	}
	o.mu.Unlock()
	p.unlink(ss)
	k.deliver(p.allowTransfer, ss, rs, false)
	p.mu.Unlock()
	k.metrics.queued.Dec()
	ss.owner.notify(ss)
	return false, nil
}

// bind runs commit under t.mu unless t is being destroyed. On success
// t.mu stays held, so DestroyTask sees the shuttle either queued or not
// committed at all.
func bind(t *Task, commit func()) error {
	t.mu.Lock()
	if t.dead {
		t.mu.Unlock()
		return ErrInvalidHandle
	}
	commit()
	return nil
}

// reply sends ss straight into the reply slot recorded on src.
// The slot is guarded by its owner's lock, not by any port.
func (k *Kernel) reply(t *Task, ss, src *Shuttle, commit func()) error {
	ref := src.replyTo
	tgt := ref.live()
	if tgt == nil {
		return ErrPeerClosed
	}
	o := tgt.owner
	lockPair(t, o)
	if t.dead {
		unlockPair(t, o)
		return ErrInvalidHandle
	}
	if tgt.epoch.Load() != ref.epoch || !tgt.direct || tgt.State() != ShuttleQueuedRecv {
		unlockPair(t, o)
		return ErrPeerClosed
	}
	commit()
	tgt.direct = false
	k.deliver(src.replyHandle, ss, tgt, true)
	src.replyTo = shuttleRef{}
	unlockPair(t, o)
	o.notify(tgt)
	return nil
}

// failSlot fails the reply slot ref names, if it is still armed, so
// the caller waiting on it sees ErrPeerClosed.
func (k *Kernel) failSlot(ref shuttleRef) {
	s := ref.live()
	if s == nil {
		return
	}
	o := s.owner
	o.mu.Lock()
	if s.epoch.Load() != ref.epoch || !s.direct {
		o.mu.Unlock()
		return
	}
	s.direct = false
	s.setState(ShuttleReset)
	o.mu.Unlock()
	k.metrics.peerClosed.Inc()
	o.notify(s)
}

// deliver copies the payload of snd into rcv, moves handles when
// allowed, and completes both. The caller holds the lock guarding the
// membership of whichever side was waiting; ownersLocked reports that
// both owners' locks are held as well.
func (k *Kernel) deliver(allow bool, snd, rcv *Shuttle, ownersLocked bool) {
	n := copy(rcv.buf, snd.buf)
	snd.length, rcv.length = n, n
	rcv.replyTo = snd.reply
	rcv.replyHandle = allow
	if allow && snd.flags&rcv.flags&TransferHandles != 0 && len(snd.handles) > 0 && rcv.handleCap > 0 {
		if !ownersLocked {
			lockPair(snd.owner, rcv.owner)
		}
		rcv.received = moveHandles(snd.owner, rcv.owner, snd.handles, rcv.handleCap, rcv.received)
		if !ownersLocked {
			unlockPair(snd.owner, rcv.owner)
		}
		k.metrics.handles.Add(float64(len(rcv.received)))
	}
	snd.partner = refOf(rcv)
	rcv.partner = refOf(snd)
	detach(snd, ShuttleCompleted)
	detach(rcv, ShuttleCompleted)
	k.metrics.rendezvous.Inc()
	k.metrics.bytes.Add(float64(n))
}

// cancel is ShuttleReset without clearing the reset state.
func (k *Kernel) cancel(s *Shuttle) bool {
	return k.reset(s, ShuttleIdle, false)
}

// Send sends buf on port through shuttle s and waits for a receiver.
func (k *Kernel) Send(ctx context.Context, t *Task, s ShuttleID, port Handle, buf []byte, timeout time.Duration) (Result, error) {
	return k.PortOperation(ctx, t, Op{
		SendShuttle: s,
		SendPort:    port,
		SendBuf:     buf,
		WaitShuttle: s,
		Timeout:     timeout,
	})
}

// Recv receives from port into buf through shuttle s.
func (k *Kernel) Recv(ctx context.Context, t *Task, s ShuttleID, port Handle, buf []byte, timeout time.Duration) (Result, error) {
	return k.PortOperation(ctx, t, Op{
		RecvShuttle: s,
		RecvPort:    port,
		RecvBuf:     buf,
		WaitShuttle: s,
		Timeout:     timeout,
	})
}

// Wait waits for a shuttle queued by an earlier operation.
func (k *Kernel) Wait(ctx context.Context, t *Task, s ShuttleID, timeout time.Duration) (Result, error) {
	return k.PortOperation(ctx, t, Op{WaitShuttle: s, Timeout: timeout})
}

// Reply answers the message last received on replyTo through shuttle s.
// It never blocks.
func (k *Kernel) Reply(t *Task, s, replyTo ShuttleID, buf []byte) (Result, error) {
	return k.PortOperation(context.Background(), t, Op{
		SendShuttle: s,
		ReplyTo:     replyTo,
		SendBuf:     buf,
	})
}

// Call sends req on port through send and waits for the reply in resp,
// received through recv.
func (k *Kernel) Call(ctx context.Context, t *Task, send ShuttleID, port Handle, req []byte, recv ShuttleID, resp []byte, timeout time.Duration) (Result, error) {
	return k.PortOperation(ctx, t, Op{
		SendShuttle: send,
		SendPort:    port,
		SendBuf:     req,
		RecvShuttle: recv,
		RecvBuf:     resp,
		WaitShuttle: recv,
		Timeout:     timeout,
	})
}
