// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package libos

import (
	"sync"
	"time"

	"code.hybscloud.com/libos/rbtree"
)

// queueOps orders waiting shuttles by priority, lower first, then by
// enqueue sequence, and keeps subtree size and earliest deadline.
type queueOps struct{}

func (queueOps) Less(a, b *rbtree.Node[*Shuttle]) bool {
	x, y := a.Value, b.Value
	if x.priority != y.priority {
		return x.priority < y.priority
	}
	return x.seq < y.seq
}

func (queueOps) Update(n *rbtree.Node[*Shuttle]) {
	s := n.Value
	s.subSize = 1
	s.subDeadline = s.deadline
	if l := n.Left(); l != nil {
		s.subSize += l.Value.subSize
		s.subDeadline = min(s.subDeadline, l.Value.subDeadline)
	}
	if r := n.Right(); r != nil {
		s.subSize += r.Value.subSize
		s.subDeadline = min(s.subDeadline, r.Value.subDeadline)
	}
}

// PortOptions configures a new port.
type PortOptions struct {
	// AllowTransfer lets messages through this port carry handles.
	AllowTransfer bool
}

// Port is a rendezvous point pairing senders with receivers.
type Port struct {
	id            uint32
	owner         *Task
	allowTransfer bool

	mu        sync.Mutex
	senders   rbtree.Tree[*Shuttle]
	receivers rbtree.Tree[*Shuttle]
	seq       uint64
	refs      int
	closed    bool
}

func newPort(owner *Task, opts PortOptions) *Port {
	p := &Port{owner: owner, allowTransfer: opts.AllowTransfer}
	p.senders.Init(queueOps{})
	p.receivers.Init(queueOps{})
	return p
}

func (p *Port) queue(st ShuttleState) *rbtree.Tree[*Shuttle] {
	if st == ShuttleQueuedSend {
		return &p.senders
	}
	return &p.receivers
}

// enqueue links s into the queue for st. p.mu must be held.
func (p *Port) enqueue(s *Shuttle, st ShuttleState) {
	p.seq++
	s.seq = p.seq
	s.port.Store(p)
	s.setState(st)
	p.queue(st).Insert(&s.node)
}

// peek returns the first shuttle waiting in state st, or nil.
// p.mu must be held.
func (p *Port) peek(st ShuttleState) *Shuttle {
	n := p.queue(st).Min()
	if n == nil {
		return nil
	}
	return n.Value
}

// dequeue unlinks and returns the first shuttle waiting in state st,
// or nil. p.mu must be held.
// The shuttle still points at p until the caller publishes its new
// state and calls detach.
func (p *Port) dequeue(st ShuttleState) *Shuttle {
	s := p.peek(st)
	if s != nil {
		p.unlink(s)
	}
	return s
}

// unlink removes a queued s from its queue. p.mu must be held.
func (p *Port) unlink(s *Shuttle) {
	p.queue(s.State()).Remove(&s.node)
}

// detach publishes st as the state of an unlinked s and clears its
// port. p.mu must be held.
func detach(s *Shuttle, st ShuttleState) {
	s.setState(st)
	s.port.Store(nil)
}

// drain fails every queued shuttle with the reset state and returns
// them for notification, along with the reply slots the failed senders
// had armed. p.mu must be held.
func (p *Port) drain() (failed []*Shuttle, slots []shuttleRef) {
	failed = make([]*Shuttle, 0, p.senders.Len()+p.receivers.Len())
	for _, st := range []ShuttleState{ShuttleQueuedSend, ShuttleQueuedRecv} {
		for s := p.dequeue(st); s != nil; s = p.dequeue(st) {
			if s.reply.s != nil {
				slots = append(slots, s.reply)
			}
			detach(s, ShuttleReset)
			failed = append(failed, s)
		}
	}
	return failed, slots
}

// PortStats is a snapshot of a port's queues.
type PortStats struct {
	Senders   int
	Receivers int
	Closed    bool
	Refs      int
	// EarliestDeadline is the soonest timeout among queued shuttles,
	// or the zero Time when none of them has one.
	EarliestDeadline time.Time
}

func (p *Port) stats() PortStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	st := PortStats{
		Senders:   p.senders.Len(),
		Receivers: p.receivers.Len(),
		Closed:    p.closed,
		Refs:      p.refs,
	}
	d := noDeadline
	for _, t := range []*rbtree.Tree[*Shuttle]{&p.senders, &p.receivers} {
		if r := t.Root(); r != nil {
			d = min(d, r.Value.subDeadline)
		}
	}
	if d != noDeadline {
		st.EarliestDeadline = time.Unix(0, d)
	}
	return st
}
