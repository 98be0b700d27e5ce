// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package libos

import (
	"sync/atomic"

	"code.hybscloud.com/atomix"

	"code.hybscloud.com/libos/rbtree"
)

// ShuttleState is the lifecycle state of a shuttle.
type ShuttleState uint32

const (
	ShuttleIdle ShuttleState = iota
	ShuttleQueuedSend
	ShuttleQueuedRecv
	ShuttleCompleted
	ShuttleReset
)

func (s ShuttleState) String() string {
	switch s {
	case ShuttleIdle:
		return "idle"
	case ShuttleQueuedSend:
		return "queued-send"
	case ShuttleQueuedRecv:
		return "queued-recv"
	case ShuttleCompleted:
		return "completed"
	case ShuttleReset:
		return "reset"
	default:
		return "unknown"
	}
}

// Queued reports whether s is one of the queued states.
func (s ShuttleState) Queued() bool {
	return s == ShuttleQueuedSend || s == ShuttleQueuedRecv
}

// noDeadline is the deadline of a shuttle nobody waits on with a timeout.
const noDeadline = int64(^uint64(0) >> 1)

// Shuttle tracks one in-flight send or receive of its owning task.
//
// The state word is written under the lock that guards the shuttle's
// current membership (its port's lock while queued, its owner's lock
// while armed as a reply slot) and may be read without locks. Request
// and completion fields are published by the state store. port stays
// set until the state leaving the queue is published.
type Shuttle struct {
	node  rbtree.Node[*Shuttle]
	owner *Task
	id    ShuttleID

	state atomic.Uint32
	epoch atomix.Uint32
	port  atomic.Pointer[Port]
	// direct is set while the shuttle is armed as a reply slot.
	// Guarded by owner.mu.
	direct bool

	buf       []byte
	handles   []Handle
	handleCap int
	flags     Flags
	priority  uint8
	seq       uint64
	deadline  int64

	// reply is the slot a peer answers through after receiving from
	// this send shuttle.
	reply shuttleRef
	// replyTo is the sender's reply slot, recorded on receive.
	replyTo     shuttleRef
	replyHandle bool
	partner     shuttleRef
	length      int
	received    []Handle

	// subtree aggregates maintained by the port queue
	subSize     int
	subDeadline int64
}

// shuttleRef is a weak reference: it resolves only while the shuttle
// is still in the arm epoch observed when the reference was taken.
type shuttleRef struct {
	s     *Shuttle
	epoch uint32
}

func refOf(s *Shuttle) shuttleRef {
	return shuttleRef{s: s, epoch: s.epoch.Load()}
}

func (r shuttleRef) live() *Shuttle {
	if r.s == nil || r.s.epoch.Load() != r.epoch {
		return nil
	}
	return r.s
}

// ID returns the shuttle identifier within its owner's table.
func (s *Shuttle) ID() ShuttleID { return s.id }

// State returns the current state.
func (s *Shuttle) State() ShuttleState { return ShuttleState(s.state.Load()) }

func (s *Shuttle) setState(st ShuttleState) { s.state.Store(uint32(st)) }

// arm prepares an idle, completed or reset shuttle for a new role.
// The caller is the owning task holding owner.mu; the shuttle is in no
// queue.
func (s *Shuttle) arm(buf []byte, flags Flags, priority uint8, deadline int64) {
	s.epoch.Add(1)
	s.buf = buf
	s.handles = nil
	s.handleCap = 0
	s.flags = flags
	s.priority = priority
	s.deadline = deadline
	s.reply = shuttleRef{}
	s.replyTo = shuttleRef{}
	s.replyHandle = false
	s.partner = shuttleRef{}
	s.length = 0
	s.received = s.received[:0]
	s.setState(ShuttleIdle)
}

// ShuttleInfo is a snapshot of a shuttle's observable state.
type ShuttleInfo struct {
	ID      ShuttleID
	State   ShuttleState
	Len     int
	Handles []Handle
	// Replyable reports whether a reply can target this shuttle.
	Replyable bool
}

func (s *Shuttle) info() ShuttleInfo {
	in := ShuttleInfo{ID: s.id, State: s.State()}
	if in.State == ShuttleCompleted {
		in.Len = s.length
		in.Handles = append([]Handle(nil), s.received...)
		in.Replyable = s.replyTo.live() != nil
	}
	return in
}
