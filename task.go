// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package libos

import (
	"math/bits"
	"sync"

	"code.hybscloud.com/lfq"
)

// Task is an isolated unit of execution as seen by the IPC core.
// It owns a fixed table of shuttles and a table of port handles.
//
// Kernel calls naming a task must come from that task's own goroutine,
// one at a time, except DestroyTask; the kernel serializes everything
// else.
type Task struct {
	k    *Kernel
	id   uint32
	name string

	// mu guards handles, dead, shuttles armed as reply slots, and the
	// commit of a new request to any of its shuttles.
	mu       sync.Mutex
	handles  table[*Port]
	dead     bool
	slab     []Shuttle
	shuttles table[*Shuttle]

	// ring carries ids of queued shuttles completed by peers.
	// Producers are serialized by ringMu; the owner is the only consumer.
	ringMu sync.Mutex
	ring   lfq.SPSC[ShuttleID]

	wake chan struct{}
	sc   syscallContext
}

func newTask(k *Kernel, name string) *Task {
	cfg := &k.cfg
	t := &Task{
		k:    k,
		name: name,
		slab: make([]Shuttle, cfg.ShuttlesPerTask),
		wake: make(chan struct{}, 1),
	}
	t.handles.init(cfg.HandlesPerTask)
	t.shuttles.init(cfg.ShuttlesPerTask)
	t.ring.Init(ringCapacity(cfg.CompletionRing))
	t.sc = syscallContext{k: k, t: t}
	for i := range t.slab {
		s := &t.slab[i]
		s.owner = t
		s.node.Value = s
		s.deadline = noDeadline
	}
	return t
}

// ringCapacity rounds n up to a power of two, minimum 2.
func ringCapacity(n int) int {
	if n <= 2 {
		return 2
	}
	return 1 << bits.Len(uint(n-1))
}

// ID returns the task identifier in its kernel.
func (t *Task) ID() uint32 { return t.id }

// Name returns the name the task was created with.
func (t *Task) Name() string { return t.name }

// Kernel returns the kernel the task lives in.
func (t *Task) Kernel() *Kernel { return t.k }

// shuttle resolves id in t's shuttle table.
func (t *Task) shuttle(id ShuttleID) (*Shuttle, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.dead {
		return nil, ErrInvalidHandle
	}
	s, ok := t.shuttles.get(uint32(id))
	if !ok {
		return nil, ErrInvalidHandle
	}
	return s, nil
}

// port resolves h in t's handle table.
func (t *Task) port(h Handle) (*Port, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.dead {
		return nil, ErrInvalidHandle
	}
	p, ok := t.handles.get(uint32(h))
	if !ok {
		return nil, ErrInvalidHandle
	}
	return p, nil
}

// notify records that a queued shuttle of t completed and wakes t.
func (t *Task) notify(s *Shuttle) {
	t.ringMu.Lock()
	id := s.id
	// A full ring drops the event; the shuttle state stays authoritative.
	_ = t.ring.Enqueue(&id)
	t.ringMu.Unlock()
	t.k.sched.Unpark(t)
}

// lockPair locks a and b in task id order. a and b may be equal.
func lockPair(a, b *Task) {
	switch {
	case a == b:
		a.mu.Lock()
	case a.id < b.id:
		a.mu.Lock()
		b.mu.Lock()
	default:
		b.mu.Lock()
		a.mu.Lock()
	}
}

func unlockPair(a, b *Task) {
	a.mu.Unlock()
	if a != b {
		b.mu.Unlock()
	}
}

// moveHandles moves up to limit handles named in hs from one task to
// another and returns the receiver's new handles. Names that no longer
// resolve are skipped. Both task locks must be held.
func moveHandles(from, to *Task, hs []Handle, limit int, out []Handle) []Handle {
	n := min(len(hs), limit, to.handles.available())
	for _, h := range hs {
		if n == 0 {
			break
		}
		p, ok := from.handles.release(uint32(h))
		if !ok {
			continue
		}
		id, _ := to.handles.alloc(p)
		out = append(out, Handle(id))
		n--
	}
	return out
}
