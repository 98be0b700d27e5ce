// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package libos

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Kernel is the IPC core context. Every entry point goes through a
// Kernel; independent kernels share nothing.
type Kernel struct {
	cfg     Config
	log     *zap.Logger
	metrics *Metrics
	sched   Scheduler
	serial  Serial

	// mu guards the task and port arenas.
	mu    sync.Mutex
	tasks table[*Task]
	ports table[*Port]
}

// Option configures a Kernel.
type Option func(*Kernel)

// WithLogger sets the kernel logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(k *Kernel) { k.log = l }
}

// WithMetrics sets the metrics sink. The default is unregistered.
func WithMetrics(m *Metrics) Option {
	return func(k *Kernel) { k.metrics = m }
}

// WithScheduler overrides the scheduler chosen by Config.Scheduler.
func WithScheduler(s Scheduler) Option {
	return func(k *Kernel) { k.sched = s }
}

// New creates a kernel sized by cfg.
func New(cfg Config, opts ...Option) (*Kernel, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	k := &Kernel{cfg: cfg, serial: nextSerial()}
	for _, o := range opts {
		o(k)
	}
	if k.log == nil {
		k.log = zap.NewNop()
	}
	if k.metrics == nil {
		k.metrics = NewMetrics(nil, cfg.Metrics.Namespace)
	}
	if k.sched == nil {
		s, err := schedulerByName(cfg.Scheduler)
		if err != nil {
			return nil, err
		}
		k.sched = s
	}
	k.tasks.init(cfg.MaxTasks)
	k.ports.init(cfg.MaxPorts)
	k.log = k.log.With(zap.Uint32("kernel", k.serial))
	return k, nil
}

// Serial returns the serial number assigned to this kernel.
func (k *Kernel) Serial() Serial { return k.serial }

// Config returns the configuration the kernel was created with.
func (k *Kernel) Config() Config { return k.cfg }

// NewTask creates a task with empty handle and shuttle tables.
func (k *Kernel) NewTask(name string) (*Task, error) {
	t := newTask(k, name)
	k.mu.Lock()
	id, ok := k.tasks.alloc(t)
	k.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: task table full", ErrBadState)
	}
	t.id = id
	k.log.Debug("task created", zap.String("task", name), zap.Uint32("id", id))
	return t, nil
}

// DestroyTask tears t down: every shuttle it owns is failed with the
// reset state, waking any wait of t still parked, then every handle it
// holds is released. Ports owned by t are closed and the reply slots of
// callers t received from are failed, so waiters of other tasks see
// ErrPeerClosed. It may be called from any goroutine.
func (k *Kernel) DestroyTask(t *Task) error {
	t.mu.Lock()
	if t.dead {
		t.mu.Unlock()
		return ErrInvalidHandle
	}
	t.dead = true
	var (
		owned []*Shuttle
		slots []shuttleRef
	)
	t.shuttles.each(func(_ uint32, s *Shuttle) {
		owned = append(owned, s)
		if s.State() == ShuttleCompleted && s.replyTo.s != nil {
			slots = append(slots, s.replyTo)
		}
	})
	t.mu.Unlock()

	for _, s := range owned {
		k.reset(s, ShuttleReset, false)
		// stale every outstanding weak reference
		s.epoch.Add(1)
	}
	k.sched.Unpark(t)
	// callers still waiting for an answer from t never get one
	for _, r := range slots {
		k.failSlot(r)
	}

	t.mu.Lock()
	var held []*Port
	t.handles.each(func(id uint32, p *Port) {
		held = append(held, p)
		t.handles.release(id)
	})
	t.mu.Unlock()
	for _, p := range held {
		k.releasePort(p)
	}

	k.mu.Lock()
	var owns []*Port
	k.ports.each(func(_ uint32, p *Port) {
		if p.owner == t {
			owns = append(owns, p)
		}
	})
	k.tasks.release(t.id)
	k.mu.Unlock()
	for _, p := range owns {
		k.closePort(p, "owner destroyed")
	}
	k.log.Debug("task destroyed", zap.String("task", t.name), zap.Int("ports", len(owns)))
	return nil
}

// PortCreate creates a port owned by t and returns t's handle to it.
func (k *Kernel) PortCreate(t *Task, opts PortOptions) (Handle, error) {
	p := newPort(t, opts)
	p.refs = 1
	k.mu.Lock()
	id, ok := k.ports.alloc(p)
	k.mu.Unlock()
	if !ok {
		return 0, fmt.Errorf("%w: port table full", ErrBadState)
	}
	p.id = id

	t.mu.Lock()
	var h uint32
	err := ErrInvalidHandle
	if !t.dead {
		if h, ok = t.handles.alloc(p); ok {
			err = nil
		} else {
			err = fmt.Errorf("%w: handle table full", ErrBadState)
		}
	}
	t.mu.Unlock()
	if err != nil {
		k.mu.Lock()
		k.ports.release(id)
		k.mu.Unlock()
		return 0, err
	}
	k.metrics.portsOpen.Inc()
	k.log.Debug("port created", zap.String("task", t.name), zap.Uint32("port", id),
		zap.Bool("transfer", opts.AllowTransfer))
	return Handle(h), nil
}

// HandleDup adds another handle in t for the port h names.
func (k *Kernel) HandleDup(t *Task, h Handle) (Handle, error) {
	return k.HandleGrant(t, h, t)
}

// HandleGrant installs in to a new handle for the port h names in
// from. It is the boot-time path for seeding tasks with ports; running
// tasks pass handles in messages instead.
func (k *Kernel) HandleGrant(from *Task, h Handle, to *Task) (Handle, error) {
	p, err := from.port(h)
	if err != nil {
		return 0, err
	}
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return 0, ErrPeerClosed
	}
	p.refs++
	p.mu.Unlock()

	to.mu.Lock()
	var nh uint32
	ok := !to.dead
	if ok {
		nh, ok = to.handles.alloc(p)
	}
	to.mu.Unlock()
	if !ok {
		k.releasePort(p)
		return 0, fmt.Errorf("%w: cannot install handle", ErrBadState)
	}
	return Handle(nh), nil
}

// HandleClose releases t's handle h. The port is destroyed when its
// last handle goes, after failing all of its waiters with ErrPeerClosed.
func (k *Kernel) HandleClose(t *Task, h Handle) error {
	t.mu.Lock()
	if t.dead {
		t.mu.Unlock()
		return ErrInvalidHandle
	}
	p, ok := t.handles.release(uint32(h))
	t.mu.Unlock()
	if !ok {
		return ErrInvalidHandle
	}
	k.releasePort(p)
	return nil
}

// releasePort drops one reference to p.
func (k *Kernel) releasePort(p *Port) {
	p.mu.Lock()
	p.refs--
	last := p.refs == 0
	p.mu.Unlock()
	if last {
		k.closePort(p, "last handle closed")
		k.mu.Lock()
		k.ports.release(p.id)
		k.mu.Unlock()
		k.metrics.portsOpen.Dec()
	}
}

// closePort marks p closed and fails every queued shuttle.
func (k *Kernel) closePort(p *Port, reason string) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	failed, slots := p.drain()
	p.mu.Unlock()
	for _, s := range failed {
		s.owner.notify(s)
	}
	for _, r := range slots {
		k.failSlot(r)
	}
	k.metrics.peerClosed.Add(float64(len(failed)))
	k.metrics.queued.Sub(float64(len(failed)))
	if len(failed) > 0 {
		k.log.Info("port closed with waiters", zap.Uint32("port", p.id),
			zap.String("reason", reason), zap.Int("failed", len(failed)))
	}
}

// PortStats reports the queue state of the port h names in t.
func (k *Kernel) PortStats(t *Task, h Handle) (PortStats, error) {
	p, err := t.port(h)
	if err != nil {
		return PortStats{}, err
	}
	return p.stats(), nil
}

// ShuttleRegister reserves a free shuttle in t's fixed table.
func (k *Kernel) ShuttleRegister(t *Task) (ShuttleID, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.dead {
		return 0, ErrInvalidHandle
	}
	id, ok := t.shuttles.allocWith(func(i int) *Shuttle { return &t.slab[i] })
	if !ok {
		return 0, fmt.Errorf("%w: shuttle table full", ErrBadState)
	}
	s := &t.slab[id&indexMask]
	s.id = ShuttleID(id)
	s.setState(ShuttleIdle)
	return s.id, nil
}

// ShuttleStatus returns a snapshot of the shuttle id of t.
func (k *Kernel) ShuttleStatus(t *Task, id ShuttleID) (ShuttleInfo, error) {
	s, err := t.shuttle(id)
	if err != nil {
		return ShuttleInfo{}, err
	}
	return s.info(), nil
}

// ShuttleReset cancels the queue membership of shuttle id of t.
// It reports true when a membership was cancelled and false when
// there was none, in particular when the shuttle already completed.
func (k *Kernel) ShuttleReset(t *Task, id ShuttleID) (bool, error) {
	s, err := t.shuttle(id)
	if err != nil {
		return false, err
	}
	return k.reset(s, ShuttleIdle, true), nil
}

// PollCompletion returns the next queued shuttle of t that a peer
// completed, or iox.ErrWouldBlock when there is none. Only t's own
// goroutine may poll.
func (k *Kernel) PollCompletion(t *Task) (ShuttleID, error) {
	return t.ring.Dequeue()
}

// reset cancels the membership of s, wherever it is queued, and
// leaves it in state to. With idle set, a shuttle failed by a closing
// port returns to idle.
func (k *Kernel) reset(s *Shuttle, to ShuttleState, idle bool) bool {
	for {
		if p := s.port.Load(); p != nil {
			p.mu.Lock()
			if s.port.Load() != p {
				p.mu.Unlock()
				continue
			}
			p.unlink(s)
			detach(s, to)
			p.mu.Unlock()
			k.metrics.resets.Inc()
			k.metrics.queued.Dec()
			return true
		}
		o := s.owner
		o.mu.Lock()
		if s.port.Load() != nil {
			o.mu.Unlock()
			continue
		}
		if s.direct {
			s.direct = false
			s.setState(to)
			o.mu.Unlock()
			k.metrics.resets.Inc()
			return true
		}
		if idle && s.State() == ShuttleReset {
			s.setState(ShuttleIdle)
		}
		o.mu.Unlock()
		return false
	}
}
