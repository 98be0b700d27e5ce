// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package libos

import (
	"context"
	"fmt"
	"time"

	"code.hybscloud.com/iox"
)

// Scheduler names accepted by Config.Scheduler.
const (
	SchedulerBackoff = "backoff"
	SchedulerSignal  = "signal"
)

// Scheduler suspends a task in its wait phase.
type Scheduler interface {
	// Park returns nil once ready reports true, ErrTimeout once a
	// non-zero deadline passes, or ctx.Err() once ctx is done.
	Park(ctx context.Context, t *Task, ready func() bool, deadline time.Time) error
	// Unpark is called after a queued shuttle of t completes.
	Unpark(t *Task)
}

func schedulerByName(name string) (Scheduler, error) {
	switch name {
	case SchedulerBackoff:
		return BackoffScheduler{}, nil
	case SchedulerSignal, "":
		return SignalScheduler{}, nil
	}
	return nil, fmt.Errorf("%w: unknown scheduler %q", ErrBadState, name)
}

// BackoffScheduler polls with adaptive backoff (iox.Backoff) and
// ignores wakeups.
type BackoffScheduler struct{}

func (BackoffScheduler) Park(ctx context.Context, _ *Task, ready func() bool, deadline time.Time) error {
	var bo iox.Backoff
	for !ready() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !deadline.IsZero() && !time.Now().Before(deadline) {
			return ErrTimeout
		}
		bo.Wait()
	}
	return nil
}

func (BackoffScheduler) Unpark(*Task) {}

// SignalScheduler sleeps on the task's wake channel.
type SignalScheduler struct{}

func (SignalScheduler) Park(ctx context.Context, t *Task, ready func() bool, deadline time.Time) error {
	var expired <-chan time.Time
	if !deadline.IsZero() {
		tm := time.NewTimer(time.Until(deadline))
		defer tm.Stop()
		expired = tm.C
	}
	for !ready() {
		select {
		case <-t.wake:
		case <-ctx.Done():
			return ctx.Err()
		case <-expired:
			if ready() {
				return nil
			}
			return ErrTimeout
		}
	}
	return nil
}

func (SignalScheduler) Unpark(t *Task) {
	select {
	case t.wake <- struct{}{}:
	default:
	}
}
