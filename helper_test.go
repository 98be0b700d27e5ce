// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package libos_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"code.hybscloud.com/libos"
)

var schedulers = []string{libos.SchedulerSignal, libos.SchedulerBackoff}

func newKernel(tb testing.TB, mods ...func(*libos.Config)) *libos.Kernel {
	tb.Helper()
	return newKernelWith(tb, prometheus.NewRegistry(), mods...)
}

func newKernelWith(tb testing.TB, reg *prometheus.Registry, mods ...func(*libos.Config)) *libos.Kernel {
	tb.Helper()
	cfg := libos.DefaultConfig()
	for _, m := range mods {
		m(&cfg)
	}
	k, err := libos.New(cfg,
		libos.WithLogger(zaptest.NewLogger(tb)),
		libos.WithMetrics(libos.NewMetrics(reg, cfg.Metrics.Namespace)))
	require.NoError(tb, err)
	return k
}

func withScheduler(name string) func(*libos.Config) {
	return func(c *libos.Config) { c.Scheduler = name }
}

// fixture is a server task owning a port and a client task holding a
// granted handle to it.
type fixture struct {
	k        *libos.Kernel
	reg      *prometheus.Registry
	srv, cli *libos.Task
	sp, cp   libos.Handle
}

func newFixture(tb testing.TB, opts libos.PortOptions, mods ...func(*libos.Config)) *fixture {
	tb.Helper()
	reg := prometheus.NewRegistry()
	k := newKernelWith(tb, reg, mods...)
	srv, err := k.NewTask("server")
	require.NoError(tb, err)
	cli, err := k.NewTask("client")
	require.NoError(tb, err)
	sp, err := k.PortCreate(srv, opts)
	require.NoError(tb, err)
	cp, err := k.HandleGrant(srv, sp, cli)
	require.NoError(tb, err)
	return &fixture{k: k, reg: reg, srv: srv, cli: cli, sp: sp, cp: cp}
}

func (f *fixture) shuttle(tb testing.TB, t *libos.Task) libos.ShuttleID {
	tb.Helper()
	id, err := f.k.ShuttleRegister(t)
	require.NoError(tb, err)
	return id
}

func (f *fixture) state(tb testing.TB, t *libos.Task, id libos.ShuttleID) libos.ShuttleState {
	tb.Helper()
	in, err := f.k.ShuttleStatus(t, id)
	require.NoError(tb, err)
	return in.State
}

func (f *fixture) stats(tb testing.TB) libos.PortStats {
	tb.Helper()
	st, err := f.k.PortStats(f.srv, f.sp)
	require.NoError(tb, err)
	return st
}
