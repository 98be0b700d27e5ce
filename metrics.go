// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package libos

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the kernel's Prometheus collectors.
type Metrics struct {
	rendezvous prometheus.Counter
	enqueued   prometheus.Counter
	wouldBlock prometheus.Counter
	timeouts   prometheus.Counter
	resets     prometheus.Counter
	peerClosed prometheus.Counter
	handles    prometheus.Counter
	bytes      prometheus.Counter

	queued    prometheus.Gauge
	portsOpen prometheus.Gauge
}

// NewMetrics creates the kernel collectors and registers them with reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer, namespace string) *Metrics {
	f := promauto.With(reg)
	counter := func(name, help string) prometheus.Counter {
		return f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ipc",
			Name:      name,
			Help:      help,
		})
	}
	gauge := func(name, help string) prometheus.Gauge {
		return f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ipc",
			Name:      name,
			Help:      help,
		})
	}
	return &Metrics{
		rendezvous: counter("rendezvous_total", "Completed sender/receiver pairings"),
		enqueued:   counter("enqueued_total", "Shuttles queued on a port"),
		wouldBlock: counter("would_block_total", "Non-blocking phases that found no peer"),
		timeouts:   counter("timeouts_total", "Wait phases that expired or were cancelled"),
		resets:     counter("resets_total", "Queue memberships cancelled"),
		peerClosed: counter("peer_closed_total", "Shuttles and reply slots failed by a closing port or a destroyed peer"),
		handles:    counter("handles_moved_total", "Handles moved between tasks"),
		bytes:      counter("bytes_total", "Payload bytes delivered"),
		queued:     gauge("queued", "Shuttles currently waiting"),
		portsOpen:  gauge("ports_open", "Ports currently allocated"),
	}
}
