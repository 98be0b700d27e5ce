// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package main

import (
	"flag"
	"time"
)

// Options holds CLI options.
type Options struct {
	ConfigPath  string
	Rounds      int
	Payload     int
	Timeout     time.Duration
	MetricsAddr string
}

// ParseFlags parses CLI flags from args and returns Options.
func ParseFlags(args []string) Options {
	fs := flag.NewFlagSet("libos-pingpong", flag.ExitOnError)
	var opts Options
	fs.StringVar(&opts.ConfigPath, "config", "", "Path to YAML config file (default: LIBOS_* environment)")
	fs.IntVar(&opts.Rounds, "rounds", 10000, "Number of request/reply round trips")
	fs.IntVar(&opts.Payload, "payload", 64, "Request payload size in bytes")
	fs.DurationVar(&opts.Timeout, "timeout", time.Second, "Per-call wait timeout")
	fs.StringVar(&opts.MetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address and keep running")
	_ = fs.Parse(args)
	return opts
}
