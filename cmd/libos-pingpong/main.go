// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Command libos-pingpong measures request/reply round trips between
// two tasks of one kernel.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"code.hybscloud.com/libos"
	"code.hybscloud.com/libos/internal/logging"
)

func main() {
	opts := ParseFlags(os.Args[1:])
	if err := run(opts); err != nil {
		fmt.Fprintln(os.Stderr, "libos-pingpong:", err)
		os.Exit(1)
	}
}

func loadConfig(path string) (libos.Config, error) {
	if path == "" {
		return libos.LoadConfig()
	}
	return libos.LoadConfigFile(path)
}

func run(opts Options) error {
	cfg, err := loadConfig(opts.ConfigPath)
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	reg := prometheus.NewRegistry()
	k, err := libos.New(cfg,
		libos.WithLogger(logger),
		libos.WithMetrics(libos.NewMetrics(reg, cfg.Metrics.Namespace)),
	)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var srv *http.Server
	if opts.MetricsAddr != "" || cfg.Metrics.Enabled {
		addr := opts.MetricsAddr
		if addr == "" {
			addr = ":9090"
		}
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		srv = &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server failed", zap.Error(err))
			}
		}()
		logger.Info("serving metrics", zap.String("addr", addr))
	}

	elapsed, err := pingpong(ctx, k, opts)
	if err != nil {
		return err
	}
	logger.Info("pingpong done",
		zap.Int("rounds", opts.Rounds),
		zap.Int("payload", opts.Payload),
		zap.Duration("elapsed", elapsed),
		zap.Duration("per_round", elapsed/time.Duration(max(opts.Rounds, 1))),
	)

	if srv != nil {
		<-ctx.Done()
		shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdown)
	}
	return nil
}

// pingpong runs a server task echoing every request through Reply and
// a client task issuing opts.Rounds calls.
func pingpong(ctx context.Context, k *libos.Kernel, opts Options) (time.Duration, error) {
	server, err := k.NewTask("server")
	if err != nil {
		return 0, err
	}
	defer func() { _ = k.DestroyTask(server) }()
	client, err := k.NewTask("client")
	if err != nil {
		return 0, err
	}
	defer func() { _ = k.DestroyTask(client) }()

	sp, err := k.PortCreate(server, libos.PortOptions{})
	if err != nil {
		return 0, err
	}
	cp, err := k.HandleGrant(server, sp, client)
	if err != nil {
		return 0, err
	}

	srvDone := make(chan error, 1)
	size := max(opts.Payload, 1)
	go func() { srvDone <- serve(ctx, k, server, sp, opts.Rounds, size) }()

	send, err := k.ShuttleRegister(client)
	if err != nil {
		return 0, err
	}
	recv, err := k.ShuttleRegister(client)
	if err != nil {
		return 0, err
	}
	req := make([]byte, size)
	resp := make([]byte, size)
	start := time.Now()
	for i := range opts.Rounds {
		req[0] = byte(i)
		res, err := k.Call(ctx, client, send, cp, req, recv, resp, opts.Timeout)
		if err != nil {
			return 0, fmt.Errorf("round %d: %w", i, err)
		}
		if res.Len != len(req) || resp[0] != req[0] {
			return 0, fmt.Errorf("round %d: bad echo", i)
		}
	}
	elapsed := time.Since(start)
	return elapsed, <-srvDone
}

func serve(ctx context.Context, k *libos.Kernel, t *libos.Task, port libos.Handle, rounds, size int) error {
	in, err := k.ShuttleRegister(t)
	if err != nil {
		return err
	}
	out, err := k.ShuttleRegister(t)
	if err != nil {
		return err
	}
	buf := make([]byte, size)
	for range rounds {
		res, err := k.Recv(ctx, t, in, port, buf, libos.Infinite)
		if err != nil {
			return err
		}
		if _, err := k.Reply(t, out, in, buf[:res.Len]); err != nil {
			return err
		}
	}
	return nil
}
