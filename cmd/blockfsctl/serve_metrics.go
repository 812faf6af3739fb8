// Copyright 2025 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/osdev-course/blockfs/clock"
	"github.com/osdev-course/blockfs/internal/bcache"
	"github.com/osdev-course/blockfs/internal/logger"
	"github.com/osdev-course/blockfs/internal/metrics"
)

// serveMetricsCmd is the one long-running subcommand: it keeps a cache open
// with the real periodic-flush timer running and exposes its counters over
// HTTP until interrupted, supervised by an errgroup the same way
// internal/bcache supervises its own periodic-flush goroutine.
var serveMetricsCmd = &cobra.Command{
	Use:   "serve-metrics",
	Short: "Open the image and serve Prometheus metrics until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.MetricsAddr == "" {
			return fmt.Errorf("blockfsctl: --metrics-addr is required for serve-metrics")
		}

		dev, err := openDevice(false)
		if err != nil {
			return err
		}
		defer dev.Close()

		reg := prometheus.NewRegistry()
		handle := metrics.NewHandle(reg)
		cache := bcache.New(dev, cfg.CacheCapacity, clock.RealClock{}, cfg.FlushInterval, handle)
		defer cache.Shutdown()

		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		srv := &http.Server{Addr: cfg.MetricsAddr, Handler: mux}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			logger.Infof("serving metrics on %s", cfg.MetricsAddr)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithCancel(context.Background())
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})

		if err := g.Wait(); err != nil {
			return err
		}
		return cache.Flush()
	},
}
