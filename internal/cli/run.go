// Copyright 2025 Tom Barlow
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

package cli

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/tombee/health-notify/internal/config"
	"github.com/tombee/health-notify/internal/lifecycle"
	internallog "github.com/tombee/health-notify/internal/log"
	"github.com/tombee/health-notify/internal/metrics"
	"github.com/tombee/health-notify/internal/sdnotify"
	"github.com/tombee/health-notify/internal/supervisor"
)

const (
	// eventBuffer bounds the signals and process exits queued for the
	// supervisor.
	eventBuffer = 64

	metricsShutdownTimeout = 5 * time.Second
)

// run starts the child and supervises it until it exits.
func run(ctx context.Context, cfg *config.Config, childArgv, checkArgv []string) error {
	logger := internallog.New(cfg.Logger())

	// NOTIFY_SOCKET is removed from our environment so neither the child
	// nor the health check inherit it by accident.
	notifier := sdnotify.Take()
	defer notifier.Close()
	if !notifier.Enabled() {
		logger.Debug("NOTIFY_SOCKET is not set, readiness notifications are disabled")
	}

	signals := lifecycle.NewSignals(eventBuffer, lifecycle.RelayedSignals...)
	defer signals.Stop()
	spawner := lifecycle.NewSpawner(signals.ProcessExited)

	childEnv := os.Environ()
	if cfg.ChildNotify && notifier.Enabled() {
		childEnv = lifecycle.WithEnv(childEnv, sdnotify.EnvVar, notifier.Addr())
	}

	child, err := spawner.Start(childArgv, childEnv)
	if err != nil {
		return NewStartError("failed to start child program", err)
	}

	events := lifecycle.NewEventLogger(cfg.EventLog)
	logger = internallog.WithRunID(logger, events.RunID())
	if err := events.LogStart(child.Pid(), childArgv); err != nil {
		logger.Warn("failed to write event log", internallog.Error(err))
	}

	if cfg.PIDFile != "" {
		pidFile := lifecycle.NewPIDFileManager(cfg.PIDFile)
		if err := pidFile.Create(child.Pid()); err != nil {
			logger.Warn("failed to write PID file", slog.String("path", cfg.PIDFile), internallog.Error(err))
		} else {
			defer pidFile.Remove()
		}
	}

	if cfg.MetricsAddr != "" {
		stop := serveMetrics(cfg.MetricsAddr, logger)
		defer stop()
	}

	sup, err := supervisor.New(child, supervisor.ExecSpawner(spawner), signals, supervisor.Options{
		ProbeArgv: checkArgv,
		ProbeEnv:  os.Environ(),
		Notifier:  notifier,
		Logger:    internallog.WithComponent(logger, "supervisor"),
		Events:    events,
	})
	if err != nil {
		child.Signal(os.Kill)
		child.Wait()
		return NewStartError("failed to supervise child program", err)
	}

	return childExit(sup.Run(ctx))
}

// serveMetrics starts the metrics endpoint and returns a function that
// stops it. A listen failure is logged and leaves metrics unserved.
func serveMetrics(addr string, logger *slog.Logger) func() {
	logger = internallog.WithComponent(logger, "metrics")

	srv, err := metrics.Listen(addr, logger)
	if err != nil {
		logger.Warn("failed to start metrics server", internallog.Error(err))
		return func() {}
	}
	srv.Start()
	logger.Info("serving metrics", slog.String("addr", srv.Addr()))

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), metricsShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Warn("failed to stop metrics server", internallog.Error(err))
		}
	}
}
