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

package supervisor

import (
	"context"
	"fmt"
	"log/slog"
	"syscall"
	"time"

	"github.com/tombee/health-notify/internal/lifecycle"
	internallog "github.com/tombee/health-notify/internal/log"
	"github.com/tombee/health-notify/internal/metrics"
	"github.com/tombee/health-notify/internal/sdnotify"
)

type state int

const (
	stateSleeping state = iota
	stateProbeStarting
	stateRacing
	stateReady
	stateChildExited
)

func (s state) String() string {
	switch s {
	case stateSleeping:
		return "sleeping"
	case stateProbeStarting:
		return "probe_starting"
	case stateRacing:
		return "racing"
	case stateReady:
		return "ready"
	case stateChildExited:
		return "child_exited"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// WaitForStartup runs health checks until one succeeds or the child exits.
// It returns nil once the child is healthy, a *ChildExitError if the child
// exited first, or the context's error if ctx is done.
func (s *Supervisor) WaitForStartup(ctx context.Context) error {
	s.started = time.Now()

	st := stateSleeping
	for {
		s.logger.Debug("startup state", slog.String("state", st.String()), slog.Int(internallog.AttemptKey, s.attempt))

		var err error
		switch st {
		case stateSleeping:
			st, err = s.sleep(ctx)
		case stateProbeStarting:
			st = s.startProbe()
		case stateRacing:
			st, err = s.race(ctx)
		case stateReady:
			elapsed := time.Since(s.started)
			s.logger.Info("child is healthy",
				slog.Int(internallog.AttemptKey, s.attempt),
				internallog.Duration("startup", elapsed.Milliseconds()))
			metrics.RecordReady(elapsed)
			s.audit.LogReady(s.child.Pid(), s.attempt, elapsed)
			return nil
		case stateChildExited:
			s.logger.Info("child exited during startup", slog.String(internallog.StatusKey, s.childStatus.String()))
			metrics.RecordChildExit(metrics.PhaseStartup)
			s.audit.LogChildExit(s.child.Pid(), s.childStatus, false)
			return &ChildExitError{Status: s.childStatus}
		}
		if err != nil {
			return err
		}
	}
}

// sleep waits one interval, relaying signals meanwhile. Signals do not
// restart the interval.
func (s *Supervisor) sleep(ctx context.Context) (state, error) {
	timer := time.NewTimer(s.interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return stateSleeping, ctx.Err()
		case ev := <-s.events.C():
			if s.handle(s.batch(ev)).childExited {
				return stateChildExited, nil
			}
		case <-timer.C:
			// Anything already queued is handled before the health check
			// starts, so a dead child is never probed.
			if s.handle(s.events.Pending()).childExited {
				return stateChildExited, nil
			}
			return stateProbeStarting, nil
		}
	}
}

func (s *Supervisor) startProbe() state {
	s.attempt++
	logger := s.logger.With(slog.Int(internallog.AttemptKey, s.attempt))

	probe, err := s.spawner.Start(s.probeArgv, s.probeEnv)
	if err != nil {
		logger.Warn("failed to start health check", internallog.Error(err))
		metrics.RecordProbe(metrics.ProbeSpawnError)
		s.audit.LogProbeSpawnFailed(s.attempt, err)
		return stateSleeping
	}

	s.probe = probe
	logger.Debug("health check started", slog.Int(internallog.ProbePIDKey, probe.Pid()))
	s.notifyStatus(fmt.Sprintf("waiting for health check (attempt %d)", s.attempt))
	return stateRacing
}

// race waits for either the health check or the child to exit.
func (s *Supervisor) race(ctx context.Context) (state, error) {
	for {
		var ev lifecycle.Event
		select {
		case <-ctx.Done():
			s.abortProbe()
			return stateRacing, ctx.Err()
		case ev = <-s.events.C():
		}

		result := s.handle(s.batch(ev))
		switch {
		case result.childExited:
			// The child's exit wins even if the health check also finished.
			s.abortProbe()
			return stateChildExited, nil
		case result.probeExited:
			return s.finishProbe(), nil
		}
	}
}

func (s *Supervisor) finishProbe() state {
	probe := s.probe
	s.probe = nil
	logger := s.logger.With(slog.Int(internallog.AttemptKey, s.attempt), slog.Int(internallog.ProbePIDKey, probe.Pid()))

	status, err := probe.Wait()
	if err == nil && status.Success() {
		metrics.RecordProbe(metrics.ProbeSuccess)
		return stateReady
	}

	if err != nil {
		logger.Debug("failed to reap health check", internallog.Error(err))
	}
	logger.Debug("health check failed", slog.String(internallog.StatusKey, status.String()))
	metrics.RecordProbe(metrics.ProbeFailure)
	s.audit.LogProbeFailed(s.attempt, status)
	return stateSleeping
}

// abortProbe terminates and reaps the in-flight health check, if any.
func (s *Supervisor) abortProbe() {
	if s.probe == nil {
		return
	}
	probe := s.probe
	s.probe = nil

	if err := probe.Signal(syscall.SIGTERM); err != nil {
		s.logger.Debug("failed to terminate health check", slog.Int(internallog.ProbePIDKey, probe.Pid()), internallog.Error(err))
	}
	probe.Wait()
	metrics.RecordProbe(metrics.ProbeAborted)
}

func (s *Supervisor) notifyStatus(text string) {
	if err := s.notifier.Notify(sdnotify.Status(text)); err != nil {
		s.logger.Debug("failed to send status notification", internallog.Error(err))
	}
}
