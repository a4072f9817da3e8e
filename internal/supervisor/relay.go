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
	"log/slog"

	"github.com/tombee/health-notify/internal/lifecycle"
	internallog "github.com/tombee/health-notify/internal/log"
	"github.com/tombee/health-notify/internal/metrics"
)

type batchResult struct {
	childExited bool
	probeExited bool
}

// batch returns first followed by every event already queued behind it.
func (s *Supervisor) batch(first lifecycle.Event) []lifecycle.Event {
	return append([]lifecycle.Event{first}, s.events.Pending()...)
}

// handle processes one batch of events. The child's exit is looked for
// before anything in the batch is forwarded; once the child has exited it
// is reaped and nothing more is forwarded, since its PID may be reused.
func (s *Supervisor) handle(events []lifecycle.Event) batchResult {
	var result batchResult

	childPid := s.child.Pid()
	for _, ev := range events {
		if ev.IsProcessExit() && ev.PID == childPid {
			s.reapChild()
			result.childExited = true
			return result
		}
	}

	for _, ev := range events {
		if ev.IsProcessExit() {
			if s.probe != nil && ev.PID == s.probe.Pid() {
				result.probeExited = true
			}
			continue
		}
		s.forward(ev)
	}
	return result
}

// forward relays a signal to the child. Failures are not fatal.
func (s *Supervisor) forward(ev lifecycle.Event) {
	name := lifecycle.SignalName(ev.Signal)

	err := s.child.Signal(ev.Signal)
	metrics.RecordSignalForwarded(name, err)
	if err != nil {
		s.logger.Debug("failed to forward signal", slog.String(internallog.SignalKey, name), internallog.Error(err))
		return
	}
	s.logger.Debug("forwarded signal", slog.String(internallog.SignalKey, name))
}

func (s *Supervisor) reapChild() {
	status, err := s.child.Wait()
	if err != nil {
		s.logger.Warn("failed to reap child", internallog.Error(err))
	}
	s.childStatus = status
}

// PropagateSignals relays signals to the child until it exits, then returns
// the exit code the supervisor should exit with. If ctx is done first it
// returns 1.
func (s *Supervisor) PropagateSignals(ctx context.Context) int {
	for {
		select {
		case <-ctx.Done():
			return 1
		case ev := <-s.events.C():
			if s.handle(s.batch(ev)).childExited {
				s.logger.Info("child exited", slog.String(internallog.StatusKey, s.childStatus.String()))
				metrics.RecordChildExit(metrics.PhaseReady)
				s.audit.LogChildExit(s.child.Pid(), s.childStatus, true)
				return s.childStatus.ExitCode()
			}
		}
	}
}
