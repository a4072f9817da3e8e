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

/*
Package supervisor delays a child process's readiness notification until a
health check succeeds, and relays signals to the child for its whole life.

Startup runs a fixed cadence: sleep for one interval, start the health
check, then race the health check against the child. A failed or
unstartable health check starts the cadence over. The child exiting first
ends startup with the child's exit status, and the in-flight health check
is terminated.

Once the health check passes, READY=1 is sent on the notification socket
and the supervisor only relays signals until the child exits.
*/
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/tombee/health-notify/internal/lifecycle"
	internallog "github.com/tombee/health-notify/internal/log"
	"github.com/tombee/health-notify/internal/metrics"
	"github.com/tombee/health-notify/internal/sdnotify"
)

// DefaultInterval is the delay before each health check attempt.
const DefaultInterval = time.Second

// Process is a supervised child or health check process.
type Process interface {
	Pid() int
	Signal(sig os.Signal) error
	Wait() (lifecycle.ExitStatus, error)
}

// Spawner starts health check processes.
type Spawner interface {
	Start(argv []string, env []string) (Process, error)
}

// EventSource delivers signals and process exits to the supervisor.
type EventSource interface {
	// C returns the channel events are delivered on.
	C() <-chan lifecycle.Event

	// Pending returns the events already queued, without blocking.
	Pending() []lifecycle.Event
}

// Notifier sends readiness notifications.
type Notifier interface {
	Notify(msg string) error
}

// ChildExitError is returned by WaitForStartup when the child exits
// before its health check succeeds.
type ChildExitError struct {
	Status lifecycle.ExitStatus
}

func (e *ChildExitError) Error() string {
	return fmt.Sprintf("child exited before becoming healthy: %s", e.Status)
}

// ExitCode returns the exit code the supervisor should exit with.
func (e *ChildExitError) ExitCode() int {
	return e.Status.ExitCode()
}

// Options configures a Supervisor.
type Options struct {
	// ProbeArgv is the health check command. Required.
	ProbeArgv []string

	// ProbeEnv is the health check environment. NOTIFY_SOCKET is always
	// removed from it.
	ProbeEnv []string

	// Notifier receives READY=1 once the health check passes. A nil
	// Notifier disables notifications.
	Notifier Notifier

	// Logger receives diagnostic logs. Defaults to discarding them.
	Logger *slog.Logger

	// Events records lifecycle events. May be nil.
	Events *lifecycle.EventLogger
}

// Supervisor supervises a single child process. It is not safe for
// concurrent use.
type Supervisor struct {
	child    Process
	spawner  Spawner
	events   EventSource
	notifier Notifier
	logger   *slog.Logger
	audit    *lifecycle.EventLogger

	probeArgv []string
	probeEnv  []string
	interval  time.Duration

	started     time.Time
	attempt     int
	probe       Process
	childStatus lifecycle.ExitStatus
}

// New creates a supervisor for an already started child.
func New(child Process, spawner Spawner, events EventSource, opts Options) (*Supervisor, error) {
	if child == nil {
		return nil, errors.New("child process is required")
	}
	if len(opts.ProbeArgv) == 0 {
		return nil, errors.New("health check command is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = internallog.Discard()
	}
	notifier := opts.Notifier
	if notifier == nil {
		notifier = (*sdnotify.Notifier)(nil)
	}

	return &Supervisor{
		child:     child,
		spawner:   spawner,
		events:    events,
		notifier:  notifier,
		logger:    logger.With(slog.Int(internallog.ChildPIDKey, child.Pid())),
		audit:     opts.Events,
		probeArgv: opts.ProbeArgv,
		probeEnv:  lifecycle.WithoutEnv(opts.ProbeEnv, sdnotify.EnvVar),
		interval:  DefaultInterval,
	}, nil
}

// Run waits for the child to become healthy, sends the readiness
// notification and relays signals until the child exits. It returns the
// exit code the supervisor should exit with.
func (s *Supervisor) Run(ctx context.Context) int {
	if err := s.WaitForStartup(ctx); err != nil {
		var exitErr *ChildExitError
		if errors.As(err, &exitErr) {
			return exitErr.ExitCode()
		}
		s.logger.Warn("startup interrupted", internallog.Error(err))
		return 1
	}

	// Best effort: the child keeps running even if the manager never hears.
	err := s.notifier.Notify(sdnotify.Ready)
	metrics.RecordNotification(err)
	if err != nil {
		s.logger.Warn("failed to send readiness notification", internallog.Error(err))
		s.audit.LogNotifyFailed(err)
	}

	return s.PropagateSignals(ctx)
}

// ExecSpawner adapts a lifecycle.Spawner to the Spawner interface.
func ExecSpawner(spawner *lifecycle.Spawner) Spawner {
	return execSpawner{spawner: spawner}
}

type execSpawner struct {
	spawner *lifecycle.Spawner
}

func (e execSpawner) Start(argv []string, env []string) (Process, error) {
	p, err := e.spawner.Start(argv, env)
	if err != nil {
		return nil, err
	}
	return p, nil
}
