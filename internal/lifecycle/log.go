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

package lifecycle

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event names written to the lifecycle log.
const (
	EventStart            = "start"
	EventProbeSpawnFailed = "probe_spawn_failed"
	EventProbeFailed      = "probe_failed"
	EventReady            = "ready"
	EventNotifyFailed     = "notify_failed"
	EventChildExit        = "child_exit"
)

// LifecycleEvent is a single record in the lifecycle log.
type LifecycleEvent struct {
	Timestamp time.Time `json:"timestamp"`
	Event     string    `json:"event"`
	RunID     string    `json:"run_id"`
	PID       int       `json:"pid,omitempty"`
	Attempt   int       `json:"attempt,omitempty"`
	ExitCode  int       `json:"exit_code,omitempty"`
	Signal    string    `json:"signal,omitempty"`
	Success   bool      `json:"success"`
	Message   string    `json:"message,omitempty"`
	Command   []string  `json:"command,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// EventLogger appends lifecycle events to a JSON-lines file. Every event
// carries the logger's run ID. A nil *EventLogger discards events.
type EventLogger struct {
	logPath string
	runID   string

	mu sync.Mutex
}

// NewEventLogger creates an event logger writing to logPath with a fresh
// run ID. It returns nil if logPath is empty.
func NewEventLogger(logPath string) *EventLogger {
	if logPath == "" {
		return nil
	}
	return &EventLogger{
		logPath: logPath,
		runID:   uuid.NewString(),
	}
}

// RunID returns the identifier stamped on every event.
func (l *EventLogger) RunID() string {
	if l == nil {
		return ""
	}
	return l.runID
}

// LogStart records that the supervised child was spawned.
func (l *EventLogger) LogStart(pid int, argv []string) error {
	return l.write(LifecycleEvent{
		Event:   EventStart,
		PID:     pid,
		Success: true,
		Message: "child started",
		Command: argv,
	})
}

// LogProbeSpawnFailed records a health check that could not be started.
func (l *EventLogger) LogProbeSpawnFailed(attempt int, err error) error {
	return l.write(LifecycleEvent{
		Event:   EventProbeSpawnFailed,
		Attempt: attempt,
		Message: "health check could not be started",
		Error:   errString(err),
	})
}

// LogProbeFailed records a health check that ran and reported failure.
func (l *EventLogger) LogProbeFailed(attempt int, status ExitStatus) error {
	ev := LifecycleEvent{
		Event:    EventProbeFailed,
		Attempt:  attempt,
		ExitCode: status.ExitCode(),
		Message:  fmt.Sprintf("health check failed (%s)", status),
	}
	if status.Signaled {
		ev.Signal = SignalName(status.Signal)
	}
	return l.write(ev)
}

// LogReady records that the child passed its health check.
func (l *EventLogger) LogReady(pid, attempt int, duration time.Duration) error {
	return l.write(LifecycleEvent{
		Event:   EventReady,
		PID:     pid,
		Attempt: attempt,
		Success: true,
		Message: fmt.Sprintf("child ready (health checks: %d, duration: %v)", attempt, duration),
	})
}

// LogNotifyFailed records a readiness notification that could not be sent.
func (l *EventLogger) LogNotifyFailed(err error) error {
	return l.write(LifecycleEvent{
		Event:   EventNotifyFailed,
		Message: "readiness notification failed",
		Error:   errString(err),
	})
}

// LogChildExit records the supervised child's exit.
func (l *EventLogger) LogChildExit(pid int, status ExitStatus, ready bool) error {
	message := "child exited during startup"
	if ready {
		message = "child exited"
	}
	ev := LifecycleEvent{
		Event:    EventChildExit,
		PID:      pid,
		ExitCode: status.ExitCode(),
		Success:  status.Success(),
		Message:  fmt.Sprintf("%s (%s)", message, status),
	}
	if status.Signaled {
		ev.Signal = SignalName(status.Signal)
	}
	return l.write(ev)
}

func (l *EventLogger) write(event LifecycleEvent) error {
	if l == nil {
		return nil
	}
	event.Timestamp = time.Now()
	event.RunID = l.runID

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(l.logPath), 0o700); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	f, err := os.OpenFile(l.logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return fmt.Errorf("failed to open lifecycle log: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write event: %w", err)
	}
	return nil
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
