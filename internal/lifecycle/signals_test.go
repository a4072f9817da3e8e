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
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestEvent(t *testing.T) {
	exit := Event{Signal: unix.SIGCHLD, PID: 42}
	assert.True(t, exit.IsProcessExit())
	assert.Equal(t, "SIGCHLD from 42", exit.String())

	term := Event{Signal: syscall.SIGTERM}
	assert.False(t, term.IsProcessExit())
	assert.Equal(t, "SIGTERM", term.String())
}

func TestSignalName(t *testing.T) {
	assert.Equal(t, "SIGHUP", SignalName(syscall.SIGHUP))
	assert.Equal(t, "SIGUSR2", SignalName(syscall.SIGUSR2))
	assert.Equal(t, "<nil>", SignalName(nil))
}

func TestSignals_ProcessExited(t *testing.T) {
	s := NewSignals(4)
	defer s.Stop()

	assert.Empty(t, s.Pending())

	s.ProcessExited(10)
	s.ProcessExited(11)

	assert.Equal(t, []Event{
		{Signal: unix.SIGCHLD, PID: 10},
		{Signal: unix.SIGCHLD, PID: 11},
	}, s.Pending())
	assert.Empty(t, s.Pending())
}

func TestSignals_RelaysOSSignals(t *testing.T) {
	s := NewSignals(4, syscall.SIGUSR1)
	defer s.Stop()

	require.NoError(t, syscall.Kill(syscall.Getpid(), syscall.SIGUSR1))

	select {
	case ev := <-s.C():
		assert.Equal(t, Event{Signal: syscall.SIGUSR1}, ev)
	case <-time.After(5 * time.Second):
		t.Fatal("SIGUSR1 was not relayed")
	}
}

func TestSignals_StopUnblocksProcessExited(t *testing.T) {
	s := NewSignals(1)
	s.ProcessExited(1)

	done := make(chan struct{})
	go func() {
		s.ProcessExited(2)
		close(done)
	}()

	s.Stop()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("ProcessExited blocked after Stop")
	}

	// Stop is idempotent.
	s.Stop()
}

func TestSpawnerReportsExitsToSignals(t *testing.T) {
	s := NewSignals(4)
	defer s.Stop()

	p := startShell(t, "exit 0", s.ProcessExited)

	select {
	case ev := <-s.C():
		assert.True(t, ev.IsProcessExit())
		assert.Equal(t, p.Pid(), ev.PID)
		assert.True(t, p.Exited(), "exit events are published after the process is reaped")
	case <-time.After(5 * time.Second):
		t.Fatal("no exit event")
	}
}
