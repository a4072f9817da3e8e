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
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"golang.org/x/sys/unix"
)

// RelayedSignals are the signals a supervisor forwards to its child.
var RelayedSignals = []os.Signal{
	unix.SIGINT,
	unix.SIGTERM,
	unix.SIGUSR1,
	unix.SIGUSR2,
	unix.SIGHUP,
}

// Event is a signal delivered to the supervisor, or the exit of one of its
// processes.
type Event struct {
	Signal os.Signal

	// PID is the originating process, or 0 if unknown.
	PID int
}

// IsProcessExit reports whether the event announces that process PID has
// exited and been reaped.
func (e Event) IsProcessExit() bool {
	return e.Signal == unix.SIGCHLD
}

func (e Event) String() string {
	if e.PID != 0 {
		return fmt.Sprintf("%s from %d", SignalName(e.Signal), e.PID)
	}
	return SignalName(e.Signal)
}

// SignalName returns the conventional name of sig, such as "SIGTERM".
func SignalName(sig os.Signal) string {
	if sig == nil {
		return "<nil>"
	}
	if s, ok := sig.(syscall.Signal); ok {
		if name := unix.SignalName(s); name != "" {
			return name
		}
	}
	return sig.String()
}

// Signals delivers operating system signals and process exits as Events on
// a single channel, in the order they are observed.
type Signals struct {
	c    chan Event
	sigs chan os.Signal
	stop chan struct{}
	once sync.Once
	wg   sync.WaitGroup
}

// NewSignals starts relaying the given operating system signals. buffer is
// the number of events that may be queued before senders block.
func NewSignals(buffer int, sigs ...os.Signal) *Signals {
	s := &Signals{
		c:    make(chan Event, buffer),
		sigs: make(chan os.Signal, buffer),
		stop: make(chan struct{}),
	}
	if len(sigs) > 0 {
		signal.Notify(s.sigs, sigs...)
	}

	s.wg.Add(1)
	go s.relay()

	return s
}

func (s *Signals) relay() {
	defer s.wg.Done()
	for {
		select {
		case sig := <-s.sigs:
			select {
			case s.c <- Event{Signal: sig}:
			case <-s.stop:
				return
			}
		case <-s.stop:
			return
		}
	}
}

// C returns the event channel.
func (s *Signals) C() <-chan Event {
	return s.c
}

// Pending returns the events that are queued without blocking.
func (s *Signals) Pending() []Event {
	return Drain(s.c)
}

// ProcessExited queues an exit event for pid. It blocks while the event
// buffer is full.
func (s *Signals) ProcessExited(pid int) {
	select {
	case s.c <- Event{Signal: unix.SIGCHLD, PID: pid}:
	case <-s.stop:
	}
}

// Stop stops relaying operating system signals. Queued events remain
// readable.
func (s *Signals) Stop() {
	s.once.Do(func() {
		signal.Stop(s.sigs)
		close(s.stop)
	})
	s.wg.Wait()
}

// Drain returns every event that can be received from c without blocking.
func Drain(c <-chan Event) []Event {
	var events []Event
	for {
		select {
		case ev := <-c:
			events = append(events, ev)
		default:
			return events
		}
	}
}
