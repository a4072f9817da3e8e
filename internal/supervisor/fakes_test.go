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
	"errors"
	"os"
	"sync"
	"time"

	"github.com/tombee/health-notify/internal/lifecycle"
	"github.com/tombee/health-notify/internal/sdnotify"
	"golang.org/x/sys/unix"
)

const testTimeout = 5 * time.Second

type fakeEvents struct {
	c chan lifecycle.Event
}

func newFakeEvents() *fakeEvents {
	return &fakeEvents{c: make(chan lifecycle.Event, 64)}
}

func (f *fakeEvents) C() <-chan lifecycle.Event { return f.c }

func (f *fakeEvents) Pending() []lifecycle.Event { return lifecycle.Drain(f.c) }

func (f *fakeEvents) signal(sig os.Signal) {
	f.c <- lifecycle.Event{Signal: sig}
}

func (f *fakeEvents) exit(pid int) {
	f.c <- lifecycle.Event{Signal: unix.SIGCHLD, PID: pid}
}

type fakeProcess struct {
	pid int

	mu        sync.Mutex
	status    lifecycle.ExitStatus
	signalErr error
	received  []os.Signal
	waits     int

	signaled chan os.Signal
}

func newFakeProcess(pid int, status lifecycle.ExitStatus) *fakeProcess {
	return &fakeProcess{
		pid:      pid,
		status:   status,
		signaled: make(chan os.Signal, 64),
	}
}

func (p *fakeProcess) Pid() int { return p.pid }

func (p *fakeProcess) Signal(sig os.Signal) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.received = append(p.received, sig)
	p.signaled <- sig
	return p.signalErr
}

func (p *fakeProcess) Wait() (lifecycle.ExitStatus, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.waits++
	return p.status, nil
}

func (p *fakeProcess) signals() []os.Signal {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]os.Signal(nil), p.received...)
}

func (p *fakeProcess) waitCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.waits
}

// outcome scripts a single health check attempt.
type outcome struct {
	// spawnErr makes Start fail.
	spawnErr error

	// status is the health check's exit status.
	status lifecycle.ExitStatus

	// hang keeps the health check running until the test ends it.
	hang bool

	// childExitsToo queues the child's exit right behind the health
	// check's, so both land in the same batch.
	childExitsToo bool
}

type fakeSpawner struct {
	events   *fakeEvents
	childPid int
	script   []outcome

	mu      sync.Mutex
	nextPid int
	envs    [][]string
	argvs   [][]string
	probes  []*fakeProcess
	started chan *fakeProcess
}

func newFakeSpawner(events *fakeEvents, childPid int, script ...outcome) *fakeSpawner {
	return &fakeSpawner{
		events:   events,
		childPid: childPid,
		script:   script,
		nextPid:  1000,
		started:  make(chan *fakeProcess, 64),
	}
}

func (f *fakeSpawner) Start(argv []string, env []string) (Process, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	attempt := len(f.argvs)
	f.argvs = append(f.argvs, argv)
	f.envs = append(f.envs, env)

	o := outcome{hang: true}
	if attempt < len(f.script) {
		o = f.script[attempt]
	}
	if o.spawnErr != nil {
		return nil, o.spawnErr
	}

	f.nextPid++
	p := newFakeProcess(f.nextPid, o.status)
	f.probes = append(f.probes, p)

	if !o.hang {
		f.events.exit(p.pid)
	}
	if o.childExitsToo {
		f.events.exit(f.childPid)
	}
	f.started <- p
	return p, nil
}

func (f *fakeSpawner) attempts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.argvs)
}

func (f *fakeSpawner) probeList() []*fakeProcess {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*fakeProcess(nil), f.probes...)
}

type fakeNotifier struct {
	mu       sync.Mutex
	messages []string
	err      error
	ready    chan struct{}
	once     sync.Once
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{ready: make(chan struct{})}
}

func (n *fakeNotifier) Notify(msg string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, msg)
	if msg == sdnotify.Ready {
		n.once.Do(func() { close(n.ready) })
	}
	return n.err
}

func (n *fakeNotifier) readyCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	count := 0
	for _, m := range n.messages {
		if m == sdnotify.Ready {
			count++
		}
	}
	return count
}

var errNoSuchProgram = errors.New("no such program")
