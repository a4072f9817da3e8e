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
	"errors"
	"fmt"
	"os"
	"os/exec"
	"syscall"
)

// ErrNotReaped is returned by Process.Wait when the process could not be
// waited on and no exit status is available.
var ErrNotReaped = errors.New("process exit status unavailable")

// ExitStatus describes how a process exited.
type ExitStatus struct {
	// Code is the exit code, or -1 if the process did not exit normally.
	Code int

	// Signaled is true if the process was terminated by a signal.
	Signaled bool

	// Signal is the terminating signal when Signaled is true.
	Signal os.Signal
}

// Success reports whether the process exited normally with status 0.
func (s ExitStatus) Success() bool {
	return !s.Signaled && s.Code == 0
}

// ExitCode returns the exit code to propagate for the process. A process
// that was killed by a signal, or whose status is unknown, yields 1.
func (s ExitStatus) ExitCode() int {
	if s.Signaled || s.Code < 0 {
		return 1
	}
	return s.Code
}

func (s ExitStatus) String() string {
	if s.Signaled {
		return fmt.Sprintf("killed by %s", SignalName(s.Signal))
	}
	if s.Code < 0 {
		return "exit status unknown"
	}
	return fmt.Sprintf("exit status %d", s.Code)
}

func exitStatusOf(state *os.ProcessState) ExitStatus {
	if state == nil {
		return ExitStatus{Code: -1}
	}
	status := ExitStatus{Code: state.ExitCode()}
	if ws, ok := state.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		status.Signaled = true
		status.Signal = ws.Signal()
	}
	return status
}

// Process is a handle to a process started by a Spawner. The process is
// reaped exactly once, by a goroutine owned by the handle.
type Process struct {
	cmd  *exec.Cmd
	done chan struct{}

	// Set before done is closed.
	status ExitStatus
	err    error
}

// Pid returns the process ID.
func (p *Process) Pid() int {
	return p.cmd.Process.Pid
}

// Signal sends sig to the process. It returns os.ErrProcessDone once the
// process has been reaped.
func (p *Process) Signal(sig os.Signal) error {
	if p.Exited() {
		return os.ErrProcessDone
	}
	if err := p.cmd.Process.Signal(sig); err != nil {
		return fmt.Errorf("failed to send %s to process %d: %w", SignalName(sig), p.Pid(), err)
	}
	return nil
}

// Wait blocks until the process has been reaped and returns its exit
// status. It may be called any number of times.
func (p *Process) Wait() (ExitStatus, error) {
	<-p.done
	return p.status, p.err
}

// Exited reports whether the process has been reaped.
func (p *Process) Exited() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

func (p *Process) reap(onExit func(pid int)) {
	// A non-nil error with a ProcessState is just a non-zero exit.
	err := p.cmd.Wait()
	p.status = exitStatusOf(p.cmd.ProcessState)
	if p.cmd.ProcessState == nil {
		p.err = fmt.Errorf("%w: %v", ErrNotReaped, err)
	}
	close(p.done)

	if onExit != nil {
		onExit(p.cmd.Process.Pid)
	}
}
