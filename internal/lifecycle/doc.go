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
Package lifecycle provides the process and signal plumbing for supervising a
child process.

# Processes

A Spawner starts processes and reaps each one from a background goroutine.
Once a process has been reaped, its exit is reported to the Spawner's
OnExit hook, which is normally Signals.ProcessExited:

	signals := lifecycle.NewSignals(32, lifecycle.RelayedSignals...)
	defer signals.Stop()

	spawner := lifecycle.NewSpawner(signals.ProcessExited)
	child, err := spawner.Start(argv, os.Environ())
	if err != nil {
	    // Handle error
	}

# Signal Events

Signals merges operating system signals and process exit notifications into
a single ordered stream of Events. Exit notifications carry SIGCHLD and the
PID of the reaped process:

	for ev := range signals.C() {
	    if ev.IsProcessExit() && ev.PID == child.Pid() {
	        status, _ := child.Wait()
	        os.Exit(status.ExitCode())
	    }
	    _ = child.Signal(ev.Signal)
	}

# PID Files

PIDFileManager writes the supervised child's PID with exclusive locking so
that external tooling can find it:

	manager := lifecycle.NewPIDFileManager("/run/app.pid")
	if err := manager.Create(child.Pid()); err != nil {
	    // Handle error
	}
	defer manager.Remove()

# Lifecycle Logging

EventLogger appends supervision events to a JSON-lines file for audit
purposes:

	events := lifecycle.NewEventLogger("/var/log/app/lifecycle.log")
	events.LogStart(child.Pid(), argv)
*/
package lifecycle
