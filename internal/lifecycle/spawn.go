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
	"io"
	"os"
	"os/exec"
	"strings"
)

// ErrEmptyCommand is returned when Start is called without a program.
var ErrEmptyCommand = errors.New("empty command")

// Spawner starts supervised processes. Spawned processes share the
// spawner's standard streams.
type Spawner struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	// OnExit is called with the PID of each process after it has been
	// reaped. It is called from the reaping goroutine.
	OnExit func(pid int)
}

// NewSpawner creates a spawner that inherits the current process's
// standard streams and reports exits to onExit.
func NewSpawner(onExit func(pid int)) *Spawner {
	return &Spawner{
		Stdin:  os.Stdin,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
		OnExit: onExit,
	}
}

// Start runs argv[0] with the remaining arguments and the given
// environment. A nil env runs the process with an empty environment.
func (s *Spawner) Start(argv []string, env []string) (*Process, error) {
	if len(argv) == 0 || argv[0] == "" {
		return nil, ErrEmptyCommand
	}

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Env = env
	if cmd.Env == nil {
		cmd.Env = []string{}
	}
	cmd.Stdin = s.Stdin
	cmd.Stdout = s.Stdout
	cmd.Stderr = s.Stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start %s: %w", argv[0], err)
	}

	p := &Process{
		cmd:  cmd,
		done: make(chan struct{}),
	}
	go p.reap(s.OnExit)

	return p, nil
}

// WithoutEnv returns a copy of env with every entry for the given keys removed.
func WithoutEnv(env []string, keys ...string) []string {
	out := make([]string, 0, len(env))
	for _, kv := range env {
		name, _, _ := strings.Cut(kv, "=")
		drop := false
		for _, key := range keys {
			if name == key {
				drop = true
				break
			}
		}
		if !drop {
			out = append(out, kv)
		}
	}
	return out
}

// WithEnv returns a copy of env with key set to value, replacing any
// existing entries for key.
func WithEnv(env []string, key, value string) []string {
	return append(WithoutEnv(env, key), key+"="+value)
}
