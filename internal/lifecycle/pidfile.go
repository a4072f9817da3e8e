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
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

var (
	// ErrPIDFileLocked is returned when another process holds the PID file lock.
	ErrPIDFileLocked = errors.New("PID file is locked by another process")

	// ErrInvalidPID is returned when the PID file contains invalid data.
	ErrInvalidPID = errors.New("invalid PID in file")

	// ErrUnsafeDirectory is returned when the PID file parent is world-writable.
	ErrUnsafeDirectory = errors.New("PID file directory is world-writable")
)

// PIDFileManager records the supervised child's PID in a file. The file is
// held under an exclusive flock for as long as the manager owns it, so a
// leftover file from a crashed supervisor is detected as stale and reused.
type PIDFileManager struct {
	path string
	file *os.File
}

// NewPIDFileManager creates a PID file manager for the given path.
func NewPIDFileManager(path string) *PIDFileManager {
	return &PIDFileManager{path: path}
}

// Path returns the PID file path.
func (m *PIDFileManager) Path() string {
	return m.path
}

// Create locks the PID file and writes pid to it. Calling Create again
// rewrites the PID under the lock already held.
func (m *PIDFileManager) Create(pid int) error {
	if pid <= 0 {
		return fmt.Errorf("%w: PID must be positive, got %d", ErrInvalidPID, pid)
	}

	if m.file == nil {
		f, err := m.open()
		if err != nil {
			return err
		}
		m.file = f
	}

	if err := m.file.Truncate(0); err != nil {
		return fmt.Errorf("failed to truncate PID file: %w", err)
	}
	if _, err := m.file.WriteAt([]byte(strconv.Itoa(pid)+"\n"), 0); err != nil {
		return fmt.Errorf("failed to write PID: %w", err)
	}
	if err := m.file.Sync(); err != nil {
		return fmt.Errorf("failed to sync PID file: %w", err)
	}
	return nil
}

func (m *PIDFileManager) open() (*os.File, error) {
	dir := filepath.Dir(m.path)
	if err := verifyDirectorySafety(dir); err != nil {
		return nil, fmt.Errorf("unsafe PID file location: %w", err)
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create PID file directory: %w", err)
	}

	// O_NOFOLLOW refuses to write through a planted symlink.
	f, err := os.OpenFile(m.path, os.O_RDWR|os.O_CREATE|unix.O_NOFOLLOW, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open PID file: %w", err)
	}

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		if errors.Is(err, unix.EWOULDBLOCK) {
			return nil, ErrPIDFileLocked
		}
		return nil, fmt.Errorf("failed to lock PID file: %w", err)
	}
	return f, nil
}

// Read reads the PID from the file.
func (m *PIDFileManager) Read() (int, error) {
	data, err := os.ReadFile(m.path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, err
		}
		return 0, fmt.Errorf("failed to read PID file: %w", err)
	}

	pidStr := strings.TrimSpace(string(data))
	pid, err := strconv.Atoi(pidStr)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidPID, pidStr)
	}
	if pid <= 0 {
		return 0, fmt.Errorf("%w: PID must be positive, got %d", ErrInvalidPID, pid)
	}
	return pid, nil
}

// Remove deletes the PID file if this manager created it, and releases
// the lock.
func (m *PIDFileManager) Remove() error {
	if m.file == nil {
		return nil
	}

	err := os.Remove(m.path)
	unix.Flock(int(m.file.Fd()), unix.LOCK_UN)
	m.file.Close()
	m.file = nil

	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove PID file: %w", err)
	}
	return nil
}

// verifyDirectorySafety rejects world-writable directories that are not
// sticky, where another user could swap the file out from under us.
func verifyDirectorySafety(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to stat directory: %w", err)
	}

	mode := info.Mode()
	if mode&0o002 != 0 && mode&os.ModeSticky == 0 {
		return fmt.Errorf("%w: %s has mode %04o", ErrUnsafeDirectory, dir, mode&os.ModePerm)
	}
	return nil
}
