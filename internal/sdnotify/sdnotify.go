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

// Package sdnotify sends service state notifications using the systemd
// notification protocol.
//
// The notification socket address is taken from the NOTIFY_SOCKET
// environment variable. Supervisors should capture it once at startup with
// Take so that processes they spawn do not inherit it by accident:
//
//	notifier := sdnotify.Take()
//	...
//	_ = notifier.Notify(sdnotify.Ready)
//
// A nil *Notifier is valid and represents a disabled channel.
package sdnotify

import (
	"fmt"
	"net"
	"os"

	"github.com/tombee/health-notify/internal/lazy"
)

// EnvVar is the environment variable holding the notification socket address.
const EnvVar = "NOTIFY_SOCKET"

// Common notification messages.
const (
	Ready    = "READY=1"
	Stopping = "STOPPING=1"
)

// Status formats a free-form status notification.
func Status(text string) string {
	return "STATUS=" + text
}

// Notifier sends datagrams to a notification socket. The socket is opened
// on first use; failed opens are retried on later calls.
type Notifier struct {
	addr string
	conn lazy.FailInit[*net.UnixConn]
}

// New returns a Notifier for addr, or nil if addr is empty.
// Addresses starting with '@' refer to the Linux abstract namespace.
func New(addr string) *Notifier {
	if addr == "" {
		return nil
	}
	return &Notifier{addr: addr}
}

// FromEnv returns a Notifier for the address in NOTIFY_SOCKET, leaving the
// environment untouched. It returns nil if the variable is unset or empty.
func FromEnv() *Notifier {
	return New(os.Getenv(EnvVar))
}

// Take is like FromEnv but also removes NOTIFY_SOCKET from the process
// environment.
func Take() *Notifier {
	n := FromEnv()
	os.Unsetenv(EnvVar)
	return n
}

// Enabled reports whether n will send notifications.
func (n *Notifier) Enabled() bool {
	return n != nil
}

// Addr returns the notification socket address.
func (n *Notifier) Addr() string {
	if n == nil {
		return ""
	}
	return n.addr
}

// Notify sends msg as a single datagram. It is a no-op on a nil Notifier.
func (n *Notifier) Notify(msg string) error {
	if n == nil {
		return nil
	}

	conn, err := n.conn.GetOrCreate(n.dial)
	if err != nil {
		return err
	}

	if _, err := conn.Write([]byte(msg)); err != nil {
		return fmt.Errorf("failed to send notification: %w", err)
	}
	return nil
}

// Close closes the socket if it was opened.
func (n *Notifier) Close() error {
	if n == nil {
		return nil
	}
	if conn, ok := n.conn.Get(); ok {
		return conn.Close()
	}
	return nil
}

func (n *Notifier) dial() (*net.UnixConn, error) {
	conn, err := net.DialUnix("unixgram", nil, &net.UnixAddr{Name: n.addr, Net: "unixgram"})
	if err != nil {
		return nil, fmt.Errorf("failed to open notification socket %s: %w", n.addr, err)
	}
	return conn, nil
}
