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

// Package metrics exposes Prometheus metrics for the supervisor.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Health check outcomes.
const (
	ProbeSuccess    = "success"
	ProbeFailure    = "failure"
	ProbeSpawnError = "spawn_error"
	ProbeAborted    = "aborted"
)

// Supervision phases.
const (
	PhaseStartup = "startup"
	PhaseReady   = "ready"
)

var (
	// probeAttempts tracks health check attempts by outcome
	probeAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "health_notify_probe_attempts_total",
			Help: "Total health check attempts by result",
		},
		[]string{"result"},
	)

	// signalsForwarded tracks signals relayed to the child
	signalsForwarded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "health_notify_signals_forwarded_total",
			Help: "Total signals forwarded to the supervised child by signal name",
		},
		[]string{"signal"},
	)

	// forwardErrors tracks signals that could not be delivered
	forwardErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "health_notify_signal_forward_errors_total",
			Help: "Total signals that could not be forwarded by signal name",
		},
		[]string{"signal"},
	)

	// notifications tracks readiness notifications
	notifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "health_notify_notifications_total",
			Help: "Total readiness notifications by result",
		},
		[]string{"result"},
	)

	// childExits tracks child exits by supervision phase
	childExits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "health_notify_child_exits_total",
			Help: "Total supervised child exits by phase",
		},
		[]string{"phase"},
	)

	// ready is 1 once the child has passed its health check
	ready = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "health_notify_ready",
			Help: "Whether the supervised child has been declared ready",
		},
	)

	// startupDuration tracks time from supervision start to readiness
	startupDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "health_notify_startup_duration_seconds",
			Help:    "Time from child start until its health check first succeeded",
			Buckets: []float64{1, 2, 5, 10, 30, 60, 120, 300, 600},
		},
	)
)

// RecordProbe increments the health check counter for result.
func RecordProbe(result string) {
	probeAttempts.WithLabelValues(result).Inc()
}

// RecordSignalForwarded records a forwarding attempt for signal.
func RecordSignalForwarded(signal string, err error) {
	if err != nil {
		forwardErrors.WithLabelValues(signal).Inc()
		return
	}
	signalsForwarded.WithLabelValues(signal).Inc()
}

// RecordNotification records the outcome of a readiness notification.
func RecordNotification(err error) {
	result := "sent"
	if err != nil {
		result = "error"
	}
	notifications.WithLabelValues(result).Inc()
}

// RecordChildExit records the supervised child exiting during phase.
func RecordChildExit(phase string) {
	childExits.WithLabelValues(phase).Inc()
	ready.Set(0)
}

// RecordReady marks the child ready and observes how long startup took.
func RecordReady(startup time.Duration) {
	ready.Set(1)
	startupDuration.Observe(startup.Seconds())
}
