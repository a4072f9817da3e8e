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

package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordProbe(t *testing.T) {
	for _, result := range []string{ProbeSuccess, ProbeFailure, ProbeSpawnError, ProbeAborted} {
		t.Run(result, func(t *testing.T) {
			before := testutil.ToFloat64(probeAttempts.WithLabelValues(result))

			RecordProbe(result)

			after := testutil.ToFloat64(probeAttempts.WithLabelValues(result))
			if after != before+1 {
				t.Errorf("expected count to increment by 1, got before=%f, after=%f", before, after)
			}
		})
	}
}

func TestRecordSignalForwarded(t *testing.T) {
	okBefore := testutil.ToFloat64(signalsForwarded.WithLabelValues("SIGHUP"))
	errBefore := testutil.ToFloat64(forwardErrors.WithLabelValues("SIGHUP"))

	RecordSignalForwarded("SIGHUP", nil)
	RecordSignalForwarded("SIGHUP", nil)
	RecordSignalForwarded("SIGHUP", errors.New("process already finished"))

	if got := testutil.ToFloat64(signalsForwarded.WithLabelValues("SIGHUP")); got != okBefore+2 {
		t.Errorf("forwarded = %f, want %f", got, okBefore+2)
	}
	if got := testutil.ToFloat64(forwardErrors.WithLabelValues("SIGHUP")); got != errBefore+1 {
		t.Errorf("forward errors = %f, want %f", got, errBefore+1)
	}
}

func TestRecordNotification(t *testing.T) {
	sentBefore := testutil.ToFloat64(notifications.WithLabelValues("sent"))
	errBefore := testutil.ToFloat64(notifications.WithLabelValues("error"))

	RecordNotification(nil)
	RecordNotification(errors.New("connection refused"))

	if got := testutil.ToFloat64(notifications.WithLabelValues("sent")); got != sentBefore+1 {
		t.Errorf("sent = %f, want %f", got, sentBefore+1)
	}
	if got := testutil.ToFloat64(notifications.WithLabelValues("error")); got != errBefore+1 {
		t.Errorf("error = %f, want %f", got, errBefore+1)
	}
}

func TestReadyGauge(t *testing.T) {
	RecordReady(2 * time.Second)
	if got := testutil.ToFloat64(ready); got != 1 {
		t.Errorf("ready = %f after RecordReady, want 1", got)
	}

	before := testutil.ToFloat64(childExits.WithLabelValues(PhaseReady))
	RecordChildExit(PhaseReady)
	if got := testutil.ToFloat64(ready); got != 0 {
		t.Errorf("ready = %f after RecordChildExit, want 0", got)
	}
	if got := testutil.ToFloat64(childExits.WithLabelValues(PhaseReady)); got != before+1 {
		t.Errorf("child exits = %f, want %f", got, before+1)
	}
}
