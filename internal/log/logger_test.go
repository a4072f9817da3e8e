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

package log

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"strings"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Level != "warn" {
		t.Errorf("expected default level 'warn', got %q", cfg.Level)
	}
	if cfg.Format != FormatText {
		t.Errorf("expected default format 'text', got %q", cfg.Format)
	}
	if cfg.Output != os.Stderr {
		t.Errorf("expected default output to be os.Stderr")
	}
	if cfg.AddSource {
		t.Errorf("expected default AddSource to be false")
	}
}

func TestFromEnv(t *testing.T) {
	tests := []struct {
		name       string
		envVars    map[string]string
		wantLevel  string
		wantFormat Format
		wantSource bool
	}{
		{
			name:       "defaults when no env vars",
			envVars:    map[string]string{},
			wantLevel:  "warn",
			wantFormat: FormatText,
		},
		{
			name:       "LOG_LEVEL=INFO (case insensitive)",
			envVars:    map[string]string{"LOG_LEVEL": "INFO"},
			wantLevel:  "info",
			wantFormat: FormatText,
		},
		{
			name: "HEALTH_NOTIFY_LOG_LEVEL overrides LOG_LEVEL",
			envVars: map[string]string{
				"HEALTH_NOTIFY_LOG_LEVEL": "error",
				"LOG_LEVEL":               "info",
			},
			wantLevel:  "error",
			wantFormat: FormatText,
		},
		{
			name: "HEALTH_NOTIFY_DEBUG takes precedence",
			envVars: map[string]string{
				"HEALTH_NOTIFY_DEBUG":     "1",
				"HEALTH_NOTIFY_LOG_LEVEL": "error",
			},
			wantLevel:  "debug",
			wantFormat: FormatText,
			wantSource: true,
		},
		{
			name:       "LOG_FORMAT=JSON",
			envVars:    map[string]string{"LOG_FORMAT": "JSON"},
			wantLevel:  "warn",
			wantFormat: FormatJSON,
		},
		{
			name: "HEALTH_NOTIFY_LOG_FORMAT overrides LOG_FORMAT",
			envVars: map[string]string{
				"HEALTH_NOTIFY_LOG_FORMAT": "text",
				"LOG_FORMAT":               "json",
			},
			wantLevel:  "warn",
			wantFormat: FormatText,
		},
		{
			name:       "LOG_SOURCE=1",
			envVars:    map[string]string{"LOG_SOURCE": "1"},
			wantLevel:  "warn",
			wantFormat: FormatText,
			wantSource: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, key := range []string{"HEALTH_NOTIFY_DEBUG", "HEALTH_NOTIFY_LOG_LEVEL", "HEALTH_NOTIFY_LOG_FORMAT", "LOG_LEVEL", "LOG_FORMAT", "LOG_SOURCE"} {
				t.Setenv(key, "")
			}
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}

			cfg := FromEnv()
			if cfg.Level != tt.wantLevel {
				t.Errorf("expected level %q, got %q", tt.wantLevel, cfg.Level)
			}
			if cfg.Format != tt.wantFormat {
				t.Errorf("expected format %q, got %q", tt.wantFormat, cfg.Format)
			}
			if cfg.AddSource != tt.wantSource {
				t.Errorf("expected AddSource %v, got %v", tt.wantSource, cfg.AddSource)
			}
		})
	}
}

func TestApplyEnv_KeepsUnsetFields(t *testing.T) {
	for _, key := range []string{"HEALTH_NOTIFY_DEBUG", "HEALTH_NOTIFY_LOG_LEVEL", "HEALTH_NOTIFY_LOG_FORMAT", "LOG_LEVEL", "LOG_FORMAT", "LOG_SOURCE"} {
		t.Setenv(key, "")
	}
	t.Setenv("LOG_LEVEL", "error")

	cfg := &Config{Level: "info", Format: FormatJSON}
	ApplyEnv(cfg)

	if cfg.Level != "error" {
		t.Errorf("expected level 'error', got %q", cfg.Level)
	}
	if cfg.Format != FormatJSON {
		t.Errorf("expected format to stay 'json', got %q", cfg.Format)
	}
}

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&Config{Level: "info", Format: FormatJSON, Output: &buf})

	logger.Debug("hidden")
	logger.Info("child is healthy", slog.Int(AttemptKey, 2))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected 1 log line, got %d: %q", len(lines), buf.String())
	}

	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("failed to parse log line: %v", err)
	}
	if entry["msg"] != "child is healthy" {
		t.Errorf("unexpected msg %v", entry["msg"])
	}
	if entry[AttemptKey] != float64(2) {
		t.Errorf("expected attempt 2, got %v", entry[AttemptKey])
	}
}

func TestNew_TextDefaultsToWarn(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&Config{Output: &buf})

	logger.Info("hidden")
	logger.Warn("failed to send readiness notification", Error(errors.New("boom")))

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info record should be filtered at the default level: %q", out)
	}
	if !strings.Contains(out, "error=boom") {
		t.Errorf("expected error attribute in %q", out)
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelWarn,
	}
	for in, want := range tests {
		if got := parseLevel(in); got != want {
			t.Errorf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestValidate(t *testing.T) {
	for _, level := range []string{"debug", "Info", "warning", "error"} {
		if err := ValidateLevel(level); err != nil {
			t.Errorf("ValidateLevel(%q): %v", level, err)
		}
	}
	if err := ValidateLevel("verbose"); err == nil {
		t.Error("expected error for unknown level")
	}

	if err := ValidateFormat("JSON"); err != nil {
		t.Errorf("ValidateFormat(JSON): %v", err)
	}
	if err := ValidateFormat("yaml"); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestContextHelpers(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&Config{Level: "debug", Format: FormatJSON, Output: &buf})

	WithRunID(WithComponent(logger, "supervisor"), "run-1").Debug("tagged")
	WithRunID(logger, "").Debug("untagged")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}

	var tagged, untagged map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &tagged); err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal([]byte(lines[1]), &untagged); err != nil {
		t.Fatal(err)
	}
	if tagged[ComponentKey] != "supervisor" || tagged[RunIDKey] != "run-1" {
		t.Errorf("missing context fields: %v", tagged)
	}
	if _, ok := untagged[RunIDKey]; ok {
		t.Errorf("empty run ID should not be attached: %v", untagged)
	}
}

func TestDiscard(t *testing.T) {
	logger := Discard()
	if logger.Enabled(context.Background(), slog.LevelError) {
		t.Error("discard logger should not be enabled at any level")
	}
	logger.Error("dropped")
}

func TestDuration(t *testing.T) {
	attr := Duration("startup", 1500)
	if attr.Key != "startup_ms" || attr.Value.Int64() != 1500 {
		t.Errorf("unexpected attr %v", attr)
	}
}
