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

// Package config loads health-notify settings from a YAML file and the
// environment. Command-line flags are applied on top by the CLI.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	internallog "github.com/tombee/health-notify/internal/log"
)

// EnvPrefix is the prefix of every environment variable read by Load.
const EnvPrefix = "HEALTH_NOTIFY"

var (
	// ErrInvalidConfig is returned when configuration validation fails.
	ErrInvalidConfig = errors.New("config: invalid configuration")
)

// Config represents the complete health-notify configuration.
type Config struct {
	// ChildNotify passes NOTIFY_SOCKET through to the child.
	// Environment: HEALTH_NOTIFY_CHILD_NOTIFY
	ChildNotify bool `yaml:"child_notify" split_words:"true"`

	// EventLog is the path of the JSON-lines lifecycle event log.
	// Environment: HEALTH_NOTIFY_EVENT_LOG
	EventLog string `yaml:"event_log" split_words:"true"`

	// PIDFile is where the child's PID is written once it is spawned.
	// Environment: HEALTH_NOTIFY_PID_FILE
	PIDFile string `yaml:"pid_file" split_words:"true"`

	// MetricsAddr is the listen address of the Prometheus endpoint.
	// Environment: HEALTH_NOTIFY_METRICS_ADDR
	MetricsAddr string `yaml:"metrics_addr" split_words:"true"`

	Log LogConfig `yaml:"log"`
}

// LogConfig configures diagnostic logging.
type LogConfig struct {
	// Level sets the minimum log level (debug, info, warn, error).
	// Environment: HEALTH_NOTIFY_LOG_LEVEL, LOG_LEVEL
	// Default: warn
	Level string `yaml:"level"`

	// Format sets the output format (json, text).
	// Environment: HEALTH_NOTIFY_LOG_FORMAT, LOG_FORMAT
	// Default: text
	Format string `yaml:"format"`

	// AddSource adds source file and line information to logs.
	// Environment: HEALTH_NOTIFY_LOG_ADD_SOURCE, LOG_SOURCE
	AddSource bool `yaml:"add_source" split_words:"true"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	defaults := internallog.DefaultConfig()
	return &Config{
		Log: LogConfig{
			Level:  defaults.Level,
			Format: string(defaults.Format),
		},
	}
}

// Load builds a configuration from defaults, the YAML file at configPath
// and the environment, in increasing order of precedence. An empty
// configPath skips the file.
func Load(configPath string) (*Config, error) {
	cfg := Default()

	if configPath != "" {
		if err := cfg.loadFromFile(configPath); err != nil {
			return nil, fmt.Errorf("failed to load config from %s: %w", configPath, err)
		}
	}

	if err := cfg.loadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load config from environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadFromFile loads configuration from a YAML file.
func (c *Config) loadFromFile(path string) error {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(home, path[2:])
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}

	return nil
}

// loadFromEnv applies HEALTH_NOTIFY_* variables, then the logging
// variables understood by internal/log.
func (c *Config) loadFromEnv() error {
	if err := envconfig.Process(EnvPrefix, c); err != nil {
		return err
	}

	lc := c.Logger()
	internallog.ApplyEnv(lc)
	c.Log.Level = strings.ToLower(lc.Level)
	c.Log.Format = strings.ToLower(string(lc.Format))
	c.Log.AddSource = lc.AddSource
	return nil
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	var errs []string

	if err := internallog.ValidateLevel(c.Log.Level); err != nil {
		errs = append(errs, "log.level: "+err.Error())
	}
	if err := internallog.ValidateFormat(c.Log.Format); err != nil {
		errs = append(errs, "log.format: "+err.Error())
	}
	if c.MetricsAddr != "" {
		if _, _, err := net.SplitHostPort(c.MetricsAddr); err != nil {
			errs = append(errs, fmt.Sprintf("metrics_addr %q must be host:port: %v", c.MetricsAddr, err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w:\n  - %s", ErrInvalidConfig, strings.Join(errs, "\n  - "))
	}

	return nil
}

// Logger returns the logging configuration in the form internal/log uses.
func (c *Config) Logger() *internallog.Config {
	cfg := internallog.DefaultConfig()
	cfg.Level = c.Log.Level
	cfg.Format = internallog.Format(c.Log.Format)
	cfg.AddSource = c.Log.AddSource
	return cfg
}
