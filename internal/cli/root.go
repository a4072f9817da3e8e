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

package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/tombee/health-notify/internal/config"
)

// Version information, set from main.
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

// SetVersion sets the version information (called from main)
func SetVersion(v, c, b string) {
	version = v
	commit = c
	buildDate = b
}

// GetVersion returns version information
func GetVersion() (string, string, string) {
	return version, commit, buildDate
}

// flags holds the values of the root command's flags.
type flags struct {
	configPath  string
	childNotify bool
	logLevel    string
	logFormat   string
	eventLog    string
	pidFile     string
	metricsAddr string
}

// NewRootCommand creates the health-notify command.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&flags{})
}

func newRootCommand(f *flags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "health-notify [flags] CHILD_PROGRAM [ARG...] ';' CHECK_PROGRAM [ARG...]",
		Short: "Delay a service's readiness notification until its health check passes",
		Long: `health-notify runs CHILD_PROGRAM under a service manager that uses the
sd_notify protocol, and runs CHECK_PROGRAM once a second until it exits
successfully. Only then is READY=1 sent on NOTIFY_SOCKET.

Signals received by health-notify are forwarded to the child, and
health-notify exits with the child's exit code.`,
		Example: `  health-notify my-server --port 8080 \; curl -fsS http://localhost:8080/healthz`,
		Args:    cobra.ArbitraryArgs,
		Version: version,

		SilenceUsage:  true, // Don't show usage on errors
		SilenceErrors: true, // We handle errors ourselves for proper exit codes

		RunE: func(cmd *cobra.Command, args []string) error {
			child, check, err := SplitCommands(args)
			if err != nil {
				return NewUsageError(err.Error(), nil)
			}
			cfg, err := f.load(cmd.Flags())
			if err != nil {
				return NewUsageError("invalid configuration", err)
			}
			return run(cmd.Context(), cfg, child, check)
		},
	}

	cmd.SetVersionTemplate(fmt.Sprintf("health-notify %s (commit %s, built %s)\n", version, commit, buildDate))
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return NewUsageError(err.Error(), nil)
	})

	fs := cmd.Flags()
	fs.SetInterspersed(false)
	fs.BoolVar(&f.childNotify, "child-notify", false, "Pass NOTIFY_SOCKET through to the child program")
	fs.StringVar(&f.configPath, "config", "", "Path to a YAML config file")
	fs.StringVar(&f.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	fs.StringVar(&f.logFormat, "log-format", "", "Log format (text, json)")
	fs.StringVar(&f.eventLog, "event-log", "", "Append lifecycle events as JSON lines to this file")
	fs.StringVar(&f.pidFile, "pid-file", "", "Write the child's PID to this file")
	fs.StringVar(&f.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")

	return cmd
}

// load reads the config file and environment, then applies any flags that
// were set explicitly.
func (f *flags) load(fs *pflag.FlagSet) (*config.Config, error) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return nil, err
	}

	fs.Visit(func(fl *pflag.Flag) {
		switch fl.Name {
		case "child-notify":
			cfg.ChildNotify = f.childNotify
		case "log-level":
			cfg.Log.Level = strings.ToLower(f.logLevel)
		case "log-format":
			cfg.Log.Format = strings.ToLower(f.logFormat)
		case "event-log":
			cfg.EventLog = f.eventLog
		case "pid-file":
			cfg.PIDFile = f.pidFile
		case "metrics-addr":
			cfg.MetricsAddr = f.metricsAddr
		}
	})

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Execute runs the root command with args and returns the exit code.
func Execute(args []string, stdout, stderr io.Writer) int {
	cmd := NewRootCommand()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.Execute()
	if err != nil {
		if msg := err.Error(); msg != "" {
			fmt.Fprintln(stderr, "Error:", msg)
		}
	}
	return ExitCode(err)
}
