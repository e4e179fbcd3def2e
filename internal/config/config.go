// Package config loads run configuration files.
//
// A configuration declares one test as shell commands: the actions of each
// phase, the trace monitors, an optional stability probe and an optional
// state dump used by tags. Files are YAML with strict field checking and are
// validated against an embedded CUE schema before use.
//
//	test_name: open-settings
//	repetitions: 3
//	transitions:
//	  - adb shell am start -W com.android.settings
//	monitors:
//	  - name: wm
//	    start: ./trace.sh start
//	    stop: ./trace.sh stop "$FLICKER_MONITOR_OUTPUT"
//	    output: out/wm.yaml
package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultShell runs every configured command.
const DefaultShell = "/bin/sh"

// Config is one test declared as shell commands.
type Config struct {
	TestName    string `yaml:"test_name" json:"test_name"`
	OutputDir   string `yaml:"output_dir" json:"output_dir,omitempty"`
	Repetitions int    `yaml:"repetitions" json:"repetitions,omitempty"`
	Shell       string `yaml:"shell" json:"shell,omitempty"`

	// Timeout bounds each command, e.g. "30s". Empty means no limit.
	Timeout string `yaml:"timeout" json:"timeout,omitempty"`

	TestSetup          []string `yaml:"test_setup" json:"test_setup,omitempty"`
	TransitionSetup    []string `yaml:"transition_setup" json:"transition_setup,omitempty"`
	Transitions        []string `yaml:"transitions" json:"transitions,omitempty"`
	TransitionTeardown []string `yaml:"transition_teardown" json:"transition_teardown,omitempty"`
	TestTeardown       []string `yaml:"test_teardown" json:"test_teardown,omitempty"`

	Monitors []MonitorConfig `yaml:"monitors" json:"monitors,omitempty"`

	// Stable is polled after setup and before teardown; it must exit 0 once
	// the device is idle.
	Stable string `yaml:"stable" json:"stable,omitempty"`

	Snapshot *SnapshotConfig `yaml:"snapshot" json:"snapshot,omitempty"`

	// Suites are checked against every parsed trace after the run.
	Suites []string `yaml:"suites" json:"suites,omitempty"`

	// dir is the directory of the file the config was loaded from. Relative
	// paths resolve against it.
	dir string
}

// MonitorConfig declares a trace monitor. A monitor without Output produces
// no trace of its own.
type MonitorConfig struct {
	Name   string `yaml:"name" json:"name"`
	Start  string `yaml:"start" json:"start"`
	Stop   string `yaml:"stop" json:"stop"`
	Output string `yaml:"output" json:"output,omitempty"`
}

// SnapshotConfig declares the commands that dump window and layer state to
// stdout when a tag is created.
type SnapshotConfig struct {
	Window string `yaml:"window" json:"window"`
	Layer  string `yaml:"layer" json:"layer"`
}

// Load reads, parses and validates a config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	cfg.dir = filepath.Dir(path)
	return cfg, nil
}

// Parse parses and validates config YAML. Relative paths resolve against
// the working directory.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// shell returns the configured shell or DefaultShell.
func (c *Config) shell() string {
	if c.Shell == "" {
		return DefaultShell
	}
	return c.Shell
}

func (c *Config) repetitions() int {
	if c.Repetitions == 0 {
		return 1
	}
	return c.Repetitions
}

func (c *Config) timeout() time.Duration {
	if c.Timeout == "" {
		return 0
	}
	// Validate has already checked the format.
	d, _ := time.ParseDuration(c.Timeout)
	return d
}

// Path resolves p against the config file's directory.
func (c *Config) Path(p string) string {
	if p == "" || filepath.IsAbs(p) || c.dir == "" {
		return p
	}
	return filepath.Join(c.dir, p)
}

// OutputPath is where run artifacts are written.
func (c *Config) OutputPath() string {
	if c.OutputDir == "" {
		return c.Path("out")
	}
	return c.Path(c.OutputDir)
}

// SuitePaths returns the suite files, resolved.
func (c *Config) SuitePaths() []string {
	out := make([]string, len(c.Suites))
	for i, s := range c.Suites {
		out[i] = c.Path(s)
	}
	return out
}
