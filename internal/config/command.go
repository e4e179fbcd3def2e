package config

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/roach88/flicker/internal/runner"
	"github.com/roach88/flicker/internal/trace"
)

// Environment variables passed to commands.
const (
	EnvTestName      = "FLICKER_TEST_NAME"
	EnvIteration     = "FLICKER_ITERATION"
	EnvOutputDir     = "FLICKER_OUTPUT_DIR"
	EnvMonitor       = "FLICKER_MONITOR"
	EnvMonitorOutput = "FLICKER_MONITOR_OUTPUT"
)

// CommandError is a command that exited unsuccessfully.
type CommandError struct {
	Command string
	Output  string
	Err     error
}

func (e *CommandError) Error() string {
	out := strings.TrimSpace(e.Output)
	if out == "" {
		return fmt.Sprintf("command %q: %v", e.Command, e.Err)
	}
	return fmt.Sprintf("command %q: %v: %s", e.Command, e.Err, out)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// Shell runs command lines through a shell.
type Shell struct {
	Path    string
	Dir     string
	Timeout time.Duration
	Logger  *slog.Logger
}

func (s Shell) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return s.Logger
}

// Output runs command and returns its stdout. Stderr is included in the
// error when the command fails.
func (s Shell) Output(ctx context.Context, command string, env ...string) ([]byte, error) {
	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}
	path := s.Path
	if path == "" {
		path = DefaultShell
	}
	cmd := exec.CommandContext(ctx, path, "-c", command)
	cmd.Dir = s.Dir
	cmd.Env = append(os.Environ(), env...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	s.logger().Debug("command finished", "command", command, "duration", time.Since(start), "error", err)
	if err != nil {
		return stdout.Bytes(), &CommandError{Command: command, Output: stderr.String(), Err: err}
	}
	return stdout.Bytes(), nil
}

// CommandAction is a runner action backed by a command line. The command
// sees the test name, iteration and output directory in its environment.
type CommandAction struct {
	Shell     Shell
	Command   string
	OutputDir string
}

func (a CommandAction) Run(ctx context.Context, h *runner.Handle) error {
	shell := a.Shell
	shell.Logger = h.Logger()
	_, err := shell.Output(ctx, a.Command,
		EnvTestName+"="+h.TestName(),
		EnvIteration+"="+strconv.Itoa(h.Iteration()),
		EnvOutputDir+"="+a.OutputDir,
	)
	return err
}

// CommandMonitor starts and stops a recorder with two commands. It
// produces no trace of its own; see FileMonitor.
type CommandMonitor struct {
	Shell    Shell
	ID       string
	StartCmd string
	StopCmd  string
}

func (m *CommandMonitor) Name() string {
	return m.ID
}

func (m *CommandMonitor) Start(ctx context.Context) error {
	_, err := m.Shell.Output(ctx, m.StartCmd, m.env()...)
	return err
}

func (m *CommandMonitor) Stop(ctx context.Context) error {
	_, err := m.Shell.Output(ctx, m.StopCmd, m.env()...)
	return err
}

// ProducesNoTrace marks the monitor as trace-less.
func (m *CommandMonitor) ProducesNoTrace() {}

func (m *CommandMonitor) env() []string {
	return []string{EnvMonitor + "=" + m.ID}
}

// FileMonitor is a recorder whose stop command writes a trace document to
// Output, which the command sees as FLICKER_MONITOR_OUTPUT.
type FileMonitor struct {
	Shell    Shell
	ID       string
	StartCmd string
	StopCmd  string
	Output   string
}

func (m *FileMonitor) Name() string {
	return m.ID
}

func (m *FileMonitor) Start(ctx context.Context) error {
	_, err := m.Shell.Output(ctx, m.StartCmd, m.env()...)
	return err
}

func (m *FileMonitor) Stop(ctx context.Context) error {
	if err := os.MkdirAll(filepath.Dir(m.Output), 0o755); err != nil {
		return fmt.Errorf("create monitor output dir: %w", err)
	}
	_, err := m.Shell.Output(ctx, m.StopCmd, m.env()...)
	return err
}

// OutputFile is where the stop command writes the trace.
func (m *FileMonitor) OutputFile() string {
	return m.Output
}

func (m *FileMonitor) env() []string {
	return []string{EnvMonitor + "=" + m.ID, EnvMonitorOutput + "=" + m.Output}
}

// CommandStateSync polls a probe command until it exits 0.
type CommandStateSync struct {
	Shell    Shell
	Command  string
	Interval time.Duration
	Limit    time.Duration
}

// ErrNotStable is returned when the probe never succeeds within the limit.
var ErrNotStable = errors.New("device did not become stable")

func (s CommandStateSync) WaitForStable(ctx context.Context) error {
	interval := s.Interval
	if interval <= 0 {
		interval = 250 * time.Millisecond
	}
	if s.Limit > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Limit)
		defer cancel()
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	var last error
	for {
		_, err := s.Shell.Output(ctx, s.Command)
		if err == nil {
			return nil
		}
		last = err
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %w", ErrNotStable, errors.Join(ctx.Err(), last))
		case <-ticker.C:
		}
	}
}

// CommandSnapshotSource captures state dumps from the stdout of two
// commands.
type CommandSnapshotSource struct {
	Shell  Shell
	Window string
	Layer  string
}

func (s CommandSnapshotSource) Capture(ctx context.Context) ([]byte, []byte, error) {
	window, err := s.Shell.Output(ctx, s.Window)
	if err != nil {
		return nil, nil, fmt.Errorf("capture window state: %w", err)
	}
	layer, err := s.Shell.Output(ctx, s.Layer)
	if err != nil {
		return nil, nil, fmt.Errorf("capture layer state: %w", err)
	}
	return window, layer, nil
}

// DocumentParser decodes monitor artifacts as trace documents.
type DocumentParser struct{}

func (DocumentParser) Parse(ctx context.Context, artifacts []runner.Artifact) (map[string]*trace.Document, error) {
	out := make(map[string]*trace.Document, len(artifacts))
	for _, a := range artifacts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		doc, err := trace.DecodeFile(a.Path)
		if err != nil {
			return nil, fmt.Errorf("monitor %s: %w", a.Monitor, err)
		}
		out[a.Monitor] = doc
	}
	return out, nil
}
