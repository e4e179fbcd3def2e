package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/flicker/internal/runner"
	"github.com/roach88/flicker/internal/testutil"
)

func TestLoad(t *testing.T) {
	cfg, err := Load("testdata/run.yaml")
	require.NoError(t, err)

	assert.Equal(t, "open-app", cfg.TestName)
	assert.Equal(t, 2, cfg.Repetitions)
	assert.Equal(t, 30*time.Second, cfg.timeout())
	assert.Equal(t, DefaultShell, cfg.shell())
	assert.Equal(t, filepath.Join("testdata", "out"), cfg.OutputPath())
	assert.Equal(t, []string{filepath.Join("testdata", "suites", "launch.yaml")}, cfg.SuitePaths())
	require.Len(t, cfg.Monitors, 2)
	assert.Equal(t, "out/wm.yaml", cfg.Monitors[0].Output)
	require.NotNil(t, cfg.Snapshot)
	assert.Equal(t, "echo layer", cfg.Snapshot.Layer)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("testdata/nope.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte("test_name: t\ntransitions: [\"true\"]\n"))
	require.NoError(t, err)
	assert.Equal(t, 1, cfg.repetitions())
	assert.Equal(t, time.Duration(0), cfg.timeout())
	assert.Equal(t, "out", cfg.OutputPath())
	assert.Equal(t, "/abs/path", cfg.Path("/abs/path"))
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"malformed", "test_name: [", "failed to parse YAML"},
		{"unknown field", "test_name: t\ntransition: [x]\n", "failed to parse YAML"},
		{"missing name", "transitions: [x]\n", "test_name"},
		{"bad name", "test_name: has space\n", "test_name"},
		{"repetitions", "test_name: t\nrepetitions: -1\n", "repetitions"},
		{"empty command", "test_name: t\ntransitions: [\"\"]\n", "transitions.0"},
		{"timeout", "test_name: t\ntimeout: soon\n", "timeout"},
		{"monitor stop", "test_name: t\nmonitors: [{name: wm, start: x}]\n", "monitors.0.stop"},
		{"snapshot layer", "test_name: t\nsnapshot: {window: x}\n", "snapshot.layer"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.src))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidate_ReportsEveryProblem(t *testing.T) {
	err := Validate(&Config{TestName: "bad name", Repetitions: -2, Transitions: []string{""}})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Greater(t, len(verr.Problems), 1)
	assert.Contains(t, verr.Error(), "problems")
}

func TestSpec(t *testing.T) {
	cfg, err := Load("testdata/run.yaml")
	require.NoError(t, err)

	spec := cfg.Spec(nil)
	assert.Equal(t, "open-app", spec.TestName)
	assert.Equal(t, 2, spec.Repetitions)
	assert.Len(t, spec.TestSetup, 1)
	assert.Len(t, spec.TransitionSetup, 1)
	assert.Len(t, spec.Transitions, 1)
	assert.Len(t, spec.TransitionTeardown, 1)
	assert.Nil(t, spec.TestTeardown)

	require.Len(t, spec.Monitors, 2)
	fm, ok := spec.Monitors[0].(runner.FileGenerating)
	require.True(t, ok)
	assert.Equal(t, filepath.Join("testdata", "out", "wm.yaml"), fm.OutputFile())
	_, ok = spec.Monitors[1].(runner.NoTrace)
	assert.True(t, ok)
	_, ok = spec.Monitors[0].(runner.NoTrace)
	assert.False(t, ok)

	assert.NotNil(t, spec.Parser)
	assert.NotNil(t, spec.StateSync)
	assert.NotNil(t, spec.SnapshotSource)
}

func TestSpec_ExecutesEndToEnd(t *testing.T) {
	dir := t.TempDir()
	fixture, err := os.ReadFile("testdata/launch.yaml")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "launch.yaml"), fixture, 0o644))

	src := `test_name: open-app
repetitions: 2
transition_setup:
  - echo "$FLICKER_TEST_NAME $FLICKER_ITERATION" >> calls.txt
transitions:
  - "true"
monitors:
  - name: wm
    start: "true"
    stop: cp launch.yaml "$FLICKER_MONITOR_OUTPUT"
    output: out/wm.yaml
stable: "true"
`
	path := filepath.Join(dir, "flicker.yaml")
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
	cfg, err := Load(path)
	require.NoError(t, err)

	r := runner.New(runner.WithRunIDs(testutil.NewRunIDs("cfg")))
	summary, err := r.Execute(t.Context(), cfg.Spec(nil))
	require.NoError(t, err)
	require.NoError(t, summary.Err())
	assert.Equal(t, "cfg-1", summary.RunID)

	require.Len(t, summary.Results, 2)
	for _, res := range summary.Results {
		assert.Equal(t, runner.StatusRunExecuted, res.Status())
		tr, ok := res.Trace("wm")
		require.True(t, ok)
		assert.Equal(t, 4, tr.Len())
	}

	calls, err := os.ReadFile(filepath.Join(dir, "calls.txt"))
	require.NoError(t, err)
	assert.Equal(t, "open-app 0\nopen-app 1\n", string(calls))
}

func TestShell_Failure(t *testing.T) {
	_, err := Shell{}.Output(t.Context(), "echo boom >&2; exit 3")
	var cerr *CommandError
	require.ErrorAs(t, err, &cerr)
	assert.Contains(t, cerr.Error(), "boom")
	assert.Contains(t, cerr.Error(), "exit status 3")
}

func TestShell_Timeout(t *testing.T) {
	sh := Shell{Timeout: 50 * time.Millisecond}
	_, err := sh.Output(t.Context(), "sleep 5")
	require.Error(t, err)
}

func TestCommandStateSync(t *testing.T) {
	dir := t.TempDir()
	marker := filepath.Join(dir, "ready")

	// The probe succeeds on its third attempt.
	probe := `n=$(cat count 2>/dev/null || echo 0); n=$((n+1)); echo $n > count; [ $n -ge 3 ] && touch ready`
	s := CommandStateSync{Shell: Shell{Dir: dir}, Command: probe, Interval: 10 * time.Millisecond, Limit: 5 * time.Second}
	require.NoError(t, s.WaitForStable(t.Context()))
	assert.FileExists(t, marker)

	never := CommandStateSync{Command: "false", Interval: 10 * time.Millisecond, Limit: 50 * time.Millisecond}
	err := never.WaitForStable(t.Context())
	require.ErrorIs(t, err, ErrNotStable)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestCommandSnapshotSource(t *testing.T) {
	src := CommandSnapshotSource{Window: "printf window", Layer: "printf layer"}
	w, l, err := src.Capture(t.Context())
	require.NoError(t, err)
	assert.Equal(t, "window", string(w))
	assert.Equal(t, "layer", string(l))

	src.Layer = "exit 1"
	_, _, err = src.Capture(t.Context())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "capture layer state")
}

func TestDocumentParser(t *testing.T) {
	traces, err := DocumentParser{}.Parse(t.Context(), []runner.Artifact{{Monitor: "wm", Path: "testdata/launch.yaml"}})
	require.NoError(t, err)
	require.Contains(t, traces, "wm")
	assert.Equal(t, 4, traces["wm"].Trace.Len())
	assert.Empty(t, traces["wm"].Transitions)

	_, err = DocumentParser{}.Parse(t.Context(), []runner.Artifact{{Monitor: "wm", Path: "testdata/run.yaml"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "monitor wm")
}
