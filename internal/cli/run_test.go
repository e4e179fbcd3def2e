package cli

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/flicker/internal/store"
	"github.com/roach88/flicker/internal/testutil"
)

const launchConfig = `test_name: open-app
repetitions: 2
transitions:
  - "true"
monitors:
  - name: wm
    start: "true"
    stop: cp launch.yaml "$FLICKER_MONITOR_OUTPUT"
    output: out/wm.yaml
stable: "true"
suites:
  - suites/launch.yaml
`

type runPayload struct {
	Summary struct {
		RunID    string `json:"run_id"`
		TestName string `json:"test_name"`
	} `json:"summary"`
	Errors  []string `json:"errors"`
	Reports []struct {
		Iteration int    `json:"iteration"`
		Monitor   string `json:"monitor"`
		ReportID  int64  `json:"report_id"`
		Report    struct {
			Pass bool `json:"pass"`
		} `json:"report"`
	} `json:"reports"`
	Failed bool `json:"failed"`
}

// executeRun runs the run command with deterministic run ids.
func executeRun(t *testing.T, format string, args ...string) (string, error) {
	t.Helper()
	cmd := newRunCommand(&RunOptions{
		RootOptions: &RootOptions{Format: format},
		RunIDs:      testutil.NewRunIDs("cli"),
	})
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(t.Context())
	return out.String(), err
}

func TestRunCommandMissingArgs(t *testing.T) {
	_, _, err := execute(t, "run")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg")
}

func TestRunCommand(t *testing.T) {
	path := workspace(t, launchConfig)

	out, err := executeRun(t, "text", path)
	require.NoError(t, err)
	assert.Contains(t, out, "PASS run cli-1 (open-app): 2 iteration(s)")
	assert.Contains(t, out, "iteration 0: RUN_EXECUTED")
	assert.Contains(t, out, "iteration 1: RUN_EXECUTED")
	assert.Contains(t, out, "PASS iteration 0 wm: 2 tags, 1 intervals, 0 transitions")
	assert.Contains(t, out, "PASS iteration 1 wm:")
}

func TestRunCommandJSONWithDatabase(t *testing.T) {
	path := workspace(t, launchConfig)
	db := filepath.Join(t.TempDir(), "results.db")

	out, err := executeRun(t, "json", path, "--db", db)
	require.NoError(t, err)

	var payload runPayload
	decodeData(t, out, &payload)
	assert.Equal(t, "cli-1", payload.Summary.RunID)
	assert.Equal(t, "open-app", payload.Summary.TestName)
	assert.False(t, payload.Failed)
	assert.Empty(t, payload.Errors)
	require.Len(t, payload.Reports, 2)
	for i, r := range payload.Reports {
		assert.Equal(t, i, r.Iteration)
		assert.Equal(t, "wm", r.Monitor)
		assert.Positive(t, r.ReportID)
		assert.True(t, r.Report.Pass)
	}

	st, err := store.Open(db)
	require.NoError(t, err)
	defer st.Close()
	run, err := st.LoadRun(t.Context(), "cli-1")
	require.NoError(t, err)
	assert.False(t, run.Failed)
	assert.Len(t, run.Results, 2)
	assert.Len(t, run.Reports, 2)
}

func TestRunCommandAssertionFailure(t *testing.T) {
	path := workspace(t, strings.Replace(launchConfig, "suites/launch.yaml", "suites/hidden.yaml", 1))

	out, err := executeRun(t, "text", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "run cli-1 failed")
	assert.Contains(t, out, "FAIL run cli-1")
	assert.Contains(t, out, "FAILED app-hidden [APP_LAUNCH]")
}

func TestRunCommandRecordedTransitionFailure(t *testing.T) {
	path := workspace(t, strings.Replace(launchConfig, "cp launch.yaml", "cp missing.yaml", 1))

	out, err := executeRun(t, "json", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var payload runPayload
	decodeData(t, out, &payload)
	assert.True(t, payload.Failed)
	assert.Empty(t, payload.Errors)
	require.Len(t, payload.Reports, 2)
	for _, r := range payload.Reports {
		assert.False(t, r.Report.Pass)
	}
}

func TestRunCommandStrictAnomaly(t *testing.T) {
	path := workspace(t, strings.Replace(launchConfig, "cp launch.yaml", "cp animating.yaml", 1))

	_, err := executeRun(t, "text", path)
	require.NoError(t, err)

	out, err := executeRun(t, "json", path, "--strict")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	var payload runPayload
	decodeData(t, out, &payload)
	assert.True(t, payload.Failed)
	require.Len(t, payload.Reports, 2)
	assert.True(t, payload.Reports[0].Report.Pass)
}

func TestRunCommandPhaseFailure(t *testing.T) {
	path := workspace(t, strings.Replace(launchConfig, `- "true"`, `- "exit 7"`, 1))

	out, err := executeRun(t, "json", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var payload runPayload
	decodeData(t, out, &payload)
	assert.True(t, payload.Failed)
	require.NotEmpty(t, payload.Errors)
	assert.Contains(t, payload.Errors[0], "exit status 7")
}

func TestRunCommandErrors(t *testing.T) {
	_, err := executeRun(t, "text", filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "failed to load config")

	path := workspace(t, strings.Replace(launchConfig, "suites/launch.yaml", "suites/nope.yaml", 1))
	_, err = executeRun(t, "text", path)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "failed to load suites")
}
