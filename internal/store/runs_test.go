package store

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/flicker/internal/harness"
	"github.com/roach88/flicker/internal/runner"
	"github.com/roach88/flicker/internal/testutil"
	"github.com/roach88/flicker/internal/trace"
)

func TestWriteSummary_RoundTrip(t *testing.T) {
	s := createTestStore(t)
	sum := runSummary(t, "run-a", false)
	require.NoError(t, s.WriteSummary(t.Context(), sum))

	got, err := s.LoadRun(t.Context(), "run-a")
	require.NoError(t, err)

	assert.Equal(t, "run-a", got.ID)
	assert.Equal(t, int64(1), got.Seq)
	assert.Equal(t, "open-app", got.TestName)
	assert.Equal(t, 2, got.Iterations)
	assert.Equal(t, 0, got.ErrorCount)
	assert.False(t, got.Failed)
	assert.NotEmpty(t, got.Fingerprint)
	assert.Equal(t, []string{"open"}, got.Tags)
	assert.Empty(t, got.Errors)
	assert.Empty(t, got.Reports)

	require.Len(t, got.Results, 2)
	for i, r := range got.Results {
		assert.Equal(t, i, r.Iteration)
		assert.Equal(t, runner.StatusRunExecuted, r.Status)
		require.Len(t, r.Artifacts, 1)
		assert.Equal(t, "wm", r.Artifacts[0].Monitor)
		require.Len(t, r.TaggedStates, 1)
		assert.Equal(t, "open", r.TaggedStates[0].Label)
	}
}

func TestWriteSummary_FailedRun(t *testing.T) {
	s := createTestStore(t)
	sum := runSummary(t, "run-f", true)
	require.True(t, sum.Failed())
	require.NoError(t, s.WriteSummary(t.Context(), sum))

	got, err := s.LoadRun(t.Context(), "run-f")
	require.NoError(t, err)
	assert.True(t, got.Failed)
	require.Len(t, got.Errors, 1)
	assert.Equal(t, "TransitionExecutionFailure", got.Errors[0].Phase)
	assert.Equal(t, 1, got.Errors[0].Iteration)
	assert.Contains(t, got.Errors[0].Message, "tap missed")

	require.Len(t, got.Results, 2)
	assert.Equal(t, runner.StatusRunExecuted, got.Results[0].Status)
	assert.Equal(t, runner.StatusRunFailed, got.Results[1].Status)
}

func TestWriteSummary_Idempotent(t *testing.T) {
	s := createTestStore(t)
	sum := runSummary(t, "run-a", false)
	require.NoError(t, s.WriteSummary(t.Context(), sum))
	require.NoError(t, s.WriteSummary(t.Context(), sum))

	runs, err := s.ListRuns(t.Context())
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, int64(1), runs[0].Seq)
}

func TestWriteSummary_StoresCanonicalSummary(t *testing.T) {
	s := createTestStore(t)
	require.NoError(t, s.WriteSummary(t.Context(), runSummary(t, "run-a", false)))

	var body string
	require.NoError(t, s.db.QueryRow("SELECT summary FROM runs WHERE id = 'run-a'").Scan(&body))
	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(body), &decoded))
	assert.Equal(t, "run-a", decoded["run_id"])
	assert.Len(t, decoded["results"], 2)
}

func TestListRuns_Order(t *testing.T) {
	s := createTestStore(t)

	runs, err := s.ListRuns(t.Context())
	require.NoError(t, err)
	assert.NotNil(t, runs)
	assert.Empty(t, runs)

	// Insertion order wins over id order.
	for _, id := range []string{"run-c", "run-a", "run-b"} {
		require.NoError(t, s.WriteSummary(t.Context(), runSummary(t, id, id == "run-a")))
	}
	runs, err = s.ListRuns(t.Context())
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, "run-c", runs[0].ID)
	assert.Equal(t, "run-a", runs[1].ID)
	assert.Equal(t, "run-b", runs[2].ID)
	assert.Equal(t, []int64{1, 2, 3}, []int64{runs[0].Seq, runs[1].Seq, runs[2].Seq})
	assert.True(t, runs[1].Failed)
	assert.False(t, runs[2].Failed)
}

func TestLoadRun_NotFound(t *testing.T) {
	s := createTestStore(t)
	_, err := s.LoadRun(t.Context(), "nope")
	require.ErrorIs(t, err, ErrNotFound)
}

func checkLaunch(t *testing.T, suiteSrc string) *harness.Report {
	t.Helper()
	tr := testutil.MustTrace(t,
		testutil.Snap(0, testutil.HiddenApp("com.example/.Main"), testutil.App("com.android.launcher/.NexusLauncherActivity")),
		testutil.Snap(1, testutil.App("com.example/.Main"), testutil.HiddenApp("com.android.launcher/.NexusLauncherActivity")),
		testutil.Snap(2, testutil.App("com.example/.Main"), testutil.HiddenApp("com.android.launcher/.NexusLauncherActivity")),
	)
	suite, err := harness.ParseSuite([]byte(suiteSrc))
	require.NoError(t, err)
	report, err := harness.Check(t.Context(), tr, harness.Options{
		Suites:      []*harness.Suite{suite},
		Transitions: []trace.Transition{{ID: 4, Type: trace.TransitionOpen, Start: 0, End: 2}},
	})
	require.NoError(t, err)
	return report
}

const launchSuite = `
name: launch
assertions:
  - name: app-shown
    scenario: APP_LAUNCH
    at: end
    steps: [{expr: visible(app)}]
  - name: never-rotates
    steps: [{expr: rotation == 0}]
`

func TestWriteReport(t *testing.T) {
	s := createTestStore(t)
	require.NoError(t, s.WriteSummary(t.Context(), runSummary(t, "run-a", false)))

	report := checkLaunch(t, launchSuite)
	key := ReportKey{RunID: "run-a", Iteration: 0, Monitor: "wm"}
	id, err := s.WriteReport(t.Context(), key, report)
	require.NoError(t, err)
	assert.Positive(t, id)

	again, err := s.WriteReport(t.Context(), key, report)
	require.NoError(t, err)
	assert.Equal(t, id, again)

	got, err := s.LoadRun(t.Context(), "run-a")
	require.NoError(t, err)
	require.Len(t, got.Reports, 1)
	r := got.Reports[0]
	assert.Equal(t, id, r.ID)
	assert.Equal(t, "wm", r.Monitor)
	assert.Equal(t, report.Pass, r.Pass)

	outcomes, err := s.ReadOutcomes(t.Context(), id)
	require.NoError(t, err)
	assert.Equal(t, outcomes, r.Outcomes)
	require.NotEmpty(t, outcomes)
	assert.Equal(t, "interval:APP_LAUNCH#1", outcomes[0].Scope)
	assert.Equal(t, "app-shown", outcomes[0].Name)
	assert.Equal(t, "PASSED", outcomes[0].Outcome)

	last := outcomes[len(outcomes)-1]
	assert.Equal(t, "trace", last.Scope)
	assert.Equal(t, "never-rotates", last.Name)

	transitions := 0
	for _, o := range outcomes {
		if o.Scope == "transition:4" {
			transitions++
		}
	}
	assert.Equal(t, len(report.Transitions[0].Results.Results), transitions)
}

func TestWriteReport_Standalone(t *testing.T) {
	s := createTestStore(t)
	report := checkLaunch(t, launchSuite)

	key := ReportKey{Iteration: -1, Monitor: "file"}
	first, err := s.WriteReport(t.Context(), key, report)
	require.NoError(t, err)
	second, err := s.WriteReport(t.Context(), key, report)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	body, err := s.ReportBody(t.Context(), first)
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(body, &decoded))
	assert.Contains(t, decoded, "intervals")

	_, err = s.ReportBody(t.Context(), 999)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestWriteReport_UnknownRun(t *testing.T) {
	s := createTestStore(t)
	_, err := s.WriteReport(t.Context(), ReportKey{RunID: "missing", Monitor: "wm"}, checkLaunch(t, launchSuite))
	require.Error(t, err)
}
