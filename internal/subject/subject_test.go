package subject

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/flicker/internal/region"
	"github.com/roach88/flicker/internal/testutil"
	"github.com/roach88/flicker/internal/trace"
)

const appName = "com.example/.Main"

var app = trace.Component{Name: appName}

func failure(t *testing.T, err error) *Failure {
	t.Helper()
	var f *Failure
	require.True(t, errors.As(err, &f), "expected *Failure, got %v", err)
	return f
}

func TestThenVisible_Passes(t *testing.T) {
	tr := testutil.MustTrace(t,
		testutil.Snap(0, testutil.HiddenApp(appName)),
		testutil.Snap(1, testutil.HiddenApp(appName)),
		testutil.Snap(2, testutil.App(appName)),
		testutil.Snap(3, testutil.App(appName)),
	)

	err := Layers(tr).IsInvisible(app).Then().IsVisible(app).ForAllEntries()
	assert.NoError(t, err)
}

func TestThenVisible_FailsWhenNeverVisible(t *testing.T) {
	tr := testutil.MustTrace(t,
		testutil.Snap(0, testutil.HiddenApp(appName)),
		testutil.Snap(1, testutil.HiddenApp(appName)),
	)

	err := Layers(tr).IsInvisible(app).Then().IsVisible(app).ForAllEntries()
	f := failure(t, err)
	assert.Equal(t, "assertion never became true", f.Message)
	names, ok := f.Fact("Assertions")
	require.True(t, ok)
	assert.Equal(t, "isVisible("+appName+")", names)
}

func TestAlreadyExecuted(t *testing.T) {
	tr := testutil.MustTrace(t, testutil.Snap(0, testutil.App(appName)))

	s := Windows(tr).IsVisible(app)
	require.NoError(t, s.ForAllEntries())
	assert.ErrorIs(t, s.ForAllEntries(), ErrAlreadyExecuted)
	assert.ErrorIs(t, s.Last(), ErrAlreadyExecuted)
}

func TestOptionalStep_SkippedWhenAbsent(t *testing.T) {
	tr := testutil.MustTrace(t,
		testutil.Snap(0, testutil.HiddenApp(appName)),
		testutil.Snap(1, testutil.App(appName)),
	)

	err := Layers(tr).
		IsInvisible(app).
		Then().IsVisible(trace.StartingSnapshot).Optional().
		Then().IsVisible(trace.SplashScreen).Optional().
		Then().IsVisible(app).
		ForAllEntries()
	assert.NoError(t, err)
}

func TestOptionalStep_UsedWhenPresent(t *testing.T) {
	snapshot := testutil.LayerOnly("SnapshotStartingWindow", testutil.Screen)
	tr := testutil.MustTrace(t,
		testutil.Snap(0, testutil.HiddenApp(appName)),
		testutil.Snap(1, testutil.HiddenApp(appName), snapshot),
		testutil.Snap(2, testutil.App(appName)),
	)

	steps := Layers(tr).
		IsInvisible(app).IsInvisible(trace.StartingSnapshot).
		Then().IsVisible(trace.StartingSnapshot).Optional().
		Then().IsVisible(app)
	assert.NoError(t, steps.ForAllEntries())

	// without the optional step the snapshot entry is unexplained
	err := Layers(tr).
		IsInvisible(app).IsInvisible(trace.StartingSnapshot).
		Then().IsVisible(app).
		ForAllEntries()
	assert.Error(t, err)
}

func TestRequiredStepFailsBeforeHolding(t *testing.T) {
	tr := testutil.MustTrace(t,
		testutil.Snap(0, testutil.App(appName)),
		testutil.Snap(1, testutil.App(appName)),
	)

	err := Layers(tr).IsInvisible(app).Then().IsVisible(app).ForAllEntries()
	f := failure(t, err)
	assert.Contains(t, f.Message, "isInvisible")
	step, _ := f.Fact("Step")
	assert.Equal(t, "1/2", step)
	entry, _ := f.Fact("Entry")
	assert.Equal(t, "entry@0", entry)
}

func TestUnexplainedTrailingEntries(t *testing.T) {
	tr := testutil.MustTrace(t,
		testutil.Snap(0, testutil.HiddenApp(appName)),
		testutil.Snap(1, testutil.App(appName)),
		testutil.Snap(2, testutil.HiddenApp(appName)),
	)

	err := Layers(tr).IsInvisible(app).Then().IsVisible(app).ForAllEntries()
	f := failure(t, err)
	assert.Contains(t, f.Message, "no further assertions remain")
}

func TestNoBacktracking(t *testing.T) {
	// visible, invisible, visible: a two-step chain cannot return to step one
	tr := testutil.MustTrace(t,
		testutil.Snap(0, testutil.App(appName)),
		testutil.Snap(1, testutil.HiddenApp(appName)),
		testutil.Snap(2, testutil.App(appName)),
	)

	err := Layers(tr).IsVisible(app).Then().IsInvisible(app).ForAllEntries()
	require.Error(t, err)
}

func TestSkipUntilFirstAssertion(t *testing.T) {
	tr := testutil.MustTrace(t,
		testutil.Snap(0),
		testutil.Snap(1),
		testutil.Snap(2, testutil.App(appName)),
	)

	require.Error(t, Windows(tr).IsVisible(app).ForAllEntries())
	assert.NoError(t, Windows(tr).IsVisible(app).SkipUntilFirstAssertion().ForAllEntries())
}

func TestNothingEverHeld(t *testing.T) {
	tr := testutil.MustTrace(t, testutil.Snap(0), testutil.Snap(1))

	err := Windows(tr).IsVisible(app).SkipUntilFirstAssertion().ForAllEntries()
	f := failure(t, err)
	assert.Equal(t, "none of the assertions held on any entry", f.Message)
}

func TestConjunctionWithinStep(t *testing.T) {
	tr := testutil.MustTrace(t,
		testutil.Snap(0, testutil.App(appName), testutil.Surface("NavigationBar0", trace.WindowKindNonApp, true, testutil.Screen)),
	)

	assert.NoError(t, Windows(tr).IsVisible(app).IsVisible(trace.NavBar).ForAllEntries())

	err := Windows(tr).IsVisible(app).IsVisible(trace.StatusBar).ForAllEntries()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "StatusBar")
}

func TestForRange(t *testing.T) {
	tr := testutil.MustTrace(t,
		testutil.Snap(0, testutil.App(appName)),
		testutil.Snap(5, testutil.HiddenApp(appName)),
		testutil.Snap(10, testutil.HiddenApp(appName)),
	)

	assert.NoError(t, Layers(tr).IsInvisible(app).ForRange(5, 10))

	err := Layers(tr).IsInvisible(app).ForRange(20, 30)
	f := failure(t, err)
	assert.Equal(t, "no entries in range", f.Message)
}

func TestFirstAndLast(t *testing.T) {
	tr := testutil.MustTrace(t,
		testutil.Snap(0, testutil.App(appName)),
		testutil.Snap(1, testutil.HiddenApp(appName)),
	)

	assert.NoError(t, Windows(tr).IsVisible(app).First())
	assert.NoError(t, Windows(tr).IsInvisible(app).Last())
	assert.Error(t, Windows(tr).IsVisible(app).Last())
}

func TestBuilderMisuse(t *testing.T) {
	tr := testutil.MustTrace(t, testutil.Snap(0))

	assert.ErrorContains(t, Windows(tr).Then().IsVisible(app).ForAllEntries(), "then()")
	assert.ErrorContains(t, Windows(tr).Optional().ForAllEntries(), "optional()")
	assert.ErrorContains(t, Windows(tr).ForAllEntries(), "no assertions")
}

func TestInvoke_CustomCheck(t *testing.T) {
	tr := testutil.MustTrace(t,
		testutil.Snap(0, testutil.Rotation(0)),
		testutil.Snap(1, testutil.Rotation(1)),
	)

	portrait := func(e *EntrySubject) error {
		if e.Entry().Window.Rotation != 0 {
			return e.Fail("not portrait")
		}
		return nil
	}
	landscape := func(e *EntrySubject) error {
		if e.Entry().Window.Rotation != 1 {
			return e.Fail("not landscape")
		}
		return nil
	}

	assert.NoError(t, Windows(tr).Invoke("portrait", portrait).Then().Invoke("landscape", landscape).ForAllEntries())
}

func TestInvoke_PlainErrorIsWrapped(t *testing.T) {
	tr := testutil.MustTrace(t, testutil.Snap(0))
	boom := errors.New("boom")

	err := Windows(tr).Invoke("explode", func(*EntrySubject) error { return boom }).ForAllEntries()
	f := failure(t, err)
	assert.ErrorIs(t, err, boom)
	check, _ := f.Fact("Check")
	assert.Equal(t, "boom", check)
}

func TestEntrySubject_TopAndPinned(t *testing.T) {
	launcher := "com.android.launcher/.NexusLauncherActivity"
	e := NewEntrySubject(KindWindows, testutil.Snap(7, testutil.App(appName), testutil.App(launcher), testutil.Pinned(appName)))

	assert.NoError(t, e.IsAppWindowOnTop(app))
	assert.Error(t, e.IsAppWindowOnTop(trace.Launcher))
	assert.NoError(t, e.IsPinned(app))
	assert.Error(t, e.IsNotPinned(app))
	assert.NoError(t, e.IsNotPinned(trace.Launcher))
	assert.Equal(t, int64(7), e.Timestamp())

	empty := NewEntrySubject(KindWindows, testutil.Snap(8))
	f := failure(t, empty.IsAppWindowOnTop(app))
	assert.Equal(t, "no app window on top", f.Message)
}

func TestEntrySubject_LayerRegion(t *testing.T) {
	bar := region.Rect{Left: 0, Top: 0, Right: 1080, Bottom: 100}
	e := NewEntrySubject(KindLayers, testutil.Snap(3, testutil.LayerOnly("StatusBar", bar)))

	rs := e.VisibleRegion(trace.StatusBar)
	assert.NoError(t, rs.CoversExactly(region.New(bar)))
	assert.NoError(t, rs.CoversAtMost(region.New(testutil.Screen)))
	assert.Error(t, rs.CoversAtLeast(region.New(testutil.Screen)))
}

func TestRegionSubject(t *testing.T) {
	top := region.FromRect(0, 0, 100, 50)
	bottom := region.FromRect(0, 50, 100, 100)
	halves := region.New(region.Rect{Left: 0, Top: 0, Right: 50, Bottom: 50}, region.Rect{Left: 50, Top: 0, Right: 100, Bottom: 50})

	s := NewRegionSubject("pip", 42, top)
	assert.NoError(t, s.CoversExactly(halves))
	assert.NoError(t, s.IsHigher(bottom))
	assert.Error(t, s.IsLower(bottom))
	assert.NoError(t, NewRegionSubject("pip", 42, bottom).IsLower(top))

	// equal regions are neither higher nor lower
	assert.Error(t, s.IsHigher(top))
	assert.Error(t, s.IsLower(top))

	err := s.CoversAtMost(region.FromRect(0, 0, 100, 25))
	f := failure(t, err)
	assert.Equal(t, "region covers more than expected", f.Message)
	ts, _ := f.Fact("Timestamp")
	assert.Equal(t, "42", ts)
	out, _ := f.Fact("Out-of-bounds region")
	assert.Equal(t, region.FromRect(0, 25, 100, 50).String(), out)
}

func TestMatch_EmptyInputs(t *testing.T) {
	assert.NoError(t, Match(KindWindows, nil, []Step{{Name: "x", Check: func(*EntrySubject) error { return errors.New("no") }}}, MatchOptions{}))
	assert.NoError(t, Match(KindWindows, []trace.Snapshot{testutil.Snap(0)}, nil, MatchOptions{}))
}

func TestFailure_ErrorFormat(t *testing.T) {
	f := Fail("boom", "Key", "value", "dangling")
	assert.Equal(t, "boom\n    Key: value", f.Error())
	assert.Equal(t, "plain", Fail("plain").Error())
}
