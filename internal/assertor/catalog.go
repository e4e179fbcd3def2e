package assertor

import (
	"github.com/roach88/flicker/internal/tagging"
	"github.com/roach88/flicker/internal/trace"
)

// Condition decides whether a scenario applies to a transition.
type Condition func(t trace.Transition) bool

var (
	Always Condition = func(trace.Transition) bool { return true }
	Never  Condition = func(trace.Transition) bool { return false }

	// IsAppLaunch holds for OPEN transitions with at least one opening change.
	IsAppLaunch Condition = func(t trace.Transition) bool {
		return t.Type == trace.TransitionOpen && t.HasChange(trace.TransitionOpen)
	}

	// IsAppClose holds for CLOSE transitions with at least one closing change.
	IsAppClose Condition = func(t trace.Transition) bool {
		return t.Type == trace.TransitionClose && t.HasChange(trace.TransitionClose)
	}
)

// ScenarioConfig declares the assertions of one scenario and when they run.
type ScenarioConfig struct {
	Type        tagging.ScenarioType
	Description string
	Condition   Condition
	Assertions  []AssertionData
}

func commonAssertions() []AssertionData {
	return []AssertionData{
		LayerIsVisibleAtStart(NavBar).RunAs(Blocking),
		LayerIsVisibleAtEnd(NavBar).RunAs(Blocking),
		NonAppWindowIsVisibleAlways(NavBar).RunAs(NonBlocking),
		NonAppWindowIsVisibleAlways(StatusBar).RunAs(NonBlocking),
		LayerIsVisibleAlways(StatusBar).RunAs(Blocking),
		EntireScreenCoveredAtStart().RunAs(Blocking),
		EntireScreenCoveredAtEnd().RunAs(Blocking),
		EntireScreenCoveredAlways().RunAs(Blocking),
		VisibleWindowsShownMoreThanOneConsecutiveEntry().RunAs(Blocking),
		VisibleLayersShownMoreThanOneConsecutiveEntry().RunAs(Blocking),
		StatusBarLayerPositionAtStart().RunAs(Blocking),
		StatusBarLayerPositionAtEnd().RunAs(Blocking),
	}
}

func appLaunchAssertions() []AssertionData {
	return []AssertionData{
		AppLayerIsVisibleAtStart(Launcher).RunAs(NonBlocking),
		AppLayerIsInvisibleAtStart(OpeningApp).RunAs(Blocking),
		AppLayerIsInvisibleAtEnd(Launcher).RunAs(NonBlocking),
		AppLayerIsVisibleAtEnd(OpeningApp).RunAs(NonBlocking),
		AppLayerBecomesVisible(OpeningApp).RunAs(NonBlocking),
		AppWindowBecomesVisible(OpeningApp).RunAs(NonBlocking),
		AppWindowBecomesTopWindow(OpeningApp).RunAs(NonBlocking),
		AppWindowReplacesLauncherAsTopWindow(OpeningApp).RunAs(NonBlocking),
	}
}

func appCloseAssertions() []AssertionData {
	return []AssertionData{
		AppLayerIsVisibleAtStart(ClosingApp).RunAs(Blocking),
		AppLayerIsInvisibleAtStart(Launcher).RunAs(NonBlocking),
		AppLayerIsInvisibleAtEnd(ClosingApp).RunAs(Blocking),
		AppLayerIsVisibleAtEnd(Launcher).RunAs(NonBlocking),
	}
}

// Catalog returns the scenario configurations in evaluation order.
func Catalog() []ScenarioConfig {
	return []ScenarioConfig{
		{Type: ScenarioCommon, Description: "Common", Condition: Always, Assertions: bind(ScenarioCommon, commonAssertions())},
		{Type: tagging.ScenarioAppLaunch, Description: "AppLaunch", Condition: IsAppLaunch, Assertions: bind(tagging.ScenarioAppLaunch, appLaunchAssertions())},
		{Type: tagging.ScenarioAppClose, Description: "AppClose", Condition: IsAppClose, Assertions: bind(tagging.ScenarioAppClose, appCloseAssertions())},
	}
}

// ForTransition returns the assertions of every scenario whose condition
// holds for t, in catalog order.
func ForTransition(t trace.Transition) []AssertionData {
	var out []AssertionData
	for _, sc := range Catalog() {
		if sc.Condition(t) {
			out = append(out, sc.Assertions...)
		}
	}
	return out
}

// ForScenario returns the common assertions followed by those of scenario
// s. Unknown scenarios get the common assertions only.
func ForScenario(s tagging.ScenarioType) []AssertionData {
	var common, own []AssertionData
	for _, sc := range Catalog() {
		switch sc.Type {
		case ScenarioCommon:
			common = sc.Assertions
		case s:
			own = sc.Assertions
		}
	}
	return append(common, own...)
}

// Lookup finds a catalog assertion by name.
func Lookup(name string) (AssertionData, bool) {
	for _, sc := range Catalog() {
		for _, a := range sc.Assertions {
			if a.Name == name {
				return a, true
			}
		}
	}
	return AssertionData{}, false
}

func bind(s tagging.ScenarioType, as []AssertionData) []AssertionData {
	for i := range as {
		as[i].Scenario = s
	}
	return as
}
