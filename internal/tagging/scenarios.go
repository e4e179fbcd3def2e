package tagging

import "github.com/roach88/flicker/internal/trace"

const (
	stateIdle      StateName = "idle"
	stateLaunching StateName = "launching"
	stateClosing   StateName = "closing"
	stateRotating  StateName = "rotating"
	stateAppearing StateName = "appearing"
)

// Machines returns a fresh set of the built-in scenario machines.
func Machines() []Machine {
	return []Machine{AppLaunch(), AppClose(), Rotation(), ImeAppear()}
}

// AppLaunch detects an app replacing the launcher as the top window. It ends
// once the app's layer is visible and nothing is animating.
func AppLaunch() Machine {
	return Machine{Scenario: ScenarioAppLaunch, Initial: State{Name: stateIdle}, Step: appLaunchStep}
}

func appLaunchStep(s State, prev, cur, _ *trace.Snapshot) (State, []Emission) {
	switch s.Name {
	case stateIdle:
		if prev == nil {
			return s, nil
		}
		app, ok := cur.Window.TopAppWindow()
		if !ok || trace.Launcher.MatchesWindow(app) {
			return s, nil
		}
		before, hadTop := prev.Window.TopAppWindow()
		if hadTop && (before.Token == app.Token || !trace.Launcher.MatchesWindow(before)) {
			return s, nil
		}
		launching := subjectState(stateLaunching, app, cur)
		return launching, []Emission{StartAt(*cur, launching)}
	case stateLaunching:
		if layerShown(cur, s.WindowToken) && !cur.Layer.IsAnimating() {
			return State{Name: stateIdle}, []Emission{EndAt(*cur, s)}
		}
	}
	return s, nil
}

// AppClose detects the top app disappearing in favor of the launcher. It ends
// once the app's layer is gone and nothing is animating.
func AppClose() Machine {
	return Machine{Scenario: ScenarioAppClose, Initial: State{Name: stateIdle}, Step: appCloseStep}
}

func appCloseStep(s State, prev, cur, _ *trace.Snapshot) (State, []Emission) {
	switch s.Name {
	case stateIdle:
		if prev == nil {
			return s, nil
		}
		before, ok := prev.Window.TopAppWindow()
		if !ok || trace.Launcher.MatchesWindow(before) {
			return s, nil
		}
		if w, ok := cur.Window.WindowByToken(before.Token); ok && w.Visible {
			return s, nil
		}
		if top, ok := cur.Window.TopAppWindow(); ok && !trace.Launcher.MatchesWindow(top) {
			return s, nil
		}
		closing := subjectState(stateClosing, before, prev)
		return closing, []Emission{StartAt(*cur, closing)}
	case stateClosing:
		if !layerShown(cur, s.WindowToken) && !cur.Layer.IsAnimating() {
			return State{Name: stateIdle}, []Emission{EndAt(*cur, s)}
		}
	}
	return s, nil
}

// Rotation detects a display rotation change. It ends on the first settled
// entry: nothing animating and the next entry, if any, keeps the rotation.
func Rotation() Machine {
	return Machine{Scenario: ScenarioRotation, Initial: State{Name: stateIdle}, Step: rotationStep}
}

func rotationStep(s State, prev, cur, next *trace.Snapshot) (State, []Emission) {
	switch s.Name {
	case stateIdle:
		if prev != nil && prev.Window.Rotation != cur.Window.Rotation {
			rotating := State{Name: stateRotating}
			return rotating, []Emission{StartAt(*cur, rotating)}
		}
	case stateRotating:
		settled := next == nil || next.Window.Rotation == cur.Window.Rotation
		if settled && !cur.Layer.IsAnimating() {
			return State{Name: stateIdle}, []Emission{EndAt(*cur, s)}
		}
	}
	return s, nil
}

// ImeAppear detects the first appearance of the input method. Only one
// occurrence is tagged per trace.
func ImeAppear() Machine {
	return Machine{Scenario: ScenarioImeAppear, Initial: State{Name: stateIdle}, Step: imeAppearStep}
}

func imeAppearStep(s State, prev, cur, _ *trace.Snapshot) (State, []Emission) {
	switch s.Name {
	case stateIdle:
		if prev != nil && !prev.Layer.IsVisible(trace.IME) && cur.Layer.IsVisible(trace.IME) {
			appearing := State{Name: stateAppearing}
			return appearing, []Emission{StartAt(*cur, appearing)}
		}
	case stateAppearing:
		if !cur.Layer.IsAnimating() {
			return State{Name: StateDone}, []Emission{EndAt(*cur, s)}
		}
	}
	return s, nil
}

func subjectState(name StateName, w trace.Window, at *trace.Snapshot) State {
	s := State{Name: name, WindowToken: w.Token, TaskID: w.TaskID}
	if l, ok := at.Layer.LayerForWindow(w.Token); ok {
		s.LayerID = l.ID
	}
	return s
}

func layerShown(s *trace.Snapshot, token string) bool {
	l, ok := s.Layer.LayerForWindow(token)
	return ok && l.Visible && !l.VisibleRegion.IsEmpty()
}
