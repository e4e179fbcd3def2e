package assertor

import (
	"fmt"
	"maps"
	"slices"

	"github.com/roach88/flicker/internal/region"
	"github.com/roach88/flicker/internal/subject"
	"github.com/roach88/flicker/internal/trace"
)

// ComponentRef picks a component for an assertion, either a fixed one or a
// transition participant.
type ComponentRef struct {
	name    string
	resolve func(Components) trace.Matcher
}

func (r ComponentRef) String() string {
	return r.name
}

func (r ComponentRef) build(c Components) (trace.Matcher, error) {
	m := r.resolve(c)
	if m == nil {
		return nil, fmt.Errorf("%s: %w", r.name, ErrUnresolvedComponent)
	}
	return m, nil
}

// Fixed refers to a system component.
func Fixed(name string, m trace.Matcher) ComponentRef {
	return ComponentRef{name: name, resolve: func(Components) trace.Matcher { return m }}
}

var (
	NavBar     = Fixed("NAV_BAR", trace.NavBar)
	StatusBar  = Fixed("STATUS_BAR", trace.StatusBar)
	Launcher   = Fixed("LAUNCHER", trace.Launcher)
	OpeningApp = ComponentRef{name: "OPENING_APP", resolve: func(c Components) trace.Matcher { return c.Opening }}
	ClosingApp = ComponentRef{name: "CLOSING_APP", resolve: func(c Components) trace.Matcher { return c.Closing }}
)

func named(prefix string, ref ComponentRef) string {
	return prefix + "(" + ref.String() + ")"
}

// withComponent resolves ref before delegating to fn.
func withComponent(ref ComponentRef, fn func(tr *trace.Trace, m trace.Matcher) error) Predicate {
	return func(tr *trace.Trace, c Components) error {
		m, err := ref.build(c)
		if err != nil {
			return err
		}
		return fn(tr, m)
	}
}

func LayerIsVisibleAtStart(ref ComponentRef) Assertion {
	return Assertion{Name: named("LayerIsVisibleAtStart", ref), Subject: subject.KindLayers,
		Predicate: withComponent(ref, func(tr *trace.Trace, m trace.Matcher) error {
			return subject.Layers(tr).IsVisible(m).First()
		})}
}

func LayerIsVisibleAtEnd(ref ComponentRef) Assertion {
	return Assertion{Name: named("LayerIsVisibleAtEnd", ref), Subject: subject.KindLayers,
		Predicate: withComponent(ref, func(tr *trace.Trace, m trace.Matcher) error {
			return subject.Layers(tr).IsVisible(m).Last()
		})}
}

func LayerIsVisibleAlways(ref ComponentRef) Assertion {
	return Assertion{Name: named("LayerIsVisibleAlways", ref), Subject: subject.KindLayers,
		Predicate: withComponent(ref, func(tr *trace.Trace, m trace.Matcher) error {
			return subject.Layers(tr).IsVisible(m).ForAllEntries()
		})}
}

func NonAppWindowIsVisibleAlways(ref ComponentRef) Assertion {
	return Assertion{Name: named("NonAppWindowIsVisibleAlways", ref), Subject: subject.KindWindows,
		Predicate: withComponent(ref, func(tr *trace.Trace, m trace.Matcher) error {
			return subject.Windows(tr).IsVisible(m).ForAllEntries()
		})}
}

func AppLayerIsVisibleAtStart(ref ComponentRef) Assertion {
	a := LayerIsVisibleAtStart(ref)
	a.Name = named("AppLayerIsVisibleAtStart", ref)
	return a
}

func AppLayerIsVisibleAtEnd(ref ComponentRef) Assertion {
	a := LayerIsVisibleAtEnd(ref)
	a.Name = named("AppLayerIsVisibleAtEnd", ref)
	return a
}

func AppLayerIsInvisibleAtStart(ref ComponentRef) Assertion {
	return Assertion{Name: named("AppLayerIsInvisibleAtStart", ref), Subject: subject.KindLayers,
		Predicate: withComponent(ref, func(tr *trace.Trace, m trace.Matcher) error {
			return subject.Layers(tr).IsInvisible(m).First()
		})}
}

func AppLayerIsInvisibleAtEnd(ref ComponentRef) Assertion {
	return Assertion{Name: named("AppLayerIsInvisibleAtEnd", ref), Subject: subject.KindLayers,
		Predicate: withComponent(ref, func(tr *trace.Trace, m trace.Matcher) error {
			return subject.Layers(tr).IsInvisible(m).Last()
		})}
}

// AppLayerBecomesVisible allows a starting snapshot and then a splash screen
// to appear before the app itself.
func AppLayerBecomesVisible(ref ComponentRef) Assertion {
	return Assertion{Name: named("AppLayerBecomesVisible", ref), Subject: subject.KindLayers,
		Predicate: withComponent(ref, func(tr *trace.Trace, m trace.Matcher) error {
			return subject.Layers(tr).
				IsInvisible(m).
				Then().IsVisible(trace.StartingSnapshot).Optional().
				Then().IsVisible(trace.SplashScreen).Optional().
				Then().IsVisible(m).
				ForAllEntries()
		})}
}

func AppWindowBecomesVisible(ref ComponentRef) Assertion {
	return Assertion{Name: named("AppWindowBecomesVisible", ref), Subject: subject.KindWindows,
		Predicate: withComponent(ref, func(tr *trace.Trace, m trace.Matcher) error {
			return subject.Windows(tr).IsInvisible(m).Then().IsVisible(m).ForAllEntries()
		})}
}

func AppWindowBecomesTopWindow(ref ComponentRef) Assertion {
	return Assertion{Name: named("AppWindowBecomesTopWindow", ref), Subject: subject.KindWindows,
		Predicate: withComponent(ref, func(tr *trace.Trace, m trace.Matcher) error {
			return subject.Windows(tr).
				Invoke("isAppWindowNotOnTop("+m.String()+")", func(e *subject.EntrySubject) error {
					if e.IsAppWindowOnTop(m) == nil {
						return e.Fail("app window is on top", "Component", m.String())
					}
					return nil
				}).
				Then().IsAppWindowOnTop(m).
				ForAllEntries()
		})}
}

func AppWindowReplacesLauncherAsTopWindow(ref ComponentRef) Assertion {
	return Assertion{Name: named("AppWindowReplacesLauncherAsTopWindow", ref), Subject: subject.KindWindows,
		Predicate: withComponent(ref, func(tr *trace.Trace, m trace.Matcher) error {
			return subject.Windows(tr).
				IsAppWindowOnTop(trace.Launcher).
				Then().IsAppWindowOnTop(m).
				ForAllEntries()
		})}
}

func AppWindowBecomesPinned(ref ComponentRef) Assertion {
	return Assertion{Name: named("AppWindowBecomesPinned", ref), Subject: subject.KindWindows,
		Predicate: withComponent(ref, func(tr *trace.Trace, m trace.Matcher) error {
			return subject.Windows(tr).
				Invoke("isNotPinned", func(e *subject.EntrySubject) error { return e.IsNotPinned(m) }).
				Then().
				Invoke("isPinned", func(e *subject.EntrySubject) error { return e.IsPinned(m) }).
				ForAllEntries()
		})}
}

func AppWindowRemainInsideDisplayBounds(ref ComponentRef) Assertion {
	return Assertion{Name: named("AppWindowRemainInsideDisplayBounds", ref), Subject: subject.KindWindows,
		Predicate: withComponent(ref, func(tr *trace.Trace, m trace.Matcher) error {
			return subject.Windows(tr).
				Invoke("appWindowRemainInsideDisplayBounds", func(e *subject.EntrySubject) error {
					display, ok := e.Entry().Window.PrimaryDisplay()
					if !ok {
						return e.Fail("no displays found")
					}
					return e.VisibleRegion(m).CoversAtMost(region.New(display.Bounds))
				}).
				ForAllEntries()
		})}
}

func entireScreenCovered(e *subject.EntrySubject) error {
	display, ok := e.Entry().Window.PrimaryDisplay()
	if !ok {
		return e.Fail("no displays found")
	}
	return e.VisibleRegion(trace.Any).CoversAtLeast(region.New(display.Bounds))
}

func EntireScreenCoveredAtStart() Assertion {
	return Assertion{Name: "EntireScreenCoveredAtStart", Subject: subject.KindLayers,
		Predicate: func(tr *trace.Trace, _ Components) error {
			return subject.Layers(tr).Invoke("entireScreenCovered", entireScreenCovered).First()
		}}
}

func EntireScreenCoveredAtEnd() Assertion {
	return Assertion{Name: "EntireScreenCoveredAtEnd", Subject: subject.KindLayers,
		Predicate: func(tr *trace.Trace, _ Components) error {
			return subject.Layers(tr).Invoke("entireScreenCovered", entireScreenCovered).Last()
		}}
}

func EntireScreenCoveredAlways() Assertion {
	return Assertion{Name: "EntireScreenCoveredAlways", Subject: subject.KindLayers,
		Predicate: func(tr *trace.Trace, _ Components) error {
			return subject.Layers(tr).Invoke("entireScreenCovered", entireScreenCovered).ForAllEntries()
		}}
}

// statusBarOnTop requires the status bar to be higher than the nav bar and
// inside the display.
func statusBarOnTop(e *subject.EntrySubject) error {
	display, ok := e.Entry().Window.PrimaryDisplay()
	if !ok {
		return e.Fail("no displays found")
	}
	bar := e.VisibleRegion(trace.StatusBar)
	if bar.Region().IsEmpty() {
		return e.Fail("status bar layer has no visible region")
	}
	if err := bar.CoversAtMost(region.New(display.Bounds)); err != nil {
		return err
	}
	nav := e.Entry().Layer.VisibleRegion(trace.NavBar)
	if nav.IsEmpty() {
		return nil
	}
	return bar.IsHigher(nav)
}

func StatusBarLayerPositionAtStart() Assertion {
	return Assertion{Name: "StatusBarLayerPositionAtStart", Subject: subject.KindLayers,
		Predicate: func(tr *trace.Trace, _ Components) error {
			return subject.Layers(tr).Invoke("statusBarLayerPosition", statusBarOnTop).First()
		}}
}

func StatusBarLayerPositionAtEnd() Assertion {
	return Assertion{Name: "StatusBarLayerPositionAtEnd", Subject: subject.KindLayers,
		Predicate: func(tr *trace.Trace, _ Components) error {
			return subject.Layers(tr).Invoke("statusBarLayerPosition", statusBarOnTop).Last()
		}}
}

// VisibleWindowsShownMoreThanOneConsecutiveEntry flags windows that flash:
// visible on one entry only, between two entries where they are hidden.
// Starting windows are exempt.
func VisibleWindowsShownMoreThanOneConsecutiveEntry() Assertion {
	return Assertion{Name: "VisibleWindowsShownMoreThanOneConsecutiveEntry", Subject: subject.KindWindows,
		Predicate: func(tr *trace.Trace, _ Components) error {
			return flashes(tr, func(s trace.Snapshot) map[string]bool {
				out := make(map[string]bool)
				for _, w := range s.Window.VisibleWindows() {
					if w.Kind != trace.WindowKindStarting {
						out[w.Name] = true
					}
				}
				return out
			})
		}}
}

// VisibleLayersShownMoreThanOneConsecutiveEntry is the layer counterpart.
func VisibleLayersShownMoreThanOneConsecutiveEntry() Assertion {
	return Assertion{Name: "VisibleLayersShownMoreThanOneConsecutiveEntry", Subject: subject.KindLayers,
		Predicate: func(tr *trace.Trace, _ Components) error {
			return flashes(tr, func(s trace.Snapshot) map[string]bool {
				out := make(map[string]bool)
				for _, l := range s.Layer.Layers {
					if l.Visible && !l.VisibleRegion.IsEmpty() {
						out[l.Name] = true
					}
				}
				return out
			})
		}}
}

func flashes(tr *trace.Trace, visible func(trace.Snapshot) map[string]bool) error {
	for i := 1; i+1 < tr.Len(); i++ {
		before, cur, after := visible(tr.At(i-1)), visible(tr.At(i)), visible(tr.At(i+1))
		for _, name := range slices.Sorted(maps.Keys(cur)) {
			if !before[name] && !after[name] {
				return subject.Fail("visible for only one consecutive entry",
					"Component", name,
					"Entry", tr.At(i).String())
			}
		}
	}
	return nil
}
