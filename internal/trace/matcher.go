package trace

import "strings"

// Matcher selects windows and layers belonging to a component.
type Matcher interface {
	MatchesWindow(w Window) bool
	MatchesLayer(l Layer) bool
	String() string
}

// Component matches windows and layers whose name contains Name.
type Component struct {
	Name string
}

func (c Component) MatchesWindow(w Window) bool {
	return c.Name != "" && strings.Contains(w.Name, c.Name)
}

func (c Component) MatchesLayer(l Layer) bool {
	return c.Name != "" && strings.Contains(l.Name, c.Name)
}

func (c Component) String() string {
	return c.Name
}

// Token matches the window with a given token and the layer backing it.
type Token string

func (t Token) MatchesWindow(w Window) bool {
	return string(t) != "" && w.Token == string(t)
}

func (t Token) MatchesLayer(l Layer) bool {
	return string(t) != "" && l.WindowToken == string(t)
}

func (t Token) String() string {
	return "token:" + string(t)
}

type anyOf []Matcher

// AnyOf matches when at least one of ms matches.
func AnyOf(ms ...Matcher) Matcher {
	return anyOf(ms)
}

func (a anyOf) MatchesWindow(w Window) bool {
	for _, m := range a {
		if m.MatchesWindow(w) {
			return true
		}
	}
	return false
}

func (a anyOf) MatchesLayer(l Layer) bool {
	for _, m := range a {
		if m.MatchesLayer(l) {
			return true
		}
	}
	return false
}

func (a anyOf) String() string {
	names := make([]string, len(a))
	for i, m := range a {
		names[i] = m.String()
	}
	return strings.Join(names, " or ")
}

type everything struct{}

func (everything) MatchesWindow(Window) bool { return true }
func (everything) MatchesLayer(Layer) bool   { return true }
func (everything) String() string            { return "*" }

// Well-known system components.
var (
	Any              Matcher = everything{}
	Launcher                 = Component{Name: "NexusLauncherActivity"}
	NavBar                   = Component{Name: "NavigationBar0"}
	StatusBar                = Component{Name: "StatusBar"}
	StartingSnapshot         = Component{Name: "SnapshotStartingWindow"}
	SplashScreen             = Component{Name: "Splash Screen"}
	IME                      = Component{Name: "InputMethod"}
)
