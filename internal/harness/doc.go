// Package harness checks recorded traces end to end.
//
// Check scans a trace with the scenario machines, pairs the resulting tags
// into intervals, and evaluates assertions against the matching slices of
// the trace:
//
//   - every recorded transition gets the built-in catalog selected for it
//   - every interval gets the suite assertions scoped to its scenario
//   - suite assertions without a scenario run over the whole trace
//
// # Suite Format
//
// Suites are YAML files. Steps are expr-lang boolean expressions evaluated
// once per entry (see Env); consecutive steps are joined by "then".
//
//	name: launch
//	description: "App launch keeps the bars and shows the app"
//	catalog:
//	  - EntireScreenCoveredAlways
//	assertions:
//	  - name: app-appears
//	    scenario: APP_LAUNCH
//	    subject: layers
//	    group: blocking
//	    steps:
//	      - expr: '!visible(app)'
//	      - expr: 'visible("Splash Screen")'
//	        optional: true
//	      - expr: 'visible(app)'
//	  - name: nav-bar-at-end
//	    at: end
//	    steps:
//	      - expr: 'visible("NavigationBar0")'
//
// # Deterministic Output
//
// Tag ids come from the IDSource in Options, so a fresh sequence per check
// yields identical reports across runs. AssertGolden compares reports in
// canonical JSON.
package harness
