package subject

import (
	"fmt"
	"strings"

	"github.com/roach88/flicker/internal/trace"
)

// Check is one predicate over an entry. It returns nil when it holds.
type Check func(*EntrySubject) error

// Step is one required (or optional) state of a sequence.
type Step struct {
	Name     string
	Check    Check
	Optional bool
}

// MatchOptions tune Match.
type MatchOptions struct {
	// SkipUntilFirstAssertion ignores leading entries until the first step holds.
	SkipUntilFirstAssertion bool
}

// Match verifies that entries run through steps in order, in one forward pass.
//
// The current step is checked against each entry. While it holds the pass
// moves to the next entry. When it stops holding after having held at least
// once, the next step is checked against the same entry. An optional step
// that does not hold is skipped at the same entry. A required step that fails
// before ever holding, or any entry left after the last step stops holding,
// fails the match. Required steps never reached fail with "never became true".
//
// Empty entries or steps match trivially.
func Match(kind Kind, entries []trace.Snapshot, steps []Step, opts MatchOptions) error {
	if len(steps) == 0 || len(entries) == 0 {
		return nil
	}

	stepIdx, entryIdx := 0, 0
	lastPassed := -1
	var log []string

	for stepIdx < len(steps) && entryIdx < len(entries) {
		step := steps[stepIdx]
		es := NewEntrySubject(kind, entries[entryIdx])
		log = append(log, fmt.Sprintf("%d/%d:[%s]\t%s", stepIdx+1, len(steps), step.Name, entries[entryIdx]))

		err := step.Check(es)
		if err == nil {
			lastPassed = stepIdx
			entryIdx++
			continue
		}

		if opts.SkipUntilFirstAssertion && lastPassed == -1 {
			entryIdx++
			continue
		}
		if lastPassed != stepIdx && !step.Optional {
			return with(fmt.Sprintf("assertion %q failed", step.Name), err,
				"Step", fmt.Sprintf("%d/%d", stepIdx+1, len(steps)),
				"Entry", entries[entryIdx].String(),
				"Assertion trace", strings.Join(log, "\n        "))
		}
		stepIdx++
		if stepIdx >= len(steps) {
			return with(fmt.Sprintf("assertion %q failed and no further assertions remain", step.Name), err,
				"Step", fmt.Sprintf("%d/%d", stepIdx, len(steps)),
				"Entry", entries[entryIdx].String(),
				"Assertion trace", strings.Join(log, "\n        "))
		}
	}

	if lastPassed == -1 {
		return Fail("none of the assertions held on any entry",
			"First assertion", steps[0].Name,
			"Entries", fmt.Sprint(len(entries)))
	}

	var never []string
	for _, s := range steps[stepIdx+1:] {
		if !s.Optional {
			never = append(never, s.Name)
		}
	}
	if len(never) > 0 {
		return Fail("assertion never became true",
			"Assertions", strings.Join(never, ", "),
			"Last entry", entries[len(entries)-1].String())
	}
	return nil
}
