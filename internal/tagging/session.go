package tagging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/flicker/internal/trace"
)

// ScanResult holds the tags one machine produced over one trace.
type ScanResult struct {
	Scenario ScenarioType `json:"scenario"`
	Tags     []Tag        `json:"tags"`
}

// HasOpenTag reports whether the scan ended with an unmatched start tag.
// Tags always come in pairs for a fully observed scenario, so any odd count
// means the trace stopped mid-scenario.
func (r ScanResult) HasOpenTag() bool {
	return len(r.Tags)%2 != 0
}

// Anomaly returns an *OpenTagAnomaly when the scan has an open tag, nil otherwise.
func (r ScanResult) Anomaly() error {
	if !r.HasOpenTag() {
		return nil
	}
	a := &OpenTagAnomaly{Scenario: r.Scenario, Count: len(r.Tags)}
	ends := make(map[int64]bool)
	for _, t := range r.Tags {
		if !t.IsStart {
			ends[t.ID] = true
		}
	}
	for _, t := range r.Tags {
		if t.IsStart && !ends[t.ID] {
			a.Open = t
		}
	}
	return a
}

// OpenTagAnomaly reports a scenario that started but never finished within
// the trace, usually because capture stopped too early.
type OpenTagAnomaly struct {
	Scenario ScenarioType
	Count    int
	Open     Tag
}

func (a *OpenTagAnomaly) Error() string {
	return fmt.Sprintf("scenario %s has an open tag (id=%d at %d, %d tags total): trace ended before the scenario completed",
		a.Scenario, a.Open.ID, a.Open.Timestamp, a.Count)
}

// Session scans traces, drawing tag ids from one IDSource.
type Session struct {
	ids    IDSource
	logger *slog.Logger
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithLogger sets the logger for scan diagnostics.
func WithLogger(logger *slog.Logger) SessionOption {
	return func(s *Session) {
		s.logger = logger
	}
}

// NewSession creates a session. ids is shared by every scan of the session
// and must be safe for concurrent use if ScanAll is used.
func NewSession(ids IDSource, opts ...SessionOption) *Session {
	s := &Session{
		ids:    ids,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Scan runs m over tr in a single forward pass. The machine starts from its
// initial state on every call. Tags are ordered by timestamp, ties in
// emission order.
func (s *Session) Scan(tr *trace.Trace, m Machine) ScanResult {
	result := ScanResult{Scenario: m.Scenario}
	state := m.Initial
	var openID int64

	for i := 0; i < tr.Len(); i++ {
		cur := tr.At(i)
		var prev, next *trace.Snapshot
		if i > 0 {
			p := tr.At(i - 1)
			prev = &p
		}
		if i+1 < tr.Len() {
			n := tr.At(i + 1)
			next = &n
		}

		var emitted []Emission
		state, emitted = m.Step(state, prev, &cur, next)
		for _, e := range emitted {
			if e.Start {
				openID = s.ids.Next()
			}
			tag := Tag{
				ID:          openID,
				Scenario:    m.Scenario,
				IsStart:     e.Start,
				LayerID:     e.LayerID,
				WindowToken: e.WindowToken,
				TaskID:      e.TaskID,
				Timestamp:   e.Timestamp(),
			}
			s.logger.Debug("tag emitted", "tag", tag.String(), "entry", cur.String())
			result.Tags = append(result.Tags, tag)
		}
		if state.Done() {
			break
		}
	}

	slices.SortStableFunc(result.Tags, func(a, b Tag) int {
		switch {
		case a.Timestamp < b.Timestamp:
			return -1
		case a.Timestamp > b.Timestamp:
			return 1
		}
		return 0
	})

	if result.HasOpenTag() {
		s.logger.Warn("scan ended with open tag", "scenario", m.Scenario, "tags", len(result.Tags))
	}
	return result
}

// ScanAll scans tr with every machine concurrently. Each individual scan is
// sequential. Results are returned in the order of machines.
func (s *Session) ScanAll(ctx context.Context, tr *trace.Trace, machines []Machine) ([]ScanResult, error) {
	results := make([]ScanResult, len(machines))
	g, ctx := errgroup.WithContext(ctx)
	for i, m := range machines {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return fmt.Errorf("scan %s: %w", m.Scenario, err)
			}
			results[i] = s.Scan(tr, m)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
