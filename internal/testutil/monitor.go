package testutil

import (
	"context"
	"os"
	"path/filepath"
	"sync"
)

// Recorder collects an ordered log of calls made to fakes, so tests can
// assert on the exact phase ordering of a run.
type Recorder struct {
	mu    sync.Mutex
	calls []string
}

// Record appends one entry.
func (r *Recorder) Record(call string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call)
}

// Calls returns a copy of the recorded entries.
func (r *Recorder) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.calls))
	copy(out, r.calls)
	return out
}

// Monitor is a fake trace monitor. When Dir is set it is file-generating:
// Stop writes Content to Dir/<name>.trace.
type Monitor struct {
	ID       string
	Dir      string
	Content  []byte
	StartErr error
	StopErr  error
	Rec      *Recorder
}

func (m *Monitor) Name() string {
	return m.ID
}

func (m *Monitor) Start(ctx context.Context) error {
	m.record("start " + m.ID)
	return m.StartErr
}

func (m *Monitor) Stop(ctx context.Context) error {
	m.record("stop " + m.ID)
	if m.StopErr != nil {
		return m.StopErr
	}
	if m.Dir != "" {
		return os.WriteFile(m.OutputFile(), m.Content, 0o644)
	}
	return nil
}

// OutputFile is where the monitor writes its trace.
func (m *Monitor) OutputFile() string {
	return filepath.Join(m.Dir, m.ID+".trace")
}

func (m *Monitor) record(call string) {
	if m.Rec != nil {
		m.Rec.Record(call)
	}
}

// NoTraceMonitor is a monitor that produces no trace of its own, such as a
// screen recorder feeding an external pipeline.
type NoTraceMonitor struct {
	Monitor
}

// ProducesNoTrace marks the monitor as trace-less.
func (NoTraceMonitor) ProducesNoTrace() {}
