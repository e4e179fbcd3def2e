package config

import (
	"io"
	"log/slog"
	"time"

	"github.com/roach88/flicker/internal/runner"
)

// stableLimit bounds one wait for the stability probe.
const stableLimit = 30 * time.Second

// Spec builds the runner spec the config declares. Commands run from the
// config file's directory.
func (c *Config) Spec(logger *slog.Logger) runner.Spec {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	sh := Shell{Path: c.shell(), Dir: c.dir, Timeout: c.timeout(), Logger: logger}
	out := c.OutputPath()

	actions := func(cmds []string) []runner.Action {
		if len(cmds) == 0 {
			return nil
		}
		as := make([]runner.Action, len(cmds))
		for i, cmd := range cmds {
			as[i] = CommandAction{Shell: sh, Command: cmd, OutputDir: out}
		}
		return as
	}

	spec := runner.Spec{
		TestName:           c.TestName,
		OutputDir:          out,
		Repetitions:        c.repetitions(),
		TestSetup:          actions(c.TestSetup),
		TransitionSetup:    actions(c.TransitionSetup),
		Transitions:        actions(c.Transitions),
		TransitionTeardown: actions(c.TransitionTeardown),
		TestTeardown:       actions(c.TestTeardown),
	}

	parse := false
	for _, m := range c.Monitors {
		if m.Output == "" {
			spec.Monitors = append(spec.Monitors, &CommandMonitor{Shell: sh, ID: m.Name, StartCmd: m.Start, StopCmd: m.Stop})
			continue
		}
		parse = true
		spec.Monitors = append(spec.Monitors, &FileMonitor{
			Shell:    sh,
			ID:       m.Name,
			StartCmd: m.Start,
			StopCmd:  m.Stop,
			Output:   c.Path(m.Output),
		})
	}
	if parse {
		spec.Parser = DocumentParser{}
	}
	if c.Stable != "" {
		spec.StateSync = CommandStateSync{Shell: sh, Command: c.Stable, Limit: stableLimit}
	}
	if c.Snapshot != nil {
		spec.SnapshotSource = CommandSnapshotSource{Shell: sh, Window: c.Snapshot.Window, Layer: c.Snapshot.Layer}
	}
	return spec
}
