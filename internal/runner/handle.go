package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"unicode"
)

// ErrInvalidTag is returned by CreateTag for labels that cannot be part of a
// file name.
var ErrInvalidTag = errors.New("invalid tag")

// Handle is the view of a running test given to actions.
type Handle struct {
	x *execution
}

// TestName is the name of the running test.
func (h *Handle) TestName() string {
	return h.x.spec.TestName
}

// Iteration is the current repetition, or -1 outside the repetition loop.
func (h *Handle) Iteration() int {
	return h.x.iteration
}

// Logger returns the run's logger.
func (h *Handle) Logger() *slog.Logger {
	return h.x.logger
}

// CreateTag captures the current state and records it against the current
// iteration under label. The label becomes part of the dump file names, so
// it must be non-empty and free of whitespace and path separators.
func (h *Handle) CreateTag(ctx context.Context, label string) error {
	if label == "" || strings.ContainsFunc(label, unicode.IsSpace) || strings.ContainsAny(label, `/\`) {
		return fmt.Errorf("%w: %q can not be part of a file name", ErrInvalidTag, label)
	}
	x := h.x
	res := x.current
	if res == nil {
		return fmt.Errorf("create tag %s: no iteration is running", label)
	}
	if res.Locked() {
		return fmt.Errorf("create tag %s: %w", label, ErrResultLocked)
	}
	if x.spec.SnapshotSource == nil {
		return fmt.Errorf("create tag %s: no snapshot source configured", label)
	}
	x.tags[label] = true

	window, layer, err := x.spec.SnapshotSource.Capture(ctx)
	if err != nil {
		return fmt.Errorf("create tag %s: capture state: %w", label, err)
	}
	if err := os.MkdirAll(x.spec.OutputDir, 0o755); err != nil {
		return fmt.Errorf("create tag %s: %w", label, err)
	}
	ts := TaggedState{
		Label:      label,
		WindowDump: h.taggedPath(label, "wm_dump"),
		LayerDump:  h.taggedPath(label, "layers_dump"),
	}
	if err := os.WriteFile(ts.WindowDump, window, 0o644); err != nil {
		return fmt.Errorf("create tag %s: %w", label, err)
	}
	if err := os.WriteFile(ts.LayerDump, layer, 0o644); err != nil {
		return fmt.Errorf("create tag %s: %w", label, err)
	}
	if err := res.addTaggedState(ts); err != nil {
		return err
	}
	x.logger.Debug("tag created", "label", label, "iteration", x.iteration)
	return nil
}

func (h *Handle) taggedPath(label, kind string) string {
	name := fmt.Sprintf("%s_%d_%s_%s", h.x.spec.TestName, h.x.iteration, label, kind)
	return filepath.Join(h.x.spec.OutputDir, name)
}
