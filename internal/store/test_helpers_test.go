package store

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/roach88/flicker/internal/runner"
	"github.com/roach88/flicker/internal/testutil"
)

// createTestStore creates a new store in a temp directory for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

type snapshots struct{}

func (snapshots) Capture(context.Context) ([]byte, []byte, error) {
	return []byte("windows"), []byte("layers"), nil
}

// runSummary executes a two-iteration run with a file-generating monitor.
// The transition creates a tag; when fail is set the second iteration's
// transition fails.
func runSummary(t *testing.T, runID string, fail bool) *runner.Summary {
	t.Helper()
	dir := t.TempDir()
	transition := runner.ActionFunc(func(ctx context.Context, h *runner.Handle) error {
		if err := h.CreateTag(ctx, "open"); err != nil {
			return err
		}
		if fail && h.Iteration() == 1 {
			return errors.New("tap missed")
		}
		return nil
	})
	spec := runner.Spec{
		TestName:       "open-app",
		OutputDir:      dir,
		Repetitions:    2,
		Transitions:    []runner.Action{transition},
		Monitors:       []runner.Monitor{&testutil.Monitor{ID: "wm", Dir: dir, Content: []byte("entries: []")}},
		SnapshotSource: snapshots{},
	}
	r := runner.New(runner.WithRunIDs(fixedID(runID)))
	sum, err := r.Execute(t.Context(), spec)
	if err != nil {
		t.Fatalf("Execute() failed: %v", err)
	}
	return sum
}

type fixedID string

func (id fixedID) Generate() string { return string(id) }

func getTableColumns(t *testing.T, db *sql.DB, table string) []string {
	t.Helper()
	rows, err := db.Query("SELECT name FROM pragma_table_info(?)", table)
	if err != nil {
		t.Fatalf("table_info(%s) failed: %v", table, err)
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			t.Fatalf("scan column: %v", err)
		}
		cols = append(cols, name)
	}
	return cols
}

func getTableIndexes(t *testing.T, db *sql.DB, table string) []string {
	t.Helper()
	rows, err := db.Query("SELECT name FROM sqlite_master WHERE type='index' AND tbl_name=?", table)
	if err != nil {
		t.Fatalf("index list for %s failed: %v", table, err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			t.Fatalf("scan index: %v", err)
		}
		names = append(names, name)
	}
	return names
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
