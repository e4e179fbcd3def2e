package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/flicker/internal/assertor"
	"github.com/roach88/flicker/internal/canon"
	"github.com/roach88/flicker/internal/harness"
	"github.com/roach88/flicker/internal/runner"
)

// WriteSummary stores a run summary in one transaction.
// Uses ON CONFLICT DO NOTHING for idempotency - writing a run id that is
// already stored leaves the stored run unchanged.
func (s *Store) WriteSummary(ctx context.Context, sum *runner.Summary) error {
	body, err := canon.Marshal(sum)
	if err != nil {
		return fmt.Errorf("write summary: %w", err)
	}
	fp, err := canon.Fingerprint(canon.DomainSummary, sum)
	if err != nil {
		return fmt.Errorf("write summary: %w", err)
	}

	return s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO runs (id, seq, test_name, fingerprint, summary)
			VALUES (?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM runs), ?, ?, ?)
			ON CONFLICT(id) DO NOTHING
		`, sum.RunID, sum.TestName, fp, string(body))
		if err != nil {
			return fmt.Errorf("write run: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return nil
		}

		for _, tag := range sum.Tags {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO run_tags (run_id, label) VALUES (?, ?)
				ON CONFLICT DO NOTHING
			`, sum.RunID, tag); err != nil {
				return fmt.Errorf("write tag %s: %w", tag, err)
			}
		}

		for _, r := range sum.Results {
			if err := writeResult(ctx, tx, sum.RunID, r); err != nil {
				return err
			}
		}

		for i, e := range sum.ExecutionErrors {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO execution_errors (run_id, seq, phase, iteration, message)
				VALUES (?, ?, ?, ?, ?)
			`, sum.RunID, i+1, e.Phase.Failure(), e.Iteration, e.Err.Error()); err != nil {
				return fmt.Errorf("write execution error: %w", err)
			}
		}
		return nil
	})
}

func writeResult(ctx context.Context, tx *sql.Tx, runID string, r *runner.RunResult) error {
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO results (run_id, iteration, status) VALUES (?, ?, ?)
	`, runID, r.Iteration(), string(r.Status())); err != nil {
		return fmt.Errorf("write result %d: %w", r.Iteration(), err)
	}
	for _, a := range r.Artifacts() {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO artifacts (run_id, iteration, monitor, path) VALUES (?, ?, ?, ?)
		`, runID, r.Iteration(), a.Monitor, a.Path); err != nil {
			return fmt.Errorf("write artifact %s: %w", a.Monitor, err)
		}
	}
	for _, ts := range r.TaggedStates() {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO tagged_states (run_id, iteration, label, window_dump, layer_dump)
			VALUES (?, ?, ?, ?, ?)
		`, runID, r.Iteration(), ts.Label, ts.WindowDump, ts.LayerDump); err != nil {
			return fmt.Errorf("write tagged state %s: %w", ts.Label, err)
		}
	}
	return nil
}

// ReportKey locates a report. RunID is empty for a trace checked outside a
// run; Iteration is then -1.
type ReportKey struct {
	RunID     string
	Iteration int
	Monitor   string
}

// WriteReport stores a check report and its flattened assertion outcomes.
// It returns the report id; writing an identical report for the same key
// returns the existing id.
func (s *Store) WriteReport(ctx context.Context, key ReportKey, r *harness.Report) (int64, error) {
	body, err := canon.Marshal(r)
	if err != nil {
		return 0, fmt.Errorf("write report: %w", err)
	}
	fp, err := canon.Fingerprint(canon.DomainReport, r)
	if err != nil {
		return 0, fmt.Errorf("write report: %w", err)
	}
	var runID any
	if key.RunID != "" {
		runID = key.RunID
	}

	var id int64
	err = s.inTx(ctx, func(tx *sql.Tx) error {
		if key.RunID != "" {
			err := tx.QueryRowContext(ctx, `
				SELECT id FROM reports
				WHERE fingerprint = ? AND run_id = ? AND iteration = ? AND monitor = ?
			`, fp, key.RunID, key.Iteration, key.Monitor).Scan(&id)
			if err == nil {
				return nil
			}
			if !errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("lookup report: %w", err)
			}
		}

		res, err := tx.ExecContext(ctx, `
			INSERT INTO reports (run_id, iteration, monitor, pass, fingerprint, body)
			VALUES (?, ?, ?, ?, ?, ?)
		`, runID, key.Iteration, key.Monitor, r.Pass, fp, string(body))
		if err != nil {
			return fmt.Errorf("write report: %w", err)
		}
		id, err = res.LastInsertId()
		if err != nil {
			return fmt.Errorf("write report: %w", err)
		}

		for i, o := range flatten(r) {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO assertion_outcomes
				(report_id, seq, scope, name, scenario, group_name, outcome, message)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			`, id, i+1, o.Scope, o.Name, o.Scenario, o.Group, o.Outcome, o.Message); err != nil {
				return fmt.Errorf("write outcome %s: %w", o.Name, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// flatten lists every assertion result of r in report order.
func flatten(r *harness.Report) []OutcomeRecord {
	var out []OutcomeRecord
	add := func(scope string, batch assertor.BatchResult) {
		for _, res := range batch.Results {
			out = append(out, OutcomeRecord{
				Scope:    scope,
				Name:     res.Name,
				Scenario: string(res.Scenario),
				Group:    string(res.Group),
				Outcome:  string(res.Outcome),
				Message:  res.Message,
			})
		}
	}
	for _, iv := range r.Intervals {
		add(fmt.Sprintf("interval:%s#%d", iv.Interval.Scenario, iv.Interval.ID), iv.Results)
	}
	for _, t := range r.Transitions {
		add(fmt.Sprintf("transition:%d", t.ID), t.Results)
	}
	if r.Trace != nil {
		add("trace", *r.Trace)
	}
	return out
}

func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
