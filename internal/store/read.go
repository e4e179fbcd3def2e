package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/flicker/internal/runner"
)

const runColumns = `
	r.id, r.seq, r.test_name, r.fingerprint,
	(SELECT COUNT(*) FROM results x WHERE x.run_id = r.id),
	(SELECT COUNT(*) FROM execution_errors e WHERE e.run_id = r.id),
	(SELECT COUNT(*) FROM results x WHERE x.run_id = r.id AND x.status IN ('RUN_FAILED', 'PARSING_FAILURE'))
`

// ListRuns returns every stored run, oldest first.
// Results are ordered deterministically: ORDER BY seq ASC, id COLLATE BINARY ASC.
//
// Returns an empty slice (not nil) if no runs are stored.
func (s *Store) ListRuns(ctx context.Context) ([]RunRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+runColumns+`
		FROM runs r
		ORDER BY r.seq ASC, r.id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []RunRecord{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// LoadRun returns a run with its tags, results, errors and reports.
// Returns ErrNotFound if the run does not exist.
func (s *Store) LoadRun(ctx context.Context, id string) (*RunDetail, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs r WHERE r.id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	detail := &RunDetail{RunRecord: run}
	if detail.Tags, err = s.readTags(ctx, id); err != nil {
		return nil, err
	}
	if detail.Results, err = s.readResults(ctx, id); err != nil {
		return nil, err
	}
	if detail.Errors, err = s.readErrors(ctx, id); err != nil {
		return nil, err
	}
	if detail.Reports, err = s.readReports(ctx, id); err != nil {
		return nil, err
	}
	return detail, nil
}

// ReportBody returns the canonical JSON of a stored report.
func (s *Store) ReportBody(ctx context.Context, reportID int64) ([]byte, error) {
	var body string
	err := s.db.QueryRowContext(ctx, `SELECT body FROM reports WHERE id = ?`, reportID).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("report %d: %w", reportID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query report: %w", err)
	}
	return []byte(body), nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (RunRecord, error) {
	var r RunRecord
	var failedResults int
	if err := sc.Scan(&r.ID, &r.Seq, &r.TestName, &r.Fingerprint, &r.Iterations, &r.ErrorCount, &failedResults); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return r, err
		}
		return r, fmt.Errorf("scan run: %w", err)
	}
	r.Failed = r.ErrorCount > 0 || failedResults > 0
	return r, nil
}

func (s *Store) readTags(ctx context.Context, runID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT label FROM run_tags
		WHERE run_id = ?
		ORDER BY label COLLATE BINARY ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query tags: %w", err)
	}
	defer rows.Close()

	tags := []string{}
	for rows.Next() {
		var label string
		if err := rows.Scan(&label); err != nil {
			return nil, fmt.Errorf("scan tag: %w", err)
		}
		tags = append(tags, label)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tags: %w", err)
	}
	return tags, nil
}

func (s *Store) readResults(ctx context.Context, runID string) ([]ResultRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT iteration, status FROM results
		WHERE run_id = ?
		ORDER BY iteration ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query results: %w", err)
	}
	defer rows.Close()

	results := []ResultRecord{}
	for rows.Next() {
		var r ResultRecord
		var status string
		if err := rows.Scan(&r.Iteration, &status); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		r.Status = runner.RunStatus(status)
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate results: %w", err)
	}
	rows.Close()

	for i := range results {
		it := results[i].Iteration
		if results[i].Artifacts, err = s.readArtifacts(ctx, runID, it); err != nil {
			return nil, err
		}
		if results[i].TaggedStates, err = s.readTaggedStates(ctx, runID, it); err != nil {
			return nil, err
		}
	}
	return results, nil
}

func (s *Store) readArtifacts(ctx context.Context, runID string, iteration int) ([]runner.Artifact, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT monitor, path FROM artifacts
		WHERE run_id = ? AND iteration = ?
		ORDER BY monitor COLLATE BINARY ASC
	`, runID, iteration)
	if err != nil {
		return nil, fmt.Errorf("query artifacts: %w", err)
	}
	defer rows.Close()

	artifacts := []runner.Artifact{}
	for rows.Next() {
		var a runner.Artifact
		if err := rows.Scan(&a.Monitor, &a.Path); err != nil {
			return nil, fmt.Errorf("scan artifact: %w", err)
		}
		artifacts = append(artifacts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate artifacts: %w", err)
	}
	return artifacts, nil
}

func (s *Store) readTaggedStates(ctx context.Context, runID string, iteration int) ([]runner.TaggedState, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT label, window_dump, layer_dump FROM tagged_states
		WHERE run_id = ? AND iteration = ?
		ORDER BY label COLLATE BINARY ASC
	`, runID, iteration)
	if err != nil {
		return nil, fmt.Errorf("query tagged states: %w", err)
	}
	defer rows.Close()

	states := []runner.TaggedState{}
	for rows.Next() {
		var ts runner.TaggedState
		if err := rows.Scan(&ts.Label, &ts.WindowDump, &ts.LayerDump); err != nil {
			return nil, fmt.Errorf("scan tagged state: %w", err)
		}
		states = append(states, ts)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tagged states: %w", err)
	}
	return states, nil
}

func (s *Store) readErrors(ctx context.Context, runID string) ([]ErrorRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT phase, iteration, message FROM execution_errors
		WHERE run_id = ?
		ORDER BY seq ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query execution errors: %w", err)
	}
	defer rows.Close()

	out := []ErrorRecord{}
	for rows.Next() {
		var e ErrorRecord
		if err := rows.Scan(&e.Phase, &e.Iteration, &e.Message); err != nil {
			return nil, fmt.Errorf("scan execution error: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate execution errors: %w", err)
	}
	return out, nil
}

func (s *Store) readReports(ctx context.Context, runID string) ([]ReportRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, iteration, monitor, pass, fingerprint FROM reports
		WHERE run_id = ?
		ORDER BY iteration ASC, monitor COLLATE BINARY ASC, id ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query reports: %w", err)
	}
	defer rows.Close()

	reports := []ReportRecord{}
	for rows.Next() {
		r := ReportRecord{RunID: runID}
		if err := rows.Scan(&r.ID, &r.Iteration, &r.Monitor, &r.Pass, &r.Fingerprint); err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		reports = append(reports, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reports: %w", err)
	}
	rows.Close()

	for i := range reports {
		if reports[i].Outcomes, err = s.ReadOutcomes(ctx, reports[i].ID); err != nil {
			return nil, err
		}
	}
	return reports, nil
}

// ReadOutcomes returns the assertion outcomes of a report in report order.
func (s *Store) ReadOutcomes(ctx context.Context, reportID int64) ([]OutcomeRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT scope, name, scenario, group_name, outcome, message FROM assertion_outcomes
		WHERE report_id = ?
		ORDER BY seq ASC
	`, reportID)
	if err != nil {
		return nil, fmt.Errorf("query outcomes: %w", err)
	}
	defer rows.Close()

	out := []OutcomeRecord{}
	for rows.Next() {
		var o OutcomeRecord
		if err := rows.Scan(&o.Scope, &o.Name, &o.Scenario, &o.Group, &o.Outcome, &o.Message); err != nil {
			return nil, fmt.Errorf("scan outcome: %w", err)
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outcomes: %w", err)
	}
	return out, nil
}
