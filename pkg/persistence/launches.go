package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Outcome values stored for each launch.
const (
	OutcomeSuccess     = "success"
	OutcomeFailed      = "failed"
	OutcomeBuildFailed = "build_failed"
	OutcomeError       = "error"
)

// timeLayout is fixed-width so stored timestamps sort chronologically as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// ErrNotFound is returned when a launch record does not exist.
var ErrNotFound = errors.New("launch not found")

// LaunchRecord is one launcher invocation.
type LaunchRecord struct {
	StartedAt   time.Time
	FinishedAt  time.Time
	RunID       string
	Target      string
	Mode        string
	Fingerprint string
	Outcome     string
	Error       string
	Runtime     string
	Steps       int
	ExitCode    int
	Built       bool
}

// Duration is the wall-clock length of the launch.
func (r *LaunchRecord) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// RecordLaunch inserts or replaces the record keyed by RunID.
func (s *Store) RecordLaunch(ctx context.Context, rec *LaunchRecord) error {
	if rec.RunID == "" {
		return fmt.Errorf("launch record requires a run id")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO launches
			(run_id, target, mode, steps, fingerprint, built, exit_code, outcome, error, runtime, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.RunID, rec.Target, rec.Mode, rec.Steps, rec.Fingerprint, boolToInt(rec.Built),
		rec.ExitCode, rec.Outcome, rec.Error, rec.Runtime,
		rec.StartedAt.UTC().Format(timeLayout), rec.FinishedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("failed to record launch %s: %w", rec.RunID, err)
	}
	return nil
}

// GetLaunch returns the record for runID, or ErrNotFound.
func (s *Store) GetLaunch(ctx context.Context, runID string) (*LaunchRecord, error) {
	row := s.db.QueryRowContext(ctx, selectLaunches+" WHERE run_id = ?", runID)
	rec, err := scanLaunch(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, runID)
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Recent returns up to limit launches, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]*LaunchRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, selectLaunches+" ORDER BY started_at DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query launches: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []*LaunchRecord
	for rows.Next() {
		rec, err := scanLaunch(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate launches: %w", err)
	}
	return records, nil
}

const selectLaunches = `SELECT run_id, target, mode, steps, fingerprint, built, exit_code, outcome, error, runtime, started_at, finished_at FROM launches`

type scanner interface {
	Scan(dest ...any) error
}

func scanLaunch(row scanner) (*LaunchRecord, error) {
	var (
		rec               LaunchRecord
		built             int
		started, finished string
	)
	err := row.Scan(&rec.RunID, &rec.Target, &rec.Mode, &rec.Steps, &rec.Fingerprint, &built,
		&rec.ExitCode, &rec.Outcome, &rec.Error, &rec.Runtime, &started, &finished)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan launch: %w", err)
	}
	rec.Built = built != 0
	if rec.StartedAt, err = time.Parse(timeLayout, started); err != nil {
		return nil, fmt.Errorf("invalid started_at %q: %w", started, err)
	}
	if rec.FinishedAt, err = time.Parse(timeLayout, finished); err != nil {
		return nil, fmt.Errorf("invalid finished_at %q: %w", finished, err)
	}
	return &rec, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
