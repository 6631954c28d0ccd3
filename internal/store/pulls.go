package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Pull job statuses.
const (
	PullRunning = "running"
	PullDone    = "done"
	PullFailed  = "failed"
)

// ErrPullRunning is returned by ClaimPull while another job holds the slot.
var ErrPullRunning = errors.New("a pull is already running")

// PullJob is the persisted record of one portal pull. Its row doubles as
// the single-flight lock: at most one job may be in the running state.
type PullJob struct {
	ID         string
	AgencyCode string
	Status     string
	StartedAt  time.Time
	FinishedAt time.Time
	Terms      int
	NewPOs     int
	NewLines   int
	PriceRows  int
	Errors     int
	Summary    string
}

// ClaimPull atomically creates a running job, failing with ErrPullRunning
// when one exists. The claim itself is the concurrency gate, so this must
// happen before any portal traffic.
func (s *Store) ClaimPull(ctx context.Context, agencyCode string) (*PullJob, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin claim: %w", err)
	}
	defer tx.Rollback()

	var running int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM pull_jobs WHERE status = ?`, PullRunning,
	).Scan(&running)
	if err != nil {
		return nil, fmt.Errorf("check running pulls: %w", err)
	}
	if running > 0 {
		return nil, ErrPullRunning
	}

	job := &PullJob{
		ID:         uuid.NewString(),
		AgencyCode: agencyCode,
		Status:     PullRunning,
		StartedAt:  time.Now().UTC(),
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO pull_jobs (id, agency_code, status, started_at) VALUES (?, ?, ?, ?)`,
		job.ID, job.AgencyCode, job.Status, job.StartedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert pull job: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit claim: %w", err)
	}
	return job, nil
}

// FinishPull closes out a job with its final counters.
func (s *Store) FinishPull(ctx context.Context, job *PullJob) error {
	job.FinishedAt = time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		UPDATE pull_jobs
		SET status = ?, finished_at = ?, terms = ?, new_pos = ?, new_lines = ?,
		    price_rows = ?, errors = ?, summary = ?
		WHERE id = ?`,
		job.Status, job.FinishedAt, job.Terms, job.NewPOs, job.NewLines,
		job.PriceRows, job.Errors, job.Summary, job.ID,
	)
	if err != nil {
		return fmt.Errorf("finish pull %s: %w", job.ID, err)
	}
	return nil
}

// LatestPull returns the most recent job, running or not, or nil when no
// pull has ever run.
func (s *Store) LatestPull(ctx context.Context) (*PullJob, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, agency_code, status, started_at, finished_at,
		       terms, new_pos, new_lines, price_rows, errors, summary
		FROM pull_jobs ORDER BY started_at DESC LIMIT 1`)

	var job PullJob
	var finished sql.NullTime
	var summary sql.NullString
	err := row.Scan(&job.ID, &job.AgencyCode, &job.Status, &job.StartedAt, &finished,
		&job.Terms, &job.NewPOs, &job.NewLines, &job.PriceRows, &job.Errors, &summary)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest pull: %w", err)
	}
	job.FinishedAt = finished.Time
	job.Summary = summary.String
	return &job, nil
}

// AppendPullLog records one progress line for a job.
func (s *Store) AppendPullLog(ctx context.Context, jobID, message string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO pull_log (job_id, ts, message) VALUES (?, ?, ?)`,
		jobID, time.Now().UTC(), message,
	)
	if err != nil {
		return fmt.Errorf("append pull log: %w", err)
	}
	return nil
}

// PullLog returns a job's progress lines in order.
func (s *Store) PullLog(ctx context.Context, jobID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT message FROM pull_log WHERE job_id = ? ORDER BY id`, jobID)
	if err != nil {
		return nil, fmt.Errorf("read pull log: %w", err)
	}
	defer rows.Close()

	var lines []string
	for rows.Next() {
		var msg string
		if err := rows.Scan(&msg); err != nil {
			return nil, fmt.Errorf("scan pull log: %w", err)
		}
		lines = append(lines, msg)
	}
	return lines, rows.Err()
}

// MarkPulled records a completed pull for an agency and schedules the next.
func (s *Store) MarkPulled(ctx context.Context, agencyCode string, next time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO agency_schedule (agency_code, last_pull, next_pull)
		VALUES (?, ?, ?)
		ON CONFLICT(agency_code) DO UPDATE SET
			last_pull = excluded.last_pull,
			next_pull = excluded.next_pull`,
		agencyCode, time.Now().UTC(), next,
	)
	if err != nil {
		return fmt.Errorf("mark pulled %s: %w", agencyCode, err)
	}
	return nil
}

// DueAgencies lists agency codes whose next pull time has arrived. Agencies
// never pulled have no schedule row and are always due; the scheduler
// resolves that by passing every registered code through here.
func (s *Store) DueAgencies(ctx context.Context, codes []string, now time.Time) ([]string, error) {
	var due []string
	for _, code := range codes {
		var next sql.NullTime
		err := s.db.QueryRowContext(ctx,
			`SELECT next_pull FROM agency_schedule WHERE agency_code = ?`, code,
		).Scan(&next)
		if err == sql.ErrNoRows {
			due = append(due, code)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("check schedule %s: %w", code, err)
		}
		if !next.Valid || !next.Time.After(now) {
			due = append(due, code)
		}
	}
	return due, nil
}
