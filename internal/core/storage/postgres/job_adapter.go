package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aevon-lab/growthmart/internal/core/model"
	"github.com/aevon-lab/growthmart/internal/core/storage"
)

const (
	queryInsertJobRun = `
		INSERT INTO job_runs (
			id, job_name, status, started_at, finished_at, rows_loaded, duration_ms, error_detail, failed_checks
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	queryUpdateJobRun = `
		UPDATE job_runs SET
			status        = $2,
			started_at    = $3,
			finished_at   = $4,
			rows_loaded   = $5,
			duration_ms   = $6,
			error_detail  = $7,
			failed_checks = $8
		WHERE id = $1
	`

	querySelectJobRun = `
		SELECT id, job_name, status, started_at, finished_at, rows_loaded, duration_ms, error_detail, failed_checks
		FROM job_runs
		WHERE id = $1
	`

	querySelectJobRuns = `
		SELECT id, job_name, status, started_at, finished_at, rows_loaded, duration_ms, error_detail, failed_checks
		FROM job_runs
		WHERE job_name = $1
		ORDER BY started_at DESC
		LIMIT $2
	`
)

// JobAdapter implements storage.JobStore using PostgreSQL.
type JobAdapter struct {
	db *sql.DB
}

// NewJobAdapter creates a JobAdapter sharing the given connection.
func NewJobAdapter(db *sql.DB) *JobAdapter {
	return &JobAdapter{db: db}
}

func (a *JobAdapter) CreateRun(ctx context.Context, run *model.JobRun) error {
	checks, err := marshalChecks(run.FailedChecks)
	if err != nil {
		return err
	}
	_, err = a.db.ExecContext(ctx, queryInsertJobRun,
		run.ID, run.JobName, string(run.Status), run.StartedAt, nullTime(run.FinishedAt),
		run.RowsLoaded, run.DurationMs, run.ErrorDetail, checks,
	)
	if err != nil {
		return fmt.Errorf("create job run %s: %w", run.ID, err)
	}
	return nil
}

// UpdateRun rewrites the mutable columns of an existing run. An unknown id
// returns storage.ErrNotFound.
func (a *JobAdapter) UpdateRun(ctx context.Context, run *model.JobRun) error {
	checks, err := marshalChecks(run.FailedChecks)
	if err != nil {
		return err
	}
	result, err := a.db.ExecContext(ctx, queryUpdateJobRun,
		run.ID, string(run.Status), run.StartedAt, nullTime(run.FinishedAt),
		run.RowsLoaded, run.DurationMs, run.ErrorDetail, checks,
	)
	if err != nil {
		return fmt.Errorf("update job run %s: %w", run.ID, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update job run %s: rows affected: %w", run.ID, err)
	}
	if affected == 0 {
		return fmt.Errorf("update job run %s: %w", run.ID, storage.ErrNotFound)
	}
	return nil
}

func (a *JobAdapter) GetRun(ctx context.Context, id string) (*model.JobRun, error) {
	run, err := scanJobRun(a.db.QueryRowContext(ctx, querySelectJobRun, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job run %s: %w", id, err)
	}
	return run, nil
}

// ListRuns returns the most recent runs of jobName, newest first.
func (a *JobAdapter) ListRuns(ctx context.Context, jobName string, limit int) ([]*model.JobRun, error) {
	runs, err := queryAll(ctx, a.db, querySelectJobRuns, scanJobRun, jobName, limit)
	if err != nil {
		return nil, fmt.Errorf("list job runs: %w", err)
	}
	return runs, nil
}

func scanJobRun(row scanner) (*model.JobRun, error) {
	var run model.JobRun
	var status string
	var finished sql.NullTime
	var checks []byte

	if err := row.Scan(
		&run.ID, &run.JobName, &status, &run.StartedAt, &finished,
		&run.RowsLoaded, &run.DurationMs, &run.ErrorDetail, &checks,
	); err != nil {
		return nil, err
	}

	parsed, err := model.ParseJobStatus(status)
	if err != nil {
		return nil, err
	}
	run.Status = parsed
	run.StartedAt = run.StartedAt.UTC()
	run.FinishedAt = timePtr(finished)

	if len(checks) > 0 {
		if err := json.Unmarshal(checks, &run.FailedChecks); err != nil {
			return nil, fmt.Errorf("failed to unmarshal failed_checks: %w", err)
		}
	}
	return &run, nil
}

func marshalChecks(checks []model.CheckResult) ([]byte, error) {
	if checks == nil {
		checks = []model.CheckResult{}
	}
	b, err := json.Marshal(checks)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal failed_checks: %w", err)
	}
	return b, nil
}
