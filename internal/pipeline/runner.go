package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	v1 "github.com/aevon-lab/growthmart/internal/api/v1"
	"github.com/aevon-lab/growthmart/internal/core/model"
	"github.com/aevon-lab/growthmart/internal/core/storage"
	"github.com/aevon-lab/growthmart/internal/mart"
	"github.com/aevon-lab/growthmart/internal/metrics"
	"github.com/aevon-lab/growthmart/internal/staging"
	"github.com/aevon-lab/growthmart/internal/validate"
	"github.com/google/uuid"
	"go.uber.org/multierr"
)

// ErrRunInProgress is returned when a run is requested while another one
// holds the pipeline.
var ErrRunInProgress = errors.New("pipeline run already in progress")

// Stage names used for logging and metrics.
const (
	StageCapture   = "capture"
	StageNormalize = "normalize"
	StageBuild     = "build"
	StageCohorts   = "cohorts"
	StageValidate  = "validate"
)

type Capturer interface {
	Capture(ctx context.Context, records []v1.RawRecord) (int, error)
}

type Normalizer interface {
	Normalize(ctx context.Context) (staging.Result, error)
}

type Builder interface {
	Build(ctx context.Context) (mart.Result, error)
}

type CohortRunner interface {
	Run(ctx context.Context) ([]model.Cohort, error)
}

type Validator interface {
	Run(ctx context.Context) ([]model.CheckResult, error)
}

// Stages are the pipeline steps in execution order.
type Stages struct {
	Capture   Capturer
	Normalize Normalizer
	Build     Builder
	Cohorts   CohortRunner
	Validate  Validator
}

// Runner executes the stages as one tracked job. Only one run executes at a
// time per Runner.
type Runner struct {
	stages  Stages
	jobs    storage.JobStore
	metrics *metrics.PipelineMetrics
	jobName string

	mu    sync.Mutex
	now   func() time.Time
	newID func() string
}

func NewRunner(stages Stages, jobs storage.JobStore, m *metrics.PipelineMetrics, jobName string) *Runner {
	if stages.Capture == nil || stages.Normalize == nil || stages.Build == nil ||
		stages.Cohorts == nil || stages.Validate == nil {
		panic("pipeline: every stage is required")
	}
	if jobs == nil {
		panic("pipeline: job store must not be nil")
	}
	return &Runner{
		stages:  stages,
		jobs:    jobs,
		metrics: m,
		jobName: jobName,
		now:     func() time.Time { return time.Now().UTC() },
		newID:   func() string { return uuid.NewString() },
	}
}

// JobName is the name every run of this Runner is recorded under.
func (r *Runner) JobName() string { return r.jobName }

// Run creates a job run and executes every stage. records, when non-empty,
// are captured first; otherwise the run rebuilds from the existing raw log.
//
// A failed validation check marks the run FAILED and is not an error. Any
// stage error marks the run FAILED and is returned alongside the run.
func (r *Runner) Run(ctx context.Context, records []v1.RawRecord) (*model.JobRun, error) {
	if !r.mu.TryLock() {
		return nil, ErrRunInProgress
	}
	defer r.mu.Unlock()

	run := &model.JobRun{
		ID:        r.newID(),
		JobName:   r.jobName,
		Status:    model.JobPending,
		StartedAt: r.now(),
	}
	if err := r.jobs.CreateRun(ctx, run); err != nil {
		return nil, fmt.Errorf("create job run: %w", err)
	}
	slog.Info("[Pipeline] Run created", "run_id", run.ID, "job", r.jobName, "records", len(records))

	return r.execute(ctx, run, records)
}

// Retry re-executes a FAILED run from the first stage under the same id.
// The raw log is not re-captured.
func (r *Runner) Retry(ctx context.Context, id string) (*model.JobRun, error) {
	if !r.mu.TryLock() {
		return nil, ErrRunInProgress
	}
	defer r.mu.Unlock()

	run, err := r.jobs.GetRun(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get job run %s: %w", id, err)
	}
	if err := run.Transition(model.JobRetrying); err != nil {
		return nil, err
	}
	run.StartedAt = r.now()
	run.FinishedAt = nil
	run.RowsLoaded = 0
	run.DurationMs = 0
	run.ErrorDetail = ""
	run.FailedChecks = nil
	if err := r.jobs.UpdateRun(ctx, run); err != nil {
		return nil, fmt.Errorf("mark run %s retrying: %w", id, err)
	}
	slog.Info("[Pipeline] Retrying run", "run_id", run.ID)

	return r.execute(ctx, run, nil)
}

func (r *Runner) execute(ctx context.Context, run *model.JobRun, records []v1.RawRecord) (*model.JobRun, error) {
	prev := run.Status
	if err := run.Transition(model.JobRunning); err != nil {
		return run, err
	}
	if err := r.jobs.UpdateRun(ctx, run); err != nil {
		run.Status = prev
		return run, r.abandon(ctx, run, fmt.Errorf("mark run %s running: %w", run.ID, err))
	}

	rows, checks, stageErr := r.runStages(ctx, records)
	run.RowsLoaded = rows

	// Bookkeeping must land even when the caller's context was cancelled.
	finishCtx := context.WithoutCancel(ctx)
	failed := validate.Failed(checks)

	switch {
	case stageErr != nil:
		run.ErrorDetail = stageErr.Error()
	case len(failed) > 0:
		run.FailedChecks = failed
		run.ErrorDetail = fmt.Sprintf("%d validation check(s) failed", len(failed))
		for _, c := range failed {
			r.metrics.IncFailedCheck(c.Check)
		}
	}

	next := model.JobSuccess
	if stageErr != nil || len(failed) > 0 {
		next = model.JobFailed
	}
	if err := run.Transition(next); err != nil {
		return run, multierr.Append(stageErr, err)
	}
	finished := r.now()
	run.FinishedAt = &finished
	run.DurationMs = finished.Sub(run.StartedAt).Milliseconds()

	r.metrics.ObserveRun(r.jobName, finished.Sub(run.StartedAt), next == model.JobSuccess)

	if err := r.jobs.UpdateRun(finishCtx, run); err != nil {
		return run, multierr.Append(stageErr, fmt.Errorf("record run %s outcome: %w", run.ID, err))
	}

	slog.Info("[Pipeline] Run finished",
		"run_id", run.ID,
		"status", run.Status,
		"rows_loaded", run.RowsLoaded,
		"duration_ms", run.DurationMs,
		"failed_checks", len(failed))
	if stageErr != nil {
		slog.Error("[Pipeline] Run failed", "run_id", run.ID, "error", stageErr)
	}
	return run, stageErr
}

// abandon records a run that never reached RUNNING as FAILED, so it can be
// retried. cause is returned, joined with any bookkeeping error.
func (r *Runner) abandon(ctx context.Context, run *model.JobRun, cause error) error {
	if err := run.Transition(model.JobFailed); err != nil {
		return multierr.Append(cause, err)
	}
	finished := r.now()
	run.FinishedAt = &finished
	run.DurationMs = finished.Sub(run.StartedAt).Milliseconds()
	run.ErrorDetail = cause.Error()
	r.metrics.ObserveRun(r.jobName, finished.Sub(run.StartedAt), false)

	slog.Error("[Pipeline] Run could not start", "run_id", run.ID, "error", cause)
	if err := r.jobs.UpdateRun(context.WithoutCancel(ctx), run); err != nil {
		return multierr.Append(cause, fmt.Errorf("record run %s outcome: %w", run.ID, err))
	}
	return cause
}

// runStages executes the stages in order and stops at the first error.
func (r *Runner) runStages(ctx context.Context, records []v1.RawRecord) (int64, []model.CheckResult, error) {
	var rows int64

	if len(records) > 0 {
		err := r.stage(ctx, StageCapture, &rows, func() (int, error) {
			return r.stages.Capture.Capture(ctx, records)
		})
		if err != nil {
			return rows, nil, err
		}
	}

	err := r.stage(ctx, StageNormalize, &rows, func() (int, error) {
		res, err := r.stages.Normalize.Normalize(ctx)
		return res.Rows(), err
	})
	if err != nil {
		return rows, nil, err
	}

	err = r.stage(ctx, StageBuild, &rows, func() (int, error) {
		res, err := r.stages.Build.Build(ctx)
		return res.Rows(), err
	})
	if err != nil {
		return rows, nil, err
	}

	err = r.stage(ctx, StageCohorts, &rows, func() (int, error) {
		cohorts, err := r.stages.Cohorts.Run(ctx)
		return len(cohorts), err
	})
	if err != nil {
		return rows, nil, err
	}

	var checks []model.CheckResult
	err = r.stage(ctx, StageValidate, nil, func() (int, error) {
		var err error
		checks, err = r.stages.Validate.Run(ctx)
		return 0, err
	})
	return rows, checks, err
}

func (r *Runner) stage(ctx context.Context, name string, rows *int64, fn func() (int, error)) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	start := time.Now()
	n, err := fn()
	r.metrics.ObserveStage(name, time.Since(start), n)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	if rows != nil {
		*rows += int64(n)
	}
	return nil
}
