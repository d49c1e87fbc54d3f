package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	v1 "github.com/aevon-lab/growthmart/internal/api/v1"
	"github.com/aevon-lab/growthmart/internal/core/model"
)

// RunFunc starts one pipeline run.
type RunFunc func(ctx context.Context, records []v1.RawRecord) (*model.JobRun, error)

// Scheduler re-runs the pipeline on a fixed interval.
// It is stateless: every tick rebuilds from the raw log as it stands.
type Scheduler struct {
	interval time.Duration
	run      RunFunc
	jobName  string
}

// NewScheduler creates a ticker-driven scheduler for runner.
func NewScheduler(interval time.Duration, runner *Runner) *Scheduler {
	return newScheduler(interval, runner.JobName(), runner.Run)
}

func newScheduler(interval time.Duration, jobName string, run RunFunc) *Scheduler {
	if interval <= 0 {
		panic("pipeline: scheduler interval must be > 0")
	}
	return &Scheduler{interval: interval, run: run, jobName: jobName}
}

// Start runs the pipeline once immediately and then on every tick.
// Runs until context is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	slog.Info("[Scheduler] Starting pipeline scheduler", "interval", s.interval, "job", s.jobName)

	s.tick(ctx)

	for {
		select {
		case <-ticker.C:
			s.tick(ctx)
		case <-ctx.Done():
			slog.Info("[Scheduler] Stopping (context cancelled)", "job", s.jobName)
			return nil
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	run, err := s.run(ctx, nil)
	switch {
	case errors.Is(err, ErrRunInProgress):
		slog.Info("[Scheduler] Previous run still in progress, skipping tick", "job", s.jobName)
	case err != nil:
		// The run itself is recorded as FAILED; the next tick starts afresh.
		slog.Error("[Scheduler] Pipeline run failed", "job", s.jobName, "error", err)
	case run != nil && run.Status == model.JobFailed:
		slog.Warn("[Scheduler] Pipeline run failed validation",
			"job", s.jobName,
			"run_id", run.ID,
			"failed_checks", len(run.FailedChecks))
	}
}
