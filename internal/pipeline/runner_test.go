package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	v1 "github.com/aevon-lab/growthmart/internal/api/v1"
	"github.com/aevon-lab/growthmart/internal/core/model"
	"github.com/aevon-lab/growthmart/internal/core/storage"
	"github.com/aevon-lab/growthmart/internal/core/storage/memory"
	"github.com/aevon-lab/growthmart/internal/mart"
	"github.com/aevon-lab/growthmart/internal/metrics"
	"github.com/aevon-lab/growthmart/internal/staging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

// stubStages implements every stage with overridable behaviour and records
// the order in which stages were called.
type stubStages struct {
	calls     []string
	captured  int
	normalize func(ctx context.Context) (staging.Result, error)
	build     func(ctx context.Context) (mart.Result, error)
	checks    []model.CheckResult
	checkErr  error
}

func (s *stubStages) Capture(_ context.Context, records []v1.RawRecord) (int, error) {
	s.calls = append(s.calls, StageCapture)
	s.captured += len(records)
	return len(records), nil
}

func (s *stubStages) Normalize(ctx context.Context) (staging.Result, error) {
	s.calls = append(s.calls, StageNormalize)
	if s.normalize != nil {
		return s.normalize(ctx)
	}
	return staging.Result{Orders: 3, Customers: 2}, nil
}

func (s *stubStages) Build(ctx context.Context) (mart.Result, error) {
	s.calls = append(s.calls, StageBuild)
	if s.build != nil {
		return s.build(ctx)
	}
	return mart.Result{OrderFacts: 3, Customers: 2}, nil
}

func (s *stubStages) cohortStage() CohortRunner { return cohortFunc(s.runCohorts) }

func (s *stubStages) runCohorts(context.Context) ([]model.Cohort, error) {
	s.calls = append(s.calls, StageCohorts)
	return []model.Cohort{{CohortSize: 2}}, nil
}

func (s *stubStages) Run(context.Context) ([]model.CheckResult, error) {
	s.calls = append(s.calls, StageValidate)
	return s.checks, s.checkErr
}

type cohortFunc func(ctx context.Context) ([]model.Cohort, error)

func (f cohortFunc) Run(ctx context.Context) ([]model.Cohort, error) { return f(ctx) }

func newTestRunner(stub *stubStages, jobs storage.JobStore, m *metrics.PipelineMetrics) *Runner {
	r := NewRunner(Stages{
		Capture:   stub,
		Normalize: stub,
		Build:     stub,
		Cohorts:   stub.cohortStage(),
		Validate:  stub,
	}, jobs, m, "growthmart")

	var seq int64
	clock := time.Date(2024, 4, 1, 2, 0, 0, 0, time.UTC)
	r.newID = func() string { return fmt.Sprintf("run-%d", atomic.AddInt64(&seq, 1)) }
	r.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return r
}

func TestRunner_Success(t *testing.T) {
	jobs := memory.NewStore()
	reg := prometheus.NewRegistry()
	stub := &stubStages{checks: []model.CheckResult{{Check: "fact_orders_non_empty", Passed: true}}}
	r := newTestRunner(stub, jobs, metrics.NewPipelineMetrics(reg))

	run, err := r.Run(context.Background(), []v1.RawRecord{{Source: "shopify"}, {Source: "meta"}})
	require.NoError(t, err)
	require.Equal(t, model.JobSuccess, run.Status)
	require.Equal(t, "run-1", run.ID)
	// 2 captured + 5 staged + 5 mart rows + 1 cohort
	require.EqualValues(t, 13, run.RowsLoaded)
	require.NotNil(t, run.FinishedAt)
	require.Positive(t, run.DurationMs)
	require.Empty(t, run.FailedChecks)
	require.Equal(t, []string{StageCapture, StageNormalize, StageBuild, StageCohorts, StageValidate}, stub.calls)

	stored, err := jobs.GetRun(context.Background(), run.ID)
	require.NoError(t, err)
	require.Equal(t, model.JobSuccess, stored.Status)
	require.EqualValues(t, 13, stored.RowsLoaded)

	mfs, err := reg.Gather()
	require.NoError(t, err)
	var sawSuccess bool
	for _, mf := range mfs {
		if mf.GetName() == "pipeline_run_success_total" {
			sawSuccess = mf.GetMetric()[0].GetCounter().GetValue() == 1
		}
	}
	require.True(t, sawSuccess)
}

func TestRunner_SkipsCaptureWithoutRecords(t *testing.T) {
	stub := &stubStages{}
	r := newTestRunner(stub, memory.NewStore(), nil)

	run, err := r.Run(context.Background(), nil)
	require.NoError(t, err)
	require.Equal(t, model.JobSuccess, run.Status)
	require.NotContains(t, stub.calls, StageCapture)
}

func TestRunner_FailedChecksMarkRunFailed(t *testing.T) {
	jobs := memory.NewStore()
	stub := &stubStages{checks: []model.CheckResult{
		{Check: "fact_orders_non_empty", Passed: true, Message: "fact_orders has 3 rows"},
		{Check: "fact_spend_non_empty", Passed: false, Message: "fact_spend is empty"},
	}}
	r := newTestRunner(stub, jobs, nil)

	run, err := r.Run(context.Background(), nil)
	require.NoError(t, err, "validation failures are not infrastructure errors")
	require.Equal(t, model.JobFailed, run.Status)
	require.Len(t, run.FailedChecks, 1)
	require.Equal(t, "fact_spend_non_empty", run.FailedChecks[0].Check)
	require.Contains(t, run.ErrorDetail, "1 validation check(s) failed")

	stored, err := jobs.GetRun(context.Background(), run.ID)
	require.NoError(t, err)
	require.Equal(t, run.FailedChecks, stored.FailedChecks)
}

func TestRunner_StageErrorStopsPipeline(t *testing.T) {
	jobs := memory.NewStore()
	stub := &stubStages{
		build: func(context.Context) (mart.Result, error) {
			return mart.Result{}, errors.New("deadlock detected")
		},
	}
	r := newTestRunner(stub, jobs, nil)

	run, err := r.Run(context.Background(), nil)
	require.ErrorContains(t, err, "build: deadlock detected")
	require.NotNil(t, run)
	require.Equal(t, model.JobFailed, run.Status)
	require.Contains(t, run.ErrorDetail, "deadlock detected")
	require.Equal(t, []string{StageNormalize, StageBuild}, stub.calls)

	stored, err := jobs.GetRun(context.Background(), run.ID)
	require.NoError(t, err)
	require.Equal(t, model.JobFailed, stored.Status)
}

func TestRunner_CancelledContextStillRecordsOutcome(t *testing.T) {
	jobs := memory.NewStore()
	ctx, cancel := context.WithCancel(context.Background())
	stub := &stubStages{
		normalize: func(context.Context) (staging.Result, error) {
			cancel()
			return staging.Result{Orders: 1}, nil
		},
	}
	r := newTestRunner(stub, jobs, nil)

	run, err := r.Run(ctx, nil)
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, model.JobFailed, run.Status)

	stored, err := jobs.GetRun(context.Background(), run.ID)
	require.NoError(t, err)
	require.Equal(t, model.JobFailed, stored.Status)
}

func TestRunner_Retry(t *testing.T) {
	jobs := memory.NewStore()
	failing := true
	stub := &stubStages{
		normalize: func(context.Context) (staging.Result, error) {
			if failing {
				return staging.Result{}, errors.New("connection refused")
			}
			return staging.Result{Orders: 1}, nil
		},
	}
	r := newTestRunner(stub, jobs, nil)

	failed, err := r.Run(context.Background(), nil)
	require.Error(t, err)
	require.Equal(t, model.JobFailed, failed.Status)

	failing = false
	retried, err := r.Retry(context.Background(), failed.ID)
	require.NoError(t, err)
	require.Equal(t, failed.ID, retried.ID)
	require.Equal(t, model.JobSuccess, retried.Status)
	require.Empty(t, retried.ErrorDetail)

	_, err = r.Retry(context.Background(), failed.ID)
	require.ErrorIs(t, err, model.ErrInvalidTransition, "a successful run cannot be retried")

	_, err = r.Retry(context.Background(), "missing")
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestRunner_RejectsConcurrentRun(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	stub := &stubStages{
		normalize: func(context.Context) (staging.Result, error) {
			close(started)
			<-release
			return staging.Result{}, nil
		},
	}
	r := newTestRunner(stub, memory.NewStore(), nil)

	done := make(chan error, 1)
	go func() {
		_, err := r.Run(context.Background(), nil)
		done <- err
	}()
	<-started

	_, err := r.Run(context.Background(), nil)
	require.ErrorIs(t, err, ErrRunInProgress)

	close(release)
	require.NoError(t, <-done)
}

// flakyJobs fails the first update that marks a run RUNNING.
type flakyJobs struct {
	*memory.Store
	failed bool
}

func (f *flakyJobs) UpdateRun(ctx context.Context, run *model.JobRun) error {
	if run.Status == model.JobRunning && !f.failed {
		f.failed = true
		return errors.New("connection reset")
	}
	return f.Store.UpdateRun(ctx, run)
}

func TestRunner_StartFailureRecordsFailedRun(t *testing.T) {
	jobs := &flakyJobs{Store: memory.NewStore()}
	stub := &stubStages{}
	r := newTestRunner(stub, jobs, nil)

	run, err := r.Run(context.Background(), nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "connection reset")
	require.Equal(t, model.JobFailed, run.Status)
	require.Empty(t, stub.calls)

	stored, err := jobs.GetRun(context.Background(), run.ID)
	require.NoError(t, err)
	require.Equal(t, model.JobFailed, stored.Status)
	require.NotNil(t, stored.FinishedAt)
	require.Contains(t, stored.ErrorDetail, "mark run run-1 running")

	// The run is no longer stuck in PENDING, so it can be retried.
	retried, err := r.Retry(context.Background(), run.ID)
	require.NoError(t, err)
	require.Equal(t, model.JobSuccess, retried.Status)
}
