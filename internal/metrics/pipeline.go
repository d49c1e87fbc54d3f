package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PipelineMetrics records pipeline runs and their stages. A nil
// *PipelineMetrics, or one built without a registerer, records nothing.
type PipelineMetrics struct {
	runDuration   *prometheus.HistogramVec
	stageDuration *prometheus.HistogramVec
	success       *prometheus.CounterVec
	failure       *prometheus.CounterVec
	rowsLoaded    *prometheus.CounterVec
	failedChecks  *prometheus.CounterVec
}

// NewPipelineMetrics registers the pipeline metrics on reg.
func NewPipelineMetrics(reg prometheus.Registerer) *PipelineMetrics {
	if reg == nil {
		return &PipelineMetrics{}
	}
	m := &PipelineMetrics{
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pipeline_run_duration_seconds",
			Help:    "Duration of pipeline runs in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"job"}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pipeline_stage_duration_seconds",
			Help:    "Duration of individual pipeline stages in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"stage"}),
		success: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pipeline_run_success_total",
			Help: "Pipeline runs that finished with every check passing.",
		}, []string{"job"}),
		failure: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pipeline_run_failure_total",
			Help: "Pipeline runs that failed on an error or a validation check.",
		}, []string{"job"}),
		rowsLoaded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pipeline_rows_loaded_total",
			Help: "Rows written per stage.",
		}, []string{"stage"}),
		failedChecks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pipeline_failed_checks_total",
			Help: "Validator checks that did not pass.",
		}, []string{"check"}),
	}
	reg.MustRegister(m.runDuration, m.stageDuration, m.success, m.failure, m.rowsLoaded, m.failedChecks)
	return m
}

// ObserveRun records a finished run and counts it as success or failure.
func (m *PipelineMetrics) ObserveRun(job string, duration time.Duration, succeeded bool) {
	if m == nil || m.runDuration == nil {
		return
	}
	job = normalizeLabel(job)
	m.runDuration.WithLabelValues(job).Observe(duration.Seconds())
	if succeeded {
		m.success.WithLabelValues(job).Inc()
	} else {
		m.failure.WithLabelValues(job).Inc()
	}
}

// ObserveStage records one stage's duration and the rows it wrote.
func (m *PipelineMetrics) ObserveStage(stage string, duration time.Duration, rows int) {
	if m == nil || m.stageDuration == nil {
		return
	}
	stage = normalizeLabel(stage)
	m.stageDuration.WithLabelValues(stage).Observe(duration.Seconds())
	if rows > 0 {
		m.rowsLoaded.WithLabelValues(stage).Add(float64(rows))
	}
}

// IncFailedCheck counts one failed validator check.
func (m *PipelineMetrics) IncFailedCheck(check string) {
	if m == nil || m.failedChecks == nil {
		return
	}
	m.failedChecks.WithLabelValues(normalizeLabel(check)).Inc()
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
