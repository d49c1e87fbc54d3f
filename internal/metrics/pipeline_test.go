package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

func TestPipelineMetricsExportsCountersAndHistograms(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewPipelineMetrics(reg)

	m.ObserveRun("growthmart", 2*time.Second, true)
	m.ObserveRun("growthmart", time.Second, false)
	m.ObserveStage("normalize", 300*time.Millisecond, 12)
	m.ObserveStage("normalize", 100*time.Millisecond, 3)
	m.IncFailedCheck("fact_spend_non_empty")

	mfs, err := reg.Gather()
	require.NoError(t, err)

	require.Equal(t, 1.0, counterValue(t, mfs, "pipeline_run_success_total", "job", "growthmart"))
	require.Equal(t, 1.0, counterValue(t, mfs, "pipeline_run_failure_total", "job", "growthmart"))
	require.Equal(t, 15.0, counterValue(t, mfs, "pipeline_rows_loaded_total", "stage", "normalize"))
	require.Equal(t, 1.0, counterValue(t, mfs, "pipeline_failed_checks_total", "check", "fact_spend_non_empty"))

	h := findMetric(t, mfs, "pipeline_run_duration_seconds", "job", "growthmart").GetHistogram()
	require.EqualValues(t, 2, h.GetSampleCount())
	require.InDelta(t, 3.0, h.GetSampleSum(), 1e-9)

	h = findMetric(t, mfs, "pipeline_stage_duration_seconds", "stage", "normalize").GetHistogram()
	require.EqualValues(t, 2, h.GetSampleCount())
}

func TestPipelineMetricsEmptyLabel(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewPipelineMetrics(reg)
	m.ObserveRun("", time.Millisecond, true)

	mfs, err := reg.Gather()
	require.NoError(t, err)
	require.Equal(t, 1.0, counterValue(t, mfs, "pipeline_run_success_total", "job", "unknown"))
}

func TestPipelineMetricsNilSafe(t *testing.T) {
	var m *PipelineMetrics
	require.NotPanics(t, func() {
		m.ObserveRun("job", time.Second, true)
		m.ObserveStage("stage", time.Second, 1)
		m.IncFailedCheck("check")
	})

	unregistered := NewPipelineMetrics(nil)
	require.NotPanics(t, func() {
		unregistered.ObserveRun("job", time.Second, false)
		unregistered.ObserveStage("stage", time.Second, 1)
		unregistered.IncFailedCheck("check")
	})
}

func counterValue(t *testing.T, mfs []*dto.MetricFamily, name, label, value string) float64 {
	t.Helper()
	return findMetric(t, mfs, name, label, value).GetCounter().GetValue()
}

func findMetric(t *testing.T, mfs []*dto.MetricFamily, name, label, value string) *dto.Metric {
	t.Helper()
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
		for _, metric := range mf.GetMetric() {
			for _, lp := range metric.GetLabel() {
				if lp.GetName() == label && lp.GetValue() == value {
					return metric
				}
			}
		}
	}
	t.Fatalf("metric %s{%s=%q} not found", name, label, value)
	return nil
}
