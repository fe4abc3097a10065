package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithRegistry_RegistersAllMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewWithRegistry(registry)

	m.PredictionsTotal.Inc()
	m.HeuristicFallbacks.Inc()
	m.TrainingsTotal.Inc()
	m.TrainingFailures.Inc()
	m.ForecastsTotal.Inc()
	m.SnapshotsIngested.Inc()
	m.ErrorsTotal.Inc()
	m.ModelAge.Set(12)
	m.PredictionLatency.Observe(0.02)

	families, err := registry.Gather()
	require.NoError(t, err)

	names := make(map[string]bool, len(families))
	for _, f := range families {
		names[f.GetName()] = true
	}
	for _, want := range []string{
		"predictions_total",
		"heuristic_fallbacks_total",
		"prediction_latency_seconds",
		"forecasts_total",
		"trainings_total",
		"training_failures_total",
		"model_age_seconds",
		"snapshots_ingested_total",
		"errors_total",
	} {
		assert.True(t, names[want], "metric %s not registered", want)
	}
}

func TestWrapper_ForwardsToUnderlyingMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewWithRegistry(registry)
	w := NewWrapper(m)

	w.PredictionsInc()
	w.PredictionsInc()
	w.FallbackInc()
	w.TrainingsInc()
	w.TrainingFailuresInc()
	w.ModelAgeSet(30)
	w.PredictionLatencyObserve(0.01)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.PredictionsTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HeuristicFallbacks))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TrainingsTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TrainingFailures))
	assert.Equal(t, 30.0, testutil.ToFloat64(m.ModelAge))
}
