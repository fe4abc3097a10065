// Package metrics provides Prometheus metrics collection for the
// ecosystem prediction service. It defines the counters, gauges, and
// histograms exposed on the metrics endpoint for monitoring prediction
// traffic, training runs, and ingestion.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the prediction service.
type Metrics struct {
	// Prediction metrics
	PredictionsTotal   prometheus.Counter   // Total number of collapse risk predictions served
	HeuristicFallbacks prometheus.Counter   // Predictions answered by the heuristic instead of the model
	PredictionLatency  prometheus.Histogram // Collapse risk prediction latency in seconds
	ForecastsTotal     prometheus.Counter   // Total number of population forecasts served

	// Training metrics
	TrainingsTotal   prometheus.Counter // Total number of training runs attempted
	TrainingFailures prometheus.Counter // Training runs that ended in failure
	ModelAge         prometheus.Gauge   // Age of the resident model in seconds

	// Ingestion and system metrics
	SnapshotsIngested prometheus.Counter // Snapshots accepted over the WebSocket stream
	ErrorsTotal       prometheus.Counter // Total number of request handling errors
}

// New creates and registers all metrics on the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates metrics with a custom registry, which keeps
// tests isolated from the global state.
func NewWithRegistry(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)
	return &Metrics{
		PredictionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "predictions_total",
			Help: "Total number of collapse risk predictions served",
		}),
		HeuristicFallbacks: factory.NewCounter(prometheus.CounterOpts{
			Name: "heuristic_fallbacks_total",
			Help: "Predictions answered by the heuristic instead of the trained model",
		}),
		PredictionLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "prediction_latency_seconds",
			Help:    "Collapse risk prediction latency in seconds (end-to-end)",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}),
		ForecastsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "forecasts_total",
			Help: "Total number of population forecasts served",
		}),
		TrainingsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "trainings_total",
			Help: "Total number of training runs attempted",
		}),
		TrainingFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "training_failures_total",
			Help: "Training runs that ended in failure",
		}),
		ModelAge: factory.NewGauge(prometheus.GaugeOpts{
			Name: "model_age_seconds",
			Help: "Age of the resident trained model in seconds",
		}),
		SnapshotsIngested: factory.NewCounter(prometheus.CounterOpts{
			Name: "snapshots_ingested_total",
			Help: "Snapshots accepted over the WebSocket ingestion stream",
		}),
		ErrorsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "errors_total",
			Help: "Total number of request handling errors",
		}),
	}
}
