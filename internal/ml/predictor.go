// Package ml implements the collapse-risk engine: a random-forest
// classifier trained on windowed population features, a deterministic
// heuristic fallback, and a linear-trend population forecaster. The
// resident (forest, scaler) pair is swapped atomically so concurrent
// readers never observe a torn model.
package ml

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"ecopredict/internal/ecosystem"
	"ecopredict/internal/features"
)

// TrainedVersion tags risk results backed by the trained classifier.
const TrainedVersion = "1.0"

// topFactorCount is how many ranked feature importances a risk result carries.
const topFactorCount = 5

// MetricsInterface is the slice of the metrics surface the predictor
// needs; nil disables instrumentation (as in tests).
type MetricsInterface interface {
	PredictionsInc()
	FallbackInc()
	TrainingsInc()
	TrainingFailuresInc()
	PredictionLatencyObserve(float64)
	ModelAgeSet(float64)
}

// ModelStore persists the classifier and its scaler as one durable
// unit. Load returns (nil, nil) when no artifact exists. A store must
// never surface a partially written pair.
type ModelStore interface {
	SaveModel(art *Artifact) error
	LoadModel() (*Artifact, error)
}

// Artifact is the trained model unit: the forest and the scaler it was
// fit with. It is immutable once built; retraining produces a new
// Artifact that replaces the old one wholesale.
type Artifact struct {
	Forest    *RandomForest   `json:"forest"`
	Scaler    *StandardScaler `json:"scaler"`
	Version   string          `json:"version"`
	TrainedAt time.Time       `json:"trained_at"`
}

// Factor is one named feature importance in a risk explanation.
type Factor struct {
	Name       string  `json:"factor"`
	Importance float64 `json:"importance"`
}

// RiskResult is the outcome of a collapse-risk prediction, whether it
// came from the classifier or the heuristic scorer. Callers tell the
// two apart only through ModelVersion.
type RiskResult struct {
	Success      bool     `json:"success"`
	Risk         float64  `json:"risk"`
	Confidence   float64  `json:"confidence"`
	Factors      []Factor `json:"factors"`
	ModelVersion string   `json:"model_version,omitempty"`
	Error        string   `json:"error,omitempty"`
}

// Predictor owns the resident model pair and serves risk predictions
// and training requests. Safe for concurrent use: reads take the
// RLock, and training installs a new Artifact by pointer swap under
// the write lock only after the artifact has been durably persisted.
type Predictor struct {
	mu      sync.RWMutex
	model   *Artifact // nil when no trained model is resident
	store   ModelStore
	metrics MetricsInterface
}

// NewPredictor creates a predictor and reloads a persisted artifact if
// the store holds one. A load failure is logged and degrades to the
// heuristic path rather than failing startup.
func NewPredictor(store ModelStore, metrics MetricsInterface) *Predictor {
	p := &Predictor{store: store, metrics: metrics}

	if store != nil {
		art, err := store.LoadModel()
		switch {
		case err != nil:
			log.Warn().Err(err).Msg("failed to load persisted model, starting with heuristic only")
		case art != nil:
			p.model = art
			log.Info().
				Time("trained_at", art.TrainedAt).
				Int("trees", len(art.Forest.Trees)).
				Msg("collapse model loaded from store")
		default:
			log.Info().Msg("no pre-trained model found")
		}
	}

	return p
}

// resident returns the current model pair, or nil.
func (p *Predictor) resident() *Artifact {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.model
}

// ModelsLoaded names the resident models, for the health endpoint.
func (p *Predictor) ModelsLoaded() []string {
	if p.resident() != nil {
		return []string{"collapse"}
	}
	return []string{}
}

// Train fits a new (forest, scaler) pair from the snapshot history.
// Every failure is reported in-band; the resident model is replaced
// only after the new artifact is durably persisted, so a failed run
// leaves a working model untouched.
func (p *Predictor) Train(history []ecosystem.Snapshot) (report TrainingReport) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("training panicked")
			report = TrainingReport{Success: false, Error: fmt.Sprintf("training failed: %v", r)}
		}
		if !report.Success && p.metrics != nil {
			p.metrics.TrainingFailuresInc()
		}
	}()

	if p.metrics != nil {
		p.metrics.TrainingsInc()
	}
	log.Info().Int("history_points", len(history)).Msg("training collapse prediction model")

	X, y, err := buildExamples(history)
	if err != nil {
		return failedTraining(err)
	}
	if len(X) < minTrainingExamples {
		return TrainingReport{
			Success: false,
			Error:   "insufficient training data (need at least 30 data points)",
		}
	}

	trainX, trainY, testX, testY := splitExamples(X, y)

	scaler := FitScaler(trainX)
	scaledTrain, err := scaler.TransformAll(trainX)
	if err != nil {
		return failedTraining(err)
	}
	scaledTest, err := scaler.TransformAll(testX)
	if err != nil {
		return failedTraining(err)
	}

	forest, err := TrainForest(DefaultForestConfig(), scaledTrain, trainY)
	if err != nil {
		return failedTraining(err)
	}

	trainAcc, err := forest.Accuracy(scaledTrain, trainY)
	if err != nil {
		return failedTraining(err)
	}
	testAcc, err := forest.Accuracy(scaledTest, testY)
	if err != nil {
		return failedTraining(err)
	}

	art := &Artifact{
		Forest:    forest,
		Scaler:    scaler,
		Version:   TrainedVersion,
		TrainedAt: time.Now().UTC(),
	}

	if p.store != nil {
		if err := p.store.SaveModel(art); err != nil {
			return TrainingReport{Success: false, Error: fmt.Sprintf("persist model: %v", err)}
		}
	}

	p.mu.Lock()
	p.model = art
	p.mu.Unlock()

	if p.metrics != nil {
		p.metrics.ModelAgeSet(0)
	}

	log.Info().
		Float64("train_accuracy", trainAcc).
		Float64("test_accuracy", testAcc).
		Int("training_samples", len(trainX)).
		Msg("collapse model trained")

	return TrainingReport{
		Success:         true,
		ModelType:       "collapse_predictor",
		TrainAccuracy:   trainAcc,
		TestAccuracy:    testAcc,
		TrainingSamples: len(trainX),
		Features:        features.Count,
	}
}

// PredictRisk estimates collapse probability from the most recent
// snapshots. With no resident model it delegates to the heuristic
// scorer; with one, any inference failure also falls back to the
// heuristic instead of surfacing an error. stepsAhead is accepted for
// interface symmetry with the forecaster; the classifier's horizon is
// fixed by its training labels.
func (p *Predictor) PredictRisk(recent []ecosystem.Snapshot, stepsAhead int) RiskResult {
	start := time.Now()
	defer func() {
		if p.metrics != nil {
			p.metrics.PredictionsInc()
			p.metrics.PredictionLatencyObserve(time.Since(start).Seconds())
		}
	}()

	art := p.resident()
	if art == nil {
		return p.fallback(recent, nil)
	}

	result, err := p.predictWithModel(art, recent)
	if err != nil {
		return p.fallback(recent, err)
	}
	return result
}

func (p *Predictor) fallback(recent []ecosystem.Snapshot, cause error) RiskResult {
	if cause != nil {
		log.Warn().Err(cause).Msg("classifier inference failed, using heuristic")
	}
	if p.metrics != nil {
		p.metrics.FallbackInc()
	}
	return HeuristicRisk(recent)
}

func (p *Predictor) predictWithModel(art *Artifact, recent []ecosystem.Snapshot) (RiskResult, error) {
	if len(recent) < features.WindowSize {
		return RiskResult{}, ecosystem.ErrInsufficientData(
			"need at least %d recent data points", features.WindowSize)
	}

	window := recent[len(recent)-features.WindowSize:]
	vec, err := features.Extract(window)
	if err != nil {
		return RiskResult{}, err
	}

	scaled, err := art.Scaler.Transform(vec)
	if err != nil {
		return RiskResult{}, err
	}

	proba, err := art.Forest.PredictProba(scaled)
	if err != nil {
		return RiskResult{}, err
	}

	confidence := proba[0]
	if proba[1] > confidence {
		confidence = proba[1]
	}

	return RiskResult{
		Success:      true,
		Risk:         proba[1],
		Confidence:   confidence,
		Factors:      topFactors(art.Forest.Importance, topFactorCount),
		ModelVersion: art.Version,
	}, nil
}

// topFactors ranks the forest's global feature importances against the
// named feature schema and keeps the strongest n, descending.
func topFactors(importance []float64, n int) []Factor {
	ranked := make([]Factor, 0, len(importance))
	for i, imp := range importance {
		if i >= len(features.Names) {
			break
		}
		ranked = append(ranked, Factor{Name: features.Names[i], Importance: imp})
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Importance > ranked[j].Importance })
	if len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}
