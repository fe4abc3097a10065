package ml

import (
	"math"
	"math/rand"

	"ecopredict/internal/ecosystem"
	"ecopredict/internal/features"
)

// Minimum history and example counts for training. The mismatch between
// the 20-example check and the "30 data points" wording is historical
// and preserved verbatim: downstream tooling matches on the message.
const (
	minTrainingHistory  = 10
	minTrainingExamples = 20
	splitSeed           = 42
	testFraction        = 0.2
)

// TrainingReport is the outcome of one training run. Failures are
// reported in-band; training never panics out to the caller.
type TrainingReport struct {
	Success         bool    `json:"success"`
	ModelType       string  `json:"model_type,omitempty"`
	TrainAccuracy   float64 `json:"train_accuracy,omitempty"`
	TestAccuracy    float64 `json:"test_accuracy,omitempty"`
	TrainingSamples int     `json:"training_samples,omitempty"`
	Features        int     `json:"features,omitempty"`
	Error           string  `json:"error,omitempty"`
}

func failedTraining(err error) TrainingReport {
	return TrainingReport{Success: false, Error: err.Error()}
}

// buildExamples rolls a lookback window over the history: for each
// index i in [WindowSize, len), the window history[i-5:i] yields the
// features and history[i] yields the collapse label. The recipe is the
// shared features.Extract, so training sees exactly what inference sees.
func buildExamples(history []ecosystem.Snapshot) ([][]float64, []int, error) {
	if len(history) < minTrainingHistory {
		return nil, nil, ecosystem.ErrInsufficientData("need at least %d data points", minTrainingHistory)
	}

	X := make([][]float64, 0, len(history)-features.WindowSize)
	y := make([]int, 0, len(history)-features.WindowSize)

	for i := features.WindowSize; i < len(history); i++ {
		vec, err := features.Extract(history[i-features.WindowSize : i])
		if err != nil {
			return nil, nil, err
		}
		X = append(X, vec)

		label := 0
		if history[i].Collapsed() {
			label = 1
		}
		y = append(y, label)
	}

	return X, y, nil
}

// splitExamples shuffles the examples with a fixed seed and carves off
// the test fraction, so repeated training runs on the same history are
// reproducible.
func splitExamples(X [][]float64, y []int) (trainX [][]float64, trainY []int, testX [][]float64, testY []int) {
	n := len(X)
	order := rand.New(rand.NewSource(splitSeed)).Perm(n)

	nTest := int(math.Ceil(float64(n) * testFraction))
	if nTest >= n {
		nTest = n - 1
	}

	for _, i := range order[:n-nTest] {
		trainX = append(trainX, X[i])
		trainY = append(trainY, y[i])
	}
	for _, i := range order[n-nTest:] {
		testX = append(testX, X[i])
		testY = append(testY, y[i])
	}
	return trainX, trainY, testX, testY
}
