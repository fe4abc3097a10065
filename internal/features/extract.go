// Package features turns a lookback window of population snapshots into
// the fixed-length numeric vector consumed by the collapse classifier.
// Training and inference both go through Extract so the feature
// semantics can never drift between the two paths.
package features

import (
	"math"

	"ecopredict/internal/ecosystem"
)

// WindowSize is the number of consecutive snapshots a feature vector is
// derived from.
const WindowSize = 5

// Count is the length of every extracted feature vector.
const Count = 19

// Names lists the features in extraction order. Index i of a vector
// returned by Extract corresponds to Names[i].
var Names = []string{
	"plants", "herbivores", "carnivores",
	"plant_trend", "herbivore_trend", "carnivore_trend",
	"plant_herb_ratio", "herb_carn_ratio", "carn_herb_ratio",
	"total_biomass",
	"plant_volatility", "herbivore_volatility", "carnivore_volatility",
	"min_plants", "max_plants",
	"min_herbivores", "max_herbivores",
	"min_carnivores", "max_carnivores",
}

// Extract computes the 19 ordered features from a window of exactly
// WindowSize time-ordered snapshots:
//
//	1-3   current populations (last snapshot in the window)
//	4-6   per-species average rate of change, (last-first)/WindowSize
//	7-9   population ratios with denominators floored at 1
//	10    total biomass of the last snapshot
//	11-13 per-species population standard deviation over the window
//	14-19 per-species min and max over the window
//
// The carnivore ratio (feature 9) is carnivores/herbivores rather than
// the next pairing in the chain; the trained model depends on that
// exact layout, so it must not be "fixed".
func Extract(window []ecosystem.Snapshot) ([]float64, error) {
	if len(window) != WindowSize {
		return nil, ecosystem.ErrInsufficientData(
			"feature window needs exactly %d snapshots, got %d", WindowSize, len(window))
	}

	plants := column(window, func(s ecosystem.Snapshot) float64 { return s.Plants })
	herbs := column(window, func(s ecosystem.Snapshot) float64 { return s.Herbivores })
	carns := column(window, func(s ecosystem.Snapshot) float64 { return s.Carnivores })

	last := window[len(window)-1]

	v := make([]float64, 0, Count)
	v = append(v,
		last.Plants, last.Herbivores, last.Carnivores,

		(last.Plants-window[0].Plants)/WindowSize,
		(last.Herbivores-window[0].Herbivores)/WindowSize,
		(last.Carnivores-window[0].Carnivores)/WindowSize,

		last.Plants/math.Max(last.Herbivores, 1),
		last.Herbivores/math.Max(last.Carnivores, 1),
		last.Carnivores/math.Max(last.Herbivores, 1),

		last.Plants+last.Herbivores+last.Carnivores,

		popStd(plants), popStd(herbs), popStd(carns),

		minOf(plants), maxOf(plants),
		minOf(herbs), maxOf(herbs),
		minOf(carns), maxOf(carns),
	)
	return v, nil
}

func column(window []ecosystem.Snapshot, f func(ecosystem.Snapshot) float64) []float64 {
	vals := make([]float64, len(window))
	for i, s := range window {
		vals[i] = f(s)
	}
	return vals
}

// popStd is the population standard deviation (ddof=0), matching the
// statistic the classifier was designed around.
func popStd(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	var sum float64
	for _, v := range vals {
		sum += v
	}
	mean := sum / float64(len(vals))

	var sq float64
	for _, v := range vals {
		d := v - mean
		sq += d * d
	}
	variance := sq / float64(len(vals))
	if variance <= 0 {
		return 0
	}
	return math.Sqrt(variance)
}

func minOf(vals []float64) float64 {
	m := vals[0]
	for _, v := range vals[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

func maxOf(vals []float64) float64 {
	m := vals[0]
	for _, v := range vals[1:] {
		if v > m {
			m = v
		}
	}
	return m
}
