package ml

import (
	"math"
	"testing"
)

func TestFitScaler_StandardizesColumns(t *testing.T) {
	X := [][]float64{
		{10, 100},
		{20, 100},
		{30, 100},
		{40, 100},
	}

	s := FitScaler(X)
	scaled, err := s.TransformAll(X)
	if err != nil {
		t.Fatalf("TransformAll: %v", err)
	}

	var mean, variance float64
	for _, row := range scaled {
		mean += row[0]
	}
	mean /= float64(len(scaled))
	for _, row := range scaled {
		d := row[0] - mean
		variance += d * d
	}
	variance /= float64(len(scaled))

	if math.Abs(mean) > 1e-9 {
		t.Errorf("scaled column mean = %v, want 0", mean)
	}
	if math.Abs(variance-1) > 1e-9 {
		t.Errorf("scaled column variance = %v, want 1", variance)
	}

	// Zero-variance column: scale floors at 1, so values shift to 0.
	for i, row := range scaled {
		if row[1] != 0 {
			t.Errorf("row %d constant column scaled to %v, want 0", i, row[1])
		}
	}
}

func TestTransform_LengthMismatch(t *testing.T) {
	s := FitScaler([][]float64{{1, 2}, {3, 4}})
	if _, err := s.Transform([]float64{1}); err == nil {
		t.Error("Transform accepted a vector of the wrong length")
	}
}
