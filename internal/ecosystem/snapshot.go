// Package ecosystem defines the domain types shared by the feature
// extraction, training, and forecasting pipelines: a population snapshot
// per simulation step and the collapse labeling rule applied to it.
package ecosystem

import "fmt"

// Snapshot is one time-stepped observation of the three population counts.
// Counts are expected to be non-negative, but callers may violate that;
// downstream math guards itself rather than rejecting the snapshot.
type Snapshot struct {
	Step       int     `json:"step"`
	Plants     float64 `json:"plants"`
	Herbivores float64 `json:"herbivores"`
	Carnivores float64 `json:"carnivores"`
}

// Collapsed reports whether the snapshot represents a collapse state:
// critically low plants, or extinction of herbivores or carnivores.
// The plants threshold is exclusive: plants == 5 is not a collapse.
func (s Snapshot) Collapsed() bool {
	return s.Plants < 5 || s.Herbivores == 0 || s.Carnivores == 0
}

// Species names used as keys in forecast trend maps, in fixed order.
var Species = []string{"plants", "herbivores", "carnivores"}

// Last returns the most recent n snapshots of history, or all of it
// when fewer are available.
func Last(history []Snapshot, n int) []Snapshot {
	if n <= 0 || len(history) <= n {
		return history
	}
	return history[len(history)-n:]
}

// InsufficientDataError reports that a sequence of snapshots is too
// short for the requested operation (windowing, training, forecasting).
type InsufficientDataError struct {
	Msg string
}

func (e *InsufficientDataError) Error() string { return e.Msg }

// ErrInsufficientData builds an InsufficientDataError with a formatted message.
func ErrInsufficientData(format string, args ...any) *InsufficientDataError {
	return &InsufficientDataError{Msg: fmt.Sprintf(format, args...)}
}
