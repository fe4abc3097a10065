package ml

import (
	"math"
	"math/rand"
	"sync"

	"github.com/rs/zerolog/log"

	"ecopredict/internal/ecosystem"
)

const (
	// trendWindow is the maximum number of recent points the trend
	// line is fit on.
	trendWindow = 10

	// trendLabelWindow is the fixed number of points behind the
	// increasing/decreasing/stable labels.
	trendLabelWindow = 5

	// DefaultForecastSteps is the horizon used when a request does not
	// specify one.
	DefaultForecastSteps = 7

	baseForecastConfidence  = 0.8
	forecastConfidenceDecay = 0.9
	noiseGrowthPerStep      = 0.1
	trendSlopeThreshold     = 2.0
)

// ForecastPoint is one forecasted simulation step. Populations are
// clamped to non-negative integers.
type ForecastPoint struct {
	Step       int `json:"step"`
	Plants     int `json:"plants"`
	Herbivores int `json:"herbivores"`
	Carnivores int `json:"carnivores"`
}

// ForecastResult carries the per-step predictions, an overall
// confidence that decays with the horizon, and a coarse trend label
// per species.
type ForecastResult struct {
	Success         bool              `json:"success"`
	Predictions     []ForecastPoint   `json:"predictions,omitempty"`
	Confidence      float64           `json:"confidence,omitempty"`
	Trends          map[string]string `json:"trends,omitempty"`
	ForecastHorizon int               `json:"forecast_horizon,omitempty"`
	Error           string            `json:"error,omitempty"`
}

// Forecaster extrapolates each species independently along an
// ordinary-least-squares trend line, with noise whose spread grows
// linearly with the horizon and the predicted magnitude. The noise
// source is injected so tests can pin it.
type Forecaster struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewForecaster creates a forecaster seeded for reproducible noise.
func NewForecaster(seed int64) *Forecaster {
	return &Forecaster{rng: rand.New(rand.NewSource(seed))}
}

// Forecast predicts the next steps population values from the history.
// Data-shape and internal failures are reported in-band; the call never
// panics out to the transport layer.
func (f *Forecaster) Forecast(history []ecosystem.Snapshot, steps int) ForecastResult {
	if steps <= 0 {
		steps = DefaultForecastSteps
	}

	result, err := f.forecast(history, steps)
	if err != nil {
		log.Warn().Err(err).Int("history_points", len(history)).Msg("population forecast failed")
		return ForecastResult{Success: false, Error: err.Error()}
	}
	return result
}

func (f *Forecaster) forecast(history []ecosystem.Snapshot, steps int) (ForecastResult, error) {
	if len(history) < trendLabelWindow {
		return ForecastResult{}, ecosystem.ErrInsufficientData(
			"need at least %d data points for forecasting", trendLabelWindow)
	}

	window := ecosystem.Last(history, trendWindow)
	n := len(window)

	plantLine := fitLine(window, func(s ecosystem.Snapshot) float64 { return s.Plants })
	herbLine := fitLine(window, func(s ecosystem.Snapshot) float64 { return s.Herbivores })
	carnLine := fitLine(window, func(s ecosystem.Snapshot) float64 { return s.Carnivores })

	lastStep := history[len(history)-1].Step
	predictions := make([]ForecastPoint, 0, steps)

	f.mu.Lock()
	for s := 1; s <= steps; s++ {
		x := float64(n + s - 1)
		spread := noiseGrowthPerStep * float64(s)

		predictions = append(predictions, ForecastPoint{
			Step:       lastStep + s,
			Plants:     f.noisy(plantLine.at(x), spread),
			Herbivores: f.noisy(herbLine.at(x), spread),
			Carnivores: f.noisy(carnLine.at(x), spread),
		})
	}
	f.mu.Unlock()

	confidence := baseForecastConfidence * math.Pow(forecastConfidenceDecay, float64(steps))

	return ForecastResult{
		Success:         true,
		Predictions:     predictions,
		Confidence:      confidence,
		Trends:          trendLabels(history),
		ForecastHorizon: steps,
	}, nil
}

// noisy perturbs a predicted value with Normal(0, spread*|value|) noise
// and clamps the result to a non-negative integer. Callers hold f.mu.
func (f *Forecaster) noisy(value, spread float64) int {
	sd := spread * math.Abs(value)
	v := value + f.rng.NormFloat64()*sd
	if v < 0 {
		return 0
	}
	return int(v)
}

// trendLabels classifies each species from the OLS slope of the most
// recent five points: above +2 increasing, below -2 decreasing,
// otherwise stable.
func trendLabels(history []ecosystem.Snapshot) map[string]string {
	trends := map[string]string{}
	for _, species := range ecosystem.Species {
		trends[species] = "stable"
	}
	if len(history) < trendLabelWindow {
		return trends
	}

	recent := ecosystem.Last(history, trendLabelWindow)
	selectors := map[string]func(ecosystem.Snapshot) float64{
		"plants":     func(s ecosystem.Snapshot) float64 { return s.Plants },
		"herbivores": func(s ecosystem.Snapshot) float64 { return s.Herbivores },
		"carnivores": func(s ecosystem.Snapshot) float64 { return s.Carnivores },
	}

	for species, sel := range selectors {
		slope := fitLine(recent, sel).slope
		switch {
		case slope > trendSlopeThreshold:
			trends[species] = "increasing"
		case slope < -trendSlopeThreshold:
			trends[species] = "decreasing"
		}
	}
	return trends
}

// line is a degree-1 least-squares fit y = slope*x + intercept over
// 0-based window indices.
type line struct {
	slope     float64
	intercept float64
}

func (l line) at(x float64) float64 { return l.slope*x + l.intercept }

func fitLine(window []ecosystem.Snapshot, sel func(ecosystem.Snapshot) float64) line {
	n := float64(len(window))
	if n == 0 {
		return line{}
	}

	var sumX, sumY float64
	for i, s := range window {
		sumX += float64(i)
		sumY += sel(s)
	}
	meanX := sumX / n
	meanY := sumY / n

	var cov, varX float64
	for i, s := range window {
		dx := float64(i) - meanX
		cov += dx * (sel(s) - meanY)
		varX += dx * dx
	}
	if varX == 0 {
		return line{intercept: meanY}
	}
	return line{slope: cov / varX, intercept: meanY - (cov/varX)*meanX}
}
