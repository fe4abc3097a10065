package metrics

// Wrapper adapts Metrics to the narrow method set the ml package
// consumes, keeping ml free of a Prometheus dependency.
type Wrapper struct {
	m *Metrics
}

func NewWrapper(m *Metrics) *Wrapper {
	return &Wrapper{m: m}
}

func (w *Wrapper) PredictionsInc()      { w.m.PredictionsTotal.Inc() }
func (w *Wrapper) FallbackInc()         { w.m.HeuristicFallbacks.Inc() }
func (w *Wrapper) TrainingsInc()        { w.m.TrainingsTotal.Inc() }
func (w *Wrapper) TrainingFailuresInc() { w.m.TrainingFailures.Inc() }

func (w *Wrapper) PredictionLatencyObserve(seconds float64) {
	w.m.PredictionLatency.Observe(seconds)
}

func (w *Wrapper) ModelAgeSet(seconds float64) {
	w.m.ModelAge.Set(seconds)
}
