package ml

import "ecopredict/internal/ecosystem"

// HeuristicVersion tags risk results produced by the rule-based scorer.
const HeuristicVersion = "heuristic"

// heuristicConfidence is deliberately lower than anything the trained
// classifier reports for a confident call.
const heuristicConfidence = 0.6

// HeuristicRisk scores collapse risk without a trained model: a fixed
// additive rule set over the most recent snapshot plus a short plant
// trend. It serves both the no-model path and the inference-failure
// recovery path, so it must never fail on non-empty input.
//
// Rules, evaluated in order (the two plant rules are mutually
// exclusive; the summed weights clamp to [0,1]):
//
//	plants < 10              +0.40 critically_low_plants
//	else plants < 30         +0.20 low_plants
//	herbivores < 3           +0.30 critically_low_herbivores
//	carnivores > 1.5*herb    +0.20 predator_overload
//	3-step plant trend < -5  +0.15 declining_plant_trend (needs >=3 snapshots)
func HeuristicRisk(recent []ecosystem.Snapshot) RiskResult {
	if len(recent) == 0 {
		return RiskResult{Success: false, Error: "No data provided"}
	}

	latest := recent[len(recent)-1]
	risk := 0.0
	factors := []Factor{}

	switch {
	case latest.Plants < 10:
		risk += 0.4
		factors = append(factors, Factor{Name: "critically_low_plants", Importance: 0.4})
	case latest.Plants < 30:
		risk += 0.2
		factors = append(factors, Factor{Name: "low_plants", Importance: 0.2})
	}

	if latest.Herbivores < 3 {
		risk += 0.3
		factors = append(factors, Factor{Name: "critically_low_herbivores", Importance: 0.3})
	}

	if latest.Carnivores > latest.Herbivores*1.5 {
		risk += 0.2
		factors = append(factors, Factor{Name: "predator_overload", Importance: 0.2})
	}

	if len(recent) >= 3 {
		trend := recent[len(recent)-3:]
		plantTrend := (trend[len(trend)-1].Plants - trend[0].Plants) / 3
		if plantTrend < -5 {
			risk += 0.15
			factors = append(factors, Factor{Name: "declining_plant_trend", Importance: 0.15})
		}
	}

	if risk > 1 {
		risk = 1
	}

	return RiskResult{
		Success:      true,
		Risk:         risk,
		Confidence:   heuristicConfidence,
		Factors:      factors,
		ModelVersion: HeuristicVersion,
	}
}
