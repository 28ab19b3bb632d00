// Package confidence provides confidence score math utilities.
package confidence

import "math"

// Aggregate combines multiple confidence scores.
// Uses geometric mean to penalize low-confidence components.
func Aggregate(scores []float64) float64 {
	if len(scores) == 0 {
		return 0
	}

	product := 1.0
	for _, s := range scores {
		if s <= 0 {
			return 0
		}
		product *= s
	}

	return math.Pow(product, 1.0/float64(len(scores)))
}

// Clamp ensures confidence is in valid range [0, 1].
func Clamp(score float64) float64 {
	return ClampRange(score, 0, 1)
}

// ClampRange bounds a score to [lo, hi]. Ensemble-variance confidence uses
// [0.1, 0.99] so a prediction is never reported as certain or worthless.
func ClampRange(score, lo, hi float64) float64 {
	if score < lo {
		return lo
	}
	if score > hi {
		return hi
	}
	return score
}

// Neutral values used when a sub-model is unavailable.
const (
	NeutralBuyBoxProbability = 0.5
	DefaultPrediction        = 0.8
)
