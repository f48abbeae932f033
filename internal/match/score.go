package match

import "math"

const (
	// foregroundProb models the probability that a genuinely matched point
	// verifies within the inlier radius.
	foregroundProb = 0.5

	// chance probability clamp. The floor keeps sparse fields from
	// producing infinite scores, the ceiling keeps the per-point odds
	// informative on crowded fields.
	minChanceProb = 1e-12
	maxChanceProb = 0.5
)

// chanceProbability models a randomly placed point landing within radius
// of at least one of n reference points spread over fovArea.
func chanceProbability(radius float64, n int, fovArea float64) float64 {
	q := math.Pi * radius * radius * float64(n) / fovArea
	return math.Min(math.Max(q, minChanceProb), maxChanceProb)
}

// logOdds scores k verified correspondences out of m transformed points:
// the log-likelihood ratio of a true alignment against the chance model.
// Each correspondence contributes log(p/q), each miss log((1-p)/(1-q)),
// so the score rises with every inlier and sinks with every stray point.
func logOdds(k, m int, chance float64) float64 {
	return float64(k)*math.Log(foregroundProb/chance) +
		float64(m-k)*math.Log((1-foregroundProb)/(1-chance))
}
