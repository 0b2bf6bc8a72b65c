package sweep

import (
	"math"
	"sort"
)

// ObjectiveWeights defines weights for multi-objective scoring.
type ObjectiveWeights struct {
	Coverage      float64 `json:"coverage"`
	Appliances    float64 `json:"appliances"`     // log scale
	Activations   float64 `json:"activations"`    // log scale
	SolveFailures float64 `json:"solve_failures"` // negative = penalise
}

// DefaultObjectiveWeights returns default weights for multi-objective scoring.
func DefaultObjectiveWeights() ObjectiveWeights {
	return ObjectiveWeights{
		Coverage:      1.0,
		Appliances:    0.1,
		Activations:   0.05,
		SolveFailures: -0.2,
	}
}

// ScoreResult computes a scalar score for r. Failed runs score -MaxFloat64.
func ScoreResult(r ComboResult, w ObjectiveWeights) float64 {
	if r.Err != "" {
		return -math.MaxFloat64
	}
	score := w.Coverage * r.Coverage
	if r.NumAppliances > 0 {
		score += w.Appliances * math.Log(float64(r.NumAppliances))
	}
	if r.Activations > 0 {
		score += w.Activations * math.Log(float64(r.Activations))
	}
	score += w.SolveFailures * float64(r.SolveFailures)
	return score
}

// ScoredResult pairs a ComboResult with its objective score.
type ScoredResult struct {
	ComboResult
	Score float64 `json:"score"`
}

// RankResults sorts results by score, highest first. Ties keep input order.
func RankResults(results []ComboResult, w ObjectiveWeights) []ScoredResult {
	scored := make([]ScoredResult, len(results))
	for i, r := range results {
		scored[i] = ScoredResult{ComboResult: r, Score: ScoreResult(r, w)}
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	return scored
}
