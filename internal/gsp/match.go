package gsp

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// kernelWidthFloor keeps the candidate graph connected when a feature
// channel has no spread.
const kernelWidthFloor = 1.0

// MatchDecision records how one ON event with several OFF candidates was
// resolved.
type MatchDecision struct {
	On         int       `json:"on"`
	Candidates []int     `json:"candidates"`
	Chosen     int       `json:"chosen"`
	Scores     []float64 `json:"scores"`
	// SmoothedMagnitude and SmoothedGap are the harmonic extensions of the
	// magnitude residual and gap length channels over the candidates.
	SmoothedMagnitude []float64 `json:"smoothed_magnitude"`
	SmoothedGap       []float64 `json:"smoothed_gap"`
}

// MatchResult is the output of MatchEvents.
type MatchResult struct {
	Pairs         []EventPair     `json:"pairs"`
	Decisions     []MatchDecision `json:"decisions,omitempty"`
	SolveFailures int             `json:"solve_failures"`
}

// MatchEvents pairs ON events with OFF events for one appliance candidate.
// For every ON event p the OFF candidates are the negative events strictly
// between p and the next ON event (or the end of the series). With one
// candidate it is taken directly; with several the candidate with the lowest
// combined score wins:
//
//	alpha * |phi_m| / max|phi_m| + beta * |phi_t - St| / max|phi_t - St|
//
// where phi_m = delta[off] + delta[on] is the magnitude residual, phi_t the
// gap length, and St the gap channel smoothed over the candidate graph from
// its median. The first candidate wins a tied score.
func MatchEvents(delta []float64, on, off []int, alpha, beta float64) MatchResult {
	pos := sortedCopy(on)
	neg := sortedCopy(off)

	var res MatchResult
	for i, p := range pos {
		end := len(delta)
		if i+1 < len(pos) {
			end = pos[i+1]
		}
		lo := sort.SearchInts(neg, p+1)
		hi := sort.SearchInts(neg, end)
		candidates := neg[lo:hi]

		switch len(candidates) {
		case 0:
			tracef("ON event %d has no OFF candidate before %d", p, end)
		case 1:
			res.Pairs = append(res.Pairs, EventPair{On: p, Off: candidates[0]})
		default:
			d, failed := chooseOff(delta, p, candidates, alpha, beta)
			if failed {
				res.SolveFailures++
			}
			res.Decisions = append(res.Decisions, d)
			res.Pairs = append(res.Pairs, EventPair{On: p, Off: d.Chosen})
		}
	}
	return res
}

// chooseOff scores the OFF candidates of one ON event. The bool result
// reports whether a smoothing solve failed and the channel seed value was
// used in its place.
func chooseOff(delta []float64, on int, candidates []int, alpha, beta float64) (MatchDecision, bool) {
	n := len(candidates)
	phiM := make([]float64, n)
	phiT := make([]float64, n)
	for k, c := range candidates {
		phiM[k] = delta[c] + delta[on]
		phiT[k] = float64(c - on)
	}

	failed := false
	smM, err := smoothChannel(phiM, stat.Mean(phiM, nil))
	if err != nil {
		opsf("magnitude smoothing for ON event %d: %v", on, err)
		failed = true
	}
	smT, err := smoothChannel(phiT, median(phiT))
	if err != nil {
		opsf("gap smoothing for ON event %d: %v", on, err)
		failed = true
	}

	magTerm := make([]float64, n)
	gapTerm := make([]float64, n)
	for k := range candidates {
		magTerm[k] = math.Abs(phiM[k])
		gapTerm[k] = math.Abs(phiT[k] - smT[k])
	}
	normalise(magTerm)
	normalise(gapTerm)

	scores := make([]float64, n)
	floats.AddScaled(scores, alpha, magTerm)
	floats.AddScaled(scores, beta, gapTerm)
	best := floats.MinIdx(scores)

	tracef("ON event %d: %d candidates, chose %d (score %.4f)", on, n, candidates[best], scores[best])
	return MatchDecision{
		On:                on,
		Candidates:        append([]int(nil), candidates...),
		Chosen:            candidates[best],
		Scores:            scores,
		SmoothedMagnitude: smM,
		SmoothedGap:       smT,
	}, failed
}

// smoothChannel fixes the first candidate to seed and propagates it over a
// Gaussian graph of the channel values. The kernel width is the channel's
// population standard deviation. On failure every node carries seed.
func smoothChannel(values []float64, seed float64) ([]float64, error) {
	out := make([]float64, len(values))
	out[0] = seed

	_, std := stat.PopMeanStdDev(values, nil)
	width := math.Max(std, kernelWidthFloor)

	ext, err := harmonicExtension(values, width, seed)
	if err != nil {
		for i := range out {
			out[i] = seed
		}
		return out, err
	}
	copy(out[1:], ext)
	return out, nil
}

// normalise scales v so its largest element is 1. An all-zero v is left
// unchanged.
func normalise(v []float64) {
	if m := floats.Max(v); m > 0 {
		floats.Scale(1/m, v)
	}
}

func sortedCopy(idx []int) []int {
	out := append([]int(nil), idx...)
	sort.Ints(out)
	return out
}
