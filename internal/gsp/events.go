package gsp

import (
	"math"
	"sort"
)

// SortSamples returns a copy of samples ordered by timestamp. Samples with
// equal timestamps keep their input order.
func SortSamples(samples []PowerSample) []PowerSample {
	out := make([]PowerSample, len(samples))
	copy(out, samples)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out
}

// DeltaSeries returns the first difference of the power series rounded to
// two decimals, so floating noise cannot create spurious events.
// delta[i] is the step between samples i and i+1.
func DeltaSeries(samples []PowerSample) []float64 {
	if len(samples) < 2 {
		return nil
	}
	delta := make([]float64, len(samples)-1)
	for i := range delta {
		delta[i] = round2(samples[i+1].Power - samples[i].Power)
	}
	return delta
}

// DetectEvents flags every delta strictly above tPos as a positive event and
// every delta strictly below tNeg as a negative event.
func DetectEvents(delta []float64, tPos, tNeg float64) Events {
	var ev Events
	for i, d := range delta {
		switch {
		case d > tPos:
			ev.Positive = append(ev.Positive, i)
			ev.All = append(ev.All, i)
		case d < tNeg:
			ev.Negative = append(ev.Negative, i)
			ev.All = append(ev.All, i)
		}
	}
	return ev
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
