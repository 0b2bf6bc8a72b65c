package gsp

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/integrate"
)

// ReconstructCycle returns the appliance power over delta indices
// pair.On..pair.Off inclusive. The first value is the ON step, the last the
// magnitude of the OFF step and the interior is linearly interpolated. All
// values are rounded to whole watts.
func ReconstructCycle(delta []float64, pair EventPair) []float64 {
	n := pair.Off - pair.On + 1
	if n < 2 {
		return nil
	}
	start := delta[pair.On]
	end := math.Abs(delta[pair.Off])

	values := make([]float64, n)
	last := float64(n - 1)
	for i := range values {
		t := float64(i) / last
		values[i] = math.Round(start + t*(end-start))
	}
	return values
}

// ApplianceSeries is the reconstructed output for one appliance.
type ApplianceSeries struct {
	Points   []TimeseriesPoint
	AvgPower float64
	MaxPower float64
	EnergyWh float64
}

// Reconstruct concatenates the cycles of pairs in ON order. The point for
// delta index k carries samples[k].Timestamp. EnergyWh integrates each cycle
// over its own timestamps with the trapezoidal rule.
func Reconstruct(samples []PowerSample, delta []float64, pairs []EventPair) ApplianceSeries {
	ordered := append([]EventPair(nil), pairs...)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].On < ordered[j].On })

	var out ApplianceSeries
	var active []float64
	for _, p := range ordered {
		values := ReconstructCycle(delta, p)
		if len(values) == 0 {
			continue
		}
		hours := make([]float64, len(values))
		t0 := samples[p.On].Timestamp
		for i, v := range values {
			ts := samples[p.On+i].Timestamp
			hours[i] = ts.Sub(t0).Hours()
			out.Points = append(out.Points, TimeseriesPoint{Timestamp: ts, Power: v})
			if v > 0 {
				active = append(active, v)
			}
		}
		out.EnergyWh += integrate.Trapezoidal(hours, values)
		out.MaxPower = math.Max(out.MaxPower, floats.Max(values))
	}
	if len(active) > 0 {
		out.AvgPower = floats.Sum(active) / float64(len(active))
	}
	return out
}
