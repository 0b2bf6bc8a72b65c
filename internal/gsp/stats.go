package gsp

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// ClusterStats describes the delta values of one cluster.
// Std is the population standard deviation.
type ClusterStats struct {
	Count int     `json:"count"`
	Mean  float64 `json:"mean"`
	Std   float64 `json:"std"`
	CV    float64 `json:"cv"`
}

// ComputeClusterStats evaluates delta at the member indices.
func ComputeClusterStats(delta []float64, members []int) ClusterStats {
	if len(members) == 0 {
		return ClusterStats{CV: math.Inf(1)}
	}
	vals := gather(delta, members)
	mean, std := stat.PopMeanStdDev(vals, nil)
	return ClusterStats{
		Count: len(members),
		Mean:  mean,
		Std:   std,
		CV:    coefficientOfVariation(mean, std),
	}
}

// coefficientOfVariation is |std/mean|; a zero mean yields +Inf so the
// cluster can never pass a cv test.
func coefficientOfVariation(mean, std float64) float64 {
	if mean == 0 {
		return math.Inf(1)
	}
	return math.Abs(std / mean)
}

func gather(delta []float64, idx []int) []float64 {
	out := make([]float64, len(idx))
	for i, k := range idx {
		out[i] = delta[k]
	}
	return out
}

// median averages the two middle values for even-length input.
func median(xs []float64) float64 {
	if len(xs) == 0 {
		return math.NaN()
	}
	s := append([]float64(nil), xs...)
	sort.Float64s(s)
	mid := len(s) / 2
	if len(s)%2 == 1 {
		return s[mid]
	}
	return (s[mid-1] + s[mid]) / 2
}

// subtractSorted returns the members of a not present in b. Both inputs must
// be sorted ascending; the result is sorted ascending.
func subtractSorted(a, b []int) []int {
	out := make([]int, 0, len(a))
	j := 0
	for _, v := range a {
		for j < len(b) && b[j] < v {
			j++
		}
		if j < len(b) && b[j] == v {
			continue
		}
		out = append(out, v)
	}
	return out
}
