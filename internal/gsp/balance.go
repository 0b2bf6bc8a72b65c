package gsp

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat/distuv"
)

const (
	// maxBalanceIterations bounds the polarity merge loop.
	maxBalanceIterations = 100
	// densityStdFloor keeps the Gaussian density finite for clusters whose
	// members are identical. One watt is below any usable event threshold.
	densityStdFloor = 1.0
)

// BalanceResult is the output of BalanceClusters.
type BalanceResult struct {
	// Clusters are the seed clusters after absorption and merging, sorted by
	// descending mean. When no seed cluster survives filtering they are the
	// input clusters, unmerged.
	Clusters [][]int       `json:"clusters"`
	Stats    []ClusterStats `json:"stats"`
	Pairs    []ClusterPair  `json:"pairs"`

	SeedsBeforeBalancing int `json:"seeds_before_balancing"`
	SeedsAfterBalancing  int `json:"seeds_after_balancing"`
	Iterations           int `json:"iterations"`
}

type rankedCluster struct {
	members []int
	stats   ClusterStats
}

// BalanceClusters turns raw clusters into appliance candidates:
//
//  1. rank clusters by descending mean and keep those with at least
//     instanceLimit members as seed clusters;
//  2. reassign each member of a small cluster to the seed cluster with the
//     highest Gaussian density at its delta;
//  3. merge the closest clusters on the over-represented polarity until the
//     positive and negative counts match;
//  4. pair every positive cluster with the later negative cluster whose mean
//     best cancels it, resolving conflicts by smallest residual.
func BalanceClusters(delta []float64, clusters [][]int, instanceLimit int) BalanceResult {
	ranked := rankClusters(delta, clusters)

	var seeds, small []rankedCluster
	for _, rc := range ranked {
		if rc.stats.Count >= instanceLimit {
			seeds = append(seeds, rc)
		} else {
			small = append(small, rc)
		}
	}

	if len(seeds) == 0 {
		diagf("no cluster reaches instance limit %d; %d clusters left unmerged", instanceLimit, len(ranked))
		return newBalanceResult(ranked, nil, 0, 0, 0)
	}

	seeds = absorbSmallClusters(delta, seeds, small)
	before := len(seeds)
	seeds, iterations := balancePolarity(delta, seeds)
	pairs := pairClusters(seeds)

	diagf("balanced %d seed clusters into %d (%d merges), %d appliance pairs",
		before, len(seeds), iterations, len(pairs))
	return newBalanceResult(seeds, pairs, before, len(seeds), iterations)
}

func newBalanceResult(clusters []rankedCluster, pairs []ClusterPair, before, after, iterations int) BalanceResult {
	res := BalanceResult{
		Clusters:             make([][]int, len(clusters)),
		Stats:                make([]ClusterStats, len(clusters)),
		Pairs:                pairs,
		SeedsBeforeBalancing: before,
		SeedsAfterBalancing:  after,
		Iterations:           iterations,
	}
	for i, rc := range clusters {
		res.Clusters[i] = rc.members
		res.Stats[i] = rc.stats
	}
	return res
}

func rankClusters(delta []float64, clusters [][]int) []rankedCluster {
	ranked := make([]rankedCluster, 0, len(clusters))
	for _, members := range clusters {
		if len(members) == 0 {
			continue
		}
		m := append([]int(nil), members...)
		sort.Ints(m)
		ranked = append(ranked, rankedCluster{members: m, stats: ComputeClusterStats(delta, m)})
	}
	sortByMeanDesc(ranked)
	return ranked
}

func sortByMeanDesc(rc []rankedCluster) {
	sort.SliceStable(rc, func(i, j int) bool {
		return rc[i].stats.Mean > rc[j].stats.Mean
	})
}

// absorbSmallClusters scores members against the seed statistics as they were
// before absorption, so the outcome does not depend on member order.
func absorbSmallClusters(delta []float64, seeds, small []rankedCluster) []rankedCluster {
	if len(small) == 0 {
		return seeds
	}
	dists := make([]distuv.Normal, len(seeds))
	for i, s := range seeds {
		dists[i] = distuv.Normal{Mu: s.stats.Mean, Sigma: math.Max(s.stats.Std, densityStdFloor)}
	}

	moved := 0
	for _, sc := range small {
		for _, idx := range sc.members {
			best := chooseSeedCluster(delta[idx], seeds, dists)
			seeds[best].members = append(seeds[best].members, idx)
			moved++
		}
	}

	for i := range seeds {
		sort.Ints(seeds[i].members)
		seeds[i].stats = ComputeClusterStats(delta, seeds[i].members)
	}
	sortByMeanDesc(seeds)
	tracef("absorbed %d events from %d small clusters", moved, len(small))
	return seeds
}

// chooseSeedCluster returns the seed with the highest density at value.
// Ties are broken by the nearest mean among seeds on the near side of value
// (mean below a positive value, above a negative one), then by the nearest
// mean overall.
func chooseSeedCluster(value float64, seeds []rankedCluster, dists []distuv.Normal) int {
	densities := make([]float64, len(seeds))
	maxDensity := math.Inf(-1)
	for i, d := range dists {
		densities[i] = d.Prob(value)
		if densities[i] > maxDensity {
			maxDensity = densities[i]
		}
	}

	var tied []int
	for i, d := range densities {
		if d == maxDensity {
			tied = append(tied, i)
		}
	}
	if len(tied) == 1 {
		return tied[0]
	}

	var nearSide []int
	for _, i := range tied {
		mean := seeds[i].stats.Mean
		if (value > 0 && mean < value) || (value < 0 && mean > value) {
			nearSide = append(nearSide, i)
		}
	}
	if len(nearSide) > 0 {
		return nearestMean(value, nearSide, seeds)
	}
	return nearestMean(value, tied, seeds)
}

func nearestMean(value float64, candidates []int, seeds []rankedCluster) int {
	best := candidates[0]
	bestDist := math.Abs(seeds[best].stats.Mean - value)
	for _, i := range candidates[1:] {
		if d := math.Abs(seeds[i].stats.Mean - value); d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

// balancePolarity merges the two closest-mean clusters on the side with more
// clusters until both sides have equal counts, the excess side is down to a
// single cluster, or maxBalanceIterations merges have happened.
func balancePolarity(delta []float64, seeds []rankedCluster) ([]rankedCluster, int) {
	iterations := 0
	for ; iterations < maxBalanceIterations; iterations++ {
		pos, neg := polaritySplit(seeds)
		if len(pos) == len(neg) {
			return seeds, iterations
		}
		excess := pos
		if len(neg) > len(pos) {
			excess = neg
		}
		if len(excess) <= 1 {
			return seeds, iterations
		}

		a, b := closestMeans(excess, seeds)
		merged := append(append([]int(nil), seeds[a].members...), seeds[b].members...)
		sort.Ints(merged)
		tracef("merging clusters with means %.2f and %.2f", seeds[a].stats.Mean, seeds[b].stats.Mean)
		seeds[a] = rankedCluster{members: merged, stats: ComputeClusterStats(delta, merged)}
		seeds = append(seeds[:b], seeds[b+1:]...)
		sortByMeanDesc(seeds)
	}
	opsf("polarity balancing stopped after %d merges", maxBalanceIterations)
	return seeds, iterations
}

func polaritySplit(seeds []rankedCluster) (pos, neg []int) {
	for i, s := range seeds {
		switch {
		case s.stats.Mean > 0:
			pos = append(pos, i)
		case s.stats.Mean < 0:
			neg = append(neg, i)
		}
	}
	return pos, neg
}

// closestMeans returns the pair (a < b) among idx with the smallest absolute
// mean distance.
func closestMeans(idx []int, seeds []rankedCluster) (int, int) {
	bestA, bestB := idx[0], idx[1]
	bestDist := math.Inf(1)
	for x := 0; x < len(idx); x++ {
		for y := x + 1; y < len(idx); y++ {
			d := math.Abs(seeds[idx[x]].stats.Mean - seeds[idx[y]].stats.Mean)
			if d < bestDist {
				bestA, bestB, bestDist = idx[x], idx[y], d
			}
		}
	}
	if bestA > bestB {
		bestA, bestB = bestB, bestA
	}
	return bestA, bestB
}

// pairClusters matches each positive cluster i with the negative cluster
// j > i minimising |mean_i + mean_j|. A negative cluster claimed more than
// once keeps only its best claim; losing positive clusters stay unpaired.
func pairClusters(seeds []rankedCluster) []ClusterPair {
	type claim struct {
		positive int
		residual float64
	}
	claims := make(map[int]claim)

	for i, s := range seeds {
		if s.stats.Mean <= 0 {
			continue
		}
		best := -1
		bestResidual := math.Inf(1)
		for j := i + 1; j < len(seeds); j++ {
			if seeds[j].stats.Mean >= 0 {
				continue
			}
			r := math.Abs(s.stats.Mean + seeds[j].stats.Mean)
			if r < bestResidual {
				best, bestResidual = j, r
			}
		}
		if best < 0 {
			continue
		}
		if prev, ok := claims[best]; ok && prev.residual <= bestResidual {
			tracef("cluster %d loses negative cluster %d to cluster %d", i, best, prev.positive)
			continue
		}
		claims[best] = claim{positive: i, residual: bestResidual}
	}

	pairs := make([]ClusterPair, 0, len(claims))
	for neg, c := range claims {
		pairs = append(pairs, ClusterPair{Positive: c.positive, Negative: neg})
	}
	sort.Slice(pairs, func(i, j int) bool {
		return pairs[i].Positive < pairs[j].Positive
	})
	return pairs
}
