package gsp

import "sort"

// RemainingEvents is the sorted set of event indices not yet assigned to an
// accepted cluster. Each scale consumes one and returns the next.
type RemainingEvents []int

// ClusterResult is the output of SpectralCluster.
type ClusterResult struct {
	Clusters      [][]int `json:"clusters"`
	SolveFailures int     `json:"solve_failures"`
}

// SpectralCluster groups events whose delta magnitudes are self-consistent,
// refining from sigma down to sigma/64. Clusters with cv <= Ri are accepted
// at every scale but the last; the rest are dissolved and retried at the
// next, finer scale. At the final scale every cluster is accepted and any
// unclustered events form one catch-all cluster.
//
// Seeds are taken in ascending event-index order, which makes the result
// independent of the order events are passed in.
func SpectralCluster(delta []float64, events []int, cfg Config) ClusterResult {
	c := &clusterer{delta: delta, cfg: cfg}

	remaining := make(RemainingEvents, len(events))
	copy(remaining, events)
	sort.Ints(remaining)

	var accepted [][]int
	scales := cfg.Scales()
	for k, sigma := range scales {
		if len(remaining) == 0 {
			break
		}
		clusters, leftover := c.clusterScale(remaining, sigma)

		if k == len(scales)-1 {
			accepted = append(accepted, clusters...)
			if len(leftover) > 0 {
				accepted = append(accepted, []int(leftover))
			}
			diagf("scale %d (sigma=%.3f): accepted %d final clusters, %d catch-all events",
				k, sigma, len(clusters), len(leftover))
			break
		}

		next := append(RemainingEvents(nil), leftover...)
		kept := 0
		for _, members := range clusters {
			st := ComputeClusterStats(delta, members)
			if st.CV <= cfg.Ri {
				accepted = append(accepted, members)
				kept++
				continue
			}
			next = append(next, members...)
		}
		sort.Ints(next)
		diagf("scale %d (sigma=%.3f): %d clusters, %d accepted, %d events carried forward",
			k, sigma, len(clusters), kept, len(next))
		remaining = next
	}

	return ClusterResult{Clusters: accepted, SolveFailures: c.solveFailures}
}

type clusterer struct {
	delta         []float64
	cfg           Config
	solveFailures int
}

// clusterScale repeatedly grows a cluster around the lowest remaining event
// until the remainder is exhausted or a seed attracts no members. Seeds whose
// solve fails are set aside and returned in the leftover set.
func (c *clusterer) clusterScale(remaining RemainingEvents, sigma float64) ([][]int, RemainingEvents) {
	rem := append(RemainingEvents(nil), remaining...)
	var clusters [][]int
	var setAside []int

	for len(rem) > 0 {
		seed := rem[0]
		members, err := c.seedCluster(seed, rem, sigma)
		if err != nil {
			c.solveFailures++
			opsf("seed %d skipped at sigma=%.3f: %v", seed, sigma, err)
			setAside = append(setAside, seed)
			rem = rem[1:]
			continue
		}
		if len(members) == 0 {
			tracef("seed %d attracted no members at sigma=%.3f; %d events left", seed, sigma, len(rem))
			break
		}
		tracef("seed %d (delta=%.2f) formed cluster of %d at sigma=%.3f", seed, c.delta[seed], len(members), sigma)
		clusters = append(clusters, members)
		rem = subtractSorted(rem, members)
	}

	leftover := append(RemainingEvents(setAside), rem...)
	sort.Ints(leftover)
	return clusters, leftover
}

// seedCluster scores every remaining event against the seed in windows of at
// most WindowSize events. Each window graph is prefixed with the seed node so
// the O(w^2) Laplacian stays bounded. The result is sorted ascending.
func (c *clusterer) seedCluster(seed int, rem RemainingEvents, sigma float64) ([]int, error) {
	window := c.cfg.WindowSize
	var members []int
	features := make([]float64, 0, min(window, len(rem))+1)

	for start := 0; start < len(rem); start += window {
		end := min(start+window, len(rem))
		features = append(features[:0], c.delta[seed])
		for _, idx := range rem[start:end] {
			features = append(features, c.delta[idx])
		}

		scores, err := harmonicExtension(features, sigma, 1)
		if err != nil {
			return nil, err
		}
		for i, idx := range rem[start:end] {
			if scores[i] > c.cfg.MembershipThreshold {
				members = append(members, idx)
			}
		}
	}
	return members, nil
}
